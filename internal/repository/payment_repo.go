package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/gtd_esewa/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrStatusConflict is returned by Update when the stored status is no
	// longer the one the caller read.
	ErrStatusConflict = errors.New("payment status changed concurrently")
)

// PaymentRepository handles data access for payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a new payment row and fills its ID and timestamps.
func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	const q = `
        INSERT INTO payments (
            order_ref, customer_id, transaction_uuid, amount, tax_amount,
            service_charge, delivery_charge, total_amount, product_code, status,
            signature, created_at, updated_at
        ) VALUES (
            $1,$2,$3,$4,$5,
            $6,$7,$8,$9,$10,
            $11,NOW(),NOW()
        ) RETURNING id, created_at, updated_at`

	return r.db.QueryRowxContext(ctx, q,
		p.OrderRef, p.CustomerID, p.TransactionUUID, p.Amount, p.TaxAmount,
		p.ServiceCharge, p.DeliveryCharge, p.TotalAmount, p.ProductCode, p.Status,
		p.Signature,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// GetByTransactionUUID returns the payment issued under transactionUUID.
func (r *PaymentRepository) GetByTransactionUUID(ctx context.Context, transactionUUID string) (*models.Payment, error) {
	const q = `SELECT * FROM payments WHERE transaction_uuid = $1`
	var p models.Payment
	if err := r.db.GetContext(ctx, &p, q, transactionUUID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetCompletedByOrderRef returns the customer's completed payment for an
// order, if any. Order refs are only unique per customer.
func (r *PaymentRepository) GetCompletedByOrderRef(ctx context.Context, customerID int, orderRef string) (*models.Payment, error) {
	const q = `
        SELECT * FROM payments
        WHERE customer_id = $1 AND order_ref = $2 AND status = 'completed'
        ORDER BY completed_at DESC
        LIMIT 1`
	var p models.Payment
	if err := r.db.GetContext(ctx, &p, q, customerID, orderRef); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Update persists the mutable gateway-facing columns of a payment, but only
// while its stored status is still prevStatus. Otherwise it returns
// ErrStatusConflict, or ErrNotFound when the row does not exist.
func (r *PaymentRepository) Update(ctx context.Context, p *models.Payment, prevStatus models.PaymentStatus) error {
	const q = `
        UPDATE payments SET
            status = $2,
            esewa_transaction_code = $3,
            esewa_ref_id = $4,
            failed_reason = $5,
            completed_at = $6,
            updated_at = NOW()
        WHERE transaction_uuid = $1 AND status = $7`

	res, err := r.db.ExecContext(ctx, q,
		p.TransactionUUID,
		p.Status,
		p.EsewaTransactionCode,
		p.EsewaRefID,
		p.FailedReason,
		p.CompletedAt,
		prevStatus,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM payments WHERE transaction_uuid = $1)`, p.TransactionUUID); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusConflict
}

// ClaimStalePending returns up to limit pending payments not touched for
// staleAfter, oldest first, and bumps their updated_at so that concurrent
// workers skip them until they go stale again.
func (r *PaymentRepository) ClaimStalePending(ctx context.Context, staleAfter time.Duration, limit int) ([]models.Payment, error) {
	const q = `
        UPDATE payments SET updated_at = NOW()
        WHERE id IN (
            SELECT id FROM payments
            WHERE status = 'pending'
              AND updated_at < NOW() - $1::interval
            ORDER BY created_at ASC
            LIMIT $2
            FOR UPDATE SKIP LOCKED
        )
        RETURNING *`

	// PostgreSQL interval string, e.g. "300 seconds"
	interval := fmt.Sprintf("%d seconds", int(staleAfter.Seconds()))

	var list []models.Payment
	if err := r.db.SelectContext(ctx, &list, q, interval, limit); err != nil {
		return nil, err
	}
	return list, nil
}

// CreateLog inserts a raw gateway exchange log row.
func (r *PaymentRepository) CreateLog(ctx context.Context, l *models.PaymentLog) error {
	const q = `
        INSERT INTO payment_logs (transaction_uuid, event, payload, signature_valid, created_at)
        VALUES ($1, $2, $3, $4, NOW())`

	var payload interface{}
	if len(l.Payload) > 0 {
		payload = []byte(l.Payload)
	}
	_, err := r.db.ExecContext(ctx, q, l.TransactionUUID, l.Event, payload, l.SignatureValid)
	return err
}

// GetLogsByTransactionUUID returns all logs for a payment ordered by creation time.
func (r *PaymentRepository) GetLogsByTransactionUUID(ctx context.Context, transactionUUID string) ([]models.PaymentLog, error) {
	const q = `SELECT * FROM payment_logs WHERE transaction_uuid = $1 ORDER BY created_at ASC, id ASC`
	var logs []models.PaymentLog
	if err := r.db.SelectContext(ctx, &logs, q, transactionUUID); err != nil {
		return nil, err
	}
	return logs, nil
}
