package repository

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/gtd_esewa/internal/database"
	"github.com/GTDGit/gtd_esewa/internal/models"
)

// openTestDB connects to TEST_DATABASE_URL and applies migrations. Tests are
// skipped when it is unset.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db.DB, "file://../../migrations"))
	return db
}

func newPayment(orderRef string) *models.Payment {
	return &models.Payment{
		OrderRef:        orderRef,
		CustomerID:      7,
		TransactionUUID: "test-" + uuid.New().String(),
		Amount:          100,
		TaxAmount:       10,
		TotalAmount:     110,
		ProductCode:     "EPAYTEST",
		Status:          models.PaymentPending,
		Signature:       "sig",
	}
}

func TestPaymentRepository_Lifecycle(t *testing.T) {
	db := openTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()
	orderRef := "ORD-" + uuid.New().String()

	p := newPayment(orderRef)
	require.NoError(t, repo.Create(ctx, p))
	assert.NotZero(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := repo.GetByTransactionUUID(ctx, p.TransactionUUID)
	require.NoError(t, err)
	assert.Equal(t, 110.0, got.TotalAmount)
	assert.Equal(t, models.PaymentPending, got.Status)

	_, err = repo.GetCompletedByOrderRef(ctx, 7, orderRef)
	assert.ErrorIs(t, err, ErrNotFound)

	now := time.Now()
	code := "000AWEO"
	got.Status = models.PaymentCompleted
	got.EsewaTransactionCode = &code
	got.CompletedAt = &now
	require.NoError(t, repo.Update(ctx, got, models.PaymentPending))

	completed, err := repo.GetCompletedByOrderRef(ctx, 7, orderRef)
	require.NoError(t, err)
	assert.Equal(t, p.TransactionUUID, completed.TransactionUUID)
	require.NotNil(t, completed.EsewaTransactionCode)
	assert.Equal(t, code, *completed.EsewaTransactionCode)

	// another customer may reuse the same order ref
	_, err = repo.GetCompletedByOrderRef(ctx, 8, orderRef)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetByTransactionUUID(ctx, "missing-"+uuid.New().String())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, newPayment(orderRef), models.PaymentPending), ErrNotFound)
}

func TestPaymentRepository_UpdateRequiresExpectedStatus(t *testing.T) {
	db := openTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	p := newPayment("ORD-" + uuid.New().String())
	require.NoError(t, repo.Create(ctx, p))

	now := time.Now()
	completed := *p
	completed.Status = models.PaymentCompleted
	completed.CompletedAt = &now
	require.NoError(t, repo.Update(ctx, &completed, models.PaymentPending))

	// a writer still holding the pending row must not overwrite the completion
	reason := "Payment expired without confirmation from gateway"
	stale := *p
	stale.Status = models.PaymentCancelled
	stale.FailedReason = &reason
	assert.ErrorIs(t, repo.Update(ctx, &stale, models.PaymentPending), ErrStatusConflict)

	got, err := repo.GetByTransactionUUID(ctx, p.TransactionUUID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, got.Status)
	assert.Nil(t, got.FailedReason)
}

func TestPaymentRepository_ClaimStalePending(t *testing.T) {
	db := openTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	p := newPayment("ORD-" + uuid.New().String())
	require.NoError(t, repo.Create(ctx, p))
	_, err := db.ExecContext(ctx, `UPDATE payments SET updated_at = NOW() - INTERVAL '1 hour' WHERE id = $1`, p.ID)
	require.NoError(t, err)

	claimed, err := repo.ClaimStalePending(ctx, time.Minute, 1000)
	require.NoError(t, err)
	assert.True(t, containsPayment(claimed, p.TransactionUUID))

	// claimed rows are not handed out again until they go stale again
	again, err := repo.ClaimStalePending(ctx, time.Minute, 1000)
	require.NoError(t, err)
	assert.False(t, containsPayment(again, p.TransactionUUID))
}

func TestPaymentRepository_Logs(t *testing.T) {
	db := openTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()
	transactionUUID := "test-" + uuid.New().String()

	valid := true
	require.NoError(t, repo.CreateLog(ctx, &models.PaymentLog{
		TransactionUUID: transactionUUID,
		Event:           models.EventSuccess,
		Payload:         json.RawMessage(`{"status":"COMPLETE"}`),
		SignatureValid:  &valid,
	}))
	require.NoError(t, repo.CreateLog(ctx, &models.PaymentLog{
		TransactionUUID: transactionUUID,
		Event:           models.EventStatusCheck,
	}))

	logs, err := repo.GetLogsByTransactionUUID(ctx, transactionUUID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.EventSuccess, logs[0].Event)
	assert.JSONEq(t, `{"status":"COMPLETE"}`, string(logs[0].Payload))
	require.NotNil(t, logs[0].SignatureValid)
	assert.True(t, *logs[0].SignatureValid)
	assert.Nil(t, logs[1].SignatureValid)
}

func containsPayment(list []models.Payment, transactionUUID string) bool {
	for _, p := range list {
		if p.TransactionUUID == transactionUUID {
			return true
		}
	}
	return false
}
