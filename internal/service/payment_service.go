package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_esewa/internal/cache"
	"github.com/GTDGit/gtd_esewa/internal/config"
	"github.com/GTDGit/gtd_esewa/internal/metrics"
	"github.com/GTDGit/gtd_esewa/internal/models"
	"github.com/GTDGit/gtd_esewa/internal/repository"
	"github.com/GTDGit/gtd_esewa/internal/sse"
	"github.com/GTDGit/gtd_esewa/internal/utils"
	"github.com/GTDGit/gtd_esewa/pkg/esewa"
)

// amountTolerance absorbs float noise when comparing gateway totals.
const amountTolerance = 0.005

// updateAttempts bounds how often a status change is re-evaluated after
// losing a race with a concurrent writer.
const updateAttempts = 3

// PaymentStore is the persistence the payment flow needs.
type PaymentStore interface {
	Create(ctx context.Context, p *models.Payment) error
	GetByTransactionUUID(ctx context.Context, transactionUUID string) (*models.Payment, error)
	GetCompletedByOrderRef(ctx context.Context, customerID int, orderRef string) (*models.Payment, error)
	Update(ctx context.Context, p *models.Payment, prevStatus models.PaymentStatus) error
	ClaimStalePending(ctx context.Context, staleAfter time.Duration, limit int) ([]models.Payment, error)
	CreateLog(ctx context.Context, l *models.PaymentLog) error
	GetLogsByTransactionUUID(ctx context.Context, transactionUUID string) ([]models.PaymentLog, error)
}

// FormCache remembers issued, unpaid forms.
type FormCache interface {
	SetForm(ctx context.Context, form *cache.IssuedForm) error
	GetForm(ctx context.Context, customerID int, orderRef string) (*cache.IssuedForm, error)
	DeleteForm(ctx context.Context, customerID int, orderRef string) error
}

// StatusChecker queries the gateway for a transaction's state.
type StatusChecker interface {
	CheckStatus(ctx context.Context, productCode, totalAmount, transactionUUID string) *esewa.StatusResponse
}

// InitiatePaymentRequest is the payload for starting a payment.
type InitiatePaymentRequest struct {
	OrderRef       string  `json:"orderRef" binding:"required,max=100"`
	Amount         float64 `json:"amount"`
	TaxAmount      float64 `json:"taxAmount"`
	ServiceCharge  float64 `json:"serviceCharge"`
	DeliveryCharge float64 `json:"deliveryCharge"`
}

// PaymentForm is what the browser posts to the eSewa form URL.
type PaymentForm struct {
	FormURL         string            `json:"formUrl"`
	TransactionUUID string            `json:"transactionUuid"`
	Fields          map[string]string `json:"fields"`
	Reused          bool              `json:"reused"`
}

// StatusResult pairs the stored payment with the gateway's answer and the
// exchanges recorded for it so far.
type StatusResult struct {
	Payment *models.Payment       `json:"payment"`
	Gateway *esewa.StatusResponse `json:"gateway"`
	Changed bool                  `json:"changed"`
	History []models.PaymentLog   `json:"history,omitempty"`
}

// PaymentService drives the eSewa payment lifecycle.
type PaymentService struct {
	store     PaymentStore
	cache     FormCache
	signer    *esewa.Signer
	assembler *esewa.Assembler
	status    StatusChecker
	notifier  sse.PaymentNotifier
	cfg       config.EsewaConfig
}

// NewPaymentService constructs a PaymentService. cache may be nil.
func NewPaymentService(store PaymentStore, cache FormCache, signer *esewa.Signer, status StatusChecker, cfg config.EsewaConfig) *PaymentService {
	return &PaymentService{
		store:     store,
		cache:     cache,
		signer:    signer,
		assembler: esewa.NewAssembler(signer, cfg.ProductCode),
		status:    status,
		notifier:  sse.NopNotifier{},
		cfg:       cfg,
	}
}

// SetNotifier sets the SSE notifier for real-time payment updates
func (s *PaymentService) SetNotifier(notifier sse.PaymentNotifier) {
	s.notifier = notifier
}

// InitiatePayment signs a new form for an order, or hands back the still
// pending one issued earlier for the same order and total.
func (s *PaymentService) InitiatePayment(ctx context.Context, customerID int, req *InitiatePaymentRequest) (*PaymentForm, error) {
	// 1. Refuse orders that are already paid
	if _, err := s.store.GetCompletedByOrderRef(ctx, customerID, req.OrderRef); err == nil {
		return nil, utils.ErrPaymentAlreadyCompleted
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing payment: %w", err)
	}

	// 2. Validate and sign
	fields, transactionUUID, err := s.assembler.Assemble(req.Amount, req.TaxAmount, req.ServiceCharge, req.DeliveryCharge)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrInvalidAmount, err)
	}

	// 3. Reuse an unpaid form for the same order and total
	if form := s.reusableForm(ctx, customerID, req.OrderRef, fields[esewa.FieldTotalAmount]); form != nil {
		metrics.PaymentsInitiated.WithLabelValues("cache").Inc()
		return form, nil
	}

	fields[esewa.FieldSuccessURL] = s.cfg.SuccessURL()
	fields[esewa.FieldFailureURL] = s.cfg.FailureURL()

	// 4. Persist the pending payment
	payment := &models.Payment{
		OrderRef:        req.OrderRef,
		CustomerID:      customerID,
		TransactionUUID: transactionUUID,
		Amount:          req.Amount,
		TaxAmount:       req.TaxAmount,
		ServiceCharge:   req.ServiceCharge,
		DeliveryCharge:  req.DeliveryCharge,
		TotalAmount:     req.Amount + req.TaxAmount + req.ServiceCharge + req.DeliveryCharge,
		ProductCode:     s.assembler.ProductCode(),
		Status:          models.PaymentPending,
		Signature:       fields[esewa.FieldSignature],
	}
	if err := s.store.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	s.logExchange(ctx, transactionUUID, models.EventInitiated, fields, nil)
	s.notifier.NotifyPaymentCreated(payment)

	form := &PaymentForm{
		FormURL:         s.cfg.FormURL,
		TransactionUUID: transactionUUID,
		Fields:          fields,
	}

	// 5. Remember the form; a cache failure only costs a duplicate pending row later
	if s.cache != nil {
		err := s.cache.SetForm(ctx, &cache.IssuedForm{
			TransactionUUID: transactionUUID,
			OrderRef:        req.OrderRef,
			CustomerID:      customerID,
			TotalAmount:     fields[esewa.FieldTotalAmount],
			FormURL:         form.FormURL,
			Fields:          fields,
		})
		if err != nil {
			log.Warn().Err(err).Str("transaction_uuid", transactionUUID).Msg("Failed to cache issued form")
		}
	}

	log.Info().
		Str("transaction_uuid", transactionUUID).
		Str("order_ref", req.OrderRef).
		Int("customer_id", customerID).
		Str("total_amount", fields[esewa.FieldTotalAmount]).
		Msg("Payment initiated")
	metrics.PaymentsInitiated.WithLabelValues("new").Inc()

	return form, nil
}

// reusableForm returns the cached form for the order when it has the same
// total and its payment is still pending.
func (s *PaymentService) reusableForm(ctx context.Context, customerID int, orderRef, totalAmount string) *PaymentForm {
	if s.cache == nil {
		return nil
	}
	cached, err := s.cache.GetForm(ctx, customerID, orderRef)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn().Err(err).Str("order_ref", orderRef).Msg("Issued form cache lookup failed")
		}
		return nil
	}
	if cached.TotalAmount != totalAmount {
		return nil
	}
	payment, err := s.store.GetByTransactionUUID(ctx, cached.TransactionUUID)
	if err != nil || payment.Status != models.PaymentPending {
		return nil
	}
	return &PaymentForm{
		FormURL:         cached.FormURL,
		TransactionUUID: cached.TransactionUUID,
		Fields:          cached.Fields,
		Reused:          true,
	}
}

// HandleSuccess processes the base64 payload eSewa appends to success_url.
// The payment is completed only when the signature verifies, the gateway
// reports COMPLETE and product code and total match what was issued.
func (s *PaymentService) HandleSuccess(ctx context.Context, data string) (*models.Payment, error) {
	fields := esewa.DecodeResponse(data)
	if msg, ok := fields[esewa.FieldError]; ok {
		return nil, fmt.Errorf("%w: %s", utils.ErrInvalidResponse, msg)
	}
	transactionUUID := fields[esewa.FieldTransactionUUID]

	valid := s.signer.Verify(fields, fields[esewa.FieldSignature])
	metrics.ObserveVerification(valid)
	s.logExchange(ctx, transactionUUID, models.EventSuccess, fields, &valid)
	if !valid {
		log.Warn().Str("transaction_uuid", transactionUUID).Msg("Gateway response signature mismatch")
		return nil, utils.ErrSignatureMismatch
	}

	if fields[esewa.FieldStatus] != esewa.StatusComplete {
		return nil, fmt.Errorf("%w: gateway status %q", utils.ErrPaymentNotComplete, fields[esewa.FieldStatus])
	}

	payment, err := s.getPayment(ctx, transactionUUID)
	if err != nil {
		return nil, err
	}

	if fields[esewa.FieldProductCode] != payment.ProductCode {
		return nil, utils.ErrProductCodeMismatch
	}
	if !amountMatches(fields[esewa.FieldTotalAmount], payment.TotalAmount) {
		log.Warn().
			Str("transaction_uuid", transactionUUID).
			Str("gateway_total", fields[esewa.FieldTotalAmount]).
			Float64("expected_total", payment.TotalAmount).
			Msg("Gateway total does not match issued total")
		return nil, utils.ErrAmountMismatch
	}

	payment, changed, err := s.transition(ctx, payment, func(p *models.Payment) bool {
		switch p.Status {
		case models.PaymentCompleted, models.PaymentRefunded:
			return false
		case models.PaymentPending:
		default:
			log.Warn().
				Str("transaction_uuid", transactionUUID).
				Str("previous_status", string(p.Status)).
				Msg("Verified completion for a payment previously closed")
		}
		markCompleted(p, fields[esewa.FieldTransactionCode], fields[esewa.FieldRefID])
		return true
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return payment, nil
	}
	s.forgetForm(ctx, payment)
	s.notifier.NotifyPaymentStatusChanged(payment)

	log.Info().
		Str("transaction_uuid", transactionUUID).
		Str("order_ref", payment.OrderRef).
		Msg("Payment completed")
	return payment, nil
}

// HandleFailure processes the payload eSewa appends to failure_url and marks
// the pending payment failed. Completed payments are left untouched.
func (s *PaymentService) HandleFailure(ctx context.Context, data string) (*models.Payment, error) {
	fields := esewa.DecodeResponse(data)
	if msg, ok := fields[esewa.FieldError]; ok {
		return nil, fmt.Errorf("%w: %s", utils.ErrInvalidResponse, msg)
	}
	transactionUUID := fields[esewa.FieldTransactionUUID]
	if transactionUUID == "" {
		return nil, fmt.Errorf("%w: missing transaction_uuid", utils.ErrInvalidResponse)
	}

	var valid *bool
	if sig := fields[esewa.FieldSignature]; sig != "" {
		v := s.signer.Verify(fields, sig)
		metrics.ObserveVerification(v)
		valid = &v
	}
	s.logExchange(ctx, transactionUUID, models.EventFailure, fields, valid)

	payment, err := s.getPayment(ctx, transactionUUID)
	if err != nil {
		return nil, err
	}

	reason := "Payment failed or cancelled at gateway"
	if status := fields[esewa.FieldStatus]; status != "" {
		reason += " (" + status + ")"
	}
	payment, changed, err := s.transition(ctx, payment, func(p *models.Payment) bool {
		if p.Status != models.PaymentPending {
			return false
		}
		p.Status = models.PaymentFailed
		p.FailedReason = &reason
		return true
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return payment, nil
	}
	s.forgetForm(ctx, payment)
	s.notifier.NotifyPaymentStatusChanged(payment)

	log.Info().Str("transaction_uuid", transactionUUID).Msg("Payment failed")
	return payment, nil
}

// CheckStatus asks the gateway about a customer's payment and applies the
// answer. A gateway failure is reported in StatusResult.Gateway.Error.
func (s *PaymentService) CheckStatus(ctx context.Context, transactionUUID string, customerID int) (*StatusResult, error) {
	payment, err := s.getPayment(ctx, transactionUUID)
	if err != nil {
		return nil, err
	}
	if payment.CustomerID != customerID {
		return nil, utils.ErrForbidden
	}
	result, err := s.refreshStatus(ctx, payment)
	if err != nil {
		return nil, err
	}

	history, err := s.store.GetLogsByTransactionUUID(ctx, transactionUUID)
	if err != nil {
		log.Warn().Err(err).Str("transaction_uuid", transactionUUID).Msg("Failed to load payment history")
	} else {
		result.History = history
	}
	return result, nil
}

// ReconcileStale re-checks pending payments untouched for staleAfter and
// cancels those still pending after maxAge. It returns how many were checked.
func (s *PaymentService) ReconcileStale(ctx context.Context, staleAfter, maxAge time.Duration, limit int) (int, error) {
	stale, err := s.store.ClaimStalePending(ctx, staleAfter, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to claim stale payments: %w", err)
	}

	processed := 0
	for i := range stale {
		if ctx.Err() != nil {
			break
		}
		payment := &stale[i]
		result, err := s.refreshStatus(ctx, payment)
		processed++
		if err != nil {
			log.Error().Err(err).Str("transaction_uuid", payment.TransactionUUID).Msg("Failed to refresh payment status")
			continue
		}
		if result.Payment.Status == models.PaymentPending && time.Since(result.Payment.CreatedAt) > maxAge {
			s.expire(ctx, result.Payment, result.Gateway)
		}
	}
	return processed, nil
}

func (s *PaymentService) expire(ctx context.Context, payment *models.Payment, gateway *esewa.StatusResponse) {
	reason := "Payment expired without confirmation from gateway"
	if gateway != nil && gateway.Status != "" {
		reason += " (last status " + gateway.Status + ")"
	}
	transactionUUID := payment.TransactionUUID
	payment, changed, err := s.transition(ctx, payment, func(p *models.Payment) bool {
		if p.Status != models.PaymentPending {
			return false
		}
		p.Status = models.PaymentCancelled
		p.FailedReason = &reason
		return true
	})
	if err != nil {
		log.Error().Err(err).Str("transaction_uuid", transactionUUID).Msg("Failed to cancel expired payment")
		return
	}
	if !changed {
		log.Info().
			Str("transaction_uuid", transactionUUID).
			Str("status", string(payment.Status)).
			Msg("Payment settled before expiry, left as is")
		return
	}
	s.forgetForm(ctx, payment)
	s.notifier.NotifyPaymentStatusChanged(payment)
	log.Warn().
		Str("transaction_uuid", payment.TransactionUUID).
		Dur("age", time.Since(payment.CreatedAt)).
		Msg("Pending payment expired, marked as cancelled")
}

func (s *PaymentService) refreshStatus(ctx context.Context, payment *models.Payment) (*StatusResult, error) {
	resp := s.status.CheckStatus(ctx, payment.ProductCode, esewa.FormatAmount(payment.TotalAmount), payment.TransactionUUID)
	s.logExchange(ctx, payment.TransactionUUID, models.EventStatusCheck, resp, nil)

	result := &StatusResult{Payment: payment, Gateway: resp}
	if resp.Failed() {
		metrics.StatusChecks.WithLabelValues("error").Inc()
		return result, nil
	}
	metrics.StatusChecks.WithLabelValues(strings.ToLower(resp.Status)).Inc()

	payment, changed, err := s.transition(ctx, payment, func(p *models.Payment) bool {
		return applyGatewayStatus(p, resp)
	})
	if err != nil {
		return nil, err
	}
	result.Payment = payment
	if !changed {
		return result, nil
	}
	if payment.Status.IsFinal() {
		s.forgetForm(ctx, payment)
	}
	result.Changed = true
	s.notifier.NotifyPaymentStatusChanged(payment)

	log.Info().
		Str("transaction_uuid", payment.TransactionUUID).
		Str("gateway_status", resp.Status).
		Str("status", string(payment.Status)).
		Msg("Payment status updated from gateway")
	return result, nil
}

// transition lets change edit payment and stores the edit only while the
// stored status is still the one change saw. When another writer got there
// first the payment is reloaded and change decides again. It returns the
// latest payment and whether change was stored.
func (s *PaymentService) transition(ctx context.Context, payment *models.Payment, change func(*models.Payment) bool) (*models.Payment, bool, error) {
	transactionUUID := payment.TransactionUUID
	for attempt := 1; ; attempt++ {
		prev := payment.Status
		if !change(payment) {
			return payment, false, nil
		}
		err := s.store.Update(ctx, payment, prev)
		if err == nil {
			return payment, true, nil
		}
		if !errors.Is(err, repository.ErrStatusConflict) || attempt >= updateAttempts {
			return nil, false, fmt.Errorf("failed to update payment: %w", err)
		}
		log.Info().
			Str("transaction_uuid", transactionUUID).
			Str("expected_status", string(prev)).
			Msg("Payment status changed concurrently, re-evaluating")
		if payment, err = s.getPayment(ctx, transactionUUID); err != nil {
			return nil, false, err
		}
	}
}

// applyGatewayStatus moves payment to the state resp reports and tells
// whether anything changed. Only pending payments move forward, except that
// a completed payment can become refunded.
func applyGatewayStatus(payment *models.Payment, resp *esewa.StatusResponse) bool {
	switch {
	case payment.Status == models.PaymentPending && esewa.IsSuccess(resp.Status):
		markCompleted(payment, "", resp.RefID)
		return true
	case payment.Status == models.PaymentPending && esewa.IsFailed(resp.Status):
		reason := "Gateway reported " + resp.Status
		payment.Status = models.PaymentFailed
		payment.FailedReason = &reason
		return true
	case esewa.IsRefunded(resp.Status) &&
		(payment.Status == models.PaymentPending || payment.Status == models.PaymentCompleted):
		reason := "Gateway reported " + resp.Status
		payment.Status = models.PaymentRefunded
		payment.FailedReason = &reason
		return true
	}
	return false
}

func markCompleted(payment *models.Payment, transactionCode, refID string) {
	now := time.Now()
	payment.Status = models.PaymentCompleted
	payment.CompletedAt = &now
	payment.FailedReason = nil
	if transactionCode != "" {
		payment.EsewaTransactionCode = &transactionCode
	}
	if refID != "" {
		payment.EsewaRefID = &refID
	}
}

// amountMatches compares a gateway total ("1,000.0") with the issued total.
func amountMatches(gatewayTotal string, expected float64) bool {
	v, err := strconv.ParseFloat(strings.ReplaceAll(gatewayTotal, ",", ""), 64)
	if err != nil {
		return false
	}
	return math.Abs(v-expected) < amountTolerance
}

func (s *PaymentService) getPayment(ctx context.Context, transactionUUID string) (*models.Payment, error) {
	if transactionUUID == "" {
		return nil, utils.ErrPaymentNotFound
	}
	payment, err := s.store.GetByTransactionUUID(ctx, transactionUUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return payment, nil
}

func (s *PaymentService) forgetForm(ctx context.Context, payment *models.Payment) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteForm(ctx, payment.CustomerID, payment.OrderRef); err != nil {
		log.Warn().Err(err).Str("transaction_uuid", payment.TransactionUUID).Msg("Failed to drop issued form from cache")
	}
}

// logExchange stores a raw gateway exchange; failures are only logged.
func (s *PaymentService) logExchange(ctx context.Context, transactionUUID string, event models.PaymentEvent, payload any, signatureValid *bool) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Warn().Err(err).Str("transaction_uuid", transactionUUID).Msg("Failed to marshal payment log payload")
		return
	}
	entry := &models.PaymentLog{
		TransactionUUID: transactionUUID,
		Event:           event,
		Payload:         raw,
		SignatureValid:  signatureValid,
	}
	if err := s.store.CreateLog(ctx, entry); err != nil {
		log.Warn().Err(err).Str("transaction_uuid", transactionUUID).Msg("Failed to store payment log")
	}
}
