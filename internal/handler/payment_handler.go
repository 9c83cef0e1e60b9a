package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_esewa/internal/models"
	"github.com/GTDGit/gtd_esewa/internal/service"
	"github.com/GTDGit/gtd_esewa/internal/utils"
)

// PaymentProcessor is the payment flow the handler drives.
type PaymentProcessor interface {
	InitiatePayment(ctx context.Context, customerID int, req *service.InitiatePaymentRequest) (*service.PaymentForm, error)
	HandleSuccess(ctx context.Context, data string) (*models.Payment, error)
	HandleFailure(ctx context.Context, data string) (*models.Payment, error)
	CheckStatus(ctx context.Context, transactionUUID string, customerID int) (*service.StatusResult, error)
}

// PaymentHandler handles payment HTTP endpoints and eSewa redirects.
type PaymentHandler struct {
	payments PaymentProcessor
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(payments PaymentProcessor) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// InitiatePayment handles POST /v1/payments
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	var req service.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "MISSING_FIELD", "Invalid request body")
		return
	}
	req.OrderRef = strings.TrimSpace(req.OrderRef)
	if req.OrderRef == "" {
		utils.Error(c, 400, "MISSING_FIELD", "orderRef is required")
		return
	}

	form, err := h.payments.InitiatePayment(c.Request.Context(), c.GetInt("customer_id"), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	if form.Reused {
		utils.Success(c, 200, "Pending payment form reused", form)
		return
	}
	utils.Success(c, 201, "Payment initiated", form)
}

// GetStatus handles GET /v1/payments/:transactionUuid/status
func (h *PaymentHandler) GetStatus(c *gin.Context) {
	result, err := h.payments.CheckStatus(c.Request.Context(), c.Param("transactionUuid"), c.GetInt("customer_id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	if result.Gateway.Failed() {
		log.Warn().
			Str("transaction_uuid", result.Payment.TransactionUUID).
			Str("error", result.Gateway.Error).
			Msg("Gateway status check failed")
		h.handleError(c, utils.ErrGatewayUnavailable)
		return
	}

	utils.Success(c, 200, "Payment status retrieved", result)
}

// PaymentSuccess handles GET /payment/success, the eSewa success redirect.
func (h *PaymentHandler) PaymentSuccess(c *gin.Context) {
	data, ok := redirectData(c)
	if !ok {
		return
	}

	payment, err := h.payments.HandleSuccess(c.Request.Context(), data)
	if err != nil {
		h.handleError(c, err)
		return
	}

	utils.Success(c, 200, "Payment completed", payment)
}

// PaymentFailure handles GET /payment/failure, the eSewa failure redirect.
func (h *PaymentHandler) PaymentFailure(c *gin.Context) {
	data, ok := redirectData(c)
	if !ok {
		return
	}

	payment, err := h.payments.HandleFailure(c.Request.Context(), data)
	if err != nil {
		h.handleError(c, err)
		return
	}

	utils.Success(c, 200, "Payment "+string(payment.Status), payment)
}

// redirectData returns the base64 payload eSewa appends as ?data=. Some
// browsers hand back '+' as a space after query decoding.
func redirectData(c *gin.Context) (string, bool) {
	data := strings.TrimSpace(c.Query("data"))
	if data == "" {
		utils.Error(c, 400, "MISSING_FIELD", "data query parameter is required")
		return "", false
	}
	return strings.ReplaceAll(data, " ", "+"), true
}

func (h *PaymentHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrInvalidAmount):
		utils.Error(c, 400, "INVALID_AMOUNT", "Amounts must be finite and not negative")
	case errors.Is(err, utils.ErrPaymentAlreadyCompleted):
		utils.Error(c, 409, "PAYMENT_ALREADY_COMPLETED", "Order has already been paid")
	case errors.Is(err, utils.ErrPaymentNotFound):
		utils.Error(c, 404, "PAYMENT_NOT_FOUND", "Payment not found")
	case errors.Is(err, utils.ErrForbidden):
		utils.Error(c, 403, "FORBIDDEN", "Payment belongs to another customer")
	case errors.Is(err, utils.ErrInvalidResponse):
		utils.Error(c, 400, "INVALID_GATEWAY_RESPONSE", "Gateway response could not be decoded")
	case errors.Is(err, utils.ErrSignatureMismatch):
		utils.Error(c, 400, "SIGNATURE_MISMATCH", "Gateway response signature is invalid")
	case errors.Is(err, utils.ErrPaymentNotComplete):
		utils.Error(c, 400, "PAYMENT_NOT_COMPLETE", "Gateway did not report the payment as complete")
	case errors.Is(err, utils.ErrAmountMismatch):
		utils.Error(c, 400, "AMOUNT_MISMATCH", "Paid amount does not match the payment")
	case errors.Is(err, utils.ErrProductCodeMismatch):
		utils.Error(c, 400, "PRODUCT_CODE_MISMATCH", "Product code does not match the merchant")
	case errors.Is(err, utils.ErrGatewayUnavailable):
		utils.Error(c, 502, "GATEWAY_UNAVAILABLE", "Payment gateway is unavailable")
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Unhandled payment error")
		utils.Error(c, 500, "INTERNAL_ERROR", "Internal server error")
	}
}
