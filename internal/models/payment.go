package models

import (
	"encoding/json"
	"time"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentRefunded  PaymentStatus = "refunded"
)

// IsFinal reports whether no further gateway updates are expected.
func (s PaymentStatus) IsFinal() bool {
	return s != PaymentPending
}

// Payment is one eSewa payment attempt for an order. TransactionUUID and
// Signature are what the gateway saw and are kept for reconciliation.
type Payment struct {
	ID                   int           `db:"id" json:"-"`
	OrderRef             string        `db:"order_ref" json:"orderRef"`
	CustomerID           int           `db:"customer_id" json:"-"`
	TransactionUUID      string        `db:"transaction_uuid" json:"transactionUuid"`
	Amount               float64       `db:"amount" json:"amount"`
	TaxAmount            float64       `db:"tax_amount" json:"taxAmount"`
	ServiceCharge        float64       `db:"service_charge" json:"serviceCharge"`
	DeliveryCharge       float64       `db:"delivery_charge" json:"deliveryCharge"`
	TotalAmount          float64       `db:"total_amount" json:"totalAmount"`
	ProductCode          string        `db:"product_code" json:"productCode"`
	Status               PaymentStatus `db:"status" json:"status"`
	EsewaTransactionCode *string       `db:"esewa_transaction_code" json:"esewaTransactionCode,omitempty"`
	EsewaRefID           *string       `db:"esewa_ref_id" json:"esewaRefId,omitempty"`
	Signature            string        `db:"signature" json:"-"`
	FailedReason         *string       `db:"failed_reason" json:"failedReason,omitempty"`
	CreatedAt            time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time     `db:"updated_at" json:"updatedAt"`
	CompletedAt          *time.Time    `db:"completed_at" json:"completedAt,omitempty"`
}

type PaymentEvent string

const (
	EventInitiated   PaymentEvent = "initiated"
	EventSuccess     PaymentEvent = "success_redirect"
	EventFailure     PaymentEvent = "failure_redirect"
	EventStatusCheck PaymentEvent = "status_check"
)

// PaymentLog stores raw gateway exchanges for a payment.
type PaymentLog struct {
	ID              int             `db:"id" json:"-"`
	TransactionUUID string          `db:"transaction_uuid" json:"-"`
	Event           PaymentEvent    `db:"event" json:"event"`
	Payload         json.RawMessage `db:"payload" json:"payload"`
	SignatureValid  *bool           `db:"signature_valid" json:"signatureValid,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
}
