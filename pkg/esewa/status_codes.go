package esewa

// Transaction status values returned by the status endpoint and carried in
// the success redirect payload.
const (
	StatusComplete      = "COMPLETE"
	StatusPending       = "PENDING"
	StatusFullRefund    = "FULL_REFUND"
	StatusPartialRefund = "PARTIAL_REFUND"
	StatusAmbiguous     = "AMBIGUOUS"
	StatusNotFound      = "NOT_FOUND"
	StatusCanceled      = "CANCELED"
)

// pendingStatuses need another status check later.
var pendingStatuses = map[string]bool{
	StatusPending:   true,
	StatusAmbiguous: true,
}

// failedStatuses mean the money never settled with the merchant.
var failedStatuses = map[string]bool{
	StatusNotFound: true,
	StatusCanceled: true,
}

// refundStatuses mean the payment settled and was later reversed.
var refundStatuses = map[string]bool{
	StatusFullRefund:    true,
	StatusPartialRefund: true,
}

// IsSuccess reports whether status means the payment completed.
func IsSuccess(status string) bool {
	return status == StatusComplete
}

// IsPending reports whether status is not final yet.
func IsPending(status string) bool {
	return pendingStatuses[status]
}

// IsFailed reports whether status means the payment did not go through.
func IsFailed(status string) bool {
	return failedStatuses[status]
}

// IsRefunded reports whether status means the payment was refunded.
func IsRefunded(status string) bool {
	return refundStatuses[status]
}
