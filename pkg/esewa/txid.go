package esewa

import (
	"time"

	"github.com/google/uuid"
)

// transactionTimeLayout renders YYMMDD-HHMMSS.
const transactionTimeLayout = "060102-150405"

// NewTransactionUUID returns a fresh transaction identifier stamped with the
// current Nepal time. Format: YYMMDD-HHMMSS-xxxxxxxx
func NewTransactionUUID() string {
	return GenerateTransactionUUID(time.Now().In(NPT))
}

// GenerateTransactionUUID stamps now (in its own location) and appends the
// first 8 hex characters of a random UUIDv4. Identifiers generated within the
// same second differ only by that suffix; uniqueness is probabilistic.
func GenerateTransactionUUID(now time.Time) string {
	return now.Format(transactionTimeLayout) + "-" + uuid.New().String()[:8]
}
