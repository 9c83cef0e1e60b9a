package esewa

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Signer computes and verifies eSewa HMAC-SHA256 signatures with a single
// merchant secret. It holds no mutable state and is safe for concurrent use.
type Signer struct {
	key []byte
}

// NewSigner creates a Signer bound to the given merchant secret.
func NewSigner(secretKey string) *Signer {
	return &Signer{key: []byte(secretKey)}
}

// Sign returns the base64 signature over
// total_amount=<a>,transaction_uuid=<t>,product_code=<p>.
// Inputs are used verbatim; amounts must already be formatted with FormatAmount.
func (s *Signer) Sign(totalAmount, transactionUUID, productCode string) string {
	return s.SignMessage(RequestMessage(totalAmount, transactionUUID, productCode))
}

// SignMessage signs an already canonical message.
func (s *Signer) SignMessage(message string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify rebuilds the canonical message from the order declared in
// fields["signed_field_names"] and compares its signature with signature in
// constant time. A declared field missing from fields fails verification.
func (s *Signer) Verify(fields map[string]string, signature string) bool {
	if signature == "" {
		return false
	}
	message, ok := CanonicalMessage(fields, fields[FieldSignedFieldNames])
	if !ok {
		return false
	}
	expected := s.SignMessage(message)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// RequestMessage builds the canonical message for the request signing path.
func RequestMessage(totalAmount, transactionUUID, productCode string) string {
	return FieldTotalAmount + "=" + totalAmount +
		"," + FieldTransactionUUID + "=" + transactionUUID +
		"," + FieldProductCode + "=" + productCode
}

// CanonicalMessage joins name=value pairs for each name in the comma separated
// signedFieldNames, in that order. It reports false when the list is empty or
// names a field that fields does not carry.
func CanonicalMessage(fields map[string]string, signedFieldNames string) (string, bool) {
	if signedFieldNames == "" {
		return "", false
	}
	names := strings.Split(signedFieldNames, ",")
	parts := make([]string, 0, len(names))
	for _, name := range names {
		value, ok := fields[name]
		if name == "" || !ok {
			return "", false
		}
		parts = append(parts, name+"="+value)
	}
	return strings.Join(parts, ","), true
}
