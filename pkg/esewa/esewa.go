// Package esewa implements the eSewa ePay v2 trust handshake: canonical message
// construction, HMAC-SHA256 signing, response decoding and signature verification,
// plus the transaction status client.
package esewa

import "time"

const (
	// TestFormURL is the UAT ePay v2 form endpoint.
	TestFormURL = "https://rc-epay.esewa.com.np/api/epay/main/v2/form"
	// ProductionFormURL is the production ePay v2 form endpoint.
	ProductionFormURL = "https://epay.esewa.com.np/api/epay/main/v2/form"
	// TestStatusURL is the UAT transaction status endpoint.
	TestStatusURL = "https://rc.esewa.com.np/api/epay/transaction/status/"
	// ProductionStatusURL is the production transaction status endpoint.
	ProductionStatusURL = "https://epay.esewa.com.np/api/epay/transaction/status/"

	// TestProductCode is the merchant code eSewa issues for UAT.
	TestProductCode = "EPAYTEST"
	// UATSecretKey is the secret eSewa publishes for its UAT environment.
	UATSecretKey = "8gBm/:&EnhH.1/q"
)

// Form and response field names.
const (
	FieldAmount                = "amount"
	FieldTaxAmount             = "tax_amount"
	FieldTotalAmount           = "total_amount"
	FieldTransactionUUID       = "transaction_uuid"
	FieldProductCode           = "product_code"
	FieldProductServiceCharge  = "product_service_charge"
	FieldProductDeliveryCharge = "product_delivery_charge"
	FieldSuccessURL            = "success_url"
	FieldFailureURL            = "failure_url"
	FieldSignedFieldNames      = "signed_field_names"
	FieldSignature             = "signature"
	FieldTransactionCode       = "transaction_code"
	FieldStatus                = "status"
	FieldRefID                 = "ref_id"
	FieldError                 = "error"
)

// RequestSignedFieldNames lists the fields signed on the request path, in signing order.
const RequestSignedFieldNames = FieldTotalAmount + "," + FieldTransactionUUID + "," + FieldProductCode

// NPT is Nepal Time (UTC+05:45), the zone eSewa timestamps are rendered in.
var NPT = time.FixedZone("NPT", 5*3600+45*60)
