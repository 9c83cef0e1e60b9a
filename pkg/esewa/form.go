package esewa

import "fmt"

// Assembler builds signed ePay v2 form fields for a fixed merchant product code.
type Assembler struct {
	signer      *Signer
	productCode string
	newUUID     func() string
}

// NewAssembler creates an Assembler that signs with signer under productCode.
func NewAssembler(signer *Signer, productCode string) *Assembler {
	return &Assembler{
		signer:      signer,
		productCode: productCode,
		newUUID:     NewTransactionUUID,
	}
}

// ProductCode returns the merchant product code placed in every form.
func (a *Assembler) ProductCode() string {
	return a.productCode
}

// Assemble validates the amounts, generates one transaction UUID and returns
// the signed form fields together with that UUID. success_url and failure_url
// are left for the caller to add.
func (a *Assembler) Assemble(baseAmount, taxAmount, serviceCharge, deliveryCharge float64) (map[string]string, string, error) {
	inputs := []struct {
		name  string
		value float64
	}{
		{FieldAmount, baseAmount},
		{FieldTaxAmount, taxAmount},
		{FieldProductServiceCharge, serviceCharge},
		{FieldProductDeliveryCharge, deliveryCharge},
	}
	for _, in := range inputs {
		if err := validateAmount(in.value); err != nil {
			return nil, "", fmt.Errorf("%s: %w", in.name, err)
		}
	}

	transactionUUID := a.newUUID()
	total := baseAmount + taxAmount + serviceCharge + deliveryCharge
	totalStr := FormatAmount(total)

	fields := map[string]string{
		FieldAmount:                FormatAmount(baseAmount),
		FieldTaxAmount:             FormatAmount(taxAmount),
		FieldTotalAmount:           totalStr,
		FieldTransactionUUID:       transactionUUID,
		FieldProductCode:           a.productCode,
		FieldProductServiceCharge:  FormatAmount(serviceCharge),
		FieldProductDeliveryCharge: FormatAmount(deliveryCharge),
		FieldSignedFieldNames:      RequestSignedFieldNames,
		FieldSignature:             a.signer.Sign(totalStr, transactionUUID, a.productCode),
	}
	return fields, transactionUUID, nil
}
