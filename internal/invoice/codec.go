package invoice

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DecodeMutation maps a JSON field edit onto the closed set of mutations.
// The variant is not writable here.
func DecodeMutation(field Field, raw json.RawMessage) (Mutation, error) {
	switch field {
	case FieldIssuedDate:
		var t time.Time
		if err := json.Unmarshal(raw, &t); err != nil {
			return Mutation{}, decodeErr(field, err)
		}
		return SetIssuedDate(t), nil
	case FieldDocumentNo:
		var no DocumentNo
		if err := json.Unmarshal(raw, &no); err != nil {
			return Mutation{}, decodeErr(field, err)
		}
		return SetDocumentNo(no), nil
	case FieldNetAmount, FieldTaxAmount, FieldTotalAmount:
		var d decimal.Decimal
		if err := d.UnmarshalJSON(raw); err != nil {
			return Mutation{}, decodeErr(field, err)
		}
		switch field {
		case FieldNetAmount:
			return SetNetAmount(d), nil
		case FieldTaxAmount:
			return SetTaxAmount(d), nil
		default:
			return SetTotalAmount(d), nil
		}
	case FieldTaxRate:
		var r TaxRate
		if err := r.UnmarshalJSON(raw); err != nil {
			return Mutation{}, decodeErr(field, err)
		}
		return SetTaxRate(r), nil
	case FieldCounterparty:
		var c Counterparty
		if err := json.Unmarshal(raw, &c); err != nil {
			return Mutation{}, decodeErr(field, err)
		}
		return SetCounterparty(c), nil
	case FieldDeduction:
		var d Deduction
		if err := json.Unmarshal(raw, &d); err != nil {
			return Mutation{}, decodeErr(field, err)
		}
		return SetDeduction(d), nil
	case FieldSharedAmount:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Mutation{}, decodeErr(field, err)
		}
		return SetSharedAmount(b), nil
	case FieldCertificateNo:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Mutation{}, decodeErr(field, err)
		}
		return SetCertificateNo(s), nil
	case FieldSummaryCount:
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			return Mutation{}, decodeErr(field, err)
		}
		return SetSummaryCount(n), nil
	case FieldDescription:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Mutation{}, decodeErr(field, err)
		}
		return SetDescription(s), nil
	}
	return Mutation{}, fmt.Errorf("%w: %q", ErrUnknownField, field)
}

func decodeErr(field Field, err error) error {
	return fmt.Errorf("invoice: decode %s: %w", field, err)
}
