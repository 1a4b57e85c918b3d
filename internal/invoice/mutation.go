package invoice

import (
	"time"

	"github.com/shopspring/decimal"
)

// Field names an editable invoice field.
type Field string

const (
	FieldIssuedDate    Field = "issued_date"
	FieldDocumentNo    Field = "document_no"
	FieldNetAmount     Field = "net_amount"
	FieldTaxAmount     Field = "tax_amount"
	FieldTotalAmount   Field = "total_amount"
	FieldTaxRate       Field = "tax_rate"
	FieldVariant       Field = "variant"
	FieldCounterparty  Field = "counterparty"
	FieldDeduction     Field = "deduction"
	FieldSharedAmount  Field = "shared_amount"
	FieldCertificateNo Field = "certificate_no"
	FieldSummaryCount  Field = "summary_count"
	FieldDescription   Field = "description"
)

// AllFields lists every editable field in a stable order.
var AllFields = []Field{
	FieldIssuedDate,
	FieldDocumentNo,
	FieldNetAmount,
	FieldTaxAmount,
	FieldTotalAmount,
	FieldTaxRate,
	FieldVariant,
	FieldCounterparty,
	FieldDeduction,
	FieldSharedAmount,
	FieldCertificateNo,
	FieldSummaryCount,
	FieldDescription,
}

// Mutation is a typed write of a single field.
type Mutation struct {
	field Field
	apply func(*Fields)
}

// Field returns the field the mutation writes.
func (m Mutation) Field() Field { return m.field }

// Apply writes the mutation into f.
func (m Mutation) Apply(f *Fields) {
	if m.apply != nil {
		m.apply(f)
	}
}

func SetIssuedDate(t time.Time) Mutation {
	return Mutation{field: FieldIssuedDate, apply: func(f *Fields) { f.IssuedDate = t }}
}

func SetDocumentNo(no DocumentNo) Mutation {
	return Mutation{field: FieldDocumentNo, apply: func(f *Fields) { f.DocumentNo = no }}
}

func SetNetAmount(d decimal.Decimal) Mutation {
	return Mutation{field: FieldNetAmount, apply: func(f *Fields) { f.NetAmount = d }}
}

func SetTaxAmount(d decimal.Decimal) Mutation {
	return Mutation{field: FieldTaxAmount, apply: func(f *Fields) { f.TaxAmount = d }}
}

func SetTotalAmount(d decimal.Decimal) Mutation {
	return Mutation{field: FieldTotalAmount, apply: func(f *Fields) { f.TotalAmount = d }}
}

func SetTaxRate(r TaxRate) Mutation {
	return Mutation{field: FieldTaxRate, apply: func(f *Fields) { f.TaxRate = r }}
}

// SetVariant is reserved for variant transitions; editors go through the
// transition machine instead of writing it directly.
func SetVariant(v Variant) Mutation {
	return Mutation{field: FieldVariant, apply: func(f *Fields) { f.Variant = v }}
}

func SetCounterparty(c Counterparty) Mutation {
	return Mutation{field: FieldCounterparty, apply: func(f *Fields) { f.Counterparty = c }}
}

func SetDeduction(d Deduction) Mutation {
	return Mutation{field: FieldDeduction, apply: func(f *Fields) { f.Deduction = &d }}
}

func SetSharedAmount(shared bool) Mutation {
	return Mutation{field: FieldSharedAmount, apply: func(f *Fields) { f.SharedAmount = &shared }}
}

func SetCertificateNo(no string) Mutation {
	return Mutation{field: FieldCertificateNo, apply: func(f *Fields) { f.CertificateNo = &no }}
}

func SetSummaryCount(n int) Mutation {
	return Mutation{field: FieldSummaryCount, apply: func(f *Fields) { f.SummaryCount = &n }}
}

func SetDescription(text string) Mutation {
	return Mutation{field: FieldDescription, apply: func(f *Fields) { f.Description = &text }}
}

// Present reports whether the field has a value in f. Required fields are
// always present; optional ones only when set.
func (f Fields) Present(field Field) bool {
	switch field {
	case FieldDeduction:
		return f.Deduction != nil
	case FieldSharedAmount:
		return f.SharedAmount != nil
	case FieldCertificateNo:
		return f.CertificateNo != nil
	case FieldSummaryCount:
		return f.SummaryCount != nil
	case FieldDescription:
		return f.Description != nil
	}
	return true
}

// Identical reports whether a and b hold exactly the same value for field,
// including counterparty details SameValue ignores.
func Identical(field Field, a, b Fields) bool {
	if field == FieldCounterparty {
		return a.Counterparty == b.Counterparty
	}
	return SameValue(field, a, b)
}

// SameValue compares a single field of a and b. Counterparties compare by
// name and tax id only.
func SameValue(field Field, a, b Fields) bool {
	if a.Present(field) != b.Present(field) {
		return false
	}
	switch field {
	case FieldIssuedDate:
		return a.IssuedDate.Equal(b.IssuedDate)
	case FieldDocumentNo:
		return a.DocumentNo == b.DocumentNo
	case FieldNetAmount:
		return a.NetAmount.Equal(b.NetAmount)
	case FieldTaxAmount:
		return a.TaxAmount.Equal(b.TaxAmount)
	case FieldTotalAmount:
		return a.TotalAmount.Equal(b.TotalAmount)
	case FieldTaxRate:
		return a.TaxRate.Equal(b.TaxRate)
	case FieldVariant:
		return a.Variant == b.Variant
	case FieldCounterparty:
		return a.Counterparty.Name == b.Counterparty.Name && a.Counterparty.TaxID == b.Counterparty.TaxID
	case FieldDeduction:
		return a.Deduction == nil || *a.Deduction == *b.Deduction
	case FieldSharedAmount:
		return a.SharedAmount == nil || *a.SharedAmount == *b.SharedAmount
	case FieldCertificateNo:
		return a.CertificateNo == nil || *a.CertificateNo == *b.CertificateNo
	case FieldSummaryCount:
		return a.SummaryCount == nil || *a.SummaryCount == *b.SummaryCount
	case FieldDescription:
		return a.Description == nil || *a.Description == *b.Description
	}
	return false
}
