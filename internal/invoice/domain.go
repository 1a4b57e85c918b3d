package invoice

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrDuplicateDocumentNo = errors.New("document number already used")
	ErrInvalidDirection    = errors.New("invalid invoice direction")
	ErrUnknownField        = errors.New("unknown invoice field")
)

// Direction tells whether an invoice was received (input) or issued (output).
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionInput || d == DirectionOutput
}

// Counterparty identifies the other side of the invoice.
type Counterparty struct {
	Name    string `json:"name"`
	TaxID   string `json:"tax_id"`
	Address string `json:"address,omitempty"`
}

// DocumentNo is the invoice number. Split variants carry a two-letter track
// prefix and an eight-digit suffix; other variants keep the whole number in Suffix.
type DocumentNo struct {
	Prefix string `json:"prefix,omitempty"`
	Suffix string `json:"suffix"`
}

func (n DocumentNo) String() string {
	return strings.ToUpper(n.Prefix) + n.Suffix
}

// Deduction classifies how an input invoice's tax is deducted.
type Deduction string

const (
	DeductionPurchase        Deduction = "purchase"
	DeductionFixedAsset      Deduction = "fixed_asset"
	DeductionNonDeductible   Deduction = "non_deductible"
	DeductionNonDeductibleFA Deduction = "non_deductible_fixed_asset"
)

// Fields is the editable projection of an invoice.
type Fields struct {
	IssuedDate    time.Time       `json:"issued_date"`
	DocumentNo    DocumentNo      `json:"document_no"`
	NetAmount     decimal.Decimal `json:"net_amount"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TaxRate       TaxRate         `json:"tax_rate"`
	Variant       Variant         `json:"variant"`
	Counterparty  Counterparty    `json:"counterparty"`
	Deduction     *Deduction      `json:"deduction,omitempty"`
	SharedAmount  *bool           `json:"shared_amount,omitempty"`
	CertificateNo *string         `json:"certificate_no,omitempty"`
	SummaryCount  *int            `json:"summary_count,omitempty"`
	Description   *string         `json:"description,omitempty"`
}

// Clone returns a deep copy so optional values are never shared.
func (f Fields) Clone() Fields {
	out := f
	if f.Deduction != nil {
		v := *f.Deduction
		out.Deduction = &v
	}
	if f.SharedAmount != nil {
		v := *f.SharedAmount
		out.SharedAmount = &v
	}
	if f.CertificateNo != nil {
		v := *f.CertificateNo
		out.CertificateNo = &v
	}
	if f.SummaryCount != nil {
		v := *f.SummaryCount
		out.SummaryCount = &v
	}
	if f.Description != nil {
		v := *f.Description
		out.Description = &v
	}
	return out
}

// Invoice is a persisted invoice record.
type Invoice struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	Direction Direction `json:"direction"`
	Fields
	Linked    bool      `json:"linked"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary is the working-set view of an invoice.
type Summary struct {
	ID          int64           `json:"id"`
	DocumentNo  DocumentNo      `json:"document_no"`
	IssuedDate  time.Time       `json:"issued_date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Linked      bool            `json:"linked"`
}

// SummaryOf projects an invoice into its working-set summary.
func SummaryOf(inv Invoice) Summary {
	return Summary{
		ID:          inv.ID,
		DocumentNo:  inv.DocumentNo,
		IssuedDate:  inv.IssuedDate,
		TotalAmount: inv.TotalAmount,
		Linked:      inv.Linked,
	}
}

// SaveResult is what the record store answers to a save.
type SaveResult struct {
	Success bool    `json:"success"`
	Data    Invoice `json:"data"`
}

// Settings are the per-account accounting defaults.
type Settings struct {
	AccountID      int64           `json:"account_id"`
	DefaultTaxRate decimal.Decimal `json:"default_tax_rate"`
}
