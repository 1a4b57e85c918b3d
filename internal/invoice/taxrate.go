package invoice

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

type rateKind uint8

const (
	rateUnset rateKind = iota
	rateExempt
	ratePercent
)

// TaxRate is a percentage, an explicit exemption (the null rate), or unset.
// An exempt rate computes like 0% but stays distinguishable from it.
type TaxRate struct {
	kind    rateKind
	percent decimal.Decimal
}

// Rate returns a percentage tax rate.
func Rate(percent decimal.Decimal) TaxRate {
	return TaxRate{kind: ratePercent, percent: percent}
}

// RateFromInt is shorthand for whole-number percentages.
func RateFromInt(percent int64) TaxRate {
	return Rate(decimal.NewFromInt(percent))
}

// Exempt returns the null (tax-exempt) rate.
func Exempt() TaxRate {
	return TaxRate{kind: rateExempt}
}

func (r TaxRate) IsSet() bool    { return r.kind != rateUnset }
func (r TaxRate) IsExempt() bool { return r.kind == rateExempt }

// Percent returns the rate used in computations; exempt and unset count as zero.
func (r TaxRate) Percent() decimal.Decimal {
	if r.kind != ratePercent {
		return decimal.Zero
	}
	return r.percent
}

// Equal compares kind and, for percentages, the numeric value.
func (r TaxRate) Equal(o TaxRate) bool {
	if r.kind != o.kind {
		return false
	}
	return r.kind != ratePercent || r.percent.Equal(o.percent)
}

func (r TaxRate) String() string {
	switch r.kind {
	case rateExempt:
		return "exempt"
	case ratePercent:
		return r.percent.String() + "%"
	default:
		return "unset"
	}
}

// MarshalJSON encodes a percentage as a decimal string, exempt as null and
// unset as an empty string.
func (r TaxRate) MarshalJSON() ([]byte, error) {
	switch r.kind {
	case rateExempt:
		return []byte("null"), nil
	case ratePercent:
		return json.Marshal(r.percent.String())
	default:
		return []byte(`""`), nil
	}
}

func (r *TaxRate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = Exempt()
		return nil
	}
	if bytes.Equal(data, []byte(`""`)) {
		*r = TaxRate{}
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("invoice: tax rate: %w", err)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("invoice: tax rate %s out of range", d)
	}
	*r = Rate(d)
	return nil
}
