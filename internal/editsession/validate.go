package editsession

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/invoicedesk/internal/invoice"
)

// ValidationResult carries the gate verdict and the per-field failures.
type ValidationResult struct {
	Valid  bool
	Errors map[invoice.Field]string
}

// Gate checks the fields a commit requires for the active variant.
type Gate struct {
	validate *validator.Validate
}

// NewGate builds a gate. Decimals validate as float64 and dates as unix
// seconds, so "gt=0" means positive for both.
func NewGate() *Gate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if t, ok := field.Interface().(time.Time); ok {
			if t.IsZero() {
				return int64(0)
			}
			return t.Unix()
		}
		return nil
	}, time.Time{})
	return &Gate{validate: v}
}

// Check runs the checklist without mutating anything.
func (g *Gate) Check(f invoice.Fields) ValidationResult {
	errs := make(map[invoice.Field]string)
	g.check(errs, invoice.FieldIssuedDate, f.IssuedDate, "gt=0")
	g.check(errs, invoice.FieldNetAmount, f.NetAmount, "gt=0")
	if !f.Variant.Valid() {
		errs[invoice.FieldVariant] = "unknown variant"
	}
	traits := f.Variant.Traits()
	if taxRequired(f, traits) {
		g.check(errs, invoice.FieldTaxAmount, f.TaxAmount, "gt=0")
	}
	if traits.RequiresCounterparty {
		g.check(errs, invoice.FieldCounterparty, strings.TrimSpace(f.Counterparty.Name), "required")
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// IsValid reports only the verdict.
func (g *Gate) IsValid(f invoice.Fields) bool {
	return g.Check(f).Valid
}

func (g *Gate) check(errs map[invoice.Field]string, field invoice.Field, value interface{}, tag string) {
	err := g.validate.Var(value, tag)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		errs[field] = fmt.Sprintf("failed %q check", verrs[0].Tag())
		return
	}
	errs[field] = err.Error()
}

// taxRequired is false for exempt or zero-pinned variants and for an exempt
// or zero rate, where a zero tax amount is the correct result.
func taxRequired(f invoice.Fields, traits invoice.Traits) bool {
	if traits.TaxExempt || traits.TaxFixedZero {
		return false
	}
	if f.TaxRate.IsExempt() {
		return false
	}
	return f.TaxRate.Percent().IsPositive()
}
