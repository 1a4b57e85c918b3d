package editsession

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/invoicedesk/internal/invoice"
)

var hundred = decimal.NewFromInt(100)

// ComputeTax derives tax and total from a net amount. Amounts round to whole
// currency units.
func ComputeTax(net decimal.Decimal, rate invoice.TaxRate, variant invoice.Variant) (tax, total decimal.Decimal) {
	if variant.Traits().TaxFixedZero {
		return decimal.Zero, net
	}
	tax = net.Mul(rate.Percent()).Div(hundred).Round(0)
	return tax, net.Add(tax)
}

// SplitTotal derives net and tax back from a tax-inclusive total.
func SplitTotal(total decimal.Decimal, rate invoice.TaxRate, variant invoice.Variant) (net, tax decimal.Decimal) {
	if variant.Traits().TaxFixedZero {
		return total, decimal.Zero
	}
	divisor := decimal.NewFromInt(1).Add(rate.Percent().Div(hundred))
	net = total.Div(divisor).Round(0)
	return net, total.Sub(net)
}

// Derive returns the writes that keep amounts consistent after edited changed.
// current already holds the edit.
func Derive(edited invoice.Field, current invoice.Fields) []invoice.Mutation {
	switch edited {
	case invoice.FieldNetAmount, invoice.FieldTaxRate, invoice.FieldVariant:
		tax, total := ComputeTax(current.NetAmount, current.TaxRate, current.Variant)
		return []invoice.Mutation{invoice.SetTaxAmount(tax), invoice.SetTotalAmount(total)}
	case invoice.FieldTotalAmount:
		net, tax := SplitTotal(current.TotalAmount, current.TaxRate, current.Variant)
		return []invoice.Mutation{invoice.SetNetAmount(net), invoice.SetTaxAmount(tax)}
	case invoice.FieldTaxAmount:
		if current.Variant.Traits().TaxFixedZero {
			return []invoice.Mutation{invoice.SetTaxAmount(decimal.Zero), invoice.SetTotalAmount(current.NetAmount)}
		}
		return []invoice.Mutation{invoice.SetTotalAmount(current.NetAmount.Add(current.TaxAmount))}
	}
	return nil
}
