// Package preview renders printable invoice proofs off the request path.
package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/invoicedesk/internal/invoice"
	"github.com/odyssey-erp/invoicedesk/web"
)

// Screenshotter turns HTML into an image.
type Screenshotter interface {
	Screenshot(ctx context.Context, html string) ([]byte, error)
}

// Renderer fills the proof template and screenshots it.
type Renderer struct {
	tpl     *template.Template
	client  Screenshotter
	printer *message.Printer
}

// NewRenderer parses the proof template. Amounts are grouped for tag.
func NewRenderer(client Screenshotter, tag language.Tag) (*Renderer, error) {
	if client == nil {
		return nil, errors.New("preview renderer: screenshot client required")
	}
	tpl, err := template.ParseFS(web.Templates, "templates/preview/invoice_proof.html")
	if err != nil {
		return nil, fmt.Errorf("preview renderer: parse template: %w", err)
	}
	return &Renderer{tpl: tpl, client: client, printer: message.NewPrinter(tag)}, nil
}

type proofData struct {
	Title         string
	Variant       string
	IsReturn      bool
	ReturnLabel   string
	DocumentNo    string
	IssuedDate    string
	Counterparty  string
	TaxID         string
	CertificateNo string
	SummaryCount  int
	Net           string
	Tax           string
	Total         string
	Rate          string
	Description   string
}

// HTML renders the proof markup.
func (r *Renderer) HTML(inv invoice.Invoice) (string, error) {
	title := "Purchase invoice"
	if inv.Direction == invoice.DirectionOutput {
		title = "Sales invoice"
	}
	data := proofData{
		Title:        title,
		Variant:      string(inv.Variant),
		IsReturn:     inv.Variant.Traits().IsReturn,
		ReturnLabel:  "Return / allowance",
		DocumentNo:   inv.DocumentNo.String(),
		Counterparty: inv.Counterparty.Name,
		TaxID:        inv.Counterparty.TaxID,
		Net:          r.amount(inv.NetAmount),
		Tax:          r.amount(inv.TaxAmount),
		Total:        r.amount(inv.TotalAmount),
		Rate:         r.rate(inv.TaxRate),
	}
	if !inv.IssuedDate.IsZero() {
		data.IssuedDate = inv.IssuedDate.Format("2006-01-02")
	}
	if inv.CertificateNo != nil {
		data.CertificateNo = *inv.CertificateNo
	}
	if inv.SummaryCount != nil {
		data.SummaryCount = *inv.SummaryCount
	}
	if inv.Description != nil {
		data.Description = *inv.Description
	}
	buf := &bytes.Buffer{}
	if err := r.tpl.Execute(buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Render produces the PNG proof of inv.
func (r *Renderer) Render(ctx context.Context, inv invoice.Invoice) ([]byte, error) {
	html, err := r.HTML(inv)
	if err != nil {
		return nil, err
	}
	return r.client.Screenshot(ctx, html)
}

func (r *Renderer) amount(d decimal.Decimal) string {
	return r.printer.Sprintf("%d", d.Round(0).IntPart())
}

func (r *Renderer) rate(t invoice.TaxRate) string {
	switch {
	case t.IsExempt():
		return "exempt"
	case !t.IsSet():
		return "-"
	default:
		return r.printer.Sprintf("%v%%", t.Percent().InexactFloat64())
	}
}
