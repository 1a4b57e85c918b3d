package jobs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/invoicedesk/internal/invoice"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueuePreviews carries preview renders; they are cheap to drop.
	QueuePreviews = "previews"
	// TaskInvoicePreview renders the printable proof of an invoice.
	TaskInvoicePreview = "invoice:preview"
	// TaskCounterpartyRefresh drops cached counterparty lookups.
	TaskCounterpartyRefresh = "counterparty:refresh"
)

// InvoicePreviewPayload is the snapshot of an invoice to render. Revision is
// a content hash so the worker can drop renders that were superseded.
type InvoicePreviewPayload struct {
	Invoice  invoice.Invoice `json:"invoice"`
	Revision string          `json:"revision"`
}

// NewInvoicePreviewTask constructs an Asynq task.
func NewInvoicePreviewTask(inv invoice.Invoice) (*asynq.Task, InvoicePreviewPayload, error) {
	body, err := json.Marshal(inv)
	if err != nil {
		return nil, InvoicePreviewPayload{}, err
	}
	sum := sha256.Sum256(body)
	payload := InvoicePreviewPayload{Invoice: inv, Revision: hex.EncodeToString(sum[:8])}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, InvoicePreviewPayload{}, err
	}
	return asynq.NewTask(TaskInvoicePreview, data), payload, nil
}

// DecodeInvoicePreview reads the payload of a TaskInvoicePreview task. A
// malformed payload is never retried.
func DecodeInvoicePreview(t *asynq.Task) (InvoicePreviewPayload, error) {
	var payload InvoicePreviewPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return InvoicePreviewPayload{}, errors.Join(err, asynq.SkipRetry)
	}
	if payload.Invoice.ID == 0 || payload.Revision == "" {
		return InvoicePreviewPayload{}, errors.Join(errors.New("jobs: empty preview payload"), asynq.SkipRetry)
	}
	return payload, nil
}

// NewCounterpartyRefreshTask constructs the periodic cache refresh task.
func NewCounterpartyRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskCounterpartyRefresh, nil)
}
