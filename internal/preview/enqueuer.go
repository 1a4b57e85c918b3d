package preview

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/invoicedesk/internal/invoice"
	"github.com/odyssey-erp/invoicedesk/jobs"
)

// Queue submits preview tasks; *jobs.Client satisfies it.
type Queue interface {
	EnqueueInvoicePreview(ctx context.Context, task *asynq.Task, revision string) error
}

// Enqueuer hands every published invoice state to the worker. It satisfies
// the edit session's preview hook and never blocks on rendering.
type Enqueuer struct {
	queue Queue
	store *Store
}

func NewEnqueuer(queue Queue, store *Store) *Enqueuer {
	return &Enqueuer{queue: queue, store: store}
}

func (e *Enqueuer) Render(ctx context.Context, inv invoice.Invoice) error {
	task, payload, err := jobs.NewInvoicePreviewTask(inv)
	if err != nil {
		return fmt.Errorf("preview: build task: %w", err)
	}
	if err := e.store.Want(ctx, inv.ID, payload.Revision); err != nil {
		return fmt.Errorf("preview: mark revision: %w", err)
	}
	if err := e.queue.EnqueueInvoicePreview(ctx, task, payload.Revision); err != nil {
		return fmt.Errorf("preview: enqueue: %w", err)
	}
	return nil
}
