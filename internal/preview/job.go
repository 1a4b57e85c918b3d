package preview

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/invoicedesk/internal/invoice"
	jobmetrics "github.com/odyssey-erp/invoicedesk/internal/jobs"
	"github.com/odyssey-erp/invoicedesk/jobs"
)

const jobName = "invoice_preview"

// ImageRenderer produces the proof image for an invoice.
type ImageRenderer interface {
	Render(ctx context.Context, inv invoice.Invoice) ([]byte, error)
}

// Job handles jobs.TaskInvoicePreview on the worker.
type Job struct {
	renderer ImageRenderer
	store    *Store
	metrics  *jobmetrics.Metrics
	logger   *slog.Logger
}

func NewJob(renderer ImageRenderer, store *Store, metrics *jobmetrics.Metrics, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{renderer: renderer, store: store, metrics: metrics, logger: logger}
}

// Handle renders the task's invoice unless a newer revision was requested
// in the meantime.
func (j *Job) Handle(ctx context.Context, task *asynq.Task) error {
	payload, err := jobs.DecodeInvoicePreview(task)
	if err != nil {
		return err
	}
	tracker := j.metrics.Track(jobName)
	want, err := j.store.Wanted(ctx, payload.Invoice.ID)
	if err != nil {
		return tracker.End(err)
	}
	if want != "" && want != payload.Revision {
		j.metrics.Skip(jobName, "superseded")
		j.logger.Debug("preview superseded", slog.Int64("record_id", payload.Invoice.ID), slog.String("revision", payload.Revision))
		return nil
	}
	png, err := j.renderer.Render(ctx, payload.Invoice)
	if err != nil {
		j.logger.Warn("preview render", slog.Int64("record_id", payload.Invoice.ID), slog.Any("error", err))
		return tracker.End(err)
	}
	return tracker.End(j.store.Put(ctx, payload.Invoice.ID, payload.Revision, png))
}
