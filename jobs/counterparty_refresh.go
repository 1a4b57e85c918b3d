package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/invoicedesk/internal/jobs"
)

// CacheInvalidator drops a cache namespace.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// CounterpartyRefreshJob invalidates cached counterparty lookups so edits made
// outside this service show up in autocomplete.
type CounterpartyRefreshJob struct {
	Cache   CacheInvalidator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCounterpartyRefreshJob wires dependencies for the refresh handler.
func NewCounterpartyRefreshJob(cache CacheInvalidator, logger *slog.Logger, metrics *jobmetrics.Metrics) *CounterpartyRefreshJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CounterpartyRefreshJob{Cache: cache, Logger: logger, Metrics: metrics}
}

// Handle processes counterparty refresh tasks.
func (j *CounterpartyRefreshJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Cache == nil {
		return errors.New("counterparty refresh: handler not configured")
	}
	tracker := j.Metrics.Track(TaskCounterpartyRefresh)
	defer func() {
		err = tracker.End(err)
	}()
	if err = j.Cache.Invalidate(ctx); err != nil {
		j.Logger.Error("invalidate counterparty cache", slog.Any("error", err))
		return err
	}
	j.Logger.Info("counterparty cache invalidated", slog.String("job", TaskCounterpartyRefresh))
	return nil
}
