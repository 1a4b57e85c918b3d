package jobs

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoicedesk/internal/invoice"
)

func TestInvoicePreviewTaskRoundTrip(t *testing.T) {
	inv := invoice.Invoice{ID: 5, Direction: invoice.DirectionInput}
	inv.NetAmount = decimal.NewFromInt(1000)
	task, payload, err := NewInvoicePreviewTask(inv)
	require.NoError(t, err)
	require.Equal(t, TaskInvoicePreview, task.Type())
	require.Len(t, payload.Revision, 16)

	decoded, err := DecodeInvoicePreview(task)
	require.NoError(t, err)
	require.Equal(t, payload.Revision, decoded.Revision)
	require.Equal(t, int64(5), decoded.Invoice.ID)

	_, again, err := NewInvoicePreviewTask(inv)
	require.NoError(t, err)
	require.Equal(t, payload.Revision, again.Revision)

	inv.NetAmount = decimal.NewFromInt(1001)
	_, changed, err := NewInvoicePreviewTask(inv)
	require.NoError(t, err)
	require.NotEqual(t, payload.Revision, changed.Revision)
}

func TestDecodeInvoicePreviewSkipsRetryOnGarbage(t *testing.T) {
	_, err := DecodeInvoicePreview(asynq.NewTask(TaskInvoicePreview, []byte("{")))
	require.True(t, errors.Is(err, asynq.SkipRetry))

	_, err = DecodeInvoicePreview(asynq.NewTask(TaskInvoicePreview, []byte(`{"invoice":{"id":0}}`)))
	require.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"previews","pending":0}`, rr.Body.String())
}
