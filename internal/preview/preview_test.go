package preview

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/invoicedesk/internal/invoice"
	jobmetrics "github.com/odyssey-erp/invoicedesk/internal/jobs"
	"github.com/odyssey-erp/invoicedesk/jobs"
)

type fakeScreenshotter struct {
	mu    sync.Mutex
	pages []string
	err   error
}

func (f *fakeScreenshotter) Screenshot(ctx context.Context, html string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.pages = append(f.pages, html)
	return []byte("PNG:" + html[:10]), nil
}

type fakeQueue struct {
	tasks []*asynq.Task
}

func (q *fakeQueue) EnqueueInvoicePreview(ctx context.Context, task *asynq.Task, revision string) error {
	q.tasks = append(q.tasks, task)
	return nil
}

func sampleInvoice() invoice.Invoice {
	inv := invoice.Invoice{ID: 42, AccountID: 1, Direction: invoice.DirectionOutput}
	inv.Variant = invoice.VariantReturnTriplicate
	inv.IssuedDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	inv.DocumentNo = invoice.DocumentNo{Prefix: "ab", Suffix: "12345678"}
	inv.NetAmount = decimal.NewFromInt(120000)
	inv.TaxAmount = decimal.NewFromInt(6000)
	inv.TotalAmount = decimal.NewFromInt(126000)
	inv.TaxRate = invoice.RateFromInt(5)
	inv.Counterparty = invoice.Counterparty{Name: "Acme <Trading>", TaxID: "12345678"}
	return inv
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, time.Minute)
}

func TestRendererHTML(t *testing.T) {
	r, err := NewRenderer(&fakeScreenshotter{}, language.English)
	require.NoError(t, err)

	html, err := r.HTML(sampleInvoice())
	require.NoError(t, err)
	require.Contains(t, html, "Sales invoice")
	require.Contains(t, html, "AB12345678")
	require.Contains(t, html, "126,000")
	require.Contains(t, html, "Return / allowance")
	require.Contains(t, html, "Acme &lt;Trading&gt;")
	require.Contains(t, html, "2024-03-15")
}

func TestGotenbergScreenshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/forms/chromium/screenshot/html", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "png", r.FormValue("format"))
		file, _, err := r.FormFile("files")
		require.NoError(t, err)
		body, _ := io.ReadAll(file)
		require.True(t, strings.Contains(string(body), "<html>"))
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	img, err := NewGotenberg(srv.URL, 640).Screenshot(context.Background(), "<html></html>")
	require.NoError(t, err)
	require.Equal(t, "png-bytes", string(img))
}

func TestGotenbergErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewGotenberg(srv.URL, 0)
	_, err := client.Screenshot(context.Background(), "<html></html>")
	require.Error(t, err)
	require.Error(t, client.Ping(context.Background()))
}

func TestEnqueueThenRender(t *testing.T) {
	store := newTestStore(t)
	queue := &fakeQueue{}
	shots := &fakeScreenshotter{}
	renderer, err := NewRenderer(shots, language.English)
	require.NoError(t, err)
	job := NewJob(renderer, store, jobmetrics.NewMetrics(prometheus.NewRegistry()), nil)
	ctx := context.Background()

	_, _, err = store.Latest(ctx, 42)
	require.ErrorIs(t, err, ErrNotReady)

	inv := sampleInvoice()
	require.NoError(t, NewEnqueuer(queue, store).Render(ctx, inv))
	require.Len(t, queue.tasks, 1)
	require.NoError(t, job.Handle(ctx, queue.tasks[0]))

	img, stale, err := store.Latest(ctx, 42)
	require.NoError(t, err)
	require.False(t, stale)
	require.True(t, strings.HasPrefix(string(img), "PNG:"))
}

func TestSupersededRenderIsSkipped(t *testing.T) {
	store := newTestStore(t)
	queue := &fakeQueue{}
	shots := &fakeScreenshotter{}
	renderer, err := NewRenderer(shots, language.English)
	require.NoError(t, err)
	job := NewJob(renderer, store, nil, nil)
	enq := NewEnqueuer(queue, store)
	ctx := context.Background()

	inv := sampleInvoice()
	require.NoError(t, enq.Render(ctx, inv))
	inv.NetAmount = decimal.NewFromInt(1)
	require.NoError(t, enq.Render(ctx, inv))

	require.NoError(t, job.Handle(ctx, queue.tasks[0]))
	require.Empty(t, shots.pages)
	require.NoError(t, job.Handle(ctx, queue.tasks[1]))
	require.Len(t, shots.pages, 1)

	shots.err = errors.New("gotenberg down")
	require.NoError(t, enq.Render(ctx, sampleInvoice()))
	require.Error(t, job.Handle(ctx, queue.tasks[2]))
	_, stale, err := store.Latest(ctx, 42)
	require.NoError(t, err)
	require.True(t, stale)
}

func TestJobRejectsMalformedPayload(t *testing.T) {
	job := NewJob(nil, newTestStore(t), nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(jobs.TaskInvoicePreview, []byte("nope")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
