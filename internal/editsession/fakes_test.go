package editsession

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/invoicedesk/internal/invoice"
)

// manualClock fires callbacks only when advanced.
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward and runs due callbacks in deadline order on the
// caller's goroutine.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	c.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
}

// Pending counts timers still armed.
func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type saveCall struct {
	id     int64
	fields invoice.Fields
}

var errStoreDown = errors.New("record store unavailable")

type memoryRecordStore struct {
	mu      sync.Mutex
	records map[int64]invoice.Invoice
	saves   []saveCall
	deleted []int64
	reject  bool
	fail    error
	getErr  map[int64]error
	// block, when set, holds every Save until it is closed. entered receives
	// the id of each blocked Save.
	block   chan struct{}
	entered chan int64
}

func newMemoryRecordStore(records ...invoice.Invoice) *memoryRecordStore {
	s := &memoryRecordStore{records: make(map[int64]invoice.Invoice), getErr: make(map[int64]error)}
	for _, rec := range records {
		s.records[rec.ID] = rec
	}
	return s
}

func (s *memoryRecordStore) Get(ctx context.Context, id int64) (invoice.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.getErr[id]; err != nil {
		return invoice.Invoice{}, err
	}
	rec, ok := s.records[id]
	if !ok {
		return invoice.Invoice{}, invoice.ErrInvoiceNotFound
	}
	rec.Fields = rec.Fields.Clone()
	return rec, nil
}

func (s *memoryRecordStore) Summaries(ctx context.Context, ids []int64) ([]invoice.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]invoice.Summary, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.records[id]; ok {
			out = append(out, invoice.SummaryOf(rec))
		}
	}
	return out, nil
}

func (s *memoryRecordStore) Save(ctx context.Context, id int64, fields invoice.Fields) (invoice.SaveResult, error) {
	s.mu.Lock()
	block, entered := s.block, s.entered
	s.mu.Unlock()
	if block != nil {
		if entered != nil {
			entered <- id
		}
		<-block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, saveCall{id: id, fields: fields.Clone()})
	if s.fail != nil {
		return invoice.SaveResult{}, s.fail
	}
	if s.reject {
		return invoice.SaveResult{Success: false}, nil
	}
	rec := s.records[id]
	rec.Fields = fields.Clone()
	s.records[id] = rec
	return invoice.SaveResult{Success: true, Data: rec}, nil
}

func (s *memoryRecordStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return invoice.ErrInvoiceNotFound
	}
	if rec.Linked {
		return invoice.ErrInvoiceLinked
	}
	delete(s.records, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *memoryRecordStore) Saves() []saveCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]saveCall(nil), s.saves...)
}

func (s *memoryRecordStore) setReject(v bool) {
	s.mu.Lock()
	s.reject = v
	s.mu.Unlock()
}

type staticSettings struct {
	rate  decimal.Decimal
	calls int
}

func (s *staticSettings) Settings(ctx context.Context, accountID int64) (invoice.Settings, error) {
	s.calls++
	return invoice.Settings{AccountID: accountID, DefaultTaxRate: s.rate}, nil
}

type recordingPreview struct {
	mu    sync.Mutex
	views []invoice.Invoice
}

func (p *recordingPreview) Render(ctx context.Context, inv invoice.Invoice) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.views = append(p.views, inv)
	return nil
}

func (p *recordingPreview) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.views)
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func testFields(variant invoice.Variant) invoice.Fields {
	return invoice.Fields{
		IssuedDate:   time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		DocumentNo:   invoice.DocumentNo{Prefix: "AB", Suffix: "12345678"},
		NetAmount:    d(1000),
		TaxAmount:    d(50),
		TotalAmount:  d(1050),
		TaxRate:      invoice.RateFromInt(5),
		Variant:      variant,
		Counterparty: invoice.Counterparty{Name: "Acme Trading", TaxID: "12345678"},
	}
}

func testInvoice(id int64, variant invoice.Variant) invoice.Invoice {
	return invoice.Invoice{
		ID:        id,
		AccountID: 1,
		Direction: invoice.DirectionInput,
		Fields:    testFields(variant),
	}
}
