package editsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/invoicedesk/internal/invoice"
	"github.com/odyssey-erp/invoicedesk/internal/observability"
)

var (
	ErrSessionClosed      = errors.New("edit session closed")
	ErrCommitRejected     = errors.New("record store rejected the commit")
	ErrRecordLinked       = errors.New("record is linked to downstream records")
	ErrVariantNotEditable = errors.New("variant changes go through the variant menu or the return toggle")
	ErrVariantNotAllowed  = errors.New("variant not offered for this direction")
	ErrDirectionMismatch  = errors.New("record direction does not match the editor")
)

// RecordStore is the remote record boundary.
type RecordStore interface {
	Get(ctx context.Context, id int64) (invoice.Invoice, error)
	Summaries(ctx context.Context, ids []int64) ([]invoice.Summary, error)
	Save(ctx context.Context, id int64, fields invoice.Fields) (invoice.SaveResult, error)
	Delete(ctx context.Context, id int64) error
}

// SettingsProvider supplies account defaults.
type SettingsProvider interface {
	Settings(ctx context.Context, accountID int64) (invoice.Settings, error)
}

// PreviewRenderer is told about every change. It never feeds back.
type PreviewRenderer interface {
	Render(ctx context.Context, inv invoice.Invoice) error
}

// Deps are the collaborators a session talks to. Settings, Preview and
// Metrics are optional.
type Deps struct {
	Records  RecordStore
	Settings SettingsProvider
	Preview  PreviewRenderer
	Logger   *slog.Logger
	Metrics  *observability.AutosaveMetrics
}

// OpenParams selects the working set and the record to start on.
type OpenParams struct {
	Direction  invoice.Direction
	AccountID  int64
	WorkingSet []int64
	EditingID  int64
}

// CommitOutcome describes the latest commit attempt.
type CommitOutcome struct {
	Kind     CommitKind
	RecordID int64
	At       time.Time
	Err      error
}

type options struct {
	clock         Clock
	quiet         time.Duration
	commitTimeout time.Duration
	serialize     bool
	now           func() time.Time
}

// Option customises a session.
type Option func(*options)

func WithClock(c Clock) Option { return func(o *options) { o.clock = c } }

func WithQuietWindow(d time.Duration) Option { return func(o *options) { o.quiet = d } }

func WithCommitTimeout(d time.Duration) Option { return func(o *options) { o.commitTimeout = d } }

// WithSerializedCommits keeps a debounced and a forced commit from running
// at the same time. Off by default.
func WithSerializedCommits(on bool) Option { return func(o *options) { o.serialize = on } }

func WithNow(fn func() time.Time) Option { return func(o *options) { o.now = fn } }

// Session keeps one record live while the user edits it, autosaving in the
// background and moving across the working set on demand.
type Session struct {
	mu          sync.Mutex
	direction   invoice.Direction
	accountID   int64
	store       *Store
	nav         *Navigator
	transitions Transitions
	gate        *Gate
	sched       *Scheduler
	last        CommitOutcome
	closed      bool

	records       RecordStore
	preview       PreviewRenderer
	logger        *slog.Logger
	metrics       *observability.AutosaveMetrics
	commitTimeout time.Duration
	now           func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// Open loads the working set and the editing record, seeds the tax rate from
// the account settings when the record has none, and starts the session.
func Open(ctx context.Context, deps Deps, params OpenParams, opts ...Option) (*Session, error) {
	if deps.Records == nil {
		return nil, errors.New("editsession: record store required")
	}
	if !params.Direction.Valid() {
		return nil, invoice.ErrInvalidDirection
	}
	if !containsID(params.WorkingSet, params.EditingID) {
		return nil, ErrNotInWorkingSet
	}
	o := options{quiet: DefaultQuietWindow, commitTimeout: 10 * time.Second, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		summaries []invoice.Summary
		record    invoice.Invoice
		settings  *invoice.Settings
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summaries, err = deps.Records.Summaries(gctx, params.WorkingSet)
		if err != nil {
			return fmt.Errorf("editsession: load working set: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		record, err = deps.Records.Get(gctx, params.EditingID)
		if err != nil {
			return fmt.Errorf("editsession: load record %d: %w", params.EditingID, err)
		}
		return nil
	})
	if deps.Settings != nil {
		g.Go(func() error {
			s, err := deps.Settings.Settings(gctx, params.AccountID)
			if err != nil {
				logger.Warn("load accounting settings", slog.Int64("account_id", params.AccountID), slog.Any("error", err))
				return nil
			}
			settings = &s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if record.Direction != params.Direction {
		return nil, ErrDirectionMismatch
	}
	nav, err := NewNavigator(summaries, params.EditingID)
	if err != nil {
		return nil, err
	}
	if !record.TaxRate.IsSet() && settings != nil {
		record.TaxRate = invoice.Rate(settings.DefaultTaxRate)
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		direction:     params.Direction,
		accountID:     params.AccountID,
		store:         NewStore(),
		nav:           nav,
		gate:          NewGate(),
		records:       deps.Records,
		preview:       deps.Preview,
		logger:        logger.With(slog.String("component", "editsession"), slog.String("direction", string(params.Direction))),
		metrics:       deps.Metrics,
		commitTimeout: o.commitTimeout,
		now:           o.now,
		ctx:           sessCtx,
		cancel:        cancel,
	}
	s.sched = NewScheduler(o.clock, o.quiet, o.serialize, s.commit)
	s.store.Init(record)
	s.transitions.Reset(record.Variant)
	s.metrics.SessionOpened()
	s.publish()
	return s, nil
}

func (s *Session) Direction() invoice.Direction { return s.direction }

func (s *Session) AccountID() int64 { return s.accountID }

// Record returns the record with its live fields.
func (s *Session) Record() invoice.Invoice { return s.store.Record() }

// View returns the copy last published to observers.
func (s *Session) View() invoice.Invoice { return s.store.View() }

// Snapshot returns the committed fields, false when invalidated.
func (s *Session) Snapshot() (invoice.Fields, bool) {
	snap := s.store.Snapshot()
	if snap == nil {
		return invoice.Fields{}, false
	}
	return snap.Fields(), true
}

func (s *Session) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return IsDirty(s.store.Read(), s.store.Snapshot())
}

// Validate runs the gate on the live fields. The autosave path only uses the
// verdict; the per-field errors are for callers.
func (s *Session) Validate() ValidationResult { return s.gate.Check(s.store.Read()) }

func (s *Session) State() State { return s.sched.State() }

func (s *Session) ReturnToggled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitions.Toggled()
}

func (s *Session) LastCommit() CommitOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Session) EditingID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.EditingID()
}

func (s *Session) HasPrev() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.HasPrev()
}

func (s *Session) HasNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.HasNext()
}

func (s *Session) WorkingSet() []invoice.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.WorkingSet()
}

// Update applies a field edit and restarts the quiet window. Writing a value
// equal to the current one changes nothing.
func (s *Session) Update(m invoice.Mutation) (invoice.Invoice, error) {
	if m.Field() == invoice.FieldVariant {
		return invoice.Invoice{}, ErrVariantNotEditable
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return invoice.Invoice{}, ErrSessionClosed
	}
	_, changed := s.store.Update(m, Derive)
	s.mu.Unlock()
	if changed {
		s.sched.Touch()
		s.publish()
	}
	return s.store.Record(), nil
}

// ToggleReturn switches the return/allowance flag. A variant change commits
// immediately.
func (s *Session) ToggleReturn(on bool) (invoice.Invoice, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return invoice.Invoice{}, ErrSessionClosed
	}
	current := s.store.Read().Variant
	next, changed, err := s.transitions.ToggleReturn(on, current)
	if err != nil {
		s.mu.Unlock()
		return invoice.Invoice{}, err
	}
	if changed {
		s.applyVariantLocked(next)
	}
	s.mu.Unlock()
	if changed {
		s.sched.Force()
		s.publish()
	}
	return s.store.Record(), nil
}

// SelectVariant applies a pick from the variant menu.
func (s *Session) SelectVariant(v invoice.Variant) (invoice.Invoice, error) {
	if !s.direction.Allows(v) {
		return invoice.Invoice{}, ErrVariantNotAllowed
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return invoice.Invoice{}, ErrSessionClosed
	}
	next, changed := s.transitions.Select(v, s.store.Read().Variant)
	if changed {
		s.applyVariantLocked(next)
	}
	s.mu.Unlock()
	if changed {
		s.sched.Force()
		s.publish()
	}
	return s.store.Record(), nil
}

// applyVariantLocked writes the variant and invalidates the snapshot so the
// forced commit cannot be judged clean against the old schema.
func (s *Session) applyVariantLocked(v invoice.Variant) {
	s.store.Update(invoice.SetVariant(v), Derive)
	s.store.InvalidateSnapshot()
	s.logger.Debug("variant transition", slog.Int64("record_id", s.store.RecordID()), slog.String("variant", string(v)))
}

// GoTo switches the session to another record of the working set. Pending
// edits of the outgoing record are flushed first; the incoming record is
// loaded fresh and replaces all live state.
func (s *Session) GoTo(ctx context.Context, id int64) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if !s.nav.Contains(id) {
		s.mu.Unlock()
		return ErrNotInWorkingSet
	}
	if id == s.nav.EditingID() {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.sched.Flush()
	rec, err := s.records.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("editsession: load record %d: %w", id, err)
	}
	if rec.Direction != s.direction {
		return ErrDirectionMismatch
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.sched.Cancel()
	s.store.Init(rec)
	s.transitions.Reset(rec.Variant)
	_ = s.nav.Focus(id)
	s.nav.Refresh(invoice.SummaryOf(rec))
	s.mu.Unlock()

	s.logger.Debug("navigated", slog.Int64("record_id", id))
	s.publish()
	return nil
}

// Prev moves to the preceding sibling.
func (s *Session) Prev(ctx context.Context) error { return s.step(ctx, -1) }

// Next moves to the following sibling.
func (s *Session) Next(ctx context.Context) error { return s.step(ctx, 1) }

func (s *Session) step(ctx context.Context, delta int) error {
	s.mu.Lock()
	id, ok := s.nav.Neighbor(delta)
	s.mu.Unlock()
	if !ok {
		return ErrNotInWorkingSet
	}
	return s.GoTo(ctx, id)
}

// DeleteRecord deletes the record being edited and moves to a sibling. It
// returns the id now being edited; zero means the working set ran out and
// the session closed.
func (s *Session) DeleteRecord(ctx context.Context) (int64, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrSessionClosed
	}
	id := s.nav.EditingID()
	summary, _ := s.nav.Summary(id)
	if summary.Linked {
		s.mu.Unlock()
		return 0, ErrRecordLinked
	}
	nextID, hasNext := s.nav.Neighbor(1)
	if !hasNext {
		nextID, hasNext = s.nav.Neighbor(-1)
	}
	s.mu.Unlock()

	s.sched.Cancel()
	s.sched.Wait()
	if err := s.records.Delete(ctx, id); err != nil {
		if errors.Is(err, invoice.ErrInvoiceLinked) {
			return 0, ErrRecordLinked
		}
		return 0, fmt.Errorf("editsession: delete record %d: %w", id, err)
	}
	s.logger.Info("record deleted", slog.Int64("record_id", id))

	if !hasNext {
		s.mu.Lock()
		s.nav.Remove(id)
		s.mu.Unlock()
		return 0, s.Close(ctx)
	}
	rec, err := s.records.Get(ctx, nextID)
	if err != nil {
		_ = s.Close(ctx)
		return 0, fmt.Errorf("editsession: load record %d: %w", nextID, err)
	}
	s.mu.Lock()
	s.nav.Remove(id)
	_ = s.nav.Focus(nextID)
	s.store.Init(rec)
	s.transitions.Reset(rec.Variant)
	s.mu.Unlock()
	s.publish()
	return nextID, nil
}

// Close flushes a pending window, waits for in-flight commits and releases
// the session. Closing twice is a no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.sched.Flush()
	done := make(chan struct{})
	go func() {
		s.sched.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	s.mu.Lock()
	s.closed = true
	s.sched.Cancel()
	s.mu.Unlock()
	s.cancel()
	s.metrics.SessionClosed()
	return err
}

// Wait blocks until no commit is in flight.
func (s *Session) Wait() { s.sched.Wait() }

func (s *Session) commit(kind CommitKind) {
	s.mu.Lock()
	recordID := s.store.RecordID()
	fields := s.store.Read()
	snap := s.store.Snapshot()
	s.mu.Unlock()

	log := s.logger.With(slog.Int64("record_id", recordID), slog.String("path", kind.String()))
	if kind != CommitForced {
		if !s.gate.IsValid(fields) {
			s.metrics.Skip("invalid")
			log.Debug("autosave skipped: invalid")
			return
		}
		if !IsDirty(fields, snap) {
			s.metrics.Skip("clean")
			log.Debug("autosave skipped: clean")
			return
		}
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.commitTimeout)
	defer cancel()
	start := s.now()
	res, err := s.records.Save(ctx, recordID, fields)
	if err == nil && !res.Success {
		err = ErrCommitRejected
	}
	s.metrics.ObserveCommit(kind.String(), err, s.now().Sub(start))

	s.mu.Lock()
	s.last = CommitOutcome{Kind: kind, RecordID: recordID, At: s.now(), Err: err}
	if err == nil && s.store.ReplaceSnapshot(recordID, fields) {
		summary, _ := s.nav.Summary(recordID)
		summary.DocumentNo = fields.DocumentNo
		summary.IssuedDate = fields.IssuedDate
		summary.TotalAmount = fields.TotalAmount
		s.nav.Refresh(summary)
	}
	s.mu.Unlock()

	if err != nil {
		log.Warn("autosave commit failed", slog.Any("error", err))
		return
	}
	log.Debug("autosave committed")
}

func (s *Session) publish() {
	if s.preview == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	view := s.store.View()
	if err := s.preview.Render(ctx, view); err != nil {
		s.logger.Warn("preview render", slog.Int64("record_id", view.ID), slog.Any("error", err))
	}
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
