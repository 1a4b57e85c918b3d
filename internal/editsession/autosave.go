package editsession

import (
	"sync"
	"time"
)

// DefaultQuietWindow is how long edits must pause before an automatic commit.
const DefaultQuietWindow = time.Second

// State is the autosave scheduler state.
type State int

const (
	StateIdle State = iota
	StatePendingCommit
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StatePendingCommit:
		return "pending_commit"
	case StateCommitting:
		return "committing"
	default:
		return "idle"
	}
}

// CommitKind tells which path issued a commit.
type CommitKind int

const (
	// CommitDebounced fires after the quiet window and is gated.
	CommitDebounced CommitKind = iota
	// CommitForced bypasses the window and the gate.
	CommitForced
	// CommitFlush resolves a pending window early and is gated.
	CommitFlush
)

func (k CommitKind) String() string {
	switch k {
	case CommitForced:
		return "forced"
	case CommitFlush:
		return "flush"
	default:
		return "debounced"
	}
}

// Scheduler decides when commits run. Every Touch supersedes the previous
// ticket, so only the last quiet state of a window is committed. Forced
// commits go through the same machine and also supersede a pending ticket.
type Scheduler struct {
	mu       sync.Mutex
	clock    Clock
	quiet    time.Duration
	run      func(CommitKind)
	dispatch func(func())

	ticket   uint64
	timer    Timer
	pending  bool
	inflight int
	wg       sync.WaitGroup

	// guard is non-nil when commits must not overlap.
	guard chan struct{}
}

// NewScheduler wires a scheduler that calls run for each commit.
func NewScheduler(clock Clock, quiet time.Duration, serialize bool, run func(CommitKind)) *Scheduler {
	if clock == nil {
		clock = systemClock{}
	}
	if quiet <= 0 {
		quiet = DefaultQuietWindow
	}
	s := &Scheduler{
		clock:    clock,
		quiet:    quiet,
		run:      run,
		dispatch: func(f func()) { go f() },
	}
	if serialize {
		s.guard = make(chan struct{}, 1)
	}
	return s
}

// Touch restarts the quiet window.
func (s *Scheduler) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.ticket++
	ticket := s.ticket
	s.pending = true
	s.timer = s.clock.AfterFunc(s.quiet, func() { s.fire(ticket) })
}

// Force drops any pending window and commits right away on another goroutine.
func (s *Scheduler) Force() {
	s.mu.Lock()
	s.stopLocked()
	s.ticket++
	s.pending = false
	s.inflight++
	s.wg.Add(1)
	s.mu.Unlock()
	s.dispatch(func() { s.execute(CommitForced) })
}

// Cancel drops a pending window. It reports whether one was pending.
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasPending := s.pending
	s.stopLocked()
	s.ticket++
	s.pending = false
	return wasPending
}

// Flush runs a pending window's commit now, on the caller's goroutine.
func (s *Scheduler) Flush() bool {
	s.mu.Lock()
	if !s.pending {
		s.mu.Unlock()
		return false
	}
	s.stopLocked()
	s.ticket++
	s.pending = false
	s.inflight++
	s.wg.Add(1)
	s.mu.Unlock()
	s.execute(CommitFlush)
	return true
}

// Wait blocks until no commit is in flight.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// State reports the current state. Committing wins over a pending window.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.inflight > 0:
		return StateCommitting
	case s.pending:
		return StatePendingCommit
	default:
		return StateIdle
	}
}

func (s *Scheduler) fire(ticket uint64) {
	s.mu.Lock()
	if ticket != s.ticket || !s.pending {
		s.mu.Unlock()
		return
	}
	s.pending = false
	s.timer = nil
	s.inflight++
	s.wg.Add(1)
	s.mu.Unlock()
	s.execute(CommitDebounced)
}

func (s *Scheduler) execute(kind CommitKind) {
	defer func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
		s.wg.Done()
	}()
	if s.guard != nil {
		s.guard <- struct{}{}
		defer func() { <-s.guard }()
	}
	s.run(kind)
}

func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
