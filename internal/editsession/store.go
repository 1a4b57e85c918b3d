package editsession

import (
	"sync"
	"sync/atomic"

	"github.com/odyssey-erp/invoicedesk/internal/invoice"
)

// Snapshot is the last committed copy of a record's fields.
type Snapshot struct {
	recordID int64
	fields   invoice.Fields
}

// RecordID returns the record the snapshot was taken from.
func (s *Snapshot) RecordID() int64 { return s.recordID }

// Fields returns a copy of the committed fields.
func (s *Snapshot) Fields() invoice.Fields { return s.fields.Clone() }

// Deriver returns the dependent writes caused by editing a field.
type Deriver func(edited invoice.Field, current invoice.Fields) []invoice.Mutation

// Store holds the live fields of the record being edited. The mirror is the
// single authoritative copy; View is a published copy for observers and may
// trail the mirror.
type Store struct {
	mu       sync.RWMutex
	record   invoice.Invoice
	mirror   invoice.Fields
	snapshot *Snapshot
	view     atomic.Pointer[invoice.Invoice]
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Init replaces the live fields, mirror and snapshot with rec. Nothing from
// the previous record survives.
func (s *Store) Init(rec invoice.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = rec
	s.record.Fields = invoice.Fields{}
	s.mirror = rec.Fields.Clone()
	s.snapshot = &Snapshot{recordID: rec.ID, fields: rec.Fields.Clone()}
	s.publishLocked()
}

// Update merges m into the mirror and applies the writes derive returns, all
// under one lock. A write that does not change the field is dropped and
// reported as unchanged.
func (s *Store) Update(m invoice.Mutation, derive Deriver) (invoice.Fields, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.mirror.Clone()
	m.Apply(&next)
	if invoice.Identical(m.Field(), s.mirror, next) {
		return s.mirror.Clone(), false
	}
	if derive != nil {
		for _, dm := range derive(m.Field(), next) {
			dm.Apply(&next)
		}
	}
	s.mirror = next
	s.publishLocked()
	return next.Clone(), true
}

// Read returns the mirror.
func (s *Store) Read() invoice.Fields {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mirror.Clone()
}

// RecordID returns the id of the record being edited.
func (s *Store) RecordID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.ID
}

// Record returns the record identity combined with the mirror.
func (s *Store) Record() invoice.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.record
	rec.Fields = s.mirror.Clone()
	return rec
}

// View returns the last published copy.
func (s *Store) View() invoice.Invoice {
	if v := s.view.Load(); v != nil {
		return *v
	}
	return invoice.Invoice{}
}

// Snapshot returns the current snapshot, nil once invalidated.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// InvalidateSnapshot drops the snapshot so the next dirty check reports dirty.
func (s *Store) InvalidateSnapshot() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = nil
}

// ReplaceSnapshot records committed fields for recordID. It refuses when the
// store has moved on to another record.
func (s *Store) ReplaceSnapshot(recordID int64, committed invoice.Fields) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record.ID != recordID {
		return false
	}
	s.snapshot = &Snapshot{recordID: recordID, fields: committed.Clone()}
	return true
}

func (s *Store) publishLocked() {
	rec := s.record
	rec.Fields = s.mirror.Clone()
	s.view.Store(&rec)
}
