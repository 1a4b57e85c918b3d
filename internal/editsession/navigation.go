package editsession

import (
	"errors"

	"github.com/odyssey-erp/invoicedesk/internal/invoice"
)

var (
	ErrNotInWorkingSet = errors.New("record is not in the working set")
	ErrWorkingSetEmpty = errors.New("working set is empty")
)

// Navigator tracks the ordered working set and the record being edited.
// The editing id is always a member of the set.
type Navigator struct {
	set       []invoice.Summary
	editingID int64
}

// NewNavigator checks that editingID belongs to set.
func NewNavigator(set []invoice.Summary, editingID int64) (*Navigator, error) {
	if len(set) == 0 {
		return nil, ErrWorkingSetEmpty
	}
	n := &Navigator{set: append([]invoice.Summary(nil), set...)}
	if n.indexOf(editingID) < 0 {
		return nil, ErrNotInWorkingSet
	}
	n.editingID = editingID
	return n, nil
}

func (n *Navigator) EditingID() int64 { return n.editingID }

func (n *Navigator) HasPrev() bool { return n.indexOf(n.editingID) > 0 }

func (n *Navigator) HasNext() bool {
	i := n.indexOf(n.editingID)
	return i >= 0 && i < len(n.set)-1
}

// Neighbor returns the id step positions away from the editing record.
func (n *Navigator) Neighbor(step int) (int64, bool) {
	i := n.indexOf(n.editingID) + step
	if i < 0 || i >= len(n.set) {
		return 0, false
	}
	return n.set[i].ID, true
}

func (n *Navigator) Contains(id int64) bool { return n.indexOf(id) >= 0 }

// Summary returns the working-set entry for id.
func (n *Navigator) Summary(id int64) (invoice.Summary, bool) {
	i := n.indexOf(id)
	if i < 0 {
		return invoice.Summary{}, false
	}
	return n.set[i], true
}

// Focus moves the editing position to id.
func (n *Navigator) Focus(id int64) error {
	if n.indexOf(id) < 0 {
		return ErrNotInWorkingSet
	}
	n.editingID = id
	return nil
}

// Refresh replaces the entry with the same id.
func (n *Navigator) Refresh(s invoice.Summary) {
	if i := n.indexOf(s.ID); i >= 0 {
		n.set[i] = s
	}
}

// Remove drops id and returns the record to edit next: the following
// sibling, else the preceding one.
func (n *Navigator) Remove(id int64) (int64, bool) {
	i := n.indexOf(id)
	if i < 0 {
		return 0, false
	}
	n.set = append(n.set[:i], n.set[i+1:]...)
	if len(n.set) == 0 {
		n.editingID = 0
		return 0, false
	}
	if i >= len(n.set) {
		i = len(n.set) - 1
	}
	if id == n.editingID {
		n.editingID = n.set[i].ID
	}
	return n.set[i].ID, true
}

// WorkingSet returns a copy of the ordered set.
func (n *Navigator) WorkingSet() []invoice.Summary {
	return append([]invoice.Summary(nil), n.set...)
}

func (n *Navigator) indexOf(id int64) int {
	for i, s := range n.set {
		if s.ID == id {
			return i
		}
	}
	return -1
}
