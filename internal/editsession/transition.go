package editsession

import (
	"errors"

	"github.com/odyssey-erp/invoicedesk/internal/invoice"
)

// ErrNoReturnVariant is returned when toggling return/allowance on a variant
// that has no return counterpart.
var ErrNoReturnVariant = errors.New("variant has no return/allowance counterpart")

// Transitions tracks the return/allowance toggle and the variant it replaced.
type Transitions struct {
	toggled    bool
	original   invoice.Variant
	remembered bool
}

// Reset aligns the machine with a freshly loaded record. A record already in
// a return variant starts toggled, remembering its standard counterpart.
func (t *Transitions) Reset(current invoice.Variant) {
	*t = Transitions{}
	if standard, ok := current.StandardVariant(); ok {
		t.toggled = true
		t.original = standard
		t.remembered = true
	}
}

// Toggled reports whether return/allowance is switched on.
func (t *Transitions) Toggled() bool { return t.toggled }

// ToggleReturn switches return/allowance on or off. Switching on remembers the
// current variant the first time; switching off restores it.
func (t *Transitions) ToggleReturn(on bool, current invoice.Variant) (invoice.Variant, bool, error) {
	if on == t.toggled {
		return current, false, nil
	}
	if on {
		next, ok := current.ReturnVariant()
		if !ok {
			return current, false, ErrNoReturnVariant
		}
		if !t.remembered {
			t.original = current
			t.remembered = true
		}
		t.toggled = true
		return next, next != current, nil
	}
	t.toggled = false
	if !t.remembered {
		return current, false, nil
	}
	return t.original, t.original != current, nil
}

// Select records a direct pick from the variant menu. The remembered original
// is forgotten and the toggle follows the picked variant as on Reset.
func (t *Transitions) Select(next, current invoice.Variant) (invoice.Variant, bool) {
	t.Reset(next)
	return next, next != current
}
