package editsession

import "github.com/odyssey-erp/invoicedesk/internal/invoice"

// IsDirty reports whether live differs from the snapshot. An invalidated
// (nil) snapshot is always dirty.
func IsDirty(live invoice.Fields, snap *Snapshot) bool {
	if snap == nil {
		return true
	}
	for _, field := range invoice.AllFields {
		if !invoice.SameValue(field, live, snap.fields) {
			return true
		}
	}
	return false
}
