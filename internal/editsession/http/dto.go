package editsessionhttp

import (
	"encoding/json"
	"time"

	"github.com/odyssey-erp/invoicedesk/internal/editsession"
	"github.com/odyssey-erp/invoicedesk/internal/invoice"
)

type openRequest struct {
	Direction  string  `json:"direction" validate:"required,oneof=input output"`
	AccountID  int64   `json:"account_id" validate:"gt=0"`
	WorkingSet []int64 `json:"working_set" validate:"omitempty,max=500,dive,gt=0"`
	EditingID  int64   `json:"editing_id" validate:"gt=0"`
}

type fieldRequest struct {
	Value json.RawMessage `json:"value" validate:"required"`
}

type returnRequest struct {
	On *bool `json:"on" validate:"required"`
}

type variantRequest struct {
	Variant string `json:"variant" validate:"required"`
}

type gotoRequest struct {
	ID int64 `json:"id" validate:"gt=0"`
}

type commitView struct {
	Kind     string    `json:"kind"`
	RecordID int64     `json:"record_id"`
	At       time.Time `json:"at"`
	Error    string    `json:"error,omitempty"`
}

type stateView struct {
	SessionID     string                   `json:"session_id"`
	Record        invoice.Invoice          `json:"record"`
	State         string                   `json:"state"`
	Dirty         bool                     `json:"dirty"`
	Valid         bool                     `json:"valid"`
	Errors        map[invoice.Field]string `json:"errors,omitempty"`
	ReturnToggled bool                     `json:"return_toggled"`
	Variants      []invoice.Variant        `json:"variants"`
	HasPrev       bool                     `json:"has_prev"`
	HasNext       bool                     `json:"has_next"`
	WorkingSet    []invoice.Summary        `json:"working_set"`
	LastCommit    *commitView              `json:"last_commit,omitempty"`
}

func buildState(id string, sess *editsession.Session) stateView {
	validation := sess.Validate()
	view := stateView{
		SessionID:     id,
		Record:        sess.Record(),
		State:         sess.State().String(),
		Dirty:         sess.IsDirty(),
		Valid:         validation.Valid,
		Errors:        validation.Errors,
		ReturnToggled: sess.ReturnToggled(),
		Variants:      invoice.Variants(sess.Direction()),
		HasPrev:       sess.HasPrev(),
		HasNext:       sess.HasNext(),
		WorkingSet:    sess.WorkingSet(),
	}
	if last := sess.LastCommit(); !last.At.IsZero() {
		cv := &commitView{Kind: last.Kind.String(), RecordID: last.RecordID, At: last.At}
		if last.Err != nil {
			cv.Error = last.Err.Error()
		}
		view.LastCommit = cv
	}
	return view
}
