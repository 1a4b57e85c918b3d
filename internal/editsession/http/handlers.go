// Package editsessionhttp exposes edit sessions over JSON.
package editsessionhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/invoicedesk/internal/counterparty"
	"github.com/odyssey-erp/invoicedesk/internal/editsession"
	"github.com/odyssey-erp/invoicedesk/internal/invoice"
	"github.com/odyssey-erp/invoicedesk/internal/platform/httpx"
	"github.com/odyssey-erp/invoicedesk/internal/preview"
)

const defaultWorkingSetLimit = 200

// WorkingSetLister lists record ids when a client opens a session without an
// explicit working set.
type WorkingSetLister interface {
	List(ctx context.Context, accountID int64, direction invoice.Direction, limit int) ([]int64, error)
}

// CounterpartyLookup searches known counterparties.
type CounterpartyLookup interface {
	Lookup(ctx context.Context, accountID int64, query string) ([]invoice.Counterparty, error)
}

// PreviewImages serves rendered proofs.
type PreviewImages interface {
	Latest(ctx context.Context, recordID int64) ([]byte, bool, error)
}

// Handler serves the edit-session endpoints.
type Handler struct {
	logger         *slog.Logger
	sessions       *editsession.Manager
	lister         WorkingSetLister
	counterparties CounterpartyLookup
	previews       PreviewImages
	validate       *validator.Validate
}

// NewHandler constructs the handler. counterparties and previews may be nil,
// in which case those endpoints answer 404.
func NewHandler(logger *slog.Logger, sessions *editsession.Manager, lister WorkingSetLister, counterparties CounterpartyLookup, previews PreviewImages) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		sessions:       sessions,
		lister:         lister,
		counterparties: counterparties,
		previews:       previews,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if !h.decode(w, r, &req) {
		return
	}
	direction := invoice.Direction(req.Direction)
	ids := req.WorkingSet
	if len(ids) == 0 && h.lister != nil {
		listed, err := h.lister.List(r.Context(), req.AccountID, direction, defaultWorkingSetLimit)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		ids = listed
	}
	id, sess, err := h.sessions.Open(r.Context(), editsession.OpenParams{
		Direction:  direction,
		AccountID:  req.AccountID,
		WorkingSet: ids,
		EditingID:  req.EditingID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, buildState(id, sess))
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.session(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, buildState(id, sess))
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := h.sessions.Close(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleField(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req fieldRequest
	if !h.decode(w, r, &req) {
		return
	}
	field := invoice.Field(chi.URLParam(r, "field"))
	mutation, err := invoice.DecodeMutation(field, req.Value)
	if err != nil {
		if !errors.Is(err, invoice.ErrUnknownField) {
			err = fmt.Errorf("%w: %w", httpx.ErrValidation, err)
		}
		h.fail(w, r, err)
		return
	}
	if _, err := sess.Update(mutation); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, buildState(id, sess))
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req returnRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, err := sess.ToggleReturn(*req.On); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, buildState(id, sess))
}

func (h *Handler) handleVariant(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req variantRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, err := sess.SelectVariant(invoice.Variant(req.Variant)); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, buildState(id, sess))
}

func (h *Handler) handleGoto(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req gotoRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := sess.GoTo(r.Context(), req.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, buildState(id, sess))
}

func (h *Handler) handleStep(delta int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, sess, ok := h.session(w, r)
		if !ok {
			return
		}
		move := sess.Next
		if delta < 0 {
			move = sess.Prev
		}
		if err := move(r.Context()); err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, buildState(id, sess))
	}
}

func (h *Handler) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := h.session(w, r)
	if !ok {
		return
	}
	next, err := sess.DeleteRecord(r.Context())
	if err != nil {
		if errors.Is(err, editsession.ErrSessionClosed) {
			h.sessions.Forget(id)
		}
		h.fail(w, r, err)
		return
	}
	if next == 0 {
		h.sessions.Forget(id)
		httpx.JSON(w, http.StatusOK, map[string]any{"session_id": id, "closed": true})
		return
	}
	httpx.JSON(w, http.StatusOK, buildState(id, sess))
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if h.previews == nil {
		h.fail(w, r, fmt.Errorf("%w: previews disabled", httpx.ErrNotFound))
		return
	}
	png, stale, err := h.previews.Latest(r.Context(), sess.EditingID())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if stale {
		w.Header().Set("X-Preview-Stale", "true")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) handleCounterparties(w http.ResponseWriter, r *http.Request) {
	if h.counterparties == nil {
		h.fail(w, r, fmt.Errorf("%w: lookup disabled", httpx.ErrNotFound))
		return
	}
	accountID, err := strconv.ParseInt(r.URL.Query().Get("account_id"), 10, 64)
	if err != nil || accountID <= 0 {
		h.fail(w, r, fmt.Errorf("%w: account_id must be a positive integer", httpx.ErrValidation))
		return
	}
	results, err := h.counterparties.Lookup(r.Context(), accountID, strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"counterparties": results})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, *editsession.Session, bool) {
	id := chi.URLParam(r, "sessionID")
	sess, err := h.sessions.Get(id)
	if err != nil {
		h.fail(w, r, err)
		return "", nil, false
	}
	return id, sess, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(w, r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			httpx.WriteProblem(w, httpx.ProblemDetail{
				Title:  "Validation Failed",
				Status: http.StatusUnprocessableEntity,
				Fields: fields,
			})
			return false
		}
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return false
	}
	return true
}

// fail classifies domain errors onto the httpx sentinels.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, editsession.ErrSessionNotFound),
		errors.Is(err, invoice.ErrInvoiceNotFound),
		errors.Is(err, preview.ErrNotReady):
		err = fmt.Errorf("%w: %w", httpx.ErrNotFound, err)
	case errors.Is(err, editsession.ErrSessionClosed):
		err = fmt.Errorf("%w: %w", httpx.ErrGone, err)
	case errors.Is(err, editsession.ErrRecordLinked),
		errors.Is(err, invoice.ErrDuplicateDocumentNo):
		err = fmt.Errorf("%w: %w", httpx.ErrConflict, err)
	case errors.Is(err, editsession.ErrNotInWorkingSet),
		errors.Is(err, editsession.ErrWorkingSetEmpty),
		errors.Is(err, editsession.ErrNoReturnVariant),
		errors.Is(err, editsession.ErrVariantNotAllowed),
		errors.Is(err, editsession.ErrVariantNotEditable),
		errors.Is(err, editsession.ErrDirectionMismatch),
		errors.Is(err, invoice.ErrInvalidDirection),
		errors.Is(err, invoice.ErrUnknownField),
		errors.Is(err, counterparty.ErrQueryTooShort):
		err = fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	case errors.Is(err, context.DeadlineExceeded):
		httpx.Problem(w, http.StatusGatewayTimeout, "Timeout", "record store did not answer in time")
		return
	}
	if !errors.Is(err, httpx.ErrNotFound) && !errors.Is(err, httpx.ErrGone) &&
		!errors.Is(err, httpx.ErrConflict) && !errors.Is(err, httpx.ErrValidation) {
		h.logger.Error("edit session request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
