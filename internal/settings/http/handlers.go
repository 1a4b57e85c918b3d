// Package settingshttp exposes per-account accounting defaults.
package settingshttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/invoicedesk/internal/invoice"
	"github.com/odyssey-erp/invoicedesk/internal/platform/httpx"
	"github.com/odyssey-erp/invoicedesk/internal/settings"
)

// Service reads and writes account settings.
type Service interface {
	Settings(ctx context.Context, accountID int64) (invoice.Settings, error)
	Update(ctx context.Context, in invoice.Settings) error
}

// Handler serves the settings endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

func NewHandler(logger *slog.Logger, service Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/{accountID}", h.handleGet)
	r.Put("/{accountID}", h.handlePut)
}

type updateRequest struct {
	DefaultTaxRate *decimal.Decimal `json:"default_tax_rate"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	got, err := h.service.Settings(r.Context(), accountID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, got)
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if req.DefaultTaxRate == nil {
		httpx.WriteProblem(w, httpx.ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusUnprocessableEntity,
			Fields: map[string]string{"default_tax_rate": "required"},
		})
		return
	}
	in := invoice.Settings{AccountID: accountID, DefaultTaxRate: *req.DefaultTaxRate}
	if err := h.service.Update(r.Context(), in); err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("account settings updated",
		slog.Int64("account_id", accountID),
		slog.String("default_tax_rate", in.DefaultTaxRate.String()))
	httpx.JSON(w, http.StatusOK, in)
}

func (h *Handler) accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: account id must be a positive integer", httpx.ErrValidation))
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, settings.ErrInvalidRate) {
		httpx.RespondError(w, fmt.Errorf("%w: %w", httpx.ErrValidation, err))
		return
	}
	h.logger.Error("settings request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}
