package editsessionhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

const (
	lookupRateLimit  = 30
	lookupRateWindow = time.Minute
)

// MountRoutes registers the edit-session API.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(lookupRateLimit, lookupRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
	r.Post("/sessions", h.handleOpen)
	r.Route("/sessions/{sessionID}", func(sr chi.Router) {
		sr.Get("/", h.handleState)
		sr.Delete("/", h.handleClose)
		sr.Patch("/fields/{field}", h.handleField)
		sr.Post("/return", h.handleReturn)
		sr.Post("/variant", h.handleVariant)
		sr.Post("/goto", h.handleGoto)
		sr.Post("/prev", h.handleStep(-1))
		sr.Post("/next", h.handleStep(1))
		sr.Delete("/record", h.handleDeleteRecord)
		sr.Get("/preview.png", h.handlePreview)
	})
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/counterparties", h.handleCounterparties)
	})
}
