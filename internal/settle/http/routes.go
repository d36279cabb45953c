package settlehttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// MountRoutes registers the settlement endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(6, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Route("/settlements/{period}", func(sr chi.Router) {
		sr.Get("/", h.handleResult)
		sr.Get("/issues", h.handleIssues)
		sr.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Post("/compute", h.handleCompute)
			gr.Post("/approve", h.handleApprove)
		})
	})
}
