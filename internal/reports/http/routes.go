package reporthttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/shopreports/internal/platform/httpx"
)

// MountRoutes registers report endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(h.exportLimit, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP, keyByShop),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export limit reached, try again shortly")
		}),
	)

	r.Route("/reports", func(rr chi.Router) {
		rr.Post("/cache/invalidate", h.handleInvalidate)
		rr.Get("/exports/{id}", h.handleExportStatus)
		rr.Get("/{kind}", h.handlePreview)
		rr.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Get("/{kind}/export", h.handleExport)
			gr.Post("/{kind}/exports", h.handleEnqueue)
		})
	})
}

func keyByShop(r *http.Request) (string, error) {
	return "shop:" + strings.TrimSpace(r.URL.Query().Get("shop_id")), nil
}
