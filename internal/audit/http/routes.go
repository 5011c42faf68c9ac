package audithttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/atiff-automation/QR-Eat-sub000/internal/permissions"
	"github.com/atiff-automation/QR-Eat-sub000/internal/tenant"
)

// MountRoutes registers audit endpoints onto the router. Every route sits
// behind the audit:read permission; exports are rate limited per caller.
func (h *Handler) MountRoutes(r chi.Router, denials tenant.DenialRecorder) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(5, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Group(func(gr chi.Router) {
		gr.Use(tenant.RequirePermission(permissions.PermAuditRead, denials))
		gr.Get("/audit/me", h.handleMyTrail)
		gr.Get("/audit/summary", h.handleSummary)
		gr.Get("/audit/users/{userID}", h.handleUserTrail)
		gr.Get("/audit/restaurants/{restaurantID}", h.handleRestaurantTrail)
		gr.Group(func(er chi.Router) {
			er.Use(limiter)
			er.Get("/audit/export", h.handleExport)
		})
	})
	r.Group(func(gr chi.Router) {
		gr.Use(tenant.RequirePermission(permissions.PermPlatformManage, denials))
		gr.Get("/audit/statistics", h.handleStatistics)
		gr.Get("/audit/integrity", h.handleIntegrity)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if tc := tenant.FromContext(r.Context()); tc != nil && tc.UserID != "" {
		return "user:" + tc.UserID, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
