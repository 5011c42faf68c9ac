// Package audithttp exposes the audit trail over HTTP.
package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atiff-automation/QR-Eat-sub000/internal/audit"
	"github.com/atiff-automation/QR-Eat-sub000/internal/authkit"
	"github.com/atiff-automation/QR-Eat-sub000/internal/permissions"
	"github.com/atiff-automation/QR-Eat-sub000/internal/platform/httpx"
	"github.com/atiff-automation/QR-Eat-sub000/internal/tenant"
)

const maxPageSize = 200

// TrailService defines the read contract used by the handler.
type TrailService interface {
	Trail(ctx context.Context, userID string, f audit.TrailFilters) ([]audit.Entry, error)
	RestaurantTrail(ctx context.Context, restaurantID string, f audit.TrailFilters) ([]audit.Entry, error)
	Summary(ctx context.Context, userID string) (*audit.Summary, error)
	Statistics(ctx context.Context) (*audit.Statistics, error)
	CheckIntegrity(ctx context.Context) ([]string, error)
}

// RestaurantGuard applies the tenant access rule to restaurant-scoped reads.
type RestaurantGuard interface {
	RequireRestaurantAccess(ctx context.Context, tc *tenant.Context, restaurantID string) error
}

// Handler coordinates HTTP requests for the audit trail.
type Handler struct {
	logger  *slog.Logger
	service TrailService
	guard   RestaurantGuard
}

// NewHandler constructs the audit HTTP handler.
func NewHandler(logger *slog.Logger, service TrailService, guard RestaurantGuard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

func (h *Handler) handleMyTrail(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	if tc == nil {
		httpx.RespondError(w, authkit.ErrMissingTenantContext)
		return
	}
	entries, err := h.service.Trail(r.Context(), tc.UserID, parseFilters(r))
	if err != nil {
		h.serverError(w, "load trail", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) handleUserTrail(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	if tc == nil {
		httpx.RespondError(w, authkit.ErrMissingTenantContext)
		return
	}
	userID := chi.URLParam(r, "userID")
	if userID != tc.UserID && !tc.IsAdmin {
		httpx.RespondError(w, authkit.PermissionDenied(permissions.PermAuditRead, "user:"+userID))
		return
	}
	entries, err := h.service.Trail(r.Context(), userID, parseFilters(r))
	if err != nil {
		h.serverError(w, "load user trail", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) handleRestaurantTrail(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	if tc == nil {
		httpx.RespondError(w, authkit.ErrMissingTenantContext)
		return
	}
	restaurantID := chi.URLParam(r, "restaurantID")
	if err := h.guard.RequireRestaurantAccess(r.Context(), tc, restaurantID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.service.RestaurantTrail(r.Context(), restaurantID, parseFilters(r))
	if err != nil {
		h.serverError(w, "load restaurant trail", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	if tc == nil {
		httpx.RespondError(w, authkit.ErrMissingTenantContext)
		return
	}
	summary, err := h.service.Summary(r.Context(), tc.UserID)
	if err != nil {
		h.serverError(w, "load summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		h.serverError(w, "load statistics", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	unknown, err := h.service.CheckIntegrity(r.Context())
	if err != nil {
		h.serverError(w, "check integrity", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"healthy":        len(unknown) == 0,
		"unknownActions": unknown,
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	if tc == nil {
		httpx.RespondError(w, authkit.ErrMissingTenantContext)
		return
	}
	f := parseFilters(r)
	f.PageSize = maxPageSize
	entries, err := h.service.Trail(r.Context(), tc.UserID, f)
	if err != nil {
		h.serverError(w, "export trail", err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "csv":
		data, err := audit.ExportCSV(entries)
		if err != nil {
			h.serverError(w, "render csv", err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="audit-trail.csv"`)
		_, _ = w.Write(data)
	default:
		data, err := audit.ExportJSON(entries)
		if err != nil {
			h.serverError(w, "render json", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	}
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Error("audit handler failed", slog.String("op", op), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parseFilters(r *http.Request) audit.TrailFilters {
	q := r.URL.Query()
	f := audit.TrailFilters{
		Action:   q.Get("action"),
		Severity: q.Get("severity"),
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.To = t
		}
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		f.Page = v
	}
	if v, err := strconv.Atoi(q.Get("pageSize")); err == nil && v > 0 {
		f.PageSize = v
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	return f
}
