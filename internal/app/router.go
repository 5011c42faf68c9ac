package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	audithttp "github.com/atiff-automation/QR-Eat-sub000/internal/audit/http"
	"github.com/atiff-automation/QR-Eat-sub000/internal/auth"
	roleshttp "github.com/atiff-automation/QR-Eat-sub000/internal/roles/http"
	"github.com/atiff-automation/QR-Eat-sub000/internal/tenant"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AuthHandler      *auth.Handler
	RolesHandler     *roleshttp.Handler
	AuditHandler     *audithttp.Handler
	TenantMiddleware func(http.Handler) http.Handler
	Denials          tenant.DenialRecorder
}

// NewRouter constructs the chi.Router. Auth endpoints stay outside the tenant
// middleware; everything else requires a resolved tenant context.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	params.AuthHandler.MountPublicRoutes(r)

	r.Group(func(gr chi.Router) {
		gr.Use(params.TenantMiddleware)
		params.AuthHandler.MountProtectedRoutes(gr, params.Denials)
		if params.RolesHandler != nil {
			params.RolesHandler.MountRoutes(gr, params.Denials)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(gr, params.Denials)
		}
	})

	return r
}
