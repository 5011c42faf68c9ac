package tenant

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/atiff-automation/QR-Eat-sub000/internal/audit"
	"github.com/atiff-automation/QR-Eat-sub000/internal/authkit"
	"github.com/atiff-automation/QR-Eat-sub000/internal/platform/httpx"
)

// FailureRecorder notes verification failures in the audit trail.
type FailureRecorder interface {
	LogAuthenticationFailure(ctx context.Context, userID, reason string, req audit.RequestInfo)
}

// Middleware resolves the tenant context for every request and rejects
// requests without a valid credential. The response never distinguishes why
// authentication failed; the audit trail carries the reason.
func Middleware(resolver *Resolver, failures FailureRecorder, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc, err := resolver.FromRequest(r.Context(), r)
			if err != nil {
				if failures != nil && authkit.IsAuthenticationFailure(err) {
					failures.LogAuthenticationFailure(r.Context(), "", err.Error(), audit.RequestInfo{
						IPAddress: r.RemoteAddr,
						UserAgent: r.UserAgent(),
					})
				}
				if logger != nil {
					logger.Debug("tenant resolution failed", slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), tc)))
		})
	}
}

// RequirePermission guards a route with a permission key.
func RequirePermission(perm string, denials DenialRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc := FromContext(r.Context())
			if tc == nil {
				httpx.RespondError(w, authkit.ErrMissingTenantContext)
				return
			}
			if !tc.Permissions.Has(perm) {
				if denials != nil {
					denials.LogPermissionDenied(r.Context(), tc.UserID, perm, r.URL.Path, audit.RequestInfo{
						IPAddress: r.RemoteAddr,
						UserAgent: r.UserAgent(),
					})
				}
				httpx.RespondError(w, authkit.PermissionDenied(perm, ""))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
