package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/atiff-automation/QR-Eat-sub000/internal/authkit"
	"github.com/atiff-automation/QR-Eat-sub000/internal/permissions"
	"github.com/atiff-automation/QR-Eat-sub000/internal/platform/httpx"
	"github.com/atiff-automation/QR-Eat-sub000/internal/tenant"
	"github.com/atiff-automation/QR-Eat-sub000/internal/token"
)

// Handler wires HTTP endpoints for the credential lifecycle.
type Handler struct {
	logger        *slog.Logger
	service       *Service
	bridge        *token.Bridge
	validator     *validator.Validate
	secureCookies bool
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, bridge *token.Bridge, secureCookies bool) *Handler {
	return &Handler{
		logger:        logger,
		service:       service,
		bridge:        bridge,
		validator:     validator.New(),
		secureCookies: secureCookies,
	}
}

// MountPublicRoutes registers the endpoints reachable without a credential.
// Login and upgrade are rate limited by client IP.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Post("/auth/login", h.handleLogin)
		gr.Post("/auth/upgrade", h.handleUpgrade)
	})
	r.Post("/auth/logout", h.handleLogout)
	r.Post("/auth/refresh", h.handleRefresh)
}

// MountProtectedRoutes registers the endpoints that require a resolved tenant
// context.
func (h *Handler) MountProtectedRoutes(r chi.Router, denials tenant.DenialRecorder) {
	r.Get("/auth/me", h.handleMe)
	r.Post("/auth/switch-role", h.handleSwitchRole)
	r.Group(func(gr chi.Router) {
		gr.Use(tenant.RequirePermission(permissions.PermPlatformManage, denials))
		gr.Get("/auth/migration-report", h.handleMigrationReport)
	})
}

type loginRequest struct {
	Email        string  `json:"email" validate:"required,email"`
	Password     string  `json:"password" validate:"required,min=8"`
	RestaurantID *string `json:"restaurantId,omitempty" validate:"omitempty,uuid4"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, validationError(err))
		return
	}

	result, err := h.service.Login(r.Context(), LoginParams{
		Email:          req.Email,
		Password:       req.Password,
		RestaurantHint: req.RestaurantID,
		IPAddress:      r.RemoteAddr,
		UserAgent:      r.UserAgent(),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	h.setAuthCookie(w, result.Token, result.Session.ExpiresAt)
	httpx.JSON(w, http.StatusOK, loginResponse(result))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	tok := tenant.BearerToken(r)
	if tok != "" {
		if err := h.service.Logout(r.Context(), tok, r.RemoteAddr, r.UserAgent()); err != nil {
			h.logger.Warn("logout failed", slog.Any("error", err))
		}
	}
	h.clearAuthCookie(w)
	httpx.JSON(w, http.StatusOK, map[string]any{"loggedOut": true})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	tok := tenant.BearerToken(r)
	if tok == "" {
		httpx.RespondError(w, authkit.ErrInvalidToken)
		return
	}
	signed, claims, err := h.service.Refresh(r.Context(), tok, r.RemoteAddr, r.UserAgent())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.setAuthCookie(w, signed, claims.ExpiresAt.Time)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"token":     signed,
		"sessionId": claims.SessionID,
		"expiresAt": claims.ExpiresAt.Time.UTC(),
	})
}

type switchRoleRequest struct {
	RoleID       string  `json:"roleId" validate:"required,uuid4"`
	RestaurantID *string `json:"restaurantId,omitempty" validate:"omitempty,uuid4"`
}

func (h *Handler) handleSwitchRole(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	if tc == nil {
		httpx.RespondError(w, authkit.ErrMissingTenantContext)
		return
	}

	var req switchRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, validationError(err))
		return
	}

	result, err := h.service.SwitchRole(r.Context(), tc.UserID, tc.SessionID, req.RoleID, req.RestaurantID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	h.setAuthCookie(w, result.Token, result.Session.ExpiresAt)
	httpx.JSON(w, http.StatusOK, loginResponse(result))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	if tc == nil {
		httpx.RespondError(w, authkit.ErrMissingTenantContext)
		return
	}
	resp := map[string]any{
		"userId":       tc.UserID,
		"userType":     tc.UserType,
		"email":        tc.Email,
		"roleTemplate": tc.RoleTemplate,
		"isAdmin":      tc.IsAdmin,
		"permissions":  tc.Permissions.List(),
		"sessionId":    tc.SessionID,
	}
	if tc.RestaurantID != nil {
		resp["restaurantId"] = *tc.RestaurantID
		resp["restaurantSlug"] = tc.RestaurantSlug
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	tok := tenant.LegacyToken(r)
	if tok == "" {
		tok = tenant.BearerToken(r)
	}
	if tok == "" {
		httpx.RespondError(w, authkit.ErrInvalidToken)
		return
	}
	signed, sess, err := h.bridge.Upgrade(r.Context(), tok, r.RemoteAddr, r.UserAgent())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.setAuthCookie(w, signed, sess.ExpiresAt)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"token":     signed,
		"sessionId": sess.ID,
		"expiresAt": sess.ExpiresAt.UTC(),
	})
}

func (h *Handler) handleMigrationReport(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.bridge.Report())
}

func (h *Handler) setAuthCookie(w http.ResponseWriter, tok string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     tenant.CookieName,
		Value:    tok,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearAuthCookie(w http.ResponseWriter) {
	names := append([]string{tenant.CookieName}, tenant.LegacyCookieNames...)
	for _, name := range names {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.secureCookies,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return authkit.Validation(authkit.FieldError{Field: "body", Message: "invalid request"})
	}
	fields := make([]authkit.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, authkit.FieldError{
			Field:   fe.Field(),
			Message: "failed on " + fe.Tag(),
		})
	}
	return authkit.Validation(fields...)
}
