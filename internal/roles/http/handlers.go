// Package roleshttp exposes role management over HTTP.
package roleshttp

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atiff-automation/QR-Eat-sub000/internal/authkit"
	"github.com/atiff-automation/QR-Eat-sub000/internal/permissions"
	"github.com/atiff-automation/QR-Eat-sub000/internal/platform/httpx"
	"github.com/atiff-automation/QR-Eat-sub000/internal/roles"
	"github.com/atiff-automation/QR-Eat-sub000/internal/tenant"
)

// Handler wires HTTP endpoints for role management.
type Handler struct {
	logger    *slog.Logger
	service   *roles.Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *roles.Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers role management endpoints. Mutations require the
// roles:manage permission; listing a user's own roles does not.
func (h *Handler) MountRoutes(r chi.Router, denials tenant.DenialRecorder) {
	r.Get("/roles/mine", h.handleListMine)
	r.Group(func(gr chi.Router) {
		gr.Use(tenant.RequirePermission(permissions.PermRolesManage, denials))
		gr.Post("/roles", h.handleCreate)
		gr.Delete("/roles/{roleID}", h.handleDelete)
		gr.Put("/roles/{roleID}/permissions", h.handleSetPermissions)
		gr.Get("/roles/users/{userID}", h.handleListForUser)
	})
}

type createRoleRequest struct {
	UserID            string   `json:"userId" validate:"required,uuid4"`
	UserType          string   `json:"userType" validate:"required"`
	RoleTemplate      string   `json:"roleTemplate" validate:"required"`
	RestaurantID      *string  `json:"restaurantId,omitempty" validate:"omitempty,uuid4"`
	CustomPermissions []string `json:"customPermissions,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	if tc == nil {
		httpx.RespondError(w, authkit.ErrMissingTenantContext)
		return
	}

	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, authkit.Validation(authkit.FieldError{Field: "body", Message: "invalid request"}))
		return
	}

	role, err := h.service.CreateUserRole(r.Context(), tc.UserID, roles.CreateParams{
		UserID:            req.UserID,
		UserType:          roles.UserType(req.UserType),
		RoleTemplate:      req.RoleTemplate,
		RestaurantID:      req.RestaurantID,
		CustomPermissions: req.CustomPermissions,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	if tc == nil {
		httpx.RespondError(w, authkit.ErrMissingTenantContext)
		return
	}
	if err := h.service.DeleteUserRole(r.Context(), tc.UserID, chi.URLParam(r, "roleID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"removed": true})
}

type setPermissionsRequest struct {
	CustomPermissions []string `json:"customPermissions" validate:"required"`
}

func (h *Handler) handleSetPermissions(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	if tc == nil {
		httpx.RespondError(w, authkit.ErrMissingTenantContext)
		return
	}

	var req setPermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.service.SetCustomPermissions(r.Context(), tc.UserID, chi.URLParam(r, "roleID"), req.CustomPermissions); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	if tc == nil {
		httpx.RespondError(w, authkit.ErrMissingTenantContext)
		return
	}
	h.listRoles(w, r, tc.UserID)
}

func (h *Handler) handleListForUser(w http.ResponseWriter, r *http.Request) {
	h.listRoles(w, r, chi.URLParam(r, "userID"))
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request, userID string) {
	list, err := h.service.ListUserRoles(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": list})
}
