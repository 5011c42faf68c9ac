// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/atiff-automation/QR-Eat-sub000/internal/authkit"
)

// RespondError maps auth-core errors to HTTP responses using RFC7807.
// Every authentication failure collapses into one indistinct 401 so the
// response cannot be used as an oracle; the audit trail carries the reason.
func RespondError(w http.ResponseWriter, err error) {
	var (
		pd *authkit.PermissionDeniedError
		ve *authkit.ValidationError
		rs *authkit.RoleSwitchError
	)
	switch {
	case errors.Is(err, authkit.ErrMissingTenantContext):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant context")
	case authkit.IsAuthenticationFailure(err):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required or invalid")
	case errors.As(err, &pd):
		Problem(w, http.StatusForbidden, "Forbidden", pd.Error())
	case errors.As(err, &ve):
		ProblemFields(w, http.StatusBadRequest, "Validation Failed", ve.Fields)
	case errors.As(err, &rs):
		Problem(w, http.StatusConflict, "Role Switch Failed", rs.Reason)
	case errors.Is(err, authkit.ErrRoleAlreadyExists):
		Problem(w, http.StatusConflict, "Duplicate", "an active role already exists for this restaurant")
	case errors.Is(err, authkit.ErrRestaurantInactive):
		Problem(w, http.StatusUnprocessableEntity, "Restaurant Unavailable", "restaurant inactive or not found")
	case errors.Is(err, authkit.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "resource not found")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
