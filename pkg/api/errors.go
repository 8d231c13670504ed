package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/steeplehq/steeple/pkg/auth"
	"github.com/steeplehq/steeple/pkg/authz"
	"github.com/steeplehq/steeple/pkg/httputil"
	"github.com/steeplehq/steeple/pkg/roles"
	"github.com/steeplehq/steeple/pkg/tenants"
)

// writeServiceError maps service-layer errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case authz.IsDenied(err):
		httputil.WriteForbidden(w, err.Error())
	case errors.Is(err, tenants.ErrChurchNotFound),
		errors.Is(err, tenants.ErrMemberNotFound),
		errors.Is(err, auth.ErrProfileNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	case errors.Is(err, tenants.ErrDomainTaken):
		httputil.WriteConflict(w, err.Error())
	case isValidation(err):
		httputil.WriteValidationError(w, err.Error())
	default:
		httputil.WriteInternalError(w, err)
	}
}

func isValidation(err error) bool {
	var roleErr *roles.ValidationError
	if errors.As(err, &roleErr) {
		return true
	}
	var fieldErrs validator.ValidationErrors
	return errors.As(err, &fieldErrs)
}

// requireSession pulls the resolved session off the context, writing a
// 401 when the request is anonymous.
func requireSession(w http.ResponseWriter, r *http.Request) *auth.Session {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return nil
	}
	return session
}
