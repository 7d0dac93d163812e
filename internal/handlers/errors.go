package handlers

import (
	"errors"
	"net/http"

	"github.com/masthead-news/masthead/internal/models"
	pkgauth "github.com/masthead-news/masthead/pkg/auth"
	pkghttp "github.com/masthead-news/masthead/pkg/http"
)

// writeServiceError maps service-layer sentinel errors onto the API error
// taxonomy. Ticket problems (including method mismatch, which callers must
// not be able to tell apart from a bad ticket) read as "Invalid MFA ticket";
// code problems, wrong or aged out alike, read as "Invalid or expired code".
func writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *pkgauth.PasswordValidationError

	switch {
	case errors.Is(err, models.ErrTicketInvalid), errors.Is(err, models.ErrTicketConsumed):
		pkghttp.WriteAuthError(w, "Invalid MFA ticket")
	case errors.Is(err, models.ErrCodeInvalid):
		pkghttp.WriteAuthError(w, "Invalid or expired code")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteAuthError(w, "Authentication failed")
	case errors.Is(err, models.ErrResetInvalid):
		pkghttp.WriteAuthError(w, "Invalid or expired reset token")
	case errors.Is(err, models.ErrAccountDisabled):
		pkghttp.WriteEligibilityError(w, "Account disabled")
	case errors.Is(err, models.ErrLaneForbidden):
		pkghttp.WriteEligibilityError(w, "Not eligible for the requested lane")
	case errors.Is(err, models.ErrMFANotEnabled):
		pkghttp.WriteEligibilityError(w, "MFA is not enabled for this account")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteEligibilityError(w, "Forbidden")
	case errors.Is(err, models.ErrRateLimited):
		pkghttp.WriteRateLimitError(w)
	case errors.As(err, &validationErr):
		pkghttp.WriteValidationError(w, validationErr.Error())
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteValidationError(w, "Invalid request")
	default:
		pkghttp.WriteServerError(w)
	}
}
