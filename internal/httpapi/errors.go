package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskradar/taskradar/internal/domain"
)

// writeError maps business-rule outcomes to HTTP statuses. A losing party in
// an acceptance race always sees 409 with the already-taken message, never a
// generic error.
func writeError(c echo.Context, err error) error {
	var status int
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyTaken),
		errors.Is(err, domain.ErrDuplicateBid),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrDuplicateEmail):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrDeadlinePassed):
		status = http.StatusGone
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}
