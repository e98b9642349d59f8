package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turnos-booking/internal/service"
)

// writeError translates a service error into its HTTP response.  Client
// errors map to 400; everything else is logged and answered with 500.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrPolicyViolation),
		errors.Is(err, service.ErrPaymentRejected):
		return c.JSON(http.StatusBadRequest, echo.Map{"message": service.Message(err)})
	default:
		log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": service.Message(err)})
	}
}
