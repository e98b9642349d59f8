package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turnos-booking/internal/service"
)

// BookingHandler exposes the reservation lifecycle and the availability
// query under /turnos.
type BookingHandler struct {
	Booking      *service.BookingService
	Availability *service.AvailabilityService
}

// NewBookingHandler wires the handler.  Both services must be non-nil.
func NewBookingHandler(b *service.BookingService, a *service.AvailabilityService) *BookingHandler {
	if b == nil || a == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{Booking: b, Availability: a}
}

type reserveReq struct {
	DateTime      string          `json:"dateTime"`
	ClientName    string          `json:"clientName"`
	ServiceType   string          `json:"serviceType"`
	ClientEmail   string          `json:"clientEmail"`
	DepositAmount json.RawMessage `json:"depositAmount"`
}

// Reserve handles POST /turnos/reservar.  With a payment step it answers
// 200 and the gateway redirect URL; without one the reservation is
// confirmed and returned with 201.
func (h *BookingHandler) Reserve(c echo.Context) error {
	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}
	deposit, ok := rawAmount(req.DepositAmount)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "depositAmount must be a valid number"})
	}

	handle, err := h.Booking.RequestReservation(c.Request().Context(), service.ReservationRequest{
		DateTime:      req.DateTime,
		ClientName:    req.ClientName,
		ServiceType:   req.ServiceType,
		ClientEmail:   req.ClientEmail,
		DepositAmount: deposit,
	})
	if err != nil {
		return writeError(c, err)
	}
	if handle.PaymentRequired {
		return c.JSON(http.StatusOK, echo.Map{
			"message":           "reservation pending payment",
			"redirectURL":       handle.RedirectURL,
			"externalReference": handle.ExternalReference,
		})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message":     "reservation confirmed",
		"reservation": handle.Reservation,
	})
}

// Confirm handles GET /turnos/confirmar, the payment gateway's success
// callback.  A duplicate callback answers 200 instead of 201.
func (h *BookingHandler) Confirm(c echo.Context) error {
	res, err := h.Booking.ConfirmReservation(c.Request().Context(), service.Confirmation{
		ExternalReference: firstParam(c, "externalReference", "external_reference"),
		Token:             c.QueryParam("token"),
		Status:            c.QueryParam("status"),
		ClientName:        c.QueryParam("clientName"),
		ServiceType:       c.QueryParam("serviceType"),
		ClientEmail:       c.QueryParam("clientEmail"),
	})
	if err != nil {
		return writeError(c, err)
	}
	if res.AlreadyConfirmed {
		return c.JSON(http.StatusOK, echo.Map{"message": "reservation already confirmed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "reservation confirmed"})
}

// PaymentFailed handles GET /turnos/error.  The hold behind the failed
// payment is released so the slot can be booked again; the request must
// carry the hold token from the gateway return URL.
func (h *BookingHandler) PaymentFailed(c echo.Context) error {
	ref := firstParam(c, "externalReference", "external_reference")
	if ref == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "externalReference is required"})
	}
	if _, err := h.Booking.CancelReservation(c.Request().Context(), ref, c.QueryParam("token")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "the payment failed; the slot has been released"})
}

// PaymentPending handles GET /turnos/pendiente.
func (h *BookingHandler) PaymentPending(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "the payment is pending; the reservation will be confirmed once it is approved"})
}

// Available handles GET /turnos/horarios-disponibles?date=YYYY-MM-DD.
func (h *BookingHandler) Available(c echo.Context) error {
	times, err := h.Availability.ComputeAvailable(c.Request().Context(), firstParam(c, "date", "fecha"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, times)
}

// List handles GET /turnos.
func (h *BookingHandler) List(c echo.Context) error {
	rs, err := h.Booking.ListReservations(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rs)
}

func firstParam(c echo.Context, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(c.QueryParam(n)); v != "" {
			return v
		}
	}
	return ""
}

// rawAmount accepts a JSON number or a string holding one.  An absent or
// null amount yields nil.
func rawAmount(raw json.RawMessage) (*string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, true
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, false
		}
		return &s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, false
	}
	s := n.String()
	return &s, true
}
