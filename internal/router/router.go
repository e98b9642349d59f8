// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/turnos-booking/internal/handler"
	"github.com/iliyamo/turnos-booking/internal/middleware"
)

// RegisterRoutes registers routes outside the booking API.  Currently it
// exposes only the health check used by load balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterBooking mounts the reservation endpoints under /turnos.  Requests
// that create or change reservations pass through limit and invalidate the
// availability cache on success; the availability query is served through
// the cache.
func RegisterBooking(e *echo.Echo, h *handler.BookingHandler, limit echo.MiddlewareFunc, cache *middleware.ResponseCache) {
	g := e.Group("/turnos")

	g.POST("/reservar", h.Reserve, limit, cache.Invalidate())
	// gateway return URLs
	g.GET("/confirmar", h.Confirm, cache.Invalidate())
	g.GET("/error", h.PaymentFailed, cache.Invalidate())
	g.GET("/pendiente", h.PaymentPending)

	g.GET("/horarios-disponibles", h.Available, cache.Cache())
	g.GET("", h.List)
}
