// Package router registers the HTTP routes of the booking API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/booking-reconciler/internal/handler"
	"github.com/iliyamo/booking-reconciler/internal/middleware"
)

// RegisterRoutes registers the unauthenticated probes.  db backs the
// readiness check.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterBookings registers the booking API under /v1.  Every route in
// the group requires a valid access token; limiter runs after
// authentication so buckets can be keyed by user.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	if limiter != nil {
		g.Use(limiter)
	}
	g.POST("/bookings", h.Save)
}
