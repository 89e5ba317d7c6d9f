package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/booking-reconciler/internal/model"
	"github.com/iliyamo/booking-reconciler/internal/service"
)

// BookingSaver is the part of service.BookingService the HTTP layer uses.
type BookingSaver interface {
	SaveBooking(ctx context.Context, booking model.Booking) (*service.SaveResult, error)
}

// BookingHandler exposes booking submission over HTTP.  It assumes
// JWTAuth has placed the current user on the request context.
type BookingHandler struct {
	Bookings BookingSaver
	logger   zerolog.Logger
}

// NewBookingHandler constructs a BookingHandler.  bookings must be
// non-nil.
func NewBookingHandler(bookings BookingSaver, logger zerolog.Logger) *BookingHandler {
	if bookings == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: bookings, logger: logger}
}

// Save handles POST /v1/bookings.  The body is a booking document with
// its containers, orders and invoices.
//
//	201 {status:"completed", booking, association}  saved now
//	202 {status:"deferred", booking_number, message_id}  queued for one retry
//	400 malformed JSON or a missing natural key
//	401 no authenticated user
//	503 neither saved nor queued
func (h *BookingHandler) Save(c echo.Context) error {
	var body model.Booking
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	res, err := h.Bookings.SaveBooking(c.Request().Context(), body)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnauthorized):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		case errors.Is(err, model.ErrInvalidBooking):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.Is(err, service.ErrDeferralFailed):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "booking could not be saved, try again later"})
		default:
			h.logger.Error().Err(err).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Str("booking_number", body.BookingNumber).
				Msg("save booking failed")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
	}

	if res.Status == service.StatusDeferred {
		return c.JSON(http.StatusAccepted, echo.Map{
			"status":         res.Status,
			"booking_number": res.Deferred.BookingNumber,
			"message_id":     res.Deferred.MessageID,
		})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"status":      res.Status,
		"booking":     res.Booking,
		"association": res.Association,
	})
}
