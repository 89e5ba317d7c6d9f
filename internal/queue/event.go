package queue

import (
	"time"

	"github.com/iliyamo/booking-reconciler/internal/model"
)

// DeferredBooking is published when a booking submission could not be
// persisted synchronously.  It carries the submitting user explicitly
// because the retry consumer runs outside any HTTP request, and the
// booking exactly as it was submitted.
type DeferredBooking struct {
	MessageID  string        `json:"message_id"`
	UserID     uint64        `json:"user_id"`
	Booking    model.Booking `json:"booking"`
	Reason     string        `json:"reason,omitempty"`
	DeferredAt time.Time     `json:"deferred_at"`
}
