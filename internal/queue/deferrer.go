package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iliyamo/booking-reconciler/internal/model"
)

// Deferrer publishes failed booking submissions for a later retry.
type Deferrer struct {
	pub    Publisher
	topic  string
	logger zerolog.Logger
}

// NewDeferrer returns a Deferrer publishing on topic.
func NewDeferrer(pub Publisher, topic string, logger zerolog.Logger) *Deferrer {
	return &Deferrer{pub: pub, topic: topic, logger: logger}
}

// DeferBooking wraps booking in a DeferredBooking envelope under a new
// message id and publishes it.  The id is returned so the caller can
// report it to the client.
func (d *Deferrer) DeferBooking(ctx context.Context, userID uint64, booking model.Booking, reason string) (string, error) {
	ev := DeferredBooking{
		MessageID:  uuid.NewString(),
		UserID:     userID,
		Booking:    booking,
		Reason:     reason,
		DeferredAt: time.Now().UTC(),
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("marshal deferred booking: %w", err)
	}
	if err := d.pub.Publish(ctx, d.topic, ev.MessageID, body); err != nil {
		return "", fmt.Errorf("publish deferred booking: %w", err)
	}

	d.logger.Info().
		Str("message_id", ev.MessageID).
		Str("topic", d.topic).
		Str("booking_number", booking.BookingNumber).
		Uint64("user_id", userID).
		Msg("booking deferred")
	return ev.MessageID, nil
}
