package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/booking-reconciler/internal/model"
)

const releaseTimeout = 5 * time.Second

// Reprocessor runs the reconciliation pipeline for a deferred booking
// without deferring it again.
type Reprocessor interface {
	ReprocessBooking(ctx context.Context, userID uint64, booking model.Booking) (*model.Booking, error)
}

// RetryConsumer gives each deferred booking exactly one more attempt.
// A failed retry is logged and dropped, undecodable payloads are logged
// and dropped, and redeliveries of an already claimed message are
// skipped.  An attempt cut short by consumer shutdown does not count: the
// claim is released and the delivery is handed back to the transport.
type RetryConsumer struct {
	processor Reprocessor
	claimer   Claimer
	logger    zerolog.Logger
}

// NewRetryConsumer builds a consumer.  claimer may be nil to disable the
// redelivery guard.
func NewRetryConsumer(processor Reprocessor, claimer Claimer, logger zerolog.Logger) *RetryConsumer {
	if claimer == nil {
		claimer = (*RedisClaimer)(nil)
	}
	return &RetryConsumer{processor: processor, claimer: claimer, logger: logger}
}

// Run subscribes to topic and handles deliveries until ctx is cancelled.
func (c *RetryConsumer) Run(ctx context.Context, sub Subscriber, topic, group string) error {
	c.logger.Info().Str("topic", topic).Str("group", group).Msg("retry consumer started")
	err := sub.Subscribe(ctx, topic, group, c.Handle)
	c.logger.Info().Str("topic", topic).Msg("retry consumer stopped")
	return err
}

// Handle processes one delivery.  It returns nil, so the transport
// acknowledges the message, unless ctx ended before the attempt finished;
// the transport then leaves the message for redelivery.
func (c *RetryConsumer) Handle(ctx context.Context, msg Message) error {
	var ev DeferredBooking
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("dropping undecodable deferred booking")
		return nil
	}
	if ev.MessageID == "" {
		ev.MessageID = msg.ID
	}
	log := c.logger.With().
		Str("message_id", ev.MessageID).
		Str("booking_number", ev.Booking.BookingNumber).
		Uint64("user_id", ev.UserID).
		Logger()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("deferred booking %s not attempted: %w", ev.MessageID, err)
	}

	claimed, err := c.claimer.Claim(ctx, ev.MessageID)
	if err != nil {
		// Without the guard a redelivery may run twice; resolvers keep that idempotent.
		log.Warn().Err(err).Msg("redelivery guard unavailable")
		claimed = true
	}
	if !claimed {
		log.Info().Msg("deferred booking already processed, skipping")
		return nil
	}

	saved, err := c.processor.ReprocessBooking(ctx, ev.UserID, ev.Booking)
	if err != nil {
		if ctx.Err() != nil {
			c.release(ctx, log, ev.MessageID)
			log.Warn().Err(err).Msg("deferred booking interrupted by shutdown, leaving for redelivery")
			return fmt.Errorf("deferred booking %s interrupted: %w", ev.MessageID, err)
		}
		log.Error().Err(err).Str("reason", ev.Reason).Msg("deferred booking failed again, dropping")
		return nil
	}
	log.Info().Uint64("booking_id", saved.ID).Msg("deferred booking reprocessed")
	return nil
}

func (c *RetryConsumer) release(ctx context.Context, log zerolog.Logger, messageID string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := c.claimer.Release(rctx, messageID); err != nil {
		log.Error().Err(err).Msg("release claim failed, redelivery will be skipped until it expires")
	}
}
