// Package service holds the booking reconciliation engine: entity
// resolvers, the order/container association heuristic and the
// orchestrator that runs them as one unit of work and defers failed
// submissions to the retry queue.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iliyamo/booking-reconciler/internal/model"
	"github.com/iliyamo/booking-reconciler/internal/repository"
)

// Storage runs a unit of work against the booking tables.
type Storage interface {
	WithinTx(ctx context.Context, fn func(repository.Tx) error) error
}

// IdentityProvider resolves the user a submission is made on behalf of.
type IdentityProvider interface {
	CurrentUserID(ctx context.Context) (uint64, error)
}

// Deferrer hands a failed submission to the retry queue and returns the
// id of the published message.
type Deferrer interface {
	DeferBooking(ctx context.Context, userID uint64, booking model.Booking, reason string) (string, error)
}

// SaveStatus tells the caller whether a submission was persisted now or
// accepted for asynchronous reprocessing.
type SaveStatus string

const (
	StatusCompleted SaveStatus = "completed"
	StatusDeferred  SaveStatus = "deferred"
)

// DeferredAccepted identifies a submission queued for a retry.
type DeferredAccepted struct {
	BookingNumber string `json:"booking_number"`
	MessageID     string `json:"message_id"`
}

// SaveResult is the outcome of SaveBooking.  Booking and Association are
// set when Status is StatusCompleted, Deferred when it is StatusDeferred.
type SaveResult struct {
	Status      SaveStatus         `json:"status"`
	Booking     *model.Booking     `json:"booking,omitempty"`
	Association *AssociationResult `json:"association,omitempty"`
	Deferred    *DeferredAccepted  `json:"deferred,omitempty"`
}

// BookingService reconciles submitted bookings with stored state.
type BookingService struct {
	storage    Storage
	identity   IdentityProvider
	deferrer   Deferrer
	associator *Associator
	logger     zerolog.Logger
}

// NewBookingService wires the orchestrator.  All dependencies must be
// non-nil.
func NewBookingService(storage Storage, identity IdentityProvider, deferrer Deferrer, logger zerolog.Logger) *BookingService {
	if storage == nil || identity == nil || deferrer == nil {
		panic("nil dependency passed to NewBookingService")
	}
	return &BookingService{
		storage:    storage,
		identity:   identity,
		deferrer:   deferrer,
		associator: NewAssociator(logger),
		logger:     logger,
	}
}

// SaveBooking persists a submitted booking for the current user.
//
// The booking, its containers, its orders and their invoices are resolved
// with find-or-create and the orders are associated with containers, all
// inside one transaction.  Resubmitting the same payload resolves to the
// same rows.  When any storage step fails the transaction is rolled back
// and the unmodified payload is published for one asynchronous retry; the
// result then has StatusDeferred and no error is returned.
//
// ErrUnauthorized is returned before any storage access when no user is
// authenticated.  model.ErrInvalidBooking is returned for payloads with
// missing natural keys.  ErrDeferralFailed is returned when the retry
// queue rejects the payload as well.
func (s *BookingService) SaveBooking(ctx context.Context, booking model.Booking) (*SaveResult, error) {
	userID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if err := booking.Validate(); err != nil {
		return nil, err
	}

	saved, assoc, err := s.reconcile(ctx, userID, booking)
	if err == nil {
		s.logger.Info().
			Uint64("booking_id", saved.ID).
			Str("booking_number", saved.BookingNumber).
			Uint64("user_id", userID).
			Str("association", string(assoc.Outcome)).
			Msg("booking saved")
		return &SaveResult{Status: StatusCompleted, Booking: saved, Association: &assoc}, nil
	}

	s.logger.Warn().Err(err).
		Str("booking_number", booking.BookingNumber).
		Uint64("user_id", userID).
		Msg("booking save failed, deferring")

	// The client may already be gone; the retry must still be queued.
	msgID, derr := s.deferrer.DeferBooking(context.WithoutCancel(ctx), userID, booking, err.Error())
	if derr != nil {
		s.logger.Error().Err(derr).
			Str("booking_number", booking.BookingNumber).
			Uint64("user_id", userID).
			Msg("booking could not be deferred")
		return nil, fmt.Errorf("%w: %w (save: %w)", ErrDeferralFailed, derr, err)
	}

	return &SaveResult{
		Status:   StatusDeferred,
		Deferred: &DeferredAccepted{BookingNumber: booking.BookingNumber, MessageID: msgID},
	}, nil
}

// ReprocessBooking is the retry path for a deferred submission.  It runs
// the same reconciliation as SaveBooking for the user recorded in the
// deferred message but never defers again: a failure is returned wrapped
// in ErrDeferredProcessing.
func (s *BookingService) ReprocessBooking(ctx context.Context, userID uint64, booking model.Booking) (*model.Booking, error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: %w: deferred message has no user", ErrDeferredProcessing, ErrUnauthorized)
	}
	if err := booking.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeferredProcessing, err)
	}

	saved, assoc, err := s.reconcile(ctx, userID, booking)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeferredProcessing, err)
	}

	s.logger.Info().
		Uint64("booking_id", saved.ID).
		Str("booking_number", saved.BookingNumber).
		Uint64("user_id", userID).
		Str("association", string(assoc.Outcome)).
		Msg("deferred booking saved")
	return saved, nil
}

// reconcile resolves the whole booking tree and its associations in one
// transaction and returns the reassembled booking.
func (s *BookingService) reconcile(ctx context.Context, userID uint64, booking model.Booking) (*model.Booking, AssociationResult, error) {
	var (
		out   *model.Booking
		assoc AssociationResult
	)
	err := s.storage.WithinTx(ctx, func(tx repository.Tx) error {
		b, err := bookingResolver.resolve(ctx, tx, &booking, userID)
		if err != nil {
			return err
		}

		containers := make([]model.Container, 0, len(booking.Containers))
		for i := range booking.Containers {
			c, err := containerResolver.resolve(ctx, tx, &booking.Containers[i], b.ID)
			if err != nil {
				return err
			}
			containers = append(containers, *c)
		}

		orders := make([]model.Order, 0, len(booking.Orders))
		for i := range booking.Orders {
			o, err := orderResolver.resolve(ctx, tx, &booking.Orders[i], b.ID)
			if err != nil {
				return err
			}
			invoices := make([]model.Invoice, 0, len(booking.Orders[i].Invoices))
			for j := range booking.Orders[i].Invoices {
				inv, err := invoiceResolver.resolve(ctx, tx, &booking.Orders[i].Invoices[j], o.ID)
				if err != nil {
					return err
				}
				invoices = append(invoices, *inv)
			}
			o.Invoices = invoices
			orders = append(orders, *o)
		}

		assoc, err = s.associator.Associate(ctx, tx, orders, containers, booking.BookingNumber)
		if err != nil {
			return err
		}

		result := *b
		result.Containers = containers
		result.Orders = orders
		out = &result
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrPersistence) {
			err = &PersistenceError{Step: "unit of work", Err: err}
		}
		return nil, AssociationResult{}, err
	}
	return out, assoc, nil
}
