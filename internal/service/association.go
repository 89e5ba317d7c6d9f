package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iliyamo/booking-reconciler/internal/model"
	"github.com/iliyamo/booking-reconciler/internal/repository"
)

// AssociationOutcome names the rule the association engine applied.
type AssociationOutcome string

const (
	// AssociationFanOut links the single order to every container.
	AssociationFanOut AssociationOutcome = "fan_out"
	// AssociationFanIn links every order to the single container.
	AssociationFanIn AssociationOutcome = "fan_in"
	// AssociationAmbiguous means no rule matched and nothing was linked.
	AssociationAmbiguous AssociationOutcome = "ambiguous"
	// AssociationEmpty means the booking has neither orders nor containers.
	AssociationEmpty AssociationOutcome = "empty"
)

// AssociationResult reports what one Associate call did.  Existing counts
// candidate pairs that were already linked and therefore skipped.
type AssociationResult struct {
	Outcome  AssociationOutcome `json:"outcome"`
	Created  int                `json:"created"`
	Existing int                `json:"existing"`
}

// classify picks the association rule from the cardinality of one
// submission.  One order with one container is treated as fan-out.
func classify(orders, containers int) AssociationOutcome {
	switch {
	case orders == 0 && containers == 0:
		return AssociationEmpty
	case orders == 1 && containers >= 1:
		return AssociationFanOut
	case containers == 1 && orders >= 1:
		return AssociationFanIn
	default:
		return AssociationAmbiguous
	}
}

// Associator infers order/container links for a booking.  The payload
// does not say which orders ship in which containers, so links are only
// created when one side has exactly one element.
type Associator struct {
	logger zerolog.Logger
}

// NewAssociator returns an Associator that reports ambiguous bookings on
// logger.
func NewAssociator(logger zerolog.Logger) *Associator {
	return &Associator{logger: logger}
}

// Associate links the resolved orders and containers of one booking.
// Each candidate pair is checked for an existing link before it is
// inserted, so repeated calls with the same input create no duplicates.
// An ambiguous cardinality is not an error: it is logged and returned as
// AssociationAmbiguous with nothing created.
func (a *Associator) Associate(ctx context.Context, tx repository.Tx, orders []model.Order, containers []model.Container, bookingLabel string) (AssociationResult, error) {
	res := AssociationResult{Outcome: classify(len(orders), len(containers))}

	var pairs [][2]uint64
	switch res.Outcome {
	case AssociationEmpty:
		a.logger.Debug().Str("booking_number", bookingLabel).Msg("booking has no orders or containers to associate")
		return res, nil
	case AssociationAmbiguous:
		a.logger.Warn().
			Str("booking_number", bookingLabel).
			Int("orders", len(orders)).
			Int("containers", len(containers)).
			Msg("ambiguous order/container association, skipping")
		return res, nil
	case AssociationFanOut:
		for _, c := range containers {
			pairs = append(pairs, [2]uint64{orders[0].ID, c.ID})
		}
	case AssociationFanIn:
		for _, o := range orders {
			pairs = append(pairs, [2]uint64{o.ID, containers[0].ID})
		}
	}

	for _, p := range pairs {
		created, err := a.link(ctx, tx, p[0], p[1])
		if err != nil {
			return res, err
		}
		if created {
			res.Created++
		} else {
			res.Existing++
		}
	}

	a.logger.Debug().
		Str("booking_number", bookingLabel).
		Str("outcome", string(res.Outcome)).
		Int("created", res.Created).
		Int("existing", res.Existing).
		Msg("orders associated with containers")
	return res, nil
}

// link inserts the pair unless it already exists.  It reports whether a
// row was created.
func (a *Associator) link(ctx context.Context, tx repository.Tx, orderID, containerID uint64) (bool, error) {
	key := fmt.Sprintf("%d/%d", orderID, containerID)
	exists, err := tx.OrderContainerExists(ctx, orderID, containerID)
	if err != nil {
		return false, &PersistenceError{Step: "check order container", Key: key, Err: err}
	}
	if exists {
		return false, nil
	}
	oc := &model.OrderContainer{OrderID: orderID, ContainerID: containerID}
	if err := tx.CreateOrderContainer(ctx, oc); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return false, nil
		}
		return false, &PersistenceError{Step: "save order container", Key: key, Err: err}
	}
	if oc.ID == 0 {
		return false, &PersistenceError{Step: "save order container", Key: key, Err: errNoIdentity}
	}
	return true, nil
}
