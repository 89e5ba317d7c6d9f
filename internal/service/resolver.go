package service

import (
	"context"
	"errors"

	"github.com/iliyamo/booking-reconciler/internal/model"
	"github.com/iliyamo/booking-reconciler/internal/repository"
)

// errNoIdentity reports a save that returned without assigning an id.
var errNoIdentity = errors.New("save returned no identity")

// resolver implements find-or-create for one entity kind.  The lookup is
// keyed by (natural key, parent id).  An existing row is returned as
// stored and the candidate's fields are discarded.  Otherwise a copy of
// the candidate with the parent attached is saved and returned.  The
// candidate itself is never modified.
type resolver[T any] struct {
	kind   string
	keyOf  func(*T) string
	idOf   func(*T) uint64
	attach func(entity *T, parentID uint64)
	find   func(ctx context.Context, tx repository.Tx, key string, parentID uint64) (*T, error)
	save   func(ctx context.Context, tx repository.Tx, entity *T) error
}

func (r resolver[T]) resolve(ctx context.Context, tx repository.Tx, candidate *T, parentID uint64) (*T, error) {
	key := r.keyOf(candidate)

	existing, err := r.find(ctx, tx, key, parentID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, &PersistenceError{Step: "find " + r.kind, Key: key, Err: err}
	}

	fresh := *candidate
	r.attach(&fresh, parentID)
	if err := r.save(ctx, tx, &fresh); err != nil {
		// A concurrent request created the same natural key first; its row wins.
		if errors.Is(err, repository.ErrConflict) {
			if winner, ferr := r.find(ctx, tx, key, parentID); ferr == nil {
				return winner, nil
			}
		}
		return nil, &PersistenceError{Step: "save " + r.kind, Key: key, Err: err}
	}
	if r.idOf(&fresh) == 0 {
		return nil, &PersistenceError{Step: "save " + r.kind, Key: key, Err: errNoIdentity}
	}
	return &fresh, nil
}

var bookingResolver = resolver[model.Booking]{
	kind:  "booking",
	keyOf: func(b *model.Booking) string { return b.BookingNumber },
	idOf:  func(b *model.Booking) uint64 { return b.ID },
	attach: func(b *model.Booking, userID uint64) {
		b.ID = 0
		b.UserID = userID
		b.Containers = nil
		b.Orders = nil
	},
	find: func(ctx context.Context, tx repository.Tx, key string, userID uint64) (*model.Booking, error) {
		return tx.FindBooking(ctx, key, userID)
	},
	save: func(ctx context.Context, tx repository.Tx, b *model.Booking) error {
		return tx.CreateBooking(ctx, b)
	},
}

var containerResolver = resolver[model.Container]{
	kind:  "container",
	keyOf: func(c *model.Container) string { return c.ContainerNumber },
	idOf:  func(c *model.Container) uint64 { return c.ID },
	attach: func(c *model.Container, bookingID uint64) {
		c.ID = 0
		c.BookingID = bookingID
	},
	find: func(ctx context.Context, tx repository.Tx, key string, bookingID uint64) (*model.Container, error) {
		return tx.FindContainer(ctx, key, bookingID)
	},
	save: func(ctx context.Context, tx repository.Tx, c *model.Container) error {
		return tx.CreateContainer(ctx, c)
	},
}

var orderResolver = resolver[model.Order]{
	kind:  "order",
	keyOf: func(o *model.Order) string { return o.PurchaseNumber },
	idOf:  func(o *model.Order) uint64 { return o.ID },
	attach: func(o *model.Order, bookingID uint64) {
		o.ID = 0
		o.BookingID = bookingID
		o.Invoices = nil
	},
	find: func(ctx context.Context, tx repository.Tx, key string, bookingID uint64) (*model.Order, error) {
		return tx.FindOrder(ctx, key, bookingID)
	},
	save: func(ctx context.Context, tx repository.Tx, o *model.Order) error {
		return tx.CreateOrder(ctx, o)
	},
}

var invoiceResolver = resolver[model.Invoice]{
	kind:  "invoice",
	keyOf: func(inv *model.Invoice) string { return inv.InvoiceNumber },
	idOf:  func(inv *model.Invoice) uint64 { return inv.ID },
	attach: func(inv *model.Invoice, orderID uint64) {
		inv.ID = 0
		inv.OrderID = orderID
	},
	find: func(ctx context.Context, tx repository.Tx, key string, orderID uint64) (*model.Invoice, error) {
		return tx.FindInvoice(ctx, key, orderID)
	},
	save: func(ctx context.Context, tx repository.Tx, inv *model.Invoice) error {
		return tx.CreateInvoice(ctx, inv)
	},
}
