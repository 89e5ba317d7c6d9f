package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/booking-reconciler/internal/model"
)

// Tx is the storage surface of one unit of work.  Every Find method
// returns an error wrapping ErrNotFound when nothing matches; every Create
// method assigns the generated id to its argument or returns an error
// (wrapping ErrConflict on a unique index collision).
type Tx interface {
	FindBooking(ctx context.Context, number string, userID uint64) (*model.Booking, error)
	CreateBooking(ctx context.Context, b *model.Booking) error
	FindContainer(ctx context.Context, number string, bookingID uint64) (*model.Container, error)
	CreateContainer(ctx context.Context, c *model.Container) error
	FindOrder(ctx context.Context, number string, bookingID uint64) (*model.Order, error)
	CreateOrder(ctx context.Context, o *model.Order) error
	FindInvoice(ctx context.Context, number string, orderID uint64) (*model.Invoice, error)
	CreateInvoice(ctx context.Context, inv *model.Invoice) error
	OrderContainerExists(ctx context.Context, orderID, containerID uint64) (bool, error)
	CreateOrderContainer(ctx context.Context, oc *model.OrderContainer) error
}

// Repos bundles the repositories bound to a single handle.  It implements
// Tx by delegating to the individual repositories.
type Repos struct {
	Bookings        *BookingRepo
	Containers      *ContainerRepo
	Orders          *OrderRepo
	Invoices        *InvoiceRepo
	OrderContainers *OrderContainerRepo
}

// NewRepos binds every repository to db.
func NewRepos(db DBTX) Repos {
	return Repos{
		Bookings:        NewBookingRepo(db),
		Containers:      NewContainerRepo(db),
		Orders:          NewOrderRepo(db),
		Invoices:        NewInvoiceRepo(db),
		OrderContainers: NewOrderContainerRepo(db),
	}
}

func (r Repos) FindBooking(ctx context.Context, number string, userID uint64) (*model.Booking, error) {
	return r.Bookings.FindByNumberAndUser(ctx, number, userID)
}

func (r Repos) CreateBooking(ctx context.Context, b *model.Booking) error {
	return r.Bookings.Create(ctx, b)
}

func (r Repos) FindContainer(ctx context.Context, number string, bookingID uint64) (*model.Container, error) {
	return r.Containers.FindByNumberAndBooking(ctx, number, bookingID)
}

func (r Repos) CreateContainer(ctx context.Context, c *model.Container) error {
	return r.Containers.Create(ctx, c)
}

func (r Repos) FindOrder(ctx context.Context, number string, bookingID uint64) (*model.Order, error) {
	return r.Orders.FindByPurchaseNumberAndBooking(ctx, number, bookingID)
}

func (r Repos) CreateOrder(ctx context.Context, o *model.Order) error {
	return r.Orders.Create(ctx, o)
}

func (r Repos) FindInvoice(ctx context.Context, number string, orderID uint64) (*model.Invoice, error) {
	return r.Invoices.FindByNumberAndOrder(ctx, number, orderID)
}

func (r Repos) CreateInvoice(ctx context.Context, inv *model.Invoice) error {
	return r.Invoices.Create(ctx, inv)
}

func (r Repos) OrderContainerExists(ctx context.Context, orderID, containerID uint64) (bool, error) {
	return r.OrderContainers.ExistsByOrderAndContainer(ctx, orderID, containerID)
}

func (r Repos) CreateOrderContainer(ctx context.Context, oc *model.OrderContainer) error {
	return r.OrderContainers.Create(ctx, oc)
}

// Store owns the connection pool and runs units of work.
type Store struct {
	db     *sql.DB
	txOpts *sql.TxOptions
}

// NewStore wraps db.  txOpts is passed to BeginTx for every unit of work
// and may be nil.
func NewStore(db *sql.DB, txOpts *sql.TxOptions) *Store {
	return &Store{db: db, txOpts: txOpts}
}

// DB returns the underlying pool.
func (s *Store) DB() *sql.DB { return s.db }

// WithinTx runs fn inside a transaction.  The transaction is committed when
// fn returns nil and rolled back otherwise, including when fn panics.
func (s *Store) WithinTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, s.txOpts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(NewRepos(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}
