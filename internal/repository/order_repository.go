package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/booking-reconciler/internal/model"
)

// OrderRepo provides lookups and inserts for the orders table.
type OrderRepo struct {
	db DBTX
}

// NewOrderRepo returns an OrderRepo bound to the given handle.
func NewOrderRepo(db DBTX) *OrderRepo { return &OrderRepo{db: db} }

// FindByPurchaseNumberAndBooking returns the order with the given purchase
// number under bookingID, or an error wrapping ErrNotFound.  Invoices are
// not loaded.
func (r *OrderRepo) FindByPurchaseNumberAndBooking(ctx context.Context, number string, bookingID uint64) (*model.Order, error) {
	const q = `SELECT id, purchase_number, booking_id FROM orders WHERE purchase_number = ? AND booking_id = ?`
	var o model.Order
	err := r.db.QueryRowContext(ctx, q, number, bookingID).Scan(&o.ID, &o.PurchaseNumber, &o.BookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("order", number, bookingID)
		}
		return nil, fmt.Errorf("find order %q: %w", number, err)
	}
	return &o, nil
}

// Create inserts the order row and sets o.ID.  Invoices are ignored.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	const q = `INSERT INTO orders (purchase_number, booking_id) VALUES (?, ?)`
	res, err := r.db.ExecContext(ctx, q, o.PurchaseNumber, o.BookingID)
	if err != nil {
		return translateInsertErr("order", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert order: last insert id: %w", err)
	}
	o.ID = uint64(id)
	return nil
}
