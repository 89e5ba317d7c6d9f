package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/booking-reconciler/internal/model"
)

// BookingRepo provides lookups and inserts for the bookings table.
type BookingRepo struct {
	db DBTX
}

// NewBookingRepo returns a BookingRepo bound to the given handle.
func NewBookingRepo(db DBTX) *BookingRepo { return &BookingRepo{db: db} }

// FindByNumberAndUser returns the booking owned by userID with the given
// booking number.  Child collections are not loaded.  It returns an error
// wrapping ErrNotFound when no row matches.
func (r *BookingRepo) FindByNumberAndUser(ctx context.Context, number string, userID uint64) (*model.Booking, error) {
	const q = `SELECT id, booking_number, user_id FROM bookings WHERE booking_number = ? AND user_id = ?`
	var b model.Booking
	err := r.db.QueryRowContext(ctx, q, number, userID).Scan(&b.ID, &b.BookingNumber, &b.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("booking", number, userID)
		}
		return nil, fmt.Errorf("find booking %q: %w", number, err)
	}
	return &b, nil
}

// Create inserts the booking row and sets b.ID to the generated key.
// Containers and orders are ignored; they are persisted by their own
// repositories.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings (booking_number, user_id) VALUES (?, ?)`
	res, err := r.db.ExecContext(ctx, q, b.BookingNumber, b.UserID)
	if err != nil {
		return translateInsertErr("booking", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert booking: last insert id: %w", err)
	}
	b.ID = uint64(id)
	return nil
}
