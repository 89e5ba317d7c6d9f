package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/booking-reconciler/internal/model"
)

// ContainerRepo provides lookups and inserts for the containers table.
type ContainerRepo struct {
	db DBTX
}

// NewContainerRepo returns a ContainerRepo bound to the given handle.
func NewContainerRepo(db DBTX) *ContainerRepo { return &ContainerRepo{db: db} }

// FindByNumberAndBooking returns the container with the given number
// under bookingID, or an error wrapping ErrNotFound.
func (r *ContainerRepo) FindByNumberAndBooking(ctx context.Context, number string, bookingID uint64) (*model.Container, error) {
	const q = `SELECT id, container_number, booking_id FROM containers WHERE container_number = ? AND booking_id = ?`
	var c model.Container
	err := r.db.QueryRowContext(ctx, q, number, bookingID).Scan(&c.ID, &c.ContainerNumber, &c.BookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("container", number, bookingID)
		}
		return nil, fmt.Errorf("find container %q: %w", number, err)
	}
	return &c, nil
}

// Create inserts the container and sets c.ID.
func (r *ContainerRepo) Create(ctx context.Context, c *model.Container) error {
	const q = `INSERT INTO containers (container_number, booking_id) VALUES (?, ?)`
	res, err := r.db.ExecContext(ctx, q, c.ContainerNumber, c.BookingID)
	if err != nil {
		return translateInsertErr("container", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert container: last insert id: %w", err)
	}
	c.ID = uint64(id)
	return nil
}
