package repository

import (
	"context"
	"fmt"

	"github.com/iliyamo/booking-reconciler/internal/model"
)

// OrderContainerRepo manages the order_containers association table.
type OrderContainerRepo struct {
	db DBTX
}

// NewOrderContainerRepo returns an OrderContainerRepo bound to the given handle.
func NewOrderContainerRepo(db DBTX) *OrderContainerRepo { return &OrderContainerRepo{db: db} }

// ExistsByOrderAndContainer reports whether the pair is already linked.
func (r *OrderContainerRepo) ExistsByOrderAndContainer(ctx context.Context, orderID, containerID uint64) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM order_containers WHERE order_id = ? AND container_id = ?)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, orderID, containerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check order container (%d,%d): %w", orderID, containerID, err)
	}
	return exists, nil
}

// Create inserts the association row and sets oc.ID.
func (r *OrderContainerRepo) Create(ctx context.Context, oc *model.OrderContainer) error {
	const q = `INSERT INTO order_containers (order_id, container_id) VALUES (?, ?)`
	res, err := r.db.ExecContext(ctx, q, oc.OrderID, oc.ContainerID)
	if err != nil {
		return translateInsertErr("order container", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert order container: last insert id: %w", err)
	}
	oc.ID = uint64(id)
	return nil
}
