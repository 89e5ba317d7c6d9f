package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/booking-reconciler/internal/model"
)

// InvoiceRepo provides lookups and inserts for the invoices table.
type InvoiceRepo struct {
	db DBTX
}

// NewInvoiceRepo returns an InvoiceRepo bound to the given handle.
func NewInvoiceRepo(db DBTX) *InvoiceRepo { return &InvoiceRepo{db: db} }

// FindByNumberAndOrder returns the oldest invoice with the given number
// under orderID.  Invoice numbers are not unique per order, so when
// several rows share a number the lowest id wins.
func (r *InvoiceRepo) FindByNumberAndOrder(ctx context.Context, number string, orderID uint64) (*model.Invoice, error) {
	const q = `SELECT id, invoice_number, order_id FROM invoices WHERE invoice_number = ? AND order_id = ? ORDER BY id LIMIT 1`
	var inv model.Invoice
	err := r.db.QueryRowContext(ctx, q, number, orderID).Scan(&inv.ID, &inv.InvoiceNumber, &inv.OrderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("invoice", number, orderID)
		}
		return nil, fmt.Errorf("find invoice %q: %w", number, err)
	}
	return &inv, nil
}

// Create inserts the invoice and sets inv.ID.
func (r *InvoiceRepo) Create(ctx context.Context, inv *model.Invoice) error {
	const q = `INSERT INTO invoices (invoice_number, order_id) VALUES (?, ?)`
	res, err := r.db.ExecContext(ctx, q, inv.InvoiceNumber, inv.OrderID)
	if err != nil {
		return translateInsertErr("invoice", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert invoice: last insert id: %w", err)
	}
	inv.ID = uint64(id)
	return nil
}
