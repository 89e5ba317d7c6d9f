package model

// Invoice belongs to exactly one order.  No uniqueness is enforced on
// InvoiceNumber beyond the owning order.
type Invoice struct {
	ID            uint64 `json:"id,omitempty"`
	InvoiceNumber string `json:"invoice_number"`
	OrderID       uint64 `json:"order_id,omitempty"`
}
