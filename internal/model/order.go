package model

// Order is a purchase order listed on a booking.  The pair
// (PurchaseNumber, BookingID) is unique.  Invoices are owned through
// their order_id column.
type Order struct {
	ID             uint64    `json:"id,omitempty"`
	PurchaseNumber string    `json:"purchase_number"`
	BookingID      uint64    `json:"booking_id,omitempty"`
	Invoices       []Invoice `json:"invoices"`
}
