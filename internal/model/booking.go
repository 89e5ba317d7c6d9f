package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidBooking is returned by Validate when a submitted booking is
// missing one of its natural keys.
var ErrInvalidBooking = errors.New("invalid booking")

// Booking is the root of a submitted booking document.  It owns its
// containers and orders by foreign key: the booking_id columns of the
// child tables point back at ID.  The pair (BookingNumber, UserID) is
// unique, so resubmitting the same booking number under the same owner
// always resolves to the same row.
//
// Fields:
//
//	ID            – bookings.id, zero until persisted.
//	BookingNumber – natural key supplied by the client.
//	UserID        – owner resolved from the authenticated identity.
//	Containers    – containers in submission order.
//	Orders        – purchase orders in submission order.
type Booking struct {
	ID            uint64      `json:"id,omitempty"`
	BookingNumber string      `json:"booking_number"`
	UserID        uint64      `json:"user_id,omitempty"`
	Containers    []Container `json:"containers"`
	Orders        []Order     `json:"orders"`
}

// Validate checks that every natural key in the document is present.
// Whitespace-only keys count as missing.  The returned error wraps
// ErrInvalidBooking and names the first offending field.
func (b Booking) Validate() error {
	if strings.TrimSpace(b.BookingNumber) == "" {
		return fmt.Errorf("%w: booking_number is required", ErrInvalidBooking)
	}
	for i, c := range b.Containers {
		if strings.TrimSpace(c.ContainerNumber) == "" {
			return fmt.Errorf("%w: containers[%d].container_number is required", ErrInvalidBooking, i)
		}
	}
	for i, o := range b.Orders {
		if strings.TrimSpace(o.PurchaseNumber) == "" {
			return fmt.Errorf("%w: orders[%d].purchase_number is required", ErrInvalidBooking, i)
		}
		for j, inv := range o.Invoices {
			if strings.TrimSpace(inv.InvoiceNumber) == "" {
				return fmt.Errorf("%w: orders[%d].invoices[%d].invoice_number is required", ErrInvalidBooking, i, j)
			}
		}
	}
	return nil
}
