package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBooking_Validate(t *testing.T) {
	testCases := map[string]struct {
		booking       Booking
		expectedError string
	}{
		"should accept a complete booking": {
			booking: Booking{
				BookingNumber: "BK-1",
				Containers:    []Container{{ContainerNumber: "C-1"}},
				Orders:        []Order{{PurchaseNumber: "PO-1", Invoices: []Invoice{{InvoiceNumber: "INV-1"}}}},
			},
		},
		"should accept a booking without children": {
			booking: Booking{BookingNumber: "BK-1"},
		},
		"should reject a blank booking number": {
			booking:       Booking{BookingNumber: "  "},
			expectedError: "booking_number is required",
		},
		"should reject a container without number": {
			booking: Booking{
				BookingNumber: "BK-1",
				Containers:    []Container{{ContainerNumber: "C-1"}, {}},
			},
			expectedError: "containers[1].container_number is required",
		},
		"should reject an order without purchase number": {
			booking: Booking{
				BookingNumber: "BK-1",
				Orders:        []Order{{}},
			},
			expectedError: "orders[0].purchase_number is required",
		},
		"should reject an invoice without number": {
			booking: Booking{
				BookingNumber: "BK-1",
				Orders:        []Order{{PurchaseNumber: "PO-1", Invoices: []Invoice{{InvoiceNumber: "INV-1"}, {}}}},
			},
			expectedError: "orders[0].invoices[1].invoice_number is required",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			err := tc.booking.Validate()

			if tc.expectedError == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidBooking)
			assert.Contains(t, err.Error(), tc.expectedError)
		})
	}
}
