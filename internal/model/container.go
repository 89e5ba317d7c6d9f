package model

// Container is a shipping container listed on a booking.  The pair
// (ContainerNumber, BookingID) is unique.
type Container struct {
	ID              uint64 `json:"id,omitempty"`
	ContainerNumber string `json:"container_number"`
	BookingID       uint64 `json:"booking_id,omitempty"`
}
