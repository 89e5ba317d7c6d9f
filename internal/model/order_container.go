package model

// OrderContainer links an order to a container it ships in.  The
// relationship is many-to-many and the pair (OrderID, ContainerID) is
// unique.
type OrderContainer struct {
	ID          uint64 `json:"id,omitempty"`
	OrderID     uint64 `json:"order_id"`
	ContainerID uint64 `json:"container_id"`
}
