package enums

// OrderEventType names the domain events published after an order commit.
type OrderEventType string

const (
	OrderEventPlaced        OrderEventType = "order.placed"
	OrderEventConfirmed     OrderEventType = "order.confirmed"
	OrderEventCancelled     OrderEventType = "order.cancelled"
	OrderEventStatusChanged OrderEventType = "order.status_changed"
)

func (e OrderEventType) String() string {
	return string(e)
}
