package kafka

import "time"

const (
	TopicOrderStatusChanged = `order-service.status-changed`

	ConsumerGroupNotifications = `notification-consumer`
)

// OrderStatusChangedEvent is published every time an order transitions to a
// new status. Consumers deliver notifications from it; the order update
// itself never waits on them.
type OrderStatusChangedEvent struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}
