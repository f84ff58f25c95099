package kafka

import "time"

// EventType определяет тип события заказа.
type EventType string

const (
	// EventTypeOrderCreated публикуется после создания новой корзины.
	EventTypeOrderCreated EventType = "order.created"
	// EventTypeOrderStatusChanged публикуется после смены workflow-статуса.
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	// EventTypeOrderClosed публикуется после выдачи заказа на кассе.
	EventTypeOrderClosed EventType = "order.closed"
)

// Topics для Kafka.
const (
	TopicOrderEvents     = "pos.order.events"
	TopicDeadLetterQueue = "pos.dlq"
)

// OrderEvent представляет событие заказа для внешних потребителей.
type OrderEvent struct {
	EventType     EventType              `json:"event_type"`
	OrderID       string                 `json:"order_id"`
	ClientID      string                 `json:"client_id"`
	Code          string                 `json:"code"`
	Status        string                 `json:"status"`
	SubtotalMinor int64                  `json:"subtotal_minor"`
	Timestamp     time.Time              `json:"timestamp"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создает новое событие заказа.
func NewOrderEvent(eventType EventType, orderID, clientID, code, status string, subtotalMinor int64, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType:     eventType,
		OrderID:       orderID,
		ClientID:      clientID,
		Code:          code,
		Status:        status,
		SubtotalMinor: subtotalMinor,
		Timestamp:     time.Now().UTC(),
		Metadata:      metadata,
	}
}
