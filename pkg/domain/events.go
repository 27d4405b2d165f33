package domain

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderCancelled     = "OrderCancelled"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventPaymentSucceeded   = "PaymentSucceeded"
	EventPaymentRefunded    = "PaymentRefunded"
)

// EventEnvelope is the wire shape of every message relayed from an outbox table.
// EventID is stamped by the outbox worker when the message is published.
type EventEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	EventID int64           `json:"event_id"`
}

type OrderItem struct {
	Sku       string `json:"sku"`
	Quantity  int32  `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type OrderCreatedEvent struct {
	OrderNumber string      `json:"order_number"`
	UserID      string      `json:"user_id"`
	TotalAmount int64       `json:"total_amount"`
	Items       []OrderItem `json:"items"`
	CreatedAt   time.Time   `json:"created_at"`
}

type OrderCancelledEvent struct {
	OrderNumber      string      `json:"order_number"`
	ReservationToken string      `json:"reservation_token"`
	Items            []OrderItem `json:"items"`
	CancelledAt      time.Time   `json:"cancelled_at"`
}

type OrderStatusChangedEvent struct {
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	ChangedAt   time.Time `json:"changed_at"`
}

type PaymentSucceededEvent struct {
	OrderNumber   string    `json:"order_number"`
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	PaidAt        time.Time `json:"paid_at"`
}

type PaymentRefundedEvent struct {
	OrderNumber   string    `json:"order_number"`
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	RefundedAt    time.Time `json:"refunded_at"`
}
