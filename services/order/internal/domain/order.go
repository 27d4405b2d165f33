package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
)

const (
	AnonymousUser   = "anonymous"
	orderNumberSize = 8
)

var cancellableFrom = []OrderStatus{OrderStatusPending, OrderStatusPaid}

func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))

	switch status {
	case OrderStatusPending, OrderStatusPaid, OrderStatusCancelled, OrderStatusShipped, OrderStatusDelivered:
		return status, nil
	default:
		return "", fmt.Errorf("%w: unknown order status %q", ErrInvalidRequest, raw)
	}
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusDelivered
}

func (s OrderStatus) CanCancel() bool {
	for _, from := range cancellableFrom {
		if s == from {
			return true
		}
	}

	return false
}

// CancellableStatuses lists the statuses a cancel may move away from.
func CancellableStatuses() []OrderStatus {
	return append([]OrderStatus(nil), cancellableFrom...)
}

type Order struct {
	ID               int64       `db:"id"`
	OrderNumber      string      `db:"order_number"`
	UserID           string      `db:"user_id"`
	Status           OrderStatus `db:"status"`
	TotalAmount      int64       `db:"total_amount"`
	ShippingAddress  string      `db:"shipping_address"`
	ReservationToken string      `db:"reservation_token"`
	Items            []LineItem  `db:"items"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type LineItem struct {
	ID        int64  `db:"id"`
	OrderID   int64  `db:"order_id"`
	Sku       string `db:"sku"`
	Quantity  int32  `db:"quantity"`
	UnitPrice int64  `db:"unit_price"`
	Subtotal  int64  `db:"subtotal"`
}

// NewOrder starts a pending order with a fresh order number and reservation token.
func NewOrder(userID, shippingAddress string) *Order {
	if strings.TrimSpace(userID) == "" {
		userID = AnonymousUser
	}

	return &Order{
		OrderNumber:      NewOrderNumber(),
		UserID:           userID,
		Status:           OrderStatusPending,
		ShippingAddress:  shippingAddress,
		ReservationToken: uuid.NewString(),
	}
}

func NewOrderNumber() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:orderNumberSize])
}

func NewLineItem(sku string, quantity int32, unitPrice int64) LineItem {
	return LineItem{
		Sku:       sku,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Subtotal:  unitPrice * int64(quantity),
	}
}

func (o *Order) AddLineItem(item LineItem) {
	o.Items = append(o.Items, item)
	o.CalculateTotal()
}

func (o *Order) CalculateTotal() {
	var total int64
	for _, item := range o.Items {
		total += item.Subtotal
	}
	o.TotalAmount = total
}

// Validate checks the aggregate invariants that must hold before the order is persisted.
func (o *Order) Validate() error {
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: order must have at least one item", ErrInvalidRequest)
	}

	var total int64
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: quantity for %s must be positive", ErrInvalidRequest, item.Sku)
		}
		if item.Subtotal != item.UnitPrice*int64(item.Quantity) {
			return fmt.Errorf("%w: subtotal mismatch for %s", ErrInternal, item.Sku)
		}
		total += item.Subtotal
	}

	if total != o.TotalAmount {
		return fmt.Errorf("%w: total %d does not match line items %d", ErrInternal, o.TotalAmount, total)
	}

	return nil
}
