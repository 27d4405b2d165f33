package domain

// Product is the catalog view the orchestrator needs to price a line item.
type Product struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"price"`
	Sku       string `json:"sku"`
	Category  string `json:"category"`
}

type PaymentAck struct {
	ID            int64  `json:"id"`
	OrderID       string `json:"orderId"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
	Method        string `json:"method"`
	TransactionID string `json:"transactionId"`
}

const (
	DefaultPaymentMethod   = "CREDIT_CARD"
	PaymentStatusCompleted = "COMPLETED"
)
