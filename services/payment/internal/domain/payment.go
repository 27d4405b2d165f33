package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)

const (
	DefaultMethod         = "CREDIT_CARD"
	transactionPrefix     = "TXN-"
	transactionSuffixSize = 12
)

type Payment struct {
	ID            int64         `db:"id"`
	OrderID       string        `db:"order_id"`
	Amount        int64         `db:"amount"`
	Status        PaymentStatus `db:"status"`
	Method        string        `db:"method"`
	TransactionID string        `db:"transaction_id"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// NewTransactionID returns TXN- followed by twelve upper-case characters of a fresh uuid.
func NewTransactionID() string {
	return transactionPrefix + strings.ToUpper(uuid.NewString()[:transactionSuffixSize])
}
