package handler

import (
	"time"

	"github.com/sakashimaa/go-pet-project/services/payment/internal/domain"
)

type InitiatePaymentInput struct {
	OrderID string `json:"orderId" validate:"required,max=64"`
	Amount  int64  `json:"amount" validate:"required,gt=0"`
	Method  string `json:"method" validate:"omitempty,oneof=CREDIT_CARD DEBIT_CARD PAYPAL BANK_TRANSFER"`
}

type PaymentResponse struct {
	ID            int64     `json:"id"`
	OrderID       string    `json:"orderId"`
	Amount        int64     `json:"amount"`
	Status        string    `json:"status"`
	Method        string    `json:"method"`
	TransactionID string    `json:"transactionId"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		OrderID:       p.OrderID,
		Amount:        p.Amount,
		Status:        string(p.Status),
		Method:        p.Method,
		TransactionID: p.TransactionID,
		CreatedAt:     p.CreatedAt,
	}
}
