package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/sakashimaa/go-pet-project/services/order/internal/domain"
	"github.com/sakashimaa/go-pet-project/services/order/internal/resilience"
)

type initiatePaymentRequest struct {
	OrderID string `json:"orderId"`
	Amount  int64  `json:"amount"`
	Method  string `json:"method"`
}

type PaymentClient struct {
	http *httpClient
}

func NewPaymentClient(baseURL string, timeout time.Duration) *PaymentClient {
	return &PaymentClient{http: newHTTPClient(baseURL, timeout)}
}

func (c *PaymentClient) InitiatePayment(ctx context.Context, orderNumber string, amount int64, method string) (domain.PaymentAck, error) {
	if method == "" {
		method = domain.DefaultPaymentMethod
	}

	return doJSON[domain.PaymentAck](ctx, c.http, http.MethodPost, "/api/payments/initiate", initiatePaymentRequest{
		OrderID: orderNumber,
		Amount:  amount,
		Method:  method,
	})
}

type resilientPayment struct {
	next     PaymentGateway
	initiate *resilience.Policy
}

// NewResilientPayment retries initiation; the payment service answers a repeated order number with the first payment.
func NewResilientPayment(next PaymentGateway, initiate *resilience.Policy) PaymentGateway {
	return &resilientPayment{next: next, initiate: initiate}
}

func (r *resilientPayment) InitiatePayment(ctx context.Context, orderNumber string, amount int64, method string) (domain.PaymentAck, error) {
	ack, err := resilience.Execute(ctx, r.initiate, func(ctx context.Context) (domain.PaymentAck, error) {
		return r.next.InitiatePayment(ctx, orderNumber, amount, method)
	})
	return ack, classify(err)
}
