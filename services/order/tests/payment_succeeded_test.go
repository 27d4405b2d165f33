package tests

import (
	"encoding/json"
	"time"

	generalDomain "github.com/sakashimaa/go-pet-project/pkg/domain"
)

func (s *IntegrationTestSuite) publishPaymentSucceeded(eventID int64, orderNumber string) {
	payload, err := json.Marshal(generalDomain.PaymentSucceededEvent{
		OrderNumber:   orderNumber,
		TransactionID: "TXN-INTEGRATION1",
		Amount:        2000,
		PaidAt:        time.Now().UTC(),
	})
	s.Require().NoError(err)

	err = s.TestProducer.ProduceMessage(s.Ctx, "payment_events", orderNumber, generalDomain.EventEnvelope{
		Event:   generalDomain.EventPaymentSucceeded,
		Payload: payload,
		EventID: eventID,
	})
	s.Require().NoError(err)
}

func (s *IntegrationTestSuite) TestPaymentSucceeded_MarksOrderPaid() {
	order := s.createOrder()

	s.publishPaymentSucceeded(1, order.OrderNumber)

	s.Require().Eventually(func() bool {
		return s.statusOf(order.OrderNumber) == "paid"
	}, 30*time.Second, 200*time.Millisecond)
}

func (s *IntegrationTestSuite) TestPaymentSucceeded_DuplicateDeliveryAppliedOnce() {
	order := s.createOrder()

	applied, err := s.Store.MarkPaidOnce(s.Ctx, "payment_events:PaymentSucceeded:77", order.OrderNumber)
	s.Require().NoError(err)
	s.True(applied)

	applied, err = s.Store.MarkPaidOnce(s.Ctx, "payment_events:PaymentSucceeded:77", order.OrderNumber)
	s.Require().NoError(err)
	s.False(applied)
}

func (s *IntegrationTestSuite) TestPaymentSucceeded_CancelledOrderStaysCancelled() {
	order := s.createOrder()

	_, err := s.OrderService.CancelOrder(s.Ctx, order.OrderNumber)
	s.Require().NoError(err)

	applied, err := s.Store.MarkPaidOnce(s.Ctx, "payment_events:PaymentSucceeded:78", order.OrderNumber)
	s.Require().NoError(err)
	s.False(applied)
	s.Equal("cancelled", s.statusOf(order.OrderNumber))
}
