package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	generalDomain "github.com/sakashimaa/go-pet-project/pkg/domain"
	"github.com/sakashimaa/go-pet-project/services/order/internal/domain"
	"github.com/sakashimaa/go-pet-project/services/order/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingService struct {
	service.OrderService

	keys   []string
	events []*generalDomain.PaymentSucceededEvent
	err    error
}

func (r *recordingService) HandlePaymentSucceeded(_ context.Context, key string, event *generalDomain.PaymentSucceededEvent) error {
	r.keys = append(r.keys, key)
	r.events = append(r.events, event)
	return r.err
}

func message(t *testing.T, event string, eventID int64, payload any) *sarama.ConsumerMessage {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	value, err := json.Marshal(generalDomain.EventEnvelope{Event: event, Payload: raw, EventID: eventID})
	require.NoError(t, err)

	return &sarama.ConsumerMessage{Topic: "payment_events", Partition: 1, Offset: 9, Value: value}
}

func TestProcessMessage_PaymentSucceeded(t *testing.T) {
	svc := &recordingService{}
	c := NewConsumer(svc, zap.NewNop())

	msg := message(t, generalDomain.EventPaymentSucceeded, 17, generalDomain.PaymentSucceededEvent{
		OrderNumber:   "AB12CD34",
		TransactionID: "TXN-1",
		Amount:        2000,
	})

	require.NoError(t, c.ProcessMessage(context.Background(), msg))
	require.Len(t, svc.events, 1)
	assert.Equal(t, "AB12CD34", svc.events[0].OrderNumber)
	assert.Equal(t, "payment_events:PaymentSucceeded:17", svc.keys[0])
}

func TestProcessMessage_FallsBackToOffsetKey(t *testing.T) {
	svc := &recordingService{}
	c := NewConsumer(svc, zap.NewNop())

	msg := message(t, generalDomain.EventPaymentSucceeded, 0, generalDomain.PaymentSucceededEvent{OrderNumber: "X"})

	require.NoError(t, c.ProcessMessage(context.Background(), msg))
	assert.Equal(t, "payment_events:1:9", svc.keys[0])
}

func TestProcessMessage_HandlerErrorIsReturned(t *testing.T) {
	svc := &recordingService{err: errors.New("db down")}
	c := NewConsumer(svc, zap.NewNop())

	err := c.ProcessMessage(context.Background(), message(t, generalDomain.EventPaymentSucceeded, 1, generalDomain.PaymentSucceededEvent{}))

	assert.Error(t, err)
}

func TestProcessMessage_IgnoresOtherEventsAndGarbage(t *testing.T) {
	svc := &recordingService{}
	c := NewConsumer(svc, zap.NewNop())

	require.NoError(t, c.ProcessMessage(context.Background(), message(t, generalDomain.EventPaymentRefunded, 3, domain.PaymentAck{})))
	require.NoError(t, c.ProcessMessage(context.Background(), &sarama.ConsumerMessage{Value: []byte("{not json")}))
	assert.Empty(t, svc.events)
}
