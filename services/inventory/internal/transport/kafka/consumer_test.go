package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	generalDomain "github.com/sakashimaa/go-pet-project/pkg/domain"
	"github.com/sakashimaa/go-pet-project/services/inventory/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingService struct {
	service.InventoryService

	keys   []string
	events []*generalDomain.OrderCancelledEvent
	err    error
}

func (r *recordingService) ReleaseOrder(_ context.Context, key string, event *generalDomain.OrderCancelledEvent) error {
	r.keys = append(r.keys, key)
	r.events = append(r.events, event)
	return r.err
}

func message(t *testing.T, event string, payload any) *sarama.ConsumerMessage {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	value, err := json.Marshal(generalDomain.EventEnvelope{Event: event, Payload: raw, EventID: 5})
	require.NoError(t, err)

	return &sarama.ConsumerMessage{Topic: "order_events", Value: value}
}

func TestProcessMessage_OrderCancelled(t *testing.T) {
	svc := &recordingService{}
	c := NewConsumer(svc, zap.NewNop())

	msg := message(t, generalDomain.EventOrderCancelled, generalDomain.OrderCancelledEvent{
		OrderNumber:      "AB12CD34",
		ReservationToken: "tok",
		Items:            []generalDomain.OrderItem{{Sku: "A", Quantity: 2}},
	})

	require.NoError(t, c.ProcessMessage(context.Background(), msg))
	require.Len(t, svc.events, 1)
	assert.Equal(t, "tok", svc.events[0].ReservationToken)
	assert.Equal(t, "order_events:OrderCancelled:5", svc.keys[0])
}

func TestProcessMessage_IgnoresOtherEvents(t *testing.T) {
	svc := &recordingService{}
	c := NewConsumer(svc, zap.NewNop())

	msg := message(t, generalDomain.EventOrderCreated, generalDomain.OrderCreatedEvent{OrderNumber: "X"})

	require.NoError(t, c.ProcessMessage(context.Background(), msg))
	assert.Empty(t, svc.events)
}

func TestProcessMessage_ServiceErrorIsRedelivered(t *testing.T) {
	svc := &recordingService{err: errors.New("db down")}
	c := NewConsumer(svc, zap.NewNop())

	msg := message(t, generalDomain.EventOrderCancelled, generalDomain.OrderCancelledEvent{ReservationToken: "tok"})

	require.Error(t, c.ProcessMessage(context.Background(), msg))
}

func TestProcessMessage_PoisonMessageAcked(t *testing.T) {
	c := NewConsumer(&recordingService{}, zap.NewNop())

	require.NoError(t, c.ProcessMessage(context.Background(), &sarama.ConsumerMessage{Value: []byte("{")}))
}
