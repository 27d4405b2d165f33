package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	generalDomain "github.com/sakashimaa/go-pet-project/pkg/domain"
	"github.com/sakashimaa/go-pet-project/services/payment/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingService struct {
	service.PaymentService

	keys []string
}

func (r *recordingService) RefundOrder(_ context.Context, key string, _ *generalDomain.OrderCancelledEvent) error {
	r.keys = append(r.keys, key)
	return nil
}

func TestProcessMessage_RefundsCancelledOrder(t *testing.T) {
	svc := &recordingService{}
	c := NewConsumer(svc, zap.NewNop())

	payload, err := json.Marshal(generalDomain.OrderCancelledEvent{OrderNumber: "AB12CD34"})
	require.NoError(t, err)

	value, err := json.Marshal(generalDomain.EventEnvelope{Event: generalDomain.EventOrderCancelled, Payload: payload})
	require.NoError(t, err)

	msg := &sarama.ConsumerMessage{Topic: "order_events", Partition: 2, Offset: 40, Value: value}

	require.NoError(t, c.ProcessMessage(context.Background(), msg))
	assert.Equal(t, []string{"order_events:2:40"}, svc.keys)
}

func TestProcessMessage_SkipsOtherEvents(t *testing.T) {
	svc := &recordingService{}
	c := NewConsumer(svc, zap.NewNop())

	value, err := json.Marshal(generalDomain.EventEnvelope{Event: generalDomain.EventOrderCreated, Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)

	require.NoError(t, c.ProcessMessage(context.Background(), &sarama.ConsumerMessage{Value: value}))
	assert.Empty(t, svc.keys)
}
