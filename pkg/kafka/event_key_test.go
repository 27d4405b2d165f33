package kafka

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/sakashimaa/go-pet-project/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestEventKey(t *testing.T) {
	first := &sarama.ConsumerMessage{Topic: "order_events", Partition: 0, Offset: 10}
	redelivered := &sarama.ConsumerMessage{Topic: "order_events", Partition: 2, Offset: 99}
	envelope := domain.EventEnvelope{Event: domain.EventOrderCancelled, EventID: 7}

	assert.Equal(t, "order_events:OrderCancelled:7", EventKey(first, envelope))
	assert.Equal(t, EventKey(first, envelope), EventKey(redelivered, envelope))
}

func TestEventKey_FallsBackToOffset(t *testing.T) {
	msg := &sarama.ConsumerMessage{Topic: "payment_events", Partition: 1, Offset: 42}

	assert.Equal(t, "payment_events:1:42", EventKey(msg, domain.EventEnvelope{Event: domain.EventPaymentSucceeded}))
}
