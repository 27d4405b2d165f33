package kafka

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	generalDomain "github.com/sakashimaa/go-pet-project/pkg/domain"
	"github.com/sakashimaa/go-pet-project/pkg/kafka"
	"github.com/sakashimaa/go-pet-project/pkg/mylogger"
	"github.com/sakashimaa/go-pet-project/services/payment/internal/service"
	"go.uber.org/zap"
)

type Consumer struct {
	service service.PaymentService
	logger  *zap.Logger
}

func NewConsumer(service service.PaymentService, logger *zap.Logger) *Consumer {
	return &Consumer{
		service: service,
		logger:  logger,
	}
}

func (c *Consumer) Start(ctx context.Context, brokers []string, groupID, orderTopic string) error {
	consumerGroup := kafka.NewConsumerGroup(
		brokers,
		groupID,
		[]string{orderTopic},
		c.ProcessMessage,
		c.logger,
	)

	return consumerGroup.Run(ctx)
}

func (c *Consumer) ProcessMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var envelope generalDomain.EventEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		mylogger.Error(ctx, c.logger, "Error unmarshalling envelope", zap.Error(err))
		return nil
	}

	if envelope.Event != generalDomain.EventOrderCancelled {
		mylogger.Debug(ctx, c.logger, "Ignored event type", zap.String("event_type", envelope.Event))
		return nil
	}

	var event generalDomain.OrderCancelledEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		mylogger.Error(ctx, c.logger, "Error unmarshalling event", zap.Error(err))
		return nil
	}

	if err := c.service.RefundOrder(ctx, kafka.EventKey(msg, envelope), &event); err != nil {
		mylogger.Warn(ctx, c.logger, "Refund for cancelled order failed", zap.String("order_id", event.OrderNumber), zap.Error(err))
		return err
	}

	return nil
}
