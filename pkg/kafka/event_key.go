package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
	"github.com/sakashimaa/go-pet-project/pkg/domain"
)

// EventKey identifies a relayed outbox row; redelivered copies of the same row share it.
func EventKey(msg *sarama.ConsumerMessage, envelope domain.EventEnvelope) string {
	if envelope.EventID != 0 {
		return fmt.Sprintf("%s:%s:%d", msg.Topic, envelope.Event, envelope.EventID)
	}
	return fmt.Sprintf("%s:%d:%d", msg.Topic, msg.Partition, msg.Offset)
}
