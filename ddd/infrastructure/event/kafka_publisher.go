package event

import (
	"context"
	"encoding/json"
	"fmt"

	"deepfake-service/ddd/domain/gateway"
)

// Producer 由 pkg/kafka.Client 实现
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// KafkaJobPublisher 以任务ID为key发布任务事件，同一任务的事件保持顺序
type KafkaJobPublisher struct {
	producer Producer
	topic    string
}

func NewKafkaJobPublisher(producer Producer, topic string) *KafkaJobPublisher {
	return &KafkaJobPublisher{producer: producer, topic: topic}
}

func (p *KafkaJobPublisher) Publish(ctx context.Context, e gateway.JobEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal job event: %w", err)
	}
	if err := p.producer.Produce(ctx, p.topic, []byte(e.JobID), payload); err != nil {
		return fmt.Errorf("produce job event to %s: %w", p.topic, err)
	}
	return nil
}
