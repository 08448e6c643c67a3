package resource

import (
	"deepfake-service/pkg/config"
	"deepfake-service/pkg/kafka"
	"deepfake-service/pkg/logger"
)

// KafkaResource 持有事件生产者
type KafkaResource struct {
	client *kafka.Client
}

// OpenKafka 创建生产者并尝试创建事件 topic，topic 创建失败不影响启动
func OpenKafka(cfg config.KafkaConfig) *KafkaResource {
	client := kafka.New(cfg)
	if err := client.EnsureTopic(cfg.Topics.JobEvents, 3, 1); err != nil {
		logger.Warnf("Kafka ensure topic failed topic=%s error=%v", cfg.Topics.JobEvents, err)
	}
	return &KafkaResource{client: client}
}

func (r *KafkaResource) Name() string { return "kafka" }

func (r *KafkaResource) Client() *kafka.Client { return r.client }

func (r *KafkaResource) Close() error { return r.client.Close() }
