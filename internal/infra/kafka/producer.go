package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"bms-gateway/internal/config"
	"bms-gateway/internal/infra/mq"
)

// KafkaProducer publishes node telemetry events to a Kafka topic. Writes
// are async; a lost event is acceptable, the Modbus image stays the
// source of truth.
type KafkaProducer struct {
	writer *kafka.Writer
	logger *zap.Logger
	topic  string
}

var _ mq.Producer = (*KafkaProducer)(nil)

func NewKafkaProducer(cfg config.KafkaConfig, logger *zap.Logger) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	// Topic is set per message; kafka-go rejects writes when both the
	// writer and the message carry one.
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{}, // keep one node on one partition
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  true,
	}

	logger.Info("Initialized Kafka producer",
		zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))

	return &KafkaProducer{writer: w, logger: logger, topic: cfg.Topic}, nil
}

func (p *KafkaProducer) Produce(ctx context.Context, topic string, key string, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("kafka: marshal event: %w", err)
	}

	targetTopic := p.topic
	if topic != "" {
		targetTopic = topic
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: targetTopic,
		Key:   []byte(key),
		Value: body,
	})
	if err != nil {
		p.logger.Error("Failed to produce message to Kafka",
			zap.Error(err), zap.String("topic", targetTopic))
		return err
	}

	p.logger.Debug("Produced message to Kafka",
		zap.String("topic", targetTopic), zap.String("key", key))
	return nil
}

func (p *KafkaProducer) Close() {
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka writer", zap.Error(err))
	}
}
