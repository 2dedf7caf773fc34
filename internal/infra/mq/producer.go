package mq

import (
	"context"
)

// Producer is the interface the telemetry dispatcher publishes through.
type Producer interface {
	Produce(ctx context.Context, topic string, key string, data interface{}) error
	Close()
}

// NoOpProducer is used when the message queue is disabled.
type NoOpProducer struct{}

func NewNoOpProducer() *NoOpProducer {
	return &NoOpProducer{}
}

func (p *NoOpProducer) Produce(ctx context.Context, topic string, key string, data interface{}) error {
	return nil
}

func (p *NoOpProducer) Close() {}
