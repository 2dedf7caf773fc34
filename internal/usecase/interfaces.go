package usecase

import "context"

// DataProducer abstracts the message-queue backends.
type DataProducer interface {
	// Produce sends data to the given topic (routing key for AMQP).
	Produce(ctx context.Context, topic string, key string, data interface{}) error
}
