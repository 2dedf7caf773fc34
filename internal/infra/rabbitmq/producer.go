package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"bms-gateway/internal/config"
	"bms-gateway/internal/infra/mq"
)

// RabbitMQProducer publishes node telemetry events through a topic
// exchange. The connection is lazy and self-healing: a failed publish
// signals the reconnect loop and the event is reported lost to the
// caller.
type RabbitMQProducer struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	cfg        config.RabbitMQConfig
	logger     *zap.Logger
	mu         sync.Mutex
	isClosed   bool
	reconnectC chan struct{}
}

var _ mq.Producer = (*RabbitMQProducer)(nil)

func NewRabbitMQProducer(cfg config.RabbitMQConfig, logger *zap.Logger) (*RabbitMQProducer, error) {
	p := &RabbitMQProducer{
		cfg:        cfg,
		logger:     logger,
		reconnectC: make(chan struct{}, 1),
	}

	// Connect in the background so a broker outage does not hold up the
	// bridge; Produce retriggers until the broker is back.
	go func() {
		if err := p.connect(); err != nil {
			p.logger.Warn("Initial RabbitMQ connection failed (will retry)", zap.Error(err))
			p.signalReconnect()
		}
	}()
	go p.handleReconnect()

	return p, nil
}

func (p *RabbitMQProducer) connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	connURL := p.cfg.URL
	if p.cfg.VirtualHost != "" {
		vhost := p.cfg.VirtualHost
		if strings.HasPrefix(vhost, "/") {
			vhost = "%2f" + vhost[1:]
		}
		connURL = strings.TrimRight(connURL, "/") + "/" + vhost
	}

	conn, err := amqp.Dial(connURL)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("rabbitmq: open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(p.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}

	if p.cfg.QueueName != "" {
		if _, err := ch.QueueDeclare(p.cfg.QueueName, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return fmt.Errorf("rabbitmq: declare queue: %w", err)
		}
		if err := ch.QueueBind(p.cfg.QueueName, p.cfg.RoutingKey, p.cfg.Exchange, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return fmt.Errorf("rabbitmq: bind queue: %w", err)
		}
	}

	p.conn = conn
	p.ch = ch

	go func() {
		<-conn.NotifyClose(make(chan *amqp.Error))
		p.signalReconnect()
	}()

	p.logger.Info("Connected to RabbitMQ", zap.String("exchange", p.cfg.Exchange))
	return nil
}

func (p *RabbitMQProducer) signalReconnect() {
	select {
	case p.reconnectC <- struct{}{}:
	default:
	}
}

func (p *RabbitMQProducer) handleReconnect() {
	for range p.reconnectC {
		p.mu.Lock()
		closed := p.isClosed
		p.mu.Unlock()
		if closed {
			return
		}
		if err := p.connect(); err != nil {
			p.logger.Warn("RabbitMQ reconnect failed", zap.Error(err))
			time.Sleep(5 * time.Second)
			p.signalReconnect()
		}
	}
}

func (p *RabbitMQProducer) Produce(ctx context.Context, topic string, key string, data interface{}) error {
	p.mu.Lock()
	if p.isClosed {
		p.mu.Unlock()
		return fmt.Errorf("rabbitmq: producer closed")
	}
	if p.ch == nil || p.ch.IsClosed() {
		p.mu.Unlock()
		p.signalReconnect()
		return fmt.Errorf("rabbitmq: not connected")
	}
	ch := p.ch
	p.mu.Unlock()

	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}

	routingKey := p.cfg.RoutingKey
	if key != "" {
		routingKey = key
	}

	err = ch.PublishWithContext(ctx, p.cfg.Exchange, routingKey, false, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		})
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}

	p.logger.Debug("Published message to RabbitMQ",
		zap.String("exchange", p.cfg.Exchange), zap.String("routing_key", routingKey))
	return nil
}

func (p *RabbitMQProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isClosed = true
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
