package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher is the subset of *amqp.Channel the forwarder needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPForwarder republishes lead events to a topic exchange, keyed by event type.
type AMQPForwarder struct {
	publisher Publisher
	exchange  string
	logger    *zap.Logger
}

// NewAMQPForwarder builds a forwarder over an open channel.
func NewAMQPForwarder(publisher Publisher, exchange string, logger *zap.Logger) *AMQPForwarder {
	return &AMQPForwarder{publisher: publisher, exchange: exchange, logger: logger}
}

// Register subscribes the forwarder to every lead event.
func (f *AMQPForwarder) Register(dispatcher Dispatcher) {
	for _, eventType := range AllEventTypes {
		dispatcher.Subscribe(eventType, f.forward)
	}
}

func (f *AMQPForwarder) forward(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	err = f.publisher.PublishWithContext(ctx,
		f.exchange,
		string(event.Type),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    event.ID,
			Timestamp:    event.Timestamp,
			Type:         string(event.Type),
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		f.logger.Warn("event forward failed", zap.String("event_type", string(event.Type)), zap.Error(err))
		return fmt.Errorf("publish event %s: %w", event.ID, err)
	}
	return nil
}

// AMQPConnection owns the broker connection and channel behind a forwarder.
type AMQPConnection struct {
	Conn *amqp.Connection
	Ch   *amqp.Channel
}

// DialAMQP connects to the broker and declares the durable topic exchange.
func DialAMQP(url, exchange string) (*AMQPConnection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPConnection{Conn: conn, Ch: ch}, nil
}

// Close closes the channel and the connection.
func (c *AMQPConnection) Close() {
	if c == nil {
		return
	}
	if c.Ch != nil {
		_ = c.Ch.Close()
	}
	if c.Conn != nil {
		_ = c.Conn.Close()
	}
}
