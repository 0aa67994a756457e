package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher publishes JSON envelopes to a durable topic exchange.
type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string
	actor    ActorFunc

	mu      sync.Mutex
	channel *amqp.Channel
}

// ActorFunc extracts the acting user id from a request context.
type ActorFunc func(ctx context.Context) string

func DialAMQP(url, exchange string, actor ActorFunc) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	p, err := NewAMQPPublisher(conn, exchange, actor)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return p, nil
}

func NewAMQPPublisher(conn *amqp.Connection, exchange string, actor ActorFunc) (*AMQPPublisher, error) {
	if exchange == "" {
		return nil, errors.New("events: exchange is required")
	}
	if conn == nil {
		return nil, errors.New("events: connection is required")
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &AMQPPublisher{conn: conn, exchange: exchange, actor: actor, channel: ch}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, key string, payload any) error {
	env := NewEnvelope(ctx, key, payload, p.actor)
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil {
		return errors.New("events: publisher closed")
	}
	return p.channel.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID,
		Timestamp:    env.OccurredAt,
		Body:         body,
	})
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
		p.channel = nil
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	return errors.Join(errs...)
}

// NewEnvelope stamps an event with an id, time and the acting user.
func NewEnvelope(ctx context.Context, key string, payload any, actor ActorFunc) Envelope {
	env := Envelope{
		ID:         uuid.NewString(),
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
	if actor != nil {
		env.ActorID = actor(ctx)
	}
	return env
}
