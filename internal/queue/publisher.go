package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher delivers domain events.  Callers treat failures as non fatal:
// the state change is already committed when an event is published.
type Publisher interface {
	Publish(ctx context.Context, typ string, payload any) error
}

// Handler processes one envelope.  The notification dispatcher implements
// it; the consumer and DirectPublisher call it.
type Handler interface {
	Handle(ctx context.Context, env Envelope) error
}

// AMQPPublisher publishes persistent JSON messages to a durable queue on the
// default exchange.  The connection is opened lazily and re-dialed after a
// failure.
type AMQPPublisher struct {
	url    string
	queue  string
	logger *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url, queue string, logger *slog.Logger) *AMQPPublisher {
	return &AMQPPublisher{url: url, queue: queue, logger: logger.With("component", "amqp-publisher")}
}

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return nil, fmt.Errorf("dial: %w", err)
		}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("channel open: %w", err)
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	p.ch = ch
	return ch, nil
}

// Publish marshals payload into an Envelope and sends it.
func (p *AMQPPublisher) Publish(ctx context.Context, typ string, payload any) error {
	env, err := NewEnvelope(typ, payload, time.Now())
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		p.logger.Error("publish failed", "type", typ, "error", err)
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    env.OccurredAt,
		Type:         typ,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.ch = nil
		p.logger.Error("publish failed", "type", typ, "error", err)
		return err
	}
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// DirectPublisher hands events straight to a Handler in a goroutine.  It
// is used when no broker is configured.
type DirectPublisher struct {
	handler Handler
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewDirectPublisher(h Handler, logger *slog.Logger) *DirectPublisher {
	return &DirectPublisher{handler: h, logger: logger.With("component", "direct-publisher")}
}

func (p *DirectPublisher) Publish(_ context.Context, typ string, payload any) error {
	env, err := NewEnvelope(typ, payload, time.Now())
	if err != nil {
		return err
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// detached from the request context, which ends with the response
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := p.handler.Handle(ctx, env); err != nil {
			p.logger.Error("handle event failed", "type", env.Type, "error", err)
		}
	}()
	return nil
}

// Wait blocks until in-flight events are handled.
func (p *DirectPublisher) Wait() { p.wg.Wait() }

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
