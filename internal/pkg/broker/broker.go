// Package broker wraps the AMQP transport both services talk through.
//
// A Broker owns one connection and one channel, is constructed once at
// process start and injected into publishers and consumers, and has an
// explicit Close. Queues are durable and acknowledgements are manual:
// handlers decide per message whether to ack, reject, or requeue.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrConnect means the transport stayed unreachable for the whole
	// retry window. Fatal: callers should exit and let the supervisor
	// restart the process.
	ErrConnect = errors.New("broker unreachable")

	// ErrPublish means the transport did not accept the write. The
	// message was never handed to the broker.
	ErrPublish = errors.New("publish failed")
)

// DialConfig bounds the connect retry loop.
type DialConfig struct {
	URI             string
	Prefetch        int
	RetryInterval   time.Duration // initial backoff interval
	MaxRetryElapsed time.Duration // total time budget before giving up
}

func (c DialConfig) withDefaults() DialConfig {
	if c.Prefetch <= 0 {
		c.Prefetch = 8
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 500 * time.Millisecond
	}
	if c.MaxRetryElapsed <= 0 {
		c.MaxRetryElapsed = 30 * time.Second
	}
	return c
}

// Broker is the shared transport handle.
type Broker struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	mu     sync.Mutex
	closed bool
}

// Dial connects with capped exponential backoff, tolerating a message
// broker that starts after this service in a multi-process deployment.
func Dial(ctx context.Context, cfg DialConfig) (*Broker, error) {
	cfg = cfg.withDefaults()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.RetryInterval
	policy.MaxElapsedTime = cfg.MaxRetryElapsed

	var conn *amqp.Connection
	err := backoff.Retry(func() error {
		var err error
		conn, err = amqp.Dial(cfg.URI)
		if err != nil {
			slog.Warn("broker dial failed, retrying", "uri", cfg.URI, "error", err)
		}
		return err
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnect, cfg.URI, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: open channel: %v", ErrConnect, err)
	}
	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: set prefetch: %v", ErrConnect, err)
	}

	return &Broker{conn: conn, ch: ch}, nil
}

// DeclareQueue creates a durable queue if it does not exist yet.
// Safe to call repeatedly.
func (b *Broker) DeclareQueue(name string) error {
	_, err := b.ch.QueueDeclare(name, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %q: %w", name, err)
	}
	return nil
}

// Publish hands the payload to the transport and returns without waiting
// for delivery confirmation. Trace context travels in the message headers.
func (b *Broker) Publish(ctx context.Context, queue string, body []byte) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed || b.ch.IsClosed() {
		return fmt.Errorf("%w: channel not open", ErrPublish)
	}

	headers := amqp.Table{}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier(headers))

	err := b.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%w: queue %q: %v", ErrPublish, queue, err)
	}
	return nil
}

// Acknowledger settles a delivery with the broker. amqp.Delivery
// satisfies it; tests substitute fakes.
type Acknowledger interface {
	Ack(multiple bool) error
	Reject(requeue bool) error
	Nack(multiple bool, requeue bool) error
}

// Delivery is one consumed message plus its acknowledgement controls.
type Delivery struct {
	Body []byte

	ack Acknowledger
}

// NewDelivery wraps a message body and its acknowledger.
func NewDelivery(body []byte, ack Acknowledger) *Delivery {
	return &Delivery{Body: body, ack: ack}
}

// Ack confirms the message was processed. The broker may then discard it.
func (d *Delivery) Ack() error { return d.ack.Ack(false) }

// Reject drops the message without requeueing. For messages that can
// never become valid by retrying.
func (d *Delivery) Reject() error { return d.ack.Reject(false) }

// Requeue returns the message to the queue for redelivery. For transient
// failures such as a persistence error.
func (d *Delivery) Requeue() error { return d.ack.Nack(false, true) }

// Handler processes a single delivery. It owns the acknowledgement: a
// handler that returns without acking leaves the outcome to the broker's
// redelivery policy.
type Handler func(ctx context.Context, d *Delivery)

// Consume registers handler on queue and dispatches each delivery on its
// own goroutine, bounded by the channel prefetch. A handler panic is
// caught here and translated into a reject without requeue so one poison
// message cannot take the subscriber loop down.
func (b *Broker) Consume(ctx context.Context, queue string, handler Handler) error {
	deliveries, err := b.ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume queue %q: %w", queue, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-deliveries:
				if !ok {
					slog.Info("delivery channel closed", "queue", queue)
					return
				}
				go b.dispatch(ctx, queue, msg, handler)
			}
		}
	}()
	return nil
}

func (b *Broker) dispatch(ctx context.Context, queue string, msg amqp.Delivery, handler Handler) {
	d := NewDelivery(msg.Body, msg)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("handler panic, rejecting message", "queue", queue, "panic", r)
			_ = d.Reject()
		}
	}()

	ctx = otel.GetTextMapPropagator().Extract(ctx, headerCarrier(msg.Headers))
	ctx, span := otel.Tracer("broker").Start(ctx, "consume "+queue,
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	handler(ctx, d)
}

// Close tears down the channel and connection. Publish fails with
// ErrPublish afterwards.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if err := b.ch.Close(); err != nil {
		_ = b.conn.Close()
		return fmt.Errorf("close channel: %w", err)
	}
	return b.conn.Close()
}
