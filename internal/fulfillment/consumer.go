package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shopmesh/orderflow/internal/pkg/broker"
	"github.com/shopmesh/orderflow/internal/pkg/wire"
)

// QueuePublisher is the slice of the broker the consumer needs for
// completions. *broker.Broker satisfies it.
type QueuePublisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// Consumer processes create-order messages. Per message:
// parse, validate, persist, ack, publish completion — in that order.
// The ack after persist is the durability checkpoint: a crash before it
// causes a redelivery, which the idempotent upsert absorbs.
type Consumer struct {
	repo            Repository
	publisher       QueuePublisher
	completionQueue string
}

func NewConsumer(repo Repository, pub QueuePublisher, completionQueue string) *Consumer {
	return &Consumer{repo: repo, publisher: pub, completionQueue: completionQueue}
}

// Handle is the broker.Handler for the create-order queue.
func (c *Consumer) Handle(ctx context.Context, d *broker.Delivery) {
	req, err := decodeRequest(d.Body)
	if err != nil {
		slog.ErrorContext(ctx, "order request rejected", "error", err)
		_ = d.Reject()
		return
	}

	rec := buildRecord(req)

	created, err := c.repo.Upsert(ctx, rec)
	if err != nil {
		// Transient: leave the message to the redelivery policy.
		slog.ErrorContext(ctx, "order persistence failed, requeueing",
			"correlation_id", req.CorrelationID, "error", err)
		_ = d.Requeue()
		return
	}
	if !created {
		slog.InfoContext(ctx, "duplicate order request absorbed",
			"correlation_id", req.CorrelationID)
	}

	if err := d.Ack(); err != nil {
		slog.ErrorContext(ctx, "ack failed after persist",
			"correlation_id", req.CorrelationID, "error", err)
		return
	}

	if err := c.publishCompletion(ctx, rec); err != nil {
		// The order exists but the shop was never told: it will answer
		// the client with a timeout. Logged as its own failure class so
		// it is not mistaken for a persistence problem.
		slog.ErrorContext(ctx, "order persisted but completion publish failed",
			"correlation_id", req.CorrelationID, "error", err)
		return
	}

	slog.InfoContext(ctx, "order fulfilled",
		"correlation_id", req.CorrelationID,
		"order_id", rec.ID,
		"total_price", rec.TotalPrice,
	)
}

func decodeRequest(body []byte) (*wire.OrderRequest, error) {
	var req wire.OrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if req.CorrelationID == "" {
		return nil, fmt.Errorf("%w: missing correlation id", ErrMalformedMessage)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: empty item list", ErrMalformedMessage)
	}
	return &req, nil
}

// buildRecord computes the authoritative total from the item unit prices.
// Any total the requester might have asserted is ignored.
func buildRecord(req *wire.OrderRequest) *OrderRecord {
	var total float64
	for _, it := range req.Items {
		total += it.Price
	}
	return &OrderRecord{
		ID:            uuid.NewString(),
		CorrelationID: req.CorrelationID,
		Requester:     req.Requester,
		Items:         req.Items,
		TotalPrice:    total,
		CreatedAt:     time.Now().UTC(),
	}
}

func (c *Consumer) publishCompletion(ctx context.Context, rec *OrderRecord) error {
	body, err := json.Marshal(wire.CompletionMessage{
		CorrelationID: rec.CorrelationID,
		Requester:     rec.Requester,
		Items:         rec.Items,
		TotalPrice:    rec.TotalPrice,
	})
	if err != nil {
		return fmt.Errorf("encode completion: %w", err)
	}
	return c.publisher.Publish(ctx, c.completionQueue, body)
}
