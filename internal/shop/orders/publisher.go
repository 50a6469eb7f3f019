package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shopmesh/orderflow/internal/pkg/wire"
)

// QueuePublisher is the slice of the broker the publisher needs.
// *broker.Broker satisfies it.
type QueuePublisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// Publisher builds order request messages and hands them to the broker.
// It does not wait for completion; that is Tracker.Await's job, so the
// publish path and the wait path stay independently testable.
type Publisher struct {
	broker  QueuePublisher
	queue   string
	tracker *Tracker
}

func NewPublisher(b QueuePublisher, queue string, t *Tracker) *Publisher {
	return &Publisher{broker: b, queue: queue, tracker: t}
}

// SubmitOrder registers a pending entry and publishes the order request,
// returning the fresh correlation id. Registration happens before the
// publish so a completion can never race ahead of the tracker entry.
// On a publish failure the entry is evicted and the order is never created.
func (p *Publisher) SubmitOrder(ctx context.Context, requester string, items []wire.Item) (string, error) {
	correlationID := uuid.NewString()

	if err := p.tracker.Register(correlationID, requester, items); err != nil {
		return "", fmt.Errorf("track order: %w", err)
	}

	body, err := json.Marshal(wire.OrderRequest{
		CorrelationID: correlationID,
		Requester:     requester,
		Items:         items,
	})
	if err != nil {
		p.tracker.Evict(correlationID)
		return "", fmt.Errorf("encode order request: %w", err)
	}

	if err := p.broker.Publish(ctx, p.queue, body); err != nil {
		p.tracker.Evict(correlationID)
		return "", err
	}

	slog.InfoContext(ctx, "order request published",
		"correlation_id", correlationID,
		"requester", requester,
		"items", len(items),
	)
	return correlationID, nil
}
