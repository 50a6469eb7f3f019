package orders

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shopmesh/orderflow/internal/pkg/broker"
	"github.com/shopmesh/orderflow/internal/pkg/wire"
)

// CompletionConsumer is the long-lived subscriber on the completion queue.
// It merges completion payloads into the tracker for the lifetime of the
// process.
type CompletionConsumer struct {
	tracker *Tracker
}

func NewCompletionConsumer(t *Tracker) *CompletionConsumer {
	return &CompletionConsumer{tracker: t}
}

// Handle processes one completion message. A payload that cannot be
// decoded is rejected without requeue; a completion for an id this
// process is not tracking is acknowledged and dropped, since there is no
// durable record on this side to reconcile against (an in-memory table
// lost in a restart stays lost).
func (c *CompletionConsumer) Handle(ctx context.Context, d *broker.Delivery) {
	var msg wire.CompletionMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil || msg.CorrelationID == "" {
		slog.ErrorContext(ctx, "malformed completion message rejected", "error", err)
		_ = d.Reject()
		return
	}

	if c.tracker.Complete(msg) {
		slog.InfoContext(ctx, "order completed",
			"correlation_id", msg.CorrelationID,
			"total_price", msg.TotalPrice,
		)
	} else {
		slog.WarnContext(ctx, "completion for untracked order dropped",
			"correlation_id", msg.CorrelationID,
		)
	}
	_ = d.Ack()
}
