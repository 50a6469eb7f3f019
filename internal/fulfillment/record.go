// Package fulfillment consumes order requests from the shop, persists
// order records, and reports completions back over the queue. It is the
// only owner of durable order data.
package fulfillment

import (
	"context"
	"errors"
	"time"

	"github.com/shopmesh/orderflow/internal/pkg/wire"
)

// ErrMalformedMessage marks a message that can never become valid by
// retrying: unparseable JSON, a missing correlation id, or an empty item
// list. Such messages are rejected without requeue and no completion is
// ever sent, so the submitter observes a timeout.
var ErrMalformedMessage = errors.New("malformed order request")

// OrderRecord is the persisted order. Written once on successful message
// processing and never updated afterwards.
type OrderRecord struct {
	ID            string
	CorrelationID string
	Requester     string
	Items         []wire.Item
	TotalPrice    float64
	CreatedAt     time.Time
}

// Repository persists order records. Upsert must be idempotent per
// correlation id: delivery is at-least-once, and a crash between persist
// and ack replays the same request.
type Repository interface {
	// Upsert stores the record, or leaves the existing record for the
	// same correlation id untouched. It reports whether a new record was
	// written.
	Upsert(ctx context.Context, rec *OrderRecord) (bool, error)

	FindByCorrelationID(ctx context.Context, correlationID string) (*OrderRecord, error)
}
