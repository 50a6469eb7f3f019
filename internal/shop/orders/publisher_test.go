package orders

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopmesh/orderflow/internal/pkg/broker"
	"github.com/shopmesh/orderflow/internal/pkg/wire"
)

// publisherFunc adapts a function to the QueuePublisher interface.
type publisherFunc func(ctx context.Context, queue string, body []byte) error

func (f publisherFunc) Publish(ctx context.Context, queue string, body []byte) error {
	return f(ctx, queue, body)
}

func TestSubmitOrderRegistersBeforePublish(t *testing.T) {
	tr := NewTracker(0)

	var published wire.OrderRequest
	pub := NewPublisher(publisherFunc(func(_ context.Context, queue string, body []byte) error {
		assert.Equal(t, "create-order", queue)
		require.NoError(t, json.Unmarshal(body, &published))
		// The pending entry must already exist when the publish happens,
		// otherwise a fast completion would find nothing to update.
		order, ok := tr.Get(published.CorrelationID)
		require.True(t, ok)
		assert.Equal(t, StatusPending, order.Status)
		return nil
	}), "create-order", tr)

	id, err := pub.SubmitOrder(context.Background(), "alice", testItems())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	assert.Equal(t, id, published.CorrelationID)
	assert.Equal(t, "alice", published.Requester)
	assert.Equal(t, testItems(), published.Items)
}

func TestSubmitOrderPublishFailureEvicts(t *testing.T) {
	tr := NewTracker(0)
	pub := NewPublisher(publisherFunc(func(context.Context, string, []byte) error {
		return broker.ErrPublish
	}), "create-order", tr)

	_, err := pub.SubmitOrder(context.Background(), "alice", testItems())
	require.ErrorIs(t, err, broker.ErrPublish)
	assert.Zero(t, tr.Len(), "failed submissions must not leak tracker entries")
}
