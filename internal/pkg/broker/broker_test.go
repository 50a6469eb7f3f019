package broker

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAcknowledger records how a delivery was settled with the channel.
type fakeAcknowledger struct {
	acked    bool
	rejected bool
	nacked   bool
	requeue  bool
}

func (f *fakeAcknowledger) Ack(_ uint64, _ bool) error {
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	f.rejected = true
	f.requeue = requeue
	return nil
}

func TestDispatchPanicRejectsWithoutRequeue(t *testing.T) {
	ack := &fakeAcknowledger{}
	b := &Broker{}

	// A poison message must settle as a reject, not crash the subscriber
	// loop or go back on the queue.
	b.dispatch(context.Background(), "create-order",
		amqp.Delivery{Acknowledger: ack, Body: []byte("{}")},
		func(context.Context, *Delivery) {
			panic("poison message")
		})

	assert.True(t, ack.rejected)
	assert.False(t, ack.requeue)
	assert.False(t, ack.acked)
}

func TestDispatchHandsBodyToHandler(t *testing.T) {
	ack := &fakeAcknowledger{}
	b := &Broker{}

	var got []byte
	b.dispatch(context.Background(), "create-order",
		amqp.Delivery{Acknowledger: ack, Body: []byte(`{"correlationId":"corr-1"}`)},
		func(_ context.Context, d *Delivery) {
			got = d.Body
			require.NoError(t, d.Ack())
		})

	assert.Equal(t, []byte(`{"correlationId":"corr-1"}`), got)
	assert.True(t, ack.acked)
}

func TestDeliverySettleMapping(t *testing.T) {
	ack := &fakeAcknowledger{}
	d := NewDelivery(nil, amqp.Delivery{Acknowledger: ack})

	require.NoError(t, d.Reject())
	assert.True(t, ack.rejected)
	assert.False(t, ack.requeue, "Reject must not requeue")

	ack = &fakeAcknowledger{}
	d = NewDelivery(nil, amqp.Delivery{Acknowledger: ack})
	require.NoError(t, d.Requeue())
	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue, "Requeue must hand the message back for redelivery")
}
