package broker

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestHeaderCarrierRoundTrip(t *testing.T) {
	headers := amqp.Table{}
	c := headerCarrier(headers)

	c.Set("traceparent", "00-11111111111111111111111111111111-2222222222222222-01")
	assert.Equal(t, "00-11111111111111111111111111111111-2222222222222222-01", c.Get("traceparent"))
	assert.ElementsMatch(t, []string{"traceparent"}, c.Keys())

	// Non-string header values (legal in AMQP tables) read as absent.
	headers["x-retries"] = int32(3)
	assert.Empty(t, c.Get("x-retries"))
}

func TestTraceContextSurvivesHeaderHop(t *testing.T) {
	propagator := propagation.TraceContext{}

	traceID, err := trace.TraceIDFromHex("11111111111111111111111111111111")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("2222222222222222")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := amqp.Table{}
	propagator.Inject(ctx, headerCarrier(headers))
	require.NotEmpty(t, headers)

	extracted := propagator.Extract(context.Background(), headerCarrier(headers))
	got := trace.SpanContextFromContext(extracted)
	assert.Equal(t, traceID, got.TraceID())
}
