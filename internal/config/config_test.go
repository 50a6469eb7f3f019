package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) envLookup {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoadShopDefaults(t *testing.T) {
	cfg, err := loadShop(nil, lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.RunAddress)
	assert.Equal(t, defaultWaitTimeout, cfg.WaitTimeout)
	assert.Equal(t, defaultRequestQueue, cfg.Broker.RequestQueue)
	assert.Equal(t, defaultCompletionQueue, cfg.Broker.CompletionQueue)
	assert.Equal(t, defaultPrefetch, cfg.Broker.Prefetch)
}

func TestLoadShopEnvAndFlags(t *testing.T) {
	env := map[string]string{
		"RUN_ADDRESS":        ":9999",
		"ORDER_WAIT_TIMEOUT": "5s",
		"BROKER_URI":         "amqp://broker:5672/",
	}

	cfg, err := loadShop([]string{"-a", ":7777", "-wait-timeout", "2s"}, lookupFrom(env))
	require.NoError(t, err)

	// Flags win over environment.
	assert.Equal(t, ":7777", cfg.RunAddress)
	assert.Equal(t, 2*time.Second, cfg.WaitTimeout)
	assert.Equal(t, "amqp://broker:5672/", cfg.Broker.URI)
}

func TestLoadShopRejectsBadWaitTimeout(t *testing.T) {
	_, err := loadShop([]string{"-wait-timeout", "soon"}, lookupFrom(nil))
	require.Error(t, err)
}

func TestLoadRejectsSameQueues(t *testing.T) {
	env := map[string]string{
		"REQUEST_QUEUE":    "orders",
		"COMPLETION_QUEUE": "orders",
	}

	_, err := loadShop(nil, lookupFrom(env))
	require.Error(t, err)

	_, err = loadFulfillment(nil, lookupFrom(env))
	require.Error(t, err)
}

func TestLoadFulfillmentDefaults(t *testing.T) {
	cfg, err := loadFulfillment(nil, lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, "./data/orders.db", cfg.DatabasePath)
	assert.Equal(t, defaultShutdownTimeout, cfg.ShutdownTimeout)
	assert.Equal(t, defaultRetryInterval, cfg.Broker.RetryInterval)
	assert.Equal(t, defaultRetryElapsed, cfg.Broker.MaxRetryElapsed)
}
