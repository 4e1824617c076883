package tracer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_NoExport(t *testing.T) {
	t.Parallel()
	client, err := NewClient(Config{ServiceName: "test-service", AppEnv: "test"})

	require.NoError(t, err)
	assert.NotNil(t, client.tracer)
}

func TestNewClient_EnableExport_NoCollector(t *testing.T) {
	t.Parallel()
	// The OTLP HTTP exporter connects lazily, so NewClient succeeds even without a collector.
	client, err := NewClient(Config{ServiceName: "test-service", AppEnv: "production", EnableExport: true})

	require.NoError(t, err)
	assert.NotNil(t, client)
	require.NoError(t, client.Shutdown(context.Background()))
}

func TestNewClient_EnableExport_CancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client, err := newClientWithContext(ctx, Config{ServiceName: "test-service", EnableExport: true}, nil)

	assert.Nil(t, client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize OTLP exporter")
}

func TestTracerClient_ShutdownNilProvider(t *testing.T) {
	t.Parallel()
	assert.NoError(t, (&TracerClient{}).Shutdown(context.Background()))
}
