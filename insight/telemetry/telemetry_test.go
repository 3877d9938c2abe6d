package telemetry

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/insight-agent/insight/config"
)

// TestInit_Disabled tests the no-op shutdown path.
func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TelemetryConfig{Enabled: false}, zerolog.Nop())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	shutdown, err = Init(context.Background(), config.TelemetryConfig{Enabled: true}, zerolog.Nop())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

// TestInit_Enabled tests provider installation. The gRPC exporter connects
// lazily, so no collector is needed.
func TestInit_Enabled(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TelemetryConfig{
		Enabled:     true,
		ServiceName: "insight-test",
		Endpoint:    "127.0.0.1:4317",
		Insecure:    true,
	}, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
