package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/blockcache/pkg/cacheconfig"
)

func TestBuildTelemetryDisabledReturnsNilBundle(t *testing.T) {
	t.Parallel()

	cfg := &cacheconfig.Config{}

	tel, shutdown, err := buildTelemetry(cfg)
	require.NoError(t, err)
	assert.Nil(t, tel)

	require.NotPanics(t, shutdown)
}

func TestBuildTelemetryEnabledReturnsMetricsBundle(t *testing.T) {
	t.Parallel()

	cfg := &cacheconfig.Config{Telemetry: cacheconfig.TelemetryConfig{Enabled: true}}

	tel, shutdown, err := buildTelemetry(cfg)
	require.NoError(t, err)
	require.NotNil(t, tel)
	assert.NotNil(t, tel.Metrics)
	assert.NotNil(t, tel.Logger)

	shutdown()
}
