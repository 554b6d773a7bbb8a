package commands

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache/telemetry"
	"github.com/Sumatoshi-tech/blockcache/pkg/cacheconfig"
)

// buildTelemetry initializes OTel/Prometheus providers and returns a
// *cacheconfig.Telemetry bundle suitable for cacheconfig.Build, when
// cfg.Telemetry.Enabled is set. It returns a nil bundle and a no-op shutdown
// when telemetry is disabled, so callers can unconditionally defer the
// returned shutdown func.
func buildTelemetry(cfg *cacheconfig.Config) (*cacheconfig.Telemetry, func(), error) {
	if !cfg.Telemetry.Enabled {
		return nil, func() {}, nil
	}

	providers, err := telemetry.Init(telemetry.Config{ServiceName: "blockcache"})
	if err != nil {
		return nil, nil, fmt.Errorf("init providers: %w", err)
	}

	shutdown := func() {
		_ = providers.Shutdown(context.Background())
	}

	metrics, err := telemetry.NewCacheMetrics(providers.Meter)
	if err != nil {
		shutdown()

		return nil, nil, fmt.Errorf("create cache metrics: %w", err)
	}

	tel := &cacheconfig.Telemetry{
		Metrics: metrics,
		Logger:  providers.Logger,
		Tracer:  providers.Tracer,
	}

	return tel, shutdown, nil
}
