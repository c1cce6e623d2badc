package telemetry_test

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"livesub/internal/config"
	"livesub/internal/logging"
	"livesub/internal/telemetry"
)

func TestSetupWithoutEndpointRecordsLocally(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider, err := telemetry.Setup(context.Background(), config.Metrics{}, "test", logging.NewNop(), reader)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	if provider.Exported() {
		t.Fatal("expected no exporter without endpoint")
	}

	counter, err := provider.Meter("test").Int64Counter("probe.total")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	counter.Add(context.Background(), 3)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(rm.ScopeMetrics) != 1 || len(rm.ScopeMetrics[0].Metrics) != 1 {
		t.Fatalf("unexpected metrics: %+v", rm.ScopeMetrics)
	}
	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 3 {
		t.Fatalf("unexpected data: %+v", rm.ScopeMetrics[0].Metrics[0].Data)
	}
}

func TestShutdownNilProvider(t *testing.T) {
	var p *telemetry.Provider
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown nil: %v", err)
	}
}
