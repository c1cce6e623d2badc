package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"livesub/internal/config"
	"livesub/internal/logging"
)

// ServiceName identifies livesub in exported resources.
const ServiceName = "livesub"

// Provider wraps the SDK meter provider with a shutdown hook.
type Provider struct {
	mp       *sdkmetric.MeterProvider
	exported bool
}

// Setup builds a meter provider from cfg and installs it globally. Extra
// readers (for example a ManualReader in tests) are attached alongside the
// exporter.
func Setup(ctx context.Context, cfg config.Metrics, version string, logger *slog.Logger, readers ...sdkmetric.Reader) (*Provider, error) {
	res, err := newResource(version)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, reader := range readers {
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	exported := false
	if cfg.OTLPEndpoint != "" {
		exporterOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("creating metric exporter: %w", err)
		}
		var readerOpts []sdkmetric.PeriodicReaderOption
		if cfg.IntervalSeconds > 0 {
			readerOpts = append(readerOpts, sdkmetric.WithInterval(time.Duration(cfg.IntervalSeconds)*time.Second))
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)))
		exported = true
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)

	if logger != nil {
		logger.Info("meter initialized",
			logging.String("endpoint", cfg.OTLPEndpoint),
			logging.Bool("exported", exported),
			logging.Int("interval_seconds", cfg.IntervalSeconds),
		)
	}
	return &Provider{mp: mp, exported: exported}, nil
}

// Meter returns a named meter from the provider.
func (p *Provider) Meter(name string) metric.Meter {
	if p == nil || p.mp == nil {
		return otel.Meter(name)
	}
	return p.mp.Meter(name)
}

// Exported reports whether an OTLP exporter is attached.
func (p *Provider) Exported() bool {
	return p != nil && p.exported
}

// Shutdown flushes pending measurements and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.mp == nil {
		return nil
	}
	return p.mp.Shutdown(ctx)
}

func newResource(version string) (*resource.Resource, error) {
	if version == "" {
		version = "dev"
	}
	return resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(version),
			attribute.String("component", "pipeline"),
		),
	)
}
