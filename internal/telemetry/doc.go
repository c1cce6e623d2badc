// Package telemetry configures the OpenTelemetry meter provider used by the
// pipeline and daemon.
//
// With no OTLP endpoint configured the provider still hands out working
// instruments; measurements are aggregated in process and never exported.
package telemetry
