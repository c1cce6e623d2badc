package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"livesub/internal/audio"
)

// MeterName is the instrumentation scope for pipeline instruments.
const MeterName = "livesub/pipeline"

// Stage names used as the "stage" attribute on latency measurements.
const (
	StageTranscription = "transcription"
	StageTranslation   = "translation"
)

// Metrics holds the pipeline's OpenTelemetry instruments. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	segmentsTotal       metric.Int64Counter
	cuesTotal           metric.Int64Counter
	translationFailures metric.Int64Counter
	stageDuration       metric.Float64Histogram
	audioSeconds        metric.Float64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	segmentsTotal, err := meter.Int64Counter("livesub.segments.processed",
		metric.WithDescription("Audio segments transcribed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating livesub.segments.processed counter: %w", err)
	}

	cuesTotal, err := meter.Int64Counter("livesub.cues.emitted",
		metric.WithDescription("Subtitle cues delivered to consumers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating livesub.cues.emitted counter: %w", err)
	}

	translationFailures, err := meter.Int64Counter("livesub.translation.failures",
		metric.WithDescription("Lines that fell back to the translation error marker"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating livesub.translation.failures counter: %w", err)
	}

	stageDuration, err := meter.Float64Histogram("livesub.stage.duration",
		metric.WithDescription("Per-item processing latency by stage in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating livesub.stage.duration histogram: %w", err)
	}

	audioSeconds, err := meter.Float64Counter("livesub.audio.transcribed",
		metric.WithDescription("Seconds of audio transcribed"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating livesub.audio.transcribed counter: %w", err)
	}

	return &Metrics{
		segmentsTotal:       segmentsTotal,
		cuesTotal:           cuesTotal,
		translationFailures: translationFailures,
		stageDuration:       stageDuration,
		audioSeconds:        audioSeconds,
	}, nil
}

// SegmentTranscribed records one recognised audio segment.
func (m *Metrics) SegmentTranscribed(ctx context.Context, seg audio.Segment, latency time.Duration) {
	if m == nil {
		return
	}
	m.segmentsTotal.Add(ctx, 1)
	m.audioSeconds.Add(ctx, seg.Duration().Seconds())
	m.recordStage(ctx, StageTranscription, latency)
}

// Translated records a successful translation.
func (m *Metrics) Translated(ctx context.Context, latency time.Duration) {
	if m == nil {
		return
	}
	m.recordStage(ctx, StageTranslation, latency)
}

// TranslationFailed records a line that degraded to the error marker.
func (m *Metrics) TranslationFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.translationFailures.Add(ctx, 1)
}

// CueEmitted records a cue leaving the pipeline.
func (m *Metrics) CueEmitted(ctx context.Context) {
	if m == nil {
		return
	}
	m.cuesTotal.Add(ctx, 1)
}

func (m *Metrics) recordStage(ctx context.Context, stage string, latency time.Duration) {
	m.stageDuration.Record(ctx, latency.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
	))
}
