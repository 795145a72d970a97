// Package observe wires OpenTelemetry metrics and tracing into the melspec
// pipeline. Instruments are created from an explicit MeterProvider so tests
// can inspect them through a ManualReader.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "melspec"

// Stage names used as the "stage" attribute.
const (
	StageLoad      = "load"
	StageBandpass  = "bandpass"
	StageNormalize = "normalize"
	StageEmphasis  = "pre_emphasis"
	StageTrim      = "trim"
	StageFrame     = "frame"
	StageMel       = "mel"
	StageExport    = "export"
)

// Metrics holds the pipeline instruments. All fields are safe for
// concurrent use.
type Metrics struct {
	StageDuration  metric.Float64Histogram
	FramesComputed metric.Int64Counter
	FramesFailed   metric.Int64Counter
	SamplesTrimmed metric.Int64Counter
	Artifacts      metric.Int64Counter
}

var durationBuckets = []float64{
	0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10,
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("melspec.stage.duration",
		metric.WithDescription("Wall time spent in each pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FramesComputed, err = m.Int64Counter("melspec.frames.computed",
		metric.WithDescription("Mel spectrogram frames computed successfully."),
	); err != nil {
		return nil, err
	}
	if met.FramesFailed, err = m.Int64Counter("melspec.frames.failed",
		metric.WithDescription("Frames rejected by the mel computer."),
	); err != nil {
		return nil, err
	}
	if met.SamplesTrimmed, err = m.Int64Counter("melspec.samples.trimmed",
		metric.WithDescription("Samples removed as silence."),
	); err != nil {
		return nil, err
	}
	if met.Artifacts, err = m.Int64Counter("melspec.artifacts.written",
		metric.WithDescription("Output artifacts written by kind."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns instruments bound to the global MeterProvider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordStage records the duration of stage since start.
func (m *Metrics) RecordStage(ctx context.Context, stage string, start time.Time) {
	m.StageDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordArtifact counts one written artifact of kind (png, json, wav).
func (m *Metrics) RecordArtifact(ctx context.Context, kind string) {
	m.Artifacts.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
