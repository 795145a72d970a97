package observe

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestRecordStage(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordStage(ctx, StageTrim, time.Now().Add(-20*time.Millisecond))
	m.RecordStage(ctx, StageTrim, time.Now())
	m.RecordStage(ctx, StageMel, time.Now())

	got := findMetric(collect(t, reader), "melspec.stage.duration")
	if got == nil {
		t.Fatal("stage duration metric not found")
	}
	hist, ok := got.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type %T", got.Data)
	}
	counts := map[string]uint64{}
	for _, dp := range hist.DataPoints {
		stage, _ := dp.Attributes.Value(attribute.Key("stage"))
		counts[stage.AsString()] = dp.Count
		if stage.AsString() == StageTrim && dp.Sum < 0.02 {
			t.Errorf("trim duration sum = %g, want >= 0.02", dp.Sum)
		}
	}
	if counts[StageTrim] != 2 || counts[StageMel] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestCountersAndSummary(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.FramesComputed.Add(ctx, 5)
	m.FramesFailed.Add(ctx, 1)
	m.SamplesTrimmed.Add(ctx, 4096)
	m.RecordArtifact(ctx, "png")
	m.RecordArtifact(ctx, "png")

	lines := Summarize(collect(t, reader))
	want := []string{
		"melspec.frames.computed = 5",
		"melspec.frames.failed = 1",
		"melspec.samples.trimmed = 4096",
		"melspec.artifacts.written{kind=png} = 2",
	}
	joined := strings.Join(lines, "\n")
	for _, w := range want {
		if !strings.Contains(joined, w) {
			t.Errorf("summary missing %q:\n%s", w, joined)
		}
	}
}

func TestInitProviderSummary(t *testing.T) {
	prevMP, prevTP := otel.GetMeterProvider(), otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(prevMP)
		otel.SetTracerProvider(prevTP)
	})

	p, err := InitProvider(ProviderConfig{ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		t.Fatal(err)
	}
	m.FramesComputed.Add(context.Background(), 3)

	lines, err := p.Summary(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 || lines[0] != "melspec.frames.computed = 3" {
		t.Errorf("Summary() = %v", lines)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestStartSpan(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	_, span := StartSpan(context.Background(), StageBandpass, attribute.String("mode", "grunt"))
	EndSpan(span, nil)
	_, span = StartSpan(context.Background(), StageTrim)
	EndSpan(span, errors.New("empty signal"))

	ended := recorder.Ended()
	if len(ended) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(ended))
	}
	if ended[0].Name() != "melspec.bandpass" {
		t.Errorf("span name = %q", ended[0].Name())
	}
	if ended[1].Status().Code != codes.Error {
		t.Errorf("failed span status = %v", ended[1].Status())
	}
}
