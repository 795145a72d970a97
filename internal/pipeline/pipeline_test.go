package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"melspec/internal/analysis"
	"melspec/internal/config"
	"melspec/internal/dsp"
	"melspec/internal/observe"
	"melspec/pkg/utils"
)

const testRate = 16000

func sineBuffer(seconds, freq float64) dsp.Buffer {
	n := int(seconds * testRate)
	return dsp.Buffer{Samples: utils.GenerateSineWave(n, testRate, freq, 0.8), SampleRate: testRate}
}

func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: unexpected data type %T", name, m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func testMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func TestRunSine(t *testing.T) {
	metrics, reader := testMetrics(t)
	opts := DefaultOptions()
	opts.Metrics = metrics

	in := sineBuffer(2, 440)
	res, err := Run(context.Background(), in, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Band.LowHz != 100 || res.Band.HighHz >= testRate/2 {
		t.Errorf("band = %v", res.Band)
	}
	if res.Trimmed.Len() != in.Len() {
		t.Errorf("trimmed length = %d, want %d", res.Trimmed.Len(), in.Len())
	}
	if !res.Trim.Adaptive || res.Trim.TopDB < 20 || res.Trim.TopDB > 60 {
		t.Errorf("trim report = %+v", res.Trim)
	}
	if res.FrameSize != 16000 || res.StepSize != 8000 {
		t.Errorf("frame size/step = %d/%d, want 16000/8000", res.FrameSize, res.StepSize)
	}
	if len(res.Frames) != 3 || len(res.Failed) != 0 {
		t.Fatalf("frames = %d, failed = %d, want 3 and 0", len(res.Frames), len(res.Failed))
	}

	for i, f := range res.Frames {
		if f.Index != i {
			t.Errorf("frame %d has index %d", i, f.Index)
		}
		mels, cols := f.Dims()
		if mels != analysis.DefaultNMels || cols != 32 {
			t.Errorf("frame %d dims = %dx%d, want 128x32", i, mels, cols)
		}
		st := f.Stats()
		if st.Max != 0 || st.Min < -analysis.DefaultTopDB {
			t.Errorf("frame %d range = [%g, %g]", i, st.Min, st.Max)
		}
	}

	bank, err := analysis.FilterBankFor(testRate, analysis.DefaultNFFT, analysis.DefaultNMels, 0, 8000)
	if err != nil {
		t.Fatalf("FilterBankFor: %v", err)
	}
	peak := bank.Centers()[res.Frames[1].Stats().PeakBand]
	if math.Abs(peak-440) > 60 {
		t.Errorf("peak band centre = %.1f Hz, want near 440", peak)
	}

	if got := counterValue(t, reader, "melspec.frames.computed"); got != 3 {
		t.Errorf("frames computed counter = %d, want 3", got)
	}
	if got := counterValue(t, reader, "melspec.samples.trimmed"); got != 0 {
		t.Errorf("samples trimmed counter = %d, want 0", got)
	}
}

func TestRunWorkersAgree(t *testing.T) {
	in := dsp.Buffer{Samples: utils.GenerateComplexWave(3*testRate, testRate), SampleRate: testRate}

	serial := DefaultOptions()
	serial.Workers = 1
	parallel := DefaultOptions()
	parallel.Workers = 4

	a, err := Run(context.Background(), in, serial)
	if err != nil {
		t.Fatalf("serial: %v", err)
	}
	b, err := Run(context.Background(), in, parallel)
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	if len(a.Frames) != len(b.Frames) || len(a.Frames) == 0 {
		t.Fatalf("frame counts differ: %d vs %d", len(a.Frames), len(b.Frames))
	}
	for i := range a.Frames {
		if b.Frames[i].Index != i {
			t.Errorf("parallel frame %d out of order (index %d)", i, b.Frames[i].Index)
		}
		if !matEqual(a.Frames[i], b.Frames[i]) {
			t.Errorf("frame %d differs between worker counts", i)
		}
	}
}

func matEqual(a, b analysis.Frame) bool {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ra != rb || ca != cb {
		return false
	}
	for r := range ra {
		for c := range ca {
			if a.DB.At(r, c) != b.DB.At(r, c) {
				return false
			}
		}
	}
	return true
}

func TestRunSilence(t *testing.T) {
	in := dsp.Buffer{Samples: make([]float32, testRate), SampleRate: testRate}
	res, err := Run(context.Background(), in, DefaultOptions())
	if !errors.Is(err, dsp.ErrEmptySignal) {
		t.Fatalf("err = %v, want ErrEmptySignal", err)
	}
	if res == nil || res.Trimmed.Len() != 0 || len(res.Frames) != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestRunShorterThanFrame(t *testing.T) {
	res, err := Run(context.Background(), sineBuffer(0.5, 440), DefaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Frames) != 0 || len(res.Failed) != 0 {
		t.Errorf("frames = %d, failed = %d, want none", len(res.Frames), len(res.Failed))
	}
	if res.Trimmed.Len() == 0 {
		t.Error("trimmed buffer should be kept")
	}
}

func TestRunInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		buf  dsp.Buffer
		opts func(*Options)
		want error
	}{
		{"empty", dsp.Buffer{SampleRate: testRate}, nil, dsp.ErrEmptySignal},
		{"no rate", dsp.Buffer{Samples: []float32{1, 2}}, nil, dsp.ErrInvalidParameter},
		{"band above nyquist", sineBuffer(2, 440), func(o *Options) {
			o.Band = &dsp.FilterSpec{LowHz: 100, HighHz: 9000, Order: 4}
		}, dsp.ErrInvalidFilterSpec},
		{"bad coefficient", sineBuffer(2, 440), func(o *Options) { o.PreEmphasis = 1.5 }, dsp.ErrInvalidParameter},
		{"bad overlap", sineBuffer(2, 440), func(o *Options) { o.Overlap = 1 }, dsp.ErrInvalidParameter},
		{"bad nfft", sineBuffer(2, 440), func(o *Options) { o.Analysis.NFFT = 1000 }, dsp.ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}
			_, err := Run(context.Background(), tt.buf, opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, sineBuffer(2, 440), DefaultOptions()); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestComputeFramesCollectsFailures(t *testing.T) {
	metrics, reader := testMetrics(t)
	computer, err := analysis.NewComputer(analysis.Config{SampleRate: testRate})
	if err != nil {
		t.Fatalf("NewComputer: %v", err)
	}

	good := utils.GenerateSineWave(4096, testRate, 1000, 0.5)
	bad := make([]float32, 4096)
	bad[10] = float32(math.NaN())
	frames := dsp.FrameSet{
		Frames: []dsp.Buffer{
			{Samples: good, SampleRate: testRate},
			{Samples: bad, SampleRate: testRate},
			{Samples: good, SampleRate: testRate},
		},
		FrameSize:  4096,
		StepSize:   2048,
		SampleRate: testRate,
	}

	res := &Result{}
	if err := computeFrames(context.Background(), computer, frames, 2, metrics, res); err != nil {
		t.Fatalf("computeFrames: %v", err)
	}
	if len(res.Frames) != 2 || res.Frames[0].Index != 0 || res.Frames[1].Index != 2 {
		t.Fatalf("frames = %d, want indices 0 and 2", len(res.Frames))
	}
	if len(res.Failed) != 1 {
		t.Fatalf("failed = %d, want 1", len(res.Failed))
	}
	fe := res.Failed[0]
	if fe.Index != 1 || fe.Offset != 2048 {
		t.Errorf("failure = %+v", fe)
	}
	if !errors.Is(fe, analysis.ErrFrame) || !errors.Is(fe, dsp.ErrInvalidParameter) {
		t.Errorf("failure does not wrap the frame error: %v", fe)
	}
	if got := counterValue(t, reader, "melspec.frames.failed"); got != 1 {
		t.Errorf("frames failed counter = %d, want 1", got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = "grunt"
	cfg.Workers = 3
	topDB := 35.0
	cfg.Preprocess.TopDB = &topDB
	cfg.Analysis.NMels = 64

	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("OptionsFromConfig: %v", err)
	}
	if opts.Mode != dsp.Grunt || opts.Workers != 3 || opts.Analysis.NMels != 64 {
		t.Errorf("opts = %+v", opts)
	}
	if opts.Trim.TopDB == nil || *opts.Trim.TopDB != 35 {
		t.Errorf("trim top_db = %v", opts.Trim.TopDB)
	}
	if opts.FrameLength != 1 || opts.Overlap != 0.5 || opts.PreEmphasis != 0.97 {
		t.Errorf("preprocess = %v %v %v", opts.FrameLength, opts.Overlap, opts.PreEmphasis)
	}

	cfg.Mode = "roar"
	if _, err := OptionsFromConfig(cfg); !errors.Is(err, dsp.ErrInvalidParameter) {
		t.Errorf("err = %v, want ErrInvalidParameter", err)
	}
}

func BenchmarkRun(b *testing.B) {
	in := sineBuffer(3, 440)
	opts := DefaultOptions()
	for b.Loop() {
		if _, err := Run(context.Background(), in, opts); err != nil {
			b.Fatal(err)
		}
	}
}
