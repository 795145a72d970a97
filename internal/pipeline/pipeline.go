// SPDX-License-Identifier: MIT
//
// Package pipeline runs the preprocessing stages in order and fans the mel
// computation out across frames.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"melspec/internal/analysis"
	"melspec/internal/config"
	"melspec/internal/dsp"
	"melspec/internal/log"
	"melspec/internal/observe"
)

// Options configures one run.
type Options struct {
	Mode dsp.Mode
	// Band overrides the mode table when set.
	Band        *dsp.FilterSpec
	PreEmphasis float64
	Trim        dsp.TrimOptions
	FrameLength float64
	Overlap     float64
	// Analysis.SampleRate is taken from the input buffer.
	Analysis analysis.Config
	// Workers bounds concurrent frame computations; 0 uses NumCPU.
	Workers int
	Metrics *observe.Metrics
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Mode:        dsp.Mixed,
		PreEmphasis: dsp.DefaultPreEmphasis,
		Trim:        dsp.TrimOptions{WindowLength: dsp.DefaultTrimWindow},
		FrameLength: config.DefaultFrameLength,
		Overlap:     config.DefaultOverlap,
	}
}

// OptionsFromConfig maps a loaded configuration onto pipeline options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	mode, err := dsp.ParseMode(cfg.Mode)
	if err != nil {
		return Options{}, err
	}
	opts := Options{
		Mode:        mode,
		PreEmphasis: cfg.Preprocess.PreEmphasis,
		Trim: dsp.TrimOptions{
			TopDB:        cfg.Preprocess.TopDB,
			WindowLength: cfg.Preprocess.TrimWindow,
		},
		FrameLength: cfg.Preprocess.FrameLength,
		Overlap:     cfg.Preprocess.Overlap,
		Analysis: analysis.Config{
			NFFT:      cfg.Analysis.NFFT,
			HopLength: cfg.Analysis.HopLength,
			NMels:     cfg.Analysis.NMels,
			FMin:      cfg.Analysis.FMin,
			FMax:      cfg.Analysis.FMax,
			Window:    cfg.Analysis.Window,
			TopDB:     cfg.Analysis.DBFloor,
		},
		Workers: cfg.Workers,
	}
	return opts, nil
}

// FrameError records a frame the mel computer rejected.
type FrameError struct {
	Index  int
	Offset int
	Err    error
}

func (e FrameError) Error() string {
	return fmt.Sprintf("frame %d (sample %d): %v", e.Index, e.Offset, e.Err)
}

func (e FrameError) Unwrap() error { return e.Err }

// Result is everything a run produced.
type Result struct {
	Band      dsp.FilterSpec
	Trimmed   dsp.Buffer
	Trim      dsp.TrimReport
	FrameSize int
	StepSize  int
	// Frames holds the computed spectrograms in index order. Rejected
	// frames are absent here and listed in Failed.
	Frames []analysis.Frame
	Failed []FrameError
}

// Run executes band-pass, normalisation, pre-emphasis, trimming, framing
// and mel computation on buf. Validation errors abort the run; failures of
// individual frames are collected in Result.Failed.
func Run(ctx context.Context, buf dsp.Buffer, opts Options) (*Result, error) {
	ctx, span := observe.StartSpan(ctx, "run",
		attribute.Int("samples", buf.Len()), attribute.Int("sample_rate", buf.SampleRate))
	res, err := run(ctx, buf, opts)
	observe.EndSpan(span, err)
	return res, err
}

func run(ctx context.Context, buf dsp.Buffer, opts Options) (*Result, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	logger := log.Named("pipeline")
	res := &Result{}

	band := opts.Band
	if band == nil {
		spec, err := dsp.BandFor(opts.Mode, buf.SampleRate)
		if err != nil {
			return nil, err
		}
		band = &spec
	}
	res.Band = *band

	var err error
	if buf, err = stage(ctx, metrics, observe.StageBandpass, func() (dsp.Buffer, error) {
		return dsp.BandpassSpec(buf, *band)
	}, attribute.String("mode", opts.Mode.String())); err != nil {
		return nil, err
	}
	if buf, err = stage(ctx, metrics, observe.StageNormalize, func() (dsp.Buffer, error) {
		return dsp.Normalize(buf), nil
	}); err != nil {
		return nil, err
	}
	if buf, err = stage(ctx, metrics, observe.StageEmphasis, func() (dsp.Buffer, error) {
		return dsp.PreEmphasize(buf, opts.PreEmphasis)
	}); err != nil {
		return nil, err
	}
	before := buf.Len()
	res.Trimmed, err = stage(ctx, metrics, observe.StageTrim, func() (dsp.Buffer, error) {
		out, report, err := dsp.Trim(buf, opts.Trim)
		res.Trim = report
		return out, err
	})
	metrics.SamplesTrimmed.Add(ctx, int64(before-res.Trimmed.Len()))
	if err != nil {
		return res, err
	}

	var frames dsp.FrameSet
	_, span := observe.StartSpan(ctx, observe.StageFrame)
	start := time.Now()
	frames, err = dsp.Split(res.Trimmed, opts.FrameLength, opts.Overlap)
	metrics.RecordStage(ctx, observe.StageFrame, start)
	observe.EndSpan(span, err)
	if err != nil {
		return res, err
	}
	res.FrameSize, res.StepSize = frames.FrameSize, frames.StepSize
	logger.Infof("%d frames of %d samples, step %d", frames.Len(), frames.FrameSize, frames.StepSize)
	if frames.Len() == 0 {
		logger.Warnf("trimmed signal (%d samples) is shorter than one frame", res.Trimmed.Len())
		return res, nil
	}

	acfg := opts.Analysis
	acfg.SampleRate = buf.SampleRate
	computer, err := analysis.NewComputer(acfg)
	if err != nil {
		return res, err
	}
	if err := computeFrames(ctx, computer, frames, opts.Workers, metrics, res); err != nil {
		return res, err
	}
	for _, fe := range res.Failed {
		logger.Warnf("skipped %v", fe)
	}
	return res, nil
}

func stage(ctx context.Context, m *observe.Metrics, name string, fn func() (dsp.Buffer, error), attrs ...attribute.KeyValue) (dsp.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return dsp.Buffer{}, err
	}
	_, span := observe.StartSpan(ctx, name, attrs...)
	start := time.Now()
	out, err := fn()
	m.RecordStage(ctx, name, start)
	observe.EndSpan(span, err)
	if err != nil {
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

type slot struct {
	frame analysis.Frame
	err   error
}

func computeFrames(ctx context.Context, c *analysis.Computer, frames dsp.FrameSet, workers int, m *observe.Metrics, res *Result) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	_, span := observe.StartSpan(ctx, observe.StageMel, attribute.Int("frames", frames.Len()), attribute.Int("workers", workers))
	start := time.Now()

	slots := make([]slot, frames.Len())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range frames.Frames {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i].frame, slots[i].err = c.Compute(f, i)
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	m.RecordStage(ctx, observe.StageMel, start)
	observe.EndSpan(span, err)
	if err != nil {
		return err
	}

	for i, s := range slots {
		if s.err != nil {
			res.Failed = append(res.Failed, FrameError{Index: i, Offset: frames.Offset(i), Err: s.err})
			continue
		}
		res.Frames = append(res.Frames, s.frame)
	}
	m.FramesComputed.Add(ctx, int64(len(res.Frames)))
	m.FramesFailed.Add(ctx, int64(len(res.Failed)))
	return nil
}
