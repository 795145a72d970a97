// SPDX-License-Identifier: MIT
package dsp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"melspec/internal/log"
)

// DefaultTrimWindow matches the STFT hop length.
const DefaultTrimWindow = 512

const (
	minAdaptiveTopDB = 20.0
	maxAdaptiveTopDB = 60.0
	adaptiveFactor   = 0.6
	rmsFloor         = 1e-10
)

// TrimOptions controls Trim. A nil TopDB selects the adaptive threshold.
type TrimOptions struct {
	TopDB        *float64
	WindowLength int
}

// TrimReport describes what Trim decided.
type TrimReport struct {
	TopDB     float64
	Adaptive  bool
	Intervals []Interval
	Removed   int
}

// AdaptiveTopDB derives the silence threshold from the overall RMS level:
// 0.6 * |20*log10(rms)|, clamped to [20, 60] dB.
func AdaptiveTopDB(buf Buffer) float64 {
	x := buf.float64s()
	if len(x) == 0 {
		return minAdaptiveTopDB
	}
	rms := math.Sqrt(floats.Dot(x, x) / float64(len(x)))
	db := 20 * math.Log10(math.Max(rms, rmsFloor))
	return math.Min(math.Max(adaptiveFactor*math.Abs(db), minAdaptiveTopDB), maxAdaptiveTopDB)
}

// NonSilentIntervals splits buf into windows and returns the merged runs
// whose mean-square energy is within topDB of the loudest window.
func NonSilentIntervals(buf Buffer, topDB float64, window int) []Interval {
	n := len(buf.Samples)
	if n == 0 || window <= 0 {
		return nil
	}
	x := buf.float64s()
	count := (n + window - 1) / window
	energy := make([]float64, count)
	for w := range energy {
		seg := x[w*window : min((w+1)*window, n)]
		energy[w] = floats.Dot(seg, seg) / float64(len(seg))
	}
	peak := floats.Max(energy)
	if peak <= 0 {
		return nil
	}

	var intervals []Interval
	for w, e := range energy {
		if e <= 0 || 10*math.Log10(e/peak) < -topDB {
			continue
		}
		start, end := w*window, min((w+1)*window, n)
		if last := len(intervals) - 1; last >= 0 && intervals[last].End == start {
			intervals[last].End = end
			continue
		}
		intervals = append(intervals, Interval{Start: start, End: end})
	}
	return intervals
}

// Trim drops silent windows and concatenates what remains in order. An
// entirely silent buffer yields an empty buffer and ErrEmptySignal.
func Trim(buf Buffer, opts TrimOptions) (Buffer, TrimReport, error) {
	var report TrimReport
	if err := buf.Validate(); err != nil {
		return Buffer{}, report, err
	}
	window := opts.WindowLength
	if window == 0 {
		window = DefaultTrimWindow
	}
	if window < 0 {
		return Buffer{}, report, fmt.Errorf("%w: trim window %d must be positive", ErrInvalidParameter, window)
	}

	if opts.TopDB != nil {
		if !(*opts.TopDB > 0) || math.IsInf(*opts.TopDB, 0) {
			return Buffer{}, report, fmt.Errorf("%w: top_db %g must be positive and finite", ErrInvalidParameter, *opts.TopDB)
		}
		report.TopDB = *opts.TopDB
	} else {
		report.TopDB = AdaptiveTopDB(buf)
		report.Adaptive = true
	}

	report.Intervals = NonSilentIntervals(buf, report.TopDB, window)
	out := Buffer{SampleRate: buf.SampleRate, Samples: make([]float32, 0, len(buf.Samples))}
	for _, iv := range report.Intervals {
		out.Samples = append(out.Samples, buf.Samples[iv.Start:iv.End]...)
	}
	report.Removed = len(buf.Samples) - len(out.Samples)

	logger := log.Named("dsp")
	logger.Infof("trim: top_db %.1f (adaptive %t), kept %d of %d samples in %d intervals",
		report.TopDB, report.Adaptive, len(out.Samples), len(buf.Samples), len(report.Intervals))
	if len(out.Samples) == 0 {
		return Buffer{SampleRate: buf.SampleRate, Samples: []float32{}}, report, fmt.Errorf("%w: all windows below threshold", ErrEmptySignal)
	}
	return out, report, nil
}
