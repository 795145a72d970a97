// SPDX-License-Identifier: MIT
//
// Package dsp implements the time-domain preprocessing stages: band-pass
// filtering, peak normalisation, pre-emphasis, silence trimming and framing.
// Every stage is a pure function that returns a freshly allocated Buffer.
package dsp

import (
	"fmt"
	"time"
)

// Buffer is a mono run of samples at a fixed sample rate.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Validate checks that the buffer has samples and a positive rate.
func (b Buffer) Validate() error {
	if b.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d must be positive", ErrInvalidParameter, b.SampleRate)
	}
	if len(b.Samples) == 0 {
		return ErrEmptySignal
	}
	return nil
}

func (b Buffer) Len() int { return len(b.Samples) }

// Duration is the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// Clone returns a deep copy.
func (b Buffer) Clone() Buffer {
	out := Buffer{SampleRate: b.SampleRate, Samples: make([]float32, len(b.Samples))}
	copy(out.Samples, b.Samples)
	return out
}

func (b Buffer) float64s() []float64 {
	out := make([]float64, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = float64(s)
	}
	return out
}

func fromFloat64s(samples []float64, sampleRate int) Buffer {
	out := Buffer{SampleRate: sampleRate, Samples: make([]float32, len(samples))}
	for i, s := range samples {
		out.Samples[i] = float32(s)
	}
	return out
}

// Interval is a half-open sample range [Start, End).
type Interval struct {
	Start, End int
}

func (iv Interval) Len() int { return iv.End - iv.Start }
