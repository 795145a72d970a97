// SPDX-License-Identifier: MIT
package dsp

import (
	"fmt"
	"math"
)

// Normalize scales buf so its peak absolute sample is 1. A silent buffer
// is returned as an unscaled copy.
func Normalize(buf Buffer) Buffer {
	out := buf.Clone()
	var peak float32
	for _, s := range buf.Samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return out
	}
	for i := range out.Samples {
		out.Samples[i] /= peak
	}
	return out
}

// DefaultPreEmphasis is the first-order emphasis coefficient.
const DefaultPreEmphasis = 0.97

// PreEmphasize returns y[0] = x[0], y[i] = x[i] - coeff*x[i-1].
func PreEmphasize(buf Buffer, coeff float64) (Buffer, error) {
	if !(coeff >= 0 && coeff < 1) {
		return Buffer{}, fmt.Errorf("%w: pre-emphasis coefficient %g outside [0, 1)", ErrInvalidParameter, coeff)
	}
	out := Buffer{SampleRate: buf.SampleRate, Samples: make([]float32, len(buf.Samples))}
	if len(buf.Samples) == 0 {
		return out, nil
	}
	out.Samples[0] = buf.Samples[0]
	c := float32(coeff)
	for i := 1; i < len(buf.Samples); i++ {
		out.Samples[i] = buf.Samples[i] - c*buf.Samples[i-1]
	}
	return out, nil
}
