// SPDX-License-Identifier: MIT
package dsp

import (
	"fmt"
	"math"
)

// FrameSet is an ordered run of equal-length frames taken StepSize apart.
type FrameSet struct {
	Frames     []Buffer
	FrameSize  int
	StepSize   int
	SampleRate int
}

func (fs FrameSet) Len() int { return len(fs.Frames) }

// Offset returns the first sample of frame i in the source buffer.
func (fs FrameSet) Offset(i int) int { return i * fs.StepSize }

// FrameSize converts a frame length in seconds and overlap fraction into
// sample counts.
func FrameSize(sampleRate int, frameLengthSec, overlap float64) (size, step int, err error) {
	if !(overlap >= 0 && overlap < 1) {
		return 0, 0, fmt.Errorf("%w: overlap %g outside [0, 1)", ErrInvalidParameter, overlap)
	}
	if math.IsNaN(frameLengthSec) || math.IsInf(frameLengthSec, 0) {
		return 0, 0, fmt.Errorf("%w: frame length %g s", ErrInvalidParameter, frameLengthSec)
	}
	size = int(math.Round(frameLengthSec * float64(sampleRate)))
	if size <= 0 {
		return 0, 0, fmt.Errorf("%w: frame length %g s gives %d samples", ErrInvalidParameter, frameLengthSec, size)
	}
	step = int(math.Round(float64(size) * (1 - overlap)))
	if step <= 0 {
		return 0, 0, fmt.Errorf("%w: overlap %g leaves step %d for frame size %d", ErrInvalidParameter, overlap, step, size)
	}
	return size, step, nil
}

// Split cuts buf into frames of frameLengthSec seconds overlapping by the
// given fraction. The trailing partial frame is dropped. A buffer shorter
// than one frame yields an empty FrameSet and no error.
func Split(buf Buffer, frameLengthSec, overlap float64) (FrameSet, error) {
	if err := buf.Validate(); err != nil {
		return FrameSet{}, err
	}
	size, step, err := FrameSize(buf.SampleRate, frameLengthSec, overlap)
	if err != nil {
		return FrameSet{}, err
	}
	set := FrameSet{FrameSize: size, StepSize: step, SampleRate: buf.SampleRate}
	for off := 0; off+size <= len(buf.Samples); off += step {
		frame := make([]float32, size)
		copy(frame, buf.Samples[off:off+size])
		set.Frames = append(set.Frames, Buffer{Samples: frame, SampleRate: buf.SampleRate})
	}
	return set, nil
}
