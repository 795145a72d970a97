// SPDX-License-Identifier: MIT
package dsp

import "errors"

var (
	// ErrInvalidFilterSpec is returned when band-pass cutoffs or order
	// cannot produce a stable filter at the buffer's sample rate.
	ErrInvalidFilterSpec = errors.New("invalid filter spec")

	// ErrInvalidParameter is returned for out-of-range stage parameters.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrEmptySignal is returned when a stage receives, or would produce,
	// a buffer with no samples.
	ErrEmptySignal = errors.New("empty signal")
)
