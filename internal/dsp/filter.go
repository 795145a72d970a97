// SPDX-License-Identifier: MIT
package dsp

import "melspec/internal/log"

// Bandpass applies the zero-phase Butterworth band for mode.
func Bandpass(buf Buffer, mode Mode) (Buffer, error) {
	if err := buf.Validate(); err != nil {
		return Buffer{}, err
	}
	spec, err := BandFor(mode, buf.SampleRate)
	if err != nil {
		return Buffer{}, err
	}
	return BandpassSpec(buf, spec)
}

// BandpassSpec applies a zero-phase Butterworth band-pass described by spec.
// Output length equals input length.
func BandpassSpec(buf Buffer, spec FilterSpec) (Buffer, error) {
	if err := buf.Validate(); err != nil {
		return Buffer{}, err
	}
	sos, err := DesignBandpass(spec, buf.SampleRate)
	if err != nil {
		return Buffer{}, err
	}
	log.Named("dsp").Debugf("band-pass %s over %d samples at %d Hz", spec, buf.Len(), buf.SampleRate)
	return fromFloat64s(sos.FiltFilt(buf.float64s()), buf.SampleRate), nil
}
