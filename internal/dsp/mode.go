// SPDX-License-Identifier: MIT
package dsp

import (
	"fmt"
	"strings"

	"melspec/internal/log"
)

// Mode selects the frequency band of interest for a recording.
type Mode int

const (
	Grunt Mode = iota
	Squeal
	Mixed
)

// DefaultFilterOrder is the Butterworth prototype order used by Bandpass.
const DefaultFilterOrder = 4

// nyquistCap is applied to table bands whose upper edge reaches Nyquist.
const nyquistCap = 0.99

var modeBands = map[Mode][2]float64{
	Grunt:  {80, 800},
	Squeal: {500, 8000},
	Mixed:  {100, 8000},
}

func (m Mode) String() string {
	switch m {
	case Grunt:
		return "grunt"
	case Squeal:
		return "squeal"
	case Mixed:
		return "mixed"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a case-insensitive mode name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "grunt":
		return Grunt, nil
	case "squeal":
		return Squeal, nil
	case "mixed", "":
		return Mixed, nil
	default:
		return Mixed, fmt.Errorf("%w: unknown mode %q (want grunt, squeal or mixed)", ErrInvalidParameter, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// FilterSpec describes a band-pass filter in Hz.
type FilterSpec struct {
	LowHz  float64
	HighHz float64
	Order  int
}

func (s FilterSpec) String() string {
	return fmt.Sprintf("%.1f-%.1f Hz order %d", s.LowHz, s.HighHz, s.Order)
}

// Validate checks 0 < low < high < nyquist and a positive even order.
func (s FilterSpec) Validate(sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d must be positive", ErrInvalidFilterSpec, sampleRate)
	}
	nyquist := 0.5 * float64(sampleRate)
	switch {
	case !(s.LowHz > 0):
		return fmt.Errorf("%w: low cutoff %g Hz must be positive", ErrInvalidFilterSpec, s.LowHz)
	case !(s.LowHz < s.HighHz):
		return fmt.Errorf("%w: low cutoff %g Hz must be below high cutoff %g Hz", ErrInvalidFilterSpec, s.LowHz, s.HighHz)
	case !(s.HighHz < nyquist):
		return fmt.Errorf("%w: high cutoff %g Hz must be below nyquist %g Hz", ErrInvalidFilterSpec, s.HighHz, nyquist)
	case s.Order <= 0 || s.Order%2 != 0:
		return fmt.Errorf("%w: order %d must be positive and even", ErrInvalidFilterSpec, s.Order)
	}
	return nil
}

// BandFor returns the validated band for mode at sampleRate. Table bands
// that reach Nyquist are pulled down to 99% of it.
func BandFor(mode Mode, sampleRate int) (FilterSpec, error) {
	band, ok := modeBands[mode]
	if !ok {
		return FilterSpec{}, fmt.Errorf("%w: no band for %s", ErrInvalidFilterSpec, mode)
	}
	spec := FilterSpec{LowHz: band[0], HighHz: band[1], Order: DefaultFilterOrder}
	nyquist := 0.5 * float64(sampleRate)
	if sampleRate > 0 && spec.HighHz >= nyquist {
		capped := nyquistCap * nyquist
		log.Named("dsp").Warnf("%s band high edge %.0f Hz reaches nyquist %.0f Hz, capping to %.1f Hz",
			mode, spec.HighHz, nyquist, capped)
		spec.HighHz = capped
	}
	if err := spec.Validate(sampleRate); err != nil {
		return FilterSpec{}, fmt.Errorf("%s mode at %d Hz: %w", mode, sampleRate, err)
	}
	return spec, nil
}
