// SPDX-License-Identifier: MIT
//
// Package analysis turns time-domain frames into log-power mel
// spectrograms.
package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"melspec/internal/dsp"
	"melspec/internal/fft"
	"melspec/internal/log"
	"melspec/pkg/bitint"
)

const (
	DefaultNFFT      = 2048
	DefaultHopLength = 512
	DefaultNMels     = 128
	DefaultFMax      = 8000.0
	DefaultTopDB     = 80.0
	DefaultWindow    = "hann"

	// powerFloor keeps log10 finite for zero-energy bins.
	powerFloor = 1e-10
)

// Config parameterises a Computer. Zero values take the defaults above.
type Config struct {
	SampleRate int
	NFFT       int
	HopLength  int
	NMels      int
	FMin       float64
	FMax       float64
	Window     string
	TopDB      float64
}

func (c Config) withDefaults() Config {
	if c.NFFT == 0 {
		c.NFFT = DefaultNFFT
	}
	if c.HopLength == 0 {
		c.HopLength = DefaultHopLength
	}
	if c.NMels == 0 {
		c.NMels = DefaultNMels
	}
	if c.FMax == 0 {
		c.FMax = DefaultFMax
	}
	if c.Window == "" {
		c.Window = DefaultWindow
	}
	if c.TopDB == 0 {
		c.TopDB = DefaultTopDB
	}
	return c
}

// Frame is the mel spectrogram of one input frame in dB relative to its
// own maximum. DB has NMels rows and one column per STFT hop.
type Frame struct {
	DB         *mat.Dense
	Index      int
	SampleRate int
	HopLength  int
	NFFT       int
	FMin       float64
	FMax       float64
}

// Dims returns the number of mel bands and time bins.
func (f Frame) Dims() (mels, bins int) { return f.DB.Dims() }

// Stats summarises a frame.
type Stats struct {
	Min, Max, Mean float64
	PeakBand       int
}

// Stats returns the range and mean level of the frame and the mel band
// with the most energy on average.
func (f Frame) Stats() Stats {
	rows, cols := f.DB.Dims()
	s := Stats{Min: mat.Min(f.DB), Max: mat.Max(f.DB), Mean: mat.Sum(f.DB) / float64(rows*cols)}
	best := math.Inf(-1)
	for r := range rows {
		if v := mat.Sum(f.DB.RowView(r)); v > best {
			best, s.PeakBand = v, r
		}
	}
	return s
}

// Computer produces mel spectrogram frames. A Computer is immutable after
// construction and safe for concurrent use.
type Computer struct {
	cfg  Config
	stft *fft.STFT
	bank *FilterBank
}

// NewComputer validates cfg and prepares the STFT and shared filter bank.
// FMax above Nyquist is lowered to Nyquist.
func NewComputer(cfg Config) (*Computer, error) {
	cfg = cfg.withDefaults()
	switch {
	case cfg.SampleRate <= 0:
		return nil, fmt.Errorf("%w: sample rate %d must be positive", dsp.ErrInvalidParameter, cfg.SampleRate)
	case !bitint.IsPowerOfTwo(cfg.NFFT):
		return nil, fmt.Errorf("%w: n_fft %d must be a power of two", dsp.ErrInvalidParameter, cfg.NFFT)
	case cfg.HopLength <= 0:
		return nil, fmt.Errorf("%w: hop length %d must be positive", dsp.ErrInvalidParameter, cfg.HopLength)
	case cfg.NMels <= 0:
		return nil, fmt.Errorf("%w: n_mels %d must be positive", dsp.ErrInvalidParameter, cfg.NMels)
	case !(cfg.TopDB > 0):
		return nil, fmt.Errorf("%w: top_db %g must be positive", dsp.ErrInvalidParameter, cfg.TopDB)
	case cfg.FMin < 0:
		return nil, fmt.Errorf("%w: f_min %g must not be negative", dsp.ErrInvalidParameter, cfg.FMin)
	}
	if nyquist := float64(cfg.SampleRate) / 2; cfg.FMax > nyquist {
		log.Named("analysis").Debugf("f_max %.0f Hz above nyquist, using %.0f Hz", cfg.FMax, nyquist)
		cfg.FMax = nyquist
	}
	if !(cfg.FMax > cfg.FMin) {
		return nil, fmt.Errorf("%w: f_max %g must exceed f_min %g", dsp.ErrInvalidParameter, cfg.FMax, cfg.FMin)
	}

	wf, err := fft.ParseWindowFunc(cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dsp.ErrInvalidParameter, err)
	}
	stft, err := fft.NewSTFT(cfg.NFFT, cfg.HopLength, wf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dsp.ErrInvalidParameter, err)
	}
	bank, err := FilterBankFor(cfg.SampleRate, cfg.NFFT, cfg.NMels, cfg.FMin, cfg.FMax)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dsp.ErrInvalidParameter, err)
	}
	return &Computer{cfg: cfg, stft: stft, bank: bank}, nil
}

// Config returns the effective configuration after defaults and capping.
func (c *Computer) Config() Config { return c.cfg }

// FilterBank returns the shared mel filter bank.
func (c *Computer) FilterBank() *FilterBank { return c.bank }

// ErrFrame marks a failure confined to one frame.
var ErrFrame = errors.New("frame rejected")

// Compute returns the dB mel spectrogram of frame. The loudest bin is 0 dB
// and nothing falls below -TopDB. Errors wrap dsp.ErrInvalidParameter.
func (c *Computer) Compute(frame dsp.Buffer, index int) (Frame, error) {
	if len(frame.Samples) == 0 {
		return Frame{}, fmt.Errorf("%w: %w: frame %d is empty", ErrFrame, dsp.ErrInvalidParameter, index)
	}
	if frame.SampleRate != c.cfg.SampleRate {
		return Frame{}, fmt.Errorf("%w: %w: frame %d at %d Hz, computer configured for %d Hz",
			ErrFrame, dsp.ErrInvalidParameter, index, frame.SampleRate, c.cfg.SampleRate)
	}
	for i, s := range frame.Samples {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return Frame{}, fmt.Errorf("%w: %w: frame %d sample %d is not finite", ErrFrame, dsp.ErrInvalidParameter, index, i)
		}
	}

	power := c.stft.Power(frame.Samples)
	_, cols := power.Dims()
	mel := mat.NewDense(c.cfg.NMels, cols, nil)
	mel.Mul(c.bank.Weights, power)
	ToDB(mel, c.cfg.TopDB)

	return Frame{
		DB:         mel,
		Index:      index,
		SampleRate: c.cfg.SampleRate,
		HopLength:  c.cfg.HopLength,
		NFFT:       c.cfg.NFFT,
		FMin:       c.cfg.FMin,
		FMax:       c.cfg.FMax,
	}, nil
}

// ToDB converts power values in m to decibels relative to the maximum of m,
// in place, flooring at -topDB.
func ToDB(m *mat.Dense, topDB float64) {
	ref := 10 * math.Log10(math.Max(mat.Max(m), powerFloor))
	m.Apply(func(_, _ int, v float64) float64 {
		return math.Max(10*math.Log10(math.Max(v, powerFloor))-ref, -topDB)
	}, m)
}
