// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melFSP      = 200.0 / 3
	melMinLogHz = 1000.0
)

var (
	melMinLogMel = melMinLogHz / melFSP
	melLogStep   = math.Log(6.4) / 27
)

// HzToMel converts frequency to the Slaney mel scale.
func HzToMel(hz float64) float64 {
	if hz >= melMinLogHz {
		return melMinLogMel + math.Log(hz/melMinLogHz)/melLogStep
	}
	return hz / melFSP
}

// MelToHz is the inverse of HzToMel.
func MelToHz(mel float64) float64 {
	if mel >= melMinLogMel {
		return melMinLogHz * math.Exp(melLogStep*(mel-melMinLogMel))
	}
	return mel * melFSP
}

// FilterBank is a read-only set of triangular mel filters over the
// non-negative FFT bins. Rows are mel bands, columns are FFT bins.
type FilterBank struct {
	Weights    *mat.Dense
	SampleRate int
	NFFT       int
	NMels      int
	FMin       float64
	FMax       float64

	edges []float64
}

// Centers returns the centre frequency of each mel band in Hz.
func (fb *FilterBank) Centers() []float64 {
	out := make([]float64, fb.NMels)
	copy(out, fb.edges[1:fb.NMels+1])
	return out
}

type bankKey struct {
	sampleRate, nfft, nmels int
	fmin, fmax              float64
}

var (
	bankMu    sync.Mutex
	bankCache = map[bankKey]*FilterBank{}
)

// FilterBankFor returns the shared filter bank for the given parameters,
// building it on first use.
func FilterBankFor(sampleRate, nfft, nmels int, fmin, fmax float64) (*FilterBank, error) {
	key := bankKey{sampleRate, nfft, nmels, fmin, fmax}
	bankMu.Lock()
	defer bankMu.Unlock()
	if fb, ok := bankCache[key]; ok {
		return fb, nil
	}
	fb, err := newFilterBank(sampleRate, nfft, nmels, fmin, fmax)
	if err != nil {
		return nil, err
	}
	bankCache[key] = fb
	return fb, nil
}

func newFilterBank(sampleRate, nfft, nmels int, fmin, fmax float64) (*FilterBank, error) {
	switch {
	case sampleRate <= 0:
		return nil, fmt.Errorf("sample rate %d must be positive", sampleRate)
	case nfft <= 0 || nmels <= 0:
		return nil, fmt.Errorf("n_fft %d and n_mels %d must be positive", nfft, nmels)
	case fmin < 0 || !(fmax > fmin):
		return nil, fmt.Errorf("mel range %g-%g Hz is empty", fmin, fmax)
	}

	bins := nfft/2 + 1
	fftFreqs := make([]float64, bins)
	floats.Span(fftFreqs, 0, float64(sampleRate)/2)

	mels := make([]float64, nmels+2)
	floats.Span(mels, HzToMel(fmin), HzToMel(fmax))
	edges := make([]float64, len(mels))
	for i, m := range mels {
		edges[i] = MelToHz(m)
	}

	weights := mat.NewDense(nmels, bins, nil)
	for i := range nmels {
		lo, mid, hi := edges[i], edges[i+1], edges[i+2]
		enorm := 2 / (hi - lo)
		for k, f := range fftFreqs {
			lower := (f - lo) / (mid - lo)
			upper := (hi - f) / (hi - mid)
			if w := math.Min(lower, upper); w > 0 {
				weights.Set(i, k, w*enorm)
			}
		}
	}

	return &FilterBank{
		Weights:    weights,
		SampleRate: sampleRate,
		NFFT:       nfft,
		NMels:      nmels,
		FMin:       fmin,
		FMax:       fmax,
		edges:      edges,
	}, nil
}
