// SPDX-License-Identifier: MIT
//
// Package fft computes short-time power spectra with gonum's real FFT.
package fft

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"

	"melspec/pkg/bitint"
)

// Workspace holds the buffers for one STFT evaluation. A Workspace must not
// be shared between goroutines.
type Workspace struct {
	fft       *fourier.FFT
	input     []float64
	fftOutput []complex128
}

// STFT is a centred short-time Fourier transform producing |X|^2. It is
// safe for concurrent use; Power draws workspaces from an internal pool.
type STFT struct {
	nfft   int
	hop    int
	window []float64
	pool   sync.Pool
}

// NewSTFT prepares a transform of nfft points advancing hop samples per
// column.
func NewSTFT(nfft, hop int, wf WindowFunc) (*STFT, error) {
	if !bitint.IsPowerOfTwo(nfft) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", nfft)
	}
	if hop <= 0 {
		return nil, fmt.Errorf("hop length must be positive, got %d", hop)
	}
	s := &STFT{nfft: nfft, hop: hop, window: Periodic(wf, nfft)}
	s.pool.New = func() any { return s.NewWorkspace() }
	return s, nil
}

// NewWorkspace allocates buffers sized for s.
func (s *STFT) NewWorkspace() *Workspace {
	return &Workspace{
		fft:       fourier.NewFFT(s.nfft),
		input:     make([]float64, s.nfft),
		fftOutput: make([]complex128, s.Bins()),
	}
}

// Bins is the number of non-negative frequency bins, nfft/2+1.
func (s *STFT) Bins() int { return s.nfft/2 + 1 }

// Frames returns the number of columns produced for n samples.
func (s *STFT) Frames(n int) int { return 1 + n/s.hop }

func (s *STFT) Size() int { return s.nfft }

func (s *STFT) Hop() int { return s.hop }

// FrequencyForBin returns the centre frequency of bin i in Hz.
func (s *STFT) FrequencyForBin(i int, sampleRate float64) float64 {
	if i < 0 || i >= s.Bins() {
		return 0
	}
	return float64(i) * sampleRate / float64(s.nfft)
}

// Power returns the power spectrogram of samples as a Bins x Frames matrix.
// Frames are centred on multiples of hop with zero padding of nfft/2 on
// both ends.
func (s *STFT) Power(samples []float32) *mat.Dense {
	dst := mat.NewDense(s.Bins(), s.Frames(len(samples)), nil)
	ws := s.pool.Get().(*Workspace)
	s.PowerInto(ws, dst, samples)
	s.pool.Put(ws)
	return dst
}

// PowerInto writes the power spectrogram into dst, which must be
// Bins x Frames(len(samples)).
func (s *STFT) PowerInto(ws *Workspace, dst *mat.Dense, samples []float32) {
	half := s.nfft / 2
	n := len(samples)
	_, cols := dst.Dims()
	for t := range cols {
		start := t*s.hop - half
		for i := range s.nfft {
			idx := start + i
			if idx < 0 || idx >= n {
				ws.input[i] = 0
				continue
			}
			ws.input[i] = float64(samples[idx]) * s.window[i]
		}
		ws.fft.Coefficients(ws.fftOutput, ws.input)
		for k, c := range ws.fftOutput {
			re, im := real(c), imag(c)
			dst.Set(k, t, re*re+im*im)
		}
	}
}
