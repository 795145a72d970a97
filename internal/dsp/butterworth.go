// SPDX-License-Identifier: MIT
package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
)

// minEdge keeps normalised cutoffs away from 0 and 1, where the bilinear
// transform puts poles on the unit circle.
const minEdge = 1e-4

// Section is one biquad in direct form II transposed. A[0] is always 1.
type Section struct {
	B [3]float64
	A [3]float64
}

// SOS is a cascade of second-order sections.
type SOS []Section

// DesignBandpass designs a digital Butterworth band-pass filter as
// spec.Order second-order sections. The analog low-pass prototype is
// shifted to band-pass, prewarped and mapped with the bilinear transform.
// Gain is unity at the geometric centre of the band.
func DesignBandpass(spec FilterSpec, sampleRate int) (SOS, error) {
	if err := spec.Validate(sampleRate); err != nil {
		return nil, err
	}
	nyquist := 0.5 * float64(sampleRate)
	wl, wh := spec.LowHz/nyquist, spec.HighHz/nyquist
	if wl < minEdge || wh > 1-minEdge {
		return nil, fmt.Errorf("%w: normalised band %.6f-%.6f too close to 0 or nyquist", ErrInvalidFilterSpec, wl, wh)
	}

	// Prewarp for a bilinear transform with fs = 2.
	lo := 4 * math.Tan(math.Pi*wl/2)
	hi := 4 * math.Tan(math.Pi*wh/2)
	bw := hi - lo
	w0 := math.Sqrt(lo * hi)

	n := spec.Order
	sos := make(SOS, 0, n)
	for k := 0; k < n/2; k++ {
		// Upper half-plane prototype pole. Its conjugate yields the
		// conjugate band-pass poles, so each section pairs q with conj(q).
		p := cmplx.Exp(complex(0, math.Pi*float64(2*k+n+1)/float64(2*n)))
		half := p * complex(bw/2, 0)
		root := cmplx.Sqrt(half*half - complex(w0*w0, 0))
		for _, q := range []complex128{half + root, half - root} {
			z := (4 + q) / (4 - q)
			sos = append(sos, Section{
				B: [3]float64{1, 0, -1},
				A: [3]float64{1, -2 * real(z), real(z)*real(z) + imag(z)*imag(z)},
			})
		}
	}

	centre := 2 * math.Atan(w0/4)
	gain := cmplx.Abs(sos.response(centre))
	if gain == 0 || math.IsNaN(gain) || math.IsInf(gain, 0) {
		return nil, fmt.Errorf("%w: degenerate gain at band centre for %s", ErrInvalidFilterSpec, spec)
	}
	g := math.Pow(gain, -1/float64(len(sos)))
	for i := range sos {
		for j := range sos[i].B {
			sos[i].B[j] *= g
		}
	}

	for _, s := range sos {
		for _, c := range append(s.B[:], s.A[:]...) {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				return nil, fmt.Errorf("%w: non-finite coefficient for %s", ErrInvalidFilterSpec, spec)
			}
		}
	}
	return sos, nil
}

// response evaluates the cascade at normalised angular frequency w (rad/sample).
func (s SOS) response(w float64) complex128 {
	zi := cmplx.Exp(complex(0, -w))
	zi2 := zi * zi
	h := complex(1, 0)
	for _, sec := range s {
		num := complex(sec.B[0], 0) + complex(sec.B[1], 0)*zi + complex(sec.B[2], 0)*zi2
		den := complex(sec.A[0], 0) + complex(sec.A[1], 0)*zi + complex(sec.A[2], 0)*zi2
		h *= num / den
	}
	return h
}

// Magnitude returns |H| at freqHz for a filter designed at sampleRate.
func (s SOS) Magnitude(freqHz float64, sampleRate int) float64 {
	return cmplx.Abs(s.response(2 * math.Pi * freqHz / float64(sampleRate)))
}

// Filter runs x through the cascade with initial section states zi (nil for
// rest). The result is a new slice.
func (s SOS) Filter(x []float64, zi [][2]float64) []float64 {
	y := make([]float64, len(x))
	copy(y, x)
	for k, sec := range s {
		var z1, z2 float64
		if zi != nil {
			z1, z2 = zi[k][0], zi[k][1]
		}
		b0, b1, b2 := sec.B[0], sec.B[1], sec.B[2]
		a1, a2 := sec.A[1], sec.A[2]
		for i, in := range y {
			out := b0*in + z1
			z1 = b1*in - a1*out + z2
			z2 = b2*in - a2*out
			y[i] = out
		}
	}
	return y
}

// steadyState returns per-section initial states for a unit step input,
// so a constant signal passes through without a start-up transient.
func (s SOS) steadyState() [][2]float64 {
	zi := make([][2]float64, len(s))
	scale := 1.0
	for k, sec := range s {
		g := (sec.B[0] + sec.B[1] + sec.B[2]) / (1 + sec.A[1] + sec.A[2])
		z2 := sec.B[2] - sec.A[2]*g
		z1 := sec.B[1] - sec.A[1]*g + z2
		zi[k] = [2]float64{scale * z1, scale * z2}
		scale *= g
	}
	return zi
}

func scaled(zi [][2]float64, v float64) [][2]float64 {
	out := make([][2]float64, len(zi))
	for i, z := range zi {
		out[i] = [2]float64{z[0] * v, z[1] * v}
	}
	return out
}

// FiltFilt applies the cascade forward then backward for zero phase. The
// signal is extended at both ends by odd reflection to suppress edge
// transients.
func (s SOS) FiltFilt(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}
	padlen := 3 * (2*len(s) + 1)
	if padlen > n-1 {
		padlen = n - 1
	}

	ext := make([]float64, 0, n+2*padlen)
	for i := padlen; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := n - 2; i >= n-1-padlen; i-- {
		ext = append(ext, 2*x[n-1]-x[i])
	}

	zi := s.steadyState()
	y := s.Filter(ext, scaled(zi, ext[0]))
	reverse(y)
	y = s.Filter(y, scaled(zi, y[0]))
	reverse(y)
	return y[padlen : padlen+n]
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
