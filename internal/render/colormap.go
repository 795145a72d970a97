// Package render draws and serialises mel spectrogram frames.
package render

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Colormap maps t in [0, 1] to a colour.
type Colormap interface {
	At(t float64) colorful.Color
}

// Gradient is a piecewise colour ramp blended in Lab space between evenly
// spaced stops.
type Gradient []colorful.Color

// Viridis approximates matplotlib's default perceptual colormap.
var Viridis = mustGradient(
	"#440154", "#482878", "#3e4989", "#31688e", "#26828e",
	"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725",
)

// Greys runs from black to white.
var Greys = mustGradient("#000000", "#ffffff")

func mustGradient(hex ...string) Gradient {
	g := make(Gradient, len(hex))
	for i, h := range hex {
		c, err := colorful.Hex(h)
		if err != nil {
			panic("render: bad colour " + h)
		}
		g[i] = c
	}
	return g
}

// At returns the colour at t. Values outside [0, 1] are clamped and NaN maps
// to the first stop.
func (g Gradient) At(t float64) colorful.Color {
	switch {
	case len(g) == 0:
		return colorful.Color{}
	case len(g) == 1 || math.IsNaN(t) || t <= 0:
		return g[0]
	case t >= 1:
		return g[len(g)-1]
	}
	pos := t * float64(len(g)-1)
	i := int(pos)
	return g[i].BlendLab(g[i+1], pos-float64(i)).Clamped()
}

// level maps v from [lo, hi] onto [0, 1]. A flat range maps to 0.
func level(v, lo, hi float64) float64 {
	if !(hi > lo) {
		return 0
	}
	return math.Min(math.Max((v-lo)/(hi-lo), 0), 1)
}
