package render

import (
	"strings"

	"melspec/internal/analysis"
)

// Ramp orders glyphs from quiet to loud.
const Ramp = " .:-=+*#%@"

// Cell is one character of a heat map together with its level in [0, 1].
type Cell struct {
	Glyph byte
	Level float64
}

// HeatMap downsamples frame to at most width x height cells by averaging,
// highest band first so row 0 is the top line.
func HeatMap(frame analysis.Frame, width, height int) [][]Cell {
	if frame.DB == nil || width <= 0 || height <= 0 {
		return nil
	}
	mels, cols := frame.Dims()
	width, height = min(width, cols), min(height, mels)
	st := frame.Stats()

	out := make([][]Cell, height)
	for r := range height {
		// Row r covers bands [m0, m1) counted from the top.
		m0 := mels - (r+1)*mels/height
		m1 := mels - r*mels/height
		out[r] = make([]Cell, width)
		for c := range width {
			c0, c1 := c*cols/width, (c+1)*cols/width
			var sum float64
			for m := m0; m < m1; m++ {
				for k := c0; k < c1; k++ {
					sum += frame.DB.At(m, k)
				}
			}
			lv := level(sum/float64((m1-m0)*(c1-c0)), st.Min, st.Max)
			out[r][c] = Cell{Glyph: Ramp[int(lv*float64(len(Ramp)-1)+0.5)], Level: lv}
		}
	}
	return out
}

// ASCII renders HeatMap as plain text lines.
func ASCII(frame analysis.Frame, width, height int) []string {
	cells := HeatMap(frame, width, height)
	lines := make([]string, len(cells))
	for i, row := range cells {
		var b strings.Builder
		b.Grow(len(row))
		for _, c := range row {
			b.WriteByte(c.Glyph)
		}
		lines[i] = b.String()
	}
	return lines
}
