package render

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"melspec/internal/analysis"
)

// PNGOptions controls image rendering. Zero values take the defaults.
type PNGOptions struct {
	// CellWidth and CellHeight are the pixel size of one STFT column and
	// one mel band.
	CellWidth  int
	CellHeight int
	Colormap   Colormap
	// Floor fixes the bottom of the colour scale in dB. Zero uses the
	// frame minimum.
	Floor float64
}

const (
	DefaultCellWidth  = 4
	DefaultCellHeight = 2
)

func (o PNGOptions) withDefaults() PNGOptions {
	if o.CellWidth <= 0 {
		o.CellWidth = DefaultCellWidth
	}
	if o.CellHeight <= 0 {
		o.CellHeight = DefaultCellHeight
	}
	if o.Colormap == nil {
		o.Colormap = Viridis
	}
	return o
}

// Image draws frame with time running left to right and the lowest mel band
// on the bottom row.
func Image(frame analysis.Frame, opts PNGOptions) (*image.RGBA, error) {
	if frame.DB == nil {
		return nil, fmt.Errorf("render: frame %d has no data", frame.Index)
	}
	opts = opts.withDefaults()
	mels, cols := frame.Dims()
	st := frame.Stats()
	lo := st.Min
	if opts.Floor < 0 {
		lo = opts.Floor
	}

	img := image.NewRGBA(image.Rect(0, 0, cols*opts.CellWidth, mels*opts.CellHeight))
	for m := range mels {
		y0 := (mels - 1 - m) * opts.CellHeight
		for c := range cols {
			col := opts.Colormap.At(level(frame.DB.At(m, c), lo, st.Max))
			x0 := c * opts.CellWidth
			for y := y0; y < y0+opts.CellHeight; y++ {
				for x := x0; x < x0+opts.CellWidth; x++ {
					img.Set(x, y, col)
				}
			}
		}
	}
	return img, nil
}

// PNG encodes frame as a PNG image to w.
func PNG(w io.Writer, frame analysis.Frame, opts PNGOptions) error {
	img, err := Image(frame, opts)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("render: encode frame %d: %w", frame.Index, err)
	}
	return nil
}
