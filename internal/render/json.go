package render

import (
	"encoding/json"
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"

	"melspec/internal/analysis"
	"melspec/internal/dsp"
)

// Document is the JSON form of one frame. DB is indexed [mel][column].
type Document struct {
	Index      int         `json:"index"`
	Mode       string      `json:"mode"`
	SampleRate int         `json:"sample_rate"`
	NFFT       int         `json:"n_fft"`
	HopLength  int         `json:"hop_length"`
	NMels      int         `json:"n_mels"`
	Columns    int         `json:"columns"`
	FMin       float64     `json:"f_min"`
	FMax       float64     `json:"f_max"`
	Stats      DocStats    `json:"stats"`
	Bands      []DocBand   `json:"bands,omitempty"`
	DB         [][]float64 `json:"db"`
}

// DocBand is the mean level of one vocal range.
type DocBand struct {
	Name   string  `json:"name"`
	LowHz  float64 `json:"low_hz"`
	HighHz float64 `json:"high_hz"`
	MeanDB float64 `json:"mean_db"`
}

type DocStats struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	PeakBand int     `json:"peak_band"`
}

// NewDocument flattens frame into its JSON form.
func NewDocument(frame analysis.Frame, mode dsp.Mode) (Document, error) {
	if frame.DB == nil {
		return Document{}, fmt.Errorf("render: frame %d has no data", frame.Index)
	}
	levels, err := analysis.BandLevels(frame, analysis.VocalBands)
	if err != nil {
		return Document{}, fmt.Errorf("render: frame %d: %w", frame.Index, err)
	}
	mels, cols := frame.Dims()
	st := frame.Stats()
	doc := Document{
		Index:      frame.Index,
		Mode:       mode.String(),
		SampleRate: frame.SampleRate,
		NFFT:       frame.NFFT,
		HopLength:  frame.HopLength,
		NMels:      mels,
		Columns:    cols,
		FMin:       frame.FMin,
		FMax:       frame.FMax,
		Stats:      DocStats{Min: st.Min, Max: st.Max, Mean: st.Mean, PeakBand: st.PeakBand},
		DB:         make([][]float64, mels),
	}
	for _, l := range levels {
		doc.Bands = append(doc.Bands, DocBand{Name: l.Name, LowHz: l.LowHz, HighHz: l.HighHz, MeanDB: l.MeanDB})
	}
	for m := range mels {
		doc.DB[m] = mat.Row(nil, m, frame.DB)
	}
	return doc, nil
}

// JSON writes frame as an indented JSON document to w.
func JSON(w io.Writer, frame analysis.Frame, mode dsp.Mode) error {
	doc, err := NewDocument(frame, mode)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("render: encode frame %d: %w", frame.Index, err)
	}
	return nil
}
