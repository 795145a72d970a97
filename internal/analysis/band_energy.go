package analysis

import (
	"fmt"
)

// FrequencyBand names a frequency range.
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// VocalBands are the call ranges used to summarise a frame.
var VocalBands = []FrequencyBand{
	{Name: "grunt", LowHz: 80, HighHz: 800},
	{Name: "squeal", LowHz: 500, HighHz: 8000},
}

// BandLevel is the mean level of the mel bands whose centre falls in a
// FrequencyBand.
type BandLevel struct {
	FrequencyBand
	Mels   int
	MeanDB float64
}

// BandLevels averages frame over the mel bands centred inside each band.
// Bands that contain no mel centre are left out.
func BandLevels(frame Frame, bands []FrequencyBand) ([]BandLevel, error) {
	if frame.DB == nil {
		return nil, fmt.Errorf("frame %d has no data", frame.Index)
	}
	mels, cols := frame.Dims()
	bank, err := FilterBankFor(frame.SampleRate, frame.NFFT, mels, frame.FMin, frame.FMax)
	if err != nil {
		return nil, err
	}
	centers := bank.Centers()

	var out []BandLevel
	for _, b := range bands {
		level := BandLevel{FrequencyBand: b}
		var sum float64
		for m, hz := range centers {
			if hz < b.LowHz || hz >= b.HighHz {
				continue
			}
			level.Mels++
			for c := range cols {
				sum += frame.DB.At(m, c)
			}
		}
		if level.Mels == 0 {
			continue
		}
		level.MeanDB = sum / float64(level.Mels*cols)
		out = append(out, level)
	}
	return out, nil
}
