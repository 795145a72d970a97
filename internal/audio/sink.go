// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"melspec/internal/dsp"
)

// DefaultBitDepth is used by SaveWAV.
const DefaultBitDepth = 16

// WriteWAV encodes buf as mono integer PCM. Samples outside [-1, 1] are
// clipped.
func WriteWAV(w io.WriteSeeker, buf dsp.Buffer, bitDepth int) error {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%w: unsupported bit depth %d", ErrIO, bitDepth)
	}
	if buf.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrIO, buf.SampleRate)
	}

	full := float64(int64(1)<<(bitDepth-1) - 1)
	pcm := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: buf.SampleRate},
		Data:           make([]int, len(buf.Samples)),
		SourceBitDepth: bitDepth,
	}
	for i, s := range buf.Samples {
		v := max(-1, min(1, float64(s)))
		pcm.Data[i] = int(v * full)
	}

	enc := wav.NewEncoder(w, buf.SampleRate, bitDepth, 1, 1)
	if err := enc.Write(pcm); err != nil {
		return fmt.Errorf("%w: write wav: %v", ErrIO, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("%w: finalise wav: %v", ErrIO, err)
	}
	return nil
}

// SaveWAV writes buf to path as 16-bit PCM.
func SaveWAV(path string, buf dsp.Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	werr := WriteWAV(f, buf, DefaultBitDepth)
	if cerr := f.Close(); cerr != nil {
		return errors.Join(werr, fmt.Errorf("%w: %v", ErrIO, cerr))
	}
	return werr
}
