// SPDX-License-Identifier: MIT
//
// Package audio loads, saves and captures the mono buffers processed by
// melspec. WAV goes through go-audio, FLAC through mewkiz/flac and live
// capture through PortAudio.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"

	"melspec/internal/dsp"
	"melspec/internal/log"
)

// ErrIO wraps every failure to read, decode, write or capture audio.
var ErrIO = errors.New("audio i/o")

var (
	riffMagic = []byte("RIFF")
	flacMagic = []byte("fLaC")
)

// Load reads a WAV or FLAC file into a mono buffer at its native rate.
func Load(path string) (dsp.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return dsp.Buffer{}, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer f.Close()

	buf, err := Decode(f)
	if err != nil {
		return dsp.Buffer{}, fmt.Errorf("%s: %w", path, err)
	}
	log.Named("audio").Infof("loaded %s: %d samples at %d Hz (%s)", path, buf.Len(), buf.SampleRate, buf.Duration())
	return buf, nil
}

// Decode sniffs the container format of r and decodes it.
func Decode(r io.ReadSeeker) (dsp.Buffer, error) {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return dsp.Buffer{}, fmt.Errorf("%w: read header: %v", ErrIO, err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return dsp.Buffer{}, fmt.Errorf("%w: %v", ErrIO, err)
	}
	switch {
	case bytes.Equal(magic, riffMagic):
		return DecodeWAV(r)
	case bytes.Equal(magic, flacMagic):
		return DecodeFLAC(r)
	default:
		return dsp.Buffer{}, fmt.Errorf("%w: unsupported format (header %q)", ErrIO, magic)
	}
}

// DecodeWAV decodes integer PCM WAV data, averaging channels to mono.
func DecodeWAV(r io.ReadSeeker) (dsp.Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return dsp.Buffer{}, fmt.Errorf("%w: invalid wav file", ErrIO)
	}
	if dec.WavAudioFormat != 1 {
		return dsp.Buffer{}, fmt.Errorf("%w: wav audio format %d is not integer PCM", ErrIO, dec.WavAudioFormat)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return dsp.Buffer{}, fmt.Errorf("%w: decode wav: %v", ErrIO, err)
	}
	channels := pcm.Format.NumChannels
	if channels <= 0 {
		return dsp.Buffer{}, fmt.Errorf("%w: wav declares %d channels", ErrIO, channels)
	}
	depth := int(dec.BitDepth)
	if depth < 8 || depth > 32 {
		return dsp.Buffer{}, fmt.Errorf("%w: unsupported bit depth %d", ErrIO, depth)
	}

	scale := 1 / float64(int64(1)<<(depth-1))
	offset := 0
	if depth == 8 {
		// 8-bit WAV is unsigned.
		offset = 128
	}
	frames := len(pcm.Data) / channels
	out := dsp.Buffer{Samples: make([]float32, frames), SampleRate: pcm.Format.SampleRate}
	for i := range frames {
		var sum float64
		for c := range channels {
			sum += float64(pcm.Data[i*channels+c] - offset)
		}
		out.Samples[i] = float32(sum / float64(channels) * scale)
	}
	return out, nil
}

// DecodeFLAC decodes a FLAC stream frame by frame, averaging channels to
// mono.
func DecodeFLAC(r io.Reader) (dsp.Buffer, error) {
	stream, err := flac.New(r)
	if err != nil {
		return dsp.Buffer{}, fmt.Errorf("%w: open flac: %v", ErrIO, err)
	}
	defer stream.Close()

	info := stream.Info
	channels := int(info.NChannels)
	if channels == 0 || info.BitsPerSample == 0 {
		return dsp.Buffer{}, fmt.Errorf("%w: flac stream info incomplete", ErrIO)
	}
	scale := 1 / float64(int64(1)<<(info.BitsPerSample-1))

	out := dsp.Buffer{SampleRate: int(info.SampleRate)}
	if info.NSamples > 0 {
		out.Samples = make([]float32, 0, info.NSamples)
	}
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return dsp.Buffer{}, fmt.Errorf("%w: decode flac frame: %v", ErrIO, err)
		}
		n := len(frame.Subframes[0].Samples)
		for i := range n {
			var sum float64
			for _, sub := range frame.Subframes {
				sum += float64(sub.Samples[i])
			}
			out.Samples = append(out.Samples, float32(sum/float64(channels)*scale))
		}
	}
	return out, nil
}
