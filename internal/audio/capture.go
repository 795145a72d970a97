// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"

	"melspec/internal/dsp"
	"melspec/internal/log"
)

// CaptureOptions configures a finite recording from an input device.
type CaptureOptions struct {
	DeviceID        int
	SampleRate      float64 // 0 uses the device default
	Channels        int
	FramesPerBuffer int
	Duration        time.Duration
	LowLatency      bool
}

type inputStream interface {
	Start() error
	Read() error
	Stop() error
	Close() error
}

var openInputStream = func(params portaudio.StreamParameters, buf []float32) (inputStream, error) {
	return portaudio.OpenStream(params, buf)
}

// Capture records opts.Duration of audio and returns it downmixed to mono.
// Cancelling ctx stops the recording early with ctx.Err().
func Capture(ctx context.Context, opts CaptureOptions) (buf dsp.Buffer, err error) {
	if opts.Duration <= 0 {
		return dsp.Buffer{}, fmt.Errorf("%w: capture duration %s must be positive", dsp.ErrInvalidParameter, opts.Duration)
	}
	if opts.Channels <= 0 {
		opts.Channels = 1
	}
	if opts.FramesPerBuffer <= 0 {
		opts.FramesPerBuffer = 512
	}

	if err := Initialize(); err != nil {
		return dsp.Buffer{}, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer func() {
		if terr := Terminate(); err == nil && terr != nil {
			err = fmt.Errorf("%w: %v", ErrIO, terr)
		}
	}()

	device, err := InputDevice(opts.DeviceID)
	if err != nil {
		return dsp.Buffer{}, fmt.Errorf("%w: %v", ErrIO, err)
	}
	rate := opts.SampleRate
	if rate <= 0 {
		rate = device.DefaultSampleRate
	}
	latency := device.DefaultHighInputLatency
	if opts.LowLatency {
		latency = device.DefaultLowInputLatency
	}

	in := make([]float32, opts.FramesPerBuffer*opts.Channels)
	stream, err := openInputStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: opts.Channels,
			Latency:  latency,
		},
		FramesPerBuffer: opts.FramesPerBuffer,
		SampleRate:      rate,
	}, in)
	if err != nil {
		return dsp.Buffer{}, fmt.Errorf("%w: open input stream: %v", ErrIO, err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return dsp.Buffer{}, fmt.Errorf("%w: start input stream: %v", ErrIO, err)
	}

	logger := log.Named("audio")
	logger.Infof("recording %s from %q at %.0f Hz, %d channel(s)", opts.Duration, device.Name, rate, opts.Channels)

	total := int(opts.Duration.Seconds() * rate)
	out := make([]float32, 0, total+opts.FramesPerBuffer)
	for len(out) < total {
		if err := ctx.Err(); err != nil {
			_ = stream.Stop()
			return dsp.Buffer{}, err
		}
		if err := stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				logger.Warnf("input overflowed, samples dropped")
			} else {
				_ = stream.Stop()
				return dsp.Buffer{}, fmt.Errorf("%w: read input stream: %v", ErrIO, err)
			}
		}
		out = appendMono(out, in, opts.Channels)
	}
	if err := stream.Stop(); err != nil {
		return dsp.Buffer{}, fmt.Errorf("%w: stop input stream: %v", ErrIO, err)
	}
	return dsp.Buffer{Samples: out[:total], SampleRate: int(rate)}, nil
}

// appendMono averages interleaved frames of in and appends them to dst.
func appendMono(dst, in []float32, channels int) []float32 {
	if channels == 1 {
		return append(dst, in...)
	}
	scale := 1 / float32(channels)
	for i := 0; i+channels <= len(in); i += channels {
		var sum float32
		for _, s := range in[i : i+channels] {
			sum += s
		}
		dst = append(dst, sum*scale)
	}
	return dst
}
