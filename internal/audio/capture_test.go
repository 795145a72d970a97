// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"

	"melspec/internal/dsp"
)

type fakeStream struct {
	buf     []float32
	reads   int
	started bool
	stopped bool
	closed  bool
	readErr error
	onRead  func()
}

func (s *fakeStream) Start() error { s.started = true; return nil }
func (s *fakeStream) Stop() error  { s.stopped = true; return nil }
func (s *fakeStream) Close() error { s.closed = true; return nil }

func (s *fakeStream) Read() error {
	s.reads++
	if s.onRead != nil {
		s.onRead()
	}
	// Left channel carries the read count, right channel its negation plus one.
	for i := 0; i+1 < len(s.buf); i += 2 {
		s.buf[i] = float32(s.reads)
		s.buf[i+1] = 1 - float32(s.reads)
	}
	return s.readErr
}

func stubStream(t *testing.T) *fakeStream {
	t.Helper()
	stubPortAudio(t)
	stream := &fakeStream{}
	orig := openInputStream
	t.Cleanup(func() { openInputStream = orig })
	openInputStream = func(params portaudio.StreamParameters, buf []float32) (inputStream, error) {
		if params.Input.Channels != 2 || params.SampleRate != 16000 {
			t.Errorf("unexpected stream params %+v", params)
		}
		stream.buf = buf
		return stream, nil
	}
	return stream
}

func TestCapture(t *testing.T) {
	stream := stubStream(t)

	buf, err := Capture(context.Background(), CaptureOptions{
		DeviceID:        DefaultDevice,
		Channels:        2,
		FramesPerBuffer: 256,
		Duration:        100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if buf.SampleRate != 16000 || buf.Len() != 1600 {
		t.Fatalf("got %d samples at %d Hz, want 1600 at 16000", buf.Len(), buf.SampleRate)
	}
	for i, s := range buf.Samples {
		if s != 0.5 {
			t.Fatalf("sample %d = %g, want downmixed 0.5", i, s)
		}
	}
	if stream.reads != 7 || !stream.started || !stream.stopped || !stream.closed {
		t.Errorf("stream state = %+v", stream)
	}
}

func TestCaptureCancelled(t *testing.T) {
	stream := stubStream(t)
	ctx, cancel := context.WithCancel(context.Background())
	stream.onRead = cancel

	_, err := Capture(ctx, CaptureOptions{Channels: 2, DeviceID: DefaultDevice, Duration: time.Second})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Capture() error = %v, want context.Canceled", err)
	}
	if stream.reads != 1 || !stream.closed {
		t.Errorf("stream state = %+v", stream)
	}
}

func TestCaptureReadError(t *testing.T) {
	stream := stubStream(t)
	stream.readErr = errors.New("device unplugged")

	_, err := Capture(context.Background(), CaptureOptions{Channels: 2, DeviceID: DefaultDevice, Duration: time.Second})
	if !errors.Is(err, ErrIO) {
		t.Errorf("Capture() error = %v, want ErrIO", err)
	}
}

func TestCaptureInvalidDuration(t *testing.T) {
	if _, err := Capture(context.Background(), CaptureOptions{}); !errors.Is(err, dsp.ErrInvalidParameter) {
		t.Errorf("Capture() error = %v, want ErrInvalidParameter", err)
	}
}

func TestAppendMono(t *testing.T) {
	got := appendMono(nil, []float32{1, 3, -2, 2, 5, 5}, 2)
	want := []float32{2, 0, 5}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %g, want %g", i, got[i], want[i])
		}
	}
	if got := appendMono([]float32{9}, []float32{1, 2}, 1); len(got) != 3 || got[2] != 2 {
		t.Errorf("mono passthrough = %v", got)
	}
}
