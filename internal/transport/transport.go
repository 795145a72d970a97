// Package transport streams computed spectrogram frames to live consumers.
package transport

import (
	"context"
	"errors"
	"fmt"

	"melspec/internal/analysis"
	"melspec/internal/dsp"
	"melspec/internal/render"
)

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// MessageTypeFrame tags frame messages on the wire.
const MessageTypeFrame = "frame"

// FrameMessage is the payload sent for every computed frame.
type FrameMessage struct {
	Type   string `json:"type"`
	Source string `json:"source,omitempty"`
	// OffsetSeconds is where the frame starts in the trimmed signal.
	OffsetSeconds float64 `json:"offset_seconds"`
	render.Document
}

// NewFrameMessage wraps frame for sending. stepSize is the framer hop in
// samples, used to place the frame in time.
func NewFrameMessage(source string, frame analysis.Frame, stepSize int, mode dsp.Mode) (FrameMessage, error) {
	doc, err := render.NewDocument(frame, mode)
	if err != nil {
		return FrameMessage{}, err
	}
	msg := FrameMessage{Type: MessageTypeFrame, Source: source, Document: doc}
	if frame.SampleRate > 0 {
		msg.OffsetSeconds = float64(frame.Index*stepSize) / float64(frame.SampleRate)
	}
	return msg, nil
}

// Stream sends one FrameMessage per frame, in order, and stops early if ctx
// is cancelled.
func Stream(ctx context.Context, t Transport, source string, frames []analysis.Frame, stepSize int, mode dsp.Mode) error {
	for _, f := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := NewFrameMessage(source, f, stepSize, mode)
		if err != nil {
			return err
		}
		if err := t.Send(msg); err != nil {
			return fmt.Errorf("send frame %d: %w", f.Index, err)
		}
	}
	return nil
}

type fanout []Transport

// Fanout sends every message to all transports.
func Fanout(ts ...Transport) Transport {
	if len(ts) == 1 {
		return ts[0]
	}
	return fanout(ts)
}

func (f fanout) Send(data any) error {
	var errs []error
	for _, t := range f {
		if err := t.Send(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) Close() error {
	var errs []error
	for _, t := range f {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
