package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"melspec/internal/audio"
	"melspec/internal/dsp"
	"melspec/internal/observe"
	"melspec/internal/render"
	"melspec/internal/storage"
)

// ExportOptions selects the artifacts Export writes.
type ExportOptions struct {
	PNG      bool
	JSON     bool
	Trimmed  bool
	BitDepth int
	Image    render.PNGOptions
	Mode     dsp.Mode
	Metrics  *observe.Metrics
}

// Artifact is one written output.
type Artifact struct {
	Kind     string
	Name     string
	Location string
}

// Export writes the artifacts of res to store, naming them after base.
func Export(ctx context.Context, store storage.Store, base string, res *Result, opts ExportOptions) ([]Artifact, error) {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	ctx, span := observe.StartSpan(ctx, observe.StageExport, attribute.String("base", base))
	start := time.Now()
	arts, err := export(ctx, store, base, res, opts, metrics)
	metrics.RecordStage(ctx, observe.StageExport, start)
	observe.EndSpan(span, err)
	return arts, err
}

func export(ctx context.Context, store storage.Store, base string, res *Result, opts ExportOptions, m *observe.Metrics) ([]Artifact, error) {
	var arts []Artifact
	put := func(kind, name string, data io.Reader) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		loc, err := store.Put(ctx, name, data)
		if err != nil {
			return err
		}
		m.RecordArtifact(ctx, kind)
		arts = append(arts, Artifact{Kind: kind, Name: name, Location: loc})
		return nil
	}

	if opts.Trimmed && res.Trimmed.Len() > 0 {
		if err := exportWAV(res.Trimmed, opts.BitDepth, func(r io.Reader) error {
			return put("wav", storage.TrimmedName(base), r)
		}); err != nil {
			return arts, err
		}
	}

	var buf bytes.Buffer
	for _, f := range res.Frames {
		if opts.PNG {
			buf.Reset()
			if err := render.PNG(&buf, f, opts.Image); err != nil {
				return arts, err
			}
			if err := put("png", storage.FrameName(base, f.Index, "png"), bytes.NewReader(buf.Bytes())); err != nil {
				return arts, err
			}
		}
		if opts.JSON {
			buf.Reset()
			if err := render.JSON(&buf, f, opts.Mode); err != nil {
				return arts, err
			}
			if err := put("json", storage.FrameName(base, f.Index, "json"), bytes.NewReader(buf.Bytes())); err != nil {
				return arts, err
			}
		}
	}
	return arts, nil
}

// exportWAV stages the encoded waveform in a temporary file since the WAV
// encoder needs to seek back and patch its header.
func exportWAV(buf dsp.Buffer, bitDepth int, put func(io.Reader) error) error {
	if bitDepth == 0 {
		bitDepth = audio.DefaultBitDepth
	}
	f, err := os.CreateTemp("", "melspec_*.wav")
	if err != nil {
		return fmt.Errorf("%w: %v", audio.ErrIO, err)
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(f.Name())
	}()

	if err := audio.WriteWAV(f, buf, bitDepth); err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %v", audio.ErrIO, err)
	}
	return put(f)
}
