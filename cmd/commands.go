package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"melspec/internal/audio"
	"melspec/internal/dsp"
	"melspec/internal/log"
	"melspec/internal/observe"
	"melspec/internal/pipeline"
	"melspec/internal/storage"
	"melspec/internal/transport"
	"melspec/internal/transport/udp"
	"melspec/internal/tui"
)

func (a *App) load(ctx context.Context, path string) (dsp.Buffer, error) {
	_, span := observe.StartSpan(ctx, observe.StageLoad, attribute.String("path", path))
	start := time.Now()
	buf, err := audio.Load(path)
	a.metrics.RecordStage(ctx, observe.StageLoad, start)
	observe.EndSpan(span, err)
	if err != nil {
		return dsp.Buffer{}, err
	}
	log.Infof("loaded %s: %d samples at %d Hz (%s)", path, buf.Len(), buf.SampleRate, buf.Duration())
	return buf, nil
}

func (a *App) analyse(ctx context.Context, buf dsp.Buffer) (*pipeline.Result, dsp.Mode, error) {
	opts, err := pipeline.OptionsFromConfig(a.cfg)
	if err != nil {
		return nil, 0, err
	}
	opts.Metrics = a.metrics
	res, err := pipeline.Run(ctx, buf, opts)
	if err != nil {
		return nil, 0, err
	}
	log.Infof("computed %d frames (%d skipped) in %s mode", len(res.Frames), len(res.Failed), opts.Mode)
	return res, opts.Mode, nil
}

func (a *App) runProcess(ctx context.Context, path string) error {
	buf, err := a.load(ctx, path)
	if err != nil {
		return err
	}
	return a.process(ctx, path, buf)
}

func (a *App) process(ctx context.Context, source string, buf dsp.Buffer) error {
	res, mode, err := a.analyse(ctx, buf)
	if err != nil {
		return err
	}

	store, err := a.store(ctx)
	if err != nil {
		return err
	}
	arts, err := pipeline.Export(ctx, store, storage.BaseName(source), res, pipeline.ExportOptions{
		PNG:      a.cfg.Output.PNG,
		JSON:     a.cfg.Output.JSON,
		Trimmed:  a.cfg.Output.Trimmed,
		BitDepth: a.cfg.Output.BitDepth,
		Mode:     mode,
		Metrics:  a.metrics,
	})
	for _, art := range arts {
		log.Debugf("wrote %s", art.Location)
	}
	if err != nil {
		return err
	}
	log.Infof("wrote %d artifacts to %s", len(arts), a.cfg.Output.Dir)

	return a.stream(ctx, filepath.Base(source), res, mode)
}

func (a *App) store(ctx context.Context) (storage.Store, error) {
	local, err := storage.NewLocal(a.cfg.Output.Dir)
	if err != nil {
		return nil, err
	}
	sc := a.cfg.Storage
	if !sc.S3Enabled() {
		return local, nil
	}
	remote, err := storage.NewS3(ctx, storage.S3Config{
		Bucket:          sc.S3Bucket,
		Region:          sc.S3Region,
		Prefix:          sc.S3Prefix,
		Endpoint:        sc.S3Endpoint,
		AccessKeyID:     sc.AccessKeyID,
		SecretAccessKey: sc.SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}
	return storage.Multi(local, remote), nil
}

// stream sends the frames to the configured live transports. With a
// websocket server it keeps serving until ctx is cancelled.
func (a *App) stream(ctx context.Context, source string, res *pipeline.Result, mode dsp.Mode) error {
	tc := a.cfg.Transport
	if tc.ServeAddr == "" && tc.UDPTargetAddress == "" {
		return nil
	}

	ts := []transport.Transport{transport.NewLoggingTransport()}
	if tc.UDPTargetAddress != "" {
		sender, err := udp.NewSender(tc.UDPTargetAddress)
		if err != nil {
			return err
		}
		pub, err := udp.NewPublisher(tc.UDPSendInterval, sender)
		if err != nil {
			return errors.Join(err, sender.Close())
		}
		pub.Start()
		ts = append(ts, pub)
	}
	if tc.ServeAddr != "" {
		ws, err := transport.NewWebSocketTransport(tc.ServeAddr)
		if err != nil {
			return errors.Join(err, transport.Fanout(ts...).Close())
		}
		ts = append(ts, ws)
	}
	t := transport.Fanout(ts...)

	err := transport.Stream(ctx, t, source, res.Frames, res.StepSize, mode)
	if err == nil && tc.ServeAddr != "" {
		log.Infof("serving %d frames, press Ctrl-C to stop", len(res.Frames))
		<-ctx.Done()
	}
	return errors.Join(err, t.Close())
}

func (a *App) runDevices(w io.Writer) error {
	return audio.ListDevices(w)
}

func (a *App) runRecord(ctx context.Context, out string) error {
	cc := a.cfg.Capture
	if a.pick {
		id, err := tui.PickDevice()
		if err != nil {
			return err
		}
		cc.InputDevice = id
	}

	log.Infof("recording %s from device %d", cc.Duration, cc.InputDevice)
	buf, err := audio.Capture(ctx, audio.CaptureOptions{
		DeviceID:        cc.InputDevice,
		SampleRate:      cc.SampleRate,
		Channels:        cc.InputChannels,
		FramesPerBuffer: cc.FramesPerBuffer,
		Duration:        cc.Duration,
		LowLatency:      cc.LowLatency,
	})
	if err != nil {
		return err
	}

	if out == "" {
		out = filepath.Join(a.cfg.Output.Dir, "recording-"+time.Now().UTC().Format("02-01-2006-150405")+".wav")
	}
	if _, err := storage.NewLocal(filepath.Dir(out)); err != nil {
		return err
	}
	if err := audio.SaveWAV(out, buf); err != nil {
		return err
	}
	log.Infof("recording saved to %s", out)
	return a.process(ctx, out, buf)
}

func (a *App) runBrowse(ctx context.Context, path string) error {
	buf, err := a.load(ctx, path)
	if err != nil {
		return err
	}
	res, _, err := a.analyse(ctx, buf)
	if err != nil {
		return err
	}
	if len(res.Frames) == 0 {
		return fmt.Errorf("%s: no frames to browse", path)
	}
	// Keep log lines from drawing over the alternate screen.
	prev := log.GetLevel()
	log.SetLevel(log.LevelError)
	defer log.SetLevel(prev)
	return tui.Browse(filepath.Base(path), res)
}
