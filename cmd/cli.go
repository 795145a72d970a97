// Package cmd wires the melspec command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"melspec/internal/config"
	"melspec/internal/log"
	"melspec/internal/observe"
	"melspec/pkg/build"
)

// App carries the state shared by every command.
type App struct {
	cfg        *config.Config
	configPath string
	verbose    bool
	provider   *observe.Provider
	metrics    *observe.Metrics

	// flag targets, applied over the loaded config only when set
	flags config.Config
	topDB float64
	noWAV bool
	pick  bool
}

// Execute parses os.Args and runs the selected command.
func Execute(ctx context.Context, provider *observe.Provider) error {
	app := &App{provider: provider}
	root := app.NewRootCommand()
	root.SetArgs(os.Args[1:])
	return root.ExecuteContext(ctx)
}

// NewRootCommand builds the command tree.
func (a *App) NewRootCommand() *cobra.Command {
	info := build.Get()
	defaults := config.Default()
	a.flags = *defaults

	rootCmd := &cobra.Command{
		Use:           info.Name + " [file]",
		Short:         info.Description,
		Version:       info.String(),
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			a.summary(cmd.Context())
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return a.runProcess(cmd.Context(), args[0])
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Configuration file (default: ./"+config.FileName+")")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Show verbose output and a metric summary")
	pf.StringVar(&a.flags.LogLevel, "log-level", defaults.LogLevel, "Log level: debug, info, warn, error")
	a.addProcessingFlags(rootCmd)

	processCmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Compute mel spectrograms for a WAV or FLAC recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runProcess(cmd.Context(), args[0])
		},
	}
	rootCmd.AddCommand(processCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "devices",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDevices(cmd.OutOrStdout())
		},
	})

	recordCmd := &cobra.Command{
		Use:   "record [output.wav]",
		Short: "Record from an input device and process the clip",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := ""
			if len(args) == 1 {
				out = args[0]
			}
			return a.runRecord(cmd.Context(), out)
		},
	}
	rf := recordCmd.Flags()
	rf.DurationVar(&a.flags.Capture.Duration, "duration", defaults.Capture.Duration, "Recording length")
	rf.IntVarP(&a.flags.Capture.InputDevice, "device", "d", defaults.Capture.InputDevice,
		"Input device ID, -1 for the system default. Use 'devices' to list them.")
	rf.Float64VarP(&a.flags.Capture.SampleRate, "sample-rate", "s", defaults.Capture.SampleRate,
		"Sample rate in Hz, 0 for the device default")
	rf.IntVarP(&a.flags.Capture.InputChannels, "channels", "c", defaults.Capture.InputChannels,
		"Number of channels to record, downmixed to mono")
	rf.IntVarP(&a.flags.Capture.FramesPerBuffer, "frames-per-buffer", "b", defaults.Capture.FramesPerBuffer,
		"The number of frames per buffer")
	rf.BoolVarP(&a.flags.Capture.LowLatency, "low-latency", "l", defaults.Capture.LowLatency,
		"Use the device's low latency setting")
	rf.BoolVar(&a.pick, "pick", false, "Choose the input device interactively")
	rootCmd.AddCommand(recordCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "browse <file>",
		Short: "Process a recording and browse its frames in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBrowse(cmd.Context(), args[0])
		},
	})

	return rootCmd
}

func (a *App) addProcessingFlags(root *cobra.Command) {
	d := config.Default()
	f := root.PersistentFlags()

	f.StringVarP(&a.flags.Mode, "mode", "m", d.Mode, "Vocalisation mode: grunt, squeal or mixed")
	f.IntVarP(&a.flags.Workers, "workers", "w", d.Workers, "Parallel frame workers, 0 for one per CPU")

	f.IntVar(&a.flags.Analysis.NMels, "n-mels", d.Analysis.NMels, "Number of mel bands")
	f.IntVar(&a.flags.Analysis.HopLength, "hop-length", d.Analysis.HopLength, "STFT hop in samples")
	f.IntVar(&a.flags.Analysis.NFFT, "n-fft", d.Analysis.NFFT, "FFT size, a power of two")
	f.Float64Var(&a.flags.Analysis.FMin, "f-min", d.Analysis.FMin, "Lowest mel filter frequency in Hz")
	f.Float64Var(&a.flags.Analysis.FMax, "f-max", d.Analysis.FMax, "Highest mel filter frequency in Hz")
	f.StringVar(&a.flags.Analysis.Window, "window", d.Analysis.Window, "STFT window function")
	f.Float64Var(&a.flags.Analysis.DBFloor, "db-floor", d.Analysis.DBFloor, "Dynamic range below the frame maximum in dB")

	f.Float64Var(&a.flags.Preprocess.FrameLength, "frame-length", d.Preprocess.FrameLength, "Frame length in seconds")
	f.Float64Var(&a.flags.Preprocess.Overlap, "overlap", d.Preprocess.Overlap, "Frame overlap fraction in [0, 1)")
	f.Float64Var(&a.flags.Preprocess.PreEmphasis, "pre-emphasis", d.Preprocess.PreEmphasis, "Pre-emphasis coefficient")
	f.Float64Var(&a.topDB, "top-db", 0, "Fixed silence threshold in dB (default: adaptive)")
	f.IntVar(&a.flags.Preprocess.TrimWindow, "trim-window", d.Preprocess.TrimWindow, "Silence detection window in samples")

	f.StringVarP(&a.flags.Output.Dir, "output-dir", "o", d.Output.Dir, "Directory for output artifacts")
	f.BoolVar(&a.flags.Output.PNG, "png", d.Output.PNG, "Write a PNG image per frame")
	f.BoolVar(&a.flags.Output.JSON, "json", d.Output.JSON, "Write a JSON matrix per frame")
	f.BoolVar(&a.noWAV, "no-trimmed", false, "Do not write the trimmed waveform")
	f.IntVar(&a.flags.Output.BitDepth, "bit-depth", d.Output.BitDepth, "Bit depth of the trimmed WAV: 16, 24 or 32")

	f.StringVar(&a.flags.Storage.S3Bucket, "s3-bucket", "", "Also upload artifacts to this S3 bucket")
	f.StringVar(&a.flags.Storage.S3Prefix, "s3-prefix", "", "Key prefix for S3 uploads")

	f.StringVar(&a.flags.Transport.ServeAddr, "serve", "", "Serve frames over websocket on ADDR until interrupted")
	f.StringVar(&a.flags.Transport.UDPTargetAddress, "udp", "", "Send frame packets to ADDR over UDP")
}

// setup loads the configuration and applies explicitly set flags over it.
func (a *App) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	a.cfg = cfg

	if a.verbose {
		log.SetLevel(log.LevelDebug)
	} else if lvl, ok := log.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(lvl)
	}

	if a.provider != nil {
		if a.metrics, err = observe.NewMetrics(a.provider.Meter); err != nil {
			return err
		}
	} else {
		a.metrics = observe.DefaultMetrics()
	}
	return nil
}

func set[T any](cmd *cobra.Command, name string, dst *T, v T) {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		*dst = v
	}
}

func (a *App) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	fl := &a.flags
	set(cmd, "log-level", &cfg.LogLevel, fl.LogLevel)
	set(cmd, "mode", &cfg.Mode, fl.Mode)
	set(cmd, "workers", &cfg.Workers, fl.Workers)

	set(cmd, "n-mels", &cfg.Analysis.NMels, fl.Analysis.NMels)
	set(cmd, "hop-length", &cfg.Analysis.HopLength, fl.Analysis.HopLength)
	set(cmd, "n-fft", &cfg.Analysis.NFFT, fl.Analysis.NFFT)
	set(cmd, "f-min", &cfg.Analysis.FMin, fl.Analysis.FMin)
	set(cmd, "f-max", &cfg.Analysis.FMax, fl.Analysis.FMax)
	set(cmd, "window", &cfg.Analysis.Window, fl.Analysis.Window)
	set(cmd, "db-floor", &cfg.Analysis.DBFloor, fl.Analysis.DBFloor)

	set(cmd, "frame-length", &cfg.Preprocess.FrameLength, fl.Preprocess.FrameLength)
	set(cmd, "overlap", &cfg.Preprocess.Overlap, fl.Preprocess.Overlap)
	set(cmd, "pre-emphasis", &cfg.Preprocess.PreEmphasis, fl.Preprocess.PreEmphasis)
	set(cmd, "trim-window", &cfg.Preprocess.TrimWindow, fl.Preprocess.TrimWindow)
	if f := cmd.Flags().Lookup("top-db"); f != nil && f.Changed {
		topDB := a.topDB
		cfg.Preprocess.TopDB = &topDB
	}

	set(cmd, "output-dir", &cfg.Output.Dir, fl.Output.Dir)
	set(cmd, "png", &cfg.Output.PNG, fl.Output.PNG)
	set(cmd, "json", &cfg.Output.JSON, fl.Output.JSON)
	set(cmd, "bit-depth", &cfg.Output.BitDepth, fl.Output.BitDepth)
	if a.noWAV {
		cfg.Output.Trimmed = false
	}

	set(cmd, "s3-bucket", &cfg.Storage.S3Bucket, fl.Storage.S3Bucket)
	set(cmd, "s3-prefix", &cfg.Storage.S3Prefix, fl.Storage.S3Prefix)
	set(cmd, "serve", &cfg.Transport.ServeAddr, fl.Transport.ServeAddr)
	set(cmd, "udp", &cfg.Transport.UDPTargetAddress, fl.Transport.UDPTargetAddress)

	set(cmd, "duration", &cfg.Capture.Duration, fl.Capture.Duration)
	set(cmd, "device", &cfg.Capture.InputDevice, fl.Capture.InputDevice)
	set(cmd, "sample-rate", &cfg.Capture.SampleRate, fl.Capture.SampleRate)
	set(cmd, "channels", &cfg.Capture.InputChannels, fl.Capture.InputChannels)
	set(cmd, "frames-per-buffer", &cfg.Capture.FramesPerBuffer, fl.Capture.FramesPerBuffer)
	set(cmd, "low-latency", &cfg.Capture.LowLatency, fl.Capture.LowLatency)
}

// Config returns the effective configuration once a command has started.
func (a *App) Config() *config.Config { return a.cfg }

func (a *App) summary(ctx context.Context) {
	if !a.verbose || a.provider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	lines, err := a.provider.Summary(ctx)
	if err != nil {
		log.Warnf("metric summary: %v", err)
		return
	}
	for _, l := range lines {
		log.Infof("metric %s", l)
	}
}

// IsCancelled reports whether err stems from an interrupt.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}
