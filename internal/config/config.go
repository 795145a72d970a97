// Package config holds the runtime configuration for melspec. Values come
// from built-in defaults, an optional YAML file, MELSPEC_* environment
// variables and finally command line flags, in that order.
package config

import (
	"time"
)

const (
	DefaultLogLevel = "info"
	DefaultMode     = "mixed"

	// Mel analysis.
	DefaultNMels     = 128
	DefaultHopLength = 512
	DefaultNFFT      = 2048
	DefaultFMin      = 0.0
	DefaultFMax      = 8000.0
	DefaultWindow    = "hann"
	DefaultDBFloor   = 80.0

	// Preprocessing.
	DefaultFrameLength = 1.0 // seconds
	DefaultOverlap     = 0.5
	DefaultPreEmphasis = 0.97
	DefaultTrimWindow  = 512

	// Output.
	DefaultOutputDir = "result"
	DefaultBitDepth  = 16

	// Capture.
	MinDeviceID            = -1 // system default input
	DefaultCaptureChannels = 1
	DefaultFramesPerBuffer = 512
	DefaultCaptureDuration = 5 * time.Second

	DefaultUDPSendInterval = 33 * time.Millisecond
)

// Config is the complete melspec configuration.
type Config struct {
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL, overwrite" validate:"oneof=debug info warn warning error"`
	Mode     string `yaml:"mode" env:"MODE, overwrite" validate:"oneof=grunt squeal mixed"`
	// Workers bounds parallel frame computation. 0 means one per CPU.
	Workers int `yaml:"workers" env:"WORKERS, overwrite" validate:"gte=0"`

	Analysis   AnalysisConfig   `yaml:"analysis"`
	Preprocess PreprocessConfig `yaml:"preprocess"`
	Output     OutputConfig     `yaml:"output"`
	Storage    StorageConfig    `yaml:"storage"`
	Transport  TransportConfig  `yaml:"transport"`
	Capture    CaptureConfig    `yaml:"capture"`
}

// AnalysisConfig parameterises the mel spectrogram.
type AnalysisConfig struct {
	NMels     int     `yaml:"n_mels" env:"N_MELS, overwrite" validate:"min=1,max=1024"`
	HopLength int     `yaml:"hop_length" env:"HOP_LENGTH, overwrite" validate:"min=1"`
	NFFT      int     `yaml:"n_fft" env:"N_FFT, overwrite" validate:"min=16,max=65536"`
	FMin      float64 `yaml:"f_min" env:"F_MIN, overwrite" validate:"gte=0"`
	FMax      float64 `yaml:"f_max" env:"F_MAX, overwrite" validate:"gt=0"`
	Window    string  `yaml:"window" env:"WINDOW, overwrite" validate:"required"`
	DBFloor   float64 `yaml:"db_floor" env:"DB_FLOOR, overwrite" validate:"gt=0"`
}

// PreprocessConfig covers the time-domain stages.
type PreprocessConfig struct {
	FrameLength float64 `yaml:"frame_length_s" env:"FRAME_LENGTH_S, overwrite" validate:"gt=0"`
	Overlap     float64 `yaml:"overlap_fraction" env:"OVERLAP_FRACTION, overwrite" validate:"gte=0,lt=1"`
	PreEmphasis float64 `yaml:"pre_emphasis" env:"PRE_EMPHASIS, overwrite" validate:"gte=0,lt=1"`
	// TopDB fixes the silence threshold; nil selects it from the signal level.
	TopDB      *float64 `yaml:"top_db" env:"TOP_DB, overwrite" validate:"omitempty,gt=0"`
	TrimWindow int      `yaml:"trim_window" env:"TRIM_WINDOW, overwrite" validate:"min=1"`
}

// OutputConfig selects which artifacts are written.
type OutputConfig struct {
	Dir      string `yaml:"dir" env:"OUTPUT_DIR, overwrite" validate:"required"`
	PNG      bool   `yaml:"png" env:"PNG, overwrite"`
	JSON     bool   `yaml:"json" env:"JSON, overwrite"`
	Trimmed  bool   `yaml:"trimmed" env:"TRIMMED, overwrite"`
	BitDepth int    `yaml:"bit_depth" env:"BIT_DEPTH, overwrite" validate:"oneof=16 24 32"`
}

// StorageConfig enables the S3 artifact store when Bucket is set.
type StorageConfig struct {
	S3Bucket        string `yaml:"s3_bucket" env:"S3_BUCKET, overwrite"`
	S3Region        string `yaml:"s3_region" env:"S3_REGION, overwrite" validate:"required_with=S3Bucket"`
	S3Prefix        string `yaml:"s3_prefix" env:"S3_PREFIX, overwrite"`
	S3Endpoint      string `yaml:"s3_endpoint" env:"S3_ENDPOINT, overwrite" validate:"omitempty,url"`
	AccessKeyID     string `yaml:"-" env:"AWS_ACCESS_KEY_ID, overwrite"`
	SecretAccessKey string `yaml:"-" env:"AWS_SECRET_ACCESS_KEY, overwrite"`
}

// S3Enabled reports whether artifacts should be uploaded.
func (s StorageConfig) S3Enabled() bool { return s.S3Bucket != "" }

// TransportConfig controls live streaming of computed frames.
type TransportConfig struct {
	ServeAddr        string        `yaml:"serve_addr" env:"SERVE_ADDR, overwrite" validate:"omitempty,hostname_port"`
	UDPTargetAddress string        `yaml:"udp_target_address" env:"UDP_TARGET_ADDRESS, overwrite" validate:"omitempty,hostname_port"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval" env:"UDP_SEND_INTERVAL, overwrite" validate:"gte=0"`
}

// CaptureConfig configures the record command.
type CaptureConfig struct {
	InputDevice     int           `yaml:"input_device" env:"INPUT_DEVICE, overwrite" validate:"gte=-1"`
	SampleRate      float64       `yaml:"sample_rate" env:"SAMPLE_RATE, overwrite" validate:"gte=0"`
	InputChannels   int           `yaml:"input_channels" env:"INPUT_CHANNELS, overwrite" validate:"min=1,max=32"`
	FramesPerBuffer int           `yaml:"frames_per_buffer" env:"FRAMES_PER_BUFFER, overwrite" validate:"min=16"`
	LowLatency      bool          `yaml:"low_latency" env:"LOW_LATENCY, overwrite"`
	Duration        time.Duration `yaml:"duration" env:"DURATION, overwrite" validate:"gt=0"`
}

// Default returns a configuration populated with the built-in defaults.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Mode:     DefaultMode,
		Analysis: AnalysisConfig{
			NMels:     DefaultNMels,
			HopLength: DefaultHopLength,
			NFFT:      DefaultNFFT,
			FMin:      DefaultFMin,
			FMax:      DefaultFMax,
			Window:    DefaultWindow,
			DBFloor:   DefaultDBFloor,
		},
		Preprocess: PreprocessConfig{
			FrameLength: DefaultFrameLength,
			Overlap:     DefaultOverlap,
			PreEmphasis: DefaultPreEmphasis,
			TrimWindow:  DefaultTrimWindow,
		},
		Output: OutputConfig{
			Dir:      DefaultOutputDir,
			PNG:      true,
			Trimmed:  true,
			BitDepth: DefaultBitDepth,
		},
		Transport: TransportConfig{
			UDPSendInterval: DefaultUDPSendInterval,
		},
		Capture: CaptureConfig{
			InputDevice:     MinDeviceID,
			InputChannels:   DefaultCaptureChannels,
			FramesPerBuffer: DefaultFramesPerBuffer,
			Duration:        DefaultCaptureDuration,
		},
	}
}
