// SPDX-License-Identifier: MIT
package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func loadWithEnv(t *testing.T, path string, env map[string]string) (*Config, error) {
	t.Helper()
	return load(context.Background(), path, envconfig.MapLookuper(env))
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadWithEnv(t, "", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultMode, cfg.Mode)
	assert.Equal(t, 128, cfg.Analysis.NMels)
	assert.Equal(t, 512, cfg.Analysis.HopLength)
	assert.Equal(t, 2048, cfg.Analysis.NFFT)
	assert.Equal(t, 8000.0, cfg.Analysis.FMax)
	assert.Equal(t, 1.0, cfg.Preprocess.FrameLength)
	assert.Equal(t, 0.5, cfg.Preprocess.Overlap)
	assert.Equal(t, 0.97, cfg.Preprocess.PreEmphasis)
	assert.Nil(t, cfg.Preprocess.TopDB, "top_db should default to adaptive")
	assert.Equal(t, "result", cfg.Output.Dir)
	assert.False(t, cfg.Storage.S3Enabled())
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := loadWithEnv(t, "nonexistent.yaml", nil)
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	path := writeTempConfig(t, ":\n:bad")
	_, err := loadWithEnv(t, path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadConfig_File(t *testing.T) {
	path := writeTempConfig(t, `
mode: grunt
log_level: debug
workers: 3
analysis:
  n_mels: 64
  f_max: 4000
preprocess:
  overlap_fraction: 0.25
  top_db: 35
output:
  dir: out
  json: true
transport:
  udp_target_address: 127.0.0.1:9090
  udp_send_interval: 50ms
capture:
  duration: 2s
`)
	cfg, err := loadWithEnv(t, path, nil)
	require.NoError(t, err)

	assert.Equal(t, "grunt", cfg.Mode)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 64, cfg.Analysis.NMels)
	assert.Equal(t, 4000.0, cfg.Analysis.FMax)
	assert.Equal(t, 2048, cfg.Analysis.NFFT, "unset keys keep defaults")
	assert.Equal(t, 0.25, cfg.Preprocess.Overlap)
	require.NotNil(t, cfg.Preprocess.TopDB)
	assert.Equal(t, 35.0, *cfg.Preprocess.TopDB)
	assert.True(t, cfg.Output.JSON)
	assert.True(t, cfg.Output.PNG)
	assert.Equal(t, 50*time.Millisecond, cfg.Transport.UDPSendInterval)
	assert.Equal(t, 2*time.Second, cfg.Capture.Duration)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeTempConfig(t, "mode: grunt\nanalysis:\n  n_mels: 64\n")
	cfg, err := loadWithEnv(t, path, map[string]string{
		"MELSPEC_MODE":              "squeal",
		"MELSPEC_N_MELS":            "96",
		"MELSPEC_TOP_DB":            "42.5",
		"MELSPEC_UDP_SEND_INTERVAL": "10ms",
		"MELSPEC_S3_BUCKET":         "calls",
		"MELSPEC_S3_REGION":         "eu-west-1",
		"MODE":                      "grunt",
	})
	require.NoError(t, err)

	assert.Equal(t, "squeal", cfg.Mode)
	assert.Equal(t, 96, cfg.Analysis.NMels)
	require.NotNil(t, cfg.Preprocess.TopDB)
	assert.Equal(t, 42.5, *cfg.Preprocess.TopDB)
	assert.Equal(t, 10*time.Millisecond, cfg.Transport.UDPSendInterval)
	assert.True(t, cfg.Storage.S3Enabled())
}

func TestLoadConfig_EnvParseError(t *testing.T) {
	_, err := loadWithEnv(t, "", map[string]string{"MELSPEC_N_MELS": "many"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "environment overrides")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "bark" }},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }},
		{"n_fft not power of two", func(c *Config) { c.Analysis.NFFT = 1000 }},
		{"f_max below f_min", func(c *Config) { c.Analysis.FMin = 5000; c.Analysis.FMax = 4000 }},
		{"overlap of one", func(c *Config) { c.Preprocess.Overlap = 1 }},
		{"pre-emphasis of one", func(c *Config) { c.Preprocess.PreEmphasis = 1 }},
		{"negative top_db", func(c *Config) { v := -3.0; c.Preprocess.TopDB = &v }},
		{"zero frame length", func(c *Config) { c.Preprocess.FrameLength = 0 }},
		{"odd bit depth", func(c *Config) { c.Output.BitDepth = 12 }},
		{"bucket without region", func(c *Config) { c.Storage.S3Bucket = "calls" }},
		{"bad udp address", func(c *Config) { c.Transport.UDPTargetAddress = "nowhere" }},
		{"device below default", func(c *Config) { c.Capture.InputDevice = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}
