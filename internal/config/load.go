// SPDX-License-Identifier: MIT
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"melspec/pkg/bitint"
)

// FileName is the configuration file searched for when no path is given.
const FileName = "melspec.yaml"

// EnvPrefix namespaces every environment override.
const EnvPrefix = "MELSPEC_"

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadConfig loads path, or the first melspec.yaml found in the working
// directory or the user config directory when path is empty. Missing
// default files are not an error. Environment overrides are applied after
// the file and the result is validated.
func LoadConfig(path string) (*Config, error) {
	return load(context.Background(), path, envconfig.OsLookuper())
}

func load(ctx context.Context, path string, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, lookuper),
	}); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	candidates := []string{FileName}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "melspec", FileName))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// Validate runs the struct tag rules and the checks that span fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]error, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return errors.Join(msgs...)
		}
		return err
	}

	var errs []error
	if !bitint.IsPowerOfTwo(c.Analysis.NFFT) {
		errs = append(errs, fmt.Errorf("analysis.n_fft %d must be a power of two, try %d",
			c.Analysis.NFFT, bitint.NextPowerOfTwo(c.Analysis.NFFT)))
	}
	if c.Analysis.FMax <= c.Analysis.FMin {
		errs = append(errs, fmt.Errorf("analysis.f_max %g must exceed f_min %g", c.Analysis.FMax, c.Analysis.FMin))
	}
	return errors.Join(errs...)
}
