// Package storage persists output artifacts to a local directory or an S3
// bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Store writes named artifacts and reports where each one ended up.
type Store interface {
	Put(ctx context.Context, name string, data io.Reader) (location string, err error)
}

// BaseName strips the directory and extension from an input path.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// TrimmedName is the artifact name of the trimmed waveform.
func TrimmedName(base string) string {
	return base + "_trimmed.wav"
}

// FrameName is the artifact name of frame index with extension ext
// ("png" or "json").
func FrameName(base string, index int, ext string) string {
	return fmt.Sprintf("%s_frame_%03d_mel.%s", base, index, ext)
}

type multi []Store

// Multi writes every artifact to all stores. The location reported is the
// first store's.
func Multi(stores ...Store) Store {
	if len(stores) == 1 {
		return stores[0]
	}
	return multi(stores)
}

func (m multi) Put(ctx context.Context, name string, data io.Reader) (string, error) {
	if len(m) == 0 {
		return "", errors.New("storage: no stores configured")
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	var (
		first string
		errs  []error
	)
	for i, s := range m {
		loc, err := s.Put(ctx, name, bytes.NewReader(body))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if i == 0 {
			first = loc
		}
	}
	return first, errors.Join(errs...)
}
