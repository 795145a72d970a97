// SPDX-License-Identifier: MIT
//
// Package build exposes the metadata embedded into the melspec binary at link
// time. The values are injected with -ldflags, for example:
//
//	go build -ldflags "-X melspec/pkg/build.buildVersion=0.3.0 \
//	    -X melspec/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	    -X melspec/pkg/build.buildTime=$(date -u +%FT%TZ)"
//
// Development builds carry no ldflags; Initialize reports what is missing and
// the defaults below stay in place.
package build

import (
	"errors"
	"fmt"
)

// Info describes a single build of the binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String renders the version line printed by --version.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.Time)
}

// Package-level variables populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = &Info{
		Name:        "melspec",
		Description: "Mel spectrogram preprocessing for animal vocalisation recordings",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize copies the ldflags values into the build info. Every missing
// flag is reported in the returned error; fields whose flag is present are
// still applied so a partially stamped build shows what it has.
func Initialize() error {
	var errs []error
	if buildName == "" {
		errs = append(errs, errors.New("BuildName is required"))
	} else {
		buildInfo.Name = buildName
	}
	if buildTime == "" {
		errs = append(errs, errors.New("BuildTime is required"))
	} else {
		buildInfo.Time = buildTime
	}
	if buildCommit == "" {
		errs = append(errs, errors.New("BuildCommit is required"))
	} else {
		buildInfo.Commit = buildCommit
	}
	if buildVersion == "" {
		errs = append(errs, errors.New("BuildVersion is required"))
	} else {
		buildInfo.Version = buildVersion
	}
	return errors.Join(errs...)
}

// Get returns the current build information.
func Get() *Info {
	return buildInfo
}
