// ============================================================================
// flatset - Flat collection manager
// ============================================================================
//
// Package:     version
// Description: Build information, set through -ldflags at release time
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package version

import (
	"fmt"
	"runtime"
)

// Set with -ldflags "-X github.com/msto63/flatset/pkg/core/version.Version=..."
var (
	Version   = "0.1.0"
	GitCommit = "development"
	BuildDate = "unknown"
)

// Info is the build information in structured form
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build information of the running binary
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders the multi-line block printed by `flatset version`
func (i Info) String() string {
	return fmt.Sprintf("flatset v%s\n  Git Commit: %s\n  Build Date: %s\n  Go Version: %s\n  OS/Arch:    %s\n",
		i.Version, i.GitCommit, i.BuildDate, i.GoVersion, i.Platform)
}
