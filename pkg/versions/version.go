// Package versions provides build information for the status page server.
package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

const unknownStr = "unknown"

// Set at build time with -ldflags "-X github.com/stacklok/status-page-server/pkg/versions.Version=..."
var (
	// Version is the released version, "dev" for local builds
	Version = "dev"
	// Commit is the git commit of the build
	Commit = unknownStr
	// BuildDate is the RFC 3339 build time
	BuildDate = unknownStr
)

// VersionInfo represents the version information
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// String renders the info on one line, as printed by the version command
func (v VersionInfo) String() string {
	return fmt.Sprintf("status-page %s (commit %s, built %s, %s %s)",
		v.Version, v.Commit, v.BuildDate, v.GoVersion, v.Platform)
}

// GetVersionInfo returns the version information
func GetVersionInfo() VersionInfo {
	var settings []debug.BuildSetting
	if info, ok := debug.ReadBuildInfo(); ok {
		settings = info.Settings
	}
	return resolve(Version, Commit, BuildDate, settings)
}

// resolve fills what ldflags left unset from the VCS stamp of the binary
func resolve(version, commit, buildDate string, settings []debug.BuildSetting) VersionInfo {
	if version == "dev" {
		for _, s := range settings {
			switch s.Key {
			case "vcs.revision":
				if commit == unknownStr {
					commit = s.Value
				}
			case "vcs.time":
				if buildDate == unknownStr {
					buildDate = s.Value
				}
			}
		}
		if commit != unknownStr {
			version = fmt.Sprintf("dev-%.8s", commit)
		}
	}

	if t, err := time.Parse(time.RFC3339, buildDate); err == nil {
		buildDate = t.UTC().Format("2006-01-02 15:04:05 UTC")
	}

	return VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}
