// Package version reports build information of the tripclean binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const (
	unknownValue     = "unknown"
	commitHashLength = 7
)

// Build-time variables set by ldflags
var (
	Version   = "dev"
	BuildDate = unknownValue
	GitCommit = unknownValue
	GoVersion = runtime.Version()
)

// BuildInfo contains detailed build information
type BuildInfo struct {
	Version   string    `json:"version" yaml:"version"`
	BuildDate string    `json:"build_date" yaml:"build_date"`
	GitCommit string    `json:"git_commit" yaml:"git_commit"`
	GoVersion string    `json:"go_version" yaml:"go_version"`
	BuildTime time.Time `json:"build_time" yaml:"build_time"`
	Dirty     bool      `json:"dirty" yaml:"dirty"`
	Module    string    `json:"module,omitempty" yaml:"module,omitempty"`
	Deps      []Module  `json:"deps,omitempty" yaml:"deps,omitempty"`
}

// Module is a dependency compiled into the binary.
type Module struct {
	Path    string `json:"path" yaml:"path"`
	Version string `json:"version" yaml:"version"`
}

// Info returns detailed build information
func Info() BuildInfo {
	buildTime, _ := time.Parse(time.RFC3339, BuildDate)

	info := BuildInfo{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: GoVersion,
		BuildTime: buildTime,
		Dirty:     strings.HasSuffix(GitCommit, "-dirty"),
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		info.Module = bi.Main.Path
		for _, dep := range bi.Deps {
			info.Deps = append(info.Deps, Module{Path: dep.Path, Version: dep.Version})
		}
		// go build stamps vcs settings when ldflags were not given
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && info.GitCommit == unknownValue:
				info.GitCommit = s.Value
			case s.Key == "vcs.modified" && s.Value == "true":
				info.Dirty = true
			}
		}
	}

	return info
}

// Short returns the version with the abbreviated commit, e.g. "1.2.0+3f9c2e1".
func (b BuildInfo) Short() string {
	if b.GitCommit == unknownValue || b.GitCommit == "" {
		return b.Version
	}
	commit := strings.TrimSuffix(b.GitCommit, "-dirty")
	if len(commit) > commitHashLength {
		commit = commit[:commitHashLength]
	}
	return b.Version + "+" + commit
}

// String returns a formatted version string
func (b BuildInfo) String() string {
	var sb strings.Builder
	sb.WriteString("tripclean\n")
	fmt.Fprintf(&sb, "Version: %s", b.Version)
	if b.Dirty {
		sb.WriteString(" (dirty)")
	}
	sb.WriteString("\n")

	if b.BuildDate != unknownValue {
		fmt.Fprintf(&sb, "Build Date: %s\n", b.BuildDate)
	}
	if b.GitCommit != unknownValue {
		commit := b.GitCommit
		if len(commit) > commitHashLength {
			commit = commit[:commitHashLength]
		}
		fmt.Fprintf(&sb, "Git Commit: %s\n", commit)
	}
	fmt.Fprintf(&sb, "Go Version: %s\n", b.GoVersion)
	if b.Module != "" {
		fmt.Fprintf(&sb, "Module: %s\n", b.Module)
	}
	return sb.String()
}

// IsRelease returns true if this is a release version (not dev)
func IsRelease() bool {
	return Version != "dev" && !strings.Contains(Version, "-")
}
