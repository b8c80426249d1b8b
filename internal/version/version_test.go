package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	info := Info()

	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.String(), "tripclean")
	assert.Contains(t, info.String(), "Version:")
	assert.Contains(t, info.String(), "Go Version:")
}

func TestInfoParsesBuildDate(t *testing.T) {
	original := BuildDate
	defer func() { BuildDate = original }()

	BuildDate = "2026-02-01T10:00:00Z"
	assert.Equal(t, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), Info().BuildTime)
}

func TestBuildInfoString(t *testing.T) {
	info := BuildInfo{
		Version:   "v1.0.0",
		BuildDate: "2024-01-01T00:00:00Z",
		GitCommit: "abc123def456",
		GoVersion: "go1.24.4",
		Module:    "github.com/paveg/tripclean",
	}

	str := info.String()
	assert.Contains(t, str, "Version: v1.0.0\n")
	assert.Contains(t, str, "Build Date: 2024-01-01T00:00:00Z")
	assert.Contains(t, str, "Git Commit: abc123d")
	assert.Contains(t, str, "Go Version: go1.24.4")
	assert.Contains(t, str, "Module: github.com/paveg/tripclean")
}

func TestBuildInfoStringUnknown(t *testing.T) {
	info := BuildInfo{Version: "dev", BuildDate: unknownValue, GitCommit: unknownValue, GoVersion: "go1.24.4"}

	str := info.String()
	assert.NotContains(t, str, "Build Date")
	assert.NotContains(t, str, "Git Commit")
}

func TestBuildInfoStringDirty(t *testing.T) {
	info := BuildInfo{
		Version:   "v1.0.0",
		GitCommit: "abc123-dirty",
		Dirty:     true,
	}

	assert.Contains(t, info.String(), "Version: v1.0.0 (dirty)")
}

func TestShort(t *testing.T) {
	tests := []struct {
		name     string
		info     BuildInfo
		expected string
	}{
		{"no commit", BuildInfo{Version: "dev", GitCommit: unknownValue}, "dev"},
		{"empty commit", BuildInfo{Version: "dev"}, "dev"},
		{"long commit", BuildInfo{Version: "1.2.0", GitCommit: "3f9c2e1aa8"}, "1.2.0+3f9c2e1"},
		{"dirty commit", BuildInfo{Version: "1.2.0", GitCommit: "3f9c-dirty"}, "1.2.0+3f9c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.info.Short())
		})
	}
}

func TestIsRelease(t *testing.T) {
	originalVersion := Version
	defer func() { Version = originalVersion }()

	tests := []struct {
		version  string
		expected bool
	}{
		{"v1.0.0", true},
		{"1.0.0", true},
		{"dev", false},
		{"v1.0.0-alpha.1", false},
		{"v1.0.0-rc.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			Version = tt.version
			assert.Equal(t, tt.expected, IsRelease())
		})
	}
}
