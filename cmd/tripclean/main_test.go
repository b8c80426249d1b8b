package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/paveg/tripclean/internal/synth"
	"github.com/paveg/tripclean/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func generate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := execute(t, "generate", "--dir", dir, "--users", "120", "--max-events", "3", "--seed", "11")
	require.NoError(t, err)
	return dir
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Info().Short()+"\n", out)

	out, err = execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: ")
	assert.Contains(t, out, "Go Version: ")
}

func TestGenerateCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "generate", "--dir", dir, "--users", "10", "--seed", "5")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, synth.UsersFile))
	assert.FileExists(t, filepath.Join(dir, synth.UsersFile))
	assert.FileExists(t, filepath.Join(dir, synth.ClickstreamFile))

	_, err = execute(t, "generate", "--dir", dir, "--dirty-rate", "1.5")
	assert.Error(t, err)
}

func TestUsersCommand(t *testing.T) {
	dir := generate(t)
	output := filepath.Join(dir, "out", "users.parquet")
	report := filepath.Join(dir, "out", "users.md")

	out, err := execute(t, "users", "--log-level", "error",
		"--input", filepath.Join(dir, synth.UsersFile), "--output", output, "--report", report)
	require.NoError(t, err)
	assert.Contains(t, out, "users: ")
	assert.Contains(t, out, "report: "+report)
	assert.FileExists(t, output)
	assert.FileExists(t, report)
}

func TestClickstreamCommand(t *testing.T) {
	dir := generate(t)
	output := filepath.Join(dir, "out", "clicks.parquet")

	out, err := execute(t, "clicks", "--log-format", "json", "--log-level", "warn",
		"--input", filepath.Join(dir, synth.ClickstreamFile), "--output", output,
		"--report", filepath.Join(dir, "out", "clicks.md"))
	require.NoError(t, err)
	assert.Contains(t, out, "clickstream: ")
	assert.FileExists(t, output)
}

func TestAllCommand(t *testing.T) {
	dir := generate(t)
	cfgPath := filepath.Join(dir, "tripclean.yaml")
	cfg := fmt.Sprintf(`log_level: error
users:
  input: %[1]s/user.csv
  output: %[1]s/out/users.parquet
  report: %[1]s/out/users.md
  summary: %[1]s/out/users.yaml
clickstream:
  input: %[1]s/clickstreams.parquet
  output: %[1]s/out/clickstreams.parquet
  report: %[1]s/out/clickstreams.md
  metrics: %[1]s/out/clickstreams.prom
`, dir)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	out, err := execute(t, "all", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "users: ")
	assert.Contains(t, out, "clickstream: ")
	for _, name := range []string{"users.parquet", "users.md", "users.yaml", "clickstreams.parquet", "clickstreams.md", "clickstreams.prom"} {
		assert.FileExists(t, filepath.Join(dir, "out", name))
	}
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
	}{
		{"path flags with all", []string{"all", "--input", "x.csv"}},
		{"missing input", []string{"users", "--input", filepath.Join(dir, "absent.csv"), "--output", filepath.Join(dir, "o.parquet")}},
		{"unknown log format", []string{"users", "--log-format", "xml"}},
		{"unknown log level", []string{"users", "--log-level", "loud"}},
		{"missing config file", []string{"users", "--config", filepath.Join(dir, "absent.yaml")}},
		{"unexpected argument", []string{"users", "extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
