package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/paveg/tripclean/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: " warn ", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := logging.ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := logging.New(logging.FormatJSON, slog.LevelInfo, &buf)
		require.NoError(t, err)

		log.Debug("hidden")
		log.Info("stage dropped rows", slog.Int("removed", 3), logging.Err(errors.New("boom")))

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "stage dropped rows", rec["msg"])
		assert.InDelta(t, 3, rec["removed"], 0)
		assert.Equal(t, "boom", rec["error"])
	})

	t.Run("pretty", func(t *testing.T) {
		color.NoColor = true
		var buf bytes.Buffer
		log, err := logging.New(logging.FormatPretty, slog.LevelDebug, &buf)
		require.NoError(t, err)

		log.With(slog.String("dataset", "users")).Info("pipeline started", slog.Int("rows", 10))
		out := buf.String()
		assert.Contains(t, out, "INFO:")
		assert.Contains(t, out, "pipeline started")
		assert.Contains(t, out, `"dataset": "users"`)
		assert.Contains(t, out, `"rows": 10`)
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := logging.New(logging.FormatText, slog.LevelWarn, &buf)
		require.NoError(t, err)
		log.Info("quiet")
		log.Warn("loud")
		assert.NotContains(t, buf.String(), "quiet")
		assert.Contains(t, buf.String(), "msg=loud")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := logging.New("xml", slog.LevelInfo, &bytes.Buffer{})
		assert.Error(t, err)
	})
}
