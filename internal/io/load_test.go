package io_test

import (
	"context"
	stderrors "errors"
	stdio "io"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/tripclean/internal/errors"
	"github.com/paveg/tripclean/internal/io"
	"github.com/paveg/tripclean/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path, format, want string
		wantErr            bool
	}{
		{path: "data/user.csv", format: "auto", want: io.FormatCSV},
		{path: "data/clickstreams.parquet", format: "", want: io.FormatParquet},
		{path: "data/blob.bin", format: "parquet", want: io.FormatParquet},
		{path: "data/blob.bin", format: "auto", wantErr: true},
		{path: "data/user.csv", format: "xlsx", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path+"/"+tt.format, func(t *testing.T) {
			got, err := io.DetectFormat(tt.path, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewGoAllocator()
	dir := t.TempDir()

	t.Run("canceled", func(t *testing.T) {
		path := filepath.Join(dir, "user.csv")
		require.NoError(t, os.WriteFile(path, []byte("id\n"), 0o600))
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := io.Load(canceled, path, io.FormatAuto, schema.Users(), mem)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := io.Load(ctx, filepath.Join(dir, "nope.csv"), io.FormatAuto, schema.Users(), mem)
		var nf *errors.NotFoundError
		require.True(t, stderrors.As(err, &nf))
		assert.Equal(t, filepath.Join(dir, "nope.csv"), nf.Path)
	})

	t.Run("format error", func(t *testing.T) {
		path := filepath.Join(dir, "fake.parquet")
		require.NoError(t, os.WriteFile(path, []byte("user_id\nabc\n"), 0o600))

		_, err := io.Load(ctx, path, io.FormatAuto, schema.Clickstream(), mem)
		var fe *errors.FormatError
		require.True(t, stderrors.As(err, &fe))
		assert.Equal(t, io.FormatParquet, fe.Format)
	})

	t.Run("schema error", func(t *testing.T) {
		path := filepath.Join(dir, "short.csv")
		require.NoError(t, os.WriteFile(path, []byte("user_id,user_age\nabc,30\n"), 0o600))

		_, err := io.Load(ctx, path, io.FormatCSV, schema.Users(), mem)
		var se *errors.SchemaError
		require.True(t, stderrors.As(err, &se))
	})

	t.Run("parquet round trip through files", func(t *testing.T) {
		df := createMixedTypeDataFrame(t, mem)
		defer df.Release()

		path := filepath.Join(dir, "out", "mixed.parquet")
		require.NoError(t, io.WriteParquetFile(path, df, io.DefaultParquetOptions()))

		res, err := io.Load(ctx, path, io.FormatAuto, schema.Schema{}, mem)
		require.NoError(t, err)
		defer res.Frame.Release()
		assert.Equal(t, io.FormatParquet, res.Format)
		assert.Equal(t, df.Len(), res.Frame.Len())
		assert.Empty(t, res.ExtraColumns)
	})
}

func TestWriteFileAtomicLeavesNothingOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.md")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o600))

	err := io.WriteFileAtomic(path, func(w stdio.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return stderrors.New("boom")
	})
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, io.WriteBytesFile(path, []byte("next")))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "next", string(data))
}

func TestWriteFileAtomicHidesCloser(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	require.NoError(t, io.WriteFileAtomic(path, func(w stdio.Writer) error {
		_, isCloser := w.(stdio.Closer)
		assert.False(t, isCloser, "writers must not close the temporary file")
		_, err := w.Write([]byte("data"))
		return err
	}))
}

func TestWriteParquetFileReplacesExisting(t *testing.T) {
	mem := memory.NewGoAllocator()
	df := createMixedTypeDataFrame(t, mem)
	defer df.Release()

	dir := t.TempDir()
	path := filepath.Join(dir, "users.parquet")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))
	require.NoError(t, io.WriteParquetFile(path, df, io.DefaultParquetOptions()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary file left behind")

	res, err := io.Load(context.Background(), path, io.FormatAuto, schema.Schema{}, mem)
	require.NoError(t, err)
	defer res.Frame.Release()
	assert.Equal(t, df.Len(), res.Frame.Len())
	assert.Equal(t, df.Columns(), res.Frame.Columns())
}
