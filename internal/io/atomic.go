package io

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/paveg/tripclean/internal/dataframe"
)

// WriteFileAtomic writes the output of fn to a temporary file next to path
// and renames it into place. On any error the temporary file is removed and
// path is left untouched.
func WriteFileAtomic(path string, fn func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	// the parquet writer closes sinks that implement io.Closer
	if err = fn(struct{ io.Writer }{tmp}); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}

// WriteFrameFile writes df to path with the writer newWriter opens on the
// temporary file.
func WriteFrameFile(path string, df *dataframe.DataFrame, newWriter func(io.Writer) DataWriter) error {
	return WriteFileAtomic(path, func(w io.Writer) error {
		return newWriter(w).Write(df)
	})
}

// WriteParquetFile writes df to path as Parquet.
func WriteParquetFile(path string, df *dataframe.DataFrame, opts ParquetOptions) error {
	return WriteFrameFile(path, df, func(w io.Writer) DataWriter { return NewParquetWriter(w, opts) })
}

// WriteCSVFile writes df to path as CSV.
func WriteCSVFile(path string, df *dataframe.DataFrame, opts CSVOptions) error {
	return WriteFrameFile(path, df, func(w io.Writer) DataWriter { return NewCSVWriter(w, opts) })
}

// WriteBytesFile writes data to path.
func WriteBytesFile(path string, data []byte) error {
	return WriteFileAtomic(path, func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(data))
		return err
	})
}
