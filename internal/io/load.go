package io

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/tripclean/internal/dataframe"
	"github.com/paveg/tripclean/internal/errors"
	"github.com/paveg/tripclean/internal/schema"
)

// Format tags accepted by Load.
const (
	FormatAuto    = "auto"
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// DetectFormat resolves FormatAuto from the file extension.
func DetectFormat(path, format string) (string, error) {
	format = strings.ToLower(format)
	switch format {
	case FormatCSV, FormatParquet:
		return format, nil
	case "", FormatAuto:
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv", ".tsv", ".txt":
			return FormatCSV, nil
		case ".parquet", ".pq":
			return FormatParquet, nil
		}
		return "", fmt.Errorf("cannot detect format of %s", path)
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
}

// LoadResult is the table read by Load plus what was noticed while reading it.
type LoadResult struct {
	Frame        *dataframe.DataFrame
	Format       string
	ExtraColumns []string
}

// Load reads the file at path into a DataFrame checked against s. It returns
// a *errors.NotFoundError when the path does not exist, a *errors.FormatError
// when the file cannot be parsed as format and a *errors.SchemaError when it
// parses but violates s.
func Load(ctx context.Context, path, format string, s schema.Schema, mem memory.Allocator) (*LoadResult, error) {
	resolved, err := DetectFormat(path, format)
	if err != nil {
		return nil, &errors.FormatError{Path: path, Format: format, Cause: err}
	}

	f, err := os.Open(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, &errors.NotFoundError{Path: path, Cause: err}
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.IsDir() {
		return nil, &errors.FormatError{Path: path, Format: resolved, Cause: fmt.Errorf("is a directory")}
	}

	reader := newReader(f, path, resolved, s, mem)
	df, err := reader.ReadContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		var schemaErr *errors.SchemaError
		if stderrors.As(err, &schemaErr) {
			return nil, schemaErr
		}
		return nil, &errors.FormatError{Path: path, Format: resolved, Cause: err}
	}

	return &LoadResult{Frame: df, Format: resolved, ExtraColumns: reader.ExtraColumns()}, nil
}

func newReader(r io.Reader, path, format string, s schema.Schema, mem memory.Allocator) SchemaReader {
	if format == FormatParquet {
		opts := DefaultParquetOptions()
		opts.Schema = s
		return NewParquetReader(r, opts, mem)
	}
	opts := DefaultCSVOptions()
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		opts.Delimiter = '\t'
	}
	opts.Schema = s
	return NewCSVReader(r, opts, mem)
}
