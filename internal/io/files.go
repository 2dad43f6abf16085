package io

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/paveg/kwdata/internal/dataset"
	"github.com/paveg/kwdata/internal/errors"
)

// LoadFile reads a data file, choosing the loader by extension. Delimited
// files are split on sep.
func LoadFile(path, sep string) (*dataset.Dataset, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv", ".txt":
		options := DefaultCSVOptions()
		if sep != "" {
			r, _ := utf8.DecodeRuneInString(sep)
			options.Delimiter = r
		}
		return LoadCSV(path, options)
	case ".tsv":
		options := DefaultCSVOptions()
		options.Delimiter = '\t'
		return LoadCSV(path, options)
	case ".json":
		return LoadJSON(path)
	case ".xls", ".xlsx":
		return LoadExcel(path)
	default:
		return nil, errors.NewNotSupportedError("LoadFile", fmt.Sprintf("data file type %q", ext))
	}
}

// LoadCSV reads a delimited file whose first row is the header
func LoadCSV(path string, options CSVOptions) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening data file: %w", err)
	}
	defer f.Close()

	ds, err := NewCSVReader(f, options).Read()
	if err != nil {
		return nil, errors.NewParseError("LoadCSV", fmt.Sprintf("the data file %s could not be read", path), err)
	}
	return ds, nil
}

// LoadJSON is not supported yet.
func LoadJSON(path string) (*dataset.Dataset, error) {
	return nil, errors.NewNotSupportedError("LoadJSON", "loading JSON data files")
}

// LoadExcel is not supported yet.
func LoadExcel(path string) (*dataset.Dataset, error) {
	return nil, errors.NewNotSupportedError("LoadExcel", "loading Excel data files")
}

// SaveCSV writes ds to path with a header row
func SaveCSV(path string, ds *dataset.Dataset, options CSVOptions) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating data file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing data file: %w", cerr)
		}
	}()

	return NewCSVWriter(f, options).Write(ds)
}
