// Package testutil provides fixtures and assertions shared by the tests of
// the keyword data packages.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paveg/kwdata/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// defaultRowCount is the default number of rows in sample files.
	defaultRowCount = 3
)

// SampleOption configures sample file creation.
type SampleOption func(*sampleConfig)

type sampleConfig struct {
	rowCount  int
	separator string
	name      string
}

// WithRowCount sets the number of data rows.
func WithRowCount(count int) SampleOption {
	return func(cfg *sampleConfig) {
		cfg.rowCount = count
	}
}

// WithSeparator sets the field separator.
func WithSeparator(sep string) SampleOption {
	return func(cfg *sampleConfig) {
		cfg.separator = sep
	}
}

// WithName sets the file name.
func WithName(name string) SampleOption {
	return func(cfg *sampleConfig) {
		cfg.name = name
	}
}

// SampleCSV writes a data file with columns X, Y and Z into a temporary
// directory and returns its path. Row i holds 3i+1, 3i+2 and 3i+3, so the
// default file is:
//
//	X,Y,Z
//	1,2,3
//	4,5,6
//	7,8,9
func SampleCSV(tb testing.TB, opts ...SampleOption) string {
	tb.Helper()

	cfg := &sampleConfig{
		rowCount:  defaultRowCount,
		separator: ",",
		name:      "sample.csv",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var b strings.Builder
	b.WriteString(strings.Join([]string{"X", "Y", "Z"}, cfg.separator) + "\n")
	for i := 0; i < cfg.rowCount; i++ {
		b.WriteString(fmt.Sprintf("%d%s%d%s%d\n", 3*i+1, cfg.separator, 3*i+2, cfg.separator, 3*i+3))
	}

	return WriteFile(tb, tb.TempDir(), cfg.name, b.String())
}

// WriteFile writes content to dir/name, creating parent directories.
func WriteFile(tb testing.TB, dir, name, content string) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	require.NoError(tb, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(tb, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// AssertDataset checks the shape of a resolved dataset: its row count, that
// every expected column is present and that no excluded column is.
func AssertDataset(t *testing.T, ds *dataset.Dataset, rowCount int, columns []string, excluded ...string) {
	t.Helper()

	require.NotNil(t, ds, "expected a dataset")
	assert.Equal(t, rowCount, ds.Len(), "unexpected number of rows")
	for _, col := range columns {
		assert.True(t, ds.HasColumn(col), "column %s should be present in %v", col, ds.Columns())
	}
	for _, col := range excluded {
		assert.False(t, ds.HasColumn(col), "column %s should not be present", col)
	}
}

// AssertColumn checks all values of a column.
func AssertColumn(t *testing.T, ds *dataset.Dataset, column string, expected ...any) {
	t.Helper()

	values, ok := ds.Column(column)
	require.True(t, ok, "column %s not found in %v", column, ds.Columns())
	assert.Equal(t, expected, values)
}
