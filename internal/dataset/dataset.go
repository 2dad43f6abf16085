// Package dataset provides the tabular structure keyword data is resolved
// into: named columns over rows of dynamically typed cells, with a row label
// per row that survives filtering.
package dataset

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/paveg/kwdata/internal/errors"
)

// Row is a single record keyed by column name
type Row map[string]any

// Copy returns a shallow copy of the row
func (r Row) Copy() Row {
	return maps.Clone(r)
}

// Dataset is an ordered set of columns over labelled rows.
// Every row carries a value (possibly nil) for every column.
type Dataset struct {
	columns []string
	rows    []Row
	index   []int
}

// New creates an empty dataset with the given columns
func New(columns ...string) *Dataset {
	return &Dataset{columns: slices.Clone(columns)}
}

// FromRecords builds a dataset from a list of records. Columns appear in
// first-seen order across the records; missing values are nil.
func FromRecords[M ~map[string]any](records []M) *Dataset {
	ds := &Dataset{}
	seen := map[string]bool{}
	for _, rec := range records {
		keys := slices.Collect(maps.Keys(rec))
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				ds.columns = append(ds.columns, k)
			}
		}
	}
	for i, rec := range records {
		row := make(Row, len(ds.columns))
		for _, col := range ds.columns {
			row[col] = rec[col]
		}
		ds.rows = append(ds.rows, row)
		ds.index = append(ds.index, i)
	}
	return ds
}

// FromRows builds a dataset with the given column order. Cells missing from a
// row are nil and keys outside columns are dropped.
func FromRows(columns []string, rows []Row) *Dataset {
	ds := &Dataset{columns: slices.Clone(columns)}
	for i, src := range rows {
		row := make(Row, len(columns))
		for _, col := range columns {
			row[col] = src[col]
		}
		ds.rows = append(ds.rows, row)
		ds.index = append(ds.index, i)
	}
	return ds
}

// FromColumns builds a dataset from column slices, which must all have the
// same length. Columns are ordered by name.
func FromColumns(columns map[string][]any) (*Dataset, error) {
	names := slices.Sorted(maps.Keys(columns))
	ds := &Dataset{columns: names}

	n := -1
	for _, name := range names {
		if n == -1 {
			n = len(columns[name])
			continue
		}
		if len(columns[name]) != n {
			return nil, errors.NewTypeError("FromColumns", name,
				fmt.Sprintf("column has %d values, expected %d", len(columns[name]), n))
		}
	}

	for i := 0; i < n; i++ {
		row := make(Row, len(names))
		for _, name := range names {
			row[name] = columns[name][i]
		}
		ds.rows = append(ds.rows, row)
		ds.index = append(ds.index, i)
	}
	return ds, nil
}

// FromArgs builds a one-row dataset whose columns are the argument names in
// sorted order.
func FromArgs(args map[string]any) *Dataset {
	names := slices.Sorted(maps.Keys(args))
	row := make(Row, len(args))
	for _, name := range names {
		row[name] = args[name]
	}
	return &Dataset{columns: names, rows: []Row{row}, index: []int{0}}
}

// Columns returns the column names in order
func (ds *Dataset) Columns() []string {
	return slices.Clone(ds.columns)
}

// Len returns the number of rows
func (ds *Dataset) Len() int {
	return len(ds.rows)
}

// Width returns the number of columns
func (ds *Dataset) Width() int {
	return len(ds.columns)
}

// HasColumn reports whether the named column exists
func (ds *Dataset) HasColumn(name string) bool {
	return slices.Contains(ds.columns, name)
}

// Index returns the row labels in order
func (ds *Dataset) Index() []int {
	return slices.Clone(ds.index)
}

// Row returns a copy of the i-th row by position
func (ds *Dataset) Row(i int) Row {
	return ds.rows[i].Copy()
}

// Value returns the cell at row position i in column col
func (ds *Dataset) Value(i int, col string) any {
	return ds.rows[i][col]
}

// Set replaces the cell at row position i in column col. The column must
// exist.
func (ds *Dataset) Set(i int, col string, value any) {
	ds.rows[i][col] = value
}

// Column returns the values of the named column
func (ds *Dataset) Column(name string) ([]any, bool) {
	if !ds.HasColumn(name) {
		return nil, false
	}
	values := make([]any, len(ds.rows))
	for i, row := range ds.rows {
		values[i] = row[name]
	}
	return values, true
}

// Records returns copies of all rows
func (ds *Dataset) Records() []Row {
	out := make([]Row, len(ds.rows))
	for i, row := range ds.rows {
		out[i] = row.Copy()
	}
	return out
}

// Assign sets value into every row of column name, adding the column when it
// does not exist yet.
func (ds *Dataset) Assign(name string, value any) {
	if !ds.HasColumn(name) {
		ds.columns = append(ds.columns, name)
	}
	for _, row := range ds.rows {
		row[name] = value
	}
}

// Clone returns a copy of the dataset. Cells are copied shallowly.
func (ds *Dataset) Clone() *Dataset {
	return &Dataset{
		columns: slices.Clone(ds.columns),
		rows:    ds.Records(),
		index:   slices.Clone(ds.index),
	}
}

// Take returns the rows carrying the given labels, in the requested order.
// Every label that is absent yields a range error listing all of them.
func (ds *Dataset) Take(labels []int) (*Dataset, error) {
	position := make(map[int]int, len(ds.index))
	for pos, label := range ds.index {
		position[label] = pos
	}

	var missing []int
	for _, label := range labels {
		if _, ok := position[label]; !ok {
			missing = append(missing, label)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewRangeError("Take", missing)
	}

	out := &Dataset{columns: slices.Clone(ds.columns)}
	for _, label := range labels {
		out.rows = append(out.rows, ds.rows[position[label]].Copy())
		out.index = append(out.index, label)
	}
	return out, nil
}

// Filter returns the rows whose mask entry is true. The mask must have one
// entry per row.
func (ds *Dataset) Filter(mask []bool) (*Dataset, error) {
	if len(mask) != len(ds.rows) {
		return nil, errors.NewTypeError("Filter", "",
			fmt.Sprintf("mask has %d entries for %d rows", len(mask), len(ds.rows)))
	}
	out := &Dataset{columns: slices.Clone(ds.columns)}
	for i, keep := range mask {
		if keep {
			out.rows = append(out.rows, ds.rows[i].Copy())
			out.index = append(out.index, ds.index[i])
		}
	}
	return out, nil
}

// MapValues returns a dataset with fn applied to every cell
func (ds *Dataset) MapValues(fn func(col string, value any) any) *Dataset {
	out := ds.Clone()
	for _, row := range out.rows {
		for _, col := range out.columns {
			row[col] = fn(col, row[col])
		}
	}
	return out
}

// RenameColumns returns a dataset whose columns are renamed by fn. Two columns
// mapping to the same name is a duplicate argument error.
func (ds *Dataset) RenameColumns(fn func(string) string) (*Dataset, error) {
	renamed := make([]string, len(ds.columns))
	owner := make(map[string]string, len(ds.columns))
	for i, col := range ds.columns {
		name := fn(col)
		if prev, ok := owner[name]; ok {
			return nil, errors.NewDuplicateArgumentError("RenameColumns", "", name).
				WithHint(fmt.Sprintf("columns %q and %q both resolve to %q", prev, col, name))
		}
		owner[name] = col
		renamed[i] = name
	}

	out := &Dataset{columns: renamed, index: slices.Clone(ds.index)}
	for _, row := range ds.rows {
		next := make(Row, len(renamed))
		for i, col := range ds.columns {
			next[renamed[i]] = row[col]
		}
		out.rows = append(out.rows, next)
	}
	return out, nil
}

// String renders the dataset as a small text table
func (ds *Dataset) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Dataset[%dx%d]\n", len(ds.rows), len(ds.columns)))
	sb.WriteString("\t" + strings.Join(ds.columns, "\t") + "\n")
	for i, row := range ds.rows {
		sb.WriteString(fmt.Sprintf("%d", ds.index[i]))
		for _, col := range ds.columns {
			sb.WriteString(fmt.Sprintf("\t%v", row[col]))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
