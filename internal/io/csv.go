package io

import (
	"encoding/csv"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/paveg/kwdata/internal/common"
	"github.com/paveg/kwdata/internal/dataset"
)

const (
	trueStr  = "true"
	falseStr = "false"

	typeBool   = "bool"
	typeInt    = "int"
	typeFloat  = "float"
	typeString = "string"
)

var timestampCell = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}[+-]\d{4}$`)

// Read reads CSV data and returns a Dataset
func (r *CSVReader) Read() (*dataset.Dataset, error) {
	csvReader := csv.NewReader(r.reader)
	csvReader.Comma = r.options.Delimiter
	csvReader.Comment = r.options.Comment
	csvReader.TrimLeadingSpace = r.options.SkipInitialSpace
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}

	if len(records) == 0 {
		return dataset.New(), nil
	}

	var headers []string
	var dataRows [][]string

	if r.options.Header {
		headers = records[0]
		dataRows = records[1:]
	} else {
		// Generate default column names
		numCols := len(records[0])
		headers = make([]string, numCols)
		for i := 0; i < numCols; i++ {
			headers[i] = fmt.Sprintf("column_%d", i)
		}
		dataRows = records
	}

	// Transpose data to work with columns
	columns := make([][]any, len(headers))
	for i := range headers {
		raw := make([]string, len(dataRows))
		for j, row := range dataRows {
			if i < len(row) {
				raw[j] = row[i]
			}
		}
		columns[i] = r.convertColumn(raw)
	}

	rows := make([]dataset.Row, len(dataRows))
	for j := range dataRows {
		row := make(dataset.Row, len(headers))
		for i, header := range headers {
			row[header] = columns[i][j]
		}
		rows[j] = row
	}

	return dataset.FromRows(headers, rows), nil
}

// convertColumn turns raw cells into typed values. Empty cells become nil.
func (r *CSVReader) convertColumn(data []string) []any {
	inferred := typeString
	if r.options.InferTypes {
		inferred = inferDataType(data)
	}

	values := make([]any, len(data))
	for i, value := range data {
		if value == "" {
			continue
		}
		switch inferred {
		case typeBool:
			values[i] = strings.EqualFold(value, trueStr)
		case typeInt:
			values[i], _ = strconv.ParseInt(value, 10, 64)
		case typeFloat:
			values[i], _ = strconv.ParseFloat(value, 64)
		default:
			values[i] = r.stringCell(value)
		}
	}
	return values
}

func (r *CSVReader) stringCell(value string) any {
	if r.options.ParseTimestamps {
		return ParseTimestampCell(value)
	}
	return value
}

// ParseTimestampCell returns the time held by a cell written in
// common.TimestampLayout, or the cell unchanged.
func ParseTimestampCell(value string) any {
	if !timestampCell.MatchString(value) {
		return value
	}
	t, err := time.Parse(common.TimestampLayout, value)
	if err != nil {
		return value
	}
	return t
}

// inferDataType determines the most appropriate data type for the given string data
func inferDataType(data []string) string {
	canBeInt := true
	canBeFloat := true
	canBeBool := true
	hasNonEmptyValue := false

	for _, value := range data {
		if value == "" {
			continue // Skip empty values for type inference
		}
		hasNonEmptyValue = true

		if canBeBool {
			lower := strings.ToLower(value)
			if lower != trueStr && lower != falseStr {
				canBeBool = false
			}
		}

		if canBeInt {
			if _, err := strconv.ParseInt(value, 10, 64); err != nil {
				canBeInt = false
			}
		}

		if canBeFloat {
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				canBeFloat = false
			}
		}
	}

	if !hasNonEmptyValue {
		return typeString
	}

	// Return the most specific type
	if canBeBool {
		return typeBool
	}
	if canBeInt {
		return typeInt
	}
	if canBeFloat {
		return typeFloat
	}
	return typeString
}

// Write writes the Dataset to CSV format
func (w *CSVWriter) Write(ds *dataset.Dataset) error {
	csvWriter := csv.NewWriter(w.writer)
	csvWriter.Comma = w.options.Delimiter
	defer csvWriter.Flush()

	columns := ds.Columns()

	if w.options.Header {
		if err := csvWriter.Write(columns); err != nil {
			return fmt.Errorf("writing headers: %w", err)
		}
	}

	for i := 0; i < ds.Len(); i++ {
		row := make([]string, len(columns))
		for j, col := range columns {
			row[j] = common.FormatValue(ds.Value(i, col))
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}
