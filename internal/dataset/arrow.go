package dataset

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/kwdata/internal/common"
	"github.com/paveg/kwdata/internal/errors"
)

var timestampType = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}

// ToRecord converts the dataset into an Arrow record. Each column becomes the
// narrowest of int64, float64, boolean, timestamp or string that holds all of
// its non-nil cells; nil cells become nulls. The caller must release the
// record.
func (ds *Dataset) ToRecord(mem memory.Allocator) arrow.Record {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	fields := make([]arrow.Field, len(ds.columns))
	arrays := make([]arrow.Array, len(ds.columns))
	defer func() {
		for _, arr := range arrays {
			if arr != nil {
				arr.Release()
			}
		}
	}()

	for i, col := range ds.columns {
		values, _ := ds.Column(col)
		dtype := inferArrowType(values)
		fields[i] = arrow.Field{Name: col, Type: dtype, Nullable: true}
		arrays[i] = buildArray(mem, dtype, values)
	}

	schema := arrow.NewSchema(fields, nil)
	return array.NewRecord(schema, arrays, int64(len(ds.rows)))
}

func inferArrowType(values []any) arrow.DataType {
	allInt, allFloat, allBool, allTime := true, true, true, true
	seen := false
	for _, v := range values {
		if v == nil {
			continue
		}
		seen = true
		_, isTime := v.(time.Time)
		_, isBool := v.(bool)
		allTime = allTime && isTime
		allBool = allBool && isBool
		allInt = allInt && common.IsIntegerType(v)
		allFloat = allFloat && (common.IsIntegerType(v) || common.IsFloatType(v))
	}

	switch {
	case !seen:
		return arrow.BinaryTypes.String
	case allInt:
		return arrow.PrimitiveTypes.Int64
	case allFloat:
		return arrow.PrimitiveTypes.Float64
	case allBool:
		return arrow.FixedWidthTypes.Boolean
	case allTime:
		return timestampType
	default:
		return arrow.BinaryTypes.String
	}
}

func buildArray(mem memory.Allocator, dtype arrow.DataType, values []any) arrow.Array {
	switch dtype.ID() {
	case arrow.INT64:
		builder := array.NewInt64Builder(mem)
		defer builder.Release()
		for _, v := range values {
			if v == nil {
				builder.AppendNull()
				continue
			}
			i, _ := common.ToInt64(v)
			builder.Append(i)
		}
		return builder.NewArray()
	case arrow.FLOAT64:
		builder := array.NewFloat64Builder(mem)
		defer builder.Release()
		for _, v := range values {
			if v == nil {
				builder.AppendNull()
				continue
			}
			f, _ := common.ToFloat64(v)
			builder.Append(f)
		}
		return builder.NewArray()
	case arrow.BOOL:
		builder := array.NewBooleanBuilder(mem)
		defer builder.Release()
		for _, v := range values {
			if v == nil {
				builder.AppendNull()
				continue
			}
			builder.Append(v.(bool))
		}
		return builder.NewArray()
	case arrow.TIMESTAMP:
		builder := array.NewTimestampBuilder(mem, timestampType)
		defer builder.Release()
		for _, v := range values {
			if v == nil {
				builder.AppendNull()
				continue
			}
			builder.Append(arrow.Timestamp(v.(time.Time).UnixMicro()))
		}
		return builder.NewArray()
	default:
		builder := array.NewStringBuilder(mem)
		defer builder.Release()
		for _, v := range values {
			if v == nil {
				builder.AppendNull()
				continue
			}
			if s, ok := v.(string); ok {
				builder.Append(s)
				continue
			}
			builder.Append(common.FormatValue(v))
		}
		return builder.NewArray()
	}
}

// FromRecord builds a dataset from an Arrow record. Supported column types
// are the signed integers, floats, boolean, string and timestamp.
func FromRecord(rec arrow.Record) (*Dataset, error) {
	schema := rec.Schema()
	n := int(rec.NumRows())

	ds := &Dataset{}
	for i := 0; i < n; i++ {
		ds.rows = append(ds.rows, Row{})
		ds.index = append(ds.index, i)
	}

	for c, field := range schema.Fields() {
		ds.columns = append(ds.columns, field.Name)
		col := rec.Column(c)
		for i := 0; i < n; i++ {
			if col.IsNull(i) {
				ds.rows[i][field.Name] = nil
				continue
			}
			v, err := arrowValue(col, i)
			if err != nil {
				return nil, errors.NewTypeError("FromRecord", field.Name, err.Error())
			}
			ds.rows[i][field.Name] = v
		}
	}
	return ds, nil
}

func arrowValue(col arrow.Array, i int) (any, error) {
	switch arr := col.(type) {
	case *array.Int64:
		return arr.Value(i), nil
	case *array.Int32:
		return int64(arr.Value(i)), nil
	case *array.Int16:
		return int64(arr.Value(i)), nil
	case *array.Int8:
		return int64(arr.Value(i)), nil
	case *array.Float64:
		return arr.Value(i), nil
	case *array.Float32:
		return float64(arr.Value(i)), nil
	case *array.Boolean:
		return arr.Value(i), nil
	case *array.String:
		return arr.Value(i), nil
	case *array.Timestamp:
		unit := arr.DataType().(*arrow.TimestampType).Unit
		return arr.Value(i).ToTime(unit).UTC(), nil
	default:
		return nil, fmt.Errorf("unsupported arrow type %s", col.DataType())
	}
}
