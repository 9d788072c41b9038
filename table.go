package forecastplot

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// The table access toolbox. Every table handed to the renderers is an Arrow
// record; this file is the only place that knows how to get values out of
// one. Errors from here are surfaced to callers unchanged.

var (
	ErrColumnNotFound   = errors.New("column not found")
	ErrUnsupportedType  = errors.New("unsupported column type")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// ColumnNames returns the column names of the table in schema order.
func ColumnNames(table arrow.Record) []string {
	fields := table.Schema().Fields()
	names := make([]string, 0, len(fields))
	for _, field := range fields {
		names = append(names, field.Name)
	}
	return names
}

func HasColumn(table arrow.Record, name string) bool {
	return table.Schema().HasField(name)
}

// NumRows is the row count as an int.
func NumRows(table arrow.Record) int {
	return int(table.NumRows())
}

func column(table arrow.Record, name string) (arrow.Array, error) {
	indices := table.Schema().FieldIndices(name)
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrColumnNotFound, name, ColumnNames(table))
	}
	return table.Column(indices[0]), nil
}

// RequireColumns fails with ErrColumnNotFound on the first name missing from
// the table.
func RequireColumns(table arrow.Record, names []string) error {
	for _, name := range names {
		if !HasColumn(table, name) {
			return fmt.Errorf("%w: %q (have %v)", ErrColumnNotFound, name, ColumnNames(table))
		}
	}
	return nil
}

// Float64Column reads a numeric column by name. Nulls become NaN.
func Float64Column(table arrow.Record, name string) ([]float64, error) {
	arr, err := column(table, name)
	if err != nil {
		return nil, err
	}
	values, err := float64Values(arr)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", name, err)
	}
	return values, nil
}

// Float64ColumnAt reads the numeric column at a schema position.
func Float64ColumnAt(table arrow.Record, position int) ([]float64, error) {
	if position < 0 || position >= int(table.NumCols()) {
		return nil, fmt.Errorf("%w: position %d out of %d columns", ErrColumnNotFound, position, table.NumCols())
	}
	values, err := float64Values(table.Column(position))
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", table.ColumnName(position), err)
	}
	return values, nil
}

func float64Values(arr arrow.Array) ([]float64, error) {
	values := make([]float64, arr.Len())

	var at func(int) float64
	switch a := arr.(type) {
	case *array.Float64:
		at = a.Value
	case *array.Float32:
		at = func(i int) float64 { return float64(a.Value(i)) }
	case *array.Int64:
		at = func(i int) float64 { return float64(a.Value(i)) }
	case *array.Int32:
		at = func(i int) float64 { return float64(a.Value(i)) }
	case *array.Int16:
		at = func(i int) float64 { return float64(a.Value(i)) }
	case *array.Int8:
		at = func(i int) float64 { return float64(a.Value(i)) }
	case *array.Uint64:
		at = func(i int) float64 { return float64(a.Value(i)) }
	case *array.Uint32:
		at = func(i int) float64 { return float64(a.Value(i)) }
	case *array.Uint16:
		at = func(i int) float64 { return float64(a.Value(i)) }
	case *array.Uint8:
		at = func(i int) float64 { return float64(a.Value(i)) }
	case *array.Null:
		at = func(int) float64 { return math.NaN() }
	default:
		return nil, fmt.Errorf("%w: %s is not numeric", ErrUnsupportedType, arr.DataType())
	}

	for i := range values {
		if arr.IsNull(i) {
			values[i] = math.NaN()
			continue
		}
		values[i] = at(i)
	}
	return values, nil
}

// TimeColumn parses a column into times. Timestamp and date columns are
// converted directly, string columns are parsed as ISO-8601.
func TimeColumn(table arrow.Record, name string) ([]time.Time, error) {
	arr, err := column(table, name)
	if err != nil {
		return nil, err
	}

	times := make([]time.Time, arr.Len())
	for i := range times {
		if arr.IsNull(i) {
			return nil, fmt.Errorf("%w: column %q row %d is null", ErrInvalidTimestamp, name, i)
		}

		switch a := arr.(type) {
		case *array.Timestamp:
			unit := a.DataType().(*arrow.TimestampType).Unit
			times[i] = a.Value(i).ToTime(unit)
		case *array.Date32:
			times[i] = a.Value(i).ToTime()
		case *array.Date64:
			times[i] = a.Value(i).ToTime()
		case *array.String:
			times[i], err = parseTimestamp(a.Value(i))
		case *array.LargeString:
			times[i], err = parseTimestamp(a.Value(i))
		default:
			return nil, fmt.Errorf("%w: column %q is %s", ErrUnsupportedType, name, arr.DataType())
		}

		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", name, i, err)
		}
	}
	return times, nil
}

func parseTimestamp(value string) (time.Time, error) {
	ts, err := arrow.TimestampFromString(value, arrow.Nanosecond)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidTimestamp, value, err)
	}
	return ts.ToTime(arrow.Nanosecond), nil
}
