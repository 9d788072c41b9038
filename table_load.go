package forecastplot

import (
	"bytes"
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"golang.org/x/exp/slices"
)

var ErrEmptyTable = errors.New("table has no rows")

var nullValues = []string{"", "NA", "N/A", "null", "NULL"}

// LoadTable reads a table from a file, picking the reader from the extension:
// .xlsx goes through excelize, everything else is read as CSV.
func LoadTable(path string) (arrow.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	logger := logrus.WithFields(logrus.Fields{
		"tag":  "LoadTable",
		"path": path,
	})

	var table arrow.Record
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		table, err = ReadXLSXTable(f, "")
	default:
		table, err = ReadCSVTable(f)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	logger.WithFields(logrus.Fields{
		"rows":    table.NumRows(),
		"columns": ColumnNames(table),
	}).Debug("loaded table")
	return table, nil
}

// ReadCSVTable reads a CSV stream with a header row into a single record.
// Column types are decided over the whole column the same way as for sheets:
// a column is float64 when every non-null value parses as a number, otherwise
// it is kept as strings. Timestamp columns stay strings and are parsed by
// TimeColumn.
func ReadCSVTable(input io.Reader) (arrow.Record, error) {
	data, err := io.ReadAll(input)
	if err != nil {
		return nil, err
	}

	rows, err := stdcsv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, ErrEmptyTable
	}

	schema := arrow.NewSchema(inferFields(rows[0], rows[1:]), nil)
	reader := csv.NewReader(bytes.NewReader(data), schema,
		csv.WithHeader(true),
		csv.WithChunk(len(rows)-1),
		csv.WithNullReader(true, nullValues...),
	)
	defer reader.Release()

	if !reader.Next() {
		if err := reader.Err(); err != nil {
			return nil, err
		}
		return nil, ErrEmptyTable
	}

	table := reader.Record()
	table.Retain()
	return table, nil
}

// ReadXLSXTable reads one sheet of a workbook. The first row holds the
// column names. A column becomes float64 when every non-empty cell parses as
// a number, otherwise it is kept as strings. An empty sheet name selects the
// first sheet.
func ReadXLSXTable(input io.Reader, sheet string) (arrow.Record, error) {
	f, err := excelize.OpenReader(input)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyTable
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, ErrEmptyTable
	}

	return cellsToRecord(rows[0], rows[1:])
}

func cell(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// inferFields types every column over all of its rows: float64 when each
// non-null cell is a number, string otherwise.
func inferFields(header []string, rows [][]string) []arrow.Field {
	fields := make([]arrow.Field, len(header))
	for col, name := range header {
		fields[col] = arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true}

		numeric := true
		for _, row := range rows {
			value := cell(row, col)
			if isNull(value) {
				continue
			}
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				numeric = false
				break
			}
		}
		if numeric {
			fields[col].Type = arrow.PrimitiveTypes.Float64
		}
	}
	return fields
}

func cellsToRecord(header []string, rows [][]string) (arrow.Record, error) {
	fields := inferFields(header, rows)

	builder := array.NewRecordBuilder(memory.DefaultAllocator, arrow.NewSchema(fields, nil))
	defer builder.Release()

	for col, field := range fields {
		switch b := builder.Field(col).(type) {
		case *array.Float64Builder:
			for _, row := range rows {
				value := cell(row, col)
				if isNull(value) {
					b.AppendNull()
					continue
				}
				v, _ := strconv.ParseFloat(value, 64)
				b.Append(v)
			}
		case *array.StringBuilder:
			for _, row := range rows {
				b.Append(cell(row, col))
			}
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, field.Type)
		}
	}

	return builder.NewRecord(), nil
}

func isNull(value string) bool {
	return slices.Contains(nullValues, value)
}
