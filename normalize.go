package forecastplot

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"golang.org/x/exp/slices"
)

var (
	ErrInvalidVarID    = errors.New("invalid variable selector")
	ErrNoTargetColumns = errors.New("no target columns")
	ErrLengthMismatch  = errors.New("table length mismatch")
)

// Columns is an ordered list of column names. A single name is Cols("y").
type Columns []string

func Cols(names ...string) Columns {
	return Columns(names)
}

// Selector picks a target column either by position in the target list or
// by name. The zero value selects the first target.
type Selector struct {
	index  int
	name   string
	byName bool
}

func VarIndex(i int) Selector {
	return Selector{index: i}
}

func VarName(name string) Selector {
	return Selector{name: name, byName: true}
}

// ParseSelector reads a command line selector: integers select by index,
// anything else by name.
func ParseSelector(value string) Selector {
	if i, err := strconv.Atoi(value); err == nil {
		return VarIndex(i)
	}
	return VarName(value)
}

func (s Selector) String() string {
	if s.byName {
		return strconv.Quote(s.name)
	}
	return strconv.Itoa(s.index)
}

// Resolve returns the index of the selected column within targets.
func (s Selector) Resolve(targets Columns) (int, error) {
	if s.byName {
		index := slices.Index(targets, s.name)
		if index < 0 {
			return 0, fmt.Errorf("%w: %q might not be target columns %v", ErrInvalidVarID, s.name, []string(targets))
		}
		return index, nil
	}

	// Negative indices count from the end, -1 being the last target.
	index := s.index
	if index < 0 {
		index += len(targets)
	}
	if index < 0 || index >= len(targets) {
		return 0, fmt.Errorf("%w: index %d out of range for target columns %v", ErrInvalidVarID, s.index, []string(targets))
	}
	return index, nil
}

// Interval holds the upper and lower bound tables of a forecast interval.
// Both are aligned row by row with the forecast, and the bound for a target
// is read from the column at the target's position.
type Interval struct {
	Upper arrow.Record
	Lower arrow.Record
}

// Request carries everything a render call needs. Only Forecast and
// TargetCol are required.
type Request struct {
	Forecast     arrow.Record
	TimestampCol Columns
	TargetCol    Columns
	VarID        Selector

	Actual   arrow.Record
	History  arrow.Record
	Interval *Interval

	ShowInterval   bool
	IncludeHistory bool
}

// preparedSeries is the canonical form both renderers draw from.
type preparedSeries struct {
	VarIndex int
	Target   string
	TSFree   bool

	ForecastX Axis
	ForecastY []float64

	ActualY []float64

	HistoryX Axis
	HistoryY []float64
	Boundary *time.Time

	Upper []float64
	Lower []float64
}

func prepare(req Request) (*preparedSeries, error) {
	targets := req.TargetCol
	if len(targets) == 0 {
		return nil, ErrNoTargetColumns
	}

	varIndex, err := req.VarID.Resolve(targets)
	if err != nil {
		return nil, err
	}

	if req.Forecast == nil {
		return nil, fmt.Errorf("%w: forecast table is required", ErrColumnNotFound)
	}

	var timestampCol string
	if len(req.TimestampCol) > 0 {
		timestampCol = req.TimestampCol[0]
	}

	s := &preparedSeries{
		VarIndex: varIndex,
		Target:   targets[varIndex],
		TSFree:   timestampCol == "" || !HasColumn(req.Forecast, timestampCol),
	}

	forecastRows := NumRows(req.Forecast)

	if err := RequireColumns(req.Forecast, targets); err != nil {
		return nil, err
	}
	if s.ForecastY, err = Float64Column(req.Forecast, s.Target); err != nil {
		return nil, err
	}

	if req.Actual != nil {
		if err := checkRows("actual", req.Actual, forecastRows); err != nil {
			return nil, err
		}
		if err := RequireColumns(req.Actual, targets); err != nil {
			return nil, err
		}
		if s.ActualY, err = Float64Column(req.Actual, s.Target); err != nil {
			return nil, err
		}
	}

	historyRows := 0
	if req.History != nil && req.IncludeHistory {
		historyRows = NumRows(req.History)

		if err := RequireColumns(req.History, targets); err != nil {
			return nil, err
		}
		if s.HistoryY, err = Float64Column(req.History, s.Target); err != nil {
			return nil, err
		}

		if s.TSFree {
			s.HistoryX = StepAxis(0, historyRows)
		} else {
			times, err := TimeColumn(req.History, timestampCol)
			if err != nil {
				return nil, err
			}
			s.HistoryX = TimeAxis(times)
			if len(times) > 0 {
				last := times[len(times)-1]
				s.Boundary = &last
			}
		}
	}

	if s.TSFree {
		s.ForecastX = StepAxis(historyRows, historyRows+forecastRows)
	} else {
		times, err := TimeColumn(req.Forecast, timestampCol)
		if err != nil {
			return nil, err
		}
		s.ForecastX = TimeAxis(times)
	}

	if req.Interval != nil && req.ShowInterval {
		if err := checkRows("upper interval", req.Interval.Upper, forecastRows); err != nil {
			return nil, err
		}
		if err := checkRows("lower interval", req.Interval.Lower, forecastRows); err != nil {
			return nil, err
		}
		if s.Upper, err = Float64ColumnAt(req.Interval.Upper, varIndex); err != nil {
			return nil, err
		}
		if s.Lower, err = Float64ColumnAt(req.Interval.Lower, varIndex); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func checkRows(name string, table arrow.Record, want int) error {
	if table == nil {
		return fmt.Errorf("%w: %s table is nil", ErrLengthMismatch, name)
	}
	if got := NumRows(table); got != want {
		return fmt.Errorf("%w: %s has %d rows, forecast has %d", ErrLengthMismatch, name, got, want)
	}
	return nil
}
