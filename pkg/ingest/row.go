package ingest

import (
	"errors"
	"fmt"
)

// Cell is one raw (year, value) pair of a row.
type Cell struct {
	Year  string
	Value string
}

// Row is one source record before validation. Wide rows carry one cell per
// year column; long rows carry exactly one cell.
type Row struct {
	Line int

	CountryCode   string
	CountryName   string
	IndicatorCode string
	IndicatorName string
	Units         string
	Dataflow      string

	Cells []Cell
	Long  bool
}

// RowReader yields rows until it returns io.EOF.
//
// A *RowError is not fatal: the pipeline counts it as a validation error and
// keeps reading. Any other error aborts the run.
type RowReader interface {
	Next() (Row, error)
}

// FailureReporter is implemented by readers that drop whole units of input,
// such as API indicators whose requests kept failing.
type FailureReporter interface {
	FailedIndicators() []string
}

// ErrMalformedRow marks a record the reader could not decode.
var ErrMalformedRow = errors.New("malformed row")

// RowError is a non-fatal, per-record decoding failure.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
