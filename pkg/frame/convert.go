package frame

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

var (
	// ErrNotNumeric is returned when a numeric conversion meets a non-number
	ErrNotNumeric = errors.New("value is not numeric")
	// ErrMissingValue is returned when a required value is null
	ErrMissingValue = errors.New("value is missing")
)

// ParseError describes a cell that could not be converted
type ParseError struct {
	Column string
	Row    int
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("column %q row %d: cannot parse %q: %v", e.Column, e.Row, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// FormatNumber renders whole numbers without a fractional part
func FormatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ToNumber replaces the named text column with a float column. Nulls and
// NaN spellings stay null; infinities and other text are rejected.
func ToNumber(df dataframe.DataFrame, name string) (dataframe.DataFrame, error) {
	column, err := Column(df, name)
	if err != nil {
		return df, err
	}
	if column.Type() == series.Float {
		return df, nil
	}

	values := make([]string, column.Len())
	for i := range values {
		e := column.Elem(i)
		if e.IsNA() {
			values[i] = NullString
			continue
		}

		raw := strings.TrimSpace(e.String())
		f, err := strconv.ParseFloat(raw, 64)
		switch {
		case err != nil, math.IsInf(f, 0):
			return df, &ParseError{Column: name, Row: i, Value: e.String(), Err: ErrNotNumeric}
		case math.IsNaN(f):
			values[i] = NullString
		default:
			values[i] = raw
		}
	}

	df = df.Mutate(series.New(values, series.Float, name))
	if df.Err != nil {
		return df, fmt.Errorf("failed to convert %s: %w", name, df.Err)
	}
	return df, nil
}

// ParseTimes parses every value of s. The first null or value parse rejects
// aborts the conversion.
func ParseTimes(s series.Series, parse func(string) (time.Time, error)) ([]time.Time, error) {
	times := make([]time.Time, s.Len())
	for i := range times {
		e := s.Elem(i)
		if e.IsNA() {
			return nil, &ParseError{Column: s.Name, Row: i, Value: NullString, Err: ErrMissingValue}
		}

		t, err := parse(e.String())
		if err != nil {
			return nil, &ParseError{Column: s.Name, Row: i, Value: e.String(), Err: err}
		}
		times[i] = t
	}
	return times, nil
}
