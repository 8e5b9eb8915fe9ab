// Package frame adapts gota data frames to trip datasets.
//
// Files are loaded with every column as text; callers convert the columns
// they compute on. Every table carries IndexColumn, the row label a trip had
// in its source, so combined and filtered tables still show where a row came
// from. Nulls render as NullString.
package frame

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// IndexColumn holds the source row label of each row
const IndexColumn = "_index"

// NullString is how a missing value is rendered
const NullString = "NaN"

// TimeLayout is the layout used when rendering timestamps
const TimeLayout = "2006-01-02 15:04:05"

// NullValues are the cell spellings read as missing
var NullValues = []string{"", "NA", "N/A", "NaN", "nan", "-NaN", "NULL", "null", "None", "<NA>"}

var (
	// ErrNoHeader is returned for input without a header record
	ErrNoHeader = errors.New("csv input has no header")
	// ErrColumnNotFound is returned when a table lacks a requested column
	ErrColumnNotFound = errors.New("column not found")
)

// ReadCSV reads a comma separated table with a header record. Blank header
// cells are named "Unnamed: <position>" and rows are labelled from 0.
func ReadCSV(r io.Reader) (dataframe.DataFrame, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return dataframe.DataFrame{}, ErrNoHeader
	}

	return FromRecords(NormalizeHeader(records[0]), records[1:], nil)
}

// FromRecords builds a text table. index labels the rows; nil labels them
// from 0.
func FromRecords(names []string, rows [][]string, index []int) (dataframe.DataFrame, error) {
	if index == nil {
		index = rangeIndex(0, len(rows))
	}
	if len(index) != len(rows) {
		return dataframe.DataFrame{}, fmt.Errorf("%d index labels for %d rows", len(index), len(rows))
	}

	var df dataframe.DataFrame
	if len(rows) == 0 {
		// gota refuses to load a header without rows
		columns := make([]series.Series, len(names))
		for i, name := range names {
			columns[i] = series.New([]string{}, series.String, name)
		}
		df = dataframe.New(columns...)
	} else {
		df = dataframe.LoadRecords(
			append([][]string{names}, rows...),
			dataframe.HasHeader(true),
			dataframe.DetectTypes(false),
			dataframe.DefaultType(series.String),
			dataframe.NaNValues(NullValues),
		)
	}
	if df.Err != nil {
		return df, fmt.Errorf("failed to build table: %w", df.Err)
	}

	return WithIndex(df, index)
}

// NormalizeHeader strips a UTF-8 byte order mark and surrounding spaces from
// header cells and names blank cells "Unnamed: <position>"
func NormalizeHeader(header []string) []string {
	names := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		names[i] = h
	}
	return names
}

// WithIndex sets the row labels of df and moves them to the first column
func WithIndex(df dataframe.DataFrame, index []int) (dataframe.DataFrame, error) {
	df = df.Mutate(series.New(index, series.Int, IndexColumn))
	df = df.Select(append([]string{IndexColumn}, Columns(df)...))
	if df.Err != nil {
		return df, fmt.Errorf("failed to index table: %w", df.Err)
	}
	return df, nil
}

// Index returns the row labels of df
func Index(df dataframe.DataFrame) []int {
	if !HasColumn(df, IndexColumn) {
		return rangeIndex(0, df.Nrow())
	}
	labels, err := df.Col(IndexColumn).Int()
	if err != nil {
		return rangeIndex(0, df.Nrow())
	}
	return labels
}

// Columns returns the data column names in order
func Columns(df dataframe.DataFrame) []string {
	names := make([]string, 0, df.Ncol())
	for _, name := range df.Names() {
		if name != IndexColumn {
			names = append(names, name)
		}
	}
	return names
}

// HasColumn reports whether df carries the named column
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// Column returns the named column
func Column(df dataframe.DataFrame, name string) (series.Series, error) {
	if !HasColumn(df, name) {
		return series.Series{}, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return df.Col(name), nil
}

// Format renders every value of s for display
func Format(s series.Series) []string {
	values := make([]string, s.Len())
	for i := range values {
		values[i] = formatElement(s.Elem(i), s.Type())
	}
	return values
}

func formatElement(e series.Element, t series.Type) string {
	switch {
	case e.IsNA():
		return NullString
	case t == series.Float:
		return FormatNumber(e.Float())
	default:
		return e.String()
	}
}

// Records renders the data columns of every row
func Records(df dataframe.DataFrame) [][]string {
	names := Columns(df)
	columns := make([][]string, len(names))
	for j, name := range names {
		columns[j] = Format(df.Col(name))
	}

	records := make([][]string, df.Nrow())
	for i := range records {
		records[i] = make([]string, len(names))
		for j := range names {
			records[i][j] = columns[j][i]
		}
	}
	return records
}

// Slice returns rows [start, end). Bounds are clamped, so slicing past the
// end yields an empty table instead of failing.
func Slice(df dataframe.DataFrame, start, end int) dataframe.DataFrame {
	start = clamp(start, 0, df.Nrow())
	end = clamp(end, start, df.Nrow())
	return df.Subset(rangeIndex(start, end))
}

// Concat stacks tables vertically. Data columns are the union of all
// columns sorted by name; cells from tables lacking a column are null.
func Concat(tables ...dataframe.DataFrame) (dataframe.DataFrame, error) {
	if len(tables) == 0 {
		return dataframe.DataFrame{}, errors.New("no tables to combine")
	}

	combined := tables[0]
	for _, t := range tables[1:] {
		combined = combined.Concat(t)
	}
	if combined.Err != nil {
		return combined, fmt.Errorf("failed to combine tables: %w", combined.Err)
	}

	names := Columns(combined)
	sort.Strings(names)
	if HasColumn(combined, IndexColumn) {
		names = append([]string{IndexColumn}, names...)
	}

	combined = combined.Select(names)
	if combined.Err != nil {
		return combined, fmt.Errorf("failed to order columns: %w", combined.Err)
	}
	return combined, nil
}

func rangeIndex(start, end int) []int {
	rows := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		rows = append(rows, i)
	}
	return rows
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
