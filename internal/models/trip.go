package models

import (
	"math"
	"strconv"
	"strings"
	"time"

	"bikeshare-explorer/pkg/frame"
)

// Source column names shared by the CSV files and the trips table
const (
	ColumnStartTime    = "Start Time"
	ColumnEndTime      = "End Time"
	ColumnStartStation = "Start Station"
	ColumnEndStation   = "End Station"
	ColumnTripDuration = "Trip Duration"
	ColumnUserType     = "User Type"
	ColumnGender       = "Gender"
	ColumnBirthYear    = "Birth Year"
)

// Columns derived from Start Time at load time
const (
	ColumnMonth     = "Month"
	ColumnWeekday   = "Weekday"
	ColumnStartHour = "Start Hour"
)

// startTimeLayouts lists the accepted Start Time formats, most common first
var startTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
}

// City maps a selectable city name to its source file
type City struct {
	Name string `json:"name" db:"city"`
	File string `json:"file"`
}

// Trip represents one ride as stored in the trips table
// Nullable columns are pointers so missing CSV cells survive the round trip
type Trip struct {
	City         string   `json:"city" db:"city"`
	SourceRow    int      `json:"source_row" db:"source_row"`
	StartTime    string   `json:"start_time" db:"start_time"`
	EndTime      *string  `json:"end_time,omitempty" db:"end_time"`
	StartStation *string  `json:"start_station,omitempty" db:"start_station"`
	EndStation   *string  `json:"end_station,omitempty" db:"end_station"`
	TripDuration *float64 `json:"trip_duration,omitempty" db:"trip_duration"`
	UserType     *string  `json:"user_type,omitempty" db:"user_type"`
	Gender       *string  `json:"gender,omitempty" db:"gender"`
	BirthYear    *float64 `json:"birth_year,omitempty" db:"birth_year"`
}

// RawTripRecord is one CSV record keyed by header name
// Used during ingestion
type RawTripRecord map[string]string

// ToTrip converts a raw record into a Trip.
// Start Time must parse; numeric columns must be numbers when present.
func (r RawTripRecord) ToTrip(city string, row int) (*Trip, error) {
	startTime := strings.TrimSpace(r[ColumnStartTime])
	if _, err := ParseStartTime(startTime); err != nil {
		return nil, err
	}

	duration, err := r.number(ColumnTripDuration)
	if err != nil {
		return nil, err
	}

	birthYear, err := r.number(ColumnBirthYear)
	if err != nil {
		return nil, err
	}

	return &Trip{
		City:         city,
		SourceRow:    row,
		StartTime:    startTime,
		EndTime:      r.text(ColumnEndTime),
		StartStation: r.text(ColumnStartStation),
		EndStation:   r.text(ColumnEndStation),
		TripDuration: duration,
		UserType:     r.text(ColumnUserType),
		Gender:       r.text(ColumnGender),
		BirthYear:    birthYear,
	}, nil
}

func (r RawTripRecord) text(column string) *string {
	v, ok := r[column]
	if !ok || isNull(v) {
		return nil
	}
	return &v
}

// number reads a numeric cell. NaN is stored as null, infinities are rejected.
func (r RawTripRecord) number(column string) (*float64, error) {
	v, ok := r[column]
	if !ok || isNull(v) {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err == nil && math.IsNaN(f) {
		return nil, nil
	}
	if err != nil || math.IsInf(f, 0) {
		return nil, &ValidationError{
			Field:   column,
			Value:   v,
			Message: "invalid number",
		}
	}
	return &f, nil
}

func isNull(v string) bool {
	for _, null := range frame.NullValues {
		if v == null {
			return true
		}
	}
	return false
}

// ParseStartTime parses a trip timestamp
func ParseStartTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ValidationError{
		Field:   ColumnStartTime,
		Value:   value,
		Message: "invalid timestamp, expected YYYY-MM-DD HH:MM:SS",
	}
}

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return e.Field + ": " + e.Message
	}
	return e.Field + ": " + e.Message + ` "` + e.Value + `"`
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
