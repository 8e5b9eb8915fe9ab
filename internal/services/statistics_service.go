package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"bikeshare-explorer/internal/models"
	"bikeshare-explorer/pkg/frame"
	"bikeshare-explorer/pkg/logging"
	"bikeshare-explorer/pkg/metrics"
)

// ErrNoTrips is returned when a report is requested on an empty table
var ErrNoTrips = errors.New("no trips match the selected filters")

// StatisticsService computes the trip reports over a filtered table.
// The table is only read.
type StatisticsService struct {
	logger  *logging.ContextLogger
	metrics *metrics.Collector
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *StatisticsService {
	return &StatisticsService{
		logger:  logger.WithFields(logging.Fields{"component": "statistics"}),
		metrics: metricsCollector,
	}
}

// TimeStats holds the most frequent times of travel
type TimeStats struct {
	Month   string
	Weekday string
	Hour    int
}

// StationStats holds the most popular stations and trip
type StationStats struct {
	StartStation string
	EndStation   string
	TripStart    string
	TripEnd      string
	TripCount    int
}

// Breakdown is a whole number of seconds split into days, hours, minutes
// and seconds
type Breakdown struct {
	Days    int64
	Hours   int64
	Minutes int64
	Seconds int64
}

// DecomposeSeconds splits total by the 86400/3600/60 cascade
func DecomposeSeconds(total int64) Breakdown {
	return Breakdown{
		Days:    total / 86400,
		Hours:   total % 86400 / 3600,
		Minutes: total % 3600 / 60,
		Seconds: total % 60,
	}
}

// TotalSeconds reassembles the breakdown
func (b Breakdown) TotalSeconds() int64 {
	return b.Days*86400 + b.Hours*3600 + b.Minutes*60 + b.Seconds
}

// DurationStats holds the total and mean trip duration in seconds
type DurationStats struct {
	Total     float64
	Mean      float64
	TotalTime Breakdown
	// the mean is only split into minutes and seconds
	MeanMinutes int64
	MeanSeconds int64
}

// UserStats holds the user type, gender and birth year breakdowns.
// HasGender and HasBirthYear are false when the table lacks the column.
type UserStats struct {
	UserTypes           []frame.ValueCount
	HasGender           bool
	Genders             []frame.ValueCount
	HasBirthYear        bool
	EarliestBirthYear   int
	MostRecentBirthYear int
	MostCommonBirthYear int
}

// TimeStats reports the modes of Month, Weekday and Start Hour
func (s *StatisticsService) TimeStats(ctx context.Context, table dataframe.DataFrame) (*TimeStats, error) {
	if err := s.begin(ctx, table, "time_stats"); err != nil {
		return nil, err
	}

	month, err := modeNumber(table, models.ColumnMonth)
	if err != nil {
		return nil, err
	}
	monthName, ok := models.MonthName(int(month))
	if !ok {
		return nil, fmt.Errorf("month %d outside the supported range", int(month))
	}

	weekday, err := modeText(table, models.ColumnWeekday)
	if err != nil {
		return nil, err
	}

	hour, err := modeNumber(table, models.ColumnStartHour)
	if err != nil {
		return nil, err
	}

	return &TimeStats{
		Month:   monthName,
		Weekday: weekday,
		Hour:    int(hour),
	}, nil
}

// StationStats reports the most used start and end stations and the most
// frequent start and end pair
func (s *StatisticsService) StationStats(ctx context.Context, table dataframe.DataFrame) (*StationStats, error) {
	if err := s.begin(ctx, table, "station_stats"); err != nil {
		return nil, err
	}

	start, err := modeText(table, models.ColumnStartStation)
	if err != nil {
		return nil, err
	}
	end, err := modeText(table, models.ColumnEndStation)
	if err != nil {
		return nil, err
	}

	stats := &StationStats{
		StartStation: start,
		EndStation:   end,
		TripStart:    frame.NullString,
		TripEnd:      frame.NullString,
	}

	groups, err := frame.GroupSizes(table, models.ColumnStartStation, models.ColumnEndStation)
	if err != nil {
		return nil, err
	}
	if len(groups) > 0 {
		stats.TripStart = groups[0].Values[0]
		stats.TripEnd = groups[0].Values[1]
		stats.TripCount = groups[0].Count
	}

	return stats, nil
}

// DurationStats reports the sum and mean of Trip Duration. Both are
// truncated to whole seconds before decomposition.
func (s *StatisticsService) DurationStats(ctx context.Context, table dataframe.DataFrame) (*DurationStats, error) {
	if err := s.begin(ctx, table, "trip_duration"); err != nil {
		return nil, err
	}

	column, err := frame.Column(table, models.ColumnTripDuration)
	if err != nil {
		return nil, err
	}
	if column.Type() != series.Float {
		return nil, fmt.Errorf("column %q is %s, expected float", models.ColumnTripDuration, column.Type())
	}

	var total, mean float64
	if durations := frame.NonNull(column); durations.Len() > 0 {
		total = durations.Sum()
		mean = durations.Mean()
	}
	meanSeconds := int64(math.Trunc(mean))

	return &DurationStats{
		Total:       total,
		Mean:        mean,
		TotalTime:   DecomposeSeconds(int64(math.Trunc(total))),
		MeanMinutes: meanSeconds / 60,
		MeanSeconds: meanSeconds % 60,
	}, nil
}

// UserStats reports user type and gender counts and birth year extremes.
// Gender and Birth Year are optional per city.
func (s *StatisticsService) UserStats(ctx context.Context, table dataframe.DataFrame) (*UserStats, error) {
	if err := s.begin(ctx, table, "user_stats"); err != nil {
		return nil, err
	}

	userTypes, err := frame.Column(table, models.ColumnUserType)
	if err != nil {
		return nil, err
	}
	stats := &UserStats{UserTypes: frame.ValueCounts(userTypes)}

	if gender, err := frame.Column(table, models.ColumnGender); err == nil {
		stats.HasGender = true
		stats.Genders = frame.ValueCounts(gender)
	}

	// a column holding only nulls reads like a missing one
	if column, err := frame.Column(table, models.ColumnBirthYear); err == nil {
		if years := frame.NonNull(column); years.Len() > 0 {
			row, _ := frame.ModeIndex(years)
			stats.HasBirthYear = true
			stats.EarliestBirthYear = int(years.Min())
			stats.MostRecentBirthYear = int(years.Max())
			stats.MostCommonBirthYear = int(years.Elem(row).Float())
		}
	}

	return stats, nil
}

func (s *StatisticsService) begin(ctx context.Context, table dataframe.DataFrame, report string) error {
	if table.Nrow() == 0 {
		s.logger.Warn(ctx, "[STATS_EMPTY] No trips to report on", logging.Fields{
			"report": report,
		})
		return ErrNoTrips
	}

	s.metrics.RecordReport(report)
	s.logger.Debug(ctx, "[STATS_CALC] Computing report", logging.Fields{
		"report": report,
		"rows":   table.Nrow(),
	})
	return nil
}

func modeText(table dataframe.DataFrame, name string) (string, error) {
	column, err := frame.Column(table, name)
	if err != nil {
		return "", err
	}
	row, ok := frame.ModeIndex(column)
	if !ok {
		return frame.NullString, nil
	}
	return frame.Format(column)[row], nil
}

func modeNumber(table dataframe.DataFrame, name string) (float64, error) {
	column, err := frame.Column(table, name)
	if err != nil {
		return 0, err
	}
	if t := column.Type(); t != series.Int && t != series.Float {
		return 0, fmt.Errorf("column %q is %s, expected a number", name, t)
	}
	row, ok := frame.ModeIndex(column)
	if !ok {
		return 0, fmt.Errorf("column %q has no values", name)
	}
	return column.Elem(row).Float(), nil
}
