package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"bikeshare-explorer/internal/models"
	"bikeshare-explorer/internal/repository"
	"bikeshare-explorer/pkg/frame"
	"bikeshare-explorer/pkg/logging"
	"bikeshare-explorer/pkg/metrics"
)

// LoaderService builds the filtered trip table for a selection
type LoaderService struct {
	source  repository.TripSource
	cities  map[string]models.City
	out     io.Writer
	logger  *logging.ContextLogger
	metrics *metrics.Collector
}

// NewLoaderService creates a new loader service. Progress lines are printed
// to out.
func NewLoaderService(source repository.TripSource, cities []models.City, out io.Writer, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *LoaderService {
	byName := make(map[string]models.City, len(cities))
	for _, c := range cities {
		byName[c.Name] = c
	}

	return &LoaderService{
		source:  source,
		cities:  byName,
		out:     out,
		logger:  logger.WithFields(logging.Fields{"component": "loader"}),
		metrics: metricsCollector,
	}
}

// LoadData loads every selected city, derives the calendar columns and keeps
// the rows of the selected months and weekdays
func (s *LoaderService) LoadData(ctx context.Context, selection models.Selection) (dataframe.DataFrame, error) {
	startTime := time.Now()
	timer := s.metrics.NewTimer(s.metrics.LoadDuration)

	fmt.Fprintln(s.out, "\nLoading data for your selected filters...")

	s.logger.Info(ctx, "[LOAD_START] Loading trip data", logging.Fields{
		"cities":   selection.Cities,
		"months":   selection.Months,
		"weekdays": selection.Weekdays,
	})

	raw, err := s.loadCities(ctx, selection.Cities)
	if err != nil {
		s.recordError(ctx, err)
		return dataframe.DataFrame{}, err
	}
	s.metrics.RowsLoadedTotal.Add(float64(raw.Nrow()))

	prepared, err := PrepareTrips(raw)
	if err != nil {
		s.recordError(ctx, err)
		return dataframe.DataFrame{}, err
	}

	filtered, err := FilterTrips(prepared, selection.Months, selection.Weekdays)
	if err != nil {
		s.recordError(ctx, err)
		return dataframe.DataFrame{}, err
	}
	s.metrics.RowsKeptTotal.Add(float64(filtered.Nrow()))

	duration := timer.ObserveDuration()

	fmt.Fprintf(s.out, "\nData loaded in %.2f seconds.\n", time.Since(startTime).Seconds())
	fmt.Fprintf(s.out, "%s of %s trips match.\n", humanize.Comma(int64(filtered.Nrow())), humanize.Comma(int64(raw.Nrow())))

	s.logger.Info(ctx, "[LOAD_COMPLETE] Trip data loaded", logging.Fields{
		"rows_loaded": raw.Nrow(),
		"rows_kept":   filtered.Nrow(),
		"duration_ms": duration.Milliseconds(),
	})

	return filtered, nil
}

func (s *LoaderService) loadCities(ctx context.Context, names []string) (dataframe.DataFrame, error) {
	if len(names) == 0 {
		return dataframe.DataFrame{}, errors.New("no city selected")
	}

	tables := make([]dataframe.DataFrame, 0, len(names))
	for _, name := range names {
		city, ok := s.cities[name]
		if !ok {
			return dataframe.DataFrame{}, fmt.Errorf("unknown city %q", name)
		}

		table, err := s.source.LoadCity(ctx, city)
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("failed to load %s: %w", name, err)
		}

		s.logger.Debug(ctx, "[LOAD_CITY] City table loaded", logging.Fields{
			"city": name,
			"rows": table.Nrow(),
		})
		tables = append(tables, table)
	}

	if len(tables) == 1 {
		return tables[0], nil
	}

	combined, err := frame.Concat(tables...)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to combine cities: %w", err)
	}
	return combined, nil
}

func (s *LoaderService) recordError(ctx context.Context, err error) {
	errorType := "source_error"

	var notFound *repository.NotFoundError
	var parseErr *frame.ParseError
	switch {
	case errors.As(err, &notFound):
		errorType = "not_found"
	case errors.As(err, &parseErr):
		errorType = "parse_error"
	}

	s.metrics.RecordLoadError(errorType)
	s.logger.Error(ctx, "[LOAD_ERROR] Failed to load trip data", logging.Fields{
		"error_type": errorType,
	}, err)
}

// PrepareTrips parses Start Time, converts the numeric columns and adds the
// Month, Weekday and Start Hour columns. A missing or malformed Start Time
// fails the whole table.
func PrepareTrips(table dataframe.DataFrame) (dataframe.DataFrame, error) {
	column, err := frame.Column(table, models.ColumnStartTime)
	if err != nil {
		return table, err
	}

	times, err := frame.ParseTimes(column, models.ParseStartTime)
	if err != nil {
		return table, fmt.Errorf("failed to parse start times: %w", err)
	}

	for _, name := range []string{models.ColumnTripDuration, models.ColumnBirthYear} {
		if !frame.HasColumn(table, name) {
			continue
		}
		if table, err = frame.ToNumber(table, name); err != nil {
			return table, fmt.Errorf("failed to convert %s: %w", name, err)
		}
	}

	n := len(times)
	starts := make([]string, n)
	months := make([]int, n)
	weekdays := make([]string, n)
	hours := make([]int, n)
	for i, t := range times {
		starts[i] = t.Format(frame.TimeLayout)
		months[i] = int(t.Month())
		weekdays[i] = t.Weekday().String()
		hours[i] = t.Hour()
	}

	for _, derived := range []series.Series{
		series.New(starts, series.String, models.ColumnStartTime),
		series.New(months, series.Int, models.ColumnMonth),
		series.New(weekdays, series.String, models.ColumnWeekday),
		series.New(hours, series.Int, models.ColumnStartHour),
	} {
		table = table.Mutate(derived)
	}
	if table.Err != nil {
		return table, fmt.Errorf("failed to derive calendar columns: %w", table.Err)
	}

	return table, nil
}

// FilterTrips keeps the rows whose Month and Weekday are selected. Months are
// names from models.Months, weekdays names from models.Weekdays. Filtering a
// filtered table again returns the same rows.
func FilterTrips(table dataframe.DataFrame, months, weekdays []string) (dataframe.DataFrame, error) {
	monthNumbers := make([]int, 0, len(months))
	for _, m := range months {
		idx, ok := models.MonthIndex(m)
		if !ok {
			return table, &models.ValidationError{Field: models.ColumnMonth, Value: m, Message: "unknown month"}
		}
		monthNumbers = append(monthNumbers, idx)
	}

	weekdayNames := make([]string, 0, len(weekdays))
	for _, d := range weekdays {
		weekdayNames = append(weekdayNames, models.TitleCase(d))
	}

	for _, name := range []string{models.ColumnMonth, models.ColumnWeekday} {
		if _, err := frame.Column(table, name); err != nil {
			return table, err
		}
	}

	filtered := table.
		Filter(dataframe.F{Colname: models.ColumnMonth, Comparator: series.In, Comparando: monthNumbers}).
		Filter(dataframe.F{Colname: models.ColumnWeekday, Comparator: series.In, Comparando: weekdayNames})
	if filtered.Err != nil {
		return table, fmt.Errorf("failed to filter trips: %w", filtered.Err)
	}
	return filtered, nil
}
