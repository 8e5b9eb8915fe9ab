package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-gota/gota/dataframe"

	"bikeshare-explorer/internal/models"
	"bikeshare-explorer/pkg/database"
	"bikeshare-explorer/pkg/frame"
	"bikeshare-explorer/pkg/logging"
	"bikeshare-explorer/pkg/metrics"
)

// TripRepository provides data access for trips stored in SQL
type TripRepository interface {
	TripSource

	// Write operations used by the ingester
	ReplaceCity(ctx context.Context, city string, load func(insert InsertFunc) error) (int64, error)

	// Read operations
	CountTrips(ctx context.Context, city string) (int, error)
	HealthCheck(ctx context.Context) error
}

// InsertFunc stores one batch of trips inside a ReplaceCity transaction
type InsertFunc func(trips []*models.Trip) error

// tripRepository implements TripRepository
type tripRepository struct {
	db      *database.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewTripRepository creates a new trip repository
func NewTripRepository(db *database.DB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) TripRepository {
	return &tripRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

const insertTripQuery = `
	INSERT INTO trips (
		city, source_row, start_time, end_time,
		start_station, end_station, trip_duration,
		user_type, gender, birth_year
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// ReplaceCity deletes the stored trips of city and inserts the batches load
// hands to its insert function, all in one transaction. If load or any insert
// fails nothing is changed. It returns the number of trips deleted.
func (r *tripRepository) ReplaceCity(ctx context.Context, city string, load func(insert InsertFunc) error) (int64, error) {
	timer := time.Now()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM trips WHERE city = ?`), city)
	if err != nil {
		return 0, fmt.Errorf("failed to delete trips: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted trips: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, r.db.Rebind(insertTripQuery))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	insert := func(trips []*models.Trip) error {
		batchStart := time.Now()
		for _, trip := range trips {
			_, err := stmt.ExecContext(ctx,
				trip.City,
				trip.SourceRow,
				trip.StartTime,
				trip.EndTime,
				trip.StartStation,
				trip.EndStation,
				trip.TripDuration,
				trip.UserType,
				trip.Gender,
				trip.BirthYear,
			)
			if err != nil {
				return fmt.Errorf("failed to insert trip row %d: %w", trip.SourceRow, err)
			}
		}

		inserted += len(trips)
		r.metrics.IngestionBatchSize.Observe(float64(len(trips)))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert completed", logging.Fields{
			"city":        city,
			"count":       len(trips),
			"duration_ms": time.Since(batchStart).Milliseconds(),
		})
		return nil
	}

	if err := load(insert); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.IngestionRecordsTotal.Add(float64(inserted))
	r.logger.Debug(ctx, "[REPO_REPLACE_CITY] City trips replaced", logging.Fields{
		"city":        city,
		"deleted":     deleted,
		"inserted":    inserted,
		"duration_ms": time.Since(timer).Milliseconds(),
	})

	return deleted, nil
}

// CountTrips returns the number of stored trips of a city
func (r *tripRepository) CountTrips(ctx context.Context, city string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, "count_trips", &count, `SELECT COUNT(*) FROM trips WHERE city = ?`, city)
	if err != nil {
		return 0, fmt.Errorf("failed to count trips: %w", err)
	}
	return count, nil
}

// LoadCity reads every trip of a city, in source order, as a table shaped
// like the city's CSV file and labelled by source row. Gender and Birth Year
// are only present when at least one stored trip has a value for them.
func (r *tripRepository) LoadCity(ctx context.Context, city models.City) (dataframe.DataFrame, error) {
	query := `
		SELECT city, source_row, start_time, end_time,
		       start_station, end_station, trip_duration,
		       user_type, gender, birth_year
		FROM trips
		WHERE city = ?
		ORDER BY source_row
	`

	var trips []*models.Trip
	if err := r.db.SelectContext(ctx, "load_city", &trips, query, city.Name); err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to load trips: %w", err)
	}

	if len(trips) == 0 {
		return dataframe.DataFrame{}, &NotFoundError{
			Resource: "city trips",
			ID:       city.Name,
		}
	}

	return tripsToTable(trips)
}

func tripsToTable(trips []*models.Trip) (dataframe.DataFrame, error) {
	hasGender, hasBirthYear := false, false
	for _, t := range trips {
		hasGender = hasGender || t.Gender != nil
		hasBirthYear = hasBirthYear || t.BirthYear != nil
	}

	names := []string{
		models.ColumnStartTime, models.ColumnEndTime, models.ColumnTripDuration,
		models.ColumnStartStation, models.ColumnEndStation, models.ColumnUserType,
	}
	if hasGender {
		names = append(names, models.ColumnGender)
	}
	if hasBirthYear {
		names = append(names, models.ColumnBirthYear)
	}

	rows := make([][]string, len(trips))
	index := make([]int, len(trips))
	for i, t := range trips {
		row := []string{
			t.StartTime,
			textCell(t.EndTime),
			numberCell(t.TripDuration),
			textCell(t.StartStation),
			textCell(t.EndStation),
			textCell(t.UserType),
		}
		if hasGender {
			row = append(row, textCell(t.Gender))
		}
		if hasBirthYear {
			row = append(row, numberCell(t.BirthYear))
		}
		rows[i] = row
		index[i] = t.SourceRow
	}

	return frame.FromRecords(names, rows, index)
}

func textCell(v *string) string {
	if v == nil {
		return frame.NullString
	}
	return *v
}

func numberCell(v *float64) string {
	if v == nil {
		return frame.NullString
	}
	return frame.FormatNumber(*v)
}

// HealthCheck performs a repository health check
func (r *tripRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
