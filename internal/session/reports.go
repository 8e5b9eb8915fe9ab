package session

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/go-gota/gota/dataframe"

	"bikeshare-explorer/internal/models"
	"bikeshare-explorer/pkg/frame"
)

// pageSize is the number of rows shown per raw data page
const pageSize = 5

const showMorePrompt = "\nShow more data? [y] Yes, [n] No\n>"

func (s *Session) showTimeStats(ctx context.Context, table dataframe.DataFrame) error {
	stats, err := s.stats.TimeStats(ctx, table)
	if err != nil {
		return err
	}

	fmt.Fprint(s.out, "\nMost Frequent Times of Travel:\n\n")
	fmt.Fprintf(s.out, "Month: %s\n", stats.Month)
	fmt.Fprintf(s.out, "Day: %s\n", stats.Weekday)
	fmt.Fprintf(s.out, "Hour: %d\n", stats.Hour)
	return nil
}

func (s *Session) showStationStats(ctx context.Context, table dataframe.DataFrame) error {
	stats, err := s.stats.StationStats(ctx, table)
	if err != nil {
		return err
	}

	fmt.Fprint(s.out, "\nMost Popular Stations and Trip:\n\n")
	fmt.Fprintf(s.out, "Start Station: %s\n", stats.StartStation)
	fmt.Fprintf(s.out, "End Station: %s\n", stats.EndStation)
	fmt.Fprintf(s.out, "Trip: %s to %s\n", stats.TripStart, stats.TripEnd)
	return nil
}

func (s *Session) showDurationStats(ctx context.Context, table dataframe.DataFrame) error {
	stats, err := s.stats.DurationStats(ctx, table)
	if err != nil {
		return err
	}

	total := stats.TotalTime
	fmt.Fprint(s.out, "\nTrip Duration:\n\n")
	fmt.Fprintf(s.out, "Total Duration: %dd %dh %dm %ds\n", total.Days, total.Hours, total.Minutes, total.Seconds)
	fmt.Fprintf(s.out, "Average Duration: %dm %ds\n", stats.MeanMinutes, stats.MeanSeconds)
	return nil
}

func (s *Session) showUserStats(ctx context.Context, table dataframe.DataFrame, cities []string) error {
	stats, err := s.stats.UserStats(ctx, table)
	if err != nil {
		return err
	}
	city := models.TitleList(cities)

	fmt.Fprint(s.out, "\nUser Stats:\n\n")
	fmt.Fprintln(s.out, "User Types:")
	writeCounts(s.out, stats.UserTypes)

	if stats.HasGender {
		fmt.Fprint(s.out, "\nGender Distribution:\n")
		writeCounts(s.out, stats.Genders)
	} else {
		fmt.Fprintf(s.out, "\nNo gender data available for %s.\n", city)
	}

	if stats.HasBirthYear {
		fmt.Fprintf(s.out, "\nEarliest Birth Year: %d\n", stats.EarliestBirthYear)
		fmt.Fprintf(s.out, "Most Recent Birth Year: %d\n", stats.MostRecentBirthYear)
		fmt.Fprintf(s.out, "Most Common Birth Year: %d\n", stats.MostCommonBirthYear)
	} else {
		fmt.Fprintf(s.out, "\nNo birth year data available for %s.\n", city)
	}
	return nil
}

// showRawData pages through the table five rows at a time until the user
// declines. Pages past the end, and every page of an empty table, are empty.
func (s *Session) showRawData(ctx context.Context, table dataframe.DataFrame) error {
	s.metrics.RecordReport("raw_data")

	fmt.Fprint(s.out, "\nDisplaying raw data:\n\n")

	for cursor := 0; ; cursor += pageSize {
		writePage(s.out, frame.Columns(table), frame.Slice(table, cursor, cursor+pageSize))

		more, err := s.prompter.Confirm(showMorePrompt)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

func writeCounts(out io.Writer, counts []frame.ValueCount) {
	w := tabwriter.NewWriter(out, 0, 0, 4, ' ', 0)
	for _, c := range counts {
		fmt.Fprintf(w, " %s\t%s\n", c.Value, humanize.Comma(int64(c.Count)))
	}
	w.Flush()
}

// writePage prints rows labelled with their row in the source data
func writePage(out io.Writer, columns []string, page dataframe.DataFrame) {
	if page.Nrow() == 0 {
		fmt.Fprintln(out, "No more rows to display.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "\t%s\n", strings.Join(columns, "\t"))
	index := frame.Index(page)
	for i, record := range frame.Records(page) {
		fmt.Fprintf(w, "%s\t%s\n", strconv.Itoa(index[i]), strings.Join(record, "\t"))
	}
	w.Flush()
}
