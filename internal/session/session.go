// Package session drives one interactive exploration: filter collection,
// loading and the report menu, until the user stops.
//
// Errors from the prompter, including prompt.ErrEnd, are returned from Run
// unchanged so the caller decides how to shut down.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-gota/gota/dataframe"

	"bikeshare-explorer/internal/models"
	"bikeshare-explorer/internal/prompt"
	"bikeshare-explorer/internal/services"
	"bikeshare-explorer/pkg/logging"
	"bikeshare-explorer/pkg/metrics"
)

// State is a step of the session state machine
type State int

const (
	CollectingFilters State = iota
	MenuLoop
	Done
)

// String returns string representation of the state
func (s State) String() string {
	switch s {
	case CollectingFilters:
		return "collecting_filters"
	case MenuLoop:
		return "menu_loop"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Menu options
const (
	OptionTimeStats    = "ts"
	OptionStationStats = "ss"
	OptionTripDuration = "td"
	OptionUserStats    = "us"
	OptionRawData      = "rd"
	OptionRestart      = "r"
)

var menuOptions = []string{
	OptionTimeStats,
	OptionStationStats,
	OptionTripDuration,
	OptionUserStats,
	OptionRawData,
	OptionRestart,
}

const menuPrompt = "\nSelect option:\n [ts] Time Stats\n [ss] Station Stats\n [td] Trip Duration\n [us] User Stats\n [rd] Raw Data\n [r] Restart\n>"

const restartPrompt = "\nRestart? [y] Yes, [n] No\n>"

// NoTripsMessage is shown instead of a report when nothing matched
const NoTripsMessage = "No trips match the selected filters."

// Loader builds the filtered trip table for a selection
type Loader interface {
	LoadData(ctx context.Context, selection models.Selection) (dataframe.DataFrame, error)
}

// Session is one interactive exploration
type Session struct {
	prompter *prompt.Prompter
	loader   Loader
	stats    *services.StatisticsService
	screen   *Screen
	out      io.Writer
	cities   []string
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// New creates a new session offering cities, in that order, at the city
// prompt
func New(prompter *prompt.Prompter, loader Loader, stats *services.StatisticsService, screen *Screen, out io.Writer, cities []string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Session {
	return &Session{
		prompter: prompter,
		loader:   loader,
		stats:    stats,
		screen:   screen,
		out:      out,
		cities:   cities,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// Run drives the session until the user declines to restart. It returns
// nil on a normal finish, prompt.ErrEnd or prompt.ErrInputClosed when the
// user leaves early, and any load error.
func (s *Session) Run(ctx context.Context) error {
	state := CollectingFilters
	var selection models.Selection
	var table dataframe.DataFrame

	for {
		s.logger.Debug(ctx, "[SESSION_STATE] Entering state", logging.Fields{
			"state": state.String(),
		})

		switch state {
		case CollectingFilters:
			s.screen.Clear()

			var err error
			selection, err = s.CollectFilters(ctx)
			if err != nil {
				return err
			}

			table, err = s.loader.LoadData(ctx, selection)
			if err != nil {
				return fmt.Errorf("failed to load trip data: %w", err)
			}
			s.metrics.SessionsTotal.Inc()
			state = MenuLoop

		case MenuLoop:
			if err := s.menu(ctx, selection, table); err != nil {
				return err
			}

			again, err := s.prompter.Confirm(restartPrompt)
			if err != nil {
				return err
			}
			if again {
				state = CollectingFilters
			} else {
				state = Done
			}

		case Done:
			s.logger.Info(ctx, "[SESSION_DONE] Session finished", logging.Fields{})
			return nil
		}
	}
}

// menu shows reports until the user picks restart
func (s *Session) menu(ctx context.Context, selection models.Selection, table dataframe.DataFrame) error {
	for {
		choices, err := s.prompter.GetChoice(menuPrompt, menuOptions)
		if err != nil {
			return err
		}
		s.screen.Clear()

		// several options at once pick nothing; the menu is shown again
		if len(choices) != 1 {
			continue
		}

		var reportErr error
		switch choices[0] {
		case OptionTimeStats:
			reportErr = s.showTimeStats(ctx, table)
		case OptionStationStats:
			reportErr = s.showStationStats(ctx, table)
		case OptionTripDuration:
			reportErr = s.showDurationStats(ctx, table)
		case OptionUserStats:
			reportErr = s.showUserStats(ctx, table, selection.Cities)
		case OptionRawData:
			reportErr = s.showRawData(ctx, table)
		case OptionRestart:
			return nil
		}

		if errors.Is(reportErr, services.ErrNoTrips) {
			fmt.Fprintf(s.out, "\n%s\n", NoTripsMessage)
			continue
		}
		if reportErr != nil {
			return reportErr
		}
	}
}
