package session

import (
	"context"
	"fmt"
	"strings"

	"bikeshare-explorer/internal/models"
	"bikeshare-explorer/pkg/logging"
)

const (
	monthPrompt   = "\nWhich month(s)? (From January to June)\n>"
	weekdayPrompt = "\nWhich weekday(s)?\n>"
	confirmPrompt = "\nConfirm filters:\n City(ies): %s\n Month(s): %s\n Weekday(s): %s\n [y] Yes\n [n] No\n>"
)

func (s *Session) cityPrompt() string {
	return fmt.Sprintf("\nWhich city(ies)? (e.g., %s)\n>", models.TitleList(s.cities))
}

// CollectFilters asks for cities, months and weekdays and confirms them.
// A rejected summary starts over from the city question.
func (s *Session) CollectFilters(ctx context.Context) (models.Selection, error) {
	for {
		fmt.Fprintln(s.out, "\nLet's explore some US bikeshare data!")
		fmt.Fprint(s.out, "Type 'end' anytime to exit.\n\n")

		cities, err := s.prompter.GetChoice(s.cityPrompt(), s.cities)
		if err != nil {
			return models.Selection{}, err
		}
		months, err := s.prompter.GetChoice(monthPrompt, models.Months)
		if err != nil {
			return models.Selection{}, err
		}
		weekdays, err := s.prompter.GetChoice(weekdayPrompt, models.Weekdays)
		if err != nil {
			return models.Selection{}, err
		}

		selection := models.Selection{Cities: cities, Months: months, Weekdays: weekdays}

		confirmed, err := s.prompter.Confirm(fmt.Sprintf(confirmPrompt,
			models.TitleList(cities),
			models.TitleList(months),
			models.TitleList(weekdays),
		))
		if err != nil {
			return models.Selection{}, err
		}

		if confirmed {
			s.logger.Info(ctx, "[FILTERS_CONFIRMED] Filters selected", logging.Fields{
				"cities":   strings.Join(cities, ","),
				"months":   strings.Join(months, ","),
				"weekdays": strings.Join(weekdays, ","),
			})
			return selection, nil
		}

		s.logger.Debug(ctx, "[FILTERS_REJECTED] Filters rejected, starting over", logging.Fields{})
	}
}
