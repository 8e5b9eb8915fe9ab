package models

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Months is the month vocabulary covered by the datasets, in calendar order
var Months = []string{"january", "february", "march", "april", "may", "june"}

// Weekdays is the weekday vocabulary, Sunday first as in time.Weekday
var Weekdays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// MonthIndex maps a month name to its 1-based calendar number
func MonthIndex(name string) (int, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, m := range Months {
		if m == name {
			return i + 1, true
		}
	}
	return 0, false
}

// MonthName maps a 1-based month number back to its title-case name
func MonthName(index int) (string, bool) {
	if index < 1 || index > len(Months) {
		return "", false
	}
	return TitleCase(Months[index-1]), true
}

// TitleCase capitalizes every word: "new york city" becomes "New York City"
func TitleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// TitleList title-cases and joins a selection for display
func TitleList(values []string) string {
	titled := make([]string, len(values))
	for i, v := range values {
		titled[i] = TitleCase(v)
	}
	return strings.Join(titled, ", ")
}

// Selection holds the user's city, month and weekday choices.
// Each list is non-empty; a single answer is a list of one.
type Selection struct {
	Cities   []string
	Months   []string
	Weekdays []string
}
