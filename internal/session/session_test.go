package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"bikeshare-explorer/internal/models"
	"bikeshare-explorer/internal/prompt"
	"bikeshare-explorer/internal/services"
	"bikeshare-explorer/pkg/frame"
	"bikeshare-explorer/pkg/logging"
	"bikeshare-explorer/pkg/metrics"
)

const chicagoCSV = "Start Time,End Time,Trip Duration,Start Station,End Station,User Type,Gender,Birth Year\n" +
	"2017-01-02 08:10:00,2017-01-02 08:20:00,600,Clark St,State St,Subscriber,Male,1985\n" +
	"2017-01-09 08:40:00,2017-01-09 08:50:00,600,Clark St,State St,Subscriber,Female,1990\n" +
	"2017-01-16 17:00:00,2017-01-16 17:30:00,1800,Wood St,Clark St,Customer,Male,1985\n" +
	"2017-03-06 09:00:00,2017-03-06 09:10:00,600,Wood St,State St,Subscriber,Male,1970\n"

const washingtonCSV = "Start Time,End Time,Trip Duration,Start Station,End Station,User Type\n" +
	"2017-01-02 07:00:00,2017-01-02 07:20:00,1200,Union Station,Dupont Circle,Registered\n" +
	"2017-01-09 07:30:00,2017-01-09 07:40:00,600,Dupont Circle,Union Station,Casual\n"

// memorySource serves city tables parsed from in-memory CSV text and counts
// loads
type memorySource struct {
	data  map[string]string
	loads int
}

func (m *memorySource) LoadCity(ctx context.Context, city models.City) (dataframe.DataFrame, error) {
	m.loads++
	data, ok := m.data[city.Name]
	if !ok {
		return dataframe.DataFrame{}, errors.New("no data for " + city.Name)
	}
	return frame.ReadCSV(strings.NewReader(data))
}

type harness struct {
	session   *Session
	source    *memorySource
	out       *strings.Builder
	collector *metrics.Collector
}

func newHarness(input string) *harness {
	logger := logging.NewStructuredLogger("bikeshare-test", "test", logging.DebugLevel)
	logger.SetOutput(io.Discard)
	collector := metrics.NewCollector("bikeshare_test")
	out := &strings.Builder{}

	cities := []models.City{
		{Name: "new york city", File: "new_york_city.csv"},
		{Name: "chicago", File: "chicago.csv"},
		{Name: "washington", File: "washington.csv"},
	}
	source := &memorySource{data: map[string]string{"chicago": chicagoCSV, "washington": washingtonCSV}}

	session := New(
		prompt.NewPrompter(strings.NewReader(input), out, collector),
		services.NewLoaderService(source, cities, out, logger, collector),
		services.NewStatisticsService(logger, collector),
		NewScreen(out),
		out,
		[]string{"new york city", "chicago", "washington"},
		logger,
		collector,
	)

	return &harness{session: session, source: source, out: out, collector: collector}
}

func lines(answers ...string) string {
	return strings.Join(answers, "\n") + "\n"
}

func assertContains(t *testing.T, output string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(output, w) {
			t.Errorf("output missing %q\n--- output ---\n%s", w, output)
		}
	}
}

func TestRun_TimeAndStationStats(t *testing.T) {
	h := newHarness(lines("chicago", "january", "monday", "y", "ts", "ss", "td", "r", "n"))

	if err := h.session.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	assertContains(t, h.out.String(),
		"Which city(ies)? (e.g., New York City, Chicago, Washington)",
		"Confirm filters:\n City(ies): Chicago\n Month(s): January\n Weekday(s): Monday\n",
		"Data loaded in ",
		"Most Frequent Times of Travel:\n\nMonth: January\nDay: Monday\nHour: 8\n",
		"Most Popular Stations and Trip:\n\nStart Station: Clark St\nEnd Station: State St\nTrip: Clark St to State St\n",
		"Total Duration: 0d 0h 50m 0s\nAverage Duration: 16m 40s\n",
	)

	if got := testutil.ToFloat64(h.collector.SessionsTotal); got != 1 {
		t.Errorf("sessions_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(h.collector.ReportsTotal.WithLabelValues("time_stats")); got != 1 {
		t.Errorf("reports_total{time_stats} = %v, want 1", got)
	}
}

func TestRun_UserStatsWithoutBirthYear(t *testing.T) {
	h := newHarness(lines("washington", "january", "monday", "y", "us", "r", "n"))

	if err := h.session.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	assertContains(t, h.out.String(),
		"User Stats:\n\nUser Types:\n",
		"Registered",
		"No gender data available for Washington.",
		"No birth year data available for Washington.",
	)
}

func TestRun_UserStatsWithBirthYear(t *testing.T) {
	h := newHarness(lines("chicago", "january", "monday", "y", "us", "r", "n"))

	if err := h.session.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	assertContains(t, h.out.String(),
		"Gender Distribution:\n",
		"Earliest Birth Year: 1985\nMost Recent Birth Year: 1990\nMost Common Birth Year: 1985\n",
	)
}

func TestRun_EndStopsAnywhere(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantLoads int
	}{
		{"at city prompt", lines("END"), 0},
		{"at month prompt", lines("chicago", "end"), 0},
		{"at confirmation", lines("chicago", "january", "monday", " end "), 0},
		{"at menu", lines("chicago", "january", "monday", "y", "end"), 1},
		{"while paging", lines("chicago", "january", "monday", "y", "rd", "end"), 1},
		{"at restart", lines("chicago", "january", "monday", "y", "r", "end"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.input)

			err := h.session.Run(context.Background())
			if !errors.Is(err, prompt.ErrEnd) {
				t.Fatalf("Run() error = %v, want prompt.ErrEnd", err)
			}
			if h.source.loads != tt.wantLoads {
				t.Errorf("loads = %d, want %d", h.source.loads, tt.wantLoads)
			}
		})
	}
}

func TestRun_RejectedFiltersStartOver(t *testing.T) {
	h := newHarness(lines(
		"chicago", "january", "monday", "n",
		"washington", "january", "monday", "y",
		"r", "n",
	))

	if err := h.session.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out := h.out.String()
	if got := strings.Count(out, "Let's explore some US bikeshare data!"); got != 2 {
		t.Errorf("banner shown %d times, want 2", got)
	}
	assertContains(t, out, "City(ies): Washington")
	if h.source.loads != 1 {
		t.Errorf("loads = %d, want only the confirmed selection", h.source.loads)
	}
}

func TestRun_RestartCollectsAgain(t *testing.T) {
	h := newHarness(lines(
		"chicago", "january", "monday", "y", "r", "y",
		"chicago, washington", "january", "monday", "y", "r", "n",
	))

	if err := h.session.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	assertContains(t, h.out.String(), "City(ies): Chicago, Washington")
	if h.source.loads != 3 {
		t.Errorf("loads = %d, want 3", h.source.loads)
	}
}

func TestRun_RawDataPagesPastTheEnd(t *testing.T) {
	// washington has two January Mondays: one page of rows, then empty pages
	h := newHarness(lines("washington", "january", "monday", "y", "rd", "y", "y", "n", "r", "n"))

	if err := h.session.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out := h.out.String()
	assertContains(t, out, "Displaying raw data:\n\n", "Union Station", "Dupont Circle")
	if got := strings.Count(out, "No more rows to display."); got != 2 {
		t.Errorf("empty pages = %d, want 2", got)
	}
	if got := strings.Count(out, "Show more data? [y] Yes, [n] No"); got != 3 {
		t.Errorf("show more prompts = %d, want 3", got)
	}
}

func TestRun_RawDataShowsSourceRows(t *testing.T) {
	// the only March Monday is the fourth chicago row
	h := newHarness(lines("chicago", "march", "monday", "y", "rd", "n", "r", "n"))

	if err := h.session.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out := h.out.String()
	assertContains(t, out, "\n3  2017-03-06 09:00:00")
	if strings.Contains(out, "\n0  2017-03-06") {
		t.Error("raw rows should be labelled by source row, not by position")
	}
}

func TestRun_NoMatchingTrips(t *testing.T) {
	h := newHarness(lines("washington", "june", "sunday", "y", "ts", "rd", "n", "r", "n"))

	if err := h.session.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out := h.out.String()
	if got := strings.Count(out, NoTripsMessage); got != 1 {
		t.Errorf("no trips message shown %d times, want 1", got)
	}
	// raw data still pages over the empty table
	assertContains(t, out, "Displaying raw data:\n\n", "No more rows to display.", "Show more data? [y] Yes, [n] No")
	if got := testutil.ToFloat64(h.collector.ReportsTotal.WithLabelValues("raw_data")); got != 1 {
		t.Errorf("reports_total{raw_data} = %v, want 1", got)
	}
}

func TestRun_InvalidMenuInput(t *testing.T) {
	h := newHarness(lines("chicago", "january", "monday", "y", "stats", "ts,ss", "r", "n"))

	if err := h.session.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	assertContains(t, h.out.String(), prompt.InvalidPrompt)
	if strings.Contains(h.out.String(), "Most Frequent Times of Travel") {
		t.Error("a multi-option answer should not show a report")
	}
}

func TestRun_LoadErrorEndsSession(t *testing.T) {
	h := newHarness(lines("new york city", "january", "monday", "y"))

	err := h.session.Run(context.Background())
	if err == nil || errors.Is(err, prompt.ErrEnd) {
		t.Fatalf("Run() error = %v, want a load error", err)
	}
}

func TestRun_InputClosed(t *testing.T) {
	h := newHarness(lines("chicago", "january"))

	err := h.session.Run(context.Background())
	if !errors.Is(err, prompt.ErrInputClosed) {
		t.Errorf("Run() error = %v, want prompt.ErrInputClosed", err)
	}
}

func TestState_String(t *testing.T) {
	for state, want := range map[State]string{
		CollectingFilters: "collecting_filters",
		MenuLoop:          "menu_loop",
		Done:              "done",
		State(42):         "unknown",
	} {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}

func TestScreen_ClearSkipsNonTerminal(t *testing.T) {
	out := &strings.Builder{}
	NewScreen(out).Clear()
	if out.Len() != 0 {
		t.Errorf("Clear() wrote %q to a non-terminal", out.String())
	}
}
