package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_IndependentRegistries(t *testing.T) {
	// Two collectors must not collide on registration
	first := NewCollector("bikeshare")
	second := NewCollector("bikeshare")

	first.RecordReport("time_stats")
	first.RecordReport("time_stats")
	second.RecordReport("time_stats")

	if got := testutil.ToFloat64(first.ReportsTotal.WithLabelValues("time_stats")); got != 2 {
		t.Errorf("first reports_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(second.ReportsTotal.WithLabelValues("time_stats")); got != 1 {
		t.Errorf("second reports_total = %v, want 1", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("bikeshare")
	c.RowsLoadedTotal.Add(15)
	c.RecordLoadError("parse_error")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		"bikeshare_rows_loaded_total 15",
		`bikeshare_load_errors_total{error_type="parse_error"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestTimer_ObserveDuration(t *testing.T) {
	c := NewCollector("bikeshare")
	timer := c.NewTimer(c.LoadDuration)

	if d := timer.ObserveDuration(); d < 0 {
		t.Errorf("ObserveDuration() = %v", d)
	}
	if got := testutil.CollectAndCount(c.LoadDuration); got != 1 {
		t.Errorf("CollectAndCount() = %d, want 1", got)
	}
}
