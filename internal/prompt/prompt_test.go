package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"bikeshare-explorer/pkg/metrics"
)

var cities = []string{"chicago", "new york city", "washington"}

func newTestPrompter(input string) (*Prompter, *strings.Builder, *metrics.Collector) {
	out := &strings.Builder{}
	collector := metrics.NewCollector("bikeshare_test")
	return NewPrompter(strings.NewReader(input), out, collector), out, collector
}

func TestGetChoice_Valid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"single", "chicago\n", []string{"chicago"}},
		{"case and whitespace", "  New York City \n", []string{"new york city"}},
		{"comma separated", "Chicago, washington\n", []string{"chicago", "washington"}},
		{"duplicates kept", "chicago,chicago\n", []string{"chicago", "chicago"}},
		{"no trailing newline", "washington", []string{"washington"}},
		{"windows line ending", "chicago\r\n", []string{"chicago"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newTestPrompter(tt.input)

			got, err := p.GetChoice("\nWhich city(ies)?\n>", cities)
			if err != nil {
				t.Fatalf("GetChoice() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("GetChoice() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGetChoice_RepromptsUntilValid(t *testing.T) {
	p, out, collector := newTestPrompter("boston\nchicago,boston\n\nchicago\n")

	got, err := p.GetChoice("\nWhich city(ies)?\n>", cities)
	if err != nil {
		t.Fatalf("GetChoice() error = %v", err)
	}
	if diff := cmp.Diff([]string{"chicago"}, got); diff != "" {
		t.Errorf("GetChoice() mismatch (-want +got):\n%s", diff)
	}

	wantOut := "\nWhich city(ies)?\n>" + strings.Repeat(InvalidPrompt, 3)
	if out.String() != wantOut {
		t.Errorf("output = %q, want %q", out.String(), wantOut)
	}
	if got := testutil.ToFloat64(collector.PromptRejectionsTotal); got != 3 {
		t.Errorf("prompt_rejections_total = %v, want 3", got)
	}
}

func TestGetChoice_End(t *testing.T) {
	for _, input := range []string{"end\n", "END\n", "  End  \n", "boston\nend\n"} {
		p, _, _ := newTestPrompter(input)

		_, err := p.GetChoice("\nWhich month(s)?\n>", []string{"january"})
		if !errors.Is(err, ErrEnd) {
			t.Errorf("GetChoice(%q) error = %v, want ErrEnd", input, err)
		}
	}
}

func TestGetChoice_EndIsNotAValue(t *testing.T) {
	// end stops the program even where it would also be a valid answer
	p, _, _ := newTestPrompter("end\n")

	_, err := p.GetChoice(">", []string{"end", "start"})
	if !errors.Is(err, ErrEnd) {
		t.Errorf("GetChoice() error = %v, want ErrEnd", err)
	}
}

func TestGetChoice_InputClosed(t *testing.T) {
	for _, input := range []string{"", "boston\n"} {
		p, _, _ := newTestPrompter(input)

		_, err := p.GetChoice(">", cities)
		if !errors.Is(err, ErrInputClosed) {
			t.Errorf("GetChoice(%q) error = %v, want ErrInputClosed", input, err)
		}
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{" Y \n", true},
		{"n\n", false},
		{"y,y\n", false},
		{"maybe\nn\n", false},
	}

	for _, tt := range tests {
		p, _, _ := newTestPrompter(tt.input)

		got, err := p.Confirm("\nRestart? [y] Yes, [n] No\n>")
		if err != nil {
			t.Fatalf("Confirm(%q) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
