// Package prompt reads validated answers from an interactive console.
//
// Answers are lower-cased and trimmed. A comma-separated answer is split
// into pieces that must each be allowed; order and duplicates are kept.
// Typing "end" at any prompt yields ErrEnd, which callers pass upward
// untouched so the program can shut down from one place.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"bikeshare-explorer/pkg/metrics"
)

// EndCommand ends the program from any prompt
const EndCommand = "end"

// InvalidPrompt replaces the question text after a rejected answer
const InvalidPrompt = "\nInvalid input. Please enter a valid option:\n>"

var (
	// ErrEnd is returned when the user types the end command
	ErrEnd = errors.New("session ended by user")

	// ErrInputClosed is returned when the input reaches EOF before a valid answer
	ErrInputClosed = errors.New("input closed")
)

// Prompter asks questions on out and reads answers from in
type Prompter struct {
	reader  *bufio.Reader
	out     io.Writer
	metrics *metrics.Collector
}

// NewPrompter creates a new prompter
func NewPrompter(in io.Reader, out io.Writer, metricsCollector *metrics.Collector) *Prompter {
	return &Prompter{
		reader:  bufio.NewReader(in),
		out:     out,
		metrics: metricsCollector,
	}
}

// GetChoice prints text and reads answers until one is valid for allowed.
// A single answer is returned as a list of one.
func (p *Prompter) GetChoice(text string, allowed []string) ([]string, error) {
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[normalize(a)] = true
	}

	for {
		fmt.Fprint(p.out, text)

		line, err := p.reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			if errors.Is(err, io.EOF) {
				return nil, ErrInputClosed
			}
			return nil, fmt.Errorf("failed to read input: %w", err)
		}

		// end wins over every other reading of the answer
		if normalize(line) == EndCommand {
			return nil, ErrEnd
		}
		if choices, ok := parse(line, set); ok {
			return choices, nil
		}

		p.metrics.PromptRejectionsTotal.Inc()
		text = InvalidPrompt
	}
}

// Confirm asks a yes/no question. Only a single "y" counts as yes.
func (p *Prompter) Confirm(text string) (bool, error) {
	choices, err := p.GetChoice(text, []string{"y", "n"})
	if err != nil {
		return false, err
	}
	return len(choices) == 1 && choices[0] == "y", nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// parse validates one answer against allowed
func parse(line string, allowed map[string]bool) ([]string, bool) {
	input := normalize(line)
	if !strings.Contains(input, ",") {
		if allowed[input] {
			return []string{input}, true
		}
		return nil, false
	}

	pieces := strings.Split(input, ",")
	for i, piece := range pieces {
		pieces[i] = normalize(piece)
		if !allowed[pieces[i]] {
			return nil, false
		}
	}
	return pieces, true
}
