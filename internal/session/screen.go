package session

import (
	"fmt"
	"io"

	"github.com/mattn/go-isatty"
)

const clearSequence = "\033[H\033[2J"

// Screen clears the terminal between views. Clearing is skipped when the
// output is not a terminal, so piped output stays readable.
type Screen struct {
	out     io.Writer
	enabled bool
}

// NewScreen creates a screen writing to out
func NewScreen(out io.Writer) *Screen {
	enabled := false
	if f, ok := out.(interface{ Fd() uintptr }); ok {
		fd := f.Fd()
		enabled = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	return &Screen{out: out, enabled: enabled}
}

// Clear wipes the terminal
func (s *Screen) Clear() {
	if s.enabled {
		fmt.Fprint(s.out, clearSequence)
	}
}
