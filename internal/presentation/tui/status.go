package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const barWidth = 24

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Status prints transition progress. On a terminal it redraws a single colored line;
// otherwise it prints one plain line per state change.
type Status struct {
	w       io.Writer
	styled  bool
	profile termenv.Profile
	last    domain.MachineState
}

// NewStatus creates a status printer for w.
func NewStatus(w io.Writer) *Status {
	styled := IsTerminal(w)
	profile := termenv.Ascii
	if styled {
		profile = termenv.ColorProfile()
	}
	return &Status{w: w, styled: styled, profile: profile}
}

// Update renders the current state and progress of a transition towards target.
func (s *Status) Update(target string, state domain.MachineState, progress float64) {
	if !s.styled {
		if state != s.last {
			fmt.Fprintf(s.w, "%s %-16s %s\n", target, state, Bar(progress, barWidth))
		}
		s.last = state
		return
	}
	name := termenv.String(target).Bold().String()
	phase := termenv.String(string(state)).Foreground(s.profile.Color(colorFor(state))).String()
	fmt.Fprintf(s.w, "\r\033[K%s %s %s %3.0f%%", name, phase, Bar(progress, barWidth), progress*100)
	s.last = state
}

// Done ends the status line with the outcome of the transition.
func (s *Status) Done(target string, err error) {
	if s.styled {
		fmt.Fprint(s.w, "\r\033[K")
	}
	if err != nil {
		msg := termenv.String("failed").Foreground(s.profile.Color("#f87171"))
		fmt.Fprintf(s.w, "%s %s: %v\n", target, msg, err)
		return
	}
	fmt.Fprintf(s.w, "%s %s\n", target, termenv.String("committed").Foreground(s.profile.Color("#4ade80")))
	s.last = ""
}

// Bar renders progress in [0,1] as a fixed-width bar.
func Bar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	filled := int(progress * float64(width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func colorFor(state domain.MachineState) string {
	switch state {
	case domain.StateSwitching:
		return "#facc15"
	case domain.StateCommitted, domain.StateIdle:
		return "#4ade80"
	default:
		return "#38bdf8"
	}
}
