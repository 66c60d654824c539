// Package tui renders the command-line presentation: the banner, live transition status and scene tables.
package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the Stagehand banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{`   ___ _                 _                 _ `, "#38bdf8"},
		{`  / __| |_ __ _ __ _ ___| |_  __ _ _ _  __| |`, "#22d3ee"},
		{`  \__ \  _/ _' / _' / -_) ' \/ _' | ' \/ _' |`, "#2dd4bf"},
		{`  |___/\__\__,_\__, \___|_||_\__,_|_||_\__,_|`, "#34d399"},
		{`               |___/                         `, "#4ade80"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
