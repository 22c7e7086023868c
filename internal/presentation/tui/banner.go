package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the proofline banner to w.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text  string
		color string
	}{
		{"                         __ _ _", "#34d399"},
		{"  _ __  _ __ ___   ___  / _| (_)_ __   ___", "#2dd4bf"},
		{" | '_ \\| '__/ _ \\ / _ \\| |_| | | '_ \\ / _ \\", "#22d3ee"},
		{" | |_) | | | (_) | (_) |  _| | | | | |  __/", "#38bdf8"},
		{" | .__/|_|  \\___/ \\___/|_| |_|_|_| |_|\\___|", "#60a5fa"},
		{" |_|", "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
