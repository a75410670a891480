package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{" _____     _ _           ", "#34d399"},
	{"|_   _|___| | | ___ _ __ ", "#2dd4bf"},
	{"  | |/ _ \\ | |/ _ \\ '__|", "#22d3ee"},
	{"  | |  __/ | |  __/ |   ", "#38bdf8"},
	{"  |_|\\___|_|_|\\___|_|   ", "#60a5fa"},
}

// PrintBanner writes the teller banner with the version underneath.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  banking assistants "+version).Faint())
	fmt.Fprintln(w)
}
