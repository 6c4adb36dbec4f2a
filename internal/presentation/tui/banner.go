package tui

import (
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`                     _                        _    `, "#38bdf8"},
	{` _ __ ___   ___  ___| |____      _____  _ __| | __`, "#22d3ee"},
	{`| '_ ' _ \ / _ \/ __| '_ \ \ /\ / / _ \| '__| |/ /`, "#2dd4bf"},
	{`| | | | | |  __/\__ \ | | \ V  V / (_) | |  |   < `, "#34d399"},
	{`|_| |_| |_|\___||___/_| |_|\_/\_/ \___/|_|  |_|\_\`, "#4ade80"},
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// PrintBanner writes the meshwork banner to Stderr when it is a terminal.
func PrintBanner(version string) {
	if !IsTerminal(os.Stderr) {
		return
	}
	WriteBanner(os.Stderr, termenv.EnvColorProfile(), version)
}

// WriteBanner writes the banner with the given color profile.
func WriteBanner(w io.Writer, p termenv.Profile, version string) {
	fmt.Fprintln(w)
	for _, line := range bannerLines {
		fmt.Fprintln(w, p.String(line.text).Foreground(p.Color(line.color)))
	}
	fmt.Fprintln(w, p.String("  service mesh "+version).Faint())
	fmt.Fprintln(w)
}
