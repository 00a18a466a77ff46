package cmd

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette for coderag's CLI output, carried over from the corpus's TUI
// palette (internal/ui/styles.go) for a consistent accent across both.
const (
	colorAccent = "154" // bright lime green
	colorDim    = "245"
	colorBorder = "238"
	colorError  = "196"
	colorWarn   = "220"
)

// cliStyles are the styles applied to search/status output.
type cliStyles struct {
	Header lipgloss.Style
	Score  lipgloss.Style
	Dim    lipgloss.Style
	Error  lipgloss.Style
	Warn   lipgloss.Style
}

// plainStyles renders with no ANSI codes, for non-terminal output or
// NO_COLOR environments.
func plainStyles() cliStyles {
	return cliStyles{
		Header: lipgloss.NewStyle(),
		Score:  lipgloss.NewStyle(),
		Dim:    lipgloss.NewStyle(),
		Error:  lipgloss.NewStyle(),
		Warn:   lipgloss.NewStyle(),
	}
}

// colorStyles renders with the accent palette.
func colorStyles() cliStyles {
	return cliStyles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent)),
		Score:  lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent)),
		Dim:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorDim)),
		Error:  lipgloss.NewStyle().Foreground(lipgloss.Color(colorError)),
		Warn:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorWarn)),
	}
}

// stylesFor picks color or plain styles based on whether w is a terminal and
// NO_COLOR is unset, mirroring the corpus's IsTTY/DetectNoColor checks.
func stylesFor(w io.Writer) cliStyles {
	if detectNoColor() || !isTTY(w) {
		return plainStyles()
	}
	return colorStyles()
}

// isTTY reports whether w is a terminal file descriptor.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// detectNoColor reports whether the NO_COLOR environment variable is set.
func detectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}
