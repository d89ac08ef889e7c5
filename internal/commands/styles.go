package commands

import (
	"io"

	"github.com/muesli/termenv"
)

// Styles provides styled output helpers for the CLI.
type Styles struct {
	output *termenv.Output
}

// NewStyles creates a new Styles instance for the given writer.
func NewStyles(w io.Writer) *Styles {
	return &Styles{
		output: termenv.NewOutput(w),
	}
}

// Success returns a styled success string (green + bold).
func (s *Styles) Success(text string) string {
	return s.output.String(text).
		Foreground(s.output.Color("2")).
		Bold().
		String()
}

// Error returns a styled error string (red + bold).
func (s *Styles) Error(text string) string {
	return s.output.String(text).
		Foreground(s.output.Color("1")).
		Bold().
		String()
}

// Code returns a styled account code (cyan).
func (s *Styles) Code(text string) string {
	return s.output.String(text).
		Foreground(s.output.Color("6")).
		String()
}

// Amount returns a styled amount (magenta).
func (s *Styles) Amount(text string) string {
	return s.output.String(text).
		Foreground(s.output.Color("5")).
		String()
}

// Keyword returns a styled heading (bold).
func (s *Styles) Keyword(text string) string {
	return s.output.String(text).
		Bold().
		String()
}

// Dim returns dimmed text.
func (s *Styles) Dim(text string) string {
	return s.output.String(text).
		Faint().
		String()
}

// Warning returns a styled warning (yellow + bold).
func (s *Styles) Warning(text string) string {
	return s.output.String(text).
		Foreground(s.output.Color("3")).
		Bold().
		String()
}
