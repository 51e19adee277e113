package ui

import "github.com/charmbracelet/lipgloss"

// Color palette: one lime accent on grays.
const (
	ColorLime     = "154" // Primary accent (#AFFF00)
	ColorLimeDim  = "106" // Dimmed lime for citations
	ColorWhite    = "255" // Answers
	ColorGray     = "245" // Secondary text, labels
	ColorDarkGray = "238" // Borders, separators
	ColorRed      = "196" // Errors
	ColorYellow   = "220" // Warnings
)

// Styles holds all UI styles for chat rendering.
type Styles struct {
	Header   lipgloss.Style
	Prompt   lipgloss.Style
	Question lipgloss.Style
	Answer   lipgloss.Style
	Source   lipgloss.Style
	Score    lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Dim      lipgloss.Style
	Border   lipgloss.Style
}

// DefaultStyles returns styled components for TUI mode.
func DefaultStyles() Styles {
	return Styles{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Prompt:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime)),
		Question: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorGray)),
		Answer:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWhite)),
		Source:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLimeDim)),
		Score:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Border:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
	}
}

// NoColorStyles returns unstyled components for plain mode.
func NoColorStyles() Styles {
	return Styles{
		Header:   lipgloss.NewStyle(),
		Prompt:   lipgloss.NewStyle(),
		Question: lipgloss.NewStyle(),
		Answer:   lipgloss.NewStyle(),
		Source:   lipgloss.NewStyle(),
		Score:    lipgloss.NewStyle(),
		Warning:  lipgloss.NewStyle(),
		Error:    lipgloss.NewStyle(),
		Dim:      lipgloss.NewStyle(),
		Border:   lipgloss.NewStyle(),
	}
}
