// Package ui holds the terminal front ends of the chat core: the customer
// widget, the operator console, and their shared rendering.
package ui

import "github.com/charmbracelet/lipgloss"

// Theme holds the color scheme shared by both TUIs.
type Theme struct {
	Self    lipgloss.Color
	Other   lipgloss.Color
	Pending lipgloss.Color
	Status  lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
	Accent  lipgloss.Color
}

// DefaultTheme provides default colors.
var DefaultTheme = Theme{
	Self:    lipgloss.Color("#00D787"), // green
	Other:   lipgloss.Color("#5FAFD7"), // light blue
	Pending: lipgloss.Color("#6C6C6C"), // dim gray
	Status:  lipgloss.Color("#5FAFD7"),
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"),
	Accent:  lipgloss.Color("#D7AF5F"), // amber
}

func (t Theme) selfStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Self).Bold(true)
}

func (t Theme) otherStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Other).Bold(true)
}

func (t Theme) pendingStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Pending).Italic(true)
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) accentStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
}
