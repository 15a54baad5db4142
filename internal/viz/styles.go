package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	canvas   lipgloss.Style
	ground   lipgloss.Style
	stats    lipgloss.Style
	header   lipgloss.Style
	label    lipgloss.Style
	value    lipgloss.Style
	selected lipgloss.Style
	graph    lipgloss.Style
	help     lipgloss.Style
	running  lipgloss.Style
	paused   lipgloss.Style
	barHigh  lipgloss.Style
	barMid   lipgloss.Style
	barLow   lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		canvas: lipgloss.NewStyle().Padding(1, 2),
		ground: lipgloss.NewStyle().Foreground(t.Muted),
		stats: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(t.Muted).
			Padding(1, 2).
			Width(52),
		header:   lipgloss.NewStyle().Foreground(t.Primary).Bold(true).MarginBottom(1),
		label:    lipgloss.NewStyle().Foreground(t.Muted).Width(12),
		value:    lipgloss.NewStyle().Foreground(t.Text),
		selected: lipgloss.NewStyle().Foreground(t.Accent).Bold(true),
		graph:    lipgloss.NewStyle().Foreground(t.Primary).Padding(1, 0),
		help:     lipgloss.NewStyle().Foreground(t.Muted).Italic(true).MarginTop(1),
		running:  lipgloss.NewStyle().Foreground(t.Success).Bold(true),
		paused:   lipgloss.NewStyle().Foreground(t.Warning).Bold(true),
		barHigh:  lipgloss.NewStyle().Foreground(t.Error),
		barMid:   lipgloss.NewStyle().Foreground(t.Warning),
		barLow:   lipgloss.NewStyle().Foreground(t.Success),
	}
}

// LimitBar shows where v sits between lo and hi. Positions near either
// limit render hotter.
func (s styles) LimitBar(v, lo, hi float64, width int) string {
	if width < 1 {
		return ""
	}
	if !(hi > lo) {
		return s.label.Render(strings.Repeat("·", width))
	}
	frac := (v - lo) / (hi - lo)
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	filled := int(frac * float64(width))
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	edge := frac
	if 1-frac < edge {
		edge = 1 - frac
	}
	switch {
	case edge < 0.05:
		return s.barHigh.Render(bar)
	case edge < 0.2:
		return s.barMid.Render(bar)
	}
	return s.barLow.Render(bar)
}
