package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	sliderMin = 0.0
	sliderMax = 100.0
)

// sliderBar renders value on the 0..100 slider scale as a bar of width cells.
// Values outside the scale pin the knob to the nearest end.
func sliderBar(value float64, width int) string {
	if width <= 0 {
		return ""
	}
	if math.IsNaN(value) {
		value = sliderMin
	}
	ratio := (value - sliderMin) / (sliderMax - sliderMin)
	ratio = math.Max(0, math.Min(1, ratio))
	knob := int(math.Round(ratio * float64(width-1)))
	return sliderFillStyle.Render(strings.Repeat("━", knob)) +
		sliderKnobStyle.Render("●") +
		sliderTrackStyle.Render(strings.Repeat("─", width-1-knob))
}

// padName left-aligns names in a column of the given display width.
func padName(name string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(name, width, "…"), width)
}

func nameColumnWidth(names []string) int {
	width := 1
	for _, name := range names {
		if w := runewidth.StringWidth(name); w > width {
			width = w
		}
	}
	if width > maxNameWidth {
		width = maxNameWidth
	}
	return width
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
