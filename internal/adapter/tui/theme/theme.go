// Package theme provides the colors, styles and symbols shared by the
// terminal views. All colors adapt to light and dark terminals.
//
// NO_COLOR (https://no-color.org/) is respected by lipgloss through its
// color profile detection.
package theme

import (
	"github.com/charmbracelet/lipgloss"
)

// --- Adaptive Color Palette ---

var (
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#66bb6a"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#e65100", Dark: "#ffa726"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}
	ColorAccent  = lipgloss.AdaptiveColor{Light: "#6d4c41", Dark: "#bcaaa4"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9e9e9e"}

	ColorBorder = lipgloss.AdaptiveColor{Light: "#bdbdbd", Dark: "#616161"}
	ColorFgDim  = lipgloss.AdaptiveColor{Light: "#9e9e9e", Dark: "#757575"}
)

// --- Symbol variables (set by InitSymbols in symbols.go) ---
// These default to Unicode glyphs but fall back to ASCII on non-UTF8 terminals.

var (
	SymbolSuccess  = "✓"
	SymbolError    = "✗"
	SymbolWarning  = "⚠"
	SymbolInfo     = "●"
	SymbolPending  = "○"
	SymbolArrowR   = "→"
	SymbolBullet   = "•"
	SymbolEllipsis = "…"
)

// --- Base styles ---

var (
	Bold = lipgloss.NewStyle().Bold(true)
	Dim  = lipgloss.NewStyle().Faint(true)

	TextSuccess = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	TextError   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	TextWarning = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	TextInfo    = lipgloss.NewStyle().Foreground(ColorInfo)
	TextAccent  = lipgloss.NewStyle().Foreground(ColorAccent)
	TextMuted   = lipgloss.NewStyle().Foreground(ColorMuted)
)

// --- Progress view ---

var (
	Title = lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true).
		Padding(0, 0, 1, 0)

	StepActive = lipgloss.NewStyle().
			Foreground(ColorInfo).
			Bold(true)

	StepDone = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	StepPending = lipgloss.NewStyle().
			Foreground(ColorMuted)

	ProgressFull = lipgloss.NewStyle().
			Foreground(ColorInfo)

	ProgressEmpty = lipgloss.NewStyle().
			Foreground(ColorMuted)

	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1)

	Timestamp = lipgloss.NewStyle().
			Foreground(ColorFgDim).
			Faint(true)
)

// MaxContentWidth is the recommended max width for readable text content.
const MaxContentWidth = 100

// Clamp returns v clamped to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
