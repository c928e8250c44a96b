package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Palette shared by the CLI output and the watch screen.
var (
	PrimaryColor = lipgloss.Color("#7D56F4")
	SuccessColor = lipgloss.Color("#43BF6D") // also strong signal
	ErrorColor   = lipgloss.Color("#FF5555") // also weak signal
	WarningColor = lipgloss.Color("#FFA500") // also fair signal
	MutedColor   = lipgloss.Color("#626262")
	TextColor    = lipgloss.Color("#FFFFFF")
)

// Output is never narrower than MinTerminalWidth or wider than
// MaxContentWidth, whatever the terminal reports.
const (
	MinTerminalWidth = 60
	MaxContentWidth  = 120
)

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

func cell(c lipgloss.Color) lipgloss.Style { return fg(c).Padding(0, 1) }

var (
	HeaderTitleStyle      = fg(TextColor).Bold(true).PaddingLeft(2)
	HeaderCommandStyle    = fg(MutedColor).PaddingLeft(2)
	HeaderParamKeyStyle   = fg(MutedColor).PaddingLeft(2)
	HeaderParamValueStyle = fg(TextColor)

	SuccessTitleStyle = fg(SuccessColor).Bold(true)
	ErrorTitleStyle   = fg(ErrorColor).Bold(true)
	WarningTitleStyle = fg(WarningColor).Bold(true)
	ErrorMessageStyle = fg(ErrorColor)

	// ResultKeyStyle pads detail keys into a column.
	ResultKeyStyle   = fg(MutedColor).Width(15)
	ResultValueStyle = fg(TextColor)

	TroubleshootingTitleStyle = fg(MutedColor).Bold(true)
	TroubleshootingItemStyle  = fg(MutedColor)

	TableHeaderStyle = cell(PrimaryColor).Bold(true)
	TableCellStyle   = cell(TextColor)
	// TableMutedCellStyle marks cached or unnamed entries.
	TableMutedCellStyle = cell(MutedColor)

	EventLineStyle = fg(MutedColor)
)

// Status markers
const (
	SuccessMarker = "✓"
	FailureMarker = "✗"
	WarningMarker = "⚠"
	NewMarker     = "+"
	UpdateMarker  = "~"
)

// RSSI bands in dBm used to color the signal column.
const (
	StrongSignal = -60
	FairSignal   = -80
)

// RSSIStyle picks a table cell color for a signal strength reading.
func RSSIStyle(rssi int16) lipgloss.Style {
	switch {
	case int(rssi) >= StrongSignal:
		return cell(SuccessColor)
	case int(rssi) >= FairSignal:
		return cell(WarningColor)
	}
	return cell(ErrorColor)
}

// GetTerminalWidth returns the stdout terminal width clamped to the
// supported range. Non-terminals get MinTerminalWidth.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return MinTerminalWidth
	}
	return clampWidth(width)
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func clampWidth(width int) int {
	return max(MinTerminalWidth, min(width, MaxContentWidth))
}

// RenderHorizontalDivider repeats char width times in the primary color.
func RenderHorizontalDivider(width int, char string) string {
	return fg(PrimaryColor).Render(strings.Repeat(char, max(width, 1)))
}
