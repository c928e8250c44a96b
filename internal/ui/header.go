package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Param is one labelled value shown under a header or in a result box.
type Param struct {
	Key   string
	Value string
}

// Header is the banner printed before a command starts talking to the radio.
type Header struct {
	Title   string // upper-cased when rendered
	Command string // e.g. "btscout scan --methods le"
	Params  []Param
	Width   int
}

// NewHeader sizes the header to the current terminal.
func NewHeader(title, command string, params ...Param) *Header {
	return &Header{Title: title, Command: command, Params: params, Width: GetTerminalWidth()}
}

// SetWidth overrides the detected terminal width.
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render draws the title, the command line and, below a divider, the
// params with their values aligned.
func (h *Header) Render() string {
	width := max(h.Width, MinTerminalWidth)

	rows := []string{
		HeaderTitleStyle.Render(strings.ToUpper(h.Title)),
		HeaderCommandStyle.Render(h.Command),
	}
	if len(h.Params) > 0 {
		rows = append(rows, RenderHorizontalDivider(max(width-6, 10), "─"))
		pad := 0
		for _, p := range h.Params {
			pad = max(pad, len(p.Key))
		}
		for _, p := range h.Params {
			label := fmt.Sprintf("%-*s", pad+1, p.Key+":")
			rows = append(rows, HeaderParamKeyStyle.Render(label)+" "+HeaderParamValueStyle.Render(p.Value))
		}
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (h *Header) String() string { return h.Render() }
