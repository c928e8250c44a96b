package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/btscout/internal/ui"
	"github.com/muurk/btscout/internal/version"
)

// AppName is shown in the container header.
const AppName = "BTSCOUT"

// Layout constants for responsive terminal width
const (
	MinTerminalWidth  = 72
	MinTerminalHeight = 20
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor).
			Italic(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ui.TextColor).
			Padding(0, 1)

	DoneStyle = lipgloss.NewStyle().
			Foreground(ui.SuccessColor).
			Bold(true).
			Padding(0, 1)

	CanceledStyle = lipgloss.NewStyle().
			Foreground(ui.WarningColor).
			Bold(true).
			Padding(0, 1)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ui.ErrorColor).
			Bold(true).
			Padding(0, 1)

	HintStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor).
			PaddingLeft(3)
)

// RenderApplicationContainer wraps a screen in the bordered full-terminal
// panel: application header on top, help text pinned to the bottom.
func RenderApplicationContainer(content, footerText string, width, height int) string {
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}
	if height < MinTerminalHeight {
		height = MinTerminalHeight
	}

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Foreground(ui.TextColor).Bold(true).Render(AppName+" "+version.Version),
		" ",
		SubtitleStyle.Render("live device discovery"),
	)

	headerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Bottom: "─"}).
		BorderForeground(ui.PrimaryColor).
		Width(width-4).
		Padding(0, 1)

	footerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Top: "─"}).
		BorderForeground(ui.PrimaryColor).
		Width(width-4).
		Padding(0, 1)

	inner := lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render(header),
		lipgloss.NewStyle().Width(width-4).Render(content),
		footerStyle.Render(lipgloss.NewStyle().Foreground(ui.MutedColor).Render(footerText)),
	)

	bordered := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(ui.PrimaryColor).
		Width(width - 2).
		Height(height - 2).
		AlignVertical(lipgloss.Top).
		Render(inner)

	return lipgloss.Place(width, height, lipgloss.Left, lipgloss.Top, bordered)
}
