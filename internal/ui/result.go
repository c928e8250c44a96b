package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ResultType selects the color and banner of a Result.
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

type resultLook struct {
	label  string
	marker string
	color  lipgloss.Color
	title  lipgloss.Style
}

var resultLooks = map[ResultType]resultLook{
	ResultSuccess: {"SUCCESS", SuccessMarker, SuccessColor, SuccessTitleStyle},
	ResultFailure: {"FAILED", FailureMarker, ErrorColor, ErrorTitleStyle},
	ResultWarning: {"WARNING", WarningMarker, WarningColor, WarningTitleStyle},
}

// Result is the boxed summary printed when a discovery run ends.
type Result struct {
	Type            ResultType
	Title           string  // e.g. "Device scan finished"
	Details         []Param // rendered in order
	Error           error
	Troubleshooting []string
	Width           int
}

// NewSuccessResult creates a success result box
func NewSuccessResult(title string, details ...Param) *Result {
	return newResult(ResultSuccess, title, details)
}

// NewWarningResult is used for runs that ended early but still produced
// something, e.g. a canceled scan.
func NewWarningResult(title string, details ...Param) *Result {
	return newResult(ResultWarning, title, details)
}

// NewFailureResult creates a failure result box. Without explicit tips the
// ones registered for the error's kind are shown.
func NewFailureResult(title string, err error, tips ...string) *Result {
	r := newResult(ResultFailure, title, nil)
	r.Error = err
	r.Troubleshooting = tips
	if len(tips) == 0 {
		r.Troubleshooting = Troubleshooting(err)
	}
	return r
}

func newResult(t ResultType, title string, details []Param) *Result {
	return &Result{Type: t, Title: title, Details: details, Width: GetTerminalWidth()}
}

// SetWidth overrides the detected terminal width.
func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// AddDetail appends a detail line.
func (r *Result) AddDetail(key, value string) *Result {
	r.Details = append(r.Details, Param{Key: key, Value: value})
	return r
}

// Render draws the result in a double border colored by its type.
func (r *Result) Render() string {
	width := max(r.Width, MinTerminalWidth)
	look, ok := resultLooks[r.Type]
	if !ok {
		look = resultLooks[ResultSuccess]
	}

	banner := "   " + look.marker + "  " + look.label + "  ─  " + r.Title
	lines := []string{"", look.title.Render(banner), ""}
	for _, d := range r.Details {
		lines = append(lines, ResultKeyStyle.Render("   "+d.Key+":")+" "+ResultValueStyle.Render(d.Value))
	}
	if len(r.Details) > 0 {
		lines = append(lines, "")
	}
	if r.Error != nil {
		lines = append(lines, ErrorMessageStyle.Render("   Error: "+r.Error.Error()), "")
	}
	if len(r.Troubleshooting) > 0 {
		lines = append(lines, tipsBox(r.Troubleshooting, width), "")
	}

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(look.color).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))
}

// tipsBox nests the troubleshooting list in a muted rounded box.
func tipsBox(tips []string, width int) string {
	body := TroubleshootingTitleStyle.Render("Troubleshooting:") + "\n"
	for _, tip := range tips {
		body += "\n" + TroubleshootingItemStyle.Render("  • "+tip)
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(max(width-12, 40)).
		Padding(0, 1).
		MarginLeft(3).
		Render(body)
}

func (r *Result) String() string { return r.Render() }
