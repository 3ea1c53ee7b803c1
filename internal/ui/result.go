package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ResultType selects the marker, label and border color of a Result.
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

type resultLook struct {
	marker, label string
	title         lipgloss.Style
	border        lipgloss.Color
}

var resultLooks = map[ResultType]resultLook{
	ResultSuccess: {SuccessMarker, "SUCCESS", SuccessTitleStyle, SuccessColor},
	ResultFailure: {FailureMarker, "FAILED", ErrorTitleStyle, ErrorColor},
	ResultWarning: {WarningMarker, "WARNING", WarningTitleStyle, WarningColor},
}

// Result is the box printed when a command finishes.
type Result struct {
	Type            ResultType
	Title           string // "Submit configuration complete"
	Details         map[string]string
	Error           error
	Troubleshooting []string
	Width           int
}

func newResult(t ResultType, title string) *Result {
	return &Result{Type: t, Title: title, Width: GetTerminalWidth()}
}

func NewSuccessResult(title string, details map[string]string) *Result {
	r := newResult(ResultSuccess, title)
	r.Details = details
	return r
}

// NewFailureResult shows err and a troubleshooting box when tips are given.
func NewFailureResult(title string, err error, troubleshooting []string) *Result {
	r := newResult(ResultFailure, title)
	r.Error = err
	r.Troubleshooting = troubleshooting
	return r
}

func NewWarningResult(title string, details map[string]string) *Result {
	r := newResult(ResultWarning, title)
	r.Details = details
	return r
}

func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// Render draws the box. Details are sorted by key.
func (r *Result) Render() string {
	width := max(r.Width, MinTerminalWidth)
	look, ok := resultLooks[r.Type]
	if !ok {
		look = resultLooks[ResultSuccess]
	}

	sections := [][]string{
		{look.title.Render(fmt.Sprintf("   %s  %s  ─  %s", look.marker, look.label, r.Title))},
	}
	if r.Error != nil {
		sections = append(sections, []string{ErrorMessageStyle.Render("   Error: " + r.Error.Error())})
	}
	if len(r.Details) > 0 {
		sections = append(sections, r.detailLines())
	}
	if len(r.Troubleshooting) > 0 {
		sections = append(sections, []string{r.tipsBox(width)})
	}

	lines := []string{""}
	for _, sec := range sections {
		lines = append(lines, sec...)
		lines = append(lines, "")
	}
	return ResultBoxStyle(width, look.border).Render(strings.Join(lines, "\n"))
}

func (r *Result) detailLines() []string {
	keys := make([]string, 0, len(r.Details))
	for k := range r.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = ResultKeyStyle.Render("   "+k+":") + " " + ResultValueStyle.Render(r.Details[k])
	}
	return lines
}

func (r *Result) tipsBox(width int) string {
	var b strings.Builder
	b.WriteString(TroubleshootingTitleStyle.Render("Troubleshooting:"))
	b.WriteString("\n")
	for _, tip := range r.Troubleshooting {
		b.WriteString("\n" + TroubleshootingItemStyle.Render("  • "+tip))
	}
	return TroubleshootingBoxStyle(width).Render(b.String())
}

func (r *Result) String() string {
	return r.Render()
}
