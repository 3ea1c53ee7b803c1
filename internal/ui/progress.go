package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus represents the current state of a step
type StepStatus int

const (
	StepPending  StepStatus = iota // Not yet started
	StepRunning                    // Currently executing
	StepComplete                   // Successfully completed
	StepFailed                     // Failed
	StepSkipped                    // Skipped
)

// done reports whether the step counts towards completion.
func (s StepStatus) done() bool {
	return s == StepComplete || s == StepSkipped
}

// stepLook pairs a status with its marker and style.
type stepLook struct {
	marker string
	style  lipgloss.Style
}

func (s StepStatus) look() stepLook {
	switch s {
	case StepComplete:
		return stepLook{StepMarkerComplete, StepCompleteStyle}
	case StepRunning:
		return stepLook{StepMarkerRunning, StepRunningStyle}
	case StepFailed:
		return stepLook{FailureMarker, ErrorTitleStyle}
	case StepSkipped:
		return stepLook{StepMarkerSkipped, StepPendingStyle}
	default:
		return stepLook{StepMarkerPending, StepPendingStyle}
	}
}

// Step is one stage of a command, e.g. "Upload".
type Step struct {
	Number  int
	Name    string
	Status  StepStatus
	Message string // e.g. "3 invalid field(s)"
}

// stepNameColumn is where step markers line up.
const stepNameColumn = 32

// Progress tracks the steps of a Runner and renders them with a summary
// bar.
type Progress struct {
	Label string
	Steps []Step
	Width int
	bar   progress.Model
}

// NewProgress creates a tracker with n pending steps.
func NewProgress(label string, n int) *Progress {
	steps := make([]Step, n)
	for i := range steps {
		steps[i] = Step{Number: i + 1}
	}
	p := &Progress{Label: label, Steps: steps}
	return p.SetWidth(GetTerminalWidth())
}

// SetWidth resizes the bar to fit width.
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	barWidth := min(max(width-24, 20), 50)
	p.bar = progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth), progress.WithoutPercentage())
	return p
}

// SetStepNames names steps in order. Extra names are ignored.
func (p *Progress) SetStepNames(names []string) *Progress {
	for i := 0; i < len(names) && i < len(p.Steps); i++ {
		p.Steps[i].Name = names[i]
	}
	return p
}

// UpdateStep records a step's status. Out-of-range steps are ignored.
func (p *Progress) UpdateStep(n int, status StepStatus, message string) {
	if n < 1 || n > len(p.Steps) {
		return
	}
	p.Steps[n-1].Status = status
	p.Steps[n-1].Message = message
}

// Fraction is the share of steps that are complete or skipped.
func (p *Progress) Fraction() float64 {
	if len(p.Steps) == 0 {
		return 0
	}
	done := 0
	for _, s := range p.Steps {
		if s.Status.done() {
			done++
		}
	}
	return float64(done) / float64(len(p.Steps))
}

// Failed returns the first failed step, if any.
func (p *Progress) Failed() (Step, bool) {
	for _, s := range p.Steps {
		if s.Status == StepFailed {
			return s, true
		}
	}
	return Step{}, false
}

// Render returns the label, summary bar and step list.
func (p *Progress) Render() string {
	lines := make([]string, 0, len(p.Steps)+3)
	if p.Label != "" {
		lines = append(lines, ProgressLabelStyle.Render(p.Label), "")
	}
	lines = append(lines, p.renderBar(), "")
	for _, s := range p.Steps {
		lines = append(lines, p.renderStepLine(s))
	}
	return strings.Join(lines, "\n")
}

func (p *Progress) renderBar() string {
	f := p.Fraction()
	done := int(f*float64(len(p.Steps)) + 0.5)
	return lipgloss.NewStyle().PaddingLeft(2).Render(
		fmt.Sprintf("%s  %3.0f%%  [%d/%d]", p.bar.ViewAs(f), f*100, done, len(p.Steps)))
}

// renderStepLine renders "  [2/3] Upload ....... ✓  (message)".
func (p *Progress) renderStepLine(s Step) string {
	look := s.Status.look()
	pad := max(stepNameColumn-lipgloss.Width(s.Name), 1)

	var b strings.Builder
	fmt.Fprintf(&b, "  [%d/%d] ", s.Number, len(p.Steps))
	b.WriteString(look.style.Render(s.Name))
	b.WriteString(strings.Repeat(" ", pad))
	b.WriteString(look.style.Render(look.marker))
	if s.Message != "" {
		b.WriteString("  " + StepNoteStyle.Render("("+s.Message+")"))
	}
	return b.String()
}

// String implements fmt.Stringer
func (p *Progress) String() string {
	return p.Render()
}

// StepCallback is how an Operation reports step progress.
type StepCallback func(stepNumber int, name string, status StepStatus, message string)
