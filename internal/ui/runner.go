package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// RunnerConfig holds configuration for a multi-step command execution
type RunnerConfig struct {
	Title     string            // Command title (e.g., "Submit configuration")
	Command   string            // Full command (e.g., "nodecfg submit office.json")
	Params    map[string]string // Parameters to display in header
	StepNames []string          // Names for each step
	Output    io.Writer         // Output writer (default: os.Stdout)
	Width     int               // Render width (default: terminal width)

	// Troubleshooting returns tips shown in the failure box
	Troubleshooting func(err error) []string
}

// Runner orchestrates the header → steps → result flow of a command.
type Runner struct {
	config   RunnerConfig
	header   *Header
	progress *Progress
	output   io.Writer
	width    int
}

// Operation is the work a Runner executes. It reports progress through
// onStep and returns the details shown in the success box.
type Operation func(ctx context.Context, onStep StepCallback) (map[string]string, error)

// NewRunner creates a new runner
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	width := config.Width
	if width == 0 {
		width = GetTerminalWidth()
	}

	header := NewHeader(config.Title, config.Command, config.Params).SetWidth(width)

	var progress *Progress
	if len(config.StepNames) > 0 {
		progress = NewProgress("", len(config.StepNames)).SetWidth(width)
		progress.SetStepNames(config.StepNames)
	}

	return &Runner{
		config:   config,
		header:   header,
		progress: progress,
		output:   config.Output,
		width:    width,
	}
}

// Run executes op, printing the header first and a result box last. The
// operation's error is returned unchanged.
func (r *Runner) Run(ctx context.Context, op Operation) (map[string]string, error) {
	start := time.Now()

	_, _ = fmt.Fprintln(r.output, r.header.Render())
	_, _ = fmt.Fprintln(r.output)

	details, err := op(ctx, r.stepCallback())
	duration := time.Since(start)

	_, _ = fmt.Fprintln(r.output)
	if r.progress != nil {
		_, _ = fmt.Fprintln(r.output, r.progress.renderBar())
		_, _ = fmt.Fprintln(r.output)
	}
	if err != nil {
		title := r.config.Title + " failed"
		if step, ok := r.failedStep(); ok && step.Name != "" {
			title += " at " + step.Name
		}
		var tips []string
		if r.config.Troubleshooting != nil {
			tips = r.config.Troubleshooting(err)
		}
		result := NewFailureResult(title, err, tips).SetWidth(r.width)
		_, _ = fmt.Fprintln(r.output, result.Render())
		return details, err
	}

	if details == nil {
		details = make(map[string]string)
	}
	details["Duration"] = duration.Round(time.Millisecond).String()
	result := NewSuccessResult(r.config.Title+" complete", details).SetWidth(r.width)
	_, _ = fmt.Fprintln(r.output, result.Render())
	return details, nil
}

func (r *Runner) failedStep() (Step, bool) {
	if r.progress == nil {
		return Step{}, false
	}
	return r.progress.Failed()
}

// Steps returns the current step states
func (r *Runner) Steps() []Step {
	if r.progress == nil {
		return nil
	}
	return append([]Step(nil), r.progress.Steps...)
}

func (r *Runner) stepCallback() StepCallback {
	return func(stepNumber int, name string, status StepStatus, message string) {
		if r.progress == nil || stepNumber < 1 || stepNumber > len(r.progress.Steps) {
			return
		}
		if name != "" {
			r.progress.Steps[stepNumber-1].Name = name
		}
		r.progress.UpdateStep(stepNumber, status, message)

		step := r.progress.Steps[stepNumber-1]
		switch status {
		case StepComplete, StepFailed, StepSkipped:
			_, _ = fmt.Fprintln(r.output, r.progress.renderStepLine(step))
		case StepRunning:
			// overwritten when the step finishes
			_, _ = fmt.Fprint(r.output, r.progress.renderStepLine(step)+"\r")
		}
	}
}
