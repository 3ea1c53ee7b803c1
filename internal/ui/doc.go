// Package ui provides terminal UI components for the nodecfg CLI.
//
// Components use Lipgloss for styling and follow a "print and move on"
// pattern; the interactive editor lives in internal/wizard/tui.
//
//   - Header: command banner showing operation name and parameters
//   - Progress: step list with a progress bar
//   - Result: success, failure and warning boxes
//   - Runner: header → steps → result flow for multi-step commands
//   - Printer: one-off rendering for simple commands
//
// Example:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:     "Submit configuration",
//	    Command:   "nodecfg submit office.json",
//	    StepNames: []string{"Validate", "Upload"},
//	})
//	_, err := runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) (map[string]string, error) {
//	    onStep(1, "", ui.StepRunning, "")
//	    // ...
//	    onStep(1, "", ui.StepComplete, "")
//	    return nil, nil
//	})
//
// Logging is controlled by NODECFG_LOG_LEVEL. When unset, zap is silent so
// the rendered output stays clean.
package ui
