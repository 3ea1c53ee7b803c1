package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestHeaderParamsSorted(t *testing.T) {
	h := NewHeader("Submit configuration", "nodecfg submit", map[string]string{
		"Server": "http://10.0.0.2:8123",
		"Node":   "192.168.1.40",
		"File":   "office.json",
	}).SetWidth(80)

	out := h.Render()
	if !strings.Contains(out, "SUBMIT CONFIGURATION") {
		t.Errorf("title not upper-cased:\n%s", out)
	}
	file := strings.Index(out, "File:")
	node := strings.Index(out, "Node:")
	server := strings.Index(out, "Server:")
	if file < 0 || node < 0 || server < 0 || !(file < node && node < server) {
		t.Errorf("params not in key order:\n%s", out)
	}
}

func TestResultRender(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{
			name:   "success",
			result: NewSuccessResult("Upload", map[string]string{"Node": "192.168.1.40"}),
			want:   []string{"SUCCESS", "Upload", "Node:", "192.168.1.40"},
		},
		{
			name:   "failure",
			result: NewFailureResult("Upload", errors.New("sd card busy"), []string{"Retry later"}),
			want:   []string{"FAILED", "Error: sd card busy", "Troubleshooting:", "Retry later"},
		},
		{
			name:   "warning",
			result: NewWarningResult("Incomplete", map[string]string{"Fields": "2"}),
			want:   []string{"WARNING", "Incomplete", "Fields:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(80).Render()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("missing %q in:\n%s", w, out)
				}
			}
		})
	}
}

func TestRunnerSuccess(t *testing.T) {
	var buf bytes.Buffer
	r := NewRunner(RunnerConfig{
		Title:     "Submit",
		Command:   "nodecfg submit",
		StepNames: []string{"Validate", "Upload"},
		Output:    &buf,
		Width:     80,
	})

	details, err := r.Run(context.Background(), func(ctx context.Context, onStep StepCallback) (map[string]string, error) {
		onStep(1, "", StepRunning, "")
		onStep(1, "", StepComplete, "")
		onStep(2, "Upload document", StepComplete, "312 bytes")
		onStep(9, "", StepComplete, "") // out of range, ignored
		return map[string]string{"Node": "192.168.1.40"}, nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if details["Duration"] == "" {
		t.Error("Duration not added to details")
	}

	steps := r.Steps()
	if steps[0].Status != StepComplete || steps[1].Name != "Upload document" {
		t.Errorf("steps = %+v", steps)
	}
	out := buf.String()
	for _, w := range []string{"SUBMIT", "Upload document", "312 bytes", "Submit complete"} {
		if !strings.Contains(out, w) {
			t.Errorf("missing %q in output", w)
		}
	}
}

func TestRunnerFailure(t *testing.T) {
	var buf bytes.Buffer
	wantErr := errors.New("conflict")
	r := NewRunner(RunnerConfig{
		Title:     "Submit",
		StepNames: []string{"Upload"},
		Output:    &buf,
		Width:     80,
		Troubleshooting: func(err error) []string {
			return []string{"hint for " + err.Error()}
		},
	})

	_, err := r.Run(context.Background(), func(ctx context.Context, onStep StepCallback) (map[string]string, error) {
		onStep(1, "", StepFailed, "")
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Run() error = %v, want %v", err, wantErr)
	}
	for _, w := range []string{"hint for conflict", "Submit failed at Upload", "0%"} {
		if !strings.Contains(buf.String(), w) {
			t.Errorf("missing %q in output:\n%s", w, buf.String())
		}
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"yes\n", true},
		{"  yes  \n", true},
		{"yes", true},
		{"y\n", false},
		{"YES\n", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var out bytes.Buffer
			got := ConfirmOverwrite(strings.NewReader(tt.input), &out, "192.168.1.40")
			if got != tt.want {
				t.Errorf("ConfirmOverwrite(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !strings.Contains(out.String(), "192.168.1.40") {
				t.Error("warning does not name the node")
			}
		})
	}
}

func TestPrintFieldList(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf).SetWidth(80)

	p.PrintFieldList("Invalid", nil, true)
	if buf.Len() != 0 {
		t.Error("empty list printed output")
	}

	p.PrintFieldList("Invalid", []string{"device1.ip", "sensor1.units"}, true)
	out := buf.String()
	if !strings.Contains(out, FailureMarker+" device1.ip") || !strings.Contains(out, "sensor1.units") {
		t.Errorf("PrintFieldList() = %q", out)
	}
}

func TestPrintWarning(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).SetWidth(80).PrintWarning("Configuration needs attention", map[string]string{"Fields": "2"})
	for _, want := range []string{"WARNING", "needs attention", "Fields:", "2"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("missing %q in:\n%s", want, buf.String())
		}
	}
}

func TestClampWidth(t *testing.T) {
	tests := []struct {
		width int
		err   error
		want  int
	}{
		{80, nil, 80},
		{20, nil, MinTerminalWidth},
		{300, nil, MaxContentWidth},
		{80, errors.New("not a tty"), MinTerminalWidth},
	}
	for _, tt := range tests {
		if got := clampWidth(tt.width, tt.err); got != tt.want {
			t.Errorf("clampWidth(%d, %v) = %d, want %d", tt.width, tt.err, got, tt.want)
		}
	}
}

func TestProgressFraction(t *testing.T) {
	p := NewProgress("Submit", 4).SetWidth(80).SetStepNames([]string{"Validate", "Upload", "Registry", "Notify"})
	p.UpdateStep(1, StepComplete, "")
	p.UpdateStep(2, StepSkipped, "node unchanged")
	p.UpdateStep(3, StepFailed, "disk full")
	p.UpdateStep(0, StepComplete, "")

	if got := p.Fraction(); got != 0.5 {
		t.Errorf("Fraction() = %v, want 0.5", got)
	}
	step, ok := p.Failed()
	if !ok || step.Name != "Registry" {
		t.Errorf("Failed() = %+v, %v", step, ok)
	}
	out := p.Render()
	for _, w := range []string{"Submit", "50%", "[2/4]", "node unchanged", "[4/4] Notify"} {
		if !strings.Contains(out, w) {
			t.Errorf("missing %q in:\n%s", w, out)
		}
	}
}
