package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Printer writes one-off result boxes and field lists for commands that do
// not need a Runner.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter writes to w, or os.Stdout when w is nil.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{out: w, width: GetTerminalWidth()}
}

func (p *Printer) SetWidth(width int) *Printer {
	p.width = width
	return p
}

func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

func (p *Printer) Newline() {
	p.Println("")
}

func (p *Printer) PrintSuccess(title string, details map[string]string) {
	p.Println(NewSuccessResult(title, details).SetWidth(p.width).Render())
}

func (p *Printer) PrintWarning(title string, details map[string]string) {
	p.Println(NewWarningResult(title, details).SetWidth(p.width).Render())
}

func (p *Printer) PrintError(title string, err error, troubleshooting []string) {
	p.Println(NewFailureResult(title, err, troubleshooting).SetWidth(p.width).Render())
}

// PrintFieldList prints a title followed by one marked field key per line.
// Invalid fields get the failure marker, incomplete ones the warning
// marker. An empty list prints nothing.
func (p *Printer) PrintFieldList(title string, fields []string, invalid bool) {
	if len(fields) == 0 {
		return
	}
	style, marker := IncompleteFieldStyle, WarningMarker
	if invalid {
		style, marker = InvalidFieldStyle, FailureMarker
	}

	lines := make([]string, 0, len(fields)+1)
	lines = append(lines, HeaderTitleStyle.Render(title))
	for _, f := range fields {
		lines = append(lines, "    "+style.Render(marker+" "+f))
	}
	p.Println(strings.Join(lines, "\n"))
}
