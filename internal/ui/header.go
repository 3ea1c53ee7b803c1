package ui

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Header is the bordered box a Runner prints before its steps: the title
// in capitals, the command line and, below a divider, sorted parameters.
type Header struct {
	Title   string
	Command string            // "nodecfg submit office.json"
	Params  map[string]string // {"Server": "http://10.0.0.2:8123"}
	Width   int
}

func NewHeader(title, command string, params map[string]string) *Header {
	return &Header{Title: title, Command: command, Params: params, Width: GetTerminalWidth()}
}

func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

func (h *Header) Render() string {
	width := max(h.Width, MinTerminalWidth)
	blocks := []string{
		HeaderTitleStyle.Render(strings.ToUpper(h.Title)),
		HeaderCommandStyle.Render(h.Command),
	}
	if params := h.paramLines(); len(params) > 0 {
		blocks = append(blocks, RenderHorizontalDivider(max(width-6, 10), "─"), strings.Join(params, "\n"))
	}
	return HeaderBorderStyle(width).Render(lipgloss.JoinVertical(lipgloss.Left, blocks...))
}

func (h *Header) paramLines() []string {
	keys := make([]string, 0, len(h.Params))
	for k := range h.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = HeaderParamKeyStyle.Render(k+":") + " " + HeaderParamValueStyle.Render(h.Params[k])
	}
	return lines
}

func (h *Header) String() string {
	return h.Render()
}
