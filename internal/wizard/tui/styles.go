package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/nodecfg/internal/ui"
	"github.com/muurk/nodecfg/internal/version"
)

const (
	appTitle = "NODECFG"
	repoURL  = "github.com/muurk/nodecfg"

	minWidth  = 72
	minHeight = 20
)

// Screens share the command-line palette.
var (
	accent = ui.PrimaryColor
	good   = ui.SuccessColor
	warn   = ui.WarningColor
	bad    = ui.ErrorColor
	text   = ui.TextColor
	subtle = ui.MutedColor
)

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

var (
	titleStyle            = fg(accent).Bold(true).Padding(1, 0, 0, 2)
	SubtitleStyle         = fg(subtle).Italic(true).PaddingLeft(2)
	SectionStyle          = fg(text).Bold(true).PaddingLeft(2) // instance block heading
	menuItemStyle         = fg(text).PaddingLeft(4)
	SelectedMenuItemStyle = fg(good).Bold(true).PaddingLeft(2)
	LabelStyle            = fg(subtle)
	InvalidStyle          = fg(bad).Bold(true)
	IncompleteStyle       = fg(warn)
	StatusStyle           = fg(subtle).PaddingLeft(2)
	SpinnerStyle          = fg(accent)

	// EditingStyle frames the field being typed into.
	EditingStyle = lipgloss.NewStyle().
			Border(lipgloss.Border{Left: "┃"}).
			BorderForeground(accent).
			PaddingLeft(1).
			MarginLeft(2)
)

func boxed(c lipgloss.Color) lipgloss.Style {
	return fg(c).Bold(true).Padding(0, 2).Border(lipgloss.RoundedBorder()).BorderForeground(c)
}

func RenderTitle(s string) string { return titleStyle.Render(s) }

func RenderMenuItem(s string, selected bool) string {
	if selected {
		return SelectedMenuItemStyle.Render("→ " + s)
	}
	return menuItemStyle.Render(s)
}

func RenderError(s string) string   { return boxed(bad).Render(ui.FailureMarker + " " + s) }
func RenderSuccess(s string) string { return boxed(good).Render(ui.SuccessMarker + " " + s) }

// rule returns a style drawing a single horizontal line on the given side.
func rule(b lipgloss.Border, width int) lipgloss.Style {
	return lipgloss.NewStyle().
		BorderStyle(b).
		BorderForeground(accent).
		Width(width).
		Padding(0, 1)
}

// RenderApplicationContainer frames a screen: a title bar with the screen
// subtitle, the content, and the help footer pinned to the bottom.
func RenderApplicationContainer(content, subtitle, footerText string, width, height int) string {
	width, height = max(width, minWidth), max(height, minHeight)
	inner := width - 4

	bar := []string{
		fg(text).Bold(true).Render(appTitle + " v" + version.Version),
		" ",
		fg(subtle).Render(repoURL),
	}
	if subtitle != "" {
		bar = append(bar, "  ", fg(accent).Render(subtitle))
	}
	header := rule(lipgloss.Border{Bottom: "─"}, inner).Render(lipgloss.JoinHorizontal(lipgloss.Top, bar...))
	footer := rule(lipgloss.Border{Top: "─"}, inner).Render(fg(subtle).Render(footerText))

	body := lipgloss.NewStyle().
		Width(inner).
		Height(height - 4 - lipgloss.Height(header) - lipgloss.Height(footer)).
		Render(content)

	frame := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(accent).
		Width(width - 2).
		Height(height - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, header, body, footer))

	return lipgloss.Place(width, height, lipgloss.Left, lipgloss.Top, frame)
}
