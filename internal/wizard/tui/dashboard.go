package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/nodecfg/internal/deviceconfig"
)

// WatchFunc streams status frames for a node until ctx ends.
// deviceconfig.StatusWatcher.Watch satisfies it.
type WatchFunc func(ctx context.Context, ip string, fn func(*deviceconfig.NodeStatus)) error

type statusMsg struct{ status *deviceconfig.NodeStatus }

type watchEndedMsg struct{ err error }

// dashboardKeyMap defines key bindings for the dashboard screen
type dashboardKeyMap struct {
	Quit key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k dashboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k dashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Quit}}
}

// DashboardModel shows a node's live status.
type DashboardModel struct {
	IP     string
	Status *deviceconfig.NodeStatus
	Err    error
	Ended  bool
	Frames int

	watch   WatchFunc
	events  chan tea.Msg
	cancel  context.CancelFunc
	ctx     context.Context
	spinner spinner.Model
	help    help.Model
	keys    dashboardKeyMap

	Width  int
	Height int
}

// NewDashboardModel creates a dashboard for the node at ip. The stream stops
// when ctx is cancelled or the user quits.
func NewDashboardModel(ctx context.Context, ip string, watch WatchFunc) DashboardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	ctx, cancel := context.WithCancel(ctx)
	return DashboardModel{
		IP:      ip,
		watch:   watch,
		events:  make(chan tea.Msg),
		ctx:     ctx,
		cancel:  cancel,
		spinner: s,
		help:    help.New(),
		keys: dashboardKeyMap{
			Quit: key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
		},
	}
}

// Init starts the status stream
func (m DashboardModel) Init() tea.Cmd {
	ctx, ip, watch, events := m.ctx, m.IP, m.watch, m.events
	go func() {
		send := func(msg tea.Msg) {
			select {
			case events <- msg:
			case <-ctx.Done():
			}
		}
		err := watch(ctx, ip, func(s *deviceconfig.NodeStatus) {
			send(statusMsg{status: s})
		})
		send(watchEndedMsg{err: err})
	}()
	return tea.Batch(m.next(), m.spinner.Tick)
}

func (m DashboardModel) next() tea.Cmd {
	ctx, events := m.ctx, m.events
	return func() tea.Msg {
		select {
		case msg := <-events:
			return msg
		case <-ctx.Done():
			return watchEndedMsg{}
		}
	}
}

// Update handles messages for the dashboard
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height

	case statusMsg:
		m.Status = msg.status
		m.Frames++
		return m, m.next()

	case watchEndedMsg:
		m.Ended = true
		m.Err = msg.err
		return m, nil

	case spinner.TickMsg:
		if m.Status != nil || m.Ended {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.cancel()
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the dashboard
func (m DashboardModel) View() string {
	return RenderApplicationContainer(m.renderContent(), "Live status "+m.IP, m.help.View(m.keys), m.Width, m.Height)
}

func (m DashboardModel) renderContent() string {
	var b strings.Builder
	b.WriteString(RenderTitle("NODE " + m.IP))
	b.WriteString("\n\n")

	switch {
	case m.Status == nil && !m.Ended:
		b.WriteString(StatusStyle.Render(m.spinner.View() + " Waiting for the first status frame..."))
		return b.String()
	case m.Status != nil:
		b.WriteString(renderStatusTable(m.Status))
		b.WriteString("\n")
		b.WriteString(StatusStyle.Render(fmt.Sprintf("Updated %s  •  %d frame(s)",
			m.Status.Received.Format(time.Kitchen), m.Frames)))
		b.WriteString("\n")
	}

	if m.Ended {
		b.WriteString("\n")
		if m.Err != nil {
			b.WriteString(RenderError(deviceconfig.GetShortErrorMessage(m.Err)))
		} else {
			b.WriteString(StatusStyle.Render("Stream closed."))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderStatusTable(s *deviceconfig.NodeStatus) string {
	var b strings.Builder
	b.WriteString(LabelStyle.Render(fmt.Sprintf("  %-10s %-18s %-12s %-8s %-8s %s", "ID", "NICKNAME", "TYPE", "STATE", "RULE", "READING")))
	b.WriteString("\n")

	for _, id := range s.IDs() {
		inst := s.Instances[id]
		state := "disabled"
		if inst.Enabled {
			state = "enabled"
		}
		if inst.Turned != "" {
			state = strings.ToLower(inst.Turned)
		}
		reading := ""
		if inst.Reading != nil {
			reading = fmt.Sprintf("%.1f %s", *inst.Reading, inst.Units)
		}
		line := fmt.Sprintf("  %-10s %-18s %-12s %-8s %-8s %s", id, inst.Nickname, inst.Type, state, inst.Rule, reading)
		if inst.Enabled {
			b.WriteString(line)
		} else {
			b.WriteString(LabelStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}
