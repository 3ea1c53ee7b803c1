package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/nodecfg/internal/discovery"
	"github.com/muurk/nodecfg/internal/fieldfmt"
)

// ScanFunc finds nodes on the network.
type ScanFunc func(ctx context.Context) ([]*discovery.Node, error)

type scanStartMsg struct{}

type scanCompleteMsg struct {
	nodes []*discovery.Node
	err   error
}

// discoveryKeyMap defines key bindings for the discovery screen
type discoveryKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Rescan key.Binding
	Manual key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k discoveryKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Rescan, k.Manual, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k discoveryKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Rescan, k.Manual, k.Quit},
	}
}

// manualKeyMap defines key bindings for manual IP entry
type manualKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k manualKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Confirm, k.Cancel}
}

// FullHelp returns keybindings for the expanded help view
func (k manualKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Confirm, k.Cancel}}
}

// DiscoveryModel lists nodes found by mDNS and accepts a typed address.
type DiscoveryModel struct {
	Scan     ScanFunc
	Scanning bool
	Nodes    []*discovery.Node
	Cursor   int
	Err      error

	// Selected is set once the user picks a node
	Selected *discovery.Node

	ManualMode bool
	IPInput    textinput.Model
	ManualErr  string

	Width     int
	Height    int
	Spinner   spinner.Model
	ScanStart time.Time
	Help      help.Model
	Keys      discoveryKeyMap
	Manual    manualKeyMap
}

// NewDiscoveryModel creates the discovery screen. A nil scan goes straight
// to manual entry.
func NewDiscoveryModel(scan ScanFunc) DiscoveryModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	ipInput := textinput.New()
	ipInput.Placeholder = "192.168.1.40"
	ipInput.CharLimit = 15
	ipInput.Width = 20

	m := DiscoveryModel{
		Scan:    scan,
		IPInput: ipInput,
		Spinner: s,
		Help:    help.New(),
		Keys: discoveryKeyMap{
			Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
			Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
			Enter:  key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "configure")),
			Rescan: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
			Manual: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "manual IP")),
			Quit:   key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "quit")),
		},
		Manual: manualKeyMap{
			Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
			Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		},
	}
	if scan == nil {
		m.ManualMode = true
		m.IPInput.Focus()
	}
	return m
}

// Init starts the first scan
func (m DiscoveryModel) Init() tea.Cmd {
	if m.Scan == nil {
		return textinput.Blink
	}
	return m.startScan()
}

func (m DiscoveryModel) startScan() tea.Cmd {
	scan := m.Scan
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		func() tea.Msg {
			nodes, err := scan(context.Background())
			return scanCompleteMsg{nodes: nodes, err: err}
		},
		m.Spinner.Tick,
	)
}

// Update handles messages for the discovery screen
func (m DiscoveryModel) Update(msg tea.Msg) (DiscoveryModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height

	case scanStartMsg:
		m.Scanning = true
		m.ScanStart = time.Now()

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		m.Nodes = msg.nodes
		m.Cursor = 0

	case spinner.TickMsg:
		if !m.Scanning {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.ManualMode {
			return m.updateManual(msg)
		}
		return m.updateNormal(msg)
	}
	return m, nil
}

func (m DiscoveryModel) updateNormal(msg tea.KeyMsg) (DiscoveryModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Up):
		if m.Cursor > 0 {
			m.Cursor--
		}
	case key.Matches(msg, m.Keys.Down):
		if m.Cursor < len(m.Nodes)-1 {
			m.Cursor++
		}
	case key.Matches(msg, m.Keys.Enter):
		if !m.Scanning && m.Cursor < len(m.Nodes) {
			m.Selected = m.Nodes[m.Cursor]
		}
	case key.Matches(msg, m.Keys.Rescan):
		if !m.Scanning && m.Scan != nil {
			m.Nodes = nil
			m.Err = nil
			return m, m.startScan()
		}
	case key.Matches(msg, m.Keys.Manual):
		m.ManualMode = true
		m.ManualErr = ""
		m.IPInput.SetValue("")
		m.IPInput.Focus()
		return m, textinput.Blink
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit
	}
	return m, nil
}

func (m DiscoveryModel) updateManual(msg tea.KeyMsg) (DiscoveryModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Manual.Cancel):
		if m.Scan == nil {
			return m, tea.Quit
		}
		m.ManualMode = false
		m.IPInput.Blur()
		return m, nil

	case key.Matches(msg, m.Manual.Confirm):
		ip := m.IPInput.Value()
		if !fieldfmt.ValidIPv4(ip) {
			m.ManualErr = fmt.Sprintf("%q is not a complete IPv4 address", ip)
			return m, nil
		}
		m.Selected = &discovery.Node{
			ID:           ip,
			IP:           ip,
			Port:         discovery.DefaultPort,
			Hostname:     ip,
			DiscoveredAt: time.Now(),
		}
		m.ManualMode = false
		m.IPInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.IPInput, cmd = m.IPInput.Update(msg)
	m.IPInput.SetValue(fieldfmt.FormatIP(m.IPInput.Value()))
	m.IPInput.CursorEnd()
	m.ManualErr = ""
	return m, cmd
}

// View renders the discovery screen
func (m DiscoveryModel) View() string {
	var content, helpText string
	switch {
	case m.ManualMode:
		content = m.renderManual()
		helpText = m.Help.View(m.Manual)
	case m.Scanning:
		content = m.renderScanning()
		helpText = m.Help.View(m.Keys)
	default:
		content = m.renderResults()
		helpText = m.Help.View(m.Keys)
	}
	return RenderApplicationContainer(content, "Select a node", helpText, m.Width, m.Height)
}

func (m DiscoveryModel) renderScanning() string {
	elapsed := int(time.Since(m.ScanStart).Seconds())
	return lipgloss.JoinVertical(lipgloss.Left,
		RenderTitle(m.Spinner.View()+" SEARCHING FOR NODES"),
		"",
		SubtitleStyle.Render("Browsing "+discovery.ServiceType+" on the local network..."),
		SubtitleStyle.Render(fmt.Sprintf("Elapsed: %ds", elapsed)),
	)
}

func (m DiscoveryModel) renderResults() string {
	var b strings.Builder
	b.WriteString(RenderTitle("DISCOVERED NODES"))
	b.WriteString("\n\n")

	if m.Err != nil {
		b.WriteString(RenderError(fmt.Sprintf("Scan failed: %v", m.Err)))
		b.WriteString("\n\n")
	}
	if len(m.Nodes) == 0 {
		b.WriteString(fg(warn).Bold(true).PaddingLeft(2).
			Render("⚠ No nodes found on your network"))
		b.WriteString("\n\n")
		b.WriteString(SubtitleStyle.Render("Press r to scan again or m to enter an address."))
		return b.String()
	}

	for i, n := range m.Nodes {
		line := fmt.Sprintf("%-20s %s:%d", n.ID, n.IP, n.Port)
		if count := n.InstanceCount(); count >= 0 {
			line += fmt.Sprintf("  %d instance(s)", count)
		}
		b.WriteString(RenderMenuItem(line, i == m.Cursor))
		b.WriteString("\n")
	}
	return b.String()
}

func (m DiscoveryModel) renderManual() string {
	var b strings.Builder
	b.WriteString(RenderTitle("ENTER NODE ADDRESS"))
	b.WriteString("\n\n")
	b.WriteString(EditingStyle.Render(m.IPInput.View()))
	b.WriteString("\n")
	if m.ManualErr != "" {
		b.WriteString("\n")
		b.WriteString(InvalidStyle.PaddingLeft(2).Render(m.ManualErr))
		b.WriteString("\n")
	}
	return b.String()
}
