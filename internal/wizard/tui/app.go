package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/muurk/nodecfg/internal/debounce"
	"github.com/muurk/nodecfg/internal/deviceconfig"
	"github.com/muurk/nodecfg/internal/discovery"
	"github.com/muurk/nodecfg/internal/document"
	"github.com/muurk/nodecfg/internal/logging"
	"github.com/muurk/nodecfg/internal/wizard"
)

// Screen represents the current active screen in the application
type Screen string

const (
	ScreenDiscovery Screen = "discovery"
	ScreenLoading   Screen = "loading"
	ScreenEditor    Screen = "editor"
)

// LoadFunc fetches the document stored on a node.
type LoadFunc func(ctx context.Context, node *discovery.Node) (*document.Document, error)

// Options wires the wizard to its collaborators.
type Options struct {
	// Scan lists nodes; nil skips straight to manual address entry
	Scan ScanFunc

	// Node skips discovery when set
	Node *discovery.Node

	// Document skips loading when set
	Document *document.Document

	Load     LoadFunc
	Uploader func(node *discovery.Node) wizard.Uploader

	Geocoder       debounce.Geocoder
	DebounceWindow time.Duration
}

type loadedMsg struct {
	doc *document.Document
	err error
}

// AppModel is the top-level coordinator model that manages screen transitions
type AppModel struct {
	CurrentScreen Screen
	Node          *discovery.Node
	LastError     error

	opts      Options
	discovery DiscoveryModel
	editor    EditorModel
	spinner   spinner.Model

	Width  int
	Height int
}

// NewAppModel creates the wizard application.
func NewAppModel(opts Options) AppModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	m := AppModel{opts: opts, spinner: s, Node: opts.Node}
	switch {
	case opts.Document != nil:
		m.CurrentScreen = ScreenEditor
		m.editor = m.newEditor(opts.Document)
	case opts.Node != nil:
		m.CurrentScreen = ScreenLoading
	default:
		m.CurrentScreen = ScreenDiscovery
		m.discovery = NewDiscoveryModel(opts.Scan)
	}
	return m
}

func (m AppModel) newEditor(doc *document.Document) EditorModel {
	var up wizard.Uploader
	if m.opts.Uploader != nil {
		up = m.opts.Uploader(m.Node)
	}
	label := "new configuration"
	if m.Node != nil {
		label = m.Node.ID + " " + m.Node.IP
		doc.SetNodeAddress(m.Node.IP)
	}
	e := NewEditorModel(doc, EditorOptions{
		Uploader:       up,
		NodeLabel:      label,
		Geocoder:       m.opts.Geocoder,
		DebounceWindow: m.opts.DebounceWindow,
	})
	e.Width, e.Height = m.Width, m.Height
	return e
}

// Init initializes the current screen
func (m AppModel) Init() tea.Cmd {
	switch m.CurrentScreen {
	case ScreenDiscovery:
		return m.discovery.Init()
	case ScreenLoading:
		return m.load()
	default:
		return m.editor.Init()
	}
}

func (m AppModel) load() tea.Cmd {
	node, load := m.Node, m.opts.Load
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		if load == nil {
			return loadedMsg{err: fmt.Errorf("no loader configured for %s", node.IP)}
		}
		doc, err := load(context.Background(), node)
		return loadedMsg{doc: doc, err: err}
	})
}

// Update routes messages to the active screen
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.discovery.Width, m.discovery.Height = msg.Width, msg.Height
		m.editor.Width, m.editor.Height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case loadedMsg:
		if msg.err != nil {
			logging.Warn("Failed to load node configuration",
				zap.String("node", m.Node.IP), zap.Error(msg.err))
			m.LastError = msg.err
			m.CurrentScreen = ScreenDiscovery
			m.discovery = NewDiscoveryModel(m.opts.Scan)
			m.discovery.Width, m.discovery.Height = m.Width, m.Height
			return m, m.discovery.Init()
		}
		m.LastError = nil
		m.CurrentScreen = ScreenEditor
		m.editor = m.newEditor(msg.doc)
		return m, m.editor.Init()
	}

	switch m.CurrentScreen {
	case ScreenDiscovery:
		var cmd tea.Cmd
		m.discovery, cmd = m.discovery.Update(msg)
		if m.discovery.Selected != nil {
			m.Node = m.discovery.Selected
			m.CurrentScreen = ScreenLoading
			return m, m.load()
		}
		return m, cmd

	case ScreenLoading:
		if tick, ok := msg.(spinner.TickMsg); ok {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(tick)
			return m, cmd
		}
		return m, nil

	default:
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return m, cmd
	}
}

// View renders the current screen
func (m AppModel) View() string {
	switch m.CurrentScreen {
	case ScreenDiscovery:
		view := m.discovery.View()
		if m.LastError != nil {
			// Shown above the list until the next load attempt
			msg := RenderError("Could not load node: " + deviceconfig.GetShortErrorMessage(m.LastError))
			return msg + "\n" + view
		}
		return view
	case ScreenLoading:
		title := RenderTitle(m.spinner.View() + " LOADING CONFIGURATION")
		content := title + "\n\n" + SubtitleStyle.Render("Fetching the configuration stored on "+m.Node.IP+"...")
		return RenderApplicationContainer(content, m.Node.ID, "ctrl+c quit", m.Width, m.Height)
	default:
		return m.editor.View()
	}
}

// Submitted reports whether the session ended with a successful upload.
func (m AppModel) Submitted() bool {
	return m.CurrentScreen == ScreenEditor && m.editor.Done()
}

// Run starts the wizard and blocks until it exits. It returns the node the
// session was bound to, if any, and whether the configuration was
// submitted.
func Run(opts Options) (*discovery.Node, bool, error) {
	final, err := tea.NewProgram(NewAppModel(opts), tea.WithAltScreen()).Run()
	if err != nil {
		return nil, false, err
	}
	app, ok := final.(AppModel)
	if !ok {
		return nil, false, nil
	}
	return app.Node, app.Submitted(), nil
}

// RunDashboard shows live status for the node at ip until the user quits or
// ctx ends.
func RunDashboard(ctx context.Context, ip string, watch WatchFunc) error {
	final, err := tea.NewProgram(NewDashboardModel(ctx, ip, watch), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	if d, ok := final.(DashboardModel); ok && d.Err != nil {
		return d.Err
	}
	return nil
}
