package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/nodecfg/internal/catalog"
	"github.com/muurk/nodecfg/internal/debounce"
	"github.com/muurk/nodecfg/internal/deviceconfig"
	"github.com/muurk/nodecfg/internal/document"
	"github.com/muurk/nodecfg/internal/fieldfmt"
	"github.com/muurk/nodecfg/internal/rules"
	"github.com/muurk/nodecfg/internal/wizard"
)

type submitDoneMsg struct{ err error }

type suggestionsMsg struct {
	query   string
	results []debounce.Suggestion
}

// editorKeyMap defines key bindings for the editor
type editorKeyMap struct {
	Up        key.Binding
	Down      key.Binding
	Edit      key.Binding
	Next      key.Binding
	Back      key.Binding
	AddDevice key.Binding
	AddSensor key.Binding
	AddRule   key.Binding
	Rekey     key.Binding
	Delete    key.Binding
	IR        key.Binding
	Submit    key.Binding
	Help      key.Binding
	Quit      key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k editorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Edit, k.Next, k.Back, k.Submit, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k editorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Edit, k.Next, k.Back},
		{k.AddDevice, k.AddSensor, k.Delete, k.IR},
		{k.AddRule, k.Rekey, k.Submit, k.Help, k.Quit},
	}
}

// editingKeyMap defines key bindings while a field is being typed
type editingKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
	Accept  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k editingKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Confirm, k.Cancel, k.Accept}
}

// FullHelp returns keybindings for the expanded help view
func (k editingKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Confirm, k.Cancel, k.Accept}}
}

func newEditorKeys() editorKeyMap {
	return editorKeyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Edit:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "edit")),
		Next:      key.NewBinding(key.WithKeys("tab", "n"), key.WithHelp("tab", "next page")),
		Back:      key.NewBinding(key.WithKeys("shift+tab", "b"), key.WithHelp("shift+tab", "back")),
		AddDevice: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add device")),
		AddSensor: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "add sensor")),
		AddRule:   key.NewBinding(key.WithKeys("+"), key.WithHelp("+", "add schedule rule")),
		Rekey:     key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "change trigger")),
		Delete:    key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "delete")),
		IR:        key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "toggle IR blaster")),
		Submit:    key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "submit")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Quit:      key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "quit")),
	}
}

// EditorModel is the three-page configuration editor. All document and
// controller access happens in Update; while a submission is in flight the
// model ignores input so the upload goroutine has sole use of them.
type EditorModel struct {
	Controller *wizard.Controller
	Uploader   wizard.Uploader
	NodeLabel  string

	rows   []row
	cursor int
	offset int

	editing  bool
	rekeying bool
	input    textinput.Model

	search      *debounce.LocationSearch
	suggest     chan suggestionsMsg
	suggestions []debounce.Suggestion

	submitting bool
	submitErr  error
	status     string

	Width   int
	Height  int
	spinner spinner.Model
	help    help.Model
	keys    editorKeyMap
	editKey editingKeyMap
}

// EditorOptions configures an EditorModel.
type EditorOptions struct {
	Uploader  wizard.Uploader
	NodeLabel string

	// Geocoder enables location suggestions; nil disables them
	Geocoder       debounce.Geocoder
	DebounceWindow time.Duration
}

// NewEditorModel starts an editing session on doc.
func NewEditorModel(doc *document.Document, opts EditorOptions) EditorModel {
	input := textinput.New()
	input.CharLimit = 128
	input.Width = 40

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	m := EditorModel{
		Controller: wizard.New(doc),
		Uploader:   opts.Uploader,
		NodeLabel:  opts.NodeLabel,
		input:      input,
		spinner:    s,
		help:       help.New(),
		keys:       newEditorKeys(),
		editKey: editingKeyMap{
			Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
			Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
			Accept:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "use suggestion")),
		},
	}

	if opts.Geocoder != nil {
		ch := make(chan suggestionsMsg)
		m.suggest = ch
		m.search = debounce.NewLocationSearch(opts.Geocoder, opts.DebounceWindow, func(q string, results []debounce.Suggestion) {
			select {
			case ch <- suggestionsMsg{query: q, results: results}:
			case <-time.After(5 * time.Second):
			}
		})
	}

	m.refresh()
	return m
}

// Init implements tea.Model
func (m EditorModel) Init() tea.Cmd {
	return m.waitForSuggestions()
}

func (m EditorModel) waitForSuggestions() tea.Cmd {
	if m.suggest == nil {
		return nil
	}
	ch := m.suggest
	return func() tea.Msg { return <-ch }
}

// Done reports whether the document was submitted.
func (m EditorModel) Done() bool {
	return m.Controller.Done()
}

func (m *EditorModel) refresh() {
	m.rows = buildRows(m.Controller.Document(), m.Controller.Page())
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if visible := m.visibleRows(); m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
}

func (m EditorModel) current() (row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return row{}, false
	}
	return m.rows[m.cursor], true
}

// Update handles messages for the editor
func (m EditorModel) Update(msg tea.Msg) (EditorModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		return m, nil

	case suggestionsMsg:
		if m.editing && m.isLocationRow() && msg.query == m.input.Value() {
			m.suggestions = msg.results
		}
		return m, m.waitForSuggestions()

	case submitDoneMsg:
		m.submitting = false
		m.submitErr = msg.err
		if msg.err == nil {
			m.status = ""
			m.stopSearch()
		} else if errors.Is(msg.err, wizard.ErrNotSubmittable) {
			m.status = "Fix the highlighted fields before submitting"
			m.submitErr = nil
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.submitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.submitting || m.Done() {
			if m.Done() {
				return m, tea.Quit
			}
			return m, nil
		}
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateNormal(msg)
	}
	return m, nil
}

func (m EditorModel) updateNormal(msg tea.KeyMsg) (EditorModel, tea.Cmd) {
	ctrl := m.Controller
	doc := ctrl.Document()
	m.status = ""

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Next):
		if ctrl.Next() {
			m.cursor, m.offset = 0, 0
		} else if ctrl.Page() != wizard.PageSchedule {
			m.status = fmt.Sprintf("%d field(s) need attention", len(ctrl.InvalidFields(ctrl.Page())))
		}
	case key.Matches(msg, m.keys.Back):
		if ctrl.Back() {
			m.cursor, m.offset = 0, 0
		}

	case key.Matches(msg, m.keys.Edit):
		r, ok := m.current()
		if !ok {
			break
		}
		if r.kind == rowType {
			if next, ok := nextType(doc, r.id); ok {
				m.report(doc.SetType(r.id, next))
			} else {
				m.status = "No types available for " + r.id
			}
			break
		}
		if r.editable() {
			return m.startEditing(r.value, false)
		}

	case key.Matches(msg, m.keys.AddDevice) && ctrl.Page() == wizard.PageIdentity:
		m.jumpTo(doc.AddInstance(catalog.Device))
	case key.Matches(msg, m.keys.AddSensor) && ctrl.Page() == wizard.PageIdentity:
		m.jumpTo(doc.AddInstance(catalog.Sensor))

	case key.Matches(msg, m.keys.IR) && ctrl.Page() == wizard.PageIdentity:
		if doc.IRBlaster() == nil {
			doc.EnableIRBlaster("")
		} else {
			doc.DisableIRBlaster()
		}

	case key.Matches(msg, m.keys.Delete):
		r, ok := m.current()
		if !ok {
			break
		}
		switch {
		case ctrl.Page() == wizard.PageSchedule && r.kind == rowSchedule:
			m.report(doc.DeleteScheduleRule(r.id, r.field))
		case ctrl.Page() == wizard.PageIdentity && r.id != "":
			doc.RemoveInstance(r.id)
		}

	case key.Matches(msg, m.keys.AddRule) && ctrl.Page() == wizard.PageSchedule:
		if r, ok := m.current(); ok && r.id != "" {
			if _, err := doc.AddScheduleRule(r.id); errors.Is(err, document.ErrKeyConflict) {
				m.status = "Set the time of the new trigger first"
			} else {
				m.report(err)
			}
		}

	case key.Matches(msg, m.keys.Rekey) && ctrl.Page() == wizard.PageSchedule:
		if r, ok := m.current(); ok && r.kind == rowSchedule {
			initial := r.field
			if initial == document.PlaceholderTrigger {
				initial = ""
			}
			return m.startEditing(initial, true)
		}

	case key.Matches(msg, m.keys.Submit):
		if ctrl.Page() != wizard.PageSchedule {
			m.status = "Submit from the schedule page"
			break
		}
		return m.submit()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Quit):
		m.stopSearch()
		return m, tea.Quit
	}

	m.refresh()
	return m, nil
}

func (m *EditorModel) jumpTo(id string) {
	m.refresh()
	for i, r := range m.rows {
		if r.id == id && r.kind == rowType {
			m.cursor = i
			return
		}
	}
}

func (m *EditorModel) report(err error) {
	if err != nil {
		m.status = err.Error()
	}
}

func (m EditorModel) startEditing(value string, rekey bool) (EditorModel, tea.Cmd) {
	m.editing = true
	m.rekeying = rekey
	m.suggestions = nil
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Placeholder = ""
	if rekey {
		m.input.Placeholder = "HH:MM or sunrise/sunset"
	}
	m.input.EchoMode = textinput.EchoNormal
	if r, _ := m.current(); r.kind == rowMetadata && r.field == "password" {
		m.input.EchoMode = textinput.EchoPassword
	}
	return m, m.input.Focus()
}

func (m EditorModel) isLocationRow() bool {
	r, ok := m.current()
	return ok && r.kind == rowMetadata && r.field == "location"
}

func (m EditorModel) isIPRow() bool {
	r, ok := m.current()
	return ok && r.kind == rowField && r.field == document.FieldIP
}

func (m *EditorModel) stopEditing() {
	m.editing = false
	m.rekeying = false
	m.suggestions = nil
	m.input.Blur()
	if m.search != nil {
		m.search.Stop()
	}
}

func (m *EditorModel) stopSearch() {
	if m.search != nil {
		m.search.Stop()
	}
}

func (m EditorModel) updateEditing(msg tea.KeyMsg) (EditorModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.editKey.Cancel):
		if r, ok := m.current(); ok && m.rekeying {
			m.Controller.Document().ClearConflict(r.id)
		}
		m.stopEditing()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.editKey.Confirm):
		r, _ := m.current()
		m.commit(r, m.input.Value())
		m.stopEditing()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.editKey.Accept) && len(m.suggestions) > 0:
		s := m.suggestions[0]
		m.input.SetValue(s.Name)
		m.input.CursorEnd()
		m.Controller.Document().SetGPS(s.Lat, s.Lon)
		m.suggestions = nil
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	switch {
	case m.isIPRow() && !m.rekeying:
		m.input.SetValue(fieldfmt.FormatIP(m.input.Value()))
		m.input.CursorEnd()
	case m.isLocationRow() && m.search != nil:
		m.search.Input(m.input.Value())
	}
	return m, cmd
}

// commit writes an edited value back to the document.
func (m *EditorModel) commit(r row, value string) {
	doc := m.Controller.Document()
	if m.rekeying {
		err := doc.RekeyScheduleRule(r.id, r.field, value)
		if errors.Is(err, document.ErrKeyConflict) {
			m.status = fmt.Sprintf("%s already has a rule at %s", r.id, value)
			return
		}
		m.report(err)
		return
	}

	switch r.kind {
	case rowMetadata:
		m.report(doc.SetMetadata(r.field, value))
	case rowIRPin:
		doc.EnableIRBlaster(value)
	case rowField:
		m.report(doc.SetField(r.id, r.field, value))
	case rowRule:
		m.report(doc.SetField(r.id, document.FieldDefaultRule, value))
	case rowSchedule:
		m.report(doc.EditScheduleRule(r.id, r.field, rules.Value(value)))
	}
}

func (m EditorModel) submit() (EditorModel, tea.Cmd) {
	if m.Uploader == nil {
		m.status = "No node to submit to"
		return m, nil
	}
	if !m.Controller.Submittable() {
		// Sets the highlight flag
		err := m.Controller.Submit(context.Background(), m.Uploader)
		m.status = err.Error()
		m.refresh()
		return m, nil
	}

	m.submitting = true
	m.submitErr = nil
	ctrl, up := m.Controller, m.Uploader
	return m, tea.Batch(
		func() tea.Msg {
			return submitDoneMsg{err: ctrl.Submit(context.Background(), up)}
		},
		m.spinner.Tick,
	)
}

// View renders the editor
func (m EditorModel) View() string {
	var helpText string
	if m.editing {
		helpText = m.help.View(m.editKey)
	} else {
		helpText = m.help.View(m.keys)
	}
	return RenderApplicationContainer(m.renderContent(), m.NodeLabel, helpText, m.Width, m.Height)
}

func (m EditorModel) renderContent() string {
	if m.Done() {
		return lipgloss.JoinVertical(lipgloss.Left,
			RenderTitle("CONFIGURATION SUBMITTED"),
			"",
			RenderSuccess("The node accepted the new configuration"),
			"",
			SubtitleStyle.Render("Press any key to exit."),
		)
	}

	var b strings.Builder
	b.WriteString(m.renderPageTabs())
	b.WriteString("\n\n")

	if m.submitting {
		b.WriteString(StatusStyle.Render(m.spinner.View() + " Uploading configuration..."))
		b.WriteString("\n\n")
	}
	if m.submitErr != nil {
		b.WriteString(RenderError(deviceconfig.GetShortErrorMessage(m.submitErr)))
		b.WriteString("\n")
		b.WriteString(StatusStyle.Render(deviceconfig.GetTroubleshootingHint(m.submitErr)))
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderRows())

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(IncompleteStyle.PaddingLeft(2).Render(m.status))
		b.WriteString("\n")
	}
	return b.String()
}

func (m EditorModel) renderPageTabs() string {
	pages := []struct {
		page  wizard.Page
		label string
	}{
		{wizard.PageIdentity, "1 Identity"},
		{wizard.PageRules, "2 Default rules"},
		{wizard.PageSchedule, "3 Schedule"},
	}
	tabs := make([]string, 0, len(pages))
	for _, p := range pages {
		style := LabelStyle
		if p.page == m.Controller.Page() {
			style = SelectedMenuItemStyle.PaddingLeft(0)
		}
		tabs = append(tabs, style.Render(p.label))
	}
	return lipgloss.NewStyle().PaddingLeft(2).Render(strings.Join(tabs, "   "))
}

// visibleRows is how many rows fit between the tabs and the footer.
func (m EditorModel) visibleRows() int {
	n := m.Height - 14
	if n < 5 {
		n = 5
	}
	return n
}

func (m EditorModel) renderRows() string {
	if len(m.rows) == 0 {
		msg := "No instances yet. Press a to add a device or s to add a sensor."
		if m.Controller.Page() != wizard.PageIdentity {
			msg = "No instances to configure."
		}
		return SubtitleStyle.Render(msg) + "\n"
	}

	marked := make(map[wizard.FieldRef]bool)
	for _, ref := range m.Controller.Highlighted() {
		marked[ref] = true
	}

	offset := m.offset
	visible := m.visibleRows()
	if m.cursor < offset {
		offset = m.cursor
	}
	if m.cursor >= offset+visible {
		offset = m.cursor - visible + 1
	}
	end := offset + visible
	if end > len(m.rows) {
		end = len(m.rows)
	}

	doc := m.Controller.Document()
	var b strings.Builder
	for i := offset; i < end; i++ {
		r := m.rows[i]
		selected := i == m.cursor

		if r.kind == rowHeader {
			line := SectionStyle.Render(r.label)
			if selected {
				line = SelectedMenuItemStyle.Render("→ " + r.label)
			}
			b.WriteString(line)
			b.WriteString("\n")
			continue
		}

		label := fmt.Sprintf("%-18s", r.label)
		value := displayValue(doc, r)
		if value == "" {
			value = LabelStyle.Render("(empty)")
		}
		if marked[r.ref()] {
			value = InvalidStyle.Render("✗ " + value)
		}

		prefix := "    "
		if selected {
			prefix = "  → "
		}
		if selected && m.editing {
			b.WriteString(prefix + LabelStyle.Render(label) + " " + EditingStyle.Render(m.input.View()))
			b.WriteString("\n")
			for _, s := range m.suggestions {
				b.WriteString(StatusStyle.Render("      " + s.Name))
				b.WriteString("\n")
			}
			continue
		}
		b.WriteString(prefix + LabelStyle.Render(label) + " " + value)
		b.WriteString("\n")
	}
	return b.String()
}
