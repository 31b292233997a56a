package app

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gyokuro/filewatch/internal/client"
	"github.com/gyokuro/filewatch/internal/theme"
	"github.com/gyokuro/filewatch/internal/views/console"
	"github.com/gyokuro/filewatch/internal/views/info"
	"github.com/gyokuro/filewatch/internal/views/status"
)

// Form field indexes.
const (
	fieldHost = iota
	fieldPort
	fieldSubscription
	fieldEvent
	fieldCount
)

var fieldLabels = [fieldCount]string{"Host", "Port", "Subscription", "Event"}

// Options configures the root model.
type Options struct {
	Defaults    client.Params // initial form values
	MaxEntries  int
	AutoConnect bool
}

// connectMsg triggers a connect from Init.
type connectMsg struct{}

// Model is the root Bubble Tea model.
type Model struct {
	mgr    *client.Manager
	feed   *client.Feed
	info   *client.InfoClient
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	help   help.Model
	width  int
	height int

	inputs [fieldCount]textinput.Model
	focus  int

	// Sub-views.
	statusBar status.Model
	console   console.Model
	infoPanel info.Model
	showInfo  bool

	autoConnect bool
	animating   bool
}

// New creates the root model. feed must be the Notifier the manager was
// built with; the model drains it after every manager call.
func New(mgr *client.Manager, feed *client.Feed, infoClient *client.InfoClient, opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())
	m := Model{
		mgr:         mgr,
		feed:        feed,
		info:        infoClient,
		ctx:         ctx,
		cancel:      cancel,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		statusBar:   status.New(),
		console:     console.New(opts.MaxEntries),
		infoPanel:   info.New(),
		showInfo:    true,
		autoConnect: opts.AutoConnect,
	}

	values := [fieldCount]string{opts.Defaults.Host, opts.Defaults.Port, opts.Defaults.Subscription, opts.Defaults.Event}
	placeholders := [fieldCount]string{client.DefaultHost, client.DefaultPort, client.DefaultPattern, client.DefaultPattern}
	for i := range m.inputs {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = placeholders[i]
		in.CharLimit = 256
		in.SetValue(values[i])
		m.inputs[i] = in
	}
	m.inputs[fieldHost].Focus()
	if mgr != nil {
		m.statusBar.State = mgr.State()
	}
	return m
}

// Params returns the connection parameters currently in the form.
func (m Model) Params() client.Params {
	return client.Params{
		Host:         m.inputs[fieldHost].Value(),
		Port:         m.inputs[fieldPort].Value(),
		Subscription: m.inputs[fieldSubscription].Value(),
		Event:        m.inputs[fieldEvent].Value(),
	}
}

// Init starts listening for transport signals and fetches the server info.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.mgr != nil {
		cmds = append(cmds, m.mgr.Listen(m.ctx))
	}
	if m.info != nil {
		cmds = append(cmds, m.info.FetchCmd(m.ctx, client.NewTarget(m.Params())))
	}
	if m.autoConnect {
		cmds = append(cmds, func() tea.Msg { return connectMsg{} })
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.infoPanel.SetWidth(msg.Width)
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case connectMsg:
		return m.connect()

	case client.SignalMsg:
		m.mgr.Handle(msg.Signal)
		cmd := m.applyNotifications()
		return m, tea.Batch(cmd, m.mgr.Listen(m.ctx))

	case client.InfoMsg:
		m.infoPanel.Set(msg.Info, msg.Err)
		return m, nil

	case status.TickMsg:
		if m.statusBar.Animate() {
			return m, status.Tick()
		}
		m.animating = false
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.mgr != nil {
			m.mgr.Disconnect()
		}
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Connect):
		return m.connect()

	case key.Matches(msg, m.keys.Disconnect):
		if m.mgr != nil {
			m.mgr.Disconnect()
		}
		return m, m.applyNotifications()

	case key.Matches(msg, m.keys.NextField):
		return m.setFocus((m.focus + 1) % fieldCount)

	case key.Matches(msg, m.keys.PrevField):
		return m.setFocus((m.focus - 1 + fieldCount) % fieldCount)

	case key.Matches(msg, m.keys.ScrollUp):
		m.console.ScrollUp(m.pageSize())
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		m.console.ScrollDown(m.pageSize())
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		m.console.Clear()
		m.statusBar.ResetCounts()
		return m, nil

	case key.Matches(msg, m.keys.Info):
		if m.info == nil {
			return m, nil
		}
		m.infoPanel.Loading = true
		m.showInfo = true
		return m, m.info.FetchCmd(m.ctx, client.NewTarget(m.Params()))

	case key.Matches(msg, m.keys.ToggleInfo):
		m.showInfo = !m.showInfo
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) setFocus(i int) (tea.Model, tea.Cmd) {
	m.inputs[m.focus].Blur()
	m.focus = i
	return m, m.inputs[m.focus].Focus()
}

// connect starts a new attempt with the form values. The console is cleared
// once the transport has been created.
func (m Model) connect() (tea.Model, tea.Cmd) {
	if m.mgr == nil {
		return m, nil
	}
	m.mgr.Connect(m.Params())
	if m.mgr.State() == client.StateConnecting {
		m.console.Clear()
		m.statusBar.ResetCounts()
		m.statusBar.Status = "Connecting..."
	}
	if t, ok := m.mgr.Target(); ok {
		m.statusBar.URL = t.URL()
	}
	return m, m.applyNotifications()
}

// applyNotifications moves buffered manager notifications into the views.
func (m *Model) applyNotifications() tea.Cmd {
	var cmd tea.Cmd
	if m.feed != nil {
		for _, n := range m.feed.Drain() {
			switch n.Type {
			case client.NoteStatus:
				m.statusBar.Status = n.Status
				m.console.Add(console.KindStatus, n.Status)
			case client.NoteError:
				m.statusBar.Status = "Error"
				m.console.Add(console.KindError, "Error: "+n.Err.Error())
			case client.NoteEvent:
				m.statusBar.Record(n.Event.Kind)
				m.console.Add(n.Event.Kind.String(), n.Event.Raw)
				if !m.animating {
					m.animating = true
					cmd = status.Tick()
				}
			}
		}
	}
	if m.mgr != nil {
		m.statusBar.State = m.mgr.State()
	}
	return cmd
}

func (m Model) pageSize() int {
	if n := m.height / 2; n > 1 {
		return n
	}
	return 1
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	top := []string{m.statusBar.View(), m.renderForm()}
	if m.showInfo {
		top = append(top, m.infoPanel.View())
	}
	hints := "  " + m.help.View(m.keys)

	header := lipgloss.JoinVertical(lipgloss.Left, top...)
	consoleHeight := m.height - lipgloss.Height(header) - lipgloss.Height(hints) - 2
	if consoleHeight < 4 {
		consoleHeight = 4
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, m.console.View(m.width, consoleHeight), hints)
}

func (m Model) renderForm() string {
	var lines []string
	for i, in := range m.inputs {
		label := theme.StyleLabel.Render(fieldLabels[i])
		if i == m.focus {
			label = theme.StyleFocused.Width(14).Render("> " + fieldLabels[i])
		}
		lines = append(lines, "  "+label+in.View())
	}
	return strings.Join(lines, "\n")
}
