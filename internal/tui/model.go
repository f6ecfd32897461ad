package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/querygenie/querygenie/internal/api"
	"github.com/querygenie/querygenie/internal/chat"
	"github.com/querygenie/querygenie/internal/session"
	"github.com/querygenie/querygenie/internal/transcript"
)

type uiMode int

const (
	modeChat uiMode = iota
	modeConnect
	modeConfirm
	modeResults
	modeRename
)

type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

const statusBarHeight = 1
const inputHeight = 1

// Options wires the TUI to an authenticated client session.
type Options struct {
	Client     *api.Client
	Controller *chat.Controller
	Store      *session.Store
	User       api.User
	Conn       api.ConnectionConfig
	DataDir    string
	Version    string
}

// Model is the bubbletea model managing the full chat UI state.
type Model struct {
	client *api.Client
	ctrl   *chat.Controller
	store  *session.Store
	user   api.User
	conn   api.ConnectionConfig

	viewport viewport.Model
	input    textinput.Model
	rename   textinput.Model
	spin     spinner.Model

	side    sidebar
	form    connectForm
	results *resultView

	// lastSelect is the most recent tabular answer; ctrl+t opens it in the
	// result browser.
	lastSelect *transcript.SelectResult

	mode     uiMode
	focus    focusArea
	busy     bool
	editing  int64 // message id being edited, 0 when composing fresh
	renameID int64

	flash    string
	width    int
	height   int
	version  string
	quitting bool
}

// NewModel creates the initial bubbletea model.
func NewModel(opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "ask about your database"
	ti.CharLimit = 4096
	ti.Focus()

	rn := textinput.New()
	rn.Prompt = "rename: "
	rn.CharLimit = 120

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	exportDirOverride = opts.DataDir

	return Model{
		client:   opts.Client,
		ctrl:     opts.Controller,
		store:    opts.Store,
		user:     opts.User,
		conn:     opts.Conn,
		viewport: viewport.New(80, 24),
		input:    ti,
		rename:   rn,
		spin:     sp,
		version:  opts.Version,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick, m.loadSessionsCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshViewport()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		if m.busy {
			// Pick up the optimistic user message while the reply is in
			// flight.
			m.refreshViewport()
		}
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		if cmd := m.handleKey(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}

	case sessionsMsg:
		if msg.err != nil {
			m.flash = "could not load chats: " + msg.err.Error()
		} else {
			m.side.setSessions(msg.sessions, msg.fromCache)
			if msg.fromCache {
				m.flash = "server unreachable, showing cached chats"
			}
		}

	case connectMsg:
		if msg.err != nil {
			m.form.fail(msg.err)
		} else {
			m.conn = msg.cfg
			m.ctrl.SetConnected(true)
			m.mode = modeChat
			m.flash = fmt.Sprintf("connected to %s@%s", msg.cfg.Database, msg.cfg.Host)
			cmds = append(cmds, m.focusInput())
		}

	case disconnectMsg:
		// The server drops its connection either way; reflect that locally.
		m.ctrl.SetConnected(false)
		if msg.err != nil {
			m.flash = "disconnect: " + msg.err.Error()
		} else {
			m.flash = "disconnected"
		}

	case turnMsg:
		m.busy = false
		cmds = append(cmds, m.applyTurn(msg))

	case deleteMsg:
		if msg.err != nil {
			m.flash = "delete failed: " + msg.err.Error()
		} else {
			if m.ctrl.ClearActiveIf(msg.id) {
				m.side.activeID = 0
				m.refreshViewport()
			}
			m.side.setSessions(m.store.Summaries(), false)
			m.flash = "chat deleted"
		}

	case renameMsg:
		if msg.err != nil {
			m.flash = "rename failed: " + msg.err.Error()
		} else {
			m.side.setSessions(m.store.Summaries(), false)
		}

	case exportMsg:
		if msg.err != nil {
			m.flash = "export failed: " + msg.err.Error()
		} else if m.results != nil {
			m.results.status = "saved " + msg.path
		}
	}

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	return m, tea.Batch(cmds...)
}

// handleKey dispatches a key event by UI mode.
func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	m.flash = ""

	switch m.mode {
	case modeConnect:
		if msg.String() == "esc" && !m.form.waiting {
			m.mode = modeChat
			return m.focusInput()
		}
		cmd, submitted := m.form.update(msg)
		if submitted {
			return tea.Batch(cmd, m.connectCmd(m.form.config()))
		}
		return cmd

	case modeConfirm:
		switch msg.String() {
		case "y", "enter":
			m.mode = modeChat
			m.busy = true
			return m.confirmCmd(true)
		case "n", "esc":
			m.mode = modeChat
			m.busy = true
			return m.confirmCmd(false)
		}
		return nil

	case modeResults:
		cmd, closed := m.results.update(msg)
		if closed {
			m.mode = modeChat
			return m.focusInput()
		}
		return cmd

	case modeRename:
		switch msg.String() {
		case "enter":
			title := strings.TrimSpace(m.rename.Value())
			m.mode = modeChat
			m.rename.Blur()
			if title == "" {
				return nil
			}
			return m.renameCmd(m.renameID, title)
		case "esc":
			m.mode = modeChat
			m.rename.Blur()
			return nil
		}
		var cmd tea.Cmd
		m.rename, cmd = m.rename.Update(msg)
		return cmd
	}

	return m.handleChatKey(msg)
}

func (m *Model) handleChatKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab":
		if m.focus == focusInput {
			m.focus = focusSidebar
			m.input.Blur()
		} else {
			return m.focusInput()
		}
		return nil
	case "ctrl+n":
		m.newConversation()
		return m.focusInput()
	case "ctrl+b":
		m.form = newConnectForm(m.conn)
		m.mode = modeConnect
		m.input.Blur()
		return textinput.Blink
	case "ctrl+x":
		if m.ctrl.Connected() {
			return m.disconnectCmd()
		}
		return nil
	case "ctrl+t":
		if m.lastSelect != nil {
			m.results = newResultView(*m.lastSelect)
			m.mode = modeResults
			m.input.Blur()
		}
		return nil
	case "ctrl+e":
		return m.beginEdit()
	case "esc":
		if m.editing != 0 {
			m.editing = 0
			m.input.SetValue("")
		}
		return nil
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}

	if msg.String() == "enter" {
		return m.submit()
	}
	if m.busy {
		// Input is frozen while a reply is in flight.
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) handleSidebarKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "k":
		m.side.moveUp()
	case "down", "j":
		m.side.moveDown()
	case "enter":
		if s, ok := m.side.selected(); ok {
			if _, err := m.ctrl.SwitchTo(s.ID); err != nil {
				m.flash = err.Error()
				return nil
			}
			m.side.activeID = s.ID
			m.lastSelect = nil
			m.editing = 0
			m.refreshViewport()
			return m.focusInput()
		}
	case "n":
		m.newConversation()
		return m.focusInput()
	case "d":
		if s, ok := m.side.selected(); ok {
			return m.deleteCmd(s.ID)
		}
	case "r":
		if s, ok := m.side.selected(); ok {
			m.renameID = s.ID
			m.rename.SetValue(s.Title)
			m.mode = modeRename
			return m.rename.Focus()
		}
	}
	return nil
}

// submit sends the composed question, or replays the edited one.
func (m *Model) submit() tea.Cmd {
	if m.busy {
		return nil
	}
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	m.input.SetValue("")
	m.busy = true

	if id := m.editing; id != 0 {
		m.editing = 0
		return tea.Batch(m.editCmd(id, text), m.spin.Tick)
	}
	return tea.Batch(m.sendCmd(text), m.spin.Tick)
}

// beginEdit loads the most recent question back into the input. Submitting
// rewrites history from that point.
func (m *Model) beginEdit() tea.Cmd {
	if m.busy {
		return nil
	}
	conv := m.ctrl.Active()
	if conv == nil {
		return nil
	}
	last, ok := conv.LastUserMessage()
	if !ok {
		return nil
	}
	m.editing = last.ID
	m.input.SetValue(last.Content)
	m.input.CursorEnd()
	m.flash = "editing last question, esc to cancel"
	return m.focusInput()
}

func (m *Model) applyTurn(msg turnMsg) tea.Cmd {
	if msg.err != nil {
		// A stale reply means the user already moved on; anything else is
		// worth a notice.
		if !errors.Is(msg.err, chat.ErrStaleReply) {
			m.flash = msg.err.Error()
		}
		m.refreshViewport()
		return nil
	}

	turn := msg.turn
	if conv := m.ctrl.Active(); conv != nil {
		m.side.activeID = conv.ID
	}
	m.side.setSessions(m.store.Summaries(), false)

	if turn != nil {
		if p, ok := turn.Result.Payload.(transcript.SelectResult); ok && len(p.Rows) > 0 {
			m.lastSelect = &p
		}
		if turn.SaveErr != nil {
			m.flash = "chat not saved: " + turn.SaveErr.Error()
		}
	}
	if m.ctrl.Pending() != nil {
		m.mode = modeConfirm
		m.input.Blur()
	}
	m.refreshViewport()
	return nil
}

func (m *Model) newConversation() {
	m.ctrl.NewConversation()
	m.side.activeID = 0
	m.lastSelect = nil
	m.editing = 0
	m.refreshViewport()
}

func (m *Model) focusInput() tea.Cmd {
	m.focus = focusInput
	m.input.Focus()
	return textinput.Blink
}

func (m *Model) layout() {
	vpHeight := m.height - statusBarHeight - inputHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	vpWidth := m.width - sidebarWidth - 2
	if vpWidth < 20 {
		vpWidth = 20
	}
	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight
	m.side.height = vpHeight
	m.input.Width = m.width - 4
}

func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderConversation())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	switch m.mode {
	case modeConnect:
		return m.form.view() + "\n\n" + m.statusBar()
	case modeResults:
		return m.results.view(m.width) + "\n" + m.statusBar()
	}

	main := lipgloss.JoinHorizontal(lipgloss.Top,
		m.side.view(m.focus == focusSidebar),
		m.viewport.View(),
	)
	return main + "\n" + m.statusBar() + "\n" + m.inputLine()
}

func (m Model) inputLine() string {
	switch {
	case m.mode == modeConfirm:
		return confirmHintStyle.Render("  run this statement? y = run • n = cancel")
	case m.mode == modeRename:
		return m.rename.View()
	case m.busy:
		return m.spin.View() + " waiting for reply..."
	default:
		return m.input.View()
	}
}

func (m Model) statusBar() string {
	conn := "not connected"
	if m.ctrl.Connected() {
		conn = fmt.Sprintf("%s@%s", m.conn.Database, m.conn.Host)
	}
	status := fmt.Sprintf("querygenie %s • %s • %s", m.version, m.user.Email, conn)
	if m.flash != "" {
		status += " • " + m.flash
	} else if m.focus == focusSidebar && m.mode == modeChat {
		status += " • enter open • n new • d delete • r rename • tab back"
	} else if m.mode == modeChat {
		status += " • tab chats • ctrl+n new • ctrl+b connect • ctrl+e edit • ctrl+t rows"
	}
	return statusBarStyle.Width(m.width).Render(status)
}
