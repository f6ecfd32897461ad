package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/querygenie/querygenie/internal/api"
	"github.com/querygenie/querygenie/internal/chat"
	"github.com/querygenie/querygenie/internal/session"
)

// ---------- messages produced by async commands ----------

type sessionsMsg struct {
	sessions  []session.Summary
	fromCache bool
	err       error
}

type connectMsg struct {
	cfg api.ConnectionConfig
	err error
}

type disconnectMsg struct{ err error }

type turnMsg struct {
	turn *chat.Turn
	err  error
}

type deleteMsg struct {
	id  int64
	err error
}

type renameMsg struct {
	id  int64
	err error
}

type exportMsg struct {
	path string
	err  error
}

// ---------- commands ----------

func (m *Model) loadSessionsCmd() tea.Cmd {
	return func() tea.Msg {
		_, err := m.store.Load(context.Background())
		if err == nil {
			return sessionsMsg{sessions: m.store.Summaries()}
		}
		if !api.IsUnreachable(err) {
			return sessionsMsg{err: err}
		}
		// Server down: fall back to the local mirror so history is still
		// browsable. The next successful load replaces it.
		if _, cerr := m.store.LoadCached(); cerr != nil {
			return sessionsMsg{err: err}
		}
		return sessionsMsg{sessions: m.store.Summaries(), fromCache: true}
	}
}

func (m *Model) connectCmd(cfg api.ConnectionConfig) tea.Cmd {
	return func() tea.Msg {
		err := m.client.Connect(context.Background(), cfg)
		return connectMsg{cfg: cfg, err: err}
	}
}

func (m *Model) disconnectCmd() tea.Cmd {
	return func() tea.Msg {
		return disconnectMsg{err: m.client.Disconnect(context.Background())}
	}
}

func (m *Model) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		turn, err := m.ctrl.Send(context.Background(), text)
		return turnMsg{turn: turn, err: err}
	}
}

func (m *Model) editCmd(messageID int64, text string) tea.Cmd {
	return func() tea.Msg {
		turn, err := m.ctrl.Edit(context.Background(), messageID, text)
		return turnMsg{turn: turn, err: err}
	}
}

func (m *Model) confirmCmd(approve bool) tea.Cmd {
	return func() tea.Msg {
		turn, err := m.ctrl.Confirm(context.Background(), approve)
		return turnMsg{turn: turn, err: err}
	}
}

func (m *Model) deleteCmd(id int64) tea.Cmd {
	return func() tea.Msg {
		return deleteMsg{id: id, err: m.store.Delete(context.Background(), id)}
	}
}

func (m *Model) renameCmd(id int64, title string) tea.Cmd {
	return func() tea.Msg {
		return renameMsg{id: id, err: m.store.Rename(context.Background(), id, title)}
	}
}
