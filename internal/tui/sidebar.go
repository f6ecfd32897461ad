package tui

import (
	"fmt"
	"strings"

	"github.com/querygenie/querygenie/internal/session"
)

const sidebarWidth = 26

// sidebar lists the user's chat sessions, most recently saved first. It holds
// value summaries rather than live sessions so drawing never races a save or
// rename running on a command goroutine.
type sidebar struct {
	sessions []session.Summary
	cursor   int
	activeID int64
	height   int
	cached   bool // showing the offline mirror
}

func (s *sidebar) setSessions(list []session.Summary, cached bool) {
	s.sessions = list
	s.cached = cached
	s.clamp()
}

func (s *sidebar) clamp() {
	if s.cursor >= len(s.sessions) {
		s.cursor = len(s.sessions) - 1
	}
	if s.cursor < 0 {
		s.cursor = 0
	}
}

func (s *sidebar) moveUp()   { s.cursor--; s.clamp() }
func (s *sidebar) moveDown() { s.cursor++; s.clamp() }

// selected returns the session under the cursor, if any.
func (s *sidebar) selected() (session.Summary, bool) {
	if len(s.sessions) == 0 {
		return session.Summary{}, false
	}
	return s.sessions[s.cursor], true
}

func (s *sidebar) view(focused bool) string {
	var b strings.Builder

	title := "Chats"
	if s.cached {
		title = "Chats (offline)"
	}
	b.WriteString(sidebarTitleStyle.Render(title))
	b.WriteString("\n\n")

	if len(s.sessions) == 0 {
		b.WriteString(sidebarItemStyle.Render("no chats yet"))
	}

	visible := s.height - 3
	if visible < 1 {
		visible = 1
	}
	start := 0
	if s.cursor >= visible {
		start = s.cursor - visible + 1
	}
	end := start + visible
	if end > len(s.sessions) {
		end = len(s.sessions)
	}

	for i := start; i < end; i++ {
		sess := s.sessions[i]
		label := truncateRunes(sess.Title, sidebarWidth-4)

		marker := "  "
		if sess.ID == s.activeID {
			marker = "▌ "
		}
		line := marker + label

		switch {
		case focused && i == s.cursor:
			line = sidebarCursorStyle.Render("> " + label)
		case sess.ID == s.activeID:
			line = sidebarActiveStyle.Render(line)
		default:
			line = sidebarItemStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if hidden := len(s.sessions) - end; hidden > 0 {
		b.WriteString(sidebarItemStyle.Render(fmt.Sprintf("  +%d more", hidden)))
	}

	return sidebarStyle.Width(sidebarWidth).Height(s.height).Render(b.String())
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
