package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/querygenie/querygenie/internal/session"
	"github.com/querygenie/querygenie/internal/transcript"
)

// renderConversation renders the active transcript for the viewport. Parsed
// answers get structured rendering; anything the server said outside the
// SQL/Output grammar falls back to markdown.
func (m *Model) renderConversation() string {
	messages := m.ctrl.Transcript()
	if len(messages) == 0 {
		return systemStyle.Render("Ask a question about your database to get started.")
	}

	var b strings.Builder
	for _, msg := range messages {
		switch msg.Type {
		case session.MessageUser:
			b.WriteString(userStyle.Render("You: " + msg.Content))
		case session.MessageError:
			b.WriteString(errorStyle.Render("Error: " + msg.Content))
		case session.MessageAssistant:
			b.WriteString(m.renderAnswer(msg.Content))
		}
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderAnswer(raw string) string {
	r := transcript.Parse(raw)
	if r.Payload == nil {
		return m.renderMarkdown(raw)
	}

	var b strings.Builder
	if r.SQL != "" {
		b.WriteString(sqlStyle.Render("SQL: " + r.SQL))
		b.WriteString("\n")
	}
	switch p := r.Payload.(type) {
	case transcript.SelectResult:
		if len(p.Rows) == 0 {
			b.WriteString(systemStyle.Render("no results"))
		} else {
			b.WriteString(renderSelectPreview(p))
		}
	case transcript.StatusResult:
		b.WriteString(okStyle.Render(p.Summary()))
	case transcript.ErrorResult:
		b.WriteString(errorStyle.Render("Error: " + p.Message))
	case transcript.ConfirmationResult:
		b.WriteString(renderConfirmationBlock(p))
	}
	return b.String()
}

// renderSelectPreview shows the first rows inline; the full set lives in
// the result browser.
func renderSelectPreview(p transcript.SelectResult) string {
	const previewRows = 10
	rows := p.Rows
	clipped := false
	if len(rows) > previewRows {
		rows = rows[:previewRows]
		clipped = true
	}

	var b strings.Builder
	b.WriteString(transcript.Grid(p.Columns, rows))
	if clipped {
		b.WriteString("\n")
		b.WriteString(systemStyle.Render("… ctrl+t to browse all rows"))
	}
	return b.String()
}

func renderConfirmationBlock(p transcript.ConfirmationResult) string {
	var lines []string
	lines = append(lines, confirmHintStyle.Render("⚠ This statement is destructive and needs confirmation"))
	lines = append(lines, sqlStyle.Render(p.SQL))
	lines = append(lines, transcript.Grid(p.Preview.Columns, p.Preview.Rows))
	for _, w := range p.Warnings {
		lines = append(lines, errorStyle.Render("warning: "+w))
	}
	return confirmBorderStyle.Render(strings.Join(lines, "\n"))
}

// renderMarkdown renders conversational replies through glamour, falling
// back to the raw text when the renderer is unavailable.
func (m *Model) renderMarkdown(text string) string {
	width := m.width - sidebarWidth - 4
	if width <= 0 {
		width = 76
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text
	}
	rendered, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n")
}
