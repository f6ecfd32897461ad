package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/querygenie/querygenie/internal/transcript"
)

// RenderPlain renders one server reply for non-interactive output. Parsed
// answers use the plain-text renderer; conversational replies go through
// glamour when color is wanted (stdout is a terminal), raw otherwise.
func RenderPlain(raw string, color bool) string {
	r := transcript.Parse(raw)
	if r.Payload != nil {
		return transcript.RenderText(r)
	}
	if !color {
		return raw
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return raw
	}
	rendered, err := renderer.Render(raw)
	if err != nil {
		return raw
	}
	return strings.TrimRight(rendered, "\n")
}
