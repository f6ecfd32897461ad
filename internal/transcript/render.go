package transcript

import (
	"fmt"
	"strings"
)

// RenderText renders a parsed result as plain text. The TUI layers its own
// styling on top; plain mode and the export path use this directly.
func RenderText(r Result) string {
	if r.Payload == nil {
		return r.Raw
	}

	var b strings.Builder
	if r.SQL != "" {
		fmt.Fprintf(&b, "SQL: %s\n", r.SQL)
	}

	switch p := r.Payload.(type) {
	case SelectResult:
		b.WriteString(renderSelect(p))
	case StatusResult:
		b.WriteString(p.Summary())
	case ErrorResult:
		fmt.Fprintf(&b, "Error: %s", p.Message)
	case ConfirmationResult:
		b.WriteString(renderConfirmation(p))
	}
	return b.String()
}

// Summary phrases the status outcome, appending the affected-row count when
// the server reported one. Exactly one row reads singular.
func (p StatusResult) Summary() string {
	if p.AffectedRows == nil {
		return p.Message
	}
	n := *p.AffectedRows
	if n == 1 {
		return fmt.Sprintf("%s (1 row)", p.Message)
	}
	return fmt.Sprintf("%s (%d rows)", p.Message, n)
}

func renderSelect(p SelectResult) string {
	if len(p.Rows) == 0 {
		return "no results"
	}
	return Grid(p.Columns, p.Rows)
}

func renderConfirmation(p ConfirmationResult) string {
	var b strings.Builder
	b.WriteString("This statement is destructive and needs confirmation:\n")
	b.WriteString(Grid(p.Preview.Columns, p.Preview.Rows))
	for _, w := range p.Warnings {
		fmt.Fprintf(&b, "\nwarning: %s", w)
	}
	return b.String()
}

// Grid draws an aligned column/row grid with a dashed header separator.
func Grid(columns []string, rows [][]string) string {
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = len(c)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			if i < len(widths) {
				fmt.Fprintf(&b, "%-*s", widths[i], cell)
			} else {
				b.WriteString(cell)
			}
		}
		b.WriteString("\n")
	}

	writeRow(columns)
	sep := make([]string, len(columns))
	for i := range sep {
		sep[i] = strings.Repeat("-", widths[i])
	}
	writeRow(sep)
	for _, row := range rows {
		writeRow(row)
	}
	return strings.TrimRight(b.String(), "\n")
}
