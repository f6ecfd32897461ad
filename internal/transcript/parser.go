// Package transcript parses the semi-structured assistant response grammar:
// a labeled SQL fragment in backticks followed by a labeled JSON payload,
//
//	SQL: `SELECT ...`
//	Output: {"type": "...", ...}
//
// Parsing is best-effort. A missing or malformed payload never fails; the
// result falls back to the raw text and the renderer shows it verbatim.
package transcript

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind tags the closed set of payload variants.
type Kind string

const (
	KindSelect       Kind = "select"
	KindStatus       Kind = "status"
	KindError        Kind = "error"
	KindConfirmation Kind = "confirmation_required"
)

// Payload is one of SelectResult, StatusResult, ErrorResult or
// ConfirmationResult.
type Payload interface {
	Kind() Kind
}

// Table is a generic column/row grid; the server uses it both for select
// results and for the destructive-statement preview.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"-"`
}

// SelectResult is a tabular query result.
type SelectResult struct {
	Columns  []string
	Rows     [][]string
	RowCount int
}

func (SelectResult) Kind() Kind { return KindSelect }

// StatusResult reports the outcome of a non-SELECT statement.
// AffectedRows is nil when the server omitted it.
type StatusResult struct {
	Message      string
	AffectedRows *int
}

func (StatusResult) Kind() Kind { return KindStatus }

// ErrorResult means generation or execution failed server-side.
type ErrorResult struct {
	Message string
}

func (ErrorResult) Kind() Kind { return KindError }

// ConfirmationResult signals a destructive statement awaiting explicit user
// approval. Preview describes what the statement would touch.
type ConfirmationResult struct {
	SQL      string
	Preview  Table
	Warnings []string
}

func (ConfirmationResult) Kind() Kind { return KindConfirmation }

// Result is a parsed assistant response. Payload is nil whenever the JSON
// blob was absent, malformed or of an unknown type; Raw always holds the
// original text for fallback display.
type Result struct {
	SQL     string
	Payload Payload
	Raw     string
}

const (
	sqlLabel    = "SQL:"
	outputLabel = "Output:"
)

// Parse extracts the SQL fragment and structured payload from an assistant
// message. It never returns an error.
func Parse(text string) Result {
	res := Result{Raw: text}
	res.SQL = parseSQL(text)
	res.Payload = parsePayload(text)
	return res
}

func parseSQL(text string) string {
	i := strings.Index(text, sqlLabel)
	if i < 0 {
		return ""
	}
	rest := text[i+len(sqlLabel):]
	open := strings.Index(rest, "`")
	if open < 0 {
		return ""
	}
	rest = rest[open+1:]
	end := strings.Index(rest, "`")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

func parsePayload(text string) Payload {
	i := strings.Index(text, outputLabel)
	if i < 0 {
		return nil
	}
	blob := strings.TrimSpace(text[i+len(outputLabel):])

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(blob), &head); err != nil {
		return nil
	}

	switch Kind(head.Type) {
	case KindSelect:
		return parseSelect(blob)
	case KindStatus:
		return parseStatus(blob)
	case KindError:
		return parseError(blob)
	case KindConfirmation:
		return parseConfirmation(blob)
	default:
		return nil
	}
}

func parseSelect(blob string) Payload {
	var raw struct {
		Columns  []string `json:"columns"`
		Data     [][]any  `json:"data"`
		RowCount int      `json:"row_count"`
	}
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil
	}
	rows := make([][]string, len(raw.Data))
	for i, r := range raw.Data {
		row := make([]string, len(r))
		for j, cell := range r {
			row[j] = formatCell(cell)
		}
		rows[i] = row
	}
	count := raw.RowCount
	if count == 0 {
		count = len(rows)
	}
	return SelectResult{Columns: raw.Columns, Rows: rows, RowCount: count}
}

func parseStatus(blob string) Payload {
	var raw struct {
		Message      string `json:"message"`
		AffectedRows *int   `json:"affected_rows"`
	}
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil
	}
	return StatusResult{Message: raw.Message, AffectedRows: raw.AffectedRows}
}

func parseError(blob string) Payload {
	var raw struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil
	}
	return ErrorResult{Message: raw.Message}
}

func parseConfirmation(blob string) Payload {
	var raw struct {
		SQL   string `json:"sql"`
		Table struct {
			Columns []string `json:"columns"`
			Data    [][]any  `json:"data"`
		} `json:"table"`
		Warnings []string `json:"warnings"`
	}
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil
	}
	preview := Table{Columns: raw.Table.Columns}
	for _, r := range raw.Table.Data {
		row := make([]string, len(r))
		for j, cell := range r {
			row[j] = formatCell(cell)
		}
		preview.Rows = append(preview.Rows, row)
	}
	return ConfirmationResult{SQL: raw.SQL, Preview: preview, Warnings: raw.Warnings}
}

// formatCell renders a decoded JSON value the way the results grid shows it.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		// JSON numbers decode as float64; keep integers undecorated.
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}
