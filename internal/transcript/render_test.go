package transcript

import (
	"strings"
	"testing"
)

func intp(n int) *int { return &n }

func TestStatusSummarySingularPlural(t *testing.T) {
	tests := []struct {
		name   string
		status StatusResult
		want   string
	}{
		{"singular", StatusResult{Message: "OK", AffectedRows: intp(1)}, "OK (1 row)"},
		{"plural", StatusResult{Message: "OK", AffectedRows: intp(3)}, "OK (3 rows)"},
		{"zero", StatusResult{Message: "OK", AffectedRows: intp(0)}, "OK (0 rows)"},
		{"no count", StatusResult{Message: "Done"}, "Done"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Summary(); got != tt.want {
				t.Errorf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderTextStatus(t *testing.T) {
	res := Parse("SQL: `SELECT 1`\nOutput: {\"type\":\"status\",\"message\":\"OK\",\"affected_rows\":1}")
	out := RenderText(res)
	if !strings.Contains(out, "OK (1 row)") {
		t.Errorf("RenderText = %q, want singular phrasing", out)
	}
	if !strings.Contains(out, "SELECT 1") {
		t.Errorf("RenderText = %q, want SQL echoed", out)
	}
}

func TestRenderTextEmptySelect(t *testing.T) {
	res := Parse("SQL: `SELECT * FROM empty`\nOutput: {\"type\":\"select\",\"columns\":[\"id\"],\"data\":[],\"row_count\":0}")
	out := RenderText(res)
	if !strings.Contains(out, "no results") {
		t.Errorf("RenderText = %q, want %q", out, "no results")
	}
}

func TestRenderTextSelectGrid(t *testing.T) {
	res := Parse("Output: " +
		`{"type":"select","columns":["id","name"],"data":[["1","ada"],["2","grace"]]}`)
	out := RenderText(res)
	for _, want := range []string{"id", "name", "ada", "grace"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderText missing %q:\n%s", want, out)
		}
	}
}

func TestRenderTextFallbackIsRaw(t *testing.T) {
	raw := "free-form answer with no structure"
	if got := RenderText(Parse(raw)); got != raw {
		t.Errorf("RenderText = %q, want raw passthrough", got)
	}
}

func TestRenderTextConfirmation(t *testing.T) {
	res := Parse("SQL: `DROP TABLE t`\nOutput: " +
		`{"type":"confirmation_required","sql":"DROP TABLE t",` +
		`"table":{"columns":["Action","Table","Condition","Impact"],"data":[["DROP","T","-","Removes/modifies record(s) permanently"]]},` +
		`"warnings":["DROP"]}`)
	out := RenderText(res)
	if !strings.Contains(out, "needs confirmation") {
		t.Errorf("RenderText = %q", out)
	}
	if !strings.Contains(out, "warning: DROP") {
		t.Errorf("RenderText missing warning:\n%s", out)
	}
}
