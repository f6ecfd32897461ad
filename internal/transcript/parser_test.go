package transcript

import (
	"strings"
	"testing"
)

func TestParseStatus(t *testing.T) {
	text := "SQL: `SELECT 1`\nOutput: {\"type\":\"status\",\"message\":\"OK\",\"affected_rows\":1}"
	res := Parse(text)

	if res.SQL != "SELECT 1" {
		t.Errorf("SQL = %q, want %q", res.SQL, "SELECT 1")
	}
	status, ok := res.Payload.(StatusResult)
	if !ok {
		t.Fatalf("Payload = %T, want StatusResult", res.Payload)
	}
	if status.Message != "OK" {
		t.Errorf("Message = %q", status.Message)
	}
	if status.AffectedRows == nil || *status.AffectedRows != 1 {
		t.Errorf("AffectedRows = %v, want 1", status.AffectedRows)
	}
}

func TestParseSelect(t *testing.T) {
	text := "SQL: `SELECT id, name FROM users`\n" +
		`Output: {"type":"select","columns":["id","name"],"data":[[1,"ada"],[2,null]],"row_count":2}`
	res := Parse(text)

	sel, ok := res.Payload.(SelectResult)
	if !ok {
		t.Fatalf("Payload = %T, want SelectResult", res.Payload)
	}
	if len(sel.Columns) != 2 || sel.Columns[0] != "id" {
		t.Errorf("Columns = %v", sel.Columns)
	}
	if len(sel.Rows) != 2 {
		t.Fatalf("Rows = %v", sel.Rows)
	}
	if sel.Rows[0][0] != "1" || sel.Rows[0][1] != "ada" {
		t.Errorf("row 0 = %v", sel.Rows[0])
	}
	if sel.Rows[1][1] != "" {
		t.Errorf("null cell = %q, want empty", sel.Rows[1][1])
	}
	if sel.RowCount != 2 {
		t.Errorf("RowCount = %d", sel.RowCount)
	}
}

func TestParseConfirmation(t *testing.T) {
	text := "SQL: `DELETE FROM users WHERE id = 3`\n" +
		`Output: {"type":"confirmation_required","sql":"DELETE FROM users WHERE id = 3",` +
		`"table":{"columns":["Action","Table","Condition","Impact"],` +
		`"data":[["DELETE","USERS","id = 3","Removes/modifies record(s) permanently"]]},` +
		`"warnings":["DELETE"]}`
	res := Parse(text)

	conf, ok := res.Payload.(ConfirmationResult)
	if !ok {
		t.Fatalf("Payload = %T, want ConfirmationResult", res.Payload)
	}
	if conf.SQL != "DELETE FROM users WHERE id = 3" {
		t.Errorf("SQL = %q", conf.SQL)
	}
	if len(conf.Preview.Columns) != 4 || conf.Preview.Columns[0] != "Action" {
		t.Errorf("Preview.Columns = %v", conf.Preview.Columns)
	}
	if len(conf.Preview.Rows) != 1 || conf.Preview.Rows[0][0] != "DELETE" {
		t.Errorf("Preview.Rows = %v", conf.Preview.Rows)
	}
	if len(conf.Warnings) != 1 {
		t.Errorf("Warnings = %v", conf.Warnings)
	}
}

func TestParseError(t *testing.T) {
	text := "SQL: `SELCT`\nOutput: {\"type\":\"error\",\"message\":\"syntax error\"}"
	res := Parse(text)

	errRes, ok := res.Payload.(ErrorResult)
	if !ok {
		t.Fatalf("Payload = %T, want ErrorResult", res.Payload)
	}
	if errRes.Message != "syntax error" {
		t.Errorf("Message = %q", errRes.Message)
	}
}

func TestParseMalformedJSONFallsBack(t *testing.T) {
	text := "SQL: `SELECT 1`\nOutput: {not json at all"
	res := Parse(text)

	if res.Payload != nil {
		t.Errorf("Payload = %v, want nil fallback", res.Payload)
	}
	if res.SQL != "SELECT 1" {
		t.Errorf("SQL = %q, SQL fragment should still parse", res.SQL)
	}
	if res.Raw != text {
		t.Errorf("Raw = %q", res.Raw)
	}
}

func TestParseUnknownTypeFallsBack(t *testing.T) {
	text := "SQL: `SELECT 1`\nOutput: {\"type\":\"explain_plan\",\"message\":\"?\"}"
	res := Parse(text)
	if res.Payload != nil {
		t.Errorf("Payload = %v, want nil for unknown variant", res.Payload)
	}
}

func TestParsePlainTextFallsBack(t *testing.T) {
	text := "I could not generate a statement for that question."
	res := Parse(text)
	if res.Payload != nil || res.SQL != "" {
		t.Errorf("res = %+v, want raw fallback", res)
	}
	if res.Raw != text {
		t.Errorf("Raw = %q", res.Raw)
	}
}

func TestParseSQLWithoutClosingBacktick(t *testing.T) {
	res := Parse("SQL: `SELECT 1\nOutput: {}")
	if res.SQL != "" {
		t.Errorf("SQL = %q, want empty for unterminated fragment", res.SQL)
	}
}

func TestParseFloatsAndBools(t *testing.T) {
	text := "SQL: `SELECT price, active FROM items`\n" +
		`Output: {"type":"select","columns":["price","active"],"data":[[19.5,true]]}`
	res := Parse(text)
	sel := res.Payload.(SelectResult)
	if sel.Rows[0][0] != "19.5" {
		t.Errorf("float cell = %q", sel.Rows[0][0])
	}
	if sel.Rows[0][1] != "true" {
		t.Errorf("bool cell = %q", sel.Rows[0][1])
	}
	if sel.RowCount != 1 {
		t.Errorf("RowCount = %d, want inferred 1", sel.RowCount)
	}
}

func TestParseKeepsWholeOutputBlob(t *testing.T) {
	// The payload may contain backticks of its own; only the SQL fragment
	// uses backtick delimiters.
	text := "SQL: `UPDATE t SET a = 1`\nOutput: {\"type\":\"status\",\"message\":\"touched `t`\",\"affected_rows\":2}"
	res := Parse(text)
	status := res.Payload.(StatusResult)
	if !strings.Contains(status.Message, "`t`") {
		t.Errorf("Message = %q", status.Message)
	}
}
