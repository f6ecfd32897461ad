package tui

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/querygenie/querygenie/internal/transcript"
)

const resultPageSize = 15

// resultView is the full-screen browser for a select result: page through
// rows, filter them and export the filtered set as CSV.
type resultView struct {
	columns []string
	rows    [][]string

	filtered  [][]string
	page      int
	filter    textinput.Model
	filtering bool
	status    string
}

func newResultView(p transcript.SelectResult) *resultView {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.CharLimit = 256
	v := &resultView{columns: p.Columns, rows: p.Rows, filter: ti}
	v.applyFilter()
	return v
}

// applyFilter keeps rows where any cell contains the query,
// case-insensitively. An empty query keeps everything.
func (v *resultView) applyFilter() {
	query := strings.ToLower(strings.TrimSpace(v.filter.Value()))
	if query == "" {
		v.filtered = v.rows
	} else {
		v.filtered = nil
		for _, row := range v.rows {
			for _, cell := range row {
				if strings.Contains(strings.ToLower(cell), query) {
					v.filtered = append(v.filtered, row)
					break
				}
			}
		}
	}
	if v.page > v.lastPage() {
		v.page = v.lastPage()
	}
}

func (v *resultView) lastPage() int {
	if len(v.filtered) == 0 {
		return 0
	}
	return (len(v.filtered) - 1) / resultPageSize
}

// update handles one key event; it reports whether the view should close.
func (v *resultView) update(msg tea.KeyMsg) (tea.Cmd, bool) {
	if v.filtering {
		switch msg.String() {
		case "enter", "esc":
			v.filtering = false
			v.filter.Blur()
		default:
			var cmd tea.Cmd
			v.filter, cmd = v.filter.Update(msg)
			v.applyFilter()
			return cmd, false
		}
		return nil, false
	}

	switch msg.String() {
	case "esc", "q":
		return nil, true
	case "left", "h":
		if v.page > 0 {
			v.page--
		}
	case "right", "l":
		if v.page < v.lastPage() {
			v.page++
		}
	case "/":
		v.filtering = true
		return v.filter.Focus(), false
	case "s":
		return v.exportCmd(), false
	}
	return nil, false
}

// exportCmd writes the filtered rows to a timestamped CSV file next to the
// session database.
func (v *resultView) exportCmd() tea.Cmd {
	columns := v.columns
	rows := v.filtered
	return func() tea.Msg {
		dir, err := exportDir()
		if err != nil {
			return exportMsg{err: err}
		}
		path := filepath.Join(dir, fmt.Sprintf("result-%s.csv", time.Now().Format("20060102-150405")))
		f, err := os.Create(path)
		if err != nil {
			return exportMsg{err: err}
		}
		w := csv.NewWriter(f)
		if err := w.Write(columns); err != nil {
			f.Close()
			return exportMsg{err: err}
		}
		if err := w.WriteAll(rows); err != nil {
			f.Close()
			return exportMsg{err: err}
		}
		if err := f.Close(); err != nil {
			return exportMsg{err: err}
		}
		return exportMsg{path: path}
	}
}

// exportDirOverride redirects CSV exports; set by the model from config.
var exportDirOverride string

func exportDir() (string, error) {
	dir := exportDirOverride
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".local", "share", "querygenie")
	}
	dir = filepath.Join(dir, "exports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func (v *resultView) view(width int) string {
	var b strings.Builder
	b.WriteString(sidebarTitleStyle.Render("Query result"))
	b.WriteString("\n\n")

	if len(v.filtered) == 0 {
		b.WriteString(systemStyle.Render("no matching rows"))
	} else {
		start := v.page * resultPageSize
		end := start + resultPageSize
		if end > len(v.filtered) {
			end = len(v.filtered)
		}
		b.WriteString(transcript.Grid(v.columns, v.filtered[start:end]))
	}
	b.WriteString("\n\n")

	info := fmt.Sprintf("%d row(s)", len(v.filtered))
	if len(v.filtered) != len(v.rows) {
		info = fmt.Sprintf("%d of %d row(s)", len(v.filtered), len(v.rows))
	}
	if v.lastPage() > 0 {
		info += fmt.Sprintf(" • page %d/%d", v.page+1, v.lastPage()+1)
	}
	b.WriteString(systemStyle.Render(info))
	b.WriteString("\n")

	switch {
	case v.filtering:
		b.WriteString(v.filter.View())
	case v.status != "":
		b.WriteString(okStyle.Render(v.status))
	default:
		b.WriteString(systemStyle.Render("←/→ page • / filter • s export csv • esc close"))
	}
	return b.String()
}
