package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/querygenie/querygenie/internal/api"
	"github.com/querygenie/querygenie/internal/connect"
)

// Form field order mirrors the connection dialog: host, port, user,
// password, database.
const (
	fieldHost = iota
	fieldPort
	fieldUser
	fieldPassword
	fieldDatabase
	fieldCount
)

var fieldLabels = [fieldCount]string{"Host", "Port", "User", "Password", "Database"}
var fieldNames = [fieldCount]string{"host", "port", "user", "password", "database"}

// connectForm collects database credentials and shows validation errors and
// connection-failure advice inline.
type connectForm struct {
	inputs  [fieldCount]textinput.Model
	focus   int
	errs    map[string]string
	advice  *connect.Advice
	waiting bool
}

func newConnectForm(cfg api.ConnectionConfig) connectForm {
	var f connectForm
	for i := range f.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 128
		ti.Width = 32
		f.inputs[i] = ti
	}
	f.inputs[fieldPassword].EchoMode = textinput.EchoPassword
	f.inputs[fieldPassword].EchoCharacter = '•'

	f.inputs[fieldHost].SetValue(cfg.Host)
	if cfg.Port != 0 {
		f.inputs[fieldPort].SetValue(strconv.Itoa(cfg.Port))
	}
	f.inputs[fieldUser].SetValue(cfg.User)
	f.inputs[fieldPassword].SetValue(cfg.Password)
	f.inputs[fieldDatabase].SetValue(cfg.Database)

	f.inputs[0].Focus()
	return f
}

func (f *connectForm) config() api.ConnectionConfig {
	port, _ := strconv.Atoi(strings.TrimSpace(f.inputs[fieldPort].Value()))
	return api.ConnectionConfig{
		Host:     strings.TrimSpace(f.inputs[fieldHost].Value()),
		Port:     port,
		User:     strings.TrimSpace(f.inputs[fieldUser].Value()),
		Password: f.inputs[fieldPassword].Value(),
		Database: strings.TrimSpace(f.inputs[fieldDatabase].Value()),
	}
}

func (f *connectForm) setFocus(i int) tea.Cmd {
	for j := range f.inputs {
		f.inputs[j].Blur()
	}
	f.focus = i
	return f.inputs[i].Focus()
}

// validate runs the pre-submission checks and records per-field messages.
// It reports whether the form may be submitted.
func (f *connectForm) validate() bool {
	f.errs = map[string]string{}
	if _, err := strconv.Atoi(strings.TrimSpace(f.inputs[fieldPort].Value())); err != nil {
		f.errs["port"] = "port must be a number"
	}
	for _, fe := range connect.Validate(f.config()) {
		if _, dup := f.errs[fe.Field]; !dup {
			f.errs[fe.Field] = fe.Message
		}
	}
	return len(f.errs) == 0
}

// update handles one key event. The second return value is true when the
// user submitted a valid form.
func (f *connectForm) update(msg tea.KeyMsg) (tea.Cmd, bool) {
	if f.waiting {
		return nil, false
	}
	switch msg.String() {
	case "tab", "down":
		return f.setFocus((f.focus + 1) % fieldCount), false
	case "shift+tab", "up":
		return f.setFocus((f.focus + fieldCount - 1) % fieldCount), false
	case "enter":
		if f.focus < fieldCount-1 {
			return f.setFocus(f.focus + 1), false
		}
		if f.validate() {
			f.advice = nil
			f.waiting = true
			return nil, true
		}
		return nil, false
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd, false
}

func (f *connectForm) fail(err error) {
	f.waiting = false
	adv := connect.Classify(err)
	f.advice = &adv
}

func (f *connectForm) view() string {
	var b strings.Builder
	b.WriteString(sidebarTitleStyle.Render("Connect to a database"))
	b.WriteString("\n\n")

	for i := range f.inputs {
		b.WriteString(formLabelStyle.Render(fieldLabels[i]))
		b.WriteString(f.inputs[i].View())
		if msg, ok := f.errs[fieldNames[i]]; ok {
			b.WriteString("  ")
			b.WriteString(formErrStyle.Render(msg))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case f.waiting:
		b.WriteString(systemStyle.Render("connecting..."))
	case f.advice != nil:
		b.WriteString(renderAdvice(*f.advice))
	default:
		b.WriteString(systemStyle.Render("enter = next / connect • esc = back"))
	}
	return b.String()
}

func renderAdvice(adv connect.Advice) string {
	style := adviceErrorStyle
	if adv.Severity == connect.SeverityInfo {
		style = adviceInfoStyle
	}

	lines := []string{adviceTitleStyle.Render(adv.Icon + " " + adv.Title)}
	if adv.Message != "" {
		lines = append(lines, adv.Message)
	}
	if adv.Suggestion != "" {
		lines = append(lines, adviceSuggestionStyle.Render(adv.Suggestion))
	}
	return style.Render(strings.Join(lines, "\n"))
}
