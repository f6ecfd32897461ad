package tui

import "github.com/charmbracelet/lipgloss"

var (
	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	sqlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6"))

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("2"))

	// Sidebar
	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(lipgloss.Color("238")).
			PaddingRight(1)

	sidebarTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Bold(true)

	sidebarItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("248"))

	sidebarCursorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true)

	sidebarActiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("15")).
				Bold(true)

	// Connection form
	formLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("248")).
			Width(10)

	formErrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	// Advice blocks — yellow left line for informational outcomes (a valid
	// host with no such database), red for failures.
	adviceInfoStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("3")).
			PaddingLeft(1)

	adviceErrorStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder(), false, false, false, true).
				BorderForeground(lipgloss.Color("9")).
				PaddingLeft(1)

	adviceTitleStyle = lipgloss.NewStyle().Bold(true)

	adviceSuggestionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	// Destructive-statement confirmation
	confirmBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder(), false, false, false, true).
				BorderForeground(lipgloss.Color("9")).
				PaddingLeft(1)

	confirmHintStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("9")).
				Bold(true)
)
