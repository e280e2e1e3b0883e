// Package ui is the interactive terminal shell: the loading view shown while
// assets preload, and the provider chain rendered once the shell is ready.
package ui

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	lightBackground = lipgloss.Color("#fafafa")
	lightForeground = lipgloss.Color("#1b1b1f")
	lightPrimary    = lipgloss.Color("#6200ee")
	lightAccent     = lipgloss.Color("#03dac4")
	lightMuted      = lipgloss.Color("#8a8a94")
	lightBorder     = lipgloss.Color("#dcdce0")

	darkBackground = lipgloss.Color("#121212")
	darkForeground = lipgloss.Color("#f2f2f2")
	darkPrimary    = lipgloss.Color("#bb86fc")
	darkAccent     = lipgloss.Color("#03dac6")
	darkMuted      = lipgloss.Color("#6f6f78")
	darkBorder     = lipgloss.Color("#2c2c30")

	errorColor   = lipgloss.Color("#e53935")
	successColor = lipgloss.Color("#8bc34a")
)

// Theme is the colour scheme handed to the provider chain.
type Theme struct {
	Name       string
	Background lipgloss.Color
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	IsDark     bool
}

func LightTheme() Theme {
	return Theme{
		Name:       "light",
		Background: lightBackground,
		Foreground: lightForeground,
		Primary:    lightPrimary,
		Accent:     lightAccent,
		Muted:      lightMuted,
		Border:     lightBorder,
	}
}

func DarkTheme() Theme {
	return Theme{
		Name:       "dark",
		Background: darkBackground,
		Foreground: darkForeground,
		Primary:    darkPrimary,
		Accent:     darkAccent,
		Muted:      darkMuted,
		Border:     darkBorder,
		IsDark:     true,
	}
}

// ThemeFor picks the theme for the theme.is_dark setting.
func ThemeFor(isDark bool) Theme {
	if isDark {
		return DarkTheme()
	}
	return LightTheme()
}

// Styles holds the styled components derived from a Theme.
type Styles struct {
	Theme Theme

	App     lipgloss.Style
	Header  lipgloss.Style
	Tab     lipgloss.Style
	Active  lipgloss.Style
	Body    lipgloss.Style
	Muted   lipgloss.Style
	Footer  lipgloss.Style
	Spinner lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Card    lipgloss.Style
}

func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		App: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Header: lipgloss.NewStyle().
			Background(theme.Primary).
			Foreground(theme.Background).
			Padding(0, 2).
			Bold(true),

		Tab: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 1),

		Active: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Padding(0, 1).
			Bold(true).
			Underline(true),

		Body: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Padding(1, 2),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 2),

		Spinner: lipgloss.NewStyle().
			Foreground(theme.Accent),

		Error: lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true),

		Success: lipgloss.NewStyle().
			Foreground(successColor),

		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),
	}
}
