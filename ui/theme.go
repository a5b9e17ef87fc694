package ui

const (
	ThemeLight = "light"
	ThemeDark  = "dark"

	IconSun  = "sun"
	IconMoon = "moon"
)

// ToggleView describes the theme toggle button. Until the client has
// resolved its theme the button is Pending and offers no next theme.
type ToggleView struct {
	Next    string `json:"next,omitempty"`
	Title   string `json:"title,omitempty"`
	Icon    string `json:"icon"`
	Label   string `json:"label"`
	Pending bool   `json:"pending"`
}

const toggleLabel = "Toggle theme"

func Toggle(resolved string) ToggleView {
	switch resolved {
	case "":
		return ToggleView{Icon: IconSun, Label: toggleLabel, Pending: true}
	case ThemeDark:
		return ToggleView{Next: ThemeLight, Title: "Switch to light mode", Icon: IconSun, Label: toggleLabel}
	default:
		return ToggleView{Next: ThemeDark, Title: "Switch to dark mode", Icon: IconMoon, Label: toggleLabel}
	}
}
