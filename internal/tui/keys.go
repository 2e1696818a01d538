package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the bindings of every screen.
type KeyMap struct {
	Quit       key.Binding
	Up         key.Binding
	Down       key.Binding
	Open       key.Binding
	Browser    key.Binding
	Back       key.Binding
	Save       key.Binding
	Create     key.Binding
	Reload     key.Binding
	Category   key.Binding
	Source     key.Binding
	Edition    key.Binding
	Saved      key.Binding
	Remove     key.Binding
	Logout     key.Binding
	NextField  key.Binding
	Submit     key.Binding
	ToggleMode key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:       key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Open:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "read")),
		Browser:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open in browser")),
		Back:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Save:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save/unsave")),
		Create:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "create digest")),
		Reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Category:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "category")),
		Source:     key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "source")),
		Edition:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edition")),
		Saved:      key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "saved")),
		Remove:     key.NewBinding(key.WithKeys("d", "x"), key.WithHelp("d", "remove")),
		Logout:     key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "log out")),
		NextField:  key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "next field")),
		Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		ToggleMode: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "login/register")),
	}
}

func helpLine(bindings ...key.Binding) string {
	out := ""
	for i, b := range bindings {
		if i > 0 {
			out += "  "
		}
		h := b.Help()
		out += h.Key + " " + h.Desc
	}
	return out
}
