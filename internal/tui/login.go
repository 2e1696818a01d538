package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	fieldEmail = iota
	fieldPassword
	fieldFullName
)

type loginForm struct {
	inputs   []textinput.Model
	focused  int
	register bool
	busy     bool
	err      string
	info     string
}

func newLoginForm() loginForm {
	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.Prompt = "Email     "
	email.CharLimit = 254

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = "Password  "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128

	name := textinput.New()
	name.Placeholder = "optional"
	name.Prompt = "Full name "
	name.CharLimit = 100

	return loginForm{inputs: []textinput.Model{email, password, name}}
}

// fields lists the inputs shown in the current mode.
func (f *loginForm) fields() []int {
	if f.register {
		return []int{fieldEmail, fieldPassword, fieldFullName}
	}
	return []int{fieldEmail, fieldPassword}
}

func (f *loginForm) focus() tea.Cmd {
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
	return f.inputs[f.focused].Focus()
}

func (f *loginForm) move(delta int) tea.Cmd {
	n := len(f.fields())
	f.focused = ((f.focused+delta)%n + n) % n
	return f.focus()
}

func (f *loginForm) reset() {
	for i := range f.inputs {
		f.inputs[i].SetValue("")
	}
	f.focused = fieldEmail
	f.err, f.info = "", ""
	f.busy = false
}

func (f *loginForm) value(field int) string {
	return strings.TrimSpace(f.inputs[field].Value())
}

func (f *loginForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focused], cmd = f.inputs[f.focused].Update(msg)
	return cmd
}

func (f *loginForm) view(width int) string {
	title := "Log in to Daily Digest"
	if f.register {
		title = "Create a Daily Digest account"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n\n")
	for _, i := range f.fields() {
		b.WriteString(f.inputs[i].View())
		b.WriteString("\n")
	}
	if f.busy {
		b.WriteString("\n" + dimStyle.Render("Working..."))
	}
	if f.info != "" {
		b.WriteString("\n" + noticeStyle.Render(f.info))
	}
	if f.err != "" {
		b.WriteString("\n" + errorStyle.Render(f.err))
	}

	keys := DefaultKeyMap()
	help := dimStyle.Render(helpLine(keys.NextField, keys.Submit, keys.ToggleMode))
	box := formBoxStyle.Render(b.String())
	return lipgloss.Place(width, lipgloss.Height(box)+2, lipgloss.Center, lipgloss.Center, box) + "\n" + help
}

func (a *App) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := &a.login
	switch {
	case key.Matches(msg, a.keys.NextField):
		if msg.String() == "shift+tab" {
			return a, f.move(-1)
		}
		return a, f.move(1)
	case key.Matches(msg, a.keys.ToggleMode):
		f.register = !f.register
		f.err = ""
		if f.focused >= len(f.fields()) {
			f.focused = fieldEmail
		}
		return a, f.focus()
	case key.Matches(msg, a.keys.Back):
		f.err = ""
		return a, nil
	case key.Matches(msg, a.keys.Submit):
		if f.busy {
			return a, nil
		}
		if f.focused < len(f.fields())-1 {
			return a, f.move(1)
		}
		return a, a.submitLogin()
	}
	return a, f.update(msg)
}

func (a *App) submitLogin() tea.Cmd {
	f := &a.login
	email, password := f.value(fieldEmail), f.inputs[fieldPassword].Value()
	if email == "" || password == "" {
		f.err = "Email and password are required."
		return nil
	}
	f.busy = true
	f.err, f.info = "", ""

	sess, ctx := a.sess, a.ctx
	if f.register {
		name := f.value(fieldFullName)
		return func() tea.Msg {
			return authResultMsg{err: sess.Register(ctx, email, password, name)}
		}
	}
	return func() tea.Msg {
		return authResultMsg{err: sess.Login(ctx, email, password)}
	}
}
