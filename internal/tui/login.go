package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	fieldUsername = iota
	fieldPassword
	fieldCount
)

type loginForm struct {
	fields  [fieldCount]textinput.Model
	focus   int
	pending bool
	status  string
}

func newLoginForm() loginForm {
	user := textinput.New()
	user.Placeholder = "username"
	user.CharLimit = 64

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.CharLimit = 128
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '•'

	return loginForm{fields: [fieldCount]textinput.Model{user, pass}}
}

func (f *loginForm) focusFirst() tea.Cmd {
	f.fields[fieldPassword].Blur()
	f.focus = fieldUsername
	return f.fields[fieldUsername].Focus()
}

func (f *loginForm) move(delta int) tea.Cmd {
	f.fields[f.focus].Blur()
	f.focus = (f.focus + delta + fieldCount) % fieldCount
	return f.fields[f.focus].Focus()
}

func (f *loginForm) reset() {
	for i := range f.fields {
		f.fields[i].Reset()
		f.fields[i].Blur()
	}
	f.focus = fieldUsername
	f.pending = false
	f.status = ""
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := &m.login

	switch msg.String() {
	case "tab", "down":
		cmd := f.move(1)
		return m, cmd
	case "shift+tab", "up":
		cmd := f.move(-1)
		return m, cmd
	case "enter":
		if f.focus == fieldUsername {
			cmd := f.move(1)
			return m, cmd
		}
		username := strings.TrimSpace(f.fields[fieldUsername].Value())
		password := f.fields[fieldPassword].Value()
		if f.pending || username == "" || password == "" {
			return m, nil
		}
		f.pending = true
		f.status = ""
		return m, m.submitLogin(username, password)
	}

	var cmd tea.Cmd
	f.fields[f.focus], cmd = f.fields[f.focus].Update(msg)
	return m, cmd
}

// submitLogin runs the login off the event loop. Success is reported by the
// session navigating to the authenticated landing view.
func (m Model) submitLogin(username, password string) tea.Cmd {
	return func() tea.Msg {
		return loginResultMsg{ok: m.session.Login(m.ctx, username, password)}
	}
}

func (m Model) viewLogin() string {
	f := m.login

	status := helpStyle.Render("Enter: next / sign in  Tab: switch field  Ctrl+C: quit")
	switch {
	case f.pending:
		status = m.spinner.View() + " Signing in..."
	case f.status != "":
		status = errorStyle.Render(f.status)
	}

	content := fmt.Sprintf(
		"%s\n\n%s\n%s\n\n%s\n%s\n\n%s",
		titleStyle.Render("Z Tavern"),
		dimStyle.Render("Username"), f.fields[fieldUsername].View(),
		dimStyle.Render("Password"), f.fields[fieldPassword].View(),
		status,
	)

	box := boxStyle.Render(content)
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
