package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/z-tavern/client/internal/model/chat"
)

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+o":
		return m, m.logout()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case "enter":
		if !m.canChat() || strings.TrimSpace(m.input.Value()) == "" || m.conv.AwaitingReply() {
			return m, nil
		}
		m.input.Reset()
		return m, m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.conv.SetInput(m.ctx, m.input.Value())
	return m, cmd
}

func (m Model) submit() tea.Cmd {
	return func() tea.Msg {
		return submittedMsg{accepted: m.conv.Submit(m.ctx)}
	}
}

func (m Model) logout() tea.Cmd {
	return func() tea.Msg {
		m.session.Logout(m.ctx)
		return nil
	}
}

func (m Model) canChat() bool {
	return m.session.HasPermission(ChatPermission)
}

func (m *Model) refreshTranscript() {
	m.viewport.SetContent(renderTurns(m.conv.Turns(), m.viewport.Width))
	m.viewport.GotoBottom()
}

func (m Model) viewChat() string {
	who := "guest"
	if identity, ok := m.session.Identity(); ok {
		who = identity.Username
		if identity.FullName != "" {
			who = identity.FullName
		}
		if identity.Role != nil && identity.Role.Name != "" {
			who = fmt.Sprintf("%s (%s)", who, identity.Role.Name)
		}
	}
	header := headerStyle.Render("Z Tavern · " + who)

	var footer string
	switch {
	case !m.canChat():
		footer = errorStyle.Render("Your role is not allowed to chat.")
	case m.conv.AwaitingReply():
		footer = m.spinner.View() + dimStyle.Render(" The tavern keeper is thinking...") + "\n" + m.input.View()
	default:
		footer = m.input.View()
	}

	help := helpStyle.Render("Enter: send  PgUp/PgDn: scroll  Ctrl+O: sign out  Ctrl+C: quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, m.viewport.View(), footer, help)
}

// renderTurns formats the conversation for the viewport.
func renderTurns(turns []chat.Turn, width int) string {
	if len(turns) == 0 {
		return dimStyle.Render("No messages yet.")
	}

	body := lipgloss.NewStyle()
	if width > 2 {
		body = body.Width(width - 2)
	}

	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		label := botStyle.Render(" Tavern ")
		if turn.IsUser() {
			label = userStyle.Render(" You ")
		}
		b.WriteString(label)
		b.WriteString(dimStyle.Render(" " + turn.CreatedAt.Local().Format("15:04")))
		b.WriteString("\n")

		text := body.Render(turn.Content)
		if turn.Fallback {
			text = errorStyle.Render(text)
		}
		b.WriteString(text)
	}
	return b.String()
}

