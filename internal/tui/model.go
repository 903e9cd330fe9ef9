// Package tui renders the session and the conversation in the terminal.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/zhouzirui/z-tavern/client/internal/model/auth"
	"github.com/zhouzirui/z-tavern/client/internal/model/chat"
	"github.com/zhouzirui/z-tavern/client/internal/session"
)

// ChatPermission gates the chat input.
const ChatPermission = "chat"

// Session is the part of session.Manager the renderer drives.
type Session interface {
	Initialize(ctx context.Context)
	Login(ctx context.Context, username, password string) bool
	Logout(ctx context.Context)
	Identity() (auth.Identity, bool)
	Authenticated() bool
	HasPermission(name string) bool
}

// Conversation is the part of exchange.Pipeline the renderer drives.
type Conversation interface {
	SetInput(ctx context.Context, text string)
	Submit(ctx context.Context) bool
	Turns() []chat.Turn
	AwaitingReply() bool
}

type readyMsg struct{}

type loginResultMsg struct{ ok bool }

type submittedMsg struct{ accepted bool }

// Model is the root bubbletea model.
type Model struct {
	ctx     context.Context
	session Session
	conv    Conversation

	ready bool
	view  session.View

	login loginForm

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	width  int
	height int
}

// New builds the root model. ctx bounds every core call made from commands.
func New(ctx context.Context, s Session, conv Conversation) Model {
	in := textinput.New()
	in.Placeholder = "Say something to the tavern..."
	in.CharLimit = 2000
	in.Prompt = "> "

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		session:  s,
		conv:     conv,
		login:    newLoginForm(),
		input:    in,
		viewport: viewport.New(80, 20),
		spinner:  sp,
	}
}

// Init restores the session in the background.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.initialize())
}

func (m Model) initialize() tea.Cmd {
	return func() tea.Msg {
		m.session.Initialize(m.ctx)
		return readyMsg{}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-6, 3)
		m.input.Width = max(msg.Width-4, 10)
		m.refreshTranscript()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case readyMsg:
		m.ready = true
		if m.view == "" {
			if m.session.Authenticated() {
				return m.enter(session.ViewAuthenticatedLanding)
			}
			return m.enter(session.ViewUnauthenticatedLanding)
		}
		return m, nil

	case navigateMsg:
		return m.enter(msg.view)

	case refreshMsg:
		m.refreshTranscript()
		return m, nil

	case loginResultMsg:
		m.login.pending = false
		if !msg.ok {
			m.login.status = "Login failed. Check your username and password."
		}
		return m, nil

	case submittedMsg:
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if !m.ready {
			return m, nil
		}
		if m.view == session.ViewAuthenticatedLanding {
			return m.updateChat(msg)
		}
		return m.updateLogin(msg)
	}

	return m, nil
}

// enter switches the visible view.
func (m Model) enter(view session.View) (tea.Model, tea.Cmd) {
	m.view = view
	if view == session.ViewAuthenticatedLanding {
		m.login.reset()
		m.refreshTranscript()
		cmd := m.input.Focus()
		return m, cmd
	}
	m.input.Blur()
	m.input.Reset()
	cmd := m.login.focusFirst()
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "\n  " + m.spinner.View() + " Restoring session...\n"
	}
	if m.view == session.ViewAuthenticatedLanding {
		return m.viewChat()
	}
	return m.viewLogin()
}

// CurrentView reports the view being rendered.
func (m Model) CurrentView() session.View {
	return m.view
}
