package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/sodove/aios-agent/internal/ipc"
)

var (
	styleUser    = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	styleAgent   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	styleConfirm = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleHelp    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// pendingConfirm is one ConfirmRequest awaiting a y/n keypress.
type pendingConfirm struct {
	actionID    uuid.UUID
	actionType  string
	description string
	trustLevel  ipc.TrustLevel
}

type model struct {
	client *ipcClient

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	waiting  bool

	history  []string
	pending  []pendingConfirm
	quitting bool
	lastErr  error

	width, height int
}

func newModel(client *ipcClient) *model {
	ti := textinput.New()
	ti.Placeholder = "say something to the agent..."
	ti.Focus()
	ti.CharLimit = 4096
	ti.Width = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	vp := viewport.New(80, 20)

	return &model{
		client:   client,
		input:    ti,
		spinner:  sp,
		viewport: vp,
	}
}

type chatResponseMsg ipc.Envelope
type confirmRequestMsg ipc.Envelope
type ipcErrMsg error

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForChatResponse(m.client), waitForConfirmRequest(m.client), waitForErr(m.client))
}

func waitForChatResponse(c *ipcClient) tea.Cmd {
	return func() tea.Msg {
		return chatResponseMsg(<-c.chatResponses)
	}
}

func waitForConfirmRequest(c *ipcClient) tea.Cmd {
	return func() tea.Msg {
		return confirmRequestMsg(<-c.confirmReqs)
	}
}

func waitForErr(c *ipcClient) tea.Cmd {
	return func() tea.Msg {
		return ipcErrMsg(<-c.errs)
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = msg.Width - 4
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 5
		m.viewport.SetContent(strings.Join(m.history, "\n"))
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case chatResponseMsg:
		m.waiting = false
		env := ipc.Envelope(msg)
		var text string
		if env.ChatMessage != nil {
			text = env.ChatMessage.Content.Text
		}
		m.appendLine(styleAgent.Render("agent") + "  " + renderMarkdown(text, m.width))
		return m, waitForChatResponse(m.client)

	case confirmRequestMsg:
		env := ipc.Envelope(msg)
		m.pending = append(m.pending, pendingConfirm{
			actionID:    env.ActionID,
			actionType:  env.ActionType,
			description: env.Description,
			trustLevel:  env.TrustLevel,
		})
		m.appendLine(styleConfirm.Render(fmt.Sprintf("confirm? %s (%s) — [y]es / [n]o", env.ActionType, env.Description)))
		return m, waitForConfirmRequest(m.client)

	case ipcErrMsg:
		m.lastErr = msg
		m.appendLine(styleConfirm.Render("connection error: " + msg.Error()))
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "y", "n":
		if len(m.pending) > 0 {
			pc := m.pending[0]
			m.pending = m.pending[1:]
			approved := msg.String() == "y"
			if err := m.client.RespondConfirm(pc.actionID, approved); err != nil {
				m.appendLine(styleConfirm.Render("failed to send confirmation: " + err.Error()))
			} else {
				verdict := "rejected"
				if approved {
					verdict = "approved"
				}
				m.appendLine(styleDim.Render(fmt.Sprintf("  -> %s %s", pc.actionType, verdict)))
			}
			return m, nil
		}

	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.SetValue("")
		m.appendLine(styleUser.Render("you") + "    " + text)
		m.waiting = true
		if err := m.client.SendChat(text); err != nil {
			m.appendLine(styleConfirm.Render("failed to send: " + err.Error()))
			m.waiting = false
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) appendLine(line string) {
	m.history = append(m.history, line)
	m.viewport.SetContent(strings.Join(m.history, "\n"))
	m.viewport.GotoBottom()
}

func (m *model) View() string {
	if m.quitting {
		if m.lastErr != nil {
			return "agentctl: " + m.lastErr.Error() + "\n"
		}
		return "agentctl: goodbye\n"
	}

	status := ""
	if m.waiting {
		status = m.spinner.View() + " waiting for the agent..."
	}
	if len(m.pending) > 0 {
		status = styleConfirm.Render(fmt.Sprintf("%d confirmation(s) pending — press y/n", len(m.pending)))
	}

	return fmt.Sprintf(
		"%s\n\n%s\n%s\n%s",
		m.viewport.View(),
		styleHelp.Render(strings.Repeat("─", max(1, m.width))),
		m.input.View(),
		status,
	)
}

func renderMarkdown(text string, width int) string {
	w := width - 4
	if w < 20 {
		w = 20
	}
	renderer, err := glamour.NewTermRenderer(glamour.WithStandardStyle("dark"), glamour.WithWordWrap(w))
	if err != nil {
		return text
	}
	out, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

