// Package tui is the terminal chat front end. Each question is answered
// asynchronously so the input stays responsive while a backend works.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/askdocs/pkg/types"
)

// Asker is the TUI-facing subset of the router
type Asker interface {
	Ask(ctx context.Context, question string) (*types.Response, error)
}

// exchange is one question with its answer or error
type exchange struct {
	question string
	response *types.Response
	err      error
}

// answerMsg delivers the result of an asynchronous Ask
type answerMsg struct {
	question string
	response *types.Response
	err      error
}

// Model is the Bubble Tea model for the chat window
type Model struct {
	ctx      context.Context
	asker    Asker
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	history  []exchange
	summary  string
	status   string
	pending  bool
	ready    bool
}

// New creates a chat model. summary is shown under the title.
func New(ctx context.Context, asker Asker, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the documents and press Enter"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = statusStyle

	return Model{
		ctx:      ctx,
		asker:    asker,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		summary:  summary,
		status:   "Ready. Ctrl+C to quit.",
	}
}

// Init starts the cursor blink
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window, spinner and answer messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, hh := historyBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // title and summary, status, input box
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-hh)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.pending {
				return m, nil
			}
			m.input.SetValue("")
			m.pending = true
			m.status = "Thinking..."
			m.history = append(m.history, exchange{question: q})
			m.refresh()
			return m, tea.Batch(m.ask(q), m.spinner.Tick)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case answerMsg:
		m.pending = false
		for i := len(m.history) - 1; i >= 0; i-- {
			if m.history[i].question == msg.question && m.history[i].response == nil && m.history[i].err == nil {
				m.history[i].response = msg.response
				m.history[i].err = msg.err
				break
			}
		}
		switch {
		case msg.err != nil:
			m.status = "Error: " + msg.err.Error()
		case msg.response.FellBack():
			m.status = fmt.Sprintf("Answered by %s (fallback from %s) in %s",
				msg.response.Strategy.Label(), msg.response.Requested.Label(), msg.response.Duration.Round(time.Millisecond))
		default:
			m.status = fmt.Sprintf("Answered by %s in %s", msg.response.Strategy.Label(), msg.response.Duration.Round(time.Millisecond))
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the title, transcript, input box and status line
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	status := statusStyle.Render(m.status)
	if m.pending {
		status = m.spinner.View() + " " + status
	}
	return titleStyle.Render("askdocs") + "\n" +
		summaryStyle.Render(m.summary) + "\n" +
		historyBoxStyle.Render(m.viewport.View()) + "\n" +
		queryBoxStyle.Render(m.input.View()) + "\n" +
		status
}

func (m Model) ask(question string) tea.Cmd {
	ctx, asker := m.ctx, m.asker
	return func() tea.Msg {
		resp, err := asker.Ask(ctx, question)
		return answerMsg{question: question, response: resp, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderHistory(m.history, m.viewport.Width))
	m.viewport.GotoBottom()
}

func renderHistory(history []exchange, width int) string {
	if len(history) == 0 {
		return summaryStyle.Render("No questions yet.")
	}
	wrap := lipgloss.NewStyle().Width(max(10, width-2))

	var b strings.Builder
	for i, ex := range history {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(userStyle.Render("You: "))
		b.WriteString(wrap.Render(ex.question))
		b.WriteString("\n")

		switch {
		case ex.err != nil:
			b.WriteString(errorStyle.Render("Error: "))
			b.WriteString(wrap.Render(ex.err.Error()))
			b.WriteString("\n")
		case ex.response == nil:
			b.WriteString(summaryStyle.Render("..."))
			b.WriteString("\n")
		default:
			b.WriteString(botStyle.Render(ex.response.Strategy.Label() + ": "))
			b.WriteString(wrap.Render(ex.response.Answer))
			b.WriteString("\n")
			for _, src := range ex.response.Sources {
				b.WriteString(sourceStyle.Render(fmt.Sprintf("  - %s > %s", src.SourceID, src.Header)))
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

var (
	titleStyle      = lipgloss.NewStyle().Bold(true)
	summaryStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	sourceStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	historyBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
