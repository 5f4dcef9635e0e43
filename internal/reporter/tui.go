package reporter

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/askforge/internal/relay"
)

var spinnerChars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// TUI styles
var (
	questionStyle = lipgloss.NewStyle().Bold(true)
	waitStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14")) // cyan
	answerStyle   = lipgloss.NewStyle()
	finalStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	failStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
)

type tickMsg time.Time

// UpdateMsg carries one pipeline emission into the TUI. The cli forwards
// these via Program.Send.
type UpdateMsg struct {
	Emission relay.Emission
}

// AskModel is the Bubbletea model for a single streamed question.
type AskModel struct {
	question  string
	agent     string
	cancelRun func() // called on q/ctrl+c to cancel the pipeline

	text     string
	final    bool
	failed   bool
	category relay.Category
	started  time.Time
	elapsed  time.Duration
	frame    int
	width    int
	height   int
}

// NewAskModel creates a TUI model for one question.
func NewAskModel(question, agent string, cancelRun func()) AskModel {
	return AskModel{
		question:  question,
		agent:     agent,
		cancelRun: cancelRun,
		started:   time.Now(),
	}
}

// Init implements tea.Model.
func (m AskModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m AskModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancelRun != nil {
				m.cancelRun()
			}
			return m, tea.Quit
		}

	case UpdateMsg:
		e := msg.Emission
		if e.Text != "" {
			m.text = e.Text
		}
		if e.Final {
			m.final = true
			m.category = e.Category
			// a final with text but no category is a failure notice,
			// not an answer
			m.failed = e.Category == relay.CategoryNone && e.Text != ""
			m.elapsed = time.Since(m.started)
			// the last view stays on the terminal after quit
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		m.frame++
		if !m.final {
			m.elapsed = time.Since(m.started)
		}
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

// View implements tea.Model.
func (m AskModel) View() string {
	var b strings.Builder

	b.WriteString(questionStyle.Render("? " + m.question))
	b.WriteString("\n\n")

	switch {
	case m.failed:
		b.WriteString(failStyle.Render("✗ " + m.text))
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render(m.footer()))
		b.WriteString("\n")
	case m.final && m.text == "":
		b.WriteString(failStyle.Render("(no answer)"))
		b.WriteString("\n")
	case m.final:
		b.WriteString(answerStyle.Render(m.wrap(m.text)))
		b.WriteString("\n\n")
		b.WriteString(finalStyle.Render(fmt.Sprintf("✓ %s", m.footer())))
		b.WriteString("\n")
	case m.text != "":
		b.WriteString(answerStyle.Render(m.wrap(m.text)))
		b.WriteString("\n\n")
		b.WriteString(waitStyle.Render(fmt.Sprintf("%s %s", m.spinner(), m.footer())))
		b.WriteString("\n")
	default:
		b.WriteString(waitStyle.Render(fmt.Sprintf("%s waiting for %s… %s",
			m.spinner(), m.agent, m.elapsed.Truncate(time.Second))))
		b.WriteString("\n")
	}

	if !m.final {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("  q: cancel"))
	}
	return b.String()
}

func (m AskModel) spinner() string {
	return spinnerChars[m.frame%len(spinnerChars)]
}

func (m AskModel) footer() string {
	state := "streaming"
	switch {
	case m.failed:
		state = "failed"
	case m.final && m.category == relay.CategoryResult:
		state = "answered"
	case m.final:
		state = "finished"
	}
	return fmt.Sprintf("%s, %s, %s", m.agent, state, m.elapsed.Truncate(100*time.Millisecond))
}

// wrap breaks the answer to the window width, leaving it untouched before
// the first WindowSizeMsg.
func (m AskModel) wrap(text string) string {
	if m.width <= 4 {
		return text
	}
	return lipgloss.NewStyle().Width(m.width - 2).Render(text)
}
