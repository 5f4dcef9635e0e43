package reporter

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ppiankov/askforge/internal/relay"
)

func keyMsg(s string) tea.KeyMsg {
	if s == "ctrl+c" {
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestAskModel_WaitingView(t *testing.T) {
	m := NewAskModel("what is 2+2?", "claude", nil)
	view := m.View()
	if !strings.Contains(view, "what is 2+2?") {
		t.Errorf("question missing: %q", view)
	}
	if !strings.Contains(view, "waiting for claude") {
		t.Errorf("waiting state missing: %q", view)
	}
}

func TestAskModel_UpdateShowsText(t *testing.T) {
	m := NewAskModel("q", "claude", nil)
	next, _ := m.Update(UpdateMsg{Emission: relay.Emission{Text: "partial answer", Category: relay.CategoryAssistant}})
	m = next.(AskModel)

	view := m.View()
	if !strings.Contains(view, "partial answer") {
		t.Errorf("answer missing: %q", view)
	}
	if !strings.Contains(view, "streaming") {
		t.Errorf("streaming state missing: %q", view)
	}
	if m.final {
		t.Error("non-final emission marked final")
	}
}

func TestAskModel_FinalQuits(t *testing.T) {
	m := NewAskModel("q", "claude", nil)
	next, cmd := m.Update(UpdateMsg{Emission: relay.Emission{Text: "the answer", Final: true, Category: relay.CategoryResult}})
	m = next.(AskModel)

	if !m.final {
		t.Fatal("final emission not recorded")
	}
	if cmd == nil {
		t.Error("final emission must quit the program")
	}
	view := m.View()
	if !strings.Contains(view, "the answer") || !strings.Contains(view, "answered") {
		t.Errorf("final view = %q", view)
	}
	if strings.Contains(view, "q: cancel") {
		t.Errorf("cancel hint shown after finish: %q", view)
	}
}

func TestAskModel_BareFinalKeepsText(t *testing.T) {
	m := NewAskModel("q", "claude", nil)
	next, _ := m.Update(UpdateMsg{Emission: relay.Emission{Text: "shown already", Category: relay.CategoryAssistant}})
	m = next.(AskModel)
	next, _ = m.Update(UpdateMsg{Emission: relay.Emission{Final: true, Category: relay.CategoryNone}})
	m = next.(AskModel)

	view := m.View()
	if !strings.Contains(view, "shown already") {
		t.Errorf("bare final dropped the last update: %q", view)
	}
}

func TestAskModel_FailureNotice(t *testing.T) {
	m := NewAskModel("q", "claude", nil)
	next, _ := m.Update(UpdateMsg{Emission: relay.Emission{
		Text:     "The agent could not be run to completion.",
		Final:    true,
		Category: relay.CategoryNone,
	}})
	m = next.(AskModel)

	view := m.View()
	if !strings.Contains(view, "could not be run") || !strings.Contains(view, "failed") {
		t.Errorf("failure view = %q", view)
	}
	if strings.Contains(view, "✓") {
		t.Errorf("failure rendered as success: %q", view)
	}
}

func TestAskModel_NoAnswer(t *testing.T) {
	m := NewAskModel("q", "claude", nil)
	next, _ := m.Update(UpdateMsg{Emission: relay.Emission{Final: true, Category: relay.CategoryNone}})
	m = next.(AskModel)
	if !strings.Contains(m.View(), "(no answer)") {
		t.Errorf("view = %q", m.View())
	}
}

func TestAskModel_QuitCancels(t *testing.T) {
	cancelled := false
	m := NewAskModel("q", "claude", func() { cancelled = true })
	_, cmd := m.Update(keyMsg("q"))
	if !cancelled {
		t.Error("cancel not called on q")
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
}

func TestAskModel_TickAdvancesSpinner(t *testing.T) {
	m := NewAskModel("q", "claude", nil)
	before := m.spinner()
	next, cmd := m.Update(tickMsg{})
	m = next.(AskModel)
	if m.spinner() == before {
		t.Error("spinner did not advance")
	}
	if cmd == nil {
		t.Error("tick must reschedule itself")
	}
}

func TestAskModel_WindowSizeWraps(t *testing.T) {
	m := NewAskModel("q", "claude", nil)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 20, Height: 10})
	m = next.(AskModel)
	long := strings.Repeat("word ", 20)
	wrapped := m.wrap(long)
	for _, line := range strings.Split(wrapped, "\n") {
		if len(line) > 20 {
			t.Errorf("line exceeds width: %q", line)
		}
	}
}
