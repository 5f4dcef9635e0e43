package relay

import (
	"log/slog"
	"testing"
)

func newTestParser(deny ...string) *eventParser {
	return newEventParser(deny, slog.Default())
}

func TestParser_AssistantRecord(t *testing.T) {
	p := newTestParser()
	line := `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"Hello"}]}}`
	ev, ok := p.parse(line, false)
	if !ok {
		t.Fatal("record not decoded")
	}
	if ev.Kind != EventAssistant || ev.Text != "Hello" {
		t.Errorf("got %+v", ev)
	}
}

func TestParser_AssistantMultipleTextBlocks(t *testing.T) {
	p := newTestParser()
	line := `{"type":"assistant","message":{"content":[{"type":"text","text":"Hello "},{"type":"image"},{"type":"text","text":"world"}]}}`
	ev, ok := p.parse(line, false)
	if !ok || ev.Text != "Hello world" {
		t.Errorf("got ok=%v ev=%+v", ok, ev)
	}
}

func TestParser_AssistantLegacyShapes(t *testing.T) {
	p := newTestParser()

	// top-level content array
	ev, ok := p.parse(`{"type":"assistant","content":[{"type":"text","text":"old style"}]}`, false)
	if !ok || ev.Text != "old style" {
		t.Errorf("content fallback: ok=%v ev=%+v", ok, ev)
	}

	// bare text field
	ev, ok = p.parse(`{"type":"assistant","text":"bare"}`, false)
	if !ok || ev.Text != "bare" {
		t.Errorf("text fallback: ok=%v ev=%+v", ok, ev)
	}
}

func TestParser_ResultRecord(t *testing.T) {
	p := newTestParser()
	ev, ok := p.parse(`{"type":"result","subtype":"success","result":"Hello world!"}`, false)
	if !ok {
		t.Fatal("record not decoded")
	}
	if ev.Kind != EventResult || ev.Text != "Hello world!" {
		t.Errorf("got %+v", ev)
	}
}

func TestParser_ErrorResultCarriesNoText(t *testing.T) {
	p := newTestParser()
	ev, ok := p.parse(`{"type":"result","subtype":"error_during_execution","result":"boom"}`, false)
	if !ok {
		t.Fatal("record should still count as decoded")
	}
	if ev.Kind != EventUnrecognized || ev.Text != "" {
		t.Errorf("got %+v", ev)
	}
}

func TestParser_ToolCall(t *testing.T) {
	p := newTestParser()
	ev, ok := p.parse(`{"type":"tool_call","status":"completed","output":"42 files"}`, false)
	if !ok || ev.Kind != EventToolCall || ev.Text != "42 files" {
		t.Errorf("got ok=%v ev=%+v", ok, ev)
	}

	ev, ok = p.parse(`{"type":"tool_call","status":"running","output":"..."}`, false)
	if !ok || ev.Kind != EventUnrecognized {
		t.Errorf("in-flight tool call: ok=%v ev=%+v", ok, ev)
	}
}

func TestParser_ThinkingSuppressed(t *testing.T) {
	p := newTestParser()
	ev, ok := p.parse(`{"type":"thinking","text":"let me ponder"}`, false)
	if !ok {
		t.Fatal("record not decoded")
	}
	if ev.Kind != EventThinking || ev.Text != "" {
		t.Errorf("thinking must carry no text: %+v", ev)
	}
}

func TestParser_UnknownType(t *testing.T) {
	p := newTestParser()
	ev, ok := p.parse(`{"type":"system","subtype":"init"}`, false)
	if !ok || ev.Kind != EventUnrecognized {
		t.Errorf("got ok=%v ev=%+v", ok, ev)
	}
}

func TestParser_SplitRecordReassembly(t *testing.T) {
	p := newTestParser()
	if _, ok := p.parse(`{"type":"result","sub`, false); ok {
		t.Fatal("fragment should not decode")
	}
	ev, ok := p.parse(`type":"success","result":"Done."}`, false)
	if !ok {
		t.Fatal("joined fragments should decode")
	}
	if ev.Kind != EventResult || ev.Text != "Done." {
		t.Errorf("got %+v", ev)
	}
	if p.carry != "" {
		t.Errorf("carry not cleared: %q", p.carry)
	}
}

func TestParser_JunkLinesSkipped(t *testing.T) {
	p := newTestParser()
	for _, junk := range []string{
		"npm WARN deprecated something",
		"   ",
		"Loading model...",
	} {
		if _, ok := p.parse(junk, false); ok {
			t.Errorf("junk decoded: %q", junk)
		}
	}
	// a later complete record must still decode
	ev, ok := p.parse(`{"type":"assistant","text":"after junk"}`, false)
	if !ok || ev.Text != "after junk" {
		t.Errorf("junk poisoned the parser: ok=%v ev=%+v", ok, ev)
	}
}

func TestParser_DenylistBlanksText(t *testing.T) {
	p := newTestParser("I'll", "Let me")
	ev, ok := p.parse(`{"type":"assistant","text":"I'll check the file for you"}`, false)
	if !ok {
		t.Fatal("record not decoded")
	}
	if ev.Kind != EventAssistant || ev.Text != "" {
		t.Errorf("denied text should be blanked: %+v", ev)
	}

	ev, _ = p.parse(`{"type":"assistant","text":"The file contains three sections."}`, false)
	if ev.Text == "" {
		t.Error("non-matching text must pass through")
	}
}

func TestParser_CarryDiscardedAtFinal(t *testing.T) {
	p := newTestParser()
	if _, ok := p.parse(`{"type":"assist`, false); ok {
		t.Fatal("fragment should not decode")
	}
	if _, ok := p.parse(`ant","tex`, true); ok {
		t.Fatal("still incomplete at end of stream")
	}
	if p.carry != "" {
		t.Errorf("carry must be discarded at the final line, got %q", p.carry)
	}
}

func TestParser_EmptyLine(t *testing.T) {
	p := newTestParser()
	if _, ok := p.parse("", false); ok {
		t.Error("empty line decoded")
	}
}
