package relay

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// eventParser decodes raw lines into structured events. The agent writes
// records with arbitrary line-splitting, so a line that fails to decode is
// kept in a carry-over buffer and retried as a prefix of each subsequent
// line until a decode succeeds or the stream ends.
type eventParser struct {
	carry string
	deny  []string
	log   *slog.Logger
}

func newEventParser(denyPrefixes []string, log *slog.Logger) *eventParser {
	return &eventParser{deny: denyPrefixes, log: log}
}

// parse attempts to decode one line. The second return value reports whether
// a structured record was decoded; unrecognized and suppressed records still
// count as decoded. Failure to decode is never an error: non-structured
// lines are interleaved on the same terminal by the agent's own tooling.
func (p *eventParser) parse(line string, final bool) (Event, bool) {
	if strings.TrimSpace(line) == "" {
		if final {
			p.discard()
		}
		return Event{}, false
	}

	var rec wireRecord
	if err := json.Unmarshal([]byte(line), &rec); err == nil {
		p.carry = ""
		return p.classify(&rec), true
	}

	if p.carry != "" {
		joined := p.carry + line
		if err := json.Unmarshal([]byte(joined), &rec); err == nil {
			p.carry = ""
			return p.classify(&rec), true
		}
		p.carry = joined
	} else {
		p.carry = line
	}

	if final {
		p.discard()
	}
	return Event{}, false
}

// discard drops the carry-over buffer at end of stream. Diagnostic only.
func (p *eventParser) discard() {
	if p.carry == "" {
		return
	}
	p.log.Debug("discarding undecodable stream residue", "bytes", len(p.carry))
	p.carry = ""
}

func (p *eventParser) classify(rec *wireRecord) Event {
	switch rec.Type {
	case "assistant":
		txt := rec.assistantText()
		if p.denied(txt) {
			return Event{Kind: EventAssistant}
		}
		return Event{Kind: EventAssistant, Text: txt}
	case "result":
		if rec.Subtype == "success" {
			return Event{Kind: EventResult, Text: rec.Result}
		}
		// error results reset the idle clock but carry no answer
		return Event{Kind: EventUnrecognized}
	case "tool_call":
		if rec.Status != "completed" {
			return Event{Kind: EventUnrecognized}
		}
		txt := rec.toolText()
		if p.denied(txt) {
			return Event{Kind: EventToolCall}
		}
		return Event{Kind: EventToolCall, Text: txt}
	case "thinking":
		return Event{Kind: EventThinking}
	default:
		return Event{Kind: EventUnrecognized}
	}
}

// denied reports whether the text matches the boilerplate prefix denylist:
// chatter that announces an action instead of answering.
func (p *eventParser) denied(text string) bool {
	t := strings.TrimSpace(text)
	for _, prefix := range p.deny {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}
