package relay

// Agent stream event types.
// The agent CLI emits newline-delimited JSON records to its terminal. Each
// well-formed record carries a type discriminator; everything else on the
// stream is noise.

// EventKind identifies the kind of structured record decoded from the stream.
type EventKind int

const (
	EventUnrecognized EventKind = iota
	EventAssistant
	EventResult
	EventToolCall
	EventThinking
)

// Event is one decoded structured record.
type Event struct {
	Kind EventKind
	Text string
}

// wireRecord is the top-level JSON structure emitted by the agent.
// Fields are a union over the recognized record shapes; decoding is total
// and unknown shapes fall through to EventUnrecognized.
type wireRecord struct {
	Type    string        `json:"type"`
	Subtype string        `json:"subtype,omitempty"`
	Result  string        `json:"result,omitempty"`
	Status  string        `json:"status,omitempty"`
	Output  string        `json:"output,omitempty"`
	Text    string        `json:"text,omitempty"`
	Message *wireMessage  `json:"message,omitempty"`
	Content []wireContent `json:"content,omitempty"`
}

type wireMessage struct {
	Role    string        `json:"role,omitempty"`
	Content []wireContent `json:"content,omitempty"`
}

type wireContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// assistantText gathers the text blocks of an assistant record. Newer agent
// versions nest content under message, older ones put it at the top level.
func (r *wireRecord) assistantText() string {
	blocks := r.Content
	if r.Message != nil && len(r.Message.Content) > 0 {
		blocks = r.Message.Content
	}
	var out string
	for _, b := range blocks {
		if b.Type == "text" {
			out += b.Text
		}
	}
	if out == "" {
		out = r.Text
	}
	return out
}

// toolText returns the produced output of a completed tool call.
func (r *wireRecord) toolText() string {
	if r.Output != "" {
		return r.Output
	}
	for _, b := range r.Content {
		if b.Type == "text" && b.Text != "" {
			return b.Text
		}
	}
	return ""
}
