package relay

import "time"

// Category labels where an emission's text came from.
type Category int

const (
	CategoryNone Category = iota
	CategoryAssistant
	CategoryResult
)

func (c Category) String() string {
	switch c {
	case CategoryAssistant:
		return "assistant"
	case CategoryResult:
		return "result"
	default:
		return "none"
	}
}

// Emission is one paced update handed to the caller. Final is true exactly
// once, on the last record of a fully consumed sequence.
type Emission struct {
	Text     string
	Final    bool
	Category Category
}

// pacedEmitter throttles delivery of answer updates. The first emission is
// held briefly so a tiny opening fragment can grow into something worth
// showing; later emissions respect a minimum interval for downstream rate
// limits; end of input flushes everything.
type pacedEmitter struct {
	firstWithin time.Duration
	minInterval time.Duration

	start      time.Time
	lastEmit   time.Time
	emitted    bool
	lastSent   string
	pending    string
	hasPending bool
}

func newPacedEmitter(start time.Time, firstWithin, minInterval time.Duration) *pacedEmitter {
	return &pacedEmitter{firstWithin: firstWithin, minInterval: minInterval, start: start}
}

// observe records a new best-known text as the pending update.
func (e *pacedEmitter) observe(text string) {
	if text == e.lastSent {
		return
	}
	e.pending = text
	e.hasPending = true
}

// due returns the pending update if pacing allows sending it now. idle marks
// a tick on which no input arrived; waiting any longer would buy nothing, so
// an idle tick releases the first-emission hold immediately.
func (e *pacedEmitter) due(now time.Time, idle bool) (Emission, bool) {
	if !e.hasPending {
		return Emission{}, false
	}
	if !e.emitted {
		if !idle && now.Sub(e.start) < e.firstWithin {
			return Emission{}, false
		}
	} else if now.Sub(e.lastEmit) < e.minInterval {
		return Emission{}, false
	}
	return e.send(now), true
}

func (e *pacedEmitter) send(now time.Time) Emission {
	out := Emission{Text: e.pending, Category: CategoryAssistant}
	e.lastSent = e.pending
	e.pending = ""
	e.hasPending = false
	e.emitted = true
	e.lastEmit = now
	return out
}

// finish flushes the held update, bypassing pacing, and produces the single
// final record: the authoritative answer when one arrived, a bare final
// marker when partial updates were already shown, or the no-output sentinel
// as the sole record of the invocation.
func (e *pacedEmitter) finish(a *accumulator, now time.Time) []Emission {
	var out []Emission
	if e.hasPending {
		out = append(out, e.send(now))
	}
	switch {
	case a.finalized:
		out = append(out, Emission{Text: a.authoritative, Final: true, Category: CategoryResult})
	case e.emitted:
		out = append(out, Emission{Final: true, Category: CategoryNone})
	default:
		out = append(out, Emission{Text: sentinelNoOutput, Final: true, Category: CategoryNone})
	}
	return out
}
