// Package reporter renders streamed answer updates to the terminal.
package reporter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/askforge/internal/relay"
)

const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorDim   = "\033[2m"
)

// StreamReporter prints progressive answer updates. On a terminal each
// update overwrites the previous one in place; on a pipe only the final
// answer is printed, so downstream consumers see exactly one document.
type StreamReporter struct {
	w         io.Writer
	color     bool
	lastLines int
	lastText  string
	updates   int
}

// NewStreamReporter creates a stream reporter.
// If w is nil, defaults to os.Stdout. color enables ANSI codes and in-place
// redraw.
func NewStreamReporter(w io.Writer, color bool) *StreamReporter {
	if w == nil {
		w = os.Stdout
	}
	return &StreamReporter{w: w, color: color}
}

// Update redraws the current best-known answer.
func (r *StreamReporter) Update(text string) {
	r.updates++
	r.lastText = text
	if !r.color {
		return
	}
	r.clear()
	lines := strings.Split(text, "\n")
	for _, line := range lines {
		fmt.Fprintf(r.w, "\033[K%s\n", line)
	}
	r.lastLines = len(lines)
}

// Finish renders the terminal emission and a status footer. A bare final
// marker leaves the last update on screen; on a pipe, where updates are
// suppressed, it prints the last update so the answer is never lost.
func (r *StreamReporter) Finish(e relay.Emission, agent string, elapsed time.Duration) {
	text := e.Text
	if text == "" && !r.color {
		text = r.lastText
	}
	if text != "" {
		if r.color {
			r.clear()
			r.lastLines = 0
		}
		fmt.Fprintln(r.w, text)
	}
	fmt.Fprintf(r.w, "%s— %s, %s%s\n",
		r.c(colorDim), agent, elapsed.Truncate(100*time.Millisecond), r.c(colorReset))
}

// Fail reports an error that preempted any answer.
func (r *StreamReporter) Fail(msg string) {
	fmt.Fprintf(r.w, "%s%s%s\n", r.c(colorRed), msg, r.c(colorReset))
}

// Updates reports how many intermediate updates were shown or suppressed.
func (r *StreamReporter) Updates() int { return r.updates }

func (r *StreamReporter) clear() {
	if r.lastLines > 0 {
		fmt.Fprintf(r.w, "\033[%dA", r.lastLines)
		for i := 0; i < r.lastLines; i++ {
			fmt.Fprintf(r.w, "\033[K\n")
		}
		fmt.Fprintf(r.w, "\033[%dA", r.lastLines)
	}
}

func (r *StreamReporter) c(code string) string {
	if !r.color {
		return ""
	}
	return code
}
