package relay

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

// rawLine is one decoded line of agent output. final marks the single line
// emitted once the process has exited and the byte buffer is drained; its
// text is whatever unterminated residue was left, possibly empty.
type rawLine struct {
	text  string
	final bool
}

// byteSource is the part of a process session the demuxer needs.
type byteSource interface {
	readChunk(p []byte, timeout time.Duration) (int, error)
	poll() (int, bool)
}

// lineDemuxer turns a raw byte stream into discrete lines under a bounded
// short poll, so the caller can interleave exit and clock checks between
// reads instead of blocking on the terminal.
type lineDemuxer struct {
	src   byteSource
	poll  time.Duration
	chunk []byte
	buf   []byte
	queue []rawLine
	done  bool
	log   *slog.Logger
}

func newLineDemuxer(src byteSource, chunkSize int, poll time.Duration, log *slog.Logger) *lineDemuxer {
	return &lineDemuxer{src: src, poll: poll, chunk: make([]byte, chunkSize), log: log}
}

// next returns the next line. ok=false without a line is an idle tick.
// After the final line has been handed out, next always reports an idle
// tick; the caller is expected to stop at the final line anyway.
func (d *lineDemuxer) next() (rawLine, bool) {
	if ln, ok := d.pop(); ok {
		return ln, true
	}
	if d.done {
		return rawLine{}, false
	}

	_, exited := d.src.poll()
	n, err := d.src.readChunk(d.chunk, d.poll)
	if n > 0 {
		d.buf = append(d.buf, d.chunk[:n]...)
		d.splitLines()
	}

	eof := errors.Is(err, io.EOF) || (exited && n == 0 && err == nil)
	if err != nil && !errors.Is(err, io.EOF) {
		// read faults are expected once the process side of the
		// terminal is gone; treat them as end of stream
		d.log.Debug("terminal read failed, ending stream", "error", err)
		eof = true
	}
	if eof {
		d.queue = append(d.queue, rawLine{text: d.residue(), final: true})
	}

	return d.pop()
}

func (d *lineDemuxer) pop() (rawLine, bool) {
	if len(d.queue) == 0 {
		return rawLine{}, false
	}
	ln := d.queue[0]
	d.queue = d.queue[1:]
	if ln.final {
		d.done = true
	}
	return ln, true
}

// splitLines moves complete lines out of the byte buffer.
func (d *lineDemuxer) splitLines() {
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			return
		}
		line := bytes.TrimSuffix(d.buf[:i], []byte("\r")) // terminals emit CRLF
		d.queue = append(d.queue, rawLine{text: decodeLossy(line)})
		d.buf = d.buf[i+1:]
	}
}

// residue drains the trailing unterminated content.
func (d *lineDemuxer) residue() string {
	text := strings.TrimSuffix(decodeLossy(d.buf), "\r")
	d.buf = nil
	return text
}

// decodeLossy converts bytes to text, replacing invalid sequences instead of
// failing.
func decodeLossy(b []byte) string {
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}
