package relay

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/creack/pty"
)

// SpawnError reports that the agent binary could not be started. It is the
// only failure surfaced synchronously to the caller; every fault after spawn
// is absorbed into a sentinel emission instead.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string { return fmt.Sprintf("spawn %s: %v", e.Path, e.Err) }
func (e *SpawnError) Unwrap() error { return e.Err }

// killFallbackCode is reported when the grace window elapses and no real
// exit status could be collected.
const killFallbackCode = 137

// session owns one agent process and its pseudo-terminal. Interactive agent
// CLIs detect a non-terminal stdout and stop flushing line-by-line (or
// refuse to run at all), so the child gets the PTY follower as its
// controlling terminal rather than a pipe.
type session struct {
	cmd     *exec.Cmd
	tty     *os.File // PTY leader
	started time.Time
	log     *slog.Logger

	waitCh chan struct{}
	exit   int // valid once waitCh is closed
}

// startSession spawns argv attached to a fresh pseudo-terminal.
func startSession(argv []string, env []string, dir string, log *slog.Logger) (*session, error) {
	if len(argv) == 0 {
		return nil, &SpawnError{Err: errors.New("empty argv")}
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = env
	cmd.Dir = dir

	tty, err := pty.Start(cmd)
	if err != nil {
		return nil, &SpawnError{Path: argv[0], Err: err}
	}

	s := &session{
		cmd:     cmd,
		tty:     tty,
		started: time.Now(),
		log:     log,
		waitCh:  make(chan struct{}),
	}
	go s.wait()
	return s, nil
}

// wait reaps the child exactly once and publishes its exit code.
func (s *session) wait() {
	err := s.cmd.Wait()
	code := 0
	var xerr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &xerr):
		code = xerr.ExitCode()
	default:
		code = killFallbackCode
	}
	s.exit = code
	close(s.waitCh)
}

// poll returns the exit code without blocking; ok is false while running.
func (s *session) poll() (int, bool) {
	select {
	case <-s.waitCh:
		return s.exit, true
	default:
		return 0, false
	}
}

// readChunk reads whatever is available within timeout. A zero count with a
// nil error means nothing arrived in time. io.EOF means the channel is gone;
// a PTY leader reads EIO once the child side is closed, which is the normal
// end of stream and not a fault.
func (s *session) readChunk(p []byte, timeout time.Duration) (int, error) {
	_ = s.tty.SetReadDeadline(time.Now().Add(timeout))
	n, err := s.tty.Read(p)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, os.ErrDeadlineExceeded):
		return n, nil
	case errors.Is(err, io.EOF), errors.Is(err, syscall.EIO), errors.Is(err, os.ErrClosed):
		return n, io.EOF
	default:
		return n, err
	}
}

// terminateAndReap asks the process to exit, escalating to a hard kill after
// grace, and always returns an exit code so the pipeline never blocks on a
// stuck child. Safe to call after the process has already exited.
func (s *session) terminateAndReap(grace time.Duration) int {
	defer func() { _ = s.tty.Close() }()

	if code, done := s.poll(); done {
		return code
	}
	_ = terminateGroup(s.cmd)
	select {
	case <-s.waitCh:
		return s.exit
	case <-time.After(grace):
	}
	_ = killGroup(s.cmd)
	select {
	case <-s.waitCh:
		return s.exit
	case <-time.After(grace):
		s.log.Warn("agent process survived hard kill, abandoning reap",
			"pid", s.cmd.Process.Pid, "uptime", time.Since(s.started))
		return killFallbackCode
	}
}
