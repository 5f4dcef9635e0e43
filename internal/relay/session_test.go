//go:build !windows

package relay

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"
)

func TestSession_EchoRoundTrip(t *testing.T) {
	if _, err := os.Stat("/bin/echo"); err != nil {
		t.Skip("/bin/echo not available")
	}
	s, err := startSession([]string{"/bin/echo", "hello from tty"}, SanitizedEnv(), "", testLogger())
	if err != nil {
		t.Fatalf("startSession: %v", err)
	}
	defer s.terminateAndReap(100 * time.Millisecond)

	var out strings.Builder
	buf := make([]byte, 4096)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, err := s.readChunk(buf, 50*time.Millisecond)
		out.Write(buf[:n])
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("readChunk: %v", err)
		}
		if _, done := s.poll(); done && n == 0 {
			break
		}
	}
	if !strings.Contains(out.String(), "hello from tty") {
		t.Errorf("output = %q", out.String())
	}
}

func TestSession_ExitCodeCollected(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	s, err := startSession([]string{"/bin/sh", "-c", "exit 3"}, SanitizedEnv(), "", testLogger())
	if err != nil {
		t.Fatalf("startSession: %v", err)
	}
	select {
	case <-s.waitCh:
	case <-time.After(5 * time.Second):
		t.Fatal("child never exited")
	}
	if code := s.terminateAndReap(time.Second); code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
}

func TestSession_ReapKillsStubbornChild(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	// ignores SIGTERM; only the SIGKILL escalation ends it
	s, err := startSession([]string{"/bin/sh", "-c", "trap '' TERM; sleep 60"}, SanitizedEnv(), "", testLogger())
	if err != nil {
		t.Fatalf("startSession: %v", err)
	}
	start := time.Now()
	code := s.terminateAndReap(200 * time.Millisecond)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("reap took %v", elapsed)
	}
	if code == 0 {
		t.Error("killed child reported success")
	}
}

func TestSession_ReapAfterNaturalExit(t *testing.T) {
	if _, err := os.Stat("/bin/true"); err != nil {
		t.Skip("/bin/true not available")
	}
	s, err := startSession([]string{"/bin/true"}, SanitizedEnv(), "", testLogger())
	if err != nil {
		t.Fatalf("startSession: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, done := s.poll(); done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("child never exited")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if code := s.terminateAndReap(time.Second); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

func TestStartSession_BadBinary(t *testing.T) {
	_, err := startSession([]string{"/nonexistent/agent-binary"}, nil, "", testLogger())
	var se *SpawnError
	if !errors.As(err, &se) {
		t.Fatalf("want *SpawnError, got %v", err)
	}
	if se.Path != "/nonexistent/agent-binary" || se.Unwrap() == nil {
		t.Errorf("got %+v", se)
	}
}
