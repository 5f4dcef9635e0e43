package platform

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRegistry_LongestPrefixWins(t *testing.T) {
	r := NewRegistry()
	var hit string
	r.Register("file:", func(string, string) error { hit = "short"; return nil })
	r.Register("file:tmp:", func(string, string) error { hit = "long"; return nil })

	if err := r.Deliver("file:tmp:/x", "answer"); err != nil {
		t.Fatal(err)
	}
	if hit != "long" {
		t.Errorf("routed to %q", hit)
	}

	if err := r.Deliver("file:/y", "answer"); err != nil {
		t.Fatal(err)
	}
	if hit != "short" {
		t.Errorf("routed to %q", hit)
	}
}

func TestRegistry_UnknownTarget(t *testing.T) {
	r := NewRegistry()
	r.Register("stdout:", func(string, string) error { return nil })
	if err := r.Deliver("telegram:123", "answer"); err == nil {
		t.Fatal("expected error for unregistered prefix")
	}
}

func TestRegistry_ReplaceHandler(t *testing.T) {
	r := NewRegistry()
	r.Register("x:", func(string, string) error { t.Error("stale handler called"); return nil })
	called := false
	r.Register("x:", func(string, string) error { called = true; return nil })
	if err := r.Deliver("x:1", "t"); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("replacement handler not called")
	}
}

func TestFileHandler_AtomicWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answer.txt")
	if err := FileHandler("file:"+path, "final answer"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "final answer" {
		t.Errorf("content = %q", data)
	}

	// second delivery replaces the first
	if err := FileHandler("file:"+path, "revised"); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "revised" {
		t.Errorf("content = %q", data)
	}

	// no staging files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".askforge-answer-") {
			t.Errorf("staging file left behind: %s", e.Name())
		}
	}
}

func TestFileHandler_EmptyPath(t *testing.T) {
	if err := FileHandler("file:", "text"); err == nil {
		t.Fatal("expected error")
	}
}

func TestWriterHandler(t *testing.T) {
	var sb strings.Builder
	h := WriterHandler(&sb)
	if err := h("stdout:", "line one"); err != nil {
		t.Fatal(err)
	}
	if err := h("stdout:", "line two"); err != nil {
		t.Fatal(err)
	}
	if sb.String() != "line one\nline two\n" {
		t.Errorf("output = %q", sb.String())
	}
}
