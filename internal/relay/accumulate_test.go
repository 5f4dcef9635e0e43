package relay

import (
	"log/slog"
	"strings"
	"testing"
)

func TestAccumulator_FirstCandidate(t *testing.T) {
	a := &accumulator{}
	if !a.candidate("Hello there, this is the answer.") {
		t.Fatal("first candidate should change state")
	}
	if a.best != "Hello there, this is the answer." {
		t.Errorf("unexpected best: %q", a.best)
	}
	if a.fingerprint != "Hello there, this is the" {
		t.Errorf("unexpected fingerprint: %q", a.fingerprint)
	}
}

func TestAccumulator_Supersede(t *testing.T) {
	a := &accumulator{}
	a.candidate("Hello world")
	if !a.candidate("Hello world, and more detail.") {
		t.Fatal("fuller version should supersede")
	}
	if a.best != "Hello world, and more detail." {
		t.Errorf("unexpected best: %q", a.best)
	}
}

func TestAccumulator_StaleDuplicate(t *testing.T) {
	a := &accumulator{}
	a.candidate("The answer is 42, obviously.")
	if a.candidate("answer is 42") {
		t.Error("substring of best should be ignored")
	}
	if a.best != "The answer is 42, obviously." {
		t.Errorf("best changed: %q", a.best)
	}
}

func TestAccumulator_ExactRepeat(t *testing.T) {
	a := &accumulator{}
	a.candidate("Same text again.")
	if a.candidate("Same text again.") {
		t.Error("identical candidate should not report a change")
	}
}

func TestAccumulator_FullRestart(t *testing.T) {
	first := "The capital of France is Paris."
	a := &accumulator{}
	a.candidate(first)
	a.candidate(" It sits on the Seine.")

	// same opening, comparable size: the agent re-emitted everything
	restart := "The capital of France is Paris, which sits on the Seine river."
	if !a.candidate(restart) {
		t.Fatal("restart should replace the accumulated text")
	}
	if a.best != restart {
		t.Errorf("best = %q, want restart text", a.best)
	}
}

func TestAccumulator_RestartRequiresFingerprint(t *testing.T) {
	a := &accumulator{}
	a.candidate("Alpha beta gamma delta epsilon zeta eta theta.")
	long := "Completely different text of comparable length to the best"
	// no fingerprint match: long non-substring text appends instead
	a.candidate(long)
	if !strings.HasSuffix(a.best, long) {
		t.Errorf("expected append, got %q", a.best)
	}
}

func TestAccumulator_FragmentRejected(t *testing.T) {
	a := &accumulator{}
	a.candidate("This answer has no terminal punctuation yet") // no sentence end
	if a.candidate("x7 stray") {
		t.Error("short lowercase fragment should be rejected")
	}
	if a.best != "This answer has no terminal punctuation yet" {
		t.Errorf("best changed: %q", a.best)
	}
}

func TestAccumulator_ShortContinuationAccepted(t *testing.T) {
	a := &accumulator{}
	a.candidate("The result is")
	if !a.candidate(" ready.") {
		t.Error("leading space marks a genuine continuation")
	}
	if a.best != "The result is ready." {
		t.Errorf("best = %q", a.best)
	}
}

func TestAccumulator_ShortAfterSentenceAccepted(t *testing.T) {
	a := &accumulator{}
	a.candidate("Done.")
	if !a.candidate("yes it's") {
		t.Error("candidate after a sentence end should be accepted")
	}
}

func TestAccumulator_Append(t *testing.T) {
	a := &accumulator{}
	a.candidate("First sentence. ")
	a.candidate("Second sentence follows naturally here.")
	want := "First sentence. Second sentence follows naturally here."
	if a.best != want {
		t.Errorf("best = %q, want %q", a.best, want)
	}
}

func TestAccumulator_FinalizeWins(t *testing.T) {
	a := &accumulator{}
	a.candidate("partial accumulation")
	a.finalize("The complete authoritative answer.", slog.Default())

	if !a.finalized {
		t.Fatal("not finalized")
	}
	if a.authoritative != "The complete authoritative answer." {
		t.Errorf("authoritative = %q", a.authoritative)
	}
	if a.candidate("late delta") {
		t.Error("candidates after finalize must be ignored")
	}
	best := a.best
	a.finalize("second result", slog.Default())
	if a.authoritative != "The complete authoritative answer." || a.best != best {
		t.Error("second finalize must be a no-op")
	}
}

func TestAccumulator_FinalizeFromEmpty(t *testing.T) {
	a := &accumulator{}
	a.finalize("Straight to the result.", slog.Default())
	if !a.finalized || a.authoritative != "Straight to the result." {
		t.Error("finalize must work regardless of prior state")
	}
}

func TestAccumulator_MonotonicLength(t *testing.T) {
	// outside supersede/restart transitions the answer never shrinks
	a := &accumulator{}
	inputs := []string{
		"Step one of the answer. ",
		"Step one",
		"Step two continues the thought, ",
		"zz",
		"Step three wraps it up.",
	}
	prev := 0
	for _, in := range inputs {
		a.candidate(in)
		if len(a.best) < prev {
			t.Fatalf("answer shrank after %q", in)
		}
		prev = len(a.best)
	}
}

func TestIsRestart(t *testing.T) {
	fp := firstFingerprint("The quick brown fox jumps over")
	tests := []struct {
		name string
		c    string
		best string
		want bool
	}{
		{"matching prefix and size", "The quick brown fox jumps over the dog", "The quick brown fox jumps over the", true},
		{"too short", "The quick brown fox jump", "The quick brown fox jumps over the lazy dog and keeps running far away", false},
		{"wrong prefix", "A different opening entirely, but long enough to pass the ratio", "The quick brown fox jumps over the", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRestart(tt.c, tt.best, fp); got != tt.want {
				t.Errorf("isRestart(%q) = %v, want %v", tt.c, got, tt.want)
			}
		})
	}
	if isRestart("anything", "best", "") {
		t.Error("empty fingerprint never matches")
	}
}

func TestShouldRejectFragment(t *testing.T) {
	tests := []struct {
		name string
		c    string
		best string
		want bool
	}{
		{"short lowercase artifact", "kb of", "text without sentence end", true},
		{"long enough", "this is a longer continuation chunk", "text", false},
		{"uppercase start", "Yes", "text", false},
		{"leading space", " and", "text", false},
		{"continuation punctuation", ", but", "text", false},
		{"list marker", "- item", "text", false},
		{"numbered list", "1. go", "text", false},
		{"heading", "# Top", "text", false},
		{"after sentence end", "next", "Sentence done.", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRejectFragment(tt.c, tt.best); got != tt.want {
				t.Errorf("shouldRejectFragment(%q, %q) = %v, want %v", tt.c, tt.best, got, tt.want)
			}
		})
	}
}

func TestNormalizeSpace(t *testing.T) {
	if got := normalizeSpace("  a\t b\n\nc "); got != "a b c" {
		t.Errorf("normalizeSpace = %q", got)
	}
}
