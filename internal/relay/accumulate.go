package relay

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Reconstruction thresholds. Tunable constants, not derived values.
const (
	// fingerprintLen is how much of the first accepted text identifies a
	// full restart of the answer.
	fingerprintLen = 24

	// restartRatio is the minimum candidate length, relative to the
	// accumulated text, for a fingerprint match to count as a restart.
	restartRatio = 0.8

	// fragmentMinLen is the length under which a disconnected candidate
	// is rejected outright.
	fragmentMinLen = 12
)

// continuationPunct are leading runes that read as flowing prose.
const continuationPunct = ",.;:!?)]}'\""

// sentenceEnders close a sentence; a candidate following one is accepted
// even when it looks fragmentary.
const sentenceEnders = ".!?:\n"

// accumulator merges candidate texts into the single best-known answer.
// The upstream stream mixes genuine deltas, duplicate retransmissions and
// occasional full restatements with no framing to tell them apart, so every
// candidate is classified before it touches the answer. Once finalized the
// answer never changes again.
type accumulator struct {
	best          string
	fingerprint   string
	finalized     bool
	authoritative string
}

// candidate folds one assistant or tool text into the answer and reports
// whether the best-known text changed.
func (a *accumulator) candidate(c string) bool {
	if a.finalized || c == "" || c == a.best {
		return false
	}
	if a.best == "" {
		a.best = c
		a.fingerprint = firstFingerprint(c)
		return true
	}
	switch {
	case strings.Contains(c, a.best):
		// the agent re-sent a fuller version of the same answer
		a.best = c
		return true
	case strings.Contains(a.best, c):
		// stale duplicate
		return false
	case isRestart(c, a.best, a.fingerprint):
		a.best = c
		return true
	case shouldRejectFragment(c, a.best):
		return false
	default:
		// chunk boundaries already align for readable text
		a.best += c
		return true
	}
}

// finalize records the authoritative answer. The divergence check is purely
// diagnostic and never affects what is emitted.
func (a *accumulator) finalize(r string, log *slog.Logger) {
	if a.finalized {
		return
	}
	if a.best != "" && normalizeSpace(a.best) != normalizeSpace(r) {
		log.Debug("accumulated text diverges from authoritative result",
			"accumulated_len", len(a.best), "result_len", len(r))
	}
	a.authoritative = r
	a.finalized = true
}

// firstFingerprint returns the fixed-length prefix used for restart detection.
func firstFingerprint(s string) string {
	if len(s) <= fingerprintLen {
		return s
	}
	return s[:fingerprintLen]
}

// isRestart reports whether c looks like the agent re-emitting the entire
// answer instead of a delta.
func isRestart(c, best, fingerprint string) bool {
	if fingerprint == "" {
		return false
	}
	return float64(len(c)) >= restartRatio*float64(len(best)) &&
		strings.HasPrefix(c, fingerprint)
}

// shouldRejectFragment reports whether c is a disconnected artifact rather
// than a genuine continuation. All four conditions must hold to reject.
func shouldRejectFragment(c, best string) bool {
	return len(c) < fragmentMinLen &&
		!startsLikeContinuation(c) &&
		!looksLikeListItem(c) &&
		!endsSentence(best)
}

// startsLikeContinuation reports whether c opens the way flowing prose
// would: an uppercase letter, a leading space, or continuation punctuation.
func startsLikeContinuation(c string) bool {
	r, _ := utf8.DecodeRuneInString(c)
	return unicode.IsUpper(r) || r == ' ' || strings.ContainsRune(continuationPunct, r)
}

// looksLikeListItem reports whether c opens a list entry or heading.
func looksLikeListItem(c string) bool {
	t := strings.TrimLeft(c, " \t")
	if t == "" {
		return false
	}
	for _, m := range []string{"-", "*", "#", "•", ">"} {
		if strings.HasPrefix(t, m) {
			return true
		}
	}
	i := 0
	for i < len(t) && t[i] >= '0' && t[i] <= '9' {
		i++
	}
	return i > 0 && i < len(t) && (t[i] == '.' || t[i] == ')')
}

// endsSentence reports whether s closes a sentence.
func endsSentence(s string) bool {
	s = strings.TrimRight(s, " \t")
	if s == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	return strings.ContainsRune(sentenceEnders, r)
}

// normalizeSpace collapses whitespace runs for the divergence check.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
