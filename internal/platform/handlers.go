package platform

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileHandler writes the full answer text to the path after the "file:"
// prefix. The write is atomic (temp file plus rename) so a reader polling
// the answer file never sees a half-written update.
func FileHandler(target, text string) error {
	path := strings.TrimPrefix(target, "file:")
	if path == "" {
		return fmt.Errorf("file target without a path")
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".askforge-answer-*")
	if err != nil {
		return fmt.Errorf("stage answer file: %w", err)
	}
	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write answer file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close answer file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("publish answer file: %w", err)
	}
	return nil
}

// WriterHandler streams updates to w, one per line. Concurrent deliveries
// are serialized so interleaved answers stay readable.
func WriterHandler(w io.Writer) Handler {
	var mu sync.Mutex
	return func(_, text string) error {
		mu.Lock()
		defer mu.Unlock()
		if _, err := fmt.Fprintln(w, text); err != nil {
			return fmt.Errorf("write update: %w", err)
		}
		return nil
	}
}
