package watch

import (
	"os"
	"path/filepath"
)

// Dirs holds the directory layout for watch daemon state.
type Dirs struct {
	Inbox      string // source: question files land here
	Processing string // questions currently being asked
	Answered   string // answered questions and their answers
	Failed     string // questions that could not be answered
}

// NewDirs creates a Dirs from the inbox and state directories.
func NewDirs(inbox, stateDir string) Dirs {
	return Dirs{
		Inbox:      inbox,
		Processing: filepath.Join(stateDir, "processing"),
		Answered:   filepath.Join(stateDir, "answered"),
		Failed:     filepath.Join(stateDir, "failed"),
	}
}

// EnsureDirs creates all watch directories, the inbox included.
func EnsureDirs(d Dirs) error {
	for _, dir := range []string{d.Inbox, d.Processing, d.Answered, d.Failed} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
