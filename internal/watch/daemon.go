// Package watch runs a drop-directory daemon: question files placed in an
// inbox are streamed through the agent and answered in place.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ppiankov/askforge/internal/platform"
)

// debounceDefault is the debounce interval for file events.
const debounceDefault = 500 * time.Millisecond

// pollDefault is the polling interval when fsnotify is unavailable.
const pollDefault = 5 * time.Second

// Config holds watch daemon configuration.
type Config struct {
	InboxDir string        // where question files land
	StateDir string        // daemon working state
	PollMode bool          // fall back to polling if fsnotify unavailable
	Debounce time.Duration // event debounce, defaults to 500ms
	AskFn    AskFunc       // pipeline invocation (injected by cli to break import cycle)
}

// Daemon watches for question files and answers them.
type Daemon struct {
	cfg       Config
	dirs      Dirs
	processor *Processor
}

// New creates a daemon with validated configuration.
func New(cfg Config) (*Daemon, error) {
	if cfg.InboxDir == "" {
		return nil, fmt.Errorf("inbox directory is required")
	}
	if cfg.StateDir == "" {
		return nil, fmt.Errorf("state directory is required")
	}
	if cfg.AskFn == nil {
		return nil, fmt.Errorf("ask function is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = debounceDefault
	}

	dirs := NewDirs(cfg.InboxDir, cfg.StateDir)
	reg := platform.NewRegistry()
	reg.Register("file:", platform.FileHandler)
	processor := NewProcessor(dirs, cfg.AskFn, reg)

	return &Daemon{
		cfg:       cfg,
		dirs:      dirs,
		processor: processor,
	}, nil
}

// Run starts the daemon. Blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := EnsureDirs(d.dirs); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	pidPath := filepath.Join(d.cfg.StateDir, "askforge.pid")
	if err := acquirePIDLock(pidPath); err != nil {
		return fmt.Errorf("acquire PID lock: %w", err)
	}
	defer func() { _ = os.Remove(pidPath) }()

	slog.Info("watch daemon starting",
		"inbox", d.cfg.InboxDir,
		"state", d.cfg.StateDir,
	)

	if err := d.recoverOrphans(); err != nil {
		return fmt.Errorf("recover orphans: %w", err)
	}

	if err := d.scanExisting(ctx); err != nil {
		return fmt.Errorf("scan existing: %w", err)
	}

	if d.cfg.PollMode {
		return d.runPollWatcher(ctx)
	}
	return d.runFSWatcher(ctx)
}

// scanExisting processes question files already sitting in the inbox.
func (d *Daemon) scanExisting(ctx context.Context) error {
	entries, err := os.ReadDir(d.cfg.InboxDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !isQuestionFile(e.Name()) {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		path := filepath.Join(d.cfg.InboxDir, e.Name())
		if err := d.processor.Process(ctx, path); err != nil {
			slog.Error("process existing", "file", e.Name(), "error", err)
		}
	}
	return nil
}

// runFSWatcher watches the inbox using fsnotify.
func (d *Daemon) runFSWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(d.cfg.InboxDir); err != nil {
		return fmt.Errorf("watch dir: %w", err)
	}

	slog.Info("watching for questions", "mode", "fsnotify", "dir", d.cfg.InboxDir)

	var mu sync.Mutex
	pending := make(map[string]*time.Timer)

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			for _, t := range pending {
				t.Stop()
			}
			mu.Unlock()
			slog.Info("watch daemon stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// writers create then write; debounce from the last event
			// so a slowly written question is read whole
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isQuestionFile(filepath.Base(event.Name)) {
				continue
			}

			path := event.Name
			mu.Lock()
			if t, exists := pending[path]; exists {
				t.Stop()
			}
			pending[path] = time.AfterFunc(d.cfg.Debounce, func() {
				if err := d.processor.Process(ctx, path); err != nil {
					slog.Error("process question", "file", filepath.Base(path), "error", err)
				}
				mu.Lock()
				delete(pending, path)
				mu.Unlock()
			})
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

// runPollWatcher watches the inbox using polling.
func (d *Daemon) runPollWatcher(ctx context.Context) error {
	slog.Info("watching for questions", "mode", "poll", "dir", d.cfg.InboxDir, "interval", pollDefault)

	seen := make(map[string]bool)
	ticker := time.NewTicker(pollDefault)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("watch daemon stopped")
			return nil
		case <-ticker.C:
			entries, err := os.ReadDir(d.cfg.InboxDir)
			if err != nil {
				continue
			}
			for _, e := range entries {
				if e.IsDir() || !isQuestionFile(e.Name()) {
					continue
				}
				path := filepath.Join(d.cfg.InboxDir, e.Name())
				if seen[path] {
					continue
				}
				seen[path] = true
				if err := d.processor.Process(ctx, path); err != nil {
					slog.Error("process question", "file", e.Name(), "error", err)
				}
			}
		}
	}
}

// recoverOrphans fails questions left in processing/ by a crashed daemon.
func (d *Daemon) recoverOrphans() error {
	entries, err := os.ReadDir(d.dirs.Processing)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, e := range entries {
		if e.IsDir() || !isQuestionFile(e.Name()) {
			continue
		}
		qid := questionID(e.Name())
		slog.Warn("recovering orphaned question", "question", qid)

		_ = d.processor.writeFailed(qid, "interrupted: question was processing when the daemon stopped")
		_ = moveFile(filepath.Join(d.dirs.Processing, e.Name()), filepath.Join(d.dirs.Failed, e.Name()))
	}
	return nil
}

// isQuestionFile returns true for question payloads: .txt files that are
// neither staging files nor answers.
func isQuestionFile(name string) bool {
	return strings.HasSuffix(name, ".txt") &&
		!strings.HasSuffix(name, ".tmp") &&
		!strings.HasSuffix(name, ".answer.txt") &&
		!strings.HasPrefix(name, ".")
}

// acquirePIDLock writes the current PID and checks for stale locks.
func acquirePIDLock(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	if data, err := os.ReadFile(path); err == nil {
		pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err == nil {
			if process, err := os.FindProcess(pid); err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					return fmt.Errorf("another watch daemon is running (PID %d)", pid)
				}
			}
		}
		_ = os.Remove(path)
	}

	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600)
}
