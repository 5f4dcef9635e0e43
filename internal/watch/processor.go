package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/askforge/internal/platform"
)

// Outcome records how one question ended.
type Outcome struct {
	QuestionID string        `json:"question_id"`
	State      string        `json:"state"` // answered or failed
	Agent      string        `json:"agent,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	Error      string        `json:"error,omitempty"`
	AnswerFile string        `json:"answer_file,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	EndedAt    time.Time     `json:"ended_at"`
}

const (
	StateAnswered = "answered"
	StateFailed   = "failed"
)

// AskFunc runs one question through the streaming pipeline and returns the
// final answer. It decouples the daemon from command wiring.
type AskFunc func(ctx context.Context, question string) (answer string, agent string, err error)

// Processor handles the lifecycle of a single question file.
type Processor struct {
	dirs     Dirs
	askFn    AskFunc
	delivery *platform.Registry
}

// NewProcessor creates a question processor delivering answers through reg.
func NewProcessor(dirs Dirs, askFn AskFunc, reg *platform.Registry) *Processor {
	return &Processor{dirs: dirs, askFn: askFn, delivery: reg}
}

// Process reads, asks, and records the result for a single question file.
func (p *Processor) Process(ctx context.Context, questionPath string) error {
	name := filepath.Base(questionPath)
	qid := questionID(name)

	slog.Info("processing question", "question", qid, "path", questionPath)

	question, err := readQuestion(questionPath)
	if err != nil {
		slog.Error("invalid question file", "question", qid, "error", err)
		return p.writeFailed(qid, fmt.Sprintf("invalid question file: %v", err))
	}

	// claim it before asking so a second daemon cannot pick it up
	procPath := filepath.Join(p.dirs.Processing, name)
	if err := moveFile(questionPath, procPath); err != nil {
		return fmt.Errorf("move to processing: %w", err)
	}

	start := time.Now()
	answer, agent, askErr := p.askFn(ctx, question)
	elapsed := time.Since(start)

	out := Outcome{
		QuestionID: qid,
		Agent:      agent,
		Duration:   elapsed,
		StartedAt:  start,
		EndedAt:    time.Now(),
	}

	if askErr != nil {
		out.State = StateFailed
		out.Error = askErr.Error()
		slog.Warn("question failed", "question", qid, "error", askErr)
		if err := p.writeOutcome(p.dirs.Failed, qid, out); err != nil {
			return err
		}
		_ = moveFile(procPath, filepath.Join(p.dirs.Failed, name))
		return nil
	}

	answerPath := filepath.Join(p.dirs.Answered, qid+".answer.txt")
	if err := p.delivery.Deliver("file:"+answerPath, answer); err != nil {
		return p.writeFailed(qid, fmt.Sprintf("deliver answer: %v", err))
	}
	out.State = StateAnswered
	out.AnswerFile = answerPath

	slog.Info("question answered", "question", qid, "agent", agent, "duration", elapsed.Round(time.Second))
	if err := p.writeOutcome(p.dirs.Answered, qid, out); err != nil {
		return err
	}

	_ = os.Remove(procPath)
	return nil
}

// readQuestion loads the question text, rejecting empty files.
func readQuestion(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	q := strings.TrimSpace(string(data))
	if q == "" {
		return "", fmt.Errorf("question file is empty")
	}
	return q, nil
}

// writeFailed records a failure without execution.
func (p *Processor) writeFailed(qid, errMsg string) error {
	out := Outcome{
		QuestionID: qid,
		State:      StateFailed,
		Error:      errMsg,
		StartedAt:  time.Now(),
		EndedAt:    time.Now(),
	}
	return p.writeOutcome(p.dirs.Failed, qid, out)
}

// writeOutcome writes an Outcome to the target directory.
func (p *Processor) writeOutcome(dir, qid string, out Outcome) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	path := filepath.Join(dir, qid+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename outcome: %w", err)
	}
	return nil
}

// moveFile moves a file from src to dst. Falls back to copy+remove
// when rename fails (cross-device, bind mounts).
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return err
	}
	return os.Remove(src)
}

// questionID strips the .txt suffix.
func questionID(name string) string {
	return strings.TrimSuffix(name, ".txt")
}
