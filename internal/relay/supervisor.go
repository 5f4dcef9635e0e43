package relay

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os/exec"
	"time"
)

// User-facing sentinel messages. Internal fault text never reaches the
// caller; every runtime failure maps onto one of these.
const (
	sentinelNoOutput = "The agent finished without producing an answer. Please try again."
	sentinelTimeout  = "The agent ran out of time before completing an answer."
	sentinelFailure  = "The agent could not be run to completion."
)

// Tracer receives named pipeline events. Implementations must tolerate
// concurrent use; the pipeline swallows panics and never inspects errors,
// so a broken telemetry sink cannot affect streaming.
type Tracer interface {
	Event(name string, kv ...any)
}

// Options configures one streaming invocation. All durations and sizes are
// caller-supplied; NewRunner rejects zero values so defaults live with the
// caller, not here.
type Options struct {
	Argv []string // agent command line, including the prompt
	Env  []string // subprocess environment; see SanitizedEnv
	Dir  string   // working directory, empty for inherited

	IdleTimeout     time.Duration // max gap between structured records before the stream counts as stalled
	MaxRuntime      time.Duration // hard wall-clock ceiling for the whole invocation
	ReadChunkSize   int           // terminal read size in bytes
	PollInterval    time.Duration // bounded wait per terminal read
	FirstEmitWithin time.Duration // latency ceiling for the first update
	MinEmitInterval time.Duration // minimum spacing between later updates
	TermGrace       time.Duration // wait after the termination signal before force reaping

	DenyPrefixes []string     // optional boilerplate prefixes suppressed by the parser
	Tracer       Tracer       // optional
	Logger       *slog.Logger // optional, defaults to slog.Default
}

func (o *Options) validate() error {
	if len(o.Argv) == 0 {
		return fmt.Errorf("argv is required")
	}
	if o.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout is required")
	}
	if o.MaxRuntime <= 0 {
		return fmt.Errorf("max runtime is required")
	}
	if o.ReadChunkSize <= 0 {
		return fmt.Errorf("read chunk size is required")
	}
	if o.PollInterval <= 0 {
		return fmt.Errorf("poll interval is required")
	}
	if o.FirstEmitWithin <= 0 {
		return fmt.Errorf("first emit ceiling is required")
	}
	if o.MinEmitInterval <= 0 {
		return fmt.Errorf("min emit interval is required")
	}
	if o.TermGrace <= 0 {
		return fmt.Errorf("termination grace is required")
	}
	return nil
}

// agentSource abstracts the process session for the supervisor loop.
type agentSource interface {
	byteSource
	terminateAndReap(grace time.Duration) int
}

// Runner executes one question→answer streaming invocation.
type Runner struct {
	opts Options
	log  *slog.Logger

	// spawn is swapped out by tests
	spawn func(argv, env []string, dir string, log *slog.Logger) (agentSource, error)
}

// NewRunner validates opts and builds a single-use runner.
func NewRunner(opts Options) (*Runner, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("relay options: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		opts: opts,
		log:  log,
		spawn: func(argv, env []string, dir string, log *slog.Logger) (agentSource, error) {
			return startSession(argv, env, dir, log)
		},
	}, nil
}

// Run resolves the agent binary and returns the lazy emission sequence.
// A missing or non-executable target is reported here as *SpawnError; every
// later fault becomes a terminal sentinel emission instead. The sequence is
// finite and non-restartable; breaking out of it early still releases the
// process and its terminal.
func (r *Runner) Run(ctx context.Context) (iter.Seq[Emission], error) {
	path, err := exec.LookPath(r.opts.Argv[0])
	if err != nil {
		return nil, &SpawnError{Path: r.opts.Argv[0], Err: err}
	}
	argv := append([]string{path}, r.opts.Argv[1:]...)
	return r.stream(ctx, argv), nil
}

func (r *Runner) stream(ctx context.Context, argv []string) iter.Seq[Emission] {
	return func(yield func(Emission) bool) {
		start := time.Now()
		r.trace("relay.spawn", "command", argv[0])

		src, err := r.spawn(argv, r.opts.Env, r.opts.Dir, r.log)
		if err != nil {
			r.log.Error("agent spawn failed after lookup", "error", err)
			yield(Emission{Text: sentinelFailure, Final: true, Category: CategoryNone})
			return
		}
		defer func() {
			code := src.terminateAndReap(r.opts.TermGrace)
			r.log.Debug("agent reaped", "exit", code, "elapsed", time.Since(start))
		}()

		demux := newLineDemuxer(src, r.opts.ReadChunkSize, r.opts.PollInterval, r.log)
		parser := newEventParser(r.opts.DenyPrefixes, r.log)
		acc := &accumulator{}
		emitter := newPacedEmitter(start, r.opts.FirstEmitWithin, r.opts.MinEmitInterval)

		deadline := start.Add(r.opts.MaxRuntime)
		lastRecord := start
		sentFirst := false

		emitDue := func(now time.Time, idle bool) bool {
			e, ready := emitter.due(now, idle)
			if !ready {
				return true
			}
			if !sentFirst {
				sentFirst = true
				r.trace("relay.first_output", "elapsed", now.Sub(start))
			}
			return yield(e)
		}

		for {
			if ctx.Err() != nil {
				r.log.Debug("caller cancelled, abandoning stream")
				return
			}
			if now := time.Now(); now.After(deadline) {
				r.log.Warn("max runtime exceeded", "max_runtime", r.opts.MaxRuntime)
				r.trace("relay.timeout", "max_runtime", r.opts.MaxRuntime)
				if acc.finalized {
					yield(Emission{Text: acc.authoritative, Final: true, Category: CategoryResult})
				} else {
					yield(Emission{Text: sentinelTimeout, Final: true, Category: CategoryNone})
				}
				return
			}

			line, ok := demux.next()
			now := time.Now()
			if !ok {
				if !emitDue(now, true) {
					return
				}
				continue
			}

			ev, decoded := parser.parse(line.text, line.final)
			if decoded {
				lastRecord = now
				switch ev.Kind {
				case EventAssistant, EventToolCall:
					if ev.Text != "" && acc.candidate(ev.Text) {
						emitter.observe(acc.best)
					}
				case EventResult:
					r.trace("relay.result", "elapsed", now.Sub(start))
					acc.finalize(ev.Text, r.log)
				}
			}

			if line.final {
				if idle := now.Sub(lastRecord); idle > r.opts.IdleTimeout {
					r.log.Warn("stream went idle before ending",
						"idle", idle, "limit", r.opts.IdleTimeout)
				}
				for _, e := range emitter.finish(acc, now) {
					if !yield(e) {
						return
					}
				}
				return
			}
			if !emitDue(now, false) {
				return
			}
		}
	}
}

// trace forwards a named event to the optional tracing sink.
func (r *Runner) trace(name string, kv ...any) {
	if r.opts.Tracer == nil {
		return
	}
	defer func() { _ = recover() }()
	r.opts.Tracer.Event(name, kv...)
}
