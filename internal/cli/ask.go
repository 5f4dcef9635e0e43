package cli

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ppiankov/askforge/internal/config"
	"github.com/ppiankov/askforge/internal/history"
	"github.com/ppiankov/askforge/internal/relay"
	"github.com/ppiankov/askforge/internal/reporter"
	"github.com/ppiankov/askforge/internal/trace"
)

// NoAnswerError indicates the agent finished without a usable answer.
// Callers should map this to exit code 2.
type NoAnswerError struct {
	Msg string
}

func (e *NoAnswerError) Error() string { return e.Msg }

func newAskCmd() *cobra.Command {
	var (
		agentName   string
		workDir     string
		maxRuntime  time.Duration
		idleTimeout time.Duration
		firstEmit   time.Duration
		minInterval time.Duration
		pollEvery   time.Duration
		termGrace   time.Duration
		chunkSize   int
		tuiMode     string
		noHistory   bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask a question and stream the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cmd.Flags().Changed("max-runtime") && cfg.MaxRuntime > 0 {
				maxRuntime = cfg.MaxRuntime
			}
			if !cmd.Flags().Changed("idle-timeout") && cfg.IdleTimeout > 0 {
				idleTimeout = cfg.IdleTimeout
			}
			if !cmd.Flags().Changed("first-emit-within") && cfg.FirstEmitWithin > 0 {
				firstEmit = cfg.FirstEmitWithin
			}
			if !cmd.Flags().Changed("min-emit-interval") && cfg.MinEmitInterval > 0 {
				minInterval = cfg.MinEmitInterval
			}
			if !cmd.Flags().Changed("poll-interval") && cfg.PollInterval > 0 {
				pollEvery = cfg.PollInterval
			}
			if !cmd.Flags().Changed("term-grace") && cfg.TermGrace > 0 {
				termGrace = cfg.TermGrace
			}
			if !cmd.Flags().Changed("chunk-size") && cfg.ReadChunkSize > 0 {
				chunkSize = cfg.ReadChunkSize
			}

			question := strings.Join(args, " ")
			return runAsk(askConfig{
				question:    question,
				agentName:   agentName,
				workDir:     workDir,
				maxRuntime:  maxRuntime,
				idleTimeout: idleTimeout,
				firstEmit:   firstEmit,
				minInterval: minInterval,
				pollEvery:   pollEvery,
				termGrace:   termGrace,
				chunkSize:   chunkSize,
				tuiMode:     tuiMode,
				noHistory:   noHistory,
				settings:    cfg,
			})
		},
	}

	cmd.Flags().StringVar(&agentName, "agent", "", "agent profile to use (default from config, then claude)")
	cmd.Flags().StringVar(&workDir, "dir", "", "working directory for the agent process")
	cmd.Flags().DurationVar(&maxRuntime, "max-runtime", 10*time.Minute, "hard wall-clock ceiling for the whole question")
	cmd.Flags().DurationVar(&idleTimeout, "idle-timeout", 2*time.Minute, "max gap between agent records before the stream counts as stalled")
	cmd.Flags().DurationVar(&firstEmit, "first-emit-within", 2*time.Second, "latency ceiling for the first answer update")
	cmd.Flags().DurationVar(&minInterval, "min-emit-interval", time.Second, "minimum spacing between answer updates")
	cmd.Flags().DurationVar(&pollEvery, "poll-interval", 50*time.Millisecond, "terminal read poll interval")
	cmd.Flags().DurationVar(&termGrace, "term-grace", 5*time.Second, "wait after SIGTERM before force-killing the agent")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 8192, "terminal read size in bytes")
	cmd.Flags().StringVar(&tuiMode, "tui", "auto", "display mode: full (interactive), plain (live rewrite), off (final answer only), auto (detect TTY)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "skip recording this exchange in the history database")

	return cmd
}

// askConfig holds resolved parameters for one ask invocation.
type askConfig struct {
	question    string
	agentName   string
	workDir     string
	maxRuntime  time.Duration
	idleTimeout time.Duration
	firstEmit   time.Duration
	minInterval time.Duration
	pollEvery   time.Duration
	termGrace   time.Duration
	chunkSize   int
	tuiMode     string
	noHistory   bool
	settings    *config.Settings
}

func runAsk(ac askConfig) error {
	profile, err := config.ResolveAgent(ac.settings, ac.agentName)
	if err != nil {
		return err
	}
	agentLabel := profile.Command

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if ac.settings.Proxy != nil && ac.settings.Proxy.Enabled {
		stop, err := startProxy(ac.settings.Proxy)
		if err != nil {
			return fmt.Errorf("proxy config: %w", err)
		}
		if stop != nil {
			defer stop()
		}
	}

	var tracer relay.Tracer
	if ac.settings.Trace != nil && ac.settings.Trace.Enabled {
		sink, err := trace.Open(ac.settings.Trace.Path)
		if err != nil {
			slog.Warn("trace sink unavailable", "error", err)
		} else {
			defer func() { _ = sink.Close(context.Background()) }()
			tracer = sink
		}
	}

	opts := buildRelayOptions(ac, profile, tracer)
	runner, err := relay.NewRunner(opts)
	if err != nil {
		return err
	}

	seq, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("start agent: %w", err)
	}

	displayMode := ac.tuiMode
	if displayMode == "" || displayMode == "auto" {
		if isTerminal() {
			displayMode = "full"
		} else {
			displayMode = "off"
		}
	}

	start := time.Now()
	var final relay.Emission
	var lastText string
	switch displayMode {
	case "full":
		final, lastText, err = runAskTUI(ac.question, agentLabel, cancel, seq)
		if err != nil {
			return err
		}
	default:
		rep := reporter.NewStreamReporter(os.Stdout, displayMode == "plain")
		for e := range seq {
			if e.Final {
				final = e
				continue
			}
			rep.Update(e.Text)
			lastText = e.Text
		}
		if sentinel(final) {
			rep.Fail(final.Text)
		} else {
			rep.Finish(final, agentLabel, time.Since(start))
		}
	}
	elapsed := time.Since(start)

	if ctx.Err() != nil && !final.Final {
		return fmt.Errorf("interrupted")
	}

	if !ac.noHistory && ac.settings.History != nil && ac.settings.History.Enabled {
		answer := final.Text
		if answer == "" {
			// bare final: the last streamed update is the answer
			answer = lastText
		}
		recordExchange(ac.settings.History, history.Entry{
			Agent:    agentLabel,
			Question: ac.question,
			Answer:   answer,
			Category: final.Category.String(),
			Duration: elapsed,
		})
	}

	if sentinel(final) {
		return &NoAnswerError{Msg: final.Text}
	}
	return nil
}

// sentinel reports a final emission that carries a failure notice instead
// of an answer.
func sentinel(e relay.Emission) bool {
	return e.Final && e.Category == relay.CategoryNone && e.Text != ""
}

func buildRelayOptions(ac askConfig, profile *config.AgentProfile, tracer relay.Tracer) relay.Options {
	deny := ac.settings.DenyPrefixes
	if deny == nil {
		deny = config.DefaultDenyPrefixes
	}
	dir := ac.workDir
	if dir == "" {
		dir = profile.Dir
	}
	return relay.Options{
		Argv:            config.BuildArgv(profile, ac.question),
		Env:             config.BuildEnv(profile, relay.SanitizedEnv()),
		Dir:             dir,
		IdleTimeout:     ac.idleTimeout,
		MaxRuntime:      ac.maxRuntime,
		ReadChunkSize:   ac.chunkSize,
		PollInterval:    ac.pollEvery,
		FirstEmitWithin: ac.firstEmit,
		MinEmitInterval: ac.minInterval,
		TermGrace:       ac.termGrace,
		DenyPrefixes:    deny,
		Tracer:          tracer,
		Logger:          slog.Default(),
	}
}

// runAskTUI drives the interactive display, pumping emissions into the
// model while the program owns the terminal. Returns the final emission and
// the last intermediate text (the answer when the final is bare).
func runAskTUI(question, agent string, cancel context.CancelFunc, seq iter.Seq[relay.Emission]) (relay.Emission, string, error) {
	model := reporter.NewAskModel(question, agent, cancel)
	program := tea.NewProgram(model)

	type streamEnd struct {
		final    relay.Emission
		lastText string
	}
	done := make(chan streamEnd, 1)
	go func() {
		var end streamEnd
		for e := range seq {
			program.Send(reporter.UpdateMsg{Emission: e})
			if e.Final {
				end.final = e
			} else if e.Text != "" {
				end.lastText = e.Text
			}
		}
		done <- end
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-done
		return relay.Emission{}, "", fmt.Errorf("display: %w", err)
	}
	// quitting the display cancels the pipeline, so this does not block
	end := <-done
	return end.final, end.lastText, nil
}

// recordExchange appends to the audit log; failures are logged, never fatal.
func recordExchange(hc *config.HistoryConfig, e history.Entry) {
	path := hc.Path
	if path == "" {
		path = history.DefaultPath()
	}
	store, err := history.Open(path)
	if err != nil {
		slog.Warn("history unavailable", "error", err)
		return
	}
	defer func() { _ = store.Close() }()
	if err := store.Record(&e); err != nil {
		slog.Warn("history write failed", "error", err)
	}
}

// isTerminal checks if stdout is a terminal.
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
