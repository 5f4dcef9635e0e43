package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/askforge/internal/config"
	"github.com/ppiankov/askforge/internal/relay"
	"github.com/ppiankov/askforge/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var (
		inboxDir    string
		stateDir    string
		agentName   string
		pollMode    bool
		debounce    time.Duration
		maxRuntime  time.Duration
		idleTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Answer question files dropped into a directory",
		Long: `Watch runs a daemon over an inbox directory. Each .txt file dropped
there is read as a question, streamed through the agent, and the answer
is written next to its outcome record.

Questions move through processing/ to answered/ or failed/, so no
question is lost or answered twice. On restart, orphaned questions left
in processing/ are recovered into failed/.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Watch != nil {
				if !cmd.Flags().Changed("inbox") && cfg.Watch.Dir != "" {
					inboxDir = cfg.Watch.Dir
				}
				if !cmd.Flags().Changed("debounce") && cfg.Watch.Debounce > 0 {
					debounce = cfg.Watch.Debounce
				}
			}
			if !cmd.Flags().Changed("max-runtime") && cfg.MaxRuntime > 0 {
				maxRuntime = cfg.MaxRuntime
			}
			if !cmd.Flags().Changed("idle-timeout") && cfg.IdleTimeout > 0 {
				idleTimeout = cfg.IdleTimeout
			}

			profile, err := config.ResolveAgent(cfg, agentName)
			if err != nil {
				return err
			}

			// each question gets its own pipeline invocation; the daemon
			// never touches relay internals
			askFn := func(ctx context.Context, question string) (string, string, error) {
				ac := askConfig{
					question:    question,
					maxRuntime:  maxRuntime,
					idleTimeout: idleTimeout,
					firstEmit:   2 * time.Second,
					minInterval: time.Second,
					pollEvery:   50 * time.Millisecond,
					termGrace:   5 * time.Second,
					chunkSize:   8192,
					settings:    cfg,
				}
				answer, err := askOnce(ctx, ac, profile)
				return answer, profile.Command, err
			}

			d, err := watch.New(watch.Config{
				InboxDir: inboxDir,
				StateDir: stateDir,
				PollMode: pollMode,
				Debounce: debounce,
				AskFn:    askFn,
			})
			if err != nil {
				return fmt.Errorf("init watch daemon: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return d.Run(ctx)
		},
	}

	home, _ := os.UserHomeDir()
	cmd.Flags().StringVar(&inboxDir, "inbox", filepath.Join(home, ".askforge", "inbox"), "directory to watch for question files")
	cmd.Flags().StringVar(&stateDir, "state", filepath.Join(home, ".askforge", "watch"), "daemon state directory")
	cmd.Flags().StringVar(&agentName, "agent", "", "agent profile to use")
	cmd.Flags().BoolVar(&pollMode, "poll", false, "use polling instead of filesystem notifications")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "settle time after a file event before reading the question")
	cmd.Flags().DurationVar(&maxRuntime, "max-runtime", 10*time.Minute, "per-question execution timeout")
	cmd.Flags().DurationVar(&idleTimeout, "idle-timeout", 2*time.Minute, "idle timeout for the agent stream")

	return cmd
}

// askOnce runs one question through the pipeline and returns the best final
// answer. Sentinel finals are reported as errors so the daemon files the
// question under failed/.
func askOnce(ctx context.Context, ac askConfig, profile *config.AgentProfile) (string, error) {
	runner, err := relay.NewRunner(buildRelayOptions(ac, profile, nil))
	if err != nil {
		return "", err
	}
	seq, err := runner.Run(ctx)
	if err != nil {
		return "", fmt.Errorf("start agent: %w", err)
	}

	var lastUpdate string
	var final relay.Emission
	for e := range seq {
		if e.Final {
			final = e
			continue
		}
		if e.Text != "" {
			lastUpdate = e.Text
		}
	}
	if !final.Final {
		return "", fmt.Errorf("stream ended before a final answer")
	}
	if sentinel(final) {
		return "", fmt.Errorf("%s", final.Text)
	}
	if final.Text != "" {
		return final.Text, nil
	}
	return lastUpdate, nil
}
