package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version, Commit and BuildDate are set via LDFLAGS at build time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var (
	verbose    bool
	configFile string
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "askforge",
		Short: "Ask an agent CLI a question and stream the answer",
		Long:  "askforge relays a question to a terminal-attached agent CLI, demultiplexes its streamed output, and delivers paced answer updates with a guaranteed final answer.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&configFile, "config", ".askforge.yml", "path to config file")

	root.AddCommand(newAskCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newVersionCmd())

	return root
}
