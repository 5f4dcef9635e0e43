package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/askforge/internal/config"
	"github.com/ppiankov/askforge/internal/history"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit int
		full  bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent questions and answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			path := history.DefaultPath()
			if cfg.History != nil && cfg.History.Path != "" {
				path = cfg.History.Path
			}

			store, err := history.Open(path)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer func() { _ = store.Close() }()

			entries, err := store.Recent(limit)
			if err != nil {
				return fmt.Errorf("read history: %w", err)
			}
			if len(entries) == 0 {
				fmt.Println("no recorded exchanges")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tAGENT\tTOOK\tQUESTION\tANSWER")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.AskedAt.Format("2006-01-02 15:04"),
					e.Agent,
					e.Duration.Truncate(100*time.Millisecond),
					clip(e.Question, 40, full),
					clip(e.Answer, 60, full),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of exchanges to show")
	cmd.Flags().BoolVar(&full, "full", false, "print full question and answer text")

	return cmd
}

// clip flattens newlines and truncates for the table view.
func clip(s string, max int, full bool) string {
	s = strings.Join(strings.Fields(s), " ")
	if full || len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
