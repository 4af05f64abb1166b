package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fedsql/internal/config"
	"github.com/roach88/fedsql/internal/history"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Config  string
	History string
	Limit   int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [execution-id]",
		Short: "List recorded executions",
		Long: `List executions recorded by "fedsql run --history", newest first, or
show one execution with its per-connection outcomes.

The database is --history, or the history path from the config file.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.History, "history", "", "SQLite history database")
	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "config file used to find the history database")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum executions to list (0 = all)")

	return cmd
}

func runHistory(opts *HistoryOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	path := opts.History
	if path == "" {
		cfg, err := config.Load(opts.Config)
		if err != nil {
			return commandError(formatter, ErrCodeConfig, err)
		}
		path = cfg.History
	}
	if path == "" {
		return commandError(formatter, ErrCodeConfig, errors.New("no history database: pass --history or set history in the config"))
	}

	st, err := history.Open(path)
	if err != nil {
		return commandError(formatter, ErrCodeHistory, err)
	}
	defer st.Close()

	if len(args) == 1 {
		entry, err := st.Get(cmd.Context(), args[0])
		if err != nil {
			return commandError(formatter, ErrCodeHistory, err)
		}
		return outputHistoryEntry(formatter, entry)
	}

	entries, err := st.List(cmd.Context(), opts.Limit)
	if err != nil {
		return commandError(formatter, ErrCodeHistory, err)
	}
	return outputHistoryList(formatter, entries)
}

func outputHistoryList(formatter *OutputFormatter, entries []history.Entry) error {
	if formatter.Format == "json" {
		return formatter.Success(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(formatter.Writer, "No executions recorded")
		return nil
	}

	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{
			e.ExecutionID,
			e.StartedAt.Local().Format(time.DateTime),
			e.Dialect,
			strconv.Itoa(e.RowCount),
			fmt.Sprintf("%d/%d", len(e.Connections)-e.Failed(), len(e.Connections)),
			e.Duration.Round(time.Millisecond).String(),
		}
	}
	return formatter.Table([]string{"Execution", "Started", "Dialect", "Rows", "OK", "Duration"}, rows)
}

func outputHistoryEntry(formatter *OutputFormatter, e history.Entry) error {
	if formatter.Format == "json" {
		return formatter.Success(e)
	}

	fmt.Fprintf(formatter.Writer, "Execution:   %s\n", e.ExecutionID)
	fmt.Fprintf(formatter.Writer, "Started:     %s\n", e.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(formatter.Writer, "Dialect:     %s\n", e.Dialect)
	fmt.Fprintf(formatter.Writer, "Fingerprint: %s\n", e.Fingerprint)
	fmt.Fprintf(formatter.Writer, "Rows:        %d\n", e.RowCount)
	fmt.Fprintf(formatter.Writer, "Duration:    %s\n\n", e.Duration.Round(time.Millisecond))
	fmt.Fprintln(formatter.Writer, e.SQL)
	fmt.Fprintln(formatter.Writer)

	for _, c := range e.Connections {
		if c.Success {
			fmt.Fprintf(formatter.Writer, "%s %s (%s): %d row(s)\n", okMark(), c.ConnectionID, c.ConnectionName, c.RowCount)
		} else {
			fmt.Fprintf(formatter.Writer, "%s %s (%s): %s\n", failMark(), c.ConnectionID, c.ConnectionName, c.Error)
		}
	}
	return nil
}
