package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fedsql/internal/config"
	"github.com/roach88/fedsql/internal/federation"
	"github.com/roach88/fedsql/internal/history"
	"github.com/roach88/fedsql/internal/queryir"
	"github.com/roach88/fedsql/internal/sqlconn"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config       string
	Connections  []string
	Dialect      string
	Timeout      time.Duration
	NoProvenance bool
	MaxRows      int
	History      string

	// IDGenerator overrides the execution ID generator (for testing).
	// If nil, the executor uses UUIDv7.
	IDGenerator federation.IDGenerator
}

// RunSummary is the JSON payload of a successful run.
type RunSummary struct {
	*federation.MergedResult
	Fingerprint string `json:"fingerprint"`
	Dialect     string `json:"dialect"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <query-file>",
		Short: "Run a query on many connections and merge the results",
		Long: `Compile a query once and execute it on every selected connection in
parallel. Rows are merged into one table; a __connection column names the
source of each row unless --no-provenance is set.

A connection that fails or times out does not fail the run. The command
exits 1 only when every connection failed.

Example:
  fedsql run report.json --config fedsql.yaml
  fedsql run report.yaml --conn east,west --timeout 5s --history history.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "config file (default: search ./fedsql.yaml, ~/.config/fedsql)")
	cmd.Flags().StringSliceVar(&opts.Connections, "conn", nil, "connection IDs to target (default: all configured)")
	cmd.Flags().StringVarP(&opts.Dialect, "dialect", "d", "", "override the configured dialect")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "override the per-connection timeout")
	cmd.Flags().BoolVar(&opts.NoProvenance, "no-provenance", false, "omit the __connection column")
	cmd.Flags().IntVar(&opts.MaxRows, "max-rows", 0, "override the merged row cap (0 = config value)")
	cmd.Flags().StringVar(&opts.History, "history", "", "record the run in this SQLite history database")

	return cmd
}

func runQuery(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(formatter.GetErrWriter(), opts.Verbose)

	q, err := LoadQuery(path)
	if err != nil {
		return commandError(formatter, errorCode(err), err)
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return commandError(formatter, ErrCodeConfig, err)
	}
	logger.Debug("config loaded", "path", cfg.Path, "connections", len(cfg.Connections))

	queryOpts, effective, err := opts.queryOptions(cfg)
	if err != nil {
		return commandError(formatter, ErrCodeUnknownDialect, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := sqlconn.Open(ctx, cfg.Connections, sqlconn.WithLogger(logger))
	defer pool.Close()

	execOpts := []federation.ExecutorOption{federation.WithLogger(logger)}
	if opts.IDGenerator != nil {
		execOpts = append(execOpts, federation.WithIDGenerator(opts.IDGenerator))
	}
	executor := federation.New(pool.Connections(), pool, execOpts...)

	targets := opts.Connections
	if len(targets) == 0 {
		targets = cfg.ConnectionIDs()
	}

	startedAt := time.Now()
	result, err := executor.ExecuteQuery(ctx, q, targets, queryOpts...)
	if err != nil {
		code := errorCode(err)
		if federation.IsConnectionUnavailable(err) {
			code = ErrCodeConnectionUnavailable
		}
		return commandError(formatter, code, err)
	}

	fingerprint, err := queryir.Fingerprint(q)
	if err != nil {
		return commandError(formatter, ErrCodeGeneric, err)
	}

	historyPath := opts.History
	if historyPath == "" {
		historyPath = cfg.History
	}
	if historyPath != "" {
		entry := history.NewEntry(result, fingerprint, effective.Dialect, startedAt)
		if err := recordHistory(ctx, historyPath, entry); err != nil {
			return commandError(formatter, ErrCodeHistory, err)
		}
		logger.Debug("execution recorded", "history", historyPath, "execution_id", result.ExecutionID)
	}

	if err := outputRun(formatter, result, fingerprint, effective.Dialect); err != nil {
		return err
	}

	if len(result.Failed()) == len(result.ConnectionResults) {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: all %d connection(s) failed", ErrCodeAllFailed, len(result.ConnectionResults)))
	}
	return nil
}

// queryOptions layers flag overrides on the configured executor defaults.
func (opts *RunOptions) queryOptions(cfg *config.Config) ([]federation.QueryOption, federation.Options, error) {
	queryOpts := cfg.Executor.QueryOptions()

	if opts.Dialect != "" {
		d, err := queryir.ParseDialect(opts.Dialect)
		if err != nil {
			return nil, federation.Options{}, err
		}
		queryOpts = append(queryOpts, federation.WithDialect(d))
	}
	if opts.Timeout > 0 {
		queryOpts = append(queryOpts, federation.WithTimeout(opts.Timeout))
	}
	if opts.NoProvenance {
		queryOpts = append(queryOpts, federation.WithProvenance(false))
	}
	if opts.MaxRows > 0 {
		queryOpts = append(queryOpts, federation.WithMaxRows(opts.MaxRows))
	}

	effective := federation.DefaultOptions()
	for _, opt := range queryOpts {
		opt(&effective)
	}
	return queryOpts, effective, nil
}

func recordHistory(ctx context.Context, path string, entry history.Entry) error {
	st, err := history.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.Record(ctx, entry)
}

func outputRun(formatter *OutputFormatter, result *federation.MergedResult, fingerprint string, dialect queryir.Dialect) error {
	if formatter.Format == "json" {
		return formatter.encode(CLIResponse{
			Status:      "ok",
			ExecutionID: result.ExecutionID,
			Data: RunSummary{
				MergedResult: result,
				Fingerprint:  fingerprint,
				Dialect:      string(dialect),
			},
		})
	}

	rows := make([][]string, len(result.Rows))
	for i, row := range result.Rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = cell(v)
		}
		rows[i] = cells
	}
	if len(result.Columns) > 0 {
		if err := formatter.Table(result.Columns, rows); err != nil {
			return err
		}
	}

	for _, cr := range result.ConnectionResults {
		if cr.Success {
			fmt.Fprintf(formatter.Writer, "%s %s (%s): %d row(s) in %s\n",
				okMark(), cr.ConnectionID, cr.ConnectionName, cr.Data.RowCount, cr.Data.ExecutionTime.Round(time.Millisecond))
			continue
		}
		msg := "failed"
		if cr.Error != nil {
			msg = cr.Error.Error()
		}
		fmt.Fprintf(formatter.Writer, "%s %s (%s): %s\n", failMark(), cr.ConnectionID, cr.ConnectionName, msg)
	}

	summary := fmt.Sprintf("%d row(s) from %d/%d connection(s) in %s",
		result.RowCount,
		len(result.ConnectionResults)-len(result.Failed()),
		len(result.ConnectionResults),
		result.TotalExecutionTime.Round(time.Millisecond))
	if result.Truncated {
		summary += fmt.Sprintf(", showing first %d", len(result.Rows))
	}
	fmt.Fprintln(formatter.Writer, summary)
	formatter.VerboseLog("execution %s", result.ExecutionID)
	return nil
}
