package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fedsql/internal/queryir"
	"github.com/roach88/fedsql/internal/querysql"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Dialect string
	All     bool
}

// CompiledSQL is the SQL generated for one dialect.
type CompiledSQL struct {
	Dialect     queryir.Dialect `json:"dialect"`
	SQL         string          `json:"sql"`
	Fingerprint string          `json:"fingerprint"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <query-file>",
		Short: "Compile a query file to dialect SQL",
		Long: `Compile a QueryIR file (.json, .yaml, .yml or .cue) to SQL text.

Example:
  fedsql compile report.json --dialect mysql
  fedsql compile report.cue --all`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Dialect, "dialect", "d", string(queryir.Postgres), "target dialect (postgres|mysql|sqlite|mssql)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "compile for every dialect")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	dialects := queryir.Dialects
	if !opts.All {
		d, err := queryir.ParseDialect(opts.Dialect)
		if err != nil {
			return commandError(formatter, ErrCodeUnknownDialect, err)
		}
		dialects = []queryir.Dialect{d}
	}

	q, err := LoadQuery(path)
	if err != nil {
		return commandError(formatter, errorCode(err), err)
	}

	for _, w := range queryir.Validate(q).Warnings {
		formatter.VerboseLog("warning: %s", w)
	}

	fingerprint, err := queryir.Fingerprint(q)
	if err != nil {
		return commandError(formatter, ErrCodeGeneric, err)
	}

	compiled := make([]CompiledSQL, 0, len(dialects))
	for _, d := range dialects {
		sql, err := querysql.GenerateSQL(q, d)
		if err != nil {
			return commandError(formatter, errorCode(err), err)
		}
		compiled = append(compiled, CompiledSQL{Dialect: d, SQL: sql, Fingerprint: fingerprint})
	}

	if formatter.Format == "json" {
		return formatter.Success(compiled)
	}

	if len(compiled) == 1 {
		fmt.Fprintln(formatter.Writer, compiled[0].SQL)
		return nil
	}
	blocks := make([]string, len(compiled))
	for i, c := range compiled {
		blocks[i] = fmt.Sprintf("-- %s\n%s", c.Dialect, c.SQL)
	}
	fmt.Fprintln(formatter.Writer, strings.Join(blocks, "\n\n"))
	return nil
}

// commandError reports err and returns an exit-2 error.
func commandError(formatter *OutputFormatter, code string, err error) error {
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(ExitCommandError, code, err)
}
