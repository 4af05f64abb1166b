package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fedsql/internal/queryir"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <query-file>",
		Short: "Check a query file for structural problems",
		Long: `Validate a QueryIR file without compiling or running it.

Exits 1 when the query has errors. Warnings never fail validation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	q, err := LoadQuery(path)
	if err != nil {
		return commandError(formatter, errorCode(err), err)
	}

	result := queryir.Validate(q)

	if formatter.Format == "json" {
		if result.Valid {
			return formatter.Success(result)
		}
		_ = formatter.Error(ErrCodeInvalidQuery, fmt.Sprintf("query has %d error(s)", len(result.Errors)), result)
		return NewExitError(ExitFailure, "validation failed")
	}

	if result.Valid {
		fmt.Fprintf(formatter.Writer, "%s Query is valid\n", okMark())
	} else {
		fmt.Fprintf(formatter.Writer, "%s Query is invalid\n", failMark())
		for _, issue := range result.Errors {
			fmt.Fprintf(formatter.Writer, "  error: %s\n", issue)
		}
	}
	for _, issue := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "  %s warning: %s\n", warnMark(), issue)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}
