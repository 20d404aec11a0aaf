package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/progsnap2/internal/dataset"
)

// ValidationResult holds dataset validation results.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Problems []dataset.Problem `json:"problems,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <dataset-dir>",
		Short: "Validate an emitted ProgSnap2 dataset",
		Long: `Validate a dataset directory against the ProgSnap2 layout.

Checks the required main-table columns, EventID/Order agreement, global
timestamp ordering, event-type spelling and that every referenced code
state is materialized under CodeStates/.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	ds, err := dataset.Read(dir)
	if err != nil {
		return commandError(formatter, "failed to read dataset", err)
	}

	formatter.VerboseLog("Read %d row(s), %d code state(s) from %s", len(ds.Rows), len(ds.CodeStateFiles), dir)

	problems := ds.Validate()
	if len(problems) > 0 {
		return outputValidationProblems(formatter, problems)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}
	fmt.Fprintln(formatter.Writer, "✓ Dataset valid")
	return nil
}

// outputValidationProblems reports validation failures and exits 1.
func outputValidationProblems(formatter *OutputFormatter, problems []dataset.Problem) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Problems: problems},
			Error: &CLIError{
				Code:    problems[0].Code,
				Message: problems[0].Message,
			},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d problem(s)", len(problems)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, p := range problems {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", p.Code, p.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d problem(s)", len(problems)))
}
