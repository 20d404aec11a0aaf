package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/progsnap2/internal/dataset"
	"github.com/roach88/progsnap2/internal/store"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Database string
}

// ImportResult is the success payload of a SQLite import.
type ImportResult struct {
	Database   string `json:"database"`
	Rows       int    `json:"rows"`
	CodeStates int    `json:"code_states"`
	LinkTables int    `json:"link_tables"`
}

func (r ImportResult) String() string {
	return fmt.Sprintf("✓ Imported %d row(s), %d code state(s), %d link table(s) into %s",
		r.Rows, r.CodeStates, r.LinkTables, r.Database)
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <dataset-dir>",
		Short: "Mirror a dataset into a SQLite database",
		Long: `Mirror an emitted ProgSnap2 dataset into a SQLite database for ad-hoc
querying. MainTable columns follow the dataset's own header, so optional
and extension columns survive unchanged. Re-importing replaces the
previous copy.

Example:
  progsnap2 import --db ./dataset.db ./dataset`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runImport(opts *ImportOptions, dir string, cmd *cobra.Command) error {
	setupLogging(opts.Verbose)

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
	slog.Info("dataset read", "dir", dir, "rows", len(ds.Rows))

	st, err := store.Open(opts.Database)
	if err != nil {
		return commandError(formatter, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	if err := store.ImportDataset(cmd.Context(), st, ds); err != nil {
		return commandError(formatter, "failed to import dataset", err)
	}
	slog.Info("import complete", "database", opts.Database)

	return formatter.Success(ImportResult{
		Database:   opts.Database,
		Rows:       len(ds.Rows),
		CodeStates: len(ds.CodeStateFiles),
		LinkTables: len(ds.LinkTables),
	})
}
