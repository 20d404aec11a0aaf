package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/progsnap2/internal/codestate"
	"github.com/roach88/progsnap2/internal/collect"
	"github.com/roach88/progsnap2/internal/config"
	"github.com/roach88/progsnap2/internal/dataset"
	"github.com/roach88/progsnap2/internal/event"
	"github.com/roach88/progsnap2/internal/mapping"
	"github.com/roach88/progsnap2/internal/sequence"
	"github.com/roach88/progsnap2/internal/source/blockpy"
	"github.com/roach88/progsnap2/internal/source/vpl"
)

// ConvertOptions holds flags shared by the convert subcommands.
type ConvertOptions struct {
	*RootOptions
	Output string
	Config string
	Tool   string
}

// ConvertResult is the success payload of a conversion.
type ConvertResult struct {
	RunID      string `json:"run_id"`
	OutputDir  string `json:"output_dir"`
	Events     int    `json:"events"`
	CodeStates int    `json:"code_states"`
}

func (r ConvertResult) String() string {
	return fmt.Sprintf("✓ Wrote %d event(s), %d code state(s) to %s", r.Events, r.CodeStates, r.OutputDir)
}

// NewConvertCommand creates the convert command group.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a source log into a ProgSnap2 dataset",
	}

	cmd.AddCommand(newConvertVPLCommand(rootOpts))
	cmd.AddCommand(newConvertBlockPyCommand(rootOpts))

	return cmd
}

func newConvertVPLCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{RootOptions: rootOpts}
	var eventsCSV string

	cmd := &cobra.Command{
		Use:   "vpl <submissions-zip>",
		Short: "Convert a Moodle VPL submissions archive",
		Long: `Convert a Moodle VPL submissions archive into a ProgSnap2 dataset.

The archive groups stamped snapshots per student; each snapshot becomes a
Submit event with a deduplicated code state, and its .ceg evaluation files
become Run.Program, Compile.Error and Feedback.Grade events. An optional
activity CSV contributes additional events reconciled against the archive.

Example:
  progsnap2 convert vpl --out ./dataset submissions.zip
  progsnap2 convert vpl --out ./dataset --events log.csv submissions.zip`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(opts, cmd, func(cfg config.Config, pool *collect.Pool, states *codestate.Dedup) error {
				conv := &vpl.Converter{Pool: pool, States: states, Tool: opts.Tool}
				if err := conv.ConvertSubmissions(args[0]); err != nil {
					return err
				}
				if eventsCSV != "" {
					return conv.ConvertEvents(eventsCSV)
				}
				return nil
			})
		},
	}

	addConvertFlags(cmd, opts)
	cmd.Flags().StringVar(&eventsCSV, "events", "", "path to VPL activity CSV (optional second source)")

	return cmd
}

func newConvertBlockPyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{RootOptions: rootOpts}
	var rulesDir string

	cmd := &cobra.Command{
		Use:   "blockpy <dump-archive>",
		Short: "Convert a BlockPy database dump",
		Long: `Convert a BlockPy database dump (zip or tar, optionally gzipped)
into a ProgSnap2 dataset.

Log records are classified into event types by a CUE rule set; pass --rules
to override the built-in BlockPy rules.

Example:
  progsnap2 convert blockpy --out ./dataset dump.zip
  progsnap2 convert blockpy --out ./dataset --rules ./rules dump.tar.gz`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(opts, cmd, func(cfg config.Config, pool *collect.Pool, states *codestate.Dedup) error {
				rules, err := loadRules(rulesDir)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to load mapping rules", err)
				}
				conv := &blockpy.Converter{
					Pool:     pool,
					States:   states,
					Rules:    rules,
					Tool:     opts.Tool,
					MainFile: cfg.MainFile,
				}
				return conv.Convert(args[0])
			})
		},
	}

	addConvertFlags(cmd, opts)
	cmd.Flags().StringVar(&rulesDir, "rules", "", "directory of CUE mapping rules (default: built-in)")

	return cmd
}

func addConvertFlags(cmd *cobra.Command, opts *ConvertOptions) {
	cmd.Flags().StringVar(&opts.Output, "out", "", "output dataset directory (required)")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML config file")
	cmd.Flags().StringVar(&opts.Tool, "tool", "", "tool-instance descriptor override")
	_ = cmd.MarkFlagRequired("out")
}

// runConvert drives the shared conversion pipeline: collect from the
// source, reconcile, sequence, emit.
func runConvert(opts *ConvertOptions, cmd *cobra.Command, fill func(config.Config, *collect.Pool, *codestate.Dedup) error) error {
	setupLogging(opts.Verbose)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	runID := uuid.NewString()
	slog.Info("conversion starting", "run_id", runID, "out", opts.Output)

	cfg := config.Default()
	if opts.Config != "" {
		var err error
		cfg, err = config.Load(opts.Config)
		if err != nil {
			return commandError(formatter, "failed to load config", err)
		}
	}
	// Flag wins over config file for the tool descriptor
	if opts.Tool == "" {
		opts.Tool = cfg.Tool
	}

	pool := collect.NewPool()
	states := codestate.NewDedup()

	if err := fill(cfg, pool, states); err != nil {
		return conversionError(formatter, err)
	}
	slog.Info("collection complete", "events", pool.Len(), "code_states", states.Len())

	if err := pool.Reconcile(collect.ReconcilePolicy{Window: cfg.ReconcileWindowSeconds}); err != nil {
		return conversionError(formatter, err)
	}

	events := pool.Events()
	seq := &sequence.Sequencer{Scope: cfg.Scope(), ScopeColumns: cfg.EventOrderScopeColumns}
	if err := seq.Sequence(events); err != nil {
		return conversionError(formatter, err)
	}

	if err := dataset.Write(opts.Output, events, states, cfg.Metadata(), nil); err != nil {
		return conversionError(formatter, err)
	}
	slog.Info("conversion complete", "run_id", runID, "events", len(events))

	return formatter.Success(ConvertResult{
		RunID:      runID,
		OutputDir:  opts.Output,
		Events:     len(events),
		CodeStates: states.Len(),
	})
}

func loadRules(dir string) (*mapping.RuleSet, error) {
	if dir == "" {
		return mapping.Default()
	}
	return mapping.Load(dir)
}

// setupLogging configures the default slog handler from the verbose flag.
func setupLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// conversionError reports a pipeline failure. Structured conversion errors
// carry their taxonomy code and exit 1; anything else (unreadable archive,
// filesystem trouble) is a command error and exits 2.
func conversionError(formatter *OutputFormatter, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		_ = formatter.Error("COMMAND_ERROR", exitErr.Error(), nil)
		return exitErr
	}

	var ce *event.ConvertError
	if errors.As(err, &ce) {
		_ = formatter.Error(string(ce.Code), ce.Message, ce.Details)
		return WrapExitError(ExitFailure, "conversion failed", err)
	}

	return commandError(formatter, "conversion failed", err)
}

func commandError(formatter *OutputFormatter, message string, err error) error {
	_ = formatter.Error("COMMAND_ERROR", fmt.Sprintf("%s: %v", message, err), nil)
	return WrapExitError(ExitCommandError, message, err)
}
