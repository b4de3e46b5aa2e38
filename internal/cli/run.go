package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/stratosim/internal/config"
	"github.com/roach88/stratosim/internal/results"
	"github.com/roach88/stratosim/internal/sim"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Workers  int
}

// RunSummary is the JSON payload for a completed run.
type RunSummary struct {
	RunID string `json:"run_id"`
	Rows  int    `json:"rows"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <program.yaml>",
		Short: "Run a simulation program",
		Long: `Run every scenario and trial of a YAML simulation program.

Trials execute in parallel on a worker pool and each simulated year's
results are written to the SQLite database under a fresh run token.

Example:
  stratosim run --db ./results.db ./program.yaml
  stratosim run --db /tmp/results.db ./program.yaml --workers 8 --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite results database (required)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "worker count (default: CPU count, minimum 2)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runProgram(opts *RunOptions, path string, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	program, err := config.Load(path)
	if err != nil {
		var ce *config.Error
		if errors.As(err, &ce) && ce.Code != config.ErrCodeUnreadable {
			return WrapExitError(ExitFailure, "program invalid", err)
		}
		return WrapExitError(ExitCommandError, "failed to load program", err)
	}

	logger.Info("opening results database", "path", opts.Database)
	store, err := results.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runnerOpts := []sim.Option{sim.WithLogger(logger)}
	if opts.Workers > 0 {
		runnerOpts = append(runnerOpts, sim.WithWorkers(opts.Workers))
	}
	runner := sim.NewRunner(program, store, runnerOpts...)

	runID, err := runner.Run(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "run failed", err)
	}

	rows, err := store.ResultsForRun(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read back results", err)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(RunSummary{RunID: runID.String(), Rows: len(rows)})
	}

	p := message.NewPrinter(language.English)
	p.Fprintf(cmd.OutOrStdout(), "run %s complete: %d result row(s) written\n", runID, len(rows))
	return nil
}
