// Package sim executes simulation programs. Every (scenario, trial) pair
// gets its own engine and runs independently on a worker pool; each
// simulated year's results are written to the sink under a shared run
// token.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/stratosim/internal/config"
	"github.com/roach88/stratosim/internal/engine"
	"github.com/roach88/stratosim/internal/report"
	"github.com/roach88/stratosim/internal/state"
	"github.com/roach88/stratosim/internal/units"
)

// Sink receives simulation output. *results.Store satisfies it.
type Sink interface {
	BeginRun(ctx context.Context) (uuid.UUID, error)
	WriteResults(ctx context.Context, runID uuid.UUID, rows []report.Result) error
}

// Runner fans a program's (scenario, trial) pairs out across workers.
type Runner struct {
	program *config.Program
	sink    Sink
	log     *slog.Logger
	workers int
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger replaces the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// WithWorkers overrides the worker count. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n >= 1 {
			r.workers = n
		}
	}
}

// NewRunner creates a runner sized to the host CPU count, with a floor of
// two workers so single-core hosts still overlap trial execution with
// store writes.
func NewRunner(program *config.Program, sink Sink, opts ...Option) *Runner {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	r := &Runner{
		program: program,
		sink:    sink,
		log:     slog.Default(),
		workers: workers,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type job struct {
	scenario config.Scenario
	trial    int
}

// Run executes every (scenario, trial) pair and returns the run token the
// results were written under. Trials are isolated: a failed trial
// contributes its error to the joined return value without stopping
// siblings.
func (r *Runner) Run(ctx context.Context) (uuid.UUID, error) {
	runID, err := r.sink.BeginRun(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin run: %w", err)
	}

	var jobs []job
	for _, sc := range r.program.Scenarios {
		for trial := 1; trial <= r.program.Trials; trial++ {
			jobs = append(jobs, job{scenario: sc, trial: trial})
		}
	}

	r.log.Info("run started",
		"run", runID,
		"scenarios", len(r.program.Scenarios),
		"trials", r.program.Trials,
		"jobs", len(jobs),
		"workers", r.workers)

	errs := make([]error, len(jobs))
	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			// Jobs are assigned round-robin so each worker sees a stable,
			// deterministic slice of the program.
			for i := w; i < len(jobs); i += r.workers {
				j := jobs[i]
				if err := r.runTrial(ctx, runID, j.scenario, j.trial); err != nil {
					r.log.Error("trial failed",
						"run", runID,
						"scenario", j.scenario.Name,
						"trial", j.trial,
						"error", err)
					errs[i] = fmt.Errorf("scenario %q trial %d: %w", j.scenario.Name, j.trial, err)
				}
			}
		}(w)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return runID, err
	}

	r.log.Info("run finished", "run", runID)
	return runID, nil
}

// runTrial simulates one scenario trial from start year to end year,
// replaying the scenario's commands every year and persisting a result
// row per registered (application, substance) pair.
func (r *Runner) runTrial(ctx context.Context, runID uuid.UUID, sc config.Scenario, trial int) error {
	eng := engine.NewEngine(r.program.StartYear, r.program.EndYear)
	eng.SetScenarioName(sc.Name)
	eng.SetTrialNumber(trial)
	eng.SetLogger(r.log.With("scenario", sc.Name, "trial", trial))

	ser := report.NewSerializer(eng)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		eng.SetStanza(sc.Stanza)
		for i, cmd := range sc.Commands {
			if err := applyCommand(eng, cmd); err != nil {
				return fmt.Errorf("year %d command %d (%s): %w", eng.Year(), i+1, cmd.Op, err)
			}
		}

		rows, err := r.collectYear(eng, ser)
		if err != nil {
			return fmt.Errorf("year %d: %w", eng.Year(), err)
		}
		if err := r.sink.WriteResults(ctx, runID, rows); err != nil {
			return fmt.Errorf("write year %d: %w", eng.Year(), err)
		}

		if eng.Year() >= eng.EndYear() {
			return nil
		}
		if err := eng.IncrementYear(); err != nil {
			return err
		}
	}
}

// collectYear serializes every (application, substance) pair the trial has
// touched, repositioning the engine's scope so contextual conversions
// resolve against each pair in turn.
func (r *Runner) collectYear(eng *engine.Engine, ser *report.Serializer) ([]report.Result, error) {
	ids := eng.Store().RegisteredSubstances()
	rows := make([]report.Result, 0, len(ids))
	for _, id := range ids {
		eng.SetApplication(id.Application)
		if err := eng.SetSubstance(id.Substance, true); err != nil {
			return nil, err
		}
		row, err := ser.Result(state.NewSimpleUseKey(id.Application, id.Substance), eng.Year())
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// applyCommand positions the engine's scope at the command's pair and
// dispatches to the matching engine operation.
func applyCommand(eng *engine.Engine, cmd config.Command) error {
	eng.SetApplication(cmd.Application)
	if err := eng.SetSubstance(cmd.Substance, false); err != nil {
		return err
	}

	ym := cmd.Years.Matcher()

	switch cmd.Op {
	case config.OpEnable:
		return eng.Enable(cmd.Stream, ym)

	case config.OpSet:
		value, err := units.Parse(cmd.Value)
		if err != nil {
			return err
		}
		return eng.SetStream(cmd.Stream, value, ym)

	case config.OpChange:
		value, err := units.Parse(cmd.Value)
		if err != nil {
			return err
		}
		return eng.ChangeStream(cmd.Stream, value, ym, displaceTarget(cmd))

	case config.OpCap:
		value, err := units.Parse(cmd.Value)
		if err != nil {
			return err
		}
		return eng.Cap(cmd.Stream, value, ym, displaceTarget(cmd))

	case config.OpFloor:
		value, err := units.Parse(cmd.Value)
		if err != nil {
			return err
		}
		return eng.Floor(cmd.Stream, value, ym, displaceTarget(cmd))

	case config.OpInitialCharge:
		value, err := units.Parse(cmd.Value)
		if err != nil {
			return err
		}
		return eng.SetInitialCharge(value, cmd.Stream, ym)

	case config.OpIntensity:
		value, err := units.Parse(cmd.Value)
		if err != nil {
			return err
		}
		return eng.SetIntensity(value, ym)

	case config.OpRecharge:
		population, err := units.Parse(cmd.Value)
		if err != nil {
			return err
		}
		intensity, err := units.Parse(cmd.Intensity)
		if err != nil {
			return err
		}
		return eng.Recharge(population, intensity, ym)

	case config.OpRecover:
		recovery, err := units.Parse(cmd.Value)
		if err != nil {
			return err
		}
		yield, err := units.Parse(cmd.Yield)
		if err != nil {
			return err
		}
		stage := cmd.RecoveryStage()
		if err := eng.Recycle(recovery, yield, ym, stage); err != nil {
			return err
		}
		if cmd.Induction == "" {
			return nil
		}
		induction, err := units.Parse(cmd.Induction)
		if err != nil {
			return err
		}
		return eng.SetInductionRate(&induction, ym, stage)

	case config.OpRetire:
		amount, err := units.Parse(cmd.Value)
		if err != nil {
			return err
		}
		return eng.Retire(amount, ym, cmd.WithReplacement)

	case config.OpReplace:
		amount, err := units.Parse(cmd.Value)
		if err != nil {
			return err
		}
		return eng.Replace(amount, cmd.Stream, cmd.Destination, ym)

	default:
		return fmt.Errorf("unknown op %q", cmd.Op)
	}
}

func displaceTarget(cmd config.Command) *string {
	if cmd.Displace == "" {
		return nil
	}
	target := cmd.Displace
	return &target
}
