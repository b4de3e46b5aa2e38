package sim

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stratosim/internal/config"
	"github.com/roach88/stratosim/internal/report"
	"github.com/roach88/stratosim/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func baselineCommands(substance string) []config.Command {
	return []config.Command{
		{
			Op:          config.OpEnable,
			Application: "domestic refrigeration",
			Substance:   substance,
			Stream:      "domestic",
		},
		{
			Op:          config.OpSet,
			Application: "domestic refrigeration",
			Substance:   substance,
			Stream:      "domestic",
			Value:       "100 kg",
		},
		{
			Op:          config.OpIntensity,
			Application: "domestic refrigeration",
			Substance:   substance,
			Value:       "10 tCO2e / mt",
		},
	}
}

func rowsForYear(rows []report.Result, year int) []report.Result {
	var out []report.Result
	for _, r := range rows {
		if r.Year == year {
			out = append(out, r)
		}
	}
	return out
}

func TestRunner_RunsEveryScenarioTrialPair(t *testing.T) {
	program := &config.Program{
		StartYear: 1,
		EndYear:   3,
		Trials:    2,
		Scenarios: []config.Scenario{
			{Name: "business as usual", Stanza: "default", Commands: baselineCommands("HFC-134a")},
			{Name: "phasedown", Stanza: "default", Commands: baselineCommands("HFC-134a")},
		},
	}
	sink := testutil.NewMemorySink()

	runID, err := NewRunner(program, sink, WithLogger(discardLogger()), WithWorkers(2)).
		Run(context.Background())
	require.NoError(t, err)

	// 2 scenarios x 2 trials x 3 years x 1 substance.
	rows := sink.Rows(runID)
	require.Len(t, rows, 12)

	seen := make(map[string]map[int]int)
	for _, r := range rows {
		if seen[r.ScenarioName] == nil {
			seen[r.ScenarioName] = make(map[int]int)
		}
		seen[r.ScenarioName][r.TrialNumber]++
	}
	for _, scenario := range []string{"business as usual", "phasedown"} {
		for trial := 1; trial <= 2; trial++ {
			assert.Equal(t, 3, seen[scenario][trial],
				"scenario %q trial %d row count", scenario, trial)
		}
	}
}

func TestRunner_TrialRowsCarrySimulatedState(t *testing.T) {
	program := &config.Program{
		StartYear: 1,
		EndYear:   3,
		Trials:    1,
		Scenarios: []config.Scenario{
			{Name: "baseline", Stanza: "default", Commands: baselineCommands("HFC-134a")},
		},
	}
	sink := testutil.NewMemorySink()

	runID, err := NewRunner(program, sink, WithLogger(discardLogger()), WithWorkers(1)).
		Run(context.Background())
	require.NoError(t, err)

	rows := sink.Rows(runID)
	require.Len(t, rows, 3)

	first := rowsForYear(rows, 1)
	require.Len(t, first, 1)
	assert.InDelta(t, 100, first[0].Domestic.Float64(), 1e-6)
	assert.InDelta(t, 1, first[0].DomesticConsumption.Float64(), 1e-6)
	assert.InDelta(t, 100, first[0].Population.Float64(), 1e-6)

	// The fleet accumulates 100 new units per simulated year.
	last := rowsForYear(rows, 3)
	require.Len(t, last, 1)
	assert.InDelta(t, 300, last[0].Population.Float64(), 1e-6)
}

func TestRunner_TrialsAreDeterministic(t *testing.T) {
	program := &config.Program{
		StartYear: 1,
		EndYear:   5,
		Trials:    4,
		Scenarios: []config.Scenario{
			{Name: "baseline", Stanza: "default", Commands: baselineCommands("HFC-134a")},
		},
	}
	sink := testutil.NewMemorySink()

	runID, err := NewRunner(program, sink, WithLogger(discardLogger()), WithWorkers(4)).
		Run(context.Background())
	require.NoError(t, err)

	rows := sink.Rows(runID)
	require.Len(t, rows, 20)

	// Every trial simulates the same program, so per-year snapshots must
	// agree across trials regardless of worker interleaving.
	byYear := make(map[int]map[int]string)
	for _, r := range rows {
		if byYear[r.Year] == nil {
			byYear[r.Year] = make(map[int]string)
		}
		snapshot := r
		snapshot.TrialNumber = 0
		byYear[r.Year][r.TrialNumber] = snapshot.String()
	}
	for year, trials := range byYear {
		require.Len(t, trials, 4, "year %d", year)
		for trial := 2; trial <= 4; trial++ {
			assert.Equal(t, trials[1], trials[trial], "year %d trial %d", year, trial)
		}
	}
}

func TestRunner_YearRangeLimitsCommands(t *testing.T) {
	min := 2
	commands := append(baselineCommands("HFC-134a"), config.Command{
		Op:          config.OpCap,
		Application: "domestic refrigeration",
		Substance:   "HFC-134a",
		Stream:      "domestic",
		Value:       "85 %",
		Years:       &config.YearRange{Min: &min},
	})
	program := &config.Program{
		StartYear: 1,
		EndYear:   3,
		Trials:    1,
		Scenarios: []config.Scenario{
			{Name: "capped", Stanza: "default", Commands: commands},
		},
	}
	sink := testutil.NewMemorySink()

	runID, err := NewRunner(program, sink, WithLogger(discardLogger()), WithWorkers(1)).
		Run(context.Background())
	require.NoError(t, err)

	rows := sink.Rows(runID)
	require.Len(t, rows, 3)
	assert.InDelta(t, 100, rowsForYear(rows, 1)[0].Domestic.Float64(), 1e-6)
	assert.InDelta(t, 85, rowsForYear(rows, 2)[0].Domestic.Float64(), 1e-6)
	assert.InDelta(t, 85, rowsForYear(rows, 3)[0].Domestic.Float64(), 1e-6)
}

func TestRunner_SerializesEveryRegisteredSubstance(t *testing.T) {
	commands := append(baselineCommands("HFC-134a"), baselineCommands("R-600a")...)
	program := &config.Program{
		StartYear: 1,
		EndYear:   1,
		Trials:    1,
		Scenarios: []config.Scenario{
			{Name: "two substances", Stanza: "default", Commands: commands},
		},
	}
	sink := testutil.NewMemorySink()

	runID, err := NewRunner(program, sink, WithLogger(discardLogger()), WithWorkers(1)).
		Run(context.Background())
	require.NoError(t, err)

	rows := sink.Rows(runID)
	require.Len(t, rows, 2)

	// Registered pairs serialize in sorted order.
	assert.Equal(t, "HFC-134a", rows[0].Substance)
	assert.Equal(t, "R-600a", rows[1].Substance)
}

func TestRunner_FailedTrialDoesNotBlockSiblings(t *testing.T) {
	broken := append(baselineCommands("HFC-134a"), config.Command{
		Op:          config.OpCap,
		Application: "domestic refrigeration",
		Substance:   "HFC-134a",
		Stream:      "domestic",
		Value:       "50 %",
		Displace:    "domestic",
	})
	program := &config.Program{
		StartYear: 1,
		EndYear:   2,
		Trials:    2,
		Scenarios: []config.Scenario{
			{Name: "healthy", Stanza: "default", Commands: baselineCommands("HFC-134a")},
			{Name: "broken", Stanza: "default", Commands: broken},
		},
	}
	sink := testutil.NewMemorySink()

	runID, err := NewRunner(program, sink, WithLogger(discardLogger()), WithWorkers(2)).
		Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `scenario "broken" trial 1`)
	assert.Contains(t, err.Error(), `scenario "broken" trial 2`)

	// The healthy scenario's trials still ran to completion.
	healthy := 0
	for _, r := range sink.Rows(runID) {
		if r.ScenarioName == "healthy" {
			healthy++
		}
	}
	assert.Equal(t, 4, healthy)
}

func TestRunner_SinkFailureSurfaces(t *testing.T) {
	program := &config.Program{
		StartYear: 1,
		EndYear:   1,
		Trials:    1,
		Scenarios: []config.Scenario{
			{Name: "baseline", Stanza: "default", Commands: baselineCommands("HFC-134a")},
		},
	}
	sink := testutil.NewMemorySink()
	sink.FailWrites = true

	_, err := NewRunner(program, sink, WithLogger(discardLogger()), WithWorkers(1)).
		Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write year 1")
}

func TestRunner_CanceledContextStopsTrials(t *testing.T) {
	program := &config.Program{
		StartYear: 1,
		EndYear:   10,
		Trials:    2,
		Scenarios: []config.Scenario{
			{Name: "baseline", Stanza: "default", Commands: baselineCommands("HFC-134a")},
		},
	}
	sink := testutil.NewMemorySink()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(program, sink, WithLogger(discardLogger()), WithWorkers(2)).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
