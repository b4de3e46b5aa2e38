package results

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/roach88/stratosim/internal/report"
	"github.com/roach88/stratosim/internal/units"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult(trial, year int) report.Result {
	return report.Result{
		ScenarioName: "business as usual",
		TrialNumber:  trial,
		Year:         year,
		Application:  "domestic refrigeration",
		Substance:    "HFC-134a",

		Domestic: units.FromFloat(60, "kg"),
		Import:   units.FromFloat(40, "kg"),
		Export:   units.Zero("kg"),
		Recycle:  units.FromFloat(5, "kg"),

		DomesticConsumption: units.FromFloat(0.6, "tCO2e"),
		ImportConsumption:   units.FromFloat(0.4, "tCO2e"),
		ExportConsumption:   units.Zero("tCO2e"),
		RecycleConsumption:  units.FromFloat(0.05, "tCO2e"),

		Population:    units.FromFloat(100, "units"),
		PopulationNew: units.FromFloat(100, "units"),

		RechargeEmissions:      units.FromFloat(0.1, "tCO2e"),
		EolEmissions:           units.Zero("tCO2e"),
		InitialChargeEmissions: units.FromFloat(1, "tCO2e"),
		EnergyConsumption:      units.FromFloat(250, "kwh"),

		TradeSupplement: report.TradeSupplement{
			ImportInitialChargeValue:       units.FromFloat(36, "kg"),
			ImportInitialChargeConsumption: units.FromFloat(0.36, "tCO2e"),
			ImportPopulation:               units.FromFloat(36, "units"),
			ExportInitialChargeValue:       units.Zero("kg"),
			ExportInitialChargeConsumption: units.Zero("tCO2e"),
		},
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"runs", "results"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s := newTestStore(t)

	// synchronous NORMAL = 1, foreign_keys ON = 1
	checks := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1",
		"busy_timeout": "5000",
		"foreign_keys": "1",
	}
	for name, want := range checks {
		if err := s.verifyPragma(name, want); err != nil {
			t.Error(err)
		}
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestWriteResult_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runID, err := s.BeginRun(ctx)
	if err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}

	want := sampleResult(1, 1)
	if err := s.WriteResult(ctx, runID, want); err != nil {
		t.Fatalf("WriteResult() failed: %v", err)
	}

	got, err := s.ResultsForRun(ctx, runID)
	if err != nil {
		t.Fatalf("ResultsForRun() failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d rows, want 1", len(got))
	}

	// Quantities survive the round trip, so the stable renderings match.
	if got[0].String() != want.String() {
		t.Errorf("round trip mismatch:\ngot:\n%s\nwant:\n%s", got[0].String(), want.String())
	}
}

func TestWriteResult_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runID, err := s.BeginRun(ctx)
	if err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}

	r := sampleResult(1, 1)
	for i := 0; i < 2; i++ {
		if err := s.WriteResult(ctx, runID, r); err != nil {
			t.Fatalf("WriteResult() iteration %d failed: %v", i, err)
		}
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM results").Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("got %d rows after duplicate write, want 1", count)
	}
}

func TestWriteResults_Batch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runID, err := s.BeginRun(ctx)
	if err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}

	rows := []report.Result{
		sampleResult(1, 2),
		sampleResult(1, 1),
		sampleResult(2, 1),
	}
	if err := s.WriteResults(ctx, runID, rows); err != nil {
		t.Fatalf("WriteResults() failed: %v", err)
	}

	got, err := s.ResultsForRun(ctx, runID)
	if err != nil {
		t.Fatalf("ResultsForRun() failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3", len(got))
	}

	// Rows come back ordered by (scenario, trial, year).
	order := [][2]int{{1, 1}, {1, 2}, {2, 1}}
	for i, want := range order {
		if got[i].TrialNumber != want[0] || got[i].Year != want[1] {
			t.Errorf("row %d: got trial %d year %d, want trial %d year %d",
				i, got[i].TrialNumber, got[i].Year, want[0], want[1])
		}
	}
}

func TestWriteResult_UnknownRunRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// No BeginRun: the foreign key on results.run_id must reject the row.
	err := s.WriteResult(ctx, uuid.New(), sampleResult(1, 1))
	if err == nil {
		t.Error("expected foreign key error for unknown run, got nil")
	}
}

func TestResultsForRun_ScopedToRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runA, err := s.BeginRun(ctx)
	if err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
	runB, err := s.BeginRun(ctx)
	if err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}

	if err := s.WriteResult(ctx, runA, sampleResult(1, 1)); err != nil {
		t.Fatalf("WriteResult() failed: %v", err)
	}
	if err := s.WriteResult(ctx, runB, sampleResult(1, 1)); err != nil {
		t.Fatalf("WriteResult() failed: %v", err)
	}

	got, err := s.ResultsForRun(ctx, runA)
	if err != nil {
		t.Fatalf("ResultsForRun() failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d rows for run A, want 1", len(got))
	}
}
