// Package results persists simulation output to SQLite. Each simulator
// invocation gets a UUID run token; result rows are keyed by the full
// output coordinate under that token, so duplicate writes are no-ops.
package results

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/stratosim/internal/report"
	"github.com/roach88/stratosim/internal/units"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - pre-versioned database
// 1 - initial schema (runs + results)
const currentSchemaVersion = 1

// Store is a single-writer SQLite store for simulation results.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a results database at the given path.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows one writer at a time. A single connection keeps all
	// trial writers serialized on the Go side instead of hitting
	// SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("pragma %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and stamps the schema
// version. This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < currentSchemaVersion {
		stmt := fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

// DB exposes the underlying connection for ad hoc queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// BeginRun mints a run token and records the run. All result rows written
// afterwards reference it.
func (s *Store) BeginRun(ctx context.Context) (uuid.UUID, error) {
	runID := uuid.New()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at)
		VALUES (?, ?)
	`, runID.String(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin run: %w", err)
	}
	return runID, nil
}

// WriteResult inserts one result row under the given run token.
// Uses ON CONFLICT DO NOTHING for idempotency: a row already written for
// the same (run, scenario, trial, year, application, substance) coordinate
// is silently ignored.
func (s *Store) WriteResult(ctx context.Context, runID uuid.UUID, r report.Result) error {
	return writeResult(ctx, s.db, runID, r)
}

// WriteResults inserts a batch of result rows in a single transaction,
// typically one simulated year across every (application, substance) key.
func (s *Store) WriteResults(ctx context.Context, runID uuid.UUID, rows []report.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write results: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, r := range rows {
		if err := writeResult(ctx, tx, runID, r); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write results: commit: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writeResult(ctx context.Context, db execer, runID uuid.UUID, r report.Result) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO results
		(run_id, scenario, trial, year, application, substance,
		 domestic_kg, import_kg, export_kg, recycle_kg,
		 domestic_consumption_tco2e, import_consumption_tco2e,
		 export_consumption_tco2e, recycle_consumption_tco2e,
		 population_units, population_new_units,
		 recharge_emissions_tco2e, eol_emissions_tco2e,
		 initial_charge_emissions_tco2e, energy_consumption_kwh,
		 trade_import_kg, trade_import_tco2e, trade_import_population_units,
		 trade_export_kg, trade_export_tco2e)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		runID.String(),
		r.ScenarioName,
		r.TrialNumber,
		r.Year,
		r.Application,
		r.Substance,
		r.Domestic.Float64(),
		r.Import.Float64(),
		r.Export.Float64(),
		r.Recycle.Float64(),
		r.DomesticConsumption.Float64(),
		r.ImportConsumption.Float64(),
		r.ExportConsumption.Float64(),
		r.RecycleConsumption.Float64(),
		r.Population.Float64(),
		r.PopulationNew.Float64(),
		r.RechargeEmissions.Float64(),
		r.EolEmissions.Float64(),
		r.InitialChargeEmissions.Float64(),
		r.EnergyConsumption.Float64(),
		r.TradeSupplement.ImportInitialChargeValue.Float64(),
		r.TradeSupplement.ImportInitialChargeConsumption.Float64(),
		r.TradeSupplement.ImportPopulation.Float64(),
		r.TradeSupplement.ExportInitialChargeValue.Float64(),
		r.TradeSupplement.ExportInitialChargeConsumption.Float64(),
	)
	if err != nil {
		return fmt.Errorf("write result %s/%s/%d/%d: %w",
			r.ScenarioName, r.Substance, r.TrialNumber, r.Year, err)
	}
	return nil
}

// ResultsForRun reads back every result row written under the run token,
// ordered by scenario, trial, year, application, substance.
func (s *Store) ResultsForRun(ctx context.Context, runID uuid.UUID) ([]report.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scenario, trial, year, application, substance,
		       domestic_kg, import_kg, export_kg, recycle_kg,
		       domestic_consumption_tco2e, import_consumption_tco2e,
		       export_consumption_tco2e, recycle_consumption_tco2e,
		       population_units, population_new_units,
		       recharge_emissions_tco2e, eol_emissions_tco2e,
		       initial_charge_emissions_tco2e, energy_consumption_kwh,
		       trade_import_kg, trade_import_tco2e, trade_import_population_units,
		       trade_export_kg, trade_export_tco2e
		FROM results
		WHERE run_id = ?
		ORDER BY scenario, trial, year, application, substance
	`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("results for run: %w", err)
	}
	defer rows.Close()

	var out []report.Result
	for rows.Next() {
		var r report.Result
		var domestic, imports, exports, recycle float64
		var domesticCo2, importCo2, exportCo2, recycleCo2 float64
		var population, populationNew float64
		var recharge, eol, initialCharge, energy float64
		var tradeImportKg, tradeImportCo2, tradeImportPop float64
		var tradeExportKg, tradeExportCo2 float64

		err := rows.Scan(
			&r.ScenarioName, &r.TrialNumber, &r.Year, &r.Application, &r.Substance,
			&domestic, &imports, &exports, &recycle,
			&domesticCo2, &importCo2, &exportCo2, &recycleCo2,
			&population, &populationNew,
			&recharge, &eol, &initialCharge, &energy,
			&tradeImportKg, &tradeImportCo2, &tradeImportPop,
			&tradeExportKg, &tradeExportCo2,
		)
		if err != nil {
			return nil, fmt.Errorf("results for run: scan: %w", err)
		}

		r.Domestic = units.FromFloat(domestic, "kg")
		r.Import = units.FromFloat(imports, "kg")
		r.Export = units.FromFloat(exports, "kg")
		r.Recycle = units.FromFloat(recycle, "kg")
		r.DomesticConsumption = units.FromFloat(domesticCo2, "tCO2e")
		r.ImportConsumption = units.FromFloat(importCo2, "tCO2e")
		r.ExportConsumption = units.FromFloat(exportCo2, "tCO2e")
		r.RecycleConsumption = units.FromFloat(recycleCo2, "tCO2e")
		r.Population = units.FromFloat(population, "units")
		r.PopulationNew = units.FromFloat(populationNew, "units")
		r.RechargeEmissions = units.FromFloat(recharge, "tCO2e")
		r.EolEmissions = units.FromFloat(eol, "tCO2e")
		r.InitialChargeEmissions = units.FromFloat(initialCharge, "tCO2e")
		r.EnergyConsumption = units.FromFloat(energy, "kwh")
		r.TradeSupplement = report.TradeSupplement{
			ImportInitialChargeValue:       units.FromFloat(tradeImportKg, "kg"),
			ImportInitialChargeConsumption: units.FromFloat(tradeImportCo2, "tCO2e"),
			ImportPopulation:               units.FromFloat(tradeImportPop, "units"),
			ExportInitialChargeValue:       units.FromFloat(tradeExportKg, "kg"),
			ExportInitialChargeConsumption: units.FromFloat(tradeExportCo2, "tCO2e"),
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("results for run: %w", err)
	}
	return out, nil
}
