// Package report extracts per-(application, substance, year) result
// snapshots from a running engine, with every figure normalized into the
// units the result store persists.
package report

import (
	"fmt"
	"strings"

	"github.com/roach88/stratosim/internal/units"
)

// TradeSupplement carries the import attribution figures needed to assign
// imported substance to either the importer or the exporter: the import
// volume net of servicing demand, and its consumption and population
// equivalents. Per-unit emissions factors zero the supplement since those
// calculations are equipment-based.
type TradeSupplement struct {
	ImportInitialChargeValue       units.Quantity
	ImportInitialChargeConsumption units.Quantity
	ImportPopulation               units.Quantity
	ExportInitialChargeValue       units.Quantity
	ExportInitialChargeConsumption units.Quantity
}

// Result is one row of simulation output: the state of one application and
// substance at the end of one year of one trial.
type Result struct {
	ScenarioName string
	TrialNumber  int
	Year         int
	Application  string
	Substance    string

	Domestic units.Quantity // kg
	Import   units.Quantity // kg
	Export   units.Quantity // kg
	Recycle  units.Quantity // kg

	DomesticConsumption units.Quantity // tCO2e
	ImportConsumption   units.Quantity // tCO2e
	ExportConsumption   units.Quantity // tCO2e
	RecycleConsumption  units.Quantity // tCO2e

	Population    units.Quantity // units
	PopulationNew units.Quantity // units

	RechargeEmissions      units.Quantity // tCO2e, net of recycled servicing
	EolEmissions           units.Quantity // tCO2e
	InitialChargeEmissions units.Quantity // tCO2e
	EnergyConsumption      units.Quantity // kwh

	TradeSupplement TradeSupplement
}

// String renders the result as a stable multi-line text block, one field
// per line. Golden tests compare against this rendering.
func (r Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", r.ScenarioName)
	fmt.Fprintf(&b, "trial: %d\n", r.TrialNumber)
	fmt.Fprintf(&b, "year: %d\n", r.Year)
	fmt.Fprintf(&b, "application: %s\n", r.Application)
	fmt.Fprintf(&b, "substance: %s\n", r.Substance)

	writeQuantity(&b, "domestic", r.Domestic)
	writeQuantity(&b, "import", r.Import)
	writeQuantity(&b, "export", r.Export)
	writeQuantity(&b, "recycle", r.Recycle)
	writeQuantity(&b, "domesticConsumption", r.DomesticConsumption)
	writeQuantity(&b, "importConsumption", r.ImportConsumption)
	writeQuantity(&b, "exportConsumption", r.ExportConsumption)
	writeQuantity(&b, "recycleConsumption", r.RecycleConsumption)
	writeQuantity(&b, "population", r.Population)
	writeQuantity(&b, "populationNew", r.PopulationNew)
	writeQuantity(&b, "rechargeEmissions", r.RechargeEmissions)
	writeQuantity(&b, "eolEmissions", r.EolEmissions)
	writeQuantity(&b, "initialChargeEmissions", r.InitialChargeEmissions)
	writeQuantity(&b, "energyConsumption", r.EnergyConsumption)
	writeQuantity(&b, "tradeImportValue", r.TradeSupplement.ImportInitialChargeValue)
	writeQuantity(&b, "tradeImportConsumption", r.TradeSupplement.ImportInitialChargeConsumption)
	writeQuantity(&b, "tradeImportPopulation", r.TradeSupplement.ImportPopulation)
	writeQuantity(&b, "tradeExportValue", r.TradeSupplement.ExportInitialChargeValue)
	writeQuantity(&b, "tradeExportConsumption", r.TradeSupplement.ExportInitialChargeConsumption)
	return b.String()
}

func writeQuantity(b *strings.Builder, name string, q units.Quantity) {
	fmt.Fprintf(b, "%s: %g %s\n", name, q.Float64(), q.Unit())
}
