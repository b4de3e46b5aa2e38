package report

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stratosim/internal/engine"
	"github.com/roach88/stratosim/internal/state"
	"github.com/roach88/stratosim/internal/units"
)

func newReportEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e := engine.NewEngine(1, 3)
	e.SetScenarioName("baseline")
	e.SetTrialNumber(1)
	e.SetStanza("default")
	e.SetApplication("domestic refrigeration")
	require.NoError(t, e.SetSubstance("HFC-134a", false))
	require.NoError(t, e.Enable(state.StreamDomestic, nil))
	require.NoError(t, e.Enable(state.StreamImport, nil))

	require.NoError(t, e.SetStream(state.StreamDomestic, units.FromInt64(60, "kg"), nil))
	require.NoError(t, e.SetStream(state.StreamImport, units.FromInt64(40, "kg"), nil))
	require.NoError(t, e.SetIntensity(units.FromInt64(10, "tCO2e / mt"), nil))
	return e
}

func reportKey() state.SimpleUseKey {
	return state.NewSimpleUseKey("domestic refrigeration", "HFC-134a")
}

func TestSerializer_GoldenSnapshot(t *testing.T) {
	e := newReportEngine(t)

	result, err := NewSerializer(e).Result(reportKey(), e.Year())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"))
	g.Assert(t, "baseline_snapshot", []byte(result.String()))
}

func TestSerializer_ConsumptionSplitsByVolume(t *testing.T) {
	e := newReportEngine(t)

	result, err := NewSerializer(e).Result(reportKey(), e.Year())
	require.NoError(t, err)

	// 100 kg of supply at 10 tCO2e / mt is 1 tCO2e, split 60/40 across
	// domestic and import.
	assert.InDelta(t, 0.6, result.DomesticConsumption.Float64(), 1e-9)
	assert.InDelta(t, 0.4, result.ImportConsumption.Float64(), 1e-9)
	assert.InDelta(t, 1.0, result.InitialChargeEmissions.Float64(), 1e-9)
	assert.InDelta(t, 100.0, result.Population.Float64(), 1e-9)
}

func TestSerializer_TradeSupplementNetsOutRecharge(t *testing.T) {
	e := newReportEngine(t)
	require.NoError(t, e.IncrementYear())

	require.NoError(t, e.SetStream(state.StreamDomestic, units.FromInt64(60, "kg"), nil))
	require.NoError(t, e.SetStream(state.StreamImport, units.FromInt64(40, "kg"), nil))
	require.NoError(t, e.Recharge(
		units.FromInt64(10, "%"), units.FromInt64(1, "kg / unit"), nil))

	result, err := NewSerializer(e).Result(reportKey(), e.Year())
	require.NoError(t, err)

	// 10 kg of virgin servicing demand splits 40% to import, so 4 kg of
	// the 40 kg import stream services existing equipment rather than
	// charging new equipment.
	assert.InDelta(t, 36.0, result.TradeSupplement.ImportInitialChargeValue.Float64(), 1e-9)
	assert.InDelta(t, 36.0, result.TradeSupplement.ImportPopulation.Float64(), 1e-9)
}
