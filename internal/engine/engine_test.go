package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stratosim/internal/state"
	"github.com/roach88/stratosim/internal/units"
)

func newTestEngine(t *testing.T, streams ...string) *Engine {
	t.Helper()
	e := NewEngine(1, 10)
	e.SetStanza("default")
	e.SetApplication("domestic refrigeration")
	require.NoError(t, e.SetSubstance("HFC-134a", false))
	if len(streams) == 0 {
		streams = []string{state.StreamDomestic}
	}
	for _, name := range streams {
		require.NoError(t, e.Enable(name, nil))
	}
	return e
}

func assertStream(t *testing.T, e *Engine, name, want, wantUnit string) {
	t.Helper()
	q, err := e.Stream(name)
	require.NoError(t, err)
	assert.Equal(t, wantUnit, q.Unit())
	assert.Zerof(t, q.Value().Cmp(units.MustDecimal(want)),
		"stream %s = %s %s, want %s %s",
		name, q.Value().Text('f'), q.Unit(), want, wantUnit)
}

func assertStreamNear(t *testing.T, e *Engine, name string, want float64, wantUnit string) {
	t.Helper()
	q, err := e.Stream(name)
	require.NoError(t, err)
	assert.Equal(t, wantUnit, q.Unit())
	assert.InDelta(t, want, q.Float64(), 1e-6, "stream %s", name)
}

func TestEngine_SetStreamOutOfYearIsNoOp(t *testing.T) {
	e := newTestEngine(t)

	ym := state.NewSingleYearMatcher(5)
	require.NoError(t, e.SetStream(state.StreamDomestic, units.FromInt64(100, "kg"), ym))

	assertStream(t, e, state.StreamDomestic, "0", "kg")
	assertStream(t, e, state.StreamEquipment, "0", "units")
}

func TestEngine_SalesAggregatesSubstreams(t *testing.T) {
	e := newTestEngine(t, state.StreamDomestic, state.StreamImport)

	require.NoError(t, e.SetStream(state.StreamDomestic, units.FromInt64(60, "kg"), nil))
	require.NoError(t, e.SetStream(state.StreamImport, units.FromInt64(40, "kg"), nil))

	assertStream(t, e, state.StreamSales, "100", "kg")
	assertStream(t, e, state.StreamEquipment, "100", "units")
}

func TestEngine_ConsumptionFromIntensity(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.SetStream(state.StreamDomestic, units.FromInt64(100, "mt"), nil))
	require.NoError(t, e.SetIntensity(units.FromInt64(5, "tCO2e / mt"), nil))

	assertStream(t, e, state.StreamDomestic, "100000", "kg")
	assertStream(t, e, state.StreamConsumption, "500", "tCO2e")
}

func TestEngine_UnsupportedIntensityRejected(t *testing.T) {
	e := newTestEngine(t)

	err := e.SetIntensity(units.FromInt64(5, "kg / unit"), nil)
	require.Error(t, err)
	assert.True(t, IsUnsupportedIntensityError(err))
}

func TestEngine_MissingScopeRejected(t *testing.T) {
	e := NewEngine(1, 10)
	e.SetApplication("domestic refrigeration")

	err := e.SetStream(state.StreamDomestic, units.FromInt64(10, "kg"), nil)
	require.Error(t, err)
	assert.True(t, IsMissingScopeError(err))
}

func TestEngine_IncrementYearPastEndRejected(t *testing.T) {
	e := NewEngine(1, 1)
	require.NoError(t, e.IncrementYear())
	require.True(t, e.IsDone())

	err := e.IncrementYear()
	require.Error(t, err)
	assert.True(t, IsSimulationCompleteError(err))
}

func TestEngine_ChangeStreamPercentCompoundsAgainstIntent(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.SetStream(state.StreamDomestic, units.FromInt64(100, "kg"), nil))
	require.NoError(t, e.ChangeStream(state.StreamDomestic, units.FromInt64(10, "%"), nil, nil))

	assertStream(t, e, state.StreamDomestic, "110", "kg")
}

func TestEngine_ChangeStreamDisplacesIntoOtherStream(t *testing.T) {
	e := newTestEngine(t, state.StreamDomestic, state.StreamImport)

	require.NoError(t, e.SetStream(state.StreamDomestic, units.FromInt64(100, "kg"), nil))
	require.NoError(t, e.SetStream(state.StreamImport, units.FromInt64(50, "kg"), nil))

	target := state.StreamImport
	require.NoError(t, e.ChangeStream(
		state.StreamDomestic, units.FromInt64(-20, "kg"), nil, &target))

	assertStream(t, e, state.StreamDomestic, "80", "kg")
	assertStream(t, e, state.StreamImport, "70", "kg")
}

func TestEngine_CapToPercentOfIntent(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.SetStream(state.StreamDomestic, units.FromInt64(1000, "mt"), nil))
	require.NoError(t, e.Cap(state.StreamDomestic, units.FromInt64(85, "%"), nil, nil))

	assertStream(t, e, state.StreamDomestic, "850000", "kg")
}

func TestEngine_CapIsIdempotent(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.SetStream(state.StreamDomestic, units.FromInt64(1000, "mt"), nil))
	require.NoError(t, e.Cap(state.StreamDomestic, units.FromInt64(85, "%"), nil, nil))
	require.NoError(t, e.Cap(state.StreamDomestic, units.FromInt64(85, "%"), nil, nil))

	assertStream(t, e, state.StreamDomestic, "850000", "kg")
}

func TestEngine_FloorBelowCurrentIsNoOp(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.SetStream(state.StreamDomestic, units.FromInt64(100, "kg"), nil))
	require.NoError(t, e.Floor(state.StreamDomestic, units.FromInt64(50, "kg"), nil, nil))

	assertStream(t, e, state.StreamDomestic, "100", "kg")
}

func TestEngine_SelfDisplacementRejected(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.SetStream(state.StreamDomestic, units.FromInt64(100, "kg"), nil))

	target := state.StreamDomestic
	err := e.Cap(state.StreamDomestic, units.FromInt64(50, "%"), nil, &target)
	require.Error(t, err)
	assert.True(t, IsSelfDisplacementError(err))

	// The failed cap must not have moved anything.
	assertStream(t, e, state.StreamDomestic, "100", "kg")
}

func TestEngine_RetireReducesFleet(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.SetStream(state.StreamDomestic, units.FromInt64(100, "kg"), nil))
	assertStream(t, e, state.StreamEquipment, "100", "units")

	require.NoError(t, e.IncrementYear())
	require.NoError(t, e.SetStream(state.StreamDomestic, units.FromInt64(100, "kg"), nil))
	require.NoError(t, e.Retire(units.FromInt64(10, "%"), nil, false))

	assertStream(t, e, state.StreamRetired, "10", "units")
	assertStream(t, e, state.StreamPriorEquipment, "90", "units")
	assertStream(t, e, state.StreamEquipment, "190", "units")
}

func TestEngine_RetireOrderIndependent(t *testing.T) {
	runYearTwo := func(t *testing.T, retireFirst bool) *Engine {
		e := newTestEngine(t)
		require.NoError(t, e.SetStream(state.StreamDomestic, units.FromInt64(100, "kg"), nil))
		require.NoError(t, e.IncrementYear())

		set := func() {
			require.NoError(t, e.SetStream(state.StreamDomestic, units.FromInt64(100, "kg"), nil))
		}
		retire := func() {
			require.NoError(t, e.Retire(units.FromInt64(10, "%"), nil, false))
		}
		if retireFirst {
			retire()
			set()
		} else {
			set()
			retire()
		}
		return e
	}

	first := runYearTwo(t, true)
	second := runYearTwo(t, false)

	for _, name := range []string{
		state.StreamEquipment, state.StreamPriorEquipment,
		state.StreamRetired, state.StreamSales,
	} {
		a, err := first.Stream(name)
		require.NoError(t, err)
		b, err := second.Stream(name)
		require.NoError(t, err)
		assert.Zerof(t, a.Value().Cmp(b.Value()),
			"stream %s diverges: %s vs %s", name, a.Value().Text('f'), b.Value().Text('f'))
	}
}

func TestEngine_RechargeOrderIndependent(t *testing.T) {
	runYearTwo := func(t *testing.T, rechargeFirst bool) *Engine {
		e := newTestEngine(t)
		require.NoError(t, e.SetStream(state.StreamDomestic, units.FromInt64(100, "kg"), nil))
		require.NoError(t, e.IncrementYear())

		set := func() {
			require.NoError(t, e.SetStream(state.StreamDomestic, units.FromInt64(100, "kg"), nil))
		}
		recharge := func() {
			require.NoError(t, e.Recharge(
				units.FromInt64(10, "%"), units.FromInt64(1, "kg / unit"), nil))
		}
		if rechargeFirst {
			recharge()
			set()
		} else {
			set()
			recharge()
		}
		return e
	}

	first := runYearTwo(t, true)
	second := runYearTwo(t, false)

	for _, name := range []string{
		state.StreamEquipment, state.StreamSales, state.StreamDomestic,
	} {
		a, err := first.Stream(name)
		require.NoError(t, err)
		b, err := second.Stream(name)
		require.NoError(t, err)
		assert.Zerof(t, a.Value().Cmp(b.Value()),
			"stream %s diverges: %s vs %s", name, a.Value().Text('f'), b.Value().Text('f'))
	}

	// 100 units of prior fleet, 10% serviced at 1 kg/unit: 10 kg of the
	// 100 kg supply services the fleet, 90 kg becomes new equipment.
	assertStream(t, first, state.StreamEquipment, "190", "units")
}

func TestEngine_MixedRetireModesRejected(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.SetStream(state.StreamDomestic, units.FromInt64(100, "kg"), nil))
	require.NoError(t, e.IncrementYear())

	require.NoError(t, e.Retire(units.FromInt64(5, "%"), nil, false))
	err := e.Retire(units.FromInt64(5, "%"), nil, true)
	require.Error(t, err)
	assert.True(t, IsMixedRetireError(err))
}

func TestEngine_SetInductionRateValidation(t *testing.T) {
	e := newTestEngine(t)

	bad := units.FromInt64(10, "kg")
	err := e.SetInductionRate(&bad, nil, state.StageRecharge)
	require.Error(t, err)
	assert.True(t, IsBadInductionRateError(err))

	tooHigh := units.FromInt64(150, "%")
	err = e.SetInductionRate(&tooHigh, nil, state.StageRecharge)
	require.Error(t, err)
	assert.True(t, IsBadInductionRateError(err))

	ok := units.FromInt64(50, "%")
	require.NoError(t, e.SetInductionRate(&ok, nil, state.StageRecharge))
}

// With a volume-denominated intent and no explicit induction rate, recycled
// material is fully induced: virgin supply stays at the stated value and
// total sales grow by the recovered mass.
func TestEngine_RecycleDefaultInductionAddsSupply(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.SetStream(state.StreamDomestic, units.FromInt64(100, "kg"), nil))
	require.NoError(t, e.IncrementYear())
	require.NoError(t, e.SetStream(state.StreamDomestic, units.FromInt64(100, "kg"), nil))
	require.NoError(t, e.Recharge(
		units.FromInt64(10, "%"), units.FromInt64(1, "kg / unit"), nil))

	require.NoError(t, e.Recycle(
		units.FromInt64(20, "%"), units.FromInt64(100, "%"), nil, state.StageRecharge))

	assertStream(t, e, state.StreamRecycleRecharge, "2", "kg")
	assertStream(t, e, state.StreamDomestic, "100", "kg")
	assertStream(t, e, state.StreamSales, "102", "kg")
	assertStream(t, e, state.StreamEquipment, "192", "units")
}

// With induction pinned to 0%, recycled material displaces virgin supply
// one for one: total sales hold and virgin supply drops by the recovered
// mass.
func TestEngine_RecycleZeroInductionDisplacesVirgin(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.SetStream(state.StreamDomestic, units.FromInt64(100, "kg"), nil))
	require.NoError(t, e.IncrementYear())
	require.NoError(t, e.SetStream(state.StreamDomestic, units.FromInt64(100, "kg"), nil))
	require.NoError(t, e.Recharge(
		units.FromInt64(10, "%"), units.FromInt64(1, "kg / unit"), nil))

	zero := units.FromInt64(0, "%")
	require.NoError(t, e.SetInductionRate(&zero, nil, state.StageRecharge))
	require.NoError(t, e.Recycle(
		units.FromInt64(20, "%"), units.FromInt64(100, "%"), nil, state.StageRecharge))

	assertStream(t, e, state.StreamRecycleRecharge, "2", "kg")
	assertStream(t, e, state.StreamDomestic, "98", "kg")
	assertStream(t, e, state.StreamSales, "100", "kg")
	assertStream(t, e, state.StreamEquipment, "190", "units")
}
