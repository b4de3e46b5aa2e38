package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedState is a StateGetter with canned values for conversion tests.
type fixedState struct {
	substanceConsumption Quantity
	energyIntensity      Quantity
	amortizedUnitVolume  Quantity
	population           Quantity
	yearsElapsed         Quantity
	ghgConsumption       Quantity
	energyConsumption    Quantity
	volume               Quantity
	populationChange     Quantity
	unitConsumption      Quantity
}

func newFixedState() *fixedState {
	return &fixedState{
		substanceConsumption: Zero("tCO2e / kg"),
		energyIntensity:      Zero("kwh / kg"),
		amortizedUnitVolume:  Zero("kg / unit"),
		population:           Zero("units"),
		yearsElapsed:         FromInt64(1, "year"),
		ghgConsumption:       Zero("tCO2e"),
		energyConsumption:    Zero("kwh"),
		volume:               Zero("kg"),
		populationChange:     Zero("units"),
		unitConsumption:      Zero("tCO2e / unit"),
	}
}

func (f *fixedState) SubstanceConsumption() Quantity       { return f.substanceConsumption }
func (f *fixedState) EnergyIntensity() Quantity            { return f.energyIntensity }
func (f *fixedState) AmortizedUnitVolume() Quantity        { return f.amortizedUnitVolume }
func (f *fixedState) Population() Quantity                 { return f.population }
func (f *fixedState) YearsElapsed() Quantity               { return f.yearsElapsed }
func (f *fixedState) GhgConsumption() Quantity             { return f.ghgConsumption }
func (f *fixedState) EnergyConsumption() Quantity          { return f.energyConsumption }
func (f *fixedState) Volume() Quantity                     { return f.volume }
func (f *fixedState) PopulationChange(*Converter) Quantity { return f.populationChange }
func (f *fixedState) AmortizedUnitConsumption() Quantity   { return f.unitConsumption }

func assertQuantity(t *testing.T, q Quantity, wantValue, wantUnit string) {
	t.Helper()
	assert.Equal(t, wantUnit, q.Unit())
	want := MustDecimal(wantValue)
	assert.Zerof(t, q.Value().Cmp(want), "value = %s, want %s", q.Value().Text('f'), wantValue)
}

func TestConverter_SameUnitPassthrough(t *testing.T) {
	conv := NewConverter(newFixedState())
	q := MustParse("1,234.5 kg")
	out := conv.Convert(q, "kg")
	assert.Equal(t, "1,234.5 kg", out.String())
}

func TestConverter_ZeroShortCircuits(t *testing.T) {
	conv := NewConverter(newFixedState())
	out := conv.Convert(Zero("kg"), "units")
	assert.True(t, out.IsZero())
	assert.Equal(t, "units", out.Unit())
}

func TestConverter_KgToMt(t *testing.T) {
	conv := NewConverter(newFixedState())
	out := conv.Convert(FromInt64(100, "kg"), "mt")
	assertQuantity(t, out, "0.1", "mt")
}

func TestConverter_MtToKg(t *testing.T) {
	conv := NewConverter(newFixedState())
	out := conv.Convert(FromInt64(2, "mt"), "kg")
	assertQuantity(t, out, "2000", "kg")
}

func TestConverter_UnitsToKgUsesInitialCharge(t *testing.T) {
	state := newFixedState()
	state.amortizedUnitVolume = FromInt64(2, "kg / unit")
	conv := NewConverter(state)

	out := conv.Convert(FromInt64(10, "units"), "kg")
	assertQuantity(t, out, "20", "kg")
}

func TestConverter_KgToUnitsUsesInitialCharge(t *testing.T) {
	state := newFixedState()
	state.amortizedUnitVolume = FromInt64(2, "kg / unit")
	conv := NewConverter(state)

	out := conv.Convert(FromInt64(10, "kg"), "units")
	assertQuantity(t, out, "5", "units")
}

func TestConverter_KgToUnitsZeroChargeYieldsZero(t *testing.T) {
	conv := NewConverter(newFixedState())
	out := conv.Convert(FromInt64(10, "kg"), "units")
	assert.True(t, out.IsZero())
}

func TestConverter_VolumeToConsumption(t *testing.T) {
	state := newFixedState()
	state.substanceConsumption = FromInt64(5, "tCO2e / mt")
	conv := NewConverter(state)

	out := conv.Convert(FromInt64(100, "mt"), "tCO2e")
	assertQuantity(t, out, "500", "tCO2e")
}

func TestConverter_ConsumptionToVolume(t *testing.T) {
	state := newFixedState()
	state.substanceConsumption = FromInt64(5, "tCO2e / mt")
	conv := NewConverter(state)

	out := conv.Convert(FromInt64(500, "tCO2e"), "mt")
	assertQuantity(t, out, "100", "mt")
}

func TestConverter_PerUnitConsumptionIntensity(t *testing.T) {
	state := newFixedState()
	state.substanceConsumption = FromInt64(3, "tCO2e / unit")
	conv := NewConverter(state)

	out := conv.Convert(FromInt64(4, "units"), "tCO2e")
	assertQuantity(t, out, "12", "tCO2e")
}

func TestConverter_PercentOfVolume(t *testing.T) {
	state := newFixedState()
	state.volume = FromInt64(200, "kg")
	conv := NewConverter(state)

	out := conv.Convert(FromInt64(25, "%"), "kg")
	assertQuantity(t, out, "50", "kg")
}

func TestConverter_VolumeToPercent(t *testing.T) {
	state := newFixedState()
	state.volume = FromInt64(200, "kg")
	conv := NewConverter(state)

	out := conv.Convert(FromInt64(50, "kg"), "%")
	assertQuantity(t, out, "25", "%")
}

func TestConverter_PercentOfPopulation(t *testing.T) {
	state := newFixedState()
	state.population = FromInt64(1000, "units")
	conv := NewConverter(state)

	out := conv.Convert(FromInt64(10, "%"), "units")
	assertQuantity(t, out, "100", "units")
}

func TestConverter_PerUnitNormalization(t *testing.T) {
	state := newFixedState()
	state.population = FromInt64(10, "units")
	conv := NewConverter(state)

	out := conv.Convert(FromInt64(3, "kg / unit"), "kg")
	assertQuantity(t, out, "30", "kg")
}

func TestConverter_PerYearNormalization(t *testing.T) {
	conv := NewConverter(newFixedState())
	out := conv.Convert(FromInt64(5, "kg / year"), "kg")
	assertQuantity(t, out, "5", "kg")
}

func TestConverter_SameDenominatorConvertsNumeratorOnly(t *testing.T) {
	conv := NewConverter(newFixedState())
	out := conv.Convert(FromInt64(1000, "kg / unit"), "mt / unit")
	assertQuantity(t, out, "1", "mt / unit")
}

func TestConverter_YearAliases(t *testing.T) {
	conv := NewConverter(newFixedState())
	out := conv.Convert(FromInt64(2, "years"), "yr")
	assertQuantity(t, out, "2", "yr")
}

func TestConverter_EnergyIntensity(t *testing.T) {
	state := newFixedState()
	state.energyIntensity = FromInt64(4, "kwh / kg")
	conv := NewConverter(state)

	out := conv.Convert(FromInt64(5, "kg"), "kwh")
	assertQuantity(t, out, "20", "kwh")
}

func TestConverter_KgCo2eScaling(t *testing.T) {
	state := newFixedState()
	state.substanceConsumption = FromInt64(5, "tCO2e / mt")
	conv := NewConverter(state)

	out := conv.Convert(FromInt64(1, "mt"), "kgCO2e")
	assertQuantity(t, out, "5000", "kgCO2e")
}

func TestConverter_UnsupportedUnitPanics(t *testing.T) {
	conv := NewConverter(newFixedState())
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, IsUnsupportedUnitError(err))
	}()
	conv.Convert(FromInt64(1, "widgets"), "kg")
}
