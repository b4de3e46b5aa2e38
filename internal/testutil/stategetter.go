package testutil

import "github.com/roach88/stratosim/internal/units"

// FixedStateGetter implements units.StateGetter with fixed values so
// conversion and state tests run without a live engine behind them.
//
// The zero value answers every fact with a zero quantity in that fact's
// conventional unit. Assign fields to pin specific facts.
type FixedStateGetter struct {
	SubstanceConsumptionValue     units.Quantity
	EnergyIntensityValue          units.Quantity
	AmortizedUnitVolumeValue      units.Quantity
	PopulationValue               units.Quantity
	YearsElapsedValue             units.Quantity
	GhgConsumptionValue           units.Quantity
	EnergyConsumptionValue        units.Quantity
	VolumeValue                   units.Quantity
	PopulationChangeValue         units.Quantity
	AmortizedUnitConsumptionValue units.Quantity
}

// NewFixedStateGetter creates a getter whose every fact is zero in its
// conventional unit.
func NewFixedStateGetter() *FixedStateGetter {
	return &FixedStateGetter{
		SubstanceConsumptionValue:     units.Zero("tCO2e / kg"),
		EnergyIntensityValue:          units.Zero("kwh / kg"),
		AmortizedUnitVolumeValue:      units.Zero("kg / unit"),
		PopulationValue:               units.Zero("units"),
		YearsElapsedValue:             units.FromInt64(1, "year"),
		GhgConsumptionValue:           units.Zero("tCO2e"),
		EnergyConsumptionValue:        units.Zero("kwh"),
		VolumeValue:                   units.Zero("kg"),
		PopulationChangeValue:         units.Zero("units"),
		AmortizedUnitConsumptionValue: units.Zero("tCO2e / unit"),
	}
}

// SubstanceConsumption returns the pinned GHG intensity.
func (f *FixedStateGetter) SubstanceConsumption() units.Quantity {
	return f.SubstanceConsumptionValue
}

// EnergyIntensity returns the pinned energy intensity.
func (f *FixedStateGetter) EnergyIntensity() units.Quantity {
	return f.EnergyIntensityValue
}

// AmortizedUnitVolume returns the pinned initial charge per unit.
func (f *FixedStateGetter) AmortizedUnitVolume() units.Quantity {
	return f.AmortizedUnitVolumeValue
}

// Population returns the pinned equipment population.
func (f *FixedStateGetter) Population() units.Quantity {
	return f.PopulationValue
}

// YearsElapsed returns the pinned elapsed time basis.
func (f *FixedStateGetter) YearsElapsed() units.Quantity {
	return f.YearsElapsedValue
}

// GhgConsumption returns the pinned GHG consumption total.
func (f *FixedStateGetter) GhgConsumption() units.Quantity {
	return f.GhgConsumptionValue
}

// EnergyConsumption returns the pinned energy consumption total.
func (f *FixedStateGetter) EnergyConsumption() units.Quantity {
	return f.EnergyConsumptionValue
}

// Volume returns the pinned substance volume total.
func (f *FixedStateGetter) Volume() units.Quantity {
	return f.VolumeValue
}

// PopulationChange returns the pinned population delta.
func (f *FixedStateGetter) PopulationChange(conv *units.Converter) units.Quantity {
	return f.PopulationChangeValue
}

// AmortizedUnitConsumption returns the pinned consumption per unit.
func (f *FixedStateGetter) AmortizedUnitConsumption() units.Quantity {
	return f.AmortizedUnitConsumptionValue
}
