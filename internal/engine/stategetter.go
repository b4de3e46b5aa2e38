package engine

import (
	"github.com/roach88/stratosim/internal/state"
	"github.com/roach88/stratosim/internal/units"
)

// engineStateGetter adapts live engine state into the contextual facts the
// unit converter needs. Every read resolves against the engine's current
// scope; conversions that need a different scope pin overrides instead.
//
// Reads on an incomplete or unregistered scope return zero quantities so
// that conversions stay total. Commands validate the scope before any
// conversion that depends on it, so a zero here only shows up in contexts
// where the matching total genuinely is zero.
type engineStateGetter struct {
	engine *Engine
}

func newEngineStateGetter(engine *Engine) *engineStateGetter {
	return &engineStateGetter{engine: engine}
}

func (g *engineStateGetter) parameterization() *state.Parameterization {
	p, err := g.engine.store.Parameterization(g.engine.scope)
	if err != nil {
		return nil
	}
	return p
}

func (g *engineStateGetter) stream(name string) (units.Quantity, bool) {
	q, err := g.engine.store.Stream(g.engine.scope, name)
	if err != nil {
		return units.Quantity{}, false
	}
	return q, true
}

// SubstanceConsumption implements units.StateGetter with the scope's GHG
// intensity.
func (g *engineStateGetter) SubstanceConsumption() units.Quantity {
	if p := g.parameterization(); p != nil {
		return p.GhgIntensity()
	}
	return units.Zero("tCO2e / kg")
}

// EnergyIntensity implements units.StateGetter with the scope's energy
// intensity.
func (g *engineStateGetter) EnergyIntensity() units.Quantity {
	if p := g.parameterization(); p != nil {
		return p.EnergyIntensity()
	}
	return units.Zero("kwh / kg")
}

// AmortizedUnitVolume implements units.StateGetter with the scope's
// distribution-weighted initial charge.
func (g *engineStateGetter) AmortizedUnitVolume() units.Quantity {
	charge, err := g.engine.InitialCharge(state.StreamSales)
	if err != nil {
		return units.Zero("kg / unit")
	}
	return charge
}

// Population implements units.StateGetter with the equipment population.
func (g *engineStateGetter) Population() units.Quantity {
	if q, ok := g.stream(state.StreamEquipment); ok {
		return q
	}
	return units.Zero("units")
}

// YearsElapsed implements units.StateGetter. Commands apply to exactly one
// simulated year, so per-year rates resolve against a single year.
func (g *engineStateGetter) YearsElapsed() units.Quantity {
	return units.FromInt64(1, "year")
}

// GhgConsumption implements units.StateGetter with the consumption stream.
func (g *engineStateGetter) GhgConsumption() units.Quantity {
	if q, ok := g.stream(state.StreamConsumption); ok {
		return q
	}
	return units.Zero("tCO2e")
}

// EnergyConsumption implements units.StateGetter: the equipment population
// run through the scope's energy intensity.
func (g *engineStateGetter) EnergyConsumption() units.Quantity {
	p := g.parameterization()
	if p == nil || p.EnergyIntensity().IsZero() {
		return units.Zero("kwh")
	}
	population, ok := g.stream(state.StreamEquipment)
	if !ok || population.IsZero() {
		return units.Zero("kwh")
	}

	overriding := units.NewOverriding(g)
	overriding.SetEnergyIntensity(p.EnergyIntensity())
	conv := units.NewConverter(overriding)
	return conv.Convert(population, "kwh")
}

// Volume implements units.StateGetter with total sales.
func (g *engineStateGetter) Volume() units.Quantity {
	if q, ok := g.stream(state.StreamSales); ok {
		return q
	}
	return units.Zero("kg")
}

// PopulationChange implements units.StateGetter: equipment minus prior
// equipment in units.
func (g *engineStateGetter) PopulationChange(conv *units.Converter) units.Quantity {
	current, ok := g.stream(state.StreamEquipment)
	if !ok {
		return units.Zero("units")
	}
	prior, ok := g.stream(state.StreamPriorEquipment)
	if !ok {
		return units.Zero("units")
	}

	currentUnits := conv.Convert(current, "units")
	priorUnits := conv.Convert(prior, "units")
	return units.New(units.Sub(currentUnits.Value(), priorUnits.Value()), "units")
}

// AmortizedUnitConsumption implements units.StateGetter: GHG consumption
// spread across the equipment population.
func (g *engineStateGetter) AmortizedUnitConsumption() units.Quantity {
	consumption := g.GhgConsumption()
	population := g.Population()
	return units.New(
		units.DivOrZero(consumption.Value(), population.Value()),
		"tCO2e / unit",
	)
}
