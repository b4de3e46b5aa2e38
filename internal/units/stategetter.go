package units

// StateGetter supplies the contextual facts a Converter needs to cross unit
// families. The engine provides a live implementation backed by current
// stream state; tests substitute fixed values.
type StateGetter interface {
	// SubstanceConsumption returns the GHG intensity, e.g. "tCO2e / kg" or
	// "tCO2e / unit".
	SubstanceConsumption() Quantity

	// EnergyIntensity returns the energy intensity, e.g. "kwh / kg".
	EnergyIntensity() Quantity

	// AmortizedUnitVolume returns the initial charge per equipment unit,
	// e.g. "kg / unit".
	AmortizedUnitVolume() Quantity

	// Population returns the equipment population total in units.
	Population() Quantity

	// YearsElapsed returns the elapsed time basis for per-year rates.
	YearsElapsed() Quantity

	// GhgConsumption returns the GHG consumption total in tCO2e.
	GhgConsumption() Quantity

	// EnergyConsumption returns the energy consumption total in kwh.
	EnergyConsumption() Quantity

	// Volume returns the substance volume total, typically sales in kg.
	Volume() Quantity

	// PopulationChange returns the delta between current and prior
	// equipment population in units.
	PopulationChange(conv *Converter) Quantity

	// AmortizedUnitConsumption returns GHG consumption per equipment unit.
	AmortizedUnitConsumption() Quantity
}

// Overriding wraps a StateGetter and lets the caller pin individual facts
// for the duration of one calculation. Unpinned facts fall through to the
// inner getter. The zero overrides pass everything through.
type Overriding struct {
	inner StateGetter

	substanceConsumption *Quantity
	energyIntensity      *Quantity
	amortizedUnitVolume  *Quantity
	population           *Quantity
	yearsElapsed         *Quantity
	ghgConsumption       *Quantity
	energyConsumption    *Quantity
	volume               *Quantity
}

// NewOverriding creates an overriding wrapper around inner.
func NewOverriding(inner StateGetter) *Overriding {
	return &Overriding{inner: inner}
}

// SetTotal pins the reference total appropriate for the named stream:
// sales-family streams pin the volume total, equipment streams the
// population total, consumption streams the GHG total.
func (o *Overriding) SetTotal(streamName string, value Quantity) {
	switch streamName {
	case "sales", "domestic", "import", "export", "recycle":
		o.SetVolume(value)
	case "equipment", "priorEquipment", "newEquipment", "retired":
		o.SetPopulation(value)
	case "consumption":
		o.SetGhgConsumption(value)
	case "energy":
		o.SetEnergyConsumption(value)
	}
}

// SetSubstanceConsumption pins the GHG intensity.
func (o *Overriding) SetSubstanceConsumption(q Quantity) { o.substanceConsumption = &q }

// ClearSubstanceConsumption removes the GHG intensity override.
func (o *Overriding) ClearSubstanceConsumption() { o.substanceConsumption = nil }

// SetEnergyIntensity pins the energy intensity.
func (o *Overriding) SetEnergyIntensity(q Quantity) { o.energyIntensity = &q }

// ClearEnergyIntensity removes the energy intensity override.
func (o *Overriding) ClearEnergyIntensity() { o.energyIntensity = nil }

// SetAmortizedUnitVolume pins the initial charge per unit.
func (o *Overriding) SetAmortizedUnitVolume(q Quantity) { o.amortizedUnitVolume = &q }

// ClearAmortizedUnitVolume removes the initial charge override.
func (o *Overriding) ClearAmortizedUnitVolume() { o.amortizedUnitVolume = nil }

// SetPopulation pins the population total.
func (o *Overriding) SetPopulation(q Quantity) { o.population = &q }

// ClearPopulation removes the population override.
func (o *Overriding) ClearPopulation() { o.population = nil }

// SetYearsElapsed pins the elapsed-time basis.
func (o *Overriding) SetYearsElapsed(q Quantity) { o.yearsElapsed = &q }

// ClearYearsElapsed removes the elapsed-time override.
func (o *Overriding) ClearYearsElapsed() { o.yearsElapsed = nil }

// SetGhgConsumption pins the GHG consumption total.
func (o *Overriding) SetGhgConsumption(q Quantity) { o.ghgConsumption = &q }

// ClearGhgConsumption removes the GHG consumption override.
func (o *Overriding) ClearGhgConsumption() { o.ghgConsumption = nil }

// SetEnergyConsumption pins the energy consumption total.
func (o *Overriding) SetEnergyConsumption(q Quantity) { o.energyConsumption = &q }

// ClearEnergyConsumption removes the energy consumption override.
func (o *Overriding) ClearEnergyConsumption() { o.energyConsumption = nil }

// SetVolume pins the volume total.
func (o *Overriding) SetVolume(q Quantity) { o.volume = &q }

// ClearVolume removes the volume override.
func (o *Overriding) ClearVolume() { o.volume = nil }

// SubstanceConsumption implements StateGetter.
func (o *Overriding) SubstanceConsumption() Quantity {
	if o.substanceConsumption != nil {
		return *o.substanceConsumption
	}
	return o.inner.SubstanceConsumption()
}

// EnergyIntensity implements StateGetter.
func (o *Overriding) EnergyIntensity() Quantity {
	if o.energyIntensity != nil {
		return *o.energyIntensity
	}
	return o.inner.EnergyIntensity()
}

// AmortizedUnitVolume implements StateGetter.
func (o *Overriding) AmortizedUnitVolume() Quantity {
	if o.amortizedUnitVolume != nil {
		return *o.amortizedUnitVolume
	}
	return o.inner.AmortizedUnitVolume()
}

// Population implements StateGetter.
func (o *Overriding) Population() Quantity {
	if o.population != nil {
		return *o.population
	}
	return o.inner.Population()
}

// YearsElapsed implements StateGetter.
func (o *Overriding) YearsElapsed() Quantity {
	if o.yearsElapsed != nil {
		return *o.yearsElapsed
	}
	return o.inner.YearsElapsed()
}

// GhgConsumption implements StateGetter.
func (o *Overriding) GhgConsumption() Quantity {
	if o.ghgConsumption != nil {
		return *o.ghgConsumption
	}
	return o.inner.GhgConsumption()
}

// EnergyConsumption implements StateGetter.
func (o *Overriding) EnergyConsumption() Quantity {
	if o.energyConsumption != nil {
		return *o.energyConsumption
	}
	return o.inner.EnergyConsumption()
}

// Volume implements StateGetter.
func (o *Overriding) Volume() Quantity {
	if o.volume != nil {
		return *o.volume
	}
	return o.inner.Volume()
}

// PopulationChange implements StateGetter. Overrides of population do not
// redefine the change; deltas always come from the inner getter.
func (o *Overriding) PopulationChange(conv *Converter) Quantity {
	return o.inner.PopulationChange(conv)
}

// AmortizedUnitConsumption implements StateGetter.
func (o *Overriding) AmortizedUnitConsumption() Quantity {
	return o.inner.AmortizedUnitConsumption()
}
