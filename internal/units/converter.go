package units

import (
	"github.com/cockroachdb/apd/v3"
)

// Converter translates quantities between unit families using contextual
// facts from a StateGetter.
//
// Conversions with no defined rule panic with an *Error carrying
// ErrCodeUnsupportedUnit: reaching one means a command was routed with units
// that the dispatcher should have rejected.
type Converter struct {
	state StateGetter
}

// NewConverter creates a converter reading context from state.
func NewConverter(state StateGetter) *Converter {
	return &Converter{state: state}
}

// scaleMap holds direct numeric factors between denominator aliases, used
// when a denominator total is zero but the two denominators are plain
// rescalings of each other.
var scaleMap = map[string]map[string]*apd.Decimal{
	"kg":    {"mt": decThousand},
	"mt":    {"kg": MustDecimal("0.001")},
	"unit":  {"units": decOne},
	"units": {"unit": decOne},
	"year":  {"years": decOne, "yr": decOne, "yrs": decOne},
	"years": {"year": decOne},
	"yr":    {"year": decOne, "years": decOne, "yrs": decOne},
	"yrs":   {"year": decOne, "years": decOne, "yr": decOne},
}

func isYearsUnit(unit string) bool {
	switch unit {
	case "year", "years", "yr", "yrs":
		return true
	}
	return false
}

func endsWithPerYear(normalized string) bool {
	den := denominatorOf(normalized)
	return den == "year" || den == "yr" || den == "yrs"
}

// Convert returns source expressed in destUnit. Same-unit conversions return
// the source untouched (preserving original text); zero values short-circuit
// to zero in the destination unit.
func (c *Converter) Convert(source Quantity, destUnit string) Quantity {
	if source.Unit() == destUnit {
		return source
	}
	if source.IsZero() {
		return Zero(destUnit)
	}

	normSource := normalizeUnit(source.Unit())
	normDest := normalizeUnit(destUnit)

	sourceDen := denominatorOf(normSource)
	destNum := numeratorOf(normDest)
	destDen := denominatorOf(normDest)

	// Same denominator on both sides: convert the numerator only.
	if sourceDen != "" && sourceDen == destDen {
		effective := New(source.Value(), numeratorOf(normSource))
		converted := c.convertNumerator(effective, destNum)
		return New(converted.Value(), destUnit)
	}

	numerator := c.convertNumerator(source, destNum)
	denominator := c.convertDenominator(destDen)
	if denominator.IsZero() {
		if factor := inferScale(sourceDen, destDen); factor != nil {
			return New(divDec(numerator.Value(), factor), destUnit)
		}
		// No reference total available: treat the intensity as empty.
		return Zero(destUnit)
	}
	return New(divDec(numerator.Value(), denominator.Value()), destUnit)
}

func inferScale(source, dest string) *apd.Decimal {
	if m, ok := scaleMap[source]; ok {
		return m[dest]
	}
	return nil
}

func (c *Converter) convertNumerator(input Quantity, destUnits string) Quantity {
	switch destUnits {
	case "kg":
		return c.toKg(input)
	case "mt":
		return c.toMt(input)
	case "unit", "units":
		return c.toUnits(input)
	case "tCO2e":
		return c.toTonnesCo2e(input)
	case "kgCO2e":
		return c.toKgCo2e(input)
	case "kwh":
		return c.toEnergy(input)
	case "year", "years", "yr", "yrs":
		return c.toYears(input)
	case "%":
		return c.toPercent(input)
	}
	panic(&Error{
		Code:    ErrCodeUnsupportedUnit,
		Message: "unsupported destination numerator units",
		Input:   destUnits,
	})
}

func (c *Converter) convertDenominator(destUnits string) Quantity {
	switch destUnits {
	case "kg":
		return c.Convert(c.state.Volume(), "kg")
	case "mt":
		return c.Convert(c.state.Volume(), "mt")
	case "unit", "units":
		return c.Convert(c.state.Population(), destUnits)
	case "tCO2e":
		return c.Convert(c.state.GhgConsumption(), "tCO2e")
	case "kgCO2e":
		return c.Convert(c.state.GhgConsumption(), "kgCO2e")
	case "kwh":
		return c.Convert(c.state.EnergyConsumption(), "kwh")
	case "year", "years", "yr", "yrs":
		return c.Convert(c.state.YearsElapsed(), destUnits)
	case "":
		return FromInt64(1, "")
	}
	panic(&Error{
		Code:    ErrCodeUnsupportedUnit,
		Message: "unsupported destination denominator units",
		Input:   destUnits,
	})
}

func (c *Converter) toKg(target Quantity) Quantity {
	asVolume := c.toVolume(target)
	switch asVolume.Unit() {
	case "mt":
		return New(mulDec(asVolume.Value(), decThousand), "kg")
	case "kg":
		return New(asVolume.Value(), "kg")
	}
	panic(&Error{Code: ErrCodeUnsupportedUnit, Message: "unexpected volume units", Input: asVolume.Unit()})
}

func (c *Converter) toMt(target Quantity) Quantity {
	asVolume := c.toVolume(target)
	switch asVolume.Unit() {
	case "kg":
		return New(divDec(asVolume.Value(), decThousand), "mt")
	case "mt":
		return New(asVolume.Value(), "mt")
	}
	panic(&Error{Code: ErrCodeUnsupportedUnit, Message: "unexpected volume units", Input: asVolume.Unit()})
}

// toVolume expresses the target as a bare mass quantity (kg or mt).
func (c *Converter) toVolume(target Quantity) Quantity {
	target = c.normalize(target)
	switch target.Unit() {
	case "kg", "mt":
		return target
	case "tCO2e":
		conversion := c.state.SubstanceConsumption()
		normConv := normalizeUnit(conversion.Unit())
		convNumerator := New(conversion.Value(), numeratorOf(normConv))
		inTco2e := c.Convert(convNumerator, "tCO2e")
		return New(divOrZero(target.Value(), inTco2e.Value()), denominatorOf(normConv))
	case "kgCO2e":
		return c.toVolume(New(divDec(target.Value(), decThousand), "tCO2e"))
	case "unit", "units":
		conversion := c.state.AmortizedUnitVolume()
		normConv := normalizeUnit(conversion.Unit())
		return New(mulDec(target.Value(), conversion.Value()), numeratorOf(normConv))
	case "%":
		ratio := divDec(target.Value(), decHundred)
		total := c.state.Volume()
		return New(mulDec(total.Value(), ratio), total.Unit())
	}
	panic(&Error{Code: ErrCodeUnsupportedUnit, Message: "unable to convert to volume", Input: target.Unit()})
}

// toUnits expresses the target as an equipment population count.
func (c *Converter) toUnits(target Quantity) Quantity {
	target = c.normalize(target)
	switch target.Unit() {
	case "units":
		return target
	case "unit":
		return New(target.Value(), "units")
	case "kg", "mt":
		conversion := c.state.AmortizedUnitVolume()
		normConv := normalizeUnit(conversion.Unit())
		converted := c.Convert(target, numeratorOf(normConv))
		return New(divOrZero(converted.Value(), conversion.Value()), "units")
	case "tCO2e":
		conversion := c.state.AmortizedUnitConsumption()
		normConv := normalizeUnit(conversion.Unit())
		convNumerator := New(conversion.Value(), numeratorOf(normConv))
		inTco2e := c.Convert(convNumerator, "tCO2e")
		return New(divOrZero(target.Value(), inTco2e.Value()), "units")
	case "kgCO2e":
		return c.toUnits(New(divDec(target.Value(), decThousand), "tCO2e"))
	case "%":
		ratio := divDec(target.Value(), decHundred)
		total := c.state.Population()
		return New(mulDec(total.Value(), ratio), "units")
	}
	panic(&Error{Code: ErrCodeUnsupportedUnit, Message: "unable to convert to population", Input: target.Unit()})
}

// toTonnesCo2e expresses the target as GHG consumption in tCO2e.
func (c *Converter) toTonnesCo2e(target Quantity) Quantity {
	target = c.normalize(target)
	switch unit := target.Unit(); unit {
	case "tCO2e":
		return target
	case "kgCO2e":
		return New(divDec(target.Value(), decThousand), "tCO2e")
	case "kg", "mt", "unit", "units":
		conversion := c.state.SubstanceConsumption()
		normConv := normalizeUnit(conversion.Unit())
		newUnits := numeratorOf(normConv)
		expected := denominatorOf(normConv)
		if isPerUnit(expected) {
			return c.emissionsPerUnit(target, conversion, newUnits, false)
		}
		return c.emissionsPerVolume(target, conversion, newUnits, expected, false)
	case "%":
		ratio := divDec(target.Value(), decHundred)
		total := c.state.GhgConsumption()
		return New(mulDec(total.Value(), ratio), "tCO2e")
	}
	panic(&Error{Code: ErrCodeUnsupportedUnit, Message: "unable to convert to consumption", Input: target.Unit()})
}

// toKgCo2e expresses the target as GHG consumption in kgCO2e.
func (c *Converter) toKgCo2e(target Quantity) Quantity {
	target = c.normalize(target)
	switch target.Unit() {
	case "kgCO2e":
		return target
	case "tCO2e":
		return New(mulDec(target.Value(), decThousand), "kgCO2e")
	case "kg", "mt", "unit", "units":
		conversion := c.state.SubstanceConsumption()
		normConv := normalizeUnit(conversion.Unit())
		newUnits := numeratorOf(normConv)
		expected := denominatorOf(normConv)
		if isPerUnit(expected) {
			return c.emissionsPerUnit(target, conversion, newUnits, true)
		}
		return c.emissionsPerVolume(target, conversion, newUnits, expected, true)
	case "%":
		ratio := divDec(target.Value(), decHundred)
		total := c.state.GhgConsumption()
		kgTotal := mulDec(total.Value(), decThousand)
		return New(mulDec(kgTotal, ratio), "kgCO2e")
	}
	panic(&Error{Code: ErrCodeUnsupportedUnit, Message: "unable to convert to kgCO2e consumption", Input: target.Unit()})
}

// toEnergy expresses the target as energy consumption in kwh.
func (c *Converter) toEnergy(target Quantity) Quantity {
	target = c.normalize(target)
	switch target.Unit() {
	case "kwh":
		return target
	case "kg", "mt", "unit", "units":
		conversion := c.state.EnergyIntensity()
		normConv := normalizeUnit(conversion.Unit())
		newUnits := numeratorOf(normConv)
		expected := denominatorOf(normConv)
		converted := c.Convert(target, expected)
		if newUnits != "kwh" {
			panic(&Error{Code: ErrCodeUnsupportedUnit, Message: "unexpected energy units", Input: newUnits})
		}
		return New(mulDec(converted.Value(), conversion.Value()), newUnits)
	case "%":
		ratio := divDec(target.Value(), decHundred)
		total := c.state.EnergyConsumption()
		return New(mulDec(total.Value(), ratio), "kwh")
	}
	panic(&Error{Code: ErrCodeUnsupportedUnit, Message: "unable to convert to energy consumption", Input: target.Unit()})
}

// toYears expresses the target as a duration given per-year totals.
func (c *Converter) toYears(target Quantity) Quantity {
	target = c.normalize(target)
	switch unit := target.Unit(); {
	case unit == "years":
		return target
	case isYearsUnit(unit):
		return New(target.Value(), "years")
	case unit == "tCO2e":
		perYear := c.state.GhgConsumption()
		return New(divOrZero(target.Value(), perYear.Value()), "years")
	case unit == "kgCO2e":
		tco2e := divDec(target.Value(), decThousand)
		perYear := c.state.GhgConsumption()
		return New(divOrZero(tco2e, perYear.Value()), "years")
	case unit == "kwh":
		perYear := c.state.EnergyConsumption()
		return New(divOrZero(target.Value(), perYear.Value()), "years")
	case unit == "kg" || unit == "mt":
		perYear := c.state.Volume()
		converted := c.Convert(target, perYear.Unit())
		return New(divOrZero(converted.Value(), perYear.Value()), "years")
	case unit == "unit" || unit == "units":
		perYear := c.state.PopulationChange(c)
		return New(divOrZero(target.Value(), perYear.Value()), "years")
	case unit == "%":
		ratio := divDec(target.Value(), decHundred)
		total := c.state.YearsElapsed()
		return New(mulDec(total.Value(), ratio), "years")
	}
	panic(&Error{Code: ErrCodeUnsupportedUnit, Message: "unable to convert to years", Input: target.Unit()})
}

// toPercent expresses the target as a percentage of the matching total.
func (c *Converter) toPercent(target Quantity) Quantity {
	target = c.normalize(target)
	unit := target.Unit()

	var total Quantity
	switch {
	case unit == "%":
		return target
	case isYearsUnit(unit):
		total = c.state.YearsElapsed()
	case unit == "tCO2e":
		total = c.state.GhgConsumption()
	case unit == "kgCO2e":
		tco2e := c.state.GhgConsumption()
		total = New(mulDec(tco2e.Value(), decThousand), "kgCO2e")
	case unit == "kg" || unit == "mt":
		total = c.Convert(c.state.Volume(), unit)
	case unit == "unit" || unit == "units":
		total = c.state.Population()
	default:
		panic(&Error{Code: ErrCodeUnsupportedUnit, Message: "unable to convert to %", Input: unit})
	}

	percent := mulDec(divOrZero(target.Value(), total.Value()), decHundred)
	return New(percent, "%")
}

// normalize removes compound denominators by multiplying through the
// matching contextual total, leaving a bare numerator unit.
func (c *Converter) normalize(target Quantity) Quantity {
	target = c.normPerUnit(target)
	target = c.normPerYear(target)
	target = c.normPerConsumption(target)
	target = c.normPerVolume(target)
	return target
}

// normPerUnit resolves "X / unit" by multiplying by the population total.
func (c *Converter) normPerUnit(target Quantity) Quantity {
	norm := normalizeUnit(target.Unit())
	den := denominatorOf(norm)
	if den != "unit" && den != "units" {
		return target
	}
	population := c.state.Population()
	return New(mulDec(target.Value(), population.Value()), numeratorOf(norm))
}

// normPerYear resolves "X / year" by multiplying by years elapsed.
func (c *Converter) normPerYear(target Quantity) Quantity {
	norm := normalizeUnit(target.Unit())
	if !endsWithPerYear(norm) {
		return target
	}
	years := c.state.YearsElapsed()
	return New(mulDec(target.Value(), years.Value()), numeratorOf(norm))
}

// normPerConsumption resolves "X / tCO2e", "X / kgCO2e", and "X / kwh" by
// multiplying by the matching consumption total.
func (c *Converter) normPerConsumption(target Quantity) Quantity {
	norm := normalizeUnit(target.Unit())
	var total Quantity
	switch denominatorOf(norm) {
	case "tCO2e":
		total = c.state.GhgConsumption()
	case "kgCO2e":
		tco2e := c.state.GhgConsumption()
		total = New(mulDec(tco2e.Value(), decThousand), "kgCO2e")
	case "kwh":
		total = c.state.EnergyConsumption()
	default:
		return target
	}
	return New(mulDec(target.Value(), total.Value()), numeratorOf(norm))
}

// normPerVolume resolves "X / kg" and "X / mt" by multiplying by the volume
// total converted to the denominator unit.
func (c *Converter) normPerVolume(target Quantity) Quantity {
	norm := normalizeUnit(target.Unit())
	den := denominatorOf(norm)
	if den != "kg" && den != "mt" {
		return target
	}
	volume := c.Convert(c.state.Volume(), den)
	return New(mulDec(target.Value(), volume.Value()), numeratorOf(norm))
}

func isPerUnit(unit string) bool {
	return unit == "unit" || unit == "units"
}

// emissionsPerUnit applies a per-unit intensity (e.g. "tCO2e / unit"): mass
// targets are first amortized into a population count.
func (c *Converter) emissionsPerUnit(target, conversion Quantity, newUnits string, kgOutput bool) Quantity {
	var population *apd.Decimal
	if isPerUnit(target.Unit()) {
		population = target.Value()
	} else {
		perUnit := c.state.AmortizedUnitVolume()
		population = divOrZero(target.Value(), perUnit.Value())
	}

	emissions := mulDec(population, conversion.Value())
	switch {
	case kgOutput && newUnits == "kgCO2e":
		return New(emissions, "kgCO2e")
	case kgOutput && newUnits == "tCO2e":
		return New(mulDec(emissions, decThousand), "kgCO2e")
	case !kgOutput && newUnits == "tCO2e":
		return New(emissions, "tCO2e")
	case !kgOutput && newUnits == "kgCO2e":
		return New(divDec(emissions, decThousand), "tCO2e")
	}
	panic(&Error{Code: ErrCodeUnsupportedUnit, Message: "unsupported per-unit emissions type", Input: newUnits})
}

// emissionsPerVolume applies a per-mass intensity (e.g. "tCO2e / mt"): the
// target is converted into the intensity's denominator unit first.
func (c *Converter) emissionsPerVolume(target, conversion Quantity, newUnits, expectedUnits string, kgOutput bool) Quantity {
	converted := c.Convert(target, expectedUnits)
	emissions := mulDec(converted.Value(), conversion.Value())
	switch {
	case kgOutput && newUnits == "kgCO2e":
		return New(emissions, "kgCO2e")
	case kgOutput && newUnits == "tCO2e":
		return New(mulDec(emissions, decThousand), "kgCO2e")
	case !kgOutput && newUnits == "tCO2e":
		return New(emissions, "tCO2e")
	case !kgOutput && newUnits == "kgCO2e":
		return New(divDec(emissions, decThousand), "tCO2e")
	}
	panic(&Error{Code: ErrCodeUnsupportedUnit, Message: "unsupported per-volume emissions type", Input: newUnits})
}
