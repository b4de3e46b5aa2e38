package report

import (
	"strings"

	"github.com/roach88/stratosim/internal/engine"
	"github.com/roach88/stratosim/internal/state"
	"github.com/roach88/stratosim/internal/units"
)

// Serializer reads result snapshots out of an engine. The engine is only
// read; the caller must have positioned its scope at the key being
// serialized so contextual conversions resolve against the right
// parameterization.
type Serializer struct {
	engine *engine.Engine
	getter units.StateGetter
}

// NewSerializer creates a serializer over the engine's live conversion
// context.
func NewSerializer(e *engine.Engine) *Serializer {
	return &Serializer{engine: e, getter: e.StateGetter()}
}

// Result serializes the state of one application and substance for the
// given year.
func (s *Serializer) Result(key state.UseKey, year int) (Result, error) {
	r := Result{
		ScenarioName: s.engine.ScenarioName(),
		TrialNumber:  s.engine.TrialNumber(),
		Year:         year,
		Application:  key.Application(),
		Substance:    key.Substance(),
	}

	if err := s.fillMainBody(&r, key); err != nil {
		return Result{}, err
	}
	if err := s.fillTradeSupplement(&r, key); err != nil {
		return Result{}, err
	}
	return r, nil
}

func (s *Serializer) fillMainBody(r *Result, key state.UseKey) error {
	over := units.NewOverriding(s.getter)
	conv := units.NewConverter(over)

	p, err := s.engine.Store().Parameterization(key)
	if err != nil {
		return err
	}

	recycle, err := s.engine.StreamFor(key, state.StreamRecycle)
	if err != nil {
		return err
	}
	r.Recycle = conv.Convert(recycle, "kg")

	population, err := s.engine.StreamFor(key, state.StreamEquipment)
	if err != nil {
		return err
	}
	r.Population = population
	r.EnergyConsumption = s.energyConsumption(population, p.EnergyIntensity())

	populationNew, err := s.engine.StreamFor(key, state.StreamNewEquipment)
	if err != nil {
		return err
	}
	r.PopulationNew = populationNew

	eol, err := s.engine.StreamFor(key, state.StreamEolEmissions)
	if err != nil {
		return err
	}
	r.EolEmissions = eol

	initialCharge, err := s.initialChargeEmissions(key, p)
	if err != nil {
		return err
	}
	r.InitialChargeEmissions = initialCharge

	domestic, err := s.streamInKg(key, state.StreamDomestic, conv)
	if err != nil {
		return err
	}
	imported, err := s.streamInKg(key, state.StreamImport, conv)
	if err != nil {
		return err
	}
	exported, err := s.streamInKg(key, state.StreamExport, conv)
	if err != nil {
		return err
	}
	r.Domestic = domestic
	r.Import = imported
	r.Export = exported

	perVolume := s.consumptionByVolume(p, conv)
	r.DomesticConsumption = consumptionForVolume(domestic, perVolume, over, conv)
	r.ImportConsumption = consumptionForVolume(imported, perVolume, over, conv)
	r.ExportConsumption = consumptionForVolume(exported, perVolume, over, conv)
	r.RecycleConsumption = consumptionForVolume(r.Recycle, perVolume, over, conv)

	// Servicing emissions already counted against recycled material would
	// double-count, so the recycled share offsets the recharge total.
	recharge, err := s.engine.StreamFor(key, state.StreamRechargeEmissions)
	if err != nil {
		return err
	}
	cleanConv := units.NewConverter(units.NewOverriding(s.getter))
	rechargeTco2e := cleanConv.Convert(recharge, "tCO2e")
	r.RechargeEmissions = units.New(
		units.Sub(rechargeTco2e.Value(), r.RecycleConsumption.Value()),
		"tCO2e",
	)
	return nil
}

// energyConsumption converts the equipment population into kwh through the
// scope's energy intensity.
func (s *Serializer) energyConsumption(population, intensity units.Quantity) units.Quantity {
	if population.IsZero() || intensity.IsZero() {
		return units.Zero("kwh")
	}
	over := units.NewOverriding(s.getter)
	over.SetEnergyIntensity(intensity)
	conv := units.NewConverter(over)
	return conv.Convert(population, "kwh")
}

// consumptionByVolume returns the GHG intensity as a per-mass rate,
// converting per-unit factors through the current context.
func (s *Serializer) consumptionByVolume(p *state.Parameterization, conv *units.Converter) units.Quantity {
	intensity := p.GhgIntensity()
	unit := intensity.Unit()
	if strings.HasSuffix(unit, "kg") || strings.HasSuffix(unit, "mt") {
		return intensity
	}
	return conv.Convert(intensity, "tCO2e / kg")
}

// consumptionForVolume applies a per-mass consumption rate to one volume.
func consumptionForVolume(volume, perVolume units.Quantity, over *units.Overriding, conv *units.Converter) units.Quantity {
	if volume.IsZero() {
		return units.Zero("tCO2e")
	}
	over.SetVolume(volume)
	defer over.ClearVolume()
	return conv.Convert(perVolume, "tCO2e")
}

// initialChargeEmissions computes the emissions embodied in this year's
// newly charged equipment: per-unit factors multiply the new population,
// per-mass factors apply to total sales net of servicing demand.
func (s *Serializer) initialChargeEmissions(key state.UseKey, p *state.Parameterization) (units.Quantity, error) {
	intensity := p.GhgIntensity()

	if isPerUnit(intensity.Unit()) {
		newPopulation, err := s.engine.StreamFor(key, state.StreamNewEquipment)
		if err != nil {
			return units.Quantity{}, err
		}
		over := units.NewOverriding(s.getter)
		over.SetSubstanceConsumption(intensity)
		inUnits := units.NewConverter(over).Convert(newPopulation, "units")

		emissionsOver := units.NewOverriding(s.getter)
		emissionsOver.SetPopulation(inUnits)
		emissionsOver.SetSubstanceConsumption(intensity)
		emissions := units.NewConverter(emissionsOver).Convert(intensity, "tCO2e")
		return emissions, nil
	}

	over := units.NewOverriding(s.getter)
	over.SetSubstanceConsumption(intensity)
	conv := units.NewConverter(over)

	var totalKg = units.MustDecimal("0")
	for _, name := range []string{state.StreamDomestic, state.StreamImport, state.StreamExport} {
		q, err := s.streamInKg(key, name, conv)
		if err != nil {
			return units.Quantity{}, err
		}
		totalKg = units.Add(totalKg, q.Value())
	}

	recharge, err := s.engine.StreamFor(key, state.StreamRechargeEmissions)
	if err != nil {
		return units.Quantity{}, err
	}
	rechargeKg := conv.Convert(recharge, "kg")

	volume := units.Sub(totalKg, rechargeKg.Value())
	if volume.Sign() < 0 {
		volume.SetInt64(0)
	}

	emissionsOver := units.NewOverriding(s.getter)
	emissionsOver.SetVolume(units.New(volume, "kg"))
	emissionsOver.SetSubstanceConsumption(intensity)
	emissions := units.NewConverter(emissionsOver).Convert(intensity, "tCO2e")
	return emissions, nil
}

// fillTradeSupplement computes import attribution: the import volume net
// of its share of virgin servicing demand, and that net volume's
// consumption and population equivalents.
func (s *Serializer) fillTradeSupplement(r *Result, key state.UseKey) error {
	p, err := s.engine.Store().Parameterization(key)
	if err != nil {
		return err
	}
	intensity := p.GhgIntensity()

	zeroSupplement := TradeSupplement{
		ImportInitialChargeValue:       units.Zero("kg"),
		ImportInitialChargeConsumption: units.Zero("tCO2e"),
		ImportPopulation:               units.Zero("units"),
		ExportInitialChargeValue:       units.Zero("kg"),
		ExportInitialChargeConsumption: units.Zero("tCO2e"),
	}

	if isPerUnit(intensity.Unit()) {
		r.TradeSupplement = zeroSupplement
		return nil
	}

	over := units.NewOverriding(s.getter)
	conv := units.NewConverter(over)
	over.SetSubstanceConsumption(intensity)

	importCharge, err := p.InitialCharge(state.StreamImport)
	if err != nil {
		return err
	}
	over.SetAmortizedUnitVolume(importCharge)

	importedKg, err := s.streamInKg(key, state.StreamImport, conv)
	if err != nil {
		return err
	}
	domesticKg, err := s.streamInKg(key, state.StreamDomestic, conv)
	if err != nil {
		return err
	}

	totalKg := units.Add(importedKg.Value(), domesticKg.Value())
	proportionImport := units.DivOrZero(importedKg.Value(), totalKg)

	recharge, err := s.engine.StreamFor(key, state.StreamRechargeEmissions)
	if err != nil {
		return err
	}
	rechargeKg := conv.Convert(recharge, "kg")

	recycleRecharge, err := s.engine.StreamFor(key, state.StreamRecycleRecharge)
	if err != nil {
		return err
	}
	recycleRechargeKg := conv.Convert(recycleRecharge, "kg")

	virginRechargeKg := units.Sub(rechargeKg.Value(), recycleRechargeKg.Value())
	if virginRechargeKg.Sign() < 0 {
		virginRechargeKg.SetInt64(0)
	}

	importRechargeKg := units.Mul(proportionImport, virginRechargeKg)
	netImport := units.New(
		units.Sub(importedKg.Value(), importRechargeKg),
		"kg",
	)

	r.TradeSupplement = TradeSupplement{
		ImportInitialChargeValue:       netImport,
		ImportInitialChargeConsumption: conv.Convert(netImport, "tCO2e"),
		ImportPopulation:               conv.Convert(netImport, "units"),
		ExportInitialChargeValue:       units.Zero("kg"),
		ExportInitialChargeConsumption: units.Zero("tCO2e"),
	}
	return nil
}

// streamInKg reads a stream and normalizes it to kilograms.
func (s *Serializer) streamInKg(key state.UseKey, name string, conv *units.Converter) (units.Quantity, error) {
	q, err := s.engine.StreamFor(key, name)
	if err != nil {
		return units.Quantity{}, err
	}
	return conv.Convert(q, "kg"), nil
}

// isPerUnit reports whether an intensity unit is an equipment-based factor
// such as "tCO2e / unit".
func isPerUnit(unit string) bool {
	compact := strings.ReplaceAll(unit, " ", "")
	pieces := strings.Split(compact, "/")
	if len(pieces) < 2 {
		return false
	}
	return pieces[1] == "unit" || pieces[1] == "units"
}
