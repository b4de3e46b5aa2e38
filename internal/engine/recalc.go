package engine

import (
	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/stratosim/internal/state"
	"github.com/roach88/stratosim/internal/units"
)

// requireScope verifies a recalculation key names a full scope.
func requireScope(key state.UseKey, action string) error {
	if key.Application() == "" || key.Substance() == "" {
		return missingScopeError(action)
	}
	return nil
}

// recalcSales rebuilds the sales streams from first principles: servicing
// demand for the existing fleet, manufacturing demand for population
// growth, recycling recovered at each stage, and the induction policy that
// decides whether recycled material adds to or displaces virgin supply.
func (e *Engine) recalcSales(key state.UseKey) error {
	if err := requireScope(key, "recalculate sales"); err != nil {
		return err
	}
	p, err := e.store.Parameterization(key)
	if err != nil {
		return err
	}

	overriding := units.NewOverriding(e.getter)
	conv := units.NewConverter(overriding)

	base, err := e.captureRechargeBase(key, p)
	if err != nil {
		return err
	}

	// Servicing demand against the once-per-step base population.
	overriding.SetPopulation(base)
	rechargePopulation := conv.Convert(p.RechargePopulation(), "units")
	overriding.SetPopulation(rechargePopulation)
	rechargeKg := conv.Convert(p.RechargeIntensity(), "kg")
	overriding.ClearPopulation()

	charge, err := e.salesInitialCharge(key)
	if err != nil {
		return err
	}

	// End-of-life refrigerant still in retired units.
	retired, err := e.store.Stream(key, state.StreamRetired)
	if err != nil {
		return err
	}
	retiredUnits := e.conv.Convert(retired, "units")
	eolKg := units.New(units.Mul(retiredUnits.Value(), charge.Value()), "kg")

	eolRecycled := recoveredForStage(overriding, conv, p, eolKg, state.StageEol)
	rechargeRecycled := recoveredForStage(overriding, conv, p, rechargeKg, state.StageRecharge)

	// Manufacturing demand for the population delta.
	overriding.SetAmortizedUnitVolume(charge)
	populationChange := e.getter.PopulationChange(conv)
	newEquipmentKg := conv.Convert(populationChange, "kg")
	overriding.ClearAmortizedUnitVolume()

	dist, err := e.store.Distribution(key, false)
	if err != nil {
		return err
	}

	for stream, amount := range map[string]units.Quantity{
		state.StreamRecycleEol:      eolRecycled,
		state.StreamRecycleRecharge: rechargeRecycled,
	} {
		update := state.NewUpdate(key, stream, amount).WithSubtractRecycling(false)
		if err := e.store.Apply(update); err != nil {
			return err
		}
	}
	p.SetRecyclingCalculatedThisStep(true)

	implicit, err := e.store.Stream(key, state.StreamImplicitRecharge)
	if err != nil {
		return err
	}
	implicitKg := e.conv.Convert(implicit, "kg")

	requiredKg := units.Sub(
		units.Add(rechargeKg.Value(), newEquipmentKg.Value()),
		implicitKg.Value(),
	)

	unitBased := hasUnitBasedSalesIntent(p) && implicitKg.Sign() > 0
	totalKg := e.totalSalesRequirement(p, requiredKg, eolRecycled, rechargeRecycled, unitBased)

	return e.writeSalesStreams(key, dist, charge, totalKg, unitBased)
}

// captureRechargeBase returns the base population for this step's
// servicing demand, capturing prior equipment on first use so command
// order within a year cannot change the answer.
func (e *Engine) captureRechargeBase(key state.UseKey, p *state.Parameterization) (units.Quantity, error) {
	if base, ok := p.RechargeBasePopulation(); ok {
		return base, nil
	}
	prior, err := e.store.Stream(key, state.StreamPriorEquipment)
	if err != nil {
		return units.Quantity{}, err
	}
	base := e.conv.Convert(prior, "units")
	p.SetRechargeBasePopulation(base)
	return base, nil
}

// recoveredForStage runs a stage's material through its recovery and yield
// rates, returning the kilograms actually reused.
func recoveredForStage(overriding *units.Overriding, conv *units.Converter, p *state.Parameterization, availableKg units.Quantity, stage state.RecoveryStage) units.Quantity {
	overriding.SetVolume(availableKg)
	recovered := conv.Convert(p.RecoveryRate(stage), "kg")
	overriding.SetVolume(recovered)
	reused := conv.Convert(p.YieldRate(stage), "kg")
	overriding.ClearVolume()
	return reused
}

// totalSalesRequirement folds recycling into the virgin requirement per
// the induction policy. Unit-denominated intents hold total supply fixed,
// so induced recycling adds demand; volume intents hold virgin supply
// fixed, so recycling subtracts unless induced back in.
func (e *Engine) totalSalesRequirement(p *state.Parameterization, requiredKg *apd.Decimal, eolRecycled, rechargeRecycled units.Quantity, unitBased bool) *apd.Decimal {
	eolRatio := inductionRatio(p, state.StageEol, unitBased)
	rechargeRatio := inductionRatio(p, state.StageRecharge, unitBased)

	induced := units.Add(
		units.Mul(eolRecycled.Value(), eolRatio),
		units.Mul(rechargeRecycled.Value(), rechargeRatio),
	)

	if unitBased {
		return units.Add(requiredKg, induced)
	}

	totalRecycled := units.Add(eolRecycled.Value(), rechargeRecycled.Value())
	total := units.Add(units.Sub(requiredKg, totalRecycled), induced)
	if total.Sign() < 0 {
		total.SetInt64(0)
	}
	return total
}

// inductionRatio resolves a stage's induction rate to a fraction. Volume
// intents default to fully induced, unit intents to none, when no rate was
// deliberately chosen.
func inductionRatio(p *state.Parameterization, stage state.RecoveryStage, unitBased bool) *apd.Decimal {
	if !p.HasInductionRateSet(stage) {
		if unitBased {
			return apd.New(0, 0)
		}
		return apd.New(1, 0)
	}
	return units.PercentToRatio(p.InductionRate(stage).Value())
}

// writeSalesStreams distributes the total requirement across the enabled
// substreams. Unit-denominated intents write back in units so the store
// subtracts recycling from virgin supply; volume intents write kilograms
// directly.
func (e *Engine) writeSalesStreams(key state.UseKey, dist state.Distribution, charge units.Quantity, totalKg *apd.Decimal, unitBased bool) error {
	shares := map[string]*apd.Decimal{
		state.StreamDomestic: dist.PercentDomestic(),
		state.StreamImport:   dist.PercentImport(),
	}

	var unitConv *units.Converter
	if unitBased {
		overriding := units.NewOverriding(e.getter)
		overriding.SetAmortizedUnitVolume(charge)
		unitConv = units.NewConverter(overriding)
	}

	for _, stream := range []string{state.StreamDomestic, state.StreamImport} {
		if shares[stream].Sign() <= 0 {
			continue
		}
		shareKg := units.New(units.Mul(totalKg, shares[stream]), "kg")

		var update state.Update
		if unitBased {
			inUnits := unitConv.Convert(shareKg, "units")
			update = state.NewUpdate(key, stream, inUnits).
				WithSubtractRecycling(true).
				WithDistribution(dist)
		} else {
			update = state.NewUpdate(key, stream, shareKg).
				WithSubtractRecycling(false).
				WithDistribution(dist)
		}
		if err := e.store.Apply(update); err != nil {
			return err
		}
	}
	return nil
}

// recalcPopulationChange rebuilds equipment population from sales: the
// mass left after servicing demand, amortized over the initial charge,
// becomes this year's population delta.
func (e *Engine) recalcPopulationChange(key state.UseKey, useExplicitRecharge bool) error {
	if err := requireScope(key, "recalculate population change"); err != nil {
		return err
	}

	prior, err := e.store.Stream(key, state.StreamPriorEquipment)
	if err != nil {
		return err
	}
	priorUnits := e.conv.Convert(prior, "units")

	sales, err := e.store.Stream(key, state.StreamSales)
	if err != nil {
		return err
	}
	salesKg := e.conv.Convert(sales, "kg")

	var rechargeKg units.Quantity
	if useExplicitRecharge {
		rechargeKg, err = e.rechargeVolume(key)
		if err != nil {
			return err
		}
	} else {
		implicit, err := e.store.Stream(key, state.StreamImplicitRecharge)
		if err != nil {
			return err
		}
		rechargeKg = e.conv.Convert(implicit, "kg")
	}

	charge, err := e.salesInitialCharge(key)
	if err != nil {
		return err
	}

	availableKg := units.Sub(salesKg.Value(), rechargeKg.Value())
	deltaUnits := units.DivOrZero(availableKg, charge.Value())

	newUnits := units.Add(priorUnits.Value(), deltaUnits)
	if newUnits.Sign() < 0 {
		newUnits.SetInt64(0)
	}

	equipment := state.NewUpdate(key, state.StreamEquipment, units.New(newUnits, "units")).
		WithSubtractRecycling(false)
	if err := e.store.Apply(equipment); err != nil {
		return err
	}

	// The marginal delta stays unclamped so shrinking fleets report
	// negative additions.
	added := state.NewUpdate(key, state.StreamNewEquipment, units.New(deltaUnits, "units")).
		WithSubtractRecycling(false)
	if err := e.store.Apply(added); err != nil {
		return err
	}

	return e.recalcRechargeEmissions(key)
}

// recalcRetire applies the accumulated retirement rate against the
// once-per-step base population, moving the delta between the population
// streams and refreshing everything retirement feeds.
func (e *Engine) recalcRetire(key state.UseKey) error {
	if err := requireScope(key, "recalculate retirement"); err != nil {
		return err
	}
	p, err := e.store.Parameterization(key)
	if err != nil {
		return err
	}

	current := map[string]units.Quantity{}
	for _, stream := range []string{
		state.StreamPriorEquipment, state.StreamEquipment, state.StreamRetired,
	} {
		q, err := e.store.Stream(key, stream)
		if err != nil {
			return err
		}
		current[stream] = e.conv.Convert(q, "units")
	}

	base, ok := p.RetirementBasePopulation()
	if !ok {
		base = current[state.StreamPriorEquipment]
		p.SetRetirementBasePopulation(base)
	}

	overriding := units.NewOverriding(e.getter)
	conv := units.NewConverter(overriding)
	overriding.SetPopulation(base)
	cumulative := conv.Convert(p.RetirementRate(), "units")
	overriding.ClearPopulation()

	applied := p.AppliedRetirementAmount()
	delta := units.Sub(cumulative.Value(), applied.Value())

	writes := map[string]*apd.Decimal{
		state.StreamPriorEquipment: units.Sub(current[state.StreamPriorEquipment].Value(), delta),
		state.StreamEquipment:      units.Sub(current[state.StreamEquipment].Value(), delta),
		state.StreamRetired:        units.Add(current[state.StreamRetired].Value(), delta),
	}
	for _, stream := range []string{
		state.StreamPriorEquipment, state.StreamEquipment, state.StreamRetired,
	} {
		update := state.NewUpdate(key, stream, units.New(writes[stream], "units")).
			WithSubtractRecycling(false)
		if err := e.store.Apply(update); err != nil {
			return err
		}
	}

	p.SetAppliedRetirementAmount(cumulative)
	p.SetRetireCalculatedThisStep(true)

	if err := e.recalcEolEmissions(key); err != nil {
		return err
	}
	if err := e.recalcPopulationChange(key, true); err != nil {
		return err
	}
	return e.recalcConsumption(key)
}

// recalcEolEmissions rebuilds end-of-life emissions from the units retired
// this year.
func (e *Engine) recalcEolEmissions(key state.UseKey) error {
	if err := requireScope(key, "recalculate eol emissions"); err != nil {
		return err
	}
	p, err := e.store.Parameterization(key)
	if err != nil {
		return err
	}

	retired, err := e.store.Stream(key, state.StreamRetired)
	if err != nil {
		return err
	}
	priorRetired, err := e.store.Stream(key, state.StreamPriorRetired)
	if err != nil {
		return err
	}

	retiredThisYear := units.Sub(
		e.conv.Convert(retired, "units").Value(),
		e.conv.Convert(priorRetired, "units").Value(),
	)

	charge, err := e.salesInitialCharge(key)
	if err != nil {
		return err
	}

	overriding := units.NewOverriding(e.getter)
	overriding.SetSubstanceConsumption(p.GhgIntensity())
	overriding.SetAmortizedUnitVolume(charge)
	conv := units.NewConverter(overriding)

	emissions := conv.Convert(units.New(retiredThisYear, "units"), "tCO2e")
	update := state.NewUpdate(key, state.StreamEolEmissions, emissions).
		WithSubtractRecycling(false)
	return e.store.Apply(update)
}

// recalcConsumption rebuilds GHG consumption from total sales and the
// scope's intensity.
func (e *Engine) recalcConsumption(key state.UseKey) error {
	if err := requireScope(key, "recalculate consumption"); err != nil {
		return err
	}
	p, err := e.store.Parameterization(key)
	if err != nil {
		return err
	}

	sales, err := e.store.Stream(key, state.StreamSales)
	if err != nil {
		return err
	}
	salesKg := e.conv.Convert(sales, "kg")

	consumption := units.Zero("tCO2e")
	if !p.GhgIntensity().IsZero() && !salesKg.IsZero() {
		charge, err := e.salesInitialCharge(key)
		if err != nil {
			return err
		}
		overriding := units.NewOverriding(e.getter)
		overriding.SetSubstanceConsumption(p.GhgIntensity())
		overriding.SetAmortizedUnitVolume(charge)
		conv := units.NewConverter(overriding)
		consumption = conv.Convert(salesKg, "tCO2e")
	}

	update := state.NewUpdate(key, state.StreamConsumption, consumption).
		WithSubtractRecycling(false)
	return e.store.Apply(update)
}

// recalcRechargeEmissions rebuilds servicing emissions from the explicit
// recharge volume and the scope's intensity.
func (e *Engine) recalcRechargeEmissions(key state.UseKey) error {
	if err := requireScope(key, "recalculate recharge emissions"); err != nil {
		return err
	}
	p, err := e.store.Parameterization(key)
	if err != nil {
		return err
	}

	rechargeKg, err := e.rechargeVolume(key)
	if err != nil {
		return err
	}

	emissions := units.Zero("tCO2e")
	if !p.GhgIntensity().IsZero() && !rechargeKg.IsZero() {
		charge, err := e.salesInitialCharge(key)
		if err != nil {
			return err
		}
		overriding := units.NewOverriding(e.getter)
		overriding.SetSubstanceConsumption(p.GhgIntensity())
		overriding.SetAmortizedUnitVolume(charge)
		conv := units.NewConverter(overriding)
		emissions = conv.Convert(rechargeKg, "tCO2e")
	}

	update := state.NewUpdate(key, state.StreamRechargeEmissions, emissions).
		WithSubtractRecycling(false)
	return e.store.Apply(update)
}
