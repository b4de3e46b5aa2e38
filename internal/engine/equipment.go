package engine

import (
	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/stratosim/internal/state"
	"github.com/roach88/stratosim/internal/units"
)

// Equipment-level operations never touch the population streams directly.
// They translate into sales and retirement so servicing demand stays
// consistent with the fleet the operation produces.

// equipmentSet moves the fleet to a target level. Growth above the prior
// population becomes new sales; shrinkage below it becomes retirement.
func (e *Engine) equipmentSet(value units.Quantity, ym *state.YearMatcher) error {
	_, conv, err := e.converterWithTotal(e.scope, state.StreamEquipment)
	if err != nil {
		return err
	}
	target := conv.Convert(value, "units")

	prior, err := e.store.Stream(e.scope, state.StreamPriorEquipment)
	if err != nil {
		return err
	}
	priorUnits := conv.Convert(prior, "units")

	delta := units.Sub(target.Value(), priorUnits.Value())
	return e.applyEquipmentDelta(delta, ym)
}

// equipmentChange shifts the fleet by a relative amount. Percentages apply
// against the current population.
func (e *Engine) equipmentChange(amount units.Quantity, ym *state.YearMatcher, _ *string) error {
	_, conv, err := e.converterWithTotal(e.scope, state.StreamEquipment)
	if err != nil {
		return err
	}

	current, err := e.store.Stream(e.scope, state.StreamEquipment)
	if err != nil {
		return err
	}
	currentUnits := conv.Convert(current, "units")

	var delta *apd.Decimal
	if amount.IsPercent() {
		delta = units.Mul(currentUnits.Value(), units.PercentToRatio(amount.Value()))
	} else {
		delta = conv.Convert(amount, "units").Value()
	}
	return e.applyEquipmentDelta(delta, ym)
}

// applyEquipmentDelta routes a signed population delta to sales growth or
// retirement.
func (e *Engine) applyEquipmentDelta(delta *apd.Decimal, ym *state.YearMatcher) error {
	switch delta.Sign() {
	case 1:
		return e.equipmentSalesIncrease(units.New(delta, "units"), ym)
	case -1:
		_, err := e.retireEquipmentUnits(units.New(units.Neg(delta), "units"), ym)
		return err
	}
	return nil
}

// equipmentCap retires whatever stands above the ceiling, optionally
// moving the retired units into another substance's fleet.
func (e *Engine) equipmentCap(amount units.Quantity, ym *state.YearMatcher, displaceTarget *string) error {
	_, conv, err := e.converterWithTotal(e.scope, state.StreamEquipment)
	if err != nil {
		return err
	}

	current, err := e.store.Stream(e.scope, state.StreamEquipment)
	if err != nil {
		return err
	}
	currentUnits := conv.Convert(current, "units")
	capUnits := conv.Convert(amount, "units")

	if currentUnits.CmpValue(capUnits) <= 0 {
		return nil
	}

	excess := units.New(units.Sub(currentUnits.Value(), capUnits.Value()), "units")
	actual, err := e.retireEquipmentUnits(excess, ym)
	if err != nil {
		return err
	}

	if displaceTarget == nil {
		return nil
	}
	// Only what was actually retired moves to the target substance.
	return e.displaceEquipment(actual, *displaceTarget, true)
}

// equipmentFloor grows the fleet up to the minimum, optionally taking the
// added units out of another substance's fleet.
func (e *Engine) equipmentFloor(amount units.Quantity, ym *state.YearMatcher, displaceTarget *string) error {
	_, conv, err := e.converterWithTotal(e.scope, state.StreamEquipment)
	if err != nil {
		return err
	}

	current, err := e.store.Stream(e.scope, state.StreamEquipment)
	if err != nil {
		return err
	}
	currentUnits := conv.Convert(current, "units")
	floorUnits := conv.Convert(amount, "units")

	if currentUnits.CmpValue(floorUnits) >= 0 {
		return nil
	}

	deficit := units.New(units.Sub(floorUnits.Value(), currentUnits.Value()), "units")
	if err := e.equipmentSalesIncrease(deficit, ym); err != nil {
		return err
	}

	if displaceTarget == nil {
		return nil
	}
	return e.displaceEquipment(deficit, *displaceTarget, false)
}

// equipmentSalesIncrease records a unit-denominated sales intent for the
// growth and distributes it across the enabled substreams, which carries
// recharge along automatically.
func (e *Engine) equipmentSalesIncrease(salesUnits units.Quantity, ym *state.YearMatcher) error {
	p, err := e.store.Parameterization(e.scope)
	if err != nil {
		return err
	}
	p.SetLastSpecifiedValue(state.StreamSales, salesUnits)
	return e.handleSalesSet(e.scope, salesUnits, ym)
}

// retireEquipmentUnits zeroes this year's sales and retires the requested
// units from the prior population, returning what was actually retired
// when the prior population cannot cover the request.
func (e *Engine) retireEquipmentUnits(request units.Quantity, ym *state.YearMatcher) (units.Quantity, error) {
	p, err := e.store.Parameterization(e.scope)
	if err != nil {
		return units.Quantity{}, err
	}

	zeroSales := units.Zero("units")
	p.SetLastSpecifiedValue(state.StreamSales, zeroSales)
	if err := e.handleSalesSet(e.scope, zeroSales, ym); err != nil {
		return units.Quantity{}, err
	}

	_, conv, err := e.converterWithTotal(e.scope, state.StreamEquipment)
	if err != nil {
		return units.Quantity{}, err
	}
	prior, err := e.store.Stream(e.scope, state.StreamPriorEquipment)
	if err != nil {
		return units.Quantity{}, err
	}
	priorUnits := conv.Convert(prior, "units")

	actual := request.Value()
	if priorUnits.Value().Cmp(actual) < 0 {
		actual = priorUnits.Value()
	}

	percentage := apd.New(0, 0)
	if priorUnits.Sign() != 0 {
		percentage = units.RatioToPercent(units.DivOrZero(actual, priorUnits.Value()))
	}
	p.SetRetirementRate(units.New(percentage, "%"))

	if err := e.recalcRetire(e.scope); err != nil {
		return units.Quantity{}, err
	}
	if err := e.recalcSales(e.scope); err != nil {
		return units.Quantity{}, err
	}
	if err := e.recalcPopulationChange(e.scope, true); err != nil {
		return units.Quantity{}, err
	}
	if err := e.recalcConsumption(e.scope); err != nil {
		return units.Quantity{}, err
	}

	return units.New(actual, "units"), nil
}

// displaceEquipment mirrors a cap or floor into another substance's fleet:
// a cap's retired units grow the target, a floor's growth shrinks it.
func (e *Engine) displaceEquipment(amount units.Quantity, target string, isCap bool) error {
	return e.inSubstance(target, func() error {
		change := amount.Value()
		if !isCap {
			change = units.Neg(change)
		}

		_, conv, err := e.converterWithTotal(e.scope, state.StreamEquipment)
		if err != nil {
			return err
		}
		current, err := e.store.Stream(e.scope, state.StreamEquipment)
		if err != nil {
			return err
		}
		currentUnits := conv.Convert(current, "units")

		newTarget := units.New(units.Add(currentUnits.Value(), change), "units")
		return e.equipmentSet(newTarget, nil)
	})
}
