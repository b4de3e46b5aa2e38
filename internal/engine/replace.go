package engine

import (
	"github.com/roach88/stratosim/internal/state"
	"github.com/roach88/stratosim/internal/units"
)

// Replace moves an amount of a stream from the current substance to
// another substance within the same application. Percentage amounts
// resolve against the last user-specified value; unit-denominated amounts
// move the same number of equipment units, re-expressed through the
// destination's own initial charge.
func (e *Engine) Replace(amount units.Quantity, stream, destinationSubstance string, ym *state.YearMatcher) error {
	if !e.yearMatches(ym) {
		return nil
	}
	if err := requireScope(e.scope, "replace"); err != nil {
		return err
	}
	if destinationSubstance == e.scope.Substance() {
		return &Error{
			Code: ErrCodeSelfReplacement,
			Message: "cannot replace substance " + destinationSubstance +
				" with itself",
			Application: e.scope.Application(),
			Substance:   e.scope.Substance(),
		}
	}

	destScope := e.scope.WithSubstance(destinationSubstance)
	e.store.EnsureSubstance(destScope)

	if isSalesStream(stream, true) {
		if err := e.recordReplacementIntent(stream, amount, destScope); err != nil {
			return err
		}
	}

	effective, err := e.resolveReplaceAmount(stream, amount)
	if err != nil {
		return err
	}

	if effective.HasEquipmentUnits() {
		return e.replaceByUnits(stream, effective, destScope)
	}
	return e.replaceByVolume(stream, effective, destScope)
}

// recordReplacementIntent stamps the stated amount as intent on both
// scopes so later percentage operations anchor to it. Percent amounts are
// relative and never recorded.
func (e *Engine) recordReplacementIntent(stream string, amount units.Quantity, destScope state.Scope) error {
	source, err := e.store.Parameterization(e.scope)
	if err != nil {
		return err
	}
	source.SetLastSpecifiedValue(stream, amount)

	dest, err := e.store.Parameterization(destScope)
	if err != nil {
		return err
	}
	dest.SetLastSpecifiedValue(stream, amount)
	return nil
}

// resolveReplaceAmount turns a percentage replacement into an absolute
// one, preferring the last user-specified value as the base and falling
// back to the stream's current value.
func (e *Engine) resolveReplaceAmount(stream string, amount units.Quantity) (units.Quantity, error) {
	if !amount.IsPercent() {
		return amount, nil
	}

	ratio := units.PercentToRatio(amount.Value())

	p, err := e.store.Parameterization(e.scope)
	if err != nil {
		return units.Quantity{}, err
	}
	if last, ok := p.LastSpecifiedValue(stream); ok {
		return units.New(units.Mul(last.Value(), ratio), last.Unit()), nil
	}

	current, err := e.store.Stream(e.scope, stream)
	if err != nil {
		return units.Quantity{}, err
	}
	return units.New(units.Mul(current.Value(), ratio), current.Unit()), nil
}

// replaceByUnits moves equipment units between substances: the source
// loses the units' mass at its own initial charge, the destination gains
// the same units at its charge.
func (e *Engine) replaceByUnits(stream string, effective units.Quantity, destScope state.Scope) error {
	_, sourceConv, err := e.converterWithTotal(e.scope, stream)
	if err != nil {
		return err
	}
	unitsMoved := sourceConv.Convert(effective, "units")
	sourceKg := sourceConv.Convert(unitsMoved, "kg")

	removal := units.New(units.Neg(sourceKg.Value()), "kg")
	if err := e.changeStreamRaw(stream, removal, nil, false); err != nil {
		return err
	}

	destCharge, err := e.salesInitialCharge(destScope)
	if err != nil {
		return err
	}
	destKg := units.New(units.Mul(unitsMoved.Value(), destCharge.Value()), "kg")

	return e.changeStreamAt(stream, destKg, destScope, false)
}

// replaceByVolume moves mass between substances one for one.
func (e *Engine) replaceByVolume(stream string, effective units.Quantity, destScope state.Scope) error {
	_, sourceConv, err := e.converterWithTotal(e.scope, stream)
	if err != nil {
		return err
	}
	movedKg := sourceConv.Convert(effective, "kg")

	removal := units.New(units.Neg(movedKg.Value()), "kg")
	if err := e.changeStreamRaw(stream, removal, nil, false); err != nil {
		return err
	}
	return e.changeStreamAt(stream, movedKg, destScope, false)
}
