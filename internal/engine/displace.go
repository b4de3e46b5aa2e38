package engine

import (
	"github.com/roach88/stratosim/internal/state"
	"github.com/roach88/stratosim/internal/units"
)

// executeDisplacement moves the inverse of a realized change into another
// stream of the same scope or into the same stream of another substance.
// Targets naming a known stream displace within the scope; anything else
// is treated as a substance name.
func (e *Engine) executeDisplacement(stream string, amount units.Quantity, changeKg units.Quantity, target string) error {
	if target == stream {
		return &Error{
			Code:    ErrCodeSelfDisplacement,
			Message: "cannot displace stream " + stream + " to itself",
		}
	}
	if changeKg.IsZero() {
		return nil
	}

	inverse := units.New(units.Neg(changeKg.Value()), "kg")

	if displacementStreams[target] {
		// Displacing the sales aggregate first realizes the change in the
		// aggregate so recycling splits before material moves.
		if stream == state.StreamSales {
			if err := e.changeStreamRaw(stream, changeKg, nil, false); err != nil {
				return err
			}
		}
		return e.changeStreamRaw(target, inverse, nil, false)
	}

	return e.displaceToSubstance(stream, amount, inverse, target)
}

// displaceToSubstance applies the inverse change to the same stream under
// another substance. Unit-denominated commands re-express the moved mass
// through the destination's own initial charge so the same number of
// equipment units moves rather than the same mass.
func (e *Engine) displaceToSubstance(stream string, amount units.Quantity, inverseKg units.Quantity, substance string) error {
	if substance == e.scope.Substance() {
		return &Error{
			Code:      ErrCodeSelfDisplacement,
			Message:   "cannot displace substance " + substance + " to itself",
			Substance: substance,
		}
	}

	destScope := e.scope.WithSubstance(substance)
	e.store.EnsureSubstance(destScope)

	destKg := inverseKg
	if amount.HasEquipmentUnits() {
		_, sourceConv, err := e.converterWithTotal(e.scope, stream)
		if err != nil {
			return err
		}
		unitsMoved := sourceConv.Convert(inverseKg, "units")

		destCharge, err := e.salesInitialCharge(destScope)
		if err != nil {
			return err
		}
		destKg = units.New(
			units.Mul(unitsMoved.Value(), destCharge.Value()),
			"kg",
		)
	}

	if err := e.changeStreamAt(stream, destKg, destScope, false); err != nil {
		return err
	}
	return e.updateDisplacedIntent(stream, destScope, destKg)
}

// updateDisplacedIntent folds a sales-level displacement into the
// destination's recorded intent so later percentage limits see the moved
// material.
func (e *Engine) updateDisplacedIntent(stream string, destScope state.Scope, displacedKg units.Quantity) error {
	if stream != state.StreamSales {
		return nil
	}

	p, err := e.store.Parameterization(destScope)
	if err != nil {
		return err
	}
	dist, err := e.store.Distribution(destScope, false)
	if err != nil {
		return err
	}

	shares := map[string]units.Quantity{
		state.StreamDomestic: units.New(units.Mul(displacedKg.Value(), dist.PercentDomestic()), "kg"),
		state.StreamImport:   units.New(units.Mul(displacedKg.Value(), dist.PercentImport()), "kg"),
	}

	for _, component := range []string{state.StreamDomestic, state.StreamImport} {
		last, ok := p.LastSpecifiedValue(component)
		if !ok {
			continue
		}
		_, conv, err := e.converterWithTotal(destScope, component)
		if err != nil {
			return err
		}
		share := conv.Convert(shares[component], last.Unit())
		p.SetLastSpecifiedValue(component, units.New(
			units.Add(last.Value(), share.Value()),
			last.Unit(),
		))
	}
	return nil
}
