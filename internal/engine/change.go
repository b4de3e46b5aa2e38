package engine

import (
	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/stratosim/internal/state"
	"github.com/roach88/stratosim/internal/units"
)

// executeChange shifts a stream by a relative amount. Sales changes fan
// out across the distribution; substream changes compound against the last
// user-specified value so multi-year "change by X% each year" programs
// stay anchored to stated intent. When a displacement target is present
// the realized kg delta forwards to the displacement executor.
func (e *Engine) executeChange(stream string, amount units.Quantity, ym *state.YearMatcher, displaceTarget *string) error {
	var beforeKg *apd.Decimal
	if displaceTarget != nil {
		current, err := e.store.Stream(e.scope, stream)
		if err != nil {
			return err
		}
		beforeKg = e.conv.Convert(current, "kg").Value()
	}

	var err error
	switch {
	case stream == state.StreamSales:
		err = e.changeSales(amount, ym)
	case isSalesComponent(stream) || stream == state.StreamExport:
		err = e.changeSalesComponent(stream, amount, ym)
	default:
		err = e.changeDerivedStream(stream, amount, ym)
	}
	if err != nil {
		return err
	}

	if displaceTarget == nil {
		return nil
	}

	after, err := e.store.Stream(e.scope, stream)
	if err != nil {
		return err
	}
	changeKg := units.Sub(e.conv.Convert(after, "kg").Value(), beforeKg)
	return e.executeDisplacement(stream, amount, units.New(changeKg, "kg"), *displaceTarget)
}

// changeSales fans a sales change out to the substreams. Percentage
// changes pass through unchanged so each substream compounds against its
// own intent; absolute changes split by the distribution first.
func (e *Engine) changeSales(amount units.Quantity, ym *state.YearMatcher) error {
	if amount.IsPercent() {
		for _, stream := range []string{state.StreamDomestic, state.StreamImport} {
			if err := e.changeSalesComponent(stream, amount, ym); err != nil {
				return err
			}
		}
		return nil
	}

	dist, err := e.store.Distribution(e.scope, false)
	if err != nil {
		return err
	}

	shares := []struct {
		stream string
		share  *apd.Decimal
	}{
		{state.StreamDomestic, dist.PercentDomestic()},
		{state.StreamImport, dist.PercentImport()},
	}
	for _, component := range shares {
		if component.share.Sign() <= 0 {
			continue
		}
		portion := units.New(units.Mul(amount.Value(), component.share), amount.Unit())
		if err := e.changeSalesComponent(component.stream, portion, ym); err != nil {
			return err
		}
	}
	return nil
}

// changeSalesComponent shifts one supply stream, anchoring against the
// last user-specified value where one exists.
func (e *Engine) changeSalesComponent(stream string, amount units.Quantity, ym *state.YearMatcher) error {
	p, err := e.store.Parameterization(e.scope)
	if err != nil {
		return err
	}

	switch {
	case amount.IsPercent():
		last, ok := p.LastSpecifiedValue(stream)
		if !ok {
			return nil
		}
		factor := units.Add(apd.New(1, 0), units.PercentToRatio(amount.Value()))
		target := units.New(units.Mul(last.Value(), factor), last.Unit())
		return e.SetStream(stream, target, ym)

	case amount.HasEquipmentUnits():
		if last, ok := p.LastSpecifiedValue(stream); ok {
			_, conv, err := e.converterWithTotal(e.scope, stream)
			if err != nil {
				return err
			}
			delta := conv.Convert(amount, last.Unit())
			target := units.New(units.Add(last.Value(), delta.Value()), last.Unit())
			return e.SetStream(stream, target, ym)
		}

		current, err := e.store.Stream(e.scope, stream)
		if err != nil {
			return err
		}
		_, conv, err := e.converterWithTotal(e.scope, stream)
		if err != nil {
			return err
		}
		currentUnits := conv.Convert(current, "units")
		target := units.New(
			units.Add(currentUnits.Value(), conv.Convert(amount, "units").Value()),
			"units",
		)
		return e.SetStream(stream, target, ym)

	default:
		current, err := e.store.Stream(e.scope, stream)
		if err != nil {
			return err
		}
		currentKg := e.conv.Convert(current, "kg")
		deltaKg := e.conv.Convert(amount, "kg")
		target := units.New(units.Add(currentKg.Value(), deltaKg.Value()), "kg")
		return e.SetStream(stream, target, ym)
	}
}

// changeDerivedStream shifts a non-supply stream in place without touching
// intent tracking.
func (e *Engine) changeDerivedStream(stream string, amount units.Quantity, ym *state.YearMatcher) error {
	current, err := e.store.Stream(e.scope, stream)
	if err != nil {
		return err
	}

	_, conv, err := e.converterWithTotal(e.scope, stream)
	if err != nil {
		return err
	}
	delta := conv.Convert(amount, current.Unit())

	target := units.New(units.Add(current.Value(), delta.Value()), current.Unit())
	update := NewStreamUpdate(stream, target).WithYearMatcher(ym)
	return e.ExecuteStreamUpdate(update)
}
