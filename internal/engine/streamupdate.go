package engine

import (
	"github.com/roach88/stratosim/internal/state"
	"github.com/roach88/stratosim/internal/units"
)

// StreamUpdate describes one pending stream mutation: the value to record,
// the scope and year it applies to, and how the write interacts with
// recycling, intent tracking, and downstream recalculation.
type StreamUpdate struct {
	name              string
	value             units.Quantity
	key               state.UseKey
	yearMatcher       *state.YearMatcher
	propagate         bool
	subtractRecycling bool
	unitsToRecord     *units.Quantity
	distribution      *state.Distribution
}

// NewStreamUpdate creates an update for the engine's current scope with
// propagation and recycling displacement both on.
func NewStreamUpdate(name string, value units.Quantity) StreamUpdate {
	return StreamUpdate{
		name:              name,
		value:             value,
		propagate:         true,
		subtractRecycling: true,
	}
}

// WithKey returns a copy targeting an explicit scope instead of the
// engine's current one.
func (u StreamUpdate) WithKey(key state.UseKey) StreamUpdate {
	u.key = key
	return u
}

// WithYearMatcher returns a copy restricted to the matcher's years.
func (u StreamUpdate) WithYearMatcher(ym *state.YearMatcher) StreamUpdate {
	u.yearMatcher = ym
	return u
}

// WithPropagation returns a copy with downstream recalculation enabled or
// disabled. Recalculation strategies disable it to avoid recursion.
func (u StreamUpdate) WithPropagation(propagate bool) StreamUpdate {
	u.propagate = propagate
	return u
}

// WithSubtractRecycling returns a copy with recycling displacement enabled
// or disabled.
func (u StreamUpdate) WithSubtractRecycling(subtract bool) StreamUpdate {
	u.subtractRecycling = subtract
	return u
}

// WithUnitsToRecord returns a copy that records the given quantity as the
// stream's last user-specified value after the write.
func (u StreamUpdate) WithUnitsToRecord(q units.Quantity) StreamUpdate {
	u.unitsToRecord = &q
	return u
}

// WithDistribution returns a copy carrying a pre-calculated sales
// distribution.
func (u StreamUpdate) WithDistribution(d state.Distribution) StreamUpdate {
	u.distribution = &d
	return u
}

// ExecuteStreamUpdate applies one stream update: implicit recharge for
// unit-denominated sales values, the store write, intent tracking, and
// downstream recalculation.
func (e *Engine) ExecuteStreamUpdate(u StreamUpdate) error {
	if !u.yearMatcher.Matches(e.store.CurrentYear()) {
		return nil
	}

	key := u.key
	if key == nil {
		key = e.scope
	}
	if key.Application() == "" || key.Substance() == "" {
		return missingScopeError("execute stream update")
	}

	isSales := isSalesStream(u.name, true)
	isUnits := u.value.HasEquipmentUnits()

	valueToSet, err := e.applyImplicitRecharge(key, u.name, u.value, isSales && isUnits)
	if err != nil {
		return err
	}

	mainUpdate := state.NewUpdate(key, u.name, valueToSet).
		WithSubtractRecycling(u.subtractRecycling)
	if u.distribution != nil {
		mainUpdate = mainUpdate.WithDistribution(*u.distribution)
	}
	if err := e.store.Apply(mainUpdate); err != nil {
		return err
	}

	if u.unitsToRecord != nil {
		if err := e.recordSpecifiedValue(key, u.name, *u.unitsToRecord); err != nil {
			return err
		}
	}

	if !u.propagate {
		return nil
	}
	return e.propagateStreamUpdate(key, u.name, isSales && isUnits)
}

// applyImplicitRecharge folds the mass needed to service the existing
// fleet into a unit-denominated sales value, and records that addition in
// the implicitRecharge stream so later recalculation can separate it from
// user intent. Volume-denominated sales values already include recharge,
// so they clear the annotation instead.
func (e *Engine) applyImplicitRecharge(key state.UseKey, name string, value units.Quantity, unitBasedSales bool) (units.Quantity, error) {
	isSales := isSalesStream(name, true)

	if !isSales {
		return value, nil
	}

	if !unitBasedSales {
		clear := state.NewUpdate(key, state.StreamImplicitRecharge, units.Zero("kg")).
			WithSubtractRecycling(false)
		if err := e.store.Apply(clear); err != nil {
			return units.Quantity{}, err
		}
		return value, nil
	}

	_, conv, err := e.converterWithTotal(key, name)
	if err != nil {
		return units.Quantity{}, err
	}
	valueKg := conv.Convert(value, "kg")

	rechargeKg, err := e.rechargeVolume(key)
	if err != nil {
		return units.Quantity{}, err
	}

	record := state.NewUpdate(key, state.StreamImplicitRecharge, rechargeKg).
		WithSubtractRecycling(false)
	if err := e.store.Apply(record); err != nil {
		return units.Quantity{}, err
	}

	rechargeShare, err := e.distributedRecharge(key, name, rechargeKg)
	if err != nil {
		return units.Quantity{}, err
	}

	combined := units.Add(valueKg.Value(), rechargeShare.Value())
	return units.New(combined, "kg"), nil
}

// recordSpecifiedValue stores the user's stated value as the stream's last
// specified intent and, for sales substreams, keeps the aggregate sales
// intent in sync with both substreams.
func (e *Engine) recordSpecifiedValue(key state.UseKey, name string, value units.Quantity) error {
	p, err := e.store.Parameterization(key)
	if err != nil {
		return err
	}
	p.SetLastSpecifiedValue(name, value)

	if !isSalesComponent(name) {
		return nil
	}

	other := state.StreamImport
	if name == state.StreamImport {
		other = state.StreamDomestic
	}

	combined := value
	otherLast, ok := p.LastSpecifiedValue(other)
	if ok && otherLast.HasEquipmentUnits() == value.HasEquipmentUnits() {
		_, conv, err := e.converterWithTotal(key, other)
		if err != nil {
			return err
		}
		otherConverted := conv.Convert(otherLast, value.Unit())
		combined = units.New(
			units.Add(value.Value(), otherConverted.Value()),
			value.Unit(),
		)
	}

	p.SetLastSpecifiedValue(state.StreamSales, combined)
	return nil
}

// propagateStreamUpdate recomputes the streams derived from the one just
// written.
func (e *Engine) propagateStreamUpdate(key state.UseKey, name string, unitBasedSales bool) error {
	switch {
	case isSalesStream(name, false):
		if err := e.recalcPopulationChange(key, !unitBasedSales); err != nil {
			return err
		}
		return e.recalcConsumption(key)
	case name == state.StreamConsumption:
		if err := e.recalcSales(key); err != nil {
			return err
		}
		return e.recalcPopulationChange(key, true)
	case name == state.StreamEquipment:
		if err := e.recalcSales(key); err != nil {
			return err
		}
		return e.recalcConsumption(key)
	case name == state.StreamPriorEquipment:
		return e.recalcRetire(key)
	default:
		return nil
	}
}
