package engine

import (
	"strings"

	"github.com/roach88/stratosim/internal/state"
	"github.com/roach88/stratosim/internal/units"
)

// displacementStreams are the streams a displacement target may name.
// Anything else is treated as a substance name.
var displacementStreams = map[string]bool{
	state.StreamPriorEquipment: true,
	state.StreamEquipment:      true,
	state.StreamExport:         true,
	state.StreamImport:         true,
	state.StreamDomestic:       true,
	state.StreamSales:          true,
}

// isSalesStream reports whether a stream participates in the sales total.
func isSalesStream(name string, includeExports bool) bool {
	switch name {
	case state.StreamSales, state.StreamDomestic, state.StreamImport:
		return true
	case state.StreamExport:
		return includeExports
	}
	return false
}

// isSalesComponent reports whether a stream is a concrete sales substream.
func isSalesComponent(name string) bool {
	return name == state.StreamDomestic || name == state.StreamImport
}

// converterWithTotal builds a converter whose percentage conversions
// resolve against the named stream's current value. Sales substreams also
// pin the substream's own initial charge so unit conversions amortize
// correctly.
func (e *Engine) converterWithTotal(key state.UseKey, stream string) (*units.Overriding, *units.Converter, error) {
	current, err := e.store.Stream(key, stream)
	if err != nil {
		return nil, nil, err
	}

	overriding := units.NewOverriding(e.getter)
	overriding.SetTotal(stream, current)

	if isSalesComponent(stream) {
		charge, err := e.initialChargeFor(key, stream)
		if err != nil {
			return nil, nil, err
		}
		overriding.SetAmortizedUnitVolume(charge)
	}

	return overriding, units.NewConverter(overriding), nil
}

// hasUnitBasedSalesIntent reports whether the scope's sales intent was last
// specified in equipment units.
func hasUnitBasedSalesIntent(p *state.Parameterization) bool {
	last, ok := p.LastSpecifiedValue(state.StreamSales)
	return ok && last.HasEquipmentUnits()
}

// shouldUseExplicitRecharge decides whether population recalculation reads
// recharge demand from the parameterization or from the implicit recharge
// already folded into a unit-denominated sales value.
func (e *Engine) shouldUseExplicitRecharge(key state.UseKey, stream string) bool {
	if !isSalesStream(stream, false) {
		return true
	}
	p, err := e.store.Parameterization(key)
	if err != nil {
		return true
	}
	last, ok := p.LastSpecifiedValue(state.StreamSales)
	if !ok {
		return true
	}
	return !strings.HasPrefix(last.Unit(), "unit")
}

// distributedRecharge returns the share of a recharge total attributable to
// the named sales stream: the full total for sales itself, the
// distribution share for a substream, nothing otherwise.
func (e *Engine) distributedRecharge(key state.UseKey, stream string, totalKg units.Quantity) (units.Quantity, error) {
	switch stream {
	case state.StreamSales:
		return totalKg, nil
	case state.StreamDomestic, state.StreamImport:
		dist, err := e.store.Distribution(key, false)
		if err != nil {
			return units.Quantity{}, err
		}
		share := dist.PercentDomestic()
		if stream == state.StreamImport {
			share = dist.PercentImport()
		}
		return units.New(units.Mul(totalKg.Value(), share), "kg"), nil
	default:
		return units.Zero("kg"), nil
	}
}

// rechargeVolume computes the kilograms needed to service the existing
// equipment fleet: the recharge population share of prior equipment, run
// through the recharge intensity.
func (e *Engine) rechargeVolume(key state.UseKey) (units.Quantity, error) {
	p, err := e.store.Parameterization(key)
	if err != nil {
		return units.Quantity{}, err
	}

	prior, err := e.store.Stream(key, state.StreamPriorEquipment)
	if err != nil {
		return units.Quantity{}, err
	}

	overriding := units.NewOverriding(e.getter)
	conv := units.NewConverter(overriding)

	overriding.SetPopulation(prior)
	rechargePopulation := conv.Convert(p.RechargePopulation(), "units")

	overriding.SetPopulation(rechargePopulation)
	volume := conv.Convert(p.RechargeIntensity(), "kg")
	overriding.ClearPopulation()

	return volume, nil
}

// initialChargeFor returns the initial charge for one sales substream in
// kg / unit.
func (e *Engine) initialChargeFor(key state.UseKey, stream string) (units.Quantity, error) {
	p, err := e.store.Parameterization(key)
	if err != nil {
		return units.Quantity{}, err
	}
	charge, err := p.InitialCharge(stream)
	if err != nil {
		return units.Quantity{}, err
	}
	return e.conv.Convert(charge, "kg / unit"), nil
}

// salesInitialCharge returns the distribution-weighted average initial
// charge across the enabled sales substreams, in kg / unit. Scopes with no
// enabled streams report a zero charge.
func (e *Engine) salesInitialCharge(key state.UseKey) (units.Quantity, error) {
	dist, err := e.store.Distribution(key, false)
	if err != nil {
		if state.IsNoStreamsEnabledError(err) {
			return units.Zero("kg / unit"), nil
		}
		return units.Quantity{}, err
	}

	domestic, err := e.initialChargeFor(key, state.StreamDomestic)
	if err != nil {
		return units.Quantity{}, err
	}
	imported, err := e.initialChargeFor(key, state.StreamImport)
	if err != nil {
		return units.Quantity{}, err
	}

	weighted := units.Add(
		units.Mul(domestic.Value(), dist.PercentDomestic()),
		units.Mul(imported.Value(), dist.PercentImport()),
	)
	return units.New(weighted, "kg / unit"), nil
}
