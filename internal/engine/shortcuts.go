package engine

import (
	"github.com/roach88/stratosim/internal/state"
	"github.com/roach88/stratosim/internal/units"
)

// changeStreamRaw shifts a stream by a delta without recording the result
// as user intent. The delta converts into the stream's current units using
// the stream's own value as the percentage base. Negative results clamp to
// zero unless allowNegative is set.
func (e *Engine) changeStreamRaw(stream string, delta units.Quantity, ym *state.YearMatcher, allowNegative bool) error {
	if !e.yearMatches(ym) {
		return nil
	}

	current, err := e.store.Stream(e.scope, stream)
	if err != nil {
		return err
	}

	_, conv, err := e.converterWithTotal(e.scope, stream)
	if err != nil {
		return err
	}
	converted := conv.Convert(delta, current.Unit())

	total := units.Add(current.Value(), converted.Value())
	if total.Sign() < 0 && !allowNegative {
		e.log.Warn("stream change clamped at zero",
			"stream", stream,
			"application", e.scope.Application(),
			"substance", e.scope.Substance())
		total.SetInt64(0)
	}

	update := NewStreamUpdate(stream, units.New(total, current.Unit())).
		WithYearMatcher(ym)
	return e.ExecuteStreamUpdate(update)
}

// changeStreamAt applies a delta to a stream under another scope, used
// when displacement or replacement redirects material. The engine scope
// switches for the duration so conversions read the destination's context,
// and restores unconditionally.
func (e *Engine) changeStreamAt(stream string, delta units.Quantity, destination state.Scope, allowNegative bool) error {
	return e.inScope(destination, func() error {
		current, err := e.store.Stream(e.scope, stream)
		if err != nil {
			return err
		}

		_, conv, err := e.converterWithTotal(e.scope, stream)
		if err != nil {
			return err
		}
		converted := conv.Convert(delta, current.Unit())

		total := units.Add(current.Value(), converted.Value())
		if total.Sign() < 0 && !allowNegative {
			total.SetInt64(0)
		}
		output := units.New(total, current.Unit())

		update := NewStreamUpdate(stream, output).WithPropagation(false)
		if err := e.ExecuteStreamUpdate(update); err != nil {
			return err
		}

		if !isSalesStream(stream, false) {
			return nil
		}

		p, err := e.store.Parameterization(e.scope)
		if err != nil {
			return err
		}
		p.SetLastSpecifiedValue(stream, output)

		if err := e.recalcPopulationChange(e.scope, true); err != nil {
			return err
		}
		return e.recalcConsumption(e.scope)
	})
}
