package engine

import (
	"github.com/roach88/stratosim/internal/state"
	"github.com/roach88/stratosim/internal/units"
)

// handleSalesSet splits a sales total across the enabled substreams in the
// scope's distribution, preserving the caller's unit. Substreams with no
// share receive no update at all rather than a zero write.
func (e *Engine) handleSalesSet(key state.UseKey, value units.Quantity, ym *state.YearMatcher) error {
	if !e.yearMatches(ym) {
		return nil
	}

	dist, err := e.store.Distribution(key, false)
	if err != nil {
		return err
	}

	components := []struct {
		stream string
		share  units.Quantity
	}{
		{state.StreamDomestic, units.New(dist.PercentDomestic(), "")},
		{state.StreamImport, units.New(dist.PercentImport(), "")},
	}

	for _, component := range components {
		if component.share.Sign() <= 0 {
			continue
		}
		amount := units.New(
			units.Mul(value.Value(), component.share.Value()),
			value.Unit(),
		)
		if err := e.SetStream(component.stream, amount, ym); err != nil {
			return err
		}
	}
	return nil
}
