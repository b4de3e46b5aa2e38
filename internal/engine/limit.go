package engine

import (
	"github.com/roach88/stratosim/internal/state"
	"github.com/roach88/stratosim/internal/units"
)

// limitKind selects which side a limit constrains.
type limitKind int

const (
	limitCap limitKind = iota
	limitFloor
)

// limitSatisfied reports whether the current value already honors the
// limit. Both quantities must share a unit.
func limitSatisfied(kind limitKind, current, limit units.Quantity) bool {
	if kind == limitCap {
		return current.CmpValue(limit) <= 0
	}
	return current.CmpValue(limit) >= 0
}

// executeLimit applies a cap or floor to a stream. Percentage limits
// anchor to the last user-specified value so successive "cap to 85%, then
// 70%" policies restrict the stated baseline rather than compounding
// against recalculated values; streams never explicitly set fall back to a
// total-relative change that can only tighten. Displacement forwards the
// realized kg delta, measured after the write.
func (e *Engine) executeLimit(stream string, amount units.Quantity, ym *state.YearMatcher, displaceTarget *string, kind limitKind) error {
	if stream == state.StreamEquipment {
		// Equipment limits route through the equipment lifecycle before
		// dispatch. Reaching here is a routing bug.
		panic(&Error{
			Code:    ErrCodeEquipmentLimit,
			Message: "limit executor invoked on the equipment stream",
		})
	}

	if displaceTarget != nil && *displaceTarget == stream {
		return &Error{
			Code:    ErrCodeSelfDisplacement,
			Message: "cannot displace stream " + stream + " to itself",
		}
	}

	p, err := e.store.Parameterization(e.scope)
	if err != nil {
		return err
	}

	current, err := e.store.Stream(e.scope, stream)
	if err != nil {
		return err
	}
	beforeKg := e.conv.Convert(current, "kg")

	_, totalConv, err := e.converterWithTotal(e.scope, stream)
	if err != nil {
		return err
	}

	if amount.IsPercent() {
		last, ok := p.LastSpecifiedValue(stream)
		if !ok {
			return e.limitAgainstTotal(stream, amount, ym, displaceTarget, kind, beforeKg, totalConv)
		}

		limit := units.New(
			units.Mul(last.Value(), units.PercentToRatio(amount.Value())),
			last.Unit(),
		)
		limitKg := totalConv.Convert(limit, "kg")
		if limitSatisfied(kind, beforeKg, limitKg) {
			return nil
		}

		update := NewStreamUpdate(stream, limit).
			WithYearMatcher(ym).
			WithSubtractRecycling(!hasUnitBasedSalesIntent(p))
		if err := e.ExecuteStreamUpdate(update); err != nil {
			return err
		}
		return e.displaceRealized(stream, amount, beforeKg, displaceTarget)
	}

	currentInLimitUnits := totalConv.Convert(current, amount.Unit())
	if limitSatisfied(kind, currentInLimitUnits, amount) {
		return nil
	}

	update := NewStreamUpdate(stream, amount).
		WithYearMatcher(ym).
		WithSubtractRecycling(!hasUnitBasedSalesIntent(p))
	if err := e.ExecuteStreamUpdate(update); err != nil {
		return err
	}
	return e.displaceRealized(stream, amount, beforeKg, displaceTarget)
}

// limitAgainstTotal handles a percentage limit on a stream with no
// recorded intent: the percentage resolves against the stream's own
// current total and the shortfall applies as a clamped change.
func (e *Engine) limitAgainstTotal(stream string, amount units.Quantity, ym *state.YearMatcher, displaceTarget *string, kind limitKind, beforeKg units.Quantity, totalConv *units.Converter) error {
	limitKg := totalConv.Convert(amount, "kg")
	changeKg := units.Sub(limitKg.Value(), beforeKg.Value())

	if kind == limitCap {
		if changeKg.Sign() >= 0 {
			return nil
		}
	} else if changeKg.Sign() <= 0 {
		return nil
	}

	if err := e.changeStreamRaw(stream, units.New(changeKg, "kg"), ym, false); err != nil {
		return err
	}
	return e.displaceRealized(stream, amount, beforeKg, displaceTarget)
}

// displaceRealized measures the kg delta a limit or change actually
// produced and forwards its inverse to the displacement target.
func (e *Engine) displaceRealized(stream string, amount units.Quantity, beforeKg units.Quantity, displaceTarget *string) error {
	if displaceTarget == nil {
		return nil
	}

	after, err := e.store.Stream(e.scope, stream)
	if err != nil {
		return err
	}
	afterKg := e.conv.Convert(after, "kg")

	changeKg := units.Sub(afterKg.Value(), beforeKg.Value())
	return e.executeDisplacement(stream, amount, units.New(changeKg, "kg"), *displaceTarget)
}
