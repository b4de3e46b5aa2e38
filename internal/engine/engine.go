// Package engine orchestrates one scenario trial of a stock-and-flow
// simulation: it holds the current year and scope, routes commands from an
// external interpreter to the executors that implement them, and keeps the
// derived streams consistent after every write.
package engine

import (
	"log/slog"
	"strings"

	"github.com/roach88/stratosim/internal/state"
	"github.com/roach88/stratosim/internal/units"
)

// Engine runs one (scenario, trial) timeline. Commands execute strictly in
// program order; each Engine owns its state and must not be shared across
// goroutines.
type Engine struct {
	startYear int
	endYear   int

	scenarioName string
	trialNumber  int

	scope state.Scope

	getter *engineStateGetter
	conv   *units.Converter
	store  *state.Store

	log *slog.Logger
}

// NewEngine creates an engine covering the inclusive year range. Reversed
// bounds are normalized.
func NewEngine(startYear, endYear int) *Engine {
	if startYear > endYear {
		startYear, endYear = endYear, startYear
	}

	e := &Engine{
		startYear: startYear,
		endYear:   endYear,
		log:       slog.Default(),
	}
	e.getter = newEngineStateGetter(e)
	e.conv = units.NewConverter(e.getter)
	e.store = state.NewStore(units.NewOverriding(e.getter), e.conv)
	e.store.SetCurrentYear(startYear)
	return e
}

// SetLogger replaces the engine's logger.
func (e *Engine) SetLogger(log *slog.Logger) {
	if log != nil {
		e.log = log
	}
}

// ScenarioName returns the scenario label stamped onto results.
func (e *Engine) ScenarioName() string { return e.scenarioName }

// SetScenarioName labels the running scenario.
func (e *Engine) SetScenarioName(name string) { e.scenarioName = name }

// TrialNumber returns the trial index stamped onto results.
func (e *Engine) TrialNumber() int { return e.trialNumber }

// SetTrialNumber records the trial index.
func (e *Engine) SetTrialNumber(trial int) { e.trialNumber = trial }

// StartYear returns the first simulated year.
func (e *Engine) StartYear() int { return e.startYear }

// EndYear returns the last simulated year.
func (e *Engine) EndYear() int { return e.endYear }

// Year returns the year the engine is positioned at.
func (e *Engine) Year() int { return e.store.CurrentYear() }

// IsDone reports whether the engine has advanced past its end year.
func (e *Engine) IsDone() bool { return e.store.CurrentYear() > e.endYear }

// IncrementYear advances the simulation by one year, rolling populations
// into their prior slots and resetting per-step parameters.
func (e *Engine) IncrementYear() error {
	if e.IsDone() {
		return &Error{
			Code:    ErrCodeSimulationComplete,
			Message: "cannot increment year: simulation already complete",
		}
	}
	return e.store.IncrementYear()
}

// Scope returns the engine's current scope.
func (e *Engine) Scope() state.Scope { return e.scope }

// Store exposes the stream store for result collection.
func (e *Engine) Store() *state.Store { return e.store }

// Converter exposes the engine's live-context unit converter.
func (e *Engine) Converter() *units.Converter { return e.conv }

// StateGetter exposes the engine-backed conversion context, usually to
// wrap in an Overriding for result serialization.
func (e *Engine) StateGetter() units.StateGetter { return e.getter }

// SetStanza positions the scope at a stanza, clearing application and
// substance.
func (e *Engine) SetStanza(name string) {
	e.scope = e.scope.WithStanza(name)
}

// SetApplication positions the scope at an application, clearing the
// substance.
func (e *Engine) SetApplication(name string) {
	e.scope = e.scope.WithApplication(name)
}

// SetSubstance positions the scope at a substance. With checkValid the
// pair must already be registered; otherwise it registers lazily.
func (e *Engine) SetSubstance(name string, checkValid bool) error {
	next := e.scope.WithSubstance(name)
	if checkValid {
		if _, err := e.store.Parameterization(next); err != nil {
			return err
		}
	} else if next.Application() != "" && next.Substance() != "" {
		e.store.EnsureSubstance(next)
	}
	e.scope = next
	return nil
}

// yearMatches reports whether a matcher admits the current year. A nil
// matcher admits every year.
func (e *Engine) yearMatches(ym *state.YearMatcher) bool {
	return ym.Matches(e.store.CurrentYear())
}

// Enable marks a supply stream as deliberately in use for the current
// scope. Only domestic, import, and export carry enablement; other streams
// ignore the call.
func (e *Engine) Enable(stream string, ym *state.YearMatcher) error {
	if !e.yearMatches(ym) {
		return nil
	}
	if err := requireScope(e.scope, "enable "+stream); err != nil {
		return err
	}

	switch stream {
	case state.StreamDomestic, state.StreamImport, state.StreamExport:
	default:
		return nil
	}

	p, err := e.store.Parameterization(e.scope)
	if err != nil {
		return err
	}
	p.MarkStreamAsEnabled(stream)
	return nil
}

// Stream returns the current value of a stream for the current scope.
func (e *Engine) Stream(name string) (units.Quantity, error) {
	if err := requireScope(e.scope, "get "+name); err != nil {
		return units.Quantity{}, err
	}
	return e.store.Stream(e.scope, name)
}

// StreamFor returns the current value of a stream for an explicit scope.
func (e *Engine) StreamFor(key state.UseKey, name string) (units.Quantity, error) {
	return e.store.Stream(key, name)
}

// SetStream records a user-specified stream value for the current year.
// Equipment targets route through the equipment lifecycle; sales splits
// across the enabled substreams.
func (e *Engine) SetStream(name string, value units.Quantity, ym *state.YearMatcher) error {
	if !e.yearMatches(ym) {
		return nil
	}
	if err := requireScope(e.scope, "set "+name); err != nil {
		return err
	}

	if name == state.StreamEquipment {
		return e.equipmentSet(value, ym)
	}

	p, err := e.store.Parameterization(e.scope)
	if err != nil {
		return err
	}

	if name == state.StreamSales {
		p.ClearLastSpecifiedValue(state.StreamSales)
		return e.handleSalesSet(e.scope, value, ym)
	}

	if isSalesComponent(name) {
		p.ClearLastSpecifiedValue(name)
	}

	update := NewStreamUpdate(name, value).
		WithYearMatcher(ym).
		WithUnitsToRecord(value).
		WithSubtractRecycling(!hasUnitBasedSalesIntent(p))
	return e.ExecuteStreamUpdate(update)
}

// InitialCharge returns the initial charge for a sales stream in
// kg / unit. For sales itself the result is the distribution-weighted
// average of the enabled substreams.
func (e *Engine) InitialCharge(stream string) (units.Quantity, error) {
	if err := requireScope(e.scope, "get initial charge"); err != nil {
		return units.Quantity{}, err
	}
	if stream == state.StreamSales {
		return e.salesInitialCharge(e.scope)
	}
	return e.initialChargeFor(e.scope, stream)
}

// SetInitialCharge records the initial charge for a sales stream and
// refreshes the population it amortizes. Sales applies to both substreams.
func (e *Engine) SetInitialCharge(value units.Quantity, stream string, ym *state.YearMatcher) error {
	if !e.yearMatches(ym) {
		return nil
	}
	if err := requireScope(e.scope, "set initial charge"); err != nil {
		return err
	}

	p, err := e.store.Parameterization(e.scope)
	if err != nil {
		return err
	}

	if stream == state.StreamSales {
		if err := p.SetInitialCharge(state.StreamDomestic, value); err != nil {
			return err
		}
		if err := p.SetInitialCharge(state.StreamImport, value); err != nil {
			return err
		}
	} else if err := p.SetInitialCharge(stream, value); err != nil {
		return err
	}

	return e.recalcPopulationChange(e.scope, e.shouldUseExplicitRecharge(e.scope, stream))
}

// Recharge folds a servicing demand into the year: the share of the prior
// fleet serviced and the volume each serviced unit takes. When the year's
// sales intent is a carried-over unit specification the intent re-executes
// so the added servicing demand lands inside it.
func (e *Engine) Recharge(population, intensity units.Quantity, ym *state.YearMatcher) error {
	if !e.yearMatches(ym) {
		return nil
	}
	if err := requireScope(e.scope, "recharge"); err != nil {
		return err
	}

	p, err := e.store.Parameterization(e.scope)
	if err != nil {
		return err
	}
	p.AccumulateRecharge(population, intensity)

	if !p.IsSalesIntentFreshlySet() && hasUnitBasedSalesIntent(p) {
		last, _ := p.LastSpecifiedValue(state.StreamSales)
		update := NewStreamUpdate(state.StreamSales, last).
			WithSubtractRecycling(false)
		return e.ExecuteStreamUpdate(update)
	}

	useExplicit := !hasUnitBasedSalesIntent(p)
	if useExplicit {
		clear := state.NewUpdate(e.scope, state.StreamImplicitRecharge, units.Zero("kg")).
			WithSubtractRecycling(false)
		if err := e.store.Apply(clear); err != nil {
			return err
		}
	}

	if err := e.recalcPopulationChange(e.scope, useExplicit); err != nil {
		return err
	}
	if err := e.recalcSales(e.scope); err != nil {
		return err
	}
	return e.recalcConsumption(e.scope)
}

// Retire removes a share of the prior fleet. With replacement the realized
// reduction comes back as additional sales, simulating equipment turnover
// at constant population. Mixing replacement modes in one step is an
// error.
func (e *Engine) Retire(amount units.Quantity, ym *state.YearMatcher, withReplacement bool) error {
	if !e.yearMatches(ym) {
		return nil
	}
	if err := requireScope(e.scope, "retire"); err != nil {
		return err
	}

	p, err := e.store.Parameterization(e.scope)
	if err != nil {
		return err
	}
	if p.RetireCalculatedThisStep() && p.HasReplacementThisStep() != withReplacement {
		return &Error{
			Code: ErrCodeMixedRetire,
			Message: "cannot mix retire commands with and without " +
				"replacement in the same step",
			Application: e.scope.Application(),
			Substance:   e.scope.Substance(),
		}
	}
	p.SetHasReplacementThisStep(withReplacement)

	if !withReplacement {
		return e.applyRetirement(p, amount)
	}

	targetUnit := "kg"
	if hasUnitBasedSalesIntent(p) {
		targetUnit = "units"
	}
	_, conv, err := e.converterWithTotal(e.scope, state.StreamSales)
	if err != nil {
		return err
	}

	before, err := e.store.Stream(e.scope, state.StreamEquipment)
	if err != nil {
		return err
	}
	beforeUnits := conv.Convert(before, "units")

	if err := e.applyRetirement(p, amount); err != nil {
		return err
	}

	after, err := e.store.Stream(e.scope, state.StreamEquipment)
	if err != nil {
		return err
	}
	afterUnits := conv.Convert(after, "units")

	reduction := units.Sub(beforeUnits.Value(), afterUnits.Value())
	if reduction.Sign() <= 0 {
		return nil
	}

	replacement := conv.Convert(units.New(reduction, "units"), targetUnit)
	return e.ChangeStream(state.StreamSales, replacement, ym, nil)
}

// applyRetirement accumulates the rate and reruns retirement, refreshing
// sales when a unit intent holds total supply fixed.
func (e *Engine) applyRetirement(p *state.Parameterization, amount units.Quantity) error {
	p.AddRetirementRate(amount)
	if err := e.recalcRetire(e.scope); err != nil {
		return err
	}
	if hasUnitBasedSalesIntent(p) {
		return e.recalcSales(e.scope)
	}
	return nil
}

// Recycle folds a recovery program into the year: recovery rates add
// across commands, yields blend weighted by the recovery they apply to.
func (e *Engine) Recycle(recovery, yield units.Quantity, ym *state.YearMatcher, stage state.RecoveryStage) error {
	if !e.yearMatches(ym) {
		return nil
	}
	if err := requireScope(e.scope, "recycle"); err != nil {
		return err
	}

	p, err := e.store.Parameterization(e.scope)
	if err != nil {
		return err
	}

	existing := p.RecoveryRate(stage)
	if existing.IsZero() {
		p.SetRecoveryRate(recovery, stage)
		p.SetYieldRate(yield, stage)
	} else {
		combined := units.Add(existing.Value(), recovery.Value())
		blended := units.DivOrZero(
			units.Add(
				units.Mul(existing.Value(), p.YieldRate(stage).Value()),
				units.Mul(recovery.Value(), yield.Value()),
			),
			combined,
		)
		p.SetRecoveryRate(units.New(combined, "%"), stage)
		p.SetYieldRate(units.New(blended, "%"), stage)
	}

	if err := e.recalcSales(e.scope); err != nil {
		return err
	}
	if err := e.recalcPopulationChange(e.scope, e.shouldUseExplicitRecharge(e.scope, state.StreamSales)); err != nil {
		return err
	}
	return e.recalcConsumption(e.scope)
}

// SetInductionRate records how much recycled material adds to demand
// rather than displacing virgin supply. A nil rate returns the stage to
// its default.
func (e *Engine) SetInductionRate(rate *units.Quantity, ym *state.YearMatcher, stage state.RecoveryStage) error {
	if !e.yearMatches(ym) {
		return nil
	}
	if err := requireScope(e.scope, "set induction rate"); err != nil {
		return err
	}

	p, err := e.store.Parameterization(e.scope)
	if err != nil {
		return err
	}

	if rate == nil {
		p.ResetInductionRate(stage)
		return nil
	}

	if !rate.IsPercent() {
		return &Error{
			Code:    ErrCodeBadInductionRate,
			Message: "induction rate must be a percentage, got " + rate.Unit(),
		}
	}
	value := rate.Value()
	if value.Sign() < 0 || value.Cmp(units.MustDecimal("100")) > 0 {
		return &Error{
			Code:    ErrCodeBadInductionRate,
			Message: "induction rate must be between 0% and 100%, got " + rate.String(),
		}
	}

	p.SetInductionRate(*rate, stage)
	return nil
}

// SetIntensity assigns an emissions or energy intensity to the scope and
// refreshes the figures derived from it. The unit's numerator selects the
// parameter: tCO2e and kgCO2e set GHG intensity, kwh sets energy
// intensity.
func (e *Engine) SetIntensity(amount units.Quantity, ym *state.YearMatcher) error {
	if !e.yearMatches(ym) {
		return nil
	}
	if err := requireScope(e.scope, "set intensity"); err != nil {
		return err
	}

	p, err := e.store.Parameterization(e.scope)
	if err != nil {
		return err
	}

	switch {
	case strings.HasPrefix(amount.Unit(), "tCO2e") || strings.HasPrefix(amount.Unit(), "kgCO2e"):
		p.SetGhgIntensity(amount)
		if err := e.recalcRechargeEmissions(e.scope); err != nil {
			return err
		}
		if err := e.recalcEolEmissions(e.scope); err != nil {
			return err
		}
	case strings.HasPrefix(amount.Unit(), "kwh"):
		p.SetEnergyIntensity(amount)
	default:
		return &Error{
			Code: ErrCodeUnsupportedIntensity,
			Message: "intensity must be emissions (tCO2e, kgCO2e) or " +
				"energy (kwh), got " + amount.Unit(),
		}
	}

	return e.recalcConsumption(e.scope)
}

// ChangeStream shifts a stream by a relative amount, optionally displacing
// the realized delta into another stream or substance. Equipment targets
// route through the equipment lifecycle.
func (e *Engine) ChangeStream(name string, amount units.Quantity, ym *state.YearMatcher, displaceTarget *string) error {
	if !e.yearMatches(ym) {
		return nil
	}
	if err := requireScope(e.scope, "change "+name); err != nil {
		return err
	}

	if name == state.StreamEquipment {
		return e.equipmentChange(amount, ym, displaceTarget)
	}
	return e.executeChange(name, amount, ym, displaceTarget)
}

// Cap limits a stream from above, optionally displacing the removed
// amount. Equipment targets route through the equipment lifecycle.
func (e *Engine) Cap(name string, amount units.Quantity, ym *state.YearMatcher, displaceTarget *string) error {
	if !e.yearMatches(ym) {
		return nil
	}
	if err := requireScope(e.scope, "cap "+name); err != nil {
		return err
	}

	if name == state.StreamEquipment {
		return e.equipmentCap(amount, ym, displaceTarget)
	}
	return e.executeLimit(name, amount, ym, displaceTarget, limitCap)
}

// Floor limits a stream from below, optionally displacing the added
// amount. Equipment targets route through the equipment lifecycle.
func (e *Engine) Floor(name string, amount units.Quantity, ym *state.YearMatcher, displaceTarget *string) error {
	if !e.yearMatches(ym) {
		return nil
	}
	if err := requireScope(e.scope, "floor "+name); err != nil {
		return err
	}

	if name == state.StreamEquipment {
		return e.equipmentFloor(amount, ym, displaceTarget)
	}
	return e.executeLimit(name, amount, ym, displaceTarget, limitFloor)
}

// inScope runs fn with the engine positioned at another scope and restores
// the original scope on every exit path.
func (e *Engine) inScope(target state.Scope, fn func() error) error {
	original := e.scope
	defer func() { e.scope = original }()

	e.SetStanza(target.Stanza())
	e.SetApplication(target.Application())
	if err := e.SetSubstance(target.Substance(), false); err != nil {
		return err
	}
	return fn()
}

// inSubstance runs fn with the scope's substance switched and restores the
// original substance on every exit path. The target substance must already
// be registered.
func (e *Engine) inSubstance(substance string, fn func() error) error {
	original := e.scope
	defer func() { e.scope = original }()

	if err := e.SetSubstance(substance, true); err != nil {
		return err
	}
	return fn()
}
