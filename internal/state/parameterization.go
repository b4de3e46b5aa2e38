package state

import (
	"strings"

	"github.com/roach88/stratosim/internal/units"
)

// RecoveryStage identifies where recovered refrigerant comes from:
// servicing events or end-of-life teardown. Recovery, yield, and induction
// rates track independently per stage.
type RecoveryStage int

const (
	// StageRecharge recovers refrigerant captured during servicing.
	StageRecharge RecoveryStage = iota

	// StageEol recovers refrigerant reclaimed at equipment end of life.
	StageEol
)

// String returns the stage name used in stream identifiers.
func (s RecoveryStage) String() string {
	if s == StageEol {
		return "eol"
	}
	return "recharge"
}

// Parameterization holds the per-scope settings that drive recalculation:
// intensities, recharge and recovery rates, retirement, carry-over intent,
// and the cumulative bases captured within a timestep.
type Parameterization struct {
	ghgIntensity    units.Quantity
	energyIntensity units.Quantity
	initialCharge   map[string]units.Quantity

	rechargePopulation units.Quantity
	rechargeIntensity  units.Quantity

	recoveryRateRecharge units.Quantity
	yieldRateRecharge    units.Quantity
	recoveryRateEol      units.Quantity
	yieldRateEol         units.Quantity

	inductionRateRecharge units.Quantity
	inductionRateEol      units.Quantity
	inductionSetRecharge  bool
	inductionSetEol       bool

	retirementRate units.Quantity

	lastSpecified         map[string]units.Quantity
	enabledStreams        map[string]bool
	salesIntentFreshlySet bool

	bases priorEquipmentBases
}

// NewParameterization creates a parameterization with default values:
// zero intensities, unit initial charges, zero rates, and full induction.
func NewParameterization() *Parameterization {
	p := &Parameterization{
		initialCharge:  make(map[string]units.Quantity),
		lastSpecified:  make(map[string]units.Quantity),
		enabledStreams: make(map[string]bool),
	}

	p.ghgIntensity = units.Zero("tCO2e / kg")
	p.energyIntensity = units.Zero("kwh / kg")
	p.initialCharge[StreamDomestic] = units.FromInt64(1, "kg / unit")
	p.initialCharge[StreamImport] = units.FromInt64(1, "kg / unit")

	p.rechargePopulation = units.Zero("%")
	p.rechargeIntensity = units.Zero("kg / unit")
	p.recoveryRateRecharge = units.Zero("%")
	p.yieldRateRecharge = units.Zero("%")
	p.recoveryRateEol = units.Zero("%")
	p.yieldRateEol = units.Zero("%")
	p.retirementRate = units.Zero("%")
	p.inductionRateRecharge = defaultInductionRate()
	p.inductionRateEol = defaultInductionRate()

	p.bases = newPriorEquipmentBases()
	return p
}

// Induction defaults to full induced demand between steps.
func defaultInductionRate() units.Quantity {
	return units.FromInt64(100, "%")
}

// GhgIntensity returns the greenhouse gas intensity.
func (p *Parameterization) GhgIntensity() units.Quantity { return p.ghgIntensity }

// SetGhgIntensity sets the greenhouse gas intensity.
func (p *Parameterization) SetGhgIntensity(q units.Quantity) { p.ghgIntensity = q }

// EnergyIntensity returns the energy intensity.
func (p *Parameterization) EnergyIntensity() units.Quantity { return p.energyIntensity }

// SetEnergyIntensity sets the energy intensity.
func (p *Parameterization) SetEnergyIntensity(q units.Quantity) { p.energyIntensity = q }

// InitialCharge returns the initial charge for a sales substream. Unset
// substreams report a zero charge.
func (p *Parameterization) InitialCharge(stream string) (units.Quantity, error) {
	if err := ensureSalesSubstream(stream); err != nil {
		return units.Quantity{}, err
	}
	q, ok := p.initialCharge[stream]
	if !ok {
		return units.Zero("kg / unit"), nil
	}
	return q, nil
}

// SetInitialCharge sets the initial charge for a sales substream.
func (p *Parameterization) SetInitialCharge(stream string, q units.Quantity) error {
	if err := ensureSalesSubstream(stream); err != nil {
		return err
	}
	p.initialCharge[stream] = q
	return nil
}

func ensureSalesSubstream(stream string) error {
	if !IsSalesSubstream(stream) {
		return &Error{
			Code:    ErrCodeNotSalesSubstream,
			Message: "must address a sales substream, got " + stream,
		}
	}
	return nil
}

// RechargePopulation returns the accumulated recharge population rate.
func (p *Parameterization) RechargePopulation() units.Quantity { return p.rechargePopulation }

// SetRechargePopulation overwrites the recharge population rate.
func (p *Parameterization) SetRechargePopulation(q units.Quantity) { p.rechargePopulation = q }

// RechargeIntensity returns the accumulated recharge intensity.
func (p *Parameterization) RechargeIntensity() units.Quantity { return p.rechargeIntensity }

// SetRechargeIntensity overwrites the recharge intensity.
func (p *Parameterization) SetRechargeIntensity(q units.Quantity) { p.rechargeIntensity = q }

// AccumulateRecharge folds another recharge command into the step's
// totals. Population rates add; intensity becomes a weighted average with
// absolute rates as weights so negative adjustments still weight
// correctly. With no prior population the new intensity wins outright.
func (p *Parameterization) AccumulateRecharge(population, intensity units.Quantity) {
	currentWeight := p.rechargePopulation.Value()
	currentWeight.Abs(currentWeight)
	addedWeight := population.Value()
	addedWeight.Abs(addedWeight)

	weighted := intensity.Value()
	if currentWeight.Sign() != 0 {
		total := units.Add(currentWeight, addedWeight)
		weighted = units.Div(
			units.Add(
				units.Mul(currentWeight, p.rechargeIntensity.Value()),
				units.Mul(addedWeight, intensity.Value()),
			),
			total,
		)
	}

	accumulated := units.Add(p.rechargePopulation.Value(), population.Value())
	p.rechargePopulation = units.New(accumulated, "%")
	p.rechargeIntensity = units.New(weighted, "kg / unit")
}

// RecoveryRate returns the recovery rate for a stage.
func (p *Parameterization) RecoveryRate(stage RecoveryStage) units.Quantity {
	if stage == StageEol {
		return p.recoveryRateEol
	}
	return p.recoveryRateRecharge
}

// SetRecoveryRate sets the recovery rate for a stage.
func (p *Parameterization) SetRecoveryRate(q units.Quantity, stage RecoveryStage) {
	if stage == StageEol {
		p.recoveryRateEol = q
		return
	}
	p.recoveryRateRecharge = q
}

// YieldRate returns the recycling yield rate for a stage.
func (p *Parameterization) YieldRate(stage RecoveryStage) units.Quantity {
	if stage == StageEol {
		return p.yieldRateEol
	}
	return p.yieldRateRecharge
}

// SetYieldRate sets the recycling yield rate for a stage.
func (p *Parameterization) SetYieldRate(q units.Quantity, stage RecoveryStage) {
	if stage == StageEol {
		p.yieldRateEol = q
		return
	}
	p.yieldRateRecharge = q
}

// InductionRate returns the induction rate for a stage.
func (p *Parameterization) InductionRate(stage RecoveryStage) units.Quantity {
	if stage == StageEol {
		return p.inductionRateEol
	}
	return p.inductionRateRecharge
}

// SetInductionRate sets the induction rate for a stage and marks it as
// deliberately chosen for the step.
func (p *Parameterization) SetInductionRate(q units.Quantity, stage RecoveryStage) {
	if stage == StageEol {
		p.inductionRateEol = q
		p.inductionSetEol = true
		return
	}
	p.inductionRateRecharge = q
	p.inductionSetRecharge = true
}

// ResetInductionRate returns a stage to the full-induction default and
// clears the deliberate-choice marker.
func (p *Parameterization) ResetInductionRate(stage RecoveryStage) {
	if stage == StageEol {
		p.inductionRateEol = defaultInductionRate()
		p.inductionSetEol = false
		return
	}
	p.inductionRateRecharge = defaultInductionRate()
	p.inductionSetRecharge = false
}

// HasInductionRateSet reports whether the stage's induction rate was
// deliberately chosen this step. Unit-denominated sales intents treat an
// unset rate as zero induction rather than the volume default.
func (p *Parameterization) HasInductionRateSet(stage RecoveryStage) bool {
	if stage == StageEol {
		return p.inductionSetEol
	}
	return p.inductionSetRecharge
}

// RetirementRate returns the accumulated retirement rate for the step.
func (p *Parameterization) RetirementRate() units.Quantity { return p.retirementRate }

// SetRetirementRate replaces the accumulated retirement rate for the
// step. Equipment-level operations use this to pin retirement to an exact
// fraction of the prior population.
func (p *Parameterization) SetRetirementRate(q units.Quantity) {
	p.retirementRate = q
}

// AddRetirementRate accumulates a retirement rate so multiple retire
// commands within a year compound. Negative totals clamp to zero.
func (p *Parameterization) AddRetirementRate(q units.Quantity) {
	total := units.Add(p.retirementRate.Value(), q.Value())
	if total.Sign() < 0 {
		total.SetInt64(0)
	}
	p.retirementRate = units.New(total, q.Unit())
}

// SetLastSpecifiedValue records the value and units a stream was last set
// with so carry-over years can honor the user's intent. Percent values are
// relative and never recorded.
func (p *Parameterization) SetLastSpecifiedValue(streamName string, value units.Quantity) {
	if strings.Contains(value.Unit(), "%") {
		return
	}
	p.lastSpecified[streamName] = value

	switch streamName {
	case StreamSales, StreamImport, StreamDomestic:
		p.salesIntentFreshlySet = true
	}
}

// ClearLastSpecifiedValue erases the recorded intent for a stream ahead of
// an explicit overwrite.
func (p *Parameterization) ClearLastSpecifiedValue(streamName string) {
	delete(p.lastSpecified, streamName)
}

// LastSpecifiedValue returns the last recorded intent for a stream.
func (p *Parameterization) LastSpecifiedValue(streamName string) (units.Quantity, bool) {
	q, ok := p.lastSpecified[streamName]
	return q, ok
}

// HasLastSpecifiedValue reports whether intent was recorded for a stream.
func (p *Parameterization) HasLastSpecifiedValue(streamName string) bool {
	_, ok := p.lastSpecified[streamName]
	return ok
}

// MarkStreamAsEnabled records that a stream received a deliberate value.
func (p *Parameterization) MarkStreamAsEnabled(streamName string) {
	p.enabledStreams[streamName] = true
}

// HasStreamBeenEnabled reports whether a stream was ever enabled.
func (p *Parameterization) HasStreamBeenEnabled(streamName string) bool {
	return p.enabledStreams[streamName]
}

// IsSalesIntentFreshlySet reports whether a sales stream intent was set
// during the current processing cycle.
func (p *Parameterization) IsSalesIntentFreshlySet() bool { return p.salesIntentFreshlySet }

// SetSalesIntentFreshlySet overwrites the fresh-intent flag.
func (p *Parameterization) SetSalesIntentFreshlySet(fresh bool) { p.salesIntentFreshlySet = fresh }

// ResetStateAtTimestep clears per-step settings at a year boundary.
// Recovery falls back to 0% because recycling programs do not continue
// unless restated; induction returns to the 100% default; retirement and
// recharge tracking start fresh.
func (p *Parameterization) ResetStateAtTimestep() {
	p.recoveryRateRecharge = units.Zero("%")
	p.recoveryRateEol = units.Zero("%")

	p.inductionRateRecharge = defaultInductionRate()
	p.inductionRateEol = defaultInductionRate()
	p.inductionSetRecharge = false
	p.inductionSetEol = false

	p.retirementRate = units.Zero("%")

	p.rechargePopulation = units.Zero("%")
	p.rechargeIntensity = units.Zero("kg / unit")

	p.bases.reset()
}

// priorEquipmentBases tracks the cumulative retirement and recharge bases
// captured within a single timestep. Bases are captured once per step from
// priorEquipment so repeated commands compound against the same
// population.
type priorEquipmentBases struct {
	retirementBase    *units.Quantity
	appliedRetirement units.Quantity

	hasReplacementThisStep bool
	retireCalculated       bool

	rechargeBase    *units.Quantity
	appliedRecharge units.Quantity

	recyclingCalculated bool
}

func newPriorEquipmentBases() priorEquipmentBases {
	return priorEquipmentBases{
		appliedRetirement: units.Zero("units"),
		appliedRecharge:   units.Zero("kg"),
	}
}

func (b *priorEquipmentBases) reset() {
	*b = newPriorEquipmentBases()
}

// RetirementBasePopulation returns the captured retirement base, if any.
func (p *Parameterization) RetirementBasePopulation() (units.Quantity, bool) {
	if p.bases.retirementBase == nil {
		return units.Quantity{}, false
	}
	return *p.bases.retirementBase, true
}

// SetRetirementBasePopulation captures the retirement base for the step.
func (p *Parameterization) SetRetirementBasePopulation(q units.Quantity) {
	p.bases.retirementBase = &q
}

// AppliedRetirementAmount returns the units already retired this step.
func (p *Parameterization) AppliedRetirementAmount() units.Quantity {
	return p.bases.appliedRetirement
}

// SetAppliedRetirementAmount overwrites the step's retired total.
func (p *Parameterization) SetAppliedRetirementAmount(q units.Quantity) {
	p.bases.appliedRetirement = q
}

// HasReplacementThisStep reports the replacement mode for the step's
// retire commands.
func (p *Parameterization) HasReplacementThisStep() bool {
	return p.bases.hasReplacementThisStep
}

// SetHasReplacementThisStep records the replacement mode for the step.
func (p *Parameterization) SetHasReplacementThisStep(v bool) {
	p.bases.hasReplacementThisStep = v
}

// RetireCalculatedThisStep reports whether retirement already ran this
// step.
func (p *Parameterization) RetireCalculatedThisStep() bool {
	return p.bases.retireCalculated
}

// SetRetireCalculatedThisStep records whether retirement ran this step.
func (p *Parameterization) SetRetireCalculatedThisStep(v bool) {
	p.bases.retireCalculated = v
}

// RechargeBasePopulation returns the captured recharge base, if any.
func (p *Parameterization) RechargeBasePopulation() (units.Quantity, bool) {
	if p.bases.rechargeBase == nil {
		return units.Quantity{}, false
	}
	return *p.bases.rechargeBase, true
}

// SetRechargeBasePopulation captures the recharge base for the step.
func (p *Parameterization) SetRechargeBasePopulation(q units.Quantity) {
	p.bases.rechargeBase = &q
}

// AppliedRechargeAmount returns the kg already recharged this step.
func (p *Parameterization) AppliedRechargeAmount() units.Quantity {
	return p.bases.appliedRecharge
}

// SetAppliedRechargeAmount overwrites the step's recharged total.
func (p *Parameterization) SetAppliedRechargeAmount(q units.Quantity) {
	p.bases.appliedRecharge = q
}

// RecyclingCalculatedThisStep reports whether recycling already ran this
// step.
func (p *Parameterization) RecyclingCalculatedThisStep() bool {
	return p.bases.recyclingCalculated
}

// SetRecyclingCalculatedThisStep records whether recycling ran this step.
func (p *Parameterization) SetRecyclingCalculatedThisStep(v bool) {
	p.bases.recyclingCalculated = v
}
