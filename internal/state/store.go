package state

import (
	"errors"
	"sort"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/stratosim/internal/units"
)

// baseChangeTolerance is the threshold below which a priorEquipment write
// is treated as unchanged and captured bases are left alone.
var baseChangeTolerance = units.MustDecimal("0.0001")

// Store holds stream values and parameterizations for every registered
// application and substance pair in one scenario trial.
//
// Streams store in base units. Sales, recycle, and induction are virtual:
// reads aggregate their components and writes distribute across them.
type Store struct {
	substances  map[string]*Parameterization
	streams     map[string]units.Quantity
	stateGetter *units.Overriding
	conv        *units.Converter
	currentYear int
}

// NewStore creates an empty store. The getter and converter must be the
// same pair the engine uses so conversions see live stream context.
func NewStore(stateGetter *units.Overriding, conv *units.Converter) *Store {
	return &Store{
		substances:  make(map[string]*Parameterization),
		streams:     make(map[string]units.Quantity),
		stateGetter: stateGetter,
		conv:        conv,
	}
}

func scopeKey(key UseKey) string {
	return key.Application() + "\t" + key.Substance()
}

func streamKey(key UseKey, name string) string {
	return scopeKey(key) + "\t" + name
}

// RegisteredSubstances returns every application and substance pair seen
// so far, sorted for deterministic iteration.
func (s *Store) RegisteredSubstances() []SubstanceID {
	out := make([]SubstanceID, 0, len(s.substances))
	for key := range s.substances {
		parts := strings.SplitN(key, "\t", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		out = append(out, SubstanceID{Application: parts[0], Substance: parts[1]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Application != out[j].Application {
			return out[i].Application < out[j].Application
		}
		return out[i].Substance < out[j].Substance
	})
	return out
}

// HasSubstance reports whether the pair has been registered.
func (s *Store) HasSubstance(key UseKey) bool {
	_, ok := s.substances[scopeKey(key)]
	return ok
}

// EnsureSubstance registers the pair if needed, seeding every stream at
// zero in its base units.
func (s *Store) EnsureSubstance(key UseKey) {
	sk := scopeKey(key)
	if _, ok := s.substances[sk]; ok {
		return
	}
	s.substances[sk] = NewParameterization()

	for name, unit := range streamBaseUnits {
		switch name {
		case StreamSales, StreamRecycle, StreamInduction:
			// Virtual streams have no storage of their own.
			continue
		}
		s.streams[streamKey(key, name)] = units.Zero(unit)
	}
}

// Parameterization returns the settings for a registered pair.
func (s *Store) Parameterization(key UseKey) (*Parameterization, error) {
	p, ok := s.substances[scopeKey(key)]
	if !ok {
		return nil, &Error{
			Code:        ErrCodeUnknownSubstance,
			Message:     "not a known application substance pair",
			Application: key.Application(),
			Substance:   key.Substance(),
		}
	}
	return p, nil
}

// Apply records a pre-computed stream write, routing it through sales
// distribution and recycling displacement as the target stream requires.
func (s *Store) Apply(u Update) error {
	key := u.key
	name := u.stream
	value := u.value

	p, err := s.Parameterization(key)
	if err != nil {
		return err
	}
	if err := ensureStreamKnown(name); err != nil {
		return err
	}
	if err := s.assertStreamEnabled(p, key, name, value); err != nil {
		return err
	}

	if u.invalidatesPrior {
		s.updatePriorEquipmentBase(key, p, name, value)
	}

	switch {
	case !u.subtractRecycling && (name == StreamDomestic || name == StreamImport):
		// Recycling already accounted for upstream.
		s.setSimpleStream(key, name, value)
		return nil
	case name == StreamSales:
		return s.setStreamForSales(key, value)
	case name == StreamDomestic || name == StreamImport:
		return s.setStreamSalesSubstream(key, name, value, u.distribution)
	case name == StreamRecycle:
		return s.setStreamForRecycle(key, value)
	case isSettingVolumeByUnits(name, value):
		return s.setStreamForSalesWithUnits(key, p, name, value)
	default:
		s.setSimpleStream(key, name, value)
		return nil
	}
}

// isSettingVolumeByUnits reports whether a sales component is being set
// in equipment units rather than volume.
func isSettingVolumeByUnits(name string, value units.Quantity) bool {
	isSalesComponent := name == StreamDomestic || name == StreamImport || name == StreamSales
	return isSalesComponent && strings.HasPrefix(value.Unit(), "unit")
}

// setSimpleStream converts a value to the stream's base units and stores
// it directly.
func (s *Store) setSimpleStream(key UseKey, name string, value units.Quantity) {
	converted := s.conv.Convert(value, streamBaseUnits[name])
	s.streams[streamKey(key, name)] = converted
}

// setStreamForSales distributes a total sales volume between domestic and
// import after subtracting the recycled share, which needs no virgin
// supply.
func (s *Store) setStreamForSales(key UseKey, value units.Quantity) error {
	amountKg := s.conv.Convert(value, "kg").Value()

	recycleRaw, err := s.Stream(key, StreamRecycle)
	if err != nil {
		return err
	}
	recycleKg := s.conv.Convert(recycleRaw, "kg").Value()

	virginKg := units.Sub(amountKg, recycleKg)
	if virginKg.Sign() < 0 {
		virginKg.SetInt64(0)
	}

	dist, err := s.Distribution(key, false)
	if err != nil {
		return err
	}

	domestic := units.Mul(virginKg, dist.PercentDomestic())
	imported := units.Mul(virginKg, dist.PercentImport())

	s.setSimpleStream(key, StreamDomestic, units.New(domestic, "kg"))
	s.setSimpleStream(key, StreamImport, units.New(imported, "kg"))
	return nil
}

// setStreamSalesSubstream writes one sales substream net of its
// proportional share of recycling.
func (s *Store) setStreamSalesSubstream(key UseKey, name string, value units.Quantity, dist *Distribution) error {
	amountKg := s.conv.Convert(value, "kg").Value()

	if !s.HasStreamsEnabled(key) {
		return &Error{
			Code: ErrCodeNoStreamsEnabled,
			Message: "cannot set sales stream: no streams have been " +
				"enabled; set " + name + " or another stream before " +
				"operations that require sales recalculation",
			Application: key.Application(),
			Substance:   key.Substance(),
		}
	}

	recycleRaw, err := s.Stream(key, StreamRecycle)
	if err != nil {
		return err
	}
	recycleKg := s.conv.Convert(recycleRaw, "kg").Value()

	var useDist Distribution
	if dist != nil {
		useDist = *dist
	} else {
		useDist, err = s.Distribution(key, false)
		if err != nil {
			return err
		}
	}

	var share *apd.Decimal
	if name == StreamDomestic {
		share = useDist.PercentDomestic()
	} else {
		share = useDist.PercentImport()
	}

	net := units.Sub(amountKg, units.Mul(recycleKg, share))
	if net.Sign() < 0 {
		net.SetInt64(0)
	}

	s.setSimpleStream(key, name, units.New(net, "kg"))
	return nil
}

// setStreamForRecycle splits a recycle total between the recharge and EOL
// components in proportion to their current sizes, or equally when both
// are empty.
func (s *Store) setStreamForRecycle(key UseKey, value units.Quantity) error {
	totalKg := s.conv.Convert(value, "kg").Value()

	rechargeRaw, err := s.Stream(key, StreamRecycleRecharge)
	if err != nil {
		return err
	}
	eolRaw, err := s.Stream(key, StreamRecycleEol)
	if err != nil {
		return err
	}

	rechargeKg := s.conv.Convert(rechargeRaw, "kg").Value()
	eolKg := s.conv.Convert(eolRaw, "kg").Value()
	existing := units.Add(rechargeKg, eolKg)

	var newRecharge, newEol *apd.Decimal
	if existing.Sign() == 0 {
		half := units.Div(totalKg, apd.New(2, 0))
		newRecharge = half
		newEol = half
	} else {
		newRecharge = units.Mul(totalKg, units.Div(rechargeKg, existing))
		newEol = units.Mul(totalKg, units.Div(eolKg, existing))
	}

	s.setSimpleStream(key, StreamRecycleRecharge, units.New(newRecharge, "kg"))
	s.setSimpleStream(key, StreamRecycleEol, units.New(newEol, "kg"))
	return nil
}

// setStreamForSalesWithUnits records a unit-denominated sales write by
// amortizing the scope's initial charge into volume.
func (s *Store) setStreamForSalesWithUnits(key UseKey, p *Parameterization, name string, value units.Quantity) error {
	overriding := units.NewOverriding(s.stateGetter)
	conv := units.NewConverter(overriding)

	initialCharge, err := p.InitialCharge(name)
	if err != nil {
		return err
	}
	if initialCharge.IsZero() {
		return &Error{
			Code:        ErrCodeZeroInitialCharge,
			Message:     "cannot set " + name + " stream with a zero initial charge",
			Application: key.Application(),
			Substance:   key.Substance(),
		}
	}

	chargeConverted := conv.Convert(initialCharge, "kg / unit")
	overriding.SetAmortizedUnitVolume(chargeConverted)

	valueUnits := conv.Convert(value, "units")
	valueKg := conv.Convert(valueUnits, "kg")

	// Recycling displacement was handled by the sales-level write.
	s.streams[streamKey(key, name)] = units.New(valueKg.Value(), "kg")
	return nil
}

// Stream returns the current value of a stream in its base units. Sales,
// recycle, and induction aggregate their components.
func (s *Store) Stream(key UseKey, name string) (units.Quantity, error) {
	if err := ensureStreamKnown(name); err != nil {
		return units.Quantity{}, err
	}

	switch name {
	case StreamSales:
		total := apd.New(0, 0)
		for _, component := range []string{StreamDomestic, StreamImport, StreamRecycle} {
			q, err := s.Stream(key, component)
			if err != nil {
				return units.Quantity{}, err
			}
			total = units.Add(total, s.conv.Convert(q, "kg").Value())
		}
		return units.New(total, "kg"), nil
	case StreamRecycle:
		recharge, err := s.Stream(key, StreamRecycleRecharge)
		if err != nil {
			return units.Quantity{}, err
		}
		eol, err := s.Stream(key, StreamRecycleEol)
		if err != nil {
			return units.Quantity{}, err
		}
		total := units.Add(
			s.conv.Convert(recharge, "kg").Value(),
			s.conv.Convert(eol, "kg").Value(),
		)
		return units.New(total, "kg"), nil
	case StreamInduction:
		return s.TotalInduction(key)
	default:
		q, ok := s.streams[streamKey(key, name)]
		if !ok {
			return units.Quantity{}, &Error{
				Code:        ErrCodeUnknownSubstance,
				Message:     "not a known application substance pair",
				Application: key.Application(),
				Substance:   key.Substance(),
			}
		}
		return q, nil
	}
}

// IsKnownStream reports whether a concrete stream slot exists for the
// pair.
func (s *Store) IsKnownStream(key UseKey, name string) bool {
	_, ok := s.streams[streamKey(key, name)]
	return ok
}

// InductionStream returns the induction volume for one recovery stage.
func (s *Store) InductionStream(key UseKey, stage RecoveryStage) (units.Quantity, error) {
	return s.Stream(key, inductionStreamName(stage))
}

// TotalInduction returns induction across both recovery stages in kg.
func (s *Store) TotalInduction(key UseKey) (units.Quantity, error) {
	eol, err := s.Stream(key, StreamInductionEol)
	if err != nil {
		return units.Quantity{}, err
	}
	recharge, err := s.Stream(key, StreamInductionRecharge)
	if err != nil {
		return units.Quantity{}, err
	}
	total := units.Add(
		s.conv.Convert(eol, "kg").Value(),
		s.conv.Convert(recharge, "kg").Value(),
	)
	return units.New(total, "kg"), nil
}

func inductionStreamName(stage RecoveryStage) string {
	if stage == StageEol {
		return StreamInductionEol
	}
	return StreamInductionRecharge
}

// Distribution builds a sales distribution from the pair's current stream
// levels and enabled flags. Most callers exclude exports so caps and
// recharge act only on supply streams.
func (s *Store) Distribution(key UseKey, includeExports bool) (Distribution, error) {
	p, err := s.Parameterization(key)
	if err != nil {
		return Distribution{}, err
	}

	domestic, err := s.Stream(key, StreamDomestic)
	if err != nil {
		return Distribution{}, err
	}
	imported, err := s.Stream(key, StreamImport)
	if err != nil {
		return Distribution{}, err
	}
	exported, err := s.Stream(key, StreamExport)
	if err != nil {
		return Distribution{}, err
	}

	dist, err := NewDistribution(DistributionInputs{
		DomesticKg:      s.conv.Convert(domestic, "kg").Value(),
		ImportKg:        s.conv.Convert(imported, "kg").Value(),
		ExportKg:        s.conv.Convert(exported, "kg").Value(),
		DomesticEnabled: p.HasStreamBeenEnabled(StreamDomestic),
		ImportEnabled:   p.HasStreamBeenEnabled(StreamImport),
		ExportEnabled:   p.HasStreamBeenEnabled(StreamExport),
		IncludeExports:  includeExports,
	})
	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			se.Application = key.Application()
			se.Substance = key.Substance()
		}
		return Distribution{}, err
	}
	return dist, nil
}

// HasStreamsEnabled reports whether any sales stream has been enabled for
// the pair.
func (s *Store) HasStreamsEnabled(key UseKey) bool {
	p, err := s.Parameterization(key)
	if err != nil {
		return false
	}
	return p.HasStreamBeenEnabled(StreamDomestic) ||
		p.HasStreamBeenEnabled(StreamImport) ||
		p.HasStreamBeenEnabled(StreamExport)
}

// CurrentYear returns the simulation year the store is positioned at.
func (s *Store) CurrentYear() int { return s.currentYear }

// SetCurrentYear positions the store at a year without running the year
// transition.
func (s *Store) SetCurrentYear(year int) { s.currentYear = year }

// IncrementYear advances to the next year: populations roll into their
// prior slots, equipment age re-averages, per-step parameters reset, and
// recycling and induction redistribute so sales baselines carry over
// without cross-year drift.
func (s *Store) IncrementYear() error {
	s.currentYear++

	for _, id := range s.RegisteredSubstances() {
		key := NewSimpleUseKey(id.Application, id.Substance)

		equipment, err := s.Stream(key, StreamEquipment)
		if err != nil {
			return err
		}
		s.setSimpleStream(key, StreamPriorEquipment, equipment)

		retired, err := s.Stream(key, StreamRetired)
		if err != nil {
			return err
		}
		s.setSimpleStream(key, StreamPriorRetired, retired)

		if err := s.rollEquipmentAge(key); err != nil {
			return err
		}
	}

	for _, p := range s.substances {
		p.ResetStateAtTimestep()
	}

	// Return recycling to sales baselines before clearing so the reduced
	// virgin supply does not compound into a cross-year deficit.
	if err := s.redistributeRecyclingToSales(); err != nil {
		return err
	}

	// Likewise subtract induction so the inflated baseline does not
	// compound into a cross-year surplus.
	if err := s.redistributeInductionFromSales(); err != nil {
		return err
	}

	for _, id := range s.RegisteredSubstances() {
		key := NewSimpleUseKey(id.Application, id.Substance)
		for _, name := range []string{
			StreamRecycleRecharge, StreamRecycleEol,
			StreamInductionEol, StreamInductionRecharge,
		} {
			s.setSimpleStream(key, name, units.Zero("kg"))
		}
	}
	return nil
}

// rollEquipmentAge recomputes average equipment age as a weighted blend
// of the surviving fleet, one year older, and this year's additions at
// age one.
func (s *Store) rollEquipmentAge(key UseKey) error {
	prior, err := s.Stream(key, StreamPriorEquipment)
	if err != nil {
		return err
	}
	current, err := s.Stream(key, StreamEquipment)
	if err != nil {
		return err
	}
	age, err := s.Stream(key, StreamAge)
	if err != nil {
		return err
	}

	priorUnits := s.conv.Convert(prior, "units").Value()
	currentUnits := s.conv.Convert(current, "units").Value()

	addedWeight := units.Sub(currentUnits, priorUnits)
	if addedWeight.Sign() < 0 {
		addedWeight.SetInt64(0)
	}

	priorAgeYears := units.Add(age.Value(), apd.New(1, 0))
	weightedSum := units.Add(
		units.Mul(priorAgeYears, priorUnits),
		addedWeight,
	)
	totalWeight := units.Add(priorUnits, addedWeight)

	newAge := units.DivOrZero(weightedSum, totalWeight)
	s.setSimpleStream(key, StreamAge, units.New(newAge, "years"))
	return nil
}

// redistributeRecyclingToSales adds the year's recycling back to the
// virgin sales streams for scopes with recorded sales intent, preserving
// the user's baseline for the next year.
func (s *Store) redistributeRecyclingToSales() error {
	for _, id := range s.RegisteredSubstances() {
		key := NewSimpleUseKey(id.Application, id.Substance)
		if !s.HasStreamsEnabled(key) {
			continue
		}

		p, err := s.Parameterization(key)
		if err != nil {
			return err
		}
		intentRecorded := p.HasLastSpecifiedValue(StreamSales) ||
			p.HasLastSpecifiedValue(StreamDomestic) ||
			p.HasLastSpecifiedValue(StreamImport)
		if !intentRecorded {
			continue
		}

		recycle, err := s.Stream(key, StreamRecycle)
		if err != nil {
			return err
		}
		recycleKg := s.conv.Convert(recycle, "kg").Value()
		if recycleKg.Sign() <= 0 {
			continue
		}

		dist, err := s.Distribution(key, false)
		if err != nil {
			return err
		}

		if err := s.shiftSupplyStreams(key, recycleKg, dist, false); err != nil {
			return err
		}
	}
	return nil
}

// redistributeInductionFromSales subtracts the year's induced demand from
// the virgin sales streams so inflated baselines do not carry over.
func (s *Store) redistributeInductionFromSales() error {
	for _, id := range s.RegisteredSubstances() {
		key := NewSimpleUseKey(id.Application, id.Substance)
		if !s.HasStreamsEnabled(key) {
			continue
		}

		induction, err := s.TotalInduction(key)
		if err != nil {
			return err
		}
		inductionKg := s.conv.Convert(induction, "kg").Value()
		if inductionKg.Sign() <= 0 {
			continue
		}

		dist, err := s.Distribution(key, false)
		if err != nil {
			return err
		}

		if err := s.shiftSupplyStreams(key, inductionKg, dist, true); err != nil {
			return err
		}
	}
	return nil
}

// shiftSupplyStreams adds or subtracts an amountKg across domestic and
// import in proportion to the distribution, clamping at zero when
// subtracting.
func (s *Store) shiftSupplyStreams(key UseKey, amountKg *apd.Decimal, dist Distribution, subtract bool) error {
	domestic, err := s.Stream(key, StreamDomestic)
	if err != nil {
		return err
	}
	imported, err := s.Stream(key, StreamImport)
	if err != nil {
		return err
	}

	domesticKg := s.conv.Convert(domestic, "kg").Value()
	importKg := s.conv.Convert(imported, "kg").Value()

	domesticDelta := units.Mul(amountKg, dist.PercentDomestic())
	importDelta := units.Mul(amountKg, dist.PercentImport())

	var newDomestic, newImport *apd.Decimal
	if subtract {
		newDomestic = units.Sub(domesticKg, domesticDelta)
		newImport = units.Sub(importKg, importDelta)
		if newDomestic.Sign() < 0 {
			newDomestic.SetInt64(0)
		}
		if newImport.Sign() < 0 {
			newImport.SetInt64(0)
		}
	} else {
		newDomestic = units.Add(domesticKg, domesticDelta)
		newImport = units.Add(importKg, importDelta)
	}

	s.setSimpleStream(key, StreamDomestic, units.New(newDomestic, "kg"))
	s.setSimpleStream(key, StreamImport, units.New(newImport, "kg"))
	return nil
}

// assertStreamEnabled rejects non-zero writes to supply streams that were
// never enabled. Zero writes pass so disabled scopes can be cleared.
func (s *Store) assertStreamEnabled(p *Parameterization, key UseKey, name string, value units.Quantity) error {
	switch name {
	case StreamDomestic, StreamImport, StreamExport:
	default:
		return nil
	}
	if value.IsZero() {
		return nil
	}
	if p.HasStreamBeenEnabled(name) {
		return nil
	}
	return &Error{
		Code: ErrCodeStreamNotEnabled,
		Message: "stream " + name + " has not been enabled; enable it " +
			"before setting a non-zero value",
		Application: key.Application(),
		Substance:   key.Substance(),
	}
}

func ensureStreamKnown(name string) error {
	if !IsStreamName(name) {
		return &Error{
			Code:    ErrCodeUnknownStream,
			Message: "unknown stream: " + name,
		}
	}
	return nil
}

// updatePriorEquipmentBase rescales captured retirement and recharge
// bases when priorEquipment is manually modified, preserving cumulative
// semantics against the new population.
func (s *Store) updatePriorEquipmentBase(key UseKey, p *Parameterization, name string, value units.Quantity) {
	if name != StreamPriorEquipment {
		return
	}

	newPriorUnits := s.conv.Convert(value, "units")

	retireBase, retireActive := p.RetirementBasePopulation()
	rechargeBase, rechargeActive := p.RechargeBasePopulation()
	if !retireActive && !rechargeActive {
		return
	}

	currentPrior, err := s.Stream(key, StreamPriorEquipment)
	if err != nil {
		return
	}
	currentUnits := s.conv.Convert(currentPrior, "units").Value()

	diff := units.Sub(currentUnits, newPriorUnits.Value())
	diff.Abs(diff)
	if diff.Cmp(baseChangeTolerance) <= 0 {
		return
	}

	if retireActive {
		updateRetireBase(p, newPriorUnits, retireBase)
	}
	if rechargeActive {
		updateRechargeBase(p, newPriorUnits, rechargeBase)
	}
}

// updateRetireBase keeps the already-retired percentage constant by
// scaling the applied amount to the new base.
func updateRetireBase(p *Parameterization, newPriorUnits units.Quantity, retireBase units.Quantity) {
	if retireBase.IsZero() {
		p.SetRetirementBasePopulation(newPriorUnits)
		p.SetAppliedRetirementAmount(units.Zero("units"))
		return
	}

	applied := p.AppliedRetirementAmount()
	percent := units.Div(applied.Value(), retireBase.Value())
	newApplied := units.Mul(newPriorUnits.Value(), percent)

	p.SetRetirementBasePopulation(newPriorUnits)
	p.SetAppliedRetirementAmount(units.New(newApplied, "units"))
}

// updateRechargeBase scales both the recharge base and the applied kg by
// the ratio of new to old base.
func updateRechargeBase(p *Parameterization, newPriorUnits units.Quantity, rechargeBase units.Quantity) {
	if rechargeBase.IsZero() {
		p.SetRechargeBasePopulation(newPriorUnits)
		p.SetAppliedRechargeAmount(units.Zero("kg"))
		return
	}

	applied := p.AppliedRechargeAmount()
	ratio := units.Div(newPriorUnits.Value(), rechargeBase.Value())
	newApplied := units.Mul(applied.Value(), ratio)

	p.SetRechargeBasePopulation(newPriorUnits)
	p.SetAppliedRechargeAmount(units.New(newApplied, "kg"))
}
