package state

import "github.com/roach88/stratosim/internal/units"

// Update is a pre-computed stream write. It separates the calculation
// that produced a value from the bookkeeping the store applies when
// recording it: recycling displacement, sales distribution, and base
// invalidation.
type Update struct {
	key               UseKey
	stream            string
	value             units.Quantity
	subtractRecycling bool
	distribution      *Distribution
	invalidatesPrior  bool
}

// NewUpdate creates an update for the given scope, stream, and value.
// Recycling displacement defaults on; writers that already accounted for
// recycling switch it off with WithSubtractRecycling.
func NewUpdate(key UseKey, stream string, value units.Quantity) Update {
	return Update{
		key:               key,
		stream:            stream,
		value:             value,
		subtractRecycling: true,
	}
}

// WithSubtractRecycling returns a copy with recycling displacement
// enabled or disabled.
func (u Update) WithSubtractRecycling(subtract bool) Update {
	u.subtractRecycling = subtract
	return u
}

// WithDistribution returns a copy carrying a pre-calculated sales
// distribution instead of deriving one from current stream levels.
func (u Update) WithDistribution(d Distribution) Update {
	u.distribution = &d
	return u
}

// WithInvalidatesPriorEquipment returns a copy that rescales captured
// retirement and recharge bases when the write changes priorEquipment.
// Recalculation writes leave this off to avoid circular invalidation.
func (u Update) WithInvalidatesPriorEquipment(invalidates bool) Update {
	u.invalidatesPrior = invalidates
	return u
}

// Key returns the scope the update applies to.
func (u Update) Key() UseKey { return u.key }

// Stream returns the target stream name.
func (u Update) Stream() string { return u.stream }

// Value returns the value to record.
func (u Update) Value() units.Quantity { return u.value }
