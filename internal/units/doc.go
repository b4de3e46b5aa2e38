// Package units provides the quantity data model and the contextual unit
// conversion layer for the simulation engine.
//
// A Quantity is an immutable decimal value paired with a unit string such as
// "kg", "units", "%", "kg / unit", or "tCO2e / mt". Quantities parsed from
// text retain their original literal so unchanged values round-trip with
// their input formatting (thousands separators, decimal precision).
//
// A Converter translates quantities between mass, equipment-unit, percentage,
// emissions, energy, and time representations. Conversions that cross
// families (for example kg to units, or % to kg) need contextual facts:
// initial charge per unit, GHG intensity, a population total, or a volume
// total. Those facts come from a StateGetter collaborator, which the engine
// implements against live stream state and tests implement with fixed
// values. An Overriding wrapper allows a caller to pin individual facts
// (population, volume, initial charge) for the duration of one calculation.
//
// All arithmetic uses a single shared apd context with 34-digit precision
// and half-even rounding so that every recalculation path rounds the same
// way.
package units
