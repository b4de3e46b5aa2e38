// Package state tracks per-substance stream values and parameterizations
// for a single scenario within a single trial.
//
// The Store holds every stream (sales volumes, equipment populations,
// emissions totals) keyed by application and substance, plus the
// Parameterization that records intensities, rates, and carry-over intent
// for each pair. Streams are stored in their base units; writes route
// through Update so that sales distribution and recycling displacement
// apply consistently no matter which command produced the write.
package state
