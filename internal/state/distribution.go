package state

import (
	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/stratosim/internal/units"
)

// Distribution splits a sales total across domestic, import, and export
// streams. Shares are fractions that sum to one (export is zero when
// exports are excluded).
type Distribution struct {
	domestic apd.Decimal
	imports  apd.Decimal
	exports  apd.Decimal
}

// PercentDomestic returns the domestic share as a fraction.
func (d Distribution) PercentDomestic() *apd.Decimal {
	out := new(apd.Decimal)
	out.Set(&d.domestic)
	return out
}

// PercentImport returns the import share as a fraction.
func (d Distribution) PercentImport() *apd.Decimal {
	out := new(apd.Decimal)
	out.Set(&d.imports)
	return out
}

// PercentExport returns the export share as a fraction.
func (d Distribution) PercentExport() *apd.Decimal {
	out := new(apd.Decimal)
	out.Set(&d.exports)
	return out
}

func newDistribution(domestic, imports, exports *apd.Decimal) Distribution {
	var d Distribution
	d.domestic.Set(domestic)
	d.imports.Set(imports)
	d.exports.Set(exports)
	return d
}

// DistributionInputs carries current stream levels in kg plus enabled
// flags for building a Distribution.
type DistributionInputs struct {
	DomesticKg *apd.Decimal
	ImportKg   *apd.Decimal
	ExportKg   *apd.Decimal

	DomesticEnabled bool
	ImportEnabled   bool
	ExportEnabled   bool

	// IncludeExports folds exports into the proportional split. Most
	// callers exclude exports so that caps and recharge act only on
	// supply streams.
	IncludeExports bool
}

// NewDistribution builds a Distribution from current stream levels.
// Non-zero totals split proportionally. Zero totals fall back to the
// enabled flags: a single enabled stream takes everything, several share
// equally. No enabled streams is an error because nothing can absorb the
// allocation.
func NewDistribution(in DistributionInputs) (Distribution, error) {
	zero := apd.New(0, 0)
	one := apd.New(1, 0)

	if !in.IncludeExports {
		total := units.Add(in.DomesticKg, in.ImportKg)
		if total.Sign() > 0 {
			return newDistribution(
				units.Div(in.DomesticKg, total),
				units.Div(in.ImportKg, total),
				zero,
			), nil
		}
		switch {
		case in.DomesticEnabled && !in.ImportEnabled:
			return newDistribution(one, zero, zero), nil
		case in.ImportEnabled && !in.DomesticEnabled:
			return newDistribution(zero, one, zero), nil
		case in.DomesticEnabled && in.ImportEnabled:
			half := units.MustDecimal("0.5")
			return newDistribution(half, half, zero), nil
		default:
			return Distribution{}, &Error{
				Code: ErrCodeNoStreamsEnabled,
				Message: "cannot calculate sales distribution: no streams " +
					"have been enabled; set import or domestic before " +
					"operations that require sales recalculation",
			}
		}
	}

	total := units.Add(units.Add(in.DomesticKg, in.ImportKg), in.ExportKg)
	if total.Sign() > 0 {
		return newDistribution(
			units.Div(in.DomesticKg, total),
			units.Div(in.ImportKg, total),
			units.Div(in.ExportKg, total),
		), nil
	}

	enabled := 0
	for _, on := range []bool{in.DomesticEnabled, in.ImportEnabled, in.ExportEnabled} {
		if on {
			enabled++
		}
	}
	if enabled == 0 {
		return Distribution{}, &Error{
			Code: ErrCodeNoStreamsEnabled,
			Message: "cannot calculate sales distribution: no streams " +
				"have been enabled; set import, domestic, or export before " +
				"operations that require sales recalculation",
		}
	}

	share := units.Div(one, apd.New(int64(enabled), 0))
	pick := func(on bool) *apd.Decimal {
		if on {
			return share
		}
		return zero
	}
	return newDistribution(
		pick(in.DomesticEnabled),
		pick(in.ImportEnabled),
		pick(in.ExportEnabled),
	), nil
}
