package units

import (
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Quantity is an immutable value+unit pair, e.g. 100 "kg" or 5 "%".
//
// The zero value is 0 with an empty unit. Quantities constructed by Parse
// keep their original literal text so that values untouched by computation
// can be re-emitted exactly as authored.
type Quantity struct {
	value    apd.Decimal
	unit     string
	original string
}

// New creates a quantity from a decimal value and unit. The value is copied;
// later mutation of the argument does not affect the quantity.
func New(value *apd.Decimal, unit string) Quantity {
	var q Quantity
	q.value.Set(value)
	q.unit = unit
	return q
}

// NewWithText creates a quantity that remembers its original literal text.
func NewWithText(value *apd.Decimal, unit, original string) Quantity {
	q := New(value, unit)
	q.original = original
	return q
}

// FromInt64 creates a quantity from an integer value.
func FromInt64(value int64, unit string) Quantity {
	return New(apd.New(value, 0), unit)
}

// FromFloat creates a quantity from a float64 value. Reserved for boundary
// code (config, reporting); engine math stays in decimals.
func FromFloat(value float64, unit string) Quantity {
	d := new(apd.Decimal)
	if _, err := d.SetFloat64(value); err != nil {
		d.Set(decZero)
	}
	return New(d, unit)
}

// Zero returns a zero quantity in the given unit.
func Zero(unit string) Quantity {
	return Quantity{unit: unit}
}

// Value returns a copy of the numeric value.
func (q Quantity) Value() *apd.Decimal {
	out := new(apd.Decimal)
	out.Set(&q.value)
	return out
}

// Unit returns the unit string as constructed, e.g. "kg / unit".
func (q Quantity) Unit() string {
	return q.unit
}

// OriginalText returns the literal this quantity was parsed from, or "" if
// it was constructed programmatically.
func (q Quantity) OriginalText() string {
	return q.original
}

// IsZero reports whether the value is exactly zero.
func (q Quantity) IsZero() bool {
	return q.value.IsZero()
}

// Sign returns -1, 0, or +1 according to the sign of the value.
func (q Quantity) Sign() int {
	return q.value.Sign()
}

// CmpValue compares numeric values only; callers are responsible for having
// converted both sides to a common unit first.
func (q Quantity) CmpValue(other Quantity) int {
	return q.value.Cmp(&other.value)
}

// Float64 returns the value as a float64 for reporting boundaries.
func (q Quantity) Float64() float64 {
	f, err := q.value.Float64()
	if err != nil {
		return 0
	}
	return f
}

// HasEquipmentUnits reports whether the numerator unit counts equipment
// ("unit" or "units", optionally per year).
func (q Quantity) HasEquipmentUnits() bool {
	num := numeratorOf(normalizeUnit(q.unit))
	return num == "unit" || num == "units"
}

// IsPercent reports whether the unit contains a percentage.
func (q Quantity) IsPercent() bool {
	return strings.Contains(q.unit, "%")
}

// String renders the quantity as "<number> <unit>". When the quantity was
// parsed from text and never recomputed, the original literal is returned.
func (q Quantity) String() string {
	if q.original != "" {
		return q.original
	}
	return Format(q)
}

// normalizeUnit strips spaces so "kg / unit" and "kg/unit" compare equal.
func normalizeUnit(unit string) string {
	return strings.ReplaceAll(unit, " ", "")
}

// numeratorOf returns the part before the first '/', or the whole string.
func numeratorOf(unit string) string {
	if i := strings.IndexByte(unit, '/'); i >= 0 {
		return unit[:i]
	}
	return unit
}

// denominatorOf returns the part after the first '/', or "".
func denominatorOf(unit string) string {
	if i := strings.IndexByte(unit, '/'); i >= 0 {
		return unit[i+1:]
	}
	return ""
}

// Arithmetic helpers shared across the engine. All operate on decimal
// values; quantity-level unit discipline stays with the caller, mirroring
// how the conversion layer is the only place units are interpreted.

// Add returns a+b under the shared context.
func Add(a, b *apd.Decimal) *apd.Decimal { return addDec(a, b) }

// Sub returns a-b under the shared context.
func Sub(a, b *apd.Decimal) *apd.Decimal { return subDec(a, b) }

// Mul returns a*b under the shared context.
func Mul(a, b *apd.Decimal) *apd.Decimal { return mulDec(a, b) }

// Div returns a/b under the shared context and panics on a zero divisor.
func Div(a, b *apd.Decimal) *apd.Decimal { return divDec(a, b) }

// DivOrZero returns a/b, or zero when b is zero.
func DivOrZero(a, b *apd.Decimal) *apd.Decimal { return divOrZero(a, b) }

// Neg returns -a.
func Neg(a *apd.Decimal) *apd.Decimal { return negDec(a) }

// PercentToRatio converts a percentage value (e.g. 85) to a ratio (0.85).
func PercentToRatio(percent *apd.Decimal) *apd.Decimal {
	return divDec(percent, decHundred)
}

// RatioToPercent converts a ratio (e.g. 0.85) to a percentage value (85).
func RatioToPercent(ratio *apd.Decimal) *apd.Decimal {
	return mulDec(ratio, decHundred)
}
