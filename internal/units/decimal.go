package units

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// decCtx is the shared arithmetic context for all engine math.
// 34 digits matches IEEE 754 decimal128; rounding is half-even.
var decCtx = apd.BaseContext.WithPrecision(34)

// Common decimal constants. Never mutate these.
var (
	decZero     = apd.New(0, 0)
	decOne      = apd.New(1, 0)
	decHundred  = apd.New(100, 0)
	decThousand = apd.New(1000, 0)
)

// MustDecimal parses a decimal literal, panicking on malformed input.
// Intended for constants and tests.
func MustDecimal(s string) *apd.Decimal {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("units: bad decimal literal %q: %v", s, err))
	}
	return d
}

func addDec(a, b *apd.Decimal) *apd.Decimal {
	out := new(apd.Decimal)
	if _, err := decCtx.Add(out, a, b); err != nil {
		panic(fmt.Sprintf("units: add: %v", err))
	}
	return out
}

func subDec(a, b *apd.Decimal) *apd.Decimal {
	out := new(apd.Decimal)
	if _, err := decCtx.Sub(out, a, b); err != nil {
		panic(fmt.Sprintf("units: sub: %v", err))
	}
	return out
}

func mulDec(a, b *apd.Decimal) *apd.Decimal {
	out := new(apd.Decimal)
	if _, err := decCtx.Mul(out, a, b); err != nil {
		panic(fmt.Sprintf("units: mul: %v", err))
	}
	return out
}

// divDec divides a by b. Division by zero is a programming error here;
// callers that can legitimately see a zero divisor use divOrZero.
func divDec(a, b *apd.Decimal) *apd.Decimal {
	out := new(apd.Decimal)
	if _, err := decCtx.Quo(out, a, b); err != nil {
		panic(fmt.Sprintf("units: div: %v", err))
	}
	return out
}

// divOrZero divides a by b, returning zero when b is zero. Stream math
// treats an empty reference total as "no contribution" rather than an error.
func divOrZero(a, b *apd.Decimal) *apd.Decimal {
	if b.IsZero() {
		return new(apd.Decimal)
	}
	return divDec(a, b)
}

func negDec(a *apd.Decimal) *apd.Decimal {
	out := new(apd.Decimal)
	out.Neg(a)
	return out
}

func copyDec(a *apd.Decimal) *apd.Decimal {
	out := new(apd.Decimal)
	out.Set(a)
	return out
}
