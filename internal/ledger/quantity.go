package ledger

import (
	"fmt"
	"math"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// QuantityScale is the number of Quantity units per whole item unit.
const QuantityScale = 1000

// MaxQuantity bounds every quantity and running balance: one trillion units.
// Products of bounded quantities stay far from the int64 limits.
const MaxQuantity Quantity = 1_000_000_000_000 * QuantityScale

// Quantity is an exact amount in thousandths of an item's unit.
// 2.5 kg is Quantity(2500).
type Quantity int64

// Money is an amount in cents.
type Money int64

var decimalCtx = apd.BaseContext.WithPrecision(40)

// arithCtx multiplies and divides int64 operands without losing digits and
// rounds ties away from zero.
var arithCtx = func() *apd.Context {
	c := apd.BaseContext.WithPrecision(60)
	c.Rounding = apd.RoundHalfUp
	return c
}()

// ParseQuantity parses decimal text such as "2.5" or "-0.125".
// More than three decimal places is an error, not a rounding.
func ParseQuantity(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, NewValidationError("quantity is required")
	}
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return 0, NewValidationError(fmt.Sprintf("invalid quantity %q", s))
	}
	if d.Form != apd.Finite {
		return 0, NewValidationError(fmt.Sprintf("invalid quantity %q", s))
	}

	// Scale by 10^3 and require the result to be integral.
	d.Exponent += 3
	var scaled apd.Decimal
	cond, err := decimalCtx.Quantize(&scaled, d, 0)
	if err != nil {
		return 0, NewValidationError(fmt.Sprintf("invalid quantity %q", s))
	}
	if cond.Inexact() {
		return 0, NewValidationError(fmt.Sprintf("quantity %q has more than 3 decimal places", s))
	}
	v, err := scaled.Int64()
	if err != nil || Quantity(v).Abs() > MaxQuantity {
		return 0, NewValidationError(fmt.Sprintf("quantity %q out of range (max %s)", s, MaxQuantity))
	}
	return Quantity(v), nil
}

// MustParseQuantity is like ParseQuantity but panics on error.
// Use only in tests or with constant input.
func MustParseQuantity(s string) Quantity {
	q, err := ParseQuantity(s)
	if err != nil {
		panic(err)
	}
	return q
}

// Units returns a Quantity of n whole units.
func Units(n int64) Quantity {
	return Quantity(n * QuantityScale)
}

// String renders the shortest exact decimal form ("2.5", "-0.125", "3").
func (q Quantity) String() string {
	d := apd.New(int64(q), -3)
	var reduced apd.Decimal
	reduced.Reduce(d)
	return reduced.Text('f')
}

// Abs returns |q|. The most negative Quantity maps to the largest one.
func (q Quantity) Abs() Quantity {
	if q == math.MinInt64 {
		return math.MaxInt64
	}
	if q < 0 {
		return -q
	}
	return q
}

// InRange reports whether |q| is at most MaxQuantity.
func (q Quantity) InRange() bool {
	return q.Abs() <= MaxQuantity
}

// MarshalText encodes the quantity as decimal text for JSON and YAML.
func (q Quantity) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalText parses decimal text.
func (q *Quantity) UnmarshalText(b []byte) error {
	v, err := ParseQuantity(string(b))
	if err != nil {
		return err
	}
	*q = v
	return nil
}

// Value returns the monetary value of q at costCents per whole unit,
// rounded half away from zero. Results beyond the int64 range saturate.
func (q Quantity) Value(costCents Money) Money {
	return Money(mulDivRound(int64(q), int64(costCents), QuantityScale))
}

// Scale returns q * num / den rounded half away from zero to the nearest
// thousandth. Used to scale recipe ingredients to a batch size.
func (q Quantity) Scale(num, den Quantity) Quantity {
	if den == 0 {
		return 0
	}
	return Quantity(mulDivRound(int64(q), int64(num), int64(den)))
}

// BasisPoints returns part/whole in basis points (1/100 of a percent),
// rounded half away from zero. whole must be non-zero. Ratios beyond the
// int64 range saturate, which keeps tolerance comparisons correct.
func BasisPoints(part, whole Quantity) int64 {
	return mulDivRound(int64(part), 10000, int64(whole))
}

// mulDivRound returns a*b/d rounded half away from zero, computed exactly
// and clamped to the int64 range.
func mulDivRound(a, b, d int64) int64 {
	if d == 0 {
		return 0
	}
	var prod, quo, rounded apd.Decimal
	if _, err := arithCtx.Mul(&prod, apd.New(a, 0), apd.New(b, 0)); err != nil {
		panic(fmt.Sprintf("ledger: multiply %d by %d: %v", a, b, err))
	}
	if _, err := arithCtx.Quo(&quo, &prod, apd.New(d, 0)); err != nil {
		panic(fmt.Sprintf("ledger: divide by %d: %v", d, err))
	}
	if _, err := arithCtx.RoundToIntegralValue(&rounded, &quo); err != nil {
		panic(fmt.Sprintf("ledger: round: %v", err))
	}
	v, err := rounded.Int64()
	if err != nil {
		if rounded.Negative {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return v
}
