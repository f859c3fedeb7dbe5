package zscore

import "github.com/shopspring/decimal"

const sqrtPrecision = 16

// sqrtDecimal computes a square root entirely in decimal arithmetic via
// Newton's method, avoiding a float64 round-trip on a value that can reach
// an alert's zscore_value field. Negative input (should not occur for a
// variance) returns zero.
func sqrtDecimal(v decimal.Decimal) decimal.Decimal {
	if v.Sign() <= 0 {
		return decimal.Zero
	}
	guess := v
	two := decimal.NewFromInt(2)
	for i := 0; i < 64; i++ {
		next := guess.Add(v.Div(guess)).Div(two)
		next = next.Truncate(sqrtPrecision + 4)
		if next.Sub(guess).Abs().LessThan(decimal.New(1, -sqrtPrecision)) {
			guess = next
			break
		}
		guess = next
	}
	return guess.Truncate(sqrtPrecision)
}
