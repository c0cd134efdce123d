package currency

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Rounding selects how a whole-coin amount is turned into atomic units.
type Rounding int

const (
	RoundDown Rounding = iota
	RoundUp
	RoundHalfUp
)

// NewBase builds a Base from a unit name and the number of decimals of the
// currency.
func NewBase(unit string, decimals int32) Base {
	return Base{Unit: unit, Atomic: decimal.New(1, decimals)}
}

func (c Config) precision() int32 {
	if c.Precision > 0 {
		return c.Precision
	}
	return DefaultPrecision
}

// ToBase converts atomic units into whole coins, e.g. 5e9 winston -> 0.005 AR.
func (c Config) ToBase(atomic decimal.Decimal) decimal.Decimal {
	return atomic.DivRound(c.Base.Atomic, c.precision())
}

// ToAtomic converts whole coins into atomic units using the given rounding.
func (c Config) ToAtomic(amount decimal.Decimal, r Rounding) decimal.Decimal {
	v := amount.Mul(c.Base.Atomic)
	switch r {
	case RoundUp:
		return v.Ceil()
	case RoundHalfUp:
		return v.Round(0)
	default:
		return v.Floor()
	}
}

// ParseAtomic parses a non-negative atomic amount as returned by the bundler
// or a chain provider. Quoted JSON strings are accepted.
func ParseAtomic(s string) (decimal.Decimal, error) {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid atomic amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid atomic amount %q: negative", s)
	}
	return d, nil
}

// CeilFee rounds a fee quote up to a whole atomic unit.
func CeilFee(fee decimal.Decimal) decimal.Decimal {
	return fee.Ceil()
}
