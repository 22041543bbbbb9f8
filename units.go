package custody

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var maxUnits = decimal.NewFromBigInt(new(big.Int).SetUint64(^uint64(0)), 0)

// FormatUnits will format an integer amount of units as a decimal number with
// the specified number of decimals.
func FormatUnits(value uint64, decimals int32) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(value), -decimals).StringFixed(decimals)
}

// ParseUnits will parse a decimal number into an integer amount of units with
// the specified number of decimals.
func ParseUnits(str string, decimals int32) (uint64, error) {
	// parse number
	num, err := decimal.NewFromString(str)
	if err != nil {
		return 0, fmt.Errorf("custody: invalid amount %q: %w", str, err)
	}

	// check sign
	if num.Sign() < 0 {
		return 0, fmt.Errorf("custody: negative amount %q", str)
	}

	// scale to units
	units := num.Shift(decimals)
	if !units.IsInteger() {
		return 0, fmt.Errorf("custody: amount %q has more than %d decimals", str, decimals)
	}

	// check range
	if units.Cmp(maxUnits) > 0 {
		return 0, fmt.Errorf("custody: amount %q is too large", str)
	}

	return units.BigInt().Uint64(), nil
}
