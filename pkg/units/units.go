// Package units converts between wei and whole-ether denominations. Display
// formatting beyond the unit conversion is the caller's concern.
package units

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const etherDecimals = 18

var weiPerEther = decimal.New(1, etherDecimals)

// FromWei converts a wei amount into whole ether.
func FromWei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -etherDecimals)
}

// ToWei converts a whole-ether amount into wei, truncating any fraction
// below one wei.
func ToWei(ether decimal.Decimal) *big.Int {
	return ether.Mul(weiPerEther).Truncate(0).BigInt()
}

// ParseEther parses a decimal ether string such as "0.05" into wei.
func ParseEther(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid ether amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid ether amount %q: negative", s)
	}
	return ToWei(d), nil
}
