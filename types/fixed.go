package types

import (
	"errors"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var (
	errNegative  = errors.New("negative value")
	errPrecision = errors.New("too many fractional digits")
	errOverflow  = errors.New("value overflows 256 bits")
)

// Pow10 returns 10^n as a 256-bit word. n must not exceed 77.
func Pow10(n uint8) *uint256.Int {
	return pow10(n)
}

func pow10(n uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(n)))
}

// parseFixed converts a decimal string into a fixed-point word with the given precision.
func parseFixed(s string, decimals int32) (uint256.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return uint256.Int{}, err
	}
	if d.IsNegative() {
		return uint256.Int{}, errNegative
	}

	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return uint256.Int{}, errPrecision
	}

	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return uint256.Int{}, errOverflow
	}
	return *v, nil
}
