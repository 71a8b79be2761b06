// Package types provides common value types used across Crowdfund.
package types

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// NativeDecimals is the fixed-point precision of the native currency (wei).
const NativeDecimals = 18

// Amount is a quantity of the native currency expressed in wei.
// All arithmetic is integer-only on 256-bit words, never floating point.
//
// Examples:
//   - Ether(1)                = 1 ETH  (10^18 wei)
//   - MustParseEther("0.01")  = 0.01 ETH (10^16 wei)
//   - Wei(1)                  = 1 wei
type Amount struct {
	v uint256.Int
}

// Wei creates an Amount from a raw wei count.
func Wei(wei uint64) Amount {
	var a Amount
	a.v.SetUint64(wei)
	return a
}

// Ether creates an Amount of whole native units.
func Ether(units uint64) Amount {
	var a Amount
	a.v.Mul(uint256.NewInt(units), pow10(NativeDecimals))
	return a
}

// ParseEther parses a decimal string of native units ("0.01", "1.5") into wei.
// More than 18 fractional digits or a negative value is rejected.
func ParseEther(s string) (Amount, error) {
	v, err := parseFixed(s, NativeDecimals)
	if err != nil {
		return Amount{}, fmt.Errorf("types: parse ether %q: %w", s, err)
	}
	return Amount{v: v}, nil
}

// MustParseEther is like ParseEther but panics on error. Use for hardcoded values.
func MustParseEther(s string) Amount {
	a, err := ParseEther(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseWei parses a base-10 wei string, the storage representation of an Amount.
func ParseWei(s string) (Amount, error) {
	if s == "" {
		return Amount{}, nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, fmt.Errorf("types: parse wei %q: %w", s, err)
	}
	return Amount{v: *v}, nil
}

// AmountFromUint256 wraps a 256-bit word as an Amount.
func AmountFromUint256(v *uint256.Int) Amount {
	var a Amount
	if v != nil {
		a.v.Set(v)
	}
	return a
}

// Arithmetic operations

// Add returns a + other. Panics on 256-bit overflow.
func (a Amount) Add(other Amount) Amount {
	var out Amount
	if _, overflow := out.v.AddOverflow(&a.v, &other.v); overflow {
		panic("amount: addition overflows 256 bits")
	}
	return out
}

// AddOverflow returns a + other and whether the sum overflowed 256 bits.
// On overflow the returned amount is not meaningful.
func (a Amount) AddOverflow(other Amount) (Amount, bool) {
	var out Amount
	_, overflow := out.v.AddOverflow(&a.v, &other.v)
	return out, overflow
}

// Sub returns a - other. Panics if other is larger than a.
func (a Amount) Sub(other Amount) Amount {
	var out Amount
	if _, underflow := out.v.SubOverflow(&a.v, &other.v); underflow {
		panic("amount: subtraction underflows zero")
	}
	return out
}

// Comparison methods

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool { return a.v.IsZero() }

// IsPositive returns true if the amount is greater than zero.
func (a Amount) IsPositive() bool { return !a.v.IsZero() }

// Cmp compares a and other and returns -1, 0 or +1.
func (a Amount) Cmp(other Amount) int { return a.v.Cmp(&other.v) }

// Equal returns true if both amounts hold the same number of wei.
func (a Amount) Equal(other Amount) bool { return a.v.Eq(&other.v) }

// LessThan returns true if a < other.
func (a Amount) LessThan(other Amount) bool { return a.v.Lt(&other.v) }

// Conversions

// Uint256 returns a copy of the underlying 256-bit word.
func (a Amount) Uint256() *uint256.Int { return new(uint256.Int).Set(&a.v) }

// Big returns the amount as a big.Int in wei.
func (a Amount) Big() *big.Int { return a.v.ToBig() }

// WeiString returns the base-10 wei representation used for storage.
func (a Amount) WeiString() string { return a.v.Dec() }

// InexactFloat64 returns the amount in native units as a float64. Use it for
// metrics and display only.
func (a Amount) InexactFloat64() float64 {
	return decimal.NewFromBigInt(a.v.ToBig(), -NativeDecimals).InexactFloat64()
}

// Formatting methods

// String returns the amount in native units, e.g. "1.5 ETH".
func (a Amount) String() string {
	return decimal.NewFromBigInt(a.v.ToBig(), -NativeDecimals).String() + " ETH"
}

// MarshalText implements encoding.TextMarshaler using the wei representation.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.v.Dec()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(data []byte) error {
	parsed, err := ParseWei(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// SumAmounts adds up a list of amounts.
func SumAmounts(values ...Amount) Amount {
	var total Amount
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
