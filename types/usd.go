package types

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// USDDecimals is the fixed-point precision of USD values inside the ledger.
// It matches NativeDecimals so that converted values line up with wei amounts.
const USDDecimals = 18

// USD is a US dollar value in 18-decimal fixed point.
//
// Examples:
//   - Dollars(50)          = $50.00 (50 * 10^18)
//   - MustParseUSD("20.5") = $20.50
type USD struct {
	v uint256.Int
}

// Dollars creates a USD value of whole dollars.
func Dollars(n uint64) USD {
	var u USD
	u.v.Mul(uint256.NewInt(n), pow10(USDDecimals))
	return u
}

// ParseUSD parses a decimal dollar string ("50", "19.99").
func ParseUSD(s string) (USD, error) {
	v, err := parseFixed(s, USDDecimals)
	if err != nil {
		return USD{}, fmt.Errorf("types: parse usd %q: %w", s, err)
	}
	return USD{v: v}, nil
}

// MustParseUSD is like ParseUSD but panics on error.
func MustParseUSD(s string) USD {
	u, err := ParseUSD(s)
	if err != nil {
		panic(err)
	}
	return u
}

// ParseUSDRaw parses the base-10 fixed-point representation used for storage.
func ParseUSDRaw(s string) (USD, error) {
	if s == "" {
		return USD{}, nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return USD{}, fmt.Errorf("types: parse usd raw %q: %w", s, err)
	}
	return USD{v: *v}, nil
}

// USDFromUint256 wraps an 18-decimal fixed-point word as a USD value.
func USDFromUint256(v *uint256.Int) USD {
	var u USD
	if v != nil {
		u.v.Set(v)
	}
	return u
}

// IsZero returns true if the value is zero.
func (u USD) IsZero() bool { return u.v.IsZero() }

// Cmp compares u and other and returns -1, 0 or +1.
func (u USD) Cmp(other USD) int { return u.v.Cmp(&other.v) }

// Equal returns true if both values are identical.
func (u USD) Equal(other USD) bool { return u.v.Eq(&other.v) }

// LessThan returns true if u < other.
func (u USD) LessThan(other USD) bool { return u.v.Lt(&other.v) }

// Uint256 returns a copy of the underlying fixed-point word.
func (u USD) Uint256() *uint256.Int { return new(uint256.Int).Set(&u.v) }

// RawString returns the base-10 fixed-point representation used for storage.
func (u USD) RawString() string { return u.v.Dec() }

// Decimal returns the value as a decimal number of dollars.
func (u USD) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(u.v.ToBig(), -USDDecimals)
}

// InexactFloat64 returns the value in dollars as a float64, for metrics.
func (u USD) InexactFloat64() float64 {
	return u.Decimal().InexactFloat64()
}

// String returns a display string rounded to cents, e.g. "$2000.00".
func (u USD) String() string {
	return "$" + u.Decimal().StringFixed(2)
}

// MarshalText implements encoding.TextMarshaler using the raw fixed-point form.
func (u USD) MarshalText() ([]byte, error) {
	return []byte(u.v.Dec()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *USD) UnmarshalText(data []byte) error {
	parsed, err := ParseUSDRaw(string(data))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
