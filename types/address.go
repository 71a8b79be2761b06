package types

import "strings"

// Address identifies a participant: a funder, the owner, or a payout recipient.
// Hex addresses ("0xAbC...") are compared in their lower-case form; any other
// account naming scheme is kept verbatim.
type Address string

// NewAddress trims and normalizes an identity string.
func NewAddress(s string) Address {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return Address(strings.ToLower(s))
	}
	return Address(s)
}

// IsZero reports whether the address is empty.
func (a Address) IsZero() bool { return a == "" }

// String implements fmt.Stringer.
func (a Address) String() string { return string(a) }
