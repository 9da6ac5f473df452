package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAddress is returned when a string is not a dotted-quad address.
var ErrInvalidAddress = errors.New("invalid address: expected four dot-separated octets in 0-255")

const (
	// addressGroups is the number of dot-separated groups in an address.
	addressGroups = 4
	// maxOctetDigits bounds each group so the integer cannot overflow.
	maxOctetDigits = 3
	// maxOctet is the largest value a group may hold.
	maxOctet = 255
	// unknownAddress is the rendering of the zero Address.
	unknownAddress = "Unknown"
)

// Address is an immutable value object holding a validated dotted-quad
// egress address as reported by an address-reporting endpoint.
//
// The zero value represents an unknown address. Invalid strings are never
// represented as an Address: the only way to obtain a non-zero Address is
// through ParseAddress.
type Address struct {
	value string
}

// ParseAddress validates s and returns it as an Address.
//
// The string must consist of exactly four period-separated groups, each made
// only of ASCII digits and holding an integer between 0 and 255. No other
// characters are accepted, including surrounding whitespace; callers that
// read addresses from a response body trim it first.
func ParseAddress(s string) (Address, error) {
	if !IsValidAddress(s) {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return Address{value: s}, nil
}

// IsValidAddress reports whether s is a valid dotted-quad address.
func IsValidAddress(s string) bool {
	groups := strings.Split(s, ".")
	if len(groups) != addressGroups {
		return false
	}
	for _, group := range groups {
		if !isOctet(group) {
			return false
		}
	}
	return true
}

// isOctet reports whether group is a decimal integer in 0-255.
func isOctet(group string) bool {
	if group == "" || len(group) > maxOctetDigits {
		return false
	}
	n := 0
	for _, c := range group {
		if c < '0' || c > '9' {
			return false
		}
		n = n*10 + int(c-'0')
	}
	return n <= maxOctet
}

// IsUnknown reports whether the address is the zero (unknown) value.
func (a Address) IsUnknown() bool {
	return a.value == ""
}

// String returns the dotted-quad form, or "Unknown" for the zero value.
func (a Address) String() string {
	if a.IsUnknown() {
		return unknownAddress
	}
	return a.value
}

// Equal reports whether two addresses hold the same value.
// Two unknown addresses are equal.
func (a Address) Equal(other Address) bool {
	return a.value == other.value
}

// MarshalText implements encoding.TextMarshaler so that addresses render
// as plain strings in JSON reports. Unknown addresses marshal as "".
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.value), nil
}
