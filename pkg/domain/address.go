package domain

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Address identifies an account. Addresses are 8-byte identifiers rendered
// as 0x-prefixed hex, assigned by the service when an account is created.
type Address string

// ZeroAddress is the absence of an owner.
const ZeroAddress Address = ""

// NewAddress derives a fresh account address from random UUID bytes.
func NewAddress() Address {
	u := uuid.New()
	return Address("0x" + hex.EncodeToString(u[:8]))
}

// ParseAddress validates the 0x-prefixed hex form used on the wire.
func ParseAddress(s string) (Address, error) {
	if !strings.HasPrefix(s, "0x") {
		return ZeroAddress, fmt.Errorf("address must be 0x-prefixed: %q", s)
	}
	raw := s[2:]
	if len(raw) != 16 {
		return ZeroAddress, fmt.Errorf("address must encode 8 bytes: %q", s)
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return ZeroAddress, fmt.Errorf("address is not valid hex: %q", s)
	}
	return Address(s), nil
}

func (a Address) String() string { return string(a) }

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == ZeroAddress }
