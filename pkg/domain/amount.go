package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount is a fixed-point token amount with 8 fractional digits, matching
// the precision of the fungible token the escrow vault holds. All fee and
// balance arithmetic happens in integer units to keep pricing exact.
type Amount uint64

// AmountScale is the number of integer units per whole token.
const AmountScale = 100_000_000

// ParseAmount reads a decimal string ("31536.0", "0.001") into an Amount.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("amount must be a non-negative decimal: %q", s)
	}
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 8 {
		return 0, fmt.Errorf("amount has more than 8 fractional digits: %q", s)
	}
	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	frac += strings.Repeat("0", 8-len(frac))
	f, err := strconv.ParseUint(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount(w*AmountScale + f), nil
}

// MustParseAmount is ParseAmount for constants in tests and wiring.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// MulSeconds multiplies a per-second price by a rental duration in seconds.
// The product saturates at the maximum amount instead of wrapping, so an
// overflowing rent quote can never come out cheaper than intended.
func (a Amount) MulSeconds(seconds uint64) Amount {
	if a == 0 || seconds == 0 {
		return 0
	}
	if uint64(a) > math.MaxUint64/seconds {
		return Amount(math.MaxUint64)
	}
	return Amount(uint64(a) * seconds)
}

// String renders the amount as a decimal with trailing fractional zeros
// trimmed, keeping at least one fractional digit ("31536.0", "0.001").
func (a Amount) String() string {
	whole := uint64(a) / AmountScale
	frac := uint64(a) % AmountScale
	s := strconv.FormatUint(frac, 10)
	s = strings.Repeat("0", 8-len(s)) + s
	s = strings.TrimRight(s, "0")
	if s == "" {
		s = "0"
	}
	return strconv.FormatUint(whole, 10) + "." + s
}

// MarshalJSON renders the amount as a decimal string so clients never see
// raw integer units.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(a.String())), nil
}

// UnmarshalJSON accepts either a decimal string or a bare JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
