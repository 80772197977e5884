package types

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrInvalidAmount is returned when a decimal amount cannot be converted into
// integer units.
var ErrInvalidAmount = errors.New("invalid amount")

var amountScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(AmountDecimals), nil)

// ParseAmount converts a user-facing decimal string into integer units scaled
// by 10^AmountDecimals. Only digits and a single decimal point are accepted.
// Fractional digits beyond AmountDecimals are truncated, shorter fractions are
// right-padded with zeros.
func ParseAmount(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty input", ErrInvalidAmount)
	}
	whole, frac, hasDot := strings.Cut(s, ".")
	if hasDot && strings.Contains(frac, ".") {
		return 0, fmt.Errorf("%w: %q has more than one decimal point", ErrInvalidAmount, s)
	}
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("%w: %q has no digits", ErrInvalidAmount, s)
	}
	for _, part := range []string{whole, frac} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return 0, fmt.Errorf("%w: %q contains non-numeric characters", ErrInvalidAmount, s)
			}
		}
	}
	if len(frac) > AmountDecimals {
		frac = frac[:AmountDecimals]
	}
	frac += strings.Repeat("0", AmountDecimals-len(frac))
	if whole == "" {
		whole = "0"
	}
	units, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !units.IsUint64() {
		return 0, fmt.Errorf("%w: %q overflows 64 bits", ErrInvalidAmount, s)
	}
	return units.Uint64(), nil
}

// FormatAmount renders integer units as a decimal string with up to
// AmountDecimals fractional digits, trailing zeros trimmed.
func FormatAmount(units uint64) string {
	q, r := new(big.Int).QuoRem(new(big.Int).SetUint64(units), amountScale, new(big.Int))
	if r.Sign() == 0 {
		return q.String()
	}
	frac := fmt.Sprintf("%0*d", AmountDecimals, r.Uint64())
	return q.String() + "." + strings.TrimRight(frac, "0")
}
