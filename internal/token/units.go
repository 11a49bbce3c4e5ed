package token

import (
	"fmt"
	"math/big"
	"strings"
)

// Decimals of the token and of the native currency.
const Decimals = 18

// ParseUnits converts a decimal string such as "0.1" into base units.
// Fractions finer than decimals are rejected.
func ParseUnits(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("amount %q is negative", s)
	}
	if !isDecimal(s) {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	value, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	value.Mul(value, new(big.Rat).SetInt(scale))
	if !value.IsInt() {
		return nil, fmt.Errorf("amount %q has more than %d decimals", s, decimals)
	}

	return new(big.Int).Set(value.Num()), nil
}

// FormatUnits renders base units as a decimal string with trailing zeros
// trimmed.
func FormatUnits(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	s := new(big.Rat).SetFrac(v, scale).FloatString(decimals)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

// isDecimal accepts digits with at most one dot and at least one digit.
func isDecimal(s string) bool {
	if strings.Count(s, ".") > 1 || strings.Trim(s, ".") == "" {
		return false
	}
	return !strings.ContainsFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
}
