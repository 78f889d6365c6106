package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount conversion between human units (what custody providers report) and
// atomic units (what the engine reasons about). Arbitrary-precision decimal
// arithmetic only; binary floating point is never used for money.

// HumanToAtomic converts a human-unit decimal string to an atomic-unit
// integer string by shifting the decimal point right by `decimals`.
// A value with precision finer than the asset supports is rejected.
func HumanToAtomic(human string, decimals int32) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(human))
	if err != nil {
		return "", fmt.Errorf("invalid decimal amount %q: %w", human, err)
	}

	shifted := d.Shift(decimals)
	if !shifted.IsInteger() {
		return "", fmt.Errorf("amount %s has more than %d decimal places", human, decimals)
	}

	return shifted.Truncate(0).String(), nil
}

// AtomicToHuman converts an atomic-unit integer string back to a human-unit
// decimal string.
func AtomicToHuman(atomic string, decimals int32) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(atomic))
	if err != nil {
		return "", fmt.Errorf("invalid atomic amount %q: %w", atomic, err)
	}
	if !d.IsInteger() {
		return "", fmt.Errorf("atomic amount %q is not an integer", atomic)
	}

	return d.Shift(-decimals).String(), nil
}

// ParseAtomic parses an atomic-unit integer string.
func ParseAtomic(atomic string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(atomic))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid atomic amount %q: %w", atomic, err)
	}
	if !d.IsInteger() {
		return decimal.Zero, fmt.Errorf("atomic amount %q is not an integer", atomic)
	}
	return d, nil
}

// CompareAtomic compares two atomic-unit integer strings.
// Returns -1 if a < b, 0 if equal, 1 if a > b.
func CompareAtomic(a, b string) (int, error) {
	da, err := ParseAtomic(a)
	if err != nil {
		return 0, err
	}
	db, err := ParseAtomic(b)
	if err != nil {
		return 0, err
	}
	return da.Cmp(db), nil
}

// SubtractAtomic returns a - b for two atomic-unit integer strings.
func SubtractAtomic(a, b string) (string, error) {
	da, err := ParseAtomic(a)
	if err != nil {
		return "", err
	}
	db, err := ParseAtomic(b)
	if err != nil {
		return "", err
	}
	return da.Sub(db).String(), nil
}
