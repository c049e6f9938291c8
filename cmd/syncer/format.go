package main

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// formatAmount renders a raw token amount in whole-token units.
func formatAmount(raw *uint256.Int, decimals uint8) string {
	if raw == nil {
		return "0"
	}
	return decimal.NewFromBigInt(raw.ToBig(), -int32(decimals)).String()
}

// parseAmount converts a whole-token amount such as "1.5" into raw units.
func parseAmount(input string, decimals uint8) (*uint256.Int, error) {
	amount, err := decimal.NewFromString(input)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", input, err)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("invalid amount %q: negative", input)
	}
	scaled := amount.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("invalid amount %q: more than %d decimals", input, decimals)
	}
	raw, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("invalid amount %q: overflows 256 bits", input)
	}
	return raw, nil
}
