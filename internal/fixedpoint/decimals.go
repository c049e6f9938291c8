package fixedpoint

import "github.com/holiman/uint256"

// Pow10 returns 10^n, failing when it does not fit in 256 bits.
func Pow10(n uint) (*uint256.Int, error) {
	out := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := uint(0); i < n; i++ {
		if _, overflow := out.MulOverflow(out, ten); overflow {
			return nil, ErrOverflow
		}
	}
	return out, nil
}

// NormalizeDecimals scales the reserve of the lower-decimals token so both
// reserves are expressed in the same unit. Inputs are not modified.
func NormalizeDecimals(reserveA, reserveB *uint256.Int, decimalsA, decimalsB uint8) (*uint256.Int, *uint256.Int, error) {
	a := new(uint256.Int).Set(reserveA)
	b := new(uint256.Int).Set(reserveB)

	switch {
	case decimalsA < decimalsB:
		scale, err := Pow10(uint(decimalsB - decimalsA))
		if err != nil {
			return nil, nil, err
		}
		if _, overflow := a.MulOverflow(a, scale); overflow {
			return nil, nil, ErrOverflow
		}
	case decimalsA > decimalsB:
		scale, err := Pow10(uint(decimalsA - decimalsB))
		if err != nil {
			return nil, nil, err
		}
		if _, overflow := b.MulOverflow(b, scale); overflow {
			return nil, nil, ErrOverflow
		}
	}
	return a, b, nil
}

// PriceQ64 returns quote/base in Q64.64 after decimal normalization.
// An empty base side prices at 1.0.
func PriceQ64(baseReserve, quoteReserve *uint256.Int, baseDecimals, quoteDecimals uint8) (*uint256.Int, error) {
	base, quote, err := NormalizeDecimals(baseReserve, quoteReserve, baseDecimals, quoteDecimals)
	if err != nil {
		return nil, err
	}
	if base.IsZero() {
		return new(uint256.Int).Set(One), nil
	}
	return DivQ64(quote, base)
}

// Price is PriceQ64 converted to float64.
func Price(baseReserve, quoteReserve *uint256.Int, baseDecimals, quoteDecimals uint8) (float64, error) {
	q, err := PriceQ64(baseReserve, quoteReserve, baseDecimals, quoteDecimals)
	if err != nil {
		return 0, err
	}
	return ToFloat(q), nil
}
