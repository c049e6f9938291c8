package fixedpoint

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ErrDivisorZero = errors.New("divisor is zero")
	ErrRounding    = errors.New("q64 division rounding error")
	ErrOverflow    = errors.New("arithmetic overflow")
)

var (
	one     = uint256.NewInt(1)
	maxU128 = new(uint256.Int).Sub(new(uint256.Int).Lsh(one, 128), one)
	maxU192 = new(uint256.Int).Sub(new(uint256.Int).Lsh(one, 192), one)

	// One is 1.0 in Q64.64.
	One = new(uint256.Int).Lsh(one, 64)
)

// DivQ64 returns x/y as a Q64.64 value. Results wider than 128 bits saturate to zero.
func DivQ64(x, y *uint256.Int) (*uint256.Int, error) {
	if y.IsZero() {
		return nil, ErrDivisorZero
	}

	answer := new(uint256.Int)
	if !x.Gt(maxU192) {
		answer.Lsh(x, 64)
		answer.Div(answer, y)
	} else {
		msb := uint(192)
		xc := new(uint256.Int).Rsh(x, 192)
		if xc.Cmp(uint256.NewInt(1<<32)) >= 0 {
			xc.Rsh(xc, 32)
			msb += 32
		}
		if xc.Cmp(uint256.NewInt(1<<16)) >= 0 {
			xc.Rsh(xc, 16)
			msb += 16
		}
		if xc.Cmp(uint256.NewInt(1<<8)) >= 0 {
			xc.Rsh(xc, 8)
			msb += 8
		}
		if xc.Cmp(uint256.NewInt(16)) >= 0 {
			xc.Rsh(xc, 4)
			msb += 4
		}
		if xc.Cmp(uint256.NewInt(4)) >= 0 {
			xc.Rsh(xc, 2)
			msb += 2
		}
		if xc.Cmp(uint256.NewInt(2)) >= 0 {
			msb++
		}

		divisor := new(uint256.Int).Sub(y, one)
		divisor.Rsh(divisor, msb-191)
		divisor.Add(divisor, one)
		answer.Lsh(x, 255-msb)
		answer.Div(answer, divisor)
	}

	if answer.Gt(maxU128) {
		return new(uint256.Int), nil
	}

	hi := new(uint256.Int).Mul(answer, new(uint256.Int).Rsh(y, 128))
	lo := new(uint256.Int).Mul(answer, new(uint256.Int).And(y, maxU128))

	xh := new(uint256.Int).Rsh(x, 192)
	xl := new(uint256.Int).Lsh(x, 64)

	// Subtractions wrap mod 2^256; borrows are carried into xh.
	if xl.Lt(lo) {
		xh.Sub(xh, one)
	}
	xl.Sub(xl, lo)
	lo.Lsh(hi, 128)
	if xl.Lt(lo) {
		xh.Sub(xh, one)
	}
	xl.Sub(xl, lo)

	if !xh.Eq(new(uint256.Int).Rsh(hi, 128)) {
		return nil, ErrRounding
	}

	answer.Add(answer, xl.Div(xl, y))
	if answer.Gt(maxU128) {
		return new(uint256.Int), nil
	}
	return answer, nil
}

// ToFloat converts a Q64.64 value to float64 with a single rounding step.
func ToFloat(q *uint256.Int) float64 {
	f := new(big.Float).SetPrec(256).SetInt(q.ToBig())
	f.SetMantExp(f, -64)
	out, _ := f.Float64()
	return out
}
