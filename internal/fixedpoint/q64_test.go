package fixedpoint

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
)

func mustDecimal(t *testing.T, s string) *uint256.Int {
	t.Helper()
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("invalid decimal %q", s)
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		t.Fatalf("decimal %q overflows", s)
	}
	return v
}

func TestDivQ64DivisorZero(t *testing.T) {
	if _, err := DivQ64(uint256.NewInt(5), new(uint256.Int)); !errors.Is(err, ErrDivisorZero) {
		t.Fatalf("expected ErrDivisorZero, got %v", err)
	}
}

func TestDivQ64ZeroNumerator(t *testing.T) {
	for _, y := range []uint64{1, 7, 1 << 40} {
		got, err := DivQ64(new(uint256.Int), uint256.NewInt(y))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.IsZero() {
			t.Fatalf("expected zero for y=%d, got %s", y, got)
		}
	}
}

func TestDivQ64Small(t *testing.T) {
	got, err := DivQ64(uint256.NewInt(2000), uint256.NewInt(1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := new(uint256.Int).Lsh(uint256.NewInt(2), 64)
	if !got.Eq(want) {
		t.Fatalf("quotient mismatch: %s != %s", got, want)
	}
	if ToFloat(got) != 2.0 {
		t.Fatalf("float mismatch: %v", ToFloat(got))
	}
}

func TestDivQ64WideNumerator(t *testing.T) {
	x := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	y := new(uint256.Int).Lsh(uint256.NewInt(1), 180)
	got, err := DivQ64(x, y)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := new(uint256.Int).Lsh(uint256.NewInt(1), 84)
	if !got.Eq(want) {
		t.Fatalf("quotient mismatch: %s != %s", got, want)
	}

	x.AddUint64(x, 12345)
	three := new(big.Int).Exp(big.NewInt(3), big.NewInt(100), nil)
	y, _ = uint256.FromBig(three)
	got, err = DivQ64(x, y)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := mustDecimal(t, "57516623547433977851331123883329"); !got.Eq(want) {
		t.Fatalf("quotient mismatch: %s != %s", got, want)
	}
}

func TestDivQ64Saturates(t *testing.T) {
	x := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	y := new(uint256.Int).Lsh(uint256.NewInt(1), 100)
	got, err := DivQ64(x, y)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("expected saturation to zero, got %s", got)
	}
}

func TestPriceQ64(t *testing.T) {
	vault := mustDecimal(t, "501910315708981197269904")
	asset := mustDecimal(t, "505434849031054568651911")

	got, err := PriceQ64(vault, asset, 18, 18)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := mustDecimal(t, "18576281487340329878"); !got.Eq(want) {
		t.Fatalf("price mismatch: %s != %s", got, want)
	}

	got, err = PriceQ64(asset, vault, 18, 18)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := mustDecimal(t, "18318109959350028841"); !got.Eq(want) {
		t.Fatalf("price mismatch: %s != %s", got, want)
	}
}

func TestPriceEmptyBase(t *testing.T) {
	got, err := Price(new(uint256.Int), uint256.NewInt(500), 18, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1.0 {
		t.Fatalf("expected 1.0, got %v", got)
	}
}

func TestNormalizeDecimals(t *testing.T) {
	a, b, err := NormalizeDecimals(uint256.NewInt(5), uint256.NewInt(7), 6, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Uint64() != 500 || b.Uint64() != 7 {
		t.Fatalf("normalize mismatch: %s %s", a, b)
	}

	// 1 USDC (6) against 1 WETH (18) prices at 1.0 once scaled.
	price, err := Price(uint256.NewInt(1_000_000), mustDecimal(t, "1000000000000000000"), 6, 18)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 1.0 {
		t.Fatalf("expected 1.0, got %v", price)
	}

	if _, _, err := NormalizeDecimals(uint256.NewInt(1), uint256.NewInt(1), 0, 200); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}
