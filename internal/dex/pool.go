package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"reserveScope/internal/currency"
	"reserveScope/internal/fixedpoint"
	"reserveScope/internal/model"
)

var maxReserve = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))

// ConstantProductPool is an x*y=k pair kept in sync by Sync events.
type ConstantProductPool struct {
	Pair       common.Address
	Token0     currency.Currency
	Token1     currency.Currency
	Reserve0   *uint256.Int
	Reserve1   *uint256.Int
	FeeBps     uint32
	LastSynced model.Cursor
}

// NewConstantProductPool returns an empty pool.
func NewConstantProductPool(pair, token0, token1 common.Address, feeBps uint32) *ConstantProductPool {
	return &ConstantProductPool{
		Pair:     pair,
		Token0:   currency.Unresolved(token0),
		Token1:   currency.Unresolved(token1),
		Reserve0: new(uint256.Int),
		Reserve1: new(uint256.Int),
		FeeBps:   feeBps,
	}
}

func (p *ConstantProductPool) sealed() {}

func (p *ConstantProductPool) Kind() Kind { return KindConstantProduct }

func (p *ConstantProductPool) Address() common.Address { return p.Pair }

func (p *ConstantProductPool) Tokens() []common.Address {
	return []common.Address{p.Token0.Address, p.Token1.Address}
}

func (p *ConstantProductPool) Cursor() model.Cursor { return p.LastSynced }

func (p *ConstantProductPool) EventSignatures() []common.Hash {
	return []common.Hash{SyncEventSignature}
}

func (p *ConstantProductPool) SnapshotEvents() bool { return true }

func (p *ConstantProductPool) Currencies() []currency.Currency {
	return []currency.Currency{p.Token0, p.Token1}
}

func (p *ConstantProductPool) SetCurrency(c currency.Currency) bool {
	matched := false
	if c.Address == p.Token0.Address {
		p.Token0 = c
		matched = true
	}
	if c.Address == p.Token1.Address {
		p.Token1 = c
		matched = true
	}
	return matched
}

func (p *ConstantProductPool) Populated() bool {
	return !isZeroAddress(p.Token0.Address) && !isZeroAddress(p.Token1.Address) &&
		p.Token0.Resolved() && p.Token1.Resolved() &&
		!p.Reserve0.IsZero() && !p.Reserve1.IsZero()
}

func (p *ConstantProductPool) TokenOut(tokenIn common.Address) (common.Address, error) {
	switch tokenIn {
	case p.Token0.Address:
		return p.Token1.Address, nil
	case p.Token1.Address:
		return p.Token0.Address, nil
	default:
		return common.Address{}, fmt.Errorf("%w: %s", ErrUnknownToken, tokenIn.Hex())
	}
}

func (p *ConstantProductPool) PriceQ64(base common.Address) (*uint256.Int, error) {
	switch base {
	case p.Token0.Address:
		return fixedpoint.PriceQ64(p.Reserve0, p.Reserve1, p.Token0.Decimals, p.Token1.Decimals)
	case p.Token1.Address:
		return fixedpoint.PriceQ64(p.Reserve1, p.Reserve0, p.Token1.Decimals, p.Token0.Decimals)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, base.Hex())
	}
}

func (p *ConstantProductPool) Price(base common.Address) (float64, error) {
	q, err := p.PriceQ64(base)
	if err != nil {
		return 0, err
	}
	return fixedpoint.ToFloat(q), nil
}

// AmountOut quotes amountIn*(10000-fee)*reserveOut / (reserveIn*10000 + amountIn*(10000-fee)).
func (p *ConstantProductPool) AmountOut(tokenIn common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	reserveIn, reserveOut, err := p.orient(tokenIn)
	if err != nil {
		return nil, err
	}
	if err := validFee(p.FeeBps); err != nil {
		return nil, err
	}
	if amountIn.IsZero() || reserveIn.IsZero() || reserveOut.IsZero() {
		return new(uint256.Int), nil
	}

	amountInWithFee, overflow := new(uint256.Int).MulOverflow(amountIn, uint256.NewInt(uint64(feeDenominator-p.FeeBps)))
	if overflow {
		return nil, fixedpoint.ErrOverflow
	}
	numerator, overflow := new(uint256.Int).MulOverflow(amountInWithFee, reserveOut)
	if overflow {
		return nil, fixedpoint.ErrOverflow
	}
	denominator, overflow := new(uint256.Int).MulOverflow(reserveIn, uint256.NewInt(feeDenominator))
	if overflow {
		return nil, fixedpoint.ErrOverflow
	}
	if _, overflow := denominator.AddOverflow(denominator, amountInWithFee); overflow {
		return nil, fixedpoint.ErrOverflow
	}
	return numerator.Div(numerator, denominator), nil
}

// ApplySwap moves reserves as if amountIn of tokenIn was swapped and returns the output amount.
func (p *ConstantProductPool) ApplySwap(tokenIn common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	amountOut, err := p.AmountOut(tokenIn, amountIn)
	if err != nil {
		return nil, err
	}
	reserveIn, reserveOut, _ := p.orient(tokenIn)

	newIn, overflow := new(uint256.Int).AddOverflow(reserveIn, amountIn)
	if overflow || newIn.Gt(maxReserve) {
		return nil, fixedpoint.ErrOverflow
	}
	reserveIn.Set(newIn)
	reserveOut.Sub(reserveOut, amountOut)
	return amountOut, nil
}

// ApplyEvent replaces both reserves from a Sync log.
func (p *ConstantProductPool) ApplyEvent(log model.EventLog) error {
	cursor, err := nextCursor(p.LastSynced, log)
	if err != nil {
		return err
	}

	switch log.Signature() {
	case SyncEventSignature:
		reserve0, reserve1, err := decodeSync(log)
		if err != nil {
			return err
		}
		p.Reserve0, p.Reserve1 = reserve0, reserve1
	default:
		return fmt.Errorf("%w: %s", model.ErrInvalidEventSignature, log.Signature().Hex())
	}

	p.LastSynced = cursor
	return nil
}

func (p *ConstantProductPool) Clone() Venue {
	clone := *p
	clone.Reserve0 = cloneInt(p.Reserve0)
	clone.Reserve1 = cloneInt(p.Reserve1)
	return &clone
}

// orient returns the live reserve pointers as (in, out).
func (p *ConstantProductPool) orient(tokenIn common.Address) (*uint256.Int, *uint256.Int, error) {
	switch tokenIn {
	case p.Token0.Address:
		return p.Reserve0, p.Reserve1, nil
	case p.Token1.Address:
		return p.Reserve1, p.Reserve0, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownToken, tokenIn.Hex())
	}
}
