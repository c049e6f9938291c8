package dex

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"reserveScope/internal/currency"
	"reserveScope/internal/model"
)

// Kind identifies a venue variant.
type Kind string

const (
	KindConstantProduct Kind = "uniswap_v2"
	KindVault           Kind = "erc4626"
)

const feeDenominator = 10_000

var (
	ErrUnknownToken = errors.New("token not in venue")
	ErrInvalidFee   = errors.New("fee exceeds 10000 basis points")
)

// Venue is a tracked pool or vault. Implementations live in this package only:
// ConstantProductPool and Vault.
type Venue interface {
	Kind() Kind
	Address() common.Address
	Tokens() []common.Address
	Cursor() model.Cursor
	// EventSignatures lists the topics ApplyEvent understands.
	EventSignatures() []common.Hash
	// SnapshotEvents reports whether each event carries the full reserve state,
	// so only the latest event in a range matters.
	SnapshotEvents() bool

	Price(base common.Address) (float64, error)
	PriceQ64(base common.Address) (*uint256.Int, error)
	AmountOut(tokenIn common.Address, amountIn *uint256.Int) (*uint256.Int, error)
	ApplySwap(tokenIn common.Address, amountIn *uint256.Int) (*uint256.Int, error)
	ApplyEvent(log model.EventLog) error
	TokenOut(tokenIn common.Address) (common.Address, error)

	Currencies() []currency.Currency
	// SetCurrency attaches metadata to the matching token and reports whether one matched.
	SetCurrency(c currency.Currency) bool
	Populated() bool
	Clone() Venue

	sealed()
}

// nextCursor validates that log is strictly newer than last.
func nextCursor(last model.Cursor, log model.EventLog) (model.Cursor, error) {
	cursor, err := log.Cursor()
	if err != nil {
		return model.Cursor{}, err
	}
	if !last.Less(cursor) {
		return model.Cursor{}, fmt.Errorf("%w: %s <= %s", model.ErrAlreadySynced, cursor, last)
	}
	return cursor, nil
}

func validFee(bps uint32) error {
	if bps > feeDenominator {
		return fmt.Errorf("%w: %d", ErrInvalidFee, bps)
	}
	return nil
}

func cloneInt(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

func isZeroAddress(addr common.Address) bool {
	return addr == (common.Address{})
}
