package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"reserveScope/internal/currency"
	"reserveScope/internal/fixedpoint"
	"reserveScope/internal/model"
)

// Vault is an ERC4626 tokenized vault. The share token is the vault contract itself.
// Reserves move by Deposit and Withdraw deltas.
type Vault struct {
	Share          currency.Currency
	Asset          currency.Currency
	ShareReserve   *uint256.Int
	AssetReserve   *uint256.Int
	DepositFeeBps  uint32
	WithdrawFeeBps uint32
	LastSynced     model.Cursor
}

// NewVault returns an empty vault.
func NewVault(vault, asset common.Address, depositFeeBps, withdrawFeeBps uint32) *Vault {
	return &Vault{
		Share:          currency.Unresolved(vault),
		Asset:          currency.Unresolved(asset),
		ShareReserve:   new(uint256.Int),
		AssetReserve:   new(uint256.Int),
		DepositFeeBps:  depositFeeBps,
		WithdrawFeeBps: withdrawFeeBps,
	}
}

func (v *Vault) sealed() {}

func (v *Vault) Kind() Kind { return KindVault }

func (v *Vault) Address() common.Address { return v.Share.Address }

func (v *Vault) Tokens() []common.Address {
	return []common.Address{v.Share.Address, v.Asset.Address}
}

func (v *Vault) Cursor() model.Cursor { return v.LastSynced }

func (v *Vault) EventSignatures() []common.Hash {
	return []common.Hash{DepositEventSignature, WithdrawEventSignature}
}

func (v *Vault) SnapshotEvents() bool { return false }

func (v *Vault) Currencies() []currency.Currency {
	return []currency.Currency{v.Share, v.Asset}
}

func (v *Vault) SetCurrency(c currency.Currency) bool {
	matched := false
	if c.Address == v.Share.Address {
		v.Share = c
		matched = true
	}
	if c.Address == v.Asset.Address {
		v.Asset = c
		matched = true
	}
	return matched
}

func (v *Vault) Populated() bool {
	return !isZeroAddress(v.Share.Address) && !isZeroAddress(v.Asset.Address) &&
		v.Share.Resolved() && v.Asset.Resolved() &&
		!v.ShareReserve.IsZero() && !v.AssetReserve.IsZero()
}

func (v *Vault) TokenOut(tokenIn common.Address) (common.Address, error) {
	switch tokenIn {
	case v.Share.Address:
		return v.Asset.Address, nil
	case v.Asset.Address:
		return v.Share.Address, nil
	default:
		return common.Address{}, fmt.Errorf("%w: %s", ErrUnknownToken, tokenIn.Hex())
	}
}

func (v *Vault) PriceQ64(base common.Address) (*uint256.Int, error) {
	switch base {
	case v.Share.Address:
		return fixedpoint.PriceQ64(v.ShareReserve, v.AssetReserve, v.Share.Decimals, v.Asset.Decimals)
	case v.Asset.Address:
		return fixedpoint.PriceQ64(v.AssetReserve, v.ShareReserve, v.Asset.Decimals, v.Share.Decimals)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, base.Hex())
	}
}

func (v *Vault) Price(base common.Address) (float64, error) {
	q, err := v.PriceQ64(base)
	if err != nil {
		return 0, err
	}
	return fixedpoint.ToFloat(q), nil
}

// AmountOut converts shares to assets (withdraw fee) or assets to shares
// (deposit fee) at the tracked exchange rate. An empty vault converts 1:1.
func (v *Vault) AmountOut(tokenIn common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	reserveIn, reserveOut, fee, err := v.orient(tokenIn)
	if err != nil {
		return nil, err
	}
	if err := validFee(fee); err != nil {
		return nil, err
	}
	if amountIn.IsZero() {
		return new(uint256.Int), nil
	}
	if v.ShareReserve.IsZero() {
		return new(uint256.Int).Set(amountIn), nil
	}
	if reserveIn.IsZero() {
		return new(uint256.Int), nil
	}

	out, overflow := new(uint256.Int).MulOverflow(amountIn, reserveOut)
	if overflow {
		return nil, fixedpoint.ErrOverflow
	}
	if _, overflow := out.MulOverflow(out, uint256.NewInt(uint64(feeDenominator-fee))); overflow {
		return nil, fixedpoint.ErrOverflow
	}
	denominator, overflow := new(uint256.Int).MulOverflow(reserveIn, uint256.NewInt(feeDenominator))
	if overflow {
		return nil, fixedpoint.ErrOverflow
	}
	return out.Div(out, denominator), nil
}

// ApplySwap redeems shares (shares in) or deposits assets (assets in).
func (v *Vault) ApplySwap(tokenIn common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	amountOut, err := v.AmountOut(tokenIn, amountIn)
	if err != nil {
		return nil, err
	}

	if tokenIn == v.Share.Address {
		if v.ShareReserve.Lt(amountIn) || v.AssetReserve.Lt(amountOut) {
			return nil, model.ErrReserveUnderflow
		}
		v.ShareReserve.Sub(v.ShareReserve, amountIn)
		v.AssetReserve.Sub(v.AssetReserve, amountOut)
		return amountOut, nil
	}

	assets, overflow := new(uint256.Int).AddOverflow(v.AssetReserve, amountIn)
	if overflow {
		return nil, fixedpoint.ErrOverflow
	}
	shares, overflow := new(uint256.Int).AddOverflow(v.ShareReserve, amountOut)
	if overflow {
		return nil, fixedpoint.ErrOverflow
	}
	v.AssetReserve, v.ShareReserve = assets, shares
	return amountOut, nil
}

// ApplyEvent adds Deposit flows and subtracts Withdraw flows.
func (v *Vault) ApplyEvent(log model.EventLog) error {
	cursor, err := nextCursor(v.LastSynced, log)
	if err != nil {
		return err
	}

	switch log.Signature() {
	case DepositEventSignature:
		assets, shares, err := decodeVaultFlow("Deposit", log)
		if err != nil {
			return err
		}
		newAssets, overflowA := new(uint256.Int).AddOverflow(v.AssetReserve, assets)
		newShares, overflowS := new(uint256.Int).AddOverflow(v.ShareReserve, shares)
		if overflowA || overflowS {
			return fmt.Errorf("%w: deposit overflows reserves", model.ErrMalformedPayload)
		}
		v.AssetReserve, v.ShareReserve = newAssets, newShares
	case WithdrawEventSignature:
		assets, shares, err := decodeVaultFlow("Withdraw", log)
		if err != nil {
			return err
		}
		if v.AssetReserve.Lt(assets) || v.ShareReserve.Lt(shares) {
			return fmt.Errorf("%w: withdraw of %s assets / %s shares at %s", model.ErrReserveUnderflow, assets, shares, cursor)
		}
		v.AssetReserve = new(uint256.Int).Sub(v.AssetReserve, assets)
		v.ShareReserve = new(uint256.Int).Sub(v.ShareReserve, shares)
	default:
		return fmt.Errorf("%w: %s", model.ErrInvalidEventSignature, log.Signature().Hex())
	}

	v.LastSynced = cursor
	return nil
}

func (v *Vault) Clone() Venue {
	clone := *v
	clone.ShareReserve = cloneInt(v.ShareReserve)
	clone.AssetReserve = cloneInt(v.AssetReserve)
	return &clone
}

// orient returns (reserveIn, reserveOut, fee) for a conversion starting from tokenIn.
func (v *Vault) orient(tokenIn common.Address) (*uint256.Int, *uint256.Int, uint32, error) {
	switch tokenIn {
	case v.Share.Address:
		return v.ShareReserve, v.AssetReserve, v.WithdrawFeeBps, nil
	case v.Asset.Address:
		return v.AssetReserve, v.ShareReserve, v.DepositFeeBps, nil
	default:
		return nil, nil, 0, fmt.Errorf("%w: %s", ErrUnknownToken, tokenIn.Hex())
	}
}
