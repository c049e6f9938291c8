package checkpoint

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"reserveScope/internal/chain"
	"reserveScope/internal/dex"
	"reserveScope/internal/model"
)

// VaultSeed configures an ERC4626 vault to track. Vaults have no factory, so
// they are read once and followed by their events afterwards.
type VaultSeed struct {
	Address        common.Address
	DepositFeeBps  uint32
	WithdrawFeeBps uint32
}

var vaultSeedMethods = []string{"asset", "totalSupply", "totalAssets"}

// seedVaults reads the state of every configured vault not yet tracked, pinned
// at height, and returns the new venues with their cursor at the end of height.
// A vault whose reads fail is skipped and retried on the next cycle.
func (s *Syncer) seedVaults(ctx context.Context, c *Checkpoint, height uint64) ([]dex.Venue, error) {
	var pending []VaultSeed
	for _, seed := range s.cfg.Vaults {
		if _, ok := c.Venues[seed.Address]; ok {
			continue
		}
		pending = append(pending, seed)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	vaultABI, err := dex.ERC4626ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc4626 abi: %w", err)
	}
	calls := make([]chain.Call, 0, len(pending)*len(vaultSeedMethods))
	for _, seed := range pending {
		for _, method := range vaultSeedMethods {
			data, err := vaultABI.Pack(method)
			if err != nil {
				return nil, fmt.Errorf("pack %s: %w", method, err)
			}
			calls = append(calls, chain.Call{To: seed.Address, Data: data})
		}
	}

	results, err := s.provider.BatchedRead(ctx, new(big.Int).SetUint64(height), calls)
	if err != nil {
		s.metrics.ProviderError("vaults")
		s.logger.Warn("vault seed batch failed", zap.Int("vaults", len(pending)), zap.Error(err))
		return nil, nil
	}
	if len(results) != len(calls) {
		s.logger.Warn("vault seed batch length mismatch", zap.Int("calls", len(calls)), zap.Int("results", len(results)))
		return nil, nil
	}

	var seeded []dex.Venue
	for i, seed := range pending {
		offset := i * len(vaultSeedMethods)
		vault, err := decodeVaultSeed(seed, results[offset:offset+len(vaultSeedMethods)])
		if err != nil {
			s.logger.Warn("skip vault", zap.String("vault", seed.Address.Hex()), zap.Error(err))
			continue
		}
		vault.LastSynced = model.EndOfBlock(height)
		seeded = append(seeded, vault)
	}
	return seeded, nil
}

func decodeVaultSeed(seed VaultSeed, results []chain.CallResult) (*dex.Vault, error) {
	vaultABI, err := dex.ERC4626ABI()
	if err != nil {
		return nil, err
	}
	values := make([]interface{}, len(vaultSeedMethods))
	for i, method := range vaultSeedMethods {
		if results[i].Err != nil {
			return nil, fmt.Errorf("call %s: %w", method, results[i].Err)
		}
		out, err := vaultABI.Unpack(method, results[i].Data)
		if err != nil || len(out) != 1 {
			return nil, fmt.Errorf("%w: decode %s", model.ErrMalformedPayload, method)
		}
		values[i] = out[0]
	}

	asset, err := dex.AsAddress(values[0])
	if err != nil {
		return nil, err
	}
	if asset == (common.Address{}) {
		return nil, fmt.Errorf("%w: zero asset", model.ErrMalformedPayload)
	}
	supply, err := dex.AsUint256(values[1])
	if err != nil {
		return nil, err
	}
	assets, err := dex.AsUint256(values[2])
	if err != nil {
		return nil, err
	}

	vault := dex.NewVault(seed.Address, asset, seed.DepositFeeBps, seed.WithdrawFeeBps)
	vault.ShareReserve = new(uint256.Int).Set(supply)
	vault.AssetReserve = new(uint256.Int).Set(assets)
	return vault, nil
}
