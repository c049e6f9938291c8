package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"reserveScope/internal/checkpoint"
	"reserveScope/internal/dex"
	"reserveScope/internal/factory"
)

// SyncerConfig converts the loaded values into a sync cycle configuration.
func (c Config) SyncerConfig() (checkpoint.Config, error) {
	factories, err := ParseFactories(c.Factories)
	if err != nil {
		return checkpoint.Config{}, err
	}
	vaults, err := ParseVaults(c.Vaults)
	if err != nil {
		return checkpoint.Config{}, err
	}
	return checkpoint.Config{
		Factories:         factories,
		Vaults:            vaults,
		DiscoveryWindow:   c.DiscoveryWindow,
		SyncWindow:        c.SyncWindow,
		SyncSubWindow:     c.SyncSubWindow,
		CurrencyChunkSize: c.CurrencyChunkSize,
		Concurrency:       c.MaxConcurrency,
	}, nil
}

// ParseAddress converts a hex string into common.Address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %s", input)
	}
	return common.HexToAddress(input), nil
}

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		if strings.TrimSpace(input) == "" {
			continue
		}
		addr, err := ParseAddress(input)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

// ParseFactories parses `kind:address:creation_block[:fee_bps]` entries.
// The fee defaults to 30 basis points.
func ParseFactories(inputs []string) ([]factory.Factory, error) {
	out := make([]factory.Factory, 0, len(inputs))
	for _, input := range inputs {
		parts := strings.Split(strings.TrimSpace(input), ":")
		if len(parts) < 3 || len(parts) > 4 {
			return nil, fmt.Errorf("invalid factory %q: want kind:address:creation_block[:fee_bps]", input)
		}
		kind := dex.Kind(strings.ToLower(strings.TrimSpace(parts[0])))
		if kind != dex.KindConstantProduct {
			return nil, fmt.Errorf("invalid factory %q: %w", input, factory.ErrUnsupportedKind)
		}
		addr, err := ParseAddress(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid factory %q: %w", input, err)
		}
		created, err := strconv.ParseUint(strings.TrimSpace(parts[2]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid factory %q creation block: %w", input, err)
		}
		fee := uint32(30)
		if len(parts) == 4 {
			fee, err = parseBps(parts[3])
			if err != nil {
				return nil, fmt.Errorf("invalid factory %q fee: %w", input, err)
			}
		}
		out = append(out, factory.Factory{Address: addr, Kind: kind, CreationBlock: created, FeeBps: fee})
	}
	return out, nil
}

// ParseVaults parses `address[:deposit_fee_bps[:withdraw_fee_bps]]` entries.
func ParseVaults(inputs []string) ([]checkpoint.VaultSeed, error) {
	out := make([]checkpoint.VaultSeed, 0, len(inputs))
	for _, input := range inputs {
		parts := strings.Split(strings.TrimSpace(input), ":")
		if len(parts) > 3 {
			return nil, fmt.Errorf("invalid vault %q: want address[:deposit_fee_bps[:withdraw_fee_bps]]", input)
		}
		addr, err := ParseAddress(parts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid vault %q: %w", input, err)
		}
		seed := checkpoint.VaultSeed{Address: addr}
		if len(parts) > 1 {
			if seed.DepositFeeBps, err = parseBps(parts[1]); err != nil {
				return nil, fmt.Errorf("invalid vault %q deposit fee: %w", input, err)
			}
		}
		if len(parts) > 2 {
			if seed.WithdrawFeeBps, err = parseBps(parts[2]); err != nil {
				return nil, fmt.Errorf("invalid vault %q withdraw fee: %w", input, err)
			}
		}
		out = append(out, seed)
	}
	return out, nil
}

func parseBps(input string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(input), 10, 32)
	if err != nil {
		return 0, err
	}
	if v > 10_000 {
		return 0, fmt.Errorf("%d exceeds 10000 basis points", v)
	}
	return uint32(v), nil
}
