package storage

import (
	"context"
	"errors"
)

var (
	ErrIO            = errors.New("checkpoint io failure")
	ErrSerialization = errors.New("checkpoint serialization failure")
)

// Store persists checkpoint snapshots.
type Store interface {
	// Load returns the stored snapshot, or false when none exists.
	Load(ctx context.Context) (*Snapshot, bool, error)
	Save(ctx context.Context, snapshot *Snapshot) error
}

// Snapshot is the persisted form of a checkpoint. Lists are ordered by address.
type Snapshot struct {
	BlockNumber *uint64          `json:"block_number,omitempty"`
	Factories   []FactoryRecord  `json:"factories"`
	Venues      []VenueRecord    `json:"venues"`
	Currencies  []CurrencyRecord `json:"currencies"`
	Blacklist   []string         `json:"currencies_blacklist"`
}

type FactoryRecord struct {
	Address       string `json:"address"`
	Kind          string `json:"kind"`
	CreationBlock uint64 `json:"creation_block"`
	FeeBps        uint32 `json:"fee_bps"`
}

// VenueRecord flattens every venue kind into two token legs.
// For vaults leg 0 is the share token and Fee0/Fee1 are the deposit/withdraw fees.
type VenueRecord struct {
	Kind        string         `json:"kind"`
	Address     string         `json:"address"`
	Token0      CurrencyRecord `json:"token0"`
	Token1      CurrencyRecord `json:"token1"`
	Reserve0    string         `json:"reserve0"`
	Reserve1    string         `json:"reserve1"`
	Fee0        uint32         `json:"fee0"`
	Fee1        uint32         `json:"fee1"`
	BlockNumber uint64         `json:"block_number"`
	LogIndex    uint64         `json:"log_index"`
}

type CurrencyRecord struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}
