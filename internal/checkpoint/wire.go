package checkpoint

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"reserveScope/internal/currency"
	"reserveScope/internal/dex"
	"reserveScope/internal/factory"
	"reserveScope/internal/model"
	"reserveScope/internal/storage"
)

// ToSnapshot converts c into its persisted form. Every list is ordered by
// address so the output does not depend on map iteration order.
func (c *Checkpoint) ToSnapshot() (*storage.Snapshot, error) {
	snapshot := &storage.Snapshot{
		Factories:  make([]storage.FactoryRecord, 0, len(c.Factories)),
		Venues:     make([]storage.VenueRecord, 0, len(c.Venues)),
		Currencies: make([]storage.CurrencyRecord, 0, len(c.Currencies)),
		Blacklist:  make([]string, 0, len(c.Blacklist)),
	}
	if c.BlockNumber != nil {
		height := *c.BlockNumber
		snapshot.BlockNumber = &height
	}

	for _, addr := range sortedKeys(c.Factories) {
		f := c.Factories[addr]
		snapshot.Factories = append(snapshot.Factories, storage.FactoryRecord{
			Address:       f.Address.Hex(),
			Kind:          string(f.Kind),
			CreationBlock: f.CreationBlock,
			FeeBps:        f.FeeBps,
		})
	}
	for _, addr := range sortedKeys(c.Venues) {
		record, err := venueRecord(c.Venues[addr])
		if err != nil {
			return nil, err
		}
		snapshot.Venues = append(snapshot.Venues, record)
	}
	for _, addr := range sortedKeys(c.Currencies) {
		snapshot.Currencies = append(snapshot.Currencies, currencyRecord(c.Currencies[addr]))
	}
	for _, addr := range sortedKeys(c.Blacklist) {
		snapshot.Blacklist = append(snapshot.Blacklist, addr.Hex())
	}
	return snapshot, nil
}

// FromSnapshot rebuilds a checkpoint from its persisted form.
func FromSnapshot(snapshot *storage.Snapshot) (*Checkpoint, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("%w: nil snapshot", storage.ErrSerialization)
	}
	c := New()
	if snapshot.BlockNumber != nil {
		height := *snapshot.BlockNumber
		c.BlockNumber = &height
	}

	for _, record := range snapshot.Factories {
		addr, err := parseAddress(record.Address)
		if err != nil {
			return nil, err
		}
		c.Factories[addr] = factory.Factory{
			Address:       addr,
			Kind:          dex.Kind(record.Kind),
			CreationBlock: record.CreationBlock,
			FeeBps:        record.FeeBps,
		}
	}
	for _, record := range snapshot.Venues {
		v, err := venueFromRecord(record)
		if err != nil {
			return nil, err
		}
		c.Venues[v.Address()] = v
	}
	for _, record := range snapshot.Currencies {
		cur, err := currencyFromRecord(record)
		if err != nil {
			return nil, err
		}
		c.Currencies[cur.Address] = cur
	}
	for _, raw := range snapshot.Blacklist {
		addr, err := parseAddress(raw)
		if err != nil {
			return nil, err
		}
		c.Blacklist[addr] = struct{}{}
	}
	return c, nil
}

func venueRecord(v dex.Venue) (storage.VenueRecord, error) {
	cursor := v.Cursor()
	record := storage.VenueRecord{
		Kind:        string(v.Kind()),
		Address:     v.Address().Hex(),
		BlockNumber: cursor.BlockNumber,
		LogIndex:    cursor.LogIndex,
	}
	switch venue := v.(type) {
	case *dex.ConstantProductPool:
		record.Token0 = currencyRecord(venue.Token0)
		record.Token1 = currencyRecord(venue.Token1)
		record.Reserve0 = decimalString(venue.Reserve0)
		record.Reserve1 = decimalString(venue.Reserve1)
		record.Fee0 = venue.FeeBps
	case *dex.Vault:
		record.Token0 = currencyRecord(venue.Share)
		record.Token1 = currencyRecord(venue.Asset)
		record.Reserve0 = decimalString(venue.ShareReserve)
		record.Reserve1 = decimalString(venue.AssetReserve)
		record.Fee0 = venue.DepositFeeBps
		record.Fee1 = venue.WithdrawFeeBps
	default:
		return storage.VenueRecord{}, fmt.Errorf("%w: venue kind %q", storage.ErrSerialization, v.Kind())
	}
	return record, nil
}

func venueFromRecord(record storage.VenueRecord) (dex.Venue, error) {
	addr, err := parseAddress(record.Address)
	if err != nil {
		return nil, err
	}
	token0, err := currencyFromRecord(record.Token0)
	if err != nil {
		return nil, err
	}
	token1, err := currencyFromRecord(record.Token1)
	if err != nil {
		return nil, err
	}
	reserve0, err := parseReserve(record.Reserve0)
	if err != nil {
		return nil, err
	}
	reserve1, err := parseReserve(record.Reserve1)
	if err != nil {
		return nil, err
	}
	cursor := model.Cursor{BlockNumber: record.BlockNumber, LogIndex: record.LogIndex}

	switch dex.Kind(record.Kind) {
	case dex.KindConstantProduct:
		return &dex.ConstantProductPool{
			Pair:       addr,
			Token0:     token0,
			Token1:     token1,
			Reserve0:   reserve0,
			Reserve1:   reserve1,
			FeeBps:     record.Fee0,
			LastSynced: cursor,
		}, nil
	case dex.KindVault:
		if token0.Address != addr {
			return nil, fmt.Errorf("%w: vault %s share token %s", storage.ErrSerialization, addr.Hex(), token0.Address.Hex())
		}
		return &dex.Vault{
			Share:          token0,
			Asset:          token1,
			ShareReserve:   reserve0,
			AssetReserve:   reserve1,
			DepositFeeBps:  record.Fee0,
			WithdrawFeeBps: record.Fee1,
			LastSynced:     cursor,
		}, nil
	default:
		return nil, fmt.Errorf("%w: venue kind %q", storage.ErrSerialization, record.Kind)
	}
}

func currencyRecord(c currency.Currency) storage.CurrencyRecord {
	return storage.CurrencyRecord{Address: c.Address.Hex(), Symbol: c.Symbol, Decimals: c.Decimals}
}

func currencyFromRecord(record storage.CurrencyRecord) (currency.Currency, error) {
	addr, err := parseAddress(record.Address)
	if err != nil {
		return currency.Currency{}, err
	}
	return currency.Currency{Address: addr, Symbol: record.Symbol, Decimals: record.Decimals}, nil
}

func parseAddress(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: invalid address %q", storage.ErrSerialization, raw)
	}
	return common.HexToAddress(raw), nil
}

func decimalString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.ToBig().String()
}

func parseReserve(raw string) (*uint256.Int, error) {
	if raw == "" {
		return new(uint256.Int), nil
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("%w: invalid reserve %q", storage.ErrSerialization, raw)
	}
	out, overflow := uint256.FromBig(value)
	if overflow {
		return nil, fmt.Errorf("%w: reserve %q exceeds 256 bits", storage.ErrSerialization, raw)
	}
	return out, nil
}

func sortedKeys[V any](m map[common.Address]V) []common.Address {
	keys := make([]common.Address, 0, len(m))
	for addr := range m {
		keys = append(keys, addr)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Cmp(keys[j]) < 0 })
	return keys
}
