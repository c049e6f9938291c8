package checkpoint

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reserveScope/internal/currency"
	"reserveScope/internal/dex"
	"reserveScope/internal/factory"
	"reserveScope/internal/model"
	"reserveScope/internal/storage"
)

func populatedCheckpoint(reverse bool) *Checkpoint {
	factories := []factory.Factory{
		{Address: uniFactory, Kind: dex.KindConstantProduct, CreationBlock: 10_000_835, FeeBps: 30},
		{Address: common.HexToAddress("0xc0aee478e3658e2610c5f7a4a2e1777ce9e4f2ac"), Kind: dex.KindConstantProduct, CreationBlock: 10_794_229, FeeBps: 25},
	}
	currencies := []currency.Currency{
		{Address: usdc, Symbol: "USDC", Decimals: 6},
		{Address: weth, Symbol: "WETH", Decimals: 18},
		{Address: dai, Symbol: "DAI", Decimals: 18},
	}

	big := new(uint256.Int).Lsh(uint256.NewInt(1), 127)
	pool := poolWithReserves(pairA, 0, 0, model.Cursor{BlockNumber: 19_000_000, LogIndex: 12})
	pool.Reserve0 = big
	pool.Reserve1 = uint256.NewInt(42)
	other := dex.NewConstantProductPool(pairB, dai, weth, 30)

	vault := dex.NewVault(sDAI, dai, 5, 10)
	vault.ShareReserve = uint256.NewInt(900)
	vault.AssetReserve = uint256.NewInt(1000)
	vault.LastSynced = model.EndOfBlock(19_000_001)
	venues := []dex.Venue{pool, other, vault}

	if reverse {
		for i, j := 0, len(factories)-1; i < j; i, j = i+1, j-1 {
			factories[i], factories[j] = factories[j], factories[i]
		}
		for i, j := 0, len(currencies)-1; i < j; i, j = i+1, j-1 {
			currencies[i], currencies[j] = currencies[j], currencies[i]
		}
		venues = []dex.Venue{vault, other, pool}
	}

	c := NewFromFactories(factories...)
	c.BlockNumber = height(19_000_001)
	for _, v := range venues {
		c.Venues[v.Address()] = v
	}
	for _, cur := range currencies {
		c.AddCurrency(cur)
	}
	c.Blacklist[broken] = struct{}{}
	return c
}

func TestSnapshotIndependentOfInsertionOrder(t *testing.T) {
	a, err := populatedCheckpoint(false).ToSnapshot()
	require.NoError(t, err)
	b, err := populatedCheckpoint(true).ToSnapshot()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	for i := 1; i < len(a.Venues); i++ {
		prev := common.HexToAddress(a.Venues[i-1].Address)
		next := common.HexToAddress(a.Venues[i].Address)
		assert.Equal(t, -1, prev.Cmp(next))
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	original := populatedCheckpoint(false)
	snapshot, err := original.ToSnapshot()
	require.NoError(t, err)

	loaded, err := FromSnapshot(snapshot)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)

	vault := loaded.Venues[sDAI].(*dex.Vault)
	assert.Equal(t, uint64(math.MaxUint64), vault.LastSynced.LogIndex)
	assert.Equal(t, "DAI", vault.Asset.Symbol)
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFileStore(filepath.Join(t.TempDir(), "checkpoint.json"))

	original := populatedCheckpoint(true)
	snapshot, err := original.ToSnapshot()
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, snapshot))

	stored, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	loaded, err := FromSnapshot(stored)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestFromSnapshotRejectsBadRecords(t *testing.T) {
	cases := map[string]*storage.Snapshot{
		"address": {Blacklist: []string{"not-an-address"}},
		"reserve": {Venues: []storage.VenueRecord{{
			Kind: "uniswap_v2", Address: pairA.Hex(),
			Token0: storage.CurrencyRecord{Address: usdc.Hex()}, Token1: storage.CurrencyRecord{Address: weth.Hex()},
			Reserve0: "-1", Reserve1: "0",
		}}},
		"kind": {Venues: []storage.VenueRecord{{
			Kind: "curve", Address: pairA.Hex(),
			Token0: storage.CurrencyRecord{Address: usdc.Hex()}, Token1: storage.CurrencyRecord{Address: weth.Hex()},
		}}},
		"vault share": {Venues: []storage.VenueRecord{{
			Kind: "erc4626", Address: sDAI.Hex(),
			Token0: storage.CurrencyRecord{Address: dai.Hex()}, Token1: storage.CurrencyRecord{Address: dai.Hex()},
		}}},
	}
	for name, snapshot := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromSnapshot(snapshot)
			assert.True(t, errors.Is(err, storage.ErrSerialization), "got %v", err)
		})
	}
}
