package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reserveScope/internal/checkpoint"
	"reserveScope/internal/dex"
	"reserveScope/internal/factory"
)

const uniFactory = "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), cfg.DiscoveryWindow)
	assert.Equal(t, uint64(2500), cfg.SyncWindow)
	assert.Equal(t, uint64(250), cfg.SyncSubWindow)
	assert.Equal(t, 150, cfg.CurrencyChunkSize)
	assert.Equal(t, 16, cfg.MaxConcurrency)
	assert.Equal(t, "./data/checkpoint.json", cfg.Checkpoint)
	assert.Equal(t, "default", cfg.CheckpointName)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBackoff)
	assert.Equal(t, time.Duration(0), cfg.Interval)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "syncer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rpc: http://file:8545
sync-window: 100
factory:
  - uniswap_v2:`+uniFactory+`:10000835:30
vault:
  - 0x83F20F44975D03b1b09e64809B757c47f942BEeA:0:5
`), 0o644))

	t.Setenv("SYNCER_SYNC_WINDOW", "200")
	t.Setenv("SYNCER_PG_DSN", "postgres://env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.Uint64("sync-window", 0, "")
	require.NoError(t, flags.Parse([]string{"--rpc", "http://flag:8545"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "http://flag:8545", cfg.RPCURL)
	assert.Equal(t, uint64(200), cfg.SyncWindow)
	assert.Equal(t, "postgres://env", cfg.PGDSN)
	assert.Len(t, cfg.Factories, 1)
	assert.Len(t, cfg.Vaults, 1)

	syncerCfg, err := cfg.SyncerConfig()
	require.NoError(t, err)
	assert.Equal(t, []factory.Factory{{
		Address:       common.HexToAddress(uniFactory),
		Kind:          dex.KindConstantProduct,
		CreationBlock: 10_000_835,
		FeeBps:        30,
	}}, syncerCfg.Factories)
	assert.Equal(t, []checkpoint.VaultSeed{{
		Address:        common.HexToAddress("0x83F20F44975D03b1b09e64809B757c47f942BEeA"),
		WithdrawFeeBps: 5,
	}}, syncerCfg.Vaults)
}

func TestParseFactories(t *testing.T) {
	factories, err := ParseFactories([]string{"UNISWAP_V2:" + uniFactory + ":42"})
	require.NoError(t, err)
	require.Len(t, factories, 1)
	assert.Equal(t, uint32(30), factories[0].FeeBps)
	assert.Equal(t, uint64(42), factories[0].CreationBlock)

	for _, bad := range []string{
		"uniswap_v2:" + uniFactory,
		"curve:" + uniFactory + ":1",
		"uniswap_v2:0x123:1",
		"uniswap_v2:" + uniFactory + ":x",
		"uniswap_v2:" + uniFactory + ":1:10001",
	} {
		_, err := ParseFactories([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestParseVaults(t *testing.T) {
	vaults, err := ParseVaults([]string{"0x83F20F44975D03b1b09e64809B757c47f942BEeA"})
	require.NoError(t, err)
	require.Len(t, vaults, 1)
	assert.Zero(t, vaults[0].DepositFeeBps)

	_, err = ParseVaults([]string{"0x83F20F44975D03b1b09e64809B757c47f942BEeA:1:2:3"})
	assert.Error(t, err)
	_, err = ParseVaults([]string{"nope"})
	assert.Error(t, err)
}

func TestParseAddresses(t *testing.T) {
	addrs, err := ParseAddresses([]string{" " + uniFactory + " ", ""})
	require.NoError(t, err)
	assert.Equal(t, []common.Address{common.HexToAddress(uniFactory)}, addrs)

	_, err = ParseAddresses([]string{"0xzz"})
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test, restoring
// it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
