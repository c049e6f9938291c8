package currency

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reserveScope/internal/chain"
	"reserveScope/internal/chain/chaintest"
)

var (
	weth  = common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")
	mkr   = common.HexToAddress("0x9f8f72aa9304c8b593d555f12ef6589cc3a579a2")
	empty = common.HexToAddress("0x0000000000000000000000000000000000000bad")
	dead  = common.HexToAddress("0x000000000000000000000000000000000000dead")
)

type token struct {
	symbol   string
	bytes32  bool
	decimals uint8
}

// tokenHandler answers decimals()/symbol() for the given tokens; everything else reverts.
func tokenHandler(t *testing.T, tokens map[common.Address]token) chaintest.CallHandler {
	stringABI, err := erc20ABIStringInstance()
	require.NoError(t, err)
	bytes32ABI, err := erc20ABIBytes32Instance()
	require.NoError(t, err)

	decimalsSel := stringABI.Methods["decimals"].ID
	symbolSel := stringABI.Methods["symbol"].ID

	return func(_ *big.Int, call chain.Call) chain.CallResult {
		tok, ok := tokens[call.To]
		if !ok {
			return chain.CallResult{Err: errors.New("execution reverted")}
		}
		switch {
		case bytes.Equal(call.Data[:4], decimalsSel):
			out, err := stringABI.Methods["decimals"].Outputs.Pack(tok.decimals)
			require.NoError(t, err)
			return chain.CallResult{Data: out}
		case bytes.Equal(call.Data[:4], symbolSel):
			if tok.bytes32 {
				var raw [32]byte
				copy(raw[:], tok.symbol)
				out, err := bytes32ABI.Methods["symbol"].Outputs.Pack(raw)
				require.NoError(t, err)
				return chain.CallResult{Data: out}
			}
			out, err := stringABI.Methods["symbol"].Outputs.Pack(tok.symbol)
			require.NoError(t, err)
			return chain.CallResult{Data: out}
		}
		return chain.CallResult{Err: errors.New("unknown selector")}
	}
}

func TestResolve(t *testing.T) {
	provider := chaintest.New(100)
	provider.HandleCalls(tokenHandler(t, map[common.Address]token{
		weth:  {symbol: "WETH", decimals: 18},
		mkr:   {symbol: "MKR", bytes32: true, decimals: 18},
		empty: {symbol: "", decimals: 6},
	}))

	resolver := NewResolver(provider, 4, nil)
	result, err := resolver.Resolve(context.Background(), []common.Address{weth, mkr, weth, empty, dead, {}}, 2)
	require.NoError(t, err)

	assert.ElementsMatch(t, []Currency{
		{Address: weth, Symbol: "WETH", Decimals: 18},
		{Address: mkr, Symbol: "MKR", Decimals: 18},
	}, result.Resolved)
	assert.ElementsMatch(t, []common.Address{empty, dead, {}}, result.Invalid)
	assert.Empty(t, result.Unresolved)

	// Four unique non-zero tokens in chunks of two.
	batches := provider.Batches()
	require.Len(t, batches, 2)
	for _, batch := range batches {
		assert.Len(t, batch, 4)
	}
}

func TestResolveChunkFailure(t *testing.T) {
	provider := chaintest.New(100)
	provider.FailBatches(errors.New("429 too many requests"))

	resolver := NewResolver(provider, 0, nil)
	result, err := resolver.Resolve(context.Background(), []common.Address{weth, mkr}, 0)
	require.NoError(t, err)

	assert.Empty(t, result.Resolved)
	assert.Empty(t, result.Invalid)
	assert.ElementsMatch(t, []common.Address{weth, mkr}, result.Unresolved)
}

func TestCurrencyValidity(t *testing.T) {
	assert.False(t, Unresolved(weth).Resolved())
	assert.False(t, Currency{Symbol: "X"}.Valid())
	assert.True(t, Currency{Address: weth, Symbol: "WETH"}.Valid())
}
