package dex

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"reserveScope/internal/currency"
	"reserveScope/internal/model"
)

var (
	pairAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenA   = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenB   = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func newTestPool(reserve0, reserve1 uint64, fee uint32) *ConstantProductPool {
	pool := NewConstantProductPool(pairAddr, tokenA, tokenB, fee)
	pool.Reserve0 = uint256.NewInt(reserve0)
	pool.Reserve1 = uint256.NewInt(reserve1)
	pool.SetCurrency(currency.Currency{Address: tokenA, Symbol: "AAA", Decimals: 18})
	pool.SetCurrency(currency.Currency{Address: tokenB, Symbol: "BBB", Decimals: 18})
	return pool
}

func buildSyncLog(t *testing.T, block, index uint64, reserve0, reserve1 *big.Int) model.EventLog {
	t.Helper()
	pairABI, err := V2PairABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	data, err := pairABI.Events["Sync"].Inputs.NonIndexed().Pack(reserve0, reserve1)
	if err != nil {
		t.Fatalf("pack sync: %v", err)
	}
	return buildLog(pairAddr, block, index, data, pairABI.Events["Sync"].ID)
}

func buildLog(address common.Address, block, index uint64, data []byte, topics ...common.Hash) model.EventLog {
	return model.EventLog{
		Address:     address,
		Topics:      topics,
		Data:        data,
		BlockNumber: &block,
		LogIndex:    &index,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func TestEventSignaturesMatchABI(t *testing.T) {
	pairABI, _ := V2PairABI()
	factoryABI, _ := V2FactoryABI()
	vaultABI, err := ERC4626ABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	cases := map[string][2]common.Hash{
		"Sync":        {SyncEventSignature, pairABI.Events["Sync"].ID},
		"PairCreated": {PairCreatedEventSignature, factoryABI.Events["PairCreated"].ID},
		"Deposit":     {DepositEventSignature, vaultABI.Events["Deposit"].ID},
		"Withdraw":    {WithdrawEventSignature, vaultABI.Events["Withdraw"].ID},
	}
	for name, pair := range cases {
		if pair[0] != pair[1] {
			t.Fatalf("%s signature mismatch: %s != %s", name, pair[0].Hex(), pair[1].Hex())
		}
	}
}

func TestPoolAmountOut(t *testing.T) {
	pool := newTestPool(1000, 1000, 30)
	out, err := pool.AmountOut(tokenA, uint256.NewInt(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Uint64() != 9 {
		t.Fatalf("amount out mismatch: %d", out.Uint64())
	}

	out, err = pool.AmountOut(tokenA, new(uint256.Int))
	if err != nil || !out.IsZero() {
		t.Fatalf("expected zero output for zero input, got %v %v", out, err)
	}

	if _, err := pool.AmountOut(common.HexToAddress("0x01"), uint256.NewInt(10)); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
}

func TestPoolApplySwap(t *testing.T) {
	pool := newTestPool(1000, 1000, 30)
	out, err := pool.ApplySwap(tokenA, uint256.NewInt(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Uint64() != 9 {
		t.Fatalf("amount out mismatch: %d", out.Uint64())
	}
	if pool.Reserve0.Uint64() != 1010 || pool.Reserve1.Uint64() != 991 {
		t.Fatalf("reserves mismatch: %d %d", pool.Reserve0.Uint64(), pool.Reserve1.Uint64())
	}
}

func TestPoolPrice(t *testing.T) {
	pool := newTestPool(1000, 2000, 30)
	price, err := pool.Price(tokenA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 2.0 {
		t.Fatalf("price mismatch: %v", price)
	}
	price, err = pool.Price(tokenB)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 0.5 {
		t.Fatalf("price mismatch: %v", price)
	}

	empty := NewConstantProductPool(pairAddr, tokenA, tokenB, 30)
	if price, err := empty.Price(tokenA); err != nil || price != 1.0 {
		t.Fatalf("expected 1.0 for empty pool, got %v %v", price, err)
	}
}

func TestPoolPriceLargeReserves(t *testing.T) {
	pool := NewConstantProductPool(pairAddr, tokenA, tokenB, 30)
	pool.Reserve0, _ = uint256.FromBig(mustBig("23595096345912178729927"))
	pool.Reserve1, _ = uint256.FromBig(mustBig("154664232014390554564"))

	for _, base := range []common.Address{tokenA, tokenB} {
		q, err := pool.PriceQ64(base)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if q.IsZero() {
			t.Fatalf("expected non-zero price for base %s", base.Hex())
		}
	}
}

func TestPoolApplySyncEvent(t *testing.T) {
	pool := NewConstantProductPool(pairAddr, tokenA, tokenB, 30)
	log := buildSyncLog(t, 100, 2, big.NewInt(500), big.NewInt(700))

	if err := pool.ApplyEvent(log); err != nil {
		t.Fatalf("apply sync: %v", err)
	}
	if pool.Reserve0.Uint64() != 500 || pool.Reserve1.Uint64() != 700 {
		t.Fatalf("reserves mismatch: %d %d", pool.Reserve0.Uint64(), pool.Reserve1.Uint64())
	}
	if pool.Cursor() != (model.Cursor{BlockNumber: 100, LogIndex: 2}) {
		t.Fatalf("cursor mismatch: %v", pool.Cursor())
	}

	// Replaying the same log is rejected and leaves state untouched.
	if err := pool.ApplyEvent(log); !errors.Is(err, model.ErrAlreadySynced) {
		t.Fatalf("expected ErrAlreadySynced, got %v", err)
	}
	older := buildSyncLog(t, 99, 5, big.NewInt(1), big.NewInt(1))
	if err := pool.ApplyEvent(older); !errors.Is(err, model.ErrAlreadySynced) {
		t.Fatalf("expected ErrAlreadySynced, got %v", err)
	}
	if pool.Reserve0.Uint64() != 500 {
		t.Fatalf("reserves changed by stale log")
	}
}

func TestPoolApplyEventErrors(t *testing.T) {
	pool := NewConstantProductPool(pairAddr, tokenA, tokenB, 30)

	unknown := buildLog(pairAddr, 10, 0, nil, DepositEventSignature)
	if err := pool.ApplyEvent(unknown); !errors.Is(err, model.ErrInvalidEventSignature) {
		t.Fatalf("expected ErrInvalidEventSignature, got %v", err)
	}

	truncated := buildLog(pairAddr, 10, 1, []byte{0x01}, SyncEventSignature)
	if err := pool.ApplyEvent(truncated); !errors.Is(err, model.ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}

	pending := buildSyncLog(t, 10, 2, big.NewInt(1), big.NewInt(1))
	pending.BlockNumber = nil
	if err := pool.ApplyEvent(pending); !errors.Is(err, model.ErrMissingBlockNumber) {
		t.Fatalf("expected ErrMissingBlockNumber, got %v", err)
	}
	if !pool.Cursor().IsZero() {
		t.Fatalf("cursor moved on failed apply: %v", pool.Cursor())
	}
}

func TestPoolPopulatedAndTokenOut(t *testing.T) {
	pool := NewConstantProductPool(pairAddr, tokenA, tokenB, 30)
	if pool.Populated() {
		t.Fatalf("empty pool reported populated")
	}
	populated := newTestPool(1, 1, 30)
	if !populated.Populated() {
		t.Fatalf("expected populated pool")
	}
	out, err := populated.TokenOut(tokenA)
	if err != nil || out != tokenB {
		t.Fatalf("token out mismatch: %s %v", out.Hex(), err)
	}

	clone := populated.Clone().(*ConstantProductPool)
	clone.Reserve0.SetUint64(99)
	if populated.Reserve0.Uint64() != 1 {
		t.Fatalf("clone shares reserve storage")
	}
}

func TestDecodePairCreated(t *testing.T) {
	factoryABI, err := V2FactoryABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	factory := common.HexToAddress("0x5c69bee701ef814a2b6a3edd4b1652cb9cc5aa6f")
	data, err := factoryABI.Events["PairCreated"].Inputs.NonIndexed().Pack(pairAddr, big.NewInt(12))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	log := buildLog(factory, 10, 0, data, PairCreatedEventSignature, topicFromAddress(tokenA), topicFromAddress(tokenB))

	got, err := DecodePairCreated(log)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := PairCreated{Token0: tokenA, Token1: tokenB, Pair: pairAddr}
	if got != want {
		t.Fatalf("decoded mismatch: %+v != %+v", got, want)
	}

	log.Topics = log.Topics[:2]
	if _, err := DecodePairCreated(log); !errors.Is(err, model.ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("invalid decimal " + s)
	}
	return v
}
