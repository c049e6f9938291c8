package currency

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"reserveScope/internal/chain"
)

// DefaultChunkSize is the number of tokens resolved per batched read.
const DefaultChunkSize = 150

var ErrInvalidBatchResponse = errors.New("invalid batch response")

// Result is the outcome of a resolution pass.
type Result struct {
	Resolved []Currency
	// Invalid tokens answered but with unusable metadata (reverted call, empty symbol, zero address).
	Invalid []common.Address
	// Unresolved tokens belonged to a chunk whose batch failed as a whole.
	Unresolved []common.Address
}

// Resolver fetches ERC20 symbol and decimals through batched reads.
type Resolver struct {
	provider    chain.Provider
	concurrency int
	logger      *zap.Logger
}

func NewResolver(provider chain.Provider, concurrency int, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{provider: provider, concurrency: concurrency, logger: logger}
}

// Resolve looks up metadata for addresses, chunkSize tokens per batch, chunks in
// parallel. Failed chunks are logged and reported as Unresolved.
func (r *Resolver) Resolve(ctx context.Context, addresses []common.Address, chunkSize int) (Result, error) {
	if r.provider == nil {
		return Result{}, fmt.Errorf("provider is nil")
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var result Result
	unique := dedupe(addresses)
	pending := make([]common.Address, 0, len(unique))
	for _, addr := range unique {
		if addr == (common.Address{}) {
			result.Invalid = append(result.Invalid, addr)
			continue
		}
		pending = append(pending, addr)
	}

	var (
		mu    sync.Mutex
		group errgroup.Group
	)
	if r.concurrency > 0 {
		group.SetLimit(r.concurrency)
	}

	for start := 0; start < len(pending); start += chunkSize {
		end := start + chunkSize
		if end > len(pending) {
			end = len(pending)
		}
		chunk := pending[start:end]

		group.Go(func() error {
			resolved, invalid, err := r.resolveChunk(ctx, chunk)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.logger.Warn("currency chunk failed", zap.Int("chunk_size", len(chunk)), zap.Error(err))
				result.Unresolved = append(result.Unresolved, chunk...)
				return nil
			}
			result.Resolved = append(result.Resolved, resolved...)
			result.Invalid = append(result.Invalid, invalid...)
			return nil
		})
	}
	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (r *Resolver) resolveChunk(ctx context.Context, chunk []common.Address) ([]Currency, []common.Address, error) {
	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		return nil, nil, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	decimalsData, err := stringABI.Pack("decimals")
	if err != nil {
		return nil, nil, fmt.Errorf("pack decimals: %w", err)
	}
	symbolData, err := stringABI.Pack("symbol")
	if err != nil {
		return nil, nil, fmt.Errorf("pack symbol: %w", err)
	}

	calls := make([]chain.Call, 0, 2*len(chunk))
	for _, token := range chunk {
		calls = append(calls,
			chain.Call{To: token, Data: decimalsData},
			chain.Call{To: token, Data: symbolData},
		)
	}

	results, err := r.provider.BatchedRead(ctx, nil, calls)
	if err != nil {
		return nil, nil, err
	}
	if len(results) != len(calls) {
		return nil, nil, fmt.Errorf("%w: %d results for %d calls", ErrInvalidBatchResponse, len(results), len(calls))
	}

	resolved := make([]Currency, 0, len(chunk))
	var invalid []common.Address
	for i, token := range chunk {
		c, err := decodeMetadata(token, results[2*i], results[2*i+1])
		if err != nil {
			r.logger.Debug("token metadata unusable", zap.String("token", token.Hex()), zap.Error(err))
			invalid = append(invalid, token)
			continue
		}
		resolved = append(resolved, c)
	}
	return resolved, invalid, nil
}

func decodeMetadata(token common.Address, decimalsResult, symbolResult chain.CallResult) (Currency, error) {
	if decimalsResult.Err != nil {
		return Currency{}, fmt.Errorf("call decimals: %w", decimalsResult.Err)
	}
	if symbolResult.Err != nil {
		return Currency{}, fmt.Errorf("call symbol: %w", symbolResult.Err)
	}

	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		return Currency{}, err
	}
	values, err := stringABI.Unpack("decimals", decimalsResult.Data)
	if err != nil {
		return Currency{}, fmt.Errorf("unpack decimals: %w", err)
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return Currency{}, fmt.Errorf("unsupported decimals type %T", values[0])
	}

	symbol, err := decodeSymbol(symbolResult.Data)
	if err != nil {
		return Currency{}, err
	}

	c := Currency{Address: token, Symbol: symbol, Decimals: decimals}
	if !c.Valid() {
		return Currency{}, fmt.Errorf("empty symbol")
	}
	return c, nil
}

func decodeSymbol(data []byte) (string, error) {
	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		return "", err
	}
	if values, err := stringABI.Unpack("symbol", data); err == nil {
		if symbol, ok := values[0].(string); ok {
			return symbol, nil
		}
	}

	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return "", err
	}
	values, err := bytes32ABI.Unpack("symbol", data)
	if err != nil {
		return "", fmt.Errorf("unpack symbol: %w", err)
	}
	if symbol, ok := bytes32ToString(values[0]); ok {
		return symbol, nil
	}
	return "", fmt.Errorf("unsupported symbol type %T", values[0])
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func dedupe(addresses []common.Address) []common.Address {
	seen := make(map[common.Address]struct{}, len(addresses))
	out := make([]common.Address, 0, len(addresses))
	for _, addr := range addresses {
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}
