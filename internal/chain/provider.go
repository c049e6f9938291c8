package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"reserveScope/internal/model"
)

// Provider is the read-only view of a chain the sync engine depends on.
type Provider interface {
	CurrentBlockHeight(ctx context.Context) (uint64, error)
	GetLogs(ctx context.Context, query LogQuery) ([]model.EventLog, error)
	// BatchedRead executes calls in one round trip. block nil means latest.
	// Per-call failures are reported in CallResult.Err.
	BatchedRead(ctx context.Context, block *big.Int, calls []Call) ([]CallResult, error)
}

// LogQuery selects logs in an inclusive block range. Empty Addresses matches
// any emitter; Topics are alternatives for topic 0.
type LogQuery struct {
	Addresses []common.Address
	Topics    []common.Hash
	FromBlock uint64
	ToBlock   uint64
}

// Call is a single eth_call.
type Call struct {
	To   common.Address
	Data []byte
}

type CallResult struct {
	Data []byte
	Err  error
}

// ProviderError wraps a failed provider operation.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
