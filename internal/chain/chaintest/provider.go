// Package chaintest provides a scripted in-memory chain.Provider.
package chaintest

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"reserveScope/internal/chain"
	"reserveScope/internal/model"
)

// ErrInjected is returned for block ranges marked with FailRange and for
// batches hitting an address marked with FailBatchesTo.
var ErrInjected = errors.New("injected provider failure")

// CallHandler answers a single call. A nil Data with nil Err is treated as an empty return.
type CallHandler func(block *big.Int, call chain.Call) chain.CallResult

// Provider serves logs and calls from memory.
type Provider struct {
	mu       sync.Mutex
	height   uint64
	logs     []model.EventLog
	failures []failure
	handler  CallHandler
	batchErr error
	failTo   map[common.Address]struct{}
	queries  []chain.LogQuery
	batches  [][]chain.Call
}

type failure struct {
	from, to uint64
}

var _ chain.Provider = (*Provider)(nil)

func New(height uint64) *Provider {
	return &Provider{height: height}
}

func (p *Provider) SetHeight(height uint64) {
	p.mu.Lock()
	p.height = height
	p.mu.Unlock()
}

// AddLogs appends logs to the simulated chain.
func (p *Provider) AddLogs(logs ...model.EventLog) {
	p.mu.Lock()
	p.logs = append(p.logs, logs...)
	p.mu.Unlock()
}

// FailRange makes every GetLogs query overlapping [from, to] fail.
func (p *Provider) FailRange(from, to uint64) {
	p.mu.Lock()
	p.failures = append(p.failures, failure{from: from, to: to})
	p.mu.Unlock()
}

// HandleCalls installs the handler used by BatchedRead.
func (p *Provider) HandleCalls(handler CallHandler) {
	p.mu.Lock()
	p.handler = handler
	p.mu.Unlock()
}

// FailBatches makes every BatchedRead fail with err until reset with nil.
func (p *Provider) FailBatches(err error) {
	p.mu.Lock()
	p.batchErr = err
	p.mu.Unlock()
}

// FailBatchesTo makes every BatchedRead containing a call to one of addrs fail
// as a whole.
func (p *Provider) FailBatchesTo(addrs ...common.Address) {
	p.mu.Lock()
	if p.failTo == nil {
		p.failTo = make(map[common.Address]struct{})
	}
	for _, addr := range addrs {
		p.failTo[addr] = struct{}{}
	}
	p.mu.Unlock()
}

// Queries returns the log queries served so far.
func (p *Provider) Queries() []chain.LogQuery {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]chain.LogQuery(nil), p.queries...)
}

// Batches returns the call batches served so far.
func (p *Provider) Batches() [][]chain.Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]chain.Call(nil), p.batches...)
}

func (p *Provider) CurrentBlockHeight(context.Context) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.height, nil
}

func (p *Provider) GetLogs(_ context.Context, query chain.LogQuery) ([]model.EventLog, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.queries = append(p.queries, query)
	for _, f := range p.failures {
		if query.FromBlock <= f.to && f.from <= query.ToBlock {
			return nil, &chain.ProviderError{Op: "get_logs", Err: ErrInjected}
		}
	}

	addresses := make(map[common.Address]struct{}, len(query.Addresses))
	for _, addr := range query.Addresses {
		addresses[addr] = struct{}{}
	}
	topics := make(map[common.Hash]struct{}, len(query.Topics))
	for _, topic := range query.Topics {
		topics[topic] = struct{}{}
	}

	var out []model.EventLog
	for _, log := range p.logs {
		if log.BlockNumber != nil && (*log.BlockNumber < query.FromBlock || *log.BlockNumber > query.ToBlock) {
			continue
		}
		if len(addresses) > 0 {
			if _, ok := addresses[log.Address]; !ok {
				continue
			}
		}
		if len(topics) > 0 {
			if _, ok := topics[log.Signature()]; !ok {
				continue
			}
		}
		out = append(out, log)
	}
	return out, nil
}

func (p *Provider) BatchedRead(_ context.Context, block *big.Int, calls []chain.Call) ([]chain.CallResult, error) {
	p.mu.Lock()
	handler := p.handler
	batchErr := p.batchErr
	for _, call := range calls {
		if _, ok := p.failTo[call.To]; ok && batchErr == nil {
			batchErr = ErrInjected
		}
	}
	p.batches = append(p.batches, calls)
	p.mu.Unlock()

	if batchErr != nil {
		return nil, &chain.ProviderError{Op: "batched_read", Err: batchErr}
	}
	results := make([]chain.CallResult, len(calls))
	for i, call := range calls {
		if handler == nil {
			results[i] = chain.CallResult{Err: errors.New("execution reverted")}
			continue
		}
		results[i] = handler(block, call)
	}
	return results, nil
}
