package indexer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"reserveScope/internal/chain"
	"reserveScope/internal/model"
)

// Fetcher runs one log query per block range concurrently.
type Fetcher struct {
	Provider    chain.Provider
	Concurrency int
	Logger      *zap.Logger
}

// FetchAll returns the logs of every range or the first error, cancelling
// outstanding queries.
func (f Fetcher) FetchAll(ctx context.Context, query chain.LogQuery, ranges []BlockRange) ([]model.EventLog, error) {
	group, ctx := errgroup.WithContext(ctx)
	if f.Concurrency > 0 {
		group.SetLimit(f.Concurrency)
	}

	var (
		mu   sync.Mutex
		logs []model.EventLog
	)
	for _, r := range ranges {
		r := r
		q := query
		q.FromBlock, q.ToBlock = r.From, r.To
		group.Go(func() error {
			batch, err := f.Provider.GetLogs(ctx, q)
			if err != nil {
				return fmt.Errorf("get logs %s: %w", r, err)
			}
			mu.Lock()
			logs = append(logs, batch...)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return logs, nil
}

// FetchBestEffort returns the logs of the ranges that succeeded and the ranges
// that failed, sorted by From.
func (f Fetcher) FetchBestEffort(ctx context.Context, query chain.LogQuery, ranges []BlockRange) ([]model.EventLog, []BlockRange) {
	var group errgroup.Group
	if f.Concurrency > 0 {
		group.SetLimit(f.Concurrency)
	}
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		mu     sync.Mutex
		logs   []model.EventLog
		failed []BlockRange
	)
	for _, r := range ranges {
		r := r
		q := query
		q.FromBlock, q.ToBlock = r.From, r.To
		group.Go(func() error {
			batch, err := f.Provider.GetLogs(ctx, q)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("log window failed", zap.Uint64("from", r.From), zap.Uint64("to", r.To), zap.Error(err))
				failed = append(failed, r)
				return nil
			}
			logs = append(logs, batch...)
			return nil
		})
	}
	_ = group.Wait()

	sort.Slice(failed, func(i, j int) bool { return failed[i].From < failed[j].From })
	return logs, failed
}
