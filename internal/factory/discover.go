package factory

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"reserveScope/internal/chain"
	"reserveScope/internal/dex"
	"reserveScope/internal/indexer"
)

// DefaultWindow is the number of blocks per discovery log query.
const DefaultWindow = 1000

// Discovery is the outcome of one discovery pass.
type Discovery struct {
	Venues []dex.Venue
	// NextFrom is the first block not covered by the contiguous scanned prefix.
	NextFrom uint64
	// Complete is false when some window failed.
	Complete bool
}

// Discoverer scans factory creation events for new venues.
type Discoverer struct {
	Registry    *Registry
	Provider    chain.Provider
	Window      uint64
	Concurrency int
	Logger      *zap.Logger
}

// Discover scans [from, to] (to == 0 means the current height) and returns
// venues not matched by known. Undecodable logs and failed windows are skipped.
func (d *Discoverer) Discover(ctx context.Context, from, to uint64, known func(common.Address) bool) (Discovery, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if d.Provider == nil {
		return Discovery{}, fmt.Errorf("provider is nil")
	}
	if d.Registry == nil || d.Registry.Len() == 0 {
		return Discovery{NextFrom: from, Complete: true}, nil
	}

	if to == 0 {
		latest, err := d.Provider.CurrentBlockHeight(ctx)
		if err != nil {
			return Discovery{}, fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}
	if from > to {
		return Discovery{NextFrom: from, Complete: true}, nil
	}

	window := d.Window
	if window == 0 {
		window = DefaultWindow
	}
	ranges, err := indexer.SplitRange(from, to, window)
	if err != nil {
		return Discovery{}, err
	}
	addresses, topics, err := d.Registry.CreationEventFilter()
	if err != nil {
		return Discovery{}, err
	}

	fetcher := indexer.Fetcher{Provider: d.Provider, Concurrency: d.Concurrency, Logger: logger}
	logs, failed := fetcher.FetchBestEffort(ctx, chain.LogQuery{Addresses: addresses, Topics: topics}, ranges)
	if err := ctx.Err(); err != nil {
		return Discovery{}, err
	}

	found := make(map[common.Address]dex.Venue)
	for _, log := range logs {
		f, ok := d.Registry.Get(log.Address)
		if !ok {
			continue
		}
		venue, err := f.NewVenue(log)
		if err != nil {
			logger.Debug("skip creation log", zap.String("factory", f.Address.Hex()), zap.Error(err))
			continue
		}
		if known != nil && known(venue.Address()) {
			continue
		}
		found[venue.Address()] = venue
	}

	out := Discovery{NextFrom: to + 1, Complete: len(failed) == 0}
	if !out.Complete {
		out.NextFrom = failed[0].From
	}
	out.Venues = make([]dex.Venue, 0, len(found))
	for _, venue := range found {
		out.Venues = append(out.Venues, venue)
	}
	sort.Slice(out.Venues, func(i, j int) bool {
		return out.Venues[i].Address().Cmp(out.Venues[j].Address()) < 0
	})

	logger.Info("discovery complete",
		zap.Uint64("from", from),
		zap.Uint64("to", to),
		zap.Uint64("next_from", out.NextFrom),
		zap.Int("failed_windows", len(failed)),
		zap.Int("venues", len(out.Venues)),
	)
	return out, nil
}
