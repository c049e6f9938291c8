package indexer

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"reserveScope/internal/chain"
	"reserveScope/internal/dex"
	"reserveScope/internal/metrics"
	"reserveScope/internal/model"
)

const (
	DefaultWindow    = 2500
	DefaultSubWindow = 250
)

// EngineConfig holds replay settings.
type EngineConfig struct {
	Window      uint64
	SubWindow   uint64
	Concurrency int
}

// Engine replays venue events from the chain into in-memory venues.
type Engine struct {
	cfg      EngineConfig
	provider chain.Provider
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// SyncResult summarises one SyncReserves call.
type SyncResult struct {
	From    uint64
	To      uint64
	Applied int
	Skipped int
}

// NewEngine builds an Engine, filling unset windows with defaults.
func NewEngine(cfg EngineConfig, provider chain.Provider, logger *zap.Logger, m *metrics.Metrics) *Engine {
	if cfg.Window == 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.SubWindow == 0 {
		cfg.SubWindow = DefaultSubWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, provider: provider, logger: logger, metrics: m}
}

// SyncReserves replays every subscribed event in [start, to] into venues; to == 0
// means the current height. Each window is applied to copies of the touched
// venues and committed only once all of its logs applied. The first provider or
// apply error aborts the call, leaving venues at the last committed window.
func (e *Engine) SyncReserves(ctx context.Context, venues map[common.Address]dex.Venue, start, to uint64) (SyncResult, error) {
	if e.provider == nil {
		return SyncResult{}, fmt.Errorf("provider is nil")
	}

	latest := to
	if latest == 0 {
		height, err := e.provider.CurrentBlockHeight(ctx)
		if err != nil {
			e.metrics.ProviderError("replay")
			return SyncResult{}, fmt.Errorf("get latest block: %w", err)
		}
		latest = height
	}
	result := SyncResult{From: start, To: latest}
	if len(venues) == 0 || start > latest {
		e.logger.Info("nothing to sync", zap.Uint64("from", start), zap.Uint64("to", latest), zap.Int("venues", len(venues)))
		return result, nil
	}

	query := chain.LogQuery{Topics: EventTopics(venues)}
	fetcher := Fetcher{Provider: e.provider, Concurrency: e.cfg.Concurrency, Logger: e.logger}

	windows, err := SplitRange(start, latest, e.cfg.Window)
	if err != nil {
		return result, err
	}
	for _, window := range windows {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		subRanges, err := SplitRange(window.From, window.To, e.cfg.SubWindow)
		if err != nil {
			return result, err
		}
		logs, err := fetcher.FetchAll(ctx, query, subRanges)
		if err != nil {
			e.metrics.ProviderError("replay")
			return result, fmt.Errorf("fetch window %s: %w", window, err)
		}

		replay, err := ReduceLogs(logs, venues)
		if err != nil {
			return result, fmt.Errorf("reduce window %s: %w", window, err)
		}
		applied, skipped, err := e.apply(venues, replay)
		if err != nil {
			return result, fmt.Errorf("replay window %s: %w", window, err)
		}
		result.Applied += applied
		result.Skipped += skipped

		e.metrics.SetSyncedHeight(window.To)
		e.logger.Debug("window replayed",
			zap.Uint64("from", window.From),
			zap.Uint64("to", window.To),
			zap.Int("logs", len(logs)),
			zap.Int("applied", applied),
		)
	}

	e.logger.Info("reserves synced",
		zap.Uint64("from", start),
		zap.Uint64("to", latest),
		zap.Int("applied", result.Applied),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (e *Engine) apply(venues map[common.Address]dex.Venue, logs []model.EventLog) (int, int, error) {
	staged := make(map[common.Address]dex.Venue)
	applied, skipped := 0, 0
	for _, log := range logs {
		venue, ok := staged[log.Address]
		if !ok {
			venue = venues[log.Address].Clone()
			staged[log.Address] = venue
		}
		if err := venue.ApplyEvent(log); err != nil {
			if errors.Is(err, model.ErrAlreadySynced) {
				skipped++
				continue
			}
			return 0, 0, fmt.Errorf("apply to %s: %w", log.Address.Hex(), err)
		}
		applied++
	}

	for addr, venue := range staged {
		venues[addr] = venue
	}
	for i := 0; i < applied; i++ {
		e.metrics.LogApplied()
	}
	for i := 0; i < skipped; i++ {
		e.metrics.LogSkipped("already_synced")
	}
	return applied, skipped, nil
}

// EventTopics returns the deduplicated, sorted union of the venues' event signatures.
func EventTopics(venues map[common.Address]dex.Venue) []common.Hash {
	seen := make(map[common.Hash]struct{})
	for _, venue := range venues {
		for _, sig := range venue.EventSignatures() {
			seen[sig] = struct{}{}
		}
	}
	topics := make([]common.Hash, 0, len(seen))
	for sig := range seen {
		topics = append(topics, sig)
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Cmp(topics[j]) < 0 })
	return topics
}

// ReduceLogs drops logs of untracked emitters, keeps only the newest log per
// snapshot-style venue, and orders the rest by cursor.
func ReduceLogs(logs []model.EventLog, venues map[common.Address]dex.Venue) ([]model.EventLog, error) {
	type entry struct {
		log    model.EventLog
		cursor model.Cursor
	}

	latest := make(map[common.Address]entry)
	var entries []entry
	for _, log := range logs {
		venue, ok := venues[log.Address]
		if !ok {
			continue
		}
		cursor, err := log.Cursor()
		if err != nil {
			return nil, fmt.Errorf("log from %s: %w", log.Address.Hex(), err)
		}
		if !venue.SnapshotEvents() {
			entries = append(entries, entry{log: log, cursor: cursor})
			continue
		}
		if prev, ok := latest[log.Address]; !ok || prev.cursor.Less(cursor) {
			latest[log.Address] = entry{log: log, cursor: cursor}
		}
	}
	for _, e := range latest {
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].cursor.Less(entries[j].cursor) })
	out := make([]model.EventLog, len(entries))
	for i, e := range entries {
		out[i] = e.log
	}
	return out, nil
}
