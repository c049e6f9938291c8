package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"reserveScope/internal/chain"
	"reserveScope/internal/currency"
	"reserveScope/internal/factory"
	"reserveScope/internal/indexer"
	"reserveScope/internal/metrics"
	"reserveScope/internal/storage"
)

// Config controls a sync cycle.
type Config struct {
	Factories         []factory.Factory
	Vaults            []VaultSeed
	DiscoveryWindow   uint64
	SyncWindow        uint64
	SyncSubWindow     uint64
	CurrencyChunkSize int
	Concurrency       int
}

// Syncer drives discovery, currency resolution, reserve replay and
// persistence over a checkpoint.
type Syncer struct {
	cfg      Config
	provider chain.Provider
	store    storage.Store
	logger   *zap.Logger
	metrics  *metrics.Metrics
	engine   *indexer.Engine
	resolver *currency.Resolver
}

// CycleReport summarises one cycle.
type CycleReport struct {
	Height      uint64
	Discovered  int
	Resolved    int
	Blacklisted int
	Evicted     int
	Seeded      int
	Sync        indexer.SyncResult
}

// NewSyncer builds a Syncer. A nil store disables persistence.
func NewSyncer(cfg Config, provider chain.Provider, store storage.Store, logger *zap.Logger, m *metrics.Metrics) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CurrencyChunkSize <= 0 {
		cfg.CurrencyChunkSize = currency.DefaultChunkSize
	}
	engine := indexer.NewEngine(indexer.EngineConfig{
		Window:      cfg.SyncWindow,
		SubWindow:   cfg.SyncSubWindow,
		Concurrency: cfg.Concurrency,
	}, provider, logger, m)

	return &Syncer{
		cfg:      cfg,
		provider: provider,
		store:    store,
		logger:   logger,
		metrics:  m,
		engine:   engine,
		resolver: currency.NewResolver(provider, cfg.Concurrency, logger),
	}
}

// Load returns the stored checkpoint, or a fresh one when the store is empty.
// Configured factories missing from the stored checkpoint are added.
func (s *Syncer) Load(ctx context.Context) (*Checkpoint, error) {
	c := NewFromFactories(s.cfg.Factories...)
	if s.store == nil {
		return c, nil
	}
	snapshot, ok, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Info("no checkpoint found, starting fresh", zap.Int("factories", len(c.Factories)))
		return c, nil
	}

	stored, err := FromSnapshot(snapshot)
	if err != nil {
		return nil, err
	}
	for addr, f := range c.Factories {
		if _, ok := stored.Factories[addr]; !ok {
			stored.Factories[addr] = f
		}
	}
	s.logger.Info("checkpoint loaded", zap.Stringer("checkpoint", stored))
	return stored, nil
}

// Save persists c.
func (s *Syncer) Save(ctx context.Context, c *Checkpoint) error {
	if s.store == nil {
		return nil
	}
	snapshot, err := c.ToSnapshot()
	if err != nil {
		return err
	}
	return s.store.Save(ctx, snapshot)
}

// Cycle runs one discovery, resolution, replay and persistence pass over c,
// all bounded by the chain height read at its start. Discovery and resolution
// are best-effort; a replay or save failure aborts the cycle.
func (s *Syncer) Cycle(ctx context.Context, c *Checkpoint) (CycleReport, error) {
	cycleStart := time.Now()
	defer s.metrics.ObservePhase("cycle", cycleStart)

	height, err := s.provider.CurrentBlockHeight(ctx)
	if err != nil {
		s.metrics.ProviderError("cycle")
		return CycleReport{}, fmt.Errorf("get latest block: %w", err)
	}
	report := CycleReport{Height: height}

	if err := s.discover(ctx, c, height, &report); err != nil {
		return report, err
	}
	if err := s.resolveCurrencies(ctx, c, &report); err != nil {
		return report, err
	}

	start := time.Now()
	result, err := s.engine.SyncReserves(ctx, c.Venues, c.syncStart(), height)
	s.metrics.ObservePhase("replay", start)
	report.Sync = result
	if err != nil {
		return report, fmt.Errorf("sync reserves: %w", err)
	}

	seeded, err := s.seedVaults(ctx, c, height)
	if err != nil {
		return report, err
	}
	for _, v := range seeded {
		if c.AddVenue(v) {
			report.Seeded++
		}
	}
	if report.Seeded > 0 {
		if err := s.resolveCurrencies(ctx, c, &report); err != nil {
			return report, err
		}
	}
	s.metrics.SetTrackedVenues(len(c.Venues))

	start = time.Now()
	if err := s.Save(ctx, c); err != nil {
		return report, fmt.Errorf("save checkpoint: %w", err)
	}
	s.metrics.ObservePhase("persist", start)

	s.logger.Info("cycle complete",
		zap.Uint64("height", height),
		zap.Int("discovered", report.Discovered),
		zap.Int("resolved", report.Resolved),
		zap.Int("blacklisted", report.Blacklisted),
		zap.Int("evicted", report.Evicted),
		zap.Int("seeded", report.Seeded),
		zap.Int("applied", report.Sync.Applied),
		zap.Int("venues", len(c.Venues)),
	)
	return report, nil
}

// Run repeats Cycle every interval until ctx is done. A zero interval runs once.
// Failed cycles are logged and retried on the next tick.
func (s *Syncer) Run(ctx context.Context, c *Checkpoint, interval time.Duration) error {
	if _, err := s.Cycle(ctx, c); err != nil {
		if interval <= 0 || ctx.Err() != nil {
			return err
		}
		s.logger.Error("cycle failed", zap.Error(err))
	}
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Cycle(ctx, c); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("cycle failed", zap.Error(err))
			}
		}
	}
}

func (s *Syncer) discover(ctx context.Context, c *Checkpoint, height uint64, report *CycleReport) error {
	start := time.Now()
	defer s.metrics.ObservePhase("discovery", start)

	from := c.ResumeHeight()
	if from > height {
		return nil
	}
	discoverer := factory.Discoverer{
		Registry:    c.Registry(),
		Provider:    s.provider,
		Window:      s.cfg.DiscoveryWindow,
		Concurrency: s.cfg.Concurrency,
		Logger:      s.logger,
	}
	known := func(addr common.Address) bool {
		_, ok := c.Venues[addr]
		return ok
	}
	discovery, err := discoverer.Discover(ctx, from, height, known)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.metrics.ProviderError("discovery")
		s.logger.Warn("discovery failed", zap.Uint64("from", from), zap.Error(err))
		return nil
	}
	if !discovery.Complete {
		s.metrics.ProviderError("discovery")
	}

	for _, v := range discovery.Venues {
		if c.AddVenue(v) {
			report.Discovered++
		}
	}
	s.metrics.Discovered(report.Discovered)

	if discovery.NextFrom > from {
		scanned := discovery.NextFrom - 1
		c.BlockNumber = &scanned
	}
	return nil
}

// resolveCurrencies fetches metadata for every unresolved venue token. Tokens
// that still fail one at a time are blacklisted and their venues evicted; tokens
// lost to transport failures stay pending for the next cycle.
func (s *Syncer) resolveCurrencies(ctx context.Context, c *Checkpoint, report *CycleReport) error {
	start := time.Now()
	defer s.metrics.ObservePhase("currencies", start)

	missing := c.MissingCurrencies()
	if len(missing) == 0 {
		return nil
	}

	result, err := s.resolver.Resolve(ctx, missing, s.cfg.CurrencyChunkSize)
	if err != nil {
		return resolveErr(ctx, err)
	}
	resolved := s.addCurrencies(c, result.Resolved)

	retry := append(append([]common.Address(nil), result.Invalid...), result.Unresolved...)
	var pending []common.Address
	if len(retry) > 0 {
		again, err := s.resolver.Resolve(ctx, retry, 1)
		if err != nil {
			return resolveErr(ctx, err)
		}
		resolved += s.addCurrencies(c, again.Resolved)

		unusable := again.Invalid
		pending = again.Unresolved
		// Tokens that fail on their own while others answer are unusable. When
		// every retry failed the provider is down and nothing is blacklisted.
		if len(pending) > 0 && len(pending) < len(retry) {
			unusable = append(unusable, pending...)
			pending = nil
		}
		if len(unusable) > 0 {
			evicted := c.BlacklistTokens(unusable...)
			report.Blacklisted += len(unusable)
			report.Evicted += len(evicted)
			s.metrics.Blacklisted(len(unusable))
			s.metrics.Evicted(len(evicted))
			for _, token := range unusable {
				s.logger.Warn("token blacklisted", zap.String("token", token.Hex()))
			}
		}
	}
	if len(pending) > 0 {
		s.metrics.ProviderError("currencies")
	}
	report.Resolved += resolved
	s.metrics.Resolved(resolved)

	s.logger.Info("currencies resolved",
		zap.Int("missing", len(missing)),
		zap.Int("resolved", resolved),
		zap.Int("pending", len(pending)),
		zap.Int("blacklist", len(c.Blacklist)),
	)
	return nil
}

func (s *Syncer) addCurrencies(c *Checkpoint, currencies []currency.Currency) int {
	n := 0
	for _, cur := range currencies {
		if !cur.Valid() {
			continue
		}
		c.AddCurrency(cur)
		n++
	}
	return n
}

func resolveErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return ctxErr
	}
	return fmt.Errorf("resolve currencies: %w", err)
}
