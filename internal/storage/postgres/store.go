package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reserveScope/internal/storage"
)

//go:embed schema.sql
var schema string

// Store persists named checkpoints in Postgres.
type Store struct {
	pool *pgxpool.Pool
	name string
}

var _ storage.Store = (*Store)(nil)

func NewStore(ctx context.Context, dsn, name string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	if name == "" {
		return nil, fmt.Errorf("checkpoint name required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrIO, err)
	}
	return &Store{pool: pool, name: name}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the checkpoint tables if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%w: apply schema: %w", storage.ErrIO, err)
	}
	return nil
}

// Save replaces the stored checkpoint in a single transaction.
func (s *Store) Save(ctx context.Context, snapshot *storage.Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("%w: nil snapshot", storage.ErrSerialization)
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var block *int64
		if snapshot.BlockNumber != nil {
			b := int64(*snapshot.BlockNumber)
			block = &b
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO checkpoints (name, block_number, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (name) DO UPDATE
			SET block_number = EXCLUDED.block_number, updated_at = now()
		`, s.name, block); err != nil {
			return err
		}
		for _, table := range []string{"checkpoint_factories", "checkpoint_venues", "checkpoint_currencies", "checkpoint_blacklist"} {
			if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE checkpoint=$1`, s.name); err != nil {
				return err
			}
		}

		batch := &pgx.Batch{}
		for _, f := range snapshot.Factories {
			batch.Queue(`
				INSERT INTO checkpoint_factories (checkpoint, address, kind, creation_block, fee_bps)
				VALUES ($1, $2, $3, $4, $5)
			`, s.name, f.Address, f.Kind, int64(f.CreationBlock), int32(f.FeeBps))
		}
		for _, v := range snapshot.Venues {
			batch.Queue(`
				INSERT INTO checkpoint_venues (
					checkpoint, address, kind,
					token0, token0_symbol, token0_decimals,
					token1, token1_symbol, token1_decimals,
					reserve0, reserve1, fee0, fee1, block_number, log_index
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
			`,
				s.name, v.Address, v.Kind,
				v.Token0.Address, v.Token0.Symbol, int16(v.Token0.Decimals),
				v.Token1.Address, v.Token1.Symbol, int16(v.Token1.Decimals),
				v.Reserve0, v.Reserve1,
				int32(v.Fee0), int32(v.Fee1),
				int64(v.BlockNumber), int64(v.LogIndex),
			)
		}
		for _, c := range snapshot.Currencies {
			batch.Queue(`
				INSERT INTO checkpoint_currencies (checkpoint, address, symbol, decimals)
				VALUES ($1, $2, $3, $4)
			`, s.name, c.Address, c.Symbol, int16(c.Decimals))
		}
		for _, addr := range snapshot.Blacklist {
			batch.Queue(`INSERT INTO checkpoint_blacklist (checkpoint, address) VALUES ($1, $2)`, s.name, addr)
		}
		if batch.Len() == 0 {
			return nil
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("%w: save checkpoint %s: %w", storage.ErrIO, s.name, err)
	}
	return nil
}

// Load reads the named checkpoint.
func (s *Store) Load(ctx context.Context) (*storage.Snapshot, bool, error) {
	var block *int64
	row := s.pool.QueryRow(ctx, `SELECT block_number FROM checkpoints WHERE name=$1`, s.name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: load checkpoint %s: %w", storage.ErrIO, s.name, err)
	}

	snapshot := &storage.Snapshot{
		Factories:  []storage.FactoryRecord{},
		Venues:     []storage.VenueRecord{},
		Currencies: []storage.CurrencyRecord{},
		Blacklist:  []string{},
	}
	if block != nil {
		b := uint64(*block)
		snapshot.BlockNumber = &b
	}

	if err := s.loadFactories(ctx, snapshot); err != nil {
		return nil, false, err
	}
	if err := s.loadVenues(ctx, snapshot); err != nil {
		return nil, false, err
	}
	if err := s.loadCurrencies(ctx, snapshot); err != nil {
		return nil, false, err
	}
	if err := s.loadBlacklist(ctx, snapshot); err != nil {
		return nil, false, err
	}
	return snapshot, true, nil
}

func (s *Store) loadFactories(ctx context.Context, snapshot *storage.Snapshot) error {
	rows, err := s.pool.Query(ctx, `
		SELECT address, kind, creation_block, fee_bps
		FROM checkpoint_factories WHERE checkpoint=$1 ORDER BY address COLLATE "C"
	`, s.name)
	if err != nil {
		return fmt.Errorf("%w: load factories: %w", storage.ErrIO, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			f       storage.FactoryRecord
			created int64
			fee     int32
		)
		if err := rows.Scan(&f.Address, &f.Kind, &created, &fee); err != nil {
			return fmt.Errorf("%w: scan factory: %w", storage.ErrIO, err)
		}
		f.CreationBlock = uint64(created)
		f.FeeBps = uint32(fee)
		snapshot.Factories = append(snapshot.Factories, f)
	}
	return wrapRowsErr(rows.Err())
}

func (s *Store) loadVenues(ctx context.Context, snapshot *storage.Snapshot) error {
	rows, err := s.pool.Query(ctx, `
		SELECT address, kind,
			token0, token0_symbol, token0_decimals,
			token1, token1_symbol, token1_decimals,
			reserve0, reserve1, fee0, fee1, block_number, log_index
		FROM checkpoint_venues WHERE checkpoint=$1 ORDER BY address COLLATE "C"
	`, s.name)
	if err != nil {
		return fmt.Errorf("%w: load venues: %w", storage.ErrIO, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			v            storage.VenueRecord
			dec0, dec1   int16
			fee0, fee1   int32
			block, index int64
		)
		if err := rows.Scan(
			&v.Address, &v.Kind,
			&v.Token0.Address, &v.Token0.Symbol, &dec0,
			&v.Token1.Address, &v.Token1.Symbol, &dec1,
			&v.Reserve0, &v.Reserve1, &fee0, &fee1, &block, &index,
		); err != nil {
			return fmt.Errorf("%w: scan venue: %w", storage.ErrIO, err)
		}
		v.Token0.Decimals = uint8(dec0)
		v.Token1.Decimals = uint8(dec1)
		v.Fee0 = uint32(fee0)
		v.Fee1 = uint32(fee1)
		v.BlockNumber = uint64(block)
		v.LogIndex = uint64(index)
		snapshot.Venues = append(snapshot.Venues, v)
	}
	return wrapRowsErr(rows.Err())
}

func (s *Store) loadCurrencies(ctx context.Context, snapshot *storage.Snapshot) error {
	rows, err := s.pool.Query(ctx, `
		SELECT address, symbol, decimals
		FROM checkpoint_currencies WHERE checkpoint=$1 ORDER BY address COLLATE "C"
	`, s.name)
	if err != nil {
		return fmt.Errorf("%w: load currencies: %w", storage.ErrIO, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c   storage.CurrencyRecord
			dec int16
		)
		if err := rows.Scan(&c.Address, &c.Symbol, &dec); err != nil {
			return fmt.Errorf("%w: scan currency: %w", storage.ErrIO, err)
		}
		c.Decimals = uint8(dec)
		snapshot.Currencies = append(snapshot.Currencies, c)
	}
	return wrapRowsErr(rows.Err())
}

func (s *Store) loadBlacklist(ctx context.Context, snapshot *storage.Snapshot) error {
	rows, err := s.pool.Query(ctx, `
		SELECT address FROM checkpoint_blacklist WHERE checkpoint=$1 ORDER BY address COLLATE "C"
	`, s.name)
	if err != nil {
		return fmt.Errorf("%w: load blacklist: %w", storage.ErrIO, err)
	}
	defer rows.Close()

	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return fmt.Errorf("%w: scan blacklist: %w", storage.ErrIO, err)
		}
		snapshot.Blacklist = append(snapshot.Blacklist, addr)
	}
	return wrapRowsErr(rows.Err())
}

func wrapRowsErr(err error) error {
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrIO, err)
	}
	return nil
}
