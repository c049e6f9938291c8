package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"reserveScope/internal/storage"
)

//go:embed schema.sql
var schema string

var childTables = []string{
	"checkpoint_factories",
	"checkpoint_venues",
	"checkpoint_currencies",
	"checkpoint_blacklist",
}

// Store persists named checkpoints in a local SQLite database.
type Store struct {
	db   *sql.DB
	name string
}

var _ storage.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path, name string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if name == "" {
		return nil, fmt.Errorf("checkpoint name required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create sqlite dir: %w", storage.ErrIO, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %w", storage.ErrIO, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: apply schema: %w", storage.ErrIO, err)
	}
	return &Store{db: db, name: name}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Save(ctx context.Context, snapshot *storage.Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("%w: nil snapshot", storage.ErrSerialization)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", storage.ErrIO, err)
	}
	if err := s.save(ctx, tx, snapshot); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: save checkpoint %s: %w", storage.ErrIO, s.name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", storage.ErrIO, err)
	}
	return nil
}

func (s *Store) save(ctx context.Context, tx *sql.Tx, snapshot *storage.Snapshot) error {
	var block sql.NullInt64
	if snapshot.BlockNumber != nil {
		block = sql.NullInt64{Int64: int64(*snapshot.BlockNumber), Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO checkpoints (name, block_number, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET block_number = excluded.block_number, updated_at = excluded.updated_at
	`, s.name, block, time.Now().Unix()); err != nil {
		return err
	}
	for _, table := range childTables {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE checkpoint = ?`, s.name); err != nil {
			return err
		}
	}

	factories, err := tx.PrepareContext(ctx, `
		INSERT INTO checkpoint_factories (checkpoint, address, kind, creation_block, fee_bps) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer factories.Close()
	for _, f := range snapshot.Factories {
		if _, err := factories.ExecContext(ctx, s.name, f.Address, f.Kind, int64(f.CreationBlock), int64(f.FeeBps)); err != nil {
			return err
		}
	}

	venues, err := tx.PrepareContext(ctx, `
		INSERT INTO checkpoint_venues (
			checkpoint, address, kind,
			token0, token0_symbol, token0_decimals,
			token1, token1_symbol, token1_decimals,
			reserve0, reserve1, fee0, fee1, block_number, log_index
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer venues.Close()
	for _, v := range snapshot.Venues {
		if _, err := venues.ExecContext(ctx,
			s.name, v.Address, v.Kind,
			v.Token0.Address, v.Token0.Symbol, int64(v.Token0.Decimals),
			v.Token1.Address, v.Token1.Symbol, int64(v.Token1.Decimals),
			v.Reserve0, v.Reserve1, int64(v.Fee0), int64(v.Fee1),
			int64(v.BlockNumber), int64(v.LogIndex),
		); err != nil {
			return err
		}
	}

	currencies, err := tx.PrepareContext(ctx, `
		INSERT INTO checkpoint_currencies (checkpoint, address, symbol, decimals) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer currencies.Close()
	for _, c := range snapshot.Currencies {
		if _, err := currencies.ExecContext(ctx, s.name, c.Address, c.Symbol, int64(c.Decimals)); err != nil {
			return err
		}
	}

	blacklist, err := tx.PrepareContext(ctx, `INSERT INTO checkpoint_blacklist (checkpoint, address) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer blacklist.Close()
	for _, addr := range snapshot.Blacklist {
		if _, err := blacklist.ExecContext(ctx, s.name, addr); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Load(ctx context.Context) (*storage.Snapshot, bool, error) {
	var block sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT block_number FROM checkpoints WHERE name = ?`, s.name).Scan(&block)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	if block.Valid {
		b := uint64(block.Int64)
		snapshot.BlockNumber = &b
	}

	if err := s.query(ctx, `
		SELECT address, kind, creation_block, fee_bps
		FROM checkpoint_factories WHERE checkpoint = ? ORDER BY address
	`, func(rows *sql.Rows) error {
		var (
			f            storage.FactoryRecord
			created, fee int64
		)
		if err := rows.Scan(&f.Address, &f.Kind, &created, &fee); err != nil {
			return err
		}
		f.CreationBlock = uint64(created)
		f.FeeBps = uint32(fee)
		snapshot.Factories = append(snapshot.Factories, f)
		return nil
	}); err != nil {
		return nil, false, err
	}

	if err := s.query(ctx, `
		SELECT address, kind,
			token0, token0_symbol, token0_decimals,
			token1, token1_symbol, token1_decimals,
			reserve0, reserve1, fee0, fee1, block_number, log_index
		FROM checkpoint_venues WHERE checkpoint = ? ORDER BY address
	`, func(rows *sql.Rows) error {
		var (
			v                      storage.VenueRecord
			dec0, dec1, fee0, fee1 int64
			blockNumber, logIndex  int64
		)
		if err := rows.Scan(
			&v.Address, &v.Kind,
			&v.Token0.Address, &v.Token0.Symbol, &dec0,
			&v.Token1.Address, &v.Token1.Symbol, &dec1,
			&v.Reserve0, &v.Reserve1, &fee0, &fee1, &blockNumber, &logIndex,
		); err != nil {
			return err
		}
		v.Token0.Decimals = uint8(dec0)
		v.Token1.Decimals = uint8(dec1)
		v.Fee0 = uint32(fee0)
		v.Fee1 = uint32(fee1)
		v.BlockNumber = uint64(blockNumber)
		v.LogIndex = uint64(logIndex)
		snapshot.Venues = append(snapshot.Venues, v)
		return nil
	}); err != nil {
		return nil, false, err
	}

	if err := s.query(ctx, `
		SELECT address, symbol, decimals
		FROM checkpoint_currencies WHERE checkpoint = ? ORDER BY address
	`, func(rows *sql.Rows) error {
		var (
			c   storage.CurrencyRecord
			dec int64
		)
		if err := rows.Scan(&c.Address, &c.Symbol, &dec); err != nil {
			return err
		}
		c.Decimals = uint8(dec)
		snapshot.Currencies = append(snapshot.Currencies, c)
		return nil
	}); err != nil {
		return nil, false, err
	}

	if err := s.query(ctx, `
		SELECT address FROM checkpoint_blacklist WHERE checkpoint = ? ORDER BY address
	`, func(rows *sql.Rows) error {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return err
		}
		snapshot.Blacklist = append(snapshot.Blacklist, addr)
		return nil
	}); err != nil {
		return nil, false, err
	}

	return snapshot, true, nil
}

func (s *Store) query(ctx context.Context, q string, scan func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, q, s.name)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrIO, err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("%w: scan: %w", storage.ErrIO, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrIO, err)
	}
	return nil
}
