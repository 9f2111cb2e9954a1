package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/monterey-cards/repricer/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it in
// tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS comp_cache (
	title      TEXT PRIMARY KEY,
	prices     JSONB NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	item_id         TEXT,
	title           TEXT NOT NULL,
	current_price   DOUBLE PRECISION,
	median_active   DOUBLE PRECISION,
	median_sold     DOUBLE PRECISION,
	suggested_price DOUBLE PRECISION,
	status          TEXT NOT NULL,
	note            TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_comp_cache_expires_at ON comp_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_results_status ON results(status);
CREATE INDEX IF NOT EXISTS idx_results_title ON results(title);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetActiveComps(ctx context.Context, title string) ([]float64, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT prices FROM comp_cache WHERE title = $1 AND expires_at > now()`,
		title,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, eris.Wrapf(err, "postgres: get comp cache %q", title)
	}
	var prices []float64
	if err := json.Unmarshal(raw, &prices); err != nil {
		return nil, false, eris.Wrapf(err, "postgres: unmarshal comp cache %q", title)
	}
	return prices, true, nil
}

func (s *PostgresStore) PutActiveComps(ctx context.Context, title string, prices []float64, ttl time.Duration) error {
	raw, err := json.Marshal(prices)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal prices")
	}
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO comp_cache (title, prices, fetched_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (title) DO UPDATE SET prices = excluded.prices,
		 fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
		title, raw, now, now.Add(ttl),
	)
	return eris.Wrapf(err, "postgres: put comp cache %q", title)
}

func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM comp_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: purge expired")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) SaveResult(ctx context.Context, r model.RepriceResult) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO results (id, item_id, title, current_price, median_active, median_sold,
		 suggested_price, status, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.New().String(),
		r.Listing.ItemID,
		r.Listing.Title,
		r.Listing.CurrentPrice,
		r.Suggestion.MedianActive,
		r.Suggestion.MedianSold,
		r.Suggestion.SuggestedPrice,
		string(r.Status),
		r.Suggestion.Note,
		time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save result %q", r.Listing.Title)
}

func (s *PostgresStore) ListResults(ctx context.Context, filter ResultFilter) ([]model.RepriceResult, error) {
	query := `SELECT item_id, title, current_price, median_active, median_sold,
		suggested_price, status, note FROM results WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	if filter.Title != "" {
		query += ` AND title = ` + arg(filter.Title)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var out []model.RepriceResult
	for rows.Next() {
		var (
			r      model.RepriceResult
			status string
		)
		if err := rows.Scan(&r.Listing.ItemID, &r.Listing.Title, &r.Listing.CurrentPrice,
			&r.Suggestion.MedianActive, &r.Suggestion.MedianSold, &r.Suggestion.SuggestedPrice,
			&status, &r.Suggestion.Note); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		r.Status = model.RepriceStatus(status)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate results")
}
