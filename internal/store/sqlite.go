package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/monterey-cards/repricer/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS comp_cache (
	title      TEXT PRIMARY KEY,
	prices     TEXT NOT NULL,
	fetched_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	id              TEXT PRIMARY KEY,
	item_id         TEXT,
	title           TEXT NOT NULL,
	current_price   REAL,
	median_active   REAL,
	median_sold     REAL,
	suggested_price REAL,
	status          TEXT NOT NULL,
	note            TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_comp_cache_expires_at ON comp_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_results_status ON results(status);
CREATE INDEX IF NOT EXISTS idx_results_title ON results(title);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetActiveComps(ctx context.Context, title string) ([]float64, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT prices FROM comp_cache WHERE title = ? AND expires_at > ?`,
		title, time.Now().UTC(),
	)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, eris.Wrapf(err, "sqlite: get comp cache %q", title)
	}
	var prices []float64
	if err := json.Unmarshal([]byte(raw), &prices); err != nil {
		return nil, false, eris.Wrapf(err, "sqlite: unmarshal comp cache %q", title)
	}
	return prices, true, nil
}

func (s *SQLiteStore) PutActiveComps(ctx context.Context, title string, prices []float64, ttl time.Duration) error {
	raw, err := json.Marshal(prices)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal prices")
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO comp_cache (title, prices, fetched_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(title) DO UPDATE SET prices = excluded.prices,
		 fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
		title, string(raw), now, now.Add(ttl),
	)
	return eris.Wrapf(err, "sqlite: put comp cache %q", title)
}

func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM comp_cache WHERE expires_at <= ?`, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge expired")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge rows affected")
	}
	return n, nil
}

func (s *SQLiteStore) SaveResult(ctx context.Context, r model.RepriceResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (id, item_id, title, current_price, median_active, median_sold,
		 suggested_price, status, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(),
		r.Listing.ItemID,
		r.Listing.Title,
		r.Listing.CurrentPrice,
		nullable(r.Suggestion.MedianActive),
		nullable(r.Suggestion.MedianSold),
		nullable(r.Suggestion.SuggestedPrice),
		string(r.Status),
		r.Suggestion.Note,
		time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save result %q", r.Listing.Title)
}

func (s *SQLiteStore) ListResults(ctx context.Context, filter ResultFilter) ([]model.RepriceResult, error) {
	query := `SELECT item_id, title, current_price, median_active, median_sold,
		suggested_price, status, note FROM results WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Title != "" {
		query += ` AND title = ?`
		args = append(args, filter.Title)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close()

	var out []model.RepriceResult
	for rows.Next() {
		var (
			r          model.RepriceResult
			status     string
			ma, ms, sp sql.NullFloat64
		)
		if err := rows.Scan(&r.Listing.ItemID, &r.Listing.Title, &r.Listing.CurrentPrice,
			&ma, &ms, &sp, &status, &r.Suggestion.Note); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		r.Status = model.RepriceStatus(status)
		r.Suggestion.MedianActive = fromNull(ma)
		r.Suggestion.MedianSold = fromNull(ms)
		r.Suggestion.SuggestedPrice = fromNull(sp)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate results")
}

func nullable(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func fromNull(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
