package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"bluray-lister/models"
)

// PriceCache keeps recent market price signals in SQLite, keyed by
// normalised title and condition.
type PriceCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// OpenPriceCache opens (creating if needed) the SQLite file at path.
// ":memory:" gives a throwaway cache.
func OpenPriceCache(path string, ttl time.Duration) (*PriceCache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("pricecache: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("pricecache: open: %w", err)
	}
	// one connection keeps ":memory:" a single database
	db.SetMaxOpenConns(1)

	pc := &PriceCache{db: db, ttl: ttl, now: time.Now}
	if err := pc.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pricecache: migrate: %w", err)
	}
	return pc, nil
}

func (pc *PriceCache) migrate() error {
	_, err := pc.db.Exec(`
		CREATE TABLE IF NOT EXISTS price_cache (
			title_key     TEXT NOT NULL,
			condition     TEXT NOT NULL,
			average_price REAL,
			shipping_cost REAL NOT NULL DEFAULT 0,
			source        TEXT NOT NULL DEFAULT '',
			comparables   TEXT NOT NULL DEFAULT '[]',
			fetched_at    INTEGER NOT NULL,
			PRIMARY KEY (title_key, condition)
		);
	`)
	return err
}

func cacheKey(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// Get returns the cached entry for title and condition. Entries older than the
// TTL are reported as misses.
func (pc *PriceCache) Get(ctx context.Context, title, condition string) (*models.PriceData, bool, error) {
	var (
		avg       sql.NullFloat64
		shipping  float64
		source    string
		comps     string
		fetchedAt int64
	)
	err := pc.db.QueryRowContext(ctx, `
		SELECT average_price, shipping_cost, source, comparables, fetched_at
		FROM price_cache
		WHERE title_key = ? AND condition = ?
	`, cacheKey(title), condition).Scan(&avg, &shipping, &source, &comps, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("pricecache: get: %w", err)
	}

	fetched := time.Unix(fetchedAt, 0)
	if pc.ttl > 0 && pc.now().Sub(fetched) > pc.ttl {
		return nil, false, nil
	}

	p := &models.PriceData{ShippingCost: shipping, Source: source, FetchedAt: fetched}
	if avg.Valid {
		v := avg.Float64
		p.AveragePrice = &v
	}
	if err := json.Unmarshal([]byte(comps), &p.Comparables); err != nil {
		return nil, false, fmt.Errorf("pricecache: decode comparables: %w", err)
	}
	return p, true, nil
}

// Put stores p, replacing any previous entry for the same key.
func (pc *PriceCache) Put(ctx context.Context, title, condition string, p *models.PriceData) error {
	if p == nil {
		return errors.New("pricecache: put: nil price data")
	}
	comps, err := json.Marshal(p.Comparables)
	if err != nil {
		return fmt.Errorf("pricecache: encode comparables: %w", err)
	}
	var avg sql.NullFloat64
	if p.AveragePrice != nil {
		avg = sql.NullFloat64{Float64: *p.AveragePrice, Valid: true}
	}
	fetched := p.FetchedAt
	if fetched.IsZero() {
		fetched = pc.now()
	}

	_, err = pc.db.ExecContext(ctx, `
		INSERT INTO price_cache (title_key, condition, average_price, shipping_cost, source, comparables, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (title_key, condition) DO UPDATE SET
			average_price = excluded.average_price,
			shipping_cost = excluded.shipping_cost,
			source        = excluded.source,
			comparables   = excluded.comparables,
			fetched_at    = excluded.fetched_at
	`, cacheKey(title), condition, avg, p.ShippingCost, p.Source, string(comps), fetched.Unix())
	if err != nil {
		return fmt.Errorf("pricecache: put: %w", err)
	}
	return nil
}

func (pc *PriceCache) Close() error {
	return pc.db.Close()
}
