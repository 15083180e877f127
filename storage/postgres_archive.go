package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"bluray-lister/models"
)

// PostgresArchive keeps a history of exported upload files in PostgreSQL.
type PostgresArchive struct {
	db *sql.DB
}

// NewPostgresArchive opens a connection to PostgreSQL, waits for it to accept
// connections, runs schema migrations, and returns a ready archive.
func NewPostgresArchive(ctx context.Context, dsn string) (*PostgresArchive, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pa := &PostgresArchive{db: db}
	if err := pa.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return pa, nil
}

func (pa *PostgresArchive) migrate(ctx context.Context) error {
	_, err := pa.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listing_exports (
			id          SERIAL PRIMARY KEY,
			file_name   TEXT        NOT NULL,
			file_path   TEXT        NOT NULL,
			item_count  INTEGER     NOT NULL,
			exported_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS listing_export_items (
			id           SERIAL PRIMARY KEY,
			export_id    INTEGER NOT NULL REFERENCES listing_exports(id) ON DELETE CASCADE,
			row_number   INTEGER NOT NULL,
			title        TEXT    NOT NULL DEFAULT '',
			movie_title  TEXT    NOT NULL DEFAULT '',
			price        TEXT    NOT NULL DEFAULT '',
			condition_id TEXT    NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_export_items_export ON listing_export_items(export_id);
		CREATE INDEX IF NOT EXISTS idx_export_items_movie  ON listing_export_items(movie_title);
	`)
	return err
}

// Archive stores rec and its listings in a single transaction.
func (pa *PostgresArchive) Archive(ctx context.Context, rec models.ExportRecord) error {
	tx, err := pa.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO listing_exports (file_name, file_path, item_count, exported_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, rec.Name, rec.Path, len(rec.Listings), rec.ExportedAt).Scan(&id)
	if err != nil {
		return fmt.Errorf("postgres: insert export: %w", err)
	}

	const batchSize = 50
	for i := 0; i < len(rec.Listings); i += batchSize {
		end := i + batchSize
		if end > len(rec.Listings) {
			end = len(rec.Listings)
		}
		if err := insertItems(ctx, tx, id, rec.Listings[i:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func insertItems(ctx context.Context, tx *sql.Tx, exportID int64, batch []models.ListingSummary) error {
	const cols = 6
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*cols)

	for idx, l := range batch {
		base := idx * cols
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6))
		valueArgs = append(valueArgs,
			exportID, l.Row, l.Title, l.MovieTitle, l.Price, l.ConditionID)
	}

	query := fmt.Sprintf(`
		INSERT INTO listing_export_items (export_id, row_number, title, movie_title, price, condition_id)
		VALUES %s
	`, strings.Join(valueStrings, ","))

	if _, err := tx.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: insert items: %w", err)
	}
	return nil
}

// FetchRecent returns the newest exports, without their listings.
func (pa *PostgresArchive) FetchRecent(ctx context.Context, limit int) ([]models.ExportRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := pa.db.QueryContext(ctx, `
		SELECT file_name, file_path, item_count, exported_at
		FROM listing_exports
		ORDER BY exported_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch recent: %w", err)
	}
	defer rows.Close()

	var out []models.ExportRecord
	for rows.Next() {
		var rec models.ExportRecord
		if err := rows.Scan(&rec.Name, &rec.Path, &rec.ItemCount, &rec.ExportedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (pa *PostgresArchive) Close() error {
	return pa.db.Close()
}
