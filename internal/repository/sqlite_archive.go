package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"CoinCast/internal/domain/models"
	domrepo "CoinCast/internal/domain/repository"
	applogger "CoinCast/pkg/logger"

	_ "modernc.org/sqlite"
)

// SQLiteArchive implements Archive in a local SQLite file.
type SQLiteArchive struct {
	db *sql.DB
	mu sync.Mutex
	l  *applogger.Logger
}

// NewSQLiteArchive opens (or creates) the database and runs migrations.
// ":memory:" keeps everything in process.
func NewSQLiteArchive(path string, l *applogger.Logger) (*SQLiteArchive, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	a := &SQLiteArchive{db: db, l: l.With("sqlite_archive")}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	a.l.Info("sqlite archive opened", applogger.String("path", path))
	return a, nil
}

func (a *SQLiteArchive) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS merged_rows (
			ts           INTEGER PRIMARY KEY,
			open         REAL NOT NULL,
			high         REAL NOT NULL,
			low          REAL NOT NULL,
			close        REAL NOT NULL,
			market_cap   REAL NOT NULL,
			total_volume REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS predictions (
			id          TEXT PRIMARY KEY,
			computed_at INTEGER NOT NULL,
			value       REAL NOT NULL,
			window_end  INTEGER NOT NULL,
			row_count   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_ts ON predictions(computed_at)`,
	}
	for _, s := range stmts {
		if _, err := a.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// StoreRows upserts rows keyed by timestamp (milliseconds).
func (a *SQLiteArchive) StoreRows(ctx context.Context, rows []models.MergedRow) error {
	if len(rows) == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO merged_rows (ts, open, high, low, close, market_cap, total_volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ts) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low, close = excluded.close,
			market_cap = excluded.market_cap, total_volume = excluded.total_volume`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Timestamp.UnixMilli(), r.Open, r.High, r.Low, r.Close, r.MarketCap, r.TotalVolume); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
	}
	return tx.Commit()
}

func (a *SQLiteArchive) StorePrediction(ctx context.Context, ev models.PredictionEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO predictions (id, computed_at, value, window_end, row_count) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.ComputedAt.UnixMilli(), ev.Value, ev.WindowEnd.UnixMilli(), ev.Rows)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

func (a *SQLiteArchive) QueryRows(ctx context.Context, from, to time.Time, limit int) ([]models.MergedRow, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, market_cap, total_volume
		FROM merged_rows
		WHERE ts >= ? AND ts <= ?
		ORDER BY ts ASC
		LIMIT ?`, from.UnixMilli(), to.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	var out []models.MergedRow
	for rows.Next() {
		var (
			r  models.MergedRow
			ts int64
		)
		if err := rows.Scan(&ts, &r.Open, &r.High, &r.Low, &r.Close, &r.MarketCap, &r.TotalVolume); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Timestamp = time.UnixMilli(ts).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Predictions returns the most recent events, newest first.
func (a *SQLiteArchive) Predictions(ctx context.Context, limit int) ([]models.PredictionEvent, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, computed_at, value, window_end, row_count
		FROM predictions
		ORDER BY computed_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	var out []models.PredictionEvent
	for rows.Next() {
		var (
			ev             models.PredictionEvent
			computed, wend int64
		)
		if err := rows.Scan(&ev.ID, &computed, &ev.Value, &wend, &ev.Rows); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		ev.ComputedAt = time.UnixMilli(computed).UTC()
		ev.WindowEnd = time.UnixMilli(wend).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}

var _ domrepo.Archive = (*SQLiteArchive)(nil)
