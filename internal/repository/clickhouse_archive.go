package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"CoinCast/internal/domain/models"
	domrepo "CoinCast/internal/domain/repository"
	pkgch "CoinCast/pkg/clickhouse"
	applogger "CoinCast/pkg/logger"
)

// ClickHouseArchive implements Archive backed by ClickHouse.
type ClickHouseArchive struct {
	db          *sql.DB
	rows        string
	predictions string
	l           *applogger.Logger
}

// NewClickHouseArchive uses the archive tables in the client's database.
func NewClickHouseArchive(ch *pkgch.Client, l *applogger.Logger) *ClickHouseArchive {
	return newClickHouseArchive(ch.DB(), ch.Database(), l)
}

func newClickHouseArchive(db *sql.DB, database string, l *applogger.Logger) *ClickHouseArchive {
	return &ClickHouseArchive{
		db:          db,
		rows:        database + "." + pkgch.RowsTable,
		predictions: database + "." + pkgch.PredictionsTable,
		l:           l.With("clickhouse_archive"),
	}
}

const rowColumns = "ts, open, high, low, close, market_cap, total_volume"

// insertRowsQuery builds one multi-row INSERT for n rows.
func insertRowsQuery(table string, n int) string {
	values := make([]string, n)
	for i := range values {
		values[i] = "(?, ?, ?, ?, ?, ?, ?)"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, rowColumns, strings.Join(values, ","))
}

func (s *ClickHouseArchive) StoreRows(ctx context.Context, rows []models.MergedRow) error {
	if len(rows) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(rows); start += chunkSize {
		end := min(start+chunkSize, len(rows))
		args := make([]interface{}, 0, (end-start)*7)
		for _, r := range rows[start:end] {
			args = append(args, r.Timestamp.UTC(), r.Open, r.High, r.Low, r.Close, r.MarketCap, r.TotalVolume)
		}
		if _, err := s.db.ExecContext(ctx, insertRowsQuery(s.rows, end-start), args...); err != nil {
			s.l.Error("clickhouse insert rows error",
				applogger.String("table", s.rows),
				applogger.Int("rows", end-start),
				applogger.Error(err),
			)
			return fmt.Errorf("insert rows: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseArchive) StorePrediction(ctx context.Context, ev models.PredictionEvent) error {
	q := fmt.Sprintf("INSERT INTO %s (id, computed_at, value, window_end, rows) VALUES (?, ?, ?, ?, ?)", s.predictions)
	if _, err := s.db.ExecContext(ctx, q, ev.ID, ev.ComputedAt.UTC(), ev.Value, ev.WindowEnd.UTC(), uint32(ev.Rows)); err != nil {
		s.l.Error("clickhouse insert prediction error",
			applogger.String("id", ev.ID),
			applogger.Error(err),
		)
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

// QueryRows returns rows in [from, to] ascending; FINAL collapses re-archived duplicates.
func (s *ClickHouseArchive) QueryRows(ctx context.Context, from, to time.Time, limit int) ([]models.MergedRow, error) {
	q := fmt.Sprintf(`
		SELECT %s
		FROM %s FINAL
		WHERE ts >= ? AND ts <= ?
		ORDER BY ts ASC
		LIMIT ?`, rowColumns, s.rows)
	rows, err := s.db.QueryContext(ctx, q, from.UTC(), to.UTC(), limit)
	if err != nil {
		s.l.Error("clickhouse query rows error",
			applogger.Time("from", from),
			applogger.Time("to", to),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	out := make([]models.MergedRow, 0, limit)
	for rows.Next() {
		var r models.MergedRow
		if err := rows.Scan(&r.Timestamp, &r.Open, &r.High, &r.Low, &r.Close, &r.MarketCap, &r.TotalVolume); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Timestamp = r.Timestamp.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *ClickHouseArchive) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *ClickHouseArchive) Close() error {
	return nil
}

var _ domrepo.Archive = (*ClickHouseArchive)(nil)
