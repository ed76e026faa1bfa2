package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FinFusion/internal/domain/models"
	domrepo "FinFusion/internal/domain/repository"
	applogger "FinFusion/pkg/logger"
)

// BarsSchema creates the OHLCV table read by CHBarStore.
const BarsSchema = `
CREATE TABLE IF NOT EXISTS %s (
    symbol LowCardinality(String),
    tf     LowCardinality(String),
    ts     DateTime64(3, 'UTC'),
    open   Float64,
    high   Float64,
    low    Float64,
    close  Float64,
    volume Float64
) ENGINE = ReplacingMergeTree
ORDER BY (symbol, tf, ts)`

// CHBarStore implements MarketDataSource backed by ClickHouse.
type CHBarStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ domrepo.MarketDataSource = (*CHBarStore)(nil)

func NewCHBarStore(db *sql.DB, table string, l *applogger.Logger) *CHBarStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHBarStore{db: db, table: table, l: l}
}

// Init creates the bars table if it is missing.
func (s *CHBarStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(BarsSchema, s.table)); err != nil {
		return fmt.Errorf("create bars table: %w", err)
	}
	return nil
}

func (s *CHBarStore) GetBars(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Bar, error) {
	const qtpl = `
        SELECT ts, open, high, low, close, volume
        FROM %s
        WHERE symbol = ? AND tf = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
    `
	start := time.Now()
	out, err := s.query(ctx, fmt.Sprintf(qtpl, s.table), 256, symbol, string(tf), from, to)
	if err != nil {
		s.l.Error("clickhouse get_bars failed",
			applogger.String("table", s.table),
			applogger.Symbol(symbol),
			applogger.String("tf", string(tf)),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get bars: %w", err)
	}
	s.l.Debug("clickhouse get_bars ok",
		applogger.Symbol(symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

// GetLatestNBars returns up to n bars, oldest first.
func (s *CHBarStore) GetLatestNBars(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Bar, error) {
	const qtpl = `
        SELECT ts, open, high, low, close, volume
        FROM %s
        WHERE symbol = ? AND tf = ?
        ORDER BY ts DESC
        LIMIT ?
    `
	start := time.Now()
	out, err := s.query(ctx, fmt.Sprintf(qtpl, s.table), n, symbol, string(tf), n)
	if err != nil {
		s.l.Error("clickhouse latest_bars failed",
			applogger.String("table", s.table),
			applogger.Symbol(symbol),
			applogger.String("tf", string(tf)),
			applogger.Int("limit", n),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get latest bars: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	s.l.Debug("clickhouse latest_bars ok",
		applogger.Symbol(symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("limit", n),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHBarStore) query(ctx context.Context, q string, sizeHint int, args ...any) ([]models.Bar, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Bar, 0, sizeHint)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
