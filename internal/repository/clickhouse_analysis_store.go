package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"FinFusion/internal/domain/models"
	domrepo "FinFusion/internal/domain/repository"
	applogger "FinFusion/pkg/logger"
)

// AnalysesSchema keeps the queryable columns next to the full JSON record.
const AnalysesSchema = `
CREATE TABLE IF NOT EXISTS %s (
    id             String,
    symbol         LowCardinality(String),
    user_id        String,
    recommendation LowCardinality(String),
    final_score    Float64,
    confidence     Float64,
    risk_level     LowCardinality(String),
    source         LowCardinality(String),
    payload        String,
    created_at     DateTime64(3, 'UTC')
) ENGINE = MergeTree
ORDER BY (symbol, created_at)`

// CHAnalysisStore is the append-only FinalAnalysis history in ClickHouse.
type CHAnalysisStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ domrepo.AnalysisStore = (*CHAnalysisStore)(nil)

func NewCHAnalysisStore(db *sql.DB, table string, l *applogger.Logger) *CHAnalysisStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHAnalysisStore{db: db, table: table, l: l}
}

func (s *CHAnalysisStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(AnalysesSchema, s.table)); err != nil {
		return fmt.Errorf("create analyses table: %w", err)
	}
	return nil
}

func (s *CHAnalysisStore) Save(ctx context.Context, a *models.FinalAnalysis) error {
	start := time.Now()
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, symbol, user_id, recommendation, final_score, confidence, risk_level, source, payload, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err = s.db.ExecContext(ctx, q,
		a.ID,
		a.Symbol,
		a.UserID,
		string(a.Recommendation),
		a.FinalScore,
		a.Confidence,
		string(a.RiskLevel),
		string(a.Metadata.Source),
		string(payload),
		a.CreatedAt,
	)
	if err != nil {
		s.l.Error("clickhouse save_analysis failed", applogger.Symbol(a.Symbol), applogger.String("id", a.ID), applogger.Error(err))
		return fmt.Errorf("insert analysis: %w", err)
	}
	s.l.Debug("clickhouse save_analysis ok",
		applogger.Symbol(a.Symbol),
		applogger.String("id", a.ID),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// History returns up to limit analyses for symbol, newest first.
func (s *CHAnalysisStore) History(ctx context.Context, symbol string, limit int) ([]models.FinalAnalysis, error) {
	q := fmt.Sprintf("SELECT payload FROM %s WHERE symbol = ? ORDER BY created_at DESC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]models.FinalAnalysis, 0, limit)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		var a models.FinalAnalysis
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			s.l.Warn("skipping undecodable analysis row", applogger.Symbol(symbol), applogger.Error(err))
			continue
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *CHAnalysisStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHAnalysisStore) Close() error {
	return nil // pool is owned by pkg/clickhouse.Client
}
