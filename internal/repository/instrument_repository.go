package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"FinFusion/internal/domain/models"
	domrepo "FinFusion/internal/domain/repository"
)

// InstrumentsSchema is the instruments table the precheck reads.
const InstrumentsSchema = `
CREATE TABLE IF NOT EXISTS instruments (
    id       BIGSERIAL PRIMARY KEY,
    symbol   VARCHAR(16) NOT NULL UNIQUE,
    name     TEXT NOT NULL DEFAULT '',
    exchange VARCHAR(16) NOT NULL DEFAULT '',
    currency VARCHAR(8) NOT NULL DEFAULT 'USD',
    active   BOOLEAN NOT NULL DEFAULT TRUE
)`

// pgQuerier is the part of *pgxpool.Pool the repository uses.
type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGInstrumentRepository answers the known-symbol precheck from PostgreSQL.
type PGInstrumentRepository struct {
	db pgQuerier
}

var _ domrepo.InstrumentRepository = (*PGInstrumentRepository)(nil)

func NewPGInstrumentRepository(db pgQuerier) *PGInstrumentRepository {
	return &PGInstrumentRepository{db: db}
}

func (r *PGInstrumentRepository) GetBySymbol(ctx context.Context, symbol string) (*models.Instrument, error) {
	const q = `SELECT id, symbol, name, exchange, currency, active FROM instruments WHERE symbol = $1`
	var in models.Instrument
	err := r.db.QueryRow(ctx, q, symbol).Scan(&in.ID, &in.Symbol, &in.Name, &in.Exchange, &in.Currency, &in.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrInstrumentNotFound, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("get instrument: %w", err)
	}
	return &in, nil
}

func (r *PGInstrumentRepository) List(ctx context.Context, activeOnly bool) ([]models.Instrument, error) {
	q := `SELECT id, symbol, name, exchange, currency, active FROM instruments`
	if activeOnly {
		q += ` WHERE active`
	}
	q += ` ORDER BY symbol`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	defer rows.Close()

	var out []models.Instrument
	for rows.Next() {
		var in models.Instrument
		if err := rows.Scan(&in.ID, &in.Symbol, &in.Name, &in.Exchange, &in.Currency, &in.Active); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// StaticInstrumentRepository serves a fixed symbol list. With an empty list
// every symbol is accepted, which is what the offline CLI needs.
type StaticInstrumentRepository struct {
	known map[string]models.Instrument
}

var _ domrepo.InstrumentRepository = (*StaticInstrumentRepository)(nil)

func NewStaticInstrumentRepository(symbols ...string) *StaticInstrumentRepository {
	known := make(map[string]models.Instrument, len(symbols))
	for i, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			known[s] = models.Instrument{ID: int64(i + 1), Symbol: s, Currency: "USD", Active: true}
		}
	}
	return &StaticInstrumentRepository{known: known}
}

func (r *StaticInstrumentRepository) GetBySymbol(_ context.Context, symbol string) (*models.Instrument, error) {
	if len(r.known) == 0 {
		return &models.Instrument{Symbol: symbol, Currency: "USD", Active: true}, nil
	}
	in, ok := r.known[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrInstrumentNotFound, symbol)
	}
	return &in, nil
}

func (r *StaticInstrumentRepository) List(_ context.Context, _ bool) ([]models.Instrument, error) {
	out := make([]models.Instrument, 0, len(r.known))
	for _, in := range r.known {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}
