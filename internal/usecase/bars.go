package usecase

import (
	"context"
	"fmt"
	"time"

	"FinFusion/internal/domain/models"
	domrepo "FinFusion/internal/domain/repository"
	"FinFusion/pkg/util"
)

// BarsUseCase serves raw OHLCV bars, the input of the quant stage.
type BarsUseCase struct {
	source domrepo.MarketDataSource
}

func NewBarsUseCase(source domrepo.MarketDataSource) *BarsUseCase {
	return &BarsUseCase{source: source}
}

type GetBarsParams struct {
	Symbol    string
	From      time.Time
	To        time.Time
	Timeframe domrepo.Timeframe
	Limit     int
}

type GetBarsResult struct {
	Symbol    string       `json:"symbol"`
	Timeframe string       `json:"timeframe"`
	From      time.Time    `json:"from"`
	To        time.Time    `json:"to"`
	Count     int          `json:"count"`
	Bars      []models.Bar `json:"bars"`
}

// GetBars returns bars in [From, To]; with a zero range it returns the latest Limit bars.
func (uc *BarsUseCase) GetBars(ctx context.Context, p GetBarsParams) (*GetBarsResult, error) {
	sym, ok := util.NormalizeSymbol(p.Symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidSymbol, p.Symbol)
	}
	if !domrepo.IsValidTimeframe(p.Timeframe) {
		p.Timeframe = domrepo.DefaultTimeframe()
	}
	if p.Limit <= 0 {
		p.Limit = 500
	}
	if p.Limit > 5000 {
		p.Limit = 5000
	}

	var (
		bars []models.Bar
		err  error
	)
	if p.From.IsZero() && p.To.IsZero() {
		bars, err = uc.source.GetLatestNBars(ctx, sym, p.Limit, p.Timeframe)
	} else {
		if p.To.IsZero() {
			p.To = time.Now().UTC()
		}
		if p.From.After(p.To) {
			return nil, fmt.Errorf("from must be <= to")
		}
		p.From, p.To = util.AlignFromTo(p.From, p.To, string(p.Timeframe))
		bars, err = uc.source.GetBars(ctx, sym, p.From, p.To, p.Timeframe)
	}
	if err != nil {
		return nil, fmt.Errorf("get bars: %w", err)
	}
	if len(bars) > p.Limit {
		bars = bars[len(bars)-p.Limit:]
	}

	res := &GetBarsResult{
		Symbol:    sym,
		Timeframe: string(p.Timeframe),
		From:      p.From,
		To:        p.To,
		Count:     len(bars),
		Bars:      bars,
	}
	if len(bars) > 0 {
		res.From, res.To = bars[0].Timestamp, bars[len(bars)-1].Timestamp
	}
	return res, nil
}
