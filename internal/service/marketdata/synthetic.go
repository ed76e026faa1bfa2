package marketdata

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"
	"time"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/repository"
)

// WalkParams shapes a geometric random walk.
type WalkParams struct {
	Start      float64       // first close
	Drift      float64       // mean log return per bar
	Volatility float64       // stdev of log return per bar
	Volume     float64       // mean volume per bar
	Step       time.Duration // bar spacing
	End        time.Time     // timestamp of the last bar
}

func DefaultWalk() WalkParams {
	return WalkParams{
		Start:      100,
		Drift:      0.0003,
		Volatility: 0.012,
		Volume:     1_000_000,
		Step:       24 * time.Hour,
		End:        time.Date(2025, 1, 2, 21, 0, 0, 0, time.UTC),
	}
}

// GenerateBars draws n bars from rng. The same rng state yields the same series.
func GenerateBars(rng *rand.Rand, n int, p WalkParams) []models.Bar {
	if n <= 0 {
		return []models.Bar{}
	}
	bars := make([]models.Bar, n)
	price := p.Start
	start := p.End.Add(-time.Duration(n-1) * p.Step)
	for i := 0; i < n; i++ {
		open := price
		ret := p.Drift + p.Volatility*rng.NormFloat64()
		price = open * math.Exp(ret)

		wick := math.Abs(p.Volatility*rng.NormFloat64()) * open / 2
		high := math.Max(open, price) + wick
		low := math.Max(math.Min(open, price)-wick, 0.01)
		vol := p.Volume * (0.7 + 0.6*rng.Float64())

		bars[i] = models.Bar{
			Timestamp: start.Add(time.Duration(i) * p.Step),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     price,
			Volume:    math.Round(vol),
		}
	}
	return bars
}

// SyntheticSource is a MarketDataSource backed by seeded random walks. Each
// symbol gets its own deterministic series derived from the seed.
type SyntheticSource struct {
	seed   int64
	params WalkParams
	mu     sync.Mutex
	fixed  map[string][]models.Bar
}

var _ repository.MarketDataSource = (*SyntheticSource)(nil)

func NewSyntheticSource(seed int64, p WalkParams) *SyntheticSource {
	return &SyntheticSource{seed: seed, params: p, fixed: make(map[string][]models.Bar)}
}

// Set pins an explicit series for symbol.
func (s *SyntheticSource) Set(symbol string, bars []models.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixed[symbol] = bars
}

func (s *SyntheticSource) series(symbol string, n int) []models.Bar {
	s.mu.Lock()
	bars, ok := s.fixed[symbol]
	s.mu.Unlock()
	if ok {
		if n > 0 && len(bars) > n {
			return bars[len(bars)-n:]
		}
		return bars
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol))
	rng := rand.New(rand.NewSource(s.seed ^ int64(h.Sum64())))
	return GenerateBars(rng, n, s.params)
}

func (s *SyntheticSource) GetLatestNBars(ctx context.Context, symbol string, n int, _ repository.Timeframe) ([]models.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.series(symbol, n), nil
}

func (s *SyntheticSource) GetBars(ctx context.Context, symbol string, from, to time.Time, tf repository.Timeframe) ([]models.Bar, error) {
	all, err := s.GetLatestNBars(ctx, symbol, 500, tf)
	if err != nil {
		return nil, err
	}
	out := make([]models.Bar, 0, len(all))
	for _, b := range all {
		if !b.Timestamp.Before(from) && !b.Timestamp.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}
