package sentiment

import (
	"context"
	"errors"
	"sync"
	"time"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/repository"
	svccache "FinFusion/internal/service/cache"
	pkgcache "FinFusion/pkg/cache"
)

// maxHistoryPoints bounds the stored list regardless of how often a symbol is analyzed.
const maxHistoryPoints = 500

// CacheHistory stores the rolling sentiment window under sentiment_history:<symbol>.
type CacheHistory struct {
	store pkgcache.Service
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
}

var _ repository.SentimentHistory = (*CacheHistory)(nil)

func NewCacheHistory(store pkgcache.Service, ttl time.Duration) *CacheHistory {
	if ttl <= 0 {
		ttl = HistoryWindow
	}
	return &CacheHistory{store: store, ttl: ttl, now: time.Now}
}

func (h *CacheHistory) Load(ctx context.Context, symbol string) ([]models.SentimentPoint, error) {
	points, err := pkgcache.GetTyped[[]models.SentimentPoint](ctx, h.store, svccache.SentimentHistoryKey(symbol))
	if errors.Is(err, pkgcache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return prune(points, h.now()), nil
}

// Append adds a point and rewrites the window. Read-modify-write is serialized
// in-process only; concurrent writers in other processes may drop a point.
func (h *CacheHistory) Append(ctx context.Context, symbol string, p models.SentimentPoint) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	points, err := h.Load(ctx, symbol)
	if err != nil {
		return err
	}
	points = append(points, p)
	if len(points) > maxHistoryPoints {
		points = points[len(points)-maxHistoryPoints:]
	}
	return h.store.Set(ctx, svccache.SentimentHistoryKey(symbol), points, h.ttl)
}
