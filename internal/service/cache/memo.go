package cache

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"FinFusion/internal/domain/repository"
	pkgcache "FinFusion/pkg/cache"
	"FinFusion/pkg/logger"
)

// Memo memoizes pipeline stage results in a cache.Service. Concurrent callers
// for the same key share one computation. Values round-trip through JSON on
// both paths, so a fresh result and a cached one are byte-identical.
type Memo struct {
	store   pkgcache.Service
	metrics repository.Metrics
	log     *logger.Logger
	group   singleflight.Group
}

func NewMemo(store pkgcache.Service, metrics repository.Metrics, log *logger.Logger) *Memo {
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Memo{store: store, metrics: metrics, log: log}
}

// Store exposes the backing cache for collaborators that keep their own keys.
func (m *Memo) Store() pkgcache.Service { return m.store }

type computed struct {
	raw []byte
	val any
}

// Remember returns the cached value for key, or computes, stores and returns it.
// keep decides whether a computed value may be stored; results it rejects are
// returned to the caller but never cached.
func Remember[T any](ctx context.Context, m *Memo, name, key string, ttl time.Duration, compute func(context.Context) T, keep func(T) bool) T {
	if raw, err := m.store.GetBytes(ctx, key); err == nil {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			m.metrics.RecordCacheHit(name)
			return v
		}
		m.log.Warn("discarding undecodable cache entry", logger.String("key", key))
	}
	m.metrics.RecordCacheMiss(name)

	res, _, _ := m.group.Do(key, func() (interface{}, error) {
		v := compute(ctx)
		raw, err := json.Marshal(v)
		if err != nil {
			m.log.Error("encode for cache", logger.String("key", key), logger.Error(err))
			return computed{val: v}, nil
		}
		if keep == nil || keep(v) {
			if err := m.store.Set(ctx, key, raw, ttl); err != nil {
				m.log.Warn("cache write failed", logger.String("key", key), logger.Error(err))
				m.metrics.RecordError("cache_write")
			}
		}
		return computed{raw: raw, val: v}, nil
	})

	c := res.(computed)
	if c.raw != nil {
		var v T
		if err := json.Unmarshal(c.raw, &v); err == nil {
			return v
		}
	}
	return c.val.(T)
}

// Invalidate drops every derived entry of a symbol.
func (m *Memo) Invalidate(ctx context.Context, symbol string) error {
	for _, p := range SymbolPatterns(symbol) {
		if err := m.store.DeleteByPattern(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
