package metrics

import (
    "sort"
    "sync"

    "FinFusion/internal/domain/repository"
)

// Collector is an in-process Metrics implementation. It is scoped to whoever
// constructs it (a CLI run, a test, a request batch) rather than the process.
type Collector struct {
    mu          sync.Mutex
    cacheHits   map[string]int
    cacheMisses map[string]int
    latencies   map[string][]float64
    sourceFails map[string]int
    attempts    map[string]int
    fallbacks   map[string]int
    analyses    map[string]int
    errors      map[string]int
}

var _ repository.Metrics = (*Collector)(nil)

func NewCollector() *Collector {
    return &Collector{
        cacheHits:   make(map[string]int),
        cacheMisses: make(map[string]int),
        latencies:   make(map[string][]float64),
        sourceFails: make(map[string]int),
        attempts:    make(map[string]int),
        fallbacks:   make(map[string]int),
        analyses:    make(map[string]int),
        errors:      make(map[string]int),
    }
}

func (c *Collector) RecordCacheHit(cache string)    { c.inc(c.cacheHits, cache) }
func (c *Collector) RecordCacheMiss(cache string)   { c.inc(c.cacheMisses, cache) }
func (c *Collector) RecordSourceFailure(s string)   { c.inc(c.sourceFails, s) }
func (c *Collector) RecordReasonerAttempt(o string) { c.inc(c.attempts, o) }
func (c *Collector) RecordFallback(symbol string)   { c.inc(c.fallbacks, symbol) }
func (c *Collector) RecordAnalysis(rec string)      { c.inc(c.analyses, rec) }
func (c *Collector) RecordError(kind string)        { c.inc(c.errors, kind) }

func (c *Collector) RecordLatency(op string, seconds float64) {
    c.mu.Lock()
    defer c.mu.Unlock()
    c.latencies[op] = append(c.latencies[op], seconds)
}

func (c *Collector) inc(m map[string]int, key string) {
    c.mu.Lock()
    defer c.mu.Unlock()
    m[key]++
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
    CacheHits        map[string]int     `json:"cache_hits"`
    CacheMisses      map[string]int     `json:"cache_misses"`
    SourceFailures   map[string]int     `json:"source_failures"`
    ReasonerAttempts map[string]int     `json:"reasoner_attempts"`
    Fallbacks        map[string]int     `json:"fallbacks"`
    Analyses         map[string]int     `json:"analyses"`
    Errors           map[string]int     `json:"errors"`
    LatencyP50       map[string]float64 `json:"latency_p50_seconds"`
}

func (c *Collector) Snapshot() Snapshot {
    c.mu.Lock()
    defer c.mu.Unlock()

    p50 := make(map[string]float64, len(c.latencies))
    for op, v := range c.latencies {
        sorted := append([]float64(nil), v...)
        sort.Float64s(sorted)
        p50[op] = sorted[len(sorted)/2]
    }

    return Snapshot{
        CacheHits:        copyCounts(c.cacheHits),
        CacheMisses:      copyCounts(c.cacheMisses),
        SourceFailures:   copyCounts(c.sourceFails),
        ReasonerAttempts: copyCounts(c.attempts),
        Fallbacks:        copyCounts(c.fallbacks),
        Analyses:         copyCounts(c.analyses),
        Errors:           copyCounts(c.errors),
        LatencyP50:       p50,
    }
}

func copyCounts(m map[string]int) map[string]int {
    out := make(map[string]int, len(m))
    for k, v := range m {
        out[k] = v
    }
    return out
}

// Tee fans every call out to several collectors, e.g. Prometheus plus an in-memory one.
type Tee []repository.Metrics

var _ repository.Metrics = Tee(nil)

func (t Tee) RecordCacheHit(cache string) {
    for _, m := range t {
        m.RecordCacheHit(cache)
    }
}

func (t Tee) RecordCacheMiss(cache string) {
    for _, m := range t {
        m.RecordCacheMiss(cache)
    }
}

func (t Tee) RecordLatency(op string, seconds float64) {
    for _, m := range t {
        m.RecordLatency(op, seconds)
    }
}

func (t Tee) RecordSourceFailure(source string) {
    for _, m := range t {
        m.RecordSourceFailure(source)
    }
}

func (t Tee) RecordReasonerAttempt(outcome string) {
    for _, m := range t {
        m.RecordReasonerAttempt(outcome)
    }
}

func (t Tee) RecordFallback(symbol string) {
    for _, m := range t {
        m.RecordFallback(symbol)
    }
}

func (t Tee) RecordAnalysis(recommendation string) {
    for _, m := range t {
        m.RecordAnalysis(recommendation)
    }
}

func (t Tee) RecordError(kind string) {
    for _, m := range t {
        m.RecordError(kind)
    }
}
