package repository

import (
	"context"
	"sync"

	"FinFusion/internal/domain/models"
	domrepo "FinFusion/internal/domain/repository"
)

// MemoryAnalysisStore keeps analyses in process. It backs the CLI and
// deployments without ClickHouse.
type MemoryAnalysisStore struct {
	mu       sync.RWMutex
	bySymbol map[string][]models.FinalAnalysis
	max      int
}

var _ domrepo.AnalysisStore = (*MemoryAnalysisStore)(nil)

// NewMemoryAnalysisStore keeps at most maxPerSymbol records per symbol (0 = unbounded).
func NewMemoryAnalysisStore(maxPerSymbol int) *MemoryAnalysisStore {
	return &MemoryAnalysisStore{bySymbol: make(map[string][]models.FinalAnalysis), max: maxPerSymbol}
}

func (s *MemoryAnalysisStore) Init(context.Context) error { return nil }

func (s *MemoryAnalysisStore) Save(_ context.Context, a *models.FinalAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.bySymbol[a.Symbol], *a)
	if s.max > 0 && len(list) > s.max {
		list = list[len(list)-s.max:]
	}
	s.bySymbol[a.Symbol] = list
	return nil
}

// History returns newest first.
func (s *MemoryAnalysisStore) History(_ context.Context, symbol string, limit int) ([]models.FinalAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.bySymbol[symbol]
	out := make([]models.FinalAnalysis, 0, min(limit, len(list)))
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

func (s *MemoryAnalysisStore) Health(context.Context) error { return nil }
func (s *MemoryAnalysisStore) Close() error                 { return nil }
