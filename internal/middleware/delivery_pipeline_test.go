package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFusion/internal/domain/models"
	svcmetrics "FinFusion/internal/service/metrics"
)

type flakySink struct {
	mu        sync.Mutex
	failUntil int
	calls     int
	delivered []string
}

func (s *flakySink) Deliver(_ context.Context, a *models.FinalAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failUntil {
		return errors.New("broker down")
	}
	s.delivered = append(s.delivered, a.ID)
	return nil
}

func (s *flakySink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.delivered...)
}

func analysis(id string) *models.FinalAnalysis {
	return &models.FinalAnalysis{ID: id, Symbol: "AAPL", Recommendation: models.ActionHold}
}

func TestDeliveryPipeline_Validation(t *testing.T) {
	m := svcmetrics.NewCollector()
	p := NewDeliveryPipeline(&flakySink{}, m)

	assert.ErrorIs(t, p.Process(context.Background(), nil), ErrInvalidAnalysis)
	assert.ErrorIs(t, p.Process(context.Background(), &models.FinalAnalysis{Symbol: "AAPL"}), ErrInvalidAnalysis)
	assert.Equal(t, 2, m.Snapshot().Errors["delivery_validate"])
}

func TestDeliveryPipeline_DropsDuplicates(t *testing.T) {
	sink := &flakySink{}
	p := NewDeliveryPipeline(sink, nil, WithMinInterval(time.Hour))

	require.NoError(t, p.Process(context.Background(), analysis("a1")))
	require.NoError(t, p.Process(context.Background(), analysis("a1")))
	require.NoError(t, p.Process(context.Background(), analysis("a2")))
	assert.Equal(t, []string{"a1", "a2"}, sink.ids())
}

func TestDeliveryPipeline_BuffersAndRedelivers(t *testing.T) {
	sink := &flakySink{failUntil: 1}
	p := NewDeliveryPipeline(sink, nil, WithBufferSize(4))

	err := p.Process(context.Background(), analysis("a1"))
	require.Error(t, err)
	assert.Equal(t, 1, p.Pending())

	p.Start(context.Background())
	assert.Eventually(t, func() bool { return len(sink.ids()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, p.Stop())
}
