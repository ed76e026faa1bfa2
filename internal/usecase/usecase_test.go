package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"FinFusion/internal/domain/models"
	domrepo "FinFusion/internal/domain/repository"
	"FinFusion/internal/repository"
	svcmetrics "FinFusion/internal/service/metrics"
	"FinFusion/pkg/queue"
)

type stubStages struct {
	calls atomic.Int32
}

func (s *stubStages) Generate(_ context.Context, symbol string, _ int, _ domrepo.Timeframe) models.FusionResult {
	s.calls.Add(1)
	f := models.EmptyFusionResult(symbol)
	f.CurrentPrice = 100
	ind := models.EmptyIndicatorSet(symbol, 250, 0)
	f.Indicators = &ind
	return f
}

func (s *stubStages) Indicators(_ context.Context, symbol string, period int, _ domrepo.Timeframe) models.IndicatorSet {
	return models.EmptyIndicatorSet(symbol, period, 0)
}

func (s *stubStages) Sentiment(_ context.Context, symbol string) models.SentimentSnapshot {
	return models.EmptySentimentSnapshot(symbol)
}

type stubRegime struct{}

func (stubRegime) Classify(ind models.IndicatorSet, _ models.SentimentSnapshot) models.Regime {
	return models.Regime{Symbol: ind.Symbol, Label: models.RegimeNeutral, Status: models.StatusOK}
}

type stubRecommender struct {
	n atomic.Int32
}

func (r *stubRecommender) Recommend(_ context.Context, f models.FusionResult, regime models.Regime) models.FinalAnalysis {
	id := r.n.Add(1)
	return models.FinalAnalysis{
		ID:             fmt.Sprintf("a%d", id),
		Symbol:         f.Symbol,
		Recommendation: models.ActionHold,
		FusionData:     f,
		Metadata:       models.AnalysisMetadata{Source: models.SourceFallback, Regime: &regime},
		CreatedAt:      time.Now().UTC(),
	}
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Init(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *MockStore) Save(ctx context.Context, a *models.FinalAnalysis) error {
	return m.Called(ctx, a).Error(0)
}
func (m *MockStore) History(ctx context.Context, symbol string, limit int) ([]models.FinalAnalysis, error) {
	args := m.Called(ctx, symbol, limit)
	return args.Get(0).([]models.FinalAnalysis), args.Error(1)
}
func (m *MockStore) Health(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *MockStore) Close() error                     { return m.Called().Error(0) }

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Process(ctx context.Context, a *models.FinalAnalysis) error {
	return m.Called(ctx, a).Error(0)
}

type recordingBroadcaster struct {
	mu  sync.Mutex
	got []string
}

func (b *recordingBroadcaster) Broadcast(a *models.FinalAnalysis) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, a.Symbol)
}

func newService(t *testing.T, store domrepo.AnalysisStore, opts ...ServiceOption) (*AnalysisService, *stubStages) {
	t.Helper()
	stages := &stubStages{}
	svc := NewAnalysisService(
		repository.NewStaticInstrumentRepository("AAPL", "MSFT", "TSLA"),
		stages,
		stubRegime{},
		&stubRecommender{},
		store,
		opts...,
	)
	return svc, stages
}

func TestAnalyze_NormalizesAndDelivers(t *testing.T) {
	store := repository.NewMemoryAnalysisStore(0)
	disp := new(MockDispatcher)
	disp.On("Process", mock.Anything, mock.AnythingOfType("*models.FinalAnalysis")).Return(nil).Once()
	bc := &recordingBroadcaster{}
	svc, _ := newService(t, store, WithDispatcher(disp), WithBroadcaster(bc))

	a, err := svc.Analyze(context.Background(), models.AnalysisRequest{Symbol: " aapl ", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", a.Symbol)
	assert.Equal(t, "u1", a.UserID)
	require.NotNil(t, a.Metadata.Regime)
	assert.Equal(t, "AAPL", a.Metadata.Regime.Symbol)

	hist, err := svc.History(context.Background(), "aapl", 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, a.ID, hist[0].ID)
	assert.Equal(t, []string{"AAPL"}, bc.got)
	disp.AssertExpectations(t)
}

func TestAnalyze_RejectsBadSymbols(t *testing.T) {
	svc, stages := newService(t, repository.NewMemoryAnalysisStore(0))

	_, err := svc.Analyze(context.Background(), models.AnalysisRequest{Symbol: "  "})
	assert.ErrorIs(t, err, models.ErrInvalidSymbol)

	_, err = svc.Analyze(context.Background(), models.AnalysisRequest{Symbol: "ZZZZ"})
	assert.ErrorIs(t, err, models.ErrInstrumentNotFound)
	assert.Zero(t, stages.calls.Load())
}

func TestAnalyze_PersistFailureDoesNotFail(t *testing.T) {
	store := new(MockStore)
	store.On("Save", mock.Anything, mock.Anything).Return(errors.New("clickhouse down"))
	disp := new(MockDispatcher)
	disp.On("Process", mock.Anything, mock.Anything).Return(errors.New("kafka down"))
	m := svcmetrics.NewCollector()
	svc, _ := newService(t, store, WithDispatcher(disp), WithServiceMetrics(m))

	a, err := svc.Analyze(context.Background(), models.AnalysisRequest{Symbol: "MSFT"})
	require.NoError(t, err)
	assert.Equal(t, models.ActionHold, a.Recommendation)
	snap := m.Snapshot()
	assert.Equal(t, 1, snap.Errors["persist"])
	assert.Equal(t, 1, snap.Errors["publish"])
	store.AssertExpectations(t)
}

func TestAnalyzeBatch_KeepsOrderAndErrors(t *testing.T) {
	svc, stages := newService(t, repository.NewMemoryAnalysisStore(0), WithBatchConcurrency(2))

	items := svc.AnalyzeBatch(context.Background(), []string{"msft", "NOPE", "tsla", "!!"}, "u")
	require.Len(t, items, 4)
	assert.Equal(t, "MSFT", items[0].Symbol)
	assert.NotNil(t, items[0].Analysis)
	assert.Contains(t, items[1].Error, "instrument not found")
	assert.Equal(t, "TSLA", items[2].Symbol)
	assert.Contains(t, items[3].Error, "invalid symbol")
	assert.EqualValues(t, 2, stages.calls.Load())
}

func TestHistory_StoreError(t *testing.T) {
	store := new(MockStore)
	store.On("History", mock.Anything, "AAPL", 20).Return([]models.FinalAnalysis(nil), errors.New("timeout"))
	svc, _ := newService(t, store)

	_, err := svc.History(context.Background(), "aapl", 0)
	assert.EqualError(t, err, "history AAPL: timeout")
}

type fakeInvalidator struct{ got []string }

func (f *fakeInvalidator) Invalidate(_ context.Context, symbol string) error {
	f.got = append(f.got, symbol)
	return nil
}

func TestInvalidateAndStages(t *testing.T) {
	inv := &fakeInvalidator{}
	svc, _ := newService(t, repository.NewMemoryAnalysisStore(0), WithInvalidator(inv))

	require.NoError(t, svc.Invalidate(context.Background(), "tsla"))
	assert.Equal(t, []string{"TSLA"}, inv.got)

	ind, err := svc.Indicators(context.Background(), "aapl", 50, "1h")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", ind.Symbol)

	r, err := svc.Regime(context.Background(), "aapl", 250, "")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", r.Symbol)

	_, err = svc.Sentiment(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrInstrumentNotFound)
}

type fakeAnalyzer struct {
	err  error
	reqs []models.AnalysisRequest
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req models.AnalysisRequest) (*models.FinalAnalysis, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &models.FinalAnalysis{ID: "x", Symbol: req.Symbol, Recommendation: models.ActionHold}, nil
}

func TestAnalysisJob_Handle(t *testing.T) {
	fa := &fakeAnalyzer{}
	job := NewAnalysisJob(fa, nil)

	raw := json.RawMessage(`{"symbol":"AAPL","user_id":"u9","period":100}`)
	require.NoError(t, job.Handle(context.Background(), raw))
	require.Len(t, fa.reqs, 1)
	assert.Equal(t, "u9", fa.reqs[0].UserID)
	assert.Equal(t, 100, fa.reqs[0].Period)

	fa.err = models.ErrInstrumentNotFound
	assert.NoError(t, job.Handle(context.Background(), models.AnalysisRequest{Symbol: "NOPE"}))

	fa.err = errors.New("deadline")
	assert.Error(t, job.Handle(context.Background(), models.AnalysisRequest{Symbol: "AAPL"}))

	err := job.Handle(context.Background(), json.RawMessage(`{"symbol":`))
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))
	assert.True(t, queue.IsPermanent(job.Handle(context.Background(), 42)))
}

type fakeQueue struct {
	msgType string
	payload interface{}
}

func (q *fakeQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	q.msgType, q.payload = msgType, payload
	return nil
}

func TestEnqueueAnalysis(t *testing.T) {
	q := &fakeQueue{}
	require.NoError(t, EnqueueAnalysis(context.Background(), q, models.AnalysisRequest{Symbol: "AAPL"}))
	assert.Equal(t, AnalysisJobType, q.msgType)
}

func TestAnalysisRequestHandler(t *testing.T) {
	fa := &fakeAnalyzer{}
	m := svcmetrics.NewCollector()
	h := NewAnalysisRequestHandler("analyses.requested", fa, m, nil)
	assert.Equal(t, "analyses.requested", h.Topic())

	require.NoError(t, h.Handle(context.Background(), []byte(`{"symbol":"MSFT"}`)))
	assert.Equal(t, "MSFT", fa.reqs[0].Symbol)

	assert.Error(t, h.Handle(context.Background(), []byte(`{`)))
	assert.Equal(t, 1, m.Snapshot().Errors["consumer_unmarshal"])
}

func TestBarsUseCase(t *testing.T) {
	src := &fixedBars{bars: []models.Bar{
		{Timestamp: time.Unix(1, 0).UTC(), Close: 1},
		{Timestamp: time.Unix(2, 0).UTC(), Close: 2},
		{Timestamp: time.Unix(3, 0).UTC(), Close: 3},
	}}
	uc := NewBarsUseCase(src)

	res, err := uc.GetBars(context.Background(), GetBarsParams{Symbol: "aapl", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", res.Symbol)
	assert.Equal(t, "1d", res.Timeframe)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 3.0, res.Bars[1].Close)

	_, err = uc.GetBars(context.Background(), GetBarsParams{Symbol: "AAPL", From: time.Unix(10, 0), To: time.Unix(5, 0)})
	assert.EqualError(t, err, "from must be <= to")
}

type fixedBars struct{ bars []models.Bar }

func (f *fixedBars) GetBars(context.Context, string, time.Time, time.Time, domrepo.Timeframe) ([]models.Bar, error) {
	return f.bars, nil
}

func (f *fixedBars) GetLatestNBars(_ context.Context, _ string, n int, _ domrepo.Timeframe) ([]models.Bar, error) {
	if n < len(f.bars) {
		return f.bars[len(f.bars)-n:], nil
	}
	return f.bars, nil
}
