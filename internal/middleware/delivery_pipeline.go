package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FinFusion/internal/domain/models"
	domrepo "FinFusion/internal/domain/repository"
	"FinFusion/pkg/logger"
)

// Sink is the downstream a completed analysis is delivered to.
type Sink interface {
	Deliver(ctx context.Context, a *models.FinalAnalysis) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, a *models.FinalAnalysis) error

func (f SinkFunc) Deliver(ctx context.Context, a *models.FinalAnalysis) error { return f(ctx, a) }

// PublisherSink delivers through an AnalysisPublisher.
func PublisherSink(p domrepo.AnalysisPublisher) Sink {
	return SinkFunc(p.Publish)
}

var ErrInvalidAnalysis = errors.New("invalid analysis")

// DeliveryPipeline sits between the analysis service and the publisher.
// It validates records, drops duplicates delivered faster than the per-symbol
// interval, and buffers records while the downstream is unavailable.
type DeliveryPipeline struct {
	sink     Sink
	metrics  domrepo.Metrics
	log      *logger.Logger
	interval time.Duration
	bufSize  int
	bufCh    chan *models.FinalAnalysis
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]lastDelivery
}

type lastDelivery struct {
	id string
	at time.Time
}

type PipelineOption func(*DeliveryPipeline)

// WithMinInterval drops a second record for the same symbol and id seen within d.
func WithMinInterval(d time.Duration) PipelineOption {
	return func(p *DeliveryPipeline) {
		if d >= 0 {
			p.interval = d
		}
	}
}

// WithBufferSize sets the retry buffer used while the sink fails.
func WithBufferSize(n int) PipelineOption {
	return func(p *DeliveryPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func WithPipelineLogger(l *logger.Logger) PipelineOption {
	return func(p *DeliveryPipeline) {
		if l != nil {
			p.log = l
		}
	}
}

func NewDeliveryPipeline(sink Sink, metrics domrepo.Metrics, opts ...PipelineOption) *DeliveryPipeline {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	p := &DeliveryPipeline{
		sink:     sink,
		metrics:  metrics,
		log:      logger.Nop(),
		interval: time.Second,
		bufSize:  1000,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		lastSeen: make(map[string]lastDelivery),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.FinalAnalysis, p.bufSize)
	return p
}

// Start launches background redelivery of buffered records.
func (p *DeliveryPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.doneCh)
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case a := <-p.bufCh:
				if err := p.sink.Deliver(ctx, a); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("delivery_retry")
					select {
					case <-time.After(backoff):
					case <-p.stopCh:
						return
					}
					select {
					case p.bufCh <- a:
					default:
						p.metrics.RecordError("delivery_buffer_drop")
						p.log.Warn("delivery buffer full, dropping analysis", logger.Symbol(a.Symbol), logger.String("id", a.ID))
					}
					continue
				}
				backoff = 50 * time.Millisecond
			}
		}
	}()
}

// Stop halts redelivery and reports how many records are still buffered.
func (p *DeliveryPipeline) Stop() int {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return len(p.bufCh)
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.doneCh
	return len(p.bufCh)
}

// Pending is the current buffer depth.
func (p *DeliveryPipeline) Pending() int { return len(p.bufCh) }

// Process validates and forwards a, buffering it when the sink fails.
func (p *DeliveryPipeline) Process(ctx context.Context, a *models.FinalAnalysis) error {
	start := time.Now()
	if err := validateAnalysis(a); err != nil {
		p.metrics.RecordError("delivery_validate")
		return err
	}
	if !p.allow(a, start) {
		p.metrics.RecordError("delivery_duplicate")
		return nil
	}

	if err := p.sink.Deliver(ctx, a); err != nil {
		p.metrics.RecordError("delivery_sink")
		select {
		case p.bufCh <- a:
		default:
			p.metrics.RecordError("delivery_buffer_full")
		}
		return fmt.Errorf("delivery downstream: %w", err)
	}
	p.metrics.RecordLatency("delivery", time.Since(start).Seconds())
	return nil
}

func validateAnalysis(a *models.FinalAnalysis) error {
	switch {
	case a == nil:
		return fmt.Errorf("%w: nil", ErrInvalidAnalysis)
	case a.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidAnalysis)
	case a.Symbol == "":
		return fmt.Errorf("%w: empty symbol", ErrInvalidAnalysis)
	case a.Recommendation == "":
		return fmt.Errorf("%w: empty recommendation", ErrInvalidAnalysis)
	}
	return nil
}

func (p *DeliveryPipeline) allow(a *models.FinalAnalysis, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSeen[a.Symbol]
	if ok && last.id == a.ID && now.Sub(last.at) < p.interval {
		return false
	}
	p.lastSeen[a.Symbol] = lastDelivery{id: a.ID, at: now}
	return true
}
