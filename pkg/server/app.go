package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"FinFusion/internal/handler/ws"
	mid "FinFusion/internal/middleware"
	"FinFusion/pkg/config"
	xhttp "FinFusion/pkg/http"
	pkgkafka "FinFusion/pkg/kafka"
	applogger "FinFusion/pkg/logger"
	"FinFusion/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	hub        *ws.Hub
	pipe       *mid.DeliveryPipeline
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	jobs       *queue.RedisQueue
}

// Option attaches an optional background component.
type Option func(*App)

// WithHub runs the analysis stream hub.
func WithHub(h *ws.Hub) Option { return func(a *App) { a.hub = h } }

// WithDeliveryPipeline runs the redelivery loop for downstream publishing.
func WithDeliveryPipeline(p *mid.DeliveryPipeline) Option { return func(a *App) { a.pipe = p } }

// WithJobQueue runs the Redis job workers.
func WithJobQueue(q *queue.RedisQueue) Option { return func(a *App) { a.jobs = q } }

// WithConsumer consumes analysis requests from Kafka.
func WithConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) Option {
	return func(a *App) {
		a.consumer = c
		a.kh = h
	}
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, srv *xhttp.Server, opts ...Option) *App {
	if l == nil {
		l = applogger.Nop()
	}
	a := &App{cfg: cfg, log: l, httpServer: srv}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and shuts down when ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.hub != nil {
		go a.hub.Run(runCtx)
	}
	if a.pipe != nil {
		a.pipe.Start(runCtx)
		a.log.Info("delivery pipeline started", applogger.String("topic", a.cfg.Kafka.AnalysesTopic))
	}

	if a.jobs != nil {
		if err := a.jobs.Start(); err != nil {
			a.log.Error("job queue start error", applogger.Error(err))
			return err
		}
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer error", applogger.Error(err))
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown(cancel)
}

// shutdown stops intake first, then drains background components.
func (a *App) shutdown(cancelRun context.CancelFunc) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.jobs != nil {
		if err := a.jobs.Stop(ctx); err != nil {
			a.log.Warn("job queue stop error", applogger.Error(err))
		}
	}

	if a.pipe != nil {
		if dropped := a.pipe.Stop(); dropped > 0 {
			a.log.Warn("undelivered analyses dropped on shutdown", applogger.Int("count", dropped))
		}
	}
	cancelRun()

	a.log.RemoveCollector()
	a.log.Info("shutdown complete")
	return nil
}
