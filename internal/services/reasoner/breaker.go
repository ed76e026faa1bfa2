package reasoner

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/sony/gobreaker"

    "FinFusion/internal/domain/service"
    "FinFusion/pkg/logger"
)

// BreakerReasoner stops calling a reasoner that keeps failing. While open it
// fails fast with ErrCircuitOpen so the orchestrator reaches its fallback
// without waiting on timeouts.
type BreakerReasoner struct {
    next service.Reasoner
    cb   *gobreaker.CircuitBreaker
}

var _ service.Reasoner = (*BreakerReasoner)(nil)

func NewBreakerReasoner(next service.Reasoner, failures uint32, cooldown time.Duration, log *logger.Logger) *BreakerReasoner {
    if failures == 0 {
        failures = 5
    }
    if cooldown <= 0 {
        cooldown = time.Minute
    }
    if log == nil {
        log = logger.Nop()
    }
    st := gobreaker.Settings{
        Name:    "reasoner-" + next.Name(),
        Timeout: cooldown,
        ReadyToTrip: func(counts gobreaker.Counts) bool {
            return counts.ConsecutiveFailures >= failures
        },
        OnStateChange: func(name string, from, to gobreaker.State) {
            log.Warn("reasoner breaker state change",
                logger.String("breaker", name), logger.String("from", from.String()), logger.String("to", to.String()))
        },
    }
    return &BreakerReasoner{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *BreakerReasoner) Name() string { return b.next.Name() }

// State reports the breaker state for health output.
func (b *BreakerReasoner) State() string { return b.cb.State().String() }

func (b *BreakerReasoner) Complete(ctx context.Context, p service.Prompt) (service.Completion, error) {
    out, err := b.cb.Execute(func() (interface{}, error) {
        return b.next.Complete(ctx, p)
    })
    if err != nil {
        if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
            return service.Completion{}, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
        }
        return service.Completion{}, err
    }
    return out.(service.Completion), nil
}
