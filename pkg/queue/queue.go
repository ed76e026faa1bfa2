package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// QueueService enqueues typed jobs, e.g. analysis requests.
type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// QueueConfig tunes workers and the retry schedule. A failed message waits
// RetryDelay, then twice that, and so on up to MaxRetryDelay.
type QueueConfig struct {
	Workers       int
	RetryLimit    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	// RetrySweep is how often due retries are moved back to the pending list.
	RetrySweep time.Duration
}

func (c *QueueConfig) withDefaults() *QueueConfig {
	out := QueueConfig{}
	if c != nil {
		out = *c
	}
	if out.Workers <= 0 {
		out.Workers = 1
	}
	if out.RetryDelay <= 0 {
		out.RetryDelay = 10 * time.Second
	}
	if out.MaxRetryDelay < out.RetryDelay {
		out.MaxRetryDelay = 30 * out.RetryDelay
	}
	if out.RetrySweep <= 0 {
		out.RetrySweep = time.Second
	}
	return &out
}

// backoff is the wait before retry number attempt (1-based).
func (c *QueueConfig) backoff(attempt int) time.Duration {
	d := c.RetryDelay
	for i := 1; i < attempt && d < c.MaxRetryDelay; i++ {
		d *= 2
	}
	if d > c.MaxRetryDelay {
		d = c.MaxRetryDelay
	}
	return d
}

// Depth is a snapshot of the queue keys.
type Depth struct {
	Pending    int64 `json:"pending"`
	Retry      int64 `json:"retry"`
	DeadLetter int64 `json:"dead_letter"`
}

// Message is the stored envelope. Dead-lettered messages keep the last error
// so they can be inspected and replayed by hand.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`
}

// ParsePayload decodes a job payload. Payloads read from Redis arrive as
// json.RawMessage; in-process callers may pass the value itself.
func ParsePayload[T any](payload interface{}) (*T, error) {
	var raw []byte
	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	case map[string]interface{}:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal payload map: %w", err)
		}
		raw = b
	default:
		return nil, fmt.Errorf("invalid payload type: %T", payload)
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &out, nil
}
