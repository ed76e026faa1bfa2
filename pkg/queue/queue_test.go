package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jobPayload struct {
	Symbol string `json:"symbol"`
	Period int    `json:"period"`
}

func TestParsePayload(t *testing.T) {
	want := jobPayload{Symbol: "AAPL", Period: 30}

	got, err := ParsePayload[jobPayload](want)
	require.NoError(t, err)
	assert.Equal(t, want, *got)

	got, err = ParsePayload[jobPayload](&want)
	require.NoError(t, err)
	assert.Same(t, &want, got)

	got, err = ParsePayload[jobPayload](map[string]interface{}{"symbol": "MSFT", "period": 10})
	require.NoError(t, err)
	assert.Equal(t, jobPayload{Symbol: "MSFT", Period: 10}, *got)

	got, err = ParsePayload[jobPayload](json.RawMessage(`{"symbol":"TSLA"}`))
	require.NoError(t, err)
	assert.Equal(t, "TSLA", got.Symbol)

	_, err = ParsePayload[jobPayload](json.RawMessage(`{"symbol":`))
	assert.Error(t, err)

	_, err = ParsePayload[jobPayload](42)
	assert.EqualError(t, err, "invalid payload type: int")
}

func TestNewMessage_PayloadRoundTripsThroughJob(t *testing.T) {
	now := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	msg, err := newMessage("analysis.requested", jobPayload{Symbol: "AAPL", Period: 30}, now)
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, now, msg.EnqueuedAt)

	stored, err := json.Marshal(msg)
	require.NoError(t, err)
	var read Message
	require.NoError(t, json.Unmarshal(stored, &read))

	got, err := ParsePayload[jobPayload](read.Payload)
	require.NoError(t, err)
	assert.Equal(t, jobPayload{Symbol: "AAPL", Period: 30}, *got)

	_, err = newMessage("analysis.requested", make(chan int), now)
	assert.Error(t, err)
}

func TestRedisQueue_Keys(t *testing.T) {
	q := NewRedisQueue(nil, nil, nil)
	assert.Equal(t, "finfusion:queue:messages", q.getQueueKey())
	assert.Equal(t, "finfusion:queue:retry", q.getRetryKey())
	assert.Equal(t, "finfusion:queue:dlq", q.getDeadLetterKey())
	assert.Equal(t, 1, q.config.Workers)

	q = NewRedisQueue(nil, nil, nil, WithKeyPrefix("jobs"))
	assert.Equal(t, "jobs:dlq", q.getDeadLetterKey())
}

func TestQueueConfig_Backoff(t *testing.T) {
	c := (&QueueConfig{RetryDelay: 10 * time.Second, MaxRetryDelay: time.Minute}).withDefaults()
	assert.Equal(t, 10*time.Second, c.backoff(1))
	assert.Equal(t, 20*time.Second, c.backoff(2))
	assert.Equal(t, 40*time.Second, c.backoff(3))
	assert.Equal(t, time.Minute, c.backoff(4))
	assert.Equal(t, time.Minute, c.backoff(30))

	d := (&QueueConfig{RetryDelay: time.Second}).withDefaults()
	assert.Equal(t, 30*time.Second, d.MaxRetryDelay)
	assert.Equal(t, time.Second, d.RetrySweep)
}

func TestRedisQueue_Dispose(t *testing.T) {
	q := NewRedisQueue(nil, &QueueConfig{RetryLimit: 2, RetryDelay: time.Second, MaxRetryDelay: time.Minute}, nil)
	now := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

	msg := Message{ID: "m1"}
	d, _ := q.dispose(&msg, nil, now)
	assert.Equal(t, done, d)
	assert.Empty(t, msg.LastError)

	d, due := q.dispose(&msg, errors.New("upstream timeout"), now)
	assert.Equal(t, retry, d)
	assert.Equal(t, 1, msg.Attempts)
	assert.Equal(t, now.Add(time.Second), due)
	assert.Equal(t, "upstream timeout", msg.LastError)

	d, due = q.dispose(&msg, errors.New("upstream timeout"), now)
	assert.Equal(t, retry, d)
	assert.Equal(t, now.Add(2*time.Second), due)

	d, _ = q.dispose(&msg, errors.New("upstream timeout"), now)
	assert.Equal(t, deadLetter, d)
	assert.Equal(t, 2, msg.Attempts)

	fresh := Message{ID: "m2"}
	d, _ = q.dispose(&fresh, Permanent(fmt.Errorf("decode: %w", errors.New("bad json"))), now)
	assert.Equal(t, deadLetter, d)
	assert.Zero(t, fresh.Attempts)
	assert.Equal(t, "decode: bad json", fresh.LastError)
}

func TestRedisQueue_DisposeRequeuesOnShutdown(t *testing.T) {
	q := NewRedisQueue(nil, &QueueConfig{RetryLimit: 3}, nil)
	msg := Message{ID: "m1"}

	d, _ := q.dispose(&msg, context.Canceled, time.Now())
	assert.Equal(t, retry, d, "a job cancelling itself is an ordinary failure")

	q.ctx, q.cancel = context.WithCancel(context.Background())
	q.cancel()
	msg = Message{ID: "m2"}
	d, _ = q.dispose(&msg, fmt.Errorf("analyze: %w", context.Canceled), time.Now())
	assert.Equal(t, requeue, d)
	assert.Zero(t, msg.Attempts)
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))

	base := errors.New("bad payload")
	err := fmt.Errorf("job: %w", Permanent(base))
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
}

func TestRedisQueue_EnqueueWhenStopped(t *testing.T) {
	q := NewRedisQueue(nil, nil, nil)
	err := q.PublishMessage(context.Background(), "analysis.requested", jobPayload{Symbol: "AAPL"})
	assert.EqualError(t, err, "queue not running")
	assert.EqualError(t, q.Health(context.Background()), "queue not running")
}
