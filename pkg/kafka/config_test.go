package kafka

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducer_RejectsInvalidConfig(t *testing.T) {
	cases := map[string][]ProducerOption{
		"no brokers":          nil,
		"acks out of range":   {WithBrokers([]string{"k1:9092"}), WithRequiredAcks(2)},
		"unknown compression": {WithBrokers([]string{"k1:9092"}), WithCompression("brotli")},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewProducer(opts...)
			assert.Error(t, err)
		})
	}
}

func TestNewProducer_KeysBySymbolWithBatching(t *testing.T) {
	p, err := NewProducer(
		WithBrokers([]string{"k1:9092"}),
		WithCompression("zstd"),
		WithBatching(0, 4096, 200*time.Millisecond),
		WithMaxAttempts(0),
	)
	require.NoError(t, err)
	defer p.Close()

	assert.IsType(t, &kafka.Hash{}, p.writer.Balancer)
	assert.Equal(t, kafka.Zstd, p.writer.Compression)
	assert.Equal(t, 100, p.writer.BatchSize)
	assert.Equal(t, int64(4096), p.writer.BatchBytes)
	assert.Equal(t, 200*time.Millisecond, p.writer.BatchTimeout)
	assert.Equal(t, 3, p.writer.MaxAttempts)
	assert.Equal(t, kafka.RequireAll, p.writer.RequiredAcks)
}
