package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 250, c.Pipeline.Period)
	assert.Equal(t, 2, c.Pipeline.MaxRetries)
	assert.Equal(t, 0.3, c.Pipeline.InitialTemperature)
	assert.Equal(t, 5*time.Minute, c.Cache.QuantTTL)
	assert.Equal(t, 10*time.Minute, c.Cache.SentimentTTL)
	assert.Equal(t, "analyses.completed", c.Kafka.AnalysesTopic)
	assert.Equal(t, "latest", c.Kafka.Consumer.OffsetReset)
	assert.Equal(t, 2*time.Second, c.Server.SlowThreshold)
	assert.Equal(t, 10, c.Redis.PoolSize)
	require.NoError(t, c.Validate())
}

func TestParse_OverridesAndValidation(t *testing.T) {
	c, err := Parse([]byte(`
environment: production
pipeline:
  max_retries: 4
  retry_delay: 250ms
mock:
  enabled: true
  seed: 9
`))
	require.NoError(t, err)
	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, 4, c.Pipeline.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, c.Pipeline.RetryDelay)
	assert.True(t, c.Mock.Enabled)
	assert.Equal(t, int64(9), c.Mock.Seed)
	assert.Equal(t, 8080, c.Server.Port)

	_, err = Parse([]byte("pipeline:\n  max_retries: 9\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("environment: qa\n"))
	assert.Error(t, err)
}

func TestValidate_CrossField(t *testing.T) {
	cases := map[string]func(c *Config){
		"kafka without brokers":   func(c *Config) { c.Kafka.Enabled = true },
		"finnhub without key":     func(c *Config) { c.Finnhub.Enabled = true },
		"reasoner without key":    func(c *Config) { c.Reasoner.Enabled = true },
		"postgres without dsn":    func(c *Config) { c.Postgres.Enabled = true },
		"queue without redis":     func(c *Config) { c.Queue.Enabled = true },
		"unknown reasoner vendor": func(c *Config) { c.Reasoner.Provider = "other" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("FINNHUB_API_KEY", "fh-key")
	t.Setenv("REASONER_API_KEY", "llm-key")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("POSTGRES_DSN", "postgres://x")

	c := Default()
	c.ApplyEnv()

	assert.True(t, c.Finnhub.Enabled)
	assert.Equal(t, "fh-key", c.Finnhub.APIKey)
	assert.True(t, c.Reasoner.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "cache", c.Redis.Host)
	assert.Equal(t, 6380, c.Redis.Port)
	assert.True(t, c.Postgres.Enabled)
	require.NoError(t, c.Validate())
}
