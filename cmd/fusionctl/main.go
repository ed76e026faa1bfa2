package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"FinFusion/internal/di"
	"FinFusion/pkg/config"
)

var (
	configPath string
	mockMode   bool
	seed       int64
	bars       int
	timeframe  string
	timeout    time.Duration
	logLevel   string
)

// rootCmd is the base command for the FinFusion CLI
var rootCmd = &cobra.Command{
	Use:   "fusionctl",
	Short: "Run FinFusion analyses from the command line",
	Long: `fusionctl runs the FinFusion pipeline in-process and prints JSON.

With --mock every input is generated from --seed, so runs are repeatable
and need no network or database.

Example usage:
  fusionctl analyze AAPL --mock --seed 7
  fusionctl analyze AAPL MSFT NVDA --mock
  fusionctl indicators AAPL --mock --bars 300
  fusionctl sentiment AAPL --config config/config.yaml`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to YAML configuration (defaults apply when empty)")
	pf.BoolVar(&mockMode, "mock", false, "Use synthetic bars and mock sentiment sources")
	pf.Int64Var(&seed, "seed", 42, "Seed for synthetic data in mock mode")
	pf.IntVar(&bars, "bars", 250, "Number of bars to analyze")
	pf.StringVar(&timeframe, "timeframe", "1d", "Bar timeframe: 1m, 5m, 1h, 1d")
	pf.DurationVar(&timeout, "timeout", 2*time.Minute, "Overall command timeout")
	pf.StringVar(&logLevel, "log-level", "warn", "Log level written to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig builds the CLI configuration. Server-side intake is always
// off; logs go to stderr so stdout stays valid JSON.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadWithEnv(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg.ApplyEnv()
	}

	if mockMode {
		cfg.Mock.Enabled = true
		cfg.Mock.Seed = seed
		cfg.Finnhub.Enabled = false
		cfg.News.RSSEnabled = false
		cfg.Postgres.Enabled = false
		cfg.Redis.Enabled = false
	}
	cfg.Kafka.Enabled = false
	cfg.Queue.Enabled = false
	cfg.Pipeline.Period = bars
	cfg.Pipeline.Timeout = timeout
	cfg.Log.Level = logLevel
	cfg.Log.Format = "console"
	cfg.Log.Output = "stderr"

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// withPipeline wires the in-process stack and runs fn with a bounded context.
func withPipeline(cmd *cobra.Command, fn func(ctx context.Context, p *di.Pipeline) (any, error)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, cleanup, err := di.InitializePipeline(cfg)
	if err != nil {
		return fmt.Errorf("initialize pipeline: %w", err)
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	out, err := fn(ctx, p)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
