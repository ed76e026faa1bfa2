package main

import (
	"context"

	"github.com/spf13/cobra"

	"FinFusion/internal/di"
	"FinFusion/internal/domain/models"
)

var userID string

// analyzeCmd runs the full pipeline for one or more symbols
var analyzeCmd = &cobra.Command{
	Use:   "analyze SYMBOL [SYMBOL...]",
	Short: "Produce a final recommendation for each symbol",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(ctx context.Context, p *di.Pipeline) (any, error) {
			if len(args) == 1 {
				return p.Service.Analyze(ctx, models.AnalysisRequest{
					Symbol:    args[0],
					UserID:    userID,
					Period:    bars,
					Timeframe: timeframe,
				})
			}
			return p.Service.AnalyzeBatch(ctx, args, userID), nil
		})
	},
}

// indicatorsCmd prints the technical indicator set
var indicatorsCmd = &cobra.Command{
	Use:   "indicators SYMBOL",
	Short: "Compute technical indicators over recent bars",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(ctx context.Context, p *di.Pipeline) (any, error) {
			return p.Service.Indicators(ctx, args[0], bars, timeframe)
		})
	},
}

// sentimentCmd prints the aggregated sentiment snapshot
var sentimentCmd = &cobra.Command{
	Use:   "sentiment SYMBOL",
	Short: "Aggregate news, social and analyst sentiment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(ctx context.Context, p *di.Pipeline) (any, error) {
			return p.Service.Sentiment(ctx, args[0])
		})
	},
}

// fusionCmd prints the fused score and the market regime
var fusionCmd = &cobra.Command{
	Use:   "fusion SYMBOL",
	Short: "Fuse indicators and sentiment and classify the regime",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(ctx context.Context, p *di.Pipeline) (any, error) {
			fused, err := p.Service.Fusion(ctx, args[0], bars, timeframe)
			if err != nil {
				return nil, err
			}
			regime, err := p.Service.Regime(ctx, args[0], bars, timeframe)
			if err != nil {
				return nil, err
			}
			return struct {
				Fusion models.FusionResult `json:"fusion"`
				Regime models.Regime       `json:"regime"`
			}{fused, regime}, nil
		})
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&userID, "user-id", "", "User id recorded on the analysis")
	rootCmd.AddCommand(analyzeCmd, indicatorsCmd, sentimentCmd, fusionCmd)
}
