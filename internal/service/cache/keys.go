package cache

import (
	"fmt"
	"strings"

	"FinFusion/internal/domain/repository"
)

// Key prefixes double as the cache names reported to metrics.
const (
	QuantCache            = "quant_indicators"
	SentimentCache        = "sentiment_analysis"
	FusionCache           = "fusion_analysis"
	SentimentHistoryCache = "sentiment_history"
)

// DefaultPeriod is the lookback the bare fusion key refers to.
const DefaultPeriod = 250

// QuantKey is quant_indicators:<symbol>:<period>, suffixed with the timeframe
// when it is not daily.
func QuantKey(symbol string, period int, tf repository.Timeframe) string {
	key := fmt.Sprintf("%s:%s:%d", QuantCache, symbol, period)
	if tf != "" && tf != repository.TF1d {
		key += ":" + string(tf)
	}
	return key
}

func SentimentKey(symbol string) string {
	return SentimentCache + ":" + symbol
}

// FusionKey is fusion_analysis:<symbol> for the default lookback, with the
// period and timeframe appended otherwise.
func FusionKey(symbol string, period int, tf repository.Timeframe) string {
	if period == DefaultPeriod && (tf == "" || tf == repository.TF1d) {
		return FusionCache + ":" + symbol
	}
	return fmt.Sprintf("%s:%s:%d:%s", FusionCache, symbol, period, tf)
}

func SentimentHistoryKey(symbol string) string {
	return SentimentHistoryCache + ":" + symbol
}

// SymbolPatterns lists the glob patterns covering every derived entry of a symbol.
// Sentiment history is deliberately not included.
func SymbolPatterns(symbol string) []string {
	symbol = strings.ToUpper(symbol)
	return []string{
		QuantCache + ":" + symbol + ":*",
		SentimentKey(symbol),
		FusionCache + ":" + symbol,
		FusionCache + ":" + symbol + ":*",
	}
}
