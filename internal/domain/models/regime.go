package models

type RegimeLabel string

const (
	RegimeBull    RegimeLabel = "bull"
	RegimeBear    RegimeLabel = "bear"
	RegimeNeutral RegimeLabel = "neutral"
)

type RegimePhase string

const (
	PhaseAccumulation  RegimePhase = "accumulation"
	PhaseMarkup        RegimePhase = "markup"
	PhaseDistribution  RegimePhase = "distribution"
	PhaseMarkdown      RegimePhase = "markdown"
	PhaseConsolidation RegimePhase = "consolidation"
	PhaseRanging       RegimePhase = "ranging"
)

type RegimeScores struct {
	Bull    float64 `json:"bull"`
	Bear    float64 `json:"bear"`
	Neutral float64 `json:"neutral"`
}

// Regime is a coarse market-state label with sub-phase.
type Regime struct {
	Symbol          string       `json:"symbol"`
	Label           RegimeLabel  `json:"label"`
	Strength        float64      `json:"strength"`
	Phase           RegimePhase  `json:"phase"`
	Characteristics []string     `json:"characteristics"`
	Confidence      float64      `json:"confidence"`
	Scores          RegimeScores `json:"scores"`
	Status          Status       `json:"status"`
}

// FallbackRegime is returned when classification fails.
func FallbackRegime(symbol string) Regime {
	return Regime{
		Symbol:          symbol,
		Label:           RegimeNeutral,
		Phase:           PhaseRanging,
		Characteristics: []string{"classification unavailable"},
		Confidence:      0.3,
		Status:          StatusDegraded,
	}
}
