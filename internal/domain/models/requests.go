package models

// Requests for analysis HTTP endpoints and queued jobs. Defined in domain for consistency and reuse.

type AnalysisRequest struct {
	Symbol    string `json:"symbol" validate:"required,ticker"`
	UserID    string `json:"user_id" validate:"max=64"`
	Period    int    `json:"period" default:"250" validate:"gte=1,lte=2000"`
	Timeframe string `json:"timeframe" default:"1d" validate:"oneof=1m 5m 1h 1d"`
}

type SymbolRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required,ticker"`
}

type IndicatorsRequest struct {
	Symbol    string `param:"symbol" json:"symbol" validate:"required,ticker"`
	Period    int    `query:"period" json:"period" default:"250" validate:"gte=1,lte=2000"`
	Timeframe string `query:"tf" json:"tf" default:"1d" validate:"oneof=1m 5m 1h 1d"`
}

type HistoryRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required,ticker"`
	Limit  int    `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=500"`
}

type BatchRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1,max=50,dive,required,max=16"`
	UserID  string   `json:"user_id" validate:"max=64"`
}

// BatchItem is one per-symbol outcome of a batch run.
type BatchItem struct {
	Symbol   string         `json:"symbol"`
	Analysis *FinalAnalysis `json:"analysis,omitempty"`
	Error    string         `json:"error,omitempty"`
}

type BarsRequest struct {
	Symbol    string `param:"symbol" json:"symbol" validate:"required,ticker"`
	From      string `query:"from" json:"from"`
	To        string `query:"to" json:"to"`
	Timeframe string `query:"tf" json:"tf" default:"1d" validate:"oneof=1m 5m 1h 1d"`
	Limit     int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=5000"`
}
