package http

// APIResponse is the envelope around every analysis API answer. Status
// mirrors the HTTP code so clients that only see the body can still branch.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError is one rejected request field.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_TICKER"`
	Field   string                 `json:"field,omitempty" example:"symbol"`
	Message string                 `json:"message,omitempty" example:"symbol must be a ticker such as AAPL, BRK.B or ES=F"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ListDataResponse carries history rows, bars or batch items with their count.
type ListDataResponse struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
}
