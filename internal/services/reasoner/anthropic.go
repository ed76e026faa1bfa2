package reasoner

import (
    "context"
    "strings"
    "time"

    "FinFusion/internal/domain/service"
)

const (
    anthropicDefaultURL = "https://api.anthropic.com"
    anthropicVersion    = "2023-06-01"
)

type anthropicMessage struct {
    Role    string `json:"role"`
    Content string `json:"content"`
}

type anthropicRequest struct {
    Model       string             `json:"model"`
    MaxTokens   int                `json:"max_tokens"`
    Temperature float64            `json:"temperature"`
    System      string             `json:"system,omitempty"`
    Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
    Model   string `json:"model"`
    Content []struct {
        Type string `json:"type"`
        Text string `json:"text"`
    } `json:"content"`
    Usage struct {
        InputTokens  int `json:"input_tokens"`
        OutputTokens int `json:"output_tokens"`
    } `json:"usage"`
}

// AnthropicReasoner calls the Anthropic Messages API.
type AnthropicReasoner struct {
    base      *httpBase
    model     string
    maxTokens int
}

var _ service.Reasoner = (*AnthropicReasoner)(nil)

func NewAnthropicReasoner(baseURL, apiKey, model string, maxTokens int, timeout time.Duration) *AnthropicReasoner {
    if baseURL == "" {
        baseURL = anthropicDefaultURL
    }
    if maxTokens <= 0 {
        maxTokens = 2000
    }
    return &AnthropicReasoner{
        base: newHTTPBase(baseURL, timeout, map[string]string{
            "x-api-key":         apiKey,
            "anthropic-version": anthropicVersion,
        }),
        model:     model,
        maxTokens: maxTokens,
    }
}

func (r *AnthropicReasoner) Name() string { return "anthropic" }

func (r *AnthropicReasoner) Complete(ctx context.Context, p service.Prompt) (service.Completion, error) {
    maxTokens := p.MaxTokens
    if maxTokens <= 0 {
        maxTokens = r.maxTokens
    }
    req := anthropicRequest{
        Model:       r.model,
        MaxTokens:   maxTokens,
        Temperature: p.Temperature,
        System:      p.System,
        Messages:    []anthropicMessage{{Role: "user", Content: p.User}},
    }

    var resp anthropicResponse
    if err := r.base.postJSON(ctx, "/v1/messages", req, &resp); err != nil {
        return service.Completion{}, err
    }

    var b strings.Builder
    for _, c := range resp.Content {
        if c.Type == "text" {
            b.WriteString(c.Text)
        }
    }
    if strings.TrimSpace(b.String()) == "" {
        return service.Completion{}, ErrEmptyResponse
    }
    model := resp.Model
    if model == "" {
        model = r.model
    }
    return service.Completion{
        Text:         b.String(),
        Model:        model,
        InputTokens:  resp.Usage.InputTokens,
        OutputTokens: resp.Usage.OutputTokens,
    }, nil
}
