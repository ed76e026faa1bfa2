package reasoner

import (
    "context"
    "fmt"
    "strings"

    "github.com/cloudwego/eino-ext/components/model/openai"
    "github.com/cloudwego/eino/components/model"
    "github.com/cloudwego/eino/schema"

    "FinFusion/internal/domain/service"
)

// EinoReasoner talks to any OpenAI-compatible endpoint (OpenAI, DeepSeek,
// local gateways) through an eino chat model.
type EinoReasoner struct {
    chat  model.BaseChatModel
    model string
}

var _ service.Reasoner = (*EinoReasoner)(nil)

// NewEinoReasoner builds an OpenAI-compatible chat model. An empty baseURL
// uses the OpenAI default.
func NewEinoReasoner(ctx context.Context, baseURL, apiKey, modelName string, maxTokens int) (*EinoReasoner, error) {
    if maxTokens <= 0 {
        maxTokens = 2000
    }
    chat, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
        BaseURL:   baseURL,
        APIKey:    apiKey,
        Model:     modelName,
        MaxTokens: &maxTokens,
    })
    if err != nil {
        return nil, fmt.Errorf("init chat model: %w", err)
    }
    return &EinoReasoner{chat: chat, model: modelName}, nil
}

// NewEinoReasonerFromModel wraps an existing chat model.
func NewEinoReasonerFromModel(chat model.BaseChatModel, modelName string) *EinoReasoner {
    return &EinoReasoner{chat: chat, model: modelName}
}

func (r *EinoReasoner) Name() string { return "eino" }

func (r *EinoReasoner) Complete(ctx context.Context, p service.Prompt) (service.Completion, error) {
    msgs := make([]*schema.Message, 0, 2)
    if p.System != "" {
        msgs = append(msgs, schema.SystemMessage(p.System))
    }
    msgs = append(msgs, schema.UserMessage(p.User))

    opts := []model.Option{model.WithTemperature(float32(p.Temperature))}
    if p.MaxTokens > 0 {
        opts = append(opts, model.WithMaxTokens(p.MaxTokens))
    }

    out, err := r.chat.Generate(ctx, msgs, opts...)
    if err != nil {
        return service.Completion{}, fmt.Errorf("generate: %w", err)
    }
    if out == nil || strings.TrimSpace(out.Content) == "" {
        return service.Completion{}, ErrEmptyResponse
    }

    c := service.Completion{Text: out.Content, Model: r.model}
    if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
        c.InputTokens = out.ResponseMeta.Usage.PromptTokens
        c.OutputTokens = out.ResponseMeta.Usage.CompletionTokens
    }
    return c, nil
}
