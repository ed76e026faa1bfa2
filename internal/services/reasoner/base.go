package reasoner

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    xhttp "FinFusion/pkg/http"
)

var (
    // ErrEmptyResponse is returned when the model answers with no text.
    ErrEmptyResponse = errors.New("reasoner returned an empty response")
    // ErrCircuitOpen is returned while the breaker rejects calls.
    ErrCircuitOpen = errors.New("reasoner circuit open")
)

// httpBase centralizes client construction and JSON POST handling for the
// HTTP reasoner transports.
type httpBase struct {
    baseURL string
    client  *xhttp.Client
}

func newHTTPBase(baseURL string, timeout time.Duration, headers map[string]string) *httpBase {
    if timeout <= 0 {
        timeout = 45 * time.Second
    }
    opts := []xhttp.ClientOption{xhttp.WithTimeout(timeout)}
    for k, v := range headers {
        opts = append(opts, xhttp.WithHeader(k, v))
    }
    return &httpBase{
        baseURL: strings.TrimRight(baseURL, "/"),
        client:  xhttp.NewClient(opts...),
    }
}

// postJSON posts payload to path under baseURL and decodes JSON into dest.
func (b *httpBase) postJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
    if b.client == nil || b.baseURL == "" {
        return fmt.Errorf("reasoner http client not initialized")
    }
    if err := b.client.PostJSON(ctx, b.baseURL+path, payload, dest); err != nil {
        return fmt.Errorf("post %s: %w", path, err)
    }
    return nil
}
