package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/gemsieve/internal/resilience"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "qwen2.5:14b"
)

type ollamaProvider struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	limiter *rate.Limiter
}

func newOllama(opts Options, model string) *ollamaProvider {
	if model == "" {
		model = defaultOllamaModel
	}
	base := opts.OllamaBaseURL
	if base == "" {
		base = defaultOllamaBaseURL
	}
	return &ollamaProvider{
		baseURL: base,
		apiKey:  opts.OllamaAPIKey,
		model:   model,
		http:    newHTTPClient(opts.TimeoutSecs),
		limiter: newLimiter(opts.RequestsPerSecond),
	}
}

func (p *ollamaProvider) Name() string  { return "ollama" }
func (p *ollamaProvider) Model() string { return p.model }

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []chatMessage   `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	PromptEvalCount int64       `json:"prompt_eval_count"`
	EvalCount       int64       `json:"eval_count"`
}

func (p *ollamaProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := waitLimiter(ctx, p.limiter); err != nil {
		return nil, err
	}

	body := ollamaChatRequest{
		Model:  p.model,
		Stream: false,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})

	opts := map[string]any{}
	if req.MaxTokens > 0 {
		opts["num_predict"] = req.MaxTokens
	}
	if req.Temperature != nil {
		opts["temperature"] = *req.Temperature
	}
	if len(opts) > 0 {
		body.Options = opts
	}

	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}

	return resilience.DoVal(ctx, retryPolicy("ollama"), func(ctx context.Context) (*Response, error) {
		raw, err := postJSON(ctx, p.http, p.baseURL+"/api/chat", headers, body)
		if err != nil {
			return nil, eris.Wrap(err, "ai: ollama chat")
		}
		var out ollamaChatResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, eris.Wrap(err, "ai: decode ollama response")
		}
		return &Response{
			Text:         out.Message.Content,
			Model:        out.Model,
			InputTokens:  out.PromptEvalCount,
			OutputTokens: out.EvalCount,
		}, nil
	})
}

// --- shared HTTP plumbing ---

func newHTTPClient(timeoutSecs int) *http.Client {
	if timeoutSecs <= 0 {
		timeoutSecs = 120
	}
	return &http.Client{
		Timeout: time.Duration(timeoutSecs) * time.Second,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

func waitLimiter(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return eris.Wrap(l.Wait(ctx), "ai: rate limit wait")
}

func retryPolicy(service string) resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger(service, "complete")
	return cfg
}

func postJSON(ctx context.Context, hc *http.Client, url string, headers map[string]string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("unexpected status %d: %s", resp.StatusCode, string(raw))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}
	return raw, nil
}
