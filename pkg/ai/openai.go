package ai

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/gemsieve/internal/resilience"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
)

type openaiProvider struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	limiter *rate.Limiter
}

func newOpenAI(opts Options, model string) *openaiProvider {
	if model == "" {
		model = defaultOpenAIModel
	}
	base := opts.OpenAIBaseURL
	if base == "" {
		base = defaultOpenAIBaseURL
	}
	return &openaiProvider{
		baseURL: base,
		apiKey:  opts.OpenAIAPIKey,
		model:   model,
		http:    newHTTPClient(opts.TimeoutSecs),
		limiter: newLimiter(opts.RequestsPerSecond),
	}
}

func (p *openaiProvider) Name() string  { return "openai" }
func (p *openaiProvider) Model() string { return p.model }

type openaiChatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type openaiChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *openaiProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := waitLimiter(ctx, p.limiter); err != nil {
		return nil, err
	}

	body := openaiChatRequest{
		Model:       p.model,
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = &req.MaxTokens
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})

	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}

	return resilience.DoVal(ctx, retryPolicy("openai"), func(ctx context.Context) (*Response, error) {
		raw, err := postJSON(ctx, p.http, p.baseURL+"/chat/completions", headers, body)
		if err != nil {
			return nil, eris.Wrap(err, "ai: openai chat completion")
		}
		var out openaiChatResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, eris.Wrap(err, "ai: decode openai response")
		}
		if len(out.Choices) == 0 {
			return nil, eris.New("ai: openai response has no choices")
		}
		return &Response{
			Text:         out.Choices[0].Message.Content,
			Model:        out.Model,
			InputTokens:  out.Usage.PromptTokens,
			OutputTokens: out.Usage.CompletionTokens,
		}, nil
	})
}
