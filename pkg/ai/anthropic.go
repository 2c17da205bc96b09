package ai

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/gemsieve/pkg/anthropic"
)

const defaultAnthropicModel = "claude-haiku-4-5-20251001"

type anthropicProvider struct {
	client  anthropic.Client
	model   string
	limiter *rate.Limiter
}

func newAnthropic(opts Options, model string) *anthropicProvider {
	if model == "" {
		model = defaultAnthropicModel
	}
	return &anthropicProvider{
		client:  anthropic.NewClient(opts.AnthropicAPIKey),
		model:   model,
		limiter: newLimiter(opts.RequestsPerSecond),
	}
}

func (p *anthropicProvider) Name() string  { return "anthropic" }
func (p *anthropicProvider) Model() string { return p.model }

func (p *anthropicProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := waitLimiter(ctx, p.limiter); err != nil {
		return nil, err
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	mreq := anthropic.MessageRequest{
		Model:       p.model,
		MaxTokens:   maxTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
	}
	if req.System != "" {
		mreq.System = anthropic.BuildCachedSystemBlocks(req.System)
	}

	resp, err := p.client.CreateMessage(ctx, mreq)
	if err != nil {
		return nil, eris.Wrap(err, "ai: anthropic complete")
	}
	return &Response{
		Text:         resp.Text(),
		Model:        resp.Model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}
