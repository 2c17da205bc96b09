// Package ai abstracts the chat-completion providers used for sender
// classification and engagement drafting: a local Ollama server, the OpenAI
// API (or any compatible endpoint), and Anthropic.
package ai

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
)

// Request is a single-turn completion request.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float64
}

// Response is a completed generation.
type Response struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Provider generates completions. Implementations are safe for concurrent
// use.
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Options carries the provider credentials and tuning knobs from config.
type Options struct {
	// Spec selects the provider, either "ollama", "openai", "anthropic",
	// or "provider:model" to pin a model.
	Spec string

	// Model is the model to use when Spec carries no ":model" suffix.
	Model string

	OllamaBaseURL   string
	OllamaAPIKey    string
	OpenAIBaseURL   string
	OpenAIAPIKey    string
	AnthropicAPIKey string

	// TimeoutSecs bounds each HTTP call. Zero means 120s.
	TimeoutSecs int

	// RequestsPerSecond throttles calls to the provider. Zero disables
	// throttling.
	RequestsPerSecond float64
}

// New builds the provider named by opts.Spec.
func New(opts Options) (Provider, error) {
	name, model := splitSpec(opts.Spec)
	if model == "" {
		model = opts.Model
	}
	switch name {
	case "", "ollama":
		return newOllama(opts, model), nil
	case "openai":
		if opts.OpenAIAPIKey == "" {
			return nil, eris.New("ai: openai provider requires an API key")
		}
		return newOpenAI(opts, model), nil
	case "anthropic":
		if opts.AnthropicAPIKey == "" {
			return nil, eris.New("ai: anthropic provider requires an API key")
		}
		return newAnthropic(opts, model), nil
	}
	return nil, eris.Errorf("ai: unknown provider %q", name)
}

func splitSpec(spec string) (provider, model string) {
	if i := strings.IndexByte(spec, ':'); i >= 0 {
		return spec[:i], spec[i+1:]
	}
	return spec, ""
}
