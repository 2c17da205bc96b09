package entities

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gemsieve/internal/config"
	"github.com/sells-group/gemsieve/internal/resilience"
)

// Span is one labeled range returned by the NER tagger.
type Span struct {
	Text       string  `json:"text"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Tagger produces named-entity spans for a block of text.
type Tagger interface {
	Tag(ctx context.Context, text string) ([]Span, error)
}

// TaggerFunc adapts a function to the Tagger interface.
type TaggerFunc func(ctx context.Context, text string) ([]Span, error)

// Tag calls f.
func (f TaggerFunc) Tag(ctx context.Context, text string) ([]Span, error) {
	return f(ctx, text)
}

// HTTPTagger talks to an external NER service (a thin wrapper around a
// spaCy model) at POST {base}/tag.
type HTTPTagger struct {
	baseURL string
	model   string
	http    *http.Client
	retry   resilience.RetryConfig
}

// NewHTTPTagger builds a tagger client from config. Returns nil when no
// tagger URL is configured; the extractor then runs regex-only.
func NewHTTPTagger(cfg config.EntityConfig) *HTTPTagger {
	if cfg.TaggerURL == "" {
		return nil
	}
	return &HTTPTagger{
		baseURL: cfg.TaggerURL,
		model:   cfg.SpacyModel,
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   resilience.RetryConfig{OnRetry: resilience.RetryLogger("tagger", "tag")},
	}
}

type tagRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

type tagResponse struct {
	Entities []Span `json:"entities"`
}

// Tag posts the text and returns the spans.
func (t *HTTPTagger) Tag(ctx context.Context, text string) ([]Span, error) {
	body, err := json.Marshal(tagRequest{Text: text, Model: t.model})
	if err != nil {
		return nil, eris.Wrap(err, "entities: marshal tag request")
	}

	var spans []Span
	err = resilience.Do(ctx, t.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			t.baseURL+"/tag", bytes.NewReader(body))
		if err != nil {
			return eris.Wrap(err, "entities: build tag request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.http.Do(req)
		if err != nil {
			return resilience.NewTransientError(err, 0)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrap(err, "entities: read tag response")
		}
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("tagger returned %d: %s", resp.StatusCode, truncate(string(data), 200))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return resilience.NewTransientError(err, resp.StatusCode)
			}
			return err
		}

		var parsed tagResponse
		if err := json.Unmarshal(data, &parsed); err != nil {
			return eris.Wrap(err, "entities: decode tag response")
		}
		spans = parsed.Entities
		return nil
	})
	if err != nil {
		return nil, err
	}
	return spans, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
