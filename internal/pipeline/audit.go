package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/store"
	"github.com/sells-group/gemsieve/pkg/ai"
)

// auditProvider decorates an ai.Provider so every Complete call is
// recorded as an AuditEntry under the current pipeline run. Recording is
// best effort; an audit write failure never fails the provider call.
type auditProvider struct {
	inner ai.Provider
	db    store.Store
	runID string
	stage string
	log   *zap.Logger
}

// withAudit wraps provider with audit recording for one run.
func withAudit(provider ai.Provider, db store.Store, runID, stage string) ai.Provider {
	return &auditProvider{
		inner: provider,
		db:    db,
		runID: runID,
		stage: stage,
		log:   zap.L().Named("pipeline.audit"),
	}
}

func (a *auditProvider) Name() string  { return a.inner.Name() }
func (a *auditProvider) Model() string { return a.inner.Model() }

func (a *auditProvider) Complete(ctx context.Context, req ai.Request) (*ai.Response, error) {
	start := time.Now()
	resp, err := a.inner.Complete(ctx, req)
	duration := time.Since(start).Milliseconds()

	entry := &model.AuditEntry{
		RunID:            a.runID,
		Stage:            a.stage,
		SenderDomain:     senderDomainFrom(req.Prompt),
		PromptTemplateID: templateFor(a.stage),
		PromptRendered:   req.Prompt,
		SystemPrompt:     req.System,
		ModelUsed:        a.inner.Model(),
		DurationMS:       duration,
	}
	if resp != nil {
		entry.ResponseRaw = resp.Text
		if parsed, perr := ai.ExtractJSON(resp.Text); perr == nil {
			entry.ResponseParsed = parsed
		}
	} else if err != nil {
		entry.ResponseRaw = err.Error()
	}

	if _, werr := a.db.InsertAudit(ctx, entry); werr != nil {
		a.log.Warn("audit write failed", zap.String("run", a.runID), zap.Error(werr))
	}
	return resp, err
}

func templateFor(stage string) string {
	switch stage {
	case "classify":
		return "CLASSIFICATION_PROMPT"
	case "engage":
		return "ENGAGEMENT_PROMPT"
	}
	return "unknown"
}

// senderDomainFrom pulls the sender domain out of a rendered prompt by
// finding the SENDER: line, when present.
func senderDomainFrom(prompt string) string {
	for _, line := range strings.Split(prompt, "\n") {
		if !strings.HasPrefix(line, "SENDER:") || !strings.Contains(line, "<") {
			continue
		}
		addr := strings.TrimSpace(strings.TrimSuffix(line[strings.LastIndex(line, "<")+1:], ">"))
		addr = strings.TrimRight(addr, "> ")
		if at := strings.LastIndex(addr, "@"); at >= 0 {
			return addr[at+1:]
		}
		return ""
	}
	return ""
}
