// Package classify assigns an AI-produced intelligence profile to each
// message: industry, size, intent, product, and partner/renewal flags.
// Results are classified once per sender domain and copied to every
// message from that domain, with user overrides layered on top.
package classify

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gemsieve/internal/config"
	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/store"
	"github.com/sells-group/gemsieve/pkg/ai"
)

// sampleSize is how many recent messages per domain feed the prompt
// context.
const sampleSize = 3

// Classifier is the AI classification stage.
type Classifier struct {
	db       store.Store
	provider ai.Provider
	cfg      config.AIConfig
	log      *zap.Logger

	// Retrain appends recent override corrections to every prompt as
	// few-shot guidance.
	Retrain bool
}

// NewClassifier builds the stage.
func NewClassifier(db store.Store, provider ai.Provider, cfg config.AIConfig) *Classifier {
	if cfg.MaxBodyChars <= 0 {
		cfg.MaxBodyChars = 2000
	}
	return &Classifier{
		db:       db,
		provider: provider,
		cfg:      cfg,
		log:      zap.L().Named("classify"),
	}
}

// Run classifies every message without an ai_classification row. Messages
// are grouped by sender domain and each domain is classified once. A
// failed domain is skipped and left for the next run; only storage errors
// abort.
func (c *Classifier) Run(ctx context.Context) (int, error) {
	msgs, err := c.db.ListMessagesMissingClassification(ctx)
	if err != nil {
		return 0, err
	}

	groups, err := c.groupByDomain(ctx, msgs)
	if err != nil {
		return 0, err
	}

	fewShot := ""
	if c.Retrain {
		recent, err := c.db.RecentOverrides(ctx, 10)
		if err != nil {
			return 0, err
		}
		fewShot = correctionsBlock(recent)
	}

	domains := make([]string, 0, len(groups))
	for d := range groups {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	classified, failed := 0, 0
	for _, domain := range domains {
		if err := ctx.Err(); err != nil {
			return classified, err
		}
		n, err := c.classifyDomain(ctx, domain, groups[domain], fewShot)
		classified += n
		if err != nil {
			if ctx.Err() != nil {
				return classified, ctx.Err()
			}
			failed++
			c.log.Warn("classification failed for sender",
				zap.String("domain", domain), zap.Error(err))
		}
	}

	c.log.Info("classification complete",
		zap.Int("messages", classified),
		zap.Int("domains", len(domains)),
		zap.Int("failed_domains", failed))
	return classified, nil
}

// groupByDomain buckets pending messages by their metadata sender domain,
// newest first. Messages without metadata are skipped; the metadata stage
// has not reached them yet.
func (c *Classifier) groupByDomain(ctx context.Context, msgs []model.Message) (map[string][]model.Message, error) {
	groups := map[string][]model.Message{}
	for i := range msgs {
		meta, err := c.db.GetMetadata(ctx, msgs[i].MessageID)
		if err != nil {
			return nil, err
		}
		if meta == nil || meta.SenderDomain == "" {
			continue
		}
		groups[meta.SenderDomain] = append(groups[meta.SenderDomain], msgs[i])
	}
	for domain := range groups {
		group := groups[domain]
		sort.Slice(group, func(i, j int) bool { return group[i].Date.After(group[j].Date) })
	}
	return groups, nil
}

func (c *Classifier) classifyDomain(ctx context.Context, domain string, group []model.Message, fewShot string) (int, error) {
	senderOv, err := c.overrideMap(c.db.ListOverridesForSender(ctx, domain))
	if err != nil {
		return 0, err
	}

	base := model.Classification{ModelUsed: c.cfg.ModelSpec()}

	// Skip the AI call entirely when overrides already pin every field.
	if !fullyOverridden(senderOv) {
		result, err := c.callAI(ctx, domain, group, fewShot)
		if err != nil {
			return 0, err
		}
		base = *result
	}
	for field, value := range senderOv {
		applyField(&base, field, value)
	}

	stored := 0
	for i := range group {
		msgOv, err := c.overrideMap(c.db.ListOverridesForMessage(ctx, group[i].MessageID))
		if err != nil {
			return stored, err
		}

		final := base
		for field, value := range msgOv {
			applyField(&final, field, value)
		}
		final.MessageID = group[i].MessageID
		final.HasOverride = len(senderOv) > 0 || len(msgOv) > 0

		if err := c.db.UpsertClassification(ctx, &final); err != nil {
			return stored, err
		}
		stored++
	}
	return stored, nil
}

func (c *Classifier) callAI(ctx context.Context, domain string, group []model.Message, fewShot string) (*model.Classification, error) {
	sample := group
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}

	var ents []model.Entity
	for i := range sample {
		e, err := c.db.ListEntitiesByMessage(ctx, sample[i].MessageID)
		if err != nil {
			return nil, err
		}
		ents = append(ents, e...)
	}

	msg := &sample[0]
	meta, err := c.db.GetMetadata(ctx, msg.MessageID)
	if err != nil {
		return nil, err
	}
	content, err := c.db.GetContent(ctx, msg.MessageID)
	if err != nil {
		return nil, err
	}

	prompt := buildPrompt(msg, meta, content, summarizeEntities(ents), c.cfg.MaxBodyChars) + fewShot

	resp, err := c.provider.Complete(ctx, ai.Request{
		System: systemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "classify: complete for %s", domain)
	}

	raw, err := ai.ExtractJSON(resp.Text)
	if err != nil {
		return nil, eris.Wrapf(err, "classify: no JSON in response for %s", domain)
	}

	var parsed aiResult
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, eris.Wrapf(err, "classify: decode response for %s", domain)
	}

	return &model.Classification{
		Industry:                parsed.Industry,
		CompanySize:             parsed.CompanySize,
		MarketingSophistication: int(parsed.MarketingSophistication),
		SenderIntent:            model.SenderIntent(parsed.SenderIntent),
		ProductType:             parsed.ProductType,
		ProductDescription:      parsed.ProductDescription,
		PainPoints:              parsed.PainPoints,
		TargetAudience:          parsed.TargetAudience,
		PartnerProgramDetected:  parsed.PartnerProgram,
		RenewalSignalDetected:   parsed.RenewalSignal,
		AIConfidence:            parsed.Confidence,
		ModelUsed:               c.cfg.ModelSpec(),
	}, nil
}

// aiResult mirrors the JSON schema the prompt demands. Sophistication is
// float64 because some models emit "7.0".
type aiResult struct {
	Industry                string   `json:"industry"`
	CompanySize             string   `json:"company_size_estimate"`
	MarketingSophistication float64  `json:"marketing_sophistication"`
	SenderIntent            string   `json:"sender_intent"`
	ProductType             string   `json:"product_type"`
	ProductDescription      string   `json:"product_description"`
	PainPoints              []string `json:"pain_points_addressed"`
	TargetAudience          string   `json:"target_audience"`
	PartnerProgram          bool     `json:"partner_program_detected"`
	RenewalSignal           bool     `json:"renewal_signal_detected"`
	Confidence              float64  `json:"confidence"`
}

// overrideMap reduces an override list to field -> corrected value, with
// the most recent row winning.
func (c *Classifier) overrideMap(overrides []model.Override, err error) (map[string]string, error) {
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for _, o := range overrides {
		out[o.FieldName] = o.CorrectedValue
	}
	return out, nil
}

// classifiableFields are the override targets; when all are pinned the AI
// call is skipped.
var classifiableFields = []string{
	"industry", "company_size_estimate", "marketing_sophistication",
	"sender_intent", "product_type", "product_description",
	"target_audience", "partner_program_detected", "renewal_signal_detected",
}

func fullyOverridden(overrides map[string]string) bool {
	for _, f := range classifiableFields {
		if _, ok := overrides[f]; !ok {
			return false
		}
	}
	return true
}

func applyField(cls *model.Classification, field, value string) {
	switch field {
	case "industry":
		cls.Industry = value
	case "company_size_estimate":
		cls.CompanySize = value
	case "marketing_sophistication":
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			cls.MarketingSophistication = n
		}
	case "sender_intent":
		cls.SenderIntent = model.SenderIntent(value)
	case "product_type":
		cls.ProductType = value
	case "product_description":
		cls.ProductDescription = value
	case "pain_points_addressed":
		var pains []string
		if err := json.Unmarshal([]byte(value), &pains); err == nil {
			cls.PainPoints = pains
		} else {
			cls.PainPoints = splitTrim(value)
		}
	case "target_audience":
		cls.TargetAudience = value
	case "partner_program_detected":
		cls.PartnerProgramDetected = parseBool(value)
	case "renewal_signal_detected":
		cls.RenewalSignalDetected = parseBool(value)
	}
}

func parseBool(value string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && b
}

func splitTrim(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
