// Package engage turns gems into engagement drafts. Each gem type routes
// to one of seven strategies, each with its own prompt template; the AI
// response is stored as an engagement_drafts row for the user to review
// and send by hand.
package engage

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gemsieve/internal/config"
	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/store"
	"github.com/sells-group/gemsieve/pkg/ai"
)

// defaultDailyCap applies when max_outreach_per_day is unset.
const defaultDailyCap = 20

// Options narrows which gems get drafts.
type Options struct {
	// GemID targets one gem, bypassing the daily cap and strategy
	// filters.
	GemID int64

	// Strategy keeps only gems whose type routes to this strategy.
	Strategy string

	// TopN keeps only the N highest-scoring gems after filtering.
	TopN int
}

// Generator is the engagement drafting stage.
type Generator struct {
	db       store.Store
	provider ai.Provider
	cfg      config.EngagementConfig
	log      *zap.Logger
	now      func() time.Time
}

func NewGenerator(db store.Store, provider ai.Provider, cfg config.EngagementConfig) *Generator {
	if cfg.MaxOutreachPerDay <= 0 {
		cfg.MaxOutreachPerDay = defaultDailyCap
	}
	return &Generator{
		db:       db,
		provider: provider,
		cfg:      cfg,
		log:      zap.L().Named("engage"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run generates drafts for the selected gems. Returns the number of
// drafts inserted. A failed AI call or unparsable response skips that
// gem; only storage errors and cancellation abort.
func (g *Generator) Run(ctx context.Context, opts Options) (int, error) {
	gems, err := g.selectGems(ctx, opts)
	if err != nil {
		return 0, err
	}

	generated, failed := 0, 0
	for i := range gems {
		if err := ctx.Err(); err != nil {
			return generated, err
		}

		// The daily cap is re-checked per draft so a partially filled
		// day still honors the limit. An explicit gem id bypasses it.
		if opts.GemID == 0 {
			capped, err := g.capReached(ctx)
			if err != nil {
				return generated, err
			}
			if capped {
				g.log.Info("daily outreach cap reached",
					zap.Int("max_per_day", g.cfg.MaxOutreachPerDay))
				break
			}
		}

		if err := g.draftGem(ctx, &gems[i]); err != nil {
			if ctx.Err() != nil {
				return generated, ctx.Err()
			}
			if eris.Is(err, errStore) {
				return generated, err
			}
			failed++
			g.log.Warn("draft generation failed",
				zap.Int64("gem_id", gems[i].ID),
				zap.String("gem_type", string(gems[i].GemType)),
				zap.Error(err))
			continue
		}
		generated++
	}

	g.log.Info("engagement drafts generated",
		zap.Int("drafts", generated), zap.Int("failed", failed))
	return generated, nil
}

// errStore marks failures that must abort the run rather than skip the
// gem.
var errStore = eris.New("engage: storage failure")

func (g *Generator) selectGems(ctx context.Context, opts Options) ([]model.Gem, error) {
	if opts.GemID > 0 {
		gem, err := g.db.GetGem(ctx, opts.GemID)
		if err != nil {
			return nil, err
		}
		if gem == nil {
			return nil, eris.Errorf("engage: gem %d not found", opts.GemID)
		}
		return []model.Gem{*gem}, nil
	}

	gems, err := g.db.ListGems(ctx, store.GemFilter{Status: model.GemStatusNew})
	if err != nil {
		return nil, err
	}

	preferred := map[string]bool{}
	for _, s := range g.cfg.PreferredStrategies {
		preferred[s] = true
	}

	var out []model.Gem
	for _, gem := range gems {
		strategy := StrategyFor(gem.GemType)
		if opts.Strategy != "" && strategy != opts.Strategy {
			continue
		}
		if len(preferred) > 0 && !preferred[strategy] {
			continue
		}
		out = append(out, gem)
	}

	// ListGems already orders by score descending.
	if opts.TopN > 0 && len(out) > opts.TopN {
		out = out[:opts.TopN]
	}
	return out, nil
}

func (g *Generator) capReached(ctx context.Context) (bool, error) {
	now := g.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	n, err := g.db.CountDraftsSince(ctx, midnight.Format(time.RFC3339))
	if err != nil {
		return false, eris.Wrap(errStore, err.Error())
	}
	return n >= g.cfg.MaxOutreachPerDay, nil
}

// draftResult tolerates the schema drift smaller models produce.
type draftResult struct {
	SubjectLine string `json:"subject_line"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	BodyText    string `json:"body_text"`
	Message     string `json:"message"`
}

func (r draftResult) subject() string {
	if r.SubjectLine != "" {
		return r.SubjectLine
	}
	return r.Subject
}

func (r draftResult) body() string {
	switch {
	case r.Body != "":
		return r.Body
	case r.BodyText != "":
		return r.BodyText
	}
	return r.Message
}

func (g *Generator) draftGem(ctx context.Context, gem *model.Gem) error {
	profile, err := g.db.GetProfile(ctx, gem.SenderDomain)
	if err != nil {
		return eris.Wrap(errStore, err.Error())
	}
	if profile == nil {
		return eris.Errorf("engage: no profile for %s", gem.SenderDomain)
	}

	strategy := StrategyFor(gem.GemType)
	pc, err := g.buildContext(ctx, strategy, gem, profile)
	if err != nil {
		return err
	}

	prompt, err := renderPrompt(strategy, pc)
	if err != nil {
		return eris.Wrapf(err, "engage: render %s prompt", strategy)
	}

	resp, err := g.provider.Complete(ctx, ai.Request{
		System: systemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		return eris.Wrapf(err, "engage: complete for gem %d", gem.ID)
	}

	raw, err := ai.ExtractJSON(resp.Text)
	if err != nil {
		return eris.Wrapf(err, "engage: no JSON in response for gem %d", gem.ID)
	}
	var result draftResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return eris.Wrapf(err, "engage: decode response for gem %d", gem.ID)
	}

	_, err = g.db.InsertDraft(ctx, &model.Draft{
		GemID:        gem.ID,
		SenderDomain: gem.SenderDomain,
		Strategy:     strategy,
		Channel:      ChannelFor(strategy),
		SubjectLine:  result.subject(),
		BodyText:     result.body(),
		BodyHTML:     bodyHTML(result.body()),
		Status:       model.DraftStatusDraft,
		GeneratedAt:  g.now(),
	})
	if err != nil {
		return eris.Wrap(errStore, err.Error())
	}
	return nil
}

func (g *Generator) buildContext(ctx context.Context, strategy string, gem *model.Gem, p *model.SenderProfile) (*promptContext, error) {
	explanation, err := json.MarshalIndent(gem.Explanation, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "engage: encode explanation")
	}

	pc := &promptContext{
		Strategy:           strategy,
		GemType:            string(gem.GemType),
		GemExplanationJSON: string(explanation),
		CompanyName:        orDefault(p.CompanyName, p.SenderDomain),
		Industry:           orDefault(p.Industry, "Unknown"),
		CompanySize:        orDefault(p.CompanySize, "Unknown"),
		ESPUsed:            orDefault(p.ESPUsed, "Unknown"),
		Sophistication:     p.SophisticationAvg,
		ProductDescription: orDefault(p.ProductDescription, "Unknown"),
		PainPoints:         jsonList(p.PainPoints),
		Observation:        observation(p, gem),
		RelationshipNote:   relationshipNote(p),
		YourService:        orDefault(g.cfg.YourService, "consulting services"),
		YourTone:           orDefault(g.cfg.YourTone, "professional"),
		YourAudience:       g.cfg.YourAudience,
	}
	if c := p.BestContact(); c != nil {
		pc.ContactName = c.Name
		pc.ContactRole = c.Role
	}

	switch strategy {
	case model.StrategyRevival:
		if gem.ThreadID != "" {
			thread, err := g.db.GetThread(ctx, gem.ThreadID)
			if err != nil {
				return nil, eris.Wrap(errStore, err.Error())
			}
			if thread != nil {
				pc.ThreadSubject = thread.Subject
				pc.DormancyDays = thread.DaysDormant
			}
		}
	case model.StrategyRenewal:
		pc.RenewalDates = jsonList(p.RenewalDates)
		pc.MonetarySignals = jsonList(p.MonetarySignals)
	case model.StrategyPartner:
		pc.PartnerURLs = jsonList(p.PartnerProgramURLs)
	case model.StrategyDistribution:
		pc.TargetAudience = p.TargetAudience
	}
	return pc, nil
}

// observation derives the one-liner hook: a real CTA from their emails,
// or their dominant offer types, or the gem summary.
func observation(p *model.SenderProfile, gem *model.Gem) string {
	if len(p.CTATextsAll) > 0 {
		return "Their CTA: " + strings.TrimSpace(p.CTATextsAll[0])
	}
	if offers := topOffers(p.OfferTypeDistribution, 3); len(offers) > 0 {
		return "They mostly send: " + strings.Join(offers, ", ")
	}
	return gem.Explanation.Summary
}

func topOffers(dist map[string]int, n int) []string {
	offers := make([]string, 0, len(dist))
	for offer := range dist {
		offers = append(offers, offer)
	}
	sort.Slice(offers, func(i, j int) bool {
		if dist[offers[i]] != dist[offers[j]] {
			return dist[offers[i]] > dist[offers[j]]
		}
		return offers[i] < offers[j]
	})
	if len(offers) > n {
		offers = offers[:n]
	}
	return offers
}

func relationshipNote(p *model.SenderProfile) string {
	if p.TotalMessages == 1 {
		return "1 message over time"
	}
	return fmt.Sprintf("%d messages over time", p.TotalMessages)
}

// bodyHTML renders the draft body as minimal HTML for clients that
// paste rich text: blank lines break paragraphs, single newlines become
// <br>, everything else is escaped.
func bodyHTML(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	var b strings.Builder
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}

func jsonList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
