package engage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gemsieve/internal/config"
	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/store"
	"github.com/sells-group/gemsieve/pkg/ai"
)

type fakeProvider struct {
	calls    int
	prompts  []string
	response string
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "test" }

func (f *fakeProvider) Complete(_ context.Context, req ai.Request) (*ai.Response, error) {
	f.calls++
	f.prompts = append(f.prompts, req.Prompt)
	return &ai.Response{Text: f.response, Model: "test"}, nil
}

const draftResponse = `{
  "subject_line": "Quick note on your email funnel",
  "body": "Hi Jane, I noticed a gap in your nurture sequence."
}`

func newTestStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() })
	return db
}

func testEngagement() config.EngagementConfig {
	return config.EngagementConfig{
		YourName:          "Alex",
		YourService:       "email marketing consulting",
		YourTone:          "direct",
		YourAudience:      "b2b founders",
		MaxOutreachPerDay: 20,
	}
}

func seedProfile(t *testing.T, db *store.DB, domain string) {
	t.Helper()
	require.NoError(t, db.UpsertProfile(context.Background(), &model.SenderProfile{
		SenderDomain:  domain,
		CompanyName:   "Acme",
		Industry:      "SaaS",
		CompanySize:   "small",
		KnownContacts: []model.Contact{{Name: "Jane", Role: "VP Marketing"}},
		CTATextsAll:   []string{"Book a demo"},
		TotalMessages: 12,
	}))
}

func seedGem(t *testing.T, db *store.DB, domain string, gt model.GemType, score int) int64 {
	t.Helper()
	id, err := db.UpsertGem(context.Background(), &model.Gem{
		GemType:      gt,
		SenderDomain: domain,
		ThreadID:     "t-" + string(gt),
		Score:        score,
		Explanation: model.GemExplanation{
			GemType: gt,
			Summary: "Test opportunity",
		},
	})
	require.NoError(t, err)
	return id
}

func TestRunGeneratesDraft(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	seedProfile(t, db, "acme.com")
	gemID := seedGem(t, db, "acme.com", model.GemWeakMarketingLead, 70)

	provider := &fakeProvider{response: draftResponse}
	g := NewGenerator(db, provider, testEngagement())

	n, err := g.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	drafts, err := db.ListDrafts(ctx, gemID)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, model.StrategyAudit, drafts[0].Strategy)
	assert.Equal(t, "email reply or cold email", drafts[0].Channel)
	assert.Equal(t, "Quick note on your email funnel", drafts[0].SubjectLine)
	assert.Equal(t, "<p>Hi Jane, I noticed a gap in your nurture sequence.</p>", drafts[0].BodyHTML)
	assert.Equal(t, model.DraftStatusDraft, drafts[0].Status)

	require.Len(t, provider.prompts, 1)
	prompt := provider.prompts[0]
	assert.Contains(t, prompt, "Audited Your Funnel")
	assert.Contains(t, prompt, "Company: Acme")
	assert.Contains(t, prompt, "Contact: Jane, VP Marketing")
	assert.Contains(t, prompt, "Their CTA: Book a demo")
	assert.Contains(t, prompt, "MY SERVICES: email marketing consulting")
}

func TestRunStrategyFilter(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	seedProfile(t, db, "acme.com")
	seedGem(t, db, "acme.com", model.GemWeakMarketingLead, 70)
	partnerID := seedGem(t, db, "acme.com", model.GemPartnerProgram, 50)

	provider := &fakeProvider{response: draftResponse}
	g := NewGenerator(db, provider, testEngagement())

	n, err := g.Run(ctx, Options{Strategy: model.StrategyPartner})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, provider.calls)

	drafts, err := db.ListDrafts(ctx, partnerID)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, model.StrategyPartner, drafts[0].Strategy)
	assert.Contains(t, provider.prompts[0], "partner program application")
}

func TestRunPreferredStrategies(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	seedProfile(t, db, "acme.com")
	seedGem(t, db, "acme.com", model.GemWeakMarketingLead, 70)
	seedGem(t, db, "acme.com", model.GemPartnerProgram, 50)

	cfg := testEngagement()
	cfg.PreferredStrategies = []string{model.StrategyPartner}
	provider := &fakeProvider{response: draftResponse}

	n, err := NewGenerator(db, provider, cfg).Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, provider.prompts[0], "partner program application")
}

func TestRunTopN(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	seedProfile(t, db, "a.com")
	seedProfile(t, db, "b.com")
	seedProfile(t, db, "c.com")
	seedGem(t, db, "a.com", model.GemWeakMarketingLead, 90)
	seedGem(t, db, "b.com", model.GemWeakMarketingLead, 80)
	seedGem(t, db, "c.com", model.GemWeakMarketingLead, 70)

	provider := &fakeProvider{response: draftResponse}
	g := NewGenerator(db, provider, testEngagement())

	n, err := g.Run(ctx, Options{TopN: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, provider.calls)
}

func TestRunDailyCap(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	for _, domain := range []string{"a.com", "b.com", "c.com"} {
		seedProfile(t, db, domain)
		seedGem(t, db, domain, model.GemWeakMarketingLead, 70)
	}

	cfg := testEngagement()
	cfg.MaxOutreachPerDay = 2
	provider := &fakeProvider{response: draftResponse}

	n, err := NewGenerator(db, provider, cfg).Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, provider.calls)
}

func TestRunExplicitGemBypassesCap(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	seedProfile(t, db, "acme.com")
	gemID := seedGem(t, db, "acme.com", model.GemWeakMarketingLead, 70)

	// A draft already generated today exhausts a cap of one.
	_, err := db.InsertDraft(ctx, &model.Draft{
		GemID: gemID, SenderDomain: "acme.com",
		Strategy: model.StrategyAudit, Channel: "email",
	})
	require.NoError(t, err)

	cfg := testEngagement()
	cfg.MaxOutreachPerDay = 1
	provider := &fakeProvider{response: draftResponse}

	n, err := NewGenerator(db, provider, cfg).Run(ctx, Options{GemID: gemID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	drafts, err := db.ListDrafts(ctx, gemID)
	require.NoError(t, err)
	assert.Len(t, drafts, 2)
}

func TestRunRevivalThreadContext(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	seedProfile(t, db, "acme.com")
	require.NoError(t, db.UpsertThread(ctx, &model.Thread{
		ThreadID:    "t-dormant_warm_thread",
		Subject:     "Pricing discussion",
		DaysDormant: 45,
	}))
	seedGem(t, db, "acme.com", model.GemDormantWarmThread, 85)

	provider := &fakeProvider{response: draftResponse}
	g := NewGenerator(db, provider, testEngagement())

	n, err := g.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	prompt := provider.prompts[0]
	assert.Contains(t, prompt, "thread revival")
	assert.Contains(t, prompt, "Subject: Pricing discussion")
	assert.Contains(t, prompt, "Dormancy: 45 days")
}

func TestRunSkipsUnparsableResponse(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	seedProfile(t, db, "acme.com")
	gemID := seedGem(t, db, "acme.com", model.GemWeakMarketingLead, 70)

	provider := &fakeProvider{response: "I cannot help with that."}
	g := NewGenerator(db, provider, testEngagement())

	n, err := g.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Zero(t, n)

	drafts, err := db.ListDrafts(ctx, gemID)
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestRunGemNotFound(t *testing.T) {
	db := newTestStore(t)
	g := NewGenerator(db, &fakeProvider{response: draftResponse}, testEngagement())

	_, err := g.Run(context.Background(), Options{GemID: 999})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "not found"))
}

func TestBodyHTML(t *testing.T) {
	assert.Equal(t,
		"<p>Hi Jane,</p><p>Line one<br>line two.</p>",
		bodyHTML("Hi Jane,\n\nLine one\nline two."))
	assert.Equal(t,
		"<p>A &lt;b&gt;bold&lt;/b&gt; claim &amp; more.</p>",
		bodyHTML("A <b>bold</b> claim & more."))
	assert.Empty(t, bodyHTML("  \n "))
}
