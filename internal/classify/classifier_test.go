package classify

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

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

const saasResponse = `{
  "industry": "SaaS",
  "company_size_estimate": "medium",
  "marketing_sophistication": 7,
  "sender_intent": "nurture_sequence",
  "product_type": "SaaS subscription",
  "product_description": "Email marketing platform.",
  "pain_points_addressed": ["low open rates"],
  "target_audience": "marketing teams",
  "partner_program_detected": true,
  "renewal_signal_detected": false,
  "confidence": 0.9
}`

func testConfig() config.AIConfig {
	return config.AIConfig{Provider: "ollama", Model: "test", MaxBodyChars: 2000}
}

func newTestStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() })
	return db
}

func seedMessage(t *testing.T, db *store.DB, id, domain string, date time.Time) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.UpsertMessage(ctx, &model.Message{
		MessageID:   id,
		ThreadID:    "t-" + id,
		Date:        date,
		FromAddress: "news@" + domain,
		FromName:    "News",
		Subject:     "Weekly update",
	}))
	require.NoError(t, db.UpsertMetadata(ctx, &model.Metadata{
		MessageID:    id,
		SenderDomain: domain,
	}))
	require.NoError(t, db.UpsertContent(ctx, &model.Content{
		MessageID: id,
		BodyClean: "Our platform improves open rates.",
		CTATexts:  []string{"See pricing"},
	}))
}

func TestRunClassifiesOncePerDomain(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	seedMessage(t, db, "m1", "acme.com", base)
	seedMessage(t, db, "m2", "acme.com", base.Add(time.Hour))
	seedMessage(t, db, "m3", "widgets.io", base)

	provider := &fakeProvider{response: saasResponse}
	c := NewClassifier(db, provider, testConfig())

	n, err := c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, provider.calls)

	cls, err := db.GetClassification(ctx, "m2")
	require.NoError(t, err)
	require.NotNil(t, cls)
	assert.Equal(t, "SaaS", cls.Industry)
	assert.Equal(t, "medium", cls.CompanySize)
	assert.Equal(t, 7, cls.MarketingSophistication)
	assert.Equal(t, model.IntentNurtureSequence, cls.SenderIntent)
	assert.True(t, cls.PartnerProgramDetected)
	assert.False(t, cls.HasOverride)
	assert.Equal(t, "ollama:test", cls.ModelUsed)

	// Everything classified; a second run is a no-op.
	n, err = c.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, provider.calls)
}

func TestSenderOverridePrefill(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	seedMessage(t, db, "m1", "acme.com", time.Now().UTC())

	_, err := db.InsertOverride(ctx, &model.Override{
		SenderDomain:   "acme.com",
		FieldName:      "industry",
		CorrectedValue: "Agency",
		Scope:          model.ScopeSender,
	})
	require.NoError(t, err)

	c := NewClassifier(db, &fakeProvider{response: saasResponse}, testConfig())
	_, err = c.Run(ctx)
	require.NoError(t, err)

	cls, err := db.GetClassification(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Agency", cls.Industry)
	assert.True(t, cls.HasOverride)
}

func TestMessageOverrideOutranksSender(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	seedMessage(t, db, "m1", "acme.com", base)
	seedMessage(t, db, "m2", "acme.com", base.Add(time.Hour))

	_, err := db.InsertOverride(ctx, &model.Override{
		SenderDomain:   "acme.com",
		FieldName:      "industry",
		CorrectedValue: "Agency",
		Scope:          model.ScopeSender,
	})
	require.NoError(t, err)
	_, err = db.InsertOverride(ctx, &model.Override{
		MessageID:      "m1",
		FieldName:      "industry",
		CorrectedValue: "Media",
		Scope:          model.ScopeMessage,
	})
	require.NoError(t, err)

	c := NewClassifier(db, &fakeProvider{response: saasResponse}, testConfig())
	_, err = c.Run(ctx)
	require.NoError(t, err)

	m1, err := db.GetClassification(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Media", m1.Industry)

	m2, err := db.GetClassification(ctx, "m2")
	require.NoError(t, err)
	assert.Equal(t, "Agency", m2.Industry)
}

func TestFullyOverriddenSkipsAICall(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	seedMessage(t, db, "m1", "acme.com", time.Now().UTC())

	values := map[string]string{
		"industry":                 "Agency",
		"company_size_estimate":    "small",
		"marketing_sophistication": "4",
		"sender_intent":            "newsletter",
		"product_type":             "Professional service",
		"product_description":      "Design studio.",
		"target_audience":          "startups",
		"partner_program_detected": "false",
		"renewal_signal_detected":  "false",
	}
	for field, value := range values {
		_, err := db.InsertOverride(ctx, &model.Override{
			SenderDomain:   "acme.com",
			FieldName:      field,
			CorrectedValue: value,
			Scope:          model.ScopeSender,
		})
		require.NoError(t, err)
	}

	provider := &fakeProvider{response: saasResponse}
	c := NewClassifier(db, provider, testConfig())
	n, err := c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, provider.calls)

	cls, err := db.GetClassification(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Agency", cls.Industry)
	assert.Equal(t, 4, cls.MarketingSophistication)
	assert.Equal(t, model.IntentNewsletter, cls.SenderIntent)
	assert.True(t, cls.HasOverride)
}

func TestRetrainAppendsCorrections(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	seedMessage(t, db, "m1", "acme.com", time.Now().UTC())

	_, err := db.InsertOverride(ctx, &model.Override{
		SenderDomain:   "other.com",
		FieldName:      "industry",
		OriginalValue:  "SaaS",
		CorrectedValue: "Nonprofit",
		Scope:          model.ScopeSender,
	})
	require.NoError(t, err)

	provider := &fakeProvider{response: saasResponse}
	c := NewClassifier(db, provider, testConfig())
	c.Retrain = true
	_, err = c.Run(ctx)
	require.NoError(t, err)

	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], "Previous classification corrections")
	assert.Contains(t, provider.prompts[0], "other.com / industry")
}

func TestInvalidJSONSkipsDomain(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	seedMessage(t, db, "m1", "acme.com", time.Now().UTC())

	c := NewClassifier(db, &fakeProvider{response: "I cannot help with that."}, testConfig())
	n, err := c.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	cls, err := db.GetClassification(ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, cls)
}

func TestBuildPromptTruncatesBody(t *testing.T) {
	long := make([]byte, 3000)
	for i := range long {
		long[i] = 'a'
	}
	msg := &model.Message{FromName: "Jane", FromAddress: "jane@acme.com", Subject: "Hi"}
	content := &model.Content{BodyClean: string(long)}
	prompt := buildPrompt(msg, &model.Metadata{}, content, "None", 2000)
	assert.Contains(t, prompt, strings.Repeat("a", 2000))
	assert.NotContains(t, prompt, strings.Repeat("a", 2001))
	assert.Contains(t, prompt, "ESP: unknown")
}

func TestSummarizeEntities(t *testing.T) {
	assert.Equal(t, "None", summarizeEntities(nil))

	ents := []model.Entity{
		{Type: model.EntityMoney, Value: "$500", Confidence: 0.85},
		{Type: model.EntityPerson, Value: "Jane Smith", Confidence: 1.0},
	}
	s := summarizeEntities(ents)
	assert.Equal(t, "person: Jane Smith; money: $500", s)
}
