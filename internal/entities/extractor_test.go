package entities

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gemsieve/internal/config"
	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/store"
)

func fullConfig() config.EntityConfig {
	return config.EntityConfig{
		ExtractMonetary:    true,
		ExtractDates:       true,
		ExtractProcurement: true,
	}
}

func newTestStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() })
	return db
}

func findByType(ents []model.Entity, et model.EntityType) []model.Entity {
	var out []model.Entity
	for _, e := range ents {
		if e.Type == et {
			out = append(out, e)
		}
	}
	return out
}

func TestExtractSenderEntity(t *testing.T) {
	e := NewExtractor(nil, nil, fullConfig())
	msg := &model.Message{
		MessageID:   "m1",
		FromAddress: "jane@acme.com",
		FromName:    "Jane Smith",
	}
	c := &model.Content{
		MessageID:      "m1",
		BodyClean:      "Quick question about your platform.",
		SignatureBlock: "Jane Smith\nVP of Marketing\nAcme Inc",
	}

	ents := e.Extract(context.Background(), msg, c)

	people := findByType(ents, model.EntityPerson)
	require.NotEmpty(t, people)
	sender := people[0]
	assert.Equal(t, "Jane Smith", sender.Value)
	assert.Equal(t, "jane smith", sender.Normalized)
	assert.Equal(t, 1.0, sender.Confidence)
	assert.Equal(t, model.SourceHeader, sender.Source)
	assert.Contains(t, sender.Context, "jane@acme.com")
	assert.Contains(t, sender.Context, "decision_maker")

	roles := findByType(ents, model.EntityRole)
	require.Len(t, roles, 1)
	assert.Equal(t, "vp of marketing", roles[0].Normalized)
	assert.Equal(t, "Role: VP of Marketing", roles[0].Context)
}

func TestExtractCCEntities(t *testing.T) {
	e := NewExtractor(nil, nil, fullConfig())
	msg := &model.Message{
		MessageID:   "m2",
		FromAddress: "noreply@vendor.com",
		CCAddresses: []string{"bob@acme.com", "billing@vendor.com"},
	}
	ents := e.Extract(context.Background(), msg, &model.Content{MessageID: "m2"})

	people := findByType(ents, model.EntityPerson)
	require.Len(t, people, 3)

	assert.Contains(t, people[0].Context, "automated")

	assert.Equal(t, "bob", people[1].Value)
	assert.Equal(t, 0.6, people[1].Confidence)
	assert.Contains(t, people[1].Context, "peer")
	assert.Contains(t, people[2].Context, "vendor_contact")
}

func TestClassifyPersonRelationship(t *testing.T) {
	cases := []struct {
		addr, role, want string
	}{
		{"jane@acme.com", "VP of Marketing", "decision_maker"},
		{"jane@acme.com", "Head of Growth", "decision_maker"},
		{"noreply@acme.com", "", "automated"},
		{"mailer-daemon@mail.acme.com", "", "automated"},
		{"sales@acme.com", "", "vendor_contact"},
		{"success@acme.com", "", "vendor_contact"},
		{"jane@acme.com", "", "peer"},
		{"jane@acme.com", "Marketing Analyst", "peer"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, classifyPersonRelationship(tc.addr, tc.role),
			"addr=%s role=%s", tc.addr, tc.role)
	}
}

func TestExtractMonetary(t *testing.T) {
	ents := extractMonetary("The plan costs $1,200.00 per year. We do 40k ARR and offer 20% commission.")
	require.Len(t, ents, 3)

	assert.Equal(t, "$1,200.00", ents[0].Value)
	assert.Equal(t, "1200.00", ents[0].Normalized)
	assert.Equal(t, "USD amount", ents[0].Context)
	assert.Equal(t, 0.85, ents[0].Confidence)

	assert.Equal(t, "SaaS metric", ents[1].Context)
	assert.Equal(t, "percentage offer", ents[2].Context)
}

func TestExtractDatesNormalization(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	ents := extractDates(
		"Your renewal is scheduled for July 15, 2026. The old contract expired on 1/10/2020.", now)
	require.Len(t, ents, 2)

	assert.Equal(t, "July 15, 2026", ents[0].Value)
	assert.Equal(t, "renewal:future", ents[0].Normalized)
	assert.Equal(t, 0.8, ents[0].Confidence)

	assert.Equal(t, "expiration:past", ents[1].Normalized)
}

func TestExtractDatesUnparseable(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	ents := extractDates("The deadline is 99/99/99.", now)
	require.Len(t, ents, 1)
	assert.Equal(t, "deadline", ents[0].Normalized)
}

func TestExtractProcurement(t *testing.T) {
	ents := extractProcurement(
		"We are evaluating solutions this quarter and will need your SOC 2 report plus a signed data processing agreement.")
	require.Len(t, ents, 3)

	byBand := map[string]model.Entity{}
	for _, e := range ents {
		byBand[e.Normalized] = e
	}
	assert.Contains(t, byBand, "active_buying")
	assert.Contains(t, byBand, "contract_activity")
	assert.Contains(t, byBand, "security_review")
	assert.Equal(t, 0.75, byBand["security_review"].Confidence)
	assert.Contains(t, byBand["active_buying"].Context, "evaluating solutions")
}

func TestProcurementWordBoundaries(t *testing.T) {
	assert.Empty(t, extractProcurement("We visited the island of Krk. The sowing season starts soon."))
	assert.Len(t, extractProcurement("Please review the SLA before Friday."), 1)
}

func TestExtractPhonesAndURLs(t *testing.T) {
	ents := extractPhones("Call me at (415) 555-0134 or +1 415-555-0134.")
	require.Len(t, ents, 1)
	assert.Equal(t, "4155550134", ents[0].Normalized)

	urls := extractURLs("See https://acme.com/pricing. Also https://acme.com/pricing again.")
	require.Len(t, urls, 1)
	assert.Equal(t, "https://acme.com/pricing", urls[0].Value)
}

func TestConfigTogglesDisableBranches(t *testing.T) {
	e := NewExtractor(nil, nil, config.EntityConfig{})
	msg := &model.Message{MessageID: "m3", FromAddress: "jane@acme.com"}
	c := &model.Content{
		MessageID: "m3",
		BodyClean: "Costs $500. Renewal July 15, 2026. We need your SOC 2 report.",
	}

	ents := e.Extract(context.Background(), msg, c)
	assert.Empty(t, findByType(ents, model.EntityMoney))
	assert.Empty(t, findByType(ents, model.EntityDate))
	assert.Empty(t, findByType(ents, model.EntityProcurement))
}

func TestNEREntities(t *testing.T) {
	tagger := TaggerFunc(func(_ context.Context, text string) ([]Span, error) {
		if text == "Jane Smith\nAcme Inc" {
			return []Span{
				{Text: "Jane Smith", Label: "PERSON"},
				{Text: "Acme Inc", Label: "ORG"},
			}, nil
		}
		return []Span{
			{Text: "Stripe", Label: "ORG", Confidence: 0.95},
			{Text: "Jane Smith", Label: "PERSON"},
			{Text: "next Tuesday", Label: "DATE"},
			{Text: "verb", Label: "VERB"},
		}, nil
	})

	e := NewExtractor(nil, tagger, fullConfig())
	msg := &model.Message{MessageID: "m4", FromAddress: "jane@acme.com", FromName: "Jane Smith"}
	c := &model.Content{
		MessageID:      "m4",
		BodyClean:      "We moved our payments to Stripe. Jane Smith suggested a call next Tuesday.",
		SignatureBlock: "Jane Smith\nAcme Inc",
	}

	ents := e.Extract(context.Background(), msg, c)

	orgs := findByType(ents, model.EntityOrganization)
	require.Len(t, orgs, 2)
	assert.Equal(t, "Stripe", orgs[0].Value)
	assert.Equal(t, 0.95, orgs[0].Confidence)
	assert.Equal(t, model.SourceNER, orgs[0].Source)
	assert.Contains(t, orgs[0].Context, "Stripe")
	assert.Equal(t, "signature", orgs[1].Context)
	assert.Equal(t, 0.9, orgs[1].Confidence)

	// The body PERSON span dedupes against the signature pass; the header
	// sender entity is separate.
	var nerPeople []model.Entity
	for _, p := range findByType(ents, model.EntityPerson) {
		if p.Source == model.SourceNER {
			nerPeople = append(nerPeople, p)
		}
	}
	require.Len(t, nerPeople, 1)
	assert.Equal(t, 0.8, nerPeople[0].Confidence)

	dates := findByType(ents, model.EntityDate)
	require.NotEmpty(t, dates)
	assert.Equal(t, "next Tuesday", dates[0].Value)
}

func TestNERTaggerFailureFallsBackToRegex(t *testing.T) {
	tagger := TaggerFunc(func(context.Context, string) ([]Span, error) {
		return nil, assert.AnError
	})
	e := NewExtractor(nil, tagger, fullConfig())
	msg := &model.Message{MessageID: "m5", FromAddress: "jane@acme.com"}
	c := &model.Content{MessageID: "m5", BodyClean: "Budget is $5,000."}

	ents := e.Extract(context.Background(), msg, c)
	assert.NotEmpty(t, findByType(ents, model.EntityMoney))
}

func TestHTTPTagger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tag", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"entities":[{"text":"Acme","label":"ORG","confidence":0.91}]}`))
	}))
	defer srv.Close()

	tagger := NewHTTPTagger(config.EntityConfig{TaggerURL: srv.URL, SpacyModel: "en_core_web_sm"})
	require.NotNil(t, tagger)

	spans, err := tagger.Tag(context.Background(), "Acme shipped a release.")
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, "Acme", spans[0].Text)
	assert.Equal(t, "ORG", spans[0].Label)
}

func TestNewHTTPTaggerWithoutURL(t *testing.T) {
	assert.Nil(t, NewHTTPTagger(config.EntityConfig{}))
}

func TestRunStoresEntities(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	msg := &model.Message{
		MessageID:   "m1",
		ThreadID:    "t1",
		Date:        time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		FromAddress: "jane@acme.com",
		FromName:    "Jane Smith",
		BodyText:    "Budget is $5,000.",
	}
	require.NoError(t, db.UpsertMessage(ctx, msg))
	require.NoError(t, db.UpsertContent(ctx, &model.Content{
		MessageID: "m1",
		BodyClean: "Budget is $5,000 for the pilot.",
	}))

	e := NewExtractor(db, nil, fullConfig())
	n, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ents, err := db.ListEntitiesByMessage(ctx, "m1")
	require.NoError(t, err)
	assert.NotEmpty(t, findByType(ents, model.EntityPerson))
	assert.NotEmpty(t, findByType(ents, model.EntityMoney))

	// Second run finds no remaining work.
	n, err = e.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
