package relationship

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/store"
)

func newTestStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() })
	return db
}

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "entities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func seedProfile(t *testing.T, db *store.DB, p *model.SenderProfile) {
	t.Helper()
	require.NoError(t, db.UpsertProfile(context.Background(), p))
}

func seedInbound(t *testing.T, db *store.DB, id, domain, body string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.UpsertMessage(ctx, &model.Message{
		MessageID:   id,
		ThreadID:    "t-" + id,
		Date:        time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
		FromAddress: "hello@" + domain,
		Subject:     "Hello",
		BodyText:    body,
	}))
	require.NoError(t, db.UpsertMetadata(ctx, &model.Metadata{
		MessageID:    id,
		SenderDomain: domain,
	}))
}

func TestLoadKnownEntities(t *testing.T) {
	path := writeYAML(t, `
infrastructure:
  - stripe.com
  - aws.amazon.com
institutional:
  - intuit.com
`)
	known, err := LoadKnownEntities(path)
	require.NoError(t, err)

	assert.Equal(t, CategoryInfrastructure, known.Match("stripe.com"))
	assert.Equal(t, CategoryInstitutional, known.Match("intuit.com"))
	// Subdomains collapse to the listed root.
	assert.Equal(t, CategoryInstitutional, known.Match("notification.intuit.com"))
	assert.Empty(t, known.Match("acme.com"))
}

func TestLoadKnownEntitiesMissingFile(t *testing.T) {
	known, err := LoadKnownEntities(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, known.Match("stripe.com"))
}

func TestDetectExistingRelationshipWins(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	seedProfile(t, db, &model.SenderProfile{SenderDomain: "acme.com"})
	require.NoError(t, db.UpsertRelationship(ctx, &model.SenderRelationship{
		SenderDomain: "acme.com",
		Type:         model.RelMyVendor,
		Source:       model.RelSourceManual,
	}))

	proposals, err := NewDetector(db, KnownEntities{}).Detect(ctx)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, model.RelMyVendor, proposals[0].Type)
	assert.Equal(t, 1.0, proposals[0].Confidence)
	assert.Equal(t, "existing_classification", proposals[0].Signals[0].Name)
}

func TestDetectKnownEntitySuppressed(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	seedProfile(t, db, &model.SenderProfile{SenderDomain: "intuit.com"})

	known, err := LoadKnownEntities(writeYAML(t, "institutional:\n  - intuit.com\n"))
	require.NoError(t, err)

	d := NewDetector(db, known)
	proposals, err := d.Detect(ctx)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, model.RelInstitutional, proposals[0].Type)
	assert.Equal(t, 0.9, proposals[0].Confidence)

	applied, err := d.Apply(ctx, proposals)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	rel, err := db.GetRelationship(ctx, "intuit.com")
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, model.RelInstitutional, rel.Type)
	assert.True(t, rel.SuppressGems)
	assert.Equal(t, model.RelSourceAutoDetected, rel.Source)
}

func TestDetectInboundProspect(t *testing.T) {
	db := newTestStore(t)
	seedProfile(t, db, &model.SenderProfile{
		SenderDomain:          "startup.io",
		CompanySize:           "small",
		TotalMessages:         2,
		ThreadInitiationRatio: 0,
		UserReplyRate:         0.6,
	})
	seedInbound(t, db, "m1", "startup.io",
		"Saw your talk last week. We're looking for someone to overhaul our onboarding emails.")

	proposals, err := NewDetector(db, KnownEntities{}).Detect(context.Background())
	require.NoError(t, err)
	require.Len(t, proposals, 1)

	p := proposals[0]
	assert.Equal(t, model.RelInboundProspect, p.Type)
	assert.GreaterOrEqual(t, p.Confidence, 0.6)
	names := signalNames(p.Signals)
	assert.Contains(t, names, "they_initiate_contact")
	assert.Contains(t, names, "prospect_language")
}

func TestDetectSellingToMe(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	seedProfile(t, db, &model.SenderProfile{
		SenderDomain:  "outbound.co",
		CompanySize:   "medium",
		TotalMessages: 6,
		UserReplyRate: 0,
	})
	seedInbound(t, db, "m1", "outbound.co",
		"Quick question — would you be open to a 15 minute demo this week?")
	require.NoError(t, db.UpsertClassification(ctx, &model.Classification{
		MessageID:    "m1",
		SenderIntent: model.IntentColdOutreach,
	}))

	proposals, err := NewDetector(db, KnownEntities{}).Detect(ctx)
	require.NoError(t, err)
	require.Len(t, proposals, 1)

	p := proposals[0]
	assert.Equal(t, model.RelSellingToMe, p.Type)
	names := signalNames(p.Signals)
	assert.Contains(t, names, "no_user_participation")
	assert.Contains(t, names, "high_volume_one_way")
	assert.Contains(t, names, "selling_language")
	assert.Contains(t, names, "cold_outreach_intent")
}

func TestDetectVendor(t *testing.T) {
	db := newTestStore(t)
	seedProfile(t, db, &model.SenderProfile{
		SenderDomain:          "tooling.dev",
		CompanySize:           "large",
		TotalMessages:         3,
		ThreadInitiationRatio: 0.8,
		UserReplyRate:         0.4,
		EconomicSegments:      []string{model.SegSpendMap},
	})
	seedInbound(t, db, "m1", "tooling.dev", "Your invoice for February is attached.")
	seedInbound(t, db, "m2", "tooling.dev", "Payment receipt for your subscription.")
	seedInbound(t, db, "m3", "tooling.dev", "Your plan renews on March 1.")

	proposals, err := NewDetector(db, KnownEntities{}).Detect(context.Background())
	require.NoError(t, err)
	require.Len(t, proposals, 1)

	p := proposals[0]
	assert.Equal(t, model.RelMyVendor, p.Type)
	assert.InDelta(t, 0.9, p.Confidence, 0.001)
	names := signalNames(p.Signals)
	assert.Contains(t, names, "user_initiates_contact")
	assert.Contains(t, names, "vendor_content")
	assert.Contains(t, names, "spend_map_segment")
}

func TestDetectCommunityFallback(t *testing.T) {
	db := newTestStore(t)
	seedProfile(t, db, &model.SenderProfile{
		SenderDomain:          "devnews.org",
		CompanySize:           "large",
		TotalMessages:         20,
		ThreadInitiationRatio: 0.4,
		UserReplyRate:         0.3,
		EconomicSegments:      []string{model.SegDistribution},
	})

	proposals, err := NewDetector(db, KnownEntities{}).Detect(context.Background())
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, model.RelCommunity, proposals[0].Type)
	assert.Equal(t, 0.6, proposals[0].Confidence)
}

func TestDetectWarmContactFallback(t *testing.T) {
	db := newTestStore(t)
	seedProfile(t, db, &model.SenderProfile{
		SenderDomain:          "partnerco.com",
		CompanySize:           "large",
		TotalMessages:         8,
		ThreadInitiationRatio: 0.5,
		UserReplyRate:         0.6,
	})

	proposals, err := NewDetector(db, KnownEntities{}).Detect(context.Background())
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, model.RelWarmContact, proposals[0].Type)
	assert.Equal(t, 0.5, proposals[0].Confidence)
}

func TestDetectUnknown(t *testing.T) {
	db := newTestStore(t)
	seedProfile(t, db, &model.SenderProfile{
		SenderDomain:          "mystery.net",
		CompanySize:           "large",
		TotalMessages:         10,
		ThreadInitiationRatio: 0.4,
		UserReplyRate:         0.3,
	})

	proposals, err := NewDetector(db, KnownEntities{}).Detect(context.Background())
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, model.RelUnknown, proposals[0].Type)
	assert.Equal(t, 0.2, proposals[0].Confidence)
}

func TestApplyNeverOverwritesManual(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertRelationship(ctx, &model.SenderRelationship{
		SenderDomain: "acme.com",
		Type:         model.RelWarmContact,
		Source:       model.RelSourceManual,
	}))

	d := NewDetector(db, KnownEntities{})
	applied, err := d.Apply(ctx, []Proposal{
		{SenderDomain: "acme.com", Type: model.RelSellingToMe, Confidence: 0.9},
		{SenderDomain: "lowconf.com", Type: model.RelMyVendor, Confidence: 0.4},
	})
	require.NoError(t, err)
	assert.Zero(t, applied)

	rel, err := db.GetRelationship(ctx, "acme.com")
	require.NoError(t, err)
	assert.Equal(t, model.RelWarmContact, rel.Type)
	assert.Equal(t, model.RelSourceManual, rel.Source)

	rel, err = db.GetRelationship(ctx, "lowconf.com")
	require.NoError(t, err)
	assert.Nil(t, rel)
}

func TestImportYAML(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	path := writeYAML(t, `
my_vendor:
  - stripe.com
  - heroku.com
institutional:
  - rippling.com
`)

	count, err := ImportYAML(ctx, db, path)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	rel, err := db.GetRelationship(ctx, "stripe.com")
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, model.RelMyVendor, rel.Type)
	assert.Equal(t, model.RelSourceManual, rel.Source)
	assert.False(t, rel.SuppressGems)

	rel, err = db.GetRelationship(ctx, "rippling.com")
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.True(t, rel.SuppressGems)
}

func TestImportYAMLRejectsUnknownType(t *testing.T) {
	db := newTestStore(t)
	path := writeYAML(t, "bogus_type:\n  - acme.com\n")
	_, err := ImportYAML(context.Background(), db, path)
	assert.Error(t, err)
}

func signalNames(signals []Signal) []string {
	out := make([]string, len(signals))
	for i, s := range signals {
		out[i] = s.Name
	}
	return out
}
