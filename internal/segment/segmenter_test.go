package segment

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gemsieve/internal/config"
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

func testScoring() config.ScoringConfig {
	return config.ScoringConfig{
		TargetIndustries: []string{"SaaS", "Agency"},
		Weights: config.ScoringWeights{
			InboundInitiation:  15,
			InboundEngagement:  15,
			Reachability:       10,
			Relevance:          8,
			Recency:            8,
			KnownContacts:      7,
			MonetarySignals:    7,
			GemDiversityPer:    5,
			GemDiversityCap:    15,
			DormantThreadBonus: 10,
			PartnerBonus:       3,
			ProcurementBonus:   7,
		},
		RelationshipCaps: map[string]int{
			"inbound_prospect":    100,
			"warm_contact":        90,
			"potential_partner":   80,
			"community":           50,
			"unknown":             60,
			"selling_to_me":       20,
			"my_vendor":           25,
			"my_service_provider": 15,
			"my_infrastructure":   5,
			"institutional":       5,
		},
	}
}

func newSegmenter(t *testing.T, db *store.DB) *Segmenter {
	t.Helper()
	s, err := NewSegmenter(db, "")
	require.NoError(t, err)
	return s
}

func segmentSet(t *testing.T, db *store.DB, domain string) map[string]string {
	t.Helper()
	rows, err := db.ListSegments(context.Background(), domain)
	require.NoError(t, err)
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Segment] = r.SubSegment
	}
	return out
}

func TestAssignSegments(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertProfile(ctx, &model.SenderProfile{
		SenderDomain:       "acme.com",
		SophisticationAvg:  2.5,
		LastContact:        time.Now().UTC().AddDate(0, 0, -10),
		RenewalDates:       []string{"July 15, 2026"},
		PartnerProgramURLs: []string{"https://acme.com/partners"},
		EconomicSegments: []string{
			model.SegSpendMap, model.SegPartnerMap, model.SegProspectMap,
		},
	}))

	n, err := newSegmenter(t, db).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	segs := segmentSet(t, db, "acme.com")
	assert.Equal(t, "upcoming_renewal", segs[model.SegSpendMap])
	assert.Equal(t, "referral_program", segs[model.SegPartnerMap])
	assert.Equal(t, "hot_lead", segs[model.SegProspectMap])
}

func TestSpendSegmentChurnedVendor(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertProfile(ctx, &model.SenderProfile{
		SenderDomain:     "gone.io",
		LastContact:      time.Now().UTC().AddDate(0, 0, -200),
		RenewalDates:     []string{"July 15, 2026"},
		EconomicSegments: []string{model.SegSpendMap},
	}))

	_, err := newSegmenter(t, db).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "churned_vendor", segmentSet(t, db, "gone.io")[model.SegSpendMap])
}

func TestDormantThreadsSegment(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertProfile(ctx, &model.SenderProfile{SenderDomain: "acme.com"}))
	_, err := db.UpsertGem(ctx, &model.Gem{
		GemType:      model.GemDormantWarmThread,
		SenderDomain: "acme.com",
		ThreadID:     "t1",
		Score:        70,
	})
	require.NoError(t, err)

	_, err = newSegmenter(t, db).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "unanswered", segmentSet(t, db, "acme.com")[model.SegDormantThreads])
}

func TestProcurementSegmentSubtypes(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertProfile(ctx, &model.SenderProfile{
		SenderDomain:     "buyer.com",
		EconomicSegments: []string{model.SegProcurement},
	}))
	require.NoError(t, db.UpsertMessage(ctx, &model.Message{
		MessageID: "m1", ThreadID: "t1", FromAddress: "it@buyer.com",
		Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, db.UpsertMetadata(ctx, &model.Metadata{
		MessageID: "m1", SenderDomain: "buyer.com",
	}))
	require.NoError(t, db.ReplaceEntities(ctx, "m1", []model.Entity{{
		Type: model.EntityProcurement, Value: "security questionnaire",
		Normalized: "security_review", Confidence: 0.75, Source: model.SourceRegex,
	}}))

	_, err := newSegmenter(t, db).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "security_compliance", segmentSet(t, db, "buyer.com")[model.SegProcurement])
}

func TestDistributionSubs(t *testing.T) {
	subs := distributionSubs(map[string]int{"newsletter": 3, "webinar": 1})
	require.Len(t, subs, 2)
	assert.Equal(t, "newsletter", subs[0].sub)
	assert.Equal(t, "event_organizer", subs[1].sub)

	fallback := distributionSubs(nil)
	require.Len(t, fallback, 1)
	assert.Equal(t, "newsletter", fallback[0].sub)
	assert.Equal(t, 0.7, fallback[0].conf)
}

func TestCustomSegmentMatches(t *testing.T) {
	cs := CustomSegment{
		Name:     "design_agencies",
		Priority: "hot",
		Rules: map[string]any{
			"industry":                     []any{"Agency", "Design"},
			"company_size":                 "small",
			"marketing_sophistication_avg": map[string]any{"lt": 5},
			"segment_includes":             model.SegProspectMap,
			"has_partner_program":          false,
		},
	}

	match := &model.SenderProfile{
		Industry:          "Agency",
		CompanySize:       "small",
		SophisticationAvg: 3.2,
		EconomicSegments:  []string{model.SegProspectMap},
	}
	assert.True(t, cs.Matches(match))

	match.SophisticationAvg = 6
	assert.False(t, cs.Matches(match))

	match.SophisticationAvg = 3.2
	match.Industry = "Steel"
	assert.False(t, cs.Matches(match))
}

func TestLoadCustomSegments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segments.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
custom_segments:
  - name: hot_agencies
    priority: hot
    rules:
      industry: Agency
  - rules:
      company_size: small
`), 0o644))

	segs, err := LoadCustomSegments(path)
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, "hot_agencies", segs[0].Name)
	assert.Equal(t, "unnamed", segs[1].Name)
	assert.Equal(t, "warm", segs[1].Priority)

	none, err := LoadCustomSegments(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCustomSegmentAssignedOnRun(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "segments.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
custom_segments:
  - name: small_saas
    priority: hot
    rules:
      industry: SaaS
      company_size: small
`), 0o644))

	require.NoError(t, db.UpsertProfile(ctx, &model.SenderProfile{
		SenderDomain: "acme.com",
		Industry:     "SaaS",
		CompanySize:  "small",
	}))

	s, err := NewSegmenter(db, path)
	require.NoError(t, err)
	_, err = s.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, "hot", segmentSet(t, db, "acme.com")["custom:small_saas"])
}

func TestOpportunityScoreCappedByRelationship(t *testing.T) {
	scorer := NewScorer(newTestStore(t), testScoring())
	scorer.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }

	p := &model.SenderProfile{
		SenderDomain:          "acme.com",
		Industry:              "SaaS",
		CompanySize:           "small",
		LastContact:           time.Date(2026, 5, 25, 0, 0, 0, 0, time.UTC),
		KnownContacts:         []model.Contact{{Name: "Jane", Role: "VP Marketing"}},
		MonetarySignals:       []string{"$5,000"},
		ThreadInitiationRatio: 0,
		UserReplyRate:         1,
	}
	gems := []model.Gem{
		{GemType: model.GemDormantWarmThread},
		{GemType: model.GemPartnerProgram},
	}
	rel := &model.SenderRelationship{Type: model.RelWarmContact}

	// 30 inbound + 10 size + 8 industry + 8 recency + 7 contact + 7
	// monetary + 10 diversity + 13 bonuses = 93, capped at 90.
	assert.Equal(t, 90, scorer.OpportunityScore(p, gems, rel))

	rel.Type = model.RelInboundProspect
	assert.Equal(t, 93, scorer.OpportunityScore(p, gems, rel))

	// Vendors never earn the monetary bonus and cap at 25.
	rel.Type = model.RelMyVendor
	assert.Equal(t, 25, scorer.OpportunityScore(p, gems, rel))
}

func TestOpportunityScoreSuppressed(t *testing.T) {
	scorer := NewScorer(newTestStore(t), testScoring())

	p := &model.SenderProfile{SenderDomain: "intuit.com", CompanySize: "small"}
	assert.Zero(t, scorer.OpportunityScore(p, nil, &model.SenderRelationship{
		Type: model.RelInstitutional,
	}))
	assert.Zero(t, scorer.OpportunityScore(p, nil, &model.SenderRelationship{
		Type:         model.RelWarmContact,
		SuppressGems: true,
	}))
}

func TestScorerRunUpdatesGems(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertProfile(ctx, &model.SenderProfile{
		SenderDomain:  "acme.com",
		Industry:      "SaaS",
		CompanySize:   "small",
		UserReplyRate: 1,
	}))
	require.NoError(t, db.UpsertRelationship(ctx, &model.SenderRelationship{
		SenderDomain: "acme.com",
		Type:         model.RelInboundProspect,
		Source:       model.RelSourceManual,
	}))
	id, err := db.UpsertGem(ctx, &model.Gem{
		GemType:      model.GemUnansweredAsk,
		SenderDomain: "acme.com",
		ThreadID:     "t1",
		Score:        60,
	})
	require.NoError(t, err)

	scorer := NewScorer(db, testScoring())
	n, err := scorer.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	g, err := db.GetGem(ctx, id)
	require.NoError(t, err)
	// 15 initiation + 15 reply + 10 size + 8 industry + 5 diversity = 53.
	assert.Equal(t, 53, g.Score)
}
