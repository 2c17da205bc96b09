package pipeline

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

// seedProspectThread stores an analyzed two-message exchange from an
// unclassified domain: the sender asked about pricing with a budget, the
// user replied once, and the thread has sat dormant awaiting the user.
func seedProspectThread(t *testing.T, db *store.DB, domain string) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	msgs := []struct {
		id   string
		sent bool
		body string
	}{
		{"p1", false, "Interested in your pricing for a team of 30. Our budget is $5,000."},
		{"p2", true, "Thanks, sending details shortly."},
	}
	for i, m := range msgs {
		from := "jane@" + domain
		if m.sent {
			from = "me@example.com"
		}
		require.NoError(t, db.UpsertMessage(ctx, &model.Message{
			MessageID:   m.id,
			ThreadID:    "pt1",
			Date:        base.Add(time.Duration(i) * time.Hour),
			FromAddress: from,
			Subject:     "Pricing question",
			BodyText:    m.body,
			IsSent:      m.sent,
		}))
		if m.sent {
			continue
		}
		require.NoError(t, db.UpsertMetadata(ctx, &model.Metadata{
			MessageID:    m.id,
			SenderDomain: domain,
		}))
		require.NoError(t, db.UpsertClassification(ctx, &model.Classification{
			MessageID:    m.id,
			Industry:     "SaaS",
			CompanySize:  "small",
			SenderIntent: model.IntentNurtureSequence,
		}))
	}

	require.NoError(t, db.UpsertThread(ctx, &model.Thread{
		ThreadID:             "pt1",
		Subject:              "Pricing question",
		MessageCount:         2,
		UserParticipated:     true,
		AwaitingResponseFrom: model.AwaitingUser,
		DaysDormant:          45,
	}))
}

func TestProfileStageClassifiesRelationshipsBeforeGems(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	seedProspectThread(t, db, "acme.com")

	o := New(db, nil, testConfig())
	run, err := o.Execute(ctx, "profile", model.TriggerCLI, StageOptions{})
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, run.Status)

	// The stage classified the fresh profile on its own; no manual
	// relationship verb was needed first.
	rel, err := db.GetRelationship(ctx, "acme.com")
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, model.RelInboundProspect, rel.Type)
	assert.Equal(t, model.RelSourceAutoDetected, rel.Source)

	gems, err := db.ListGemsByDomain(ctx, "acme.com")
	require.NoError(t, err)
	var dormant *model.Gem
	for i := range gems {
		if gems[i].GemType == model.GemDormantWarmThread {
			dormant = &gems[i]
		}
	}
	require.NotNil(t, dormant)
	assert.Equal(t, "pt1", dormant.ThreadID)
	assert.Equal(t, "high", dormant.Explanation.Urgency)
}

func TestProfileStageHonorsKnownEntities(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	seedProspectThread(t, db, "chase.com")

	known := filepath.Join(t.TempDir(), "known_entities.yaml")
	require.NoError(t, os.WriteFile(known, []byte("institutional:\n  - chase.com\n"), 0o644))

	cfg := testConfig()
	cfg.KnownEntitiesFile = known

	o := New(db, nil, cfg)
	_, err := o.Execute(ctx, "profile", model.TriggerCLI, StageOptions{})
	require.NoError(t, err)

	rel, err := db.GetRelationship(ctx, "chase.com")
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, model.RelInstitutional, rel.Type)

	// Institutional senders never surface as opportunities.
	gems, err := db.ListGemsByDomain(ctx, "chase.com")
	require.NoError(t, err)
	assert.Empty(t, gems)
}

func TestProfileStageKeepsManualRelationship(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	seedProspectThread(t, db, "acme.com")
	require.NoError(t, db.UpsertRelationship(ctx, &model.SenderRelationship{
		SenderDomain: "acme.com",
		Type:         model.RelMyVendor,
		Source:       model.RelSourceManual,
		Confidence:   1.0,
	}))

	o := New(db, nil, testConfig())
	_, err := o.Execute(ctx, "profile", model.TriggerCLI, StageOptions{})
	require.NoError(t, err)

	rel, err := db.GetRelationship(ctx, "acme.com")
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, model.RelMyVendor, rel.Type)
	assert.Equal(t, model.RelSourceManual, rel.Source)
}
