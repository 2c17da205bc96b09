package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/store"
)

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abcd1234", truncateID("abcd1234-ef56-7890"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestFormatGemsTable(t *testing.T) {
	var buf bytes.Buffer
	formatGemsTable(&buf, []model.Gem{
		{
			ID:           1,
			GemType:      model.GemPartnerProgram,
			SenderDomain: "acme.com",
			Score:        72,
			Status:       model.GemStatusNew,
			Explanation:  model.GemExplanation{Summary: "Partner program mentioned twice"},
		},
	})
	out := buf.String()
	assert.Contains(t, out, "partner_program")
	assert.Contains(t, out, "acme.com")
	assert.Contains(t, out, "72")
	assert.Contains(t, out, "Partner program mentioned twice")
}

func TestFormatGemsTableTruncatesLongSummary(t *testing.T) {
	long := ""
	for i := 0; i < 20; i++ {
		long += "signal "
	}
	var buf bytes.Buffer
	formatGemsTable(&buf, []model.Gem{{ID: 1, Explanation: model.GemExplanation{Summary: long}}})
	assert.Contains(t, buf.String(), "...")
	assert.NotContains(t, buf.String(), long)
}

func TestFormatRunsList(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	completed := started.Add(42 * time.Second)

	var buf bytes.Buffer
	formatRunsList(&buf, []model.Run{
		{
			ID:             "11112222-3333-4444",
			Stage:          "classify",
			Status:         model.RunCompleted,
			ItemsProcessed: 17,
			TriggeredBy:    model.TriggerCLI,
			StartedAt:      started,
			CompletedAt:    &completed,
		},
		{
			ID:        "55556666-7777-8888",
			Stage:     "content",
			Status:    model.RunRunning,
			StartedAt: started,
		},
	})
	out := buf.String()
	assert.Contains(t, out, "11112222")
	assert.NotContains(t, out, "-3333-4444")
	assert.Contains(t, out, "classify")
	assert.Contains(t, out, "42s")
	assert.Contains(t, out, "running")
}

func TestFormatCountsSortsByCountDesc(t *testing.T) {
	var buf bytes.Buffer
	formatCounts(&buf, "ESP", map[string]int{
		"mailchimp": 3,
		"hubspot":   12,
		"sendgrid":  3,
	})
	out := buf.String()
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("hubspot")), bytes.Index(buf.Bytes(), []byte("mailchimp")))
	// Equal counts tie-break alphabetically.
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("mailchimp")), bytes.Index(buf.Bytes(), []byte("sendgrid")))
	assert.Contains(t, out, "12")
}

func TestClassifiedValue(t *testing.T) {
	cls := &model.Classification{
		SenderIntent:            model.IntentNewsletter,
		Industry:                "SaaS",
		CompanySize:             "11-50",
		ProductType:             "analytics",
		TargetAudience:          "marketers",
		MarketingSophistication: 7,
	}
	assert.Equal(t, "newsletter", classifiedValue(cls, "sender_intent"))
	assert.Equal(t, "SaaS", classifiedValue(cls, "industry"))
	assert.Equal(t, "11-50", classifiedValue(cls, "company_size_estimate"))
	assert.Equal(t, "7", classifiedValue(cls, "marketing_sophistication"))
	assert.Equal(t, "", classifiedValue(cls, "unknown_field"))
}

func TestFormatOverrideStats(t *testing.T) {
	var buf bytes.Buffer
	formatOverrideStats(&buf, map[string]store.OverrideFieldStats{
		"sender_intent": {
			TotalOverrides:       5,
			TotalClassifications: 20,
			OverrideRate:         25.0,
			NeedsTuning:          true,
		},
	})
	out := buf.String()
	assert.Contains(t, out, "sender_intent")
	assert.Contains(t, out, "25.0%")
	assert.Contains(t, out, "true")
}
