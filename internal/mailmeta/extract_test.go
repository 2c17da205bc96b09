package mailmeta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gemsieve/internal/model"
)

func headerMsg(headers map[string][]string) *model.Message {
	return &model.Message{
		MessageID:   "m1",
		FromAddress: "news@mail.acme.com",
		HeadersRaw:  headers,
	}
}

func TestExtractFullHeaders(t *testing.T) {
	msg := headerMsg(map[string][]string{
		"return-path": {"<bounce-123@sendgrid.net>"},
		"dkim-signature": {
			"v=1; a=rsa-sha256; d=acme.com; s=s1; h=from:to;",
		},
		"authentication-results": {
			"mx.google.com; spf=pass smtp.mailfrom=acme.com; dkim=pass; dmarc=pass",
		},
		"received": {
			"by mx.google.com with SMTP id abc",
			"from mta1.acme.com (mta1.acme.com [203.0.113.9]) by mx.example.net",
		},
		"x-mailer":         {"AcmeMailer 2.0"},
		"precedence":       {"Bulk"},
		"feedback-id":      {"cmp-9:acme:sendgrid"},
		"list-unsubscribe": {"<https://acme.com/unsub?u=1>, <mailto:unsub@acme.com>"},
	})

	meta := Extract(msg, DefaultESPRules())
	assert.Equal(t, "acme.com", meta.SenderDomain)
	assert.Equal(t, "mail.acme.com", meta.SenderSubdomain)
	assert.Equal(t, "bounce-123@sendgrid.net", meta.EnvelopeSender)
	assert.Equal(t, "sendgrid", meta.ESPIdentified)
	assert.Equal(t, "medium", meta.ESPConfidence)
	assert.Equal(t, "acme.com", meta.DKIMDomain)
	assert.Equal(t, "pass", meta.SPFResult)
	assert.Equal(t, "pass", meta.DMARCResult)
	assert.Equal(t, "203.0.113.9", meta.SendingIP)
	assert.Equal(t, "mta1.acme.com", meta.MailServer)
	assert.Equal(t, "AcmeMailer 2.0", meta.XMailer)
	assert.Equal(t, "bulk", meta.Precedence)
	assert.Equal(t, "https://acme.com/unsub?u=1", meta.ListUnsubscribeURL)
	assert.Equal(t, "unsub@acme.com", meta.ListUnsubscribeEmail)
	assert.True(t, meta.IsBulk)
}

func TestExtractReceivedSPFFallback(t *testing.T) {
	msg := headerMsg(map[string][]string{
		"received-spf": {"softfail (domain of transitioning acme.com)"},
	})
	meta := Extract(msg, DefaultESPRules())
	assert.Equal(t, "softfail", meta.SPFResult)
}

func TestExtractCustomSMTPFallback(t *testing.T) {
	msg := &model.Message{
		MessageID:   "m2",
		FromAddress: "kim@studio.dev",
		HeadersRaw: map[string][]string{
			"dkim-signature": {"v=1; d=studio.dev; s=default"},
		},
	}
	meta := Extract(msg, DefaultESPRules())
	assert.Equal(t, "custom_smtp", meta.ESPIdentified)
	assert.Equal(t, "low", meta.ESPConfidence)
	assert.False(t, meta.IsBulk)
}

func TestExtractMarketingESPImpliesBulk(t *testing.T) {
	msg := headerMsg(map[string][]string{
		"return-path": {"<b@mail12.mcsv.net>"},
	})
	meta := Extract(msg, DefaultESPRules())
	assert.Equal(t, "mailchimp", meta.ESPIdentified)
	assert.True(t, meta.IsBulk)
}

func TestExtractUnsubscribeImpliesBulk(t *testing.T) {
	msg := headerMsg(map[string][]string{
		"list-unsubscribe": {"<https://x.example/u>"},
	})
	meta := Extract(msg, DefaultESPRules())
	assert.True(t, meta.IsBulk)
}

func TestMatchESPBestScoreWins(t *testing.T) {
	rules := ESPRules{
		"weak": {
			Confidence: "low",
			Signals:    []ESPSignal{{HeaderPresent: "x-common"}},
		},
		"strong": {
			Confidence: "high",
			Signals: []ESPSignal{
				{HeaderPresent: "x-common"},
				{ReturnPathContains: "strong.example"},
			},
		},
	}
	msg := headerMsg(map[string][]string{
		"x-common":    {"1"},
		"return-path": {"<b@mta.strong.example>"},
	})
	name, conf := MatchESP(msg, "acme.com", rules)
	assert.Equal(t, "strong", name)
	assert.Equal(t, "high", conf)
}

func TestBuildTemporal(t *testing.T) {
	base := time.Date(2026, 1, 6, 14, 0, 0, 0, time.UTC) // a Tuesday
	msgs := []model.Message{
		{Date: base},
		{Date: base.AddDate(0, 0, 7)},
		{Date: base.AddDate(0, 0, 14)},
		{Date: base.AddDate(0, 0, 21).Add(3 * time.Hour)},
	}

	tmp := BuildTemporal("acme.com", msgs)
	require.NotNil(t, tmp)
	assert.Equal(t, 4, tmp.TotalMessages)
	assert.Equal(t, base, tmp.FirstSeen)
	assert.InDelta(t, 7.04, tmp.AvgFrequencyDays, 0.05)
	assert.Equal(t, 14, tmp.MostCommonHour)
	assert.Equal(t, int(time.Tuesday), tmp.MostCommonWeekday)
}

func TestBuildTemporalNoDates(t *testing.T) {
	assert.Nil(t, BuildTemporal("acme.com", []model.Message{{MessageID: "x"}}))
}
