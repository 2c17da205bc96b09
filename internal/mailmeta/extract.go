package mailmeta

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/store"
)

// Extractor is the metadata stage: one parsed_metadata row per message plus
// the per-domain temporal rollup.
type Extractor struct {
	db    store.Store
	rules ESPRules
	log   *zap.Logger
}

// NewExtractor builds the stage with the given ESP rule set.
func NewExtractor(db store.Store, rules ESPRules) *Extractor {
	if rules == nil {
		rules = DefaultESPRules()
	}
	return &Extractor{db: db, rules: rules, log: zap.L().Named("mailmeta")}
}

// Run processes every message without metadata, then recomputes the
// temporal rollups. Returns the number of messages processed.
func (e *Extractor) Run(ctx context.Context) (int, error) {
	msgs, err := e.db.ListMessagesMissingMetadata(ctx)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range msgs {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		meta := Extract(&msgs[i], e.rules)
		if err := e.db.UpsertMetadata(ctx, meta); err != nil {
			return processed, err
		}
		processed++
	}

	if err := e.RecomputeTemporal(ctx); err != nil {
		return processed, err
	}
	e.log.Info("metadata extracted", zap.Int("messages", processed))
	return processed, nil
}

var (
	angleAddr   = regexp.MustCompile(`<([^>]+)>`)
	dkimD       = regexp.MustCompile(`d=([^\s;]+)`)
	receivedIP  = regexp.MustCompile(`\[(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\]`)
	receivedSrv = regexp.MustCompile(`(?i)from\s+(\S+)`)
	unsubURL    = regexp.MustCompile(`<(https?://[^>]+)>`)
	unsubMailto = regexp.MustCompile(`<mailto:([^>]+)>`)
)

// Extract derives the metadata row for one message.
func Extract(msg *model.Message, rules ESPRules) *model.Metadata {
	meta := &model.Metadata{MessageID: msg.MessageID}
	meta.SenderDomain, meta.SenderSubdomain = NormalizeSender(msg.FromAddress)

	if rp := msg.Header("return-path"); rp != "" {
		if m := angleAddr.FindStringSubmatch(rp); m != nil {
			meta.EnvelopeSender = m[1]
		} else {
			meta.EnvelopeSender = strings.TrimSpace(rp)
		}
	}

	meta.ESPIdentified, meta.ESPConfidence = MatchESP(msg, meta.SenderDomain, rules)

	if dkim := msg.Header("dkim-signature"); dkim != "" {
		if m := dkimD.FindStringSubmatch(dkim); m != nil {
			meta.DKIMDomain = strings.ToLower(m[1])
		}
	}

	meta.SPFResult = authResult(msg, "spf")
	meta.DMARCResult = authResult(msg, "dmarc")

	// The bottom Received header is the originating hop.
	if received := msg.Headers("received"); len(received) > 0 {
		outer := received[len(received)-1]
		if m := receivedIP.FindStringSubmatch(outer); m != nil {
			meta.SendingIP = m[1]
		}
		if m := receivedSrv.FindStringSubmatch(outer); m != nil {
			meta.MailServer = strings.Trim(m[1], "()")
		}
	}

	meta.XMailer = msg.Header("x-mailer")
	meta.Precedence = strings.ToLower(strings.TrimSpace(msg.Header("precedence")))
	meta.FeedbackID = msg.Header("feedback-id")

	if unsub := msg.Header("list-unsubscribe"); unsub != "" {
		if m := unsubURL.FindStringSubmatch(unsub); m != nil {
			meta.ListUnsubscribeURL = m[1]
		}
		if m := unsubMailto.FindStringSubmatch(unsub); m != nil {
			meta.ListUnsubscribeEmail = m[1]
		}
	}

	switch meta.Precedence {
	case "bulk", "list", "junk":
		meta.IsBulk = true
	}
	if !meta.IsBulk && meta.ListUnsubscribeURL != "" {
		meta.IsBulk = true
	}
	if !meta.IsBulk && marketingESPs[meta.ESPIdentified] {
		meta.IsBulk = true
	}
	return meta
}

// marketingESPs are providers whose presence alone marks mail as bulk.
var marketingESPs = map[string]bool{
	"hubspot":          true,
	"klaviyo":          true,
	"mailchimp":        true,
	"activecampaign":   true,
	"convertkit":       true,
	"constant_contact": true,
}

var authResultPattern = map[string]*regexp.Regexp{
	"spf":   regexp.MustCompile(`(?i)spf=(\w+)`),
	"dmarc": regexp.MustCompile(`(?i)dmarc=(\w+)`),
}

var spfVerdicts = map[string]bool{
	"pass": true, "fail": true, "softfail": true, "neutral": true,
	"none": true, "temperror": true, "permerror": true,
}

func authResult(msg *model.Message, protocol string) string {
	pattern := authResultPattern[protocol]
	for _, val := range msg.Headers("authentication-results") {
		if m := pattern.FindStringSubmatch(val); m != nil {
			return strings.ToLower(m[1])
		}
	}
	if protocol == "spf" {
		if spf := msg.Header("received-spf"); spf != "" {
			first := strings.ToLower(strings.Fields(strings.TrimSpace(spf))[0])
			if spfVerdicts[first] {
				return first
			}
		}
	}
	return ""
}

// RecomputeTemporal rebuilds sender_temporal for every known domain.
func (e *Extractor) RecomputeTemporal(ctx context.Context) error {
	domains, err := e.db.ListSenderDomains(ctx)
	if err != nil {
		return err
	}
	for _, domain := range domains {
		msgs, err := e.db.ListMessagesByDomain(ctx, domain)
		if err != nil {
			return err
		}
		t := BuildTemporal(domain, msgs)
		if t == nil {
			continue
		}
		if err := e.db.UpsertSenderTemporal(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// BuildTemporal computes the cadence rollup from a domain's messages,
// sorted by date ascending. Returns nil when no message carries a date.
func BuildTemporal(domain string, msgs []model.Message) *model.SenderTemporal {
	var dates []time.Time
	for _, m := range msgs {
		if !m.Date.IsZero() {
			dates = append(dates, m.Date)
		}
	}
	if len(dates) == 0 {
		return nil
	}

	t := &model.SenderTemporal{
		SenderDomain:  domain,
		FirstSeen:     dates[0],
		LastSeen:      dates[len(dates)-1],
		TotalMessages: len(dates),
	}

	if len(dates) > 1 {
		var totalDays float64
		for i := 1; i < len(dates); i++ {
			totalDays += dates[i].Sub(dates[i-1]).Hours() / 24
		}
		t.AvgFrequencyDays = totalDays / float64(len(dates)-1)
	}

	var hours [24]int
	var weekdays [7]int
	for _, d := range dates {
		hours[d.UTC().Hour()]++
		weekdays[int(d.UTC().Weekday())]++
	}
	t.MostCommonHour = argmax(hours[:])
	t.MostCommonWeekday = argmax(weekdays[:])
	return t
}

func argmax(counts []int) int {
	best, bestN := 0, -1
	for i, n := range counts {
		if n > bestN {
			best, bestN = i, n
		}
	}
	return best
}
