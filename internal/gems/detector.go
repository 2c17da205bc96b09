// Package gems runs the rule-based opportunity detectors over sender
// profiles. Detection is a full re-scan: existing gems are cleared and
// rebuilt so rule changes take effect everywhere, while user-set status
// survives through the store's upsert key.
package gems

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/gemsieve/internal/config"
	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/profile"
	"github.com/sells-group/gemsieve/internal/store"
)

// eligibility gates each gem type by the sender's relationship. A profile
// whose relationship is not listed never produces that gem. vendor_upsell
// is retired and absent.
var eligibility = map[model.GemType][]model.RelationshipType{
	model.GemDormantWarmThread: {
		model.RelInboundProspect, model.RelWarmContact, model.RelPotentialPartner,
	},
	model.GemUnansweredAsk: {
		model.RelInboundProspect, model.RelWarmContact, model.RelPotentialPartner,
	},
	model.GemWeakMarketingLead: {
		model.RelInboundProspect, model.RelWarmContact,
	},
	model.GemPartnerProgram: {
		model.RelMyVendor, model.RelWarmContact, model.RelPotentialPartner,
	},
	model.GemRenewalLeverage: {
		model.RelMyVendor, model.RelMyServiceProvider, model.RelMyInfrastructure,
	},
	model.GemDistributionChannel: {
		model.RelWarmContact, model.RelPotentialPartner, model.RelCommunity,
	},
	model.GemCoMarketing: {
		model.RelWarmContact, model.RelPotentialPartner,
	},
	model.GemIndustryIntel: {
		model.RelSellingToMe, model.RelInboundProspect, model.RelWarmContact,
		model.RelPotentialPartner, model.RelCommunity,
	},
	model.GemProcurementSignal: {
		model.RelInboundProspect, model.RelWarmContact,
	},
}

func eligible(gt model.GemType, rel model.RelationshipType) bool {
	for _, r := range eligibility[gt] {
		if r == rel {
			return true
		}
	}
	return false
}

// industrySaturationMin is how many same-industry profiles make the
// industry worth reporting on.
const industrySaturationMin = 10

// Detector finds gems for every profiled sender.
type Detector struct {
	db         store.Store
	scoring    config.ScoringConfig
	engagement config.EngagementConfig
	log        *zap.Logger
	now        func() time.Time
}

func NewDetector(db store.Store, scoring config.ScoringConfig, engagement config.EngagementConfig) *Detector {
	return &Detector{
		db:         db,
		scoring:    scoring,
		engagement: engagement,
		log:        zap.L().Named("gems"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run clears existing gems and re-detects across all profiles. Returns
// the number of gems written.
func (d *Detector) Run(ctx context.Context) (int, error) {
	if err := d.db.ClearGems(ctx); err != nil {
		return 0, err
	}

	bulk, err := d.db.BulkSenderDomains(ctx)
	if err != nil {
		return 0, err
	}
	industryCounts, err := d.db.CountProfilesByIndustry(ctx)
	if err != nil {
		return 0, err
	}
	profiles, err := d.db.ListProfiles(ctx)
	if err != nil {
		return 0, err
	}

	written := 0
	for i := range profiles {
		if ctx.Err() != nil {
			return written, ctx.Err()
		}
		p := &profiles[i]

		rel, err := d.db.GetRelationship(ctx, p.SenderDomain)
		if err != nil {
			return written, err
		}
		relType := model.RelUnknown
		if rel != nil {
			if rel.SuppressGems {
				continue
			}
			relType = rel.Type
		}
		if relType.Suppressed() {
			continue
		}

		found, err := d.detectForProfile(ctx, p, relType, bulk, industryCounts)
		if err != nil {
			return written, err
		}
		for j := range found {
			if _, err := d.db.UpsertGem(ctx, &found[j]); err != nil {
				return written, err
			}
			written++
		}
	}

	d.log.Info("gem detection complete",
		zap.Int("gems", written), zap.Int("profiles", len(profiles)))
	return written, nil
}

func (d *Detector) detectForProfile(
	ctx context.Context,
	p *model.SenderProfile,
	rel model.RelationshipType,
	bulk map[string]bool,
	industryCounts map[string]int,
) ([]model.Gem, error) {
	ents, err := d.db.ListEntitiesByDomain(ctx, p.SenderDomain)
	if err != nil {
		return nil, err
	}
	isBulk := bulk[p.SenderDomain]

	var out []model.Gem
	add := func(gems []model.Gem, err error) error {
		if err != nil {
			return err
		}
		out = append(out, gems...)
		return nil
	}

	// require_human_sender confines dormant-thread gems to non-bulk
	// senders; the other detectors always skip bulk where it matters.
	dormantBlocked := isBulk && d.scoring.DormantThread.RequireHumanSender
	if eligible(model.GemDormantWarmThread, rel) && !dormantBlocked {
		if err := add(d.detectDormant(ctx, p)); err != nil {
			return nil, err
		}
	}
	if eligible(model.GemUnansweredAsk, rel) && !isBulk {
		if err := add(d.detectUnansweredAsk(ctx, p, ents)); err != nil {
			return nil, err
		}
	}
	if eligible(model.GemWeakMarketingLead, rel) && !isBulk {
		out = append(out, d.detectWeakMarketingLead(p)...)
	}
	if eligible(model.GemPartnerProgram, rel) {
		out = append(out, d.detectPartnerProgram(p, ents)...)
	}
	if eligible(model.GemRenewalLeverage, rel) && !isBulk {
		out = append(out, d.detectRenewalLeverage(p, ents)...)
	}
	if eligible(model.GemDistributionChannel, rel) {
		if err := add(d.detectDistributionChannel(ctx, p)); err != nil {
			return nil, err
		}
	}
	if eligible(model.GemCoMarketing, rel) {
		out = append(out, d.detectCoMarketing(p)...)
	}
	if eligible(model.GemIndustryIntel, rel) && !isBulk {
		out = append(out, d.detectIndustryIntel(p, industryCounts)...)
	}
	if eligible(model.GemProcurementSignal, rel) {
		out = append(out, d.detectProcurementSignal(p, ents)...)
	}
	return out, nil
}

// detectDormant runs the six-gate dormant-thread pipeline. Gates one
// through five are structural (relationship, awaiting side, dormancy
// window, participation, length); gate six requires at least one warm
// signal and no completion signal in the thread tail.
func (d *Detector) detectDormant(ctx context.Context, p *model.SenderProfile) ([]model.Gem, error) {
	minDorm := d.scoring.DormantThread.MinDormancyDays
	if minDorm <= 0 {
		minDorm = 14
	}
	maxDorm := d.scoring.DormantThread.MaxDormancyDays
	if maxDorm <= 0 {
		maxDorm = 365
	}

	threads, err := d.db.ListThreadsByDomain(ctx, p.SenderDomain)
	if err != nil {
		return nil, err
	}

	var out []model.Gem
	for i := range threads {
		t := &threads[i]
		if t.AwaitingResponseFrom != model.AwaitingUser ||
			t.DaysDormant < minDorm || t.DaysDormant > maxDorm ||
			!t.UserParticipated || t.MessageCount < 2 {
			continue
		}

		msgs, err := d.db.ListThreadMessages(ctx, t.ThreadID)
		if err != nil {
			return nil, err
		}

		warmSignals, warmBoost, skip, err := d.threadWarmth(ctx, msgs)
		if err != nil {
			return nil, err
		}
		if skip || len(warmSignals) == 0 {
			continue
		}

		entityBoost, entitySignals, err := d.threadEntityBoost(ctx, msgs)
		if err != nil {
			return nil, err
		}

		signals := append(warmSignals, entitySignals...)
		score := 40 + warmBoost + entityBoost
		if t.UserParticipated {
			signals = append(signals, model.GemSignal{
				Signal: "user_participated", Evidence: "You were part of this conversation",
			})
			score += 10
		}
		switch {
		case t.DaysDormant < 60:
			score += 15
		case t.DaysDormant < 120:
			score += 10
		}
		if t.MessageCount > 2 {
			signals = append(signals, model.GemSignal{
				Signal:   "multi_message_thread",
				Evidence: fmt.Sprintf("%d messages exchanged", t.MessageCount),
			})
			score += 5
		}

		value := "medium"
		switch {
		case warmBoost >= 15:
			value = "high"
		case warmBoost == 0:
			value = "low"
		}
		urgency := "medium"
		switch {
		case t.DaysDormant < 60:
			urgency = "high"
		case t.DaysDormant > 180:
			urgency = "low"
		}

		out = append(out, model.Gem{
			GemType:      model.GemDormantWarmThread,
			SenderDomain: p.SenderDomain,
			ThreadID:     t.ThreadID,
			Score:        capScore(score),
			Explanation: model.GemExplanation{
				GemType: model.GemDormantWarmThread,
				Summary: fmt.Sprintf("Thread %q has been dormant for %d days. You owe a reply.",
					t.Subject, t.DaysDormant),
				Signals:        signals,
				Confidence:     0.8,
				EstimatedValue: value,
				Urgency:        urgency,
			},
			RecommendedActions: []string{"Reply to thread with new value-add"},
			SourceMessageIDs:   messageIDs(msgs),
		})
	}
	return out, nil
}

// threadWarmth scans a thread's messages for warm signals. One hit per
// category per thread; the boost is capped at 30. skip is true when the
// thread tail carries a completion signal or any message reads as
// transactional or re-engagement bait.
func (d *Detector) threadWarmth(ctx context.Context, msgs []model.Message) (signals []model.GemSignal, boost int, skip bool, err error) {
	seen := map[string]bool{}
	texts := make([]string, len(msgs))
	for i := range msgs {
		text := msgs[i].BodyText
		content, err := d.db.GetContent(ctx, msgs[i].MessageID)
		if err != nil {
			return nil, 0, false, err
		}
		if content != nil && content.BodyClean != "" {
			text = content.BodyClean
		}
		texts[i] = text

		cls, err := d.db.GetClassification(ctx, msgs[i].MessageID)
		if err != nil {
			return nil, 0, false, err
		}
		if cls != nil && (cls.SenderIntent == model.IntentTransactional ||
			cls.SenderIntent == model.IntentReEngagement) {
			return nil, 0, true, nil
		}

		for _, hit := range profile.ScanWarm(text) {
			if seen[hit.Category] {
				continue
			}
			seen[hit.Category] = true
			signals = append(signals, model.GemSignal{
				Signal:   "warm_" + hit.Category,
				Evidence: hit.Evidence,
			})
			boost += hit.Boost
		}
	}
	if boost > 30 {
		boost = 30
	}

	tail := texts
	if len(tail) > 3 {
		tail = tail[len(tail)-3:]
	}
	for _, text := range tail {
		if profile.HasCompletionSignal(text) {
			return nil, 0, true, nil
		}
	}
	return signals, boost, false, nil
}

// threadEntityBoost cross-references extracted entities: a money mention
// adds 10, a decision-maker contact adds 8. Each counts once per thread.
func (d *Detector) threadEntityBoost(ctx context.Context, msgs []model.Message) (int, []model.GemSignal, error) {
	boost := 0
	var signals []model.GemSignal
	sawMoney, sawDM := false, false
	for i := range msgs {
		ents, err := d.db.ListEntitiesByMessage(ctx, msgs[i].MessageID)
		if err != nil {
			return 0, nil, err
		}
		for _, e := range ents {
			switch {
			case e.Type == model.EntityMoney && !sawMoney:
				sawMoney = true
				boost += 10
				signals = append(signals, model.GemSignal{
					Signal: "money_entity", Evidence: e.Value,
				})
			case e.Type == model.EntityPerson && !sawDM &&
				strings.Contains(e.Context, "decision_maker"):
				sawDM = true
				boost += 8
				signals = append(signals, model.GemSignal{
					Signal: "decision_maker_entity", Evidence: e.Value,
				})
			}
		}
	}
	return boost, signals, nil
}

// detectUnansweredAsk flags recent threads where the user owes a reply.
func (d *Detector) detectUnansweredAsk(ctx context.Context, p *model.SenderProfile, ents []model.Entity) ([]model.Gem, error) {
	threads, err := d.db.ListThreadsByDomain(ctx, p.SenderDomain)
	if err != nil {
		return nil, err
	}

	dmPresent := hasDecisionMaker(ents)

	var out []model.Gem
	for i := range threads {
		t := &threads[i]
		if t.AwaitingResponseFrom != model.AwaitingUser ||
			t.DaysDormant < 3 || t.DaysDormant > 30 ||
			t.MessageCount < 2 || !t.UserParticipated {
			continue
		}

		msgs, err := d.db.ListThreadMessages(ctx, t.ThreadID)
		if err != nil {
			return nil, err
		}

		score := 60
		signals := []model.GemSignal{{
			Signal:   "awaiting_response",
			Evidence: fmt.Sprintf("Last message from %s", t.LastSender),
		}}
		if dmPresent {
			score += 8
			signals = append(signals, model.GemSignal{
				Signal: "decision_maker_contact", Evidence: "Sender contact is a decision maker",
			})
		}

		out = append(out, model.Gem{
			GemType:      model.GemUnansweredAsk,
			SenderDomain: p.SenderDomain,
			ThreadID:     t.ThreadID,
			Score:        capScore(score),
			Explanation: model.GemExplanation{
				GemType: model.GemUnansweredAsk,
				Summary: fmt.Sprintf("%q — %s is waiting for your reply (%d days).",
					t.Subject, t.LastSender, t.DaysDormant),
				Signals:        signals,
				Confidence:     0.9,
				EstimatedValue: "medium-high",
				Urgency:        "high",
			},
			RecommendedActions: []string{"Reply promptly"},
			SourceMessageIDs:   messageIDs(msgs),
		})
	}
	return out, nil
}

// detectWeakMarketingLead flags small and mid-size senders in a target
// industry whose marketing looks under-built.
func (d *Detector) detectWeakMarketingLead(p *model.SenderProfile) []model.Gem {
	if p.TotalMessages < 3 || p.Industry == "" {
		return nil
	}
	if !industryTargeted(p.Industry, d.scoring.TargetIndustries) {
		return nil
	}
	if p.CompanySize != "small" && p.CompanySize != "medium" {
		return nil
	}
	soph := int(p.SophisticationAvg + 0.5)
	if soph > 5 {
		return nil
	}

	score := 40 + (5-soph)*5
	var signals []model.GemSignal
	if soph <= 3 {
		signals = append(signals, model.GemSignal{
			Signal:   "low_sophistication",
			Evidence: fmt.Sprintf("Marketing sophistication: %.1f/10", p.SophisticationAvg),
		})
	} else {
		signals = append(signals, model.GemSignal{
			Signal:   "moderate_sophistication",
			Evidence: fmt.Sprintf("Marketing sophistication: %.1f/10", p.SophisticationAvg),
		})
	}
	signals = append(signals, model.GemSignal{
		Signal: "company_size", Value: p.CompanySize,
	})

	value := "medium"
	if p.CompanySize == "medium" {
		value = "medium-high"
	}

	return []model.Gem{{
		GemType:      model.GemWeakMarketingLead,
		SenderDomain: p.SenderDomain,
		Score:        capScore(score),
		Explanation: model.GemExplanation{
			GemType: model.GemWeakMarketingLead,
			Summary: fmt.Sprintf("%s (%s) has marketing gaps you could address.",
				p.CompanyName, p.SenderDomain),
			Signals:        signals,
			Confidence:     0.7,
			EstimatedValue: value,
			Urgency:        "low",
		},
		RecommendedActions: []string{"Send audit-style outreach highlighting specific gaps"},
	}}
}

// detectPartnerProgram flags senders advertising a partner or affiliate
// program.
func (d *Detector) detectPartnerProgram(p *model.SenderProfile, ents []model.Entity) []model.Gem {
	hasProgram := p.HasPartnerProgram || len(p.PartnerProgramURLs) > 0 ||
		p.OfferTypeDistribution["partnership"] > 0
	if !hasProgram {
		return nil
	}

	score := 30
	signals := []model.GemSignal{{
		Signal: "partner_program_detected", Evidence: "Partner/affiliate program links found",
	}}
	if len(p.PartnerProgramURLs) > 0 {
		signals = append(signals, model.GemSignal{
			Signal:   "direct_urls",
			Evidence: fmt.Sprintf("%d partner program URL(s)", len(p.PartnerProgramURLs)),
		})
	}
	if commission := commissionEntity(ents); commission != "" {
		score += 10
		signals = append(signals, model.GemSignal{
			Signal: "commission_rate", Evidence: commission,
		})
	}

	return []model.Gem{{
		GemType:      model.GemPartnerProgram,
		SenderDomain: p.SenderDomain,
		Score:        capScore(score),
		Explanation: model.GemExplanation{
			GemType: model.GemPartnerProgram,
			Summary: fmt.Sprintf("%s has a partner/affiliate program you could join.",
				p.CompanyName),
			Signals:        signals,
			Confidence:     0.8,
			EstimatedValue: "medium",
			Urgency:        "low",
		},
		RecommendedActions: []string{"Apply to partner program", "Review commission structure"},
	}}
}

// detectRenewalLeverage flags vendors with an upcoming renewal window.
func (d *Detector) detectRenewalLeverage(p *model.SenderProfile, ents []model.Entity) []model.Gem {
	if !containsString(p.EconomicSegments, model.SegSpendMap) {
		return nil
	}
	days, dateText, ok := nextRenewal(ents, d.now())
	if !ok {
		return nil
	}

	score := 40
	signals := []model.GemSignal{
		{Signal: "renewal_date", Evidence: dateText,
			Value: fmt.Sprintf("%d days out", days)},
		{Signal: "active_vendor", Evidence: "You're an active customer"},
	}

	urgency := "low"
	switch {
	case days <= 30:
		urgency = "high"
	case days <= 60:
		urgency = "medium"
	}

	value := "medium"
	if len(p.MonetarySignals) > 0 {
		value = "high"
	}

	return []model.Gem{{
		GemType:      model.GemRenewalLeverage,
		SenderDomain: p.SenderDomain,
		Score:        capScore(score),
		Explanation: model.GemExplanation{
			GemType: model.GemRenewalLeverage,
			Summary: fmt.Sprintf("Upcoming renewal window with %s — negotiation opportunity.",
				p.CompanyName),
			Signals:        signals,
			Confidence:     0.75,
			EstimatedValue: value,
			Urgency:        urgency,
		},
		RecommendedActions: []string{
			"Prepare negotiation strategy", "Research competitive alternatives",
		},
	}}
}

// detectDistributionChannel flags newsletters, events, and communities
// that could amplify the user's reach.
func (d *Detector) detectDistributionChannel(ctx context.Context, p *model.SenderProfile) ([]model.Gem, error) {
	if !containsString(p.EconomicSegments, model.SegDistribution) || p.TotalMessages < 5 {
		return nil, nil
	}

	score := 30
	signals := []model.GemSignal{{
		Signal: "distribution_channel", Evidence: "Sender is a newsletter/event/community",
	}}
	if p.TotalMessages > 10 {
		score += 15
		signals = append(signals, model.GemSignal{
			Signal:   "active_publication",
			Evidence: fmt.Sprintf("%d messages received", p.TotalMessages),
		})
	}

	opportunity, err := d.contentOpportunity(ctx, p.SenderDomain)
	if err != nil {
		return nil, err
	}
	if opportunity != "" {
		score += 15
		signals = append(signals, model.GemSignal{
			Signal: "content_opportunity", Evidence: opportunity,
		})
	}

	value := "low"
	if p.TotalMessages > 10 {
		value = "medium"
	}

	return []model.Gem{{
		GemType:      model.GemDistributionChannel,
		SenderDomain: p.SenderDomain,
		Score:        capScore(score),
		Explanation: model.GemExplanation{
			GemType: model.GemDistributionChannel,
			Summary: fmt.Sprintf("%s could amplify your reach through their audience.",
				p.CompanyName),
			Signals:        signals,
			Confidence:     0.65,
			EstimatedValue: value,
			Urgency:        "low",
		},
		RecommendedActions: []string{"Pitch guest content or sponsorship"},
	}}, nil
}

// contentOpportunity scans inbound bodies for distribution-content
// phrases like calls for speakers or guest-post invitations.
func (d *Detector) contentOpportunity(ctx context.Context, domain string) (string, error) {
	msgs, err := d.db.ListMessagesByDomain(ctx, domain)
	if err != nil {
		return "", err
	}
	for i := range msgs {
		if msgs[i].IsSent {
			continue
		}
		content, err := d.db.GetContent(ctx, msgs[i].MessageID)
		if err != nil {
			return "", err
		}
		text := msgs[i].BodyText
		if content != nil && content.BodyClean != "" {
			text = content.BodyClean
		}
		if m := profile.FindDistributionSignal(text); m != "" {
			return m, nil
		}
	}
	return "", nil
}

// detectCoMarketing flags senders whose declared audience overlaps the
// user's own.
func (d *Detector) detectCoMarketing(p *model.SenderProfile) []model.Gem {
	if p.Industry == "" || p.TargetAudience == "" || p.CompanySize == "enterprise" {
		return nil
	}
	if d.engagement.YourAudience == "" {
		return nil
	}

	overlap := audienceOverlap(d.engagement.YourAudience, p.TargetAudience)
	if len(overlap) < 2 {
		return nil
	}

	score := 35 + len(overlap)*5
	signals := []model.GemSignal{
		{Signal: "audience_overlap",
			Evidence: "Shared keywords: " + strings.Join(topN(overlap, 5), ", ")},
		{Signal: "target_audience", Evidence: p.TargetAudience},
	}
	if containsString(p.EconomicSegments, model.SegDistribution) || p.TotalMessages >= 5 {
		score += 10
		signals = append(signals, model.GemSignal{
			Signal: "has_distribution", Evidence: "Audience reach through their own channels",
		})
	}

	return []model.Gem{{
		GemType:      model.GemCoMarketing,
		SenderDomain: p.SenderDomain,
		Score:        capScore(score),
		Explanation: model.GemExplanation{
			GemType: model.GemCoMarketing,
			Summary: fmt.Sprintf("%s targets a similar audience — co-marketing opportunity.",
				p.CompanyName),
			Signals:        signals,
			Confidence:     0.6,
			EstimatedValue: "medium",
			Urgency:        "low",
		},
		RecommendedActions: []string{
			"Propose co-marketing campaign", "Explore content collaboration",
		},
	}}
}

// detectIndustryIntel flags senders in a saturated industry segment; in
// aggregate they feed an industry analysis report.
func (d *Detector) detectIndustryIntel(p *model.SenderProfile, industryCounts map[string]int) []model.Gem {
	if p.Industry == "" || industryCounts[p.Industry] < industrySaturationMin {
		return nil
	}

	return []model.Gem{{
		GemType:      model.GemIndustryIntel,
		SenderDomain: p.SenderDomain,
		Score:        20,
		Explanation: model.GemExplanation{
			GemType: model.GemIndustryIntel,
			Summary: fmt.Sprintf("%s provides market intelligence for the %s industry.",
				p.CompanyName, p.Industry),
			Signals: []model.GemSignal{{
				Signal: "industry_saturation",
				Value:  fmt.Sprintf("%d profiles in %s", industryCounts[p.Industry], p.Industry),
			}},
			Confidence:     0.5,
			EstimatedValue: "low",
			Urgency:        "low",
		},
		RecommendedActions: []string{"Include in industry analysis report"},
	}}
}

// detectProcurementSignal flags active-buying language from a sender.
func (d *Detector) detectProcurementSignal(p *model.SenderProfile, ents []model.Entity) []model.Gem {
	var (
		signals        []model.GemSignal
		securityReview bool
	)
	for _, e := range ents {
		if e.Type != model.EntityProcurement {
			continue
		}
		if len(signals) < 5 {
			signals = append(signals, model.GemSignal{
				Signal: "procurement_keyword", Evidence: e.Value,
			})
		}
		if e.Normalized == "security_review" {
			securityReview = true
		}
	}
	if len(signals) == 0 {
		return nil
	}

	score := 50
	if securityReview {
		score += 15
		signals = append(signals, model.GemSignal{
			Signal: "security_review", Evidence: "Security/compliance review language",
		})
	}

	return []model.Gem{{
		GemType:      model.GemProcurementSignal,
		SenderDomain: p.SenderDomain,
		Score:        capScore(score),
		Explanation: model.GemExplanation{
			GemType: model.GemProcurementSignal,
			Summary: fmt.Sprintf("Procurement signals detected from %s.", p.CompanyName),
			Signals:        signals,
			Confidence:     0.7,
			EstimatedValue: "high",
			Urgency:        "high",
		},
		RecommendedActions: []string{
			"Review procurement context", "Prepare response if applicable",
		},
	}}
}

func hasDecisionMaker(ents []model.Entity) bool {
	for _, e := range ents {
		if e.Type == model.EntityPerson && strings.Contains(e.Context, "decision_maker") {
			return true
		}
	}
	return false
}

// commissionEntity returns the first percentage-style money entity, the
// usual shape of an affiliate commission mention.
func commissionEntity(ents []model.Entity) string {
	for _, e := range ents {
		if e.Type == model.EntityMoney && e.Context == "percentage offer" {
			return e.Value
		}
	}
	return ""
}

var renewalDateLayouts = []string{
	"January 2, 2006", "January 2 2006", "Jan 2, 2006", "Jan 2 2006",
	"1/2/2006", "1/2/06", "2006-01-02",
}

// nextRenewal finds the nearest future renewal date among the domain's
// date entities. Returns days until renewal and the source text.
func nextRenewal(ents []model.Entity, now time.Time) (days int, dateText string, ok bool) {
	best := time.Time{}
	for _, e := range ents {
		if e.Type != model.EntityDate || !strings.HasPrefix(e.Normalized, "renewal") ||
			!strings.HasSuffix(e.Normalized, ":future") {
			continue
		}
		for _, layout := range renewalDateLayouts {
			t, err := time.Parse(layout, e.Value)
			if err != nil || !t.After(now) {
				continue
			}
			if best.IsZero() || t.Before(best) {
				best = t
				dateText = e.Value
			}
			break
		}
	}
	if best.IsZero() {
		return 0, "", false
	}
	return int(best.Sub(now).Hours() / 24), dateText, true
}

var audienceStopWords = map[string]bool{
	"and": true, "the": true, "for": true, "to": true, "of": true, "a": true,
	"an": true, "in": true, "on": true, "with": true, "who": true,
	"that": true, "are": true, "is": true,
}

// audienceOverlap returns the sorted shared keywords of two audience
// descriptions, stop words removed.
func audienceOverlap(yours, theirs string) []string {
	mine := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(yours)) {
		if !audienceStopWords[w] {
			mine[w] = true
		}
	}
	var shared []string
	seen := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(theirs)) {
		if mine[w] && !audienceStopWords[w] && !seen[w] {
			seen[w] = true
			shared = append(shared, w)
		}
	}
	sort.Strings(shared)
	return shared
}

func industryTargeted(industry string, targets []string) bool {
	if len(targets) == 0 {
		return true
	}
	for _, t := range targets {
		if strings.EqualFold(t, industry) {
			return true
		}
	}
	return false
}

func topN(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func messageIDs(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i := range msgs {
		out[i] = msgs[i].MessageID
	}
	return out
}

func capScore(score int) int {
	if score > 100 {
		return 100
	}
	return score
}
