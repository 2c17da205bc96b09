// Package segment assigns economic segments to sender profiles and applies
// the relationship-aware opportunity scoring formula to detected gems.
package segment

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/gemsieve/internal/config"
	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/store"
)

// churnedAfterDays is how long a spend-map vendor can stay silent before
// it counts as churned.
const churnedAfterDays = 180

// Segmenter assigns (segment, sub_segment, confidence) rows per profile.
type Segmenter struct {
	db     store.Store
	custom []CustomSegment
	log    *zap.Logger
	now    func() time.Time
}

func NewSegmenter(db store.Store, customFile string) (*Segmenter, error) {
	custom, err := LoadCustomSegments(customFile)
	if err != nil {
		return nil, err
	}
	return &Segmenter{
		db:     db,
		custom: custom,
		log:    zap.L().Named("segment"),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run reassigns segments for every profile. Returns the number of segment
// rows written.
func (s *Segmenter) Run(ctx context.Context) (int, error) {
	profiles, err := s.db.ListProfiles(ctx)
	if err != nil {
		return 0, err
	}

	written := 0
	for i := range profiles {
		if ctx.Err() != nil {
			return written, ctx.Err()
		}
		p := &profiles[i]

		segs, err := s.assign(ctx, p)
		if err != nil {
			return written, err
		}
		for _, cs := range s.custom {
			if cs.Matches(p) {
				segs = append(segs, model.SenderSegment{
					SenderDomain: p.SenderDomain,
					Segment:      "custom:" + cs.Name,
					SubSegment:   cs.Priority,
					Confidence:   0.8,
				})
			}
		}

		if err := s.db.ReplaceSegments(ctx, p.SenderDomain, segs); err != nil {
			return written, err
		}
		written += len(segs)
	}

	s.log.Info("segments assigned",
		zap.Int("rows", written), zap.Int("profiles", len(profiles)))
	return written, nil
}

func (s *Segmenter) assign(ctx context.Context, p *model.SenderProfile) ([]model.SenderSegment, error) {
	var out []model.SenderSegment
	add := func(segment, sub string, conf float64) {
		out = append(out, model.SenderSegment{
			SenderDomain: p.SenderDomain,
			Segment:      segment,
			SubSegment:   sub,
			Confidence:   conf,
		})
	}

	for _, seg := range p.EconomicSegments {
		switch seg {
		case model.SegSpendMap:
			sub, conf := s.spendSub(p)
			add(seg, sub, conf)
		case model.SegPartnerMap:
			if len(p.PartnerProgramURLs) > 0 {
				add(seg, "referral_program", 0.8)
			} else {
				add(seg, "general", 0.5)
			}
		case model.SegProspectMap:
			sub, conf := prospectSub(p.SophisticationAvg)
			add(seg, sub, conf)
		case model.SegDistribution:
			for _, sc := range distributionSubs(p.OfferTypeDistribution) {
				add(seg, sc.sub, sc.conf)
			}
		case model.SegProcurement:
			subs, err := s.procurementSubs(ctx, p.SenderDomain)
			if err != nil {
				return nil, err
			}
			for _, sc := range subs {
				add(seg, sc.sub, sc.conf)
			}
		default:
			add(seg, "general", 0.5)
		}
	}

	dormant, err := s.db.ListGems(ctx, store.GemFilter{
		SenderDomain: p.SenderDomain,
		GemType:      model.GemDormantWarmThread,
	})
	if err != nil {
		return nil, err
	}
	if len(dormant) > 0 {
		add(model.SegDormantThreads, "unanswered", 0.9)
	}

	return out, nil
}

func (s *Segmenter) spendSub(p *model.SenderProfile) (string, float64) {
	if !p.LastContact.IsZero() {
		days := int(s.now().Sub(p.LastContact).Hours() / 24)
		if days > churnedAfterDays {
			return "churned_vendor", 0.8
		}
	}
	if len(p.RenewalDates) > 0 {
		return "upcoming_renewal", 0.9
	}
	return "active_subscription", 0.7
}

func prospectSub(soph float64) (string, float64) {
	switch {
	case soph <= 3:
		return "hot_lead", 0.8
	case soph <= 5:
		return "warm_prospect", 0.6
	default:
		return "intelligence_value", 0.4
	}
}

type subConf struct {
	sub  string
	conf float64
}

func distributionSubs(offers map[string]int) []subConf {
	var out []subConf
	if offers["newsletter"] > 0 || offers["digest"] > 0 {
		out = append(out, subConf{"newsletter", 0.8})
	}
	if offers["event_invitation"] > 0 || offers["event"] > 0 || offers["webinar"] > 0 {
		out = append(out, subConf{"event_organizer", 0.7})
	}
	if offers["community"] > 0 || offers["forum"] > 0 {
		out = append(out, subConf{"community", 0.6})
	}
	if len(out) == 0 {
		out = append(out, subConf{"newsletter", 0.7})
	}
	return out
}

func (s *Segmenter) procurementSubs(ctx context.Context, domain string) ([]subConf, error) {
	ents, err := s.db.ListEntitiesByDomain(ctx, domain)
	if err != nil {
		return nil, err
	}

	var keywords strings.Builder
	for _, e := range ents {
		if e.Type == model.EntityProcurement {
			keywords.WriteString(strings.ToLower(e.Value))
			keywords.WriteByte(' ')
		}
	}
	text := keywords.String()
	if text == "" {
		return []subConf{{"evaluation", 0.6}}, nil
	}

	var out []subConf
	if containsAny(text, "security", "compliance", "soc", "gdpr", "hipaa") {
		out = append(out, subConf{"security_compliance", 0.8})
	}
	if containsAny(text, "rfp", "request for proposal", "rfq", "bid") {
		out = append(out, subConf{"formal_rfp", 0.9})
	}
	if containsAny(text, "evaluation", "trial", "poc", "proof of concept", "pilot") {
		out = append(out, subConf{"evaluation", 0.7})
	}
	if len(out) == 0 {
		out = append(out, subConf{"evaluation", 0.6})
	}
	return out, nil
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// Scorer overwrites each gem's score with the sender-level opportunity
// score, capped by relationship type.
type Scorer struct {
	db      store.Store
	scoring config.ScoringConfig
	log     *zap.Logger
	now     func() time.Time
}

func NewScorer(db store.Store, scoring config.ScoringConfig) *Scorer {
	return &Scorer{
		db:      db,
		scoring: scoring,
		log:     zap.L().Named("score"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run rescores every gem. Returns the number of gems updated.
func (s *Scorer) Run(ctx context.Context) (int, error) {
	gems, err := s.db.ListGems(ctx, store.GemFilter{})
	if err != nil {
		return 0, err
	}

	rels := map[string]*model.SenderRelationship{}
	relRows, err := s.db.ListRelationships(ctx, "")
	if err != nil {
		return 0, err
	}
	for i := range relRows {
		rels[relRows[i].SenderDomain] = &relRows[i]
	}

	byDomain := map[string][]model.Gem{}
	for _, g := range gems {
		byDomain[g.SenderDomain] = append(byDomain[g.SenderDomain], g)
	}

	scored := 0
	for _, g := range gems {
		if ctx.Err() != nil {
			return scored, ctx.Err()
		}
		p, err := s.db.GetProfile(ctx, g.SenderDomain)
		if err != nil {
			return scored, err
		}
		if p == nil {
			continue
		}

		score := s.OpportunityScore(p, byDomain[g.SenderDomain], rels[g.SenderDomain])
		if err := s.db.UpdateGemScore(ctx, g.ID, score); err != nil {
			return scored, err
		}
		scored++
	}

	s.log.Info("gems scored", zap.Int("gems", scored))
	return scored, nil
}

// OpportunityScore computes the sender-level score: inbound signal (max
// 30), base profile (max 40), gem bonus (max 30), then the relationship
// cap. Suppressed relationships always score zero.
func (s *Scorer) OpportunityScore(p *model.SenderProfile, senderGems []model.Gem, rel *model.SenderRelationship) int {
	relType := model.RelUnknown
	if rel != nil {
		if rel.SuppressGems {
			return 0
		}
		relType = rel.Type
	}
	if relType.Suppressed() {
		return 0
	}

	w := s.scoring.Weights
	score := 0.0

	// Inbound signal: senders who open threads less and get replies more
	// look like real prospects.
	score += (1.0 - p.ThreadInitiationRatio) * float64(w.InboundInitiation)
	reply := p.UserReplyRate
	if reply > 1 {
		reply = 1
	}
	score += reply * float64(w.InboundEngagement)

	// Base profile.
	switch p.CompanySize {
	case "small":
		score += float64(w.Reachability)
	case "medium":
		score += float64(w.Reachability) * 0.7
	default:
		score += float64(w.Reachability) * 0.2
	}

	if industryTargeted(p.Industry, s.scoring.TargetIndustries) {
		score += float64(w.Relevance)
	} else {
		score += float64(w.Relevance) * 0.25
	}

	if !p.LastContact.IsZero() {
		days := int(s.now().Sub(p.LastContact).Hours() / 24)
		switch {
		case days <= 30:
			score += float64(w.Recency)
		case days <= 90:
			score += float64(w.Recency) * 0.5
		}
	}

	if hasRoledContact(p.KnownContacts) {
		score += float64(w.KnownContacts)
	} else if len(p.KnownContacts) > 0 {
		score += float64(w.KnownContacts) * 0.2
	}

	if opportunitySide(relType) && len(p.MonetarySignals) > 0 {
		score += float64(w.MonetarySignals)
	}

	// Gem bonus.
	types := map[model.GemType]bool{}
	for _, g := range senderGems {
		types[g.GemType] = true
	}
	diversity := len(types) * w.GemDiversityPer
	if diversity > w.GemDiversityCap {
		diversity = w.GemDiversityCap
	}
	score += float64(diversity)
	if types[model.GemDormantWarmThread] {
		score += float64(w.DormantThreadBonus)
	}
	if types[model.GemPartnerProgram] {
		score += float64(w.PartnerBonus)
	}
	if types[model.GemProcurementSignal] {
		score += float64(w.ProcurementBonus)
	}

	final := int(score)
	if cap := s.scoring.CapFor(string(relType)); final > cap {
		final = cap
	}
	if final > 100 {
		final = 100
	}
	if final < 0 {
		final = 0
	}
	return final
}

// opportunitySide reports whether monetary signals count toward the
// score for this relationship. Vendors mentioning money are billing the
// user, not signaling budget.
func opportunitySide(rel model.RelationshipType) bool {
	switch rel {
	case model.RelInboundProspect, model.RelWarmContact,
		model.RelPotentialPartner, model.RelUnknown:
		return true
	}
	return false
}

func hasRoledContact(contacts []model.Contact) bool {
	for _, c := range contacts {
		if c.Role != "" {
			return true
		}
	}
	return false
}

func industryTargeted(industry string, targets []string) bool {
	for _, t := range targets {
		if strings.EqualFold(t, industry) {
			return true
		}
	}
	return false
}
