// Package relationship classifies sender domains by commerce direction:
// vendors the user pays, prospects approaching the user, cold sellers, and
// suppressed infrastructure. The assignment gates which gems a profile may
// produce downstream.
package relationship

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/store"
)

// Auto-detections at or above this confidence are written when applying.
const autoApplyThreshold = 0.6

// contentSampleSize bounds how many message bodies each signal scan reads.
const contentSampleSize = 10

// Signal is one piece of evidence behind a proposal.
type Signal struct {
	Name     string `json:"signal"`
	Evidence string `json:"evidence,omitempty"`
}

// Proposal is a detected relationship for one sender domain.
type Proposal struct {
	SenderDomain string                 `json:"sender_domain"`
	Type         model.RelationshipType `json:"proposed_type"`
	Confidence   float64                `json:"confidence"`
	Signals      []Signal               `json:"signals"`
}

var (
	vendorPatterns = compile(
		`(?i)\b(?:invoice|receipt|payment|subscription|billing|renewal)\b`,
		`(?i)\byour (?:account|plan|subscription|license|trial)\b`,
		`(?i)\bservice (?:update|notification|alert)\b`,
		`(?i)\b(?:onboarding|getting started|welcome to)\b`,
		`(?i)\b(?:support ticket|case #|helpdesk)\b`,
	)
	prospectPatterns = compile(
		`(?i)\binterested in (?:your|learning about)\b`,
		`(?i)\bcan you (?:help|tell me|share)\b`,
		`(?i)\blooking for (?:a|an|someone|help)\b`,
		`(?i)\breferr(?:ed|al) (?:by|from)\b`,
		`(?i)\bsaw your (?:work|talk|article|post)\b`,
	)
	sellingPatterns = compile(
		`(?i)\bI (?:wanted to|thought you|noticed your)\b`,
		`(?i)\b(?:quick question|touching base|reaching out)\b`,
		`(?i)\bbook a (?:demo|call|meeting)\b`,
		`(?i)\b(?:free trial|special offer|limited time)\b`,
		`(?i)\bwould you be (?:open|interested)\b`,
	)
)

// Detector proposes relationship types for profiled senders.
type Detector struct {
	db    store.Store
	known KnownEntities
	log   *zap.Logger
}

func NewDetector(db store.Store, known KnownEntities) *Detector {
	return &Detector{
		db:    db,
		known: known,
		log:   zap.L().Named("relationship"),
	}
}

// Detect classifies every sender profile and returns one proposal per
// domain. Nothing is written; use Apply for that.
func (d *Detector) Detect(ctx context.Context) ([]Proposal, error) {
	profiles, err := d.db.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}

	proposals := make([]Proposal, 0, len(profiles))
	for i := range profiles {
		if ctx.Err() != nil {
			return proposals, ctx.Err()
		}
		p, err := d.classify(ctx, &profiles[i])
		if err != nil {
			return proposals, err
		}
		proposals = append(proposals, p)
	}
	return proposals, nil
}

// Apply writes high-confidence proposals to the relationship table.
// Manually assigned rows are never overwritten.
func (d *Detector) Apply(ctx context.Context, proposals []Proposal) (int, error) {
	applied := 0
	for _, p := range proposals {
		if p.Confidence < autoApplyThreshold {
			continue
		}
		existing, err := d.db.GetRelationship(ctx, p.SenderDomain)
		if err != nil {
			return applied, err
		}
		if existing != nil && existing.Source == model.RelSourceManual {
			continue
		}

		err = d.db.UpsertRelationship(ctx, &model.SenderRelationship{
			SenderDomain: p.SenderDomain,
			Type:         p.Type,
			Note:         autoNote(p.Signals),
			SuppressGems: p.Type.Suppressed(),
			Source:       model.RelSourceAutoDetected,
			Confidence:   p.Confidence,
		})
		if err != nil {
			return applied, err
		}
		applied++
		d.log.Info("relationship applied",
			zap.String("sender_domain", p.SenderDomain),
			zap.String("type", string(p.Type)),
			zap.Float64("confidence", p.Confidence))
	}
	return applied, nil
}

func (d *Detector) classify(ctx context.Context, p *model.SenderProfile) (Proposal, error) {
	out := Proposal{SenderDomain: p.SenderDomain}

	// An existing assignment wins absolutely, whatever its source.
	existing, err := d.db.GetRelationship(ctx, p.SenderDomain)
	if err != nil {
		return out, err
	}
	if existing != nil {
		out.Type = existing.Type
		out.Confidence = 1.0
		out.Signals = []Signal{{Name: "existing_classification"}}
		return out, nil
	}

	if category := d.known.Match(p.SenderDomain); category != "" {
		out.Type = categoryRelationships[category]
		out.Confidence = 0.9
		out.Signals = []Signal{{
			Name:     "known_entity:" + category,
			Evidence: p.SenderDomain,
		}}
		return out, nil
	}

	bodies, coldOutreach, err := d.sampleContent(ctx, p.SenderDomain)
	if err != nil {
		return out, err
	}

	vendorScore, vendorSignals := scanVendor(p, bodies)
	prospectScore, prospectSignals := scanProspect(p, bodies)
	sellingScore, sellingSignals := scanSelling(p, bodies, coldOutreach)

	out.Type, out.Confidence, out.Signals = model.RelMyVendor, vendorScore, vendorSignals
	if prospectScore > out.Confidence {
		out.Type, out.Confidence, out.Signals = model.RelInboundProspect, prospectScore, prospectSignals
	}
	if sellingScore > out.Confidence {
		out.Type, out.Confidence, out.Signals = model.RelSellingToMe, sellingScore, sellingSignals
	}
	if out.Confidence >= 0.3 {
		return out, nil
	}

	// Nothing decisive. Community and mutual-engagement fallbacks before
	// giving up.
	for _, seg := range p.EconomicSegments {
		if seg == model.SegDistribution {
			return Proposal{
				SenderDomain: p.SenderDomain,
				Type:         model.RelCommunity,
				Confidence:   0.6,
				Signals:      []Signal{{Name: "distribution_segment"}},
			}, nil
		}
	}
	if p.ThreadInitiationRatio > 0.2 && p.ThreadInitiationRatio < 0.8 && p.UserReplyRate > 0.5 {
		return Proposal{
			SenderDomain: p.SenderDomain,
			Type:         model.RelWarmContact,
			Confidence:   0.5,
			Signals: []Signal{{
				Name: "bidirectional_engagement",
				Evidence: fmt.Sprintf("initiation=%.2f, reply_rate=%.2f",
					p.ThreadInitiationRatio, p.UserReplyRate),
			}},
		}, nil
	}

	return Proposal{
		SenderDomain: p.SenderDomain,
		Type:         model.RelUnknown,
		Confidence:   0.2,
	}, nil
}

// domainBodies splits sampled message text by direction. Inbound text
// feeds all three scans; vendor patterns additionally match the user's own
// replies ("re: your invoice").
type domainBodies struct {
	all     []string
	inbound []string
}

func (d *Detector) sampleContent(ctx context.Context, domain string) (domainBodies, int, error) {
	var bodies domainBodies
	msgs, err := d.db.ListMessagesByDomain(ctx, domain)
	if err != nil {
		return bodies, 0, err
	}

	coldOutreach := 0
	for i := range msgs {
		msg := &msgs[i]

		cls, err := d.db.GetClassification(ctx, msg.MessageID)
		if err != nil {
			return bodies, 0, err
		}
		if cls != nil && cls.SenderIntent == model.IntentColdOutreach {
			coldOutreach++
		}

		if len(bodies.all) >= contentSampleSize {
			continue
		}
		text := msg.BodyText
		content, err := d.db.GetContent(ctx, msg.MessageID)
		if err != nil {
			return bodies, 0, err
		}
		if content != nil && content.BodyClean != "" {
			text = content.BodyClean
		}
		if text == "" {
			continue
		}
		bodies.all = append(bodies.all, text)
		if !msg.IsSent {
			bodies.inbound = append(bodies.inbound, text)
		}
	}
	return bodies, coldOutreach, nil
}

func scanVendor(p *model.SenderProfile, bodies domainBodies) (float64, []Signal) {
	var signals []Signal
	score := 0.0

	if p.ThreadInitiationRatio > 0.5 {
		signals = append(signals, Signal{
			Name:     "user_initiates_contact",
			Evidence: fmt.Sprintf("ratio=%.2f", p.ThreadInitiationRatio),
		})
		score += 0.3
	}

	hits := 0
	for _, text := range bodies.all {
		if m := firstMatch(vendorPatterns, text); m != "" {
			hits++
			if len(signals) < 5 {
				signals = append(signals, Signal{Name: "vendor_content", Evidence: m})
			}
		}
	}
	switch {
	case hits >= 3:
		score += 0.4
	case hits >= 1:
		score += 0.2
	}

	for _, seg := range p.EconomicSegments {
		if seg == model.SegSpendMap {
			signals = append(signals, Signal{Name: "spend_map_segment"})
			score += 0.2
			break
		}
	}
	return clamp1(score), signals
}

func scanProspect(p *model.SenderProfile, bodies domainBodies) (float64, []Signal) {
	var signals []Signal
	score := 0.0

	if p.ThreadInitiationRatio < 0.3 {
		signals = append(signals, Signal{
			Name:     "they_initiate_contact",
			Evidence: fmt.Sprintf("ratio=%.2f", p.ThreadInitiationRatio),
		})
		score += 0.2
	}
	if p.UserReplyRate > 0.5 {
		signals = append(signals, Signal{
			Name:     "high_user_engagement",
			Evidence: fmt.Sprintf("reply_rate=%.2f", p.UserReplyRate),
		})
		score += 0.2
	}

	for _, text := range bodies.inbound {
		if m := firstMatch(prospectPatterns, text); m != "" {
			signals = append(signals, Signal{Name: "prospect_language", Evidence: m})
			score += 0.3
		}
	}

	if (p.CompanySize == "small" || p.CompanySize == "") && p.TotalMessages <= 5 {
		signals = append(signals, Signal{Name: "small_unknown_company"})
		score += 0.1
	}
	return clamp1(score), signals
}

func scanSelling(p *model.SenderProfile, bodies domainBodies, coldOutreach int) (float64, []Signal) {
	var signals []Signal
	score := 0.0

	if p.UserReplyRate < 0.1 {
		signals = append(signals, Signal{
			Name:     "no_user_participation",
			Evidence: fmt.Sprintf("reply_rate=%.2f", p.UserReplyRate),
		})
		score += 0.3
	}
	if p.TotalMessages >= 5 && p.UserReplyRate < 0.2 {
		signals = append(signals, Signal{
			Name:     "high_volume_one_way",
			Evidence: fmt.Sprintf("%d messages, no replies", p.TotalMessages),
		})
		score += 0.2
	}

	for _, text := range bodies.inbound {
		if m := firstMatch(sellingPatterns, text); m != "" {
			signals = append(signals, Signal{Name: "selling_language", Evidence: m})
			score += 0.2
		}
	}

	if coldOutreach > 0 {
		signals = append(signals, Signal{
			Name:     "cold_outreach_intent",
			Evidence: fmt.Sprintf("%d messages", coldOutreach),
		})
		score += 0.3
	}
	return clamp1(score), signals
}

func autoNote(signals []Signal) string {
	note := "Auto-detected:"
	for i, s := range signals {
		if i == 3 {
			break
		}
		if i > 0 {
			note += ","
		}
		note += " " + s.Name
	}
	return note
}

func firstMatch(patterns []*regexp.Regexp, text string) string {
	for _, p := range patterns {
		if m := p.FindString(text); m != "" {
			if len(m) > 60 {
				m = m[:60]
			}
			return m
		}
	}
	return ""
}

func clamp1(f float64) float64 {
	if f > 1 {
		return 1
	}
	return f
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}
