// Package profile aggregates per-message analysis into one intelligence
// profile per sender domain, including the blended marketing
// sophistication score and thread engagement metrics.
package profile

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/store"
)

// Builder is the profiling stage.
type Builder struct {
	db  store.Store
	log *zap.Logger
}

// NewBuilder builds the stage.
func NewBuilder(db store.Store) *Builder {
	return &Builder{db: db, log: zap.L().Named("profile")}
}

// Run rebuilds the profile for every known sender domain. Profiles are
// recomputed from scratch on each run; they are pure aggregates.
func (b *Builder) Run(ctx context.Context) (int, error) {
	domains, err := b.db.ListSenderDomains(ctx)
	if err != nil {
		return 0, err
	}

	built := 0
	for _, domain := range domains {
		if err := ctx.Err(); err != nil {
			return built, err
		}
		p, err := b.Build(ctx, domain)
		if err != nil {
			return built, err
		}
		if p == nil {
			continue
		}
		if err := b.db.UpsertProfile(ctx, p); err != nil {
			return built, err
		}
		built++
	}
	b.log.Info("profiles built", zap.Int("domains", built))
	return built, nil
}

// Build assembles the profile for one domain, or nil when the domain has
// no messages.
func (b *Builder) Build(ctx context.Context, domain string) (*model.SenderProfile, error) {
	msgs, err := b.db.ListMessagesByDomain(ctx, domain)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Date.Before(msgs[j].Date) })

	p := &model.SenderProfile{
		SenderDomain:  domain,
		PrimaryEmail:  msgs[0].FromAddress,
		ReplyToEmail:  msgs[0].ReplyTo,
		TotalMessages: len(msgs),
		FirstContact:  msgs[0].Date,
		LastContact:   msgs[len(msgs)-1].Date,
		CompanyName:   inferCompanyName(domain, msgs),
	}

	if tmp, err := b.db.GetSenderTemporal(ctx, domain); err != nil {
		return nil, err
	} else if tmp != nil {
		p.AvgFrequencyDays = tmp.AvgFrequencyDays
	}

	classifications, err := b.collectClassifications(ctx, msgs)
	if err != nil {
		return nil, err
	}
	contents, err := b.collectContents(ctx, msgs)
	if err != nil {
		return nil, err
	}
	aggregateClassifications(p, classifications)
	aggregateContent(p, contents)
	b.aggregateWarmSignals(p, msgs, contents)

	ents, err := b.db.ListEntitiesByDomain(ctx, domain)
	if err != nil {
		return nil, err
	}
	aggregateEntities(p, ents)

	metas, err := b.db.ListMetadataByDomain(ctx, domain)
	if err != nil {
		return nil, err
	}
	aggregateMetadata(p, metas, classifications, contents)

	if err := b.threadMetrics(ctx, p); err != nil {
		return nil, err
	}

	p.EconomicSegments = economicSegments(p, classifications)
	return p, nil
}

func (b *Builder) collectClassifications(ctx context.Context, msgs []model.Message) ([]model.Classification, error) {
	var out []model.Classification
	for i := range msgs {
		c, err := b.db.GetClassification(ctx, msgs[i].MessageID)
		if err != nil {
			return nil, err
		}
		if c != nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (b *Builder) collectContents(ctx context.Context, msgs []model.Message) (map[string]*model.Content, error) {
	out := map[string]*model.Content{}
	for i := range msgs {
		c, err := b.db.GetContent(ctx, msgs[i].MessageID)
		if err != nil {
			return nil, err
		}
		if c != nil {
			out[msgs[i].MessageID] = c
		}
	}
	return out, nil
}

// aggregateClassifications fills the AI-derived fields: majority votes,
// latest non-empty descriptions, averages, and the sophistication trend.
func aggregateClassifications(p *model.SenderProfile, cls []model.Classification) {
	var industries, sizes, productTypes []string
	var sophScores []int
	var confSum float64
	confCount := 0

	for _, c := range cls {
		industries = append(industries, c.Industry)
		sizes = append(sizes, c.CompanySize)
		productTypes = append(productTypes, c.ProductType)
		if c.MarketingSophistication > 0 {
			sophScores = append(sophScores, c.MarketingSophistication)
		}
		if c.AIConfidence > 0 {
			confSum += c.AIConfidence
			confCount++
		}
		if c.ProductDescription != "" {
			p.ProductDescription = c.ProductDescription
		}
		if c.TargetAudience != "" {
			p.TargetAudience = c.TargetAudience
		}
		if len(c.PainPoints) > 0 {
			p.PainPoints = c.PainPoints
		}
		p.HasPartnerProgram = p.HasPartnerProgram || c.PartnerProgramDetected
		p.RenewalSignalDetected = p.RenewalSignalDetected || c.RenewalSignalDetected
	}

	p.Industry = majorityVote(industries)
	p.CompanySize = majorityVote(sizes)
	p.ProductType = majorityVote(productTypes)
	if confCount > 0 {
		p.AIConfidenceAvg = confSum / float64(confCount)
	}
	p.SophisticationTrend = sophisticationTrend(sophScores)
}

// sophisticationTrend compares the first and second halves of the
// chronological score series.
func sophisticationTrend(scores []int) string {
	if len(scores) < 3 {
		return "stable"
	}
	half := len(scores) / 2
	first := avgInts(scores[:half])
	second := avgInts(scores[half:])
	switch {
	case second-first > 1:
		return "improving"
	case first-second > 1:
		return "declining"
	default:
		return "stable"
	}
}

const maxStoredCTAs = 50

func aggregateContent(p *model.SenderProfile, contents map[string]*model.Content) {
	offers := map[string]int{}
	var ctas []string
	seenCTA := map[string]bool{}
	utm := map[string]bool{}
	partnerURLs := map[string]bool{}
	social := map[string]string{}

	for _, c := range contents {
		for _, o := range c.OfferTypes {
			offers[o]++
		}
		for _, cta := range c.CTATexts {
			if !seenCTA[cta] && len(ctas) < maxStoredCTAs {
				seenCTA[cta] = true
				ctas = append(ctas, cta)
			}
		}
		for _, u := range c.UTMCampaigns {
			utm[u] = true
		}
		for _, u := range c.LinkIntents["partner_program"] {
			partnerURLs[u] = true
		}
		for platform, link := range c.SocialLinks {
			if _, ok := social[platform]; !ok {
				social[platform] = link
			}
		}
		if c.HasPersonalization {
			p.HasPersonalization = true
		}
		if c.PhysicalAddress != "" {
			p.PhysicalAddress = c.PhysicalAddress
		}
	}

	sort.Strings(ctas)
	p.OfferTypeDistribution = offers
	p.CTATextsAll = ctas
	p.UTMCampaignNames = sortedKeys(utm)
	p.PartnerProgramURLs = sortedKeys(partnerURLs)
	p.SocialLinks = social
	p.HasPartnerProgram = p.HasPartnerProgram || len(partnerURLs) > 0
}

// aggregateWarmSignals scans every message body for the warm-signal
// taxonomy and keeps the categories that occurred anywhere.
func (b *Builder) aggregateWarmSignals(p *model.SenderProfile, msgs []model.Message, contents map[string]*model.Content) {
	seen := map[string]bool{}
	var warm []string
	for i := range msgs {
		text := msgs[i].BodyText
		if c, ok := contents[msgs[i].MessageID]; ok && c.BodyClean != "" {
			text = c.BodyClean
		}
		for _, hit := range ScanWarm(text) {
			if !seen[hit.Category] {
				seen[hit.Category] = true
				warm = append(warm, hit.Category)
			}
		}
	}
	p.WarmSignals = warm
}

var (
	contextRel   = regexp.MustCompile(`\((automated|decision_maker|vendor_contact|peer)\)`)
	contextEmail = regexp.MustCompile(`<([^>]+)>`)
)

// aggregateEntities collapses person entities into ranked contacts and
// collects monetary and renewal signals.
func aggregateEntities(p *model.SenderProfile, ents []model.Entity) {
	roleByMessage := map[string]string{}
	for _, e := range ents {
		if e.Type == model.EntityRole {
			if _, ok := roleByMessage[e.MessageID]; !ok {
				roleByMessage[e.MessageID] = e.Value
			}
		}
	}

	type rankedContact struct {
		contact model.Contact
		rank    int
	}
	var contacts []rankedContact
	seenNames := map[string]bool{}

	for _, e := range ents {
		switch e.Type {
		case model.EntityPerson:
			key := strings.ToLower(e.Value)
			if key == "" || seenNames[key] {
				continue
			}
			seenNames[key] = true

			rel := ""
			if m := contextRel.FindStringSubmatch(e.Context); m != nil {
				rel = m[1]
			}
			if rel == "automated" {
				continue
			}

			c := model.Contact{Name: e.Value}
			if m := contextEmail.FindStringSubmatch(e.Context); m != nil {
				c.Email = m[1]
			}
			if role, ok := roleByMessage[e.MessageID]; ok {
				c.Role = role
			}
			contacts = append(contacts, rankedContact{contact: c, rank: model.ContactRank(rel)})

		case model.EntityMoney:
			p.MonetarySignals = append(p.MonetarySignals, e.Value)

		case model.EntityDate:
			if strings.HasPrefix(e.Normalized, "renewal") ||
				strings.HasPrefix(e.Normalized, "expiration") {
				p.RenewalDates = append(p.RenewalDates, e.Value)
			}
		}
	}

	sort.SliceStable(contacts, func(i, j int) bool { return contacts[i].rank < contacts[j].rank })
	for _, rc := range contacts {
		p.KnownContacts = append(p.KnownContacts, rc.contact)
	}
}

// aggregateMetadata fills ESP, authentication quality, and the blended
// sophistication score.
func aggregateMetadata(p *model.SenderProfile, metas []model.Metadata,
	cls []model.Classification, contents map[string]*model.Content) {

	var meta *model.Metadata
	if len(metas) > 0 {
		meta = &metas[0]
		p.ESPUsed = meta.ESPIdentified
		p.UnsubscribeURL = meta.ListUnsubscribeURL
		p.AuthenticationQuality = authQuality(meta)
	}

	maxComplexity := 0
	for _, c := range contents {
		if c.TemplateComplexity > maxComplexity {
			maxComplexity = c.TemplateComplexity
		}
	}

	in := SophisticationInput{
		HasPersonalization: p.HasPersonalization,
		HasUTM:             len(p.UTMCampaignNames) > 0,
		TemplateComplexity: maxComplexity,
		UniqueCampaigns:    len(p.UTMCampaignNames),
	}
	if meta != nil {
		in.ESP = meta.ESPIdentified
		in.SPFPass = meta.SPFResult == "pass"
		in.DMARCPass = meta.DMARCResult == "pass"
		in.HasDKIM = meta.DKIMDomain != ""
		in.HasUnsubscribe = meta.ListUnsubscribeURL != ""
	}
	det := DeterministicSophistication(in)

	var sum float64
	n := 0
	for _, c := range cls {
		if c.MarketingSophistication > 0 {
			sum += float64(c.MarketingSophistication)
			n++
		}
	}
	aiAvg := 0.0
	if n > 0 {
		aiAvg = sum / float64(n)
	}
	p.SophisticationAvg = BlendSophistication(det, aiAvg)
}

func authQuality(meta *model.Metadata) string {
	passing := 0
	if meta.SPFResult == "pass" {
		passing++
	}
	if meta.DMARCResult == "pass" {
		passing++
	}
	hasDKIM := meta.DKIMDomain != ""
	switch {
	case passing == 2 && hasDKIM:
		return "excellent"
	case passing >= 1 || hasDKIM:
		return "good"
	default:
		return "poor"
	}
}

// threadMetrics computes initiation ratio and user reply rate over the
// domain's threads.
func (b *Builder) threadMetrics(ctx context.Context, p *model.SenderProfile) error {
	threads, err := b.db.ListThreadsByDomain(ctx, p.SenderDomain)
	if err != nil {
		return err
	}
	if len(threads) == 0 {
		return nil
	}

	initiated, replied := 0, 0
	for _, t := range threads {
		msgs, err := b.db.ListThreadMessages(ctx, t.ThreadID)
		if err != nil {
			return err
		}
		if len(msgs) > 0 {
			earliest := msgs[0]
			for _, m := range msgs[1:] {
				if m.Date.Before(earliest.Date) {
					earliest = m
				}
			}
			if earliest.IsSent {
				initiated++
			}
		}
		if t.UserParticipated {
			replied++
		}
	}

	p.ThreadInitiationRatio = float64(initiated) / float64(len(threads))
	p.UserReplyRate = float64(replied) / float64(len(threads))
	return nil
}

// economicSegments assigns coarse map membership used downstream by the
// renewal and distribution detectors.
func economicSegments(p *model.SenderProfile, cls []model.Classification) []string {
	var intents []string
	for _, c := range cls {
		intents = append(intents, string(c.SenderIntent))
	}
	primary := majorityVote(intents)

	var segments []string
	if primary == string(model.IntentTransactional) ||
		p.OfferTypeDistribution["renewal"] > 0 || len(p.RenewalDates) > 0 {
		segments = append(segments, model.SegSpendMap)
	}
	if p.HasPartnerProgram || p.OfferTypeDistribution["partnership"] > 0 {
		segments = append(segments, model.SegPartnerMap)
	}
	switch primary {
	case string(model.IntentPromotional), string(model.IntentNurtureSequence),
		string(model.IntentColdOutreach):
		segments = append(segments, model.SegProspectMap)
	case string(model.IntentNewsletter), string(model.IntentEventInvitation),
		string(model.IntentCommunity):
		segments = append(segments, model.SegDistribution)
	}
	if primary == string(model.IntentProcurement) ||
		p.OfferTypeDistribution["procurement"] > 0 {
		segments = append(segments, model.SegProcurement)
	}
	return segments
}

func majorityVote(values []string) string {
	counts := map[string]int{}
	for _, v := range values {
		if v != "" {
			counts[v]++
		}
	}
	best, bestCount := "", 0
	keys := sortedCountKeys(counts)
	for _, k := range keys {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best
}

// inferCompanyName prefers the most recent human-looking display name,
// falling back to the domain's first label.
func inferCompanyName(domain string, msgs []model.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		name := strings.TrimSpace(msgs[i].FromName)
		if name != "" && !strings.Contains(name, "@") {
			return name
		}
	}
	label := domain
	if dot := strings.Index(domain, "."); dot > 0 {
		label = domain[:dot]
	}
	if label == "" {
		return domain
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

func avgInts(vals []int) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return float64(sum) / float64(len(vals))
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedCountKeys(counts map[string]int) []string {
	out := make([]string, 0, len(counts))
	for k := range counts {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
