package model

import "time"

// Contact is a known person at a sender, collapsed from entity rows.
type Contact struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Email string `json:"email"`
}

// ContactRank orders contacts by outreach priority.
func ContactRank(context string) int {
	switch context {
	case "decision_maker":
		return 0
	case "peer":
		return 1
	case "vendor_contact":
		return 2
	default:
		return 3
	}
}

// SenderProfile is the per-domain aggregate built by the profiler.
type SenderProfile struct {
	SenderDomain            string            `json:"sender_domain"`
	CompanyName             string            `json:"company_name"`
	PrimaryEmail            string            `json:"primary_email"`
	ReplyToEmail            string            `json:"reply_to_email"`
	Industry                string            `json:"industry"`
	CompanySize             string            `json:"company_size"`
	SophisticationAvg       float64           `json:"marketing_sophistication_avg"`
	SophisticationTrend     string            `json:"marketing_sophistication_trend"`
	ESPUsed                 string            `json:"esp_used"`
	ProductType             string            `json:"product_type"`
	ProductDescription      string            `json:"product_description"`
	PainPoints              []string          `json:"pain_points"`
	TargetAudience          string            `json:"target_audience"`
	KnownContacts           []Contact         `json:"known_contacts"`
	TotalMessages           int               `json:"total_messages"`
	FirstContact            time.Time         `json:"first_contact"`
	LastContact             time.Time         `json:"last_contact"`
	AvgFrequencyDays        float64           `json:"avg_frequency_days"`
	OfferTypeDistribution   map[string]int    `json:"offer_type_distribution"`
	CTATextsAll             []string          `json:"cta_texts_all"`
	SocialLinks             map[string]string `json:"social_links"`
	PhysicalAddress         string            `json:"physical_address"`
	UTMCampaignNames        []string          `json:"utm_campaign_names"`
	HasPersonalization      bool              `json:"has_personalization"`
	HasPartnerProgram       bool              `json:"has_partner_program"`
	PartnerProgramURLs      []string          `json:"partner_program_urls"`
	RenewalDates            []string          `json:"renewal_dates"`
	MonetarySignals         []string          `json:"monetary_signals"`
	WarmSignals             []string          `json:"warm_signals"`
	AuthenticationQuality   string            `json:"authentication_quality"`
	UnsubscribeURL          string            `json:"unsubscribe_url"`
	EconomicSegments        []string          `json:"economic_segments"`
	ThreadInitiationRatio   float64           `json:"thread_initiation_ratio"`
	UserReplyRate           float64           `json:"user_reply_rate"`
	AIConfidenceAvg         float64           `json:"ai_confidence_avg"`
	RenewalSignalDetected   bool              `json:"renewal_signal_detected"`
}

// BestContact returns the highest-ranked known contact, or nil when none.
// Contacts are stored already sorted by rank at profile build time.
func (p *SenderProfile) BestContact() *Contact {
	if len(p.KnownContacts) == 0 {
		return nil
	}
	return &p.KnownContacts[0]
}

// SenderRelationship is the user-visible relationship assignment for a
// domain. Rows with source "manual" are never overwritten by auto-detect.
type SenderRelationship struct {
	SenderDomain string           `json:"sender_domain"`
	Type         RelationshipType `json:"relationship_type"`
	Note         string           `json:"note"`
	SuppressGems bool             `json:"suppress_gems"`
	Source       string           `json:"source"`
	Confidence   float64          `json:"confidence"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Relationship sources.
const (
	RelSourceManual       = "manual"
	RelSourceAutoDetected = "auto_detected"
	RelSourceLearned      = "learned"
)

// SenderSegment is one row of the multi-valued segment junction.
type SenderSegment struct {
	SenderDomain string  `json:"sender_domain"`
	Segment      string  `json:"segment"`
	SubSegment   string  `json:"sub_segment"`
	Confidence   float64 `json:"confidence"`
}

// Segment names.
const (
	SegSpendMap       = "spend_map"
	SegPartnerMap     = "partner_map"
	SegProspectMap    = "prospect_map"
	SegDormantThreads = "dormant_threads"
	SegDistribution   = "distribution_map"
	SegProcurement    = "procurement_map"
)
