package model

import "time"

// Metadata is the per-message header forensics row.
type Metadata struct {
	MessageID            string `json:"message_id"`
	SenderDomain         string `json:"sender_domain"`
	SenderSubdomain      string `json:"sender_subdomain"`
	EnvelopeSender       string `json:"envelope_sender"`
	ESPIdentified        string `json:"esp_identified"`
	ESPConfidence        string `json:"esp_confidence"`
	DKIMDomain           string `json:"dkim_domain"`
	SPFResult            string `json:"spf_result"`
	DMARCResult          string `json:"dmarc_result"`
	SendingIP            string `json:"sending_ip"`
	MailServer           string `json:"mail_server"`
	XMailer              string `json:"x_mailer"`
	Precedence           string `json:"precedence"`
	FeedbackID           string `json:"feedback_id"`
	ListUnsubscribeURL   string `json:"list_unsubscribe_url"`
	ListUnsubscribeEmail string `json:"list_unsubscribe_email"`
	IsBulk               bool   `json:"is_bulk"`
}

// SenderTemporal is the per-domain send-cadence rollup.
type SenderTemporal struct {
	SenderDomain      string    `json:"sender_domain"`
	FirstSeen         time.Time `json:"first_seen"`
	LastSeen          time.Time `json:"last_seen"`
	TotalMessages     int       `json:"total_messages"`
	AvgFrequencyDays  float64   `json:"avg_frequency_days"`
	MostCommonHour    int       `json:"most_common_hour"`
	MostCommonWeekday int       `json:"most_common_weekday"`
}

// Content is the per-message parsed-body row.
type Content struct {
	MessageID             string              `json:"message_id"`
	BodyClean             string              `json:"body_clean"`
	SignatureBlock        string              `json:"signature_block"`
	FooterBlock           string              `json:"footer_block"`
	PrimaryHeadline       string              `json:"primary_headline"`
	CTATexts              []string            `json:"cta_texts"`
	OfferTypes            []string            `json:"offer_types"`
	HasPersonalization    bool                `json:"has_personalization"`
	PersonalizationTokens []string            `json:"personalization_tokens"`
	LinkCount             int                 `json:"link_count"`
	TrackingPixelCount    int                 `json:"tracking_pixel_count"`
	UniqueLinkDomains     []string            `json:"unique_link_domains"`
	LinkIntents           map[string][]string `json:"link_intents"`
	UTMCampaigns          []string            `json:"utm_campaigns"`
	PhysicalAddress       string              `json:"physical_address"`
	SocialLinks           map[string]string   `json:"social_links"`
	ImageCount            int                 `json:"image_count"`
	TemplateComplexity    int                 `json:"template_complexity"`
}

// Entity is one extracted entity row.
type Entity struct {
	ID         int64        `json:"id"`
	MessageID  string       `json:"message_id"`
	Type       EntityType   `json:"entity_type"`
	Value      string       `json:"entity_value"`
	Normalized string       `json:"entity_normalized"`
	Context    string       `json:"context"`
	Confidence float64      `json:"confidence"`
	Source     EntitySource `json:"source"`
}

// Classification is the per-message AI classification row.
type Classification struct {
	MessageID               string       `json:"message_id"`
	Industry                string       `json:"industry"`
	CompanySize             string       `json:"company_size_estimate"`
	MarketingSophistication int          `json:"marketing_sophistication"`
	SenderIntent            SenderIntent `json:"sender_intent"`
	ProductType             string       `json:"product_type"`
	ProductDescription      string       `json:"product_description"`
	PainPoints              []string     `json:"pain_points_addressed"`
	TargetAudience          string       `json:"target_audience"`
	PartnerProgramDetected  bool         `json:"partner_program_detected"`
	RenewalSignalDetected   bool         `json:"renewal_signal_detected"`
	AIConfidence            float64      `json:"confidence"`
	ModelUsed               string       `json:"model_used"`
	HasOverride             bool         `json:"has_override"`
}

// Override is a user correction of an AI-classified field. Message-scope
// overrides outrank sender-scope for the same field.
type Override struct {
	ID             int64     `json:"id"`
	MessageID      string    `json:"message_id,omitempty"`
	SenderDomain   string    `json:"sender_domain,omitempty"`
	FieldName      string    `json:"field_name"`
	OriginalValue  string    `json:"original_value"`
	CorrectedValue string    `json:"corrected_value"`
	Scope          string    `json:"override_scope"`
	CreatedAt      time.Time `json:"created_at"`
}

// Override scopes.
const (
	ScopeMessage = "message"
	ScopeSender  = "sender"
)
