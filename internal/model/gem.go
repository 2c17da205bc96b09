package model

import "time"

// GemSignal is one piece of evidence inside a gem explanation.
type GemSignal struct {
	Signal    string `json:"signal"`
	Evidence  string `json:"evidence,omitempty"`
	Value     string `json:"value,omitempty"`
	Threshold string `json:"threshold,omitempty"`
}

// GemExplanation is the structured self-explanation attached to every gem.
type GemExplanation struct {
	GemType        GemType     `json:"gem_type"`
	Summary        string      `json:"summary"`
	Signals        []GemSignal `json:"signals"`
	Confidence     float64     `json:"confidence"`
	EstimatedValue string      `json:"estimated_value"`
	Urgency        string      `json:"urgency"`
}

// Gem is a typed, scored commercial opportunity attached to a sender profile.
type Gem struct {
	ID                 int64          `json:"id"`
	GemType            GemType        `json:"gem_type"`
	SenderDomain       string         `json:"sender_domain"`
	ThreadID           string         `json:"thread_id,omitempty"`
	Score              int            `json:"score"`
	Explanation        GemExplanation `json:"explanation"`
	RecommendedActions []string       `json:"recommended_actions"`
	SourceMessageIDs   []string       `json:"source_message_ids"`
	Status             GemStatus      `json:"status"`
	CreatedAt          time.Time      `json:"created_at"`
}

// Draft is a generated engagement message for a gem.
type Draft struct {
	ID                int64       `json:"id"`
	GemID             int64       `json:"gem_id"`
	SenderDomain      string      `json:"sender_domain"`
	Strategy          string      `json:"strategy"`
	Channel           string      `json:"channel"`
	SubjectLine       string      `json:"subject_line"`
	BodyText          string      `json:"body_text"`
	BodyHTML          string      `json:"body_html"`
	Status            DraftStatus `json:"status"`
	GeneratedAt       time.Time   `json:"generated_at"`
	SentAt            *time.Time  `json:"sent_at,omitempty"`
	ResponseReceived  bool        `json:"response_received"`
	ResponseSentiment string      `json:"response_sentiment"`
}

// Engagement strategies.
const (
	StrategyAudit         = "audit"
	StrategyRevival       = "revival"
	StrategyPartner       = "partner"
	StrategyRenewal       = "renewal_negotiation"
	StrategyIndustry      = "industry_report"
	StrategyMirror        = "mirror"
	StrategyDistribution  = "distribution_pitch"
)
