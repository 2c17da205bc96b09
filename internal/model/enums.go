package model

// RelationshipType places a sender profile in the user's commerce graph. It
// gates which gem types may emit and caps the final score.
type RelationshipType string

const (
	RelMyVendor          RelationshipType = "my_vendor"
	RelMyServiceProvider RelationshipType = "my_service_provider"
	RelMyInfrastructure  RelationshipType = "my_infrastructure"
	RelInstitutional     RelationshipType = "institutional"
	RelInboundProspect   RelationshipType = "inbound_prospect"
	RelWarmContact       RelationshipType = "warm_contact"
	RelPotentialPartner  RelationshipType = "potential_partner"
	RelSellingToMe       RelationshipType = "selling_to_me"
	RelCommunity         RelationshipType = "community"
	RelUnknown           RelationshipType = "unknown"
)

// RelationshipTypes lists every valid relationship type.
var RelationshipTypes = []RelationshipType{
	RelMyVendor, RelMyServiceProvider, RelMyInfrastructure, RelInstitutional,
	RelInboundProspect, RelWarmContact, RelPotentialPartner,
	RelSellingToMe, RelCommunity, RelUnknown,
}

// Valid reports whether t is a known relationship type.
func (t RelationshipType) Valid() bool {
	for _, rt := range RelationshipTypes {
		if t == rt {
			return true
		}
	}
	return false
}

// Suppressed reports whether gems are suppressed outright for this
// relationship type.
func (t RelationshipType) Suppressed() bool {
	return t == RelMyInfrastructure || t == RelInstitutional
}

// GemType identifies a kind of detected opportunity.
type GemType string

const (
	GemDormantWarmThread   GemType = "dormant_warm_thread"
	GemUnansweredAsk       GemType = "unanswered_ask"
	GemWeakMarketingLead   GemType = "weak_marketing_lead"
	GemPartnerProgram      GemType = "partner_program"
	GemRenewalLeverage     GemType = "renewal_leverage"
	GemDistributionChannel GemType = "distribution_channel"
	GemCoMarketing         GemType = "co_marketing"
	GemIndustryIntel       GemType = "industry_intel"
	GemProcurementSignal   GemType = "procurement_signal"

	// GemVendorUpsell is retired. Historical rows may carry it but no
	// detector emits it.
	GemVendorUpsell GemType = "vendor_upsell"
)

// GemStatus tracks the user-facing lifecycle of a gem.
type GemStatus string

const (
	GemStatusNew       GemStatus = "new"
	GemStatusActed     GemStatus = "acted"
	GemStatusDismissed GemStatus = "dismissed"
)

// SenderIntent is the AI-classified purpose of a message.
type SenderIntent string

const (
	IntentHuman1to1        SenderIntent = "human_1to1"
	IntentColdOutreach     SenderIntent = "cold_outreach"
	IntentNurtureSequence  SenderIntent = "nurture_sequence"
	IntentNewsletter       SenderIntent = "newsletter"
	IntentTransactional    SenderIntent = "transactional"
	IntentPromotional      SenderIntent = "promotional"
	IntentEventInvitation  SenderIntent = "event_invitation"
	IntentPartnershipPitch SenderIntent = "partnership_pitch"
	IntentReEngagement     SenderIntent = "re_engagement"
	IntentProcurement      SenderIntent = "procurement"
	IntentRecruiting       SenderIntent = "recruiting"
	IntentCommunity        SenderIntent = "community"
)

// EntityType classifies an extracted entity.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityMoney        EntityType = "money"
	EntityDate         EntityType = "date"
	EntityRole         EntityType = "role"
	EntityPhone        EntityType = "phone"
	EntityURL          EntityType = "url"
	EntityProcurement  EntityType = "procurement_signal"
)

// EntitySource records which extractor produced an entity.
type EntitySource string

const (
	SourceNER    EntitySource = "spacy"
	SourceRegex  EntitySource = "regex"
	SourceHeader EntitySource = "header"
)

// Awaiting marks which party owes a reply on a thread.
type Awaiting string

const (
	AwaitingUser  Awaiting = "user"
	AwaitingOther Awaiting = "other"
	AwaitingNone  Awaiting = "none"
)

// DraftStatus tracks an engagement draft.
type DraftStatus string

const (
	DraftStatusDraft    DraftStatus = "draft"
	DraftStatusApproved DraftStatus = "approved"
	DraftStatusSent     DraftStatus = "sent"
	DraftStatusReplied  DraftStatus = "replied"
)

// RunStatus tracks a pipeline run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Stage names, in pipeline order.
const (
	StageIngest   = "ingest"
	StageMetadata = "metadata"
	StageContent  = "content"
	StageEntities = "entities"
	StageClassify = "classify"
	StageProfile  = "profile"
	StageSegment  = "segment"
	StageEngage   = "engage"
)

// StageOrder is the registry order used by the orchestrator. Engage is last
// and is skipped by run-all.
var StageOrder = []string{
	StageMetadata, StageContent, StageEntities,
	StageClassify, StageProfile, StageSegment, StageEngage,
}
