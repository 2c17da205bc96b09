package store

import (
	"context"

	"github.com/sells-group/gemsieve/internal/model"
)

// GemFilter specifies criteria for listing gems.
type GemFilter struct {
	GemType      model.GemType
	SenderDomain string
	Segment      string
	Status       model.GemStatus
	MinScore     int
	Limit        int
}

// RunFilter specifies criteria for listing pipeline runs.
type RunFilter struct {
	Stage  string
	Status model.RunStatus
	Limit  int
	Offset int
}

// AuditFilter specifies criteria for listing AI audit entries.
type AuditFilter struct {
	RunID  string
	Stage  string
	Limit  int
	Offset int
}

// OverrideFieldStats summarizes override pressure on one classified field.
type OverrideFieldStats struct {
	TotalOverrides       int     `json:"total_overrides"`
	TotalClassifications int     `json:"total_classifications"`
	OverrideRate         float64 `json:"override_rate"`
	NeedsTuning          bool    `json:"needs_tuning"`
}

// Store is the persistence interface shared by every pipeline stage. The
// store is the integration bus: stages never call each other, they read
// upstream tables and upsert their own.
type Store interface {
	// Messages and threads
	UpsertMessage(ctx context.Context, msg *model.Message) error
	HasMessage(ctx context.Context, messageID string) (bool, error)
	GetMessage(ctx context.Context, messageID string) (*model.Message, error)
	ListThreadIDs(ctx context.Context) ([]string, error)
	ListThreadMessages(ctx context.Context, threadID string) ([]model.Message, error)
	UpsertThread(ctx context.Context, t *model.Thread) error
	GetThread(ctx context.Context, threadID string) (*model.Thread, error)
	ListThreadsByDomain(ctx context.Context, domain string) ([]model.Thread, error)
	GetSyncState(ctx context.Context) (*model.SyncState, error)
	SaveSyncState(ctx context.Context, historyID string, full bool, added int) error

	// Stage work discovery (left-anti-join on the output table)
	ListMessagesMissingMetadata(ctx context.Context) ([]model.Message, error)
	ListMessagesMissingContent(ctx context.Context) ([]model.Message, error)
	ListMessagesMissingEntities(ctx context.Context) ([]model.Message, error)
	ListMessagesMissingClassification(ctx context.Context) ([]model.Message, error)

	// Metadata
	UpsertMetadata(ctx context.Context, m *model.Metadata) error
	GetMetadata(ctx context.Context, messageID string) (*model.Metadata, error)
	ListSenderDomains(ctx context.Context) ([]string, error)
	ListMessagesByDomain(ctx context.Context, domain string) ([]model.Message, error)
	UpsertSenderTemporal(ctx context.Context, t *model.SenderTemporal) error
	GetSenderTemporal(ctx context.Context, domain string) (*model.SenderTemporal, error)
	ListMetadataByDomain(ctx context.Context, domain string) ([]model.Metadata, error)

	// Content
	UpsertContent(ctx context.Context, c *model.Content) error
	GetContent(ctx context.Context, messageID string) (*model.Content, error)

	// Entities
	ReplaceEntities(ctx context.Context, messageID string, ents []model.Entity) error
	ListEntitiesByMessage(ctx context.Context, messageID string) ([]model.Entity, error)
	ListEntitiesByDomain(ctx context.Context, domain string) ([]model.Entity, error)

	// Classification and overrides
	UpsertClassification(ctx context.Context, c *model.Classification) error
	GetClassification(ctx context.Context, messageID string) (*model.Classification, error)
	InsertOverride(ctx context.Context, o *model.Override) (int64, error)
	DeleteOverride(ctx context.Context, id int64) error
	ListOverrides(ctx context.Context) ([]model.Override, error)
	ListOverridesForSender(ctx context.Context, domain string) ([]model.Override, error)
	ListOverridesForMessage(ctx context.Context, messageID string) ([]model.Override, error)
	RecentOverrides(ctx context.Context, n int) ([]model.Override, error)
	OverrideStats(ctx context.Context) (map[string]OverrideFieldStats, error)

	// Profiles, relationships, segments
	UpsertProfile(ctx context.Context, p *model.SenderProfile) error
	GetProfile(ctx context.Context, domain string) (*model.SenderProfile, error)
	ListProfiles(ctx context.Context) ([]model.SenderProfile, error)
	CountProfilesByIndustry(ctx context.Context) (map[string]int, error)
	UpsertRelationship(ctx context.Context, r *model.SenderRelationship) error
	GetRelationship(ctx context.Context, domain string) (*model.SenderRelationship, error)
	ListRelationships(ctx context.Context, relType model.RelationshipType) ([]model.SenderRelationship, error)
	ReplaceSegments(ctx context.Context, domain string, segs []model.SenderSegment) error
	ListSegments(ctx context.Context, domain string) ([]model.SenderSegment, error)
	ListAllSegments(ctx context.Context) ([]model.SenderSegment, error)

	// Gems
	ClearGems(ctx context.Context) error
	BulkSenderDomains(ctx context.Context) (map[string]bool, error)
	UpsertGem(ctx context.Context, g *model.Gem) (int64, error)
	GetGem(ctx context.Context, id int64) (*model.Gem, error)
	ListGems(ctx context.Context, filter GemFilter) ([]model.Gem, error)
	ListGemsByDomain(ctx context.Context, domain string) ([]model.Gem, error)
	UpdateGemStatus(ctx context.Context, id int64, status model.GemStatus) error
	UpdateGemScore(ctx context.Context, id int64, score int) error

	// Engagement drafts
	InsertDraft(ctx context.Context, d *model.Draft) (int64, error)
	ListDrafts(ctx context.Context, gemID int64) ([]model.Draft, error)
	CountDraftsSince(ctx context.Context, sinceUTC string) (int, error)

	// Pipeline runs and AI audit
	CreateRun(ctx context.Context, stage, triggeredBy, configSnapshot string) (*model.Run, error)
	UpdateRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	InsertAudit(ctx context.Context, e *model.AuditEntry) (int64, error)
	GetAudit(ctx context.Context, id int64) (*model.AuditEntry, error)
	ListAudit(ctx context.Context, filter AuditFilter) ([]model.AuditEntry, error)

	// Aggregate stats
	Stats(ctx context.Context) (map[string]int, error)
	CountByESP(ctx context.Context) (map[string]int, error)
	CountByIndustry(ctx context.Context) (map[string]int, error)
	GemSummary(ctx context.Context) ([]GemTypeSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Reset(ctx context.Context) error
	Close() error
}

// GemTypeSummary is one row of the gem distribution report.
type GemTypeSummary struct {
	GemType  model.GemType `json:"gem_type"`
	Count    int           `json:"count"`
	AvgScore float64       `json:"avg_score"`
	MaxScore int           `json:"max_score"`
}
