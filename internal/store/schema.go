package store

const baseSchema = `
CREATE TABLE IF NOT EXISTS threads (
	thread_id              TEXT PRIMARY KEY,
	subject                TEXT DEFAULT '',
	participant_count      INTEGER DEFAULT 0,
	message_count          INTEGER DEFAULT 0,
	first_message_date     DATETIME,
	last_message_date      DATETIME,
	last_sender            TEXT DEFAULT '',
	user_participated      INTEGER DEFAULT 0,
	user_last_replied      DATETIME,
	awaiting_response_from TEXT DEFAULT 'none',
	days_dormant           INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS messages (
	message_id    TEXT PRIMARY KEY,
	thread_id     TEXT NOT NULL REFERENCES threads(thread_id),
	date          DATETIME,
	from_address  TEXT DEFAULT '',
	from_name     TEXT DEFAULT '',
	reply_to      TEXT DEFAULT '',
	to_addresses  TEXT DEFAULT '[]',
	cc_addresses  TEXT DEFAULT '[]',
	subject       TEXT DEFAULT '',
	headers_raw   TEXT DEFAULT '{}',
	body_html     TEXT DEFAULT '',
	body_text     TEXT DEFAULT '',
	labels        TEXT DEFAULT '[]',
	snippet       TEXT DEFAULT '',
	size_estimate INTEGER DEFAULT 0,
	is_sent       INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS attachments (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id    TEXT NOT NULL REFERENCES messages(message_id),
	filename      TEXT DEFAULT '',
	mime_type     TEXT DEFAULT '',
	size_bytes    INTEGER DEFAULT 0,
	attachment_id TEXT DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sync_state (
	id                     INTEGER PRIMARY KEY CHECK (id = 1),
	last_history_id        TEXT DEFAULT '',
	last_full_sync         DATETIME,
	last_incremental_sync  DATETIME,
	total_messages_synced  INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS parsed_metadata (
	message_id             TEXT PRIMARY KEY REFERENCES messages(message_id),
	sender_domain          TEXT DEFAULT '',
	sender_subdomain       TEXT DEFAULT '',
	envelope_sender        TEXT DEFAULT '',
	esp_identified         TEXT DEFAULT '',
	esp_confidence         TEXT DEFAULT '',
	dkim_domain            TEXT DEFAULT '',
	spf_result             TEXT DEFAULT '',
	dmarc_result           TEXT DEFAULT '',
	sending_ip             TEXT DEFAULT '',
	mail_server            TEXT DEFAULT '',
	x_mailer               TEXT DEFAULT '',
	precedence             TEXT DEFAULT '',
	feedback_id            TEXT DEFAULT '',
	list_unsubscribe_url   TEXT DEFAULT '',
	list_unsubscribe_email TEXT DEFAULT '',
	is_bulk                INTEGER DEFAULT 0,
	parsed_at              DATETIME
);

CREATE TABLE IF NOT EXISTS sender_temporal (
	sender_domain       TEXT PRIMARY KEY,
	first_seen          DATETIME,
	last_seen           DATETIME,
	total_messages      INTEGER DEFAULT 0,
	avg_frequency_days  REAL DEFAULT 0,
	most_common_hour    INTEGER DEFAULT 0,
	most_common_weekday INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS parsed_content (
	message_id             TEXT PRIMARY KEY REFERENCES messages(message_id),
	body_clean             TEXT DEFAULT '',
	signature_block        TEXT DEFAULT '',
	footer_block           TEXT DEFAULT '',
	primary_headline       TEXT DEFAULT '',
	cta_texts              TEXT DEFAULT '[]',
	offer_types            TEXT DEFAULT '[]',
	has_personalization    INTEGER DEFAULT 0,
	personalization_tokens TEXT DEFAULT '[]',
	link_count             INTEGER DEFAULT 0,
	tracking_pixel_count   INTEGER DEFAULT 0,
	unique_link_domains    TEXT DEFAULT '[]',
	link_intents           TEXT DEFAULT '{}',
	utm_campaigns          TEXT DEFAULT '[]',
	physical_address       TEXT DEFAULT '',
	social_links           TEXT DEFAULT '{}',
	image_count            INTEGER DEFAULT 0,
	template_complexity    INTEGER DEFAULT 0,
	parsed_at              DATETIME
);

CREATE TABLE IF NOT EXISTS extracted_entities (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id        TEXT NOT NULL REFERENCES messages(message_id),
	entity_type       TEXT NOT NULL,
	entity_value      TEXT DEFAULT '',
	entity_normalized TEXT DEFAULT '',
	context           TEXT DEFAULT '',
	confidence        REAL DEFAULT 0,
	source            TEXT DEFAULT '',
	extracted_at      DATETIME
);

CREATE TABLE IF NOT EXISTS ai_classification (
	message_id               TEXT PRIMARY KEY REFERENCES messages(message_id),
	industry                 TEXT DEFAULT '',
	company_size_estimate    TEXT DEFAULT '',
	marketing_sophistication INTEGER DEFAULT 0,
	sender_intent            TEXT DEFAULT '',
	product_type             TEXT DEFAULT '',
	product_description      TEXT DEFAULT '',
	pain_points              TEXT DEFAULT '[]',
	target_audience          TEXT DEFAULT '',
	partner_program_detected INTEGER DEFAULT 0,
	renewal_signal_detected  INTEGER DEFAULT 0,
	ai_confidence            REAL DEFAULT 0,
	model_used               TEXT DEFAULT '',
	has_override             INTEGER DEFAULT 0,
	classified_at            DATETIME
);

CREATE TABLE IF NOT EXISTS classification_overrides (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id      TEXT DEFAULT '',
	sender_domain   TEXT DEFAULT '',
	field_name      TEXT NOT NULL,
	original_value  TEXT DEFAULT '',
	corrected_value TEXT NOT NULL,
	override_scope  TEXT NOT NULL,
	created_at      DATETIME
);

CREATE TABLE IF NOT EXISTS sender_profiles (
	sender_domain                  TEXT PRIMARY KEY,
	company_name                   TEXT DEFAULT '',
	primary_email                  TEXT DEFAULT '',
	reply_to_email                 TEXT DEFAULT '',
	industry                       TEXT DEFAULT '',
	company_size                   TEXT DEFAULT '',
	marketing_sophistication_avg   REAL DEFAULT 0,
	marketing_sophistication_trend TEXT DEFAULT '',
	esp_used                       TEXT DEFAULT '',
	product_type                   TEXT DEFAULT '',
	product_description            TEXT DEFAULT '',
	pain_points                    TEXT DEFAULT '[]',
	target_audience                TEXT DEFAULT '',
	known_contacts                 TEXT DEFAULT '[]',
	total_messages                 INTEGER DEFAULT 0,
	first_contact                  DATETIME,
	last_contact                   DATETIME,
	avg_frequency_days             REAL DEFAULT 0,
	offer_type_distribution        TEXT DEFAULT '{}',
	cta_texts_all                  TEXT DEFAULT '[]',
	social_links                   TEXT DEFAULT '{}',
	physical_address               TEXT DEFAULT '',
	utm_campaign_names             TEXT DEFAULT '[]',
	has_personalization            INTEGER DEFAULT 0,
	has_partner_program            INTEGER DEFAULT 0,
	partner_program_urls           TEXT DEFAULT '[]',
	renewal_dates                  TEXT DEFAULT '[]',
	monetary_signals               TEXT DEFAULT '[]',
	warm_signals                   TEXT DEFAULT '[]',
	authentication_quality         TEXT DEFAULT '',
	unsubscribe_url                TEXT DEFAULT '',
	economic_segments              TEXT DEFAULT '[]',
	thread_initiation_ratio        REAL DEFAULT 0,
	user_reply_rate                REAL DEFAULT 0,
	ai_confidence_avg              REAL DEFAULT 0,
	renewal_signal_detected        INTEGER DEFAULT 0,
	built_at                       DATETIME
);

CREATE TABLE IF NOT EXISTS sender_relationships (
	sender_domain     TEXT PRIMARY KEY,
	relationship_type TEXT NOT NULL,
	note              TEXT DEFAULT '',
	suppress_gems     INTEGER DEFAULT 0,
	source            TEXT DEFAULT 'manual',
	confidence        REAL DEFAULT 0,
	updated_at        DATETIME
);

CREATE TABLE IF NOT EXISTS gems (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	gem_type            TEXT NOT NULL,
	sender_domain       TEXT NOT NULL,
	thread_id           TEXT NOT NULL DEFAULT '',
	score               INTEGER DEFAULT 0,
	explanation         TEXT DEFAULT '{}',
	recommended_actions TEXT DEFAULT '[]',
	source_message_ids  TEXT DEFAULT '[]',
	status              TEXT DEFAULT 'new',
	created_at          DATETIME,
	UNIQUE (gem_type, sender_domain, thread_id)
);

CREATE TABLE IF NOT EXISTS sender_segments (
	sender_domain TEXT NOT NULL,
	segment       TEXT NOT NULL,
	sub_segment   TEXT NOT NULL DEFAULT '',
	confidence    REAL DEFAULT 0,
	assigned_at   DATETIME,
	PRIMARY KEY (sender_domain, segment, sub_segment)
);

CREATE TABLE IF NOT EXISTS engagement_drafts (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	gem_id             INTEGER NOT NULL REFERENCES gems(id),
	sender_domain      TEXT DEFAULT '',
	strategy           TEXT DEFAULT '',
	channel            TEXT DEFAULT '',
	subject_line       TEXT DEFAULT '',
	body_text          TEXT DEFAULT '',
	body_html          TEXT DEFAULT '',
	status             TEXT DEFAULT 'draft',
	generated_at       DATETIME,
	sent_at            DATETIME,
	response_received  INTEGER DEFAULT 0,
	response_sentiment TEXT DEFAULT ''
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id              TEXT PRIMARY KEY,
	stage           TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	started_at      DATETIME,
	completed_at    DATETIME,
	items_processed INTEGER DEFAULT 0,
	error_message   TEXT DEFAULT '',
	config_snapshot TEXT DEFAULT '',
	triggered_by    TEXT DEFAULT 'cli'
);

CREATE TABLE IF NOT EXISTS ai_audit (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	pipeline_run_id    TEXT DEFAULT '',
	stage              TEXT DEFAULT '',
	sender_domain      TEXT DEFAULT '',
	prompt_template_id TEXT DEFAULT '',
	prompt_rendered    TEXT DEFAULT '',
	system_prompt      TEXT DEFAULT '',
	model_used         TEXT DEFAULT '',
	response_raw       TEXT DEFAULT '',
	response_parsed    TEXT DEFAULT '',
	duration_ms        INTEGER DEFAULT 0,
	created_at         DATETIME
);

CREATE INDEX IF NOT EXISTS idx_messages_from ON messages(from_address);
CREATE INDEX IF NOT EXISTS idx_messages_date ON messages(date);
CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id);
CREATE INDEX IF NOT EXISTS idx_metadata_domain ON parsed_metadata(sender_domain);
CREATE INDEX IF NOT EXISTS idx_entities_type ON extracted_entities(entity_type);
CREATE INDEX IF NOT EXISTS idx_entities_message ON extracted_entities(message_id);
CREATE INDEX IF NOT EXISTS idx_gems_type ON gems(gem_type);
CREATE INDEX IF NOT EXISTS idx_gems_score ON gems(score DESC);
CREATE INDEX IF NOT EXISTS idx_gems_status ON gems(status);
CREATE INDEX IF NOT EXISTS idx_overrides_domain ON classification_overrides(sender_domain);
CREATE INDEX IF NOT EXISTS idx_audit_run ON ai_audit(pipeline_run_id);
CREATE INDEX IF NOT EXISTS idx_drafts_generated ON engagement_drafts(generated_at);
`

// addedColumns lists columns introduced after the initial schema. Migrate
// adds any that are missing, keeping migrations strictly additive.
var addedColumns = []struct {
	table  string
	column string
	ddl    string
}{
	{"parsed_metadata", "x_mailer", "TEXT DEFAULT ''"},
	{"parsed_metadata", "mail_server", "TEXT DEFAULT ''"},
	{"parsed_metadata", "precedence", "TEXT DEFAULT ''"},
	{"parsed_metadata", "feedback_id", "TEXT DEFAULT ''"},
	{"parsed_metadata", "sender_subdomain", "TEXT DEFAULT ''"},
	{"sender_profiles", "thread_initiation_ratio", "REAL DEFAULT 0"},
	{"sender_profiles", "user_reply_rate", "REAL DEFAULT 0"},
	{"sender_profiles", "warm_signals", "TEXT DEFAULT '[]'"},
	{"parsed_content", "footer_block", "TEXT DEFAULT ''"},
	{"sender_relationships", "confidence", "REAL DEFAULT 0"},
}

// allTables drives Stats and Reset, in dependency order for deletes.
var allTables = []string{
	"ai_audit", "pipeline_runs", "engagement_drafts", "sender_segments",
	"gems", "sender_relationships", "sender_profiles",
	"classification_overrides", "ai_classification", "extracted_entities",
	"parsed_content", "sender_temporal", "parsed_metadata",
	"sync_state", "attachments", "messages", "threads",
}
