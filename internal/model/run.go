package model

import "time"

// Run is one pipeline-stage invocation record.
type Run struct {
	ID             string     `json:"id"`
	Stage          string     `json:"stage"`
	Status         RunStatus  `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ItemsProcessed int        `json:"items_processed"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	ConfigSnapshot string     `json:"config_snapshot,omitempty"`
	TriggeredBy    string     `json:"triggered_by"`
}

// Run triggers.
const (
	TriggerCLI = "cli"
	TriggerWeb = "web"
)

// AuditEntry captures the exact prompt/response pair of a single provider
// call made under a pipeline run.
type AuditEntry struct {
	ID               int64     `json:"id"`
	RunID            string    `json:"pipeline_run_id"`
	Stage            string    `json:"stage"`
	SenderDomain     string    `json:"sender_domain,omitempty"`
	PromptTemplateID string    `json:"prompt_template_id"`
	PromptRendered   string    `json:"prompt_rendered"`
	SystemPrompt     string    `json:"system_prompt"`
	ModelUsed        string    `json:"model_used"`
	ResponseRaw      string    `json:"response_raw"`
	ResponseParsed   string    `json:"response_parsed"`
	DurationMS       int64     `json:"duration_ms"`
	CreatedAt        time.Time `json:"created_at"`
}
