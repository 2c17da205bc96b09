package model

import "time"

// Message is the canonical ingested record of a single mail message.
type Message struct {
	MessageID    string            `json:"message_id"`
	ThreadID     string            `json:"thread_id"`
	Date         time.Time         `json:"date"`
	FromAddress  string            `json:"from_address"`
	FromName     string            `json:"from_name"`
	ReplyTo      string            `json:"reply_to"`
	ToAddresses  []string          `json:"to_addresses"`
	CCAddresses  []string          `json:"cc_addresses"`
	Subject      string              `json:"subject"`
	HeadersRaw   map[string][]string `json:"headers_raw"`
	BodyHTML     string              `json:"body_html"`
	BodyText     string              `json:"body_text"`
	Labels       []string            `json:"labels"`
	Snippet      string              `json:"snippet"`
	SizeEstimate int                 `json:"size_estimate"`
	IsSent       bool                `json:"is_sent"`
	Attachments  []Attachment        `json:"attachments,omitempty"`
}

// Header returns the first value of the named raw header, matched
// case-insensitively against the lowercase keys stored at ingest.
func (m *Message) Header(name string) string {
	vals := m.Headers(name)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// Headers returns every stored value of the named header, preserving the
// order they appeared in the message.
func (m *Message) Headers(name string) []string {
	if v, ok := m.HeadersRaw[name]; ok {
		return v
	}
	for k, v := range m.HeadersRaw {
		if equalFold(k, name) {
			return v
		}
	}
	return nil
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Attachment is stored metadata-only; bodies are never persisted.
type Attachment struct {
	ID           int64  `json:"id"`
	MessageID    string `json:"message_id"`
	Filename     string `json:"filename"`
	MimeType     string `json:"mime_type"`
	SizeBytes    int64  `json:"size_bytes"`
	AttachmentID string `json:"attachment_id"`
}

// Thread aggregates a conversation. All fields are derivable from the
// thread's messages and are recomputed on every ingest.
type Thread struct {
	ThreadID             string     `json:"thread_id"`
	Subject              string     `json:"subject"`
	ParticipantCount     int        `json:"participant_count"`
	MessageCount         int        `json:"message_count"`
	FirstMessageDate     time.Time  `json:"first_message_date"`
	LastMessageDate      time.Time  `json:"last_message_date"`
	LastSender           string     `json:"last_sender"`
	UserParticipated     bool       `json:"user_participated"`
	UserLastReplied      *time.Time `json:"user_last_replied,omitempty"`
	AwaitingResponseFrom Awaiting   `json:"awaiting_response_from"`
	DaysDormant          int        `json:"days_dormant"`
}

// SyncState is the singleton ingest cursor record.
type SyncState struct {
	LastHistoryID       string     `json:"last_history_id"`
	LastFullSync        *time.Time `json:"last_full_sync,omitempty"`
	LastIncrementalSync *time.Time `json:"last_incremental_sync,omitempty"`
	TotalMessagesSynced int        `json:"total_messages_synced"`
}
