package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gemsieve/internal/model"
)

const messageCols = `message_id, thread_id, date, from_address, from_name, reply_to,
	to_addresses, cc_addresses, subject, headers_raw, body_html, body_text,
	labels, snippet, size_estimate, is_sent`

// UpsertMessage writes a message, its attachment metadata, and a thread stub
// inside one transaction. Re-ingesting the same message is a no-op update.
func (s *DB) UpsertMessage(ctx context.Context, msg *model.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin upsert message")
	}
	defer tx.Rollback()

	// Thread row must exist before the message (FK).
	if _, err := tx.ExecContext(ctx,
		s.q(`INSERT INTO threads (thread_id) VALUES (?) ON CONFLICT (thread_id) DO NOTHING`),
		msg.ThreadID,
	); err != nil {
		return eris.Wrap(err, "store: insert thread stub")
	}

	_, err = tx.ExecContext(ctx, s.q(`INSERT INTO messages (`+messageCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (message_id) DO UPDATE SET
			thread_id = excluded.thread_id,
			labels = excluded.labels,
			snippet = excluded.snippet`),
		msg.MessageID, msg.ThreadID, msg.Date.UTC(), msg.FromAddress, msg.FromName,
		msg.ReplyTo, jsonString(msg.ToAddresses), jsonString(msg.CCAddresses),
		msg.Subject, jsonString(msg.HeadersRaw), msg.BodyHTML, msg.BodyText,
		jsonString(msg.Labels), msg.Snippet, msg.SizeEstimate, boolInt(msg.IsSent),
	)
	if err != nil {
		return eris.Wrapf(err, "store: upsert message %s", msg.MessageID)
	}

	if _, err := tx.ExecContext(ctx,
		s.q(`DELETE FROM attachments WHERE message_id = ?`), msg.MessageID,
	); err != nil {
		return eris.Wrap(err, "store: clear attachments")
	}
	for _, att := range msg.Attachments {
		if _, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO attachments (message_id, filename, mime_type, size_bytes, attachment_id)
				VALUES (?, ?, ?, ?, ?)`),
			msg.MessageID, att.Filename, att.MimeType, att.SizeBytes, att.AttachmentID,
		); err != nil {
			return eris.Wrap(err, "store: insert attachment")
		}
	}

	return eris.Wrap(tx.Commit(), "store: commit upsert message")
}

func (s *DB) HasMessage(ctx context.Context, messageID string) (bool, error) {
	var one int
	err := s.queryRow(ctx, `SELECT 1 FROM messages WHERE message_id = ?`, messageID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "store: has message %s", messageID)
	}
	return true, nil
}

func (s *DB) GetMessage(ctx context.Context, messageID string) (*model.Message, error) {
	row := s.queryRow(ctx, `SELECT `+messageCols+` FROM messages WHERE message_id = ?`, messageID)
	return scanMessage(row)
}

func (s *DB) ListThreadIDs(ctx context.Context) ([]string, error) {
	return s.stringColumn(ctx, `SELECT thread_id FROM threads ORDER BY thread_id`)
}

func (s *DB) ListThreadMessages(ctx context.Context, threadID string) ([]model.Message, error) {
	return s.listMessages(ctx,
		`SELECT `+messageCols+` FROM messages WHERE thread_id = ? ORDER BY date`, threadID)
}

func (s *DB) UpsertThread(ctx context.Context, t *model.Thread) error {
	_, err := s.exec(ctx, `INSERT INTO threads
		(thread_id, subject, participant_count, message_count, first_message_date,
		 last_message_date, last_sender, user_participated, user_last_replied,
		 awaiting_response_from, days_dormant)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (thread_id) DO UPDATE SET
			subject = excluded.subject,
			participant_count = excluded.participant_count,
			message_count = excluded.message_count,
			first_message_date = excluded.first_message_date,
			last_message_date = excluded.last_message_date,
			last_sender = excluded.last_sender,
			user_participated = excluded.user_participated,
			user_last_replied = excluded.user_last_replied,
			awaiting_response_from = excluded.awaiting_response_from,
			days_dormant = excluded.days_dormant`,
		t.ThreadID, t.Subject, t.ParticipantCount, t.MessageCount,
		nullTime(t.FirstMessageDate), nullTime(t.LastMessageDate), t.LastSender,
		boolInt(t.UserParticipated), nullTimePtr(t.UserLastReplied),
		string(t.AwaitingResponseFrom), t.DaysDormant,
	)
	return eris.Wrapf(err, "store: upsert thread %s", t.ThreadID)
}

const threadCols = `thread_id, subject, participant_count, message_count,
	first_message_date, last_message_date, last_sender, user_participated,
	user_last_replied, awaiting_response_from, days_dormant`

func (s *DB) GetThread(ctx context.Context, threadID string) (*model.Thread, error) {
	row := s.queryRow(ctx, `SELECT `+threadCols+` FROM threads WHERE thread_id = ?`, threadID)
	t, err := scanThread(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// ListThreadsByDomain returns threads containing at least one message whose
// parsed sender domain matches.
func (s *DB) ListThreadsByDomain(ctx context.Context, domain string) ([]model.Thread, error) {
	rows, err := s.query(ctx, `SELECT DISTINCT t.thread_id, t.subject, t.participant_count,
			t.message_count, t.first_message_date, t.last_message_date, t.last_sender,
			t.user_participated, t.user_last_replied, t.awaiting_response_from, t.days_dormant
		FROM threads t
		JOIN messages m ON m.thread_id = t.thread_id
		JOIN parsed_metadata pm ON pm.message_id = m.message_id
		WHERE pm.sender_domain = ?
		ORDER BY t.last_message_date DESC`, domain)
	if err != nil {
		return nil, eris.Wrapf(err, "store: threads by domain %s", domain)
	}
	defer rows.Close()

	var out []model.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *DB) GetSyncState(ctx context.Context) (*model.SyncState, error) {
	var (
		st   model.SyncState
		full sql.NullTime
		incr sql.NullTime
	)
	err := s.queryRow(ctx,
		`SELECT last_history_id, last_full_sync, last_incremental_sync, total_messages_synced
		 FROM sync_state WHERE id = 1`,
	).Scan(&st.LastHistoryID, &full, &incr, &st.TotalMessagesSynced)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get sync state")
	}
	if full.Valid {
		st.LastFullSync = &full.Time
	}
	if incr.Valid {
		st.LastIncrementalSync = &incr.Time
	}
	return &st, nil
}

// SaveSyncState upserts the singleton cursor row, accumulating the synced
// message total.
func (s *DB) SaveSyncState(ctx context.Context, historyID string, full bool, added int) error {
	now := time.Now().UTC()
	col := "last_incremental_sync"
	if full {
		col = "last_full_sync"
	}
	_, err := s.exec(ctx, `INSERT INTO sync_state
		(id, last_history_id, `+col+`, total_messages_synced)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			last_history_id = excluded.last_history_id,
			`+col+` = excluded.`+col+`,
			total_messages_synced = sync_state.total_messages_synced + excluded.total_messages_synced`,
		historyID, now, added,
	)
	return eris.Wrap(err, "store: save sync state")
}

// Anti-join work queries: a stage's pending input is every message with no
// row in its output table.

func (s *DB) ListMessagesMissingMetadata(ctx context.Context) ([]model.Message, error) {
	return s.listMessages(ctx, antiJoin("parsed_metadata"))
}

func (s *DB) ListMessagesMissingContent(ctx context.Context) ([]model.Message, error) {
	return s.listMessages(ctx, antiJoin("parsed_content"))
}

func (s *DB) ListMessagesMissingEntities(ctx context.Context) ([]model.Message, error) {
	return s.listMessages(ctx, `SELECT m.message_id, m.thread_id, m.date, m.from_address,
		m.from_name, m.reply_to, m.to_addresses, m.cc_addresses, m.subject, m.headers_raw,
		m.body_html, m.body_text, m.labels, m.snippet, m.size_estimate, m.is_sent
		FROM messages m
		LEFT JOIN extracted_entities e ON e.message_id = m.message_id
		WHERE e.message_id IS NULL AND m.is_sent = 0
		ORDER BY m.date`)
}

func (s *DB) ListMessagesMissingClassification(ctx context.Context) ([]model.Message, error) {
	return s.listMessages(ctx, antiJoin("ai_classification"))
}

func antiJoin(output string) string {
	return `SELECT m.message_id, m.thread_id, m.date, m.from_address, m.from_name,
		m.reply_to, m.to_addresses, m.cc_addresses, m.subject, m.headers_raw,
		m.body_html, m.body_text, m.labels, m.snippet, m.size_estimate, m.is_sent
		FROM messages m
		LEFT JOIN ` + output + ` o ON o.message_id = m.message_id
		WHERE o.message_id IS NULL AND m.is_sent = 0
		ORDER BY m.date`
}

func (s *DB) listMessages(ctx context.Context, query string, args ...any) ([]model.Message, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list messages")
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *DB) stringColumn(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: query column")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrap(err, "store: scan column")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// scannable is satisfied by *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanMessage(row scannable) (*model.Message, error) {
	var (
		m                          model.Message
		date                       sql.NullTime
		toJSON, ccJSON, hdrJSON    string
		labelsJSON                 string
		isSent                     int
	)
	err := row.Scan(&m.MessageID, &m.ThreadID, &date, &m.FromAddress, &m.FromName,
		&m.ReplyTo, &toJSON, &ccJSON, &m.Subject, &hdrJSON, &m.BodyHTML, &m.BodyText,
		&labelsJSON, &m.Snippet, &m.SizeEstimate, &isSent)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, eris.Wrap(err, "store: scan message")
	}
	if date.Valid {
		m.Date = date.Time
	}
	m.IsSent = isSent != 0
	fromJSON(toJSON, &m.ToAddresses)
	fromJSON(ccJSON, &m.CCAddresses)
	fromJSON(hdrJSON, &m.HeadersRaw)
	fromJSON(labelsJSON, &m.Labels)
	return &m, nil
}

func scanThread(row scannable) (*model.Thread, error) {
	var (
		t            model.Thread
		first, last  sql.NullTime
		userReplied  sql.NullTime
		participated int
		awaiting     string
	)
	err := row.Scan(&t.ThreadID, &t.Subject, &t.ParticipantCount, &t.MessageCount,
		&first, &last, &t.LastSender, &participated, &userReplied, &awaiting, &t.DaysDormant)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, eris.Wrap(err, "store: scan thread")
	}
	if first.Valid {
		t.FirstMessageDate = first.Time
	}
	if last.Valid {
		t.LastMessageDate = last.Time
	}
	if userReplied.Valid {
		t.UserLastReplied = &userReplied.Time
	}
	t.UserParticipated = participated != 0
	t.AwaitingResponseFrom = model.Awaiting(awaiting)
	return &t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func nullTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
