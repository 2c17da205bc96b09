package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gemsieve/internal/model"
)

// UpsertGem writes a gem keyed on (gem_type, sender_domain, thread_id) so
// re-running detection never duplicates rows. User-set status survives the
// update.
func (s *DB) UpsertGem(ctx context.Context, g *model.Gem) (int64, error) {
	if g.Status == "" {
		g.Status = model.GemStatusNew
	}
	_, err := s.exec(ctx, `INSERT INTO gems
		(gem_type, sender_domain, thread_id, score, explanation, recommended_actions,
		 source_message_ids, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (gem_type, sender_domain, thread_id) DO UPDATE SET
			score = excluded.score,
			explanation = excluded.explanation,
			recommended_actions = excluded.recommended_actions,
			source_message_ids = excluded.source_message_ids`,
		string(g.GemType), g.SenderDomain, g.ThreadID, g.Score,
		jsonString(g.Explanation), jsonString(g.RecommendedActions),
		jsonString(g.SourceMessageIDs), string(g.Status), time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "store: upsert gem %s/%s", g.GemType, g.SenderDomain)
	}

	var id int64
	err = s.queryRow(ctx,
		`SELECT id FROM gems WHERE gem_type = ? AND sender_domain = ? AND thread_id = ?`,
		string(g.GemType), g.SenderDomain, g.ThreadID,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrap(err, "store: gem id after upsert")
	}
	g.ID = id
	return id, nil
}

// ClearGems wipes all gems and their drafts ahead of a re-detection pass.
// Drafts go first to satisfy the foreign key.
func (s *DB) ClearGems(ctx context.Context) error {
	if _, err := s.exec(ctx,
		`DELETE FROM engagement_drafts WHERE gem_id IN (SELECT id FROM gems)`); err != nil {
		return eris.Wrap(err, "store: clear drafts")
	}
	_, err := s.exec(ctx, `DELETE FROM gems`)
	return eris.Wrap(err, "store: clear gems")
}

// BulkSenderDomains returns domains where more than half the parsed
// messages look like bulk mail. Gem detectors skip them.
func (s *DB) BulkSenderDomains(ctx context.Context) (map[string]bool, error) {
	rows, err := s.query(ctx, `SELECT sender_domain FROM parsed_metadata
		WHERE sender_domain != ''
		GROUP BY sender_domain
		HAVING SUM(is_bulk) * 2 > COUNT(*)`)
	if err != nil {
		return nil, eris.Wrap(err, "store: bulk sender domains")
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, eris.Wrap(err, "store: scan bulk sender domain")
		}
		out[domain] = true
	}
	return out, rows.Err()
}

const gemCols = `id, gem_type, sender_domain, thread_id, score, explanation,
	recommended_actions, source_message_ids, status, created_at`

func (s *DB) GetGem(ctx context.Context, id int64) (*model.Gem, error) {
	row := s.queryRow(ctx, `SELECT `+gemCols+` FROM gems WHERE id = ?`, id)
	g, err := scanGem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return g, err
}

func (s *DB) ListGems(ctx context.Context, filter GemFilter) ([]model.Gem, error) {
	query := `SELECT g.id, g.gem_type, g.sender_domain, g.thread_id, g.score,
		g.explanation, g.recommended_actions, g.source_message_ids, g.status, g.created_at
		FROM gems g`
	var (
		conds []string
		args  []any
	)
	if filter.Segment != "" {
		query += ` JOIN sender_segments ss ON ss.sender_domain = g.sender_domain`
		conds = append(conds, `ss.segment = ?`)
		args = append(args, filter.Segment)
	}
	if filter.GemType != "" {
		conds = append(conds, `g.gem_type = ?`)
		args = append(args, string(filter.GemType))
	}
	if filter.SenderDomain != "" {
		conds = append(conds, `g.sender_domain = ?`)
		args = append(args, filter.SenderDomain)
	}
	if filter.Status != "" {
		conds = append(conds, `g.status = ?`)
		args = append(args, string(filter.Status))
	}
	if filter.MinScore > 0 {
		conds = append(conds, `g.score >= ?`)
		args = append(args, filter.MinScore)
	}
	for i, c := range conds {
		if i == 0 {
			query += ` WHERE ` + c
		} else {
			query += ` AND ` + c
		}
	}
	query += ` ORDER BY g.score DESC, g.id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list gems")
	}
	defer rows.Close()

	var out []model.Gem
	for rows.Next() {
		g, err := scanGem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

func (s *DB) ListGemsByDomain(ctx context.Context, domain string) ([]model.Gem, error) {
	return s.ListGems(ctx, GemFilter{SenderDomain: domain})
}

func (s *DB) UpdateGemStatus(ctx context.Context, id int64, status model.GemStatus) error {
	res, err := s.exec(ctx, `UPDATE gems SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return eris.Wrapf(err, "store: update gem status %d", id)
	}
	return checkRowsAffected(res, "gem", fmt.Sprint(id))
}

func (s *DB) UpdateGemScore(ctx context.Context, id int64, score int) error {
	res, err := s.exec(ctx, `UPDATE gems SET score = ? WHERE id = ?`, score, id)
	if err != nil {
		return eris.Wrapf(err, "store: update gem score %d", id)
	}
	return checkRowsAffected(res, "gem", fmt.Sprint(id))
}

func scanGem(row scannable) (*model.Gem, error) {
	var (
		g                          model.Gem
		gtype, status              string
		explanation, actions, srcs string
		created                    sql.NullTime
	)
	err := row.Scan(&g.ID, &gtype, &g.SenderDomain, &g.ThreadID, &g.Score,
		&explanation, &actions, &srcs, &status, &created)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, eris.Wrap(err, "store: scan gem")
	}
	g.GemType = model.GemType(gtype)
	g.Status = model.GemStatus(status)
	if created.Valid {
		g.CreatedAt = created.Time
	}
	fromJSON(explanation, &g.Explanation)
	fromJSON(actions, &g.RecommendedActions)
	fromJSON(srcs, &g.SourceMessageIDs)
	return &g, nil
}

func (s *DB) InsertDraft(ctx context.Context, d *model.Draft) (int64, error) {
	if d.GeneratedAt.IsZero() {
		d.GeneratedAt = time.Now().UTC()
	}
	if d.Status == "" {
		d.Status = model.DraftStatusDraft
	}
	if s.dialect == dialectPostgres {
		var id int64
		err := s.queryRow(ctx, `INSERT INTO engagement_drafts
			(gem_id, sender_domain, strategy, channel, subject_line, body_text, body_html,
			 status, generated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			d.GemID, d.SenderDomain, d.Strategy, d.Channel, d.SubjectLine,
			d.BodyText, d.BodyHTML, string(d.Status), d.GeneratedAt,
		).Scan(&id)
		return id, eris.Wrap(err, "store: insert draft")
	}
	res, err := s.exec(ctx, `INSERT INTO engagement_drafts
		(gem_id, sender_domain, strategy, channel, subject_line, body_text, body_html,
		 status, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.GemID, d.SenderDomain, d.Strategy, d.Channel, d.SubjectLine,
		d.BodyText, d.BodyHTML, string(d.Status), d.GeneratedAt,
	)
	if err != nil {
		return 0, eris.Wrap(err, "store: insert draft")
	}
	return res.LastInsertId()
}

func (s *DB) ListDrafts(ctx context.Context, gemID int64) ([]model.Draft, error) {
	query := `SELECT id, gem_id, sender_domain, strategy, channel, subject_line,
		body_text, body_html, status, generated_at, sent_at, response_received,
		response_sentiment FROM engagement_drafts`
	var args []any
	if gemID > 0 {
		query += ` WHERE gem_id = ?`
		args = append(args, gemID)
	}
	query += ` ORDER BY generated_at DESC`

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list drafts")
	}
	defer rows.Close()

	var out []model.Draft
	for rows.Next() {
		var (
			d         model.Draft
			status    string
			generated sql.NullTime
			sent      sql.NullTime
			responded int
		)
		if err := rows.Scan(&d.ID, &d.GemID, &d.SenderDomain, &d.Strategy, &d.Channel,
			&d.SubjectLine, &d.BodyText, &d.BodyHTML, &status, &generated, &sent,
			&responded, &d.ResponseSentiment); err != nil {
			return nil, eris.Wrap(err, "store: scan draft")
		}
		d.Status = model.DraftStatus(status)
		if generated.Valid {
			d.GeneratedAt = generated.Time
		}
		if sent.Valid {
			d.SentAt = &sent.Time
		}
		d.ResponseReceived = responded != 0
		out = append(out, d)
	}
	return out, rows.Err()
}

// CountDraftsSince counts drafts generated at or after the given UTC instant,
// used to enforce the daily outreach cap.
func (s *DB) CountDraftsSince(ctx context.Context, sinceUTC string) (int, error) {
	var n int
	err := s.queryRow(ctx,
		`SELECT count(*) FROM engagement_drafts WHERE generated_at >= ?`, sinceUTC,
	).Scan(&n)
	return n, eris.Wrap(err, "store: count drafts")
}

// GemSummary reports gem counts and score spread per type.
func (s *DB) GemSummary(ctx context.Context) ([]GemTypeSummary, error) {
	rows, err := s.query(ctx, `SELECT gem_type, count(*), avg(score), max(score)
		FROM gems GROUP BY gem_type ORDER BY count(*) DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "store: gem summary")
	}
	defer rows.Close()

	var out []GemTypeSummary
	for rows.Next() {
		var (
			row   GemTypeSummary
			gtype string
		)
		if err := rows.Scan(&gtype, &row.Count, &row.AvgScore, &row.MaxScore); err != nil {
			return nil, eris.Wrap(err, "store: scan gem summary")
		}
		row.GemType = model.GemType(gtype)
		out = append(out, row)
	}
	return out, rows.Err()
}

// CountByESP reports message counts per identified ESP.
func (s *DB) CountByESP(ctx context.Context) (map[string]int, error) {
	return s.countGroup(ctx, `SELECT esp_identified, count(*) FROM parsed_metadata
		WHERE esp_identified != '' GROUP BY esp_identified`)
}

// CountByIndustry reports message counts per classified industry.
func (s *DB) CountByIndustry(ctx context.Context) (map[string]int, error) {
	return s.countGroup(ctx, `SELECT industry, count(*) FROM ai_classification
		WHERE industry != '' GROUP BY industry`)
}

func (s *DB) countGroup(ctx context.Context, query string) (map[string]int, error) {
	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "store: count group")
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, eris.Wrap(err, "store: scan count group")
		}
		out[key] = n
	}
	return out, rows.Err()
}
