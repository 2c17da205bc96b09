package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gemsieve/internal/model"
)

func (s *DB) UpsertClassification(ctx context.Context, c *model.Classification) error {
	_, err := s.exec(ctx, `INSERT INTO ai_classification
		(message_id, industry, company_size_estimate, marketing_sophistication,
		 sender_intent, product_type, product_description, pain_points, target_audience,
		 partner_program_detected, renewal_signal_detected, ai_confidence, model_used,
		 has_override, classified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (message_id) DO UPDATE SET
			industry = excluded.industry,
			company_size_estimate = excluded.company_size_estimate,
			marketing_sophistication = excluded.marketing_sophistication,
			sender_intent = excluded.sender_intent,
			product_type = excluded.product_type,
			product_description = excluded.product_description,
			pain_points = excluded.pain_points,
			target_audience = excluded.target_audience,
			partner_program_detected = excluded.partner_program_detected,
			renewal_signal_detected = excluded.renewal_signal_detected,
			ai_confidence = excluded.ai_confidence,
			model_used = excluded.model_used,
			has_override = excluded.has_override,
			classified_at = excluded.classified_at`,
		c.MessageID, c.Industry, c.CompanySize, c.MarketingSophistication,
		string(c.SenderIntent), c.ProductType, c.ProductDescription,
		jsonString(c.PainPoints), c.TargetAudience, boolInt(c.PartnerProgramDetected),
		boolInt(c.RenewalSignalDetected), c.AIConfidence, c.ModelUsed,
		boolInt(c.HasOverride), time.Now().UTC(),
	)
	return eris.Wrapf(err, "store: upsert classification %s", c.MessageID)
}

func (s *DB) GetClassification(ctx context.Context, messageID string) (*model.Classification, error) {
	var (
		c                model.Classification
		intent, pains    string
		partner, renewal int
		hasOverride      int
	)
	err := s.queryRow(ctx, `SELECT message_id, industry, company_size_estimate,
			marketing_sophistication, sender_intent, product_type, product_description,
			pain_points, target_audience, partner_program_detected, renewal_signal_detected,
			ai_confidence, model_used, has_override
		FROM ai_classification WHERE message_id = ?`, messageID,
	).Scan(&c.MessageID, &c.Industry, &c.CompanySize, &c.MarketingSophistication,
		&intent, &c.ProductType, &c.ProductDescription, &pains, &c.TargetAudience,
		&partner, &renewal, &c.AIConfidence, &c.ModelUsed, &hasOverride)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get classification %s", messageID)
	}
	c.SenderIntent = model.SenderIntent(intent)
	c.PartnerProgramDetected = partner != 0
	c.RenewalSignalDetected = renewal != 0
	c.HasOverride = hasOverride != 0
	fromJSON(pains, &c.PainPoints)
	return &c, nil
}

func (s *DB) InsertOverride(ctx context.Context, o *model.Override) (int64, error) {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if s.dialect == dialectPostgres {
		var id int64
		err := s.queryRow(ctx, `INSERT INTO classification_overrides
			(message_id, sender_domain, field_name, original_value, corrected_value,
			 override_scope, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			o.MessageID, o.SenderDomain, o.FieldName, o.OriginalValue,
			o.CorrectedValue, o.Scope, o.CreatedAt,
		).Scan(&id)
		return id, eris.Wrap(err, "store: insert override")
	}
	res, err := s.exec(ctx, `INSERT INTO classification_overrides
		(message_id, sender_domain, field_name, original_value, corrected_value,
		 override_scope, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.MessageID, o.SenderDomain, o.FieldName, o.OriginalValue,
		o.CorrectedValue, o.Scope, o.CreatedAt,
	)
	if err != nil {
		return 0, eris.Wrap(err, "store: insert override")
	}
	return res.LastInsertId()
}

func (s *DB) DeleteOverride(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `DELETE FROM classification_overrides WHERE id = ?`, id)
	if err != nil {
		return eris.Wrap(err, "store: delete override")
	}
	return checkRowsAffected(res, "override", fmt.Sprint(id))
}

const overrideCols = `id, message_id, sender_domain, field_name, original_value,
	corrected_value, override_scope, created_at`

func (s *DB) ListOverrides(ctx context.Context) ([]model.Override, error) {
	return s.listOverrides(ctx,
		`SELECT `+overrideCols+` FROM classification_overrides ORDER BY id`)
}

func (s *DB) ListOverridesForSender(ctx context.Context, domain string) ([]model.Override, error) {
	return s.listOverrides(ctx, `SELECT `+overrideCols+` FROM classification_overrides
		WHERE sender_domain = ? AND override_scope = 'sender' ORDER BY id`, domain)
}

func (s *DB) ListOverridesForMessage(ctx context.Context, messageID string) ([]model.Override, error) {
	return s.listOverrides(ctx, `SELECT `+overrideCols+` FROM classification_overrides
		WHERE message_id = ? AND override_scope = 'message' ORDER BY id`, messageID)
}

func (s *DB) RecentOverrides(ctx context.Context, n int) ([]model.Override, error) {
	return s.listOverrides(ctx,
		`SELECT `+overrideCols+` FROM classification_overrides ORDER BY id DESC LIMIT ?`, n)
}

func (s *DB) listOverrides(ctx context.Context, query string, args ...any) ([]model.Override, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list overrides")
	}
	defer rows.Close()

	var out []model.Override
	for rows.Next() {
		var (
			o       model.Override
			created sql.NullTime
		)
		if err := rows.Scan(&o.ID, &o.MessageID, &o.SenderDomain, &o.FieldName,
			&o.OriginalValue, &o.CorrectedValue, &o.Scope, &created); err != nil {
			return nil, eris.Wrap(err, "store: scan override")
		}
		if created.Valid {
			o.CreatedAt = created.Time
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// OverrideStats reports per-field override pressure against the total
// classified population. Fields above 20% are flagged as needing prompt
// tuning.
func (s *DB) OverrideStats(ctx context.Context) (map[string]OverrideFieldStats, error) {
	var total int
	if err := s.queryRow(ctx, `SELECT count(*) FROM ai_classification`).Scan(&total); err != nil {
		return nil, eris.Wrap(err, "store: count classifications")
	}

	rows, err := s.query(ctx,
		`SELECT field_name, count(*) FROM classification_overrides GROUP BY field_name`)
	if err != nil {
		return nil, eris.Wrap(err, "store: override stats")
	}
	defer rows.Close()

	out := make(map[string]OverrideFieldStats)
	for rows.Next() {
		var (
			field string
			n     int
		)
		if err := rows.Scan(&field, &n); err != nil {
			return nil, eris.Wrap(err, "store: scan override stats")
		}
		st := OverrideFieldStats{TotalOverrides: n, TotalClassifications: total}
		if total > 0 {
			st.OverrideRate = float64(n) / float64(total) * 100
			st.NeedsTuning = st.OverrideRate > 20
		}
		out[field] = st
	}
	return out, rows.Err()
}
