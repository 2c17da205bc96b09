package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gemsieve/internal/model"
)

func (s *DB) UpsertProfile(ctx context.Context, p *model.SenderProfile) error {
	_, err := s.exec(ctx, `INSERT INTO sender_profiles
		(sender_domain, company_name, primary_email, reply_to_email, industry,
		 company_size, marketing_sophistication_avg, marketing_sophistication_trend,
		 esp_used, product_type, product_description, pain_points, target_audience,
		 known_contacts, total_messages, first_contact, last_contact, avg_frequency_days,
		 offer_type_distribution, cta_texts_all, social_links, physical_address,
		 utm_campaign_names, has_personalization, has_partner_program,
		 partner_program_urls, renewal_dates, monetary_signals, warm_signals,
		 authentication_quality, unsubscribe_url, economic_segments,
		 thread_initiation_ratio, user_reply_rate, ai_confidence_avg,
		 renewal_signal_detected, built_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
		        ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (sender_domain) DO UPDATE SET
			company_name = excluded.company_name,
			primary_email = excluded.primary_email,
			reply_to_email = excluded.reply_to_email,
			industry = excluded.industry,
			company_size = excluded.company_size,
			marketing_sophistication_avg = excluded.marketing_sophistication_avg,
			marketing_sophistication_trend = excluded.marketing_sophistication_trend,
			esp_used = excluded.esp_used,
			product_type = excluded.product_type,
			product_description = excluded.product_description,
			pain_points = excluded.pain_points,
			target_audience = excluded.target_audience,
			known_contacts = excluded.known_contacts,
			total_messages = excluded.total_messages,
			first_contact = excluded.first_contact,
			last_contact = excluded.last_contact,
			avg_frequency_days = excluded.avg_frequency_days,
			offer_type_distribution = excluded.offer_type_distribution,
			cta_texts_all = excluded.cta_texts_all,
			social_links = excluded.social_links,
			physical_address = excluded.physical_address,
			utm_campaign_names = excluded.utm_campaign_names,
			has_personalization = excluded.has_personalization,
			has_partner_program = excluded.has_partner_program,
			partner_program_urls = excluded.partner_program_urls,
			renewal_dates = excluded.renewal_dates,
			monetary_signals = excluded.monetary_signals,
			warm_signals = excluded.warm_signals,
			authentication_quality = excluded.authentication_quality,
			unsubscribe_url = excluded.unsubscribe_url,
			economic_segments = excluded.economic_segments,
			thread_initiation_ratio = excluded.thread_initiation_ratio,
			user_reply_rate = excluded.user_reply_rate,
			ai_confidence_avg = excluded.ai_confidence_avg,
			renewal_signal_detected = excluded.renewal_signal_detected,
			built_at = excluded.built_at`,
		p.SenderDomain, p.CompanyName, p.PrimaryEmail, p.ReplyToEmail, p.Industry,
		p.CompanySize, p.SophisticationAvg, p.SophisticationTrend, p.ESPUsed,
		p.ProductType, p.ProductDescription, jsonString(p.PainPoints), p.TargetAudience,
		jsonString(p.KnownContacts), p.TotalMessages, nullTime(p.FirstContact),
		nullTime(p.LastContact), p.AvgFrequencyDays, jsonString(p.OfferTypeDistribution),
		jsonString(p.CTATextsAll), jsonString(p.SocialLinks), p.PhysicalAddress,
		jsonString(p.UTMCampaignNames), boolInt(p.HasPersonalization),
		boolInt(p.HasPartnerProgram), jsonString(p.PartnerProgramURLs),
		jsonString(p.RenewalDates), jsonString(p.MonetarySignals),
		jsonString(p.WarmSignals), p.AuthenticationQuality, p.UnsubscribeURL,
		jsonString(p.EconomicSegments), p.ThreadInitiationRatio, p.UserReplyRate,
		p.AIConfidenceAvg, boolInt(p.RenewalSignalDetected), time.Now().UTC(),
	)
	return eris.Wrapf(err, "store: upsert profile %s", p.SenderDomain)
}

const profileCols = `sender_domain, company_name, primary_email, reply_to_email,
	industry, company_size, marketing_sophistication_avg, marketing_sophistication_trend,
	esp_used, product_type, product_description, pain_points, target_audience,
	known_contacts, total_messages, first_contact, last_contact, avg_frequency_days,
	offer_type_distribution, cta_texts_all, social_links, physical_address,
	utm_campaign_names, has_personalization, has_partner_program, partner_program_urls,
	renewal_dates, monetary_signals, warm_signals, authentication_quality,
	unsubscribe_url, economic_segments, thread_initiation_ratio, user_reply_rate,
	ai_confidence_avg, renewal_signal_detected`

func (s *DB) GetProfile(ctx context.Context, domain string) (*model.SenderProfile, error) {
	row := s.queryRow(ctx,
		`SELECT `+profileCols+` FROM sender_profiles WHERE sender_domain = ?`, domain)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (s *DB) ListProfiles(ctx context.Context) ([]model.SenderProfile, error) {
	rows, err := s.query(ctx,
		`SELECT `+profileCols+` FROM sender_profiles ORDER BY sender_domain`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list profiles")
	}
	defer rows.Close()

	var out []model.SenderProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *DB) CountProfilesByIndustry(ctx context.Context) (map[string]int, error) {
	rows, err := s.query(ctx, `SELECT industry, count(*) FROM sender_profiles
		WHERE industry != '' GROUP BY industry`)
	if err != nil {
		return nil, eris.Wrap(err, "store: profiles by industry")
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			industry string
			n        int
		)
		if err := rows.Scan(&industry, &n); err != nil {
			return nil, eris.Wrap(err, "store: scan industry count")
		}
		out[industry] = n
	}
	return out, rows.Err()
}

func scanProfile(row scannable) (*model.SenderProfile, error) {
	var (
		p                                          model.SenderProfile
		pains, contacts, offers, ctas              string
		socials, utms, partnerURLs, renewals       string
		monetary, warm, segments                   string
		first, last                                sql.NullTime
		hasPers, hasPartner, renewalDetected       int
	)
	err := row.Scan(&p.SenderDomain, &p.CompanyName, &p.PrimaryEmail, &p.ReplyToEmail,
		&p.Industry, &p.CompanySize, &p.SophisticationAvg, &p.SophisticationTrend,
		&p.ESPUsed, &p.ProductType, &p.ProductDescription, &pains, &p.TargetAudience,
		&contacts, &p.TotalMessages, &first, &last, &p.AvgFrequencyDays,
		&offers, &ctas, &socials, &p.PhysicalAddress, &utms, &hasPers, &hasPartner,
		&partnerURLs, &renewals, &monetary, &warm, &p.AuthenticationQuality,
		&p.UnsubscribeURL, &segments, &p.ThreadInitiationRatio, &p.UserReplyRate,
		&p.AIConfidenceAvg, &renewalDetected)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, eris.Wrap(err, "store: scan profile")
	}
	if first.Valid {
		p.FirstContact = first.Time
	}
	if last.Valid {
		p.LastContact = last.Time
	}
	p.HasPersonalization = hasPers != 0
	p.HasPartnerProgram = hasPartner != 0
	p.RenewalSignalDetected = renewalDetected != 0
	fromJSON(pains, &p.PainPoints)
	fromJSON(contacts, &p.KnownContacts)
	fromJSON(offers, &p.OfferTypeDistribution)
	fromJSON(ctas, &p.CTATextsAll)
	fromJSON(socials, &p.SocialLinks)
	fromJSON(utms, &p.UTMCampaignNames)
	fromJSON(partnerURLs, &p.PartnerProgramURLs)
	fromJSON(renewals, &p.RenewalDates)
	fromJSON(monetary, &p.MonetarySignals)
	fromJSON(warm, &p.WarmSignals)
	fromJSON(segments, &p.EconomicSegments)
	return &p, nil
}

func (s *DB) UpsertRelationship(ctx context.Context, r *model.SenderRelationship) error {
	_, err := s.exec(ctx, `INSERT INTO sender_relationships
		(sender_domain, relationship_type, note, suppress_gems, source, confidence, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (sender_domain) DO UPDATE SET
			relationship_type = excluded.relationship_type,
			note = excluded.note,
			suppress_gems = excluded.suppress_gems,
			source = excluded.source,
			confidence = excluded.confidence,
			updated_at = excluded.updated_at`,
		r.SenderDomain, string(r.Type), r.Note, boolInt(r.SuppressGems),
		r.Source, r.Confidence, time.Now().UTC(),
	)
	return eris.Wrapf(err, "store: upsert relationship %s", r.SenderDomain)
}

const relationshipCols = `sender_domain, relationship_type, note, suppress_gems,
	source, confidence`

func (s *DB) GetRelationship(ctx context.Context, domain string) (*model.SenderRelationship, error) {
	row := s.queryRow(ctx,
		`SELECT `+relationshipCols+` FROM sender_relationships WHERE sender_domain = ?`, domain)
	r, err := scanRelationship(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func (s *DB) ListRelationships(ctx context.Context, relType model.RelationshipType) ([]model.SenderRelationship, error) {
	query := `SELECT ` + relationshipCols + ` FROM sender_relationships`
	var args []any
	if relType != "" {
		query += ` WHERE relationship_type = ?`
		args = append(args, string(relType))
	}
	query += ` ORDER BY sender_domain`

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list relationships")
	}
	defer rows.Close()

	var out []model.SenderRelationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRelationship(row scannable) (*model.SenderRelationship, error) {
	var (
		r        model.SenderRelationship
		relType  string
		suppress int
	)
	err := row.Scan(&r.SenderDomain, &relType, &r.Note, &suppress, &r.Source, &r.Confidence)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, eris.Wrap(err, "store: scan relationship")
	}
	r.Type = model.RelationshipType(relType)
	r.SuppressGems = suppress != 0
	return &r, nil
}

// ReplaceSegments swaps a domain's full segment set atomically.
func (s *DB) ReplaceSegments(ctx context.Context, domain string, segs []model.SenderSegment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin replace segments")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		s.q(`DELETE FROM sender_segments WHERE sender_domain = ?`), domain,
	); err != nil {
		return eris.Wrap(err, "store: clear segments")
	}
	now := time.Now().UTC()
	for _, seg := range segs {
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO sender_segments
			(sender_domain, segment, sub_segment, confidence, assigned_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (sender_domain, segment, sub_segment) DO UPDATE SET
				confidence = excluded.confidence,
				assigned_at = excluded.assigned_at`),
			domain, seg.Segment, seg.SubSegment, seg.Confidence, now,
		); err != nil {
			return eris.Wrap(err, "store: insert segment")
		}
	}
	return eris.Wrap(tx.Commit(), "store: commit replace segments")
}

func (s *DB) ListSegments(ctx context.Context, domain string) ([]model.SenderSegment, error) {
	return s.listSegments(ctx, `SELECT sender_domain, segment, sub_segment, confidence
		FROM sender_segments WHERE sender_domain = ? ORDER BY segment, sub_segment`, domain)
}

func (s *DB) ListAllSegments(ctx context.Context) ([]model.SenderSegment, error) {
	return s.listSegments(ctx, `SELECT sender_domain, segment, sub_segment, confidence
		FROM sender_segments ORDER BY sender_domain, segment, sub_segment`)
}

func (s *DB) listSegments(ctx context.Context, query string, args ...any) ([]model.SenderSegment, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list segments")
	}
	defer rows.Close()

	var out []model.SenderSegment
	for rows.Next() {
		var seg model.SenderSegment
		if err := rows.Scan(&seg.SenderDomain, &seg.Segment, &seg.SubSegment, &seg.Confidence); err != nil {
			return nil, eris.Wrap(err, "store: scan segment")
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}
