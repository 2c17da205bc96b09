package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gemsieve/internal/model"
)

func (s *DB) UpsertMetadata(ctx context.Context, m *model.Metadata) error {
	_, err := s.exec(ctx, `INSERT INTO parsed_metadata
		(message_id, sender_domain, sender_subdomain, envelope_sender, esp_identified,
		 esp_confidence, dkim_domain, spf_result, dmarc_result, sending_ip, mail_server,
		 x_mailer, precedence, feedback_id, list_unsubscribe_url, list_unsubscribe_email,
		 is_bulk, parsed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (message_id) DO UPDATE SET
			sender_domain = excluded.sender_domain,
			sender_subdomain = excluded.sender_subdomain,
			envelope_sender = excluded.envelope_sender,
			esp_identified = excluded.esp_identified,
			esp_confidence = excluded.esp_confidence,
			dkim_domain = excluded.dkim_domain,
			spf_result = excluded.spf_result,
			dmarc_result = excluded.dmarc_result,
			sending_ip = excluded.sending_ip,
			mail_server = excluded.mail_server,
			x_mailer = excluded.x_mailer,
			precedence = excluded.precedence,
			feedback_id = excluded.feedback_id,
			list_unsubscribe_url = excluded.list_unsubscribe_url,
			list_unsubscribe_email = excluded.list_unsubscribe_email,
			is_bulk = excluded.is_bulk,
			parsed_at = excluded.parsed_at`,
		m.MessageID, m.SenderDomain, m.SenderSubdomain, m.EnvelopeSender, m.ESPIdentified,
		m.ESPConfidence, m.DKIMDomain, m.SPFResult, m.DMARCResult, m.SendingIP, m.MailServer,
		m.XMailer, m.Precedence, m.FeedbackID, m.ListUnsubscribeURL, m.ListUnsubscribeEmail,
		boolInt(m.IsBulk), time.Now().UTC(),
	)
	return eris.Wrapf(err, "store: upsert metadata %s", m.MessageID)
}

const metadataCols = `message_id, sender_domain, sender_subdomain, envelope_sender,
	esp_identified, esp_confidence, dkim_domain, spf_result, dmarc_result, sending_ip,
	mail_server, x_mailer, precedence, feedback_id, list_unsubscribe_url,
	list_unsubscribe_email, is_bulk`

func (s *DB) GetMetadata(ctx context.Context, messageID string) (*model.Metadata, error) {
	row := s.queryRow(ctx,
		`SELECT `+metadataCols+` FROM parsed_metadata WHERE message_id = ?`, messageID)
	m, err := scanMetadata(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

func (s *DB) ListSenderDomains(ctx context.Context) ([]string, error) {
	return s.stringColumn(ctx,
		`SELECT DISTINCT sender_domain FROM parsed_metadata
		 WHERE sender_domain != '' ORDER BY sender_domain`)
}

func (s *DB) ListMessagesByDomain(ctx context.Context, domain string) ([]model.Message, error) {
	return s.listMessages(ctx, `SELECT m.message_id, m.thread_id, m.date, m.from_address,
		m.from_name, m.reply_to, m.to_addresses, m.cc_addresses, m.subject, m.headers_raw,
		m.body_html, m.body_text, m.labels, m.snippet, m.size_estimate, m.is_sent
		FROM messages m
		JOIN parsed_metadata pm ON pm.message_id = m.message_id
		WHERE pm.sender_domain = ?
		ORDER BY m.date`, domain)
}

func (s *DB) ListMetadataByDomain(ctx context.Context, domain string) ([]model.Metadata, error) {
	rows, err := s.query(ctx,
		`SELECT `+metadataCols+` FROM parsed_metadata WHERE sender_domain = ?`, domain)
	if err != nil {
		return nil, eris.Wrapf(err, "store: metadata by domain %s", domain)
	}
	defer rows.Close()

	var out []model.Metadata
	for rows.Next() {
		m, err := scanMetadata(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanMetadata(row scannable) (*model.Metadata, error) {
	var (
		m      model.Metadata
		isBulk int
	)
	err := row.Scan(&m.MessageID, &m.SenderDomain, &m.SenderSubdomain, &m.EnvelopeSender,
		&m.ESPIdentified, &m.ESPConfidence, &m.DKIMDomain, &m.SPFResult, &m.DMARCResult,
		&m.SendingIP, &m.MailServer, &m.XMailer, &m.Precedence, &m.FeedbackID,
		&m.ListUnsubscribeURL, &m.ListUnsubscribeEmail, &isBulk)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, eris.Wrap(err, "store: scan metadata")
	}
	m.IsBulk = isBulk != 0
	return &m, nil
}

func (s *DB) UpsertSenderTemporal(ctx context.Context, t *model.SenderTemporal) error {
	_, err := s.exec(ctx, `INSERT INTO sender_temporal
		(sender_domain, first_seen, last_seen, total_messages, avg_frequency_days,
		 most_common_hour, most_common_weekday)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (sender_domain) DO UPDATE SET
			first_seen = excluded.first_seen,
			last_seen = excluded.last_seen,
			total_messages = excluded.total_messages,
			avg_frequency_days = excluded.avg_frequency_days,
			most_common_hour = excluded.most_common_hour,
			most_common_weekday = excluded.most_common_weekday`,
		t.SenderDomain, nullTime(t.FirstSeen), nullTime(t.LastSeen), t.TotalMessages,
		t.AvgFrequencyDays, t.MostCommonHour, t.MostCommonWeekday,
	)
	return eris.Wrapf(err, "store: upsert temporal %s", t.SenderDomain)
}

func (s *DB) GetSenderTemporal(ctx context.Context, domain string) (*model.SenderTemporal, error) {
	var (
		t           model.SenderTemporal
		first, last sql.NullTime
	)
	err := s.queryRow(ctx, `SELECT sender_domain, first_seen, last_seen, total_messages,
			avg_frequency_days, most_common_hour, most_common_weekday
		FROM sender_temporal WHERE sender_domain = ?`, domain,
	).Scan(&t.SenderDomain, &first, &last, &t.TotalMessages, &t.AvgFrequencyDays,
		&t.MostCommonHour, &t.MostCommonWeekday)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get temporal %s", domain)
	}
	if first.Valid {
		t.FirstSeen = first.Time
	}
	if last.Valid {
		t.LastSeen = last.Time
	}
	return &t, nil
}

func (s *DB) UpsertContent(ctx context.Context, c *model.Content) error {
	_, err := s.exec(ctx, `INSERT INTO parsed_content
		(message_id, body_clean, signature_block, footer_block, primary_headline,
		 cta_texts, offer_types, has_personalization, personalization_tokens, link_count,
		 tracking_pixel_count, unique_link_domains, link_intents, utm_campaigns,
		 physical_address, social_links, image_count, template_complexity, parsed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (message_id) DO UPDATE SET
			body_clean = excluded.body_clean,
			signature_block = excluded.signature_block,
			footer_block = excluded.footer_block,
			primary_headline = excluded.primary_headline,
			cta_texts = excluded.cta_texts,
			offer_types = excluded.offer_types,
			has_personalization = excluded.has_personalization,
			personalization_tokens = excluded.personalization_tokens,
			link_count = excluded.link_count,
			tracking_pixel_count = excluded.tracking_pixel_count,
			unique_link_domains = excluded.unique_link_domains,
			link_intents = excluded.link_intents,
			utm_campaigns = excluded.utm_campaigns,
			physical_address = excluded.physical_address,
			social_links = excluded.social_links,
			image_count = excluded.image_count,
			template_complexity = excluded.template_complexity,
			parsed_at = excluded.parsed_at`,
		c.MessageID, c.BodyClean, c.SignatureBlock, c.FooterBlock, c.PrimaryHeadline,
		jsonString(c.CTATexts), jsonString(c.OfferTypes), boolInt(c.HasPersonalization),
		jsonString(c.PersonalizationTokens), c.LinkCount, c.TrackingPixelCount,
		jsonString(c.UniqueLinkDomains), jsonString(c.LinkIntents), jsonString(c.UTMCampaigns),
		c.PhysicalAddress, jsonString(c.SocialLinks), c.ImageCount, c.TemplateComplexity,
		time.Now().UTC(),
	)
	return eris.Wrapf(err, "store: upsert content %s", c.MessageID)
}

func (s *DB) GetContent(ctx context.Context, messageID string) (*model.Content, error) {
	var (
		c                          model.Content
		ctas, offers, tokens       string
		domains, intents, utms     string
		socials                    string
		hasPersonalization         int
	)
	err := s.queryRow(ctx, `SELECT message_id, body_clean, signature_block, footer_block,
			primary_headline, cta_texts, offer_types, has_personalization,
			personalization_tokens, link_count, tracking_pixel_count, unique_link_domains,
			link_intents, utm_campaigns, physical_address, social_links, image_count,
			template_complexity
		FROM parsed_content WHERE message_id = ?`, messageID,
	).Scan(&c.MessageID, &c.BodyClean, &c.SignatureBlock, &c.FooterBlock,
		&c.PrimaryHeadline, &ctas, &offers, &hasPersonalization, &tokens,
		&c.LinkCount, &c.TrackingPixelCount, &domains, &intents, &utms,
		&c.PhysicalAddress, &socials, &c.ImageCount, &c.TemplateComplexity)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get content %s", messageID)
	}
	c.HasPersonalization = hasPersonalization != 0
	fromJSON(ctas, &c.CTATexts)
	fromJSON(offers, &c.OfferTypes)
	fromJSON(tokens, &c.PersonalizationTokens)
	fromJSON(domains, &c.UniqueLinkDomains)
	fromJSON(intents, &c.LinkIntents)
	fromJSON(utms, &c.UTMCampaigns)
	fromJSON(socials, &c.SocialLinks)
	return &c, nil
}

// ReplaceEntities swaps the full entity set for a message atomically, keeping
// entity extraction idempotent despite the auto-id key.
func (s *DB) ReplaceEntities(ctx context.Context, messageID string, ents []model.Entity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin replace entities")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		s.q(`DELETE FROM extracted_entities WHERE message_id = ?`), messageID,
	); err != nil {
		return eris.Wrap(err, "store: clear entities")
	}
	now := time.Now().UTC()
	for _, e := range ents {
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO extracted_entities
			(message_id, entity_type, entity_value, entity_normalized, context,
			 confidence, source, extracted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			messageID, string(e.Type), e.Value, e.Normalized, e.Context,
			e.Confidence, string(e.Source), now,
		); err != nil {
			return eris.Wrap(err, "store: insert entity")
		}
	}
	return eris.Wrap(tx.Commit(), "store: commit replace entities")
}

const entityCols = `id, message_id, entity_type, entity_value, entity_normalized,
	context, confidence, source`

func (s *DB) ListEntitiesByMessage(ctx context.Context, messageID string) ([]model.Entity, error) {
	return s.listEntities(ctx,
		`SELECT `+entityCols+` FROM extracted_entities WHERE message_id = ? ORDER BY confidence DESC`,
		messageID)
}

func (s *DB) ListEntitiesByDomain(ctx context.Context, domain string) ([]model.Entity, error) {
	return s.listEntities(ctx, `SELECT e.id, e.message_id, e.entity_type, e.entity_value,
			e.entity_normalized, e.context, e.confidence, e.source
		FROM extracted_entities e
		JOIN parsed_metadata pm ON pm.message_id = e.message_id
		WHERE pm.sender_domain = ?
		ORDER BY e.confidence DESC`, domain)
}

func (s *DB) listEntities(ctx context.Context, query string, args ...any) ([]model.Entity, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list entities")
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		var (
			e       model.Entity
			etype   string
			esource string
		)
		if err := rows.Scan(&e.ID, &e.MessageID, &etype, &e.Value, &e.Normalized,
			&e.Context, &e.Confidence, &esource); err != nil {
			return nil, eris.Wrap(err, "store: scan entity")
		}
		e.Type = model.EntityType(etype)
		e.Source = model.EntitySource(esource)
		out = append(out, e)
	}
	return out, rows.Err()
}
