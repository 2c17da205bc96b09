// Package entities extracts typed entities (people, organizations, money,
// dates, roles, procurement signals) from parsed message bodies.
package entities

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/width"

	"github.com/sells-group/gemsieve/internal/config"
	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/store"
)

// nerTextLimit caps how much body text is sent to the tagger.
const nerTextLimit = 50000

// Extractor is the entity stage. A nil tagger degrades to regex and
// header extraction only.
type Extractor struct {
	db     store.Store
	tagger Tagger
	cfg    config.EntityConfig
	log    *zap.Logger
	now    func() time.Time
}

// NewExtractor builds the stage.
func NewExtractor(db store.Store, tagger Tagger, cfg config.EntityConfig) *Extractor {
	return &Extractor{
		db:     db,
		tagger: tagger,
		cfg:    cfg,
		log:    zap.L().Named("entities"),
		now:    time.Now,
	}
}

// Run extracts entities for every message that has parsed content but no
// entity rows yet. Returns the number of messages processed.
func (e *Extractor) Run(ctx context.Context) (int, error) {
	msgs, err := e.db.ListMessagesMissingEntities(ctx)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range msgs {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		msg := &msgs[i]

		content, err := e.db.GetContent(ctx, msg.MessageID)
		if err != nil {
			return processed, err
		}
		if content == nil {
			continue
		}

		ents := e.Extract(ctx, msg, content)
		if err := e.db.ReplaceEntities(ctx, msg.MessageID, ents); err != nil {
			return processed, err
		}
		processed++
	}
	e.log.Info("entities extracted", zap.Int("messages", processed))
	return processed, nil
}

// Extract derives the full entity set for one message.
func (e *Extractor) Extract(ctx context.Context, msg *model.Message, c *model.Content) []model.Entity {
	body := c.BodyClean
	if len(body) > nerTextLimit {
		body = body[:nerTextLimit]
	}
	signature := c.SignatureBlock

	var ents []model.Entity

	// Roles first: the sender's relationship classification depends on
	// whether a senior title appears in the signature.
	roles := extractRoles(signature)
	senderRole := ""
	if len(roles) > 0 {
		senderRole = roles[0].Normalized
	}

	ents = append(ents, e.senderEntity(msg, senderRole))
	ents = append(ents, roles...)
	ents = append(ents, e.ccEntities(msg)...)
	ents = append(ents, e.nerEntities(ctx, msg.MessageID, body, signature)...)

	if e.cfg.ExtractMonetary {
		ents = append(ents, extractMonetary(body+"\n"+msg.Subject)...)
	}
	if e.cfg.ExtractDates {
		ents = append(ents, extractDates(body, e.now())...)
	}
	if e.cfg.ExtractProcurement {
		ents = append(ents, extractProcurement(body)...)
	}
	ents = append(ents, extractPhones(body+"\n"+signature)...)
	ents = append(ents, extractURLs(body+"\n"+signature)...)

	for i := range ents {
		ents[i].MessageID = msg.MessageID
	}
	return ents
}

// foldValue canonicalizes an entity value for entity_normalized and
// dedupe: full-width forms are narrowed, then Unicode case-folded.
func foldValue(s string) string {
	return cases.Fold().String(width.Narrow.String(s))
}

// senderEntity records the From address as a person entity with its
// relationship classification embedded in the context.
func (e *Extractor) senderEntity(msg *model.Message, senderRole string) model.Entity {
	name := strings.TrimSpace(msg.FromName)
	if name == "" {
		name = localPart(msg.FromAddress)
	}
	rel := classifyPersonRelationship(msg.FromAddress, senderRole)
	return model.Entity{
		Type:       model.EntityPerson,
		Value:      name,
		Normalized: foldValue(name),
		Context:    fmt.Sprintf("From: %s <%s> (%s)", name, msg.FromAddress, rel),
		Confidence: 1.0,
		Source:     model.SourceHeader,
	}
}

func (e *Extractor) ccEntities(msg *model.Message) []model.Entity {
	var out []model.Entity
	for _, addr := range msg.CCAddresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		name := localPart(addr)
		rel := classifyPersonRelationship(addr, "")
		out = append(out, model.Entity{
			Type:       model.EntityPerson,
			Value:      name,
			Normalized: foldValue(name),
			Context:    fmt.Sprintf("CC: %s (%s)", addr, rel),
			Confidence: 0.6,
			Source:     model.SourceHeader,
		})
	}
	return out
}

// nerLabelMap translates tagger labels to entity types. Geo-political
// entities are folded into organization.
var nerLabelMap = map[string]model.EntityType{
	"PERSON": model.EntityPerson,
	"ORG":    model.EntityOrganization,
	"GPE":    model.EntityOrganization,
	"DATE":   model.EntityDate,
}

func (e *Extractor) nerEntities(ctx context.Context, messageID, body, signature string) []model.Entity {
	if e.tagger == nil {
		return nil
	}

	var out []model.Entity
	seen := map[string]bool{}

	add := func(span Span, conf float64, context string) {
		etype, ok := nerLabelMap[span.Label]
		if !ok {
			return
		}
		val := strings.TrimSpace(span.Text)
		key := string(etype) + "\x00" + foldValue(val)
		if val == "" || seen[key] {
			return
		}
		seen[key] = true
		if span.Confidence > 0 {
			conf = span.Confidence
		}
		out = append(out, model.Entity{
			Type:       etype,
			Value:      val,
			Normalized: foldValue(val),
			Context:    context,
			Confidence: conf,
			Source:     model.SourceNER,
		})
	}

	if strings.TrimSpace(body) != "" {
		spans, err := e.tagger.Tag(ctx, body)
		if err != nil {
			e.log.Warn("tagger unavailable, regex extraction only",
				zap.String("message_id", messageID), zap.Error(err))
		} else {
			for _, span := range spans {
				add(span, 0.8, contextAround(body, strings.Index(body, span.Text)))
			}
		}
	}

	// Signature spans are higher confidence: people sign with their real
	// name and employer.
	if strings.TrimSpace(signature) != "" {
		spans, err := e.tagger.Tag(ctx, signature)
		if err == nil {
			for _, span := range spans {
				if span.Label != "PERSON" && span.Label != "ORG" {
					continue
				}
				add(span, 0.9, "signature")
			}
		}
	}
	return out
}

// Keyword sets for person relationship classification.
var (
	automatedLocals = []string{
		"noreply", "no-reply", "donotreply", "notifications",
		"mailer-daemon", "bounce", "automated", "system", "alerts",
	}
	seniorMarkers = []string{
		"ceo", "cto", "cfo", "coo", "cmo", "founder", "co-founder",
		"president", "vp", "vice president", "director", "head of", "partner",
	}
	vendorLocals = []string{"sales", "support", "billing", "account", "success"}
)

// classifyPersonRelationship buckets an address into automated,
// decision_maker, vendor_contact, or peer.
func classifyPersonRelationship(addr, role string) string {
	local := strings.ToLower(localPart(addr))
	roleLower := strings.ToLower(role)

	for _, marker := range seniorMarkers {
		if roleLower != "" && strings.Contains(roleLower, marker) {
			return "decision_maker"
		}
	}
	for _, marker := range automatedLocals {
		if strings.Contains(local, marker) {
			return "automated"
		}
	}
	for _, marker := range vendorLocals {
		if strings.Contains(local, marker) {
			return "vendor_contact"
		}
	}
	return "peer"
}

func localPart(addr string) string {
	if at := strings.Index(addr, "@"); at > 0 {
		return addr[:at]
	}
	return addr
}
