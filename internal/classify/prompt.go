package classify

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/gemsieve/internal/model"
)

const systemPrompt = "You are an email intelligence analyst. Respond with JSON only."

const classificationTemplate = `You are analyzing an email to build an intelligence profile on the sender.

SENDER: %s <%s>
SUBJECT: %s
ESP: %s
INTENT SIGNALS: %s, CTAs: %s
ENTITIES FOUND: %s
BODY (first %d chars):
%s

Classify this sender. Respond in JSON only:
{
  "industry": "one of: SaaS, E-commerce, Agency, Financial Services, Healthcare, Education, Real Estate, Media, Food & Beverage, Travel, Nonprofit, Developer Tools, Marketing, HR, Crypto, Local Business, Other",
  "company_size_estimate": "small | medium | enterprise",
  "marketing_sophistication": 1-10,
  "sender_intent": "one of: human_1to1, cold_outreach, nurture_sequence, newsletter, transactional, promotional, event_invitation, partnership_pitch, re_engagement, procurement, recruiting, community",
  "product_type": "one of: Physical product, Digital product, SaaS subscription, Professional service, Course, Event tickets, Membership, Free tool, Marketplace listing",
  "product_description": "one sentence describing what they sell or offer",
  "pain_points_addressed": ["list of problems their product solves"],
  "target_audience": "who they are selling to",
  "partner_program_detected": true or false,
  "renewal_signal_detected": true or false,
  "confidence": 0.0 to 1.0
}`

// buildPrompt renders the classification prompt for one representative
// message of a sender.
func buildPrompt(msg *model.Message, meta *model.Metadata, content *model.Content,
	entitySummary string, maxBodyChars int) string {

	body := ""
	var offers, ctas []string
	if content != nil {
		body = content.BodyClean
		offers = content.OfferTypes
		ctas = content.CTATexts
	}
	if body == "" {
		body = msg.Snippet
	}
	if len(body) > maxBodyChars {
		body = body[:maxBodyChars]
	}

	esp := "unknown"
	if meta.ESPIdentified != "" {
		esp = meta.ESPIdentified
	}

	return fmt.Sprintf(classificationTemplate,
		msg.FromName, msg.FromAddress, msg.Subject, esp,
		jsonList(offers), jsonList(ctas), entitySummary, maxBodyChars, body)
}

func jsonList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// entitySummaryLimit caps how many entities are surfaced in the prompt.
const entitySummaryLimit = 20

// summarizeEntities renders the highest-confidence entities as
// "type: value; type: value".
func summarizeEntities(ents []model.Entity) string {
	if len(ents) == 0 {
		return "None"
	}
	sort.SliceStable(ents, func(i, j int) bool {
		return ents[i].Confidence > ents[j].Confidence
	})
	if len(ents) > entitySummaryLimit {
		ents = ents[:entitySummaryLimit]
	}

	parts := make([]string, 0, len(ents))
	for _, e := range ents {
		parts = append(parts, string(e.Type)+": "+e.Value)
	}
	return strings.Join(parts, "; ")
}

// correctionsBlock formats recent overrides as few-shot guidance appended
// to the prompt in retrain mode.
func correctionsBlock(overrides []model.Override) string {
	if len(overrides) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\nPrevious classification corrections (use these to improve accuracy):\n")
	for _, o := range overrides {
		domain := o.SenderDomain
		if domain == "" {
			domain = "unknown"
		}
		original := o.OriginalValue
		if original == "" {
			original = "unknown"
		}
		fmt.Fprintf(&b, "CORRECTION: %s / %s / was %q -> %q\n",
			domain, o.FieldName, original, o.CorrectedValue)
	}
	return strings.TrimRight(b.String(), "\n")
}
