package engage

import (
	"strings"
	"text/template"

	"github.com/sells-group/gemsieve/internal/model"
)

const systemPrompt = "You are generating personalized engagement messages. " +
	"Write naturally, not like a template."

// promptContext carries every variable the strategy templates may
// reference. List fields are pre-rendered as JSON strings.
type promptContext struct {
	Strategy           string
	GemType            string
	GemExplanationJSON string

	CompanyName        string
	ContactName        string
	ContactRole        string
	Industry           string
	CompanySize        string
	ESPUsed            string
	Sophistication     float64
	ProductDescription string
	PainPoints         string
	Observation        string
	RelationshipNote   string

	YourService  string
	YourTone     string
	YourAudience string

	// Strategy-specific.
	ThreadSubject   string
	DormancyDays    int
	RenewalDates    string
	MonetarySignals string
	PartnerURLs     string
	TargetAudience  string
}

const responseSchema = `Respond in JSON:
{
  "subject_line": "email subject",
  "body": "the email body text"
}`

var defaultTemplate = mustTemplate("default", `You are generating a personalized engagement message.

STRATEGY: {{.Strategy}}
GEM TYPE: {{.GemType}}
GEM EXPLANATION: {{.GemExplanationJSON}}

RECIPIENT PROFILE:
  Company: {{.CompanyName}}
  Contact: {{.ContactName}}, {{.ContactRole}}
  Industry: {{.Industry}}
  Size: {{.CompanySize}}
  ESP: {{.ESPUsed}}
  Marketing Score: {{.Sophistication}}/10
  They sell: {{.ProductDescription}}
  Their pain points: {{.PainPoints}}
  Specific observation: {{.Observation}}
  Relationship context: {{.RelationshipNote}}

MY SERVICES: {{.YourService}}
MY TONE: {{.YourTone}}

Write a short engagement message (under 150 words) that:
1. Opens with a specific, non-generic hook referencing real context from the gem
2. Demonstrates insight they'd find valuable (not just flattery)
3. Connects to the specific opportunity this gem represents
4. Ends with a low-friction CTA appropriate to the gem type
5. Addresses {{.ContactName}} by name if available

Do not be sycophantic. Be direct and specific. Sound like a peer, not a vendor.

`+responseSchema)

var strategyTemplates = map[string]*template.Template{
	model.StrategyAudit: mustTemplate(model.StrategyAudit, `You are writing an "I Audited Your Funnel" consultative outreach email.

GEM TYPE: {{.GemType}}
GEM EXPLANATION: {{.GemExplanationJSON}}

RECIPIENT PROFILE:
  Company: {{.CompanyName}}
  Contact: {{.ContactName}}, {{.ContactRole}}
  Industry: {{.Industry}}
  Size: {{.CompanySize}}
  ESP: {{.ESPUsed}}
  Marketing Score: {{.Sophistication}}/10
  They sell: {{.ProductDescription}}
  Their pain points: {{.PainPoints}}
  Specific observation: {{.Observation}}

MY SERVICES: {{.YourService}}
MY TONE: {{.YourTone}}
MY AUDIENCE: {{.YourAudience}}

Write a short (under 150 words) consultative outreach email that:
1. Opens by referencing a specific, real gap you found in their marketing (low sophistication score, missing UTM, weak CTA, etc.)
2. Provides ONE concrete, actionable insight they can use immediately, not generic advice
3. Positions you as a peer who noticed something, not a vendor pitching
4. Ends with a low-friction CTA: "Happy to share the full audit notes if helpful"
5. Addresses {{.ContactName}} by name if available

Tone: helpful expert, not salesy. Be specific about what you observed.

`+responseSchema),

	model.StrategyRevival: mustTemplate(model.StrategyRevival, `You are writing a thread revival follow-up email.

GEM TYPE: {{.GemType}}
GEM EXPLANATION: {{.GemExplanationJSON}}

THREAD CONTEXT:
  Subject: {{.ThreadSubject}}
  Dormancy: {{.DormancyDays}} days since last activity

RECIPIENT PROFILE:
  Company: {{.CompanyName}}
  Contact: {{.ContactName}}, {{.ContactRole}}
  Industry: {{.Industry}}
  Relationship context: {{.RelationshipNote}}

MY SERVICES: {{.YourService}}
MY TONE: {{.YourTone}}

Write a short (under 120 words) thread revival email that:
1. References the original thread naturally. Don't say "I noticed we lost touch"
2. Adds NEW value: a relevant insight, resource, or development since you last spoke
3. Acknowledges the time gap without apologizing excessively
4. Ends with a specific, easy-to-answer question (not "let's catch up")
5. Addresses {{.ContactName}} by name if available

Tone: warm but professional. Sound like you just thought of them, not like a CRM triggered this.

`+responseSchema),

	model.StrategyPartner: mustTemplate(model.StrategyPartner, `You are writing a partner program application or inquiry email.

GEM TYPE: {{.GemType}}
GEM EXPLANATION: {{.GemExplanationJSON}}

RECIPIENT PROFILE:
  Company: {{.CompanyName}}
  Contact: {{.ContactName}}, {{.ContactRole}}
  Industry: {{.Industry}}
  Partner URLs: {{.PartnerURLs}}

MY SERVICES: {{.YourService}}
MY TONE: {{.YourTone}}
MY AUDIENCE: {{.YourAudience}}

Write a short (under 150 words) partner program inquiry email that:
1. References their specific partner/affiliate program by name if possible
2. Explains concretely how YOUR audience overlaps with theirs
3. Quantifies your reach if possible (audience size, engagement metrics)
4. Proposes a specific collaboration format (referral, integration, co-content)
5. Addresses {{.ContactName}} by name if available

Tone: business-like and specific. Show you've done your homework on their program.

`+responseSchema),

	model.StrategyRenewal: mustTemplate(model.StrategyRenewal, `You are writing a data-driven renewal negotiation email.

GEM TYPE: {{.GemType}}
GEM EXPLANATION: {{.GemExplanationJSON}}

RENEWAL CONTEXT:
  Renewal dates: {{.RenewalDates}}
  Monetary signals: {{.MonetarySignals}}

RECIPIENT PROFILE:
  Company: {{.CompanyName}}
  Contact: {{.ContactName}}, {{.ContactRole}}
  Relationship context: {{.RelationshipNote}}

MY TONE: {{.YourTone}}

Write a short (under 120 words) renewal negotiation email that:
1. References the upcoming renewal date specifically
2. Cites concrete usage data or value received (from gem explanation)
3. Requests a meeting to discuss terms, framed as a mutual review, not adversarial
4. Mentions you've been evaluating alternatives (without naming them)
5. Addresses {{.ContactName}} or "the account team" appropriately

Tone: respectful but firm. You're a valued customer exploring options, not threatening to leave.

`+responseSchema),

	model.StrategyIndustry: mustTemplate(model.StrategyIndustry, `You are writing a content-led engagement invitation email.

GEM TYPE: {{.GemType}}
GEM EXPLANATION: {{.GemExplanationJSON}}

RECIPIENT PROFILE:
  Company: {{.CompanyName}}
  Contact: {{.ContactName}}, {{.ContactRole}}
  Industry: {{.Industry}}
  They sell: {{.ProductDescription}}

MY SERVICES: {{.YourService}}
MY TONE: {{.YourTone}}

Write a short (under 130 words) engagement email that:
1. References a specific trend or data point relevant to their industry
2. Mentions a piece of content you're creating (report, analysis, case study)
3. Invites them to contribute a perspective or be featured
4. Explains the mutual benefit: their expertise + your distribution
5. Addresses {{.ContactName}} by name if available

Tone: collaborative. You're building something valuable and they can be part of it.

`+responseSchema),

	model.StrategyMirror: mustTemplate(model.StrategyMirror, `You are writing a mirror-match style-matching email.

GEM TYPE: {{.GemType}}
GEM EXPLANATION: {{.GemExplanationJSON}}

RECIPIENT PROFILE:
  Company: {{.CompanyName}}
  Contact: {{.ContactName}}, {{.ContactRole}}
  Industry: {{.Industry}}
  Size: {{.CompanySize}}
  ESP: {{.ESPUsed}}
  Marketing Score: {{.Sophistication}}/10
  Their CTAs: {{.Observation}}

MY SERVICES: {{.YourService}}
MY TONE: {{.YourTone}}

Write a short (under 130 words) engagement email that:
1. Mirrors their communication style. Match their level of formality and directness
2. References something SPECIFIC from their emails you've received (an offer, a CTA, a campaign)
3. Proposes a value exchange: something you can offer in return for what you want
4. Keeps the CTA proportional to the relationship stage
5. Addresses {{.ContactName}} by name if available

Tone: match theirs. If they're casual, be casual. If formal, be formal.

`+responseSchema),

	model.StrategyDistribution: mustTemplate(model.StrategyDistribution, `You are writing a pitch to get featured in a newsletter, podcast, or event.

GEM TYPE: {{.GemType}}
GEM EXPLANATION: {{.GemExplanationJSON}}

RECIPIENT PROFILE:
  Company: {{.CompanyName}}
  Contact: {{.ContactName}}, {{.ContactRole}}
  Industry: {{.Industry}}
  Target audience: {{.TargetAudience}}

MY SERVICES: {{.YourService}}
MY TONE: {{.YourTone}}
MY AUDIENCE: {{.YourAudience}}

Write a short (under 150 words) pitch email that:
1. References their specific publication/newsletter/podcast by name
2. Proposes a concrete topic or angle relevant to their audience
3. Explains why YOUR perspective adds unique value to their content
4. Offers social proof (expertise, audience overlap, previous features)
5. Makes the ask specific: guest post, interview, sponsorship, speaking slot
6. Addresses {{.ContactName}} by name if available

Tone: professional and specific. You're pitching, not begging.

`+responseSchema),
}

func mustTemplate(name, text string) *template.Template {
	return template.Must(template.New(name).Parse(text))
}

// renderPrompt fills the strategy's template, falling back to the generic
// one for unmapped strategies.
func renderPrompt(strategy string, pc *promptContext) (string, error) {
	tmpl, ok := strategyTemplates[strategy]
	if !ok {
		tmpl = defaultTemplate
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, pc); err != nil {
		return "", err
	}
	return b.String(), nil
}
