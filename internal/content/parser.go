// Package content parses message bodies: HTML analysis, quote and
// signature stripping, offer and CTA extraction, and template forensics.
package content

import (
	"context"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/store"
)

// Parser is the content stage.
type Parser struct {
	db  store.Store
	log *zap.Logger
}

// NewParser builds the stage.
func NewParser(db store.Store) *Parser {
	return &Parser{db: db, log: zap.L().Named("content")}
}

// Run parses every message without a parsed_content row. Returns the number
// of messages processed.
func (p *Parser) Run(ctx context.Context) (int, error) {
	msgs, err := p.db.ListMessagesMissingContent(ctx)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range msgs {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		c := Parse(&msgs[i])
		if err := p.db.UpsertContent(ctx, c); err != nil {
			return processed, err
		}
		processed++
	}
	p.log.Info("content parsed", zap.Int("messages", processed))
	return processed, nil
}

// Parse analyzes one message body. HTML wins over plain text when both are
// present.
func Parse(msg *model.Message) *model.Content {
	c := &model.Content{
		MessageID:   msg.MessageID,
		LinkIntents: map[string][]string{},
		SocialLinks: map[string]string{},
	}

	var fullText string
	if strings.TrimSpace(msg.BodyHTML) != "" {
		fullText = parseHTML(msg.BodyHTML, c)
	} else {
		fullText = msg.BodyText
	}

	clean, signature := stripSignatureAndQuotes(fullText)
	clean, footer := stripFooter(clean)
	c.BodyClean = strings.TrimSpace(clean)
	c.SignatureBlock = signature
	c.FooterBlock = footer

	c.OfferTypes = detectOffers(c.BodyClean + "\n" + footer)

	if m := addressPattern.FindString(c.BodyClean); m != "" {
		c.PhysicalAddress = strings.TrimSpace(m)
	} else if m := addressPattern.FindString(footer); m != "" {
		c.PhysicalAddress = strings.TrimSpace(m)
	}
	return c
}

// parseHTML walks the document once, filling the HTML-derived fields of c,
// and returns the rendered text.
func parseHTML(raw string, c *model.Content) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return raw
	}

	var (
		text         strings.Builder
		ctaTexts     []string
		seenCTA      = map[string]bool{}
		linkDomains  = map[string]bool{}
		utm          = map[string]bool{}
		tableCount   int
		styledCount  int
		headlineIsH1 bool
	)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "head":
				return
			case "table":
				tableCount++
			case "img":
				c.ImageCount++
				if isTrackingPixel(n) {
					c.TrackingPixelCount++
					c.ImageCount--
				}
			case "a":
				if href := attr(n, "href"); strings.HasPrefix(href, "http") {
					c.LinkCount++
					recordLink(href, c, linkDomains, utm)
					if isCTALink(n) {
						if t := nodeText(n); t != "" && len(t) < 80 && !seenCTA[t] {
							seenCTA[t] = true
							ctaTexts = append(ctaTexts, t)
						}
					}
				}
			case "button":
				if t := nodeText(n); t != "" && len(t) < 80 && !seenCTA[t] {
					seenCTA[t] = true
					ctaTexts = append(ctaTexts, t)
				}
			case "h1", "h2":
				if c.PrimaryHeadline == "" || (n.Data == "h1" && !headlineIsH1) {
					if t := nodeText(n); t != "" {
						c.PrimaryHeadline = t
						headlineIsH1 = n.Data == "h1"
					}
				}
			}
			if attr(n, "style") != "" {
				styledCount++
			}
		}
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			text.WriteString("\n")
		}
	}
	walk(doc)

	c.CTATexts = ctaTexts
	c.UniqueLinkDomains = sortedKeys(linkDomains)
	c.UTMCampaigns = sortedKeys(utm)

	c.PersonalizationTokens = findPersonalizationTokens(raw)
	c.HasPersonalization = len(c.PersonalizationTokens) > 0

	c.TemplateComplexity = templateComplexity(raw, tableCount, styledCount,
		c.ImageCount, c.LinkCount, c.HasPersonalization)
	return text.String()
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "tr": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "table": true,
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func isTrackingPixel(n *html.Node) bool {
	w, h := attr(n, "width"), attr(n, "height")
	return w == "1" || w == "0" || h == "1" || h == "0"
}

func isCTALink(n *html.Node) bool {
	classes := strings.ToLower(attr(n, "class"))
	style := strings.ToLower(attr(n, "style"))
	return strings.Contains(classes, "button") ||
		strings.Contains(classes, "btn") ||
		strings.Contains(classes, "cta") ||
		strings.Contains(style, "background-color") ||
		strings.Contains(style, "background:")
}

// linkIntentTable is ordered; the first matching intent wins per URL.
var linkIntentTable = []struct {
	intent  string
	signals []string
}{
	{"pricing_page", []string{"pricing", "plans", "packages", "/pricing", "cost"}},
	{"demo_booking", []string{"demo", "book-a-call", "calendly", "schedule"}},
	{"partner_program", []string{"partner", "affiliate", "referral", "reseller", "/partners"}},
	{"marketplace_listing", []string{"marketplace", "app-store", "integrations", "/apps"}},
	{"job_posting", []string{"careers", "jobs", "hiring", "we-re-hiring", "/jobs"}},
	{"case_study", []string{"case-study", "customer-story", "success-story"}},
	{"free_tool", []string{"free-tool", "calculator", "generator", "template"}},
}

var socialPatterns = []struct {
	platform string
	pattern  *regexp.Regexp
}{
	{"twitter", regexp.MustCompile(`(?:twitter\.com|x\.com)/`)},
	{"linkedin", regexp.MustCompile(`linkedin\.com/`)},
	{"facebook", regexp.MustCompile(`facebook\.com/`)},
	{"instagram", regexp.MustCompile(`instagram\.com/`)},
	{"youtube", regexp.MustCompile(`youtube\.com/`)},
}

func recordLink(href string, c *model.Content, domains, utm map[string]bool) {
	if u, err := url.Parse(href); err == nil {
		if u.Host != "" {
			domains[u.Host] = true
		}
		if campaign := u.Query().Get("utm_campaign"); campaign != "" {
			utm[campaign] = true
		}
	}

	lower := strings.ToLower(href)
	for _, row := range linkIntentTable {
		if containsAny(lower, row.signals) {
			c.LinkIntents[row.intent] = append(c.LinkIntents[row.intent], href)
			break
		}
	}

	for _, sp := range socialPatterns {
		if _, ok := c.SocialLinks[sp.platform]; !ok && sp.pattern.MatchString(lower) {
			c.SocialLinks[sp.platform] = href
		}
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var personalizationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`%%[A-Z_]+%%`),
	regexp.MustCompile(`\{\{[^}]+\}\}`),
	regexp.MustCompile(`\*\|[A-Z_]+\|\*`),
}

func findPersonalizationTokens(raw string) []string {
	seen := map[string]bool{}
	var tokens []string
	for _, p := range personalizationPatterns {
		for _, m := range p.FindAllString(raw, -1) {
			if !seen[m] {
				seen[m] = true
				tokens = append(tokens, m)
			}
		}
	}
	sort.Strings(tokens)
	return tokens
}

func templateComplexity(raw string, tables, styled, images, links int, personalized bool) int {
	score := min(tables*5, 25) + min(styled*2, 20) + min(images*3, 15) + min(links*2, 15)
	if strings.Contains(raw, "@media") {
		score += 15
	}
	if personalized {
		score += 10
	}
	return min(score, 100)
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var addressPattern = regexp.MustCompile(
	`\d{1,5}\s+[\w\s]+(?:Street|St|Avenue|Ave|Boulevard|Blvd|Road|Rd|Drive|Dr|Lane|Ln|Way|Court|Ct)` +
		`[,.\s]+[\w\s]+[,.\s]+[A-Z]{2}\s+\d{5}`)
