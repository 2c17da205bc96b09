package entities

import (
	"regexp"
	"strings"
	"time"

	"github.com/sells-group/gemsieve/internal/model"
)

// Monetary patterns. Each carries the context label stored on the entity.
var monetaryPatterns = []struct {
	re      *regexp.Regexp
	context string
}{
	{regexp.MustCompile(`\$[\d,]+(?:\.\d{2})?`), "USD amount"},
	{regexp.MustCompile(`\d+[kK]\s*(?:ARR|MRR|/mo|/yr)`), "SaaS metric"},
	{regexp.MustCompile(`\d+%\s*(?:off|discount|commission|revenue share)`), "percentage offer"},
}

func extractMonetary(text string) []model.Entity {
	var out []model.Entity
	for _, p := range monetaryPatterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			val := text[loc[0]:loc[1]]
			out = append(out, model.Entity{
				Type:       model.EntityMoney,
				Value:      val,
				Normalized: normalizeAmount(val),
				Context:    p.context,
				Confidence: 0.85,
				Source:     model.SourceRegex,
			})
		}
	}
	return out
}

func normalizeAmount(s string) string {
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	return strings.ToLower(strings.TrimSpace(s))
}

// Date patterns, keyed by the bucket that ends up in entity_normalized.
var datePatterns = []struct {
	bucket string
	re     *regexp.Regexp
}{
	{"renewal", regexp.MustCompile(`(?i)renew(?:al|s)?\D{0,30}?(` + dateForms + `)`)},
	{"expiration", regexp.MustCompile(`(?i)expir(?:es?|ation|ing)\D{0,30}?(` + dateForms + `)`)},
	{"deadline", regexp.MustCompile(`(?i)(?:deadline|due)\D{0,30}?(` + dateForms + `)`)},
}

const dateForms = `[A-Za-z]+ \d{1,2},? \d{4}|\d{1,2}/\d{1,2}/\d{2,4}|\d{4}-\d{2}-\d{2}`

var dateLayouts = []string{
	"January 2, 2006", "January 2 2006", "Jan 2, 2006", "Jan 2 2006",
	"1/2/2006", "1/2/06", "2006-01-02",
}

func extractDates(text string, now time.Time) []model.Entity {
	var out []model.Entity
	for _, p := range datePatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			raw := m[1]
			suffix := ""
			if t, ok := parseDate(raw); ok {
				if t.After(now) {
					suffix = ":future"
				} else {
					suffix = ":past"
				}
			}
			out = append(out, model.Entity{
				Type:       model.EntityDate,
				Value:      raw,
				Normalized: p.bucket + suffix,
				Context:    contextAround(text, strings.Index(text, m[0])),
				Confidence: 0.8,
				Source:     model.SourceRegex,
			})
		}
	}
	return out
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Procurement phrase bands. The band name is stored in entity_normalized.
var procurementBands = []struct {
	band    string
	phrases []string
}{
	{"active_buying", []string{
		"evaluating solutions", "looking for a vendor", "rfp",
		"request for proposal", "shortlist", "proof of concept", "poc",
	}},
	{"contract_activity", []string{
		"terms of service", "sla", "service level agreement",
		"data processing agreement", "master service agreement",
		"sow", "statement of work",
	}},
	{"security_review", []string{
		"soc 2", "iso 27001", "security questionnaire",
		"vendor risk assessment", "penetration test", "gdpr compliance",
	}},
}

func extractProcurement(text string) []model.Entity {
	lower := strings.ToLower(text)
	var out []model.Entity
	for _, band := range procurementBands {
		for _, phrase := range band.phrases {
			idx := indexWord(lower, phrase)
			if idx < 0 {
				continue
			}
			out = append(out, model.Entity{
				Type:       model.EntityProcurement,
				Value:      phrase,
				Normalized: band.band,
				Context:    contextAround(text, idx),
				Confidence: 0.75,
				Source:     model.SourceRegex,
			})
		}
	}
	return out
}

// indexWord finds phrase in s on word boundaries, so "sla" does not fire
// inside "island".
func indexWord(s, phrase string) int {
	for start := 0; ; {
		idx := strings.Index(s[start:], phrase)
		if idx < 0 {
			return -1
		}
		idx += start
		end := idx + len(phrase)
		beforeOK := idx == 0 || !isWordByte(s[idx-1])
		afterOK := end == len(s) || !isWordByte(s[end])
		if beforeOK && afterOK {
			return idx
		}
		start = idx + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' ||
		('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

var rolePattern = regexp.MustCompile(`(?im)^\s*((?:Chief \w+ Officer|CEO|CTO|CFO|COO|CMO|` +
	`Co-[Ff]ounder|Founder|President|Vice President|VP[\w\s]{0,25}|Director[\w\s]{0,25}|` +
	`Head of [\w\s]{1,25}|Partner)[\w\s,&]{0,20}?)\s*$`)

func extractRoles(signature string) []model.Entity {
	var out []model.Entity
	seen := map[string]bool{}
	for _, m := range rolePattern.FindAllStringSubmatch(signature, -1) {
		title := strings.TrimSpace(m[1])
		key := strings.ToLower(title)
		if title == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, model.Entity{
			Type:       model.EntityRole,
			Value:      title,
			Normalized: key,
			Context:    "Role: " + title,
			Confidence: 0.85,
			Source:     model.SourceRegex,
		})
	}
	return out
}

var (
	phonePattern = regexp.MustCompile(`(?:\+?1[-.\s])?\(?\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`)
	urlPattern   = regexp.MustCompile(`https?://[^\s<>"')\]]+`)
)

func extractPhones(text string) []model.Entity {
	var out []model.Entity
	seen := map[string]bool{}
	for _, m := range phonePattern.FindAllString(text, -1) {
		norm := digitsOnly(m)
		if len(norm) == 11 && norm[0] == '1' {
			norm = norm[1:]
		}
		if len(norm) < 10 || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, model.Entity{
			Type:       model.EntityPhone,
			Value:      strings.TrimSpace(m),
			Normalized: norm,
			Confidence: 0.8,
			Source:     model.SourceRegex,
		})
	}
	return out
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

const maxURLEntities = 20

func extractURLs(text string) []model.Entity {
	var out []model.Entity
	seen := map[string]bool{}
	for _, m := range urlPattern.FindAllString(text, -1) {
		m = strings.TrimRight(m, ".,;")
		norm := strings.ToLower(m)
		if seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, model.Entity{
			Type:       model.EntityURL,
			Value:      m,
			Normalized: norm,
			Confidence: 0.9,
			Source:     model.SourceRegex,
		})
		if len(out) >= maxURLEntities {
			break
		}
	}
	return out
}

// contextAround returns up to 50 characters either side of idx, used as the
// stored context snippet.
func contextAround(text string, idx int) string {
	if idx < 0 {
		return ""
	}
	start := idx - 50
	if start < 0 {
		start = 0
	}
	end := idx + 50
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(strings.Join(strings.Fields(text[start:end]), " "))
}
