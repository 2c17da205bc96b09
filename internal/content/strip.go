package content

import (
	"regexp"
	"strings"
)

var (
	quoteIntro  = regexp.MustCompile(`^On\s+.+wrote:\s*$`)
	signOffLine = regexp.MustCompile(`(?i)^(Best regards|Kind regards|Regards|Thanks|Thank you|Cheers|Sincerely|` +
		`Best|Warm regards|All the best|Sent from my iPhone|Sent from my iPad|` +
		`Get Outlook for),?\s*$`)
)

// stripSignatureAndQuotes removes quoted replies and splits off the trailing
// signature block.
func stripSignatureAndQuotes(text string) (clean, signature string) {
	lines := strings.Split(text, "\n")
	var cleanLines []string
	sigStart := -1

	for i, line := range lines {
		stripped := strings.TrimSpace(line)

		if quoteIntro.MatchString(stripped) {
			break
		}
		if strings.HasPrefix(stripped, ">") {
			continue
		}
		if strings.Contains(stripped, "gmail_quote") {
			break
		}
		if stripped == "--" || stripped == "—" {
			sigStart = i
			break
		}
		if signOffLine.MatchString(stripped) {
			sigStart = i
			break
		}
		cleanLines = append(cleanLines, line)
	}

	if sigStart >= 0 {
		signature = strings.TrimSpace(strings.Join(lines[sigStart:], "\n"))
	}
	return strings.Join(cleanLines, "\n"), signature
}

// footerPatterns mark marketing boilerplate. Matched bottom-up over the
// final window of lines; everything from the first matching line onward
// becomes the footer block.
var footerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bunsubscribe\b`),
	regexp.MustCompile(`(?i)view (?:this email |it )?in (?:your )?browser`),
	regexp.MustCompile(`(?i)(?:©|\(c\)|copyright)\s*\d{4}`),
	regexp.MustCompile(`(?i)all rights reserved`),
	regexp.MustCompile(`(?i)privacy policy`),
	regexp.MustCompile(`(?i)this email was sent (?:by|to)`),
	regexp.MustCompile(`(?i)powered by \w+`),
	regexp.MustCompile(`(?i)update your (?:email )?preferences`),
	regexp.MustCompile(`(?i)no longer wish to receive`),
}

const footerWindow = 15

// stripFooter separates a trailing marketing footer from the body.
func stripFooter(text string) (clean, footer string) {
	lines := strings.Split(text, "\n")

	limit := len(lines) - footerWindow
	if limit < 0 {
		limit = 0
	}

	cut := -1
	for i := len(lines) - 1; i >= limit; i-- {
		line := lines[i]
		for _, p := range footerPatterns {
			if p.MatchString(line) {
				cut = i
				break
			}
		}
	}
	if cut < 0 {
		return text, ""
	}
	return strings.Join(lines[:cut], "\n"),
		strings.TrimSpace(strings.Join(lines[cut:], "\n"))
}

// offerPatterns detect the offer taxonomy in body text.
var offerPatterns = map[string][]*regexp.Regexp{
	"discount": compileAll(`\d+%\s*off`, `\$\d+\s*off`, `save\s+\$?\d+`, `coupon`, `promo code`),
	"free_trial": compileAll(`free trial`, `try free`, `start free`, `\d+[- ]day trial`),
	"webinar": compileAll(`webinar`, `live demo`, `register now`, `join us live`),
	"product_launch": compileAll(`just launched`, `introducing`, `now available`, `new release`, `announcing`),
	"urgency": compileAll(`limited time`, `expires`, `last chance`, `ends tonight`, `only \d+ left`),
	"social_proof": compileAll(`trusted by`, `join \d+`, `\d+ customers`, `as seen in`, `rated \d`),
	"event": compileAll(`conference`, `summit`, `meetup`, `workshop`),
	"newsletter": compileAll(`this week in`, `weekly digest`, `roundup`, `top stories`),
	"renewal": compileAll(`renewal`, `subscription renew`, `upcoming charge`, `plan expires`,
		`auto-renew`, `billing cycle`, `annual renewal`),
	"partnership": compileAll(`partner program`, `affiliate`, `referral program`, `reseller`,
		`become a partner`, `earn commission`, `revenue share`),
	"procurement": compileAll(`security review`, `vendor assessment`, `soc 2`, `compliance`,
		`data processing agreement`, `\bdpa\b`, `\bmsa\b`, `terms of service update`),
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

var offerOrder = []string{
	"discount", "free_trial", "webinar", "product_launch", "urgency",
	"social_proof", "event", "newsletter", "renewal", "partnership",
	"procurement",
}

func detectOffers(text string) []string {
	lower := strings.ToLower(text)
	var detected []string
	for _, offer := range offerOrder {
		for _, p := range offerPatterns[offer] {
			if p.MatchString(lower) {
				detected = append(detected, offer)
				break
			}
		}
	}
	return detected
}
