package ingest

import (
	"regexp"
	"strings"

	"github.com/sells-group/gemsieve/internal/model"
)

// Question signals: phrases that mean the sender expects a reply. Checked
// against the full body, case-insensitively.
var questionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)\?\s*$`),
	regexp.MustCompile(`(?i)\bthoughts\b`),
	regexp.MustCompile(`(?i)\binterested\b`),
	regexp.MustCompile(`(?i)\blet me know\b`),
	regexp.MustCompile(`(?i)\bcircle back\b`),
	regexp.MustCompile(`(?i)\bfollow(?:ing)? up\b`),
	regexp.MustCompile(`(?i)\bwhat do you think\b`),
	regexp.MustCompile(`(?i)\bcan you\b`),
	regexp.MustCompile(`(?i)\bcould you\b`),
	regexp.MustCompile(`(?i)\bwould you\b`),
	regexp.MustCompile(`(?i)\bdo you have\b`),
	regexp.MustCompile(`(?i)\bare you .{0,40}\?`),
	regexp.MustCompile(`(?i)\bwhen can\b`),
	regexp.MustCompile(`(?i)\bschedule .{0,30}\bcall\b`),
	regexp.MustCompile(`(?i)\bbook .{0,30}\btime\b`),
}

// Concluded signals: short sign-off lines that close a thread. Matched
// against whole trimmed lines near the end of the body.
var concludedLines = []string{
	"thanks.",
	"thanks!",
	"thank you.",
	"thank you!",
	"sounds good",
	"great, thanks",
	"will do",
	"no worries",
	"talk soon",
	"see you",
}

// ClassifyAwaiting decides who owes the next reply in a thread from its
// latest message. The decision looks at actual content, not just direction:
// a sent message that ends with a question still awaits the other side, and
// a closing "thanks!" awaits nobody.
func ClassifyAwaiting(lastBody string, sentByUser bool) model.Awaiting {
	body := strings.TrimSpace(lastBody)
	if body == "" {
		if sentByUser {
			return model.AwaitingOther
		}
		return model.AwaitingUser
	}

	if tailConcluded(body) {
		return model.AwaitingNone
	}

	if hasQuestion(body) {
		if sentByUser {
			return model.AwaitingOther
		}
		return model.AwaitingUser
	}
	return model.AwaitingNone
}

// tailConcluded scans the last 3 non-blank lines for a concluded signal.
func tailConcluded(body string) bool {
	lines := strings.Split(body, "\n")
	seen := 0
	for i := len(lines) - 1; i >= 0 && seen < 3; i-- {
		line := strings.ToLower(strings.TrimSpace(lines[i]))
		if line == "" {
			continue
		}
		seen++
		for _, sig := range concludedLines {
			if strings.Contains(line, sig) {
				return true
			}
		}
	}
	return false
}

func hasQuestion(body string) bool {
	for _, p := range questionPatterns {
		if p.MatchString(body) {
			return true
		}
	}
	return false
}
