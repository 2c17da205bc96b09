package profile

import "regexp"

// WarmSignal is one category of buying-interest language with its score
// boost for gem detection.
type WarmSignal struct {
	Category string
	Boost    int
	Patterns []*regexp.Regexp
}

// WarmSignals is the ordered warm-signal taxonomy. First match per
// category counts.
var WarmSignals = []WarmSignal{
	{"pricing", 15, compile(`(?i)\b(?:pricing|price|cost|quote|budget|investment)\b`)},
	{"meeting_request", 12, compile(`(?i)\b(?:schedule|call|meeting|demo|zoom|calendly|book a time)\b`)},
	{"explicit_ask", 10, compile(`(?i)\b(?:interested in|looking for|evaluating|considering)\b`)},
	{"follow_up", 5, compile(`(?i)\b(?:following up|circling back|checking in|just wanted to)\b`)},
	{"decision_maker", 8, compile(`\b(?:CEO|CTO|VP|Director|Head of|Founder)\b`)},
	{"budget_indicator", 12,
		compile(`\$[\d,]+(?:\.\d{2})?`, `(?i)\b\d+[kK]\s*(?:ARR|MRR|budget)\b`)},
}

// ScanWarm returns the warm-signal categories present in text, with the
// matched evidence, in taxonomy order.
func ScanWarm(text string) []MatchedSignal {
	var out []MatchedSignal
	for _, ws := range WarmSignals {
		for _, p := range ws.Patterns {
			if m := p.FindString(text); m != "" {
				out = append(out, MatchedSignal{
					Category: ws.Category,
					Boost:    ws.Boost,
					Evidence: clip(m, 80),
				})
				break
			}
		}
	}
	return out
}

// MatchedSignal is one warm-signal hit.
type MatchedSignal struct {
	Category string
	Boost    int
	Evidence string
}

// completionSignals mark a conversation as concluded. Any hit in the tail
// of a thread suppresses dormant-thread gems.
var completionSignals = compile(
	`(?i)\bfinal (?:deliverable|version|report|invoice)\b`,
	`(?i)\bproject (?:complete|finished|wrapped|closed)\b`,
	`(?i)\bthanks? for (?:everything|your work|the help)\b`,
	`(?i)\bgreat working with you\b`,
	`(?i)\bcontract (?:ended|expired|terminated)\b`,
	`(?i)\bengagement (?:complete|concluded)\b`,
	`(?i)\bclosing (?:out|this|the) (?:the )?project\b`,
	`(?i)\ball set\b[^.\n]{0,40}\bthanks\b`,
)

// HasCompletionSignal reports whether text reads as a wrapped-up
// engagement.
func HasCompletionSignal(text string) bool {
	for _, p := range completionSignals {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// distributionSignals mark content opportunities in newsletters, events,
// and communities.
var distributionSignals = compile(
	`(?i)\bguest post\b`,
	`(?i)\bspeaker application\b`,
	`(?i)\bcall for (?:papers|speakers)\b`,
	`(?i)\bpodcast interview\b`,
	`(?i)\bsponsorship\b`,
	`(?i)\bcontributor\b`,
	`(?i)\bsubmit (?:your|a) (?:talk|session|abstract|story)\b`,
	`(?i)\bfeature (?:story|article|piece)\b`,
)

// FindDistributionSignal returns the first content-opportunity phrase in
// text, or "".
func FindDistributionSignal(text string) string {
	for _, p := range distributionSignals {
		if m := p.FindString(text); m != "" {
			return clip(m, 80)
		}
	}
	return ""
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
