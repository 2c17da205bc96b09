package mailmeta

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/gemsieve/internal/model"
)

// ESPRule fingerprints one email service provider. A message matches when
// at least one signal holds; among matching rules the one with the most
// satisfied signals wins.
type ESPRule struct {
	Signals    []ESPSignal `yaml:"signals"`
	Confidence string      `yaml:"confidence"`
}

// ESPSignal is a single fingerprint predicate. Exactly one field is set per
// entry in the rules file.
type ESPSignal struct {
	ReturnPathContains string `yaml:"return_path_contains,omitempty"`
	DKIMDomain         string `yaml:"dkim_domain,omitempty"`
	HeaderPresent      string `yaml:"header_present,omitempty"`
	XMailerContains    string `yaml:"x_mailer_contains,omitempty"`
	TrackingDomain     string `yaml:"tracking_domain,omitempty"`
}

// ESPRules maps provider name to its fingerprint rule.
type ESPRules map[string]ESPRule

// LoadESPRules reads the rules file, falling back to the built-in set when
// the file does not exist.
func LoadESPRules(path string) (ESPRules, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultESPRules(), nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "mailmeta: read esp rules %s", path)
	}
	var rules ESPRules
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return nil, eris.Wrapf(err, "mailmeta: parse esp rules %s", path)
	}
	if len(rules) == 0 {
		return DefaultESPRules(), nil
	}
	return rules, nil
}

// MatchESP fingerprints the message's ESP. Returns the best-scoring rule's
// name and confidence, or "custom_smtp"/low when the sender signs DKIM with
// its own root domain, or empty strings when nothing matches.
func MatchESP(msg *model.Message, senderRoot string, rules ESPRules) (name, confidence string) {
	names := make([]string, 0, len(rules))
	for candidate := range rules {
		if candidate != "custom_smtp" {
			names = append(names, candidate)
		}
	}
	sort.Strings(names)

	bestScore := 0
	for _, candidate := range names {
		rule := rules[candidate]
		score := 0
		for _, sig := range rule.Signals {
			if signalHolds(msg, sig) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			name = candidate
			confidence = rule.Confidence
			if confidence == "" {
				confidence = "medium"
			}
		}
	}
	if name != "" {
		return name, confidence
	}

	if senderRoot != "" {
		dkim := strings.ToLower(strings.Join(msg.Headers("dkim-signature"), " "))
		if strings.Contains(dkim, "d="+senderRoot) {
			return "custom_smtp", "low"
		}
	}
	return "", ""
}

func signalHolds(msg *model.Message, sig ESPSignal) bool {
	switch {
	case sig.ReturnPathContains != "":
		rp := strings.ToLower(strings.Join(msg.Headers("return-path"), " "))
		return strings.Contains(rp, strings.ToLower(sig.ReturnPathContains))
	case sig.DKIMDomain != "":
		dkim := strings.ToLower(strings.Join(msg.Headers("dkim-signature"), " "))
		return strings.Contains(dkim, "d="+strings.ToLower(sig.DKIMDomain))
	case sig.HeaderPresent != "":
		return len(msg.Headers(sig.HeaderPresent)) > 0
	case sig.XMailerContains != "":
		xm := strings.ToLower(strings.Join(msg.Headers("x-mailer"), " "))
		return strings.Contains(xm, strings.ToLower(sig.XMailerContains))
	case sig.TrackingDomain != "":
		needle := strings.ToLower(sig.TrackingDomain)
		for _, vals := range msg.HeadersRaw {
			for _, v := range vals {
				if strings.Contains(strings.ToLower(v), needle) {
					return true
				}
			}
		}
		return strings.Contains(strings.ToLower(msg.BodyHTML), needle)
	}
	return false
}

// DefaultESPRules covers the major providers when no rules file is shipped.
func DefaultESPRules() ESPRules {
	return ESPRules{
		"hubspot": {
			Confidence: "high",
			Signals: []ESPSignal{
				{ReturnPathContains: "hubspotemail.net"},
				{HeaderPresent: "x-hs-cid"},
				{TrackingDomain: "hs-analytics.net"},
			},
		},
		"salesforce": {
			Confidence: "high",
			Signals: []ESPSignal{
				{ReturnPathContains: "exacttarget.com"},
				{ReturnPathContains: "salesforce.com"},
				{HeaderPresent: "x-sfmc-stack"},
			},
		},
		"klaviyo": {
			Confidence: "high",
			Signals: []ESPSignal{
				{ReturnPathContains: "klaviyomail.com"},
				{HeaderPresent: "x-klaviyo-campaign-id"},
				{TrackingDomain: "klclick.com"},
			},
		},
		"activecampaign": {
			Confidence: "high",
			Signals: []ESPSignal{
				{ReturnPathContains: "acemsrvc.com"},
				{HeaderPresent: "x-vcampaignid"},
			},
		},
		"sendgrid": {
			Confidence: "medium",
			Signals: []ESPSignal{
				{ReturnPathContains: "sendgrid.net"},
				{HeaderPresent: "x-sg-eid"},
			},
		},
		"mailchimp": {
			Confidence: "medium",
			Signals: []ESPSignal{
				{ReturnPathContains: "mcsv.net"},
				{ReturnPathContains: "mcdlv.net"},
				{HeaderPresent: "x-mc-user"},
				{TrackingDomain: "list-manage.com"},
			},
		},
		"convertkit": {
			Confidence: "medium",
			Signals: []ESPSignal{
				{ReturnPathContains: "convertkit-mail"},
				{DKIMDomain: "convertkit-mail2.com"},
			},
		},
		"postmark": {
			Confidence: "medium",
			Signals: []ESPSignal{
				{ReturnPathContains: "mtasv.net"},
				{HeaderPresent: "x-pm-message-id"},
			},
		},
		"constant_contact": {
			Confidence: "medium",
			Signals: []ESPSignal{
				{ReturnPathContains: "constantcontact.com"},
				{ReturnPathContains: "ccsend.com"},
			},
		},
		"mailgun": {
			Confidence: "medium",
			Signals: []ESPSignal{
				{ReturnPathContains: "mailgun.org"},
				{HeaderPresent: "x-mailgun-sid"},
			},
		},
		"amazon_ses": {
			Confidence: "medium",
			Signals: []ESPSignal{
				{ReturnPathContains: "amazonses.com"},
				{HeaderPresent: "x-ses-outgoing"},
			},
		},
		"custom_smtp": {
			Confidence: "low",
		},
	}
}
