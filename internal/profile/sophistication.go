package profile

// ESP tiers for the deterministic sophistication score. Names match the
// identifiers produced by the ESP fingerprint rules.
var (
	espTier3 = map[string]bool{
		"hubspot": true, "salesforce": true, "klaviyo": true, "activecampaign": true,
	}
	espTier2 = map[string]bool{
		"sendgrid": true, "mailchimp": true, "convertkit": true,
		"postmark": true, "constant_contact": true,
	}
)

// SophisticationInput carries the observable facts the deterministic
// score is computed from.
type SophisticationInput struct {
	ESP                string
	HasPersonalization bool
	HasUTM             bool
	TemplateComplexity int
	UniqueCampaigns    int
	SPFPass            bool
	DMARCPass          bool
	HasDKIM            bool
	HasUnsubscribe     bool
}

// DeterministicSophistication scores marketing maturity 1..10 from
// header and template forensics alone, without any AI involvement.
func DeterministicSophistication(in SophisticationInput) int {
	score := 1
	if espTier3[in.ESP] {
		score = 3
	} else if espTier2[in.ESP] {
		score = 2
	}

	if in.HasPersonalization {
		score += 2
	}
	if in.HasUTM {
		score++
	}
	if in.TemplateComplexity >= 40 {
		score++
	}
	if in.UniqueCampaigns >= 3 {
		score++
	}
	if in.SPFPass && in.DMARCPass && in.HasDKIM {
		score++
	}
	if in.HasUnsubscribe {
		score++
	}

	if score > 10 {
		score = 10
	}
	return score
}

// BlendSophistication mixes the deterministic score with the AI average.
// The deterministic side dominates because it cannot hallucinate.
func BlendSophistication(deterministic int, aiAvg float64) float64 {
	if aiAvg <= 0 {
		return float64(deterministic)
	}
	return 0.6*float64(deterministic) + 0.4*aiAvg
}
