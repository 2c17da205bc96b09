package relationship

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/publicsuffix"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/gemsieve/internal/model"
)

// KnownEntities maps suppression-list categories to sets of organizational
// root domains. The lists name infrastructure the user already depends on,
// so their senders never surface as opportunities.
type KnownEntities map[string]map[string]bool

// Known-entity category names accepted in the YAML file.
const (
	CategoryInfrastructure     = "infrastructure"
	CategoryInstitutional      = "institutional"
	CategoryMarketingPlatforms = "marketing_platforms"
	CategoryUserSuppressed     = "user_suppressed"
)

// categoryRelationships maps a known-entity category onto the relationship
// type it implies.
var categoryRelationships = map[string]model.RelationshipType{
	CategoryInfrastructure:     model.RelMyInfrastructure,
	CategoryInstitutional:      model.RelInstitutional,
	CategoryMarketingPlatforms: model.RelMyInfrastructure,
	CategoryUserSuppressed:     model.RelUnknown,
}

// LoadKnownEntities reads the known-entities YAML file. A missing file is
// not an error; detection simply runs without suppression lists.
func LoadKnownEntities(path string) (KnownEntities, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return KnownEntities{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "relationship: read known entities %s", path)
	}

	var lists map[string][]string
	if err := yaml.Unmarshal(raw, &lists); err != nil {
		return nil, eris.Wrapf(err, "relationship: parse known entities %s", path)
	}

	out := make(KnownEntities, len(lists))
	for category, domains := range lists {
		set := make(map[string]bool, len(domains))
		for _, d := range domains {
			set[strings.ToLower(strings.TrimSpace(d))] = true
		}
		out[category] = set
	}
	return out, nil
}

// Match returns the category a domain belongs to, checking both the raw
// host and its organizational root, or "" when unlisted.
func (k KnownEntities) Match(domain string) string {
	if domain == "" || len(k) == 0 {
		return ""
	}
	domain = strings.ToLower(domain)
	root := rootDomain(domain)

	for _, category := range []string{
		CategoryInfrastructure, CategoryInstitutional,
		CategoryMarketingPlatforms, CategoryUserSuppressed,
	} {
		set := k[category]
		if set[domain] || set[root] {
			return category
		}
	}
	return ""
}

// rootDomain collapses a host to its organizational root, mirroring the
// normalization the metadata stage applies to sender addresses.
func rootDomain(host string) string {
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return etld1
}
