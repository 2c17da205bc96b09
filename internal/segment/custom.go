package segment

import (
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/gemsieve/internal/model"
)

// CustomSegment is one user-defined segment rule from segments.yaml:
//
//	custom_segments:
//	  - name: design_agencies
//	    priority: hot
//	    rules:
//	      industry: [Agency, Design]
//	      company_size: small
//	      marketing_sophistication_avg: {lt: 5}
//	      segment_includes: prospect_map
type CustomSegment struct {
	Name     string         `yaml:"name"`
	Priority string         `yaml:"priority"`
	Rules    map[string]any `yaml:"rules"`
}

type customSegmentsFile struct {
	CustomSegments []CustomSegment `yaml:"custom_segments"`
}

// LoadCustomSegments reads segment rules from the YAML file. A missing
// file yields no custom segments.
func LoadCustomSegments(path string) ([]CustomSegment, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "segment: read custom segments %s", path)
	}

	var file customSegmentsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, eris.Wrapf(err, "segment: parse custom segments %s", path)
	}

	for i := range file.CustomSegments {
		if file.CustomSegments[i].Name == "" {
			file.CustomSegments[i].Name = "unnamed"
		}
		if file.CustomSegments[i].Priority == "" {
			file.CustomSegments[i].Priority = "warm"
		}
	}
	return file.CustomSegments, nil
}

// Matches evaluates the rule map against a profile. Every rule must hold.
func (cs CustomSegment) Matches(p *model.SenderProfile) bool {
	for field, expected := range cs.Rules {
		switch field {
		case "segment_includes":
			want, _ := expected.(string)
			if !containsString(p.EconomicSegments, want) {
				return false
			}
		case "renewal_date_within_days":
			// Simplified: any known renewal date qualifies.
			if len(p.RenewalDates) == 0 {
				return false
			}
		default:
			actual, ok := profileField(p, field)
			if !ok || !matchValue(actual, expected) {
				return false
			}
		}
	}
	return true
}

// profileField exposes the profile fields custom rules may reference.
func profileField(p *model.SenderProfile, field string) (any, bool) {
	switch field {
	case "industry":
		return p.Industry, true
	case "company_size":
		return p.CompanySize, true
	case "esp_used":
		return p.ESPUsed, true
	case "company_name":
		return p.CompanyName, true
	case "has_partner_program":
		return p.HasPartnerProgram, true
	case "has_personalization":
		return p.HasPersonalization, true
	case "total_messages":
		return float64(p.TotalMessages), true
	case "marketing_sophistication_avg":
		return p.SophisticationAvg, true
	case "thread_initiation_ratio":
		return p.ThreadInitiationRatio, true
	case "user_reply_rate":
		return p.UserReplyRate, true
	case "authentication_quality":
		return p.AuthenticationQuality, true
	}
	return nil, false
}

func matchValue(actual, expected any) bool {
	switch want := expected.(type) {
	case []any:
		for _, w := range want {
			if matchValue(actual, w) {
				return true
			}
		}
		return false
	case map[string]any:
		n, ok := asFloat(actual)
		if !ok {
			return false
		}
		if lt, has := want["lt"]; has {
			bound, ok := asFloat(lt)
			if !ok || n >= bound {
				return false
			}
		}
		if gt, has := want["gt"]; has {
			bound, ok := asFloat(gt)
			if !ok || n <= bound {
				return false
			}
		}
		return true
	case bool:
		b, ok := actual.(bool)
		return ok && b == want
	default:
		return strings.EqualFold(toString(actual), toString(expected))
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	}
	return ""
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
