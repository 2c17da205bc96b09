package export

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/store"
	"github.com/sells-group/gemsieve/pkg/salesforce"
)

// SalesforceExporter pushes gems into Salesforce as Leads, one lead per
// sender domain carrying that domain's best gem. Existing leads (matched
// by Website) are updated in place.
type SalesforceExporter struct {
	client salesforce.Client
	log    *zap.Logger
}

func NewSalesforceExporter(client salesforce.Client) *SalesforceExporter {
	return &SalesforceExporter{
		client: client,
		log:    zap.L().Named("export.salesforce"),
	}
}

// Export writes a lead per sender domain with at least one gem scoring
// minScore or higher. Returns the number of leads created or updated.
func (e *SalesforceExporter) Export(ctx context.Context, db store.Store, minScore int) (int, error) {
	gems, err := db.ListGems(ctx, store.GemFilter{MinScore: minScore})
	if err != nil {
		return 0, err
	}

	// ListGems orders by score descending, so the first gem seen per
	// domain is its best one.
	best := map[string]*model.Gem{}
	domains := make([]string, 0)
	for i := range gems {
		if _, ok := best[gems[i].SenderDomain]; !ok {
			best[gems[i].SenderDomain] = &gems[i]
			domains = append(domains, gems[i].SenderDomain)
		}
	}
	sort.Strings(domains)

	existing, err := e.existingLeads(ctx)
	if err != nil {
		return 0, err
	}

	var inserts []map[string]any
	updated := 0
	for _, domain := range domains {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		p, err := db.GetProfile(ctx, domain)
		if err != nil {
			return updated, err
		}
		fields := leadFields(best[domain], p)

		website := "https://" + domain
		if id, ok := existing[website]; ok {
			if err := salesforce.UpdateLead(ctx, e.client, id, fields); err != nil {
				return updated, err
			}
			updated++
			continue
		}
		inserts = append(inserts, fields)
	}

	inserted := 0
	if len(inserts) > 0 {
		results, err := e.client.InsertCollection(ctx, "Lead", inserts)
		if err != nil {
			return updated, err
		}
		for _, r := range results {
			if r.Success {
				inserted++
			} else {
				e.log.Warn("lead insert rejected", zap.Strings("errors", r.Errors))
			}
		}
	}

	e.log.Info("gems exported to salesforce",
		zap.Int("created", inserted), zap.Int("updated", updated))
	return inserted + updated, nil
}

func (e *SalesforceExporter) existingLeads(ctx context.Context) (map[string]string, error) {
	leads, err := salesforce.ListLeadsBySource(ctx, e.client, "Mailbox Mining")
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(leads))
	for _, l := range leads {
		out[l.Website] = l.ID
	}
	return out, nil
}

func leadFields(g *model.Gem, p *model.SenderProfile) map[string]any {
	company := g.SenderDomain
	lastName := "Unknown"
	var email, industry string

	if p != nil {
		if p.CompanyName != "" {
			company = p.CompanyName
		}
		industry = p.Industry
		email = p.PrimaryEmail
		if c := p.BestContact(); c != nil {
			if c.Name != "" {
				lastName = lastNameOf(c.Name)
			}
			if c.Email != "" {
				email = c.Email
			}
		}
	}

	fields := map[string]any{
		"Company":     company,
		"LastName":    lastName,
		"Website":     "https://" + g.SenderDomain,
		"LeadSource":  "Mailbox Mining",
		"Rating":      ratingFor(g.Score),
		"Description": fmt.Sprintf("%s (score %d): %s", g.GemType, g.Score, g.Explanation.Summary),
	}
	if email != "" {
		fields["Email"] = email
	}
	if industry != "" {
		fields["Industry"] = industry
	}
	return fields
}

func lastNameOf(name string) string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "Unknown"
	}
	return parts[len(parts)-1]
}

func ratingFor(score int) string {
	switch {
	case score >= 70:
		return "Hot"
	case score >= 40:
		return "Warm"
	}
	return "Cold"
}
