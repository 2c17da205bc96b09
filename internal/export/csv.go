// Package export writes gems, segments, and profiles to CSV, Excel,
// Notion, and Salesforce so the mined opportunities can leave the local
// database.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/store"
)

// Gems writes every gem, highest score first, with its profile context.
// Returns the path written.
func Gems(ctx context.Context, db store.Store, path string) (string, error) {
	if path == "" {
		path = "gems_export.csv"
	}

	gems, err := db.ListGems(ctx, store.GemFilter{})
	if err != nil {
		return "", err
	}

	rows := [][]string{{
		"id", "gem_type", "sender_domain", "company_name", "industry",
		"company_size", "score", "summary", "recommended_actions", "status",
	}}
	for i := range gems {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		g := &gems[i]

		var company, industry, size string
		p, err := db.GetProfile(ctx, g.SenderDomain)
		if err != nil {
			return "", err
		}
		if p != nil {
			company, industry, size = p.CompanyName, p.Industry, p.CompanySize
		}

		rows = append(rows, []string{
			strconv.FormatInt(g.ID, 10),
			string(g.GemType),
			g.SenderDomain,
			company, industry, size,
			strconv.Itoa(g.Score),
			g.Explanation.Summary,
			strings.Join(g.RecommendedActions, "; "),
			string(g.Status),
		})
	}

	if err := writeCSV(path, rows); err != nil {
		return "", err
	}
	zap.L().Named("export").Info("gems exported",
		zap.String("path", path), zap.Int("gems", len(gems)))
	return path, nil
}

// Segment writes the profiles carrying the given segment, least
// sophisticated first (the most approachable leads sort to the top).
func Segment(ctx context.Context, db store.Store, segment, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("segment_%s.csv", segment)
	}

	profiles, err := profilesInSegment(ctx, db, segment)
	if err != nil {
		return "", err
	}

	rows := [][]string{{
		"sender_domain", "company_name", "primary_email", "industry",
		"company_size", "marketing_sophistication", "esp_used",
		"product_description", "total_messages", "segment", "sub_segment",
	}}
	for _, m := range profiles {
		rows = append(rows, []string{
			m.profile.SenderDomain,
			m.profile.CompanyName,
			m.profile.PrimaryEmail,
			m.profile.Industry,
			m.profile.CompanySize,
			formatFloat(m.profile.SophisticationAvg),
			m.profile.ESPUsed,
			m.profile.ProductDescription,
			strconv.Itoa(m.profile.TotalMessages),
			segment,
			m.subSegment,
		})
	}

	if err := writeCSV(path, rows); err != nil {
		return "", err
	}
	zap.L().Named("export").Info("segment exported",
		zap.String("segment", segment),
		zap.String("path", path), zap.Int("profiles", len(profiles)))
	return path, nil
}

// profileColumns is the column order for the full profile export, shared
// by the CSV and Excel writers.
var profileColumns = []string{
	"sender_domain", "company_name", "primary_email", "reply_to_email",
	"industry", "company_size", "marketing_sophistication_avg",
	"marketing_sophistication_trend", "esp_used", "product_type",
	"product_description", "target_audience", "total_messages",
	"first_contact", "last_contact", "avg_frequency_days",
	"has_personalization", "has_partner_program", "authentication_quality",
}

// Profiles writes every sender profile. format is "csv" or "excel"; the
// Excel branch forces an .xlsx suffix.
func Profiles(ctx context.Context, db store.Store, path, format string) (string, error) {
	if path == "" {
		path = "profiles_export.csv"
	}

	profiles, err := db.ListProfiles(ctx)
	if err != nil {
		return "", err
	}

	rows := make([][]string, 0, len(profiles)+1)
	rows = append(rows, profileColumns)
	for i := range profiles {
		rows = append(rows, profileRow(&profiles[i]))
	}

	if format == "excel" {
		if !strings.HasSuffix(path, ".xlsx") {
			path = strings.TrimSuffix(path, ".csv") + ".xlsx"
		}
		if err := writeXLSX(path, "Sender Profiles", rows); err != nil {
			return "", err
		}
	} else if err := writeCSV(path, rows); err != nil {
		return "", err
	}

	zap.L().Named("export").Info("profiles exported",
		zap.String("path", path), zap.Int("profiles", len(profiles)))
	return path, nil
}

func profileRow(p *model.SenderProfile) []string {
	first, last := "", ""
	if !p.FirstContact.IsZero() {
		first = p.FirstContact.Format("2006-01-02")
	}
	if !p.LastContact.IsZero() {
		last = p.LastContact.Format("2006-01-02")
	}
	return []string{
		p.SenderDomain, p.CompanyName, p.PrimaryEmail, p.ReplyToEmail,
		p.Industry, p.CompanySize, formatFloat(p.SophisticationAvg),
		p.SophisticationTrend, p.ESPUsed, p.ProductType,
		p.ProductDescription, p.TargetAudience, strconv.Itoa(p.TotalMessages),
		first, last, formatFloat(p.AvgFrequencyDays),
		strconv.FormatBool(p.HasPersonalization),
		strconv.FormatBool(p.HasPartnerProgram),
		p.AuthenticationQuality,
	}
}

type segmentMember struct {
	profile    model.SenderProfile
	subSegment string
}

func profilesInSegment(ctx context.Context, db store.Store, segment string) ([]segmentMember, error) {
	profiles, err := db.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}

	var out []segmentMember
	for i := range profiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		segs, err := db.ListSegments(ctx, profiles[i].SenderDomain)
		if err != nil {
			return nil, err
		}
		for _, s := range segs {
			if s.Segment == segment {
				out = append(out, segmentMember{profiles[i], s.SubSegment})
				break
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].profile.SophisticationAvg < out[j].profile.SophisticationAvg
	})
	return out, nil
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return eris.Wrapf(err, "export: write %s", path)
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}

func writeXLSX(path, sheetName string, rows [][]string) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	for _, row := range rows {
		r := sheet.AddRow()
		for _, cell := range row {
			r.AddCell().Value = cell
		}
	}
	return eris.Wrapf(file.Save(path), "export: save %s", path)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
