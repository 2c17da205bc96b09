package export

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"go.uber.org/zap"

	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/store"
	"github.com/sells-group/gemsieve/pkg/notion"
)

// NotionExporter pushes gems into a Notion database, one page per gem.
// Pages are keyed by title; re-exporting updates the existing page
// instead of duplicating it.
type NotionExporter struct {
	client notion.Client
	dbID   string
	log    *zap.Logger
}

func NewNotionExporter(client notion.Client, dbID string) *NotionExporter {
	return &NotionExporter{
		client: client,
		dbID:   dbID,
		log:    zap.L().Named("export.notion"),
	}
}

// Export writes every gem scoring at least minScore. Returns the number
// of pages created or updated.
func (e *NotionExporter) Export(ctx context.Context, db store.Store, minScore int) (int, error) {
	gems, err := db.ListGems(ctx, store.GemFilter{MinScore: minScore})
	if err != nil {
		return 0, err
	}

	existing, err := notion.TitleIndex(ctx, e.client, e.dbID)
	if err != nil {
		return 0, err
	}

	exported := 0
	for i := range gems {
		if err := ctx.Err(); err != nil {
			return exported, err
		}
		g := &gems[i]

		p, err := db.GetProfile(ctx, g.SenderDomain)
		if err != nil {
			return exported, err
		}

		title := pageTitle(g, p)
		props := gemProperties(g, p, title)

		if pageID, ok := existing[title]; ok {
			_, err = e.client.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{
				Properties: props,
			})
		} else {
			_, err = e.client.CreatePage(ctx, &notionapi.PageCreateRequest{
				Parent: notionapi.Parent{
					Type:       notionapi.ParentTypeDatabaseID,
					DatabaseID: notionapi.DatabaseID(e.dbID),
				},
				Properties: props,
			})
		}
		if err != nil {
			return exported, err
		}
		exported++
	}

	e.log.Info("gems exported to notion",
		zap.Int("pages", exported), zap.Int("min_score", minScore))
	return exported, nil
}

func pageTitle(g *model.Gem, p *model.SenderProfile) string {
	company := g.SenderDomain
	if p != nil && p.CompanyName != "" {
		company = p.CompanyName
	}
	return fmt.Sprintf("%s / %s", company, g.GemType)
}

func gemProperties(g *model.Gem, p *model.SenderProfile, title string) notionapi.Properties {
	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Type:  notionapi.PropertyTypeTitle,
			Title: richText(title),
		},
		"Domain": notionapi.URLProperty{
			Type: notionapi.PropertyTypeURL,
			URL:  "https://" + g.SenderDomain,
		},
		"Gem Type": notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: string(g.GemType)},
		},
		"Score": notionapi.NumberProperty{
			Type:   notionapi.PropertyTypeNumber,
			Number: float64(g.Score),
		},
		"Status": notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: string(g.Status)},
		},
		"Summary": notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(g.Explanation.Summary),
		},
	}
	if g.Explanation.Urgency != "" {
		props["Urgency"] = notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: g.Explanation.Urgency},
		}
	}
	if p != nil && p.Industry != "" {
		props["Industry"] = notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: p.Industry},
		}
	}
	return props
}

func richText(text string) []notionapi.RichText {
	return []notionapi.RichText{
		{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: text}},
	}
}
