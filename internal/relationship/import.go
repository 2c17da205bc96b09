package relationship

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/store"
)

// ImportYAML bulk-loads relationship assignments from a YAML file mapping
// relationship type to domain lists:
//
//	my_vendor:
//	  - stripe.com
//	institutional:
//	  - rippling.com
//
// Imported rows carry source "manual" so auto-detection never overrides
// them. Returns the number of rows written.
func ImportYAML(ctx context.Context, db store.Store, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, eris.Wrapf(err, "relationship: read import file %s", path)
	}

	var lists map[string][]string
	if err := yaml.Unmarshal(raw, &lists); err != nil {
		return 0, eris.Wrapf(err, "relationship: parse import file %s", path)
	}

	count := 0
	for relType, domains := range lists {
		rt := model.RelationshipType(relType)
		if !rt.Valid() {
			return count, eris.Errorf("relationship: unknown type %q in %s", relType, path)
		}
		for _, domain := range domains {
			err := db.UpsertRelationship(ctx, &model.SenderRelationship{
				SenderDomain: domain,
				Type:         rt,
				Note:         "Imported from " + path,
				SuppressGems: rt.Suppressed(),
				Source:       model.RelSourceManual,
				Confidence:   1.0,
			})
			if err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}
