package pipeline

import (
	"context"

	"github.com/sells-group/gemsieve/internal/classify"
	"github.com/sells-group/gemsieve/internal/config"
	"github.com/sells-group/gemsieve/internal/content"
	"github.com/sells-group/gemsieve/internal/engage"
	"github.com/sells-group/gemsieve/internal/entities"
	"github.com/sells-group/gemsieve/internal/gems"
	"github.com/sells-group/gemsieve/internal/mailmeta"
	"github.com/sells-group/gemsieve/internal/profile"
	"github.com/sells-group/gemsieve/internal/relationship"
	"github.com/sells-group/gemsieve/internal/segment"
	"github.com/sells-group/gemsieve/internal/store"
	"github.com/sells-group/gemsieve/pkg/ai"
)

// StageNames is the ordered analytic stage registry. "Run all" covers
// the first six; engage requires explicit selection.
var StageNames = []string{
	"metadata", "content", "entities", "classify", "profile", "segment", "engage",
}

// StageDescriptions labels each stage for the CLI and the admin UI.
var StageDescriptions = map[string]string{
	"metadata": "Header forensics & ESP fingerprinting",
	"content":  "HTML parsing & offer detection",
	"entities": "NER & regex entity extraction",
	"classify": "AI sender classification",
	"profile":  "Sender profiles, relationships & gem detection",
	"segment":  "Segmentation & scoring",
	"engage":   "Engagement draft generation",
}

// StageOptions carries the per-invocation knobs that only some stages read.
type StageOptions struct {
	Retrain  bool  // classify: append recent override corrections
	GemID    int64 // engage: draft one explicit gem
	Strategy string
	TopN     int
}

// StageFunc runs one stage to completion and reports rows produced. The
// provider passed in may be the orchestrator's audit-wrapped decorator.
type StageFunc func(ctx context.Context, provider ai.Provider, opts StageOptions) (int, error)

// buildStages wires every stage constructor against one store and config.
// Rule files are loaded per invocation; all loaders tolerate missing files.
func buildStages(db store.Store, cfg *config.Config) map[string]StageFunc {
	return map[string]StageFunc{
		"metadata": func(ctx context.Context, _ ai.Provider, _ StageOptions) (int, error) {
			rules, err := mailmeta.LoadESPRules(cfg.ESPFingerprintsFile)
			if err != nil {
				return 0, err
			}
			return mailmeta.NewExtractor(db, rules).Run(ctx)
		},
		"content": func(ctx context.Context, _ ai.Provider, _ StageOptions) (int, error) {
			return content.NewParser(db).Run(ctx)
		},
		"entities": func(ctx context.Context, _ ai.Provider, _ StageOptions) (int, error) {
			var tagger entities.Tagger
			if t := entities.NewHTTPTagger(cfg.Entities); t != nil {
				tagger = t
			}
			return entities.NewExtractor(db, tagger, cfg.Entities).Run(ctx)
		},
		"classify": func(ctx context.Context, provider ai.Provider, opts StageOptions) (int, error) {
			c := classify.NewClassifier(db, provider, cfg.AI)
			c.Retrain = opts.Retrain
			return c.Run(ctx)
		},
		"profile": func(ctx context.Context, _ ai.Provider, _ StageOptions) (int, error) {
			built, err := profile.NewBuilder(db).Run(ctx)
			if err != nil {
				return built, err
			}
			// Relationships gate gem eligibility, so fresh profiles must
			// be classified before detection runs.
			known, err := relationship.LoadKnownEntities(cfg.KnownEntitiesFile)
			if err != nil {
				return built, err
			}
			det := relationship.NewDetector(db, known)
			proposals, err := det.Detect(ctx)
			if err != nil {
				return built, err
			}
			if _, err := det.Apply(ctx, proposals); err != nil {
				return built, err
			}
			detected, err := gems.NewDetector(db, cfg.Scoring, cfg.Engagement).Run(ctx)
			return built + detected, err
		},
		"segment": func(ctx context.Context, _ ai.Provider, _ StageOptions) (int, error) {
			seg, err := segment.NewSegmenter(db, cfg.CustomSegmentsFile)
			if err != nil {
				return 0, err
			}
			assigned, err := seg.Run(ctx)
			if err != nil {
				return assigned, err
			}
			scored, err := segment.NewScorer(db, cfg.Scoring).Run(ctx)
			return assigned + scored, err
		},
		"engage": func(ctx context.Context, provider ai.Provider, opts StageOptions) (int, error) {
			g := engage.NewGenerator(db, provider, cfg.Engagement)
			return g.Run(ctx, engage.Options{
				GemID:    opts.GemID,
				Strategy: opts.Strategy,
				TopN:     opts.TopN,
			})
		},
	}
}

// ValidStage reports whether name is a registered stage.
func ValidStage(name string) bool {
	_, ok := StageDescriptions[name]
	return ok
}
