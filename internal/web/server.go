// Package web serves the admin HTTP portal: table browsing, pipeline
// control with a live event stream, stats, and the AI audit log.
package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/sells-group/gemsieve/internal/pipeline"
	"github.com/sells-group/gemsieve/internal/store"
)

// Server wires the store and the orchestrator behind a chi router.
type Server struct {
	db       store.Store
	orch     *pipeline.Orchestrator
	sanitize *bluemonday.Policy
	log      *zap.Logger
}

func NewServer(db store.Store, orch *pipeline.Orchestrator) *Server {
	return &Server{
		db:       db,
		orch:     orch,
		sanitize: bluemonday.UGCPolicy(),
		log:      zap.L().Named("web"),
	}
}

// Router builds the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/pipeline/run/{stage}", s.handleRunStage)
		r.Get("/pipeline/status/{runID}", s.handleRunStatus)
		r.Get("/pipeline/runs", s.handleListRuns)
		r.Get("/pipeline/stream", s.handleStream)

		r.Get("/stats", s.handleStats)
		r.Get("/stats/gems-by-type", s.handleGemsByType)
		r.Get("/stats/gems-top/{n}", s.handleTopGems)
		r.Get("/stats/by-industry", s.handleByIndustry)
		r.Get("/stats/by-esp", s.handleByESP)
		r.Get("/stats/pipeline-activity", s.handlePipelineActivity)
		r.Get("/stages", s.handleStages)

		r.Get("/gems", s.handleListGems)
		r.Get("/gems/{id}", s.handleGemDetail)
		r.Post("/gems/{id}/status", s.handleGemStatus)
		r.Post("/gems/{id}/generate", s.handleGemGenerate)

		r.Get("/profiles", s.handleListProfiles)
		r.Get("/profiles/{domain}", s.handleProfileDetail)
		r.Get("/messages/{id}", s.handleMessageDetail)
		r.Get("/drafts", s.handleListDrafts)
		r.Get("/relationships", s.handleListRelationships)
		r.Get("/segments", s.handleListSegments)
		r.Get("/overrides", s.handleListOverrides)
		r.Get("/overrides/stats", s.handleOverrideStats)

		r.Get("/ai-audit", s.handleListAudit)
		r.Get("/ai-audit/{id}", s.handleAuditDetail)
	})

	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// storeError logs and reports a store failure without leaking internals.
func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	s.log.Error("store call failed", zap.String("op", op), zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, "storage failure")
}
