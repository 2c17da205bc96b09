package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/gemsieve/internal/store"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.db.Stats(r.Context())
	if err != nil {
		s.storeError(w, "stats", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{
		"messages":        counts["messages"],
		"threads":         counts["threads"],
		"metadata":        counts["parsed_metadata"],
		"content":         counts["parsed_content"],
		"entities":        counts["extracted_entities"],
		"classifications": counts["ai_classification"],
		"profiles":        counts["sender_profiles"],
		"gems":            counts["gems"],
		"segments":        counts["sender_segments"],
		"drafts":          counts["engagement_drafts"],
		"pipeline_runs":   counts["pipeline_runs"],
		"ai_calls":        counts["ai_audit"],
	})
}

func (s *Server) handleGemsByType(w http.ResponseWriter, r *http.Request) {
	summary, err := s.db.GemSummary(r.Context())
	if err != nil {
		s.storeError(w, "gem summary", err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleTopGems(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n <= 0 {
		n = 10
	}
	gems, err := s.db.ListGems(r.Context(), store.GemFilter{Limit: n})
	if err != nil {
		s.storeError(w, "list gems", err)
		return
	}

	out := make([]map[string]any, 0, len(gems))
	for i := range gems {
		g := &gems[i]
		entry := map[string]any{
			"id":              g.ID,
			"gem_type":        g.GemType,
			"sender_domain":   g.SenderDomain,
			"score":           g.Score,
			"status":          g.Status,
			"summary":         g.Explanation.Summary,
			"estimated_value": g.Explanation.EstimatedValue,
			"urgency":         g.Explanation.Urgency,
		}
		if p, err := s.db.GetProfile(r.Context(), g.SenderDomain); err == nil && p != nil {
			entry["company_name"] = p.CompanyName
			entry["industry"] = p.Industry
		}
		out = append(out, entry)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleByIndustry(w http.ResponseWriter, r *http.Request) {
	counts, err := s.db.CountByIndustry(r.Context())
	if err != nil {
		s.storeError(w, "count by industry", err)
		return
	}
	s.writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleByESP(w http.ResponseWriter, r *http.Request) {
	counts, err := s.db.CountByESP(r.Context())
	if err != nil {
		s.storeError(w, "count by esp", err)
		return
	}
	s.writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handlePipelineActivity(w http.ResponseWriter, r *http.Request) {
	runs, err := s.db.ListRuns(r.Context(), store.RunFilter{Limit: 50})
	if err != nil {
		s.storeError(w, "list runs", err)
		return
	}
	s.writeJSON(w, http.StatusOK, runs)
}
