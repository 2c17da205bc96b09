package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/pipeline"
	"github.com/sells-group/gemsieve/internal/store"
)

// runAllStages are the stages submitted by POST /api/pipeline/run/all.
var runAllStages = []string{"metadata", "content", "entities", "classify", "profile", "segment"}

func (s *Server) handleRunStage(w http.ResponseWriter, r *http.Request) {
	stage := chi.URLParam(r, "stage")
	if stage != "all" && !pipeline.ValidStage(stage) {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown stage %q", stage))
		return
	}

	var body struct {
		Retrain bool `json:"retrain"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	if r.URL.Query().Get("retrain") == "true" {
		body.Retrain = true
	}

	if stage == "all" {
		runIDs := make([]string, 0, len(runAllStages))
		for _, name := range runAllStages {
			opts := pipeline.StageOptions{}
			if name == "classify" {
				opts.Retrain = body.Retrain
			}
			id, err := s.orch.Submit(r.Context(), name, model.TriggerWeb, opts)
			if err != nil {
				s.storeError(w, "submit "+name, err)
				return
			}
			runIDs = append(runIDs, id)
		}
		s.writeJSON(w, http.StatusAccepted, map[string]any{
			"status":  "submitted",
			"run_ids": runIDs,
			"stages":  runAllStages,
		})
		return
	}

	opts := pipeline.StageOptions{}
	if stage == "classify" {
		opts.Retrain = body.Retrain
	}
	id, err := s.orch.Submit(r.Context(), stage, model.TriggerWeb, opts)
	if err != nil {
		s.storeError(w, "submit "+stage, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "submitted",
		"run_id": id,
		"stage":  stage,
	})
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := s.db.GetRun(r.Context(), runID)
	if err != nil {
		s.storeError(w, "get run", err)
		return
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", runID))
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	runs, err := s.db.ListRuns(r.Context(), store.RunFilter{
		Stage:  r.URL.Query().Get("stage"),
		Limit:  limit,
		Offset: queryInt(r, "offset", 0),
	})
	if err != nil {
		s.storeError(w, "list runs", err)
		return
	}
	s.writeJSON(w, http.StatusOK, runs)
}

// handleStream pushes live pipeline events over SSE until the client
// disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := s.orch.Events().Subscribe()
	defer s.orch.Events().Unsubscribe(events)

	for {
		select {
		case <-r.Context().Done():
			return
		case e, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
			flusher.Flush()
		}
	}
}

func (s *Server) handleStages(w http.ResponseWriter, r *http.Request) {
	counts, err := s.db.Stats(r.Context())
	if err != nil {
		s.storeError(w, "stats", err)
		return
	}

	// Stage name to its output table.
	tables := map[string]string{
		"metadata": "parsed_metadata",
		"content":  "parsed_content",
		"entities": "extracted_entities",
		"classify": "ai_classification",
		"profile":  "sender_profiles",
		"segment":  "sender_segments",
		"engage":   "engagement_drafts",
	}

	out := make([]map[string]any, 0, len(pipeline.StageNames))
	for _, name := range pipeline.StageNames {
		info := map[string]any{
			"name":        name,
			"description": pipeline.StageDescriptions[name],
			"row_count":   counts[tables[name]],
		}
		runs, err := s.db.ListRuns(r.Context(), store.RunFilter{Stage: name, Limit: 1})
		if err != nil {
			s.storeError(w, "list runs", err)
			return
		}
		if len(runs) > 0 {
			info["last_run"] = runs[0]
		}
		out = append(out, info)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGemGenerate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid gem id")
		return
	}
	gem, err := s.db.GetGem(r.Context(), id)
	if err != nil {
		s.storeError(w, "get gem", err)
		return
	}
	if gem == nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("gem %d not found", id))
		return
	}

	runID, err := s.orch.Submit(r.Context(), "engage", model.TriggerWeb, pipeline.StageOptions{GemID: id})
	if err != nil {
		s.storeError(w, "submit engage", err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "submitted",
		"run_id": runID,
		"gem_id": id,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
