package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/store"
)

func (s *Server) handleListGems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	gems, err := s.db.ListGems(r.Context(), store.GemFilter{
		GemType:      model.GemType(q.Get("type")),
		SenderDomain: q.Get("domain"),
		Segment:      q.Get("segment"),
		Status:       model.GemStatus(q.Get("status")),
		MinScore:     queryInt(r, "min_score", 0),
		Limit:        queryInt(r, "limit", 0),
	})
	if err != nil {
		s.storeError(w, "list gems", err)
		return
	}
	s.writeJSON(w, http.StatusOK, gems)
}

func (s *Server) handleGemDetail(w http.ResponseWriter, r *http.Request) {
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
	drafts, err := s.db.ListDrafts(r.Context(), id)
	if err != nil {
		s.storeError(w, "list drafts", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"gem":    gem,
		"drafts": drafts,
	})
}

func (s *Server) handleGemStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid gem id")
		return
	}
	var body struct {
		Status model.GemStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		s.writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	switch body.Status {
	case model.GemStatusNew, model.GemStatusActed, model.GemStatusDismissed:
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", body.Status))
		return
	}
	if err := s.db.UpdateGemStatus(r.Context(), id, body.Status); err != nil {
		s.storeError(w, "update gem status", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": body.Status})
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.db.ListProfiles(r.Context())
	if err != nil {
		s.storeError(w, "list profiles", err)
		return
	}
	s.writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) handleProfileDetail(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	p, err := s.db.GetProfile(r.Context(), domain)
	if err != nil {
		s.storeError(w, "get profile", err)
		return
	}
	if p == nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("profile %s not found", domain))
		return
	}

	segs, err := s.db.ListSegments(r.Context(), domain)
	if err != nil {
		s.storeError(w, "list segments", err)
		return
	}
	rel, err := s.db.GetRelationship(r.Context(), domain)
	if err != nil {
		s.storeError(w, "get relationship", err)
		return
	}
	gems, err := s.db.ListGemsByDomain(r.Context(), domain)
	if err != nil {
		s.storeError(w, "list gems", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"profile":      p,
		"segments":     segs,
		"relationship": rel,
		"gems":         gems,
	})
}

// handleMessageDetail returns one message with its metadata, content,
// and entities. Body HTML is sanitized before it leaves the API.
func (s *Server) handleMessageDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	msg, err := s.db.GetMessage(r.Context(), id)
	if err != nil {
		s.storeError(w, "get message", err)
		return
	}
	if msg == nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("message %s not found", id))
		return
	}
	msg.BodyHTML = s.sanitize.Sanitize(msg.BodyHTML)

	meta, err := s.db.GetMetadata(r.Context(), id)
	if err != nil {
		s.storeError(w, "get metadata", err)
		return
	}
	content, err := s.db.GetContent(r.Context(), id)
	if err != nil {
		s.storeError(w, "get content", err)
		return
	}
	ents, err := s.db.ListEntitiesByMessage(r.Context(), id)
	if err != nil {
		s.storeError(w, "list entities", err)
		return
	}
	cls, err := s.db.GetClassification(r.Context(), id)
	if err != nil {
		s.storeError(w, "get classification", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message":        msg,
		"metadata":       meta,
		"content":        content,
		"entities":       ents,
		"classification": cls,
	})
}

func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	gemID := int64(queryInt(r, "gem_id", 0))
	drafts, err := s.db.ListDrafts(r.Context(), gemID)
	if err != nil {
		s.storeError(w, "list drafts", err)
		return
	}
	s.writeJSON(w, http.StatusOK, drafts)
}

func (s *Server) handleListRelationships(w http.ResponseWriter, r *http.Request) {
	relType := model.RelationshipType(r.URL.Query().Get("type"))
	rels, err := s.db.ListRelationships(r.Context(), relType)
	if err != nil {
		s.storeError(w, "list relationships", err)
		return
	}
	s.writeJSON(w, http.StatusOK, rels)
}

func (s *Server) handleListSegments(w http.ResponseWriter, r *http.Request) {
	segs, err := s.db.ListAllSegments(r.Context())
	if err != nil {
		s.storeError(w, "list segments", err)
		return
	}
	s.writeJSON(w, http.StatusOK, segs)
}

func (s *Server) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	overrides, err := s.db.ListOverrides(r.Context())
	if err != nil {
		s.storeError(w, "list overrides", err)
		return
	}
	s.writeJSON(w, http.StatusOK, overrides)
}

func (s *Server) handleOverrideStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.OverrideStats(r.Context())
	if err != nil {
		s.storeError(w, "override stats", err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := s.db.ListAudit(r.Context(), store.AuditFilter{
		Stage:  r.URL.Query().Get("stage"),
		RunID:  r.URL.Query().Get("run_id"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	})
	if err != nil {
		s.storeError(w, "list audit", err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleAuditDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid audit id")
		return
	}
	entry, err := s.db.GetAudit(r.Context(), id)
	if err != nil {
		s.storeError(w, "get audit", err)
		return
	}
	if entry == nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("audit entry %d not found", id))
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}
