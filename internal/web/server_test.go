package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gemsieve/internal/config"
	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/pipeline"
	"github.com/sells-group/gemsieve/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.DB) {
	t.Helper()
	db, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{AI: config.AIConfig{Provider: "ollama", Model: "llama3"}}
	orch := pipeline.New(db, nil, cfg)
	return NewServer(db, orch), db
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Body.String(), "{") {
		_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec, decoded
}

func seedGem(t *testing.T, db *store.DB, domain string, gt model.GemType, score int) int64 {
	t.Helper()
	id, err := db.UpsertGem(context.Background(), &model.Gem{
		GemType:      gt,
		SenderDomain: domain,
		ThreadID:     "t-" + string(gt),
		Score:        score,
		Explanation:  model.GemExplanation{GemType: gt, Summary: "Test opportunity"},
	})
	require.NoError(t, err)
	return id
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec, body := doJSON(t, s.Router(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestRunStageSubmits(t *testing.T) {
	s, db := newTestServer(t)
	rec, body := doJSON(t, s.Router(), http.MethodPost, "/api/pipeline/run/content", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "submitted", body["status"])
	assert.Equal(t, "content", body["stage"])

	runID, _ := body["run_id"].(string)
	require.NotEmpty(t, runID)

	run, err := db.GetRun(context.Background(), runID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, model.RunPending, run.Status)
	assert.Equal(t, model.TriggerWeb, run.TriggeredBy)
}

func TestRunStageUnknown(t *testing.T) {
	s, _ := newTestServer(t)
	rec, _ := doJSON(t, s.Router(), http.MethodPost, "/api/pipeline/run/transmogrify", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunAllSubmitsSixStages(t *testing.T) {
	s, _ := newTestServer(t)
	rec, body := doJSON(t, s.Router(), http.MethodPost, "/api/pipeline/run/all", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	runIDs, _ := body["run_ids"].([]any)
	assert.Len(t, runIDs, 6)
	stages, _ := body["stages"].([]any)
	require.Len(t, stages, 6)
	assert.Equal(t, "metadata", stages[0])
	assert.NotContains(t, stages, "engage")
}

func TestRunStatus(t *testing.T) {
	s, db := newTestServer(t)
	run, err := db.CreateRun(context.Background(), "content", "cli", "{}")
	require.NoError(t, err)

	rec, body := doJSON(t, s.Router(), http.MethodGet, "/api/pipeline/status/"+run.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "content", body["stage"])

	rec, _ = doJSON(t, s.Router(), http.MethodGet, "/api/pipeline/status/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	s, db := newTestServer(t)
	require.NoError(t, db.UpsertProfile(context.Background(), &model.SenderProfile{
		SenderDomain: "acme.com", CompanyName: "Acme",
	}))

	rec, body := doJSON(t, s.Router(), http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["profiles"])
	assert.Equal(t, float64(0), body["messages"])
}

func TestStagesEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/stages", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stages []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stages))
	require.Len(t, stages, 7)
	assert.Equal(t, "metadata", stages[0]["name"])
	assert.Equal(t, "engage", stages[6]["name"])
}

func TestGemEndpoints(t *testing.T) {
	s, db := newTestServer(t)
	id := seedGem(t, db, "acme.com", model.GemPartnerProgram, 72)
	seedGem(t, db, "beta.io", model.GemIndustryIntel, 40)

	// List with filter.
	req := httptest.NewRequest(http.MethodGet, "/api/gems?type=partner_program", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var gems []model.Gem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gems))
	require.Len(t, gems, 1)
	assert.Equal(t, model.GemPartnerProgram, gems[0].GemType)

	// Detail.
	rec2, body := doJSON(t, s.Router(), http.MethodGet, fmt.Sprintf("/api/gems/%d", id), nil)
	assert.Equal(t, http.StatusOK, rec2.Code)
	require.NotNil(t, body["gem"])

	rec2, _ = doJSON(t, s.Router(), http.MethodGet, "/api/gems/99999", nil)
	assert.Equal(t, http.StatusNotFound, rec2.Code)

	// Status update.
	rec2, _ = doJSON(t, s.Router(), http.MethodPost, fmt.Sprintf("/api/gems/%d/status", id),
		map[string]string{"status": "acted"})
	assert.Equal(t, http.StatusOK, rec2.Code)

	gem, err := db.GetGem(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.GemStatusActed, gem.Status)

	rec2, _ = doJSON(t, s.Router(), http.MethodPost, fmt.Sprintf("/api/gems/%d/status", id),
		map[string]string{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestGemGenerate(t *testing.T) {
	s, db := newTestServer(t)
	id := seedGem(t, db, "acme.com", model.GemWeakMarketingLead, 70)

	rec, body := doJSON(t, s.Router(), http.MethodPost, fmt.Sprintf("/api/gems/%d/generate", id), nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "submitted", body["status"])
	assert.NotEmpty(t, body["run_id"])

	rec, _ = doJSON(t, s.Router(), http.MethodPost, "/api/gems/99999/generate", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProfileDetail(t *testing.T) {
	s, db := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertProfile(ctx, &model.SenderProfile{
		SenderDomain: "acme.com", CompanyName: "Acme", Industry: "SaaS",
	}))
	seedGem(t, db, "acme.com", model.GemPartnerProgram, 60)

	rec, body := doJSON(t, s.Router(), http.MethodGet, "/api/profiles/acme.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, body["profile"])
	gems, _ := body["gems"].([]any)
	assert.Len(t, gems, 1)

	rec, _ = doJSON(t, s.Router(), http.MethodGet, "/api/profiles/nobody.net", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMessageDetailSanitizesHTML(t *testing.T) {
	s, db := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertMessage(ctx, &model.Message{
		MessageID:   "m1",
		ThreadID:    "t1",
		Date:        time.Now().UTC(),
		FromAddress: "jane@acme.com",
		Subject:     "Hello",
		BodyHTML:    `<p>Hi</p><script>alert("x")</script>`,
	}))

	rec, body := doJSON(t, s.Router(), http.MethodGet, "/api/messages/m1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	msg, _ := body["message"].(map[string]any)
	require.NotNil(t, msg)
	html, _ := msg["body_html"].(string)
	assert.Contains(t, html, "<p>Hi</p>")
	assert.NotContains(t, html, "<script>")

	rec, _ = doJSON(t, s.Router(), http.MethodGet, "/api/messages/none", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuditEndpoints(t *testing.T) {
	s, db := newTestServer(t)
	ctx := context.Background()
	run, err := db.CreateRun(ctx, "classify", "web", "{}")
	require.NoError(t, err)
	id, err := db.InsertAudit(ctx, &model.AuditEntry{
		RunID: run.ID, Stage: "classify", PromptTemplateID: "CLASSIFICATION_PROMPT",
		PromptRendered: "p", ModelUsed: "m", ResponseRaw: "{}",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/ai-audit?stage=classify", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []model.AuditEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)

	rec2, body := doJSON(t, s.Router(), http.MethodGet, fmt.Sprintf("/api/ai-audit/%d", id), nil)
	assert.Equal(t, http.StatusOK, rec2.Code)
	assert.Equal(t, "CLASSIFICATION_PROMPT", body["prompt_template_id"])

	rec2, _ = doJSON(t, s.Router(), http.MethodGet, "/api/ai-audit/99999", nil)
	assert.Equal(t, http.StatusNotFound, rec2.Code)
}

func TestStreamDeliversEvents(t *testing.T) {
	s, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/pipeline/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.Router().ServeHTTP(rec, req)
		close(done)
	}()

	// Give the handler time to subscribe, then publish and disconnect.
	time.Sleep(50 * time.Millisecond)
	s.orch.Events().Publish(pipeline.Event{Type: pipeline.EventStarted, RunID: "r1", Stage: "content"})
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream handler did not exit")
	}

	out := rec.Body.String()
	assert.Contains(t, out, "event: STARTED")
	assert.Contains(t, out, `"run_id":"r1"`)
}
