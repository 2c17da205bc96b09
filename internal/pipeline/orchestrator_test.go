package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gemsieve/internal/config"
	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/pkg/ai"
)

func testConfig() *config.Config {
	return &config.Config{
		AI: config.AIConfig{Provider: "ollama", Model: "llama3"},
	}
}

func waitEvent(t *testing.T, ch chan Event, want EventType) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-ch:
			if e.Type == want {
				return e
			}
		case <-deadline:
			t.Fatalf("no %s event within deadline", want)
		}
	}
}

func TestExecuteEmptyStageCompletes(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	o := New(db, nil, testConfig())
	run, err := o.Execute(ctx, "content", model.TriggerCLI, StageOptions{})
	require.NoError(t, err)

	assert.Equal(t, model.RunCompleted, run.Status)
	assert.Equal(t, 0, run.ItemsProcessed)
	assert.NotNil(t, run.CompletedAt)

	stored, err := db.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, model.RunCompleted, stored.Status)
	assert.Equal(t, model.TriggerCLI, stored.TriggeredBy)
}

func TestExecuteUnknownStage(t *testing.T) {
	db := newTestStore(t)
	o := New(db, nil, testConfig())

	_, err := o.Execute(context.Background(), "transmogrify", model.TriggerCLI, StageOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stage")
}

func TestExecuteRecordsFailure(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	badYAML := filepath.Join(t.TempDir(), "segments.yaml")
	require.NoError(t, os.WriteFile(badYAML, []byte("{{not yaml"), 0o644))

	cfg := testConfig()
	cfg.CustomSegmentsFile = badYAML

	o := New(db, nil, cfg)
	run, err := o.Execute(ctx, "segment", model.TriggerCLI, StageOptions{})
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, model.RunFailed, run.Status)
	assert.NotEmpty(t, run.ErrorMessage)

	stored, err := db.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, stored.Status)
}

func TestExecuteCancelledRunMarkedCancelled(t *testing.T) {
	db := newTestStore(t)
	o := New(db, nil, testConfig())
	o.stages["content"] = func(ctx context.Context, _ ai.Provider, _ StageOptions) (int, error) {
		return 0, ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := o.Execute(ctx, "content", model.TriggerCLI, StageOptions{})
	require.Error(t, err)
	assert.Equal(t, model.RunFailed, run.Status)
	assert.Equal(t, "cancelled", run.ErrorMessage)

	// The failed status is persisted despite the cancelled context.
	stored, gerr := db.GetRun(context.Background(), run.ID)
	require.NoError(t, gerr)
	assert.Equal(t, model.RunFailed, stored.Status)
}

func TestSubmitRunsInBackground(t *testing.T) {
	db := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o := New(db, nil, testConfig())
	events := o.Events().Subscribe()
	o.Start(ctx)
	defer o.Stop()

	id, err := o.Submit(ctx, "content", model.TriggerWeb, StageOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	done := waitEvent(t, events, EventDone)
	assert.Equal(t, id, done.RunID)
	assert.Equal(t, "content", done.Stage)

	stored, err := db.GetRun(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, stored.Status)
	assert.Equal(t, model.TriggerWeb, stored.TriggeredBy)
}

func TestSubmitAfterStopRejected(t *testing.T) {
	db := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o := New(db, nil, testConfig())
	o.Start(ctx)
	o.Stop()

	id, err := o.Submit(ctx, "content", model.TriggerWeb, StageOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped")
	assert.Empty(t, id)
}

func TestSameStageNeverRunsConcurrently(t *testing.T) {
	db := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var active, maxActive int32
	var wg sync.WaitGroup
	wg.Add(2)

	o := New(db, nil, testConfig())
	o.stages["content"] = func(context.Context, ai.Provider, StageOptions) (int, error) {
		defer wg.Done()
		n := atomic.AddInt32(&active, 1)
		for {
			seen := atomic.LoadInt32(&maxActive)
			if n <= seen || atomic.CompareAndSwapInt32(&maxActive, seen, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return 1, nil
	}

	o.Start(ctx)
	defer o.Stop()

	_, err := o.Submit(ctx, "content", model.TriggerCLI, StageOptions{})
	require.NoError(t, err)
	_, err = o.Submit(ctx, "content", model.TriggerCLI, StageOptions{})
	require.NoError(t, err)

	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestRunAllSkipsEngage(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	var mu sync.Mutex
	var ran []string

	o := New(db, nil, testConfig())
	for _, stage := range StageNames {
		stage := stage
		o.stages[stage] = func(context.Context, ai.Provider, StageOptions) (int, error) {
			mu.Lock()
			ran = append(ran, stage)
			mu.Unlock()
			return 2, nil
		}
	}

	total, err := o.RunAll(ctx, model.TriggerCLI)
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	assert.Equal(t, []string{"metadata", "content", "entities", "classify", "profile", "segment"}, ran)
}

func TestRunAllStopsOnFailure(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	var mu sync.Mutex
	var ran []string

	o := New(db, nil, testConfig())
	for _, stage := range StageNames {
		stage := stage
		o.stages[stage] = func(context.Context, ai.Provider, StageOptions) (int, error) {
			mu.Lock()
			ran = append(ran, stage)
			mu.Unlock()
			if stage == "entities" {
				return 0, eris.New("tagger unreachable")
			}
			return 1, nil
		}
	}

	_, err := o.RunAll(ctx, model.TriggerCLI)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped at entities")
	assert.Equal(t, []string{"metadata", "content", "entities"}, ran)
}

func TestWebTriggerWrapsProviderWithAudit(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	var captured ai.Provider
	o := New(db, &fakeProvider{response: "{}"}, testConfig())
	o.stages["classify"] = func(_ context.Context, p ai.Provider, _ StageOptions) (int, error) {
		captured = p
		return 0, nil
	}

	_, err := o.Execute(ctx, "classify", model.TriggerWeb, StageOptions{})
	require.NoError(t, err)
	_, isAudit := captured.(*auditProvider)
	assert.True(t, isAudit)

	_, err = o.Execute(ctx, "classify", model.TriggerCLI, StageOptions{})
	require.NoError(t, err)
	_, isAudit = captured.(*auditProvider)
	assert.False(t, isAudit)
}

func TestStageOptionsPassedThrough(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	var got StageOptions
	o := New(db, nil, testConfig())
	o.stages["engage"] = func(_ context.Context, _ ai.Provider, opts StageOptions) (int, error) {
		got = opts
		return 0, nil
	}

	_, err := o.Execute(ctx, "engage", model.TriggerCLI, StageOptions{GemID: 7, Strategy: "audit", TopN: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.GemID)
	assert.Equal(t, "audit", got.Strategy)
	assert.Equal(t, 3, got.TopN)
}
