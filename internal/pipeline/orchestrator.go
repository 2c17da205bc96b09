// Package pipeline drives the seven analytic stages: run records, a
// bounded worker pool with per-stage mutual exclusion, live event
// broadcast, and AI audit interception for web-triggered runs.
package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gemsieve/internal/config"
	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/store"
	"github.com/sells-group/gemsieve/pkg/ai"
)

const defaultWorkers = 2

type job struct {
	run  *model.Run
	opts StageOptions
}

// Orchestrator owns stage execution. Stages communicate only through the
// store; the orchestrator adds run bookkeeping around each invocation.
type Orchestrator struct {
	db       store.Store
	provider ai.Provider
	stages   map[string]StageFunc
	bus      *Bus
	log      *zap.Logger
	snapshot string

	mu      sync.Mutex
	stageMu map[string]*sync.Mutex
	jobs    chan job
	wg      sync.WaitGroup
	started bool
	stopped bool
}

// New builds an orchestrator over one store, provider, and config.
func New(db store.Store, provider ai.Provider, cfg *config.Config) *Orchestrator {
	snapshot, _ := json.Marshal(map[string]string{"model": cfg.AI.ModelSpec()})
	return &Orchestrator{
		db:       db,
		provider: provider,
		stages:   buildStages(db, cfg),
		bus:      NewBus(),
		log:      zap.L().Named("pipeline"),
		snapshot: string(snapshot),
		stageMu:  make(map[string]*sync.Mutex),
		jobs:     make(chan job, 32),
	}
}

// Events exposes the live event bus for the SSE stream.
func (o *Orchestrator) Events() *Bus { return o.bus }

// Start launches the background worker pool. ctx bounds the lifetime of
// every queued job.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return
	}
	o.started = true
	o.mu.Unlock()

	for i := 0; i < defaultWorkers; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case j, ok := <-o.jobs:
					if !ok {
						return
					}
					o.execute(ctx, j.run, j.opts)
				}
			}
		}()
	}
}

// Stop drains the queue and waits for in-flight jobs. Submissions after
// Stop are rejected.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return
	}
	o.started = false
	o.stopped = true
	close(o.jobs)
	o.mu.Unlock()
	o.wg.Wait()
}

// Submit queues a stage for background execution and returns its run id.
// The run row is written pending before the job is enqueued, so the
// submission is visible even if the process dies before the job starts.
func (o *Orchestrator) Submit(ctx context.Context, stage, triggeredBy string, opts StageOptions) (string, error) {
	if _, ok := o.stages[stage]; !ok {
		return "", eris.Errorf("pipeline: unknown stage %q", stage)
	}
	run, err := o.db.CreateRun(ctx, stage, triggeredBy, o.snapshot)
	if err != nil {
		return "", err
	}

	// The lock excludes Stop closing the channel between the check and
	// the send; the send must not block while it is held.
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return "", eris.New("pipeline: orchestrator stopped")
	}
	select {
	case o.jobs <- job{run: run, opts: opts}:
	default:
		return "", eris.Errorf("pipeline: job queue full, stage %s not queued", stage)
	}
	return run.ID, nil
}

// Execute runs a stage synchronously, returning the completed run record.
func (o *Orchestrator) Execute(ctx context.Context, stage, triggeredBy string, opts StageOptions) (*model.Run, error) {
	if _, ok := o.stages[stage]; !ok {
		return nil, eris.Errorf("pipeline: unknown stage %q", stage)
	}
	run, err := o.db.CreateRun(ctx, stage, triggeredBy, o.snapshot)
	if err != nil {
		return nil, err
	}
	err = o.execute(ctx, run, opts)
	return run, err
}

// RunAll executes the first six stages in order; engage is skipped and
// requires explicit selection. Returns total items processed.
func (o *Orchestrator) RunAll(ctx context.Context, triggeredBy string) (int, error) {
	total := 0
	for _, stage := range StageNames {
		if stage == "engage" {
			continue
		}
		run, err := o.Execute(ctx, stage, triggeredBy, StageOptions{})
		if run != nil {
			total += run.ItemsProcessed
		}
		if err != nil {
			return total, eris.Wrapf(err, "pipeline: run all stopped at %s", stage)
		}
	}
	return total, nil
}

// execute holds the per-stage lock for the duration of the stage so two
// instances of the same stage never run in parallel.
func (o *Orchestrator) execute(ctx context.Context, run *model.Run, opts StageOptions) error {
	mu := o.lockFor(run.Stage)
	mu.Lock()
	defer mu.Unlock()

	run.Status = model.RunRunning
	if err := o.db.UpdateRun(ctx, run); err != nil {
		o.log.Warn("run status update failed", zap.String("run", run.ID), zap.Error(err))
	}
	o.bus.Publish(Event{Type: EventStarted, RunID: run.ID, Stage: run.Stage})
	o.log.Info("stage started",
		zap.String("run", run.ID), zap.String("stage", run.Stage),
		zap.String("triggered_by", run.TriggeredBy))

	provider := o.provider
	if run.TriggeredBy == model.TriggerWeb && provider != nil {
		provider = withAudit(provider, o.db, run.ID, run.Stage)
	}

	start := time.Now()
	items, err := o.stages[run.Stage](ctx, provider, opts)

	now := time.Now().UTC()
	run.CompletedAt = &now
	run.ItemsProcessed = items

	if err != nil {
		run.Status = model.RunFailed
		if eris.Is(err, context.Canceled) || eris.Is(err, context.DeadlineExceeded) {
			run.ErrorMessage = "cancelled"
		} else {
			run.ErrorMessage = err.Error()
		}
		o.bus.Publish(Event{Type: EventFailed, RunID: run.ID, Stage: run.Stage, Error: run.ErrorMessage})
		o.log.Error("stage failed",
			zap.String("run", run.ID), zap.String("stage", run.Stage), zap.Error(err))
	} else {
		run.Status = model.RunCompleted
		o.bus.Publish(Event{Type: EventDone, RunID: run.ID, Stage: run.Stage, Items: items})
		o.log.Info("stage completed",
			zap.String("run", run.ID), zap.String("stage", run.Stage),
			zap.Int("items", items), zap.Duration("took", time.Since(start)))
	}

	// Persist the outcome with a fresh context so a cancelled run is
	// still recorded as failed.
	updateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if uerr := o.db.UpdateRun(updateCtx, run); uerr != nil {
		o.log.Warn("run finalize failed", zap.String("run", run.ID), zap.Error(uerr))
	}
	return err
}

func (o *Orchestrator) lockFor(stage string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	mu, ok := o.stageMu[stage]
	if !ok {
		mu = &sync.Mutex{}
		o.stageMu[stage] = mu
	}
	return mu
}
