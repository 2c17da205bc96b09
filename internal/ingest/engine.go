// Package ingest pulls mail from the provider into the store and keeps
// thread state current.
package ingest

import (
	"context"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/gemsieve/internal/model"
	"github.com/sells-group/gemsieve/internal/store"
	"github.com/sells-group/gemsieve/pkg/gmail"
)

// Source is the mail-provider surface the engine needs. *gmail.Client
// satisfies it.
type Source interface {
	SearchMessages(ctx context.Context, query string) ([]string, error)
	FetchMessage(ctx context.Context, id string) (*model.Message, error)
	ListHistory(ctx context.Context, startHistoryID string) ([]string, error)
	CurrentHistoryID(ctx context.Context) (string, error)
}

// Engine runs full and incremental syncs.
type Engine struct {
	src Source
	db  store.Store
	log *zap.Logger

	// Progress is called every progressEvery fetched messages.
	Progress func(done, total, stored int)
}

const progressEvery = 50

// NewEngine wires a sync engine.
func NewEngine(src Source, db store.Store) *Engine {
	return &Engine{src: src, db: db, log: zap.L().Named("ingest")}
}

// Sync picks the right mode: full scan when no history cursor exists,
// otherwise an incremental delta sync, falling back to a full scan when the
// cursor has expired. Returns the number of newly stored messages.
func (e *Engine) Sync(ctx context.Context, query string) (int, error) {
	state, err := e.db.GetSyncState(ctx)
	if err != nil {
		return 0, err
	}
	if state == nil || state.LastHistoryID == "" {
		return e.FullSync(ctx, query)
	}

	n, err := e.IncrementalSync(ctx)
	if eris.Is(err, gmail.ErrHistoryExpired) {
		e.log.Warn("history cursor expired, falling back to full sync")
		return e.FullSync(ctx, query)
	}
	return n, err
}

// FullSync pulls every message matching the query, skipping already-stored
// ones, then recomputes threads and persists the new history cursor.
func (e *Engine) FullSync(ctx context.Context, query string) (int, error) {
	ids, err := e.src.SearchMessages(ctx, query)
	if err != nil {
		return 0, eris.Wrap(err, "ingest: search messages")
	}
	e.log.Info("full sync started", zap.String("query", query), zap.Int("matched", len(ids)))

	stored, err := e.fetchAndStore(ctx, ids)
	if err != nil {
		return stored, err
	}
	if err := e.RebuildThreads(ctx); err != nil {
		return stored, err
	}

	historyID, err := e.src.CurrentHistoryID(ctx)
	if err != nil {
		return stored, err
	}
	if err := e.db.SaveSyncState(ctx, historyID, true, stored); err != nil {
		return stored, err
	}
	e.log.Info("full sync finished", zap.Int("stored", stored))
	return stored, nil
}

// IncrementalSync fetches only messages added since the stored cursor.
// Returns gmail.ErrHistoryExpired (wrapped) when a full sync is needed.
func (e *Engine) IncrementalSync(ctx context.Context) (int, error) {
	state, err := e.db.GetSyncState(ctx)
	if err != nil {
		return 0, err
	}
	if state == nil || state.LastHistoryID == "" {
		return 0, eris.New("ingest: no previous sync state, run a full sync first")
	}

	ids, err := e.src.ListHistory(ctx, state.LastHistoryID)
	if err != nil {
		return 0, err
	}
	e.log.Info("incremental sync started", zap.Int("delta", len(ids)))

	stored, err := e.fetchAndStore(ctx, ids)
	if err != nil {
		return stored, err
	}
	if err := e.RebuildThreads(ctx); err != nil {
		return stored, err
	}

	historyID, err := e.src.CurrentHistoryID(ctx)
	if err != nil {
		return stored, err
	}
	if err := e.db.SaveSyncState(ctx, historyID, false, stored); err != nil {
		return stored, err
	}
	e.log.Info("incremental sync finished", zap.Int("stored", stored))
	return stored, nil
}

// fetchWorkers bounds concurrent provider fetches. The store serializes
// writes itself.
const fetchWorkers = 4

func (e *Engine) fetchAndStore(ctx context.Context, ids []string) (int, error) {
	var stored, done atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchWorkers)
	for _, id := range ids {
		g.Go(func() error {
			exists, err := e.db.HasMessage(ctx, id)
			if err != nil {
				return err
			}
			if !exists {
				msg, err := e.src.FetchMessage(ctx, id)
				if err != nil {
					return eris.Wrapf(err, "ingest: fetch message %s", id)
				}
				if err := e.db.UpsertMessage(ctx, msg); err != nil {
					return err
				}
				stored.Add(1)
			}

			n := int(done.Add(1))
			if e.Progress != nil && (n%progressEvery == 0 || n == len(ids)) {
				e.Progress(n, len(ids), int(stored.Load()))
			}
			return nil
		})
	}
	err := g.Wait()
	return int(stored.Load()), err
}

var subjectPrefix = regexp.MustCompile(`(?i)^(?:Re|Fwd|Fw):\s*`)

// RebuildThreads recomputes every thread row from its stored messages.
func (e *Engine) RebuildThreads(ctx context.Context) error {
	threadIDs, err := e.db.ListThreadIDs(ctx)
	if err != nil {
		return err
	}

	for _, tid := range threadIDs {
		msgs, err := e.db.ListThreadMessages(ctx, tid)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			continue
		}
		if err := e.db.UpsertThread(ctx, BuildThread(tid, msgs, time.Now().UTC())); err != nil {
			return err
		}
	}
	return nil
}

// BuildThread derives thread state from its messages, which must be sorted
// by date ascending.
func BuildThread(threadID string, msgs []model.Message, now time.Time) *model.Thread {
	t := &model.Thread{ThreadID: threadID, MessageCount: len(msgs)}

	subject := msgs[0].Subject
	for subjectPrefix.MatchString(subject) {
		subject = subjectPrefix.ReplaceAllString(subject, "")
	}
	t.Subject = strings.TrimSpace(subject)

	participants := make(map[string]bool)
	for _, m := range msgs {
		if m.FromAddress != "" {
			participants[m.FromAddress] = true
		}
		if !m.Date.IsZero() {
			if t.FirstMessageDate.IsZero() {
				t.FirstMessageDate = m.Date
			}
			t.LastMessageDate = m.Date
		}
		t.LastSender = m.FromAddress
		if m.IsSent {
			t.UserParticipated = true
			d := m.Date
			t.UserLastReplied = &d
		}
	}
	t.ParticipantCount = len(participants)

	if !t.LastMessageDate.IsZero() {
		t.DaysDormant = int(now.Sub(t.LastMessageDate).Hours() / 24)
		if t.DaysDormant < 0 {
			t.DaysDormant = 0
		}
	}

	last := msgs[len(msgs)-1]
	body := last.BodyText
	if strings.TrimSpace(body) == "" {
		body = last.Snippet
	}
	t.AwaitingResponseFrom = ClassifyAwaiting(body, last.IsSent)
	return t
}
