package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/gemsieve/internal/model"
)

func (s *DB) CreateRun(ctx context.Context, stage, triggeredBy, configSnapshot string) (*model.Run, error) {
	run := &model.Run{
		ID:             uuid.New().String(),
		Stage:          stage,
		Status:         model.RunPending,
		StartedAt:      time.Now().UTC(),
		ConfigSnapshot: configSnapshot,
		TriggeredBy:    triggeredBy,
	}
	_, err := s.exec(ctx, `INSERT INTO pipeline_runs
		(id, stage, status, started_at, config_snapshot, triggered_by)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Stage, string(run.Status), run.StartedAt, run.ConfigSnapshot,
		run.TriggeredBy,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: create run")
	}
	return run, nil
}

func (s *DB) UpdateRun(ctx context.Context, run *model.Run) error {
	res, err := s.exec(ctx, `UPDATE pipeline_runs SET
			status = ?, completed_at = ?, items_processed = ?, error_message = ?
		WHERE id = ?`,
		string(run.Status), nullTimePtr(run.CompletedAt), run.ItemsProcessed,
		run.ErrorMessage, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "store: update run %s", run.ID)
	}
	return checkRowsAffected(res, "run", run.ID)
}

const runCols = `id, stage, status, started_at, completed_at, items_processed,
	error_message, config_snapshot, triggered_by`

func (s *DB) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.queryRow(ctx, `SELECT `+runCols+` FROM pipeline_runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func (s *DB) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runCols + ` FROM pipeline_runs WHERE 1=1`
	var args []any

	if filter.Stage != "" {
		query += ` AND stage = ?`
		args = append(args, filter.Stage)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT %d`, limit)
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET %d`, filter.Offset)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list runs")
	}
	defer rows.Close()

	var out []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRun(row scannable) (*model.Run, error) {
	var (
		r         model.Run
		status    string
		started   sql.NullTime
		completed sql.NullTime
	)
	err := row.Scan(&r.ID, &r.Stage, &status, &started, &completed,
		&r.ItemsProcessed, &r.ErrorMessage, &r.ConfigSnapshot, &r.TriggeredBy)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, eris.Wrap(err, "store: scan run")
	}
	r.Status = model.RunStatus(status)
	if started.Valid {
		r.StartedAt = started.Time
	}
	if completed.Valid {
		r.CompletedAt = &completed.Time
	}
	return &r, nil
}

func (s *DB) InsertAudit(ctx context.Context, e *model.AuditEntry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if s.dialect == dialectPostgres {
		var id int64
		err := s.queryRow(ctx, `INSERT INTO ai_audit
			(pipeline_run_id, stage, sender_domain, prompt_template_id, prompt_rendered,
			 system_prompt, model_used, response_raw, response_parsed, duration_ms, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			e.RunID, e.Stage, e.SenderDomain, e.PromptTemplateID, e.PromptRendered,
			e.SystemPrompt, e.ModelUsed, e.ResponseRaw, e.ResponseParsed, e.DurationMS,
			e.CreatedAt,
		).Scan(&id)
		return id, eris.Wrap(err, "store: insert audit")
	}
	res, err := s.exec(ctx, `INSERT INTO ai_audit
		(pipeline_run_id, stage, sender_domain, prompt_template_id, prompt_rendered,
		 system_prompt, model_used, response_raw, response_parsed, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Stage, e.SenderDomain, e.PromptTemplateID, e.PromptRendered,
		e.SystemPrompt, e.ModelUsed, e.ResponseRaw, e.ResponseParsed, e.DurationMS,
		e.CreatedAt,
	)
	if err != nil {
		return 0, eris.Wrap(err, "store: insert audit")
	}
	return res.LastInsertId()
}

const auditCols = `id, pipeline_run_id, stage, sender_domain, prompt_template_id,
	prompt_rendered, system_prompt, model_used, response_raw, response_parsed,
	duration_ms, created_at`

func (s *DB) GetAudit(ctx context.Context, id int64) (*model.AuditEntry, error) {
	row := s.queryRow(ctx, `SELECT `+auditCols+` FROM ai_audit WHERE id = ?`, id)
	e, err := scanAudit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (s *DB) ListAudit(ctx context.Context, filter AuditFilter) ([]model.AuditEntry, error) {
	query := `SELECT ` + auditCols + ` FROM ai_audit WHERE 1=1`
	var args []any

	if filter.RunID != "" {
		query += ` AND pipeline_run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.Stage != "" {
		query += ` AND stage = ?`
		args = append(args, filter.Stage)
	}
	query += ` ORDER BY id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT %d`, limit)
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET %d`, filter.Offset)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list audit")
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		e, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanAudit(row scannable) (*model.AuditEntry, error) {
	var (
		e       model.AuditEntry
		created sql.NullTime
	)
	err := row.Scan(&e.ID, &e.RunID, &e.Stage, &e.SenderDomain, &e.PromptTemplateID,
		&e.PromptRendered, &e.SystemPrompt, &e.ModelUsed, &e.ResponseRaw,
		&e.ResponseParsed, &e.DurationMS, &created)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, eris.Wrap(err, "store: scan audit")
	}
	if created.Valid {
		e.CreatedAt = created.Time
	}
	return &e, nil
}
