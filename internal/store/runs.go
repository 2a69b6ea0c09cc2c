package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cesargomez89/flixetl/internal/constants"
	"github.com/cesargomez89/flixetl/internal/domain"
)

func (db *DB) CreateRun(ctx context.Context, run *domain.PipelineRun) error {
	query := `INSERT INTO pipeline_runs (id, force, status, started_at) VALUES (?, ?, ?, ?)`
	return db.exec(ctx, query, run.ID, run.Force, run.Status, run.StartedAt)
}

func (db *DB) FinishRun(ctx context.Context, id string, status domain.RunStatus, errMsg *string) error {
	query := `UPDATE pipeline_runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`
	return db.exec(ctx, query, status, errMsg, time.Now(), id)
}

// SaveTaskRun inserts or replaces the outcome of one task in one run.
func (db *DB) SaveTaskRun(ctx context.Context, tr *domain.TaskRun) error {
	query := `INSERT INTO task_runs (run_id, task, status, reason, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, task) DO UPDATE SET
			status = excluded.status,
			reason = excluded.reason,
			error = excluded.error,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`
	return db.exec(ctx, query, tr.RunID, tr.Task, tr.Status, tr.Reason, tr.Error, tr.StartedAt, tr.FinishedAt)
}

func (db *DB) GetRun(ctx context.Context, id string) (*domain.PipelineRun, error) {
	query := `SELECT id, force, status, error, started_at, finished_at FROM pipeline_runs WHERE id = ?`

	run := &domain.PipelineRun{}
	err := db.get(ctx, run, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}

	tasks, err := db.ListTaskRuns(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Tasks = tasks
	return run, nil
}

func (db *DB) ListTaskRuns(ctx context.Context, runID string) ([]*domain.TaskRun, error) {
	query := `SELECT run_id, task, status, reason, error, started_at, finished_at
		FROM task_runs WHERE run_id = ? ORDER BY started_at, task`

	var tasks []*domain.TaskRun
	err := db.selectAll(ctx, &tasks, query, runID)
	return tasks, err
}

// ListRuns returns the most recent runs first, without their tasks.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]*domain.PipelineRun, error) {
	query := `SELECT id, force, status, error, started_at, finished_at
		FROM pipeline_runs ORDER BY started_at DESC LIMIT ?`

	var runs []*domain.PipelineRun
	err := db.selectAll(ctx, &runs, query, limit)
	return runs, err
}

// ResetStuckRuns marks runs left running by a crashed process as failed. A
// run whose build lease is still live belongs to another process and is kept.
func (db *DB) ResetStuckRuns(ctx context.Context) error {
	query := `UPDATE pipeline_runs SET status = ?, error = ?, finished_at = ?
		WHERE status = ? AND id NOT IN (SELECT run_id FROM build_lease WHERE expires_at > ?)`
	now := time.Now()
	return db.exec(ctx, query, domain.RunStatusFailed, "interrupted", now, domain.RunStatusRunning, now.UnixMilli())
}

// PruneRuns keeps the newest keep runs and deletes the rest with their tasks.
func (db *DB) PruneRuns(ctx context.Context, keep int) error {
	return db.RunInTx(ctx, func(tx *DB) error {
		old := `SELECT id FROM pipeline_runs ORDER BY started_at DESC LIMIT -1 OFFSET ?`
		if tx.Driver == constants.DriverPostgres {
			old = `SELECT id FROM pipeline_runs ORDER BY started_at DESC OFFSET ?`
		}
		if err := tx.exec(ctx, `DELETE FROM task_runs WHERE run_id IN (`+old+`)`, keep); err != nil {
			return err
		}
		return tx.exec(ctx, `DELETE FROM pipeline_runs WHERE id IN (`+old+`)`, keep)
	})
}
