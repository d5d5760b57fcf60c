package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dalefocus/dalefocus/pkg/models"
)

// ErrNotFound is returned when a task or step does not exist.
var ErrNotFound = sql.ErrNoRows

// CreateTaskWithSteps persists a task and its steps in one transaction, so
// a step can never be observed without its owning task. Callers supply
// fully-populated entities with generated ids.
func (db *DB) CreateTaskWithSteps(ctx context.Context, task *models.Task, steps []*models.Step) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (id, owner_id, title, barrier, strategy, estimated_pomodoros, status, created_at, first_session_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, task.ID, task.OwnerID, task.Title, string(task.Barrier), task.Strategy,
			task.EstimatedPomodoros, string(task.Status), formatTime(task.CreatedAt),
			formatNullableTime(task.FirstSessionAt), formatNullableTime(task.CompletedAt))
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}

		for _, step := range steps {
			criteria, err := json.Marshal(step.AcceptanceCriteria)
			if err != nil {
				return fmt.Errorf("marshal acceptance criteria: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO steps (id, task_id, title, action, estimate_minutes, acceptance_criteria, step_order, status, completed_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, step.ID, step.TaskID, step.Title, step.Action, step.EstimateMinutes,
				string(criteria), step.Order, string(step.Status), formatNullableTime(step.CompletedAt))
			if err != nil {
				return fmt.Errorf("insert step %s: %w", step.ID, err)
			}
		}

		return nil
	})
}

// GetTask retrieves a task by id. Returns ErrNotFound when absent.
func (db *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, owner_id, title, barrier, strategy, estimated_pomodoros, status, created_at, first_session_at, completed_at
		FROM tasks WHERE id = ?
	`, id)
	return scanTask(row)
}

func scanTask(row *sql.Row) (*models.Task, error) {
	var t models.Task
	var barrier, status, createdAt string
	var firstSessionAt, completedAt sql.NullString
	err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &barrier, &t.Strategy,
		&t.EstimatedPomodoros, &status, &createdAt, &firstSessionAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	t.Barrier = models.Barrier(barrier)
	t.Status = models.TaskStatus(status)
	t.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse task created_at: %w", err)
	}
	t.FirstSessionAt = parseNullableTime(firstSessionAt)
	t.CompletedAt = parseNullableTime(completedAt)
	return &t, nil
}

// GetStep retrieves a step by id. Returns ErrNotFound when absent.
func (db *DB) GetStep(ctx context.Context, id string) (*models.Step, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, task_id, title, action, estimate_minutes, acceptance_criteria, step_order, status, completed_at
		FROM steps WHERE id = ?
	`, id)

	var s models.Step
	var criteria, status string
	var completedAt sql.NullString
	err := row.Scan(&s.ID, &s.TaskID, &s.Title, &s.Action, &s.EstimateMinutes,
		&criteria, &s.Order, &status, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan step: %w", err)
	}

	if err := json.Unmarshal([]byte(criteria), &s.AcceptanceCriteria); err != nil {
		return nil, fmt.Errorf("unmarshal acceptance criteria: %w", err)
	}
	s.Status = models.StepStatus(status)
	s.CompletedAt = parseNullableTime(completedAt)
	return &s, nil
}

// ListSteps returns a task's steps ordered by step_order.
func (db *DB) ListSteps(ctx context.Context, taskID string) ([]*models.Step, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, task_id, title, action, estimate_minutes, acceptance_criteria, step_order, status, completed_at
		FROM steps WHERE task_id = ? ORDER BY step_order
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []*models.Step
	for rows.Next() {
		var s models.Step
		var criteria, status string
		var completedAt sql.NullString
		if err := rows.Scan(&s.ID, &s.TaskID, &s.Title, &s.Action, &s.EstimateMinutes,
			&criteria, &s.Order, &status, &completedAt); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if err := json.Unmarshal([]byte(criteria), &s.AcceptanceCriteria); err != nil {
			return nil, fmt.Errorf("unmarshal acceptance criteria: %w", err)
		}
		s.Status = models.StepStatus(status)
		s.CompletedAt = parseNullableTime(completedAt)
		steps = append(steps, &s)
	}
	return steps, rows.Err()
}

// CompleteStep marks a step completed at the given time. An already
// completed step keeps its original timestamp.
func (db *DB) CompleteStep(ctx context.Context, stepID string, at time.Time) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE steps SET status = ?, completed_at = ?
		WHERE id = ? AND status != ?
	`, string(models.StepStatusCompleted), formatTime(at),
		stepID, string(models.StepStatusCompleted))
	if err != nil {
		return fmt.Errorf("complete step: %w", err)
	}
	return nil
}

// SetFirstSessionAt stamps the task's first-session time if not already
// set. Feeds the time-to-action metric.
func (db *DB) SetFirstSessionAt(ctx context.Context, taskID string, at time.Time) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE tasks SET first_session_at = ?
		WHERE id = ? AND first_session_at IS NULL
	`, formatTime(at), taskID)
	if err != nil {
		return fmt.Errorf("set first session: %w", err)
	}
	return nil
}
