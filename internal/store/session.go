package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dalefocus/dalefocus/pkg/models"
)

// CreateSession records one focus session. Sessions are append-only.
func (db *DB) CreateSession(ctx context.Context, s *models.FocusSession) error {
	completed := 0
	if s.Completed {
		completed = 1
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO focus_sessions (id, owner_id, task_id, step_id, start_at, end_at, duration_minutes, completed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.OwnerID, nullableString(s.TaskID), nullableString(s.StepID),
		formatTime(s.StartAt), formatTime(s.EndAt), s.DurationMinutes, completed)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// MetricsTotals aggregates the raw figures the user-metrics operation
// derives its numbers from, over one owner's recent activity.
type MetricsTotals struct {
	// CompletedPomodoros counts completed sessions in the period.
	CompletedPomodoros int
	// TasksCompleted counts tasks completed in the period.
	TasksCompleted int
	// TasksCreated counts tasks created in the period.
	TasksCreated int
	// StepsTotal counts steps across tasks created in the period.
	StepsTotal int
	// StepsCompleted counts completed steps across those tasks.
	StepsCompleted int
	// TimeToActionSum is the total creation-to-first-session delta across
	// tasks created in the period that have a first session.
	TimeToActionSum time.Duration
	// TimeToActionCount is the number of tasks contributing to the sum.
	TimeToActionCount int
	// BarrierCounts tallies tasks created in the period by barrier.
	BarrierCounts map[models.Barrier]int
}

// MetricsSince aggregates activity for the owner since the given time.
func (db *DB) MetricsSince(ctx context.Context, ownerID string, since time.Time) (*MetricsTotals, error) {
	totals := &MetricsTotals{BarrierCounts: make(map[models.Barrier]int)}
	cutoff := formatTime(since)

	row := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM focus_sessions
		WHERE owner_id = ? AND completed = 1 AND end_at >= ?
	`, ownerID, cutoff)
	if err := row.Scan(&totals.CompletedPomodoros); err != nil {
		return nil, fmt.Errorf("count pomodoros: %w", err)
	}

	row = db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tasks
		WHERE owner_id = ? AND status = ? AND completed_at >= ?
	`, ownerID, string(models.TaskStatusCompleted), cutoff)
	if err := row.Scan(&totals.TasksCompleted); err != nil {
		return nil, fmt.Errorf("count completed tasks: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT barrier, created_at, first_session_at FROM tasks
		WHERE owner_id = ? AND created_at >= ?
	`, ownerID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query recent tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var barrier, createdAt string
		var firstSessionAt *string
		if err := rows.Scan(&barrier, &createdAt, &firstSessionAt); err != nil {
			return nil, fmt.Errorf("scan recent task: %w", err)
		}
		totals.TasksCreated++
		totals.BarrierCounts[models.Barrier(barrier)]++

		if firstSessionAt != nil {
			created, err := parseTime(createdAt)
			if err != nil {
				continue
			}
			first, err := parseTime(*firstSessionAt)
			if err != nil {
				continue
			}
			if first.After(created) {
				totals.TimeToActionSum += first.Sub(created)
				totals.TimeToActionCount++
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent tasks: %w", err)
	}

	row = db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN s.status = ? THEN 1 ELSE 0 END), 0)
		FROM steps s
		JOIN tasks t ON t.id = s.task_id
		WHERE t.owner_id = ? AND t.created_at >= ?
	`, string(models.StepStatusCompleted), ownerID, cutoff)
	if err := row.Scan(&totals.StepsTotal, &totals.StepsCompleted); err != nil {
		return nil, fmt.Errorf("count steps: %w", err)
	}

	return totals, nil
}
