// Package metrics derives the user-facing productivity figures from the
// raw activity aggregates: focus index, time to action, momentum, and
// per-barrier breakdowns.
package metrics

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/dalefocus/dalefocus/internal/apperr"
	"github.com/dalefocus/dalefocus/internal/schema"
	"github.com/dalefocus/dalefocus/internal/store"
	"github.com/dalefocus/dalefocus/pkg/models"
)

// Store is the aggregation surface the reporter needs.
type Store interface {
	MetricsSince(ctx context.Context, ownerID string, since time.Time) (*store.MetricsTotals, error)
}

// Report is the derived metrics payload for one principal and period.
type Report struct {
	// Days is the length of the reporting period.
	Days int `json:"days"`
	// FocusIndex is the average number of completed pomodoros per
	// completed task. Zero when no task completed in the period.
	FocusIndex float64 `json:"focusIndex"`
	// TimeToActionMinutes is the average minutes between creating a task
	// and its first focus session. Zero when no task got a session.
	TimeToActionMinutes float64 `json:"timeToActionMinutes"`
	// Momentum is the percentage of steps completed across tasks created
	// in the period, in [0,100].
	Momentum float64 `json:"momentum"`
	// CompletedPomodoros counts completed sessions in the period.
	CompletedPomodoros int `json:"completedPomodoros"`
	// TasksCreated counts tasks created in the period.
	TasksCreated int `json:"tasksCreated"`
	// TasksCompleted counts tasks completed in the period.
	TasksCompleted int `json:"tasksCompleted"`
	// BarrierCounts tallies tasks created in the period by barrier.
	BarrierCounts map[models.Barrier]int `json:"barrierCounts"`
}

// Reporter computes metrics reports.
type Reporter struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Reporter.
func New(st Store, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{store: st, logger: logger, now: time.Now}
}

// SetClock overrides the reporter's time source (for testing).
func (r *Reporter) SetClock(now func() time.Time) {
	r.now = now
}

// Report computes the metrics for the principal over the last days days.
// daysSet distinguishes an absent days parameter (default 7) from an
// explicit zero (rejected).
func (r *Reporter) Report(ctx context.Context, principal string, days int, daysSet bool) (*Report, error) {
	if principal == "" {
		return nil, apperr.New(apperr.Unauthenticated, "you must be signed in")
	}
	d, issues := schema.ValidateMetricsDays(days, daysSet)
	if issues != nil {
		return nil, apperr.Wrap(apperr.InvalidArgument, apperr.StageNone, issues.Error(), issues)
	}

	since := r.now().AddDate(0, 0, -d)
	totals, err := r.store.MetricsSince(ctx, principal, since)
	if err != nil {
		r.logger.Error("metrics aggregation failed", slog.String("error", err.Error()))
		return nil, apperr.Wrap(apperr.Internal, apperr.StagePersist, "failed to compute metrics", err)
	}

	rep := &Report{
		Days:               d,
		CompletedPomodoros: totals.CompletedPomodoros,
		TasksCreated:       totals.TasksCreated,
		TasksCompleted:     totals.TasksCompleted,
		BarrierCounts:      totals.BarrierCounts,
	}
	if rep.BarrierCounts == nil {
		rep.BarrierCounts = map[models.Barrier]int{}
	}
	if totals.TasksCompleted > 0 {
		rep.FocusIndex = round2(float64(totals.CompletedPomodoros) / float64(totals.TasksCompleted))
	}
	if totals.TimeToActionCount > 0 {
		avg := totals.TimeToActionSum / time.Duration(totals.TimeToActionCount)
		rep.TimeToActionMinutes = round2(avg.Minutes())
	}
	if totals.StepsTotal > 0 {
		rep.Momentum = round2(float64(totals.StepsCompleted) / float64(totals.StepsTotal) * 100)
	}
	return rep, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
