package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

var (
	initMetricsOnce     sync.Once
	atomizationsCounter metric.Int64Counter
	atomizationDuration metric.Float64Histogram
	modelCallDuration   metric.Float64Histogram
	rateLimitRejections metric.Int64Counter
	sessionsCounter     metric.Int64Counter
)

// InitMetrics creates the meter instruments. Safe to call multiple times;
// only runs once. Call after InitMeterProvider.
func InitMetrics(ctx context.Context) error {
	var err error
	initMetricsOnce.Do(func() {
		m := Meter()
		atomizationsCounter, err = m.Int64Counter("dalefocus_atomizations_total", metric.WithDescription("Total atomization calls by outcome kind and stage"))
		if err != nil {
			return
		}
		atomizationDuration, err = m.Float64Histogram("dalefocus_atomization_duration_seconds", metric.WithDescription("End-to-end atomization duration in seconds"))
		if err != nil {
			return
		}
		modelCallDuration, err = m.Float64Histogram("dalefocus_model_call_duration_seconds", metric.WithDescription("External completion call duration in seconds"))
		if err != nil {
			return
		}
		rateLimitRejections, err = m.Int64Counter("dalefocus_rate_limit_rejections_total", metric.WithDescription("Calls rejected by the per-principal rate limit"))
		if err != nil {
			return
		}
		sessionsCounter, err = m.Int64Counter("dalefocus_focus_sessions_total", metric.WithDescription("Focus sessions recorded, by completion outcome"))
	})
	return err
}

// RecordAtomization records one finished atomization call.
func RecordAtomization(ctx context.Context, outcome, stage, barrier string, duration time.Duration) {
	if atomizationsCounter != nil {
		atomizationsCounter.Add(ctx, 1, metric.WithAttributes(
			AttrOutcome.String(outcome),
			AttrStage.String(stage),
			AttrBarrier.String(barrier),
		))
	}
	if atomizationDuration != nil {
		atomizationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(AttrOutcome.String(outcome)))
	}
}

// RecordModelCall records one external completion call duration.
func RecordModelCall(ctx context.Context, outcome string, duration time.Duration) {
	if modelCallDuration != nil {
		modelCallDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(AttrOutcome.String(outcome)))
	}
}

// RecordRateLimitRejection records one rate-limited call.
func RecordRateLimitRejection(ctx context.Context) {
	if rateLimitRejections != nil {
		rateLimitRejections.Add(ctx, 1)
	}
}

// RecordSession records one focus session, completed or interrupted.
func RecordSession(ctx context.Context, completed bool) {
	if sessionsCounter != nil {
		outcome := "interrupted"
		if completed {
			outcome = "completed"
		}
		sessionsCounter.Add(ctx, 1, metric.WithAttributes(AttrOutcome.String(outcome)))
	}
}
