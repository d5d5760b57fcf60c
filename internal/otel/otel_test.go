package otel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestInitMeterProvider(t *testing.T) {
	ctx := context.Background()
	handler, err := InitMeterProvider(ctx, "test-service")
	if err != nil {
		t.Fatalf("InitMeterProvider: %v", err)
	}
	if handler == nil {
		t.Fatal("InitMeterProvider: expected non-nil handler")
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics: status=%d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("GET /metrics: empty body")
	}
}

func TestInitMeterProvider_emptyServiceName(t *testing.T) {
	handler, err := InitMeterProvider(context.Background(), "")
	if err != nil {
		t.Fatalf("InitMeterProvider: %v", err)
	}
	if handler == nil {
		t.Fatal("expected non-nil handler")
	}
}

func TestInitMetricsIdempotent(t *testing.T) {
	ctx := context.Background()
	if _, err := InitMeterProvider(ctx, "metrics-test"); err != nil {
		t.Fatalf("InitMeterProvider: %v", err)
	}
	if err := InitMetrics(ctx); err != nil {
		t.Fatalf("InitMetrics: %v", err)
	}
	if err := InitMetrics(ctx); err != nil {
		t.Fatalf("InitMetrics second call: %v", err)
	}

	// Record helpers must not panic after init, nor before for a fresh
	// instrument set (they are nil-guarded).
	RecordAtomization(ctx, "ok", "", "overwhelmed", 1200*time.Millisecond)
	RecordModelCall(ctx, "ok", 800*time.Millisecond)
	RecordRateLimitRejection(ctx)
	RecordSession(ctx, true)
	RecordSession(ctx, false)
}
