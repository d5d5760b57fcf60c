// Package httpapi binds the DaleFocus operations to an HTTP JSON API.
// The surface is small: one endpoint per operation plus health and
// Prometheus metrics. Principals arrive as opaque bearer tokens;
// verification sits in front of this service.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dalefocus/dalefocus/internal/apperr"
	"github.com/dalefocus/dalefocus/internal/atomize"
	"github.com/dalefocus/dalefocus/internal/metrics"
	"github.com/dalefocus/dalefocus/internal/reward"
	"github.com/dalefocus/dalefocus/internal/session"
)

// defaultMaxRequestBodyBytes limits request bodies (64 KiB); every
// payload here is a small JSON document.
const defaultMaxRequestBodyBytes = 64 << 10

// Identity resolves the caller's principal from a request. The returned
// id is opaque; token verification happens upstream.
type Identity interface {
	Principal(r *http.Request) string
}

// BearerIdentity reads the principal from the Authorization bearer token.
type BearerIdentity struct{}

// Principal returns the bearer token, or "" when absent.
func (BearerIdentity) Principal(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// Atomizer is the atomization operation as the HTTP layer sees it.
type Atomizer interface {
	Atomize(ctx context.Context, principal string, req atomize.Request) (*atomize.Result, error)
}

// SessionRecorder is the session-completion operation.
type SessionRecorder interface {
	Complete(ctx context.Context, principal string, req session.Request) (*session.Result, error)
}

// Rewarder is the reward-generation operation.
type Rewarder interface {
	Generate(ctx context.Context, principal string, req reward.Request) (*reward.Result, error)
}

// MetricsReporter is the user-metrics operation.
type MetricsReporter interface {
	Report(ctx context.Context, principal string, days int, daysSet bool) (*metrics.Report, error)
}

// Options configures the HTTP server.
type Options struct {
	Addr           string
	Identity       Identity     // defaults to BearerIdentity
	MetricsHandler http.Handler // if set, served at /metrics
	UseOtelHTTP    bool         // wrap the handler with otelhttp for request metrics
	MaxBodyBytes   int64        // defaults to defaultMaxRequestBodyBytes
}

// Server is the HTTP app: the four operations behind a mux.
type Server struct {
	atomizer Atomizer
	sessions SessionRecorder
	rewards  Rewarder
	reports  MetricsReporter
	identity Identity
	logger   *slog.Logger
}

// New wires the operations into an *http.Server ready to ListenAndServe.
func New(opts Options, atomizer Atomizer, sessions SessionRecorder, rewards Rewarder, reports MetricsReporter, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		atomizer: atomizer,
		sessions: sessions,
		rewards:  rewards,
		reports:  reports,
		identity: opts.Identity,
		logger:   logger,
	}
	if s.identity == nil {
		s.identity = BearerIdentity{}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	if opts.MetricsHandler != nil {
		mux.Handle("/metrics", opts.MetricsHandler)
	}
	mux.HandleFunc("POST /v1/atomize", s.handleAtomize)
	mux.HandleFunc("POST /v1/sessions/complete", s.handleCompleteSession)
	mux.HandleFunc("POST /v1/rewards", s.handleReward)
	mux.HandleFunc("GET /v1/metrics", s.handleMetrics)

	maxBytes := opts.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxRequestBodyBytes
	}
	var handler http.Handler = bodyLimitMiddleware(maxBytes, mux)
	if opts.UseOtelHTTP {
		handler = otelhttp.NewHandler(handler, "httpapi")
	}

	return &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// bodyLimitMiddleware caps request body size for methods that carry one.
func bodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleAtomize(w http.ResponseWriter, r *http.Request) {
	var req atomize.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, apperr.New(apperr.InvalidArgument, "invalid json"))
		return
	}
	res, err := s.atomizer.Atomize(r.Context(), s.identity.Principal(r), req)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TaskID          *string `json:"taskId"`
		StepID          *string `json:"stepId"`
		DurationMinutes int     `json:"durationMinutes"`
		Completed       bool    `json:"completed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, apperr.New(apperr.InvalidArgument, "invalid json"))
		return
	}
	req := session.Request{
		DurationMinutes: body.DurationMinutes,
		Completed:       body.Completed,
	}
	if body.TaskID != nil {
		req.TaskID, req.TaskIDSet = *body.TaskID, true
	}
	if body.StepID != nil {
		req.StepID, req.StepIDSet = *body.StepID, true
	}
	res, err := s.sessions.Complete(r.Context(), s.identity.Principal(r), req)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReward(w http.ResponseWriter, r *http.Request) {
	var req reward.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, apperr.New(apperr.InvalidArgument, "invalid json"))
		return
	}
	res, err := s.rewards.Generate(r.Context(), s.identity.Principal(r), req)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	days, daysSet := 0, false
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, apperr.New(apperr.InvalidArgument, "days must be an integer"))
			return
		}
		days, daysSet = parsed, true
	}
	res, err := s.reports.Report(r.Context(), s.identity.Principal(r), days, daysSet)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Unauthenticated:
		return http.StatusUnauthorized
	case apperr.InvalidArgument, apperr.FailedPrecondition:
		return http.StatusBadRequest
	case apperr.PermissionDenied:
		return http.StatusForbidden
	case apperr.ResourceExhausted:
		return http.StatusTooManyRequests
	case apperr.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeOpError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	writeJSONError(w, statusFor(kind), err)
}

type errorBody struct {
	Kind      apperr.Kind `json:"kind"`
	Message   string      `json:"message"`
	Retryable bool        `json:"retryable"`
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	msg := "internal error"
	var ae *apperr.Error
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	writeJSON(w, status, map[string]errorBody{"error": {
		Kind:      apperr.KindOf(err),
		Message:   msg,
		Retryable: apperr.Retryable(err),
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
