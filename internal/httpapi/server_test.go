package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dalefocus/dalefocus/internal/apperr"
	"github.com/dalefocus/dalefocus/internal/atomize"
	"github.com/dalefocus/dalefocus/internal/metrics"
	"github.com/dalefocus/dalefocus/internal/reward"
	"github.com/dalefocus/dalefocus/internal/session"
	"github.com/dalefocus/dalefocus/pkg/models"
)

type fakeAtomizer struct {
	principal string
	req       atomize.Request
	res       *atomize.Result
	err       error
}

func (f *fakeAtomizer) Atomize(_ context.Context, principal string, req atomize.Request) (*atomize.Result, error) {
	f.principal = principal
	f.req = req
	return f.res, f.err
}

type fakeSessions struct {
	req session.Request
	res *session.Result
	err error
}

func (f *fakeSessions) Complete(_ context.Context, _ string, req session.Request) (*session.Result, error) {
	f.req = req
	return f.res, f.err
}

type fakeRewards struct {
	res *reward.Result
	err error
}

func (f *fakeRewards) Generate(context.Context, string, reward.Request) (*reward.Result, error) {
	return f.res, f.err
}

type fakeReports struct {
	days    int
	daysSet bool
	res     *metrics.Report
	err     error
}

func (f *fakeReports) Report(_ context.Context, _ string, days int, daysSet bool) (*metrics.Report, error) {
	f.days = days
	f.daysSet = daysSet
	return f.res, f.err
}

type fixture struct {
	atomizer *fakeAtomizer
	sessions *fakeSessions
	rewards  *fakeRewards
	reports  *fakeReports
	handler  http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		atomizer: &fakeAtomizer{},
		sessions: &fakeSessions{},
		rewards:  &fakeRewards{},
		reports:  &fakeReports{},
	}
	srv := New(Options{Addr: "127.0.0.1:0"}, f.atomizer, f.sessions, f.rewards, f.reports,
		slog.New(slog.DiscardHandler))
	f.handler = srv.Handler
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Authorization", "Bearer user-1")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestBearerIdentity(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"Bearer   spaced  ", "spaced"},
		{"Basic abc123", ""},
		{"", ""},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		assert.Equal(t, tc.want, BearerIdentity{}.Principal(r), "header %q", tc.header)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok": true}`, rec.Body.String())
}

func TestAtomizeEndpoint(t *testing.T) {
	f := newFixture()
	f.atomizer.res = &atomize.Result{
		TaskID: "t1",
		Plan: models.Plan{
			TaskTitle:          "Do taxes",
			Barrier:            models.BarrierOverwhelmed,
			Strategy:           "micro_wins",
			EstimatedPomodoros: 2,
			NextBestActionID:   "s1",
		},
	}

	rec := f.do(t, http.MethodPost, "/v1/atomize",
		`{"taskTitle": "Do taxes", "barrier": "overwhelmed"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", f.atomizer.principal)
	assert.Equal(t, "Do taxes", f.atomizer.req.TaskTitle)

	var res struct {
		TaskID           string `json:"taskId"`
		TaskTitle        string `json:"taskTitle"`
		NextBestActionID string `json:"nextBestActionId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "t1", res.TaskID)
	assert.Equal(t, "Do taxes", res.TaskTitle)
	assert.Equal(t, "s1", res.NextBestActionID)
}

func TestAtomizeEndpointRejectsBadJSON(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPost, "/v1/atomize", `{"taskTitle": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		kind   apperr.Kind
		status int
	}{
		{apperr.Unauthenticated, http.StatusUnauthorized},
		{apperr.InvalidArgument, http.StatusBadRequest},
		{apperr.PermissionDenied, http.StatusForbidden},
		{apperr.FailedPrecondition, http.StatusBadRequest},
		{apperr.ResourceExhausted, http.StatusTooManyRequests},
		{apperr.DeadlineExceeded, http.StatusGatewayTimeout},
		{apperr.Internal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			f := newFixture()
			f.atomizer.err = apperr.New(tc.kind, "boom")

			rec := f.do(t, http.MethodPost, "/v1/atomize",
				`{"taskTitle": "Do taxes", "barrier": "overwhelmed"}`)

			assert.Equal(t, tc.status, rec.Code)
			var body struct {
				Error struct {
					Kind    string `json:"kind"`
					Message string `json:"message"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, string(tc.kind), body.Error.Kind)
			assert.Equal(t, "boom", body.Error.Message)
		})
	}
}

func TestSessionEndpointDistinguishesAbsentFields(t *testing.T) {
	f := newFixture()
	f.sessions.res = &session.Result{SessionID: "sess-1"}

	rec := f.do(t, http.MethodPost, "/v1/sessions/complete",
		`{"taskId": "t1", "durationMinutes": 25, "completed": true}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.sessions.req.TaskIDSet)
	assert.Equal(t, "t1", f.sessions.req.TaskID)
	assert.False(t, f.sessions.req.StepIDSet, "absent stepId must not count as set")
	assert.Equal(t, 25, f.sessions.req.DurationMinutes)
	assert.True(t, f.sessions.req.Completed)
}

func TestRewardEndpoint(t *testing.T) {
	f := newFixture()
	f.rewards.res = &reward.Result{Message: "Nice!", Fallback: true}

	rec := f.do(t, http.MethodPost, "/v1/rewards",
		`{"personality": "coach-pro", "context": "finished a pomodoro"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message": "Nice!", "fallback": true}`, rec.Body.String())
}

func TestMetricsEndpointDaysParam(t *testing.T) {
	f := newFixture()
	f.reports.res = &metrics.Report{Days: 14}

	rec := f.do(t, http.MethodGet, "/v1/metrics?days=14", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.reports.daysSet)
	assert.Equal(t, 14, f.reports.days)

	rec = f.do(t, http.MethodGet, "/v1/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.reports.daysSet)

	rec = f.do(t, http.MethodGet, "/v1/metrics?days=soon", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodGet, "/v1/atomize", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBodyLimit(t *testing.T) {
	f := newFixture()
	huge := `{"taskTitle": "` + strings.Repeat("a", defaultMaxRequestBodyBytes+1) + `", "barrier": "bored"}`
	rec := f.do(t, http.MethodPost, "/v1/atomize", huge)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
