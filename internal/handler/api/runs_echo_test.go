package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EnergyPull/internal/domain/models"
	"EnergyPull/internal/service/ratelimit"
	"EnergyPull/internal/usecase"
	"EnergyPull/pkg/cache"
)

type fakeRuns struct {
	latest   *models.RunReport
	latestEr error
	startErr error
	started  []usecase.RunOptions
}

func (f *fakeRuns) Start(_ context.Context, opts usecase.RunOptions) (string, <-chan *models.RunReport, error) {
	if f.startErr != nil {
		return "", nil, f.startErr
	}
	f.started = append(f.started, opts)
	done := make(chan *models.RunReport)
	close(done)
	return "run-42", done, nil
}

func (f *fakeRuns) Latest(context.Context) (*models.RunReport, error) {
	return f.latest, f.latestEr
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func serve(t *testing.T, h *RunsEchoHandler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestTriggerRun(t *testing.T) {
	runs := &fakeRuns{}
	rec, env := serve(t, NewRunsEchoHandler(nil, runs), http.MethodPost, "/api/runs", `{"dry_run":true}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, http.StatusAccepted, env.Status)
	var accepted models.RunAccepted
	require.NoError(t, json.Unmarshal(env.Data, &accepted))
	assert.Equal(t, "run-42", accepted.RunID)
	assert.Equal(t, models.RunRunning, accepted.Status)

	require.Len(t, runs.started, 1)
	assert.True(t, runs.started[0].DryRun)
	assert.False(t, runs.started[0].SkipArchive)
	assert.Equal(t, models.TriggerManual, runs.started[0].Trigger)
}

func TestTriggerRunWithoutBody(t *testing.T) {
	runs := &fakeRuns{}
	rec, _ := serve(t, NewRunsEchoHandler(nil, runs), http.MethodPost, "/api/runs", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, runs.started, 1)
	assert.False(t, runs.started[0].DryRun)
}

func TestTriggerRunRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown trigger", `{"trigger":"schedule"}`},
		{"malformed json", `{"dry_run":`},
		{"wrong type", `{"dry_run":"yes"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := &fakeRuns{}
			rec, _ := serve(t, NewRunsEchoHandler(nil, runs), http.MethodPost, "/api/runs", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, runs.started)
		})
	}
}

func TestTriggerRunConflict(t *testing.T) {
	runs := &fakeRuns{startErr: &models.RunInProgressError{Key: "pipeline:run"}}
	rec, env := serve(t, NewRunsEchoHandler(nil, runs), http.MethodPost, "/api/runs", `{}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, string(env.Data), "ERR_CONFLICT")
	assert.Contains(t, string(env.Data), "pipeline:run")
}

func TestTriggerRunLockFailure(t *testing.T) {
	runs := &fakeRuns{startErr: errors.New("redis: connection refused")}
	rec, _ := serve(t, NewRunsEchoHandler(nil, runs), http.MethodPost, "/api/runs", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLatestRun(t *testing.T) {
	runs := &fakeRuns{latest: &models.RunReport{ID: "run-7", Status: models.RunFailed, ErrorCode: models.CodeIncompleteData}}
	rec, env := serve(t, NewRunsEchoHandler(nil, runs), http.MethodGet, "/api/runs/latest", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var report models.RunReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "run-7", report.ID)
	assert.Equal(t, models.CodeIncompleteData, report.ErrorCode)
}

func TestLatestRunNotFound(t *testing.T) {
	runs := &fakeRuns{latestEr: cache.ErrCacheMiss}
	rec, _ := serve(t, NewRunsEchoHandler(nil, runs), http.MethodGet, "/api/runs/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	ok := HealthCheck{Name: "cache", Check: func(context.Context) error { return nil }}
	down := HealthCheck{Name: "clickhouse", Check: func(context.Context) error { return errors.New("dial timeout") }}

	rec, env := serve(t, NewRunsEchoHandler(nil, &fakeRuns{}, ok), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"status":"ok"`)

	rec, env = serve(t, NewRunsEchoHandler(nil, &fakeRuns{}, ok, down), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, string(env.Data), "dial timeout")
	assert.Contains(t, string(env.Data), `"status":"degraded"`)
}

func TestTriggerRunThrottled(t *testing.T) {
	runs := &fakeRuns{}
	h := NewRunsEchoHandler(nil, runs).WithTriggerLimit(ratelimit.New(1, 0.01))
	e := echo.New()
	h.RegisterRoutes(e)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/runs", nil))
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			// one token per 100s
			assert.Equal(t, "100", rec.Header().Get("Retry-After"))
			assert.Contains(t, rec.Body.String(), `"code":"ERR_RATE_LIMITED"`)
			assert.Contains(t, rec.Body.String(), `"retry_after":100`)
		}
	}
	assert.Equal(t, []int{http.StatusAccepted, http.StatusTooManyRequests}, codes)
	assert.Len(t, runs.started, 1)
}

func TestTriggerRunValidationUsesJSONFieldNames(t *testing.T) {
	rec, env := serve(t, NewRunsEchoHandler(nil, &fakeRuns{}), http.MethodPost, "/api/runs", `{"trigger":"schedule"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Data), `"field":"trigger"`)
	assert.Contains(t, string(env.Data), `"code":"ERR_ONEOF"`)
	assert.Contains(t, string(env.Data), "trigger must be one of: manual, cli")
}
