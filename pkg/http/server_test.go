package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routes map[string]echo.HandlerFunc

func (r routes) RegisterRoutes(e *echo.Echo) {
	for path, h := range r {
		e.GET(path, h)
	}
}

func do(s *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServerMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewServer(routes{
		"/ping": func(c echo.Context) error { return SuccessResponse(c, "pong") },
	}, nil, WithMetrics(reg, "/metrics", time.Second))

	rec := do(s, "/ping")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":200,"message":"OK","data":"pong"}`, rec.Body.String())

	rec = do(s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `energypull_http_requests_total{method="GET",route="/ping",status="200"} 1`)
}

func TestServerRecoversFromPanics(t *testing.T) {
	s := NewServer(routes{
		"/boom": func(echo.Context) error { panic("boom") },
	}, nil)

	rec := do(s, "/boom")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal Server Error")
}

func TestAppErrorResponseStatus(t *testing.T) {
	s := NewServer(routes{
		"/busy": func(c echo.Context) error { return AppErrorResponse(c, ConflictError("busy")) },
		"/oops": func(c echo.Context) error { return AppErrorResponse(c, assert.AnError) },
	}, nil)

	rec := do(s, "/busy")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"ERR_CONFLICT"`)

	rec = do(s, "/oops")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, RetryAfterSeconds(0))
	assert.Equal(t, 1, RetryAfterSeconds(300*time.Millisecond))
	assert.Equal(t, 2, RetryAfterSeconds(1500*time.Millisecond))
	assert.Equal(t, 600, RetryAfterSeconds(10*time.Minute))

	err := RateLimitedError("slow down", 90*time.Second)
	assert.Equal(t, http.StatusTooManyRequests, err.Status)
	assert.Equal(t, 90, err.Params["retry_after"])
}
