package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func corsServer(cfg CORSConfig) *echo.Echo {
	e := echo.New()
	e.Use(CORS(cfg))
	e.POST("/api/runs", func(c echo.Context) error { return c.NoContent(http.StatusAccepted) })
	return e
}

func TestCORSPreflight(t *testing.T) {
	e := corsServer(CORSConfig{
		AllowOrigins: []string{"https://ops.example.com"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderContentType},
		MaxAge:       10 * time.Minute,
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/runs", nil)
	req.Header.Set(echo.HeaderOrigin, "https://ops.example.com")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://ops.example.com", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "GET, POST", rec.Header().Get(echo.HeaderAccessControlAllowMethods))
	assert.Equal(t, "600", rec.Header().Get(echo.HeaderAccessControlMaxAge))
}

func TestCORSSimpleRequestExposesHeaders(t *testing.T) {
	e := corsServer(CORSConfig{AllowOrigins: []string{"*"}, ExposeHeaders: []string{"Retry-After"}})

	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	req.Header.Set(echo.HeaderOrigin, "https://ops.example.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "Retry-After", rec.Header().Get(echo.HeaderAccessControlExposeHeaders))
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods))
}

func TestCORSUnknownOriginPassesThrough(t *testing.T) {
	e := corsServer(CORSConfig{AllowOrigins: []string{"https://ops.example.com"}})

	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	req.Header.Set(echo.HeaderOrigin, "https://elsewhere.example.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, echo.HeaderOrigin, rec.Header().Get(echo.HeaderVary))
}
