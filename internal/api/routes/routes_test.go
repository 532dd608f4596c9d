package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"channel-scout/internal/background"
	"channel-scout/internal/config"
	"channel-scout/internal/discovery"
	"channel-scout/internal/logging"
	"channel-scout/internal/metrics"
	"channel-scout/internal/scraper/workers"
	"channel-scout/pkg/models"
)

type stubSearch struct{}

func (stubSearch) NewRequest(sr *models.SearchRequest) discovery.Request {
	return discovery.Request{Query: sr.Query}
}

func (stubSearch) Run(ctx context.Context, req discovery.Request) (*models.RunResult, error) {
	return &models.RunResult{RunID: "run-1", Query: req.Query}, nil
}

func newServer(t *testing.T) (*echo.Echo, *metrics.Metrics) {
	t.Helper()
	cfg := config.Defaults()
	pool := workers.NewSessionPool(2, time.Second)
	m := metrics.New(func() float64 { return float64(pool.Active()) })
	tm := background.NewTaskManager(cfg, nil, stubSearch{}, logging.NewNopLogger())

	e := echo.New()
	SetupRoutes(e, Dependencies{
		Config:  cfg,
		Search:  stubSearch{},
		Tasks:   tm,
		Metrics: m,
		Pool:    pool,
		Logger:  logging.NewNopLogger(),
	})
	return e, m
}

func serve(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRoutesServeSearchWithRequestID(t *testing.T) {
	e, _ := newServer(t)

	rec := serve(e, http.MethodPost, "/api/v1/search", `{"query":"home espresso"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	requestID := rec.Header().Get(echo.HeaderXRequestID)
	require.NotEmpty(t, requestID)
	assert.Contains(t, rec.Body.String(), `"request_id":"`+requestID+`"`)
}

func TestRoutesHealthAndRoot(t *testing.T) {
	e, _ := newServer(t)

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/health/live", "").Code)

	rec := serve(e, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "channel-scout")

	// task manager never started
	rec = serve(e, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRoutesRunsWithoutPersistence(t *testing.T) {
	e, _ := newServer(t)
	assert.Equal(t, http.StatusServiceUnavailable, serve(e, http.MethodGet, "/api/v1/runs/abc", "").Code)
}

func TestRoutesExposeMetrics(t *testing.T) {
	e, _ := newServer(t)
	serve(e, http.MethodGet, "/health", "")

	rec := serve(e, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "channel_scout_browser_sessions_active")
	assert.Contains(t, rec.Body.String(), `route="/health"`)
}

func TestRoutesRejectOversizedBody(t *testing.T) {
	e, _ := newServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader("{}"))
	req.ContentLength = 2 * 1024 * 1024
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
