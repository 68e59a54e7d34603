package server

import (
	"errors"
	"net/http"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestHealthChecks(t *testing.T) {
	env := newTestEnv(t, setupTestDB(t), nil)

	resp, body := env.do(t, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "up", body["status"])

	resp, body = env.do(t, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "degraded", body["status"], "no redis means the in-process cache is in use")
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["database"])
	assert.Equal(t, "unavailable", checks["redis"])
}

func TestReadinessCheck_DatabaseDown(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	env := newTestEnv(t, db, nil)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	resp, body := env.do(t, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, setupTestDB(t), nil)

	resp, _ := env.do(t, http.MethodGet, "/health/live", nil, "")
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Trace-Id"))
}

func TestFeed_RemoteFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	env := newTestEnv(t, db, nil)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "listings"`)).WillReturnError(errors.New("connection reset"))

	resp, body := env.do(t, http.MethodGet, "/api/feed", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "TRANSIENT_IO", body["code"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeatureFlags(t *testing.T) {
	cfg := testConfig()
	cfg.FeatureFlags = "require_tags=off,image_preview=on"
	env := newTestEnv(t, setupTestDB(t), cfg)

	resp, body := env.do(t, http.MethodGet, "/api/feature-flags", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	evaluated := body["evaluated"].(map[string]any)
	assert.Equal(t, false, evaluated["require_tags"])
	assert.Equal(t, true, evaluated["image_preview"])
}

func TestTasksView(t *testing.T) {
	env := newTestEnv(t, setupTestDB(t), nil)

	resp, body := env.do(t, http.MethodGet, "/api/tasks?tab=posted", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["tasks"], 2)
	assert.Len(t, body["tabs"], 3)
	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 4, stats["total"])

	resp, body = env.do(t, http.MethodGet, "/api/tasks?tab=mine", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
}

func TestReviewsView(t *testing.T) {
	env := newTestEnv(t, setupTestDB(t), nil)

	resp, body := env.do(t, http.MethodGet, "/api/reviews?filter=5-star", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["reviews"], 3)
	summary := body["summary"].(map[string]any)
	assert.InDelta(t, 4.8, summary["average"], 1e-9)
	assert.Len(t, body["badges"], 4)

	resp, _ = env.do(t, http.MethodGet, "/api/reviews?filter=worst", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
