package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"marketplace/internal/config"
	"marketplace/internal/database"
	"marketplace/internal/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret-key-12345678901234567890"

func testConfig() *config.Config {
	return &config.Config{
		Env:                  "test",
		Port:                 "0",
		JWTSecret:            testSecret,
		DBDriver:             "sqlite",
		FeatureFlags:         "require_tags=on",
		LocalCacheKey:        "userPosts",
		FeedRemoteLimit:      100,
		ImageMaxUploadSizeMB: 1,
		SaveAckSeconds:       3,
		OTPTTLMinutes:        10,
		SessionTTLHours:      1,
	}
}

// codeInbox captures sign-in codes instead of mailing them.
type codeInbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (b *codeInbox) SendCode(_ context.Context, email, code string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.codes[email] = code
	return nil
}

func (b *codeInbox) last(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.codes[email]
}

type testEnv struct {
	server *Server
	app    *fiber.App
	inbox  *codeInbox
}

// setupTestDB opens a private in-memory SQLite database with the schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

// setupMockDB creates a GORM *gorm.DB backed by sqlmock for unit tests.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	return gormDB, mock
}

func newTestEnv(t *testing.T, db *gorm.DB, cfg *config.Config) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	s, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)

	inbox := &codeInbox{codes: make(map[string]string)}
	s.auth = service.NewAuthService(s.store, s.userRepo, inbox, cfg)

	return &testEnv{server: s, app: s.App(), inbox: inbox}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(t, req, token)
}

func (e *testEnv) send(t *testing.T, req *http.Request, token string) (*http.Response, map[string]any) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, 10000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp, out
}

// signIn runs the one-time code flow and returns a session token.
func (e *testEnv) signIn(t *testing.T, email string) string {
	t.Helper()
	resp, _ := e.do(t, http.MethodPost, "/api/auth/otp", map[string]string{"email": email}, "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, body := e.do(t, http.MethodPost, "/api/auth/verify",
		map[string]string{"email": email, "code": e.inbox.last(email)}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func fields(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	f, ok := body["fields"].(map[string]any)
	require.True(t, ok, "response has no field errors: %v", body)
	return f
}
