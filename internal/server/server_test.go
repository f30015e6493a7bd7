package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"murmur/internal/config"
	"murmur/internal/database"
	"murmur/internal/events"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPassword = "Correct-Horse-9"

type testEnv struct {
	srv *Server
	app *fiber.App
	mr  *miniredis.Miniredis
	rdb *redis.Client
}

type envOption func(*config.Config)

func withFlags(flags string) envOption {
	return func(c *config.Config) { c.FeatureFlags = flags }
}

func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		Env:            "test",
		JWTSecret:      "test-secret-that-is-long-enough-for-hs256",
		JWTIssuer:      "murmur-api",
		JWTAudience:    "murmur-app",
		JWTTTLHours:    1,
		AllowedOrigins: "http://localhost:5173",
		FrontendURL:    "http://localhost:5173",
		FeatureFlags:   "notification_inbox=on",
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func newTestEnvWithPublisher(t *testing.T, publisher events.Publisher, opts ...envOption) *testEnv {
	t.Helper()
	cfg := testConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	srv, err := NewServerWithDeps(cfg, openTestDB(t), rdb, publisher)
	require.NoError(t, err)
	srv.authService.WithBcryptCost(bcrypt.MinCost)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, srv.hub.StartWiring(ctx))

	return &testEnv{srv: srv, app: srv.App(), mr: mr, rdb: rdb}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	return newTestEnvWithPublisher(t, nil, opts...)
}

// do sends a request and decodes the JSON response body.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
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
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

type testUser struct {
	ID    uint
	Token string
}

func (e *testEnv) signup(t *testing.T, username string) testUser {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": testPassword,
	})
	require.Equal(t, http.StatusCreated, status, body)
	user := body["user"].(map[string]any)
	return testUser{ID: uint(user["id"].(float64)), Token: body["token"].(string)}
}

func (e *testEnv) createPost(t *testing.T, author testUser, content string) uint {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/posts", author.Token, map[string]any{"content": content})
	require.Equal(t, http.StatusCreated, status, body)
	return uint(body["post"].(map[string]any)["id"].(float64))
}

func assertFailure(t *testing.T, body map[string]any, code string) {
	t.Helper()
	assert.Equal(t, false, body["success"])
	assert.Equal(t, code, body["code"])
	assert.NotEmpty(t, body["error"])
}

func TestHealthChecks(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "up", body["status"])

	status, body = env.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"database": "healthy", "redis": "healthy"}, body["checks"])

	env.mr.Close()
	status, body = env.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")

	status, body := env.do(t, http.MethodGet, "/api/posts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assertFailure(t, body, "UNAUTHORIZED")

	status, body = env.do(t, http.MethodGet, "/api/posts", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assertFailure(t, body, "UNAUTHORIZED")

	// Query tokens are only honoured on the websocket route.
	status, _ = env.do(t, http.MethodGet, "/api/posts?token="+alice.Token, "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = env.do(t, http.MethodGet, "/api/posts", alice.Token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
}

func TestInvalidIDAndBody(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")

	status, body := env.do(t, http.MethodGet, "/api/posts/abc", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid ID", body["error"])

	status, body = env.do(t, http.MethodGet, "/api/messages/0", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid user ID", body["error"])

	req := httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+alice.Token)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assertFailure(t, body, "NOT_FOUND")

	// Unknown API paths are not hidden behind authentication.
	status, body = env.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assertFailure(t, body, "NOT_FOUND")

	status, body = env.do(t, http.MethodGet, "/api/users/1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assertFailure(t, body, "UNAUTHORIZED")
}

func TestHumanizeParam(t *testing.T) {
	assert.Equal(t, "ID", humanizeParam("id"))
	assert.Equal(t, "user ID", humanizeParam("userId"))
	assert.Equal(t, "post comment ID", humanizeParam("postCommentId"))
	assert.Equal(t, "slug", humanizeParam("slug"))
}

func TestNewServerWithDepsRequiresDependencies(t *testing.T) {
	_, err := NewServerWithDeps(nil, nil, nil, nil)
	assert.Error(t, err)
	_, err = NewServerWithDeps(testConfig(), nil, nil, nil)
	assert.Error(t, err)
}
