package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"murmur/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestSignup(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name           string
		body           map[string]string
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "Success",
			body:           map[string]string{"username": "alice", "email": "Alice@Example.com", "password": testPassword},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Duplicate Email",
			body:           map[string]string{"username": "alice2", "email": "alice@example.com", "password": testPassword},
			expectedStatus: http.StatusConflict,
			expectedCode:   "CONFLICT",
		},
		{
			name:           "Duplicate Username",
			body:           map[string]string{"username": "alice", "email": "other@example.com", "password": testPassword},
			expectedStatus: http.StatusConflict,
			expectedCode:   "CONFLICT",
		},
		{
			name:           "Weak Password",
			body:           map[string]string{"username": "bob", "email": "bob@example.com", "password": "password"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name:           "Missing Fields",
			body:           map[string]string{"username": "carol"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, http.MethodPost, "/api/auth/signup", "", tt.body)
			assert.Equal(t, tt.expectedStatus, status, body)
			if tt.expectedCode != "" {
				assertFailure(t, body, tt.expectedCode)
				return
			}
			assert.Equal(t, true, body["success"])
			assert.NotEmpty(t, body["token"])
			user := body["user"].(map[string]any)
			assert.Equal(t, "alice@example.com", user["email"])
			assert.Equal(t, "alice", user["name"])
			assert.NotContains(t, user, "password")
		})
	}
}

func TestLoginAndMe(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")

	status, body := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "Wrong-Horse-9",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", body["error"])

	status, body = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": testPassword,
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", body["error"])

	status, body = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ALICE@example.com", "password": testPassword,
	})
	require.Equal(t, http.StatusOK, status, body)
	token := body["token"].(string)

	status, body = env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	me := body["user"].(map[string]any)
	assert.Equal(t, float64(alice.ID), me["id"])
	assert.Equal(t, []any{}, me["followers"])
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")

	status, _ := env.do(t, http.MethodPost, "/api/auth/logout", alice.Token, nil)
	require.Equal(t, http.StatusOK, status)

	status, body := env.do(t, http.MethodGet, "/api/auth/me", alice.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Token has been revoked", body["error"])
}

func TestGoogleLoginNotConfigured(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/auth/google", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assertFailure(t, body, "NOT_FOUND")
}

func newFakeGoogle(t *testing.T, verified bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"google-access","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer google-access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(auth.GoogleProfile{
			ID:            "g-123",
			Email:         "dana.k@example.com",
			VerifiedEmail: verified,
			Name:          "Dana K",
			Picture:       "https://example.com/dana.png",
		})
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func useFakeGoogle(env *testEnv, ts *httptest.Server) {
	env.srv.google = auth.NewGoogleProvider(auth.GoogleConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8080/api/auth/google/callback",
		UserInfoURL:  ts.URL + "/userinfo",
		Endpoint:     oauth2.Endpoint{AuthURL: ts.URL + "/auth", TokenURL: ts.URL + "/token"},
	})
}

func googleCallback(t *testing.T, env *testEnv, state, cookieState string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?code=abc&state="+url.QueryEscape(state), nil)
	if cookieState != "" {
		req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: cookieState})
	}
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestGoogleLoginFlow(t *testing.T) {
	env := newTestEnv(t)
	useFakeGoogle(env, newFakeGoogle(t, true))

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/auth/google", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(location.Path, "/auth"))
	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	var stateCookie string
	for _, c := range resp.Cookies() {
		if c.Name == oauthStateCookie {
			stateCookie = c.Value
			assert.True(t, c.HttpOnly)
		}
	}
	assert.Equal(t, state, stateCookie)

	t.Run("State mismatch", func(t *testing.T) {
		resp := googleCallback(t, env, state, "forged")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Success", func(t *testing.T) {
		resp := googleCallback(t, env, state, stateCookie)
		require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)

		target := resp.Header.Get("Location")
		prefix := "http://localhost:5173/oauth/callback#token="
		require.True(t, strings.HasPrefix(target, prefix), target)
		token, err := url.QueryUnescape(strings.TrimPrefix(target, prefix))
		require.NoError(t, err)

		status, body := env.do(t, http.MethodGet, "/api/auth/me", token, nil)
		require.Equal(t, http.StatusOK, status)
		user := body["user"].(map[string]any)
		assert.Equal(t, "dana.k@example.com", user["email"])
		assert.Equal(t, "dana_k", user["username"])
		assert.Equal(t, "google", user["provider"])
	})
}

func TestGoogleLoginRejectsUnverifiedEmail(t *testing.T) {
	env := newTestEnv(t)
	useFakeGoogle(env, newFakeGoogle(t, false))

	resp := googleCallback(t, env, "s1", "s1")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
