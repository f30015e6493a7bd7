package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationInbox(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")
	postID := env.createPost(t, alice, "notice me")

	env.do(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/like", postID), bob.Token, nil)
	env.do(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", postID), bob.Token, map[string]string{"content": "nice"})
	env.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/follow", alice.ID), bob.Token, nil)
	// Acting on your own content records nothing.
	env.do(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/like", postID), alice.Token, nil)

	status, body := env.do(t, http.MethodGet, "/api/notifications", alice.Token, nil)
	require.Equal(t, http.StatusOK, status, body)
	items := body["notifications"].([]any)
	require.Len(t, items, 3)
	assert.Equal(t, float64(3), body["unread"])

	var types []string
	for _, item := range items {
		n := item.(map[string]any)
		types = append(types, n["type"].(string))
		assert.Equal(t, float64(bob.ID), n["actor_id"])
	}
	assert.Equal(t, []string{"follow", "comment", "like"}, types)
	assert.Equal(t, "bob liked your post", items[2].(map[string]any)["message"])

	firstID := items[0].(map[string]any)["id"].(float64)
	status, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", int(firstID)), alice.Token, nil)
	require.Equal(t, http.StatusOK, status)

	// Another user's notification is invisible.
	status, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", int(firstID)), bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = env.do(t, http.MethodPost, "/api/notifications/read-all", alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["updated"])

	status, body = env.do(t, http.MethodGet, "/api/notifications", alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), body["unread"])
}

func TestNotificationInboxDisabled(t *testing.T) {
	env := newTestEnv(t, withFlags(""))
	alice := env.signup(t, "alice")

	status, body := env.do(t, http.MethodGet, "/api/notifications", alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Notification inbox is not enabled", body["error"])
}

func TestFeatureFlagsEndpoint(t *testing.T) {
	env := newTestEnv(t, withFlags("notification_inbox=on,beta_feed=off"))
	alice := env.signup(t, "alice")

	status, body := env.do(t, http.MethodGet, "/api/features", alice.Token, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, map[string]any{"notification_inbox": "on", "beta_feed": "off"}, body["raw"])
	assert.Equal(t, map[string]any{"notification_inbox": true, "beta_feed": false}, body["evaluated"])
}
