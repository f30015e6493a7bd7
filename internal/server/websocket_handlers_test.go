package server

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// listen serves the app on a loopback port and returns its address.
func (e *testEnv) listen(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = e.app.Listener(ln) }()
	t.Cleanup(func() { _ = e.app.ShutdownWithTimeout(time.Second) })
	return ln.Addr().String()
}

func (e *testEnv) issueTicket(t *testing.T, user testUser) string {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/ws/ticket", user.Token, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(30), body["expires_in"])
	return body["ticket"].(string)
}

func dialWS(t *testing.T, addr, query string) *websocket.Conn {
	t.Helper()
	u := url.URL{Scheme: "ws", Host: addr, Path: "/api/ws", RawQuery: query}
	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f wsFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

// readUntil returns the first frame of the given type and the types of the
// frames skipped on the way.
func readUntil(t *testing.T, conn *websocket.Conn, event string) (wsFrame, []string) {
	t.Helper()
	var skipped []string
	for {
		f := readFrame(t, conn)
		if f.Type == event {
			return f, skipped
		}
		skipped = append(skipped, f.Type)
	}
}

func TestWebSocketTicketIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")
	ticket := env.issueTicket(t, alice)

	// A plain GET passes authentication, consuming the ticket, then fails the upgrade check.
	status, _ := env.do(t, http.MethodGet, "/api/ws?ticket="+ticket, "", nil)
	assert.Equal(t, http.StatusUpgradeRequired, status)

	status, body := env.do(t, http.MethodGet, "/api/ws?ticket="+ticket, "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid or expired WebSocket ticket", body["error"])

	status, _ = env.do(t, http.MethodGet, "/api/ws?token="+alice.Token, "", nil)
	assert.Equal(t, http.StatusUpgradeRequired, status)
}

func TestQueryCredentialsOnlyOnUpgradeRoute(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")
	ticket := env.issueTicket(t, alice)

	status, body := env.do(t, http.MethodPost, "/api/ws/ticket?token="+alice.Token, "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assertFailure(t, body, "UNAUTHORIZED")

	status, _ = env.do(t, http.MethodPost, "/api/ws/ticket?ticket="+ticket, "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// The rejected request above did not consume the ticket.
	status, _ = env.do(t, http.MethodGet, "/api/ws?ticket="+ticket, "", nil)
	assert.Equal(t, http.StatusUpgradeRequired, status)
}

func TestRealtimeEvents(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")
	addr := env.listen(t)

	owner := dialWS(t, addr, "ticket="+env.issueTicket(t, alice))
	online := readFrame(t, owner)
	require.Equal(t, "getOnlineUsers", online.Type)
	assert.JSONEq(t, fmt.Sprintf("[%d]", alice.ID), string(online.Payload))

	liker := dialWS(t, addr, url.Values{"token": {bob.Token}}.Encode())
	online, _ = readUntil(t, owner, "getOnlineUsers")
	assert.JSONEq(t, fmt.Sprintf("[%d,%d]", alice.ID, bob.ID), string(online.Payload))

	t.Run("newPost reaches every connection", func(t *testing.T) {
		postID := env.createPost(t, bob, "fresh post")
		for _, conn := range []*websocket.Conn{owner, liker} {
			f, _ := readUntil(t, conn, "newPost")
			var post map[string]any
			require.NoError(t, json.Unmarshal(f.Payload, &post))
			assert.Equal(t, float64(postID), post["id"])
			assert.Equal(t, "fresh post", post["content"])
		}
	})

	postID := env.createPost(t, alice, "like target")
	readUntil(t, owner, "newPost")
	readUntil(t, liker, "newPost")

	t.Run("like by another user notifies the owner once", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/like", postID), bob.Token, nil)
		require.Equal(t, http.StatusOK, status)

		f, _ := readUntil(t, owner, "notification")
		var n map[string]any
		require.NoError(t, json.Unmarshal(f.Payload, &n))
		assert.Equal(t, "like", n["type"])
		assert.Equal(t, float64(bob.ID), n["userId"])
		assert.Equal(t, float64(postID), n["postId"])
		assert.Equal(t, "bob", n["user"].(map[string]any)["username"])
		assert.Equal(t, "bob liked your post", n["message"])
	})

	t.Run("own like and direct message", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/like", postID), alice.Token, nil)
		require.Equal(t, http.StatusOK, status)

		status, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/messages/%d", alice.ID), bob.Token,
			map[string]string{"content": "saw your post"})
		require.Equal(t, http.StatusCreated, status)

		f, skipped := readUntil(t, owner, "newMessage")
		assert.NotContains(t, skipped, "notification")
		var msg map[string]any
		require.NoError(t, json.Unmarshal(f.Payload, &msg))
		assert.Equal(t, "saw your post", msg["content"])
		assert.Equal(t, float64(bob.ID), msg["sender_id"])
	})

	t.Run("disconnect updates the online list", func(t *testing.T) {
		require.NoError(t, liker.Close())
		online, _ := readUntil(t, owner, "getOnlineUsers")
		assert.JSONEq(t, fmt.Sprintf("[%d]", alice.ID), string(online.Payload))
	})
}
