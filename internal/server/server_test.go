// File: internal/server/server_test.go
package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/agent-browser/internal/browser"
	"github.com/xkilldash9x/agent-browser/internal/command"
	"github.com/xkilldash9x/agent-browser/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// httptest keeps idle keep-alive conns briefly after Close.
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Sandbox.Root = t.TempDir()

	manager := browser.NewManager(cfg, zaptest.NewLogger(t))
	manager.SetPageFactory(func(string) (playwright.BrowserContext, playwright.Page, error) {
		return nil, nil, nil
	})
	d := command.NewDispatcher(cfg, manager, zaptest.NewLogger(t))
	s := New(cfg, d, zaptest.NewLogger(t))

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = manager.Shutdown(context.Background())
	})
	return s, ts
}

func postCommand(t *testing.T, ts *httptest.Server, body string) (*http.Response, command.Result) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/v1/command", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var result command.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return resp, result
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCommand_Success(t *testing.T) {
	_, ts := newTestServer(t)

	resp, result := postCommand(t, ts, `{"session": "s1", "command": "wait", "args": {"ms": 5}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, result.Success)
	assert.Equal(t, "s1", result.Session)
	assert.Equal(t, command.Wait, result.Command)
}

func TestCommand_GeneratedSession(t *testing.T) {
	_, ts := newTestServer(t)

	_, result := postCommand(t, ts, `{"command": "wait", "args": {"ms": 1}}`)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.Session)
}

func TestCommand_UnknownCommand(t *testing.T) {
	_, ts := newTestServer(t)

	resp, result := postCommand(t, ts, `{"session": "s1", "command": "explode"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, result.Success)
	assert.Equal(t, command.KindInvalidArgument, result.ErrorKind)
}

func TestCommand_MalformedBody(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/v1/command", "application/json", strings.NewReader(`{"command": `))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp2, err := http.Post(ts.URL+"/api/v1/command", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestCommand_TimeoutStatus(t *testing.T) {
	_, ts := newTestServer(t)

	resp, result := postCommand(t, ts,
		`{"session": "slow", "command": "wait", "args": {"ms": 2000}, "timeout_ms": 30}`)
	assert.Equal(t, http.StatusRequestTimeout, resp.StatusCode)
	assert.Equal(t, command.KindTimeout, result.ErrorKind)
}

func TestListSessions(t *testing.T) {
	_, ts := newTestServer(t)

	postCommand(t, ts, `{"session": "alpha", "command": "wait", "args": {"ms": 1}}`)
	postCommand(t, ts, `{"session": "beta", "command": "wait", "args": {"ms": 1}}`)

	resp, err := http.Get(ts.URL + "/api/v1/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Count    int            `json:"count"`
		Sessions []browser.Info `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body.Count)
}

func TestCloseSession(t *testing.T) {
	_, ts := newTestServer(t)

	postCommand(t, ts, `{"session": "doomed", "command": "wait", "args": {"ms": 1}}`)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/sessions/doomed", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Closing a session that never existed maps to 404.
	req, err = http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/sessions/doomed", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusForResult(t *testing.T) {
	cases := []struct {
		kind command.ErrorKind
		want int
	}{
		{command.KindInvalidArgument, http.StatusBadRequest},
		{command.KindNotFound, http.StatusNotFound},
		{command.KindTimeout, http.StatusRequestTimeout},
		{command.KindPathEscape, http.StatusForbidden},
		{command.KindPrivateTargetBlocked, http.StatusForbidden},
		{command.KindStrictViolation, http.StatusConflict},
		{command.KindEngineError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			assert.Equal(t, tc.want, statusForResult(command.Result{ErrorKind: tc.kind}))
		})
	}
	assert.Equal(t, http.StatusOK, statusForResult(command.Result{Success: true}))
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/v1/commands"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocket_CommandRoundTrip(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialWS(t, ts)

	env := command.Envelope{Session: "ws1", Name: command.Wait, Args: []byte(`{"ms": 5}`)}
	require.NoError(t, conn.WriteJSON(env))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var result command.Result
	require.NoError(t, conn.ReadJSON(&result))
	assert.True(t, result.Success, result.Message)
	assert.Equal(t, "ws1", result.Session)
}

func TestWebSocket_MultipleCommands(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialWS(t, ts)

	// Distinct sessions so the commands may run concurrently; every one
	// must still get a result.
	const n = 4
	for i := 0; i < n; i++ {
		env := command.Envelope{
			Session: fmt.Sprintf("ws-%d", i),
			Name:    command.Wait,
			Args:    []byte(`{"ms": 5}`),
		}
		require.NoError(t, conn.WriteJSON(env))
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		var result command.Result
		require.NoError(t, conn.ReadJSON(&result))
		assert.True(t, result.Success, result.Message)
		seen[result.Session] = true
	}
	assert.Len(t, seen, n)
}

func TestWebSocket_RawJSONArgs(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialWS(t, ts)

	// A non-Go client sends envelopes as plain text frames with an inline
	// args object.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"session":"raw1","command":"wait","args":{"ms":1}}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var result command.Result
	require.NoError(t, conn.ReadJSON(&result))
	assert.True(t, result.Success, result.Message)
	assert.Equal(t, "raw1", result.Session)
}

func TestWebSocket_MalformedEnvelope(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialWS(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"command": `)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var result command.Result
	require.NoError(t, conn.ReadJSON(&result))
	assert.False(t, result.Success)
	assert.Equal(t, command.KindInvalidArgument, result.ErrorKind)

	// The connection survives and keeps serving commands.
	env := command.Envelope{Session: "after-bad", Name: command.Wait, Args: []byte(`{"ms": 1}`)}
	require.NoError(t, conn.WriteJSON(env))
	require.NoError(t, conn.ReadJSON(&result))
	assert.True(t, result.Success, result.Message)
}

func TestWebSocket_SameSessionOrder(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialWS(t, ts)

	// A slow command followed by fast ones on one session; results must
	// come back in submission order.
	waits := []string{`{"ms": 120}`, `{"ms": 1}`, `{"ms": 1}`}
	for _, args := range waits {
		env := command.Envelope{Session: "ordered", Name: command.Wait, Args: []byte(args)}
		require.NoError(t, conn.WriteJSON(env))
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var durations []int64
	for range waits {
		var result command.Result
		require.NoError(t, conn.ReadJSON(&result))
		require.True(t, result.Success, result.Message)
		durations = append(durations, result.DurationMs)
	}
	require.Len(t, durations, 3)
	assert.GreaterOrEqual(t, durations[0], int64(100), "the slow command must answer first")
	assert.Less(t, durations[1], int64(100))
	assert.Less(t, durations[2], int64(100))
}

func TestWebSocket_BadCommand(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialWS(t, ts)

	require.NoError(t, conn.WriteJSON(command.Envelope{Session: "x", Name: "noop_bogus"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var result command.Result
	require.NoError(t, conn.ReadJSON(&result))
	assert.False(t, result.Success)
	assert.Equal(t, command.KindInvalidArgument, result.ErrorKind)
}
