package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"gtotrainer/internal/game"
	"gtotrainer/internal/session"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := log.New(io.Discard)
	manager := session.NewManager(session.ManagerConfig{
		Logger: logger,
		Stakes: game.DefaultStakes(),
	})
	srv := New(DefaultConfig(), logger, manager)

	ctx, cancel := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		srv.hub.Run(ctx)
		close(hubDone)
	}()
	t.Cleanup(func() {
		cancel()
		<-hubDone
	})

	ts := httptest.NewServer(srv.http.Handler)
	t.Cleanup(ts.Close)
	return ts
}

// call sends a JSON request and decodes the JSON response into a map.
func call(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func createSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	status, body := call(t, http.MethodPost, ts.URL+"/api/sessions", map[string]any{})
	require.Equal(t, http.StatusCreated, status)
	id, _ := body["session_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestHealth(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	status, body := call(t, http.MethodGet, ts.URL+"/health", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["status"])
}

func TestSessionHandFlow(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	id := createSession(t, ts)
	base := ts.URL + "/api/sessions/" + id

	status, st := call(t, http.MethodPost, base+"/hands",
		map[string]any{"hero_seat": "UTG", "villain_seat": "BB"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "preflop", st["street"])
	require.Equal(t, "UTG", st["action_on"])
	require.Equal(t, "UTG", st["human_position"])
	handID, _ := st["hand_id"].(string)
	require.NotEmpty(t, handID)

	status, st = call(t, http.MethodGet, base+"/state", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, handID, st["hand_id"])

	// Hero under the gun calls the blind; action passes to MP.
	status, st = call(t, http.MethodPost, base+"/actions", map[string]any{"action": "call"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "MP", st["action_on"])

	// Not the human's turn anymore.
	status, body := call(t, http.MethodPost, base+"/actions", map[string]any{"action": "call"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body["error"], "out of turn")

	// The computer seat acts instead.
	status, body = call(t, http.MethodPost, base+"/opponent-action", nil)
	require.Equal(t, http.StatusOK, status)
	taken, ok := body["action_taken"].(map[string]any)
	require.True(t, ok, "a computer seat had action")
	require.Equal(t, "MP", taken["seat"])
	require.Equal(t, "fold", taken["action"])

	status, body = call(t, http.MethodDelete, base+"/", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "closed", body["status"])

	status, _ = call(t, http.MethodGet, base+"/state", nil)
	require.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, http.MethodDelete, base+"/", nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestNewHandValidation(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	id := createSession(t, ts)
	base := ts.URL + "/api/sessions/" + id

	status, body := call(t, http.MethodPost, base+"/hands",
		map[string]any{"hero_seat": "BB", "villain_seat": "BB"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body["error"], "share seat")

	status, body = call(t, http.MethodPost, base+"/hands",
		map[string]any{"hero_seat": "XX", "villain_seat": "BB"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body["error"], "hero_seat")

	status, body = call(t, http.MethodGet, base+"/state", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Contains(t, body["error"], "no hand in play")
}

func TestActionValidationDoesNotMutate(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	id := createSession(t, ts)
	base := ts.URL + "/api/sessions/" + id

	status, _ := call(t, http.MethodPost, base+"/hands",
		map[string]any{"hero_seat": "UTG", "villain_seat": "BB"})
	require.Equal(t, http.StatusOK, status)

	status, body := call(t, http.MethodPost, base+"/actions", map[string]any{"action": "check"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body["error"], "not available")

	status, st := call(t, http.MethodGet, base+"/state", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "UTG", st["action_on"], "rejected action left the turn alone")

	status, body = call(t, http.MethodPost, base+"/actions", map[string]any{"action": "bogus"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body["error"], "unknown action")
}

func TestUnknownSession(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	base := ts.URL + "/api/sessions/ghost"

	status, body := call(t, http.MethodGet, base+"/state", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Contains(t, body["error"], "session not found")

	status, _ = call(t, http.MethodPost, base+"/actions", map[string]any{"action": "fold"})
	require.Equal(t, http.StatusNotFound, status)
}

func TestWatchStreamsStateUpdates(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	id := createSession(t, ts)
	base := ts.URL + "/api/sessions/" + id

	status, st := call(t, http.MethodPost, base+"/hands",
		map[string]any{"hero_seat": "BB", "villain_seat": "BTN"})
	require.Equal(t, http.StatusOK, status)
	handID := st["hand_id"]

	wsURL := "ws" + strings.TrimPrefix(base, "http") + "/watch"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	// Joining pushes the current table immediately.
	first := readState(t, conn)
	require.Equal(t, handID, first["hand_id"])

	status, body := call(t, http.MethodPost, base+"/opponent-action", nil)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, body["action_taken"])

	second := readState(t, conn)
	require.Equal(t, handID, second["hand_id"])
	require.NotEqual(t, first["action_on"], second["action_on"])
}

func readState(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var st map[string]any
	require.NoError(t, json.Unmarshal(payload, &st))
	return st
}

func TestHubShutdownUnblocksSenders(t *testing.T) {
	t.Parallel()

	hub := NewHub(log.New(io.Discard))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	finished := make(chan struct{})
	go func() {
		for i := range 100 {
			hub.Broadcast("s", map[string]int{"i": i})
		}
		hub.CloseSession("s")
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("hub senders blocked after shutdown")
	}
}

func TestConfigOverlay(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := dir + "/server.hcl"
	content := `
server {
  listen    = ":9090"
  log_level = "debug"
}

game {
  small_blind = 25
  big_blind   = 50
}

solver {
  executable   = "/opt/solver/bin/solver"
  tree_dir     = "/opt/solver/trees"
  default_tree = "QsJh2h.bin"
  read_timeout = "30s"
}

archive {
  enabled        = true
  path           = "/var/lib/gtotrainer/hands.db"
  flush_interval = "2s"
}
`
	require.NoError(t, writeFile(path, content))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.Listen)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 25, cfg.Game.SmallBlind)
	require.Equal(t, 50, cfg.Game.BigBlind)
	require.Equal(t, 1000, cfg.Game.StartingStack, "unset values keep defaults")
	require.Equal(t, "/opt/solver/bin/solver", cfg.Solver.Executable)
	require.Equal(t, 30*time.Second, cfg.Solver.ReadTimeout)
	require.True(t, cfg.Archive.Enabled)
	require.Equal(t, 2*time.Second, cfg.Archive.FlushInterval)
}

func TestConfigMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(t.TempDir() + "/absent.hcl")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestConfigRejectsBadValues(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	bad := dir + "/bad-duration.hcl"
	require.NoError(t, writeFile(bad, "solver {\n  read_timeout = \"soon\"\n}\n"))
	_, err := LoadConfig(bad)
	require.Error(t, err)

	negative := dir + "/bad-blinds.hcl"
	require.NoError(t, writeFile(negative, "game {\n  small_blind = -5\n}\n"))
	_, err = LoadConfig(negative)
	require.Error(t, err)

	archive := dir + "/bad-archive.hcl"
	require.NoError(t, writeFile(archive, "archive {\n  enabled        = true\n  flush_interval = \"0s\"\n}\n"))
	_, err = LoadConfig(archive)
	require.Error(t, err)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
