package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type consoleEnv struct {
	*testEnv
	ws  *WebServer
	srv *httptest.Server
}

func newConsoleEnv(t *testing.T) *consoleEnv {
	t.Helper()
	env := newTestEnv(t, nil)
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	cfg := WebConfigFrom(env.conf)
	cfg.Cleartext = true
	cfg.RateLimit = 0
	cfg.PassHash = hash
	cfg.JWTSecret = "console-test"

	ws := NewWebServer(env.game, cfg, NewMetrics(env.game, time.Now()))
	srv := httptest.NewServer(ws.Handler())
	t.Cleanup(srv.Close)
	return &consoleEnv{testEnv: env, ws: ws, srv: srv}
}

func (c *consoleEnv) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func (c *consoleEnv) login(t *testing.T) string {
	t.Helper()
	var resp map[string]string
	code := c.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"user": "admin", "password": "hunter2"}, &resp)
	if code != http.StatusOK || resp["token"] == "" {
		t.Fatalf("login = %d %v", code, resp)
	}
	return resp["token"]
}

func TestConsoleHealth(t *testing.T) {
	c := newConsoleEnv(t)
	var health map[string]any
	if code := c.do(t, http.MethodGet, "/health", "", nil, &health); code != http.StatusOK {
		t.Fatalf("health = %d", code)
	}
	if health["status"] != "ok" || health["version"] != Version {
		t.Errorf("health = %v", health)
	}

	resp, err := c.srv.Client().Get(c.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics = %d", resp.StatusCode)
	}
}

func TestConsoleAuth(t *testing.T) {
	c := newConsoleEnv(t)

	if code := c.do(t, http.MethodGet, "/api/v1/entities", "", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("entities without a token = %d, want 401", code)
	}
	if code := c.do(t, http.MethodGet, "/api/v1/entities", "bogus", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("entities with a bad token = %d, want 401", code)
	}
	if code := c.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"user": "admin", "password": "nope"}, nil); code != http.StatusUnauthorized {
		t.Errorf("bad login = %d, want 401", code)
	}

	token := c.login(t)
	var refreshed map[string]string
	if code := c.do(t, http.MethodPost, "/api/v1/auth/refresh", token, nil, &refreshed); code != http.StatusOK || refreshed["token"] == "" {
		t.Errorf("refresh = %d %v", code, refreshed)
	}
}

func TestConsoleDispatch(t *testing.T) {
	c := newConsoleEnv(t)
	token := c.login(t)

	var res map[string]string
	code := c.do(t, http.MethodPost, "/api/v1/dispatch", token, map[string]string{"entity": "goblin_0001", "event": "hit"}, &res)
	if code != http.StatusOK || res["result"] != "accept" {
		t.Fatalf("dispatch = %d %v", code, res)
	}
	if code := c.do(t, http.MethodPost, "/api/v1/dispatch", token, map[string]string{"entity": "nobody", "event": "hit"}, nil); code != http.StatusNotFound {
		t.Errorf("dispatch to a missing entity = %d, want 404", code)
	}
	if code := c.do(t, http.MethodPost, "/api/v1/dispatch", token, map[string]string{"entity": "goblin_0001"}, nil); code != http.StatusBadRequest {
		t.Errorf("dispatch without an event = %d, want 400", code)
	}

	var globals []VarInfo
	c.do(t, http.MethodGet, "/api/v1/globals", token, nil, &globals)
	if len(globals) != 1 || globals[0].Name != "#hits" {
		t.Errorf("globals = %+v", globals)
	}

	var ents []EntityInfo
	c.do(t, http.MethodGet, "/api/v1/entities?detail=1", token, nil, &ents)
	if len(ents) != 4 {
		t.Fatalf("entities = %d, want 4", len(ents))
	}
	if ents[1].Name != "goblin_0001" || len(ents[1].Timers) != 1 {
		t.Errorf("goblin entry = %+v", ents[1])
	}

	var stats map[string]any
	if code := c.do(t, http.MethodGet, "/api/v1/stats", token, nil, &stats); code != http.StatusOK || stats["game"] == nil {
		t.Errorf("stats = %d %v", code, stats)
	}
}

func TestConsoleReloadAndSave(t *testing.T) {
	c := newConsoleEnv(t)
	token := c.login(t)

	var res map[string]int
	if code := c.do(t, http.MethodPost, "/api/v1/reload", token, map[string]string{"script": "goblin"}, &res); code != http.StatusOK || res["reloaded"] != 2 {
		t.Errorf("reload = %d %v", code, res)
	}
	if code := c.do(t, http.MethodPost, "/api/v1/reload", token, map[string]string{"script": "missing"}, nil); code != http.StatusUnprocessableEntity {
		t.Errorf("reload of a missing script = %d, want 422", code)
	}
	if code := c.do(t, http.MethodPost, "/api/v1/save", token, nil, nil); code != http.StatusInternalServerError {
		t.Errorf("save without a store = %d, want 500", code)
	}
	if code := c.do(t, http.MethodGet, "/api/v1/journal", token, nil, nil); code != http.StatusNotFound {
		t.Errorf("journal when disabled = %d, want 404", code)
	}
}

func TestConsoleFeed(t *testing.T) {
	c := newConsoleEnv(t)
	token := c.login(t)

	url := "ws" + strings.TrimPrefix(c.srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if msg.Type != "welcome" || msg.Text != VersionString() {
		t.Errorf("first message = %+v, want welcome", msg)
	}

	if err := conn.WriteJSON(WSMessage{Type: "dispatch", Text: "goblin_0001", Event: "hit"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	seen := map[string]bool{}
	for !seen["result"] {
		var m WSMessage
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("read: %v (seen %v)", err, seen)
		}
		seen[m.Type] = true
		if m.Type == "result" && m.Result != "accept" {
			t.Errorf("result = %+v", m)
		}
	}
	for _, typ := range []string{"delivered", "timer_armed", "pass_end"} {
		if !seen[typ] {
			t.Errorf("feed did not carry %s", typ)
		}
	}

	conn.WriteJSON(WSMessage{Type: "watch", Text: "nobody"})
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "error" {
		t.Errorf("watch of a missing entity = %+v, %v", msg, err)
	}
	conn.WriteJSON(WSMessage{Type: "watch", Text: "goblin_0002"})
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "watching" {
		t.Errorf("watch = %+v, %v", msg, err)
	}
}

func TestConsoleFeedRequiresToken(t *testing.T) {
	c := newConsoleEnv(t)
	url := "ws" + strings.TrimPrefix(c.srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("feed opened without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v, want 401", resp)
	}
}
