package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crystal-mush/arxscript/pkg/events"
	"github.com/crystal-mush/arxscript/pkg/gamedb"
)

// WebConfig holds configuration for the debug console.
type WebConfig struct {
	Port        int
	Host        string
	Cleartext   bool
	TLS         TLSOptions
	CORSOrigins []string
	RateLimit   int
	User        string
	PassHash    string
	JWTSecret   string
	JWTExpiry   int
}

// WebConfigFrom builds the console settings from the game config.
func WebConfigFrom(gc *GameConf) WebConfig {
	return WebConfig{
		Port:      gc.WebPort,
		Host:      gc.WebHost,
		Cleartext: gc.Cleartext,
		TLS: TLSOptions{
			Domain:   gc.WebDomain,
			CertFile: gc.TLSCert,
			KeyFile:  gc.TLSKey,
			CertDir:  gc.CertDir,
			Host:     gc.WebHost,
		},
		CORSOrigins: gc.WebCORSOrigins,
		RateLimit:   gc.WebRateLimit,
		User:        gc.ConsoleUser,
		PassHash:    gc.ConsolePasswordHash,
		JWTSecret:   gc.JWTSecret,
		JWTExpiry:   gc.JWTExpiry,
	}
}

// WebServer is the debug console: a live websocket feed of script activity
// plus a small authenticated REST API to inspect and poke the simulation.
type WebServer struct {
	game      *Game
	cfg       WebConfig
	httpSrv   *http.Server
	mux       *http.ServeMux
	auth      *AuthService
	rl        *rateLimiter
	upgrader  websocket.Upgrader
	metrics   *Metrics
	startTime time.Time
	stop      chan struct{}
}

// NewWebServer creates a console bound to the game. metrics may be nil.
func NewWebServer(game *Game, cfg WebConfig, metrics *Metrics) *WebServer {
	ws := &WebServer{
		game:      game,
		cfg:       cfg,
		mux:       http.NewServeMux(),
		auth:      NewAuthService(cfg.User, cfg.PassHash, cfg.JWTSecret, cfg.JWTExpiry),
		rl:        newRateLimiter(cfg.RateLimit),
		metrics:   metrics,
		startTime: time.Now(),
		stop:      make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(cfg.CORSOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, o := range cfg.CORSOrigins {
					if strings.EqualFold(o, origin) {
						return true
					}
				}
				return false
			},
		},
	}
	ws.registerRoutes()
	return ws
}

// Auth returns the auth service.
func (ws *WebServer) Auth() *AuthService { return ws.auth }

// Handler returns the console's root handler with its middleware.
func (ws *WebServer) Handler() http.Handler { return ws.httpSrv.Handler }

func (ws *WebServer) registerRoutes() {
	handler := http.Handler(ws.mux)
	if ws.cfg.RateLimit > 0 {
		handler = rateLimitMiddleware(ws.rl, handler)
	}
	handler = corsMiddleware(ws.cfg.CORSOrigins, handler)

	ws.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", ws.cfg.Host, ws.cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ws.mux.HandleFunc("GET /health", ws.handleHealth)
	if ws.metrics != nil {
		ws.mux.Handle("GET /metrics", ws.metrics.Handler())
	}

	ws.mux.HandleFunc("POST /api/v1/auth/login", ws.handleAuthLogin)
	ws.mux.HandleFunc("POST /api/v1/auth/refresh", ws.handleAuthRefresh)

	authed := func(h http.HandlerFunc) http.Handler { return authMiddleware(ws.auth, h) }
	ws.mux.Handle("GET /ws", authed(ws.handleWebSocket))
	ws.mux.Handle("GET /api/v1/entities", authed(ws.handleEntities))
	ws.mux.Handle("GET /api/v1/globals", authed(ws.handleGlobals))
	ws.mux.Handle("GET /api/v1/stats", authed(ws.handleStats))
	ws.mux.Handle("GET /api/v1/journal", authed(ws.handleJournal))
	ws.mux.Handle("POST /api/v1/dispatch", authed(ws.handleDispatch))
	ws.mux.Handle("POST /api/v1/reload", authed(ws.handleReload))
	ws.mux.Handle("POST /api/v1/save", authed(ws.handleSave))
	ws.mux.Handle("POST /api/v1/archive", authed(ws.handleArchive))
}

// Start listens until Stop is called. TLS is used unless cleartext is
// configured; a failed TLS setup falls back to plain HTTP.
func (ws *WebServer) Start() error {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ws.stop:
				return
			case now := <-ticker.C:
				ws.rl.cleanup(now)
			}
		}
	}()

	if !ws.cfg.Cleartext {
		result, err := SetupTLS(ws.cfg.TLS)
		if err != nil {
			log.Printf("WEB: TLS setup failed (%v), falling back to HTTP", err)
		} else {
			ws.httpSrv.TLSConfig = result.Config
			if result.AutocertMgr != nil {
				go ws.serveACME(result)
			}
			log.Printf("WEB: console listening on %s (HTTPS)", ws.httpSrv.Addr)
			err = ws.httpSrv.ListenAndServeTLS("", "")
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	}

	log.Printf("WEB: console listening on %s (HTTP)", ws.httpSrv.Addr)
	err := ws.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// serveACME answers Let's Encrypt HTTP challenges on port 80.
func (ws *WebServer) serveACME(result *TLSResult) {
	srv := &http.Server{
		Addr:              ":80",
		Handler:           result.AutocertMgr.HTTPHandler(nil),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ws.stop
		srv.Close()
	}()
	log.Printf("WEB: ACME HTTP challenge listener on :80")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("WEB: ACME HTTP listener error: %v", err)
	}
}

// Stop gracefully shuts down the console.
func (ws *WebServer) Stop(ctx context.Context) error {
	select {
	case <-ws.stop:
	default:
		close(ws.stop)
	}
	return ws.httpSrv.Shutdown(ctx)
}

// --- Debug feed ---

// WSMessage is the JSON message format of the debug feed.
type WSMessage struct {
	Type    string `json:"type"`
	Entity  int    `json:"entity,omitempty"`
	Source  int    `json:"source,omitempty"`
	Program string `json:"program,omitempty"`
	Event   string `json:"event,omitempty"`
	Line    int    `json:"line,omitempty"`
	Result  string `json:"result,omitempty"`
	Text    string `json:"text,omitempty"`
	Params  string `json:"params,omitempty"` // client requests only
}

func eventMessage(ev events.Event) WSMessage {
	return WSMessage{
		Type:    ev.Type.String(),
		Entity:  int(ev.Entity),
		Source:  int(ev.Source),
		Program: ev.Program,
		Event:   ev.Name,
		Line:    ev.Line,
		Result:  ev.Result,
		Text:    ev.Text,
	}
}

// feedClient is a bus subscriber that forwards events to one websocket.
// Receive runs on the tick goroutine and never blocks: when the client
// falls behind, events are dropped and counted.
type feedClient struct {
	conn    *websocket.Conn
	out     chan WSMessage
	done    chan struct{}
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Int64
	watch   gamedb.Ref // Nothing = global subscription
}

func newFeedClient(conn *websocket.Conn) *feedClient {
	return &feedClient{
		conn:  conn,
		out:   make(chan WSMessage, 256),
		done:  make(chan struct{}),
		watch: gamedb.Nothing,
	}
}

// Receive implements events.Subscriber.
func (fc *feedClient) Receive(ev events.Event) {
	fc.send(eventMessage(ev))
}

func (fc *feedClient) send(msg WSMessage) {
	if fc.closed.Load() {
		return
	}
	select {
	case fc.out <- msg:
	default:
		fc.dropped.Add(1)
	}
}

// Closed implements events.Subscriber.
func (fc *feedClient) Closed() bool { return fc.closed.Load() }

func (fc *feedClient) close() {
	fc.once.Do(func() {
		fc.closed.Store(true)
		close(fc.done)
	})
}

func (fc *feedClient) writeLoop() {
	for {
		select {
		case <-fc.done:
			return
		case msg := <-fc.out:
			fc.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := fc.conn.WriteJSON(msg); err != nil {
				fc.close()
				return
			}
		}
	}
}

// handleWebSocket upgrades the connection and streams bus events to it.
// The client may send {"type":"watch","text":"<entity>"} to follow one
// entity ("" for all) and {"type":"dispatch","text":"<entity>","event":..} to
// raise an event.
func (ws *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WEB: websocket upgrade error: %v", err)
		return
	}
	fc := newFeedClient(conn)
	bus := ws.game.Bus
	bus.SubscribeGlobal(fc)
	log.Printf("WEB: debug feed opened from %s", r.RemoteAddr)

	defer func() {
		fc.close()
		if fc.watch == gamedb.Nothing {
			bus.UnsubscribeGlobal(fc)
		} else {
			bus.Unsubscribe(fc.watch, fc)
		}
		conn.Close()
		log.Printf("WEB: debug feed from %s closed (%d events dropped)", r.RemoteAddr, fc.dropped.Load())
	}()

	go fc.writeLoop()
	fc.send(WSMessage{Type: "welcome", Text: VersionString()})

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WEB: debug feed read error: %v", err)
			}
			return
		}
		switch msg.Type {
		case "watch":
			ws.watch(fc, msg.Text)
		case "dispatch":
			res, err := ws.game.Dispatch(msg.Text, msg.Event, msg.Params)
			if err != nil {
				fc.send(WSMessage{Type: "error", Text: err.Error()})
				continue
			}
			fc.send(WSMessage{Type: "result", Event: msg.Event, Result: res.String()})
		default:
			fc.send(WSMessage{Type: "error", Text: fmt.Sprintf("unknown message type: %s", msg.Type)})
		}
	}
}

// watch moves the feed subscription to one entity, or back to all events.
func (ws *WebServer) watch(fc *feedClient, name string) {
	ref := gamedb.Nothing
	if name != "" {
		ws.game.mu.Lock()
		e := ws.game.DB.Lookup(name)
		ws.game.mu.Unlock()
		if e == nil {
			fc.send(WSMessage{Type: "error", Text: fmt.Sprintf("no entity named %q", name)})
			return
		}
		ref = e.Ref
	}

	bus := ws.game.Bus
	if fc.watch == gamedb.Nothing {
		bus.UnsubscribeGlobal(fc)
	} else {
		bus.Unsubscribe(fc.watch, fc)
	}
	fc.watch = ref
	if ref == gamedb.Nothing {
		bus.SubscribeGlobal(fc)
	} else {
		bus.Subscribe(ref, fc)
	}
	fc.send(WSMessage{Type: "watching", Entity: int(ref), Text: name})
}

// --- Auth HTTP Handlers ---

func (ws *WebServer) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User     string `json:"user"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := ws.auth.Login(req.User, req.Password)
	if err != nil {
		log.Printf("WEB: failed console login for %q from %s", req.User, r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (ws *WebServer) handleAuthRefresh(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}
	newToken, err := ws.auth.RefreshToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": newToken})
}

// --- REST Handlers ---

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        Version,
		"uptime_seconds": time.Since(ws.startTime).Seconds(),
		"ticks":          ws.game.Ticks(),
		"game_clock_ms":  ws.game.Now(),
	})
}

func (ws *WebServer) handleEntities(w http.ResponseWriter, r *http.Request) {
	detail := r.URL.Query().Get("detail") != ""
	writeJSON(w, http.StatusOK, ws.game.Entities(detail))
}

func (ws *WebServer) handleGlobals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ws.game.Globals())
}

func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ws.game.Stats())
}

func (ws *WebServer) handleJournal(w http.ResponseWriter, r *http.Request) {
	if ws.game.Journal == nil {
		writeError(w, http.StatusNotFound, "journal disabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := ws.game.Journal.Recent(limit, r.URL.Query().Get("program"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (ws *WebServer) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Entity string `json:"entity"`
		Event  string `json:"event"`
		Params string `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Entity == "" || req.Event == "" {
		writeError(w, http.StatusBadRequest, "entity and event are required")
		return
	}
	res, err := ws.game.Dispatch(req.Entity, req.Event, req.Params)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if claims := ClaimsFromContext(r.Context()); claims != nil {
		DebugLog("WEB: %s sent %s to %s: %s", claims.User, req.Event, req.Entity, res)
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": res.String()})
}

func (ws *WebServer) handleReload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Script string `json:"script"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Script == "" {
		writeError(w, http.StatusBadRequest, "script is required")
		return
	}
	name := filepath.Base(req.Script)
	if !strings.EqualFold(filepath.Ext(name), ScriptExt) {
		name += ScriptExt
	}
	n, err := ws.game.ReloadScript(filepath.Join(ws.game.Conf.ScriptDir, name))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"reloaded": n})
}

func (ws *WebServer) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := ws.game.Save(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (ws *WebServer) handleArchive(w http.ResponseWriter, r *http.Request) {
	path, err := ws.game.Archive()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"archive": filepath.Base(path)})
}
