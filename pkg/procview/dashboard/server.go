package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"

	"github.com/chosenoffset/procview/pkg/procview/decode"
	"github.com/chosenoffset/procview/pkg/procview/metrics"
	"github.com/chosenoffset/procview/pkg/procview/probe"
)

// MaxDecodeBytes bounds the body accepted by POST /api/decode.
const MaxDecodeBytes = 1 << 20

type Server struct {
	addr         string
	server       *http.Server
	serverMutex  sync.Mutex
	upgrader     websocket.Upgrader
	clients      map[*client]bool
	clientsMutex sync.RWMutex
	maxClients   int
	snapshots    chan *probe.Snapshot
	stop         chan struct{}
	stopOnce     sync.Once
	startOnce    sync.Once
	collector    *metrics.Collector
	httpMetrics  *metrics.HTTPMetrics
	log          *slog.Logger
}

// client serializes writes to one websocket connection; gorilla allows a
// single concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(messageType, data)
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l.With(slog.String("component", "dashboard"))
		}
	}
}

// WithMaxClients limits concurrent websocket connections.
func WithMaxClients(n int) Option {
	return func(s *Server) { s.maxClients = n }
}

func NewServer(addr string, collector *metrics.Collector, opts ...Option) *Server {
	s := &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin:     sameOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients:     make(map[*client]bool),
		maxClients:  100,
		snapshots:   make(chan *probe.Snapshot, 16),
		stop:        make(chan struct{}),
		collector:   collector,
		httpMetrics: metrics.NewHTTPMetrics(1000),
		log:         slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// sameOrigin accepts requests without an Origin header and those whose
// origin host matches the request host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// Handler returns the dashboard routes and starts the broadcaster. API
// responses are gzip compressed when the client accepts it; the websocket
// route is left unwrapped.
func (s *Server) Handler() http.Handler {
	s.startOnce.Do(func() { go s.broadcast() })

	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, gzhttp.GzipHandler(s.httpMetrics.Middleware(pattern, h)))
	}

	route("GET /{$}", s.handleIndex)
	route("GET /api/snapshot", s.handleSnapshot)
	route("GET /api/memory", s.handleMemory)
	route("GET /api/cpus", s.handleCPUs)
	route("GET /api/processes", s.handleProcesses)
	route("GET /api/network", s.handleNetwork)
	route("GET /api/misc", s.handleMisc)
	route("GET /api/history", s.handleHistory)
	route("GET /api/stats", s.handleStats)
	route("POST /api/decode", s.handleDecode)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

// Start listens on the configured address and serves until Stop is
// called. It returns http.ErrServerClosed after a clean shutdown.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve serves the dashboard on l until Stop is called.
func (s *Server) Serve(l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.serverMutex.Lock()
	s.server = srv
	s.serverMutex.Unlock()

	s.log.Info("starting dashboard", slog.String("addr", l.Addr().String()))
	return srv.Serve(l)
}

func (s *Server) Stop() error {
	s.stopOnce.Do(func() { close(s.stop) })

	s.serverMutex.Lock()
	srv := s.server
	s.serverMutex.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// Publish queues a snapshot for websocket clients. It never blocks; when
// the queue is full the snapshot is dropped.
func (s *Server) Publish(snap *probe.Snapshot) {
	select {
	case s.snapshots <- snap:
	default:
		s.log.Debug("dropping snapshot, broadcast queue full")
	}
}

func (s *Server) ClientCount() int {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()
	return len(s.clients)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "data": data})
}

func fail(w http.ResponseWriter, status int, msg string, extra map[string]any) {
	body := map[string]any{"status": "error", "error": msg}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// current returns the latest snapshot or answers 503 itself.
func (s *Server) current(w http.ResponseWriter) *probe.Snapshot {
	snap := s.collector.GetCurrent()
	if snap == nil {
		fail(w, http.StatusServiceUnavailable, "no snapshot collected yet", nil)
	}
	return snap
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if snap := s.current(w); snap != nil {
		ok(w, snap)
	}
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	snap := s.current(w)
	if snap == nil {
		return
	}
	if snap.Memory == nil {
		fail(w, http.StatusBadGateway, "memory probe failed", map[string]any{"errors": snap.Errors})
		return
	}
	ok(w, map[string]any{
		"memory":       snap.Memory,
		"used":         snap.Memory.Used(),
		"used_percent": snap.Memory.UsedPercent(),
		"trend":        s.collector.GetMemoryUsedTrend(5 * time.Minute),
	})
}

func (s *Server) handleCPUs(w http.ResponseWriter, r *http.Request) {
	if snap := s.current(w); snap != nil {
		ok(w, snap.CPUs)
	}
}

// handleProcesses supports ?state=R to filter by state letter, ?sort=pid,
// rss or time (utime+stime, descending) and ?limit=N.
func (s *Server) handleProcesses(w http.ResponseWriter, r *http.Request) {
	snap := s.current(w)
	if snap == nil {
		return
	}
	q := r.URL.Query()

	procs := make([]probe.Process, 0, len(snap.Processes))
	state := q.Get("state")
	for _, p := range snap.Processes {
		if state == "" || p.State.Letter() == state {
			procs = append(procs, p)
		}
	}

	switch q.Get("sort") {
	case "", "pid":
	case "rss":
		sort.SliceStable(procs, func(i, j int) bool { return procs[i].RSS > procs[j].RSS })
	case "time":
		sort.SliceStable(procs, func(i, j int) bool {
			return procs[i].UTime+procs[i].STime > procs[j].UTime+procs[j].STime
		})
	default:
		fail(w, http.StatusBadRequest, "sort must be pid, rss or time", nil)
		return
	}

	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			fail(w, http.StatusBadRequest, "invalid limit", nil)
			return
		}
		if n < len(procs) {
			procs = procs[:n]
		}
	}
	ok(w, procs)
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	snap := s.current(w)
	if snap == nil {
		return
	}
	rx, tx := s.collector.GetNetworkRate()
	ok(w, map[string]any{
		"devices": snap.Network,
		"rx_rate": rx,
		"tx_rate": tx,
	})
}

func (s *Server) handleMisc(w http.ResponseWriter, r *http.Request) {
	if snap := s.current(w); snap != nil {
		ok(w, snap.Misc)
	}
}

// handleHistory returns samples, optionally limited with ?window=5m.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	window := r.URL.Query().Get("window")
	if window == "" {
		ok(w, s.collector.GetHistory())
		return
	}
	d, err := time.ParseDuration(window)
	if err != nil || d <= 0 {
		fail(w, http.StatusBadRequest, "invalid window duration", nil)
		return
	}
	ok(w, s.collector.GetHistoryWindow(d))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ok(w, s.httpMetrics.GetStats())
}

// handleDecode decodes the posted text into untyped records. ?shape is
// record (default) or sequence.
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	var shape decode.Shape
	switch r.URL.Query().Get("shape") {
	case "", "record":
		shape = decode.ShapeMap
	case "sequence":
		shape = decode.ShapeSequence
	default:
		fail(w, http.StatusBadRequest, "shape must be record or sequence", nil)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxDecodeBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			fail(w, http.StatusRequestEntityTooLarge, "body too large", nil)
			return
		}
		fail(w, http.StatusBadRequest, "reading body failed", nil)
		return
	}

	records, err := decode.Records(string(body), shape)
	if err != nil {
		var de *decode.Error
		if errors.As(err, &de) {
			fail(w, http.StatusUnprocessableEntity, err.Error(), map[string]any{
				"kind":   de.Kind.String(),
				"offset": de.Offset,
			})
			return
		}
		fail(w, http.StatusUnprocessableEntity, err.Error(), nil)
		return
	}
	s.log.Debug("decoded posted document", slog.Int("bytes", len(body)), slog.Int("records", len(records)))
	ok(w, records)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.ClientCount() >= s.maxClients {
		http.Error(w, "Maximum clients reached", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	c := &client{conn: conn}
	s.clientsMutex.Lock()
	s.clients[c] = true
	s.clientsMutex.Unlock()
	defer func() {
		s.clientsMutex.Lock()
		delete(s.clients, c)
		s.clientsMutex.Unlock()
	}()

	if snap := s.collector.GetCurrent(); snap != nil {
		if data, err := json.Marshal(message{Type: "snapshot", Data: snap}); err == nil {
			c.write(websocket.TextMessage, data)
		}
	}

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Reading is what detects a client going away.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					s.log.Debug("websocket read failed", slog.Any("error", err))
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		case <-s.stop:
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

type message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (s *Server) broadcast() {
	for {
		select {
		case snap := <-s.snapshots:
			s.broadcastMessage(message{Type: "snapshot", Data: snap})
		case <-s.stop:
			return
		}
	}
}

func (s *Server) broadcastMessage(msg message) {
	s.clientsMutex.RLock()
	if len(s.clients) == 0 {
		s.clientsMutex.RUnlock()
		return
	}
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMutex.RUnlock()

	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("marshaling websocket message failed", slog.Any("error", err))
		return
	}

	var failed []*client
	for _, c := range clients {
		if err := c.write(websocket.TextMessage, data); err != nil {
			c.conn.Close()
			failed = append(failed, c)
		}
	}
	if len(failed) > 0 {
		s.clientsMutex.Lock()
		for _, c := range failed {
			delete(s.clients, c)
		}
		s.clientsMutex.Unlock()
	}
}
