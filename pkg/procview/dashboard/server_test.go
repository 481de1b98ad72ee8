package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chosenoffset/procview/pkg/procview/decode"
	"github.com/chosenoffset/procview/pkg/procview/metrics"
	"github.com/chosenoffset/procview/pkg/procview/probe"
)

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
	Kind   string          `json:"kind"`
	Offset int             `json:"offset"`
}

func newTestServer(t *testing.T, collect bool) (*Server, *metrics.Collector, *httptest.Server) {
	t.Helper()
	fs := probe.New("../probe/testdata", probe.WithGetconf(""))
	c := metrics.NewCollector(fs, 10, time.Hour, nil)
	if collect {
		if _, err := c.Collect(context.Background()); err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
	}
	s := NewServer("127.0.0.1:0", c)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Stop()
	})
	return s, c, ts
}

func get(t *testing.T, url string) (int, envelope) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("Decoding response of %s failed: %v", url, err)
	}
	return resp.StatusCode, env
}

func TestNoSnapshotYet(t *testing.T) {
	_, _, ts := newTestServer(t, false)
	code, env := get(t, ts.URL+"/api/snapshot")
	if code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", code)
	}
	if env.Status != "error" {
		t.Errorf("Expected error status, got %q", env.Status)
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	_, _, ts := newTestServer(t, true)
	code, env := get(t, ts.URL+"/api/snapshot")
	if code != http.StatusOK || env.Status != "ok" {
		t.Fatalf("Expected ok, got %d %q", code, env.Status)
	}
	var snap probe.Snapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatal(err)
	}
	if len(snap.Processes) != 2 || len(snap.CPUs) != 2 {
		t.Errorf("Unexpected snapshot %+v", snap)
	}
}

func TestSectionEndpoints(t *testing.T) {
	_, _, ts := newTestServer(t, true)
	tests := []struct {
		path string
		want string
	}{
		{"/api/memory", `"used_percent"`},
		{"/api/cpus", `"model_name"`},
		{"/api/network", `"rx_rate"`},
		{"/api/misc", `"uptime"`},
		{"/api/history", `"memory_used"`},
		{"/api/history?window=1m", `"memory_used"`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			code, env := get(t, ts.URL+tt.path)
			if code != http.StatusOK {
				t.Fatalf("Expected 200, got %d: %s", code, env.Error)
			}
			if !strings.Contains(string(env.Data), tt.want) {
				t.Errorf("Expected %s in %s", tt.want, env.Data)
			}
		})
	}
}

func TestProcessesQuery(t *testing.T) {
	_, _, ts := newTestServer(t, true)
	tests := []struct {
		query string
		code  int
		pids  []int
	}{
		{"", http.StatusOK, []int{1, 252201}},
		{"?state=D", http.StatusOK, []int{252201}},
		{"?sort=rss&limit=1", http.StatusOK, []int{1}},
		{"?limit=0", http.StatusOK, []int{}},
		{"?sort=name", http.StatusBadRequest, nil},
		{"?limit=-1", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			code, env := get(t, ts.URL+"/api/processes"+tt.query)
			if code != tt.code {
				t.Fatalf("Expected %d, got %d", tt.code, code)
			}
			if tt.pids == nil {
				return
			}
			var procs []probe.Process
			if err := json.Unmarshal(env.Data, &procs); err != nil {
				t.Fatal(err)
			}
			if len(procs) != len(tt.pids) {
				t.Fatalf("Expected %d processes, got %d", len(tt.pids), len(procs))
			}
			for i, pid := range tt.pids {
				if procs[i].PID != pid {
					t.Errorf("Expected pid %d at %d, got %d", pid, i, procs[i].PID)
				}
			}
		})
	}
}

func TestHistoryInvalidWindow(t *testing.T) {
	_, _, ts := newTestServer(t, true)
	if code, _ := get(t, ts.URL+"/api/history?window=soon"); code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", code)
	}
}

func post(t *testing.T, url, body string) (int, envelope) {
	t.Helper()
	resp, err := http.Post(url, "text/plain", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, env
}

func TestDecodeEndpoint(t *testing.T) {
	_, _, ts := newTestServer(t, false)

	code, env := post(t, ts.URL+"/api/decode", "MemTotal: 100 kB\nHugepagesize: 2048 kB\n")
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", code, env.Error)
	}
	var records []decode.Record
	if err := json.Unmarshal(env.Data, &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if v, ok := records[0].Get("MemTotal"); !ok || v != "100 kB" {
		t.Errorf("Expected MemTotal 100 kB, got %q", v)
	}

	code, env = post(t, ts.URL+"/api/decode?shape=sequence", "processor\t: 0\n\nprocessor\t: 1\n")
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", code, env.Error)
	}
	if err := json.Unmarshal(env.Data, &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("Expected 2 records, got %d", len(records))
	}
}

func TestDecodeEndpointErrors(t *testing.T) {
	_, _, ts := newTestServer(t, false)

	code, env := post(t, ts.URL+"/api/decode", "a: 1\n\nb: 2\n")
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d", code)
	}
	if env.Kind != decode.TrailingCharacters.String() {
		t.Errorf("Expected kind %q, got %q", decode.TrailingCharacters.String(), env.Kind)
	}

	if code, _ := post(t, ts.URL+"/api/decode?shape=table", "a: 1\n"); code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown shape, got %d", code)
	}

	big := strings.Repeat("k: v\n", MaxDecodeBytes/5+1)
	if code, _ := post(t, ts.URL+"/api/decode", big); code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413, got %d", code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	_, _, ts := newTestServer(t, true)
	get(t, ts.URL+"/api/cpus")
	get(t, ts.URL+"/api/cpus")

	_, env := get(t, ts.URL+"/api/stats")
	var stats metrics.HTTPStats
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Routes["GET /api/cpus"] != 2 {
		t.Errorf("Expected 2 cpu requests, got %v", stats.Routes)
	}
}

func TestIndex(t *testing.T) {
	_, _, ts := newTestServer(t, false)
	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Expected html, got %q", ct)
	}

	resp, err = http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func readSnapshot(t *testing.T, conn *websocket.Conn) probe.Snapshot {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string         `json:"type"`
		Data probe.Snapshot `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Reading websocket message failed: %v", err)
	}
	if msg.Type != "snapshot" {
		t.Errorf("Expected snapshot message, got %q", msg.Type)
	}
	return msg.Data
}

func TestWebSocketStream(t *testing.T) {
	s, c, ts := newTestServer(t, true)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	first := readSnapshot(t, conn)
	if len(first.Processes) != 2 {
		t.Errorf("Expected initial snapshot with 2 processes, got %d", len(first.Processes))
	}

	deadline := time.Now().Add(time.Second)
	for s.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.ClientCount() != 1 {
		t.Fatalf("Expected 1 client, got %d", s.ClientCount())
	}

	snap, err := c.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	s.Publish(snap)
	next := readSnapshot(t, conn)
	if !next.Timestamp.Equal(snap.Timestamp) {
		t.Errorf("Expected published snapshot %v, got %v", snap.Timestamp, next.Timestamp)
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	_, _, ts := newTestServer(t, true)
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", header)
	if err == nil {
		t.Fatal("Expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %v", resp)
	}
}

func TestWebSocketClientLimit(t *testing.T) {
	fs := probe.New("../probe/testdata", probe.WithGetconf(""))
	s := NewServer("127.0.0.1:0", metrics.NewCollector(fs, 1, time.Hour, nil), WithMaxClients(0))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	defer s.Stop()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err == nil {
		t.Fatal("Expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %v", resp)
	}
}

func TestAPIResponsesCompressed(t *testing.T) {
	_, _, ts := newTestServer(t, true)
	resp, err := http.Get(ts.URL + "/api/snapshot")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if !resp.Uncompressed {
		t.Error("Expected gzip encoded snapshot")
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil || env.Status != "ok" {
		t.Errorf("Expected decodable ok response, got %q, %v", env.Status, err)
	}
}
