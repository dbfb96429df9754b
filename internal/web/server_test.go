package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/shelf-companion/internal/clock"
	"github.com/sweeney/shelf-companion/internal/logic"
	"github.com/sweeney/shelf-companion/internal/telemetry"
)

func testTracker() *telemetry.Tracker {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := telemetry.NewTracker(start, telemetry.Config{
		PollMs:   50,
		Broker:   "tcp://192.168.1.200:1883",
		HTTPAddr: ":8080",
	})
	tr.Update(telemetry.State{
		Phase:         logic.PhaseNormal,
		Mood:          logic.MoodHappy,
		PresenceCount: 3,
		Slots: [logic.NumSlots]logic.SlotView{
			{Name: "math", Present: true, LiveTotal: 60},
			{Name: "science", Present: true, LiveTotal: 30},
			{Name: "english", Present: true, LiveTotal: 10},
			{Name: "history"},
			{Name: "reading"},
		},
		TotalLive:  100,
		Epoch:      1_700_000_000,
		ClockValid: true,
	})
	return tr
}

// newTestServer wires a server to a fake sync loop that applies requests to
// the given clock, mirroring what the scheduling loop does.
func newTestServer(t *testing.T, clk interface{ Sync(uint32) error }) (*httptest.Server, *telemetry.Tracker, *Hub) {
	t.Helper()
	tr := testTracker()
	hub := NewHub()
	go hub.Run()

	var syncCh chan SyncRequest
	if clk != nil {
		syncCh = make(chan SyncRequest, 4)
		done := make(chan struct{})
		t.Cleanup(func() { close(done) })
		go func() {
			for {
				select {
				case req := <-syncCh:
					req.Reply <- clk.Sync(req.Epoch)
				case <-done:
					return
				}
			}
		}()
	}

	srv := New(":0", tr, hub, syncCh)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr, hub
}

func TestSnapshotEndpoint(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/snapshot")
	if err != nil {
		t.Fatalf("GET /snapshot: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var w telemetry.Wire
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if w.Status != "live" {
		t.Errorf("status: got %q, want live", w.Status)
	}
	if w.Emotion != "happy" {
		t.Errorf("emotion: got %q, want happy", w.Emotion)
	}
	if w.BooksPlaced != 3 {
		t.Errorf("booksPlaced: got %d, want 3", w.BooksPlaced)
	}
	if len(w.Books) != logic.NumSlots {
		t.Errorf("books: got %d entries, want %d", len(w.Books), logic.NumSlots)
	}
}

func postSync(t *testing.T, url string, body string) (*http.Response, syncResponse) {
	t.Helper()
	resp, err := http.Post(url+"/sync-time", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /sync-time: %v", err)
	}
	defer resp.Body.Close()

	var sr syncResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, sr
}

func TestSyncTimeSuccess(t *testing.T) {
	clk := clock.NewWall()
	ts, _, _ := newTestServer(t, clk)

	target := uint32(time.Now().Unix()) + 7200
	resp, sr := postSync(t, ts.URL, `{"epoch":`+jsonUint(target)+`}`)

	if resp.StatusCode != 200 {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if !sr.Success {
		t.Fatalf("expected success, got %+v", sr)
	}
	want := time.Unix(int64(target), 0).UTC().Format("15:04:05")
	if sr.NewTime != want {
		t.Errorf("newTime: got %q, want %q", sr.NewTime, want)
	}
	if got := clk.Now(); got < target {
		t.Errorf("clock not applied: got %d, want >= %d", got, target)
	}
}

func TestSyncTimeInvalidEpoch(t *testing.T) {
	clk := clock.NewWall()
	ts, _, _ := newTestServer(t, clk)
	before := clk.Now()

	resp, sr := postSync(t, ts.URL, `{"epoch":1000000000}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status: got %d, want 422", resp.StatusCode)
	}
	if sr.Success {
		t.Error("expected failure for epoch at the sanity floor")
	}
	if after := clk.Now(); after < before {
		t.Error("clock changed by rejected sync")
	}
}

func TestSyncTimeMalformedBody(t *testing.T) {
	clk := clock.NewWall()
	ts, _, _ := newTestServer(t, clk)

	for _, body := range []string{`not json`, `{}`, `{"epoch":"soon"}`} {
		resp, sr := postSync(t, ts.URL, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: status %d, want 400", body, resp.StatusCode)
		}
		if sr.Success {
			t.Errorf("body %q: expected failure", body)
		}
	}
}

func TestSyncTimeNoClock(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	resp, sr := postSync(t, ts.URL, `{"epoch":1700000000}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", resp.StatusCode)
	}
	if sr.Success {
		t.Error("expected failure with no clock source")
	}
}

func TestSyncTimeRequiresPost(t *testing.T) {
	clk := clock.NewWall()
	ts, _, _ := newTestServer(t, clk)

	resp, err := http.Get(ts.URL + "/sync-time")
	if err != nil {
		t.Fatalf("GET /sync-time: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
}

func TestWebsocketInitialSnapshot(t *testing.T) {
	ts, _, hub := newTestServer(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// New subscribers receive one snapshot immediately on attach.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}

	var w telemetry.Wire
	if err := json.Unmarshal(payload, &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if w.Emotion != "happy" {
		t.Errorf("emotion: got %q, want happy", w.Emotion)
	}

	waitForClients(t, hub, 1)
}

func TestWebsocketBroadcast(t *testing.T) {
	ts, tr, hub := newTestServer(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	waitForClients(t, hub, 1)

	// A publish cycle: broadcast the current snapshot.
	hub.Broadcast(telemetry.FormatJSON(tr.Snapshot()))

	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	var w telemetry.Wire
	if err := json.Unmarshal(payload, &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if w.Status != "live" {
		t.Errorf("status: got %q, want live", w.Status)
	}
}

func TestClientCountTracksDetach(t *testing.T) {
	ts, _, hub := newTestServer(t, nil)

	if hub.ClientCount() != 0 {
		t.Fatalf("initial ClientCount: got %d, want 0", hub.ClientCount())
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

// waitForClients polls the hub until the subscriber count settles; attach
// and detach propagate through the hub goroutine asynchronously.
func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("ClientCount: got %d, want %d", hub.ClientCount(), want)
}

func jsonUint(v uint32) string {
	b, _ := json.Marshal(v)
	return string(b)
}
