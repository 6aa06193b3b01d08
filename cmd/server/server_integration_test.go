package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ChileCris2011/Walkie-Server/internal/config"
	"github.com/ChileCris2011/Walkie-Server/internal/types"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zerolog.Nop()
	cfg := &config.Config{
		ListenAddr:     ":0",
		Dev:            true,
		LogLevel:       "debug",
		ShutdownGrace:  2 * time.Second,
		SweepInterval:  time.Minute,
		StatsInterval:  time.Minute,
		MediaDir:       t.TempDir(),
		MediaRetention: time.Hour,
		UploadsEnabled: true,
	}
	s, err := NewServer(cfg, &logger)
	if err != nil {
		t.Fatalf("server init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.hub.Run(ctx)

	ts := httptest.NewServer(s.router)
	t.Cleanup(ts.Close)
	return s, ts
}

// dialWS connects a websocket client and consumes the connected greeting,
// returning the conn and its assigned connection id.
func dialWS(t *testing.T, ts *httptest.Server) (*websocket.Conn, string) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "test done") })

	greeting := readEnvelope(t, conn)
	if greeting.Type != types.EventConnected || greeting.ConnectionID == "" {
		t.Fatalf("expected connected greeting, got %+v", greeting)
	}
	return conn, greeting.ConnectionID
}

func writeEnvelope(t *testing.T, conn *websocket.Conn, env types.Envelope) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) types.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var env types.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	return env
}

// TestPresenceFlow_EndToEnd runs the canonical two-client session: join,
// snapshot, user-joined, transmission relay, disconnect, user-left.
func TestPresenceFlow_EndToEnd(t *testing.T) {
	s, ts := newTestServer(t)

	connA, _ := dialWS(t, ts)
	writeEnvelope(t, connA, types.Envelope{Type: types.EventJoinChannel, ChannelID: "room1", UserID: "userA"})
	snapA := readEnvelope(t, connA)
	if snapA.Type != types.EventChannelUsers || len(snapA.Users) != 0 {
		t.Fatalf("expected empty snapshot for first joiner, got %+v", snapA)
	}

	connB, _ := dialWS(t, ts)
	writeEnvelope(t, connB, types.Envelope{Type: types.EventJoinChannel, ChannelID: "room1", UserID: "userB"})
	snapB := readEnvelope(t, connB)
	if snapB.Type != types.EventChannelUsers || len(snapB.Users) != 1 || snapB.Users[0] != "userA" {
		t.Fatalf("expected snapshot [userA], got %+v", snapB)
	}

	joined := readEnvelope(t, connA)
	if joined.Type != types.EventUserJoined || joined.UserID != "userB" {
		t.Fatalf("expected user-joined userB, got %+v", joined)
	}

	writeEnvelope(t, connB, types.Envelope{Type: types.EventTransmissionStart, ChannelID: "room1"})
	tx := readEnvelope(t, connA)
	if tx.Type != types.EventTransmissionStart || tx.UserID != "userB" || tx.Timestamp == 0 {
		t.Fatalf("expected stamped transmission-start from userB, got %+v", tx)
	}

	_ = connB.Close(websocket.StatusNormalClosure, "bye")
	left := readEnvelope(t, connA)
	if left.Type != types.EventUserLeft || left.UserID != "userB" {
		t.Fatalf("expected user-left userB, got %+v", left)
	}

	// the channel survives with one member
	waitFor(t, func() bool {
		users := s.directory.ListMembers("room1")
		return len(users) == 1 && users[0] == "userA"
	})
}

func TestPingPong(t *testing.T) {
	_, ts := newTestServer(t)

	conn, _ := dialWS(t, ts)
	writeEnvelope(t, conn, types.Envelope{Type: types.EventPing})
	pong := readEnvelope(t, conn)
	if pong.Type != types.EventPong || pong.Timestamp == 0 {
		t.Fatalf("expected pong with timestamp, got %+v", pong)
	}
}

func TestHTTPEndpoints(t *testing.T) {
	_, ts := newTestServer(t)

	for _, path := range []string{"/", "/health", "/stats"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s returned %d", path, resp.StatusCode)
		}
		_ = resp.Body.Close()
	}
}

func TestChannelsSnapshotEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	conn, _ := dialWS(t, ts)
	writeEnvelope(t, conn, types.Envelope{Type: types.EventJoinChannel, ChannelID: "lobby", UserID: "alice"})
	_ = readEnvelope(t, conn) // snapshot

	resp, err := http.Get(ts.URL + "/channels")
	if err != nil {
		t.Fatalf("GET /channels failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Channels []struct {
			ID        string `json:"id"`
			UserCount int    `json:"userCount"`
			Users     []struct {
				UserID   string    `json:"userId"`
				JoinedAt time.Time `json:"joinedAt"`
			} `json:"users"`
		} `json:"channels"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(body.Channels) != 1 || body.Channels[0].ID != "lobby" || body.Channels[0].UserCount != 1 {
		t.Fatalf("unexpected snapshot %+v", body)
	}
	if body.Channels[0].Users[0].UserID != "alice" || body.Channels[0].Users[0].JoinedAt.IsZero() {
		t.Fatalf("expected alice with joinedAt, got %+v", body.Channels[0].Users)
	}
}

// waitFor polls a condition; disconnect cleanup runs on the hub goroutine
// and can trail the websocket close slightly.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
