package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"quiz-lobby-service/internal/app"
	"quiz-lobby-service/internal/domain"
	"quiz-lobby-service/internal/infra/memory"
	"quiz-lobby-service/internal/presence"
)

func newTestServer(t *testing.T) (*httptest.Server, domain.QuizSession) {
	t.Helper()
	clock := clockwork.NewRealClock()
	service := app.NewLobbyService(
		memory.NewLobbyStore(),
		memory.NewPresenceStore(clock),
		memory.NewResultsCache(memory.NewStaticResultsLoader(map[string][]domain.QuizResult{}), time.Minute),
		nil,
		clock,
		zerolog.Nop(),
		presence.PollConfig{JoinedInterval: time.Hour, UnjoinedInterval: time.Hour, ManualRefresh: true},
	)
	sess := service.CreateSession("WS lobby", "host-1", "", nil)

	handler := NewWSHandler(service, zerolog.Nop())
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, sess
}

func dial(t *testing.T, server *httptest.Server, sess domain.QuizSession, userID string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws?sessionId=" + sess.ID + "&userId=" + userID + "&token=" + sess.JoinToken
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) app.Snapshot {
	t.Helper()
	var msg struct {
		Type    string       `json:"type"`
		Payload app.Snapshot `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if msg.Type != "snapshot" {
		t.Fatalf("expected snapshot, got %s", msg.Type)
	}
	return msg.Payload
}

func TestWebSocketJoinFlow(t *testing.T) {
	server, sess := newTestServer(t)
	conn := dial(t, server, sess, "u1")

	// First snapshot reflects the optimistic join.
	snap := readSnapshot(t, conn)
	for snap.Participants.Online == 0 {
		snap = readSnapshot(t, conn)
	}
	if snap.Participants.Online != 1 || snap.Status != domain.StatusScheduled {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestWebSocketHostStart(t *testing.T) {
	server, sess := newTestServer(t)
	conn := dial(t, server, sess, "host-1")
	_ = readSnapshot(t, conn)

	if err := conn.WriteJSON(map[string]string{"type": "start"}); err != nil {
		t.Fatalf("write start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if snap := readSnapshot(t, conn); snap.Status == domain.StatusActive {
			return
		}
	}
	t.Fatalf("expected an active snapshot after host start")
}

func TestWebSocketNonHostStartRejected(t *testing.T) {
	server, sess := newTestServer(t)
	conn := dial(t, server, sess, "guest")
	_ = readSnapshot(t, conn)

	if err := conn.WriteJSON(map[string]string{"type": "start"}); err != nil {
		t.Fatalf("write start: %v", err)
	}

	var msg struct {
		Type    string       `json:"type"`
		Payload errorPayload `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json: %v", err)
		}
		if msg.Type == "error" {
			break
		}
	}
	if msg.Payload.Kind != string(domain.FailPermissionDenied) {
		t.Fatalf("expected permission_denied, got %+v", msg.Payload)
	}
}

func TestWebSocketBadTokenRejected(t *testing.T) {
	server, sess := newTestServer(t)
	u := "ws" + server.URL[len("http"):] + "/ws?sessionId=" + sess.ID + "&userId=u1&token=wrong"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var msg struct {
		Type string `json:"type"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if msg.Type != "error" {
		t.Fatalf("expected error for bad token, got %s", msg.Type)
	}
}

func TestRESTParticipantsAndLeaderboard(t *testing.T) {
	server, sess := newTestServer(t)
	conn := dial(t, server, sess, "u1")
	_ = readSnapshot(t, conn)

	resp, err := http.Get(server.URL + "/sessions/" + sess.ID + "/participants")
	if err != nil {
		t.Fatalf("get participants: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	lbResp, err := http.Get(server.URL + "/sessions/" + sess.ID + "/leaderboard")
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	defer lbResp.Body.Close()
	if lbResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", lbResp.StatusCode)
	}

	missing, err := http.Get(server.URL + "/sessions/unknown/participants")
	if err != nil {
		t.Fatalf("get unknown: %v", err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", missing.StatusCode)
	}
}
