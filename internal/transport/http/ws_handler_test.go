package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"quiz-battle-service/internal/domain"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dialBattle(t *testing.T, s testServer, battleID, user string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(s.URL, "http") + "/v1/ws/battles/" + battleID + "?userId=" + user
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil skips frames until one matches typ and accept.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, accept func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for i := 0; i < 200; i++ {
		var msg frame
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", typ, err)
		}
		if msg.Type == typ && (accept == nil || accept(msg.Payload)) {
			return msg.Payload
		}
	}
	t.Fatalf("no %s frame received", typ)
	return nil
}

func TestWebSocketBattleFeed(t *testing.T) {
	s := newTestServer(t, "")
	var battle domain.Battle
	s.do(t, http.MethodPost, "/v1/battles", "alice", map[string]any{"subjectId": "Mathematics"}, &battle)

	conn := dialBattle(t, s, battle.ID, "alice")

	var snapshot domain.BattleSnapshot
	if err := json.Unmarshal(readUntil(t, conn, "snapshot", nil), &snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snapshot.Battle.ID != battle.ID || snapshot.Battle.Status != domain.StatusWaiting {
		t.Fatalf("unexpected initial snapshot %+v", snapshot.Battle)
	}

	if code := s.do(t, http.MethodPost, "/v1/battles/"+battle.ID+"/join", "bob", nil, nil); code != http.StatusOK {
		t.Fatalf("join: got %d", code)
	}
	readUntil(t, conn, "event", func(raw json.RawMessage) bool {
		var event domain.Event
		return json.Unmarshal(raw, &event) == nil && event.Type == domain.EventBattleActive
	})

	answer := map[string]any{
		"type": "answer",
		"payload": map[string]any{
			"questionOrderIndex": 0,
			"selectedOption":     s.correctOption(t, battle.ID, 0),
			"timeSpentMs":        0,
		},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	var result domain.AnswerResult
	if err := json.Unmarshal(readUntil(t, conn, "answerResult", nil), &result); err != nil {
		t.Fatalf("decode answer result: %v", err)
	}
	if !result.Correct || result.TotalScore != 150 {
		t.Fatalf("unexpected answer result %+v", result)
	}

	if err := conn.WriteJSON(map[string]any{"type": "sync"}); err != nil {
		t.Fatalf("write sync: %v", err)
	}
	readUntil(t, conn, "snapshot", func(raw json.RawMessage) bool {
		var s domain.BattleSnapshot
		if json.Unmarshal(raw, &s) != nil {
			return false
		}
		p, ok := s.Participant("alice")
		return ok && p.Score == 150
	})

	if err := conn.WriteJSON(map[string]any{"type": "complete"}); err != nil {
		t.Fatalf("write complete: %v", err)
	}
	payload := readUntil(t, conn, "error", nil)
	if !strings.Contains(string(payload), domain.ErrQuestionsRemaining.Error()) {
		t.Fatalf("expected questions remaining error, got %s", payload)
	}

	if err := conn.WriteJSON(map[string]any{"type": "dance"}); err != nil {
		t.Fatalf("write unknown: %v", err)
	}
	payload = readUntil(t, conn, "error", nil)
	if !strings.Contains(string(payload), "unsupported message type") {
		t.Fatalf("unexpected error payload %s", payload)
	}
}

func TestWebSocketReadyStartsBattle(t *testing.T) {
	s := newTestServer(t, "")
	var battle domain.Battle
	s.do(t, http.MethodPost, "/v1/battles", "alice", map[string]any{"subjectId": "Mathematics"}, &battle)
	s.do(t, http.MethodPost, "/v1/battles/"+battle.ID+"/join", "bob", nil, nil)

	conn := dialBattle(t, s, battle.ID, "bob")
	if err := conn.WriteJSON(map[string]any{"type": "ready", "payload": map[string]any{"ready": true}}); err != nil {
		t.Fatalf("write ready: %v", err)
	}
	var updated domain.Battle
	if err := json.Unmarshal(readUntil(t, conn, "battle", nil), &updated); err != nil {
		t.Fatalf("decode battle: %v", err)
	}
	if updated.Status != domain.StatusActive {
		t.Fatalf("expected battle to stay active, got %s", updated.Status)
	}
}

func TestWebSocketUnknownBattle(t *testing.T) {
	s := newTestServer(t, "")
	u := "ws" + strings.TrimPrefix(s.URL, "http") + "/v1/ws/battles/missing?userId=alice"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 handshake response, got %+v", resp)
	}
}
