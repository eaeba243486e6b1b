package http

import (
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quizroom-service/internal/domain"
	"quizroom-service/internal/game"
	"quizroom-service/internal/infra/memory"
)

type outboundEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	banks := memory.NewQuestionRepository(
		memory.NewStaticBankLoader(map[string][]domain.Question{"default": {
			{ID: "q1", Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5", "6"}, CorrectIndex: 1, TimeLimitSeconds: 20},
			{ID: "q2", Prompt: "What is the capital of France?", Options: []string{"London", "Paris", "Berlin", "Madrid"}, CorrectIndex: 1, TimeLimitSeconds: 20},
		}}),
		time.Minute,
	)
	svc := game.NewService(memory.NewRoomStore(), banks, "default", zap.NewNop().Sugar(), game.WithAdvanceDelay(0))
	gw := NewGateway(svc, zap.NewNop().Sugar(), nil)

	srv := httptest.NewServer(nethttp.HandlerFunc(gw.ServeWS))
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := conn.WriteJSON(inboundMessage{Type: typ, Payload: raw}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readNext(t *testing.T, conn *websocket.Conn) outboundEnvelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env outboundEnvelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string) outboundEnvelope {
	t.Helper()
	for i := 0; i < 10; i++ {
		env := readNext(t, conn)
		if env.Type == typ {
			return env
		}
	}
	t.Fatalf("never received %s", typ)
	return outboundEnvelope{}
}

func TestJoinBroadcastsRoster(t *testing.T) {
	srv := newTestServer(t)
	conn := dialWS(t, srv)

	send(t, conn, msgJoinRoom, map[string]any{"roomId": "R1", "playerName": "Alice"})

	env := readNext(t, conn)
	if env.Type != domain.EventPlayerJoined {
		t.Fatalf("expected player_joined, got %s", env.Type)
	}
	var joined struct {
		Name    string          `json:"name"`
		Score   int             `json:"score"`
		Players []domain.Player `json:"players"`
	}
	if err := json.Unmarshal(env.Payload, &joined); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if joined.Name != "Alice" || len(joined.Players) != 1 {
		t.Fatalf("unexpected payload: %+v", joined)
	}
}

func TestSingleModeGameOverWebsocket(t *testing.T) {
	srv := newTestServer(t)
	conn := dialWS(t, srv)

	send(t, conn, msgJoinRoom, map[string]any{"roomId": "R1", "playerName": "Ada", "mode": "single"})

	started := readUntil(t, conn, domain.EventGameStarted)
	var startedPayload struct {
		Question map[string]json.RawMessage `json:"question"`
		Mode     string                     `json:"mode"`
	}
	if err := json.Unmarshal(started.Payload, &startedPayload); err != nil {
		t.Fatalf("decode game_started: %v", err)
	}
	if startedPayload.Mode != "single" {
		t.Fatalf("expected single mode, got %s", startedPayload.Mode)
	}
	if _, leaked := startedPayload.Question["correctAnswer"]; leaked {
		t.Fatalf("correct answer leaked before resolution")
	}

	answer := 1
	send(t, conn, msgSubmitAnswer, submitAnswerPayload{
		RoomID:     "R1",
		QuestionID: "q1",
		Answer:     &answer,
		TimeLeft:   15,
		Multiplier: 1,
	})

	received := readUntil(t, conn, domain.EventAnswerReceived)
	var rp domain.AnswerReceivedPayload
	if err := json.Unmarshal(received.Payload, &rp); err != nil {
		t.Fatalf("decode answer_received: %v", err)
	}
	if !rp.IsCorrect || rp.Points != 2500 {
		t.Fatalf("unexpected answer_received: %+v", rp)
	}

	ended := readUntil(t, conn, domain.EventQuestionEnded)
	var ep domain.QuestionEndedPayload
	if err := json.Unmarshal(ended.Payload, &ep); err != nil {
		t.Fatalf("decode question_ended: %v", err)
	}
	if ep.CorrectAnswer != 1 || ep.Stats.Percentage != 100 {
		t.Fatalf("unexpected question_ended: %+v", ep)
	}

	next := readUntil(t, conn, domain.EventNextQuestion)
	var np domain.NextQuestionPayload
	if err := json.Unmarshal(next.Payload, &np); err != nil {
		t.Fatalf("decode next_question: %v", err)
	}
	if np.Question.ID != "q2" {
		t.Fatalf("expected q2, got %+v", np.Question)
	}
}

func TestMalformedFramesDoNotKillConnection(t *testing.T) {
	srv := newTestServer(t)
	conn := dialWS(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	send(t, conn, "no_such_event", map[string]any{"roomId": "R1"})
	// submit_answer without an answer index is dropped at the boundary.
	send(t, conn, msgSubmitAnswer, map[string]any{"roomId": "R1", "questionId": "q1"})

	send(t, conn, msgJoinRoom, map[string]any{"roomId": "R1", "playerName": "Alice"})
	if env := readNext(t, conn); env.Type != domain.EventPlayerJoined {
		t.Fatalf("expected connection to survive, got %s", env.Type)
	}
}

func TestChatRelayAcrossConnections(t *testing.T) {
	srv := newTestServer(t)
	connA := dialWS(t, srv)
	connB := dialWS(t, srv)

	send(t, connA, msgJoinRoom, map[string]any{"roomId": "R1", "playerName": "Alice"})
	readUntil(t, connA, domain.EventPlayerJoined)
	send(t, connB, msgJoinRoom, map[string]any{"roomId": "R1", "playerName": "Bob"})
	readUntil(t, connB, domain.EventPlayerJoined)
	readUntil(t, connA, domain.EventPlayerJoined) // Bob's arrival

	send(t, connA, msgChat, chatPayload{
		RoomID:   "R1",
		Message:  "ready when you are",
		UserID:   "u1",
		Username: "Alice",
	})

	env := readUntil(t, connB, domain.EventMessage)
	var msg domain.ChatMessage
	if err := json.Unmarshal(env.Payload, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.Message != "ready when you are" || msg.Username != "Alice" {
		t.Fatalf("unexpected chat payload: %+v", msg)
	}
	if msg.Timestamp == 0 {
		t.Fatalf("expected server-side timestamp")
	}
}

func TestDisconnectBroadcastsPlayerLeft(t *testing.T) {
	srv := newTestServer(t)
	connA := dialWS(t, srv)
	connB := dialWS(t, srv)

	send(t, connA, msgJoinRoom, map[string]any{"roomId": "R1", "playerName": "Alice"})
	readUntil(t, connA, domain.EventPlayerJoined)
	send(t, connB, msgJoinRoom, map[string]any{"roomId": "R1", "playerName": "Bob"})
	readUntil(t, connA, domain.EventPlayerJoined)

	connB.Close()

	env := readUntil(t, connA, domain.EventPlayerLeft)
	var left domain.PlayerLeftPayload
	if err := json.Unmarshal(env.Payload, &left); err != nil {
		t.Fatalf("decode player_left: %v", err)
	}
	if left.PlayerID == "" {
		t.Fatalf("expected the departed connection ID")
	}
}
