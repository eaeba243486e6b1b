package http

import "encoding/json"

// inboundMessage is the envelope every client frame must carry. Payloads are
// decoded per event type at the boundary; anything malformed is dropped and
// logged without touching the game layer.
type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Inbound event types.
const (
	msgJoinRoom     = "join_room"
	msgLeaveRoom    = "leave_room"
	msgStartQuiz    = "start_quiz"
	msgSubmitAnswer = "submit_answer"
	msgTimeUp       = "time_up"
	msgChat         = "message"
	msgUsePowerUp   = "use_power_up"
)

type joinRoomPayload struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
	Mode       string `json:"mode,omitempty"`
}

// roomPayload covers leave_room, start_quiz and time_up.
type roomPayload struct {
	RoomID string `json:"roomId"`
}

type submitAnswerPayload struct {
	RoomID     string  `json:"roomId"`
	QuestionID string  `json:"questionId"`
	Answer     *int    `json:"answer"`
	TimeLeft   float64 `json:"timeLeft"`
	Points     int     `json:"points"` // client-computed; ignored, kept for wire compatibility
	Multiplier int     `json:"multiplier"`
}

type chatPayload struct {
	RoomID   string `json:"roomId"`
	Message  string `json:"message"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type powerUpPayload struct {
	RoomID     string `json:"roomId"`
	PowerUpID  string `json:"powerUpId"`
	QuestionID string `json:"questionId"`
}
