package domain

// Event types broadcast to room members. One constant per outbound message;
// the gateway serializes them as {type, payload} envelopes.
const (
	EventPlayerJoined     = "player_joined"
	EventPlayerLeft       = "player_left"
	EventGameStarted      = "game_started"
	EventAnswerReceived   = "answer_received"
	EventQuestionEnded    = "question_ended"
	EventNextQuestion     = "next_question"
	EventGameEnded        = "game_ended"
	EventMessage          = "message"
	EventPowerUpActivated = "power_up_activated"
)

// Event is one outbound room broadcast. Payload is always one of the
// payload types below (or []Player for game_ended, ChatMessage for message).
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// PlayerJoinedPayload is the joining player plus the roster snapshot.
type PlayerJoinedPayload struct {
	Player
	Players []Player `json:"players"`
}

// PlayerLeftPayload identifies the departed connection.
type PlayerLeftPayload struct {
	PlayerID string `json:"playerId"`
}

// GameStartedPayload carries the first question, correct index withheld.
type GameStartedPayload struct {
	Question QuestionView `json:"question"`
	Mode     Mode         `json:"mode"`
}

// AnswerReceivedPayload acknowledges a submission and refreshes scores.
type AnswerReceivedPayload struct {
	PlayerID  string   `json:"playerId"`
	IsCorrect bool     `json:"isCorrect"`
	Points    int      `json:"points"`
	Players   []Player `json:"players"`
}

// QuestionStats aggregates per-question answer outcomes.
type QuestionStats struct {
	Total      int     `json:"total"`
	Correct    int     `json:"correct"`
	Percentage float64 `json:"percentage"`
}

// QuestionEndedPayload reveals the correct answer once the question resolves.
type QuestionEndedPayload struct {
	CorrectAnswer int           `json:"correctAnswer"`
	Stats         QuestionStats `json:"stats"`
	Players       []Player      `json:"players"`
}

// NextQuestionPayload advances clients to the next question.
type NextQuestionPayload struct {
	Question        QuestionView `json:"question"`
	CurrentQuestion int          `json:"currentQuestion"`
}

// PowerUpActivatedPayload relays a power-up activation to the room.
// Effects are applied client-side; the server keeps no power-up state.
type PowerUpActivatedPayload struct {
	PlayerID  string `json:"playerId"`
	PowerUpID string `json:"powerUpId"`
	Effect    string `json:"effect"`
}
