package domain

// Mode controls when a room advances past a question.
type Mode string

const (
	// ModeSingle advances as soon as the sole player answers (or times out).
	ModeSingle Mode = "single"
	// ModeMulti waits until every roster member has answered.
	ModeMulti Mode = "multi"
)

// ParseMode maps a client-supplied mode string onto a known Mode,
// defaulting to multi for anything unrecognized or empty.
func ParseMode(raw string) Mode {
	if raw == string(ModeSingle) {
		return ModeSingle
	}
	return ModeMulti
}

// Question is one entry of a question bank. CorrectIndex must never reach
// clients before the question has been resolved.
type Question struct {
	ID               string   `json:"id"`
	Prompt           string   `json:"question"`
	Options          []string `json:"answers"`
	CorrectIndex     int      `json:"correctAnswer"`
	TimeLimitSeconds int      `json:"timeLimit"`
}

// View strips the correct-answer index for pre-resolution broadcasts.
func (q Question) View() QuestionView {
	return QuestionView{
		ID:               q.ID,
		Prompt:           q.Prompt,
		Options:          q.Options,
		TimeLimitSeconds: q.TimeLimitSeconds,
	}
}

// QuestionView is the client-safe projection of a Question.
type QuestionView struct {
	ID               string   `json:"id"`
	Prompt           string   `json:"question"`
	Options          []string `json:"answers"`
	TimeLimitSeconds int      `json:"timeLimit"`
}

// Player is one connected roster member. The ID is the connection ID, so a
// reconnect shows up as a new player.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Streak int    `json:"streak"`
}

// Answer is one ledger entry, alive only until the current question resolves.
// ChosenIndex -1 marks a timeout sentinel filled in by the room.
type Answer struct {
	ChosenIndex   int
	TimeRemaining float64
	AwardedPoints int
}

// AnswerSubmission carries the scoring signal from a client. TimeLeft and
// Multiplier feed the points formula as-is; see the game service for the
// trust caveat.
type AnswerSubmission struct {
	QuestionID  string
	ChosenIndex int
	TimeLeft    float64
	Multiplier  int
}

// ChatMessage is relayed within a room verbatim; Timestamp is stamped
// server-side in milliseconds.
type ChatMessage struct {
	RoomID    string `json:"roomId"`
	Message   string `json:"message"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"`
}
