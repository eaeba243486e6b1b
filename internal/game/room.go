package game

import (
	"math"
	"sort"
	"sync"

	"quizroom-service/internal/domain"
)

const (
	basePoints       = 1000
	timeBonusPerSec  = 100
	defaultName      = "Anonymous"
	eventChannelSize = 16
)

// Room is one in-memory game session. All mutations run under mu, which
// stands in for the single-threaded dispatch loop of the original design:
// no multi-step state change is ever observable half-done, and two players'
// racing submissions serialize on the lock.
type Room struct {
	id        string
	mode      domain.Mode
	questions []domain.Question

	mu           sync.Mutex
	roster       map[string]*domain.Player
	order        []string
	current      int
	active       bool
	awaitingNext bool
	answers      map[string]*domain.Answer
	subscribers  map[chan domain.Event]struct{}
}

// NewRoom builds a waiting room with its own copy of the question bank so
// later bank edits never reach a game in progress.
func NewRoom(id string, mode domain.Mode, questions []domain.Question) *Room {
	cloned := make([]domain.Question, len(questions))
	copy(cloned, questions)
	return &Room{
		id:          id,
		mode:        mode,
		questions:   cloned,
		roster:      make(map[string]*domain.Player),
		answers:     make(map[string]*domain.Answer),
		subscribers: make(map[chan domain.Event]struct{}),
	}
}

// ID returns the room token.
func (r *Room) ID() string { return r.id }

// Mode returns the room's advance mode.
func (r *Room) Mode() domain.Mode { return r.mode }

// IsEmpty reports whether the roster has no members.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.roster) == 0
}

// IsActive reports whether a game is running.
func (r *Room) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Roster returns the players in join order.
func (r *Room) Roster() []domain.Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rosterLocked()
}

// join registers the player and returns an event subscription. The
// subscriber is attached before anything is broadcast, so the joining client
// sees its own player_joined (and, in single mode, the auto-start that
// follows). Joining twice with the same connection ID only yields a fresh
// subscription; the roster is untouched.
func (r *Room) join(connID, name string) (<-chan domain.Event, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan domain.Event, eventChannelSize)
	r.subscribers[ch] = struct{}{}
	cancel := r.cancelFunc(ch)

	if _, ok := r.roster[connID]; ok {
		return ch, cancel
	}

	if name == "" {
		name = defaultName
	}
	player := &domain.Player{ID: connID, Name: name}
	r.roster[connID] = player
	r.order = append(r.order, connID)

	r.broadcastLocked(domain.Event{
		Type: domain.EventPlayerJoined,
		Payload: domain.PlayerJoinedPayload{
			Player:  *player,
			Players: r.rosterLocked(),
		},
	})

	if r.mode == domain.ModeSingle && !r.active {
		r.startLocked()
	}
	return ch, cancel
}

func (r *Room) cancelFunc(ch chan domain.Event) func() {
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
	}
}

// leave removes the player if present. Safe to call twice; the second call
// reports removed=false. empty is true when the roster drained, which tells
// the registry to drop the room.
func (r *Room) leave(connID string) (removed, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roster[connID]; !ok {
		return false, len(r.roster) == 0
	}
	delete(r.roster, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.broadcastLocked(domain.Event{
		Type:    domain.EventPlayerLeft,
		Payload: domain.PlayerLeftPayload{PlayerID: connID},
	})
	return true, len(r.roster) == 0
}

// start kicks off the game from the first question. No-op while active.
func (r *Room) start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return false
	}
	r.startLocked()
	return true
}

func (r *Room) startLocked() {
	if len(r.questions) == 0 {
		return
	}
	r.current = 0
	r.active = true
	r.awaitingNext = false
	r.answers = make(map[string]*domain.Answer)
	for _, p := range r.roster {
		p.Score = 0
		p.Streak = 0
	}
	r.broadcastLocked(domain.Event{
		Type: domain.EventGameStarted,
		Payload: domain.GameStartedPayload{
			Question: r.questions[0].View(),
			Mode:     r.mode,
		},
	})
}

// submit records an answer for the current question. Returns endNow=true
// when the submission satisfied the advance condition and the caller should
// resolve the question. Late answers (stale question ID), answers from
// non-members, and answers outside an active question are dropped.
func (r *Room) submit(connID string, sub domain.AnswerSubmission) (endNow bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active || r.awaitingNext || r.current >= len(r.questions) {
		return false
	}
	question := r.questions[r.current]
	if sub.QuestionID != question.ID {
		return false
	}
	player, ok := r.roster[connID]
	if !ok {
		return false
	}

	isCorrect := sub.ChosenIndex == question.CorrectIndex
	awarded := 0
	if isCorrect {
		awarded = (basePoints + int(math.Floor(sub.TimeLeft*timeBonusPerSec))) * sub.Multiplier
		if awarded < 0 {
			awarded = 0
		}
		player.Score += awarded
		player.Streak++
	} else {
		player.Streak = 0
	}

	// Last submission wins; a resubmission re-applies scoring, matching the
	// single-answer-per-question assumption of the clients.
	r.answers[connID] = &domain.Answer{
		ChosenIndex:   sub.ChosenIndex,
		TimeRemaining: sub.TimeLeft,
		AwardedPoints: awarded,
	}

	r.broadcastLocked(domain.Event{
		Type: domain.EventAnswerReceived,
		Payload: domain.AnswerReceivedPayload{
			PlayerID:  connID,
			IsCorrect: isCorrect,
			Points:    awarded,
			Players:   r.rosterLocked(),
		},
	})

	if r.mode == domain.ModeSingle {
		return r.endQuestionLocked()
	}
	return r.ledgerCompleteLocked() && r.endQuestionLocked()
}

func (r *Room) ledgerCompleteLocked() bool {
	for id := range r.roster {
		if _, ok := r.answers[id]; !ok {
			return false
		}
	}
	return true
}

// endQuestion resolves the current question, normally on a time_up signal.
// Idempotent: a second trigger while the resolution delay is pending (or
// after the game ended) is a no-op.
func (r *Room) endQuestion() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endQuestionLocked()
}

func (r *Room) endQuestionLocked() bool {
	if !r.active || r.awaitingNext || r.current >= len(r.questions) {
		return false
	}
	question := r.questions[r.current]

	// Non-responders timed out: sentinel answer, broken streak.
	for id, p := range r.roster {
		if _, ok := r.answers[id]; !ok {
			r.answers[id] = &domain.Answer{ChosenIndex: -1}
			p.Streak = 0
		}
	}

	total := len(r.roster)
	correct := 0
	for id, ans := range r.answers {
		if _, ok := r.roster[id]; !ok {
			continue // stale entry from a departed player
		}
		if ans.ChosenIndex == question.CorrectIndex {
			correct++
		}
	}
	percentage := 0.0
	if total > 0 {
		percentage = float64(correct) / float64(total) * 100
	}

	r.broadcastLocked(domain.Event{
		Type: domain.EventQuestionEnded,
		Payload: domain.QuestionEndedPayload{
			CorrectAnswer: question.CorrectIndex,
			Stats: domain.QuestionStats{
				Total:      total,
				Correct:    correct,
				Percentage: percentage,
			},
			Players: r.rosterLocked(),
		},
	})

	r.answers = make(map[string]*domain.Answer)
	r.current++
	r.awaitingNext = true
	return true
}

// advance runs after the post-question delay: either the next question goes
// out or the game ends with the final standings.
func (r *Room) advance() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.awaitingNext {
		return
	}
	r.awaitingNext = false

	if r.current < len(r.questions) {
		r.broadcastLocked(domain.Event{
			Type: domain.EventNextQuestion,
			Payload: domain.NextQuestionPayload{
				Question:        r.questions[r.current].View(),
				CurrentQuestion: r.current,
			},
		})
		return
	}

	r.active = false
	r.broadcastLocked(domain.Event{
		Type:    domain.EventGameEnded,
		Payload: r.finalStandingsLocked(),
	})
}

// broadcast fans an event out to whatever subscribers the room has; used by
// the service for the chat and power-up relays.
func (r *Room) broadcast(evt domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(evt)
}

func (r *Room) broadcastLocked(evt domain.Event) {
	for ch := range r.subscribers {
		select {
		case ch <- evt:
		default:
			// Slow consumer: drop its oldest pending event rather than block
			// the room.
			select {
			case <-ch:
			default:
			}
			ch <- evt
		}
	}
}

func (r *Room) rosterLocked() []domain.Player {
	players := make([]domain.Player, 0, len(r.order))
	for _, id := range r.order {
		if p, ok := r.roster[id]; ok {
			players = append(players, *p)
		}
	}
	return players
}

// finalStandingsLocked sorts by score descending; ties keep join order.
func (r *Room) finalStandingsLocked() []domain.Player {
	players := r.rosterLocked()
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Score > players[j].Score
	})
	return players
}
