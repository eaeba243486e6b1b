package game

import (
	"context"
	"time"

	"go.uber.org/zap"

	"quizroom-service/internal/domain"
)

// RoomRepository abstracts how live rooms are stored (in-memory, with an
// optional Redis liveness layer). Implementations must guarantee a single
// Room per ID under concurrent first joins.
type RoomRepository interface {
	GetOrCreate(roomID string, create func() *Room) (*Room, bool)
	Get(roomID string) (*Room, bool)
	DeleteIfEmpty(roomID string)
	Rooms() []*Room
}

// QuestionSource loads question-bank content (from cache/backing store).
type QuestionSource interface {
	QuestionBank(ctx context.Context, bankID string) ([]domain.Question, error)
}

// RoomGauge receives registry size updates; satisfied by metrics.Metrics.
type RoomGauge interface {
	SetActiveRooms(count int)
}

// Service drives the per-room quiz state machine. Every handler treats an
// unknown room as a no-op and never surfaces an error to the transport; the
// only errors returned are bank-loading failures on join.
type Service struct {
	rooms        RoomRepository
	banks        QuestionSource
	bankID       string
	advanceDelay time.Duration
	log          *zap.SugaredLogger
	now          func() time.Time
	gauge        RoomGauge
}

// Option configures a Service.
type Option func(*Service)

// WithAdvanceDelay overrides the pause between question end and the next
// question (or game end). Zero makes the advance synchronous, which tests
// rely on for determinism.
func WithAdvanceDelay(d time.Duration) Option {
	return func(s *Service) { s.advanceDelay = d }
}

// WithClock injects a deterministic clock for chat timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRoomGauge wires registry size reporting.
func WithRoomGauge(g RoomGauge) Option {
	return func(s *Service) { s.gauge = g }
}

func NewService(rooms RoomRepository, banks QuestionSource, bankID string, log *zap.SugaredLogger, opts ...Option) *Service {
	s := &Service{
		rooms:        rooms,
		banks:        banks,
		bankID:       bankID,
		advanceDelay: 3 * time.Second,
		log:          log,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Join places the connection in the room, creating it on first join with a
// fresh clone of the question bank and the requested mode. The returned
// channel carries every broadcast the room makes from this moment on; the
// cancel func must be called to release the subscription.
func (s *Service) Join(ctx context.Context, roomID, connID, playerName, mode string) (<-chan domain.Event, func(), error) {
	bank, err := s.banks.QuestionBank(ctx, s.bankID)
	if err != nil {
		return nil, nil, err
	}
	if len(bank) == 0 {
		return nil, nil, domain.ErrEmptyBank
	}

	room, created := s.rooms.GetOrCreate(roomID, func() *Room {
		return NewRoom(roomID, domain.ParseMode(mode), bank)
	})
	if created {
		s.log.Infow("room created", "room", roomID, "mode", room.Mode())
		s.reportRooms()
	}

	ch, cancel := room.join(connID, playerName)
	s.log.Infow("player joined", "room", roomID, "conn", connID)
	return ch, cancel, nil
}

// Leave removes the connection from the room and garbage-collects the room
// once its roster drains. Calling it twice, or for an unknown room, is a
// no-op.
func (s *Service) Leave(roomID, connID string) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}
	removed, empty := room.leave(connID)
	if removed {
		s.log.Infow("player left", "room", roomID, "conn", connID)
	}
	if empty {
		s.rooms.DeleteIfEmpty(roomID)
		s.reportRooms()
	}
}

// Disconnect treats a dropped connection as a leave on every room it is a
// member of. Membership is discovered by scanning the registry: a client may
// be joined to more than one room.
func (s *Service) Disconnect(connID string) {
	for _, room := range s.rooms.Rooms() {
		removed, empty := room.leave(connID)
		if removed {
			s.log.Infow("player disconnected", "room", room.ID(), "conn", connID)
		}
		if empty {
			s.rooms.DeleteIfEmpty(room.ID())
			s.reportRooms()
		}
	}
}

// Start forces the game to begin; no-op if already running or room unknown.
func (s *Service) Start(roomID string) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}
	if room.start() {
		s.log.Infow("game started", "room", roomID)
	}
}

// SubmitAnswer scores a submission against the current question. Correctness
// is recomputed server-side; the points formula trusts the client-reported
// time remaining and multiplier.
func (s *Service) SubmitAnswer(roomID, connID string, sub domain.AnswerSubmission) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}
	if room.submit(connID, sub) {
		s.scheduleAdvance(room)
	}
}

// TimeUp resolves the current question on a client countdown signal.
// Whichever trigger lands first wins; the loser is a no-op.
func (s *Service) TimeUp(roomID string) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}
	if room.endQuestion() {
		s.scheduleAdvance(room)
	}
}

// RelayChat stamps the message with a server-side timestamp and rebroadcasts
// it to the room. No chat state is retained.
func (s *Service) RelayChat(msg domain.ChatMessage) {
	room, ok := s.rooms.Get(msg.RoomID)
	if !ok {
		return
	}
	msg.Timestamp = s.now().UnixMilli()
	room.broadcast(domain.Event{Type: domain.EventMessage, Payload: msg})
}

var powerUpEffects = map[string]string{
	"time_freeze":   "timer frozen for 5 seconds",
	"50_50":         "two wrong answers removed",
	"double_points": "next answer scores double",
}

// ActivatePowerUp relays a power-up activation to the room. Effects are
// applied client-side; double_points, for instance, comes back through the
// submit_answer multiplier.
func (s *Service) ActivatePowerUp(roomID, connID, powerUpID string) {
	room, ok := s.rooms.Get(roomID)
	if !ok || !room.IsActive() {
		return
	}
	room.broadcast(domain.Event{
		Type: domain.EventPowerUpActivated,
		Payload: domain.PowerUpActivatedPayload{
			PlayerID:  connID,
			PowerUpID: powerUpID,
			Effect:    powerUpEffects[powerUpID],
		},
	})
}

func (s *Service) scheduleAdvance(room *Room) {
	if s.advanceDelay <= 0 {
		room.advance()
		return
	}
	time.AfterFunc(s.advanceDelay, room.advance)
}

func (s *Service) reportRooms() {
	if s.gauge != nil {
		s.gauge.SetActiveRooms(len(s.rooms.Rooms()))
	}
}
