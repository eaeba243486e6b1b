package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quizroom-service/internal/domain"
	"quizroom-service/internal/game"
	"quizroom-service/internal/metrics"
)

// Gateway binds websocket connections to the game service: inbound frames
// become state-machine calls, room broadcasts flow back out. Each connection
// gets an opaque ID that doubles as the player's connection ID.
type Gateway struct {
	service  *game.Service
	log      *zap.SugaredLogger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
}

func NewGateway(service *game.Service, log *zap.SugaredLogger, m *metrics.Metrics) *Gateway {
	return &Gateway{
		service: service,
		log:     log,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// client is the per-connection state: the outbound queue, one pump goroutine
// per joined room, and the subscription cancels keyed by room ID.
type client struct {
	id   string
	ctx  context.Context
	conn *websocket.Conn
	send chan domain.Event
	done chan struct{}
	wg   sync.WaitGroup
	subs map[string]func()
}

// ServeWS upgrades the request and runs the connection until it drops.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warnw("ws upgrade failed", "err", err)
		return
	}

	c := &client{
		id:   uuid.New().String(),
		ctx:  r.Context(),
		conn: conn,
		send: make(chan domain.Event, 32),
		done: make(chan struct{}),
		subs: make(map[string]func()),
	}
	g.log.Infow("connection opened", "conn", c.id, "remote", conn.RemoteAddr())
	if g.metrics != nil {
		g.metrics.ConnOpened()
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for evt := range c.send {
			if err := conn.WriteJSON(evt); err != nil {
				g.log.Debugw("ws write failed", "conn", c.id, "err", err)
				return
			}
		}
	}()

	g.readLoop(c)

	// Involuntary disconnects leave every room the connection was in.
	for _, cancel := range c.subs {
		cancel()
	}
	g.service.Disconnect(c.id)
	close(c.done)
	c.wg.Wait()
	close(c.send)
	<-writerDone
	conn.Close()

	if g.metrics != nil {
		g.metrics.ConnClosed()
	}
	g.log.Infow("connection closed", "conn", c.id)
}

func (g *Gateway) readLoop(c *client) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type == "" {
			g.log.Debugw("dropping unreadable frame", "conn", c.id, "err", err)
			continue
		}
		if g.metrics != nil {
			g.metrics.EventReceived(msg.Type)
		}
		g.dispatch(c, msg)
	}
}

func (g *Gateway) dispatch(c *client, msg inboundMessage) {
	switch msg.Type {
	case msgJoinRoom:
		g.handleJoin(c, msg.Payload)
	case msgLeaveRoom:
		g.handleLeave(c, msg.Payload)
	case msgStartQuiz:
		if p, ok := decodeRoom(g, c, msg); ok {
			g.service.Start(p.RoomID)
		}
	case msgSubmitAnswer:
		g.handleSubmit(c, msg.Payload)
	case msgTimeUp:
		if p, ok := decodeRoom(g, c, msg); ok {
			g.service.TimeUp(p.RoomID)
		}
	case msgChat:
		g.handleChat(c, msg.Payload)
	case msgUsePowerUp:
		g.handlePowerUp(c, msg.Payload)
	default:
		g.log.Debugw("unknown event type", "conn", c.id, "type", msg.Type)
	}
}

func (g *Gateway) handleJoin(c *client, raw json.RawMessage) {
	var p joinRoomPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" {
		g.log.Debugw("dropping malformed join_room", "conn", c.id, "err", err)
		return
	}
	if _, ok := c.subs[p.RoomID]; ok {
		return // already a member; join is idempotent
	}
	events, cancel, err := g.service.Join(c.ctx, p.RoomID, c.id, p.PlayerName, p.Mode)
	if err != nil {
		g.log.Warnw("join failed", "conn", c.id, "room", p.RoomID, "err", err)
		return
	}
	c.subs[p.RoomID] = cancel
	c.wg.Add(1)
	go c.pump(events)
}

func (g *Gateway) handleLeave(c *client, raw json.RawMessage) {
	var p roomPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" {
		g.log.Debugw("dropping malformed leave_room", "conn", c.id, "err", err)
		return
	}
	if cancel, ok := c.subs[p.RoomID]; ok {
		cancel()
		delete(c.subs, p.RoomID)
	}
	g.service.Leave(p.RoomID, c.id)
}

func (g *Gateway) handleSubmit(c *client, raw json.RawMessage) {
	var p submitAnswerPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" || p.QuestionID == "" || p.Answer == nil {
		g.log.Debugw("dropping malformed submit_answer", "conn", c.id, "err", err)
		return
	}
	multiplier := p.Multiplier
	if multiplier == 0 {
		multiplier = 1
	}
	g.service.SubmitAnswer(p.RoomID, c.id, domain.AnswerSubmission{
		QuestionID:  p.QuestionID,
		ChosenIndex: *p.Answer,
		TimeLeft:    p.TimeLeft,
		Multiplier:  multiplier,
	})
}

func (g *Gateway) handleChat(c *client, raw json.RawMessage) {
	var p chatPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" || p.Message == "" {
		g.log.Debugw("dropping malformed chat message", "conn", c.id, "err", err)
		return
	}
	g.service.RelayChat(domain.ChatMessage{
		RoomID:   p.RoomID,
		Message:  p.Message,
		UserID:   p.UserID,
		Username: p.Username,
	})
}

func (g *Gateway) handlePowerUp(c *client, raw json.RawMessage) {
	var p powerUpPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" || p.PowerUpID == "" {
		g.log.Debugw("dropping malformed use_power_up", "conn", c.id, "err", err)
		return
	}
	g.service.ActivatePowerUp(p.RoomID, c.id, p.PowerUpID)
}

func decodeRoom(g *Gateway, c *client, msg inboundMessage) (roomPayload, bool) {
	var p roomPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil || p.RoomID == "" {
		g.log.Debugw("dropping malformed frame", "conn", c.id, "type", msg.Type, "err", err)
		return p, false
	}
	return p, true
}

// pump forwards one room's broadcasts into the connection's outbound queue.
// It exits when the subscription is cancelled or the connection shuts down.
func (c *client) pump(events <-chan domain.Event) {
	defer c.wg.Done()
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			select {
			case c.send <- evt:
			case <-c.done:
				return
			}
		case <-c.done:
			return
		}
	}
}
