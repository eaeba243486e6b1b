package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quizroom-service/internal/game"
)

// RoomStore is a Redis-aware implementation of game.RoomRepository.
// Notes:
//   - Rooms themselves stay in the local map; the in-process state machine
//     and broadcast fan-out are untouched.
//   - Redis only carries liveness markers per room, useful for external
//     dashboards and as a hook for future cross-instance routing.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	rooms  map[string]*game.Room
}

func NewRoomStore(client *redis.Client, ttl time.Duration) *RoomStore {
	return &RoomStore{
		client: client,
		ttl:    ttl,
		rooms:  make(map[string]*game.Room),
	}
}

func (s *RoomStore) GetOrCreate(roomID string, create func() *game.Room) (*game.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[roomID]; ok {
		return room, false
	}
	room := create()
	s.rooms[roomID] = room
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(roomID), "1", s.ttl).Err()
	return room, true
}

func (s *RoomStore) Get(roomID string) (*game.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	return room, ok
}

func (s *RoomStore) DeleteIfEmpty(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return
	}
	if room.IsEmpty() {
		delete(s.rooms, roomID)
		_ = s.client.Del(context.Background(), s.key(roomID)).Err()
	}
}

func (s *RoomStore) Rooms() []*game.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]*game.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

func (s *RoomStore) key(roomID string) string {
	return "room:live:" + roomID
}
