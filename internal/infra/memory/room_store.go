package memory

import (
	"sync"

	"quizroom-service/internal/game"
)

// RoomStore is the in-process implementation of game.RoomRepository.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*game.Room
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*game.Room),
	}
}

// GetOrCreate returns the room for the ID, constructing it through create on
// first use. The store lock guarantees a single Room per ID even when two
// first joins race.
func (s *RoomStore) GetOrCreate(roomID string, create func() *game.Room) (*game.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[roomID]; ok {
		return room, false
	}
	room := create()
	s.rooms[roomID] = room
	return room, true
}

func (s *RoomStore) Get(roomID string) (*game.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	return room, ok
}

// DeleteIfEmpty drops the room only when its roster is empty, so a join that
// raced the last leave keeps the room alive.
func (s *RoomStore) DeleteIfEmpty(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return
	}
	if room.IsEmpty() {
		delete(s.rooms, roomID)
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
