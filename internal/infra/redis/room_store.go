package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
)

// RoomStore is a Redis-aware implementation of app.RoomRepository.
// Notes:
//   - Room state stays in a local map; rooms are not shared across instances.
//   - Redis reserves the room code (SETNX) so two instances never hand out the same code.
type RoomStore struct {
	client   *redis.Client
	ttl      time.Duration
	instance string

	mu    sync.RWMutex
	rooms map[string]*app.Room
}

// NewRoomStore creates a store whose code reservations expire after ttl.
// instance is written as the reservation value to show which node owns a code.
func NewRoomStore(client *redis.Client, ttl time.Duration, instance string) *RoomStore {
	return &RoomStore{
		client:   client,
		ttl:      ttl,
		instance: instance,
		rooms:    make(map[string]*app.Room),
	}
}

// Insert reserves the code in Redis before touching the local map, so lookups
// of other rooms never wait on the network.
func (s *RoomStore) Insert(ctx context.Context, room *app.Room) error {
	code := room.Code()
	s.mu.RLock()
	_, exists := s.rooms[code]
	s.mu.RUnlock()
	if exists {
		return domain.ErrDuplicateRoomID
	}

	ok, err := s.client.SetNX(ctx, s.key(code), s.instance, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("reserve room code %s: %w", code, err)
	}
	if !ok {
		return domain.ErrDuplicateRoomID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[code]; ok {
		// lost a local race after the live room's reservation expired; the key now covers that room
		return domain.ErrDuplicateRoomID
	}
	s.rooms[code] = room
	return nil
}

func (s *RoomStore) Get(code string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	return room, ok
}

func (s *RoomStore) Delete(ctx context.Context, code string) {
	s.mu.Lock()
	_, ok := s.rooms[code]
	delete(s.rooms, code)
	s.mu.Unlock()
	if !ok {
		return
	}
	// best-effort; the reservation expires on its own
	if err := s.client.Del(ctx, s.key(code)).Err(); err != nil {
		log.Warn().Err(err).Str("room_id", code).Msg("failed to release room code")
	}
}

func (s *RoomStore) List() []*app.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*app.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		out = append(out, room)
	}
	return out
}

func (s *RoomStore) key(code string) string {
	return "quiz:room:" + code
}
