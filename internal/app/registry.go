package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"quizroom-service/internal/domain"
)

const (
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	roomCodeLength   = 6
	maxCodeAttempts  = 8
)

// CreateRoomRequest is what a host sends to open a room.
type CreateRoomRequest struct {
	RoomID    string
	HostName  string
	UserID    string
	TimeLimit time.Duration
}

// JoinRoomRequest is what a participant sends to enter a room.
type JoinRoomRequest struct {
	RoomID string
	Name   string
	UserID string
}

// Registry owns the table of live rooms: creation, lookup and retirement.
type Registry struct {
	rooms    RoomRepository
	clock    clockwork.Clock
	settings Settings
	onFinish func(domain.RoomResult)
	newCode  func() (string, error)
}

func NewRegistry(rooms RoomRepository, clock clockwork.Clock, settings Settings, onFinish func(domain.RoomResult)) *Registry {
	return &Registry{
		rooms:    rooms,
		clock:    clock,
		settings: settings,
		onFinish: onFinish,
		newCode:  generateRoomCode,
	}
}

// CreateRoom opens a waiting room with the host as its only participant.
// Generated codes are retried on collision; a client-chosen code is not.
func (g *Registry) CreateRoom(ctx context.Context, req CreateRoomRequest, conn Connection) (*Room, string, error) {
	name := strings.TrimSpace(req.HostName)
	if name == "" {
		return nil, "", fmt.Errorf("%w: host name is required", domain.ErrInvalidRequest)
	}

	requested := strings.ToUpper(strings.TrimSpace(req.RoomID))
	attempts := maxCodeAttempts
	if requested != "" {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		code := requested
		if code == "" {
			var err error
			if code, err = g.newCode(); err != nil {
				return nil, "", fmt.Errorf("generate room code: %w", err)
			}
		}

		room := newRoom(roomConfig{
			code:            code,
			timeLimit:       g.settings.timeLimit(req.TimeLimit),
			maxParticipants: g.settings.MaxParticipants,
			clock:           g.clock,
			onFinish:        g.onFinish,
		})
		hostID := room.seedHost(name, req.UserID, conn)

		err := g.rooms.Insert(ctx, room)
		if errors.Is(err, domain.ErrDuplicateRoomID) {
			log.Debug().Str("room_id", code).Msg("room code collision")
			continue
		}
		if err != nil {
			return nil, "", err
		}

		room.announce(fmt.Sprintf("%s created the room", name))
		log.Info().
			Str("room_id", code).
			Str("host_id", hostID).
			Msg("room created")
		return room, hostID, nil
	}
	return nil, "", domain.ErrDuplicateRoomID
}

// JoinRoom adds a participant to a waiting room.
func (g *Registry) JoinRoom(_ context.Context, req JoinRoomRequest, conn Connection) (*Room, string, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, "", fmt.Errorf("%w: participant name is required", domain.ErrInvalidRequest)
	}
	room, err := g.GetRoom(req.RoomID)
	if err != nil {
		return nil, "", err
	}
	id, err := room.join(name, req.UserID, conn)
	if err != nil {
		return nil, "", err
	}
	return room, id, nil
}

// GetRoom looks a room up by code.
func (g *Registry) GetRoom(code string) (*Room, error) {
	room, ok := g.rooms.Get(strings.ToUpper(strings.TrimSpace(code)))
	if !ok {
		return nil, domain.ErrNotFound
	}
	return room, nil
}

// Remove retires a room and drops it from the table.
func (g *Registry) Remove(ctx context.Context, code string) {
	room, ok := g.rooms.Get(code)
	if !ok {
		return
	}
	room.retire()
	g.rooms.Delete(ctx, code)
}

// Sweep applies retention rules to every room and returns how many were removed.
func (g *Registry) Sweep(ctx context.Context) int {
	now := g.clock.Now()
	removed := 0
	for _, room := range g.rooms.List() {
		if room.sweep(now, g.settings) {
			g.rooms.Delete(ctx, room.Code())
			removed++
		}
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("swept rooms")
	}
	return removed
}

// RunSweeper sweeps every SweepInterval until ctx is done.
func (g *Registry) RunSweeper(ctx context.Context) error {
	interval := g.settings.SweepInterval
	if interval <= 0 {
		interval = DefaultSettings().SweepInterval
	}
	ticker := g.clock.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("room sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("room sweeper stopped")
			return nil
		case <-ticker.Chan():
			g.Sweep(ctx)
		}
	}
}

// Shutdown retires every live room.
func (g *Registry) Shutdown(ctx context.Context) {
	for _, room := range g.rooms.List() {
		g.Remove(ctx, room.Code())
	}
}

func generateRoomCode() (string, error) {
	buf := make([]byte, roomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := make([]byte, roomCodeLength)
	for i, b := range buf {
		code[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return string(code), nil
}
