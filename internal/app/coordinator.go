package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"quizroom-service/internal/domain"
)

// Membership identifies a participant inside a room.
type Membership struct {
	RoomID        string
	ParticipantID string
}

// Coordinator contains the multiplayer quiz use cases.
type Coordinator struct {
	registry *Registry
	quizzes  QuizSource
	results  ResultSink
	settings Settings
}

func NewCoordinator(rooms RoomRepository, quizzes QuizSource, results ResultSink, clock clockwork.Clock, settings Settings) *Coordinator {
	c := &Coordinator{
		quizzes:  quizzes,
		results:  results,
		settings: settings,
	}
	c.registry = NewRegistry(rooms, clock, settings, c.publishResult)
	return c
}

// Registry exposes the room table.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// CreateRoom opens a room hosted by the caller.
func (c *Coordinator) CreateRoom(ctx context.Context, req CreateRoomRequest, conn Connection) (Membership, error) {
	room, hostID, err := c.registry.CreateRoom(ctx, req, conn)
	if err != nil {
		return Membership{}, err
	}
	return Membership{RoomID: room.Code(), ParticipantID: hostID}, nil
}

// JoinRoom adds the caller to a waiting room.
func (c *Coordinator) JoinRoom(ctx context.Context, req JoinRoomRequest, conn Connection) (Membership, error) {
	room, id, err := c.registry.JoinRoom(ctx, req, conn)
	if err != nil {
		return Membership{}, err
	}
	return Membership{RoomID: room.Code(), ParticipantID: id}, nil
}

// GetRoom returns a snapshot of a live room.
func (c *Coordinator) GetRoom(code string) (domain.RoomSnapshot, error) {
	room, err := c.registry.GetRoom(code)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	return room.Snapshot(), nil
}

// StartQuiz fetches a quiz from the question source and starts the room.
// A failed fetch leaves the room waiting so the host can retry.
func (c *Coordinator) StartQuiz(ctx context.Context, m Membership, req domain.QuizRequest) error {
	room, err := c.registry.GetRoom(m.RoomID)
	if err != nil {
		return err
	}
	if err := room.beginStart(m.ParticipantID); err != nil {
		return err
	}

	req.Count = c.settings.questionCount(req.Count)
	genCtx := ctx
	if c.settings.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, c.settings.GenerationTimeout)
		defer cancel()
	}

	quiz, err := c.quizzes.GenerateQuiz(genCtx, req)
	if err == nil && len(quiz) == 0 {
		err = domain.ErrQuizNotFound
	}
	if err != nil {
		room.abortStart()
		log.Warn().
			Err(err).
			Str("room_id", m.RoomID).
			Str("subject", req.Subject).
			Str("difficulty", req.Difficulty).
			Msg("quiz generation failed")
		if errors.Is(err, domain.ErrQuizGenerationFailed) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrQuizGenerationFailed, err)
	}
	return room.activate(m.ParticipantID, quiz)
}

// Submit grades and records a participant's answers.
func (c *Coordinator) Submit(_ context.Context, m Membership, sub domain.Submission) (domain.SubmitReceipt, error) {
	room, err := c.registry.GetRoom(m.RoomID)
	if err != nil {
		return domain.SubmitReceipt{}, err
	}
	return room.submit(m.ParticipantID, sub)
}

// Leave removes the participant from the room and drops the room once nobody is left.
func (c *Coordinator) Leave(ctx context.Context, m Membership) error {
	room, err := c.registry.GetRoom(m.RoomID)
	if err != nil {
		return err
	}
	empty, err := room.leave(m.ParticipantID)
	if err != nil {
		return err
	}
	if empty {
		c.registry.rooms.Delete(ctx, room.Code())
		log.Info().Str("room_id", room.Code()).Msg("room closed, no participants left")
	}
	return nil
}

// Disconnect detaches a dropped connection. The participant stays in the room.
func (c *Coordinator) Disconnect(m Membership, conn Connection) {
	room, err := c.registry.GetRoom(m.RoomID)
	if err != nil {
		return
	}
	room.disconnect(m.ParticipantID, conn)
}

// RunSweeper runs the registry sweeper until ctx is done.
func (c *Coordinator) RunSweeper(ctx context.Context) error {
	return c.registry.RunSweeper(ctx)
}

// Shutdown retires every room.
func (c *Coordinator) Shutdown(ctx context.Context) {
	c.registry.Shutdown(ctx)
}

// publishResult hands a finished run to the result sink without blocking the room.
func (c *Coordinator) publishResult(result domain.RoomResult) {
	if c.results == nil {
		return
	}
	timeout := c.settings.ResultTimeout
	if timeout <= 0 {
		timeout = DefaultSettings().ResultTimeout
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := c.results.Publish(ctx, result); err != nil {
			log.Error().
				Err(err).
				Str("room_id", result.RoomID).
				Str("run_id", result.RunID).
				Msg("failed to publish quiz result")
		}
	}()
}
