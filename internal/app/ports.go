package app

import (
	"context"
	"time"

	"quizroom-service/internal/domain"
)

// Connection is a participant's live connection. Send must not block; it
// returns false when the event could not be queued.
type Connection interface {
	ID() string
	Send(evt domain.Event) bool
}

// RoomRepository abstracts the process-wide room table (in-memory, Redis, etc).
type RoomRepository interface {
	// Insert adds a room, failing with domain.ErrDuplicateRoomID when the code is taken.
	Insert(ctx context.Context, room *Room) error
	Get(code string) (*Room, bool)
	Delete(ctx context.Context, code string)
	List() []*Room
}

// QuizSource produces the quiz for a room start.
type QuizSource interface {
	GenerateQuiz(ctx context.Context, req domain.QuizRequest) ([]domain.QuizItem, error)
}

// QuestionBank returns every question available for a subject and difficulty.
type QuestionBank interface {
	GetBank(ctx context.Context, subject, difficulty string) ([]domain.QuizItem, error)
}

// ResultSink receives final results of finished runs.
type ResultSink interface {
	Publish(ctx context.Context, result domain.RoomResult) error
}

// Settings tunes room behaviour.
type Settings struct {
	MaxParticipants      int
	DefaultTimeLimit     time.Duration
	MaxTimeLimit         time.Duration
	WaitingTTL           time.Duration
	FinishedRetention    time.Duration
	SweepInterval        time.Duration
	StallGrace           time.Duration
	GenerationTimeout    time.Duration
	ResultTimeout        time.Duration
	DefaultQuestionCount int
	MaxQuestionCount     int
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		MaxParticipants:      20,
		DefaultTimeLimit:     5 * time.Minute,
		MaxTimeLimit:         30 * time.Minute,
		WaitingTTL:           30 * time.Minute,
		FinishedRetention:    2 * time.Minute,
		SweepInterval:        30 * time.Second,
		StallGrace:           30 * time.Second,
		GenerationTimeout:    15 * time.Second,
		ResultTimeout:        10 * time.Second,
		DefaultQuestionCount: 10,
		MaxQuestionCount:     50,
	}
}

func (s Settings) timeLimit(requested time.Duration) time.Duration {
	if requested <= 0 {
		return s.DefaultTimeLimit
	}
	if requested < time.Second {
		return time.Second
	}
	if s.MaxTimeLimit > 0 && requested > s.MaxTimeLimit {
		return s.MaxTimeLimit
	}
	return requested
}

func (s Settings) questionCount(requested int) int {
	if requested <= 0 {
		return s.DefaultQuestionCount
	}
	if s.MaxQuestionCount > 0 && requested > s.MaxQuestionCount {
		return s.MaxQuestionCount
	}
	return requested
}
