package app

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"quizroom-service/internal/domain"
)

// beginStart validates a start request and holds the room in "starting"
// while the quiz is fetched outside the lock.
func (r *Room) beginStart(participantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.retired {
		return domain.ErrNotFound
	}
	if _, ok := r.members[participantID]; !ok {
		return domain.ErrParticipantNotFound
	}
	if r.status != domain.StatusWaiting {
		return domain.ErrRoomAlreadyActive
	}
	if r.hostID != participantID {
		return domain.ErrNotHost
	}
	if r.starting {
		return domain.ErrStartInProgress
	}
	r.starting = true
	r.lastActivity = r.clock.Now()
	return nil
}

// abortStart releases the starting hold after a failed quiz fetch. Room state is otherwise untouched.
func (r *Room) abortStart() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starting = false
}

// activate performs the waiting -> active transition with the fetched quiz,
// broadcasts quizStarted and arms the countdown.
func (r *Room) activate(participantID string, quiz []domain.QuizItem) error {
	r.mu.Lock()
	defer r.unlock()

	r.starting = false
	if r.retired {
		return domain.ErrNotFound
	}
	if r.status != domain.StatusWaiting {
		return domain.ErrRoomAlreadyActive
	}
	if r.hostID != participantID {
		return domain.ErrNotHost
	}
	if len(quiz) == 0 {
		return domain.ErrQuizGenerationFailed
	}

	r.quiz = cloneQuiz(quiz)
	now := r.clock.Now()
	r.status = domain.StatusActive
	r.startedAt = now
	r.lastActivity = now
	r.runID = uuid.NewString()

	public := make([]domain.PublicQuizItem, len(r.quiz))
	for i, item := range r.quiz {
		public[i] = item.Public()
	}
	r.broadcastLocked(domain.Event{Type: domain.EventQuizStarted, Payload: domain.QuizStartedPayload{
		RoomID:           r.code,
		Quiz:             public,
		TimeLimitSeconds: int(r.timeLimit / time.Second),
		StartedAt:        now,
	}})
	r.armTimerLocked()

	log.Info().
		Str("room_id", r.code).
		Str("run_id", r.runID).
		Int("questions", len(r.quiz)).
		Dur("time_limit", r.timeLimit).
		Int("participants", len(r.members)).
		Msg("quiz started")
	return nil
}

func (r *Room) armTimerLocked() {
	runID := r.runID
	r.timer = r.clock.AfterFunc(r.timeLimit, func() {
		r.expire(runID)
	})
}

// expire is the countdown callback. Firings for another run or an already
// finished room are ignored.
func (r *Room) expire(runID string) {
	r.mu.Lock()
	defer r.unlock()

	if r.status != domain.StatusActive || r.runID != runID {
		log.Debug().Str("room_id", r.code).Str("run_id", runID).Msg("ignoring stale countdown")
		return
	}
	r.forceFinishLocked(domain.FinishTimeExpired)
}

// forceFinishLocked scores every participant who has not submitted as zero and finishes the room.
func (r *Room) forceFinishLocked(reason domain.FinishReason) {
	if r.status != domain.StatusActive {
		return
	}
	elapsed := r.elapsedLocked(r.clock.Now())
	for _, m := range r.members {
		if m.Finished {
			continue
		}
		m.Finished = true
		m.Score = 0
		m.TimeTaken = elapsed
		m.TimedOut = true
	}
	r.finishLocked(reason)
}

// elapsedLocked is the server-side time since start, capped at the time limit.
func (r *Room) elapsedLocked(now time.Time) time.Duration {
	d := now.Sub(r.startedAt)
	if d < 0 {
		return 0
	}
	if d > r.timeLimit {
		return r.timeLimit
	}
	return d
}

func cloneQuiz(quiz []domain.QuizItem) []domain.QuizItem {
	out := make([]domain.QuizItem, len(quiz))
	for i, item := range quiz {
		options := make([]string, len(item.Options))
		copy(options, item.Options)
		out[i] = domain.QuizItem{Question: item.Question, Options: options, Answer: item.Answer}
	}
	return out
}
