package app

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"quizroom-service/internal/domain"
)

// submit grades a participant's answer sheet against the room's answer key.
// Score and time are write-once per run.
func (r *Room) submit(participantID string, sub domain.Submission) (domain.SubmitReceipt, error) {
	r.mu.Lock()
	defer r.unlock()

	m, ok := r.members[participantID]
	if !ok || m.left {
		return domain.SubmitReceipt{}, domain.ErrParticipantNotFound
	}
	switch r.status {
	case domain.StatusWaiting:
		return domain.SubmitReceipt{}, domain.ErrRoomNotActive
	case domain.StatusFinished:
		log.Info().
			Str("room_id", r.code).
			Str("participant_id", participantID).
			Msg("late submission rejected")
		return domain.SubmitReceipt{}, domain.ErrQuizAlreadyEnded
	}
	if m.Finished {
		return domain.SubmitReceipt{}, domain.ErrDuplicateSubmission
	}

	if math.IsNaN(sub.ClientReportedSeconds) || math.IsInf(sub.ClientReportedSeconds, 0) || sub.ClientReportedSeconds < 0 {
		return domain.SubmitReceipt{}, fmt.Errorf("%w: client time must be a non-negative number", domain.ErrInvalidAnswerPayload)
	}
	score, err := gradeAnswers(r.quiz, sub.Answers)
	if err != nil {
		return domain.SubmitReceipt{}, err
	}

	now := r.clock.Now()
	m.Finished = true
	m.Score = score
	m.TimeTaken = r.elapsedLocked(now)
	m.ClientReportedSeconds = sub.ClientReportedSeconds
	r.lastActivity = now

	log.Info().
		Str("room_id", r.code).
		Str("run_id", r.runID).
		Str("participant_id", participantID).
		Int("score", score).
		Dur("time_taken", m.TimeTaken).
		Float64("client_reported_seconds", sub.ClientReportedSeconds).
		Msg("submission accepted")

	r.sendLocked(participantID, domain.Event{Type: domain.EventSubmitted, Payload: domain.SubmissionAcceptedPayload{
		RoomID: r.code,
		Score:  score,
		Time:   domain.Seconds(m.TimeTaken),
	}})
	r.broadcastLocked(r.progressLocked(participantID))
	r.checkQuorumLocked()

	return domain.SubmitReceipt{Score: score, TimeTaken: m.TimeTaken}, nil
}

// checkQuorumLocked finishes the room once every remaining participant has submitted.
func (r *Room) checkQuorumLocked() {
	if r.status != domain.StatusActive {
		return
	}
	for _, m := range r.members {
		if !m.Finished {
			return
		}
	}
	r.finishLocked(domain.FinishAllSubmitted)
}

func (r *Room) progressLocked(participantID string) domain.Event {
	present := r.presentLocked()
	results := make([]domain.ProgressEntry, 0, len(present))
	remaining := make([]string, 0, len(present))
	for _, m := range present {
		results = append(results, domain.ProgressEntry{ID: m.ID, Name: m.DisplayName, Finished: m.Finished})
		if !m.Finished {
			remaining = append(remaining, m.ID)
		}
	}
	return domain.Event{Type: domain.EventFinished, Payload: domain.ParticipantFinishedPayload{
		RoomID:        r.code,
		ParticipantID: participantID,
		Results:       results,
		Remaining:     remaining,
	}}
}

// gradeAnswers returns a 0-100 score. answers must hold one entry per
// question; blank entries count as unanswered.
func gradeAnswers(quiz []domain.QuizItem, answers []string) (int, error) {
	if len(quiz) == 0 {
		return 0, nil
	}
	if len(answers) != len(quiz) {
		return 0, fmt.Errorf("%w: expected %d answers, got %d", domain.ErrInvalidAnswerPayload, len(quiz), len(answers))
	}

	correct := 0
	for i, item := range quiz {
		answer := strings.TrimSpace(answers[i])
		if answer == "" {
			continue
		}
		if !hasOption(item, answer) {
			return 0, fmt.Errorf("%w: answer %d is not one of the options", domain.ErrInvalidAnswerPayload, i+1)
		}
		if answer == strings.TrimSpace(item.Answer) {
			correct++
		}
	}
	return int(math.Round(float64(correct) * 100 / float64(len(quiz)))), nil
}

func hasOption(item domain.QuizItem, answer string) bool {
	for _, opt := range item.Options {
		if strings.TrimSpace(opt) == answer {
			return true
		}
	}
	return false
}

// rankLeaderboard orders by score desc, time asc, then join order, and
// assigns ranks 1..N with no gaps or shared ranks.
func rankLeaderboard(participants []domain.Participant) []domain.LeaderboardEntry {
	sorted := make([]domain.Participant, len(participants))
	copy(sorted, participants)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		if sorted[i].TimeTaken != sorted[j].TimeTaken {
			return sorted[i].TimeTaken < sorted[j].TimeTaken
		}
		if sorted[i].JoinSeq != sorted[j].JoinSeq {
			return sorted[i].JoinSeq < sorted[j].JoinSeq
		}
		return sorted[i].ID < sorted[j].ID
	})

	entries := make([]domain.LeaderboardEntry, len(sorted))
	for i, p := range sorted {
		entries[i] = domain.LeaderboardEntry{
			ParticipantID:    p.ID,
			UserID:           p.UserID,
			DisplayName:      p.DisplayName,
			Score:            p.Score,
			TimeTakenSeconds: domain.Seconds(p.TimeTaken),
			Rank:             i + 1,
			TimedOut:         p.TimedOut,
		}
	}
	return entries
}
