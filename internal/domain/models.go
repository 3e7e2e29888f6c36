package domain

import "time"

// RoomStatus is the lifecycle state of a room. It only moves forward.
type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusActive   RoomStatus = "active"
	StatusFinished RoomStatus = "finished"
)

// FinishReason records which path drove a room into StatusFinished.
type FinishReason string

const (
	FinishAllSubmitted FinishReason = "allSubmitted"
	FinishTimeExpired  FinishReason = "timeExpired"
	FinishAbandoned    FinishReason = "abandoned"
	FinishStalled      FinishReason = "stalled"
)

// QuizItem is one question with its answer key. The answer never leaves the server.
type QuizItem struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// PublicQuizItem is the participant-facing view of a QuizItem.
type PublicQuizItem struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// Public strips the answer key.
func (q QuizItem) Public() PublicQuizItem {
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	return PublicQuizItem{Question: q.Question, Options: options}
}

// QuizRequest describes the quiz a host asks the question source for.
type QuizRequest struct {
	Subject    string `json:"subject"`
	Difficulty string `json:"difficulty"`
	Count      int    `json:"count"`
}

// Participant is a member of a room and their result for the current run.
type Participant struct {
	ID                    string
	UserID                string
	DisplayName           string
	JoinSeq               int
	JoinedAt              time.Time
	Finished              bool
	Score                 int
	TimeTaken             time.Duration
	ClientReportedSeconds float64
	TimedOut              bool
}

// Submission is a participant's full answer sheet, one entry per question.
// An empty string marks a skipped question.
type Submission struct {
	Answers               []string
	ClientReportedSeconds float64
}

// SubmitReceipt is returned to the submitter once their answers are graded.
type SubmitReceipt struct {
	Score     int
	TimeTaken time.Duration
}

// LeaderboardEntry is a ranked row of the final leaderboard.
type LeaderboardEntry struct {
	ParticipantID    string  `json:"id"`
	UserID           string  `json:"userId,omitempty"`
	DisplayName      string  `json:"name"`
	Score            int     `json:"score"`
	TimeTakenSeconds float64 `json:"time"`
	Rank             int     `json:"rank"`
	TimedOut         bool    `json:"timedOut,omitempty"`
}

// RoomResult is the final outcome of one quiz run, handed to result sinks.
type RoomResult struct {
	RoomID      string             `json:"roomId"`
	RunID       string             `json:"runId"`
	StartedAt   time.Time          `json:"startedAt"`
	FinishedAt  time.Time          `json:"finishedAt"`
	Reason      FinishReason       `json:"reason"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// ParticipantView is a membership row as shown to clients.
type ParticipantView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	Finished  bool   `json:"finished"`
}

// RoomSnapshot is a read-only copy of a room's state.
type RoomSnapshot struct {
	RoomID           string             `json:"roomId"`
	Host             ParticipantView    `json:"host"`
	Participants     []ParticipantView  `json:"participants"`
	Status           RoomStatus         `json:"status"`
	TimeLimitSeconds int                `json:"timeLimitSeconds"`
	CreatedAt        time.Time          `json:"createdAt"`
	StartedAt        *time.Time         `json:"startedAt,omitempty"`
	// Leaderboard is set once the room has finished.
	Leaderboard      []LeaderboardEntry `json:"leaderboard,omitempty"`
}

// Seconds converts a duration to seconds with millisecond precision.
func Seconds(d time.Duration) float64 {
	return float64(d.Milliseconds()) / 1000
}
