package domain

import "time"

// Event types exchanged between participants and the coordinator.
const (
	EventCreateRoom  = "createRoom"
	EventJoinRoom    = "joinRoom"
	EventStartQuiz   = "startQuiz"
	EventSubmitQuiz  = "submitMultiplayerQuiz"
	EventLeaveRoom   = "leaveRoom"
	EventRoomJoined  = "roomJoined"
	EventRoomData    = "roomData"
	EventQuizStarted = "quizStarted"
	EventSubmitted   = "submissionAccepted"
	EventFinished    = "participantFinished"
	EventQuizEnded   = "multiplayerQuizEnded"
	EventError       = "error"
)

// Event is an outbound message. Payload is one of the *Payload types below.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type RoomJoinedPayload struct {
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"participantId"`
	IsHost        bool   `json:"isHost"`
}

type RoomDataPayload struct {
	RoomID           string            `json:"roomId"`
	Host             ParticipantView   `json:"host"`
	Participants     []ParticipantView `json:"participants"`
	Status           RoomStatus        `json:"status"`
	TimeLimitSeconds int               `json:"timeLimitSeconds"`
	Message          string            `json:"message"`
}

type QuizStartedPayload struct {
	RoomID           string           `json:"roomId"`
	Quiz             []PublicQuizItem `json:"quiz"`
	TimeLimitSeconds int              `json:"timeLimitSeconds"`
	StartedAt        time.Time        `json:"startedAt"`
}

type SubmissionAcceptedPayload struct {
	RoomID string  `json:"roomId"`
	Score  int     `json:"score"`
	Time   float64 `json:"time"`
}

// ProgressEntry is one row of the live progress list.
type ProgressEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Finished bool   `json:"finished"`
}

type ParticipantFinishedPayload struct {
	RoomID        string          `json:"roomId"`
	ParticipantID string          `json:"participantId"`
	Results       []ProgressEntry `json:"results"`
	Remaining     []string        `json:"remaining"`
}

type QuizEndedPayload struct {
	RoomID      string             `json:"roomId"`
	Reason      FinishReason       `json:"reason"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEvent builds the error event sent back to an originating connection.
func ErrorEvent(err error) Event {
	return Event{Type: EventError, Payload: ErrorPayload{Code: ErrorCode(err), Message: err.Error()}}
}
