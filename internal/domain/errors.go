package domain

import "errors"

var (
	// ErrNotFound is returned for an unknown room code.
	ErrNotFound = errors.New("room not found")
	// ErrRoomFull is returned when a room has reached its participant limit.
	ErrRoomFull = errors.New("room is full")
	// ErrRoomAlreadyActive rejects joins and starts once the quiz has begun.
	ErrRoomAlreadyActive = errors.New("room is no longer accepting players")
	// ErrNotHost is returned when a non-host participant tries to start the quiz.
	ErrNotHost = errors.New("only the host can start the quiz")
	// ErrQuizGenerationFailed indicates the question source could not produce a quiz.
	ErrQuizGenerationFailed = errors.New("quiz generation failed")
	// ErrQuizAlreadyEnded rejects submissions that arrive after the room finished.
	ErrQuizAlreadyEnded = errors.New("quiz has already ended")
	// ErrDuplicateSubmission rejects a second submission from the same participant.
	ErrDuplicateSubmission = errors.New("answers already submitted")
	// ErrInvalidAnswerPayload rejects malformed answer sheets.
	ErrInvalidAnswerPayload = errors.New("invalid answer payload")
	// ErrDuplicateRoomID is returned when a room code is already taken.
	ErrDuplicateRoomID = errors.New("room code already in use")
	// ErrRoomNotActive rejects submissions before the quiz starts.
	ErrRoomNotActive = errors.New("quiz has not started")
	// ErrStartInProgress rejects a start while another start is fetching questions.
	ErrStartInProgress = errors.New("quiz start already in progress")
	// ErrParticipantNotFound is returned when a participant acts on a room they are not in.
	ErrParticipantNotFound = errors.New("participant not found in room")
	// ErrAlreadyInRoom is returned when a connection tries to enter a second room.
	ErrAlreadyInRoom = errors.New("connection already belongs to a room")
	// ErrInvalidRequest covers missing or malformed request fields.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrQuizNotFound indicates the question bank has nothing for the request.
	ErrQuizNotFound = errors.New("quiz not found")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrNotFound, "NotFound"},
	{ErrRoomFull, "RoomFull"},
	{ErrRoomAlreadyActive, "RoomAlreadyActive"},
	{ErrNotHost, "NotHost"},
	{ErrQuizGenerationFailed, "QuizGenerationFailed"},
	{ErrQuizAlreadyEnded, "QuizAlreadyEnded"},
	{ErrDuplicateSubmission, "DuplicateSubmission"},
	{ErrInvalidAnswerPayload, "InvalidAnswerPayload"},
	{ErrDuplicateRoomID, "DuplicateRoomId"},
	{ErrRoomNotActive, "RoomNotActive"},
	{ErrStartInProgress, "StartInProgress"},
	{ErrParticipantNotFound, "ParticipantNotFound"},
	{ErrAlreadyInRoom, "AlreadyInRoom"},
	{ErrInvalidRequest, "InvalidRequest"},
	{ErrQuizNotFound, "QuizNotFound"},
}

// ErrorCode maps an error to the protocol code sent in error events.
func ErrorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "Internal"
}
