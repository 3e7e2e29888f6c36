package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"quizroom-service/internal/domain"
)

type member struct {
	domain.Participant
	conn Connection
	left bool
}

// Room is the authoritative state of one quiz room. Every read and write of
// the fields below mu goes through mu, so events for a room are linearized.
type Room struct {
	code            string
	clock           clockwork.Clock
	maxParticipants int
	onFinish        func(domain.RoomResult)

	mu           sync.Mutex
	status       domain.RoomStatus
	hostID       string
	members      map[string]*member
	order        []string
	nextSeq      int
	quiz         []domain.QuizItem
	timeLimit    time.Duration
	runID        string
	starting     bool
	retired      bool
	createdAt    time.Time
	lastActivity time.Time
	startedAt    time.Time
	finishedAt   time.Time
	timer        clockwork.Timer
	leaderboard  []domain.LeaderboardEntry
	pending      *domain.RoomResult
}

type roomConfig struct {
	code            string
	timeLimit       time.Duration
	maxParticipants int
	clock           clockwork.Clock
	onFinish        func(domain.RoomResult)
}

func newRoom(cfg roomConfig) *Room {
	now := cfg.clock.Now()
	return &Room{
		code:            cfg.code,
		clock:           cfg.clock,
		maxParticipants: cfg.maxParticipants,
		onFinish:        cfg.onFinish,
		status:          domain.StatusWaiting,
		members:         make(map[string]*member),
		timeLimit:       cfg.timeLimit,
		createdAt:       now,
		lastActivity:    now,
	}
}

// Code returns the room code.
func (r *Room) Code() string {
	return r.code
}

// Status returns the current lifecycle state.
func (r *Room) Status() domain.RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Snapshot returns a copy of the room's public state.
func (r *Room) Snapshot() domain.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := domain.RoomSnapshot{
		RoomID:           r.code,
		Host:             r.viewLocked(r.hostID),
		Participants:     r.viewsLocked(),
		Status:           r.status,
		TimeLimitSeconds: int(r.timeLimit / time.Second),
		CreatedAt:        r.createdAt,
	}
	if !r.startedAt.IsZero() {
		started := r.startedAt
		snap.StartedAt = &started
	}
	if r.leaderboard != nil {
		snap.Leaderboard = make([]domain.LeaderboardEntry, len(r.leaderboard))
		copy(snap.Leaderboard, r.leaderboard)
	}
	return snap
}

// unlock releases mu and hands a freshly produced result to onFinish outside the lock.
func (r *Room) unlock() {
	result := r.pending
	r.pending = nil
	r.mu.Unlock()
	if result != nil && r.onFinish != nil {
		r.onFinish(*result)
	}
}

// seedHost adds the creating participant before the room is published.
func (r *Room) seedHost(name, userID string, conn Connection) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.addMemberLocked(name, userID, conn)
	r.hostID = id
	return id
}

// announce confirms the room to its host and broadcasts the membership with a message.
func (r *Room) announce(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sendLocked(r.hostID, r.roomJoinedLocked(r.hostID))
	r.broadcastLocked(r.roomDataLocked(message))
}

func (r *Room) join(name, userID string, conn Connection) (string, error) {
	r.mu.Lock()
	defer r.unlock()

	if r.retired {
		return "", domain.ErrNotFound
	}
	if r.status != domain.StatusWaiting {
		return "", domain.ErrRoomAlreadyActive
	}
	if r.maxParticipants > 0 && len(r.members) >= r.maxParticipants {
		return "", domain.ErrRoomFull
	}

	id := r.addMemberLocked(name, userID, conn)
	r.sendLocked(id, r.roomJoinedLocked(id))
	r.broadcastLocked(r.roomDataLocked(fmt.Sprintf("%s joined the room", name)))

	log.Info().
		Str("room_id", r.code).
		Str("participant_id", id).
		Int("participants", len(r.members)).
		Msg("participant joined")
	return id, nil
}

// disconnect clears the participant's connection if conn is still the current one.
// The participant stays in the room and in the completion quorum.
func (r *Room) disconnect(participantID string, conn Connection) {
	r.mu.Lock()
	defer r.unlock()

	m, ok := r.members[participantID]
	if !ok || m.conn == nil || conn == nil || m.conn.ID() != conn.ID() {
		return
	}
	m.conn = nil

	log.Info().
		Str("room_id", r.code).
		Str("participant_id", participantID).
		Str("status", string(r.status)).
		Msg("participant disconnected")

	if r.status != domain.StatusFinished {
		r.broadcastLocked(r.roomDataLocked(fmt.Sprintf("%s disconnected", m.DisplayName)))
	}
}

// leave handles an explicit leave. It reports whether the room has nobody left.
func (r *Room) leave(participantID string) (bool, error) {
	r.mu.Lock()
	defer r.unlock()

	m, ok := r.members[participantID]
	if !ok || m.left {
		return false, domain.ErrParticipantNotFound
	}

	switch {
	case r.status == domain.StatusActive && m.Finished, r.status == domain.StatusFinished:
		// Finished participants keep their leaderboard row.
		m.left = true
		m.conn = nil
	default:
		r.removeLocked(participantID)
	}
	r.lastActivity = r.clock.Now()

	if participantID == r.hostID {
		r.reassignHostLocked()
	}

	log.Info().
		Str("room_id", r.code).
		Str("participant_id", participantID).
		Str("status", string(r.status)).
		Msg("participant left")

	if len(r.presentLocked()) == 0 {
		switch r.status {
		case domain.StatusWaiting:
			r.retired = true
		case domain.StatusActive:
			r.forceFinishLocked(domain.FinishAbandoned)
		}
		return true, nil
	}

	if r.status != domain.StatusFinished {
		r.broadcastLocked(r.roomDataLocked(fmt.Sprintf("%s left the room", m.DisplayName)))
	}
	if r.status == domain.StatusActive {
		r.checkQuorumLocked()
	}
	return false, nil
}

// retire marks the room as gone so concurrent lookups that still hold it fail.
func (r *Room) retire() {
	r.mu.Lock()
	defer r.unlock()
	r.retired = true
	if r.status == domain.StatusActive {
		r.forceFinishLocked(domain.FinishAbandoned)
	}
}

// sweep applies the retention rules at now and reports whether the room should be dropped.
func (r *Room) sweep(now time.Time, s Settings) bool {
	r.mu.Lock()
	defer r.unlock()

	if r.retired {
		return true
	}

	switch r.status {
	case domain.StatusWaiting:
		if s.WaitingTTL > 0 && now.Sub(r.lastActivity) > s.WaitingTTL && !r.starting {
			r.retired = true
			r.broadcastLocked(r.roomDataLocked("room closed after inactivity"))
			return true
		}
	case domain.StatusActive:
		if now.After(r.startedAt.Add(r.timeLimit + s.StallGrace)) {
			log.Warn().
				Str("room_id", r.code).
				Str("run_id", r.runID).
				Time("started_at", r.startedAt).
				Msg("room outlived its deadline, forcing finish")
			r.forceFinishLocked(domain.FinishStalled)
		}
	case domain.StatusFinished:
		if now.Sub(r.finishedAt) > s.FinishedRetention {
			r.retired = true
			return true
		}
	}
	return false
}

func (r *Room) addMemberLocked(name, userID string, conn Connection) string {
	now := r.clock.Now()
	r.nextSeq++
	m := &member{
		Participant: domain.Participant{
			ID:          uuid.NewString(),
			UserID:      userID,
			DisplayName: name,
			JoinSeq:     r.nextSeq,
			JoinedAt:    now,
		},
		conn: conn,
	}
	r.members[m.ID] = m
	r.order = append(r.order, m.ID)
	r.lastActivity = now
	return m.ID
}

func (r *Room) removeLocked(participantID string) {
	delete(r.members, participantID)
	for i, id := range r.order {
		if id == participantID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Room) reassignHostLocked() {
	for _, m := range r.presentLocked() {
		r.hostID = m.ID
		log.Info().Str("room_id", r.code).Str("host_id", m.ID).Msg("host reassigned")
		return
	}
}

// presentLocked returns members that have not left, in join order.
func (r *Room) presentLocked() []*member {
	out := make([]*member, 0, len(r.order))
	for _, id := range r.order {
		if m, ok := r.members[id]; ok && !m.left {
			out = append(out, m)
		}
	}
	return out
}

// finishLocked is the only place that moves a room to StatusFinished, so the
// terminal event is emitted at most once per room.
func (r *Room) finishLocked(reason domain.FinishReason) bool {
	if r.status != domain.StatusActive {
		return false
	}
	now := r.clock.Now()
	r.status = domain.StatusFinished
	r.finishedAt = now
	r.lastActivity = now
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}

	participants := make([]domain.Participant, 0, len(r.members))
	for _, id := range r.order {
		if m, ok := r.members[id]; ok {
			participants = append(participants, m.Participant)
		}
	}
	r.leaderboard = rankLeaderboard(participants)

	r.broadcastLocked(domain.Event{Type: domain.EventQuizEnded, Payload: domain.QuizEndedPayload{
		RoomID:      r.code,
		Reason:      reason,
		Leaderboard: r.leaderboard,
	}})

	board := make([]domain.LeaderboardEntry, len(r.leaderboard))
	copy(board, r.leaderboard)
	r.pending = &domain.RoomResult{
		RoomID:      r.code,
		RunID:       r.runID,
		StartedAt:   r.startedAt,
		FinishedAt:  now,
		Reason:      reason,
		Leaderboard: board,
	}

	log.Info().
		Str("room_id", r.code).
		Str("run_id", r.runID).
		Str("reason", string(reason)).
		Int("entries", len(board)).
		Msg("quiz finished")
	return true
}

func (r *Room) broadcastLocked(evt domain.Event) {
	for _, id := range r.order {
		m, ok := r.members[id]
		if !ok || m.conn == nil {
			continue
		}
		if !m.conn.Send(evt) {
			log.Warn().
				Str("room_id", r.code).
				Str("participant_id", id).
				Str("event", evt.Type).
				Msg("dropped event for slow connection")
		}
	}
}

func (r *Room) sendLocked(participantID string, evt domain.Event) {
	if m, ok := r.members[participantID]; ok && m.conn != nil {
		m.conn.Send(evt)
	}
}

func (r *Room) roomJoinedLocked(participantID string) domain.Event {
	return domain.Event{Type: domain.EventRoomJoined, Payload: domain.RoomJoinedPayload{
		RoomID:        r.code,
		ParticipantID: participantID,
		IsHost:        participantID == r.hostID,
	}}
}

func (r *Room) roomDataLocked(message string) domain.Event {
	return domain.Event{Type: domain.EventRoomData, Payload: domain.RoomDataPayload{
		RoomID:           r.code,
		Host:             r.viewLocked(r.hostID),
		Participants:     r.viewsLocked(),
		Status:           r.status,
		TimeLimitSeconds: int(r.timeLimit / time.Second),
		Message:          message,
	}}
}

func (r *Room) viewLocked(id string) domain.ParticipantView {
	m, ok := r.members[id]
	if !ok {
		return domain.ParticipantView{}
	}
	return domain.ParticipantView{ID: m.ID, Name: m.DisplayName, Connected: m.conn != nil, Finished: m.Finished}
}

func (r *Room) viewsLocked() []domain.ParticipantView {
	present := r.presentLocked()
	views := make([]domain.ParticipantView, 0, len(present))
	for _, m := range present {
		views = append(views, r.viewLocked(m.ID))
	}
	return views
}
