package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"quizroom-service/internal/app"
	"quizroom-service/internal/auth"
	"quizroom-service/internal/domain"
)

// TicketParser resolves a websocket ticket into an identity.
type TicketParser interface {
	Parse(ticket string) (auth.Identity, error)
}

type WSHandler struct {
	coordinator   *app.Coordinator
	tickets       TicketParser
	requireTicket bool
	opts          Options
	upgrader      websocket.Upgrader
}

// NewWSHandler wires the gateway to the coordinator. tickets may be nil, in
// which case names come from the payloads alone.
func NewWSHandler(coordinator *app.Coordinator, tickets TicketParser, requireTicket bool, opts Options, allowOrigins []string) *WSHandler {
	return &WSHandler{
		coordinator:   coordinator,
		tickets:       tickets,
		requireTicket: requireTicket,
		opts:          opts.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowOrigins),
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createRoomPayload struct {
	RoomID           string `json:"roomId"`
	HostName         string `json:"hostName"`
	TimeLimitSeconds int    `json:"timeLimitSeconds"`
}

type joinRoomPayload struct {
	RoomID          string `json:"roomId"`
	ParticipantName string `json:"participantName"`
}

type startQuizPayload struct {
	RoomID     string `json:"roomId"`
	Subject    string `json:"subject"`
	Difficulty string `json:"difficulty"`
	Count      int    `json:"count"`
}

type submitPayload struct {
	RoomID             string   `json:"roomId"`
	Answers            []string `json:"answers"`
	ClientReportedTime float64  `json:"clientReportedTime"`
}

type leaveRoomPayload struct {
	RoomID string `json:"roomId"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the room use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}

	c := newClient(conn, h.opts)
	go c.writePump()

	s := &session{coordinator: h.coordinator, client: c, identity: identity}
	log.Debug().Str("connection_id", c.id).Str("user_id", identity.UserID).Msg("connection opened")
	defer s.close()

	conn.SetReadLimit(h.opts.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			// gorilla reports transport failures as close errors, so a bare
			// ErrUnexpectedEOF is an empty or truncated frame.
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
				c.Send(domain.ErrorEvent(fmt.Errorf("%w: malformed message", domain.ErrInvalidRequest)))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("ws read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
		s.dispatch(r.Context(), inbound)
	}
}

func (h *WSHandler) identify(r *http.Request) (auth.Identity, error) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		if h.requireTicket {
			return auth.Identity{}, errors.New("missing ticket")
		}
		return auth.Identity{}, nil
	}
	if h.tickets == nil {
		return auth.Identity{}, errors.New("tickets are not enabled")
	}
	identity, err := h.tickets.Parse(ticket)
	if err != nil {
		return auth.Identity{}, err
	}
	return identity, nil
}

// session is the per-connection state: at most one room membership.
type session struct {
	coordinator *app.Coordinator
	client      *client
	identity    auth.Identity
	membership  *app.Membership
}

func (s *session) dispatch(ctx context.Context, in inboundMessage) {
	var err error
	switch in.Type {
	case domain.EventCreateRoom:
		err = s.createRoom(ctx, in.Payload)
	case domain.EventJoinRoom:
		err = s.joinRoom(ctx, in.Payload)
	case domain.EventStartQuiz:
		err = s.startQuiz(ctx, in.Payload)
	case domain.EventSubmitQuiz:
		err = s.submit(ctx, in.Payload)
	case domain.EventLeaveRoom:
		err = s.leaveRoom(ctx, in.Payload)
	default:
		err = fmt.Errorf("%w: unsupported message type %q", domain.ErrInvalidRequest, in.Type)
	}
	if err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", s.client.id).
			Str("event", in.Type).
			Msg("request rejected")
		s.client.Send(domain.ErrorEvent(err))
	}
}

func (s *session) createRoom(ctx context.Context, raw json.RawMessage) error {
	var p createRoomPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	if err := s.releaseStale(ctx); err != nil {
		return err
	}
	m, err := s.coordinator.CreateRoom(ctx, app.CreateRoomRequest{
		RoomID:    p.RoomID,
		HostName:  s.displayName(p.HostName),
		UserID:    s.identity.UserID,
		TimeLimit: time.Duration(p.TimeLimitSeconds) * time.Second,
	}, s.client)
	if err != nil {
		return err
	}
	s.membership = &m
	return nil
}

func (s *session) joinRoom(ctx context.Context, raw json.RawMessage) error {
	var p joinRoomPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	if err := s.releaseStale(ctx); err != nil {
		return err
	}
	m, err := s.coordinator.JoinRoom(ctx, app.JoinRoomRequest{
		RoomID: p.RoomID,
		Name:   s.displayName(p.ParticipantName),
		UserID: s.identity.UserID,
	}, s.client)
	if err != nil {
		return err
	}
	s.membership = &m
	return nil
}

func (s *session) startQuiz(ctx context.Context, raw json.RawMessage) error {
	var p startQuizPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	m, err := s.member(p.RoomID)
	if err != nil {
		return err
	}
	return s.coordinator.StartQuiz(ctx, m, domain.QuizRequest{
		Subject:    p.Subject,
		Difficulty: p.Difficulty,
		Count:      p.Count,
	})
}

func (s *session) submit(ctx context.Context, raw json.RawMessage) error {
	var p submitPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidAnswerPayload, err)
	}
	m, err := s.member(p.RoomID)
	if err != nil {
		return err
	}
	_, err = s.coordinator.Submit(ctx, m, domain.Submission{
		Answers:               p.Answers,
		ClientReportedSeconds: p.ClientReportedTime,
	})
	return err
}

func (s *session) leaveRoom(ctx context.Context, raw json.RawMessage) error {
	var p leaveRoomPayload
	if len(raw) > 0 {
		if err := decode(raw, &p); err != nil {
			return err
		}
	}
	m, err := s.member(p.RoomID)
	if err != nil {
		return err
	}
	s.membership = nil
	return s.coordinator.Leave(ctx, m)
}

// member returns the session's membership, checking it matches roomID when one is given.
func (s *session) member(roomID string) (app.Membership, error) {
	if s.membership == nil {
		return app.Membership{}, domain.ErrParticipantNotFound
	}
	if roomID != "" && !strings.EqualFold(strings.TrimSpace(roomID), s.membership.RoomID) {
		return app.Membership{}, domain.ErrParticipantNotFound
	}
	return *s.membership, nil
}

// releaseStale drops a membership whose room has finished or gone, so the
// connection can move on to another room. A live membership blocks the request.
func (s *session) releaseStale(ctx context.Context) error {
	if s.membership == nil {
		return nil
	}
	snap, err := s.coordinator.GetRoom(s.membership.RoomID)
	if err == nil && snap.Status != domain.StatusFinished {
		return domain.ErrAlreadyInRoom
	}
	if err == nil {
		_ = s.coordinator.Leave(ctx, *s.membership)
	}
	s.membership = nil
	return nil
}

func (s *session) displayName(requested string) string {
	if s.identity.DisplayName != "" {
		return s.identity.DisplayName
	}
	return requested
}

func (s *session) close() {
	if s.membership != nil {
		s.coordinator.Disconnect(*s.membership, s.client)
	}
	s.client.close()
	log.Debug().Str("connection_id", s.client.id).Msg("connection closed")
}

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing payload", domain.ErrInvalidRequest)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return nil
}

func originChecker(allowOrigins []string) func(r *http.Request) bool {
	if len(allowOrigins) == 0 {
		return func(r *http.Request) bool { return true }
	}
	for _, origin := range allowOrigins {
		if origin == "*" {
			return func(r *http.Request) bool { return true }
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range allowOrigins {
			if strings.EqualFold(origin, allowed) {
				return true
			}
		}
		return false
	}
}
