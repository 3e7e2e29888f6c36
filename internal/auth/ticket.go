package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const ticketUsage = "websocket_auth"

var (
	ErrTicketExpired = errors.New("ticket expired")
	ErrTicketInvalid = errors.New("ticket invalid")
)

// TicketClaims identify the participant opening a websocket.
type TicketClaims struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"name"`
	Usage       string `json:"usage"`
	jwt.RegisteredClaims
}

// Identity is what the gateway learns from a valid ticket.
type Identity struct {
	UserID      string
	DisplayName string
}

// TicketService issues and verifies short-lived HS256 websocket tickets.
type TicketService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTicketService(secret string, ttl time.Duration) (*TicketService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("ticket secret is empty")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &TicketService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue mints a ticket for userID. name becomes the participant's display name.
func (s *TicketService) Issue(userID, name string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: user id is required", ErrTicketInvalid)
	}
	now := s.now()
	claims := TicketClaims{
		UserID:      userID,
		DisplayName: name,
		Usage:       ticketUsage,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign ticket: %w", err)
	}
	return signed, nil
}

// Parse verifies a ticket and returns the identity it carries.
func (s *TicketService) Parse(ticket string) (Identity, error) {
	claims := &TicketClaims{}
	_, err := jwt.ParseWithClaims(ticket, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return Identity{}, ErrTicketExpired
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrTicketInvalid, err)
	}
	if claims.Usage != ticketUsage {
		return Identity{}, fmt.Errorf("%w: wrong usage %q", ErrTicketInvalid, claims.Usage)
	}
	if claims.UserID == "" {
		return Identity{}, fmt.Errorf("%w: missing user id", ErrTicketInvalid)
	}
	return Identity{UserID: claims.UserID, DisplayName: claims.DisplayName}, nil
}
