package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestTicketRoundTrip(t *testing.T) {
	svc, err := NewTicketService("secret", time.Minute)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ticket, err := svc.Issue("user-1", "Alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	id, err := svc.Parse(ticket)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id.UserID != "user-1" || id.DisplayName != "Alice" {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestTicketExpired(t *testing.T) {
	svc, _ := NewTicketService("secret", time.Minute)
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }

	ticket, err := svc.Issue("user-1", "Alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Parse(ticket); !errors.Is(err, ErrTicketExpired) {
		t.Fatalf("expected expired ticket, got %v", err)
	}
}

func TestTicketRejectsOtherSecretAndUsage(t *testing.T) {
	svc, _ := NewTicketService("secret", time.Minute)
	other, _ := NewTicketService("other", time.Minute)

	ticket, _ := other.Issue("user-1", "Alice")
	if _, err := svc.Parse(ticket); !errors.Is(err, ErrTicketInvalid) {
		t.Fatalf("expected invalid ticket for foreign secret, got %v", err)
	}

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, TicketClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	signed, err := access.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := svc.Parse(signed); !errors.Is(err, ErrTicketInvalid) {
		t.Fatalf("expected invalid ticket for missing usage, got %v", err)
	}
}
