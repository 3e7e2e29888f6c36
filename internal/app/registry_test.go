package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"quizroom-service/internal/domain"
)

func TestGeneratedRoomCodes(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := generateRoomCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != roomCodeLength {
			t.Fatalf("unexpected code length %q", code)
		}
		for _, r := range code {
			if !strings.ContainsRune(roomCodeAlphabet, r) {
				t.Fatalf("code %q uses %q outside the alphabet", code, r)
			}
		}
		seen[code] = true
	}
	if len(seen) < 190 {
		t.Fatalf("codes collide too often: %d unique of 200", len(seen))
	}
}

func TestCreateRoomRetriesCollisions(t *testing.T) {
	h := newHarness(t, testSettings())
	registry := h.coordinator.Registry()
	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	registry.newCode = func() (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}

	ctx := context.Background()
	first, _, err := registry.CreateRoom(ctx, CreateRoomRequest{HostName: "A"}, nil)
	if err != nil || first.Code() != "AAAAAA" {
		t.Fatalf("first create: %v %v", first, err)
	}
	second, _, err := registry.CreateRoom(ctx, CreateRoomRequest{HostName: "B"}, nil)
	if err != nil || second.Code() != "BBBBBB" {
		t.Fatalf("expected retry onto BBBBBB, got %v %v", second, err)
	}

	registry.newCode = func() (string, error) { return "AAAAAA", nil }
	if _, _, err := registry.CreateRoom(ctx, CreateRoomRequest{HostName: "C"}, nil); !errors.Is(err, domain.ErrDuplicateRoomID) {
		t.Fatalf("expected duplicate after exhausting retries, got %v", err)
	}
}

func TestCreateRoomWithChosenCode(t *testing.T) {
	h := newHarness(t, testSettings())
	ctx := context.Background()

	m, err := h.coordinator.CreateRoom(ctx, CreateRoomRequest{RoomID: " party1 ", HostName: "Host"}, newRecorder("host"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.RoomID != "PARTY1" {
		t.Fatalf("expected normalized code, got %s", m.RoomID)
	}
	if _, err := h.coordinator.CreateRoom(ctx, CreateRoomRequest{RoomID: "PARTY1", HostName: "Other"}, newRecorder("other")); !errors.Is(err, domain.ErrDuplicateRoomID) {
		t.Fatalf("expected duplicate room id, got %v", err)
	}
	if _, err := h.coordinator.CreateRoom(ctx, CreateRoomRequest{HostName: ""}, newRecorder("nobody")); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
	if snap, err := h.coordinator.GetRoom("party1"); err != nil || snap.Host.ID != m.ParticipantID {
		t.Fatalf("lookup should be case-insensitive: %+v %v", snap, err)
	}
}

func TestSweepRemovesIdleAndFinishedRooms(t *testing.T) {
	settings := testSettings()
	settings.WaitingTTL = 10 * time.Minute
	settings.FinishedRetention = 2 * time.Minute
	h := newHarness(t, settings)
	ctx := context.Background()

	idle := h.create(t, "Idle")
	done := h.create(t, "Done")
	h.start(t, done)
	h.submit(t, done, allCorrect)
	h.sink.next(t)

	h.clock.Advance(3 * time.Minute)
	if removed := h.coordinator.Registry().Sweep(ctx); removed != 1 {
		t.Fatalf("expected finished room swept, removed %d", removed)
	}
	if _, err := h.coordinator.GetRoom(done.RoomID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("finished room should be gone, got %v", err)
	}

	h.clock.Advance(8 * time.Minute)
	h.coordinator.Registry().Sweep(ctx)
	if _, err := h.coordinator.GetRoom(idle.RoomID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("idle waiting room should be gone, got %v", err)
	}
	if data := idle.conn.waitFor(t, domain.EventRoomData).Payload.(domain.RoomDataPayload); data.Message != "room closed after inactivity" {
		t.Fatalf("expected closing notice, got %q", data.Message)
	}
}

func TestSweepForceFinishesStalledRoom(t *testing.T) {
	h := newHarness(t, testSettings())
	host := h.create(t, "Host")
	h.start(t, host)

	room := h.room(t, host.RoomID)
	room.mu.Lock()
	room.timer.Stop()
	room.mu.Unlock()

	h.clock.Advance(100 * time.Second)
	h.coordinator.Registry().Sweep(context.Background())
	if room.Status() != domain.StatusFinished {
		t.Fatalf("stalled room should be finished")
	}
	if result := h.sink.next(t); result.Reason != domain.FinishStalled {
		t.Fatalf("expected stalled, got %s", result.Reason)
	}
}

func TestRunSweeperUsesClock(t *testing.T) {
	settings := testSettings()
	settings.WaitingTTL = time.Minute
	settings.SweepInterval = 30 * time.Second
	h := newHarness(t, settings)
	h.create(t, "Idle")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.coordinator.RunSweeper(ctx) }()

	if err := h.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("sweeper never started: %v", err)
	}
	deadline := time.Now().Add(waitTimeout)
	for h.rooms.len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("sweeper did not remove the idle room")
		}
		h.clock.Advance(settings.SweepInterval)
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("sweeper: %v", err)
	}
}

func TestShutdownAbandonsActiveRooms(t *testing.T) {
	h := newHarness(t, testSettings())
	host := h.create(t, "Host")
	h.start(t, host)

	h.coordinator.Shutdown(context.Background())
	if result := h.sink.next(t); result.Reason != domain.FinishAbandoned {
		t.Fatalf("expected abandoned, got %s", result.Reason)
	}
	if h.rooms.len() != 0 {
		t.Fatalf("expected every room removed")
	}
}
