package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
)

func TestRoomStoreReservesAndReleasesCodes(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewRoomStore(newClient(mr), time.Hour, "node-a")
	registry := app.NewRegistry(store, clockwork.NewFakeClock(), app.DefaultSettings(), nil)

	room, _, err := registry.CreateRoom(context.Background(), app.CreateRoomRequest{RoomID: "ROOM01", HostName: "Alice"}, nil)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if !mr.Exists("quiz:room:ROOM01") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("quiz:room:ROOM01"); ttl != time.Hour {
		t.Fatalf("expected reservation ttl 1h, got %s", ttl)
	}

	store.Delete(context.Background(), room.Code())
	if mr.Exists("quiz:room:ROOM01") {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestRoomStoreRejectsCodeHeldByAnotherInstance(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	if err := mr.Set("quiz:room:TAKEN1", "node-b"); err != nil {
		t.Fatalf("seed key: %v", err)
	}

	store := NewRoomStore(newClient(mr), time.Hour, "node-a")
	registry := app.NewRegistry(store, clockwork.NewFakeClock(), app.DefaultSettings(), nil)

	_, _, err = registry.CreateRoom(context.Background(), app.CreateRoomRequest{RoomID: "TAKEN1", HostName: "Alice"}, nil)
	if !errors.Is(err, domain.ErrDuplicateRoomID) {
		t.Fatalf("expected duplicate room id, got %v", err)
	}
	if len(store.List()) != 0 {
		t.Fatalf("expected no local room")
	}
}

func TestRoomStoreLookupsDoNotWaitOnReservation(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	store := NewRoomStore(client, time.Hour, "node-a")
	registry := app.NewRegistry(store, clockwork.NewFakeClock(), app.DefaultSettings(), nil)
	ctx := context.Background()

	if _, _, err := registry.CreateRoom(ctx, app.CreateRoomRequest{RoomID: "ROOM01", HostName: "Alice"}, nil); err != nil {
		t.Fatalf("create room: %v", err)
	}

	gate := &setGate{entered: make(chan struct{}, 1), release: make(chan struct{})}
	client.AddHook(gate)

	created := make(chan error, 1)
	go func() {
		_, _, err := registry.CreateRoom(ctx, app.CreateRoomRequest{RoomID: "ROOM02", HostName: "Bob"}, nil)
		created <- err
	}()

	select {
	case <-gate.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("reservation never reached redis")
	}

	found := make(chan bool, 1)
	go func() {
		_, ok := store.Get("ROOM01")
		found <- ok
	}()
	select {
	case ok := <-found:
		if !ok {
			t.Fatalf("expected ROOM01 to be found")
		}
	case <-time.After(time.Second):
		t.Fatalf("lookup blocked behind an in-flight reservation")
	}

	close(gate.release)
	if err := <-created; err != nil {
		t.Fatalf("create second room: %v", err)
	}
	if len(store.List()) != 2 {
		t.Fatalf("expected 2 local rooms, got %d", len(store.List()))
	}
}

func TestRoomStoreRejectsLiveCodeAfterReservationExpired(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewRoomStore(newClient(mr), time.Minute, "node-a")
	registry := app.NewRegistry(store, clockwork.NewFakeClock(), app.DefaultSettings(), nil)
	ctx := context.Background()

	first, _, err := registry.CreateRoom(ctx, app.CreateRoomRequest{RoomID: "ROOM01", HostName: "Alice"}, nil)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if mr.Exists("quiz:room:ROOM01") {
		t.Fatalf("expected reservation to expire")
	}

	if _, _, err := registry.CreateRoom(ctx, app.CreateRoomRequest{RoomID: "ROOM01", HostName: "Bob"}, nil); !errors.Is(err, domain.ErrDuplicateRoomID) {
		t.Fatalf("expected duplicate room id, got %v", err)
	}
	if room, ok := store.Get("ROOM01"); !ok || room != first {
		t.Fatalf("expected the original room to stay registered")
	}
}

// setGate holds SET commands until release is closed.
type setGate struct {
	entered chan struct{}
	release chan struct{}
}

func (g *setGate) DialHook(next redis.DialHook) redis.DialHook { return next }

func (g *setGate) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "set" {
			select {
			case g.entered <- struct{}{}:
			default:
			}
			<-g.release
		}
		return next(ctx, cmd)
	}
}

func (g *setGate) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
