package app

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"quizroom-service/internal/domain"
)

const waitTimeout = 2 * time.Second

// recorder is a Connection that keeps every event it is sent.
type recorder struct {
	id     string
	mu     sync.Mutex
	events []domain.Event
	notify chan struct{}
}

func newRecorder(id string) *recorder {
	return &recorder{id: id, notify: make(chan struct{}, 1)}
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Send(evt domain.Event) bool {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
	return true
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, evt := range r.events {
		out[i] = evt.Type
	}
	return out
}

func (r *recorder) count(typ string) int {
	n := 0
	for _, got := range r.types() {
		if got == typ {
			n++
		}
	}
	return n
}

func (r *recorder) last(typ string) (domain.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == typ {
			return r.events[i], true
		}
	}
	return domain.Event{}, false
}

// waitFor blocks until an event of typ has been received.
func (r *recorder) waitFor(t *testing.T, typ string) domain.Event {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		if evt, ok := r.last(typ); ok {
			return evt
		}
		select {
		case <-r.notify:
		case <-deadline:
			t.Fatalf("%s: no %s event, got %v", r.id, typ, r.types())
		}
	}
}

// fakeRooms is a map-backed RoomRepository.
type fakeRooms struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{rooms: make(map[string]*Room)}
}

func (f *fakeRooms) Insert(_ context.Context, room *Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[room.Code()]; ok {
		return domain.ErrDuplicateRoomID
	}
	f.rooms[room.Code()] = room
	return nil
}

func (f *fakeRooms) Get(code string) (*Room, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[code]
	return room, ok
}

func (f *fakeRooms) Delete(_ context.Context, code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, code)
}

func (f *fakeRooms) List() []*Room {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Room, 0, len(f.rooms))
	for _, room := range f.rooms {
		out = append(out, room)
	}
	return out
}

func (f *fakeRooms) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rooms)
}

// staticSource hands out a fixed quiz. When gate is set, calls block until it is closed.
type staticSource struct {
	quiz  []domain.QuizItem
	err   error
	gate  chan struct{}
	calls atomic.Int32
	last  atomic.Value
}

func (s *staticSource) GenerateQuiz(ctx context.Context, req domain.QuizRequest) ([]domain.QuizItem, error) {
	s.calls.Add(1)
	s.last.Store(req)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.quiz, s.err
}

// recordingSink collects published results.
type recordingSink struct {
	results chan domain.RoomResult
}

func newRecordingSink() *recordingSink {
	return &recordingSink{results: make(chan domain.RoomResult, 16)}
}

func (s *recordingSink) Publish(_ context.Context, result domain.RoomResult) error {
	s.results <- result
	return nil
}

func (s *recordingSink) next(t *testing.T) domain.RoomResult {
	t.Helper()
	select {
	case result := <-s.results:
		return result
	case <-time.After(waitTimeout):
		t.Fatalf("no result published")
		return domain.RoomResult{}
	}
}

func (s *recordingSink) expectNone(t *testing.T) {
	t.Helper()
	select {
	case result := <-s.results:
		t.Fatalf("unexpected extra result %+v", result)
	case <-time.After(50 * time.Millisecond):
	}
}

func sampleQuiz() []domain.QuizItem {
	return []domain.QuizItem{
		{Question: "What is 2 + 2?", Options: []string{"3", "4", "5"}, Answer: "4"},
		{Question: "Capital of France?", Options: []string{"Paris", "Rome", "Madrid"}, Answer: "Paris"},
		{Question: "Colour of a clear sky?", Options: []string{"Blue", "Green", "Red"}, Answer: "Blue"},
	}
}

var (
	allCorrect = []string{"4", "Paris", "Blue"}
	twoCorrect = []string{"4", "Paris", "Green"}
	oneCorrect = []string{"4", "", "Red"}
)

func testSettings() Settings {
	s := DefaultSettings()
	s.DefaultTimeLimit = 60 * time.Second
	return s
}

type harness struct {
	coordinator *Coordinator
	clock       *clockwork.FakeClock
	source      *staticSource
	sink        *recordingSink
	rooms       *fakeRooms
}

func newHarness(t *testing.T, settings Settings) *harness {
	t.Helper()
	h := &harness{
		clock:  clockwork.NewFakeClockAt(time.Date(2025, 2, 10, 12, 0, 0, 0, time.UTC)),
		source: &staticSource{quiz: sampleQuiz()},
		sink:   newRecordingSink(),
		rooms:  newFakeRooms(),
	}
	h.coordinator = NewCoordinator(h.rooms, h.source, h.sink, h.clock, settings)
	return h
}

// player is a participant together with its connection.
type player struct {
	Membership
	conn *recorder
}

func (h *harness) create(t *testing.T, name string) player {
	t.Helper()
	conn := newRecorder(name)
	m, err := h.coordinator.CreateRoom(context.Background(), CreateRoomRequest{HostName: name}, conn)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return player{Membership: m, conn: conn}
}

func (h *harness) join(t *testing.T, roomID, name string) player {
	t.Helper()
	conn := newRecorder(name)
	m, err := h.coordinator.JoinRoom(context.Background(), JoinRoomRequest{RoomID: roomID, Name: name}, conn)
	if err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	return player{Membership: m, conn: conn}
}

func (h *harness) start(t *testing.T, host player) {
	t.Helper()
	if err := h.coordinator.StartQuiz(context.Background(), host.Membership, domain.QuizRequest{Subject: "general"}); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
}

func (h *harness) submit(t *testing.T, p player, answers []string) domain.SubmitReceipt {
	t.Helper()
	receipt, err := h.coordinator.Submit(context.Background(), p.Membership, domain.Submission{Answers: answers, ClientReportedSeconds: 1})
	if err != nil {
		t.Fatalf("submit %s: %v", p.conn.id, err)
	}
	return receipt
}

func (h *harness) room(t *testing.T, code string) *Room {
	t.Helper()
	room, err := h.coordinator.Registry().GetRoom(code)
	if err != nil {
		t.Fatalf("get room %s: %v", code, err)
	}
	return room
}

func endedPayload(t *testing.T, conn *recorder) domain.QuizEndedPayload {
	t.Helper()
	return conn.waitFor(t, domain.EventQuizEnded).Payload.(domain.QuizEndedPayload)
}
