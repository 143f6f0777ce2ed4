package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/infra/memory"
)

func newRoomService(bus *recordingBus) (*app.RoomService, *memory.RoomStore) {
	store := memory.NewRoomStore()
	return app.NewRoomService(store, bus, app.NewTimerTable(), 6), store
}

func TestCreateRoomRejectsDuplicatePhrase(t *testing.T) {
	ctx := context.Background()
	bus := &recordingBus{}
	rooms, store := newRoomService(bus)

	if err := rooms.Create(ctx, "ABC123", domain.Member{ID: "u1", Name: "Alice"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := rooms.Create(ctx, "ABC123", domain.Member{ID: "u2", Name: "Bob"})
	if !errors.Is(err, domain.ErrRoomExists) {
		t.Fatalf("expected ErrRoomExists, got %v", err)
	}

	room, err := store.Room(ctx, "ABC123")
	if err != nil {
		t.Fatalf("room: %v", err)
	}
	if room.Host != "u1" || len(room.Members) != 1 {
		t.Fatalf("first creation clobbered: %+v", room)
	}
}

func TestJoinEnforcesCapacityAndUniqueness(t *testing.T) {
	ctx := context.Background()
	bus := &recordingBus{}
	rooms, store := newRoomService(bus)

	if err := rooms.Create(ctx, "ABC123", domain.Member{ID: "u1", Name: "Alice"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 2; i <= 6; i++ {
		m := domain.Member{ID: fmt.Sprintf("u%d", i), Name: fmt.Sprintf("User%d", i)}
		if err := rooms.Join(ctx, "ABC123", m); err != nil {
			t.Fatalf("join %s: %v", m.ID, err)
		}
	}

	err := rooms.Join(ctx, "ABC123", domain.Member{ID: "u7", Name: "User7"})
	if !errors.Is(err, domain.ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull for seventh member, got %v", err)
	}

	// Re-joining is an idempotent success even at capacity.
	if err := rooms.Join(ctx, "ABC123", domain.Member{ID: "u3", Name: "User3"}); err != nil {
		t.Fatalf("re-join: %v", err)
	}

	room, _ := store.Room(ctx, "ABC123")
	if len(room.Members) != 6 {
		t.Fatalf("expected 6 members, got %d", len(room.Members))
	}
	seen := map[string]bool{}
	for _, m := range room.Members {
		if seen[m.ID] {
			t.Fatalf("duplicate member %s", m.ID)
		}
		seen[m.ID] = true
	}
	// Join order is insertion order.
	if room.Members[0].ID != "u1" || room.Members[5].ID != "u6" {
		t.Fatalf("join order not preserved: %+v", room.Members)
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	bus := &recordingBus{}
	rooms, _ := newRoomService(bus)
	err := rooms.Join(context.Background(), "nope", domain.Member{ID: "u1"})
	if !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestHostLeaveDeletesRoom(t *testing.T) {
	ctx := context.Background()
	bus := &recordingBus{}
	rooms, store := newRoomService(bus)

	_ = rooms.Create(ctx, "ABC123", domain.Member{ID: "u1", Name: "Alice"})
	_ = rooms.Join(ctx, "ABC123", domain.Member{ID: "u2", Name: "Bob"})

	deleted, err := rooms.Leave(ctx, "ABC123", "u1")
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if !deleted {
		t.Fatalf("expected host leave to delete the room")
	}
	if bus.count("ABC123", app.EventRoomDeleted) != 1 {
		t.Fatalf("expected roomDeleted broadcast")
	}
	if exists, _ := store.RoomExists(ctx, "ABC123"); exists {
		t.Fatalf("room record should be gone")
	}
}

func TestMemberLeaveKeepsRoom(t *testing.T) {
	ctx := context.Background()
	bus := &recordingBus{}
	rooms, store := newRoomService(bus)

	_ = rooms.Create(ctx, "ABC123", domain.Member{ID: "u1", Name: "Alice"})
	_ = rooms.Join(ctx, "ABC123", domain.Member{ID: "u2", Name: "Bob"})

	deleted, err := rooms.Leave(ctx, "ABC123", "u2")
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if deleted {
		t.Fatalf("non-host leave must not delete the room")
	}
	room, _ := store.Room(ctx, "ABC123")
	if len(room.Members) != 1 || room.Members[0].ID != "u1" {
		t.Fatalf("unexpected members after leave: %+v", room.Members)
	}
	if bus.count("ABC123", app.EventUpdateRoom) == 0 {
		t.Fatalf("expected updateRoom broadcast after leave")
	}
}

func TestLastMemberLeaveDeletesRoom(t *testing.T) {
	ctx := context.Background()
	bus := &recordingBus{}
	rooms, store := newRoomService(bus)

	_ = rooms.Create(ctx, "ABC123", domain.Member{ID: "u1", Name: "Alice"})
	// A room whose host record is stale: only u2 remains in the sequence.
	_ = store.SetMembers(ctx, "ABC123", []domain.Member{{ID: "u2", Name: "Bob"}})

	deleted, err := rooms.Leave(ctx, "ABC123", "u2")
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if !deleted {
		t.Fatalf("expected empty room to be deleted, not stored empty")
	}
}

func TestSnapshotRequiresMembership(t *testing.T) {
	ctx := context.Background()
	bus := &recordingBus{}
	rooms, _ := newRoomService(bus)

	_ = rooms.Create(ctx, "ABC123", domain.Member{ID: "u1", Name: "Alice"})

	view, err := rooms.Snapshot(ctx, "ABC123", "u1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if view.Host != "u1" || view.Status != domain.StatusWaiting {
		t.Fatalf("unexpected view: %+v", view)
	}

	if _, err := rooms.Snapshot(ctx, "ABC123", "stranger"); !errors.Is(err, domain.ErrNotAMember) {
		t.Fatalf("expected ErrNotAMember, got %v", err)
	}
	if _, err := rooms.Snapshot(ctx, "nope", "u1"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

// recordingBus captures broadcasts for assertions. Timer goroutines publish
// concurrently with the test, so it locks.
type recordingBus struct {
	mu     sync.Mutex
	events []busEvent
}

type busEvent struct {
	room    string
	event   string
	payload any
}

func (b *recordingBus) ToRoom(room, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, busEvent{room: room, event: event, payload: payload})
}

func (b *recordingBus) count(room, event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.room == room && e.event == event {
			n++
		}
	}
	return n
}

func (b *recordingBus) last(room, event string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.events) - 1; i >= 0; i-- {
		if b.events[i].room == room && b.events[i].event == event {
			return b.events[i].payload, true
		}
	}
	return nil, false
}
