package app

import (
	"context"
	"log"

	"quiz-room-service/internal/domain"
)

// RoomService owns room existence and membership: creation, joins, leaves
// and snapshot reads. Mutations go straight through to the store; the
// controller caches nothing between events.
type RoomService struct {
	store      RoomStore
	bus        Broadcaster
	timers     *TimerTable
	maxMembers int
}

func NewRoomService(store RoomStore, bus Broadcaster, timers *TimerTable, maxMembers int) *RoomService {
	return &RoomService{
		store:      store,
		bus:        bus,
		timers:     timers,
		maxMembers: maxMembers,
	}
}

// Create registers a new room keyed by phrase with host as its only member.
func (s *RoomService) Create(ctx context.Context, phrase string, host domain.Member) error {
	exists, err := s.store.RoomExists(ctx, phrase)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrRoomExists
	}
	room := domain.Room{
		Phrase:  phrase,
		Host:    host.ID,
		Members: []domain.Member{host},
		Status:  domain.StatusWaiting,
	}
	if err := s.store.PutRoom(ctx, room); err != nil {
		return err
	}
	log.Printf("room %q created by %s", phrase, host.ID)
	return nil
}

// Join appends m to the room's member sequence. Joining a room one is
// already in is a successful no-op.
func (s *RoomService) Join(ctx context.Context, phrase string, m domain.Member) error {
	room, err := s.store.Room(ctx, phrase)
	if err != nil {
		return err
	}
	if room.HasMember(m.ID) {
		return nil
	}
	if len(room.Members) >= s.maxMembers {
		return domain.ErrRoomFull
	}
	return s.store.SetMembers(ctx, phrase, append(room.Members, m))
}

// Leave removes userID from the room. The host leaving, or the last member
// leaving, deletes the room outright; either way any live timer for the
// room is cancelled. Reports whether the room was deleted.
func (s *RoomService) Leave(ctx context.Context, phrase, userID string) (bool, error) {
	room, err := s.store.Room(ctx, phrase)
	if err != nil {
		return false, err
	}

	s.timers.Cancel(phrase)

	if room.Host == userID {
		if err := s.store.DeleteRoom(ctx, phrase); err != nil {
			return false, err
		}
		s.bus.ToRoom(phrase, EventRoomDeleted, nil)
		log.Printf("room %q deleted: host left", phrase)
		return true, nil
	}

	remaining := make([]domain.Member, 0, len(room.Members))
	for _, m := range room.Members {
		if m.ID != userID {
			remaining = append(remaining, m)
		}
	}
	if len(remaining) == 0 {
		if err := s.store.DeleteRoom(ctx, phrase); err != nil {
			return false, err
		}
		s.bus.ToRoom(phrase, EventRoomDeleted, nil)
		log.Printf("room %q deleted: empty", phrase)
		return true, nil
	}
	if err := s.store.SetMembers(ctx, phrase, remaining); err != nil {
		return false, err
	}
	s.publish(ctx, phrase)
	return false, nil
}

// Snapshot returns the room view for an existing member. Authorization is
// the membership list itself; no stronger identity check exists.
func (s *RoomService) Snapshot(ctx context.Context, phrase, requesterID string) (RoomView, error) {
	room, err := s.store.Room(ctx, phrase)
	if err != nil {
		return RoomView{}, err
	}
	if !room.HasMember(requesterID) {
		return RoomView{}, domain.ErrNotAMember
	}
	return RoomView{Host: room.Host, Members: room.Members, Status: room.Status}, nil
}

// Publish broadcasts the current room view to all subscribers. The
// transport calls this after it has subscribed the acting connection, so
// the actor sees the update too.
func (s *RoomService) Publish(ctx context.Context, phrase string) {
	s.publish(ctx, phrase)
}

func (s *RoomService) publish(ctx context.Context, phrase string) {
	room, err := s.store.Room(ctx, phrase)
	if err != nil {
		log.Printf("publish room %q: %v", phrase, err)
		return
	}
	s.bus.ToRoom(phrase, EventUpdateRoom, RoomView{
		Host:    room.Host,
		Members: room.Members,
		Status:  room.Status,
	})
}
