package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"quiz-room-service/internal/domain"
)

// RoomStore is an in-memory implementation of app.RoomStore, mirroring the
// Redis layout field for field. Game state round-trips through JSON exactly
// as the Redis store serializes it, so nothing aliases the caller's maps.
type RoomStore struct {
	mu           sync.RWMutex
	rooms        map[string]*storedRoom
	leaderboards map[string][]domain.RankedEntry
}

type storedRoom struct {
	host    string
	members string // JSON, like the Redis hash field
	status  domain.RoomStatus
	game    string // JSON game state; empty = field absent
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms:        make(map[string]*storedRoom),
		leaderboards: make(map[string][]domain.RankedEntry),
	}
}

func (s *RoomStore) RoomExists(_ context.Context, phrase string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[phrase]
	return ok, nil
}

func (s *RoomStore) PutRoom(_ context.Context, room domain.Room) error {
	raw, err := json.Marshal(room.Members)
	if err != nil {
		return fmt.Errorf("encode members: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.Phrase] = &storedRoom{
		host:    room.Host,
		members: string(raw),
		status:  room.Status,
	}
	return nil
}

func (s *RoomStore) Room(_ context.Context, phrase string) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.rooms[phrase]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	var members []domain.Member
	if stored.members != "" {
		if err := json.Unmarshal([]byte(stored.members), &members); err != nil {
			return domain.Room{}, fmt.Errorf("decode members of %q: %w", phrase, err)
		}
	}
	return domain.Room{
		Phrase:  phrase,
		Host:    stored.host,
		Members: members,
		Status:  stored.status,
	}, nil
}

func (s *RoomStore) SetMembers(_ context.Context, phrase string, members []domain.Member) error {
	raw, err := json.Marshal(members)
	if err != nil {
		return fmt.Errorf("encode members: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[phrase]
	if !ok {
		room = &storedRoom{}
		s.rooms[phrase] = room
	}
	room.members = string(raw)
	return nil
}

func (s *RoomStore) SetStatus(_ context.Context, phrase string, status domain.RoomStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[phrase]
	if !ok {
		room = &storedRoom{}
		s.rooms[phrase] = room
	}
	room.status = status
	return nil
}

func (s *RoomStore) DeleteRoom(_ context.Context, phrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, phrase)
	return nil
}

func (s *RoomStore) GameState(_ context.Context, phrase string) (domain.GameState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[phrase]
	if !ok || room.game == "" {
		return domain.GameState{}, domain.ErrGameStateMissing
	}
	var state domain.GameState
	if err := json.Unmarshal([]byte(room.game), &state); err != nil {
		return domain.GameState{}, fmt.Errorf("decode game state of %q: %w", phrase, err)
	}
	return state, nil
}

func (s *RoomStore) SetGameState(_ context.Context, phrase string, state domain.GameState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode game state: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[phrase]
	if !ok {
		room = &storedRoom{}
		s.rooms[phrase] = room
	}
	room.game = string(raw)
	return nil
}

func (s *RoomStore) DeleteGameState(_ context.Context, phrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[phrase]; ok {
		room.game = ""
	}
	return nil
}

func (s *RoomStore) ReplaceLeaderboard(_ context.Context, phrase string, round int, entries []domain.RankedEntry) error {
	ranked := make([]domain.RankedEntry, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaderboards[leaderboardKey(phrase, round)] = ranked
	return nil
}

func (s *RoomStore) Leaderboard(_ context.Context, phrase string, round int) ([]domain.RankedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.leaderboards[leaderboardKey(phrase, round)]
	out := make([]domain.RankedEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (s *RoomStore) RoomPhrases(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	phrases := make([]string, 0, len(s.rooms))
	for phrase := range s.rooms {
		phrases = append(phrases, phrase)
	}
	return phrases, nil
}

func leaderboardKey(phrase string, round int) string {
	return fmt.Sprintf("%s:%d", phrase, round)
}
