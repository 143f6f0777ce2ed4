package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"quiz-room-service/internal/domain"
)

const (
	fieldHost      = "host"
	fieldMembers   = "members"
	fieldStatus    = "status"
	fieldGameState = "gameState"

	roomKeyPrefix = "room:"
)

// RoomStore keeps each room as a Redis hash (room:{phrase} with host,
// members, status and gameState fields; members and gameState are JSON) and
// each per-question leaderboard as a sorted set (scores:{phrase}:{round},
// entry JSON keyed by cumulative score). Every method maps to a single
// Redis command or a short pipeline; nothing here is transactional across
// calls.
type RoomStore struct {
	client *redis.Client
}

func NewRoomStore(client *redis.Client) *RoomStore {
	return &RoomStore{client: client}
}

func (s *RoomStore) RoomExists(ctx context.Context, phrase string) (bool, error) {
	n, err := s.client.Exists(ctx, roomKey(phrase)).Result()
	if err != nil {
		return false, fmt.Errorf("exists %q: %w", phrase, err)
	}
	return n > 0, nil
}

func (s *RoomStore) PutRoom(ctx context.Context, room domain.Room) error {
	members, err := json.Marshal(room.Members)
	if err != nil {
		return fmt.Errorf("encode members: %w", err)
	}
	err = s.client.HSet(ctx, roomKey(room.Phrase), map[string]any{
		fieldHost:    room.Host,
		fieldMembers: string(members),
		fieldStatus:  string(room.Status),
	}).Err()
	if err != nil {
		return fmt.Errorf("put room %q: %w", room.Phrase, err)
	}
	return nil
}

func (s *RoomStore) Room(ctx context.Context, phrase string) (domain.Room, error) {
	fields, err := s.client.HGetAll(ctx, roomKey(phrase)).Result()
	if err != nil {
		return domain.Room{}, fmt.Errorf("get room %q: %w", phrase, err)
	}
	if len(fields) == 0 {
		return domain.Room{}, domain.ErrRoomNotFound
	}

	var members []domain.Member
	if raw := fields[fieldMembers]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &members); err != nil {
			return domain.Room{}, fmt.Errorf("decode members of %q: %w", phrase, err)
		}
	}
	return domain.Room{
		Phrase:  phrase,
		Host:    fields[fieldHost],
		Members: members,
		Status:  domain.RoomStatus(fields[fieldStatus]),
	}, nil
}

func (s *RoomStore) SetMembers(ctx context.Context, phrase string, members []domain.Member) error {
	raw, err := json.Marshal(members)
	if err != nil {
		return fmt.Errorf("encode members: %w", err)
	}
	return s.client.HSet(ctx, roomKey(phrase), fieldMembers, string(raw)).Err()
}

func (s *RoomStore) SetStatus(ctx context.Context, phrase string, status domain.RoomStatus) error {
	return s.client.HSet(ctx, roomKey(phrase), fieldStatus, string(status)).Err()
}

func (s *RoomStore) DeleteRoom(ctx context.Context, phrase string) error {
	return s.client.Del(ctx, roomKey(phrase)).Err()
}

func (s *RoomStore) GameState(ctx context.Context, phrase string) (domain.GameState, error) {
	raw, err := s.client.HGet(ctx, roomKey(phrase), fieldGameState).Result()
	if err == redis.Nil {
		return domain.GameState{}, domain.ErrGameStateMissing
	}
	if err != nil {
		return domain.GameState{}, fmt.Errorf("get game state %q: %w", phrase, err)
	}
	var state domain.GameState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return domain.GameState{}, fmt.Errorf("decode game state of %q: %w", phrase, err)
	}
	return state, nil
}

func (s *RoomStore) SetGameState(ctx context.Context, phrase string, state domain.GameState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode game state: %w", err)
	}
	return s.client.HSet(ctx, roomKey(phrase), fieldGameState, string(raw)).Err()
}

func (s *RoomStore) DeleteGameState(ctx context.Context, phrase string) error {
	return s.client.HDel(ctx, roomKey(phrase), fieldGameState).Err()
}

func (s *RoomStore) ReplaceLeaderboard(ctx context.Context, phrase string, round int, entries []domain.RankedEntry) error {
	key := scoresKey(phrase, round)
	pipe := s.client.Pipeline()
	pipe.Del(ctx, key)
	for _, e := range entries {
		raw, err := json.Marshal(e.Entry)
		if err != nil {
			return fmt.Errorf("encode score entry: %w", err)
		}
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(e.Score), Member: string(raw)})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replace leaderboard %s: %w", key, err)
	}
	return nil
}

func (s *RoomStore) Leaderboard(ctx context.Context, phrase string, round int) ([]domain.RankedEntry, error) {
	key := scoresKey(phrase, round)
	zs, err := s.client.ZRevRangeWithScores(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard %s: %w", key, err)
	}
	entries := make([]domain.RankedEntry, 0, len(zs))
	for _, z := range zs {
		raw, _ := z.Member.(string)
		var entry domain.ScoreEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("decode score entry: %w", err)
		}
		entries = append(entries, domain.RankedEntry{Entry: entry, Score: int(z.Score)})
	}
	return entries, nil
}

// BumpLeaderboardScore increments one ranked member in place (ZINCRBY) and
// returns the new score. The scoring path rebuilds boards wholesale and
// does not use this; it exists for ops tooling that adjusts a board without
// replaying a question.
func (s *RoomStore) BumpLeaderboardScore(ctx context.Context, phrase string, round int, entry domain.ScoreEntry, delta int) (int, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return 0, fmt.Errorf("encode score entry: %w", err)
	}
	score, err := s.client.ZIncrBy(ctx, scoresKey(phrase, round), float64(delta), string(raw)).Result()
	if err != nil {
		return 0, fmt.Errorf("bump leaderboard: %w", err)
	}
	return int(score), nil
}

// RoomPhrases scans for room:* keys and returns the bare phrases.
func (s *RoomStore) RoomPhrases(ctx context.Context) ([]string, error) {
	var phrases []string
	iter := s.client.Scan(ctx, 0, roomKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		phrases = append(phrases, strings.TrimPrefix(iter.Val(), roomKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan rooms: %w", err)
	}
	return phrases, nil
}

func roomKey(phrase string) string {
	return roomKeyPrefix + phrase
}

func scoresKey(phrase string, round int) string {
	return fmt.Sprintf("scores:%s:%d", phrase, round)
}
