package app

import (
	"context"

	"quiz-room-service/internal/domain"
)

// RoomStore abstracts the shared state store holding room records
// (hash-of-fields semantics) and per-question leaderboards (ranked
// collections). Implementations guarantee per-operation atomicity only:
// handlers read-modify-write the room record without locks, so two handlers
// for the same room interleaved across store calls can overwrite each
// other's writes (last write wins on the members field, and create-if-absent
// is check-then-set). That window is deliberately left open.
type RoomStore interface {
	// RoomExists checks for a room record without reading it.
	RoomExists(ctx context.Context, phrase string) (bool, error)
	// PutRoom writes every field of a room record, clobbering any existing one.
	PutRoom(ctx context.Context, room domain.Room) error
	// Room reads the full record; domain.ErrRoomNotFound when absent.
	Room(ctx context.Context, phrase string) (domain.Room, error)
	SetMembers(ctx context.Context, phrase string, members []domain.Member) error
	SetStatus(ctx context.Context, phrase string, status domain.RoomStatus) error
	DeleteRoom(ctx context.Context, phrase string) error

	// GameState reads the ephemeral game sub-record;
	// domain.ErrGameStateMissing when the field (or the room) is absent.
	GameState(ctx context.Context, phrase string) (domain.GameState, error)
	SetGameState(ctx context.Context, phrase string, state domain.GameState) error
	DeleteGameState(ctx context.Context, phrase string) error

	// ReplaceLeaderboard clears and repopulates the ranked collection for
	// one question round (1-based).
	ReplaceLeaderboard(ctx context.Context, phrase string, round int, entries []domain.RankedEntry) error
	// Leaderboard returns the round's entries ordered by descending score.
	Leaderboard(ctx context.Context, phrase string, round int) ([]domain.RankedEntry, error)

	// RoomPhrases enumerates the phrases of every live room record.
	RoomPhrases(ctx context.Context) ([]string, error)
}
