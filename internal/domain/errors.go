package domain

import "errors"

var (
	// ErrRoomNotFound is returned when no room exists for a phrase.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomExists is returned when creating a room whose phrase is taken.
	ErrRoomExists = errors.New("room already exists")
	// ErrRoomFull is returned when a join would exceed the member capacity.
	ErrRoomFull = errors.New("room is full")
	// ErrNotAMember is returned when a non-participant requests room data.
	ErrNotAMember = errors.New("not a member of this room")
	// ErrNotHost is returned when a host-only action comes from a non-host.
	ErrNotHost = errors.New("only the host may do this")
	// ErrNotEnoughMembers is returned when starting a game with fewer than
	// two members.
	ErrNotEnoughMembers = errors.New("not enough members to start")
	// ErrGameStateMissing indicates a game-phase action arrived while no
	// game state exists for the room.
	ErrGameStateMissing = errors.New("game state missing")
)
