package domain

import "errors"

var (
	// ErrTopicNotFound is returned when a topic has no question bank.
	ErrTopicNotFound = errors.New("topic not found")
	// ErrInvalidQuestion marks a question record that failed validation.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrRoomNotFound is returned for an unknown or already deleted room code.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomNotJoinable is returned when joining a room that is no longer waiting.
	ErrRoomNotJoinable = errors.New("room cannot be joined")
	// ErrNicknameTaken is returned when a nickname is already a member of the room.
	ErrNicknameTaken = errors.New("nickname already in room")
	// ErrCannotStart is returned when a room is not waiting or has no players.
	ErrCannotStart = errors.New("quiz cannot be started")
	// ErrClientNotFound indicates an admin target nickname is not connected.
	ErrClientNotFound = errors.New("client not found")
	// ErrAdminUnavailable is returned when the admin slot is taken or the name is wrong.
	ErrAdminUnavailable = errors.New("admin unavailable")
	// ErrSessionClosed is returned when a disconnected session tries to enter a room.
	ErrSessionClosed = errors.New("session closed")
	// ErrRoomCodesExhausted indicates no free room code could be drawn.
	ErrRoomCodesExhausted = errors.New("no free room code")
)
