package app

import "errors"

// Business conditions the lifecycle service reports to callers.
// All recoverable; adapters map them to wire error codes.
var (
	ErrNotFound            = errors.New("room not found")
	ErrRoomFull            = errors.New("room is full")
	ErrWrongPhase          = errors.New("operation not valid in current phase")
	ErrNotAuthorized       = errors.New("only the host may do that")
	ErrInsufficientPlayers = errors.New("not enough players")
	ErrCodeExhausted       = errors.New("could not allocate a unique room code")
)
