package domain

import (
	"encoding/json"
	"time"
)

// GameStateView is the client-facing projection of a room's phase.
// Derived on demand, never stored.
type GameStateView struct {
	RoomID        RoomID         `json:"roomId"`
	Status        Phase          `json:"status"`
	Theme         string         `json:"theme,omitempty"`
	TimeRemaining *time.Duration `json:"timeRemaining,omitempty"`
}

// Composition is a member's musical submission (tracks, notes, tempo).
// The coordinator only routes it; content stays opaque.
type Composition = json.RawMessage

// Vote is a member's ballot payload, equally opaque to the coordinator.
type Vote = json.RawMessage
