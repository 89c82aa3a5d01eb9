// Package domain contains entities without transport or lifecycle logic,
// just meta-data and the invariants each entity can check on its own.
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen      = 36
	MaxDisplayNameLen = 36
)

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
)

type UserID string

// ConnectionState tracks whether the member currently has a live transport.
// It never decides membership by itself; the reaper does that.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connected
)

func (s ConnectionState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

type User struct {
	ID          UserID          `json:"id"`
	DisplayName string          `json:"displayName"`
	State       ConnectionState `json:"-"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(displayName string) (*User, error) {
	if len(displayName) == 0 {
		return nil, ErrDisplayNameEmpty
	}
	if len(displayName) > MaxDisplayNameLen {
		return nil, ErrDisplayNameTooLong
	}
	return &User{
		ID:          UserID(uuid.NewString()),
		DisplayName: displayName,
		State:       Connected,
	}, nil
}

func (u *User) SetDisplayName(displayName string) error {
	if len(displayName) == 0 {
		return ErrDisplayNameEmpty
	}
	if len(displayName) > MaxDisplayNameLen {
		return ErrDisplayNameTooLong
	}
	u.DisplayName = displayName
	return nil
}
