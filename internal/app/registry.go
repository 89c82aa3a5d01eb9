package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Jam/internal/domain"
)

type SessionID string

// Sender is the gateway-owned transport endpoint of one connection.
// The registry only routes through it, never closes it.
type Sender interface {
	TrySend([]byte) error
}

type sessionEntry struct {
	RoomID domain.RoomID
	User   *domain.User
	Sender Sender
	Cancel context.CancelFunc
}

// Registry is the bidirectional index between live connections and room
// membership: at most one room per session, many sessions per room.
// It mirrors repository membership; the gateway keeps both in step.
type Registry struct {
	mu       sync.RWMutex
	sessions map[SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[SessionID]*sessionEntry)}
}

// Bind registers a fresh connection. The user arrives later, with the
// first create/join payload.
func (r *Registry) Bind(sid SessionID, sender Sender, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{Sender: sender, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound session")
}

// SetUser attaches the identity the session acts as.
func (r *Registry) SetUser(sid SessionID, user *domain.User) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.User = user
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).
		Str("user", string(user.ID)).Msg("session user set")
	return true
}

func (r *Registry) Unbind(sid SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
}

// User returns the identity bound to sid, if one was set.
func (r *Registry) User(sid SessionID) (*domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok && e.User != nil {
		return e.User, true
	}
	return nil, false
}

// EnterRoom records sid's membership. Returns false for unknown sessions.
func (r *Registry) EnterRoom(sid SessionID, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.RoomID = roomID
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).
		Str("room", string(roomID)).Msg("entered room")
	return true
}

func (r *Registry) LeaveRoom(sid SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		e.RoomID = ""
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("left room")
}

// RoomOf reports sid's current room, if it is in one.
func (r *Registry) RoomOf(sid SessionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.RoomID == "" {
		return "", false
	}
	return e.RoomID, true
}

type RegSnap struct {
	SID    SessionID
	User   *domain.User
	Sender Sender
}

// MembersOfRoom snapshots the connections currently bound to roomID,
// for fanout outside the registry lock.
func (r *Registry) MembersOfRoom(roomID domain.RoomID) []RegSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RegSnap, 0, len(r.sessions))
	for sid, e := range r.sessions {
		if e.RoomID == roomID {
			out = append(out, RegSnap{SID: sid, User: e.User, Sender: e.Sender})
		}
	}
	return out
}

// EvictRoom clears membership for every session bound to roomID, used
// when a room is destroyed under its members.
func (r *Registry) EvictRoom(roomID domain.RoomID) []RegSnap {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []RegSnap{}
	for sid, e := range r.sessions {
		if e.RoomID == roomID {
			out = append(out, RegSnap{SID: sid, User: e.User, Sender: e.Sender})
			e.RoomID = ""
		}
	}
	return out
}

// Cancel tears down the connection context bound to sid, if any.
func (r *Registry) Cancel(sid SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
