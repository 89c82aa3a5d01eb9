package app

import (
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Jam/internal/domain"
	"github.com/dkeye/Jam/internal/roomcode"
)

// roomEntry pairs a room with the mutex that serializes every lifecycle
// operation touching it. The entry lock is always taken before any
// repository-level lock, never the other way around.
type roomEntry struct {
	mu      sync.Mutex
	room    *domain.Room
	removed bool
}

// Repository is the only owner of live Room records. Both indices are
// updated together under one lock so a code can never outlive its room.
type Repository struct {
	mu     sync.RWMutex
	byID   map[domain.RoomID]*roomEntry
	byCode map[string]domain.RoomID
}

func NewRepository() *Repository {
	return &Repository{
		byID:   make(map[domain.RoomID]*roomEntry),
		byCode: make(map[string]domain.RoomID),
	}
}

// Insert stores a new room. Returns false if its code is already taken.
func (r *Repository) Insert(room *domain.Room) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byCode[room.Code]; taken {
		return false
	}
	r.byID[room.ID] = &roomEntry{room: room}
	r.byCode[room.Code] = room.ID
	log.Info().Str("module", "app.repo").Str("room", string(room.ID)).Str("code", room.Code).Msg("room inserted")
	return true
}

// findByCode resolves a join code. Malformed codes fail fast without
// touching the indices.
func (r *Repository) findByCode(code string) (*roomEntry, bool) {
	code = strings.ToUpper(code)
	if !roomcode.IsValid(code) {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byCode[code]
	if !ok {
		return nil, false
	}
	e, ok := r.byID[id]
	return e, ok
}

func (r *Repository) findByID(id domain.RoomID) (*roomEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	return e, ok
}

// Remove deletes a room from both indices. The caller must hold the entry
// lock and have marked the entry removed.
func (r *Repository) Remove(id domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byID[id]; ok {
		delete(r.byCode, e.room.Code)
		delete(r.byID, id)
		log.Info().Str("module", "app.repo").Str("room", string(id)).Msg("room removed")
	}
}

// GetByCode returns a read-only snapshot of the room behind code.
func (r *Repository) GetByCode(code string) (*domain.Room, bool) {
	e, ok := r.findByCode(code)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, false
	}
	return e.room.Snapshot(), true
}

// GetByID returns a read-only snapshot of the room with the given id.
func (r *Repository) GetByID(id domain.RoomID) (*domain.Room, bool) {
	e, ok := r.findByID(id)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, false
	}
	return e.room.Snapshot(), true
}

func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// ids returns a snapshot of live room ids for sweep-style operations.
func (r *Repository) ids() []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.RoomID, 0, len(r.byID))
	for id := range r.byID {
		out = append(out, id)
	}
	return out
}

// RoomInfo is a read-only listing row for the REST API.
type RoomInfo struct {
	Code        string       `json:"code"`
	Display     string       `json:"display"`
	Status      domain.Phase `json:"status"`
	MemberCount int          `json:"memberCount"`
	Capacity    int          `json:"capacity"`
}

func (r *Repository) List() []RoomInfo {
	ids := r.ids()
	out := make([]RoomInfo, 0, len(ids))
	for _, id := range ids {
		e, ok := r.findByID(id)
		if !ok {
			continue
		}
		e.mu.Lock()
		if !e.removed {
			out = append(out, RoomInfo{
				Code:        e.room.Code,
				Display:     roomcode.Format(e.room.Code),
				Status:      e.room.Status,
				MemberCount: len(e.room.Members),
				Capacity:    e.room.Capacity,
			})
		}
		e.mu.Unlock()
	}
	return out
}
