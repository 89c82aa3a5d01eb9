// Package app holds the room coordinator: repository, lifecycle state
// machine, projector and the session registry. All room mutations go
// through the Lifecycle service; everything else sees snapshots.
package app

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Jam/internal/domain"
	"github.com/dkeye/Jam/internal/roomcode"
)

// codeAttempts bounds the collision retry on create. With a 32^6 code
// space the loop practically never repeats outside tests.
const codeAttempts = 10

type Lifecycle struct {
	repo   *Repository
	defCap int
	now    func() time.Time
}

// NewLifecycle builds the service. defaultCapacity is applied to rooms
// created without an explicit capacity; values <= 0 fall back to
// domain.DefaultCapacity.
func NewLifecycle(repo *Repository, defaultCapacity int) *Lifecycle {
	if defaultCapacity <= 0 {
		defaultCapacity = domain.DefaultCapacity
	}
	return &Lifecycle{repo: repo, defCap: defaultCapacity, now: time.Now}
}

// lockLive locks the entry and reports whether the room is still alive.
// Callers unlock via the returned entry.
func lockLive(e *roomEntry, ok bool) (*roomEntry, bool) {
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return nil, false
	}
	return e, true
}

// CreateRoom spawns a Waiting room with host as its only member.
func (s *Lifecycle) CreateRoom(host *domain.User, capacity int) (*domain.Room, error) {
	if capacity <= 0 {
		capacity = s.defCap
	}
	now := s.now()
	room := &domain.Room{
		ID:             domain.RoomID(uuid.NewString()),
		Status:         domain.PhaseWaiting,
		HostID:         host.ID,
		Members:        []*domain.User{host},
		Capacity:       capacity,
		CreatedAt:      now,
		UpdatedAt:      now,
		PhaseStartedAt: now,
	}
	for attempt := 0; attempt < codeAttempts; attempt++ {
		room.Code = roomcode.Generate()
		if s.repo.Insert(room) {
			log.Info().Str("module", "app.lifecycle").
				Str("room", string(room.ID)).Str("code", room.Code).
				Str("host", string(host.ID)).Msg("room created")
			return room.Snapshot(), nil
		}
		log.Warn().Str("module", "app.lifecycle").Str("code", room.Code).
			Int("attempt", attempt+1).Msg("room code collision, retrying")
	}
	return nil, ErrCodeExhausted
}

// JoinRoom adds user to the room behind code. Joining with an id already
// present refreshes that member in place; this is the reconnect path.
func (s *Lifecycle) JoinRoom(code string, user *domain.User) (*domain.Room, error) {
	e, ok := lockLive(s.repo.findByCode(code))
	if !ok {
		return nil, ErrNotFound
	}
	defer e.mu.Unlock()

	room := e.room
	if existing := room.Member(user.ID); existing != nil {
		existing.DisplayName = user.DisplayName
		existing.State = user.State
		room.UpdatedAt = s.now()
		log.Info().Str("module", "app.lifecycle").Str("room", string(room.ID)).
			Str("user", string(user.ID)).Msg("member refreshed")
		return room.Snapshot(), nil
	}
	if room.Status != domain.PhaseWaiting {
		return nil, ErrWrongPhase
	}
	if room.Full() {
		return nil, ErrRoomFull
	}
	room.Members = append(room.Members, user)
	room.UpdatedAt = s.now()
	log.Info().Str("module", "app.lifecycle").Str("room", string(room.ID)).
		Str("user", string(user.ID)).Int("members", len(room.Members)).Msg("member joined")
	return room.Snapshot(), nil
}

// LeaveRoom removes userID from the room. gone reports that the departing
// member was the last one and the room was destroyed. Leaving a room that
// no longer holds the user is a no-op success, tolerating the race between
// disconnect cleanup and an explicit leave.
func (s *Lifecycle) LeaveRoom(code string, userID domain.UserID) (room *domain.Room, gone bool, err error) {
	e, ok := lockLive(s.repo.findByCode(code))
	if !ok {
		return nil, false, ErrNotFound
	}
	defer e.mu.Unlock()

	r := e.room
	idx := -1
	for i, m := range r.Members {
		if m.ID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return r.Snapshot(), false, nil
	}
	r.Members = append(r.Members[:idx], r.Members[idx+1:]...)
	if len(r.Members) == 0 {
		e.removed = true
		s.repo.Remove(r.ID)
		log.Info().Str("module", "app.lifecycle").Str("room", string(r.ID)).Msg("last member left, room destroyed")
		return nil, true, nil
	}
	if r.HostID == userID {
		r.HostID = nextHost(r.Members)
		log.Info().Str("module", "app.lifecycle").Str("room", string(r.ID)).
			Str("host", string(r.HostID)).Msg("host handed off")
	}
	r.UpdatedAt = s.now()
	return r.Snapshot(), false, nil
}

// nextHost picks the first Connected member in join order, falling back to
// the first member outright when nobody is connected.
func nextHost(members []*domain.User) domain.UserID {
	for _, m := range members {
		if m.State == domain.Connected {
			return m.ID
		}
	}
	return members[0].ID
}

// StartGame advances Waiting -> Composing and picks the round's theme.
// Host-only, and only with at least two players.
func (s *Lifecycle) StartGame(code string, userID domain.UserID) (*domain.Room, error) {
	e, ok := lockLive(s.repo.findByCode(code))
	if !ok {
		return nil, ErrNotFound
	}
	defer e.mu.Unlock()

	room := e.room
	if room.HostID != userID {
		return nil, ErrNotAuthorized
	}
	if room.Status != domain.PhaseWaiting {
		return nil, ErrWrongPhase
	}
	if len(room.Members) < 2 {
		return nil, ErrInsufficientPlayers
	}
	room.Status = domain.PhaseComposing
	room.Theme = pickTheme()
	room.UpdatedAt = s.now()
	room.PhaseStartedAt = room.UpdatedAt
	log.Info().Str("module", "app.lifecycle").Str("room", string(room.ID)).
		Str("theme", room.Theme).Msg("game started")
	return room.Snapshot(), nil
}

// AdvancePhase moves the room one step forward along the state machine.
// Triggering policy (timers, all-submitted) lives with the caller.
func (s *Lifecycle) AdvancePhase(id domain.RoomID, next domain.Phase) (*domain.Room, error) {
	e, ok := lockLive(s.repo.findByID(id))
	if !ok {
		return nil, ErrNotFound
	}
	defer e.mu.Unlock()

	room := e.room
	if !room.Status.CanAdvance(next) {
		return nil, ErrWrongPhase
	}
	room.Status = next
	room.UpdatedAt = s.now()
	room.PhaseStartedAt = room.UpdatedAt
	log.Info().Str("module", "app.lifecycle").Str("room", string(room.ID)).
		Str("phase", string(next)).Msg("phase advanced")
	return room.Snapshot(), nil
}

// UpdateConnection flips a member's connection state. Unknown room or
// member is a benign race with leave and succeeds as a no-op.
func (s *Lifecycle) UpdateConnection(id domain.RoomID, userID domain.UserID, connected bool) (*domain.Room, error) {
	e, ok := lockLive(s.repo.findByID(id))
	if !ok {
		return nil, nil
	}
	defer e.mu.Unlock()

	room := e.room
	m := room.Member(userID)
	if m == nil {
		return room.Snapshot(), nil
	}
	if connected {
		m.State = domain.Connected
	} else {
		m.State = domain.Disconnected
	}
	room.UpdatedAt = s.now()
	log.Debug().Str("module", "app.lifecycle").Str("room", string(room.ID)).
		Str("user", string(userID)).Str("state", m.State.String()).Msg("connection updated")
	return room.Snapshot(), nil
}

// ReapIdle sweeps every room, dropping Disconnected members, reassigning
// the host when it was reaped and destroying emptied rooms. It takes the
// same per-room lock as everything else, so it composes with concurrent
// join/leave.
func (s *Lifecycle) ReapIdle() (updated []*domain.Room, destroyed []domain.RoomID) {
	for _, id := range s.repo.ids() {
		e, ok := lockLive(s.repo.findByID(id))
		if !ok {
			continue
		}
		room := e.room
		kept := make([]*domain.User, 0, len(room.Members))
		hostKept := false
		for _, m := range room.Members {
			if m.State == domain.Connected {
				kept = append(kept, m)
				if m.ID == room.HostID {
					hostKept = true
				}
			}
		}
		if len(kept) == len(room.Members) {
			e.mu.Unlock()
			continue
		}
		room.Members = kept
		if len(room.Members) == 0 {
			e.removed = true
			s.repo.Remove(room.ID)
			destroyed = append(destroyed, room.ID)
			e.mu.Unlock()
			log.Info().Str("module", "app.lifecycle").Str("room", string(id)).Msg("idle room reaped")
			continue
		}
		if !hostKept {
			room.HostID = nextHost(room.Members)
		}
		room.UpdatedAt = s.now()
		updated = append(updated, room.Snapshot())
		e.mu.Unlock()
		log.Info().Str("module", "app.lifecycle").Str("room", string(id)).
			Int("members", len(room.Members)).Msg("idle members reaped")
	}
	return updated, destroyed
}

// RenameMember updates a member's display name in place. Used by the
// rename signal; validation mirrors domain.NewUser.
func (s *Lifecycle) RenameMember(id domain.RoomID, userID domain.UserID, displayName string) (*domain.Room, error) {
	e, ok := lockLive(s.repo.findByID(id))
	if !ok {
		return nil, ErrNotFound
	}
	defer e.mu.Unlock()

	room := e.room
	m := room.Member(userID)
	if m == nil {
		return nil, ErrNotFound
	}
	if err := m.SetDisplayName(displayName); err != nil {
		return nil, err
	}
	room.UpdatedAt = s.now()
	log.Info().Str("module", "app.lifecycle").Str("room", string(room.ID)).
		Str("user", string(userID)).Msg("member renamed")
	return room.Snapshot(), nil
}

// AdvancePhaseBy is the host-gated wire surface of AdvancePhase: same
// forward-only rule, looked up by join code and checked against the host.
func (s *Lifecycle) AdvancePhaseBy(code string, userID domain.UserID, next domain.Phase) (*domain.Room, error) {
	e, ok := lockLive(s.repo.findByCode(code))
	if !ok {
		return nil, ErrNotFound
	}
	defer e.mu.Unlock()

	room := e.room
	if room.HostID != userID {
		return nil, ErrNotAuthorized
	}
	if !room.Status.CanAdvance(next) {
		return nil, ErrWrongPhase
	}
	room.Status = next
	room.UpdatedAt = s.now()
	room.PhaseStartedAt = room.UpdatedAt
	log.Info().Str("module", "app.lifecycle").Str("room", string(room.ID)).
		Str("phase", string(next)).Msg("phase advanced")
	return room.Snapshot(), nil
}
