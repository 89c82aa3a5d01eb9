package domain

import "time"

type RoomID string

// Phase is the room's position in the game state machine.
// It only ever moves forward; a new round means a new Room.
type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseComposing Phase = "composing"
	PhaseVoting    Phase = "voting"
	PhaseResults   Phase = "results"
)

var phaseOrder = map[Phase]int{
	PhaseWaiting:   0,
	PhaseComposing: 1,
	PhaseVoting:    2,
	PhaseResults:   3,
}

// CanAdvance reports whether next is the immediate successor of p.
func (p Phase) CanAdvance(next Phase) bool {
	cur, ok := phaseOrder[p]
	if !ok {
		return false
	}
	nxt, ok := phaseOrder[next]
	if !ok {
		return false
	}
	return nxt == cur+1
}

const DefaultCapacity = 10

// Room is a bounded multiplayer session. Members keep join order;
// HostID always points at a current member.
type Room struct {
	ID        RoomID    `json:"id"`
	Code      string    `json:"code"`
	Status    Phase     `json:"status"`
	HostID    UserID    `json:"hostId"`
	Members   []*User   `json:"members"`
	Capacity  int       `json:"capacity"`
	Theme     string    `json:"theme,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	// PhaseStartedAt marks entry into the current phase; countdowns are
	// anchored here, not on UpdatedAt, which moves on every mutation.
	PhaseStartedAt time.Time `json:"phaseStartedAt"`
}

// Member returns the member with the given id, or nil.
func (r *Room) Member(id UserID) *User {
	for _, m := range r.Members {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (r *Room) Full() bool { return len(r.Members) >= r.Capacity }

// Snapshot returns a copy safe to hand outside the room's lock.
// User structs are copied too so fanout never reads a mutating member.
func (r *Room) Snapshot() *Room {
	cp := *r
	cp.Members = make([]*User, len(r.Members))
	for i, m := range r.Members {
		u := *m
		cp.Members[i] = &u
	}
	return &cp
}
