package app

import (
	"time"

	"github.com/dkeye/Jam/internal/domain"
)

// Projector derives the phase view clients render their countdowns from.
// Remaining time counts down from PhaseStartedAt, so a refresh mid-phase
// does not hand the room a full budget again.
type Projector struct {
	ComposeTime time.Duration
	VoteTime    time.Duration
	now         func() time.Time
}

func NewProjector(composeTime, voteTime time.Duration) *Projector {
	return &Projector{ComposeTime: composeTime, VoteTime: voteTime, now: time.Now}
}

func (p *Projector) Project(room *domain.Room) domain.GameStateView {
	view := domain.GameStateView{
		RoomID: room.ID,
		Status: room.Status,
		Theme:  room.Theme,
	}
	var budget time.Duration
	switch room.Status {
	case domain.PhaseComposing:
		budget = p.ComposeTime
	case domain.PhaseVoting:
		budget = p.VoteTime
	default:
		return view
	}
	remaining := budget - p.now().Sub(room.PhaseStartedAt)
	if remaining < 0 {
		remaining = 0
	}
	view.TimeRemaining = &remaining
	return view
}
