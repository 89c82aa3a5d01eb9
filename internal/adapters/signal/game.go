package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Jam/internal/app"
	"github.com/dkeye/Jam/internal/domain"
)

func (ctl *Controller) handleAdvance(sid app.SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		Type     string       `json:"type"`
		RoomCode string       `json:"roomCode"`
		Next     domain.Phase `json:"next"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad advance payload")
		ctl.sendError(conn, codeAdvance, "bad payload")
		return
	}
	user, ok := ctl.Registry.User(sid)
	if !ok {
		ctl.sendError(conn, codeAdvance, "no identity on this session")
		return
	}

	room, err := ctl.Lifecycle.AdvancePhaseBy(p.RoomCode, user.ID, p.Next)
	if err != nil {
		ctl.sendError(conn, codeAdvance, err.Error())
		return
	}
	ctl.broadcastRoom(room.ID, newRoomMsg("room_updated", room))
	ctl.broadcastGameState(room)
}

// handleComposition routes a composition to the room untouched. Musical
// content is opaque here; only the room's existence is checked.
func (ctl *Controller) handleComposition(sid app.SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		Type        string             `json:"type"`
		RoomCode    string             `json:"roomCode"`
		Composition domain.Composition `json:"composition"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad composition payload")
		ctl.sendError(conn, codeComposition, "bad payload")
		return
	}
	room, ok := ctl.Repo.GetByCode(p.RoomCode)
	if !ok {
		ctl.sendError(conn, codeComposition, "room not found")
		return
	}
	var from domain.UserID
	if user, ok := ctl.Registry.User(sid); ok {
		from = user.ID
	}
	ctl.broadcastRoom(room.ID, struct {
		Type        string             `json:"type"`
		RoomCode    string             `json:"roomCode"`
		UserID      domain.UserID      `json:"userId,omitempty"`
		Composition domain.Composition `json:"composition"`
	}{"composition_updated", room.Code, from, p.Composition})
}

func (ctl *Controller) handleVote(sid app.SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		Type     string      `json:"type"`
		RoomCode string      `json:"roomCode"`
		Vote     domain.Vote `json:"vote"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad vote payload")
		ctl.sendError(conn, codeSubmitVote, "bad payload")
		return
	}
	room, ok := ctl.Repo.GetByCode(p.RoomCode)
	if !ok {
		ctl.sendError(conn, codeSubmitVote, "room not found")
		return
	}
	var from domain.UserID
	if user, ok := ctl.Registry.User(sid); ok {
		from = user.ID
	}
	ctl.broadcastRoom(room.ID, struct {
		Type     string        `json:"type"`
		RoomCode string        `json:"roomCode"`
		UserID   domain.UserID `json:"userId,omitempty"`
		Vote     domain.Vote   `json:"vote"`
	}{"vote_submitted", room.Code, from, p.Vote})
}
