package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Jam/internal/app"
	"github.com/dkeye/Jam/internal/domain"
)

func (ctl *Controller) handleCreate(sid app.SessionID, conn *WsSignalConn, data []byte) {
	if _, ok := ctl.Registry.RoomOf(sid); ok {
		ctl.sendError(conn, codeCreateRoom, "already in a room")
		return
	}
	var p struct {
		Type     string   `json:"type"`
		User     wireUser `json:"user"`
		Capacity int      `json:"capacity"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad create payload")
		ctl.sendError(conn, codeCreateRoom, "bad payload")
		return
	}
	user, err := userFromPayload(p.User)
	if err != nil {
		ctl.sendError(conn, codeCreateRoom, err.Error())
		return
	}

	// The repository owns its own copy; the registry keeps ours.
	host := *user
	room, err := ctl.Lifecycle.CreateRoom(&host, p.Capacity)
	if err != nil {
		ctl.sendError(conn, codeCreateRoom, err.Error())
		return
	}
	ctl.Registry.SetUser(sid, user)
	ctl.Registry.EnterRoom(sid, room.ID)
	ctl.sendJSON(conn, newRoomMsg("room_created", room))
}

func (ctl *Controller) handleJoin(sid app.SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		Type     string   `json:"type"`
		RoomCode string   `json:"roomCode"`
		User     wireUser `json:"user"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, codeJoinRoom, "bad payload")
		return
	}
	user, err := userFromPayload(p.User)
	if err != nil {
		ctl.sendError(conn, codeJoinRoom, err.Error())
		return
	}

	// One room per session. Rejoining the bound room is the reconnect
	// path; hopping to another room must go through leave_room first, or
	// the old room would keep a Connected member nobody can reach.
	if boundID, bound := ctl.Registry.RoomOf(sid); bound {
		target, found := ctl.Repo.GetByCode(p.RoomCode)
		if !found {
			ctl.sendError(conn, codeJoinRoom, app.ErrNotFound.Error())
			return
		}
		if target.ID != boundID {
			ctl.sendError(conn, codeJoinRoom, "already in a room")
			return
		}
	}

	member := *user
	room, err := ctl.Lifecycle.JoinRoom(p.RoomCode, &member)
	if err != nil {
		ctl.sendError(conn, codeJoinRoom, err.Error())
		return
	}
	ctl.Registry.SetUser(sid, user)
	ctl.Registry.EnterRoom(sid, room.ID)
	log.Info().Str("module", "signal").Str("sid", string(sid)).
		Str("room", string(room.ID)).Msg("join")
	ctl.broadcastRoom(room.ID, newRoomMsg("room_updated", room))
}

func (ctl *Controller) handleLeave(sid app.SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		Type     string `json:"type"`
		RoomCode string `json:"roomCode"`
		UserID   string `json:"userId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad leave payload")
		ctl.sendError(conn, codeLeaveRoom, "bad payload")
		return
	}
	uid := domain.UserID(p.UserID)
	if uid == "" {
		if user, ok := ctl.Registry.User(sid); ok {
			uid = user.ID
		}
	}

	target, found := ctl.Repo.GetByCode(p.RoomCode)
	if !found {
		ctl.sendError(conn, codeLeaveRoom, app.ErrNotFound.Error())
		return
	}
	room, gone, err := ctl.Lifecycle.LeaveRoom(p.RoomCode, uid)
	if err != nil {
		ctl.sendError(conn, codeLeaveRoom, err.Error())
		return
	}
	// Only a leave of the bound room clears the binding; naming some other
	// room must not cut the session off from its own room's broadcasts.
	if boundRoom, bound := ctl.Registry.RoomOf(sid); bound && boundRoom == target.ID {
		ctl.Registry.LeaveRoom(sid)
	}
	ctl.sendJSON(conn, map[string]any{"type": "left"})

	if gone {
		ctl.Registry.EvictRoom(target.ID)
		return
	}
	ctl.broadcastRoom(room.ID, newRoomMsg("room_updated", room))
}

func (ctl *Controller) handleStart(sid app.SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		Type     string `json:"type"`
		RoomCode string `json:"roomCode"`
		UserID   string `json:"userId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad start payload")
		ctl.sendError(conn, codeStartGame, "bad payload")
		return
	}
	uid := domain.UserID(p.UserID)
	if uid == "" {
		if user, ok := ctl.Registry.User(sid); ok {
			uid = user.ID
		}
	}

	room, err := ctl.Lifecycle.StartGame(p.RoomCode, uid)
	if err != nil {
		ctl.sendError(conn, codeStartGame, err.Error())
		return
	}
	ctl.broadcastRoom(room.ID, newRoomMsg("room_updated", room))
	ctl.broadcastGameState(room)
}

// broadcastGameState pushes the projected phase view to the whole room.
func (ctl *Controller) broadcastGameState(room *domain.Room) {
	view := ctl.Projector.Project(room)
	ctl.broadcastRoom(room.ID, struct {
		Type string               `json:"type"`
		View domain.GameStateView `json:"view"`
	}{"game_state_updated", view})
}
