package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Jam/internal/app"
	"github.com/dkeye/Jam/internal/roomcode"
)

func (ctl *Controller) handleRename(sid app.SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad rename payload")
		ctl.sendJSON(conn, map[string]any{"type": "error", "error": "bad_payload"})
		return
	}
	user, ok := ctl.Registry.User(sid)
	if !ok {
		ctl.sendJSON(conn, map[string]any{"type": "error", "error": "no identity on this session"})
		return
	}
	if err := user.SetDisplayName(p.Name); err != nil {
		ctl.sendJSON(conn, map[string]any{"type": "error", "error": err.Error()})
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("name", p.Name).Msg("rename")
	if roomID, inRoom := ctl.Registry.RoomOf(sid); inRoom {
		if room, err := ctl.Lifecycle.RenameMember(roomID, user.ID, p.Name); err == nil {
			ctl.broadcastRoom(room.ID, newRoomMsg("room_updated", room))
		}
	}
	ctl.handleWhoAmI(sid, conn)
}

func (ctl *Controller) handleWhoAmI(sid app.SessionID, conn *WsSignalConn) {
	resp := map[string]any{"type": "whoami"}
	if user, ok := ctl.Registry.User(sid); ok {
		resp["user"] = user
	}
	if roomID, ok := ctl.Registry.RoomOf(sid); ok {
		if room, found := ctl.Repo.GetByID(roomID); found {
			resp["roomCode"] = room.Code
			resp["display"] = roomcode.Format(room.Code)
		}
	}
	ctl.sendJSON(conn, resp)
}
