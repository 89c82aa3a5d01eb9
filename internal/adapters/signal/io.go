package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Jam/internal/app"
	"github.com/dkeye/Jam/internal/domain"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsSignalConn) {
	ping := time.NewTicker(ctl.PingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ping.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Info().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, sid app.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.onDisconnect(sid)
		c.Close()
	}()

	// The pong deadline gives one ping round a little slack; a client that
	// answers no ping within it is read-errored out.
	pongWait := ctl.PingPeriod * 10 / 9
	c.conn.SetReadLimit(ctl.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			ctl.dispatch(sid, c, data)
		}
	}
}

// onDisconnect marks the member disconnected but keeps membership; the
// reaper or an explicit leave settles it. Benign if the room is already
// gone.
func (ctl *Controller) onDisconnect(sid app.SessionID) {
	user, hasUser := ctl.Registry.User(sid)
	roomID, inRoom := ctl.Registry.RoomOf(sid)
	if hasUser && inRoom {
		if room, err := ctl.Lifecycle.UpdateConnection(roomID, user.ID, false); err == nil && room != nil {
			ctl.broadcastRoom(room.ID, newRoomMsg("room_updated", room))
		}
	}
	ctl.Registry.Unbind(sid)
	ctl.limiter.Forget(sid)
}

func (ctl *Controller) dispatch(sid app.SessionID, c *WsSignalConn, data []byte) {
	if !ctl.limiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("rate limited, dropping message")
		return
	}
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "create_room":
		ctl.handleCreate(sid, c, data)
	case "join_room":
		ctl.handleJoin(sid, c, data)
	case "leave_room":
		ctl.handleLeave(sid, c, data)
	case "start_game":
		ctl.handleStart(sid, c, data)
	case "advance_phase":
		ctl.handleAdvance(sid, c, data)
	case "composition_updated":
		ctl.handleComposition(sid, c, data)
	case "submit_vote":
		ctl.handleVote(sid, c, data)
	case "rename":
		ctl.handleRename(sid, c, data)
	case "whoami":
		ctl.handleWhoAmI(sid, c)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *Controller) sendJSON(s app.Sender, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = s.TrySend(b)
}

// sendError replies to the requesting connection only.
func (ctl *Controller) sendError(c *WsSignalConn, code, message string) {
	ctl.sendJSON(c, map[string]any{
		"type":    "error",
		"code":    code,
		"message": message,
	})
}

// BroadcastRoomUpdated pushes a room snapshot to its members. Exposed for
// the reaper loop, which commits mutations outside any gateway handler.
func (ctl *Controller) BroadcastRoomUpdated(room *domain.Room) {
	ctl.broadcastRoom(room.ID, newRoomMsg("room_updated", room))
}

// broadcastRoom fans v out to every connection bound to roomID.
// Best effort per connection: a full buffer drops this frame for that
// member without touching the committed state.
func (ctl *Controller) broadcastRoom(roomID domain.RoomID, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("broadcast marshal")
		return
	}
	sent, dropped := 0, 0
	for _, snap := range ctl.Registry.MembersOfRoom(roomID) {
		if err := snap.Sender.TrySend(b); err != nil {
			dropped++
			continue
		}
		sent++
	}
	log.Debug().Str("module", "signal").Str("room", string(roomID)).
		Int("sent_to", sent).Int("dropped", dropped).Msg("broadcast result")
}
