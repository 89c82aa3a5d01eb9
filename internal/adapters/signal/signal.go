// Package signal is the websocket session gateway: it binds transport
// connections to room membership, feeds inbound events into the lifecycle
// service and fans resulting state out to the room.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Jam/internal/app"
	"github.com/dkeye/Jam/internal/domain"
	"github.com/dkeye/Jam/internal/roomcode"
)

var ErrBackpressure = errors.New("backpressure")

// Error codes are namespaced per operation; the message is display-only.
const (
	codeCreateRoom  = "CREATE_ROOM_ERROR"
	codeJoinRoom    = "JOIN_ROOM_ERROR"
	codeLeaveRoom   = "LEAVE_ROOM_ERROR"
	codeStartGame   = "START_GAME_ERROR"
	codeAdvance     = "ADVANCE_PHASE_ERROR"
	codeComposition = "COMPOSITION_UPDATE_ERROR"
	codeSubmitVote  = "SUBMIT_VOTE_ERROR"
)

type Controller struct {
	Lifecycle *app.Lifecycle
	Repo      *app.Repository
	Registry  *app.Registry
	Projector *app.Projector

	// ReadLimit caps inbound frame size; PingPeriod drives the keepalive
	// ping, with the pong deadline derived from it. Overridable before the
	// first connection is handled.
	ReadLimit  int64
	PingPeriod time.Duration

	limiter *MessageRateLimiter
}

func NewController(lc *app.Lifecycle, repo *app.Repository, reg *app.Registry, proj *app.Projector) *Controller {
	return &Controller{
		Lifecycle:  lc,
		Repo:       repo,
		Registry:   reg,
		Projector:  proj,
		ReadLimit:  32768,
		PingPeriod: 54 * time.Second,
		limiter:    NewMessageRateLimiter(30, time.Second),
	}
}

// WsSignalConn wraps one websocket with a buffered outbound channel.
// TrySend never blocks; a full buffer reports backpressure instead.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSession upgrades the request and runs the connection's pumps.
// The session id is the client-token cookie, so a refresh reconnects as
// the same session.
func (ctl *Controller) HandleSession(ctx context.Context, c *gin.Context) {
	sid := app.SessionID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan []byte, 32),
	}
	ctx, cancel := context.WithCancel(ctx)
	ctl.Registry.Bind(sid, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}

// roomMsg is the wire shape of every room-carrying outbound event.
type roomMsg struct {
	Type    string       `json:"type"`
	Room    *domain.Room `json:"room"`
	Display string       `json:"display"`
}

func newRoomMsg(typ string, room *domain.Room) roomMsg {
	return roomMsg{Type: typ, Room: room, Display: roomcode.Format(room.Code)}
}

// wireUser is the inbound user shape. An empty id means "mint me one".
type wireUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

func userFromPayload(p wireUser) (*domain.User, error) {
	if p.ID == "" {
		return domain.NewUser(p.DisplayName)
	}
	if len(p.ID) > domain.MaxUserIDLen {
		return nil, errors.New("user id too long")
	}
	u := &domain.User{ID: domain.UserID(p.ID), State: domain.Connected}
	if err := u.SetDisplayName(p.DisplayName); err != nil {
		return nil, err
	}
	return u, nil
}
