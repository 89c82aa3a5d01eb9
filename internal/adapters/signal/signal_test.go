package signal

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Jam/internal/app"
)

func newTestGateway() *Controller {
	repo := app.NewRepository()
	lc := app.NewLifecycle(repo, 0)
	reg := app.NewRegistry()
	proj := app.NewProjector(3*time.Minute, 90*time.Second)
	return NewController(lc, repo, reg, proj)
}

// connect wires a fake connection into the gateway without a websocket.
func connect(ctl *Controller, sid app.SessionID) *WsSignalConn {
	conn := &WsSignalConn{send: make(chan []byte, 32)}
	ctl.Registry.Bind(sid, conn, nil)
	return conn
}

func send(ctl *Controller, sid app.SessionID, conn *WsSignalConn, v any) {
	b, _ := json.Marshal(v)
	ctl.dispatch(sid, conn, b)
}

func recv(t *testing.T, conn *WsSignalConn) map[string]any {
	t.Helper()
	select {
	case b := <-conn.send:
		var m map[string]any
		require.NoError(t, json.Unmarshal(b, &m))
		return m
	case <-time.After(time.Second):
		t.Fatal("expected a message, got none")
		return nil
	}
}

func assertSilent(t *testing.T, conn *WsSignalConn) {
	t.Helper()
	select {
	case b := <-conn.send:
		t.Fatalf("expected no message, got %s", b)
	default:
	}
}

func roomCode(t *testing.T, msg map[string]any) string {
	t.Helper()
	room, ok := msg["room"].(map[string]any)
	require.True(t, ok, "message carries no room: %v", msg)
	return room["code"].(string)
}

func TestCreateJoinStartFlow(t *testing.T) {
	ctl := newTestGateway()
	hostConn := connect(ctl, "s-host")
	guestConn := connect(ctl, "s-guest")

	send(ctl, "s-host", hostConn, map[string]any{
		"type": "create_room",
		"user": map[string]any{"displayName": "ana"},
	})
	created := recv(t, hostConn)
	require.Equal(t, "room_created", created["type"])
	code := roomCode(t, created)
	assert.Contains(t, created["display"], "-")

	send(ctl, "s-guest", guestConn, map[string]any{
		"type":     "join_room",
		"roomCode": code,
		"user":     map[string]any{"id": "guest-1", "displayName": "bob"},
	})
	// Both members see the join.
	hostView := recv(t, hostConn)
	guestView := recv(t, guestConn)
	assert.Equal(t, "room_updated", hostView["type"])
	assert.Equal(t, "room_updated", guestView["type"])

	send(ctl, "s-host", hostConn, map[string]any{
		"type":     "start_game",
		"roomCode": code,
	})
	started := recv(t, hostConn)
	require.Equal(t, "room_updated", started["type"])
	room := started["room"].(map[string]any)
	assert.Equal(t, "composing", room["status"])
	assert.NotEmpty(t, room["theme"])

	state := recv(t, hostConn)
	require.Equal(t, "game_state_updated", state["type"])
	view := state["view"].(map[string]any)
	assert.Equal(t, "composing", view["status"])
	assert.NotNil(t, view["timeRemaining"])

	// The guest got the same pair.
	assert.Equal(t, "room_updated", recv(t, guestConn)["type"])
	assert.Equal(t, "game_state_updated", recv(t, guestConn)["type"])
}

func TestStartByNonHostFailsToRequesterOnly(t *testing.T) {
	ctl := newTestGateway()
	hostConn := connect(ctl, "s-host")
	guestConn := connect(ctl, "s-guest")

	send(ctl, "s-host", hostConn, map[string]any{
		"type": "create_room",
		"user": map[string]any{"displayName": "ana"},
	})
	code := roomCode(t, recv(t, hostConn))

	send(ctl, "s-guest", guestConn, map[string]any{
		"type":     "join_room",
		"roomCode": code,
		"user":     map[string]any{"displayName": "bob"},
	})
	recv(t, hostConn)
	recv(t, guestConn)

	send(ctl, "s-guest", guestConn, map[string]any{
		"type":     "start_game",
		"roomCode": code,
	})
	errMsg := recv(t, guestConn)
	assert.Equal(t, "error", errMsg["type"])
	assert.Equal(t, "START_GAME_ERROR", errMsg["code"])
	assertSilent(t, hostConn)
}

func TestJoinUnknownCode(t *testing.T) {
	ctl := newTestGateway()
	conn := connect(ctl, "s1")

	send(ctl, "s1", conn, map[string]any{
		"type":     "join_room",
		"roomCode": "ZZZZZZ",
		"user":     map[string]any{"displayName": "bob"},
	})
	errMsg := recv(t, conn)
	assert.Equal(t, "error", errMsg["type"])
	assert.Equal(t, "JOIN_ROOM_ERROR", errMsg["code"])
}

func TestCreateWhileInRoomRejected(t *testing.T) {
	ctl := newTestGateway()
	conn := connect(ctl, "s1")

	send(ctl, "s1", conn, map[string]any{
		"type": "create_room",
		"user": map[string]any{"displayName": "ana"},
	})
	recv(t, conn)

	send(ctl, "s1", conn, map[string]any{
		"type": "create_room",
		"user": map[string]any{"displayName": "ana"},
	})
	errMsg := recv(t, conn)
	assert.Equal(t, "error", errMsg["type"])
	assert.Equal(t, "CREATE_ROOM_ERROR", errMsg["code"])
}

func TestLeaveRoom(t *testing.T) {
	ctl := newTestGateway()
	hostConn := connect(ctl, "s-host")
	guestConn := connect(ctl, "s-guest")

	send(ctl, "s-host", hostConn, map[string]any{
		"type": "create_room",
		"user": map[string]any{"displayName": "ana"},
	})
	code := roomCode(t, recv(t, hostConn))

	send(ctl, "s-guest", guestConn, map[string]any{
		"type":     "join_room",
		"roomCode": code,
		"user":     map[string]any{"displayName": "bob"},
	})
	recv(t, hostConn)
	recv(t, guestConn)

	send(ctl, "s-host", hostConn, map[string]any{
		"type":     "leave_room",
		"roomCode": code,
	})
	left := recv(t, hostConn)
	assert.Equal(t, "left", left["type"])

	// The remaining member sees the handoff; the leaver does not.
	updated := recv(t, guestConn)
	require.Equal(t, "room_updated", updated["type"])
	room := updated["room"].(map[string]any)
	members := room["members"].([]any)
	assert.Len(t, members, 1)
	assert.Equal(t, room["hostId"], members[0].(map[string]any)["id"])
	assertSilent(t, hostConn)
}

func TestJoinSecondRoomWhileBoundRejected(t *testing.T) {
	ctl := newTestGateway()
	hostA := connect(ctl, "s-host-a")
	hostB := connect(ctl, "s-host-b")
	guest := connect(ctl, "s-guest")

	send(ctl, "s-host-a", hostA, map[string]any{
		"type": "create_room",
		"user": map[string]any{"displayName": "ana"},
	})
	codeA := roomCode(t, recv(t, hostA))
	send(ctl, "s-host-b", hostB, map[string]any{
		"type": "create_room",
		"user": map[string]any{"displayName": "bea"},
	})
	codeB := roomCode(t, recv(t, hostB))

	send(ctl, "s-guest", guest, map[string]any{
		"type":     "join_room",
		"roomCode": codeA,
		"user":     map[string]any{"id": "guest-1", "displayName": "bob"},
	})
	recv(t, hostA)
	recv(t, guest)

	send(ctl, "s-guest", guest, map[string]any{
		"type":     "join_room",
		"roomCode": codeB,
		"user":     map[string]any{"id": "guest-1", "displayName": "bob"},
	})
	errMsg := recv(t, guest)
	assert.Equal(t, "error", errMsg["type"])
	assert.Equal(t, "JOIN_ROOM_ERROR", errMsg["code"])
	assertSilent(t, hostB)

	roomB, ok := ctl.Repo.GetByCode(codeB)
	require.True(t, ok)
	assert.Len(t, roomB.Members, 1)

	// The disconnect settles the room the guest is actually in, so the
	// reaper drops the membership instead of leaving a Connected ghost.
	ctl.onDisconnect("s-guest")
	recv(t, hostA)
	ctl.Lifecycle.ReapIdle()
	roomA, ok := ctl.Repo.GetByCode(codeA)
	require.True(t, ok)
	assert.Nil(t, roomA.Member("guest-1"))
}

func TestRejoinBoundRoomRefreshes(t *testing.T) {
	ctl := newTestGateway()
	hostConn := connect(ctl, "s-host")
	guestConn := connect(ctl, "s-guest")

	send(ctl, "s-host", hostConn, map[string]any{
		"type": "create_room",
		"user": map[string]any{"displayName": "ana"},
	})
	code := roomCode(t, recv(t, hostConn))

	send(ctl, "s-guest", guestConn, map[string]any{
		"type":     "join_room",
		"roomCode": code,
		"user":     map[string]any{"id": "guest-1", "displayName": "bob"},
	})
	recv(t, hostConn)
	recv(t, guestConn)

	send(ctl, "s-guest", guestConn, map[string]any{
		"type":     "join_room",
		"roomCode": code,
		"user":     map[string]any{"id": "guest-1", "displayName": "bobby"},
	})
	updated := recv(t, guestConn)
	require.Equal(t, "room_updated", updated["type"])
	members := updated["room"].(map[string]any)["members"].([]any)
	assert.Len(t, members, 2)
	assert.Equal(t, "bobby", members[1].(map[string]any)["displayName"])
	recv(t, hostConn)
}

func TestLeaveOtherRoomKeepsBinding(t *testing.T) {
	ctl := newTestGateway()
	c1 := connect(ctl, "s1")
	c2 := connect(ctl, "s2")

	send(ctl, "s1", c1, map[string]any{
		"type": "create_room",
		"user": map[string]any{"displayName": "ana"},
	})
	codeA := roomCode(t, recv(t, c1))
	send(ctl, "s2", c2, map[string]any{
		"type": "create_room",
		"user": map[string]any{"displayName": "bea"},
	})
	codeB := roomCode(t, recv(t, c2))

	// Leaving a room the session is not a member of is a no-op there and
	// must not clear the session's real binding.
	send(ctl, "s1", c1, map[string]any{
		"type":     "leave_room",
		"roomCode": codeB,
	})
	assert.Equal(t, "left", recv(t, c1)["type"])
	assert.Equal(t, "room_updated", recv(t, c2)["type"])

	_, bound := ctl.Registry.RoomOf("s1")
	assert.True(t, bound)
	roomA, ok := ctl.Repo.GetByCode(codeA)
	require.True(t, ok)
	ctl.BroadcastRoomUpdated(roomA)
	assert.Equal(t, "room_updated", recv(t, c1)["type"])
}

func TestCompositionPassthrough(t *testing.T) {
	ctl := newTestGateway()
	hostConn := connect(ctl, "s-host")
	guestConn := connect(ctl, "s-guest")

	send(ctl, "s-host", hostConn, map[string]any{
		"type": "create_room",
		"user": map[string]any{"displayName": "ana"},
	})
	code := roomCode(t, recv(t, hostConn))

	send(ctl, "s-guest", guestConn, map[string]any{
		"type":     "join_room",
		"roomCode": code,
		"user":     map[string]any{"displayName": "bob"},
	})
	recv(t, hostConn)
	recv(t, guestConn)

	send(ctl, "s-guest", guestConn, map[string]any{
		"type":     "composition_updated",
		"roomCode": code,
		"composition": map[string]any{
			"tempo":  120,
			"tracks": []any{map[string]any{"instrument": "kick", "notes": []any{}}},
		},
	})
	for _, conn := range []*WsSignalConn{hostConn, guestConn} {
		msg := recv(t, conn)
		require.Equal(t, "composition_updated", msg["type"])
		comp := msg["composition"].(map[string]any)
		assert.Equal(t, float64(120), comp["tempo"])
	}
}

func TestVotePassthroughRequiresRoom(t *testing.T) {
	ctl := newTestGateway()
	conn := connect(ctl, "s1")

	send(ctl, "s1", conn, map[string]any{
		"type":     "submit_vote",
		"roomCode": "ZZZZZZ",
		"vote":     map[string]any{"for": "someone"},
	})
	errMsg := recv(t, conn)
	assert.Equal(t, "error", errMsg["type"])
	assert.Equal(t, "SUBMIT_VOTE_ERROR", errMsg["code"])
}

func TestDisconnectMarksMemberAndNotifiesRoom(t *testing.T) {
	ctl := newTestGateway()
	hostConn := connect(ctl, "s-host")
	guestConn := connect(ctl, "s-guest")

	send(ctl, "s-host", hostConn, map[string]any{
		"type": "create_room",
		"user": map[string]any{"displayName": "ana"},
	})
	code := roomCode(t, recv(t, hostConn))

	send(ctl, "s-guest", guestConn, map[string]any{
		"type":     "join_room",
		"roomCode": code,
		"user":     map[string]any{"displayName": "bob"},
	})
	recv(t, hostConn)
	recv(t, guestConn)

	ctl.onDisconnect("s-guest")

	updated := recv(t, hostConn)
	require.Equal(t, "room_updated", updated["type"])
	members := updated["room"].(map[string]any)["members"].([]any)
	// Membership survives a disconnect; the reaper settles it later.
	assert.Len(t, members, 2)
	_, bound := ctl.Registry.User("s-guest")
	assert.False(t, bound)
}

func TestUnknownEventIsIgnored(t *testing.T) {
	ctl := newTestGateway()
	conn := connect(ctl, "s1")
	send(ctl, "s1", conn, map[string]any{"type": "interpretive_dance"})
	assertSilent(t, conn)
}

func TestRateLimiter(t *testing.T) {
	rl := NewMessageRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("s1"), "message %d should pass", i)
	}
	assert.False(t, rl.Allow("s1"))
	// Other sessions keep their own window.
	assert.True(t, rl.Allow("s2"))

	rl.Forget("s1")
	assert.True(t, rl.Allow("s1"))
}

func TestPing(t *testing.T) {
	ctl := newTestGateway()
	conn := connect(ctl, "s1")
	send(ctl, "s1", conn, map[string]any{"type": "ping"})
	assert.Equal(t, "pong", recv(t, conn)["type"])
}

func TestRenameAndWhoAmI(t *testing.T) {
	ctl := newTestGateway()
	conn := connect(ctl, "s1")

	send(ctl, "s1", conn, map[string]any{
		"type": "create_room",
		"user": map[string]any{"displayName": "ana"},
	})
	code := roomCode(t, recv(t, conn))

	send(ctl, "s1", conn, map[string]any{"type": "rename", "name": "ana banana"})
	updated := recv(t, conn)
	require.Equal(t, "room_updated", updated["type"])
	members := updated["room"].(map[string]any)["members"].([]any)
	assert.Equal(t, "ana banana", members[0].(map[string]any)["displayName"])

	who := recv(t, conn)
	require.Equal(t, "whoami", who["type"])
	assert.Equal(t, code, who["roomCode"])
	assert.Equal(t, "ana banana", who["user"].(map[string]any)["displayName"])
}

func TestManyRoomsStayIsolated(t *testing.T) {
	ctl := newTestGateway()
	conns := map[app.SessionID]*WsSignalConn{}
	codes := map[app.SessionID]string{}
	for i := 0; i < 5; i++ {
		sid := app.SessionID(fmt.Sprintf("s%d", i))
		conns[sid] = connect(ctl, sid)
		send(ctl, sid, conns[sid], map[string]any{
			"type": "create_room",
			"user": map[string]any{"displayName": fmt.Sprintf("host%d", i)},
		})
		codes[sid] = roomCode(t, recv(t, conns[sid]))
	}
	// A composition in one room reaches nobody else.
	send(ctl, "s0", conns["s0"], map[string]any{
		"type":        "composition_updated",
		"roomCode":    codes["s0"],
		"composition": map[string]any{"tempo": 90},
	})
	assert.Equal(t, "composition_updated", recv(t, conns["s0"])["type"])
	for i := 1; i < 5; i++ {
		assertSilent(t, conns[app.SessionID(fmt.Sprintf("s%d", i))])
	}
}
