package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseCanAdvance(t *testing.T) {
	cases := []struct {
		from, to Phase
		want     bool
	}{
		{PhaseWaiting, PhaseComposing, true},
		{PhaseComposing, PhaseVoting, true},
		{PhaseVoting, PhaseResults, true},
		{PhaseWaiting, PhaseVoting, false},
		{PhaseComposing, PhaseWaiting, false},
		{PhaseResults, PhaseResults, false},
		{PhaseResults, PhaseWaiting, false},
		{Phase("bogus"), PhaseComposing, false},
		{PhaseWaiting, Phase("bogus"), false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.from.CanAdvance(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestRoomMemberLookup(t *testing.T) {
	room := &Room{Members: []*User{{ID: "a"}, {ID: "b"}}}
	require.NotNil(t, room.Member("b"))
	assert.Nil(t, room.Member("c"))
}

func TestRoomSnapshotCopiesMembers(t *testing.T) {
	room := &Room{Members: []*User{{ID: "a", DisplayName: "ana"}}}
	snap := room.Snapshot()
	snap.Members[0].DisplayName = "changed"
	assert.Equal(t, "ana", room.Members[0].DisplayName)
}

func TestNewUser(t *testing.T) {
	u, err := NewUser("ana")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, Connected, u.State)

	_, err = NewUser("")
	assert.ErrorIs(t, err, ErrDisplayNameEmpty)

	_, err = NewUser(strings.Repeat("x", MaxDisplayNameLen+1))
	assert.ErrorIs(t, err, ErrDisplayNameTooLong)
}

func TestSetDisplayName(t *testing.T) {
	u := &User{ID: "a", DisplayName: "ana"}
	require.NoError(t, u.SetDisplayName("bo"))
	assert.Equal(t, "bo", u.DisplayName)
	assert.Error(t, u.SetDisplayName(""))
	assert.Equal(t, "bo", u.DisplayName)
}
