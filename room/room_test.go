package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinAndLookup(t *testing.T) {
	d := NewDirectory()
	m, err := d.Join("c1", "alice", "42")
	require.NoError(t, err)
	assert.Equal(t, Membership{ConnectionId: "c1", Username: "alice", Room: "42"}, m)

	found, err := d.Lookup("c1")
	require.NoError(t, err)
	assert.Equal(t, m, found)
}

func TestLookupUnknown(t *testing.T) {
	d := NewDirectory()
	_, err := d.Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownConnection)
}

func TestJoinMalformed(t *testing.T) {
	tests := []struct {
		name, conn, user, room string
	}{
		{"no connection", "", "alice", "42"},
		{"no username", "c1", "", "42"},
		{"no room", "c1", "alice", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDirectory()
			_, err := d.Join(tt.conn, tt.user, tt.room)
			assert.ErrorIs(t, err, ErrMalformedJoin)
			assert.Equal(t, 0, d.Len())
		})
	}
}

func TestJoinReplacesMembership(t *testing.T) {
	d := NewDirectory()
	_, err := d.Join("c1", "alice", "42")
	require.NoError(t, err)
	_, err = d.Join("c1", "alice", "43")
	require.NoError(t, err)

	assert.Equal(t, 1, d.Len())
	assert.Empty(t, d.Members("42"))
	assert.Equal(t, []string{"43"}, d.Rooms())
	m, err := d.Lookup("c1")
	require.NoError(t, err)
	assert.Equal(t, "43", m.Room)
}

func TestDuplicateDisplayNamesAllowed(t *testing.T) {
	d := NewDirectory()
	_, err := d.Join("c1", "bob", "42")
	require.NoError(t, err)
	_, err = d.Join("c2", "bob", "42")
	require.NoError(t, err)
	assert.Len(t, d.Members("42"), 2)
}

func TestMembersAndLeave(t *testing.T) {
	d := NewDirectory()
	for _, j := range []Membership{
		{"c2", "bob", "42"},
		{"c1", "alice", "42"},
		{"c3", "carol", "7"},
	} {
		_, err := d.Join(j.ConnectionId, j.Username, j.Room)
		require.NoError(t, err)
	}
	members := d.Members("42")
	require.Len(t, members, 2)
	assert.Equal(t, "c1", members[0].ConnectionId)
	assert.Equal(t, "c2", members[1].ConnectionId)
	assert.Equal(t, []string{"42", "7"}, d.Rooms())

	m, ok := d.Leave("c3")
	assert.True(t, ok)
	assert.Equal(t, "7", m.Room)
	assert.Equal(t, []string{"42"}, d.Rooms())

	_, ok = d.Leave("c3")
	assert.False(t, ok)
	_, err := d.Lookup("c3")
	assert.ErrorIs(t, err, ErrUnknownConnection)
	assert.Equal(t, 2, d.Len())
}
