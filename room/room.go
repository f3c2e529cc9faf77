package room

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownConnection is returned for a connection that has not joined a room (or has left).
	ErrUnknownConnection = errors.New("connection has not joined a room")
	// ErrMalformedJoin is returned for a join without display name or room.
	ErrMalformedJoin = errors.New("malformed join")
)

// Membership associates a live connection with the room it has joined and the name it is displayed with.
type Membership struct {
	ConnectionId string
	Username     string
	Room         string
}

// Directory maps connections to their membership. There is at most one membership per connection.
// A Directory is not safe for concurrent use, it is owned by the hub loop.
type Directory struct {
	byConnection map[string]Membership
	byRoom       map[string]map[string]struct{}
}

func NewDirectory() *Directory {
	return &Directory{
		byConnection: make(map[string]Membership),
		byRoom:       make(map[string]map[string]struct{}),
	}
}

// Join records the membership of connectionId, replacing a previous one.
func (d *Directory) Join(connectionId, username, room string) (Membership, error) {
	if connectionId == "" {
		return Membership{}, fmt.Errorf("%w: no connection id", ErrMalformedJoin)
	}
	if username == "" {
		return Membership{}, fmt.Errorf("%w: no username", ErrMalformedJoin)
	}
	if room == "" {
		return Membership{}, fmt.Errorf("%w: no room", ErrMalformedJoin)
	}
	d.Leave(connectionId)
	m := Membership{
		ConnectionId: connectionId,
		Username:     username,
		Room:         room,
	}
	d.byConnection[connectionId] = m
	members, ok := d.byRoom[room]
	if !ok {
		members = make(map[string]struct{})
		d.byRoom[room] = members
	}
	members[connectionId] = struct{}{}
	return m, nil
}

func (d *Directory) Lookup(connectionId string) (Membership, error) {
	m, ok := d.byConnection[connectionId]
	if !ok {
		return Membership{}, fmt.Errorf("%w: %s", ErrUnknownConnection, connectionId)
	}
	return m, nil
}

// Leave removes the membership of connectionId and returns it, ok is false if there was none.
func (d *Directory) Leave(connectionId string) (m Membership, ok bool) {
	m, ok = d.byConnection[connectionId]
	if !ok {
		return Membership{}, false
	}
	delete(d.byConnection, connectionId)
	if members, found := d.byRoom[m.Room]; found {
		delete(members, connectionId)
		if len(members) == 0 {
			delete(d.byRoom, m.Room)
		}
	}
	return m, true
}

// Members returns the memberships of room ordered by connection id.
func (d *Directory) Members(room string) []Membership {
	members := d.byRoom[room]
	res := make([]Membership, 0, len(members))
	for connectionId := range members {
		res = append(res, d.byConnection[connectionId])
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ConnectionId < res[j].ConnectionId })
	return res
}

// Rooms returns the ids of all rooms with at least one member, sorted.
func (d *Directory) Rooms() []string {
	rooms := make([]string, 0, len(d.byRoom))
	for r := range d.byRoom {
		rooms = append(rooms, r)
	}
	sort.Strings(rooms)
	return rooms
}

// Len returns the number of memberships.
func (d *Directory) Len() int {
	return len(d.byConnection)
}
