package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChatMessageZeroPads(t *testing.T) {
	at := time.Date(2024, time.March, 5, 9, 7, 3, 0, time.UTC)
	msg, err := NewChatMessage("42", "alice", "hello", at, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", msg.Date)
	assert.Equal(t, "09:07:03", msg.Time)
	assert.Equal(t, "42", msg.IdEvent)
	assert.Equal(t, at, msg.Created)
	assert.NotEmpty(t, msg.Id)
}

func TestNewChatMessageUsesLocation(t *testing.T) {
	paris := time.FixedZone("CET", 3600)
	at := time.Date(2023, time.December, 31, 23, 30, 0, 0, time.UTC)
	msg, err := NewChatMessage("1", "bob", "happy new year", at, paris)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", msg.Date)
	assert.Equal(t, "00:30:00", msg.Time)
}

func TestNewChatMessageTrims(t *testing.T) {
	msg, err := NewChatMessage("1", "  bob ", "\thi there \n", time.Now(), nil)
	require.NoError(t, err)
	assert.Equal(t, "bob", msg.Username)
	assert.Equal(t, "hi there", msg.Message)
}

func TestCreateId(t *testing.T) {
	at := time.Date(2024, time.March, 5, 9, 7, 3, 0, time.UTC)
	a, err := NewChatMessage("1", "bob", "hi", at, time.UTC)
	require.NoError(t, err)
	b, err := NewChatMessage("1", "bob", "hi", at, time.UTC)
	require.NoError(t, err)
	c, err := NewChatMessage("1", "bob", "hi", at.Add(time.Nanosecond), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, a.Id, b.Id)
	assert.NotEqual(t, a.Id, c.Id)
}

func TestNewWireMessage(t *testing.T) {
	msg, err := NewChatMessage("1", "bob", "hi", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), time.UTC)
	require.NoError(t, err)
	raw, err := NewWireMessage(WireEventChatMessage, msg.Outgoing())
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"chat message","data":{"date":"2024-01-02","time":"03:04:05","username":"bob","msg":"hi"}}`, string(raw))

	wm := WebsocketMessage{}
	require.NoError(t, json.Unmarshal(raw, &wm))
	assert.Equal(t, WireEventChatMessage, wm.Event)
}
