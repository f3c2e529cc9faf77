package ws

import (
	"errors"

	"github.com/aperoland/aperoland-chat/filter"
	"github.com/aperoland/aperoland-chat/room"
)

var (
	// ErrMalformedMessage is returned for a chat message without text or with an undecodable payload.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrRoomMismatch is returned for a chat message addressed to a room the connection has not joined.
	ErrRoomMismatch = errors.New("message addressed to another room")
	// ErrPersistence is returned when a message could not be stored, it is not broadcast.
	ErrPersistence = errors.New("could not persist message")
	// ErrBadRequest is returned for frames that are no valid websocket messages or carry an unknown event.
	ErrBadRequest = errors.New("bad request")
)

// Codes of the error event sent to the originating connection.
const (
	CodeUnknownConnection = "unknown_connection"
	CodeMalformedJoin     = "malformed_join"
	CodeMalformedMessage  = "malformed_message"
	CodeRoomMismatch      = "room_mismatch"
	CodeRejected          = "rejected"
	CodePersistenceFailed = "persistence_failed"
	CodeBadRequest        = "bad_request"
)

func errorCode(err error) string {
	switch {
	case errors.Is(err, room.ErrUnknownConnection):
		return CodeUnknownConnection
	case errors.Is(err, room.ErrMalformedJoin):
		return CodeMalformedJoin
	case errors.Is(err, ErrMalformedMessage):
		return CodeMalformedMessage
	case errors.Is(err, ErrRoomMismatch):
		return CodeRoomMismatch
	case errors.Is(err, filter.ErrRejected):
		return CodeRejected
	case errors.Is(err, ErrPersistence):
		return CodePersistenceFailed
	default:
		return CodeBadRequest
	}
}
