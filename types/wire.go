package types

import "encoding/json"

// Event names of the websocket protocol. The names of the client events are the ones the event page script emits.
const (
	WireEventJoinRoom    = "joinRoom"     // client -> server
	WireEventChatMessage = "chat message" // client -> server, server -> room
	WireEventJoined      = "joined"       // server -> sender
	WireEventError       = "error"        // server -> sender
)

// JSON-serialized WebsocketMessage is what is actually sent via the Websocket connection
type WebsocketMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewWireMessage wraps data in a WebsocketMessage for the given event and serializes it.
func NewWireMessage(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WebsocketMessage{Event: event, Data: raw})
}

// JoinRoomMessage is sent by a client to enter a room. Room is usually the id of an event and may arrive as a number.
type JoinRoomMessage struct {
	Username string `json:"username" mapstructure:"username"`
	Room     string `json:"room" mapstructure:"room"`
}

// IncomingChatMessage is a chat message as sent by a client. Only Msg is trusted, the sender and the room are taken
// from the membership of the connection.
type IncomingChatMessage struct {
	IdEvent  string `json:"idEvent" mapstructure:"idEvent"`
	Username string `json:"username" mapstructure:"username"`
	Msg      string `json:"msg" mapstructure:"msg"`
}

// OutgoingChatMessage is what the members of a room receive for every accepted chat message.
type OutgoingChatMessage struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Username string `json:"username"`
	Msg      string `json:"msg"`
}

// JoinedMessage acknowledges a join to the joining connection.
type JoinedMessage struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

// ErrorMessage reports a failed request to the originating connection only.
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
