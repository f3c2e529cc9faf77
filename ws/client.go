package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aperoland/aperoland-chat/room"
	"github.com/aperoland/aperoland-chat/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mitchellh/mapstructure"
)

const sendChannelSize = 256

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	// Id identifies the connection within the hub and the room directory.
	Id string

	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages. Only the hub writes to and closes it.
	Send chan []byte

	user *types.User

	doneChan chan struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn, user *types.User) *Client {
	return &Client{
		Id:       uuid.NewString(),
		hub:      hub,
		conn:     conn,
		Send:     make(chan []byte, sendChannelSize),
		user:     user,
		doneChan: make(chan struct{}),
	}
}

// User returns the identity the connection was established with.
func (c *Client) User() *types.User {
	return c.user
}

// ReadLoop pumps messages from the websocket connection to the hub.
//
// The application runs ReadLoop in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadLoop() {
	logger := c.hub.logger.Named("client").With("connection", c.Id)
	defer func() {
		close(c.doneChan)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Info("ws closed unexpectedly", "error", err)
			} else {
				logger.Debug("ws closed", "error", err)
			}
			return
		}

		message := types.WebsocketMessage{}
		err = json.Unmarshal(raw, &message)
		if err != nil {
			logger.Debug("could not unmarshal ws message", "error", err)
			c.hub.Notify(c, fmt.Errorf("%w: %s", ErrBadRequest, err))
			continue
		}

		switch message.Event {
		case types.WireEventJoinRoom:
			joinMsg := types.JoinRoomMessage{}
			if err := decodeData(message.Data, &joinMsg); err != nil {
				logger.Debug("could not decode join message", "error", err)
				c.hub.Notify(c, fmt.Errorf("%w: %s", room.ErrMalformedJoin, err))
				continue
			}
			c.hub.JoinRoom(c, joinMsg)

		case types.WireEventChatMessage:
			chatMsg := types.IncomingChatMessage{}
			if err := decodeData(message.Data, &chatMsg); err != nil {
				logger.Debug("could not decode chat message", "error", err)
				c.hub.Notify(c, fmt.Errorf("%w: %s", ErrMalformedMessage, err))
				continue
			}
			c.hub.ChatMessage(c, chatMsg)

		default:
			logger.Debug("unknown event", "event", message.Event)
			c.hub.Notify(c, fmt.Errorf("%w: unknown event %q", ErrBadRequest, message.Event))
		}
	}
}

// decodeData decodes the payload of an event, numbers are accepted where strings are expected.
func decodeData(data json.RawMessage, target interface{}) error {
	m := make(map[string]interface{})
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	return mapstructure.WeakDecode(m, target)
}

// WriteLoop pumps messages from the hub to the websocket connection.
//
// A goroutine running WriteLoop is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WriteLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.doneChan:
			return
		}
	}
}
