package ws

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aperoland/aperoland-chat/config"
	"github.com/aperoland/aperoland-chat/filter"
	"github.com/aperoland/aperoland-chat/globals"
	"github.com/aperoland/aperoland-chat/persistence"
	"github.com/aperoland/aperoland-chat/room"
	"github.com/aperoland/aperoland-chat/types"
	"github.com/hashicorp/go-hclog"
)

const (
	maxMessageSize        = 4096
	pongWait              = 2 * time.Minute
	pingPeriod            = time.Minute
	writeWait             = 10 * time.Second
	defaultPersistTimeout = 5 * time.Second
)

type joinRequest struct {
	client *Client
	msg    types.JoinRoomMessage
}

type chatRequest struct {
	client *Client
	msg    types.IncomingChatMessage
}

type notification struct {
	client *Client
	err    error
}

type persistJob struct {
	ctx    context.Context
	client *Client
	msg    types.ChatMessage
}

type persistResult struct {
	client *Client
	msg    types.ChatMessage
	err    error
}

// Hub owns the connections and their room memberships. All events are handled one after another by Run, so the
// directory is never mutated concurrently. Storing a chat message runs outside of the loop, the message is
// broadcast by the loop once storing it succeeded. Messages of one room are stored one at a time, so they are
// broadcast in the order of the history.
type Hub struct {
	directory *room.Directory
	// registered clients by connection id
	clients map[string]*Client

	gateway        persistence.Gateway
	filter         *filter.MessageFilter
	location       *time.Location
	persistTimeout time.Duration
	now            func() time.Time
	// rooms with a write in flight, mapped to the messages waiting for it
	writing map[string][]persistJob

	register   chan *Client
	unregister chan *Client
	join       chan joinRequest
	chat       chan chatRequest
	notify     chan notification
	persisted  chan persistResult
	done       chan struct{}

	logger hclog.Logger
}

func NewHub(cfg *config.Config, gateway persistence.Gateway) (*Hub, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	messageFilter, err := filter.Compile(cfg.FilterConfig.Message)
	if err != nil {
		return nil, err
	}
	persistTimeout := cfg.PersistenceConfig.Timeout
	if persistTimeout <= 0 {
		persistTimeout = defaultPersistTimeout
	}
	return &Hub{
		directory:      room.NewDirectory(),
		clients:        make(map[string]*Client),
		gateway:        gateway,
		filter:         messageFilter,
		location:       loc,
		persistTimeout: persistTimeout,
		now:            time.Now,
		writing:        make(map[string][]persistJob),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		join:           make(chan joinRequest),
		chat:           make(chan chatRequest),
		notify:         make(chan notification),
		persisted:      make(chan persistResult),
		done:           make(chan struct{}),
		logger:         globals.AppLogger.Named("hub"),
	}, nil
}

// Register adds a connected client (state CONNECTED). It blocks until the hub loop took the client and returns
// false without registering once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes the client and its membership and closes its Send channel.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// JoinRoom moves the client into a room, replacing a previous membership.
func (h *Hub) JoinRoom(c *Client, msg types.JoinRoomMessage) {
	select {
	case h.join <- joinRequest{client: c, msg: msg}:
	case <-h.done:
	}
}

// ChatMessage stores and broadcasts a message of the client to its room.
func (h *Hub) ChatMessage(c *Client, msg types.IncomingChatMessage) {
	select {
	case h.chat <- chatRequest{client: c, msg: msg}:
	case <-h.done:
	}
}

// Notify reports err to the client.
func (h *Hub) Notify(c *Client, err error) {
	select {
	case h.notify <- notification{client: c, err: err}:
	case <-h.done:
	}
}

// Done is closed when Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Run is the main hub event loop. It returns when ctx is cancelled, closing the Send channels of all clients.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("start hub run loop")
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client.Id] = client
			h.logger.Debug("registered client", "connection", client.Id, "clients", len(h.clients))

		case client := <-h.unregister:
			h.disconnect(client)

		case req := <-h.join:
			h.handleJoin(req)

		case req := <-h.chat:
			h.handleChat(ctx, req)

		case n := <-h.notify:
			h.sendError(n.client, n.err)

		case res := <-h.persisted:
			h.handlePersisted(res)
		}
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	for id, client := range h.clients {
		h.directory.Leave(id)
		close(client.Send)
		delete(h.clients, id)
	}
	h.logger.Info("hub stopped")
}

func (h *Hub) registered(c *Client) bool {
	registered, ok := h.clients[c.Id]
	return ok && registered == c
}

func (h *Hub) disconnect(c *Client) {
	if !h.registered(c) {
		return
	}
	delete(h.clients, c.Id)
	if m, ok := h.directory.Leave(c.Id); ok {
		h.logger.Debug("client left room", "connection", c.Id, "room", m.Room)
	}
	close(c.Send)
	h.logger.Debug("unregistered client", "connection", c.Id, "clients", len(h.clients))
}

func (h *Hub) handleJoin(req joinRequest) {
	c := req.client
	if !h.registered(c) {
		h.logger.Debug("ignoring join of unregistered client", "connection", c.Id)
		return
	}
	username := req.msg.Username
	if c.user != nil && c.user.Authenticated {
		username = c.user.Username
	}
	m, err := h.directory.Join(c.Id, strings.TrimSpace(username), strings.TrimSpace(req.msg.Room))
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.logger.Debug("client joined room", "connection", c.Id, "room", m.Room, "username", m.Username)
	h.send(c, types.WireEventJoined, types.JoinedMessage{Room: m.Room, Username: m.Username})
}

func (h *Hub) handleChat(ctx context.Context, req chatRequest) {
	c := req.client
	if !h.registered(c) {
		h.logger.Debug("ignoring chat message of unregistered client", "connection", c.Id)
		return
	}
	m, err := h.directory.Lookup(c.Id)
	if err != nil {
		h.sendError(c, err)
		return
	}
	text := strings.TrimSpace(req.msg.Msg)
	if text == "" {
		h.sendError(c, fmt.Errorf("%w: empty message", ErrMalformedMessage))
		return
	}
	if req.msg.IdEvent != "" && strings.TrimSpace(req.msg.IdEvent) != m.Room {
		h.sendError(c, fmt.Errorf("%w: joined %s, got %s", ErrRoomMismatch, m.Room, req.msg.IdEvent))
		return
	}
	if err := h.filter.Check(filter.NewEnv(c.user, m.Room, text)); err != nil {
		h.sendError(c, err)
		return
	}
	msg, err := types.NewChatMessage(m.Room, m.Username, text, h.now(), h.location)
	if err != nil {
		h.sendError(c, fmt.Errorf("%w: %s", ErrMalformedMessage, err))
		return
	}
	h.enqueue(persistJob{ctx: ctx, client: c, msg: msg})
}

// enqueue starts storing job, or queues it behind the write in flight for its room.
func (h *Hub) enqueue(job persistJob) {
	room := job.msg.IdEvent
	if queue, ok := h.writing[room]; ok {
		h.writing[room] = append(queue, job)
		return
	}
	h.writing[room] = nil
	go h.persist(job)
}

// persist runs outside of the hub loop and hands the result back to it.
func (h *Hub) persist(job persistJob) {
	ctx, cancel := context.WithTimeout(job.ctx, h.persistTimeout)
	defer cancel()
	err := h.gateway.Append(ctx, job.msg)
	select {
	case h.persisted <- persistResult{client: job.client, msg: job.msg, err: err}:
	case <-h.done:
	}
}

func (h *Hub) handlePersisted(res persistResult) {
	room := res.msg.IdEvent
	if queue := h.writing[room]; len(queue) > 0 {
		h.writing[room] = queue[1:]
		go h.persist(queue[0])
	} else {
		delete(h.writing, room)
	}
	if res.err != nil {
		h.logger.Error("could not persist chat message", "room", room, "connection", res.client.Id, "error", res.err)
		h.sendError(res.client, ErrPersistence)
		return
	}
	h.broadcast(res.msg)
}

// broadcast sends msg to every client currently in the message's room, the sender included.
func (h *Hub) broadcast(msg types.ChatMessage) {
	data, err := types.NewWireMessage(types.WireEventChatMessage, msg.Outgoing())
	if err != nil {
		h.logger.Error("could not marshal chat message", "error", err)
		return
	}
	members := h.directory.Members(msg.IdEvent)
	for _, m := range members {
		if c, ok := h.clients[m.ConnectionId]; ok {
			h.deliver(c, data)
		}
	}
	h.logger.Trace("broadcast chat message", "room", msg.IdEvent, "members", len(members))
}

func (h *Hub) send(c *Client, event string, payload interface{}) {
	data, err := types.NewWireMessage(event, payload)
	if err != nil {
		h.logger.Error("could not marshal message", "event", event, "error", err)
		return
	}
	h.deliver(c, data)
}

func (h *Hub) sendError(c *Client, err error) {
	if !h.registered(c) {
		return
	}
	h.logger.Debug("reporting error to client", "connection", c.Id, "error", err)
	h.send(c, types.WireEventError, types.ErrorMessage{Code: errorCode(err), Message: err.Error()})
}

// deliver never blocks the loop: a client that does not keep up misses the message.
func (h *Hub) deliver(c *Client, data []byte) {
	select {
	case c.Send <- data:
	default:
		h.logger.Warn("send buffer full, dropping message", "connection", c.Id)
	}
}
