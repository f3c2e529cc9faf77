package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aperoland/aperoland-chat/auth"
	"github.com/aperoland/aperoland-chat/config"
	"github.com/aperoland/aperoland-chat/globals"
	"github.com/aperoland/aperoland-chat/persistence"
	"github.com/aperoland/aperoland-chat/ws"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
)

const maxHistoryLimit = 1000

// Server serves the chat websocket and the room history.
type Server struct {
	cfg      *config.Config
	hub      *ws.Hub
	history  persistence.Gateway
	upgrader websocket.Upgrader
	logger   hclog.Logger
}

// NewServer returns a Server handing connections to hub and answering history queries from history, which is
// usually the cached gateway.
func NewServer(cfg *config.Config, hub *ws.Hub, history persistence.Gateway) *Server {
	origins := newOriginPolicy(cfg.AllowedOrigins)
	return &Server{
		cfg:     cfg,
		hub:     hub,
		history: history,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
		logger: globals.AppLogger.Named("web"),
	}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/chat", s.websocketHandler).Methods(http.MethodGet)
	router.HandleFunc("/events/{idEvent}/chat", s.historyHandler).Methods(http.MethodGet)
	return router
}

// NewHTTPServer wraps handler in an http.Server with production timeouts.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Shutdown gracefully shuts down server, waiting at most timeout for active requests.
func Shutdown(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return server.Shutdown(ctx)
}

// Handle incoming websockets
func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	user, err := auth.Identify(r, s.cfg)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	// Upgrade HTTP request to Websocket
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade error", "error", err)
		return
	}

	c := ws.NewClient(s.hub, conn, user)
	s.logger.Debug("new connection", "connection", c.Id, "user", user.Username, "authenticated", user.Authenticated)
	if !s.hub.Register(c) {
		s.logger.Debug("hub stopped, closing connection", "connection", c.Id)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(time.Second))
		conn.Close()
		return
	}
	defer s.hub.Unregister(c)
	go c.WriteLoop()
	c.ReadLoop()
	s.logger.Debug("connection closed", "connection", c.Id)
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.Identify(r, s.cfg); err != nil {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	idEvent := mux.Vars(r)["idEvent"]
	limit := s.cfg.HistoryConfig.Size
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	msgs, err := s.history.Query(r.Context(), idEvent, limit)
	if err != nil {
		s.logger.Error("could not query history", "room", idEvent, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(msgs); err != nil {
		s.logger.Error("could not write history", "error", err)
	}
}
