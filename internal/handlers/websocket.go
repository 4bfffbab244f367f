package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"courtmatch/internal/models"
	"courtmatch/internal/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
	sendBuffer     = 64
)

// WSMessage is the envelope pushed to match subscribers.
type WSMessage struct {
	Type  string                 `json:"type"`
	Match *models.Match          `json:"match,omitempty"`
	Event *models.LifecycleEvent `json:"event,omitempty"`
}

// Hub tracks websocket subscribers per match and fans lifecycle events out to them.
type Hub struct {
	// matchID -> subscribers; one player may hold several connections
	matches map[string]map[*Client]struct{}
	mu      sync.Mutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}

	logger zerolog.Logger
}

type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	matchID  string
	playerID string
	send     chan []byte
}

type BroadcastMessage struct {
	MatchID string
	Message []byte
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		matches:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage),
		done:       make(chan struct{}),
		logger:     logger.With().Str("component", "ws_hub").Logger(),
	}
}

// Run serves register, unregister and broadcast until ctx is cancelled, then
// closes every subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for matchID, subs := range h.matches {
				for c := range subs {
					close(c.send)
				}
				delete(h.matches, matchID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.matches[client.matchID] == nil {
				h.matches[client.matchID] = make(map[*Client]struct{})
			}
			h.matches[client.matchID][client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug().Str("match_id", client.matchID).Str("player_id", client.playerID).Msg("Subscriber registered")

		case client := <-h.unregister:
			h.remove(client)
			h.logger.Debug().Str("match_id", client.matchID).Str("player_id", client.playerID).Msg("Subscriber unregistered")

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.matches[msg.MatchID] {
				select {
				case client.send <- msg.Message:
				default:
					// slow consumer
					close(client.send)
					delete(h.matches[msg.MatchID], client)
				}
			}
			if len(h.matches[msg.MatchID]) == 0 {
				delete(h.matches, msg.MatchID)
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.matches[client.matchID]
	if !ok {
		return
	}
	if _, ok := subs[client]; ok {
		delete(subs, client)
		close(client.send)
	}
	if len(subs) == 0 {
		delete(h.matches, client.matchID)
	}
}

// Subscribers returns how many connections are watching matchID.
func (h *Hub) Subscribers(matchID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.matches[matchID])
}

// Deliver pushes a lifecycle event to the subscribers of its match. Events
// without a match are ignored. It returns immediately once the hub has stopped.
func (h *Hub) Deliver(event models.LifecycleEvent) {
	if event.MatchID == "" {
		return
	}
	data, err := json.Marshal(WSMessage{Type: "match_event", Event: &event})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal lifecycle event")
		return
	}
	select {
	case h.broadcast <- &BroadcastMessage{MatchID: event.MatchID, Message: data}:
	case <-h.done:
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// The feed is one-way; reads only service control frames.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn().Err(err).Str("match_id", c.matchID).Msg("WebSocket read error")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type MatchFeedHandler struct {
	coordinator *services.Coordinator
	hub         *Hub
	upgrader    websocket.Upgrader
}

// NewMatchFeedHandler serves the live status feed. An empty allowedOrigins
// accepts any origin.
func NewMatchFeedHandler(coordinator *services.Coordinator, hub *Hub, allowedOrigins []string) *MatchFeedHandler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o != "" {
			origins[o] = true
		}
	}
	return &MatchFeedHandler{
		coordinator: coordinator,
		hub:         hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origin == "" || origins[origin]
			},
		},
	}
}

// HandleMatchFeed handles GET /ws/matches/{id}. Only the two participants may
// subscribe. The first frame is a snapshot of the match.
func (h *MatchFeedHandler) HandleMatchFeed(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	matchID := mux.Vars(r)["id"]

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	match, err := h.coordinator.GetMatch(ctx, matchID)
	cancel()
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if _, ok := match.RoleOf(actor); !ok {
		respondWithCode(w, http.StatusForbidden, "forbidden", "Only participants can follow this match")
		return
	}

	snapshot, err := json.Marshal(WSMessage{Type: "snapshot", Match: match})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &Client{
		hub:      h.hub,
		conn:     conn,
		matchID:  matchID,
		playerID: actor,
		send:     make(chan []byte, sendBuffer),
	}
	client.send <- snapshot

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
