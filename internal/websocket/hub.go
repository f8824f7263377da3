package sessionws

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog"

	"github.com/gideonjohnson/PrepCoach-sub004/internal/events"
)

// Hub fans committed marketplace events out to the live connections of their recipients.
// It satisfies events.Publisher so services publish to it like any other sink.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan events.Event
	direct     chan directMessage
	done       chan struct{}
	logger     zerolog.Logger
}

type directMessage struct {
	client  *Client
	payload []byte
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

type Message struct {
	Type      string `json:"type"`
	EventID   string `json:"event_id,omitempty"`
	Payload   any    `json:"payload,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan events.Event, 64),
		direct:     make(chan directMessage, 64),
		done:       make(chan struct{}),
		logger:     logger.With().Str("component", "session_hub").Logger(),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 32),
	}
}

// Run owns the client registry until ctx is done. Only Run closes a client's send
// channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for userID, set := range h.clients {
				for client := range set {
					close(client.send)
				}
				delete(h.clients, userID)
			}
			return
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			set, ok := h.clients[client.userID]
			if !ok {
				continue
			}
			if _, exists := set[client]; exists {
				delete(set, client)
				close(client.send)
			}
			if len(set) == 0 {
				delete(h.clients, client.userID)
			}
		case event := <-h.broadcast:
			h.deliver(event)
		case message := <-h.direct:
			set := h.clients[message.client.userID]
			if _, ok := set[message.client]; ok {
				h.sendToClient(set, message.client, message.payload)
				if len(set) == 0 {
					delete(h.clients, message.client.userID)
				}
			}
		}
	}
}

// Register adds the client. Once the hub has stopped the client is closed instead.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues the event for its recipients. Events without recipients are dropped.
func (h *Hub) Publish(ctx context.Context, event events.Event) error {
	if len(event.Recipients) == 0 {
		return nil
	}
	select {
	case h.broadcast <- event:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) deliver(event events.Event) {
	encoded, err := json.Marshal(Message{
		Type:      event.Type,
		EventID:   event.ID,
		Payload:   event.Payload,
		Timestamp: event.OccurredAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		h.logger.Error().Err(err).Str("event_type", event.Type).Msg("encode hub message")
		return
	}

	seen := make(map[int64]struct{}, len(event.Recipients))
	for _, recipient := range event.Recipients {
		if _, ok := seen[recipient]; ok {
			continue
		}
		seen[recipient] = struct{}{}
		h.sendToUser(strconv.FormatInt(recipient, 10), encoded)
	}
}

func (h *Hub) sendToUser(userID string, payload []byte) {
	set, ok := h.clients[userID]
	if !ok {
		return
	}

	for client := range set {
		h.sendToClient(set, client, payload)
	}
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}

// sendToClient drops a client whose buffer is full.
func (h *Hub) sendToClient(set map[*Client]struct{}, client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		delete(set, client)
		close(client.send)
		h.logger.Warn().Str("user_id", client.userID).Msg("dropped slow websocket client")
	}
}

// ReadPump keeps the connection alive and answers pings. Clients never push events.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(payload, &incoming); err != nil {
			c.reply(Message{Type: "error", Error: "invalid message payload"})
			continue
		}
		if incoming.Type != "ping" {
			c.reply(Message{Type: "error", Error: "unsupported message type"})
			continue
		}
		c.reply(Message{Type: "pong"})
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// reply hands the message to the hub, which drops it if the client is gone.
func (c *Client) reply(message Message) {
	message.Timestamp = time.Now().UTC().Format(time.RFC3339)
	payload, err := json.Marshal(message)
	if err != nil {
		return
	}
	select {
	case c.hub.direct <- directMessage{client: c, payload: payload}:
	case <-c.hub.done:
	}
}
