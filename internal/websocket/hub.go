// Package websocket pushes player changes and announcements to connected
// admin dashboards.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/clicker-admin/internal/domain"
)

// Message types
const (
	MessageTypePlayersChanged       = "players_changed"
	MessageTypePlayersCursor        = "players_cursor"
	MessageTypeAnnouncement         = "announcement"
	MessageTypePendingAnnouncements = "pending_announcements"
	MessageTypeSubscribe            = "subscribe"
	MessageTypeSubscribed           = "subscribed"
	MessageTypeUnsubscribe          = "unsubscribe"
	MessageTypeUnsubscribed         = "unsubscribed"
	MessageTypePing                 = "ping"
	MessageTypePong                 = "pong"
	MessageTypeError                = "error"
)

// Topics a client can subscribe to
const (
	TopicPlayers       = "players"
	TopicAnnouncements = "announcements"
)

// ValidTopic reports whether topic can be subscribed to.
func ValidTopic(topic string) bool {
	return topic == TopicPlayers || topic == TopicAnnouncements
}

// ErrBroadcastFull is returned when the hub cannot accept another message.
var ErrBroadcastFull = errors.New("broadcast channel full")

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Topic     string      `json:"topic,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Request is a message sent by a dashboard
type Request struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"`
}

// PlayersChange tells dashboards which players were mutated. Seq grows by
// one per change so a dashboard can spot gaps after reconnecting.
type PlayersChange struct {
	Seq       uint64   `json:"seq"`
	Action    string   `json:"action"`
	PlayerIDs []string `json:"player_ids"`
}

// PlayersCursor is sent on subscribing to players: the latest sequence
// number and the change that produced it.
type PlayersCursor struct {
	Seq  uint64         `json:"seq"`
	Last *PlayersChange `json:"last,omitempty"`
}

// AnnouncementSource lists announcements the relay has not delivered yet.
type AnnouncementSource interface {
	PendingAnnouncements(ctx context.Context) ([]domain.Announcement, error)
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by topic
	clients map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Inbound messages from clients
	broadcast chan *Message

	// Subscription requests
	subscribe chan *subscriptionRequest

	// Unsubscription requests
	unsubscribe chan *subscriptionRequest

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Latest players change, guarded by mu
	lastChange *PlayersChange

	// Pending announcements sent on subscribe, may be nil
	pending AnnouncementSource

	// Logger
	logger *slog.Logger

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client *Client
	topic  string
}

// NewHub creates a new Hub. pending may be nil.
func NewHub(pending AnnouncementSource, logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		pending:     pending,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				// Remove from all topic subscriptions
				for topic, clients := range h.clients {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.clients, topic)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.clients[req.topic]; !ok {
				h.clients[req.topic] = make(map[*Client]bool)
			}
			h.clients[req.topic][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "topic", req.topic)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.clients[req.topic]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.clients, req.topic)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "topic", req.topic)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to all subscribed clients
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	// If message has a topic, only send to subscribed clients
	targets := h.allClients
	if message.Topic != "" {
		targets = h.clients[message.Topic]
	}
	for client := range targets {
		select {
		case client.send <- data:
		default:
			// Client's buffer is full, skip
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

func (h *Hub) enqueue(message *Message) error {
	if h.ctx.Err() != nil {
		return h.ctx.Err()
	}
	select {
	case h.broadcast <- message:
		return nil
	default:
		return ErrBroadcastFull
	}
}

// PlayersChanged notifies subscribed dashboards that players were mutated
func (h *Hub) PlayersChanged(action string, playerIDs ...string) {
	h.mu.Lock()
	change := &PlayersChange{Action: action, PlayerIDs: playerIDs}
	if h.lastChange != nil {
		change.Seq = h.lastChange.Seq
	}
	change.Seq++
	h.lastChange = change
	h.mu.Unlock()

	message := &Message{
		Type:      MessageTypePlayersChanged,
		Topic:     TopicPlayers,
		Data:      *change,
		Timestamp: time.Now(),
	}
	if err := h.enqueue(message); err != nil {
		h.logger.Warn("dropping players change", "action", action, "error", err)
	}
}

// snapshot returns the state a new subscriber of topic starts from, or nil
// when the topic has none.
func (h *Hub) snapshot(ctx context.Context, topic string) (*Message, error) {
	switch topic {
	case TopicPlayers:
		h.mu.RLock()
		cursor := PlayersCursor{}
		if h.lastChange != nil {
			last := *h.lastChange
			cursor.Seq, cursor.Last = last.Seq, &last
		}
		h.mu.RUnlock()
		return &Message{Type: MessageTypePlayersCursor, Topic: topic, Data: cursor, Timestamp: time.Now()}, nil

	case TopicAnnouncements:
		if h.pending == nil {
			return nil, nil
		}
		pending, err := h.pending.PendingAnnouncements(ctx)
		if err != nil {
			return nil, err
		}
		if pending == nil {
			pending = []domain.Announcement{}
		}
		return &Message{Type: MessageTypePendingAnnouncements, Topic: topic, Data: pending, Timestamp: time.Now()}, nil
	}
	return nil, nil
}

// Name identifies the hub as an announcement destination
func (h *Hub) Name() string { return "websocket" }

// Dispatch relays an announcement to subscribed clients
func (h *Hub) Dispatch(_ context.Context, a domain.Announcement) error {
	return h.enqueue(&Message{
		Type:      MessageTypeAnnouncement,
		Topic:     TopicAnnouncements,
		Data:      a,
		Timestamp: time.Now(),
	})
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a topic
func (h *Hub) Subscribe(client *Client, topic string) {
	h.subscribe <- &subscriptionRequest{client: client, topic: topic}
}

// Unsubscribe removes a client from a topic
func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.unsubscribe <- &subscriptionRequest{client: client, topic: topic}
}

// GetSubscriberCount returns the number of subscribers for a topic
func (h *Hub) GetSubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}

