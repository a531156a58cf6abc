package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Requests are tiny; anything larger is a misbehaving dashboard
	maxMessageSize = 1024

	// Time allowed to build a topic snapshot for a new subscriber
	snapshotWait = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboards are served from a separate origin; access is gated by the admin token.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one connected dashboard
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger

	// Topics this client subscribed to. Only the read pump touches it.
	topics map[string]bool
}

func newClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		logger: logger.With("client_id", id),
		topics: make(map[string]bool),
	}
}

// handle answers one dashboard request. Subscribing replies with an ack
// followed by the topic's snapshot.
func (c *Client) handle(req Request) []*Message {
	switch req.Type {
	case MessageTypeSubscribe:
		if !ValidTopic(req.Topic) {
			return []*Message{errorMessage("unknown topic " + req.Topic)}
		}
		if !c.topics[req.Topic] {
			c.topics[req.Topic] = true
			c.hub.Subscribe(c, req.Topic)
		}
		replies := []*Message{reply(MessageTypeSubscribed, req.Topic)}

		ctx, cancel := context.WithTimeout(c.hub.ctx, snapshotWait)
		defer cancel()
		snap, err := c.hub.snapshot(ctx, req.Topic)
		if err != nil {
			c.logger.Warn("topic snapshot failed", "topic", req.Topic, "error", err)
			return append(replies, errorMessage("snapshot unavailable"))
		}
		if snap != nil {
			replies = append(replies, snap)
		}
		return replies

	case MessageTypeUnsubscribe:
		if !c.topics[req.Topic] {
			return []*Message{errorMessage("not subscribed to " + req.Topic)}
		}
		delete(c.topics, req.Topic)
		c.hub.Unsubscribe(c, req.Topic)
		return []*Message{reply(MessageTypeUnsubscribed, req.Topic)}

	case MessageTypePing:
		return []*Message{reply(MessageTypePong, "")}
	}

	c.logger.Debug("unknown message type", "type", req.Type)
	return []*Message{errorMessage("unknown message type " + req.Type)}
}

// readPump decodes requests until the connection drops
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var req Request
		if err := c.conn.ReadJSON(&req); err != nil {
			if malformed(err) {
				c.queue(errorMessage("invalid message format"))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			return
		}
		for _, m := range c.handle(req) {
			c.queue(m)
		}
	}
}

// writePump writes one frame per queued message and keeps the peer alive
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

// queue hands a reply to the write pump, dropping it if the client lags
func (c *Client) queue(m *Message) {
	data, err := json.Marshal(m)
	if err != nil {
		c.logger.Error("failed to marshal reply", "type", m.Type, "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("client buffer full, dropping reply", "type", m.Type)
	}
}

func malformed(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func reply(kind, topic string) *Message {
	return &Message{Type: kind, Topic: topic, Timestamp: time.Now()}
}

func errorMessage(text string) *Message {
	return &Message{
		Type:      MessageTypeError,
		Data:      map[string]string{"error": text},
		Timestamp: time.Now(),
	}
}

// ServeWs upgrades an authenticated request and starts the client pumps
func ServeWs(hub *Hub, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(hub, conn, logger)
	hub.Register(client)

	go client.writePump()
	go client.readPump()

	client.logger.Debug("new websocket connection")
}
