package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/clicker-admin/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, *slog.Logger) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(nil, logger)
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub, logger
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func TestHub_PlayersChangedReachesSubscribersOnly(t *testing.T) {
	hub, logger := newTestHub(t)

	subscriber := &Client{id: "sub", hub: hub, send: make(chan []byte, 8), logger: logger}
	bystander := &Client{id: "other", hub: hub, send: make(chan []byte, 8), logger: logger}
	hub.Register(subscriber)
	hub.Register(bystander)
	hub.Subscribe(subscriber, TopicPlayers)
	require.Eventually(t, func() bool { return hub.GetSubscriberCount(TopicPlayers) == 1 }, time.Second, 10*time.Millisecond)

	hub.PlayersChanged("ban", "p1")

	msg := receive(t, subscriber)
	assert.Equal(t, MessageTypePlayersChanged, msg.Type)
	assert.Equal(t, TopicPlayers, msg.Topic)
	data, ok := msg.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ban", data["action"])
	assert.EqualValues(t, 1, data["seq"])

	assert.Len(t, bystander.send, 0)
	assert.Equal(t, 2, hub.GetTotalConnections())
}

func TestHub_UnregisterDropsSubscriptions(t *testing.T) {
	hub, logger := newTestHub(t)

	c := &Client{id: "c", hub: hub, send: make(chan []byte, 8), logger: logger}
	hub.Register(c)
	hub.Subscribe(c, TopicAnnouncements)
	require.Eventually(t, func() bool { return hub.GetSubscriberCount(TopicAnnouncements) == 1 }, time.Second, 10*time.Millisecond)

	hub.Unregister(c)
	require.Eventually(t, func() bool { return hub.GetTotalConnections() == 0 }, time.Second, 10*time.Millisecond)
	assert.Zero(t, hub.GetSubscriberCount(TopicAnnouncements))
}

func TestHub_DispatchAfterStopFails(t *testing.T) {
	hub := NewHub(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	hub.Stop()

	err := hub.Dispatch(context.Background(), domain.Announcement{Message: "hi"})
	assert.Error(t, err)
}

func TestServeWs_AnnouncementDelivery(t *testing.T) {
	hub, logger := newTestHub(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, logger, w, r)
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Request{Type: MessageTypeSubscribe, Topic: TopicAnnouncements}))
	var ack Message
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, MessageTypeSubscribed, ack.Type)
	require.Eventually(t, func() bool { return hub.GetSubscriberCount(TopicAnnouncements) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Dispatch(context.Background(), domain.Announcement{Message: "maintenance at noon"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeAnnouncement, msg.Type)
	data, ok := msg.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "maintenance at noon", data["message"])
}

func TestServeWs_UnknownTopic(t *testing.T) {
	hub, logger := newTestHub(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, logger, w, r)
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Request{Type: MessageTypeSubscribe, Topic: "allTimeMoney"}))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeError, msg.Type)
}

type fakePending struct {
	announcements []domain.Announcement
	err           error
}

func (p *fakePending) PendingAnnouncements(context.Context) ([]domain.Announcement, error) {
	return p.announcements, p.err
}

func TestClient_SubscribeSendsPlayersCursor(t *testing.T) {
	hub, logger := newTestHub(t)
	hub.PlayersChanged("ban", "p1")
	hub.PlayersChanged("delete", "p2", "p3")

	c := newClient(hub, nil, logger)
	replies := c.handle(Request{Type: MessageTypeSubscribe, Topic: TopicPlayers})
	require.Len(t, replies, 2)
	assert.Equal(t, MessageTypeSubscribed, replies[0].Type)
	assert.Equal(t, MessageTypePlayersCursor, replies[1].Type)

	cursor, ok := replies[1].Data.(PlayersCursor)
	require.True(t, ok)
	assert.EqualValues(t, 2, cursor.Seq)
	require.NotNil(t, cursor.Last)
	assert.Equal(t, "delete", cursor.Last.Action)
	assert.Equal(t, []string{"p2", "p3"}, cursor.Last.PlayerIDs)
}

func TestClient_SubscribeSendsPendingAnnouncements(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pending := &fakePending{announcements: []domain.Announcement{{ID: "a1", Message: "restart soon"}}}
	hub := NewHub(pending, logger)
	go hub.Run()
	t.Cleanup(hub.Stop)

	c := newClient(hub, nil, logger)
	replies := c.handle(Request{Type: MessageTypeSubscribe, Topic: TopicAnnouncements})
	require.Len(t, replies, 2)
	assert.Equal(t, MessageTypePendingAnnouncements, replies[1].Type)
	assert.Equal(t, pending.announcements, replies[1].Data)
	require.Eventually(t, func() bool { return hub.GetSubscriberCount(TopicAnnouncements) == 1 }, time.Second, 10*time.Millisecond)

	pending.err = domain.ErrStoreUnavailable
	replies = c.handle(Request{Type: MessageTypeSubscribe, Topic: TopicAnnouncements})
	require.Len(t, replies, 2)
	assert.Equal(t, MessageTypeSubscribed, replies[0].Type)
	assert.Equal(t, MessageTypeError, replies[1].Type)
	assert.Equal(t, 1, hub.GetSubscriberCount(TopicAnnouncements))
}

func TestClient_UnsubscribeAndPing(t *testing.T) {
	hub, logger := newTestHub(t)
	c := newClient(hub, nil, logger)

	replies := c.handle(Request{Type: MessageTypeUnsubscribe, Topic: TopicPlayers})
	require.Len(t, replies, 1)
	assert.Equal(t, MessageTypeError, replies[0].Type)

	c.handle(Request{Type: MessageTypeSubscribe, Topic: TopicPlayers})
	replies = c.handle(Request{Type: MessageTypeUnsubscribe, Topic: TopicPlayers})
	require.Len(t, replies, 1)
	assert.Equal(t, MessageTypeUnsubscribed, replies[0].Type)
	assert.Empty(t, c.topics)

	replies = c.handle(Request{Type: MessageTypePing})
	require.Len(t, replies, 1)
	assert.Equal(t, MessageTypePong, replies[0].Type)

	replies = c.handle(Request{Type: "shout"})
	require.Len(t, replies, 1)
	assert.Equal(t, MessageTypeError, replies[0].Type)
}

func TestServeWs_SubscribeThenCursorAfterMalformedRequest(t *testing.T) {
	hub, logger := newTestHub(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, logger, w, r)
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("garbage")))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeError, msg.Type)

	require.NoError(t, conn.WriteJSON(Request{Type: MessageTypeSubscribe, Topic: TopicPlayers}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeSubscribed, msg.Type)
	var cursor Message
	require.NoError(t, conn.ReadJSON(&cursor))
	assert.Equal(t, MessageTypePlayersCursor, cursor.Type)
	assert.Equal(t, TopicPlayers, cursor.Topic)
}
