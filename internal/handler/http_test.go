package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clicker-admin/internal/config"
	"github.com/clicker-admin/internal/directory"
	"github.com/clicker-admin/internal/domain"
	"github.com/clicker-admin/internal/service"
	"github.com/clicker-admin/internal/store"
	"github.com/clicker-admin/internal/store/storetest"
	"github.com/clicker-admin/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	store   *storetest.Faulty
	dir     *directory.Directory
	handler http.Handler
	auth    *Authenticator
	checks  map[string]Pinger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.DefaultConfig()

	ts := &testServer{
		store:  storetest.NewFaulty(store.NewMemoryStore()),
		checks: map[string]Pinger{},
	}
	ts.dir = directory.New(ts.store, logger)
	bulk := service.NewBulkCoordinator(ts.dir, logger)
	admin := service.NewAdminService(ts.dir, bulk, nil, nil, &cfg.Leaderboard, logger)
	ts.auth = NewAuthenticator(&config.AdminConfig{
		Username:  "operator",
		LoginCode: "s3cret",
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
	})
	ts.handler = NewHandler(admin, websocket.NewHub(ts.dir, logger), ts.auth, ts.checks, logger).Router()
	return ts
}

func (ts *testServer) seed(t *testing.T, id, username string, money float64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, ts.store.Set(ctx, store.Join(directory.CollectionUsers, id), domain.UserAccount{Username: username}))
	require.NoError(t, ts.dir.SaveProgress(ctx, id,
		rawJSON(t, domain.PlayerRecord{Username: username, Money: money}),
		&domain.LeaderboardEntry{Username: username, AllTimeMoney: money}))
	require.NoError(t, ts.store.Set(ctx, store.Join(directory.CollectionUsernames, id), map[string]any{"username": username}))
}

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func (ts *testServer) token(t *testing.T) string {
	t.Helper()
	token, _, err := ts.auth.Login("operator", "s3cret")
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path string, body any, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	rec, resp := ts.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{Username: "operator", LoginCode: "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, resp["success"])

	rec, resp = ts.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{Username: "operator", LoginCode: "s3cret"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp["data"].(map[string]any)
	token := data["token"].(string)
	assert.NotEmpty(t, data["expires_at"])

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/players", nil, token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticationRequired(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"garbage token", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := ts.do(t, http.MethodGet, "/api/v1/players", nil, tt.token)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, domain.ErrUnauthorized.Error(), resp["error"])
		})
	}

	t.Run("expired token", func(t *testing.T) {
		token := ts.token(t)
		ts.auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { ts.auth.now = time.Now }()

		rec, _ := ts.do(t, http.MethodGet, "/api/v1/players", nil, token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestGetLeaderboard(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, "p1", "alice", 100)
	ts.seed(t, "p2", "bob", 300)
	ts.seed(t, "p3", "carol", 300)
	require.NoError(t, ts.dir.SetBan(context.Background(), "p2", true))
	token := ts.token(t)

	t.Run("bans filtered", func(t *testing.T) {
		rec, resp := ts.do(t, http.MethodGet, "/api/v1/leaderboards/allTimeMoney", nil, token)
		require.Equal(t, http.StatusOK, rec.Code)
		entries := resp["data"].(map[string]any)["entries"].([]any)
		require.Len(t, entries, 2)
		assert.Equal(t, "p3", entries[0].(map[string]any)["userId"])
		assert.Equal(t, "p1", entries[1].(map[string]any)["userId"])
	})

	t.Run("bans included with limit", func(t *testing.T) {
		rec, resp := ts.do(t, http.MethodGet, "/api/v1/leaderboards/allTimeMoney?include_banned=true&limit=2", nil, token)
		require.Equal(t, http.StatusOK, rec.Code)
		data := resp["data"].(map[string]any)
		assert.Equal(t, float64(3), data["total_entries"])
		entries := data["entries"].([]any)
		require.Len(t, entries, 2)
		assert.Equal(t, "p2", entries[0].(map[string]any)["userId"])
		assert.Equal(t, "p3", entries[1].(map[string]any)["userId"])
	})

	t.Run("unknown category", func(t *testing.T) {
		rec, _ := ts.do(t, http.MethodGet, "/api/v1/leaderboards/xp", nil, token)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetPlayer(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, "p1", "alice", 100)
	token := ts.token(t)

	rec, resp := ts.do(t, http.MethodGet, "/api/v1/players/p1", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp["data"].(map[string]any)
	assert.Equal(t, "p1", data["id"])
	assert.Equal(t, float64(1), data["ranks"].(map[string]any)["allTimeMoney"])

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/players/missing", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEditField(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, "p1", "alice", 100)
	token := ts.token(t)

	rec, _ := ts.do(t, http.MethodPatch, "/api/v1/players/p1/fields", map[string]any{"field": "gems", "value": 42}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	rec2, err := ts.dir.Player(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec2.Gems)

	rec, _ = ts.do(t, http.MethodPatch, "/api/v1/players/p1/fields", map[string]any{"field": "username", "value": 1}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(t, http.MethodPatch, "/api/v1/players/p1/fields", map[string]any{"field": "gems"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeletePlayer(t *testing.T) {
	t.Run("all steps succeed", func(t *testing.T) {
		ts := newTestServer(t)
		ts.seed(t, "p1", "alice", 100)

		rec, resp := ts.do(t, http.MethodDelete, "/api/v1/players/p1", nil, ts.token(t))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, resp["success"])
		steps := resp["data"].(map[string]any)["steps"].([]any)
		assert.Len(t, steps, 5)

		_, err := ts.dir.Player(context.Background(), "p1")
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	})

	t.Run("partial failure reports every step", func(t *testing.T) {
		ts := newTestServer(t)
		ts.seed(t, "p1", "alice", 100)
		ts.store.FailOn(storetest.OpDelete, directory.CollectionUsernames+"/")

		rec, resp := ts.do(t, http.MethodDelete, "/api/v1/players/p1", nil, ts.token(t))
		require.Equal(t, http.StatusMultiStatus, rec.Code)
		assert.Equal(t, false, resp["success"])

		steps := resp["data"].(map[string]any)["steps"].([]any)
		require.Len(t, steps, 5)
		failed := 0
		for _, s := range steps {
			if !s.(map[string]any)["ok"].(bool) {
				failed++
				assert.Equal(t, "usernames/p1", s.(map[string]any)["path"])
			}
		}
		assert.Equal(t, 1, failed)
	})
}

func TestBulk(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, "p1", "alice", 100)
	ts.seed(t, "p2", "bob", 5)
	token := ts.token(t)

	rec, resp := ts.do(t, http.MethodPost, "/api/v1/bulk", domain.BulkRequest{
		PlayerIDs: []string{"p1", "p2"},
		Action:    domain.BulkAddMoney,
		Amount:    50,
	}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp["data"].(map[string]any)
	assert.Equal(t, float64(2), data["succeeded"])
	assert.Empty(t, data["failures"])

	p2, err := ts.dir.Player(context.Background(), "p2")
	require.NoError(t, err)
	assert.Equal(t, 55.0, p2.Money)

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/bulk", domain.BulkRequest{PlayerIDs: []string{"p1"}, Action: "Explode"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/bulk", domain.BulkRequest{Action: domain.BulkBanAll}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnnounce(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t)

	rec, resp := ts.do(t, http.MethodPost, "/api/v1/announcements", AnnounceRequest{Message: "double gems weekend"}, token)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotEmpty(t, resp["data"].(map[string]any)["id"])

	pending, err := ts.dir.PendingAnnouncements(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "double gems weekend", pending[0].Message)

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/announcements", AnnounceRequest{Message: "  "}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStoreUnavailable(t *testing.T) {
	ts := newTestServer(t)
	ts.store.FailOn(storetest.OpSnapshot, directory.CollectionUsers)

	rec, resp := ts.do(t, http.MethodGet, "/api/v1/players", nil, ts.token(t))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, domain.ErrStoreUnavailable.Error(), resp["error"])
}

func TestReadyCheck(t *testing.T) {
	ts := newTestServer(t)
	ts.checks["store"] = pingFunc(func(context.Context) error { return nil })

	rec, _ := ts.do(t, http.MethodGet, "/ready", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	ts.checks["postgres"] = pingFunc(func(context.Context) error { return errors.New("connection refused") })
	rec, resp := ts.do(t, http.MethodGet, "/ready", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", resp["data"].(map[string]any)["postgres"])
}
