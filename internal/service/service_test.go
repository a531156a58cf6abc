package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/clicker-admin/internal/config"
	"github.com/clicker-admin/internal/directory"
	"github.com/clicker-admin/internal/domain"
	"github.com/clicker-admin/internal/store"
	"github.com/clicker-admin/internal/store/storetest"
	"github.com/stretchr/testify/require"
)

type fakeAudit struct {
	mu     sync.Mutex
	events []domain.MutationEvent
	err    error
}

func (a *fakeAudit) RecordMutation(_ context.Context, e domain.MutationEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.events = append(a.events, e)
	return nil
}

func (a *fakeAudit) ListMutations(_ context.Context, playerID string, limit int) ([]domain.MutationEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.MutationEvent
	for i := len(a.events) - 1; i >= 0 && len(out) < limit; i-- {
		if playerID == "" || a.events[i].PlayerID == playerID {
			out = append(out, a.events[i])
		}
	}
	return out, nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	actions []string
	ids     [][]string
}

func (n *fakeNotifier) PlayersChanged(action string, ids ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.actions = append(n.actions, action)
	n.ids = append(n.ids, ids)
}

type fixture struct {
	store  *storetest.Faulty
	dir    *directory.Directory
	bulk   *BulkCoordinator
	admin  *AdminService
	bot    *BotService
	links  *LinkCache
	audit  *fakeAudit
	notify *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.DefaultConfig()

	f := &fixture{
		store:  storetest.NewFaulty(store.NewMemoryStore()),
		audit:  &fakeAudit{},
		notify: &fakeNotifier{},
	}
	f.dir = directory.New(f.store, logger)
	f.bulk = NewBulkCoordinator(f.dir, logger)
	f.admin = NewAdminService(f.dir, f.bulk, f.audit, f.notify, &cfg.Leaderboard, logger)
	f.links = NewLinkCache(f.dir)
	f.bot = NewBotService(f.dir, f.admin, f.links, &cfg.Discord, &cfg.Leaderboard, logger)
	return f
}

func (f *fixture) seed(t *testing.T, id, username string, rec domain.PlayerRecord, entry domain.LeaderboardEntry) {
	t.Helper()
	ctx := context.Background()
	rec.Username = username
	entry.Username = username
	require.NoError(t, f.store.Set(ctx, store.Join(directory.CollectionUsers, id), domain.UserAccount{Username: username, LoginCode: "code-" + id}))
	require.NoError(t, f.dir.SaveProgress(ctx, id, rawJSON(t, rec), &entry))
}

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func (f *fixture) record(t *testing.T, id string) *domain.PlayerRecord {
	t.Helper()
	rec, err := f.dir.Player(context.Background(), id)
	require.NoError(t, err)
	return rec
}

var errAuditDown = errors.New("audit down")
