package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/clicker-admin/internal/config"
	"github.com/clicker-admin/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	cfg := config.DefaultConfig()
	repo, err := NewRepository(&cfg.Postgres, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}
	t.Cleanup(repo.Close)
	require.NoError(t, repo.RunMigrations(context.Background()))
	return repo
}

func TestRepository_ListMutationsEmptyIsNotNil(t *testing.T) {
	repo := newTestRepository(t)

	events, err := repo.ListMutations(context.Background(), "nobody-"+uuid.NewString(), 10)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestRepository_RecordAndListMutations(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	player := "player-" + uuid.NewString()

	require.NoError(t, repo.RecordMutation(ctx, domain.MutationEvent{
		Actor:    "admin:operator",
		Action:   "bulk_AddGems",
		PlayerID: player,
		Detail:   map[string]any{"amount": 5.0},
	}))
	require.NoError(t, repo.RecordMutation(ctx, domain.MutationEvent{
		Actor:    "admin:operator",
		Action:   "ban",
		PlayerID: player,
		Failed:   true,
	}))

	events, err := repo.ListMutations(ctx, player, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ban", events[0].Action)
	assert.True(t, events[0].Failed)
	assert.Equal(t, "bulk_AddGems", events[1].Action)
	assert.Equal(t, 5.0, events[1].Detail["amount"])
	assert.Equal(t, player, events[1].PlayerID)
}
